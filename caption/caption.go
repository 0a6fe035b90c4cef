// Package caption renders meme-style caption headers: centred black text on
// a white band exactly as wide as the media below it.
package caption

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
)

// emojiOnlyScale enlarges emoji in captions that contain nothing else.
const emojiOnlyScale = 2

// placeholderColor fills the box of an emoji whose artwork is unavailable.
var placeholderColor = color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}

// Options configures a Renderer.
type Options struct {
	// FontPath points at a TrueType/OpenType file.  Empty selects the
	// embedded Go Bold face.
	FontPath string
	// Resolver supplies emoji artwork.  Nil draws placeholders.
	Resolver EmojiResolver
	Logger   core.Logger
}

// Renderer lays out and draws captions.  It is safe for concurrent use; each
// call builds its own font face.
type Renderer struct {
	font     *opentype.Font
	resolver EmojiResolver
	logger   core.Logger
}

// New loads the caption font.  A missing or unparsable font fails with
// ErrFontAssetMissing.
func New(opts Options) (*Renderer, error) {
	data := gobold.TTF
	if opts.FontPath != "" {
		b, err := os.ReadFile(opts.FontPath)
		if err != nil {
			return nil, apperrors.New(apperrors.CategoryFontAssetMissing, "caption.font",
				fmt.Errorf("%w: %v", apperrors.ErrFontAssetMissing, err))
		}
		data = b
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryFontAssetMissing, "caption.font",
			fmt.Errorf("%w: %v", apperrors.ErrFontAssetMissing, err))
	}
	return &Renderer{font: f, resolver: opts.Resolver, logger: opts.Logger}, nil
}

// layout is the measured, wrapped form of a caption for one width.
type layout struct {
	width, height int
	fontSize      int
	spacing       int
	lineHeight    int
	ascent        int
	descent       int
	emojiSize     int
	lines         []string
	emojis        []Emoji
	face          font.Face
}

func (r *Renderer) layout(text string, width int) (*layout, error) {
	if width <= 0 {
		return nil, apperrors.New(apperrors.CategoryInput, "caption.layout",
			fmt.Errorf("%w: width %d", apperrors.ErrInvalidDimensions, width))
	}
	text, emojis := tokenize(Normalize(text))
	if text == "" {
		return nil, apperrors.New(apperrors.CategoryInput, "caption.layout", apperrors.ErrEmptyInput)
	}

	fontSize := max(width/10, 1)
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    float64(fontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryFontAssetMissing, "caption.face",
			fmt.Errorf("%w: %v", apperrors.ErrFontAssetMissing, err))
	}

	m := face.Metrics()
	l := &layout{
		width:     width,
		fontSize:  fontSize,
		spacing:   width / 40,
		ascent:    m.Ascent.Ceil(),
		descent:   m.Descent.Ceil(),
		emojiSize: fontSize,
		emojis:    emojis,
		face:      face,
	}
	l.lineHeight = l.ascent + l.descent
	if emojiOnly(text) {
		l.emojiSize = fontSize * emojiOnlyScale
		l.lineHeight = max(l.lineHeight, l.emojiSize)
	}

	avail := width - width/12
	l.lines = wrap(text, avail, measurer{face: face, emojiSize: l.emojiSize})

	n := len(l.lines)
	block := n*l.lineHeight + (n-1)*l.spacing
	l.height = block + fontSize
	return l, nil
}

// Height returns the height Render would produce for text at width.
func (r *Renderer) Height(text string, width int) (int, error) {
	l, err := r.layout(text, width)
	if err != nil {
		return 0, err
	}
	defer l.face.Close()
	return l.height, nil
}

// Render draws the caption for text at exactly width pixels wide.
func (r *Renderer) Render(ctx context.Context, text string, width int) (*image.RGBA, error) {
	l, err := r.layout(text, width)
	if err != nil {
		return nil, err
	}
	defer l.face.Close()

	art := r.resolveEmojis(ctx, l.emojis)

	dst := image.NewRGBA(image.Rect(0, 0, l.width, l.height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	m := measurer{face: l.face, emojiSize: l.emojiSize}
	d := &font.Drawer{Dst: dst, Src: image.Black, Face: l.face}

	top := l.fontSize / 2
	for _, line := range l.lines {
		x := (l.width - m.width(line)) / 2
		for _, seg := range segments(line) {
			if seg.emoji != 0 {
				box := image.Rect(x, top+(l.lineHeight-l.emojiSize)/2, x+l.emojiSize, top+(l.lineHeight+l.emojiSize)/2)
				drawEmoji(dst, box, art[seg.emoji-placeholderBase])
				x += l.emojiSize
				continue
			}
			baseline := top + (l.lineHeight-l.ascent-l.descent)/2 + l.ascent
			d.Dot = fixed.P(x, baseline)
			d.DrawString(seg.text)
			x += font.MeasureString(l.face, seg.text).Ceil()
		}
		top += l.lineHeight + l.spacing
	}
	return dst, nil
}

// resolveEmojis fetches artwork concurrently.  Failures leave a nil entry,
// which renders as a placeholder.
func (r *Renderer) resolveEmojis(ctx context.Context, emojis []Emoji) []image.Image {
	art := make([]image.Image, len(emojis))
	if r.resolver == nil || len(emojis) == 0 {
		return art
	}
	var g errgroup.Group
	g.SetLimit(4)
	for i, e := range emojis {
		g.Go(func() error {
			img, err := r.resolver.Resolve(ctx, e)
			if err != nil {
				if r.logger != nil {
					r.logger.Warn("caption.emoji", "name", e.Name, "id", e.ID, "error", err.Error())
				}
				return nil
			}
			art[i] = img
			return nil
		})
	}
	_ = g.Wait()
	return art
}

func drawEmoji(dst *image.RGBA, box image.Rectangle, art image.Image) {
	if art == nil {
		inset := box.Inset(max(box.Dx()/10, 1))
		draw.Draw(dst, inset, image.NewUniform(placeholderColor), image.Point{}, draw.Src)
		return
	}
	xdraw.CatmullRom.Scale(dst, box, art, art.Bounds(), xdraw.Over, nil)
}
