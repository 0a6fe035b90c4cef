package encoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
)

// maxDelay is the largest delay a GIF frame can carry, in hundredths of a second.
const maxDelay = math.MaxUint16

// gifPalette is Plan9 with its darkest non-black grey swapped for full
// transparency.  Pure black and pure white stay exact.
var gifPalette = func() color.Palette {
	p := make(color.Palette, len(palette.Plan9))
	copy(p, palette.Plan9)
	p[p.Index(color.RGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff})] = color.RGBA{}
	return p
}()

// GIF writes composed frames as an infinitely looping GIF.
type GIF struct {
	// Dither enables Floyd-Steinberg error diffusion during quantization.
	Dither bool
}

func NewGIF() *GIF { return &GIF{Dither: true} }

func (g *GIF) EncodeSequence(ctx context.Context, seq *core.Sequence) ([]byte, error) {
	if seq == nil || len(seq.Frames) == 0 {
		return nil, apperrors.New(apperrors.CategoryEncode, "gif.encode", apperrors.ErrNoFrames)
	}

	anim := &gif.GIF{
		Image:     make([]*image.Paletted, len(seq.Frames)),
		Delay:     make([]int, len(seq.Frames)),
		Disposal:  make([]byte, len(seq.Frames)),
		LoopCount: 0,
		Config: image.Config{
			ColorModel: gifPalette,
			Width:      seq.Width,
			Height:     seq.Height,
		},
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for i, f := range seq.Frames {
		anim.Delay[i] = delayOf(f.Duration)
		anim.Disposal[i] = gif.DisposalBackground
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			anim.Image[i] = g.quantize(f.Image)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "gif.encode", err)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "gif.encode", err)
	}
	return buf.Bytes(), nil
}

func (g *GIF) quantize(src image.Image) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), gifPalette)
	if g.Dither {
		draw.FloydSteinberg.Draw(dst, dst.Bounds(), src, b.Min)
	} else {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	}
	return dst
}

// delayOf converts d to hundredths of a second, rounding to nearest.
func delayOf(d time.Duration) int {
	cs := int(math.Round(float64(d) / float64(10*time.Millisecond)))
	return min(max(cs, 1), maxDelay)
}
