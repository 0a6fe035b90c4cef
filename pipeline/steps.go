package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
	"github.com/Skryldev/media-editor/utils"
)

// ── Decode ────────────────────────────────────────────────────────────────────

// DecodeStep decodes raw bytes in img.Data into an image.Image.  The codec is
// picked from the sniffed content; Declared is used when sniffing is
// inconclusive.
type DecodeStep struct {
	Registry core.Registry
	Declared core.Format
}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image != nil {
		return img, nil // already decoded
	}
	if len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}

	format := img.Format
	if format == "" || format == core.FormatUnknown {
		format = core.Format(utils.DetectFormat(img.Data))
	}
	if format == core.FormatUnknown {
		format = s.Declared
	}
	// The default image of an APNG is a plain PNG.
	if format == core.FormatAPNG {
		format = core.FormatPNG
	}

	dec, ok := s.Registry.DecoderFor(format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}

	decoded, err := dec.Decode(ctx, bytes.NewReader(img.Data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, s.Name(), err)
	}

	// Preserve the raw data bytes alongside the decoded representation.
	decoded.Data = img.Data
	decoded.OriginalSize = int64(len(img.Data))
	return decoded, nil
}

// ── Resize ────────────────────────────────────────────────────────────────────

// ResizeStep scales the image to exactly Width×Height.  A zero axis is derived
// from the other one to keep the aspect ratio.  When Scale is set it takes
// precedence and multiplies both source dimensions.
type ResizeStep struct {
	Width, Height int
	Scale         float64
	// Resampler controls quality vs speed.  Defaults to draw.BiLinear.
	Resampler xdraw.Interpolator
}

func (s *ResizeStep) Name() string { return "resize" }

func (s *ResizeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}

	srcB := img.Image.Bounds()
	var dstW, dstH int
	if s.Scale > 0 {
		dstW = int(math.Round(float64(srcB.Dx()) * s.Scale))
		dstH = int(math.Round(float64(srcB.Dy()) * s.Scale))
	} else {
		if s.Width < 0 || s.Height < 0 || (s.Width == 0 && s.Height == 0) {
			return nil, apperrors.New(apperrors.CategoryInput, s.Name(),
				fmt.Errorf("%w: %dx%d", apperrors.ErrInvalidDimensions, s.Width, s.Height))
		}
		dstW, dstH = utils.ScaleDimensions(srcB.Dx(), srcB.Dy(), s.Width, s.Height)
	}
	if dstW <= 0 || dstH <= 0 {
		return nil, apperrors.New(apperrors.CategoryInput, s.Name(), apperrors.ErrInvalidDimensions)
	}
	if dstW == srcB.Dx() && dstH == srcB.Dy() {
		return img, nil // nothing to do
	}

	out := *img
	out.Image = ScaleImage(img.Image, dstW, dstH, s.Resampler)
	out.Meta.Width = dstW
	out.Meta.Height = dstH
	return &out, nil
}

// ── Crop ──────────────────────────────────────────────────────────────────────

// BoundsFunc locates the region of an image to keep.
type BoundsFunc func(image.Image) (core.Bounds, error)

// CropStep crops a rectangle from the image.  When Detect is set the
// rectangle comes from it instead of the fixed fields.
type CropStep struct {
	X, Y, Width, Height int
	Detect              BoundsFunc
}

func (s *CropStep) Name() string { return "crop" }

func (s *CropStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}

	src := img.Image
	rect := image.Rect(s.X, s.Y, s.X+s.Width, s.Y+s.Height)
	if s.Detect != nil {
		b, err := s.Detect(src)
		if err != nil {
			return nil, err
		}
		rect = b.Rect()
	}
	rect = rect.Add(src.Bounds().Min)
	if rect.Empty() || !rect.In(src.Bounds()) {
		return nil, apperrors.New(apperrors.CategoryInput, s.Name(),
			fmt.Errorf("crop rect %v exceeds image bounds %v", rect, src.Bounds()))
	}

	out := *img
	out.Image = CropImage(src, rect)
	out.Meta.Width = rect.Dx()
	out.Meta.Height = rect.Dy()
	return &out, nil
}

// ── Stack ─────────────────────────────────────────────────────────────────────

// HeaderFunc renders a full-width header for an image of the given width.
type HeaderFunc func(ctx context.Context, width int) (image.Image, error)

// StackStep renders a header at the image's width and stacks it on top.
type StackStep struct {
	Header HeaderFunc
}

func (s *StackStep) Name() string { return "stack" }

func (s *StackStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	header, err := s.Header(ctx, img.Image.Bounds().Dx())
	if err != nil {
		return nil, err
	}

	dst := StackVertical(header, img.Image)
	out := *img
	out.Image = dst
	out.Meta.Width = dst.Rect.Dx()
	out.Meta.Height = dst.Rect.Dy()
	return &out, nil
}

// ── Flatten ───────────────────────────────────────────────────────────────────

// FlattenStep removes transparency by compositing onto Background.
type FlattenStep struct {
	Background color.Color
}

func (s *FlattenStep) Name() string { return "flatten" }

func (s *FlattenStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	bg := s.Background
	if bg == nil {
		bg = color.Black
	}

	out := *img
	out.Image = Flatten(img.Image, bg)
	out.Meta.HasAlpha = false
	out.Meta.ColorSpace = core.ColorSpaceRGB
	return &out, nil
}

// ── Format conversion ─────────────────────────────────────────────────────────

// FormatStep sets the output format for the subsequent encode step.
type FormatStep struct {
	Format core.Format
}

func (s *FormatStep) Name() string { return "format" }

func (s *FormatStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	out := *img
	out.Format = s.Format
	out.Meta.Format = s.Format
	return &out, nil
}

// ── Quality ───────────────────────────────────────────────────────────────────

// QualityStep records the desired encode quality.  The actual quality is
// consumed by EncodeStep.
type QualityStep struct {
	Quality int
}

func (s *QualityStep) Name() string { return "quality" }

func (s *QualityStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	out := *img
	out.Quality = s.Quality
	return &out, nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

// EncodeStep serialises the image.Image into encoded bytes using the registry.
type EncodeStep struct {
	Registry    core.Registry
	BaseOptions core.EncodeOptions
}

func (s *EncodeStep) Name() string { return "encode" }

func (s *EncodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(), apperrors.ErrEmptyInput)
	}
	enc, ok := s.Registry.EncoderFor(img.Format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format))
	}

	opts := s.BaseOptions
	if img.Quality > 0 {
		opts.Quality = img.Quality
	}

	data, err := enc.Encode(ctx, img, opts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, s.Name(), err)
	}

	out := *img
	out.Data = data
	out.Meta.SizeBytes = int64(len(data))
	return &out, nil
}
