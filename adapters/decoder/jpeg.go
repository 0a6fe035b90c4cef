package decoder

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
)

// JPEG decodes JPEG images using the standard library and applies the EXIF
// orientation so phone photos come out upright.
type JPEG struct{}

// NewJPEG returns an initialised JPEG decoder.
func NewJPEG() *JPEG { return &JPEG{} }

func (j *JPEG) CanDecode(format core.Format) bool { return format == core.FormatJPEG }

func (j *JPEG) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.decode", err)
	}
	img, err := decodeStill(ctx, "jpeg.decode", core.FormatJPEG, bytes.NewReader(data), jpeg.Decode)
	if err != nil {
		return nil, err
	}
	if o := orientation(data); o > 1 {
		img.Image = orient(img.Image, o)
		b := img.Image.Bounds()
		img.Meta.Width, img.Meta.Height = b.Dx(), b.Dy()
	}
	return img, nil
}

// orientation returns the EXIF orientation tag (1-8), or 1 when absent.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// orient rewrites src so that orientation o becomes 1.  Orientations 5-8
// swap width and height.
func orient(src image.Image, o int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dw, dh := w, h
	if o >= 5 {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch o {
			case 2: // mirrored
				dx, dy = w-1-x, y
			case 3: // 180°
				dx, dy = w-1-x, h-1-y
			case 4:
				dx, dy = x, h-1-y
			case 5: // transpose
				dx, dy = y, x
			case 6: // 90° clockwise
				dx, dy = h-1-y, x
			case 7: // transverse
				dx, dy = h-1-y, w-1-x
			case 8: // 90° counter-clockwise
				dx, dy = y, w-1-x
			default:
				dx, dy = x, y
			}
			dst.Set(dx, dy, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
