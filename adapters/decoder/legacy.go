package decoder

import (
	"context"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/Skryldev/media-editor/core"
)

// BMP decodes Windows bitmaps.
type BMP struct{}

func NewBMP() *BMP { return &BMP{} }

func (b *BMP) CanDecode(format core.Format) bool { return format == core.FormatBMP }

func (b *BMP) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	return decodeStill(ctx, "bmp.decode", core.FormatBMP, r, bmp.Decode)
}

// TIFF decodes baseline TIFF images.
type TIFF struct{}

func NewTIFF() *TIFF { return &TIFF{} }

func (t *TIFF) CanDecode(format core.Format) bool { return format == core.FormatTIFF }

func (t *TIFF) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	return decodeStill(ctx, "tiff.decode", core.FormatTIFF, r, tiff.Decode)
}
