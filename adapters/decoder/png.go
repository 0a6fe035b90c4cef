package decoder

import (
	"context"
	"image/png"
	"io"

	"github.com/Skryldev/media-editor/core"
)

// PNG decodes PNG images using the standard library.  For an APNG this yields
// the default image only; use APNG for the frames.
type PNG struct{}

func NewPNG() *PNG { return &PNG{} }

func (p *PNG) CanDecode(format core.Format) bool {
	return format == core.FormatPNG || format == core.FormatAPNG
}

func (p *PNG) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	return decodeStill(ctx, "png.decode", core.FormatPNG, r, png.Decode)
}
