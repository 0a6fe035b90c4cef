package decoder

import (
	"context"
	"io"

	"golang.org/x/image/webp"

	"github.com/Skryldev/media-editor/core"
)

// WebP decodes still WebP images using golang.org/x/image/webp.
type WebP struct{}

func NewWebP() *WebP { return &WebP{} }

func (w *WebP) CanDecode(format core.Format) bool { return format == core.FormatWebP }

func (w *WebP) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	return decodeStill(ctx, "webp.decode", core.FormatWebP, r, webp.Decode)
}
