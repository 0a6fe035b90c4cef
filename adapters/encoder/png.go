package encoder

import (
	"context"
	"image/png"
	"sync"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
	"github.com/Skryldev/media-editor/utils"
)

// PNG encodes images to PNG format.  The encoder reuses compression buffers
// across calls.
type PNG struct {
	enc png.Encoder
}

func NewPNG() *PNG {
	return &PNG{enc: png.Encoder{
		CompressionLevel: png.DefaultCompression,
		BufferPool:       &bufferPool{},
	}}
}

func (p *PNG) CanEncode(format core.Format) bool { return format == core.FormatPNG }

func (p *PNG) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "png.encode", err)
	}
	if img == nil || img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "png.encode", apperrors.ErrEmptyInput)
	}

	enc := p.enc
	if opts.Lossless {
		enc.CompressionLevel = png.BestCompression
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	if err := enc.Encode(buf, img.Image); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "png.encode", err)
	}
	return utils.CloneBytes(buf.Bytes()), nil
}

type bufferPool struct{ pool sync.Pool }

func (b *bufferPool) Get() *png.EncoderBuffer {
	buf, _ := b.pool.Get().(*png.EncoderBuffer)
	return buf
}

func (b *bufferPool) Put(buf *png.EncoderBuffer) { b.pool.Put(buf) }
