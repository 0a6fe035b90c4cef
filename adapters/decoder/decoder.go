// Package decoder provides format-specific decoders for still images and
// animation frame sequences.
package decoder

import (
	"context"
	"image"
	"io"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
)

// decodeStill runs fn and wraps the outcome in an ImageData tagged with format.
func decodeStill(ctx context.Context, op string, format core.Format, r io.Reader, fn func(io.Reader) (image.Image, error)) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}

	img, err := fn(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, apperrors.New(apperrors.CategoryDecode, op, apperrors.ErrInvalidDimensions)
	}
	return &core.ImageData{
		Image:  img,
		Format: format,
		Meta: core.Metadata{
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Format:     format,
			ColorSpace: colorSpace(img),
			HasAlpha:   hasAlpha(img),
		},
	}, nil
}

// colorSpace returns the colour space of an image.Image.
func colorSpace(img image.Image) core.ColorSpace {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return core.ColorSpaceGray
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.Paletted:
		return core.ColorSpaceRGBA
	case *image.CMYK:
		return core.ColorSpaceCMYK
	}
	return core.ColorSpaceRGB
}

func hasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.Paletted:
		return true
	}
	return false
}
