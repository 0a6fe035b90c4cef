package pipeline

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// ToRGBA returns src as an *image.RGBA anchored at the origin, copying only
// when it has to.
func ToRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// ScaleImage resamples src to exactly w×h.  A nil interpolator selects
// bilinear filtering.
func ScaleImage(src image.Image, w, h int, sampler xdraw.Interpolator) *image.RGBA {
	if sampler == nil {
		sampler = xdraw.BiLinear
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	sampler.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// CropImage copies rect (in src coordinates) into a new origin-anchored image.
func CropImage(src image.Image, rect image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
	return dst
}

// StackVertical places top above bottom.  The result is as wide as bottom;
// top is drawn from its left edge.
func StackVertical(top, bottom image.Image) *image.RGBA {
	tb, bb := top.Bounds(), bottom.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bb.Dx(), tb.Dy()+bb.Dy()))
	draw.Draw(dst, image.Rect(0, 0, bb.Dx(), tb.Dy()), top, tb.Min, draw.Src)
	draw.Draw(dst, image.Rect(0, tb.Dy(), bb.Dx(), tb.Dy()+bb.Dy()), bottom, bb.Min, draw.Src)
	return dst
}

// Flatten composites src over an opaque background colour.
func Flatten(src image.Image, bg color.Color) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}
