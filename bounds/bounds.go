// Package bounds locates the real content of a frame that carries a caption
// header, so the header can be cropped away.
//
// The frame is inverted and reduced to intensity, binarized with a low
// threshold, cleaned with a morphological opening and split into 8-connected
// regions.  The region with the largest bounding area is taken as the
// content; its top edge becomes the crop origin.  Only vertical cropping is
// produced: the returned Bounds always spans the full frame width.
package bounds

import (
	"image"
	"image/draw"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
)

// DefaultThreshold is the inverted intensity above which a pixel counts as
// content.  Captions are pure white, so anything slightly darker qualifies.
const DefaultThreshold = 10

// Detector holds the tunables of the detection pass.  The zero value uses
// DefaultThreshold and a 3×3 opening.
type Detector struct {
	Threshold uint8
	// Radius of the square structuring element; 0 selects 1 (3×3).
	Radius int
	// NoOpening turns the speckle filter off.
	NoOpening bool
}

// Detect runs the default Detector.
func Detect(img image.Image) (core.Bounds, error) {
	return Detector{}.Detect(img)
}

// Detect returns the crop window of the content in img.  A frame with no
// distinguishable region fails with ErrContentBoundsNotFound.
func (d Detector) Detect(img image.Image) (core.Bounds, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return core.Bounds{}, notFound()
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	if uniform(rgba) {
		return core.Bounds{}, notFound()
	}

	threshold := d.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	mask := binarize(rgba, threshold)

	if !d.NoOpening {
		radius := d.Radius
		if radius == 0 {
			radius = 1
		}
		mask = dilate(erode(mask, w, h, radius), w, h, radius)
	}

	region, found := largestRegion(mask, w, h)
	if !found {
		return core.Bounds{}, notFound()
	}
	return core.Bounds{X: 0, Y: region.Min.Y, Width: w, Height: h - region.Min.Y}, nil
}

func notFound() error {
	return apperrors.New(apperrors.CategoryContentBoundsNotFound, "bounds.detect", apperrors.ErrContentBoundsNotFound)
}

func uniform(img *image.RGBA) bool {
	if len(img.Pix) < 4 {
		return true
	}
	p0 := img.Pix[0:4]
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Rect.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			if row[i] != p0[0] || row[i+1] != p0[1] || row[i+2] != p0[2] || row[i+3] != p0[3] {
				return false
			}
		}
	}
	return true
}

// binarize marks pixels whose inverted luma exceeds threshold.
func binarize(img *image.RGBA, threshold uint8) []bool {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			r, g, b := uint32(row[x*4]), uint32(row[x*4+1]), uint32(row[x*4+2])
			luma := (299*r + 587*g + 114*b + 500) / 1000
			mask[y*w+x] = 255-luma > uint32(threshold)
		}
	}
	return mask
}

// erode keeps a pixel only if its whole neighbourhood is set.  Pixels outside
// the frame count as set so content touching the border survives.
func erode(mask []bool, w, h, r int) []bool {
	return morph(mask, w, h, r, true)
}

// dilate sets a pixel if any neighbour is set.
func dilate(mask []bool, w, h, r int) []bool {
	return morph(mask, w, h, r, false)
}

// morph applies a separable square min (erode) or max (dilate) filter.
func morph(mask []bool, w, h, r int, erosion bool) []bool {
	tmp := make([]bool, len(mask))
	out := make([]bool, len(mask))

	pass := func(src, dst []bool, n, stride, lines, lineStride int) {
		for l := 0; l < lines; l++ {
			base := l * lineStride
			for i := 0; i < n; i++ {
				v := erosion
				for k := i - r; k <= i+r; k++ {
					if k < 0 || k >= n {
						continue
					}
					s := src[base+k*stride]
					if erosion && !s {
						v = false
						break
					}
					if !erosion && s {
						v = true
						break
					}
				}
				dst[base+i*stride] = v
			}
		}
	}
	pass(mask, tmp, w, 1, h, w) // rows
	pass(tmp, out, h, w, w, 1)  // columns
	return out
}

// largestRegion labels 8-connected components and returns the bounding box of
// the one with the largest bounding area.
func largestRegion(mask []bool, w, h int) (image.Rectangle, bool) {
	seen := make([]bool, len(mask))
	queue := make([]int, 0, 1024)

	var best image.Rectangle
	bestArea := 0
	for start, set := range mask {
		if !set || seen[start] {
			continue
		}
		seen[start] = true
		queue = append(queue[:0], start)
		minX, minY := start%w, start/w
		maxX, maxY := minX, minY

		for len(queue) > 0 {
			p := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			px, py := p%w, p/w
			minX, maxX = min(minX, px), max(maxX, px)
			minY, maxY = min(minY, py), max(maxY, py)

			for dy := -1; dy <= 1; dy++ {
				ny := py + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := px + dx
					if nx < 0 || nx >= w || (dx == 0 && dy == 0) {
						continue
					}
					n := ny*w + nx
					if mask[n] && !seen[n] {
						seen[n] = true
						queue = append(queue, n)
					}
				}
			}
		}

		rect := image.Rect(minX, minY, maxX+1, maxY+1)
		if area := rect.Dx() * rect.Dy(); area > bestArea {
			best, bestArea = rect, area
		}
	}
	return best, bestArea > 0
}
