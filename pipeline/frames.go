package pipeline

import (
	"context"
	"image"
	"image/draw"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
)

// MinFrameDuration is the shortest per-frame delay an encoded animation is
// given.  Most GIF renderers clamp anything shorter.
const MinFrameDuration = 20 * time.Millisecond

// DetectDisposalMode scans every frame once.  A frame whose region is smaller
// than the canvas means the sequence stores deltas and needs composition.
func DetectDisposalMode(seq *core.RawSequence) core.DisposalMode {
	canvas := image.Rect(0, 0, seq.Width, seq.Height)
	for _, f := range seq.Frames {
		b := f.Image.Bounds()
		if b.Intersect(canvas) != canvas {
			return core.DisposalPartial
		}
	}
	return core.DisposalFull
}

// ComposeFrame is one step of the composition fold: it returns the frame that
// results from applying raw on top of prev.  prev is never modified and may be
// nil for the first frame.
func ComposeFrame(prev *image.RGBA, raw image.Image, mode core.DisposalMode, width, height int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	op := draw.Src
	if mode == core.DisposalPartial {
		if prev != nil {
			copy(canvas.Pix, prev.Pix)
		}
		op = draw.Over
	}
	b := raw.Bounds()
	draw.Draw(canvas, b, raw, b.Min, op)
	return canvas
}

// ComposeFrames folds a raw sequence into self-contained frames.
func ComposeFrames(ctx context.Context, seq *core.RawSequence) (*core.Sequence, error) {
	if seq == nil || len(seq.Frames) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "compose", apperrors.ErrNoFrames)
	}

	mode := DetectDisposalMode(seq)
	out := &core.Sequence{
		Width:  seq.Width,
		Height: seq.Height,
		Mode:   mode,
		Frames: make([]core.Frame, 0, len(seq.Frames)),
	}

	var last *image.RGBA
	for _, raw := range seq.Frames {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, "compose", err)
		}
		last = ComposeFrame(last, raw.Image, mode, seq.Width, seq.Height)
		out.Frames = append(out.Frames, core.Frame{Image: last, Duration: raw.Duration})
	}
	return out, nil
}

// SpeedFrames rescales every duration by 1/multiplier, rounded to the
// millisecond.  If any result drops below MinFrameDuration every other frame
// is discarded and the survivors are set to the floor.
func SpeedFrames(frames []core.Frame, multiplier float64) ([]core.Frame, error) {
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return nil, apperrors.New(apperrors.CategoryInput, "speed", apperrors.ErrInvalidSpeed)
	}

	out := make([]core.Frame, len(frames))
	belowFloor := false
	for i, f := range frames {
		ms := math.Round(float64(f.Duration.Milliseconds()) / multiplier)
		d := time.Duration(ms) * time.Millisecond
		if d < MinFrameDuration {
			belowFloor = true
		}
		out[i] = core.Frame{Image: f.Image, Duration: d}
	}
	if !belowFloor {
		return out, nil
	}

	kept := make([]core.Frame, 0, (len(frames)+1)/2)
	for i := 0; i < len(frames); i += 2 {
		kept = append(kept, core.Frame{Image: frames[i].Image, Duration: MinFrameDuration})
	}
	return kept, nil
}

// ReverseFrames returns the frames in reverse order with their durations.
func ReverseFrames(frames []core.Frame) []core.Frame {
	out := make([]core.Frame, len(frames))
	for i, f := range frames {
		out[len(frames)-1-i] = f
	}
	return out
}

// Parallel calls fn for every index in [0, n) on at most NumCPU goroutines
// and returns the first error.
func Parallel(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// MapFrames applies fn to every frame image concurrently, keeping order and
// durations.
func MapFrames(ctx context.Context, frames []core.Frame, fn func(*image.RGBA) (*image.RGBA, error)) ([]core.Frame, error) {
	out := make([]core.Frame, len(frames))
	err := Parallel(ctx, len(frames), func(_ context.Context, i int) error {
		img, err := fn(frames[i].Image)
		if err != nil {
			return err
		}
		out[i] = core.Frame{Image: img, Duration: frames[i].Duration}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "frames", err)
	}
	return out, nil
}
