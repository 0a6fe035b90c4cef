package decoder

import (
	"context"
	"image"
	"image/gif"
	"io"
	"time"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
)

// DefaultFrameDelay replaces a zero frame delay, matching what browsers show.
const DefaultFrameDelay = 100 * time.Millisecond

// GIF reads every frame of a GIF without composing them.
type GIF struct{}

func NewGIF() *GIF { return &GIF{} }

func (g *GIF) DecodeSequence(ctx context.Context, r io.Reader) (*core.RawSequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "gif.decode", err)
	}

	anim, err := gif.DecodeAll(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "gif.decode", err)
	}
	if len(anim.Image) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "gif.decode", apperrors.ErrNoFrames)
	}

	width, height := anim.Config.Width, anim.Config.Height
	if width == 0 || height == 0 {
		var canvas image.Rectangle
		for _, frame := range anim.Image {
			canvas = canvas.Union(frame.Bounds())
		}
		width, height = canvas.Max.X, canvas.Max.Y
	}

	seq := &core.RawSequence{Width: width, Height: height, Frames: make([]core.RawFrame, len(anim.Image))}
	for i, frame := range anim.Image {
		var delay time.Duration
		if i < len(anim.Delay) {
			delay = time.Duration(anim.Delay[i]) * 10 * time.Millisecond
		}
		if delay <= 0 {
			delay = DefaultFrameDelay
		}
		seq.Frames[i] = core.RawFrame{Image: frame, Duration: delay}
	}
	return seq, nil
}
