package editor

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/Skryldev/media-editor/bounds"
	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
	"github.com/Skryldev/media-editor/pipeline"
	"github.com/Skryldev/media-editor/utils"
)

// Animated edits GIF and APNG animations.  Frames are composed into
// self-contained images before any transform and every result is a looping
// GIF.
type Animated struct {
	att  core.Attachment
	deps *Deps
}

func (e *Animated) Kind() core.EditorKind { return core.KindAnimatedImage }

// Resize scales every frame to width×height.
func (e *Animated) Resize(ctx context.Context, width, height int) (*core.Result, error) {
	if err := validateSize("resize", width, height); err != nil {
		return nil, err
	}
	return e.run(ctx, "resize", func(ctx context.Context, seq *core.Sequence) error {
		w, h := utils.ScaleDimensions(seq.Width, seq.Height, width, height)
		if w <= 0 || h <= 0 {
			return apperrors.New(apperrors.CategoryInput, "resize", apperrors.ErrInvalidDimensions)
		}
		frames, err := pipeline.MapFrames(ctx, seq.Frames, func(f *image.RGBA) (*image.RGBA, error) {
			return pipeline.ScaleImage(f, w, h, nil), nil
		})
		if err != nil {
			return err
		}
		seq.Width, seq.Height, seq.Frames = w, h, frames
		return nil
	})
}

// Caption renders the caption once and stacks it above every frame.
func (e *Animated) Caption(ctx context.Context, text string) (*core.Result, error) {
	return e.run(ctx, "caption", func(ctx context.Context, seq *core.Sequence) error {
		header, err := e.deps.header(ctx, text, seq.Width)
		if err != nil {
			return err
		}
		frames, err := pipeline.MapFrames(ctx, seq.Frames, func(f *image.RGBA) (*image.RGBA, error) {
			return pipeline.StackVertical(header, f), nil
		})
		if err != nil {
			return err
		}
		seq.Height += header.Bounds().Dy()
		seq.Frames = frames
		return nil
	})
}

// Uncaption detects the content bounds on the middle frame and crops every
// frame to them.
func (e *Animated) Uncaption(ctx context.Context) (*core.Result, error) {
	return e.run(ctx, "uncaption", func(ctx context.Context, seq *core.Sequence) error {
		b, err := bounds.Detect(seq.Frames[len(seq.Frames)/2].Image)
		if err != nil {
			return err
		}
		rect := b.Rect()
		frames, err := pipeline.MapFrames(ctx, seq.Frames, func(f *image.RGBA) (*image.RGBA, error) {
			return pipeline.CropImage(f, rect), nil
		})
		if err != nil {
			return err
		}
		seq.Width, seq.Height, seq.Frames = rect.Dx(), rect.Dy(), frames
		return nil
	})
}

// Speed divides every frame duration by multiplier.
func (e *Animated) Speed(ctx context.Context, multiplier float64) (*core.Result, error) {
	return e.run(ctx, "speed", func(_ context.Context, seq *core.Sequence) error {
		frames, err := pipeline.SpeedFrames(seq.Frames, multiplier)
		if err != nil {
			return err
		}
		seq.Frames = frames
		return nil
	})
}

// Reverse plays the animation backwards.
func (e *Animated) Reverse(ctx context.Context) (*core.Result, error) {
	return e.run(ctx, "reverse", func(_ context.Context, seq *core.Sequence) error {
		seq.Frames = pipeline.ReverseFrames(seq.Frames)
		return nil
	})
}

func (e *Animated) run(ctx context.Context, op string, transform func(context.Context, *core.Sequence) error) (*core.Result, error) {
	return e.deps.Runner.Run(ctx, op, e.Kind(), func(ctx context.Context) (*core.Result, error) {
		seq, err := e.decode(ctx)
		if err != nil {
			return nil, err
		}
		if err := transform(ctx, seq); err != nil {
			return nil, err
		}

		enc, ok := e.deps.Registry.SequenceEncoderFor(core.FormatGIF)
		if !ok {
			return nil, apperrors.New(apperrors.CategoryEncode, op,
				fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, core.FormatGIF))
		}
		data, err := enc.EncodeSequence(ctx, seq)
		if err != nil {
			return nil, err
		}
		return result(e.att, data, core.FormatGIF), nil
	})
}

// decode reads and composes the attachment's frames.  The container is
// sniffed; the declared type is used only when sniffing fails.
func (e *Animated) decode(ctx context.Context) (*core.Sequence, error) {
	data := e.att.Bytes()
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode", apperrors.ErrEmptyInput)
	}

	format := core.Format(utils.DetectFormat(data))
	if format == core.FormatUnknown {
		format = core.Format(utils.FormatForMIME(e.att.MIME()))
	}
	// A PNG without animation control is a one-frame APNG.
	if format == core.FormatPNG {
		format = core.FormatAPNG
	}

	dec, ok := e.deps.Registry.SequenceDecoderFor(format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}
	raw, err := dec.DecodeSequence(ctx, bytes.NewReader(data))
	if err != nil {
		if apperrors.CategoryOf(err) == "" {
			err = apperrors.Wrap(apperrors.CategoryDecode, "decode", err)
		}
		return nil, err
	}

	seq, err := pipeline.ComposeFrames(ctx, raw)
	if err != nil {
		return nil, err
	}
	e.deps.log().Debug("animation.decoded",
		"format", string(format),
		"frames", len(seq.Frames),
		"disposal", seq.Mode.String(),
		"width", seq.Width,
		"height", seq.Height,
	)
	return seq, nil
}
