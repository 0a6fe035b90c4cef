package editor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/Skryldev/media-editor/adapters/ffmpeg"
	"github.com/Skryldev/media-editor/bounds"
	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
	"github.com/Skryldev/media-editor/pipeline"
	"github.com/Skryldev/media-editor/utils"
	"github.com/Skryldev/media-editor/workspace"
)

const (
	framesDir    = "frames"
	framePattern = "%06d.png"
	outputName   = "output.mp4"
)

// Video edits video files through the external encoder.  Each operation
// works in its own temporary directory which is removed afterwards; every
// result is an H.264 MP4.
type Video struct {
	att  core.Attachment
	deps *Deps
}

func (e *Video) Kind() core.EditorKind { return core.KindVideo }

// Resize scales the video to width×height, rounded up to even dimensions.
func (e *Video) Resize(ctx context.Context, width, height int) (*core.Result, error) {
	if err := validateSize("resize", width, height); err != nil {
		return nil, err
	}
	return e.run(ctx, "resize", func(ctx context.Context, ws *workspace.Dir, in string, probe *ffmpeg.ProbeResult) error {
		w, h := width, height
		if w == 0 || h == 0 {
			w, h = utils.ScaleDimensions(probe.Width, probe.Height, width, height)
		}
		if w <= 0 || h <= 0 {
			return apperrors.New(apperrors.CategoryInput, "resize", apperrors.ErrInvalidDimensions)
		}
		out, err := ws.Path(outputName)
		if err != nil {
			return err
		}
		return e.deps.FFmpeg.Encode(ctx, "ffmpeg.resize", ffmpeg.ResizeArgs(in, out, w, h, probe.HasAudio))
	})
}

// Speed changes playback speed.  The multiplier is clamped to
// [ffmpeg.MinSpeed, ffmpeg.MaxSpeed]; audio keeps its pitch.
func (e *Video) Speed(ctx context.Context, multiplier float64) (*core.Result, error) {
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return nil, apperrors.New(apperrors.CategoryInput, "speed", apperrors.ErrInvalidSpeed)
	}
	m := ffmpeg.ClampSpeed(multiplier)
	return e.run(ctx, "speed", func(ctx context.Context, ws *workspace.Dir, in string, probe *ffmpeg.ProbeResult) error {
		out, err := ws.Path(outputName)
		if err != nil {
			return err
		}
		if m != multiplier {
			e.deps.log().Debug("video.speed.clamped", "requested", multiplier, "applied", m)
		}
		return e.deps.FFmpeg.Encode(ctx, "ffmpeg.speed", ffmpeg.SpeedArgs(in, out, m, probe.FrameRate, probe.HasAudio))
	})
}

// Reverse plays the video and its audio backwards.
func (e *Video) Reverse(ctx context.Context) (*core.Result, error) {
	return e.run(ctx, "reverse", func(ctx context.Context, ws *workspace.Dir, in string, probe *ffmpeg.ProbeResult) error {
		out, err := ws.Path(outputName)
		if err != nil {
			return err
		}
		return e.deps.FFmpeg.Encode(ctx, "ffmpeg.reverse", ffmpeg.ReverseArgs(in, out, probe.HasAudio))
	})
}

// Caption stacks the caption above every frame.
func (e *Video) Caption(ctx context.Context, text string) (*core.Result, error) {
	return e.run(ctx, "caption", func(ctx context.Context, ws *workspace.Dir, in string, probe *ffmpeg.ProbeResult) error {
		return e.perFrame(ctx, ws, in, probe, func(ctx context.Context, frames []string) (core.Step, error) {
			first, err := e.readFrame(ctx, ws, frames[0])
			if err != nil {
				return nil, err
			}
			header, err := e.deps.header(ctx, text, first.Bounds().Dx())
			if err != nil {
				return nil, err
			}
			return &pipeline.StackStep{Header: func(context.Context, int) (image.Image, error) {
				return header, nil
			}}, nil
		})
	})
}

// Uncaption detects the content bounds on the middle frame and crops every
// frame to them.
func (e *Video) Uncaption(ctx context.Context) (*core.Result, error) {
	return e.run(ctx, "uncaption", func(ctx context.Context, ws *workspace.Dir, in string, probe *ffmpeg.ProbeResult) error {
		return e.perFrame(ctx, ws, in, probe, func(ctx context.Context, frames []string) (core.Step, error) {
			ref, err := e.readFrame(ctx, ws, frames[len(frames)/2])
			if err != nil {
				return nil, err
			}
			b, err := bounds.Detect(ref)
			if err != nil {
				return nil, err
			}
			return &pipeline.CropStep{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}, nil
		})
	})
}

type videoOp func(ctx context.Context, ws *workspace.Dir, in string, probe *ffmpeg.ProbeResult) error

// run stages the input in a fresh workspace, probes it, applies op and
// returns the encoded output.
func (e *Video) run(ctx context.Context, op string, fn videoOp) (*core.Result, error) {
	return e.deps.Runner.Run(ctx, op, e.Kind(), func(ctx context.Context) (*core.Result, error) {
		if e.att.Size() == 0 {
			return nil, apperrors.New(apperrors.CategoryDecode, op, apperrors.ErrEmptyInput)
		}
		ws, err := workspace.New(ctx, e.deps.TempDir)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := ws.Remove(); err != nil {
				e.deps.log().Warn("workspace.remove", "dir", ws.Root(), "error", err.Error())
			}
		}()

		in, err := ws.Put(ctx, "input"+utils.ExtensionFor(e.att.MIME()), bytes.NewReader(e.att.Bytes()))
		if err != nil {
			return nil, err
		}
		probe, err := e.deps.FFmpeg.Probe(ctx, in)
		if err != nil {
			return nil, err
		}
		e.deps.log().Debug("video.probed",
			"op", op,
			"width", probe.Width,
			"height", probe.Height,
			"frame_rate", probe.FrameRate,
			"audio", probe.HasAudio,
		)

		if err := fn(ctx, ws, in, probe); err != nil {
			return nil, err
		}
		data, err := ws.ReadFile(ctx, outputName)
		if err != nil {
			return nil, err
		}
		return result(e.att, data, core.FormatMP4), nil
	})
}

// perFrame extracts every frame as PNG, rewrites each one in place through a
// single raster step and reassembles the video with the original audio.
// prepare sees the sorted frame names and builds that step.
func (e *Video) perFrame(ctx context.Context, ws *workspace.Dir, in string, probe *ffmpeg.ProbeResult,
	prepare func(ctx context.Context, frames []string) (core.Step, error),
) error {
	dir, err := ws.Mkdir(framesDir)
	if err != nil {
		return err
	}
	pattern := filepath.Join(dir, framePattern)
	if err := e.deps.FFmpeg.Extract(ctx, in, pattern); err != nil {
		return err
	}

	paths, err := ws.Glob(filepath.Join(framesDir, "*.png"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return apperrors.New(apperrors.CategoryDecode, "ffmpeg.extract", apperrors.ErrNoFrames)
	}
	frames := make([]string, len(paths))
	for i, p := range paths {
		frames[i] = filepath.Join(framesDir, filepath.Base(p))
	}

	step, err := prepare(ctx, frames)
	if err != nil {
		return err
	}
	p := pipeline.New().Use(
		&pipeline.DecodeStep{Registry: e.deps.Registry, Declared: core.FormatPNG},
		step,
		&pipeline.FormatStep{Format: core.FormatPNG},
		&pipeline.EncodeStep{Registry: e.deps.Registry},
	).AddHook(e.deps.Hooks...)

	err = pipeline.Parallel(ctx, len(frames), func(ctx context.Context, i int) error {
		data, err := ws.ReadFile(ctx, frames[i])
		if err != nil {
			return err
		}
		img, _, err := p.Run(ctx, &core.ImageData{Data: data})
		if err != nil {
			return err
		}
		_, err = ws.Put(ctx, frames[i], bytes.NewReader(img.Data))
		return err
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryPipeline, "frames", err)
	}

	out, err := ws.Path(outputName)
	if err != nil {
		return err
	}
	return e.deps.FFmpeg.Encode(ctx, "ffmpeg.assemble",
		ffmpeg.AssembleArgs(pattern, in, out, probe.FrameRate, probe.HasAudio))
}

// readFrame decodes one extracted frame.
func (e *Video) readFrame(ctx context.Context, ws *workspace.Dir, name string) (image.Image, error) {
	data, err := ws.ReadFile(ctx, name)
	if err != nil {
		return nil, err
	}
	dec, ok := e.deps.Registry.DecoderFor(core.FormatPNG)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryDecode, "frame",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, core.FormatPNG))
	}
	img, err := dec.Decode(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "frame", err)
	}
	return img.Image, nil
}
