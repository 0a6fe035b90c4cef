package editor

import (
	"context"
	"image"
	"image/color"

	"github.com/Skryldev/media-editor/bounds"
	"github.com/Skryldev/media-editor/core"
	"github.com/Skryldev/media-editor/pipeline"
	"github.com/Skryldev/media-editor/utils"
)

// Degradation settings of the jpeg operation.
const (
	jpegScale   = 0.8
	jpegQuality = 10
)

// Image edits single-frame raster images.  Results are PNG, except JPEG
// which produces a JPEG.
type Image struct {
	att  core.Attachment
	deps *Deps
}

func (e *Image) Kind() core.EditorKind { return core.KindStaticImage }

// Resize scales to exactly width×height.  A zero axis keeps the aspect ratio.
func (e *Image) Resize(ctx context.Context, width, height int) (*core.Result, error) {
	if err := validateSize("resize", width, height); err != nil {
		return nil, err
	}
	return e.run(ctx, "resize", core.FormatPNG,
		&pipeline.ResizeStep{Width: width, Height: height})
}

// Caption stacks a caption header above the image.
func (e *Image) Caption(ctx context.Context, text string) (*core.Result, error) {
	return e.run(ctx, "caption", core.FormatPNG,
		&pipeline.StackStep{Header: func(ctx context.Context, width int) (image.Image, error) {
			return e.deps.header(ctx, text, width)
		}})
}

// Uncaption crops away a caption header found by content detection.
func (e *Image) Uncaption(ctx context.Context) (*core.Result, error) {
	return e.run(ctx, "uncaption", core.FormatPNG,
		&pipeline.CropStep{Detect: bounds.Detect})
}

// JPEG degrades the image: 80% scale, transparency flattened onto black and
// a very low JPEG quality.
func (e *Image) JPEG(ctx context.Context) (*core.Result, error) {
	return e.run(ctx, "jpeg", core.FormatJPEG,
		&pipeline.ResizeStep{Scale: jpegScale},
		&pipeline.FlattenStep{Background: color.Black},
		&pipeline.QualityStep{Quality: jpegQuality})
}

func (e *Image) run(ctx context.Context, op string, out core.Format, steps ...core.Step) (*core.Result, error) {
	declared := core.Format(utils.FormatForMIME(e.att.MIME()))
	return e.deps.Runner.Run(ctx, op, e.Kind(), func(ctx context.Context) (*core.Result, error) {
		p := pipeline.New().
			Use(&pipeline.DecodeStep{Registry: e.deps.Registry, Declared: declared}).
			Use(steps...).
			Use(&pipeline.FormatStep{Format: out},
				&pipeline.EncodeStep{Registry: e.deps.Registry}).
			AddHook(e.deps.Hooks...)

		img, _, err := p.Run(ctx, &core.ImageData{Data: e.att.Bytes()})
		if err != nil {
			return nil, err
		}
		return result(e.att, img.Data, out), nil
	})
}
