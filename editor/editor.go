// Package editor holds the format dispatcher and the editors for each media
// kind.  Every operation decodes the attachment afresh, runs on the worker
// pool behind Deps.Runner and returns one complete Result.
package editor

import (
	"context"
	"fmt"
	"image"

	"github.com/Skryldev/media-editor/adapters/ffmpeg"
	"github.com/Skryldev/media-editor/caption"
	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
	"github.com/Skryldev/media-editor/utils"
)

// Deps are the shared collaborators of all editors.  They are read-only once
// built and may be shared by concurrent edits.
type Deps struct {
	Registry core.Registry
	Runner   core.Runner
	Captions *caption.Renderer
	FFmpeg   *ffmpeg.Runner
	Hooks    []core.Hook
	Logger   core.Logger
	// TempDir is the parent of per-edit video workspaces; empty = os.TempDir().
	TempDir string
}

func (d *Deps) log() core.Logger {
	if d.Logger == nil {
		return nopLogger{}
	}
	return d.Logger
}

// Select returns the editor for the attachment's media kind.  Animated and
// video editors also implement core.TimedEditor.
func Select(att core.Attachment, deps *Deps) (core.Editor, error) {
	kind, err := core.Classify(att.MIME())
	if err != nil {
		return nil, err
	}
	switch kind {
	case core.KindStaticImage:
		return &Image{att: att, deps: deps}, nil
	case core.KindAnimatedImage:
		return &Animated{att: att, deps: deps}, nil
	case core.KindVideo:
		return &Video{att: att, deps: deps}, nil
	}
	return nil, apperrors.New(apperrors.CategoryUnsupportedMediaKind, "select",
		fmt.Errorf("%w: %s", apperrors.ErrUnsupportedMediaKind, kind))
}

// result packages encoded bytes under the attachment's name.
func result(att core.Attachment, data []byte, format core.Format) *core.Result {
	mt := format.MIME()
	return &core.Result{
		Data:     data,
		Filename: att.Filename() + utils.ExtensionFor(mt),
		MIME:     mt,
	}
}

// header renders a caption for a frame of the given width.
func (d *Deps) header(ctx context.Context, text string, width int) (image.Image, error) {
	if d.Captions == nil {
		return nil, apperrors.New(apperrors.CategoryFontAssetMissing, "caption", apperrors.ErrFontAssetMissing)
	}
	return d.Captions.Render(ctx, text, width)
}

func validateSize(op string, width, height int) error {
	if width < 0 || height < 0 || (width == 0 && height == 0) {
		return apperrors.New(apperrors.CategoryInput, op,
			fmt.Errorf("%w: %dx%d", apperrors.ErrInvalidDimensions, width, height))
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
