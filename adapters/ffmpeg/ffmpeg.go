// Package ffmpeg drives the ffmpeg and ffprobe binaries for video edits.
// Argument lists are built by pure functions so they can be tested without
// the binaries; Runner executes them with the subprocess bound to the
// caller's context.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
)

// waitDelay bounds how long Wait blocks on pipes after the process is killed.
const waitDelay = 5 * time.Second

// FFmpegError represents a failed ffmpeg or ffprobe run, including stderr.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Runner executes ffmpeg and ffprobe.  The zero value is not usable; build
// one with New.
type Runner struct {
	ffmpegPath  string
	ffprobePath string
	logger      core.Logger
}

// New returns a Runner.  Empty paths fall back to the binaries on PATH.
func New(ffmpegPath, ffprobePath string, logger core.Logger) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Runner{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

// run executes bin with args.  The process is killed when ctx is done.
func (r *Runner) run(ctx context.Context, bin string, args []string) ([]byte, error) {
	if r.logger != nil {
		r.logger.Debug("ffmpeg.exec", "bin", bin, "args", strings.Join(args, " "))
	}

	// #nosec G204 - binary paths come from configuration, not user input
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s cancelled: %w", bin, ctx.Err())
		}
		return nil, &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

// Encode runs an encoding command; failures are encode errors.
func (r *Runner) Encode(ctx context.Context, op string, args []string) error {
	if _, err := r.run(ctx, r.ffmpegPath, args); err != nil {
		return wrap(ctx, apperrors.CategoryEncode, op, err)
	}
	return nil
}

// Extract runs a frame-extraction command; failures are decode errors.
func (r *Runner) Extract(ctx context.Context, in, pattern string) error {
	if _, err := r.run(ctx, r.ffmpegPath, ExtractArgs(in, pattern)); err != nil {
		return wrap(ctx, apperrors.CategoryDecode, "ffmpeg.extract", err)
	}
	return nil
}

// Probe reads stream geometry, frame rate and audio presence of path.
func (r *Runner) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	out, err := r.run(ctx, r.ffprobePath, []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	})
	if err != nil {
		return nil, wrap(ctx, apperrors.CategoryDecode, "ffprobe", err)
	}
	pr, err := ParseJSON(out)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "ffprobe", err)
	}
	return pr, nil
}

func wrap(ctx context.Context, cat apperrors.Category, op string, err error) error {
	if ctx.Err() != nil {
		cat = apperrors.CategoryPipeline
	}
	return apperrors.Wrap(cat, op, err)
}
