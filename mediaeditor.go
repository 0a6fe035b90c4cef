// Package mediaeditor is the entry point of the meme media editor: it wires
// codecs, the caption renderer, the external video encoder and the worker
// pool, and hands out one editor per attachment.
package mediaeditor

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/gabriel-vasile/mimetype"

	"github.com/Skryldev/media-editor/adapters/decoder"
	"github.com/Skryldev/media-editor/adapters/encoder"
	"github.com/Skryldev/media-editor/adapters/ffmpeg"
	"github.com/Skryldev/media-editor/caption"
	"github.com/Skryldev/media-editor/config"
	"github.com/Skryldev/media-editor/core"
	"github.com/Skryldev/media-editor/editor"
	apperrors "github.com/Skryldev/media-editor/errors"
	"github.com/Skryldev/media-editor/hooks"
	"github.com/Skryldev/media-editor/utils"
)

// Re-export the editor kinds for convenience.
const (
	StaticImage   = core.KindStaticImage
	AnimatedImage = core.KindAnimatedImage
	Video         = core.KindVideo
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Service is the primary entry point.  It is safe for concurrent use once
// hooks and loggers are attached.
type Service struct {
	cfg      config.Config
	proc     *core.Processor
	reg      *core.DefaultRegistry
	captions *caption.Renderer
	ffmpeg   *ffmpeg.Runner

	mu     sync.RWMutex
	logger core.Logger
	hooks  []core.Hook
}

// New validates cfg and returns a fully wired Service with the pure-Go
// codecs registered.  To use libvips, pass Registry() to
// vips.RegisterVipsBackend before the first edit.
func New(cfg config.Config) (*Service, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "config", err)
	}
	logger := hooks.NewSlogLogger(cfg.NewLogger())

	s := &Service{
		cfg:    cfg,
		proc:   core.NewProcessor(cfg),
		reg:    core.NewRegistry(),
		logger: logger,
	}
	s.proc.SetLogger(logger)
	s.registerCodecs()

	var resolver caption.EmojiResolver
	if cfg.EmojiCDN {
		resolver = caption.NewCDNResolver(cfg.EmojiTimeout)
	}
	captions, err := caption.New(caption.Options{
		FontPath: cfg.FontPath,
		Resolver: resolver,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	s.captions = captions
	s.ffmpeg = ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, logger)
	return s, nil
}

func (s *Service) registerCodecs() {
	reg := s.reg
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterDecoder(core.FormatWebP, decoder.NewWebP())
	reg.RegisterDecoder(core.FormatBMP, decoder.NewBMP())
	reg.RegisterDecoder(core.FormatTIFF, decoder.NewTIFF())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(s.cfg.DefaultQuality))
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())

	reg.RegisterSequenceDecoder(core.FormatGIF, decoder.NewGIF())
	reg.RegisterSequenceDecoder(core.FormatAPNG, decoder.NewAPNG())
	reg.RegisterSequenceEncoder(core.FormatGIF, encoder.NewGIF())
}

// SetLogger attaches a structured logger to the service and its worker pool.
func (s *Service) SetLogger(l core.Logger) {
	s.mu.Lock()
	s.logger = l
	s.mu.Unlock()
	s.proc.SetLogger(l)
}

// SetMetrics attaches a metrics collector to the worker pool.
func (s *Service) SetMetrics(m core.MetricsCollector) { s.proc.SetMetrics(m) }

// AddHook registers an observer for still-image pipeline steps.
func (s *Service) AddHook(h core.Hook) {
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()
}

// RegisterDecoder registers a custom still-image decoder.
func (s *Service) RegisterDecoder(f core.Format, d core.Decoder) { s.reg.RegisterDecoder(f, d) }

// RegisterEncoder registers a custom still-image encoder.
func (s *Service) RegisterEncoder(f core.Format, e core.Encoder) { s.reg.RegisterEncoder(f, e) }

// Start starts the background worker pool.
func (s *Service) Start() { s.proc.Start() }

// Stop drains and shuts down the worker pool.
func (s *Service) Stop() { s.proc.Stop() }

// Edit returns the editor for att's media kind.  Editors for GIF, APNG and
// video also implement core.TimedEditor.
func (s *Service) Edit(att core.Attachment) (core.Editor, error) {
	return editor.Select(att, s.deps())
}

// Submit enqueues an async job on the worker pool.
func (s *Service) Submit(job core.Job) error { return s.proc.Submit(job) }

// Stats returns lightweight processing statistics.
func (s *Service) Stats() (processed, errors int64) {
	return s.proc.ProcessedCount(), s.proc.ErrorCount()
}

// Captions returns the caption renderer, e.g. to measure header heights.
func (s *Service) Captions() *caption.Renderer { return s.captions }

func (s *Service) deps() *editor.Deps {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hks := make([]core.Hook, len(s.hooks))
	copy(hks, s.hooks)
	return &editor.Deps{
		Registry: s.reg,
		Runner:   s.proc,
		Captions: s.captions,
		FFmpeg:   s.ffmpeg,
		Hooks:    hks,
		Logger:   s.logger,
		TempDir:  s.cfg.TempDir,
	}
}

// ── Attachment constructors ───────────────────────────────────────────────────

// FromDiscordAttachment builds an Attachment from a chat attachment and its
// downloaded bytes.  The extension is dropped from the file name and the
// content type is sniffed when the platform did not report one.
func FromDiscordAttachment(a *discordgo.MessageAttachment, data []byte) core.Attachment {
	mt := a.ContentType
	if mt == "" {
		mt = mimetype.Detect(data).String()
	}
	return core.NewAttachment(data, utils.StripExtension(a.Filename), mt)
}

// FromReader reads an attachment from r, enforcing cfg.MaxImageBytes.  An
// empty mime is filled in by content sniffing.
func (s *Service) FromReader(ctx context.Context, r io.Reader, filename, mime string) (core.Attachment, error) {
	lr := &utils.LimitedReader{R: r, Max: s.cfg.MaxImageBytes}
	buf, err := utils.DrainReader(ctx, lr, s.cfg.ChunkSize)
	if err != nil {
		if errors.Is(err, utils.ErrInputTooLarge) {
			return core.Attachment{}, apperrors.New(apperrors.CategoryInput, "read", err)
		}
		return core.Attachment{}, apperrors.Wrap(apperrors.CategoryInput, "read", err)
	}
	defer utils.ReleaseBuffer(buf)

	data := buf.Bytes()
	if mime == "" {
		mime = mimetype.Detect(data).String()
	}
	return core.NewAttachment(data, utils.StripExtension(filename), mime), nil
}
