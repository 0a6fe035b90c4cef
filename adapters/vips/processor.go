// Package vips is an optional still-image codec backend built on libvips.
// Decoding honours EXIF orientation, and encoding supports WebP output,
// which the pure-Go codecs cannot write.
package vips

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
	"github.com/Skryldev/media-editor/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool
	// Logger receives libvips warnings and errors.  Nil discards them.
	Logger core.Logger
}

// Backend is a unified libvips-powered Decoder and Encoder.
// Safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 85
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	if l := cfg.Logger; l != nil {
		govips.LoggingSettings(func(domain string, level govips.LogLevel, msg string) {
			if level <= govips.LogLevelCritical {
				l.Error("vips", "domain", domain, "message", msg)
				return
			}
			l.Warn("vips", "domain", domain, "message", msg)
		}, govips.LogLevelWarning)
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// ─── Decoder ──────────────────────────────────────────────────────────────────

func (b *Backend) CanDecode(f core.Format) bool {
	switch f {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP, core.FormatTIFF:
		return true
	}
	return false
}

// Decode loads the image with libvips, applies the EXIF orientation and hands
// back a plain image.Image so the rest of the pipeline stays codec-agnostic.
func (b *Backend) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}

	buf, err := utils.DrainReader(ctx, r, 32*1024)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.drain", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	ref, err := govips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}
	defer ref.Close()

	format := vipsFormatToCore(ref.Format())
	if err := ref.AutoRotate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.auto_rotate", err)
	}
	colorSpace := vipsInterpretationToColorSpace(ref.Interpretation())
	hasAlpha := ref.HasAlpha()

	img, err := ref.ToImage(govips.NewDefaultPNGExportParams())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.export", err)
	}
	bounds := img.Bounds()

	return &core.ImageData{
		Format: format,
		Image:  img,
		Meta: core.Metadata{
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Format:     format,
			ColorSpace: colorSpace,
			HasAlpha:   hasAlpha,
			SizeBytes:  int64(len(raw)),
		},
		OriginalSize: int64(len(raw)),
	}, nil
}

// ─── Encoder ──────────────────────────────────────────────────────────────────

func (b *Backend) CanEncode(f core.Format) bool {
	switch f {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP:
		return true
	}
	return false
}

func (b *Backend) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode", err)
	}
	if img == nil || img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode", apperrors.ErrEmptyInput)
	}

	ref, err := load(img.Image)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.load", err)
	}
	defer ref.Close()

	quality := opts.Quality
	if quality <= 0 {
		quality = b.cfg.DefaultQuality
	}

	switch img.Format {
	case core.FormatJPEG:
		if ref.HasAlpha() {
			if err := ref.Flatten(&govips.Color{}); err != nil {
				return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.flatten", err)
			}
		}
		ep := govips.NewJpegExportParams()
		ep.Quality = quality
		ep.StripMetadata = true
		out, _, err := ref.ExportJpeg(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.jpeg", err)
		}
		return out, nil

	case core.FormatPNG:
		ep := govips.NewPngExportParams()
		ep.StripMetadata = true
		out, _, err := ref.ExportPng(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.png", err)
		}
		return out, nil

	case core.FormatWebP:
		ep := govips.NewWebpExportParams()
		ep.Quality = quality
		ep.Lossless = opts.Lossless
		ep.StripMetadata = true
		out, _, err := ref.ExportWebp(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.webp", err)
		}
		return out, nil

	default:
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format))
	}
}

// load hands a Go image to libvips through a fast, lossless PNG buffer.
func load(img image.Image) (*govips.ImageRef, error) {
	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(buf, img); err != nil {
		return nil, err
	}
	return govips.NewImageFromReader(bytes.NewReader(buf.Bytes()))
}

// ─── RegisterVipsBackend ──────────────────────────────────────────────────────

// RegisterVipsBackend replaces the pure-Go still codecs with libvips.
func RegisterVipsBackend(reg core.Registry, b *Backend) {
	for _, f := range []core.Format{core.FormatJPEG, core.FormatPNG, core.FormatWebP, core.FormatTIFF} {
		reg.RegisterDecoder(f, b)
	}
	for _, f := range []core.Format{core.FormatJPEG, core.FormatPNG, core.FormatWebP} {
		reg.RegisterEncoder(f, b)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func vipsFormatToCore(f govips.ImageType) core.Format {
	switch f {
	case govips.ImageTypeJPEG:
		return core.FormatJPEG
	case govips.ImageTypePNG:
		return core.FormatPNG
	case govips.ImageTypeWEBP:
		return core.FormatWebP
	case govips.ImageTypeTIFF:
		return core.FormatTIFF
	default:
		return core.FormatUnknown
	}
}

func vipsInterpretationToColorSpace(i govips.Interpretation) core.ColorSpace {
	switch i {
	case govips.InterpretationSRGB, govips.InterpretationRGB16:
		return core.ColorSpaceRGB
	case govips.InterpretationBW:
		return core.ColorSpaceGray
	case govips.InterpretationCMYK:
		return core.ColorSpaceCMYK
	default:
		return core.ColorSpaceRGB
	}
}

// compile-time interface checks
var _ core.Decoder = (*Backend)(nil)
var _ core.Encoder = (*Backend)(nil)
