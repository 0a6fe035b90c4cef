// Package config provides the editor configuration, loaded from environment
// variables or built from Default().
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Backend selects the still-image codec implementation.
type Backend string

const (
	BackendStdlib Backend = "stdlib"
	BackendVips   Backend = "vips"
)

// Config is the top-level configuration struct.  All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	// Worker pool controls.
	WorkerCount int           `env:"MEDIA_WORKERS, default=0" validate:"gte=0"` // 0 = runtime.NumCPU()
	QueueSize   int           `env:"MEDIA_QUEUE_SIZE, default=256" validate:"gte=1"`
	JobTimeout  time.Duration `env:"MEDIA_JOB_TIMEOUT, default=2m" validate:"gte=0"`

	// JPEG quality used when an encode step does not override it.
	DefaultQuality int `env:"MEDIA_JPEG_QUALITY, default=85" validate:"min=1,max=100"`

	// Streaming / memory limits.
	MaxImageBytes int64 `env:"MEDIA_MAX_BYTES, default=0" validate:"gte=0"` // 0 = no limit
	ChunkSize     int   `env:"MEDIA_CHUNK_SIZE, default=32768" validate:"gt=0"`

	Backend Backend `env:"MEDIA_BACKEND, default=stdlib" validate:"oneof=stdlib vips"`

	// Caption font.  Empty selects the embedded Go Bold face.
	FontPath string `env:"MEDIA_FONT_PATH"`

	// External encoder.
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" validate:"required"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" validate:"required"`
	TempDir     string `env:"MEDIA_TEMP_DIR"` // empty = os.TempDir()

	// Custom emoji rendering.
	EmojiCDN     bool          `env:"MEDIA_EMOJI_CDN, default=false"`
	EmojiTimeout time.Duration `env:"MEDIA_EMOJI_TIMEOUT, default=5s" validate:"gte=0"`

	// Logging.
	LogLevel  string `env:"LOG_LEVEL, default=info" validate:"oneof=debug info warn warning error"`
	LogFormat string `env:"LOG_FORMAT, default=text" validate:"oneof=text json"`
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		WorkerCount:    0, // resolved at runtime to NumCPU
		QueueSize:      256,
		JobTimeout:     2 * time.Minute,
		DefaultQuality: 85,
		ChunkSize:      32 * 1024,
		Backend:        BackendStdlib,
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		EmojiTimeout:   5 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads configuration from environment variables using go-envconfig and
// validates the result.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.TempDir != "" {
		info, err := os.Stat(c.TempDir)
		if err != nil {
			return fmt.Errorf("config: TempDir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("config: TempDir %s is not a directory", c.TempDir)
		}
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
