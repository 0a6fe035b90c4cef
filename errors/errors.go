package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
// The first five mirror the failure kinds a caller is expected to translate
// into user-facing messages.
type Category string

const (
	CategoryUnsupportedMediaKind  Category = "unsupported_media_kind"
	CategoryDecode                Category = "decode"
	CategoryContentBoundsNotFound Category = "content_bounds_not_found"
	CategoryEncode                Category = "encode"
	CategoryFontAssetMissing      Category = "font_asset_missing"

	CategoryInput    Category = "input"
	CategoryPipeline Category = "pipeline"
	CategoryConfig   Category = "config"
	CategoryStorage  Category = "storage"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.  An error that already carries a
// category keeps it; only the operation name is layered on top.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return New(pe.Category, op, err)
	}
	return New(category, op, err)
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	return CategoryOf(err) == cat
}

// CategoryOf returns the category of the outermost ProcessingError in err's
// chain, or the empty Category when there is none.
func CategoryOf(err error) Category {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedMediaKind  = errors.New("unsupported media kind")
	ErrUnsupportedFormat     = errors.New("unsupported image format")
	ErrContentBoundsNotFound = errors.New("no content region found")
	ErrFontAssetMissing      = errors.New("caption font unavailable")
	ErrInvalidDimensions     = errors.New("invalid dimensions")
	ErrInvalidSpeed          = errors.New("speed multiplier must be positive")
	ErrEmptyInput            = errors.New("empty input")
	ErrNoFrames              = errors.New("animation has no frames")
	ErrWorkerPoolFull        = errors.New("worker pool queue full")
)
