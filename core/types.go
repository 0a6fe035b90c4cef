package core

import (
	"context"
	"image"
	"path"
	"strings"
	"time"
)

// Format identifies a codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatGIF     Format = "gif"
	FormatAPNG    Format = "apng"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatMP4     Format = "mp4"
	FormatUnknown Format = "unknown"
)

// MIME returns the canonical MIME type for f.
func (f Format) MIME() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatGIF:
		return "image/gif"
	case FormatAPNG:
		return "image/apng"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	case FormatMP4:
		return "video/mp4"
	}
	return "application/octet-stream"
}

// ColorSpace represents the image colour model.
type ColorSpace string

const (
	ColorSpaceRGB  ColorSpace = "rgb"
	ColorSpaceRGBA ColorSpace = "rgba"
	ColorSpaceCMYK ColorSpace = "cmyk"
	ColorSpaceGray ColorSpace = "gray"
)

// Metadata holds extracted image information.
type Metadata struct {
	Width      int
	Height     int
	Format     Format
	ColorSpace ColorSpace
	HasAlpha   bool
	SizeBytes  int64
}

// ImageData is the in-memory representation passed through a still-image
// pipeline.  Data holds encoded bytes; Image holds the decoded pixel buffer.
type ImageData struct {
	// Encoded bytes; non-nil when the image has been encoded or is raw input.
	Data   []byte
	Format Format

	// Decoded pixel buffer, populated by the decode step.
	Image image.Image

	// Quality requested for the next lossy encode; 0 = encoder default.
	Quality int

	Meta Metadata

	// Size of the original raw input.
	OriginalSize int64
}

// Attachment is the immutable input of an edit: raw bytes, a display name
// without extension and the declared MIME type.  Construct it with
// NewAttachment; the zero value is empty.
type Attachment struct {
	data     []byte
	filename string
	mime     string
}

// NewAttachment copies data.  filename is expected without extension; any
// directory components are dropped.
func NewAttachment(data []byte, filename, mime string) Attachment {
	buf := make([]byte, len(data))
	copy(buf, data)
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return Attachment{data: buf, filename: base, mime: strings.TrimSpace(mime)}
}

// Bytes returns the attachment payload.  Callers must not modify it.
func (a Attachment) Bytes() []byte { return a.data }

// Filename returns the display name without extension.
func (a Attachment) Filename() string { return a.filename }

// MIME returns the declared MIME type.
func (a Attachment) MIME() string { return a.mime }

// Size returns the payload length in bytes.
func (a Attachment) Size() int { return len(a.data) }

// Result is the sole output of an edit operation.
type Result struct {
	Data     []byte
	Filename string // includes the extension of the encoded format
	MIME     string
}

// Bounds is the crop window found by the content-bounds detector.
type Bounds struct {
	X, Y, Width, Height int
}

// Rect converts b to an image.Rectangle.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// DisposalMode tells whether an animation's frames replace the whole canvas
// or only describe the changed region.
type DisposalMode int

const (
	DisposalFull DisposalMode = iota
	DisposalPartial
)

func (m DisposalMode) String() string {
	if m == DisposalPartial {
		return "partial"
	}
	return "full"
}

// RawFrame is a frame exactly as stored in the source animation: its pixels
// cover only Image.Bounds(), which may be smaller than the canvas.
type RawFrame struct {
	Image    image.Image
	Duration time.Duration
}

// RawSequence is an animation whose frames have not been composed yet.
type RawSequence struct {
	Width, Height int
	Frames        []RawFrame
}

// Frame is a fully composed, self-contained frame.
type Frame struct {
	Image    *image.RGBA
	Duration time.Duration
}

// Sequence is a composed animation ready for per-frame transforms.
type Sequence struct {
	Width, Height int
	Mode          DisposalMode
	Frames        []Frame
}

// Work is a unit of editor work executed on the worker pool.
type Work func(ctx context.Context) (*Result, error)

// Job encapsulates a single asynchronous unit of work for the worker pool.
type Job struct {
	ID   string
	Ctx  context.Context //nolint:containedctx // intentional for async jobs
	Op   string
	Kind EditorKind
	Work Work
	// Result channel; nil for fire-and-forget.
	ResultCh chan<- JobResult
}

// JobResult wraps the outcome of an async job.
type JobResult struct {
	JobID  string
	Result *Result
	Err    error
}

// Step is the fundamental pipeline building block.  Each Step transforms an
// *ImageData value and must be safe for concurrent use across goroutines.
type Step interface {
	Name() string
	Execute(ctx context.Context, img *ImageData) (*ImageData, error)
}

// Hook is an optional observer invoked around pipeline steps.
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, img *ImageData)
	AfterStep(ctx context.Context, stepName string, img *ImageData, d time.Duration, err error)
}
