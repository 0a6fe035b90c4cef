package core

import (
	"context"
	"io"
)

// Editor is the operation set every media kind supports.  Each call decodes
// the attachment afresh; no decoded state survives between calls.
type Editor interface {
	Kind() EditorKind
	Resize(ctx context.Context, width, height int) (*Result, error)
	Caption(ctx context.Context, text string) (*Result, error)
	Uncaption(ctx context.Context) (*Result, error)
}

// TimedEditor is implemented by editors of media with a time axis.
type TimedEditor interface {
	Editor
	Speed(ctx context.Context, multiplier float64) (*Result, error)
	Reverse(ctx context.Context) (*Result, error)
}

// Runner executes editor work off the caller's goroutine.
type Runner interface {
	Run(ctx context.Context, op string, kind EditorKind, work Work) (*Result, error)
}

// Decoder converts raw bytes / a reader into an in-memory ImageData.
// Implementations live in adapters/decoder/.
type Decoder interface {
	// Decode reads from r and returns a decoded ImageData.
	Decode(ctx context.Context, r io.Reader) (*ImageData, error)
	// CanDecode reports whether this decoder handles the given format hint.
	CanDecode(format Format) bool
}

// Encoder serialises an ImageData to bytes in a target format.
// Implementations live in adapters/encoder/.
type Encoder interface {
	Encode(ctx context.Context, img *ImageData, opts EncodeOptions) ([]byte, error)
	CanEncode(format Format) bool
}

// SequenceDecoder reads every frame of an animation without composing them.
type SequenceDecoder interface {
	DecodeSequence(ctx context.Context, r io.Reader) (*RawSequence, error)
}

// SequenceEncoder serialises composed frames as a looping animation.
type SequenceEncoder interface {
	EncodeSequence(ctx context.Context, seq *Sequence) ([]byte, error)
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality  int  // 1-100; 0 = use encoder default
	Lossless bool // WebP / PNG lossless mode
}

// MetricsCollector receives performance observations.
type MetricsCollector interface {
	RecordProcessingTime(name string, d interface{ Seconds() float64 })
	RecordThroughput(bytes int64)
	RecordError(name string, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Registry maps Format values to codec implementations.
type Registry interface {
	DecoderFor(format Format) (Decoder, bool)
	EncoderFor(format Format) (Encoder, bool)
	SequenceDecoderFor(format Format) (SequenceDecoder, bool)
	SequenceEncoderFor(format Format) (SequenceEncoder, bool)
	RegisterDecoder(format Format, d Decoder)
	RegisterEncoder(format Format, e Encoder)
	RegisterSequenceDecoder(format Format, d SequenceDecoder)
	RegisterSequenceEncoder(format Format, e SequenceEncoder)
}
