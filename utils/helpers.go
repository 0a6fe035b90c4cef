package utils

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	formatJPEG    = "jpeg"
	formatPNG     = "png"
	formatAPNG    = "apng"
	formatWebP    = "webp"
	formatGIF     = "gif"
	formatBMP     = "bmp"
	formatTIFF    = "tiff"
	formatMP4     = "mp4"
	formatUnknown = "unknown"
)

// DetectFormat sniffs the magic bytes of data and returns the codec name.
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return formatUnknown
	}
	return FormatForMIME(mimetype.Detect(data).String())
}

// FormatForMIME maps a MIME type to a codec name.
func FormatForMIME(mt string) string {
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	switch strings.ToLower(mt) {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return formatJPEG
	case "image/png":
		return formatPNG
	case "image/apng", "image/vnd.mozilla.apng":
		return formatAPNG
	case "image/webp":
		return formatWebP
	case "image/gif":
		return formatGIF
	case "image/bmp", "image/x-ms-bmp":
		return formatBMP
	case "image/tiff":
		return formatTIFF
	case "video/mp4":
		return formatMP4
	}
	return formatUnknown
}

// ExtensionFor returns the file extension (with the leading dot) for a MIME
// type, or ".bin" when it is unknown.
func ExtensionFor(mt string) string {
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if mt == "image/apng" {
		return ".png"
	}
	if m := mimetype.Lookup(mt); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// StripExtension drops the final extension of a file name.
func StripExtension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

// ScaleDimensions computes output (w, h) preserving aspect ratio.
// Pass 0 for either axis to calculate it from the other.
func ScaleDimensions(srcW, srcH, targetW, targetH int) (int, int) {
	if targetW == 0 && targetH == 0 {
		return srcW, srcH
	}
	if targetW == 0 {
		ratio := float64(targetH) / float64(srcH)
		return int(float64(srcW) * ratio), targetH
	}
	if targetH == 0 {
		ratio := float64(targetW) / float64(srcW)
		return targetW, int(float64(srcH) * ratio)
	}
	return targetW, targetH
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
