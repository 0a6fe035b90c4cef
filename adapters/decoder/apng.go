package decoder

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/draw"
	"image/png"
	"io"
	"time"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

var errBadAPNG = errors.New("malformed apng")

// APNG splits an animated PNG into frames.  Each frame's fcTL/fdAT data is
// re-packed as a standalone PNG and decoded with image/png.  A PNG without an
// acTL chunk yields a single frame.
type APNG struct{}

func NewAPNG() *APNG { return &APNG{} }

type pngChunk struct {
	typ  string
	data []byte
}

type apngFrame struct {
	width, height uint32
	x, y          uint32
	delay         time.Duration
	data          [][]byte // IDAT payloads
}

func (a *APNG) DecodeSequence(ctx context.Context, r io.Reader) (*core.RawSequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "apng.decode", err)
	}

	chunks, err := readChunks(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "apng.decode", err)
	}

	var (
		ihdr     []byte
		shared   []pngChunk // ancillary chunks copied into every frame
		frames   []*apngFrame
		current  *apngFrame
		animated bool
	)
	for _, c := range chunks {
		switch c.typ {
		case "IHDR":
			if len(c.data) != 13 {
				return nil, apperrors.Wrap(apperrors.CategoryDecode, "apng.decode", errBadAPNG)
			}
			ihdr = c.data
		case "acTL":
			animated = true
		case "fcTL":
			if len(c.data) != 26 {
				return nil, apperrors.Wrap(apperrors.CategoryDecode, "apng.decode", errBadAPNG)
			}
			current = parseFrameControl(c.data)
			frames = append(frames, current)
		case "IDAT":
			if !animated {
				if current == nil {
					current = &apngFrame{}
					frames = append(frames, current)
				}
				current.data = append(current.data, c.data)
				continue
			}
			// An IDAT before any fcTL is a default image outside the animation.
			if current != nil {
				current.data = append(current.data, c.data)
			}
		case "fdAT":
			if current == nil || len(c.data) < 4 {
				return nil, apperrors.Wrap(apperrors.CategoryDecode, "apng.decode", errBadAPNG)
			}
			current.data = append(current.data, c.data[4:])
		case "IEND":
		default:
			if len(frames) == 0 {
				shared = append(shared, c)
			}
		}
	}
	if ihdr == nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "apng.decode", errBadAPNG)
	}

	width := binary.BigEndian.Uint32(ihdr[0:4])
	height := binary.BigEndian.Uint32(ihdr[4:8])
	seq := &core.RawSequence{Width: int(width), Height: int(height)}

	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryDecode, "apng.decode", err)
		}
		if len(f.data) == 0 {
			continue
		}
		if f.width == 0 {
			f.width, f.height = width, height
		}
		img, err := png.Decode(bytes.NewReader(assembleFrame(ihdr, shared, f)))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryDecode, fmt.Sprintf("apng.frame[%d]", i), err)
		}
		delay := f.delay
		if delay <= 0 {
			delay = DefaultFrameDelay
		}
		seq.Frames = append(seq.Frames, core.RawFrame{Image: place(img, int(f.x), int(f.y)), Duration: delay})
	}
	if len(seq.Frames) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "apng.decode", apperrors.ErrNoFrames)
	}
	return seq, nil
}

func readChunks(r io.Reader) ([]pngChunk, error) {
	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, err
	}
	if !bytes.Equal(sig, pngSignature) {
		return nil, errBadAPNG
	}

	var chunks []pngChunk
	var header [8]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, fmt.Errorf("chunk header: %w", err)
		}
		length := binary.BigEndian.Uint32(header[0:4])
		if length > 1<<30 {
			return nil, errBadAPNG
		}
		typ := string(header[4:8])
		body := make([]byte, int(length)+4) // data + crc
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", typ, err)
		}
		crc := crc32.NewIEEE()
		crc.Write(header[4:8])
		crc.Write(body[:length])
		if crc.Sum32() != binary.BigEndian.Uint32(body[length:]) {
			return nil, fmt.Errorf("chunk %s: crc mismatch", typ)
		}
		chunks = append(chunks, pngChunk{typ: typ, data: body[:length]})
		if typ == "IEND" {
			return chunks, nil
		}
	}
}

func parseFrameControl(b []byte) *apngFrame {
	num := binary.BigEndian.Uint16(b[20:22])
	den := binary.BigEndian.Uint16(b[22:24])
	if den == 0 {
		den = 100
	}
	return &apngFrame{
		width:  binary.BigEndian.Uint32(b[4:8]),
		height: binary.BigEndian.Uint32(b[8:12]),
		x:      binary.BigEndian.Uint32(b[12:16]),
		y:      binary.BigEndian.Uint32(b[16:20]),
		delay:  time.Duration(num) * time.Second / time.Duration(den),
	}
}

// assembleFrame builds a standalone PNG for one frame.
func assembleFrame(ihdr []byte, shared []pngChunk, f *apngFrame) []byte {
	var buf bytes.Buffer
	buf.Write(pngSignature)

	hdr := make([]byte, len(ihdr))
	copy(hdr, ihdr)
	binary.BigEndian.PutUint32(hdr[0:4], f.width)
	binary.BigEndian.PutUint32(hdr[4:8], f.height)
	writeChunk(&buf, "IHDR", hdr)

	for _, c := range shared {
		writeChunk(&buf, c.typ, c.data)
	}
	for _, d := range f.data {
		writeChunk(&buf, "IDAT", d)
	}
	writeChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

func writeChunk(w *bytes.Buffer, typ string, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	w.Write(n[:])
	w.WriteString(typ)
	w.Write(data)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	binary.BigEndian.PutUint32(n[:], crc.Sum32())
	w.Write(n[:])
}

// place moves img so its top-left corner sits at (x, y) on the canvas.
func place(img image.Image, x, y int) image.Image {
	if x == 0 && y == 0 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(x, y, x+b.Dx(), y+b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
