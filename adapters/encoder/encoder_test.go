package encoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
)

func frame(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		r, g, b, a := c.RGBA()
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8)
	}
	return img
}

func TestGIF_EncodeSequence(t *testing.T) {
	seq := &core.Sequence{Width: 12, Height: 8}
	for i := 0; i < 10; i++ {
		seq.Frames = append(seq.Frames, core.Frame{
			Image:    frame(12, 8, color.RGBA{R: uint8(i * 20), G: 80, B: 160, A: 255}),
			Duration: 50 * time.Millisecond,
		})
	}

	data, err := NewGIF().EncodeSequence(context.Background(), seq)
	require.NoError(t, err)

	anim, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, anim.Image, 10)
	assert.Equal(t, 0, anim.LoopCount)
	assert.Equal(t, 12, anim.Config.Width)
	for _, d := range anim.Delay {
		assert.Equal(t, 5, d)
	}
}

func TestGIFPalette_KeepsBlackAndWhite(t *testing.T) {
	require.Len(t, gifPalette, 256)
	for _, c := range []color.RGBA{
		{A: 0xff},
		{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		{},
	} {
		got := color.RGBAModel.Convert(gifPalette[gifPalette.Index(c)]).(color.RGBA)
		assert.Equal(t, c, got)
	}
}

func TestGIF_WhiteStaysWhite(t *testing.T) {
	seq := &core.Sequence{Width: 6, Height: 6, Frames: []core.Frame{
		{Image: frame(6, 6, color.White), Duration: 100 * time.Millisecond},
	}}
	data, err := NewGIF().EncodeSequence(context.Background(), seq)
	require.NoError(t, err)

	anim, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	r, g, b, a := anim.Image[0].At(3, 3).RGBA()
	assert.Equal(t, [4]uint32{0xffff, 0xffff, 0xffff, 0xffff}, [4]uint32{r, g, b, a})
}

func TestGIF_TransparencySurvives(t *testing.T) {
	seq := &core.Sequence{Width: 4, Height: 4, Frames: []core.Frame{
		{Image: image.NewRGBA(image.Rect(0, 0, 4, 4)), Duration: 100 * time.Millisecond},
	}}
	data, err := NewGIF().EncodeSequence(context.Background(), seq)
	require.NoError(t, err)

	anim, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	_, _, _, a := anim.Image[0].At(1, 1).RGBA()
	assert.Zero(t, a)
}

func TestGIF_Empty(t *testing.T) {
	_, err := NewGIF().EncodeSequence(context.Background(), &core.Sequence{})
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryEncode))
}

func TestDelayOf(t *testing.T) {
	assert.Equal(t, 5, delayOf(50*time.Millisecond))
	assert.Equal(t, 3, delayOf(33*time.Millisecond))
	assert.Equal(t, 2, delayOf(20*time.Millisecond))
	assert.Equal(t, 1, delayOf(0))
	assert.Equal(t, maxDelay, delayOf(time.Hour))
}

func TestStillEncoders(t *testing.T) {
	img := &core.ImageData{Image: frame(30, 20, color.RGBA{G: 255, A: 255})}

	pngData, err := NewPNG().Encode(context.Background(), img, core.EncodeOptions{})
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(pngData))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Width)

	jpgData, err := NewJPEG(0).Encode(context.Background(), img, core.EncodeOptions{Quality: 500})
	require.NoError(t, err)
	_, err = jpeg.DecodeConfig(bytes.NewReader(jpgData))
	require.NoError(t, err)

	_, err = NewPNG().Encode(context.Background(), &core.ImageData{}, core.EncodeOptions{})
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryEncode))
}
