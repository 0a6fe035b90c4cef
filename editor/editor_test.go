package editor_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/media-editor/adapters/decoder"
	"github.com/Skryldev/media-editor/adapters/encoder"
	"github.com/Skryldev/media-editor/adapters/ffmpeg"
	"github.com/Skryldev/media-editor/caption"
	"github.com/Skryldev/media-editor/config"
	"github.com/Skryldev/media-editor/core"
	"github.com/Skryldev/media-editor/editor"
	apperrors "github.com/Skryldev/media-editor/errors"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

func newDeps(t *testing.T) *editor.Deps {
	t.Helper()
	reg := core.NewRegistry()
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(85))
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())
	reg.RegisterSequenceDecoder(core.FormatGIF, decoder.NewGIF())
	reg.RegisterSequenceDecoder(core.FormatAPNG, decoder.NewAPNG())
	reg.RegisterSequenceEncoder(core.FormatGIF, encoder.NewGIF())

	cfg := config.Default()
	cfg.WorkerCount = 2
	proc := core.NewProcessor(cfg)
	proc.Start()
	t.Cleanup(proc.Stop)

	captions, err := caption.New(caption.Options{})
	require.NoError(t, err)

	return &editor.Deps{
		Registry: reg,
		Runner:   proc,
		Captions: captions,
		FFmpeg:   ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, nil),
		TempDir:  t.TempDir(),
	}
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// gifBytes encodes full-canvas frames of the given colours, each lasting
// delay centiseconds.
func gifBytes(t *testing.T, w, h, delay int, colors ...color.Color) []byte {
	t.Helper()
	pal := color.Palette{color.Black, color.White, color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255}, color.RGBA{0, 255, 0, 255}}
	g := &gif.GIF{}
	for _, c := range colors {
		frame := image.NewPaletted(image.Rect(0, 0, w, h), pal)
		idx := uint8(pal.Index(c))
		for i := range frame.Pix {
			frame.Pix[i] = idx
		}
		g.Image = append(g.Image, frame)
		g.Delay = append(g.Delay, delay)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func decodeGIF(t *testing.T, data []byte) *gif.GIF {
	t.Helper()
	g, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	return g
}

func decodeImage(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func selectEditor(t *testing.T, deps *editor.Deps, data []byte, mime string) core.Editor {
	t.Helper()
	ed, err := editor.Select(core.NewAttachment(data, "meme", mime), deps)
	require.NoError(t, err)
	return ed
}

func timed(t *testing.T, ed core.Editor) core.TimedEditor {
	t.Helper()
	te, ok := ed.(core.TimedEditor)
	require.True(t, ok, "%T has no time axis", ed)
	return te
}

func isReddish(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r > 0x8000 && g < 0x4000 && b < 0x4000
}

func isBluish(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return b > 0x8000 && r < 0x4000 && g < 0x4000
}

// ── Dispatch ──────────────────────────────────────────────────────────────────

func TestSelect(t *testing.T) {
	deps := newDeps(t)
	tests := []struct {
		mime  string
		kind  core.EditorKind
		timed bool
	}{
		{"image/png", core.KindStaticImage, false},
		{"image/jpeg", core.KindStaticImage, false},
		{"image/gif", core.KindAnimatedImage, true},
		{"image/apng", core.KindAnimatedImage, true},
		{"video/mp4", core.KindVideo, true},
	}
	for _, tc := range tests {
		t.Run(tc.mime, func(t *testing.T) {
			ed, err := editor.Select(core.NewAttachment([]byte{1}, "x", tc.mime), deps)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, ed.Kind())
			_, ok := ed.(core.TimedEditor)
			assert.Equal(t, tc.timed, ok)
		})
	}

	_, err := editor.Select(core.NewAttachment([]byte{1}, "x", "audio/mpeg"), deps)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryUnsupportedMediaKind))
}

// ── Static images ─────────────────────────────────────────────────────────────

func TestImage_ResizeJPEGToPNG(t *testing.T) {
	deps := newDeps(t)
	ed := selectEditor(t, deps, jpegBytes(t, solid(1200, 800, color.RGBA{200, 100, 50, 255})), "image/jpeg")

	res, err := ed.Resize(context.Background(), 600, 400)
	require.NoError(t, err)
	assert.Equal(t, "meme.png", res.Filename)
	assert.Equal(t, "image/png", res.MIME)

	cfg, err := png.DecodeConfig(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Width)
	assert.Equal(t, 400, cfg.Height)
}

func TestImage_ResizeNonUniform(t *testing.T) {
	deps := newDeps(t)
	ed := selectEditor(t, deps, pngBytes(t, solid(100, 100, color.White)), "image/png")

	res, err := ed.Resize(context.Background(), 40, 10)
	require.NoError(t, err)
	b := decodeImage(t, res.Data).Bounds()
	assert.Equal(t, 40, b.Dx())
	assert.Equal(t, 10, b.Dy())

	_, err = ed.Resize(context.Background(), -1, 10)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))
}

func TestImage_CaptionStacksHeader(t *testing.T) {
	deps := newDeps(t)
	ed := selectEditor(t, deps, pngBytes(t, solid(300, 200, color.RGBA{128, 128, 128, 255})), "image/png")

	const text = "when the build passes on the first try"
	res, err := ed.Caption(context.Background(), text)
	require.NoError(t, err)

	header, err := deps.Captions.Height(text, 300)
	require.NoError(t, err)
	out := decodeImage(t, res.Data)
	assert.Equal(t, 300, out.Bounds().Dx())
	assert.Equal(t, 200+header, out.Bounds().Dy())

	// Caption background is white; the original sits underneath.
	r, g, b, _ := out.At(1, 1).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})
	r, _, _, _ = out.At(150, header+100).RGBA()
	assert.Equal(t, uint32(128*0x101), r)
}

func TestImage_UncaptionRemovesCaption(t *testing.T) {
	deps := newDeps(t)
	orig := solid(300, 200, color.RGBA{60, 90, 120, 255})
	ed := selectEditor(t, deps, pngBytes(t, orig), "image/png")

	captioned, err := ed.Caption(context.Background(), "top text")
	require.NoError(t, err)

	ed = selectEditor(t, deps, captioned.Data, captioned.MIME)
	res, err := ed.Uncaption(context.Background())
	require.NoError(t, err)

	out := decodeImage(t, res.Data)
	assert.Equal(t, orig.Bounds().Size(), out.Bounds().Size())
	r, g, b, _ := out.At(150, 100).RGBA()
	assert.Equal(t, [3]uint32{60 * 0x101, 90 * 0x101, 120 * 0x101}, [3]uint32{r, g, b})
}

func TestImage_UncaptionUniformFails(t *testing.T) {
	deps := newDeps(t)
	ed := selectEditor(t, deps, pngBytes(t, solid(500, 500, color.RGBA{40, 40, 40, 255})), "image/png")

	_, err := ed.Uncaption(context.Background())
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryContentBoundsNotFound), "got %v", err)
}

func TestImage_JPEGDegrades(t *testing.T) {
	deps := newDeps(t)
	src := image.NewRGBA(image.Rect(0, 0, 100, 50)) // fully transparent
	ed := selectEditor(t, deps, pngBytes(t, src), "image/png")

	res, err := ed.(*editor.Image).JPEG(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", res.MIME)
	assert.Equal(t, "meme.jpg", res.Filename)

	out, err := jpeg.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 80, out.Bounds().Dx())
	assert.Equal(t, 40, out.Bounds().Dy())
	// Transparency is flattened onto black.
	r, g, b, _ := out.At(40, 20).RGBA()
	assert.Less(t, r+g+b, uint32(3*0x1000))
}

func TestImage_CorruptInput(t *testing.T) {
	deps := newDeps(t)
	ed := selectEditor(t, deps, []byte("\x89PNG\r\n\x1a\nnot really"), "image/png")

	_, err := ed.Resize(context.Background(), 10, 10)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryDecode), "got %v", err)
}

// ── Animated images ───────────────────────────────────────────────────────────

func TestAnimated_SpeedHalvesDelays(t *testing.T) {
	deps := newDeps(t)
	colors := make([]color.Color, 10)
	for i := range colors {
		colors[i] = color.White
	}
	ed := timed(t, selectEditor(t, deps, gifBytes(t, 20, 20, 10, colors...), "image/gif"))

	res, err := ed.Speed(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "meme.gif", res.Filename)
	assert.Equal(t, "image/gif", res.MIME)

	g := decodeGIF(t, res.Data)
	require.Len(t, g.Image, 10)
	for i, d := range g.Delay {
		assert.Equal(t, 5, d, "frame %d", i)
	}
	assert.Equal(t, 0, g.LoopCount)
}

func TestAnimated_SpeedFloorDropsFrames(t *testing.T) {
	deps := newDeps(t)
	colors := make([]color.Color, 10)
	for i := range colors {
		colors[i] = color.Black
	}
	ed := timed(t, selectEditor(t, deps, gifBytes(t, 20, 20, 3, colors...), "image/gif"))

	res, err := ed.Speed(context.Background(), 2)
	require.NoError(t, err)
	g := decodeGIF(t, res.Data)
	require.Len(t, g.Image, 5)
	for _, d := range g.Delay {
		assert.Equal(t, 2, d)
	}
}

func TestAnimated_SpeedRejectsNonPositive(t *testing.T) {
	deps := newDeps(t)
	ed := timed(t, selectEditor(t, deps, gifBytes(t, 4, 4, 10, color.White), "image/gif"))

	for _, m := range []float64{0, -1} {
		_, err := ed.Speed(context.Background(), m)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput), "speed %v: %v", m, err)
	}
}

func TestAnimated_Reverse(t *testing.T) {
	deps := newDeps(t)
	red, blue := color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255}
	ed := timed(t, selectEditor(t, deps, gifBytes(t, 16, 16, 10, red, red, blue), "image/gif"))

	res, err := ed.Reverse(context.Background())
	require.NoError(t, err)
	g := decodeGIF(t, res.Data)
	require.Len(t, g.Image, 3)
	assert.True(t, isBluish(g.Image[0].At(8, 8)))
	assert.True(t, isReddish(g.Image[2].At(8, 8)))
}

func TestAnimated_PartialFramesAreComposed(t *testing.T) {
	deps := newDeps(t)
	pal := color.Palette{color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255}}
	full := image.NewPaletted(image.Rect(0, 0, 20, 20), pal) // all red
	patch := image.NewPaletted(image.Rect(0, 0, 5, 5), pal)
	for i := range patch.Pix {
		patch.Pix[i] = 1
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, &gif.GIF{
		Image: []*image.Paletted{full, patch},
		Delay: []int{10, 10},
	}))

	ed := timed(t, selectEditor(t, deps, buf.Bytes(), "image/gif"))
	res, err := ed.Reverse(context.Background())
	require.NoError(t, err)

	g := decodeGIF(t, res.Data)
	require.Len(t, g.Image, 2)
	first := g.Image[0] // the composed second source frame
	assert.Equal(t, image.Rect(0, 0, 20, 20), first.Bounds())
	assert.True(t, isBluish(first.At(2, 2)))
	assert.True(t, isReddish(first.At(15, 15)), "area outside the patch must keep the previous frame")
}

func TestAnimated_ResizeAndCaption(t *testing.T) {
	deps := newDeps(t)
	gifData := gifBytes(t, 40, 20, 10, color.White, color.Black)

	ed := selectEditor(t, deps, gifData, "image/gif")
	res, err := ed.Resize(context.Background(), 20, 10)
	require.NoError(t, err)
	g := decodeGIF(t, res.Data)
	assert.Equal(t, 20, g.Config.Width)
	assert.Equal(t, 10, g.Config.Height)
	assert.Len(t, g.Image, 2)

	res, err = ed.Caption(context.Background(), "me irl")
	require.NoError(t, err)
	header, err := deps.Captions.Height("me irl", 40)
	require.NoError(t, err)
	g = decodeGIF(t, res.Data)
	assert.Equal(t, 40, g.Config.Width)
	assert.Equal(t, 20+header, g.Config.Height)
}

func TestAnimated_UncaptionRemovesCaption(t *testing.T) {
	deps := newDeps(t)
	blue := color.RGBA{0, 0, 255, 255}
	red := color.RGBA{255, 0, 0, 255}
	ed := selectEditor(t, deps, gifBytes(t, 120, 80, 10, blue, red), "image/gif")

	captioned, err := ed.Caption(context.Background(), "top text")
	require.NoError(t, err)
	g := decodeGIF(t, captioned.Data)
	require.Greater(t, g.Config.Height, 80)
	r, gr, b, _ := g.Image[0].At(2, 2).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, gr, b}, "header background must stay white")

	ed = selectEditor(t, deps, captioned.Data, captioned.MIME)
	res, err := ed.Uncaption(context.Background())
	require.NoError(t, err)

	g = decodeGIF(t, res.Data)
	assert.Equal(t, 120, g.Config.Width)
	assert.Equal(t, 80, g.Config.Height)
	require.Len(t, g.Image, 2)
	assert.True(t, isBluish(g.Image[0].At(60, 5)))
	assert.True(t, isReddish(g.Image[1].At(60, 5)))
}

func TestAnimated_UncaptionUniformFails(t *testing.T) {
	deps := newDeps(t)
	ed := selectEditor(t, deps, gifBytes(t, 30, 30, 10, color.Black, color.Black), "image/gif")

	_, err := ed.Uncaption(context.Background())
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryContentBoundsNotFound), "got %v", err)
}

func TestAnimated_TruncatedInput(t *testing.T) {
	deps := newDeps(t)
	data := gifBytes(t, 20, 20, 10, color.White, color.Black)
	ed := timed(t, selectEditor(t, deps, data[:len(data)/2], "image/gif"))

	_, err := ed.Reverse(context.Background())
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryDecode), "got %v", err)
}

// ── Video ─────────────────────────────────────────────────────────────────────

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping video test in short mode")
	}
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

func testVideo(t *testing.T) []byte {
	t.Helper()
	return testVideoSized(t, "64x48")
}

func testVideoSized(t *testing.T, size string) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.mp4")
	out, err := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "testsrc=s="+size+":r=10:d=1",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=1",
		"-c:v", "mpeg4", "-c:a", "aac", "-shortest", path).CombinedOutput()
	require.NoError(t, err, string(out))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func probe(t *testing.T, deps *editor.Deps, data []byte) *ffmpeg.ProbeResult {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.mp4")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	pr, err := deps.FFmpeg.Probe(context.Background(), path)
	require.NoError(t, err)
	return pr
}

func TestVideo_ResizeRoundsToEven(t *testing.T) {
	skipIfNoFFmpeg(t)
	deps := newDeps(t)
	ed := selectEditor(t, deps, testVideo(t), "video/mp4")

	res, err := ed.Resize(context.Background(), 33, 25)
	require.NoError(t, err)
	assert.Equal(t, "meme.mp4", res.Filename)
	assert.Equal(t, "video/mp4", res.MIME)

	pr := probe(t, deps, res.Data)
	assert.Equal(t, 34, pr.Width)
	assert.Equal(t, 26, pr.Height)
	assert.True(t, pr.HasAudio)
}

func TestVideo_SpeedClampsLowMultiplier(t *testing.T) {
	skipIfNoFFmpeg(t)
	deps := newDeps(t)
	ed := timed(t, selectEditor(t, deps, testVideo(t), "video/mp4"))

	res, err := ed.Speed(context.Background(), 0.1)
	require.NoError(t, err)
	pr := probe(t, deps, res.Data)
	// Clamped to 0.5: one second becomes about two.
	assert.InDelta(t, 2.0, pr.Duration, 0.4)

	_, err = ed.Speed(context.Background(), 0)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))
}

func TestVideo_ReverseKeepsGeometry(t *testing.T) {
	skipIfNoFFmpeg(t)
	deps := newDeps(t)
	ed := timed(t, selectEditor(t, deps, testVideo(t), "video/mp4"))

	res, err := ed.Reverse(context.Background())
	require.NoError(t, err)
	pr := probe(t, deps, res.Data)
	assert.Equal(t, 64, pr.Width)
	assert.Equal(t, 48, pr.Height)
}

func TestVideo_CaptionAddsHeader(t *testing.T) {
	skipIfNoFFmpeg(t)
	deps := newDeps(t)
	ed := selectEditor(t, deps, testVideo(t), "video/mp4")

	const text = "caption"
	res, err := ed.Caption(context.Background(), text)
	require.NoError(t, err)

	header, err := deps.Captions.Height(text, 64)
	require.NoError(t, err)
	want := 48 + header
	want += want % 2
	pr := probe(t, deps, res.Data)
	assert.Equal(t, 64, pr.Width)
	assert.Equal(t, want, pr.Height)
	assert.True(t, pr.HasAudio)
}

// stepCounter counts completed pipeline steps by name.
type stepCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *stepCounter) BeforeStep(context.Context, string, *core.ImageData) {}

func (c *stepCounter) AfterStep(_ context.Context, name string, _ *core.ImageData, _ time.Duration, err error) {
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[name]++
}

func (c *stepCounter) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func TestVideo_UncaptionRemovesHeader(t *testing.T) {
	skipIfNoFFmpeg(t)
	deps := newDeps(t)
	counter := &stepCounter{}
	deps.Hooks = []core.Hook{counter}

	ed := selectEditor(t, deps, testVideoSized(t, "320x240"), "video/mp4")
	captioned, err := ed.Caption(context.Background(), "top text")
	require.NoError(t, err)
	assert.Greater(t, probe(t, deps, captioned.Data).Height, 240)
	stacked := counter.count("stack")
	assert.Greater(t, stacked, 0, "per-frame steps must reach the hooks")

	ed = selectEditor(t, deps, captioned.Data, captioned.MIME)
	res, err := ed.Uncaption(context.Background())
	require.NoError(t, err)

	pr := probe(t, deps, res.Data)
	assert.Equal(t, 320, pr.Width)
	// Lossy re-encoding can blur a row or two across the header edge.
	assert.InDelta(t, 240, pr.Height, 4)
	assert.True(t, pr.HasAudio)
	assert.Greater(t, counter.count("crop"), 0)
}

func TestVideo_CorruptInput(t *testing.T) {
	skipIfNoFFmpeg(t)
	deps := newDeps(t)
	ed := timed(t, selectEditor(t, deps, []byte("definitely not a video"), "video/mp4"))

	_, err := ed.Reverse(context.Background())
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryDecode), "got %v", err)
}
