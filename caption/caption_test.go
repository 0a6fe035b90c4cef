package caption

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"

	apperrors "github.com/Skryldev/media-editor/errors"
)

func newRenderer(t testing.TB, resolver EmojiResolver) *Renderer {
	t.Helper()
	r, err := New(Options{Resolver: resolver})
	require.NoError(t, err)
	return r
}

func testMeasurer(t *testing.T, size int) measurer {
	t.Helper()
	f, err := opentype.Parse(gobold.TTF)
	require.NoError(t, err)
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: float64(size), DPI: 72})
	require.NoError(t, err)
	t.Cleanup(func() { face.Close() })
	return measurer{face: face, emojiSize: size}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "wait...", Normalize("  wait…  "))
	assert.Equal(t, "caf\u00e9", Normalize("cafe\u0301"))
}

func TestTokenize(t *testing.T) {
	out, emojis := tokenize("<:pog:123> hi <a:party:456> <:pog:123>")
	require.Len(t, emojis, 2)
	assert.Equal(t, Emoji{Name: "pog", ID: "123"}, emojis[0])
	assert.Equal(t, Emoji{Name: "party", ID: "456", Animated: true}, emojis[1])
	assert.Equal(t, "\uE000 hi \uE001 \uE000", out)

	plain, none := tokenize("no <emoji> here <:broken:> either")
	assert.Empty(t, none)
	assert.Equal(t, "no <emoji> here <:broken:> either", plain)

	mixed, one := tokenize("\uF8FF <:pog:123> \uE000")
	require.Len(t, one, 1)
	assert.Equal(t, "\uFFFD \uE000 \uFFFD", mixed)
}

func TestRender_PrivateUseText(t *testing.T) {
	r := newRenderer(t, nil)
	for _, text := range []string{"apple \uF8FF logo", "\uE001 hi", "\uE000"} {
		img, err := r.Render(context.Background(), text, 400)
		require.NoError(t, err, text)
		assert.Equal(t, 400, img.Bounds().Dx())
	}
}

func TestEmojiOnly(t *testing.T) {
	assert.True(t, emojiOnly("\uE000 \uE001"))
	assert.False(t, emojiOnly("\uE000 lol"))
	assert.False(t, emojiOnly("   "))
}

func TestWrap_FitsAvailableWidth(t *testing.T) {
	m := testMeasurer(t, 20)
	const avail = 180
	lines := wrap("when you finally fix the bug but then realise it was a feature all along", avail, m)
	require.Greater(t, len(lines), 1)
	for _, l := range lines {
		assert.LessOrEqual(t, m.width(l), avail, "line %q overflows", l)
		assert.NotEmpty(t, l)
	}
}

func TestWrap_SplitsLongWord(t *testing.T) {
	m := testMeasurer(t, 20)
	const avail = 100
	word := strings.Repeat("W", 30)
	lines := wrap(word, avail, m)
	require.Greater(t, len(lines), 1)
	for _, l := range lines[:len(lines)-1] {
		assert.True(t, strings.HasSuffix(l, "-"), "split line %q must end with a hyphen", l)
		assert.LessOrEqual(t, m.width(l), avail)
	}
	joined := strings.ReplaceAll(strings.Join(lines, ""), "-", "")
	assert.Equal(t, word, joined)
}

func TestWrap_KeepsNewlines(t *testing.T) {
	m := testMeasurer(t, 20)
	assert.Equal(t, []string{"top", "bottom"}, wrap("top\nbottom", 500, m))
}

func TestRender_Dimensions(t *testing.T) {
	r := newRenderer(t, nil)
	for _, width := range []int{40, 320, 1200} {
		img, err := r.Render(context.Background(), "me when the caption renderer works", width)
		require.NoError(t, err)
		h, err := r.Height("me when the caption renderer works", width)
		require.NoError(t, err)

		assert.Equal(t, width, img.Bounds().Dx())
		assert.Equal(t, h, img.Bounds().Dy())
		assert.Greater(t, h, width/10, "height includes the font-size padding")
	}
}

func TestRender_BlackOnWhite(t *testing.T) {
	r := newRenderer(t, nil)
	img, err := r.Render(context.Background(), "HELLO", 400)
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(0, 0))
	dark := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] < 64 {
			dark++
		}
	}
	assert.Greater(t, dark, 100)
}

func TestRender_MoreTextIsTaller(t *testing.T) {
	r := newRenderer(t, nil)
	short, err := r.Height("short", 300)
	require.NoError(t, err)
	long, err := r.Height(strings.Repeat("many words ", 20), 300)
	require.NoError(t, err)
	assert.Greater(t, long, short)
}

func TestRender_EmojiOnlyIsEnlarged(t *testing.T) {
	r := newRenderer(t, nil)
	text, err := r.Height("<:a:1>x", 300)
	require.NoError(t, err)
	only, err := r.Height("<:a:1>", 300)
	require.NoError(t, err)
	assert.Greater(t, only, text)
}

func TestRender_Errors(t *testing.T) {
	r := newRenderer(t, nil)
	_, err := r.Render(context.Background(), "   ", 100)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))
	_, err = r.Render(context.Background(), "hi", 0)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidDimensions))
}

func TestNew_MissingFont(t *testing.T) {
	_, err := New(Options{FontPath: filepath.Join(t.TempDir(), "nope.ttf")})
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryFontAssetMissing))
	assert.True(t, errors.Is(err, apperrors.ErrFontAssetMissing))
}

func TestCDNResolver(t *testing.T) {
	var pngBuf bytes.Buffer
	red := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(red.Pix); i += 4 {
		red.Pix[i], red.Pix[i+3] = 255, 255
	}
	require.NoError(t, png.Encode(&pngBuf, red))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/emojis/42.png" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBuf.Bytes())
	}))
	defer srv.Close()

	res := NewCDNResolver(time.Second)
	res.Endpoint = func(e Emoji) string { return srv.URL + "/emojis/" + e.ID + ".png" }

	img, err := res.Resolve(context.Background(), Emoji{Name: "red", ID: "42"})
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, err = res.Resolve(context.Background(), Emoji{Name: "gone", ID: "7"})
	assert.Error(t, err)

	// One emoji resolves and one does not; rendering still succeeds.
	r := newRenderer(t, res)
	out, err := r.Render(context.Background(), "<:red:42> and <:gone:7>", 400)
	require.NoError(t, err)
	assert.Equal(t, 400, out.Bounds().Dx())
}

func TestDefaultEndpoint(t *testing.T) {
	assert.True(t, strings.HasSuffix(defaultEndpoint(Emoji{ID: "1"}), "emojis/1.png"))
	assert.True(t, strings.HasSuffix(defaultEndpoint(Emoji{ID: "1", Animated: true}), "emojis/1.gif"))
}

func BenchmarkRender(b *testing.B) {
	r := newRenderer(b, nil)
	text := "when the build is green on the first try <:pog:1234>"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := r.Render(context.Background(), text, 720); err != nil {
			b.Fatal(err)
		}
	}
}

func TestRender_ResolverFuncFailureDrawsPlaceholder(t *testing.T) {
	calls := 0
	failing := EmojiResolverFunc(func(context.Context, Emoji) (image.Image, error) {
		calls++
		return nil, errors.New("cdn down")
	})
	r := newRenderer(t, failing)
	img, err := r.Render(context.Background(), "<:pog:1>", 200)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	grey := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] == placeholderColor.R && img.Pix[i+1] == placeholderColor.G {
			grey++
		}
	}
	assert.Greater(t, grey, 0)
}
