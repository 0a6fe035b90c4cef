package caption

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"
)

// placeholderBase is the first private-use rune handed out to emoji tokens.
const placeholderBase = '\uE000'

// emojiPattern matches chat custom-emoji tokens such as <:pog:1234> or
// <a:party:5678>.
var emojiPattern = regexp.MustCompile(`<(a?):([A-Za-z0-9_~]+):(\d+)>`)

// Emoji is a custom emoji token found in caption text.
type Emoji struct {
	Name     string
	ID       string
	Animated bool
}

// Normalize composes text to NFC and replaces the single-glyph ellipsis with
// three dots.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "…", "...")
	return strings.TrimSpace(text)
}

// tokenize swaps every emoji token for one private-use rune so the wrapper
// treats it as an unbreakable glyph.  Repeated tokens share a rune.  Private-use
// runes already in text become U+FFFD so only tokens map to placeholders.
func tokenize(text string) (string, []Emoji) {
	text = strings.Map(func(r rune) rune {
		if isPlaceholder(r) {
			return utf8.RuneError
		}
		return r
	}, text)

	var emojis []Emoji
	index := make(map[string]int)
	out := emojiPattern.ReplaceAllStringFunc(text, func(tok string) string {
		i, ok := index[tok]
		if !ok {
			m := emojiPattern.FindStringSubmatch(tok)
			i = len(emojis)
			index[tok] = i
			emojis = append(emojis, Emoji{Name: m[2], ID: m[3], Animated: m[1] == "a"})
		}
		return string(placeholderBase + rune(i))
	})
	return out, emojis
}

func isPlaceholder(r rune) bool {
	return r >= placeholderBase && r <= '\uF8FF'
}

// emojiOnly reports whether text holds emoji placeholders and nothing but
// whitespace besides.
func emojiOnly(text string) bool {
	found := false
	for _, r := range text {
		switch {
		case isPlaceholder(r):
			found = true
		case r == ' ' || r == '\t' || r == '\n':
		default:
			return false
		}
	}
	return found
}

// segment is a run of plain text or a single emoji placeholder.
type segment struct {
	text  string
	emoji rune // 0 for text
}

func segments(line string) []segment {
	var segs []segment
	start := 0
	for i, r := range line {
		if !isPlaceholder(r) {
			continue
		}
		if i > start {
			segs = append(segs, segment{text: line[start:i]})
		}
		segs = append(segs, segment{emoji: r})
		start = i + utf8.RuneLen(r)
	}
	if start < len(line) {
		segs = append(segs, segment{text: line[start:]})
	}
	return segs
}

// measurer computes rendered widths with emoji placeholders counted as
// squares of side emojiSize.
type measurer struct {
	face      font.Face
	emojiSize int
}

func (m measurer) width(s string) int {
	var w fixed.Int26_6
	for _, seg := range segments(s) {
		if seg.emoji != 0 {
			w += fixed.I(m.emojiSize)
			continue
		}
		w += font.MeasureString(m.face, seg.text)
	}
	return w.Ceil()
}

// wrap greedily breaks text into lines no wider than avail.  Explicit
// newlines are kept.  A word wider than avail is split between characters
// with a trailing hyphen.
func wrap(text string, avail int, m measurer) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := ""
		for _, word := range words {
			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if m.width(candidate) <= avail {
				line = candidate
				continue
			}
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			for m.width(word) > avail {
				head, rest := splitWord(word, avail, m)
				lines = append(lines, head)
				word = rest
			}
			line = word
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// splitWord returns the longest hyphenated prefix of word that fits avail,
// always taking at least one rune so wrapping makes progress.
func splitWord(word string, avail int, m measurer) (string, string) {
	runes := []rune(word)
	cut := 1
	for n := 2; n < len(runes); n++ {
		if m.width(string(runes[:n])+"-") > avail {
			break
		}
		cut = n
	}
	head := string(runes[:cut])
	if !isPlaceholder(runes[cut-1]) {
		head += "-"
	}
	return head, string(runes[cut:])
}
