package render

import (
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

type glyph struct {
	r       rune
	width   fixed.Int26_6
	isSpace bool
}

func measureGlyphs(face font.Face, text string) []glyph {
	out := make([]glyph, 0, len(text))
	prev := rune(-1)
	for _, r := range text {
		if unicode.IsSpace(r) {
			r = ' '
		}
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			adv, _ = face.GlyphAdvance('?')
		}
		if prev >= 0 {
			adv += face.Kern(prev, r)
		}
		out = append(out, glyph{r: r, width: adv, isSpace: r == ' '})
		prev = r
	}
	return out
}

// Wrap breaks text into lines no wider than maxWidth pixels, preferring
// breaks at spaces. Words wider than a line are split.
func Wrap(face font.Face, text string, maxWidth int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	glyphs := measureGlyphs(face, text)
	if maxWidth <= 0 {
		return []string{text}
	}
	limit := fixed.I(maxWidth)

	var lines []string
	line := make([]glyph, 0, len(glyphs))
	var lineWidth fixed.Int26_6
	lastSpaceIdx := -1

	for i := 0; i < len(glyphs); {
		item := glyphs[i]
		if lineWidth+item.width > limit && len(line) > 0 && !item.isSpace {
			if lastSpaceIdx >= 0 {
				lines = append(lines, glyphString(line[:lastSpaceIdx]))
				line = append([]glyph{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				lines = append(lines, glyphString(line))
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		if item.isSpace && len(line) == 0 {
			i++
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	if rest := strings.TrimRight(glyphString(line), " "); rest != "" {
		lines = append(lines, rest)
	}
	return lines
}

// truncate keeps at most n lines, ending the last kept line with an ellipsis
// that still fits maxWidth.
func truncate(face font.Face, lines []string, n, maxWidth int) []string {
	if n <= 0 {
		return nil
	}
	if len(lines) <= n {
		return lines
	}
	out := append([]string{}, lines[:n]...)
	last := []rune(out[n-1])
	for len(last) > 0 && font.MeasureString(face, string(last)+"…") > fixed.I(maxWidth) {
		last = last[:len(last)-1]
	}
	out[n-1] = strings.TrimRight(string(last), " ") + "…"
	return out
}

func glyphString(line []glyph) string {
	var b strings.Builder
	for _, g := range line {
		b.WriteRune(g.r)
	}
	return b.String()
}

func lineWidthOf(line []glyph) fixed.Int26_6 {
	var total fixed.Int26_6
	for _, g := range line {
		total += g.width
	}
	return total
}

func lastSpaceIndex(line []glyph) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
