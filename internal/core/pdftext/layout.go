package pdftext

import (
	"sort"
	"strings"
	"unicode"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

// lineTolerance is the largest baseline shift, in points, still read as the
// same line.
const lineTolerance = 2.0

// glyph is one positioned piece of text as reported by the PDF reader.
type glyph struct {
	S        string
	X, Y, W  float64
	FontSize float64
}

// words merges consecutive glyphs into runs, breaking at whitespace glyphs,
// baseline changes, backward moves and horizontal gaps wider than a fraction
// of the font size.
func words(glyphs []glyph) []glyph {
	var out []glyph
	var cur *glyph
	var last glyph
	flush := func() {
		if cur != nil && strings.TrimSpace(cur.S) != "" {
			out = append(out, *cur)
		}
		cur = nil
	}
	for _, g := range glyphs {
		if strings.TrimFunc(g.S, unicode.IsSpace) == "" {
			flush()
			last = g
			continue
		}
		if cur != nil {
			gap := g.X - (last.X + last.W)
			if abs(g.Y-last.Y) > lineTolerance || g.X < last.X || gap > max(1.0, 0.25*g.FontSize) {
				flush()
			}
		}
		if cur == nil {
			c := g
			cur = &c
		} else {
			cur.S += g.S
			cur.W = g.X + g.W - cur.X
		}
		last = g
	}
	flush()
	return out
}

// layout turns positioned glyphs into the page text (words joined by single
// spaces) and structured lines sorted top to bottom.
func layout(glyphs []glyph) (string, []entity.StructuredLine) {
	items := words(glyphs)

	texts := make([]string, 0, len(items))
	for _, it := range items {
		texts = append(texts, it.S)
	}
	pageText := collapse(strings.Join(texts, " "))

	var lines []entity.StructuredLine
	var current []string
	var lastY float64
	for i, it := range items {
		if i > 0 && abs(it.Y-lastY) > lineTolerance && len(current) > 0 {
			lines = append(lines, entity.StructuredLine{Text: strings.Join(current, " "), Y: lastY})
			current = nil
		}
		current = append(current, it.S)
		lastY = it.Y
	}
	if len(current) > 0 {
		lines = append(lines, entity.StructuredLine{Text: strings.Join(current, " "), Y: lastY})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Y > lines[j].Y })
	return pageText, lines
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
