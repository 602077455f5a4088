// Package textextract recovers words and lines of text from page content
// and searches documents for text.
package textextract

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
)

// Char is one glyph. BBox is in the page's rotated default space; Baseline
// is the baseline height in unrotated user space.
type Char struct {
	Text     string
	BBox     coords.Rect
	Baseline float64
	Size     float64
	Font     string
}

// Word is a run of characters without whitespace or large gaps.
type Word struct {
	Text  string
	BBox  coords.Rect
	Chars []Char
}

// Line is a set of words sharing a baseline, left to right.
type Line struct {
	Words    []Word
	BBox     coords.Rect
	Baseline float64
}

// Result holds the text of one page in reading order.
type Result struct {
	Page  int
	lines []Line
}

// Lines returns the lines top to bottom.
func (r *Result) Lines() []Line { return r.lines }

// Words returns all words in reading order.
func (r *Result) Words() []Word {
	var out []Word
	for _, l := range r.lines {
		out = append(out, l.Words...)
	}
	return out
}

// Text returns the page text, words separated by spaces and lines by
// newlines.
func (r *Result) Text() string {
	var b strings.Builder
	for i, l := range r.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		for k, w := range l.Words {
			if k > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(w.Text)
		}
	}
	return b.String()
}

// Extract reads the text of page, including text inside form XObjects.
func Extract(ctx context.Context, page *pdf.Page) (*Result, error) {
	r := content.NewReader(page.Doc())
	if err := r.Begin(ctx, page); err != nil {
		return nil, err
	}
	els, err := r.ReadAll(ctx, true)
	if err != nil {
		return nil, err
	}
	var chars []Char
	for _, e := range els {
		if e.Type != content.ElementText {
			continue
		}
		font := ""
		if f := e.State.Font; f != nil {
			font = f.BaseFont
		}
		for _, c := range e.Chars() {
			if c.Unicode == "" {
				continue
			}
			chars = append(chars, Char{
				Text:     c.Unicode,
				BBox:     c.BBox,
				Baseline: c.Origin.Y,
				Size:     c.BBox.Height(),
				Font:     font,
			})
		}
	}
	// Grouping runs in unrotated space where text flows left to right;
	// only the reported boxes follow the page rotation.
	lines := buildLines(buildWords(chars))
	toPage(lines, page.DefaultMatrix())
	return &Result{Page: page.Index(), lines: lines}, nil
}

func toPage(lines []Line, m coords.Matrix) {
	for i := range lines {
		l := &lines[i]
		l.BBox = m.TransformRect(l.BBox)
		for j := range l.Words {
			w := &l.Words[j]
			w.BBox = m.TransformRect(w.BBox)
			for k := range w.Chars {
				w.Chars[k].BBox = m.TransformRect(w.Chars[k].BBox)
			}
		}
	}
}

func isSpace(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}

// buildWords splits characters in content order at whitespace, at
// horizontal gaps wider than a fraction of the font size, and where the
// baseline jumps.
func buildWords(chars []Char) []Word {
	var words []Word
	var cur []Char
	flush := func() {
		if len(cur) == 0 {
			return
		}
		w := Word{Chars: cur, BBox: cur[0].BBox}
		var b strings.Builder
		for _, c := range cur {
			b.WriteString(c.Text)
			w.BBox = w.BBox.Union(c.BBox)
		}
		w.Text = b.String()
		words = append(words, w)
		cur = nil
	}
	for _, c := range chars {
		if isSpace(c.Text) {
			flush()
			continue
		}
		if n := len(cur); n > 0 {
			prev := cur[n-1]
			size := math.Max(prev.Size, c.Size)
			gap := c.BBox.X1 - prev.BBox.X2
			if gap > 0.15*size || gap < -0.5*size || math.Abs(c.Baseline-prev.Baseline) > 0.3*size {
				flush()
			}
		}
		cur = append(cur, c)
	}
	flush()
	return words
}

// buildLines groups words whose baselines are within half a line height
// and orders lines top to bottom.
func buildLines(words []Word) []Line {
	baseline := func(w Word) float64 { return w.Chars[0].Baseline }
	sort.SliceStable(words, func(i, j int) bool {
		return baseline(words[i]) > baseline(words[j])
	})
	var lines []Line
	for _, w := range words {
		h := w.BBox.Height()
		placed := false
		for i := range lines {
			l := &lines[i]
			if math.Abs(l.Baseline-baseline(w)) <= 0.5*math.Max(h, l.BBox.Height()/2) {
				l.Words = append(l.Words, w)
				l.BBox = l.BBox.Union(w.BBox)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, Line{Words: []Word{w}, BBox: w.BBox, Baseline: baseline(w)})
		}
	}
	for i := range lines {
		sort.SliceStable(lines[i].Words, func(a, b int) bool {
			return lines[i].Words[a].BBox.X1 < lines[i].Words[b].BBox.X1
		})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Baseline > lines[j].Baseline })
	return lines
}
