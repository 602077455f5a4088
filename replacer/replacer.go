// Package replacer fills page templates: it substitutes placeholder
// strings in text, swaps images inside regions and replaces the text of
// regions with new copy.
package replacer

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Replacer collects replacements and applies them to pages. The zero
// value is not usable; call New.
type Replacer struct {
	// Start and End delimit placeholders, so key NAME matches "[NAME]".
	Start, End string
	Compress   bool
	Logger     observability.Logger

	strs   map[string]string
	images []imageRepl
	texts  []textRepl
}

type imageRepl struct {
	region coords.Rect
	image  sdf.Ref
}

type textRepl struct {
	region coords.Rect
	text   string
}

// Report counts what Process changed on a page: placeholders replaced,
// images swapped and text runs removed from text regions.
type Report struct {
	Strings int
	Images  int
	Texts   int
}

func New() *Replacer {
	return &Replacer{Start: "[", End: "]", Compress: true, strs: make(map[string]string)}
}

// AddString replaces every placeholder for key with value.
func (r *Replacer) AddString(key, value string) { r.strs[key] = value }

// AddImage draws image in place of every image lying inside region.
func (r *Replacer) AddImage(region coords.Rect, image sdf.Ref) {
	r.images = append(r.images, imageRepl{region.Normalize(), image})
}

// AddText removes the text lying inside region and sets text there
// instead, wrapped to the region's width in the font of the first removed
// run.
func (r *Replacer) AddText(region coords.Rect, text string) {
	r.texts = append(r.texts, textRepl{region.Normalize(), text})
}

// Process applies the replacements to page, rewriting its content stream.
// Content inside form XObjects is left alone.
func (r *Replacer) Process(ctx context.Context, page *pdf.Page) (Report, error) {
	var rep Report
	ctx, span := observability.StartSpan(ctx, "replacer")
	defer span.Finish()
	doc := page.Doc()
	rd := content.NewReader(doc)
	if err := rd.Begin(ctx, page); err != nil {
		return rep, err
	}
	w := content.NewWriter()
	if err := w.Begin(page, content.Replacement, r.Compress); err != nil {
		return rep, err
	}
	// The first text run removed from each text region, for its font.
	styles := make([]*content.Element, len(r.texts))
	for {
		if err := ctx.Err(); err != nil {
			w.End()
			return rep, err
		}
		e, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.End()
			span.SetError(err)
			return rep, err
		}
		e, err = r.element(e, styles, &rep)
		if err != nil {
			w.End()
			return rep, err
		}
		if e == nil {
			continue
		}
		if err := w.WriteElement(e); err != nil {
			w.End()
			return rep, err
		}
	}
	if err := r.writeTexts(w, doc.SDF(), styles); err != nil {
		w.End()
		return rep, err
	}
	if _, err := w.End(); err != nil {
		return rep, err
	}
	observability.OrNop(r.Logger).Debug("replacer: page done",
		observability.Int("page", page.Index()),
		observability.Int("strings", rep.Strings),
		observability.Int("images", rep.Images))
	return rep, nil
}

// element returns the element to write in place of e, or nil to drop it.
func (r *Replacer) element(e *content.Element, styles []*content.Element, rep *Report) (*content.Element, error) {
	switch e.Type {
	case content.ElementText:
		if b, ok := e.BBox(); ok {
			for i, t := range r.texts {
				if t.region.ContainsRect(b) {
					if styles[i] == nil {
						styles[i] = e
					}
					rep.Texts++
					return nil, nil
				}
			}
		}
		return r.substitute(e, rep), nil
	case content.ElementImage:
		b, ok := e.BBox()
		if !ok {
			break
		}
		for _, im := range r.images {
			if im.region.ContainsRect(b) {
				cp := *e
				cp.XObject = content.Resource{Obj: im.image}
				rep.Images++
				return &cp, nil
			}
		}
	}
	return e, nil
}

// substitute replaces the placeholders within one text run.
func (r *Replacer) substitute(e *content.Element, rep *Report) *content.Element {
	f := e.State.Font
	if len(r.strs) == 0 || f == nil {
		return e
	}
	s := e.TextString()
	if !strings.Contains(s, r.Start) {
		return e
	}
	n := 0
	for _, k := range r.keys() {
		ph := r.Start + k + r.End
		if c := strings.Count(s, ph); c > 0 {
			s = strings.ReplaceAll(s, ph, r.strs[k])
			n += c
		}
	}
	if n == 0 {
		return e
	}
	rep.Strings += n
	cp := *e
	cp.SetText(f.Encode(s))
	return &cp
}

// keys returns the string keys longest first, so a key never matches
// inside a longer one.
func (r *Replacer) keys() []string {
	keys := make([]string, 0, len(r.strs))
	for k := range r.strs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// writeTexts sets the replacement text of each region. Regions without a
// removed run use Helvetica at 12 points.
func (r *Replacer) writeTexts(w *content.Writer, sd *sdf.Doc, styles []*content.Element) error {
	b := content.NewBuilder(sd)
	for i, t := range r.texts {
		font, size := (*content.Font)(nil), 12.0
		if s := styles[i]; s != nil {
			size = s.State.FontSize
			if f := s.State.Font; f != nil && (f.IsSimple() || f.CanEncode()) {
				font = f
			}
		}
		if font == nil {
			var err error
			if font, err = content.NewStandardFont(sd, "Helvetica"); err != nil {
				return err
			}
		}
		lines := wrap(t.text, t.region.Width(), func(s string) float64 {
			return width(font, s, size)
		})
		lead := size * 1.2
		els := []*content.Element{b.CreateGroupBegin(), b.CreateTextBegin()}
		for k, line := range lines {
			y := t.region.Y2 - size - float64(k)*lead
			if y < t.region.Y1 {
				break
			}
			b.State().TextMatrix = coords.Translate(t.region.X1, y)
			b.State().TextLineMatrix = b.State().TextMatrix
			els = append(els, b.CreateTextRun(line, font, size))
		}
		els = append(els, b.CreateTextEnd(), b.CreateGroupEnd())
		for _, e := range els {
			if err := w.WriteElement(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func width(f *content.Font, s string, size float64) float64 {
	var w float64
	for _, g := range f.Decode(f.Encode(s)) {
		w += g.Width / 1000 * size
	}
	return w
}

// wrap breaks text at spaces into lines no wider than max. A word wider
// than max gets a line of its own.
func wrap(text string, max float64, measure func(string) float64) []string {
	var lines []string
	cur := ""
	for _, word := range strings.Fields(text) {
		next := word
		if cur != "" {
			next = cur + " " + word
		}
		if cur != "" && measure(next) > max {
			lines = append(lines, cur)
			next = word
		}
		cur = next
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
