package convert

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/fonts"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

type style uint8

const (
	bold style = 1 << iota
	italic
	mono
)

// families lists regular, bold, italic and bold italic faces, indexed by
// the bold and italic bits of a style.
var families = map[string][4]string{
	"Helvetica":   {"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique"},
	"Times-Roman": {"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic"},
	"Courier":     {"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique"},
}

func family(name string) ([4]string, error) {
	std, ok := fonts.StandardName(name)
	if !ok {
		return [4]string{}, sdf.Errorf("convert", sdf.ErrUnsupported, "%q is not a standard font", name)
	}
	if f, ok := families[std]; ok {
		return f, nil
	}
	return [4]string{std, std, std, std}, nil
}

// span is a run of inline content sharing one style.
type span struct {
	text      string
	style     style
	color     [3]float64
	link      string
	underline bool
	strike    bool
	brk       bool
	math      *mathBox
	display   bool
}

// piece is a word or formula placed on a line. x is relative to the
// column's left edge.
type piece struct {
	s    *span
	text string
	x, w float64
	gap  bool
}

type mark struct {
	level int
	bm    *pdf.Bookmark
}

// engine flows content down a single column, starting pages as needed.
type engine struct {
	ctx   context.Context
	doc   *pdf.Doc
	opts  Options
	log   observability.Logger
	faces [4]string
	fonts map[string]*content.Font

	b  *content.Builder
	mb *content.Builder
	w  *content.Writer

	page   *pdf.Page
	pages  int
	y      float64
	indent float64
	marker string
	marks  []mark
	err    error
}

func newEngine(ctx context.Context, doc *pdf.Doc, opts Options) (*engine, error) {
	opts = opts.withDefaults()
	faces, err := family(opts.Font)
	if err != nil {
		return nil, err
	}
	opts.PageSize = opts.PageSize.Normalize()
	return &engine{
		ctx:   ctx,
		doc:   doc,
		opts:  opts,
		log:   opts.Logger,
		faces: faces,
		fonts: make(map[string]*content.Font),
		b:     content.NewBuilder(doc.SDF()),
		mb:    content.NewBuilder(doc.SDF()),
		w:     content.NewWriter(),
	}, nil
}

func (e *engine) fail(err error) {
	if err != nil && e.err == nil {
		e.err = err
	}
}

func (e *engine) cancelled() bool {
	if e.err == nil {
		e.fail(e.ctx.Err())
	}
	return e.err != nil
}

func (e *engine) font(st style) *content.Font {
	names := e.faces
	if st&mono != 0 {
		names = families["Courier"]
	}
	name := names[st&(bold|italic)]
	if f, ok := e.fonts[name]; ok {
		return f
	}
	f, err := content.NewStandardFont(e.doc.SDF(), name)
	if err != nil {
		e.fail(err)
		return nil
	}
	e.fonts[name] = f
	return f
}

func (e *engine) measure(text string, f *content.Font, size float64) float64 {
	return e.mb.CreateTextRun(text, f, size).TextLength()
}

// fit splits s after the last rune that fits in width. At least one rune
// is always taken.
func (e *engine) fit(s string, f *content.Font, size, width float64) (string, string) {
	w := 0.0
	for i, r := range s {
		w += e.measure(string(r), f, size)
		if w > width && i > 0 {
			return s[:i], s[i:]
		}
	}
	return s, ""
}

func (e *engine) top() float64    { return e.opts.PageSize.Y2 - e.opts.Margins.Top }
func (e *engine) bottom() float64 { return e.opts.PageSize.Y1 + e.opts.Margins.Bottom }
func (e *engine) left() float64   { return e.opts.PageSize.X1 + e.opts.Margins.Left + e.indent }

func (e *engine) width() float64 {
	return e.opts.PageSize.X2 - e.opts.Margins.Right - e.left()
}

func (e *engine) newPage() {
	if e.cancelled() {
		return
	}
	e.endPage()
	if err := e.doc.PagePushBack(e.doc.PageCreate(e.opts.PageSize)); err != nil {
		e.fail(err)
		return
	}
	page := e.doc.Page(e.doc.PageCount())
	if err := e.w.Begin(page, content.Overlay, e.opts.Compress); err != nil {
		e.fail(err)
		return
	}
	e.page = page
	e.b.Reset()
	e.pages++
	e.y = e.top()
	e.log.Debug("convert: page added", observability.Int("page", e.doc.PageCount()))
}

func (e *engine) endPage() {
	if e.page == nil {
		return
	}
	_, err := e.w.End()
	e.fail(err)
	e.page = nil
}

// need makes room for h points, starting a page when the current one is
// full. A fresh page takes anything.
func (e *engine) need(h float64) bool {
	if e.err == nil && (e.page == nil || (e.y-h < e.bottom() && e.y < e.top())) {
		e.newPage()
	}
	return e.err == nil
}

// gap leaves vertical space. Nothing is left at the top of the document.
func (e *engine) gap(h float64) {
	if e.page != nil {
		e.y -= h
	}
}

func (e *engine) finish() error {
	if e.pages == 0 {
		e.newPage()
	}
	e.endPage()
	return e.err
}

func (e *engine) write(el *content.Element) {
	if e.err == nil {
		e.fail(e.w.WriteElement(el))
	}
}

// paragraph wraps spans to the column. White space collapses to single
// spaces; words wider than the column break between characters.
func (e *engine) paragraph(spans []span, size float64, center bool) {
	if e.err != nil {
		return
	}
	width := e.width()
	var line []piece
	x := 0.0
	space := false
	flush := func() {
		e.line(line, size, center, x)
		line, x = nil, 0
	}
	for i := range spans {
		s := &spans[i]
		switch {
		case s.brk:
			flush()
			space = false
			continue
		case s.math != nil:
			gap := space && len(line) > 0
			w := s.math.width
			adv := w
			if f := e.font(0); gap && f != nil {
				adv += e.measure(" ", f, size)
			}
			if x+adv > width && len(line) > 0 {
				flush()
				gap, adv = false, w
			}
			line = append(line, piece{s: s, x: x + adv - w, w: w, gap: gap})
			x += adv
			space = false
			continue
		}
		f := e.font(s.style)
		if f == nil {
			return
		}
		sw := e.measure(" ", f, size)
		if r, _ := utf8.DecodeRuneInString(s.text); unicode.IsSpace(r) {
			space = true
		}
		words := strings.Fields(s.text)
		for j, word := range words {
			if j > 0 {
				space = true
			}
			gap := space && len(line) > 0
			ww := e.measure(word, f, size)
			adv := ww
			if gap {
				adv += sw
			}
			if x+adv > width && len(line) > 0 {
				flush()
				gap, adv = false, ww
			}
			for ww > width && utf8.RuneCountInString(word) > 1 {
				head, rest := e.fit(word, f, size, width)
				hw := e.measure(head, f, size)
				line = append(line, piece{s: s, text: head, w: hw})
				x = hw
				flush()
				word, ww = rest, e.measure(rest, f, size)
				adv = ww
			}
			line = append(line, piece{s: s, text: word, x: x + adv - ww, w: ww, gap: gap})
			x += adv
			space = false
		}
		if r, _ := utf8.DecodeLastRuneInString(s.text); unicode.IsSpace(r) {
			space = true
		}
	}
	if len(line) > 0 {
		flush()
	}
}

// line draws one laid out line below the cursor and moves past it. width
// is the extent of the pieces, used for centering.
func (e *engine) line(pieces []piece, size float64, center bool, width float64) {
	asc, desc := size, size*(e.opts.LineHeight-1)
	for _, p := range pieces {
		if m := p.s.math; m != nil {
			asc = max(asc, m.ascent)
			desc = max(desc, m.descent)
		}
	}
	if !e.need(asc + desc) {
		return
	}
	left := e.left()
	if center {
		left += (e.width() - width) / 2
	}
	base := e.y - asc
	e.y -= asc + desc

	// Words of one span separated by a space share a text run.
	var runs []piece
	for _, p := range pieces {
		if n := len(runs); n > 0 && runs[n-1].s == p.s && p.gap && p.s.math == nil {
			runs[n-1].text += " " + p.text
			runs[n-1].w = p.x + p.w - runs[n-1].x
			continue
		}
		runs = append(runs, p)
	}

	text := e.marker != ""
	for _, r := range runs {
		text = text || (r.s.math == nil && r.text != "")
	}
	if text {
		e.write(e.b.CreateTextBegin())
		if e.marker != "" {
			f := e.font(0)
			e.show(e.marker, f, size, e.left()-e.measure(e.marker, f, size)-size*0.5, base, [3]float64{})
			e.marker = ""
		}
		for _, r := range runs {
			if r.s.math == nil && r.text != "" {
				e.show(r.text, e.font(r.s.style), size, left+r.x, base, r.s.color)
			}
		}
		e.write(e.b.CreateTextEnd())
	}

	for _, r := range runs {
		x := left + r.x
		if r.s.math != nil {
			e.drawMath(r.s.math, x, base)
			continue
		}
		if r.s.underline {
			e.rule(x, base-size*0.12, r.w, size*0.05, r.s.color)
		}
		if r.s.strike {
			e.rule(x, base+size*0.28, r.w, size*0.05, r.s.color)
		}
		if r.s.link != "" && e.page != nil {
			box := coords.Rect{X1: x, Y1: base - size*0.2, X2: x + r.w, Y2: base + size*0.8}
			e.page.AddAnnot(e.doc.CreateLink(box, e.doc.URIAction(r.s.link)))
		}
	}
}

// show writes a text run with its origin at (x, y). It must be called
// between text begin and end elements.
func (e *engine) show(text string, f *content.Font, size, x, y float64, c [3]float64) {
	if f == nil {
		return
	}
	gs := e.b.State()
	gs.SetFillColor(content.DeviceRGB, c[0], c[1], c[2])
	gs.TextMatrix = coords.Translate(x, y)
	gs.TextLineMatrix = gs.TextMatrix
	e.write(e.b.CreateTextRun(text, f, size))
}

func (e *engine) rule(x, y, w, h float64, c [3]float64) {
	e.b.State().SetFillColor(content.DeviceRGB, c[0], c[1], c[2])
	e.write(e.b.CreateRect(x, y, w, h))
}

// polyline strokes the connected points x0 y0 x1 y1 ...
func (e *engine) polyline(lw float64, pts ...float64) {
	gs := e.b.State()
	gs.LineWidth = lw
	gs.SetStrokeColor(content.DeviceGray, 0)
	e.b.PathBegin()
	e.b.MoveTo(pts[0], pts[1])
	for i := 2; i+1 < len(pts); i += 2 {
		e.b.LineTo(pts[i], pts[i+1])
	}
	e.write(e.b.PathEnd())
}

func (e *engine) hr() {
	size := e.opts.FontSize
	if !e.need(size) {
		return
	}
	e.rule(e.left(), e.y-size/2, e.width(), 0.75, [3]float64{0.6, 0.6, 0.6})
	e.y -= size
}

// preformatted lays out text line by line in the monospaced face without
// collapsing white space.
func (e *engine) preformatted(text string) {
	size := e.opts.FontSize * 0.9
	f := e.font(mono)
	if f == nil {
		return
	}
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for _, l := range strings.Split(text, "\n") {
		if e.cancelled() {
			return
		}
		s := &span{style: mono}
		l = strings.ReplaceAll(l, "\t", "    ")
		for {
			head, rest := e.fit(l, f, size, e.width())
			e.line([]piece{{s: s, text: head, w: e.measure(head, f, size)}}, size, false, 0)
			if rest == "" {
				break
			}
			l = rest
		}
	}
}

var headingScale = [...]float64{2, 1.5, 1.25, 1.1, 1, 0.9}

func (e *engine) heading(level int, spans []span) {
	size := e.opts.FontSize * headingScale[level-1]
	for i := range spans {
		spans[i].style |= bold
	}
	e.gap(size * 0.3)
	if e.opts.Outline {
		if title := plain(spans); title != "" && e.need(size*e.opts.LineHeight) {
			e.bookmark(level, title)
		}
	}
	e.paragraph(spans, size, false)
	e.gap(size * 0.3)
}

// bookmark adds an outline item pointing at the cursor, nested under the
// closest preceding heading of a lower level.
func (e *engine) bookmark(level int, title string) {
	for len(e.marks) > 0 && e.marks[len(e.marks)-1].level >= level {
		e.marks = e.marks[:len(e.marks)-1]
	}
	var bm *pdf.Bookmark
	if len(e.marks) == 0 {
		bm = e.doc.AddRootBookmark(title)
	} else {
		bm = e.marks[len(e.marks)-1].bm.AddChild(title)
	}
	bm.SetAction(e.doc.GoToAction(pdf.XYZ(e.page, e.left(), e.y, 0)))
	e.marks = append(e.marks, mark{level, bm})
}

func plain(spans []span) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.text)
		sb.WriteByte(' ')
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// displayed reports whether spans hold only display math, which is
// centered.
func displayed(spans []span) bool {
	n := 0
	for _, s := range spans {
		switch {
		case s.math != nil && s.display:
			n++
		case s.math != nil || strings.TrimSpace(s.text) != "":
			return false
		}
	}
	return n > 0
}

func hasContent(spans []span) bool {
	for _, s := range spans {
		if s.math != nil || strings.TrimSpace(s.text) != "" {
			return true
		}
	}
	return false
}
