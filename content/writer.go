package content

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Placement selects how written content is combined with the content a
// page already has.
type Placement int

const (
	// Overlay draws after the existing content, which is wrapped in q/Q so
	// its state does not leak.
	Overlay Placement = iota
	// Underlay draws before the existing content.
	Underlay
	// Replacement discards the existing content.
	Replacement
)

// Writer serializes elements into a content stream, emitting only the
// graphics state operators needed to reach each element's state.
type Writer struct {
	doc       *sdf.Doc
	page      *pdf.Page
	form      *sdf.Stream
	placement Placement
	compress  bool

	buf    bytes.Buffer
	out    *bufio.Writer
	ext    io.Writer
	res    *sdf.Dict
	cur    GState
	stack  []GState
	inText bool
	open   bool

	fonts     []*Font
	importers map[*sdf.Doc]*sdf.Importer
	err       error
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) reset(doc *sdf.Doc, res *sdf.Dict) {
	w.doc = doc
	w.res = res
	w.buf.Reset()
	w.out = bufio.NewWriter(&w.buf)
	w.ext = nil
	w.page, w.form = nil, nil
	w.cur = NewGState(coords.Identity())
	w.stack = nil
	w.inText = false
	w.fonts = nil
	w.importers = make(map[*sdf.Doc]*sdf.Importer)
	w.err = nil
	w.open = true
}

// Begin starts writing content for page.
func (w *Writer) Begin(page *pdf.Page, placement Placement, compress bool) error {
	if w.open {
		return errors.New("content: writer already begun")
	}
	w.reset(page.Doc().SDF(), page.Resources())
	w.page = page
	w.placement = placement
	w.compress = compress
	return nil
}

// BeginStream starts writing raw content to out. Resources referenced by
// written elements are added to res.
func (w *Writer) BeginStream(doc *sdf.Doc, out io.Writer, res *sdf.Dict) error {
	if w.open {
		return errors.New("content: writer already begun")
	}
	if res == nil {
		res = sdf.NewDict()
	}
	w.reset(doc, res)
	w.ext = out
	w.out = bufio.NewWriter(out)
	return nil
}

// BeginForm starts writing a new form XObject with the given bounding box.
// End returns its reference.
func (w *Writer) BeginForm(doc *sdf.Doc, bbox coords.Rect, compress bool) error {
	if w.open {
		return errors.New("content: writer already begun")
	}
	dict := sdf.NewDict()
	dict.PutName("Type", "XObject")
	dict.PutName("Subtype", "Form")
	dict.PutRect("BBox", bbox.X1, bbox.Y1, bbox.X2, bbox.Y2)
	res := dict.PutDict("Resources")
	w.reset(doc, res)
	w.form = sdf.NewStream(dict, nil)
	w.compress = compress
	return nil
}

// Resources returns the resource dictionary written elements are added to.
func (w *Writer) Resources() *sdf.Dict { return w.res }

// End finishes the content and attaches it. For pages it returns the new
// content stream, for forms the form XObject.
func (w *Writer) End() (sdf.Ref, error) {
	if !w.open {
		return sdf.Ref{}, errors.New("content: writer not begun")
	}
	w.open = false
	if w.inText {
		w.op("ET")
	}
	for range w.stack {
		w.op("Q")
	}
	w.stack = nil
	if err := w.out.Flush(); err != nil && w.err == nil {
		w.err = err
	}
	for _, f := range w.fonts {
		if err := f.Flush(); err != nil && w.err == nil {
			w.err = err
		}
	}
	if w.err != nil {
		return sdf.Ref{}, w.err
	}
	if w.ext != nil {
		return sdf.Ref{}, nil
	}
	data := append([]byte(nil), w.buf.Bytes()...)
	if w.form != nil {
		if err := w.setData(w.form, data); err != nil {
			return sdf.Ref{}, err
		}
		return w.doc.CreateIndirect(w.form), nil
	}
	var ref sdf.Ref
	switch w.placement {
	case Replacement:
		st, err := w.stream(data)
		if err != nil {
			return ref, err
		}
		ref = w.page.SetContents(st)
	case Underlay:
		st, err := w.stream(wrap(data))
		if err != nil {
			return ref, err
		}
		ref = w.page.PrependContents(st)
	default:
		if len(w.page.ContentStreams()) > 0 {
			w.page.PrependContents(sdf.NewStream(sdf.NewDict(), []byte("q\n")))
			data = append([]byte("Q\n"), data...)
		}
		st, err := w.stream(data)
		if err != nil {
			return ref, err
		}
		ref = w.page.AppendContents(st)
	}
	return ref, nil
}

func wrap(data []byte) []byte {
	out := make([]byte, 0, len(data)+6)
	out = append(out, "q\n"...)
	out = append(out, data...)
	return append(out, "\nQ\n"...)
}

func (w *Writer) stream(data []byte) (*sdf.Stream, error) {
	st := sdf.NewStream(sdf.NewDict(), nil)
	return st, w.setData(st, data)
}

func (w *Writer) setData(st *sdf.Stream, data []byte) error {
	if w.compress {
		return filters.SetStreamData(st, data, "FlateDecode")
	}
	return filters.SetStreamData(st, data)
}

func (w *Writer) write(s string) {
	if w.err == nil {
		_, w.err = w.out.WriteString(s)
	}
}

func (w *Writer) op(s string) {
	w.write(s)
	w.write("\n")
}

func (w *Writer) num(v float64) {
	w.write(sdf.FormatReal(v))
	w.write(" ")
}

func (w *Writer) nums(v ...float64) {
	for _, x := range v {
		w.num(x)
	}
}

func (w *Writer) obj(o sdf.Obj) {
	w.write(string(sdf.Bytes(o)))
	w.write(" ")
}

func (w *Writer) endText() {
	if w.inText {
		w.op("ET")
		w.inText = false
	}
}

func (w *Writer) beginText() {
	if !w.inText {
		w.op("BT")
		w.inText = true
		w.cur.TextMatrix = coords.Identity()
		w.cur.TextLineMatrix = coords.Identity()
	}
}

// WriteElement appends e.
func (w *Writer) WriteElement(e *Element) error {
	if !w.open {
		return errors.New("content: writer not begun")
	}
	switch e.Type {
	case ElementGroupBegin:
		w.endText()
		w.op("q")
		w.stack = append(w.stack, w.cur)
	case ElementGroupEnd:
		if len(w.stack) == 0 {
			return errors.New("content: group end without group begin")
		}
		w.endText()
		w.op("Q")
		w.cur = w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
	case ElementTextBegin:
		w.endText()
		w.beginText()
	case ElementTextEnd:
		w.endText()
	case ElementTextNewLine:
		w.syncCTM(e)
		w.beginText()
		w.nums(e.DX, e.DY)
		w.op("Td")
		w.cur.TextLineMatrix = coords.Translate(e.DX, e.DY).Multiply(w.cur.TextLineMatrix)
		w.cur.TextMatrix = w.cur.TextLineMatrix
	case ElementText:
		w.writeText(e)
	case ElementPath:
		w.endText()
		w.sync(e)
		w.writePath(e)
	case ElementImage, ElementForm:
		w.endText()
		w.sync(e)
		cat, prefix := sdf.Name("XObject"), "Im"
		if e.Type == ElementForm {
			prefix = "Fm"
		}
		name := w.resource(e.doc, cat, prefix, e.XObject)
		w.obj(name)
		w.op("Do")
	case ElementInlineImage:
		w.endText()
		w.sync(e)
		w.writeInlineImage(e)
	case ElementShading:
		w.endText()
		w.sync(e)
		w.obj(w.resource(e.doc, "Shading", "Sh", e.Shading))
		w.op("sh")
	case ElementMarkedContentBegin, ElementMarkedContentPoint:
		tag := e.Tag
		if tag == "" {
			tag = "Span"
		}
		w.obj(tag)
		suffix := "MC"
		if e.Type == ElementMarkedContentPoint {
			suffix = "P"
		}
		switch {
		case e.Inline != nil:
			w.obj(w.importObj(e.doc, e.Inline))
			w.op(mcOp("D", suffix))
		case !e.Properties.IsZero():
			w.obj(w.resource(e.doc, "Properties", "MC", e.Properties))
			w.op(mcOp("D", suffix))
		default:
			w.op(mcOp("B", suffix))
		}
	case ElementMarkedContentEnd:
		w.op("EMC")
	case ElementNull:
	default:
		return fmt.Errorf("content: cannot write %s element", e.Type)
	}
	return w.err
}

func mcOp(kind, suffix string) string {
	switch {
	case suffix == "P" && kind == "D":
		return "DP"
	case suffix == "P":
		return "MP"
	case kind == "D":
		return "BDC"
	}
	return "BMC"
}

// WritePlacedElement writes e inside its own q/Q pair so its state
// changes do not affect later elements.
func (w *Writer) WritePlacedElement(e *Element) error {
	if !w.open {
		return errors.New("content: writer not begun")
	}
	w.endText()
	w.op("q")
	saved := w.cur
	if err := w.WriteElement(e); err != nil {
		return err
	}
	w.endText()
	w.op("Q")
	w.cur = saved
	return w.err
}

// WriteGState emits the operators that bring the current state to the
// state of e without drawing anything.
func (w *Writer) WriteGState(e *Element) error {
	if !w.open {
		return errors.New("content: writer not begun")
	}
	w.sync(e)
	if w.inText {
		w.syncText(e)
	}
	return w.err
}

// WriteString appends raw content operators.
func (w *Writer) WriteString(s string) error {
	if !w.open {
		return errors.New("content: writer not begun")
	}
	w.endText()
	w.op(s)
	return w.err
}

func (w *Writer) syncCTM(e *Element) {
	target := e.State.CTM
	if target == w.cur.CTM {
		return
	}
	inv, err := w.cur.CTM.Inverse()
	if err != nil {
		return
	}
	m := target.Multiply(inv)
	w.endText()
	w.nums(m[:]...)
	w.op("cm")
	w.cur.CTM = target
}

// sync emits the non-text state of e.
func (w *Writer) sync(e *Element) {
	w.syncCTM(e)
	s, c := &e.State, &w.cur
	if !s.ExtGState.IsZero() && !sameObj(s.ExtGState.Obj, c.ExtGState.Obj) {
		w.obj(w.resource(e.doc, "ExtGState", "GS", s.ExtGState))
		w.op("gs")
		c.applyExtGState(e.doc, s.ExtGState, func(sdf.Obj) *Font { return nil })
	}
	if s.FillAlpha != c.FillAlpha || s.StrokeAlpha != c.StrokeAlpha || s.BlendMode != c.BlendMode {
		gs := sdf.NewDict()
		gs.PutName("Type", "ExtGState")
		gs.PutReal("ca", s.FillAlpha)
		gs.PutReal("CA", s.StrokeAlpha)
		gs.PutName("BM", string(s.BlendMode))
		w.obj(w.resource(w.doc, "ExtGState", "GS", Resource{Obj: gs}))
		w.op("gs")
		c.FillAlpha, c.StrokeAlpha, c.BlendMode = s.FillAlpha, s.StrokeAlpha, s.BlendMode
	}
	if s.LineWidth != c.LineWidth {
		w.num(s.LineWidth)
		w.op("w")
		c.LineWidth = s.LineWidth
	}
	if s.LineCap != c.LineCap {
		w.num(float64(s.LineCap))
		w.op("J")
		c.LineCap = s.LineCap
	}
	if s.LineJoin != c.LineJoin {
		w.num(float64(s.LineJoin))
		w.op("j")
		c.LineJoin = s.LineJoin
	}
	if s.MiterLimit != c.MiterLimit {
		w.num(s.MiterLimit)
		w.op("M")
		c.MiterLimit = s.MiterLimit
	}
	if !floatsEqual(s.Dash, c.Dash) || s.DashPhase != c.DashPhase {
		w.write("[")
		for i, v := range s.Dash {
			if i > 0 {
				w.write(" ")
			}
			w.write(sdf.FormatReal(v))
		}
		w.write("] ")
		w.num(s.DashPhase)
		w.op("d")
		c.SetDash(s.Dash, s.DashPhase)
	}
	if s.Intent != c.Intent && s.Intent != "" {
		w.obj(s.Intent)
		w.op("ri")
		c.Intent = s.Intent
	}
	if s.Flatness != c.Flatness {
		w.num(s.Flatness)
		w.op("i")
		c.Flatness = s.Flatness
	}
	w.syncColor(e, true)
	w.syncColor(e, false)
}

func (w *Writer) syncColor(e *Element, fill bool) {
	s, c := &e.State, &w.cur
	space, color := s.StrokeSpace, s.StrokeColor
	cspace, ccolor := &c.StrokeSpace, &c.StrokeColor
	if fill {
		space, color = s.FillSpace, s.FillColor
		cspace, ccolor = &c.FillSpace, &c.FillColor
	}
	if space.equal(*cspace) && color.equal(*ccolor) {
		return
	}
	if space.Obj == nil && color.Pattern.IsZero() {
		var name string
		switch space.Name {
		case "DeviceGray":
			name = "g"
		case "DeviceRGB":
			name = "rg"
		case "DeviceCMYK":
			name = "k"
		}
		if name != "" && len(color.Comps) == space.N {
			w.nums(color.Comps...)
			if fill {
				w.op(name)
			} else {
				w.op(upper(name))
			}
			*cspace, *ccolor = space, color
			return
		}
	}
	if !space.equal(*cspace) {
		if space.Obj == nil {
			w.obj(space.Name)
		} else {
			w.obj(w.resource(e.doc, "ColorSpace", "CS", Resource{Name: space.Name, Obj: space.Obj}))
		}
		if fill {
			w.op("cs")
		} else {
			w.op("CS")
		}
	}
	w.nums(color.Comps...)
	if !color.Pattern.IsZero() {
		w.obj(w.resource(e.doc, "Pattern", "P", color.Pattern))
	}
	if fill {
		w.op("scn")
	} else {
		w.op("SCN")
	}
	*cspace, *ccolor = space, color
}

func upper(op string) string {
	b := []byte(op)
	b[0] -= 'a' - 'A'
	return string(b)
}

func (w *Writer) syncText(e *Element) {
	s, c := &e.State, &w.cur
	if s.Font != nil && (!s.Font.same(c.Font) || s.FontSize != c.FontSize) {
		w.obj(w.font(e.doc, s))
		w.num(s.FontSize)
		w.op("Tf")
		c.Font, c.FontSize = s.Font, s.FontSize
	}
	set := func(v float64, cv *float64, op string) {
		if v != *cv {
			w.num(v)
			w.op(op)
			*cv = v
		}
	}
	set(s.CharSpacing, &c.CharSpacing, "Tc")
	set(s.WordSpacing, &c.WordSpacing, "Tw")
	set(s.HorizScale, &c.HorizScale, "Tz")
	set(s.Leading, &c.Leading, "TL")
	set(s.Rise, &c.Rise, "Ts")
	if s.RenderMode != c.RenderMode {
		w.num(float64(s.RenderMode))
		w.op("Tr")
		c.RenderMode = s.RenderMode
	}
}

func (w *Writer) font(doc *sdf.Doc, s *GState) sdf.Name {
	f := s.Font
	if f.uni != nil {
		found := false
		for _, o := range w.fonts {
			found = found || o == f
		}
		if !found {
			w.fonts = append(w.fonts, f)
		}
	}
	if doc == nil {
		doc = f.doc
	}
	return w.resource(doc, "Font", "F", Resource{Name: s.FontName, Obj: f.Obj})
}

func (w *Writer) writeText(e *Element) {
	w.syncCTM(e)
	w.beginText()
	w.sync(e)
	w.syncText(e)
	if e.State.TextMatrix != w.cur.TextMatrix {
		w.nums(e.State.TextMatrix[:]...)
		w.op("Tm")
		w.cur.TextMatrix = e.State.TextMatrix
		w.cur.TextLineMatrix = e.State.TextMatrix
	}
	w.obj(sdf.HexStr(e.Text))
	w.op("Tj")
	end := e.End
	if end == (coords.Matrix{}) {
		end = e.advance(e.State.TextMatrix)
	}
	w.cur.TextMatrix = end
}

func (w *Writer) writePath(e *Element) {
	e.Path.Each(func(op PathOp, p []float64) {
		w.nums(p...)
		switch op {
		case MoveTo:
			w.op("m")
		case LineTo:
			w.op("l")
		case CurveTo:
			w.op("c")
		case RectOp:
			w.op("re")
		case ClosePath:
			w.op("h")
		}
	})
	if e.Clip {
		if e.ClipRule == EvenOdd {
			w.op("W*")
		} else {
			w.op("W")
		}
	}
	switch {
	case e.Filled && e.Stroked:
		if e.FillRule == EvenOdd {
			w.op("B*")
		} else {
			w.op("B")
		}
	case e.Filled:
		if e.FillRule == EvenOdd {
			w.op("f*")
		} else {
			w.op("f")
		}
	case e.Stroked:
		w.op("S")
	default:
		w.op("n")
	}
}

var deviceAbbrev = map[sdf.Name]bool{
	"G": true, "RGB": true, "CMYK": true, "I": true,
	"DeviceGray": true, "DeviceRGB": true, "DeviceCMYK": true, "Indexed": true,
}

func (w *Writer) writeInlineImage(e *Element) {
	w.op("BI")
	for _, k := range e.InlineDict.Keys() {
		v := e.InlineDict.Get(k)
		if k == "CS" || k == "ColorSpace" {
			if n, ok := v.(sdf.Name); ok && !deviceAbbrev[n] && e.resources != nil {
				if o := e.doc.Dict(e.resources.Get("ColorSpace")).Get(n); !sdf.IsNull(o) {
					v = w.resource(e.doc, "ColorSpace", "CS", Resource{Name: n, Obj: o})
				}
			}
		}
		w.obj(k)
		w.obj(v)
		w.write("\n")
	}
	w.write("ID ")
	if w.err == nil {
		_, w.err = w.out.Write(e.InlineData)
	}
	w.write("\n")
	w.op("EI")
}

func (w *Writer) importObj(src *sdf.Doc, o sdf.Obj) sdf.Obj {
	if src == nil || src == w.doc {
		return o
	}
	im, ok := w.importers[src]
	if !ok {
		im = sdf.NewImporter(w.doc, src)
		w.importers[src] = im
	}
	out, err := im.Import(o)
	if err != nil {
		if w.err == nil {
			w.err = err
		}
		return sdf.Null{}
	}
	return out
}

// resource returns the name under which r is registered in the writer's
// resource category, adding it when missing. Objects of other documents
// are imported first; names are renamed when they collide.
func (w *Writer) resource(src *sdf.Doc, category sdf.Name, prefix string, r Resource) sdf.Name {
	obj := w.importObj(src, r.Obj)
	cat := w.doc.Dict(w.res.Get(category))
	if cat == nil {
		cat = w.res.PutDict(category)
	}
	for _, k := range cat.Keys() {
		if sameObj(cat.Get(k), obj) {
			return k
		}
	}
	name := r.Name
	if name == "" || cat.Has(name) {
		for i := 0; ; i++ {
			name = sdf.Name(prefix + strconv.Itoa(i))
			if !cat.Has(name) {
				break
			}
		}
	}
	cat.Set(name, obj)
	return name
}
