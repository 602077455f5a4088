package content

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/scanner"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// ErrNotEnded is returned by Begin while a form or pattern entered with
// FormBegin or PatternBegin has not been left with End.
var ErrNotEnded = errors.New("content: nested content not ended")

type frame struct {
	s     *scanner.Scanner
	res   *sdf.Dict
	gs    GState
	stack []GState
	owner sdf.Obj

	ops     []sdf.Obj
	path    PathData
	cx, cy  float64
	sx, sy  float64
	clip    bool
	clipEO  bool
	pending []*Element
	// marked holds the MCID of each open marked content sequence, -1 for
	// sequences without one.
	marked []int
}

// Reader produces the elements of a page or form content stream in order.
// It is not safe for concurrent use.
type Reader struct {
	doc     *pdf.Doc
	sdf     *sdf.Doc
	log     observability.Logger
	frames  []*frame
	last    *Element
	changes GStateField
	fonts   map[interface{}]*Font
	depth   int
}

func NewReader(doc *pdf.Doc) *Reader {
	depth := doc.Limits().MaxXObjectDepth
	if depth <= 0 {
		depth = 20
	}
	return &Reader{
		doc:   doc,
		sdf:   doc.SDF(),
		log:   doc.Logger(),
		fonts: make(map[interface{}]*Font),
		depth: depth,
	}
}

// Begin starts reading the content of page. Reading restarts from the
// first element on every call.
func (r *Reader) Begin(ctx context.Context, page *pdf.Page) error {
	data, err := page.ContentBytes(ctx)
	if err != nil {
		return err
	}
	return r.BeginStream(data, page.ResourcesNoCreate())
}

// BeginStream starts reading data with resources res.
func (r *Reader) BeginStream(data []byte, res *sdf.Dict) error {
	if len(r.frames) > 1 {
		return ErrNotEnded
	}
	r.frames = []*frame{r.newFrame(data, res, NewGState(coords.Identity()), nil)}
	r.last = nil
	r.changes = 0
	return nil
}

// BeginForm starts reading the form XObject o as if it were drawn with
// ctm as the current transformation matrix. Annotation appearances are
// read this way.
func (r *Reader) BeginForm(ctx context.Context, o sdf.Obj, ctm coords.Matrix) error {
	if len(r.frames) > 1 {
		return ErrNotEnded
	}
	st := r.sdf.Stream(o)
	if st == nil {
		return sdf.Errorf("begin form", sdf.ErrCorrupt, "form is not a stream")
	}
	data, err := r.doc.DecodeStream(ctx, o)
	if err != nil {
		return err
	}
	m := coords.Identity()
	if v, ok := r.sdf.Numbers(st.Dict.Get("Matrix")); ok && len(v) == 6 {
		m = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
	}
	r.frames = []*frame{r.newFrame(data, r.sdf.Dict(st.Dict.Get("Resources")), NewGState(m.Multiply(ctm)), o)}
	r.last = nil
	r.changes = 0
	return nil
}

func (r *Reader) newFrame(data []byte, res *sdf.Dict, gs GState, owner sdf.Obj) *frame {
	lim := r.doc.Limits()
	return &frame{
		s: scanner.NewBytes(data, scanner.Config{
			Content:         true,
			MaxDepth:        lim.MaxNesting,
			MaxStringLength: lim.MaxStringLength,
			MaxInlineImage:  lim.MaxStreamLength,
		}),
		res:   res,
		gs:    gs,
		owner: owner,
	}
}

func (r *Reader) top() *frame {
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

// FormBegin descends into the form XObject of the element last returned
// by Next. Elements of the form follow until End.
func (r *Reader) FormBegin(ctx context.Context) error {
	e := r.last
	if e == nil || e.Type != ElementForm {
		return errors.New("content: FormBegin requires a form element")
	}
	for _, f := range r.frames {
		if f.owner != nil && sameObj(f.owner, e.XObject.Obj) {
			return sdf.Errorf("form begin", sdf.ErrCorrupt, "form /%s draws itself", e.XObject.Name)
		}
	}
	if len(r.frames) > r.depth {
		return sdf.Errorf("form begin", sdf.ErrCorrupt, "form nesting exceeds %d", r.depth)
	}
	st := r.sdf.Stream(e.XObject.Obj)
	if st == nil {
		return sdf.Errorf("form begin", sdf.ErrCorrupt, "form /%s is not a stream", e.XObject.Name)
	}
	data, err := r.doc.DecodeStream(ctx, e.XObject.Obj)
	if err != nil {
		return err
	}
	res := r.sdf.Dict(st.Dict.Get("Resources"))
	if res == nil {
		res = r.top().res
	}
	gs := e.State
	gs.CTM = e.FormMatrix().Multiply(gs.CTM)
	r.frames = append(r.frames, r.newFrame(data, res, gs, e.XObject.Obj))
	r.last = nil
	return nil
}

// PatternBegin descends into the tiling pattern of the current fill (or
// stroke) color. The pattern cell is read in pattern space mapped through
// the pattern matrix to the default space of the page.
func (r *Reader) PatternBegin(ctx context.Context, fill bool) error {
	f := r.top()
	if f == nil {
		return errors.New("content: PatternBegin before Begin")
	}
	c := f.gs.StrokeColor
	if fill {
		c = f.gs.FillColor
	}
	st := r.sdf.Stream(c.Pattern.Obj)
	if st == nil {
		return sdf.Errorf("pattern begin", sdf.ErrUnsupported, "current color is not a tiling pattern")
	}
	data, err := r.doc.DecodeStream(ctx, c.Pattern.Obj)
	if err != nil {
		return err
	}
	m := coords.Identity()
	if v, ok := r.sdf.Numbers(st.Dict.Get("Matrix")); ok && len(v) == 6 {
		m = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
	}
	res := r.sdf.Dict(st.Dict.Get("Resources"))
	if res == nil {
		res = f.res
	}
	gs := NewGState(m.Multiply(r.frames[0].gs.CTM))
	r.frames = append(r.frames, r.newFrame(data, res, gs, c.Pattern.Obj))
	r.last = nil
	return nil
}

// End leaves the innermost form or pattern. At the outermost level it
// ends reading.
func (r *Reader) End() error {
	if len(r.frames) <= 1 {
		r.frames = nil
		r.last = nil
		return nil
	}
	r.frames = r.frames[:len(r.frames)-1]
	r.last = nil
	return nil
}

// ClearChangeList resets the set of changed graphics state fields.
func (r *Reader) ClearChangeList() { r.changes = 0 }

// ChangesSince returns the graphics state fields changed since the last
// ClearChangeList.
func (r *Reader) ChangesSince() GStateField { return r.changes }

// Next returns the next element, or io.EOF at the end of the current
// stream.
func (r *Reader) Next() (*Element, error) {
	f := r.top()
	if f == nil {
		return nil, io.EOF
	}
	r.last = nil
	for {
		if len(f.pending) > 0 {
			e := f.pending[0]
			f.pending = f.pending[1:]
			r.last = e
			return e, nil
		}
		o, err := f.s.ReadObject()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, sdf.Errorf("read content", sdf.ErrCorrupt, "%v", err)
		}
		kw, ok := o.(scanner.Keyword)
		if !ok {
			f.ops = append(f.ops, o)
			continue
		}
		e, err := r.apply(f, string(kw))
		f.ops = f.ops[:0]
		if err != nil {
			return nil, err
		}
		if e != nil {
			r.last = e
			return e, nil
		}
	}
}

func (r *Reader) element(f *frame, t ElementType) *Element {
	return &Element{Type: t, State: f.gs, MCID: r.mcid(), doc: r.sdf, resources: f.res}
}

// mcid is the MCID of the innermost enclosing marked content sequence that
// has one, looking through form XObjects into the content that drew them.
func (r *Reader) mcid() int {
	for i := len(r.frames) - 1; i >= 0; i-- {
		m := r.frames[i].marked
		for k := len(m) - 1; k >= 0; k-- {
			if m[k] >= 0 {
				return m[k]
			}
		}
	}
	return -1
}

func (r *Reader) resource(f *frame, category sdf.Name, name sdf.Name) sdf.Obj {
	if f.res == nil {
		return nil
	}
	cat := r.sdf.Dict(f.res.Get(category))
	if cat == nil {
		return nil
	}
	o, ok := cat.Find(name)
	if !ok || sdf.IsNull(r.sdf.MustResolve(o)) {
		return nil
	}
	return o
}

func (r *Reader) font(o sdf.Obj) *Font {
	var key interface{} = o
	if _, isRef := o.(sdf.Ref); !isRef {
		d := r.sdf.Dict(o)
		if d == nil {
			return nil
		}
		key = d
	}
	if f, ok := r.fonts[key]; ok {
		return f
	}
	f, err := LoadFont(r.sdf, o)
	if err != nil {
		r.log.Debug("content: font not loaded", observability.Error("error", err))
		return nil
	}
	r.fonts[key] = f
	return f
}

// nums converts the operands to numbers; ok is false unless there are
// exactly n numbers.
func nums(ops []sdf.Obj, n int) ([]float64, bool) {
	if len(ops) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, o := range ops {
		v, ok := sdf.Number(o)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (r *Reader) change(f GStateField) { r.changes |= f }

func (r *Reader) apply(f *frame, op string) (*Element, error) {
	gs := &f.gs
	switch op {
	case "q":
		f.stack = append(f.stack, *gs)
		return r.element(f, ElementGroupBegin), nil
	case "Q":
		if len(f.stack) == 0 {
			r.log.Debug("content: unbalanced Q ignored")
			return nil, nil
		}
		before := *gs
		*gs = f.stack[len(f.stack)-1]
		f.stack = f.stack[:len(f.stack)-1]
		r.change(gs.diff(&before))
		return r.element(f, ElementGroupEnd), nil
	case "cm":
		if v, ok := nums(f.ops, 6); ok {
			gs.CTM = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.Multiply(gs.CTM)
			r.change(FieldCTM)
		}
	case "w":
		if v, ok := nums(f.ops, 1); ok {
			gs.LineWidth = v[0]
			r.change(FieldLineWidth)
		}
	case "J":
		if v, ok := nums(f.ops, 1); ok {
			gs.LineCap = LineCap(v[0])
			r.change(FieldLineCap)
		}
	case "j":
		if v, ok := nums(f.ops, 1); ok {
			gs.LineJoin = LineJoin(v[0])
			r.change(FieldLineJoin)
		}
	case "M":
		if v, ok := nums(f.ops, 1); ok {
			gs.MiterLimit = v[0]
			r.change(FieldMiterLimit)
		}
	case "d":
		if len(f.ops) == 2 {
			arr, _ := sdf.Numbers(asArray(f.ops[0]))
			phase, _ := sdf.Number(f.ops[1])
			gs.SetDash(arr, phase)
			r.change(FieldDash)
		}
	case "ri":
		if len(f.ops) == 1 {
			if n, ok := f.ops[0].(sdf.Name); ok {
				gs.Intent = n
				r.change(FieldRenderingIntent)
			}
		}
	case "i":
		if v, ok := nums(f.ops, 1); ok {
			gs.Flatness = v[0]
			r.change(FieldFlatness)
		}
	case "gs":
		if len(f.ops) == 1 {
			if n, ok := f.ops[0].(sdf.Name); ok {
				if o := r.resource(f, "ExtGState", n); o != nil {
					r.change(gs.applyExtGState(r.sdf, Resource{Name: n, Obj: o}, r.font))
				}
			}
		}

	case "CS", "cs":
		if len(f.ops) == 1 {
			cs, err := ResolveColorSpace(r.sdf, f.res, f.ops[0])
			if err != nil {
				r.log.Debug("content: color space", observability.Error("error", err))
				return nil, nil
			}
			if op == "cs" {
				gs.SetFillColor(cs)
				r.change(FieldFillColorSpace | FieldFillColor)
			} else {
				gs.SetStrokeColor(cs)
				r.change(FieldStrokeColorSpace | FieldStrokeColor)
			}
		}
	case "sc", "scn", "SC", "SCN":
		c := r.colorOperands(f)
		if op[0] == 's' {
			gs.FillColor = c
			r.change(FieldFillColor)
		} else {
			gs.StrokeColor = c
			r.change(FieldStrokeColor)
		}
	case "g", "G", "rg", "RG", "k", "K":
		cs := DeviceGray
		switch op {
		case "rg", "RG":
			cs = DeviceRGB
		case "k", "K":
			cs = DeviceCMYK
		}
		v, ok := nums(f.ops, cs.N)
		if !ok {
			return nil, nil
		}
		if op[len(op)-1] >= 'a' {
			gs.SetFillColor(cs, v...)
			r.change(FieldFillColorSpace | FieldFillColor)
		} else {
			gs.SetStrokeColor(cs, v...)
			r.change(FieldStrokeColorSpace | FieldStrokeColor)
		}

	case "m":
		if v, ok := nums(f.ops, 2); ok {
			f.path.Ops = append(f.path.Ops, MoveTo)
			f.path.Points = append(f.path.Points, v...)
			f.cx, f.cy, f.sx, f.sy = v[0], v[1], v[0], v[1]
		}
	case "l":
		if v, ok := nums(f.ops, 2); ok {
			f.path.Ops = append(f.path.Ops, LineTo)
			f.path.Points = append(f.path.Points, v...)
			f.cx, f.cy = v[0], v[1]
		}
	case "c", "v", "y":
		n := 6
		if op != "c" {
			n = 4
		}
		v, ok := nums(f.ops, n)
		if !ok {
			return nil, nil
		}
		switch op {
		case "v":
			v = []float64{f.cx, f.cy, v[0], v[1], v[2], v[3]}
		case "y":
			v = []float64{v[0], v[1], v[2], v[3], v[2], v[3]}
		}
		f.path.Ops = append(f.path.Ops, CurveTo)
		f.path.Points = append(f.path.Points, v...)
		f.cx, f.cy = v[4], v[5]
	case "re":
		if v, ok := nums(f.ops, 4); ok {
			f.path.Ops = append(f.path.Ops, RectOp)
			f.path.Points = append(f.path.Points, v...)
			f.cx, f.cy, f.sx, f.sy = v[0], v[1], v[0], v[1]
		}
	case "h":
		f.path.Ops = append(f.path.Ops, ClosePath)
		f.cx, f.cy = f.sx, f.sy
	case "W", "W*":
		f.clip = true
		f.clipEO = op == "W*"
	case "S", "s", "f", "F", "f*", "B", "B*", "b", "b*", "n":
		return r.paint(f, op), nil

	case "BT":
		gs.TextMatrix = coords.Identity()
		gs.TextLineMatrix = coords.Identity()
		r.change(FieldTextMatrix)
		return r.element(f, ElementTextBegin), nil
	case "ET":
		return r.element(f, ElementTextEnd), nil
	case "Tc":
		if v, ok := nums(f.ops, 1); ok {
			gs.CharSpacing = v[0]
			r.change(FieldCharSpacing)
		}
	case "Tw":
		if v, ok := nums(f.ops, 1); ok {
			gs.WordSpacing = v[0]
			r.change(FieldWordSpacing)
		}
	case "Tz":
		if v, ok := nums(f.ops, 1); ok {
			gs.HorizScale = v[0]
			r.change(FieldHorizScale)
		}
	case "TL":
		if v, ok := nums(f.ops, 1); ok {
			gs.Leading = v[0]
			r.change(FieldLeading)
		}
	case "Ts":
		if v, ok := nums(f.ops, 1); ok {
			gs.Rise = v[0]
			r.change(FieldRise)
		}
	case "Tr":
		if v, ok := nums(f.ops, 1); ok {
			gs.RenderMode = TextRenderMode(v[0])
			r.change(FieldRenderMode)
		}
	case "Tf":
		if len(f.ops) != 2 {
			return nil, nil
		}
		name, _ := f.ops[0].(sdf.Name)
		size, _ := sdf.Number(f.ops[1])
		gs.FontSize = size
		gs.FontName = name
		if o := r.resource(f, "Font", name); o != nil {
			gs.Font = r.font(o)
		} else {
			gs.Font = nil
			r.log.Debug("content: font resource missing", observability.String("font", string(name)))
		}
		r.change(FieldFont)
	case "Td", "TD":
		v, ok := nums(f.ops, 2)
		if !ok {
			return nil, nil
		}
		if op == "TD" {
			gs.Leading = -v[1]
			r.change(FieldLeading)
		}
		return r.newLine(f, v[0], v[1]), nil
	case "T*":
		return r.newLine(f, 0, -gs.Leading), nil
	case "Tm":
		if v, ok := nums(f.ops, 6); ok {
			gs.TextMatrix = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
			gs.TextLineMatrix = gs.TextMatrix
			r.change(FieldTextMatrix)
		}
	case "Tj":
		if len(f.ops) == 1 {
			if s, ok := f.ops[0].(sdf.String); ok {
				return r.show(f, s.Value), nil
			}
		}
	case "'":
		if len(f.ops) == 1 {
			if s, ok := f.ops[0].(sdf.String); ok {
				r.newLine(f, 0, -gs.Leading)
				return r.show(f, s.Value), nil
			}
		}
	case "\"":
		if len(f.ops) == 3 {
			aw, _ := sdf.Number(f.ops[0])
			ac, _ := sdf.Number(f.ops[1])
			s, ok := f.ops[2].(sdf.String)
			if !ok {
				return nil, nil
			}
			gs.WordSpacing, gs.CharSpacing = aw, ac
			r.change(FieldWordSpacing | FieldCharSpacing)
			r.newLine(f, 0, -gs.Leading)
			return r.show(f, s.Value), nil
		}
	case "TJ":
		if len(f.ops) == 1 {
			if arr, ok := f.ops[0].(*sdf.Array); ok {
				r.showArray(f, arr)
			}
		}

	case "Do":
		if len(f.ops) != 1 {
			return nil, nil
		}
		name, _ := f.ops[0].(sdf.Name)
		o := r.resource(f, "XObject", name)
		if o == nil {
			r.log.Debug("content: XObject missing", observability.String("name", string(name)))
			return nil, nil
		}
		st, _ := r.sdf.Dict(o).NameValue("Subtype")
		var e *Element
		switch st {
		case "Image":
			e = r.element(f, ElementImage)
		case "Form":
			e = r.element(f, ElementForm)
		default:
			return nil, nil
		}
		e.XObject = Resource{Name: name, Obj: o}
		return e, nil
	case "sh":
		if len(f.ops) == 1 {
			name, _ := f.ops[0].(sdf.Name)
			if o := r.resource(f, "Shading", name); o != nil {
				e := r.element(f, ElementShading)
				e.Shading = Resource{Name: name, Obj: o}
				return e, nil
			}
		}
	case "BI":
		return r.inlineImage(f)

	case "BMC", "MP":
		t := ElementMarkedContentBegin
		if op == "MP" {
			t = ElementMarkedContentPoint
		} else {
			f.marked = append(f.marked, -1)
		}
		e := r.element(f, t)
		if len(f.ops) > 0 {
			e.Tag, _ = f.ops[0].(sdf.Name)
		}
		return e, nil
	case "BDC", "DP":
		t := ElementMarkedContentBegin
		if op == "DP" {
			t = ElementMarkedContentPoint
		}
		var tag sdf.Name
		var props Resource
		var inline *sdf.Dict
		if len(f.ops) == 2 {
			tag, _ = f.ops[0].(sdf.Name)
			switch p := f.ops[1].(type) {
			case sdf.Name:
				props = Resource{Name: p, Obj: r.resource(f, "Properties", p)}
			case *sdf.Dict:
				inline = p
			}
		}
		if t == ElementMarkedContentBegin {
			mcid := -1
			d := inline
			if d == nil {
				d = r.sdf.Dict(props.Obj)
			}
			if d != nil {
				if n, ok := r.sdf.Int(d.Get("MCID")); ok {
					mcid = int(n)
				}
			}
			f.marked = append(f.marked, mcid)
		}
		e := r.element(f, t)
		e.Tag, e.Properties, e.Inline = tag, props, inline
		return e, nil
	case "EMC":
		if n := len(f.marked); n > 0 {
			f.marked = f.marked[:n-1]
		}
		return r.element(f, ElementMarkedContentEnd), nil

	case "d0", "d1", "BX", "EX":
	default:
		r.log.Debug("content: unknown operator", observability.String("op", op))
	}
	return nil, nil
}

func asArray(o sdf.Obj) *sdf.Array {
	a, _ := o.(*sdf.Array)
	return a
}

// colorOperands reads sc/scn operands: components and an optional
// trailing pattern name.
func (r *Reader) colorOperands(f *frame) Color {
	var c Color
	for _, o := range f.ops {
		switch v := o.(type) {
		case sdf.Name:
			c.Pattern = Resource{Name: v, Obj: r.resource(f, "Pattern", v)}
		default:
			if n, ok := sdf.Number(v); ok {
				c.Comps = append(c.Comps, n)
			}
		}
	}
	return c
}

func (r *Reader) paint(f *frame, op string) *Element {
	e := r.element(f, ElementPath)
	e.Path = f.path
	if op == "s" || op == "b" || op == "b*" {
		e.Path.Ops = append(e.Path.Ops, ClosePath)
	}
	switch op {
	case "S", "s":
		e.Stroked = true
	case "f", "F":
		e.Filled = true
	case "f*":
		e.Filled, e.FillRule = true, EvenOdd
	case "B", "b":
		e.Filled, e.Stroked = true, true
	case "B*", "b*":
		e.Filled, e.Stroked, e.FillRule = true, true, EvenOdd
	}
	if f.clip {
		e.Clip = true
		if f.clipEO {
			e.ClipRule = EvenOdd
		}
	}
	f.path = PathData{}
	f.clip, f.clipEO = false, false
	return e
}

func (r *Reader) newLine(f *frame, dx, dy float64) *Element {
	gs := &f.gs
	gs.TextLineMatrix = coords.Translate(dx, dy).Multiply(gs.TextLineMatrix)
	gs.TextMatrix = gs.TextLineMatrix
	r.change(FieldTextMatrix)
	e := r.element(f, ElementTextNewLine)
	e.DX, e.DY = dx, dy
	return e
}

func (r *Reader) show(f *frame, b []byte) *Element {
	e := r.element(f, ElementText)
	e.Text = b
	e.End = e.advance(f.gs.TextMatrix)
	f.gs.TextMatrix = e.End
	r.change(FieldTextMatrix)
	return e
}

// showArray queues one text element per string of a TJ array; numbers
// move the text matrix between them.
func (r *Reader) showArray(f *frame, arr *sdf.Array) {
	gs := &f.gs
	for _, it := range arr.Items() {
		switch v := it.(type) {
		case sdf.String:
			if len(v.Value) > 0 {
				f.pending = append(f.pending, r.show(f, v.Value))
			}
		default:
			if n, ok := sdf.Number(v); ok {
				tx := -n / 1000 * gs.FontSize * gs.HorizScale / 100
				gs.TextMatrix = coords.Translate(tx, 0).Multiply(gs.TextMatrix)
			}
		}
	}
}

func (r *Reader) inlineImage(f *frame) (*Element, error) {
	dict := sdf.NewDict()
	for {
		o, err := f.s.ReadObject()
		if err != nil {
			return nil, sdf.Errorf("inline image", sdf.ErrCorrupt, "%v", err)
		}
		if kw, ok := o.(scanner.Keyword); ok {
			if kw != "ID" {
				return nil, sdf.Errorf("inline image", sdf.ErrCorrupt, "unexpected %q in image dictionary", string(kw))
			}
			break
		}
		key, ok := o.(sdf.Name)
		if !ok {
			return nil, sdf.Errorf("inline image", sdf.ErrCorrupt, "image dictionary key is %s", o.Type())
		}
		val, err := f.s.ReadObject()
		if err != nil {
			return nil, sdf.Errorf("inline image", sdf.ErrCorrupt, "%v", err)
		}
		dict.Set(key, val)
	}
	data, err := f.s.ReadInlineImage()
	if err != nil {
		return nil, sdf.Errorf("inline image", sdf.ErrCorrupt, "%v", err)
	}
	e := r.element(f, ElementInlineImage)
	e.InlineDict, e.InlineData = dict, data
	return e, nil
}

// ReadAll returns every element of the current stream, descending into
// forms when descend is set.
func (r *Reader) ReadAll(ctx context.Context, descend bool) ([]*Element, error) {
	var out []*Element
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			if len(r.frames) > 1 {
				if err := r.End(); err != nil {
					return out, err
				}
				continue
			}
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
		if descend && e.Type == ElementForm {
			if err := r.FormBegin(ctx); err != nil {
				return out, fmt.Errorf("form /%s: %w", e.XObject.Name, err)
			}
		}
	}
}
