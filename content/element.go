// Package content reads, writes and builds page content as a sequence of
// elements: paths, text runs, images, forms, shadings and the group and
// marked-content brackets between them.
package content

import (
	"math"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// ElementType is the kind of an Element.
type ElementType int

const (
	ElementNull ElementType = iota
	ElementPath
	ElementTextBegin
	ElementTextEnd
	ElementText
	ElementTextNewLine
	ElementImage
	ElementInlineImage
	ElementForm
	ElementShading
	ElementGroupBegin
	ElementGroupEnd
	ElementMarkedContentBegin
	ElementMarkedContentEnd
	ElementMarkedContentPoint
)

var elementNames = [...]string{
	"null", "path", "text_begin", "text_end", "text", "text_new_line", "image",
	"inline_image", "form", "shading", "group_begin", "group_end",
	"marked_content_begin", "marked_content_end", "marked_content_point",
}

func (t ElementType) String() string {
	if int(t) < len(elementNames) {
		return elementNames[t]
	}
	return "unknown"
}

// PathOp is a path construction operator.
type PathOp byte

const (
	MoveTo PathOp = iota
	LineTo
	CurveTo
	RectOp
	ClosePath
)

// operands returns how many numbers the operator consumes.
func (op PathOp) operands() int {
	switch op {
	case MoveTo, LineTo:
		return 2
	case CurveTo:
		return 6
	case RectOp:
		return 4
	}
	return 0
}

// PathData holds path operators and their coordinates in user space
// before the CTM is applied. Points holds the operands of all operators
// in order.
type PathData struct {
	Ops    []PathOp
	Points []float64
}

// Each calls fn for every operator with its operands.
func (p PathData) Each(fn func(op PathOp, pts []float64)) {
	i := 0
	for _, op := range p.Ops {
		n := op.operands()
		if i+n > len(p.Points) {
			return
		}
		fn(op, p.Points[i:i+n])
		i += n
	}
}

// FillRule selects the insideness rule for fills and clips.
type FillRule int

const (
	NonZero FillRule = iota
	EvenOdd
)

// Element is one decoded content operation with the graphics state it
// is drawn in.
type Element struct {
	Type  ElementType
	State GState

	// Path elements.
	Path     PathData
	Filled   bool
	Stroked  bool
	Clip     bool
	FillRule FillRule
	ClipRule FillRule

	// Text elements. Text is the string operand as shown; End is the text
	// matrix after it.
	Text []byte
	End  coords.Matrix

	// TextNewLine offset.
	DX, DY float64

	// Image, Form and Shading elements reference a resource.
	XObject Resource
	Shading Resource

	// Inline images.
	InlineDict *sdf.Dict
	InlineData []byte

	// Marked content.
	Tag        sdf.Name
	Properties Resource
	Inline     *sdf.Dict
	// MCID links the element to the structure tree; -1 when no enclosing
	// marked content sequence carries one.
	MCID int

	doc       *sdf.Doc
	resources *sdf.Dict
}

// Doc returns the object table the element's resources live in.
func (e *Element) Doc() *sdf.Doc { return e.doc }

// GState returns the element's graphics state for modification.
func (e *Element) GState() *GState { return &e.State }

// IsFilled, IsStroked and IsClip describe how a path is painted.
func (e *Element) IsFilled() bool  { return e.Filled }
func (e *Element) IsStroked() bool { return e.Stroked }
func (e *Element) IsClip() bool    { return e.Clip }

// SetPathFill, SetPathStroke and SetPathClip change how a path is painted.
func (e *Element) SetPathFill(on bool)   { e.Filled = on }
func (e *Element) SetPathStroke(on bool) { e.Stroked = on }
func (e *Element) SetPathClip(on bool)   { e.Clip = on }

// SetTextMatrix positions a text element.
func (e *Element) SetTextMatrix(m coords.Matrix) {
	e.State.TextMatrix = m
	e.End = e.advance(m)
}

// SetText replaces the shown string of a text element.
func (e *Element) SetText(b []byte) {
	e.Text = b
	e.End = e.advance(e.State.TextMatrix)
}

// Glyphs decodes the text of a text element.
func (e *Element) Glyphs() []Glyph {
	if e.Type != ElementText || e.State.Font == nil {
		return nil
	}
	return e.State.Font.Decode(e.Text)
}

// TextString returns the text as Unicode.
func (e *Element) TextString() string {
	var s []byte
	for _, g := range e.Glyphs() {
		s = append(s, g.Unicode...)
	}
	return string(s)
}

// glyphAdvance is the horizontal displacement of g in unscaled text space.
func (g *GState) glyphAdvance(gl Glyph) float64 {
	tx := gl.Width/1000*g.FontSize + g.CharSpacing
	if gl.Space {
		tx += g.WordSpacing
	}
	return tx * g.HorizScale / 100
}

// TextLength is the advance of the whole string in text space.
func (e *Element) TextLength() float64 {
	var w float64
	for _, g := range e.Glyphs() {
		w += e.State.glyphAdvance(g)
	}
	return w
}

func (e *Element) advance(tm coords.Matrix) coords.Matrix {
	if e.State.Font == nil {
		return tm
	}
	return coords.Translate(e.TextLength(), 0).Multiply(tm)
}

// CharData is the position of one glyph of a text element.
type CharData struct {
	Glyph
	// Origin is the glyph origin in user space.
	Origin coords.Point
	// Matrix maps glyph space (scaled to one unit per em) to user space.
	Matrix coords.Matrix
	// BBox bounds the glyph from descent to ascent in user space.
	BBox coords.Rect
}

// Chars returns every glyph with its user space position.
func (e *Element) Chars() []CharData {
	if e.Type != ElementText || e.State.Font == nil {
		return nil
	}
	gs := &e.State
	f := gs.Font
	var out []CharData
	tm := gs.TextMatrix
	base := coords.Matrix{gs.FontSize * gs.HorizScale / 100, 0, 0, gs.FontSize, 0, gs.Rise}
	for _, g := range f.Decode(e.Text) {
		trm := base.Multiply(tm).Multiply(gs.CTM)
		w := g.Width / 1000
		box := trm.TransformRect(coords.Rect{X1: 0, Y1: f.Descent() / 1000, X2: w, Y2: f.Ascent() / 1000})
		out = append(out, CharData{
			Glyph:  g,
			Origin: trm.Transform(coords.Point{}),
			Matrix: trm,
			BBox:   box,
		})
		tm = coords.Translate(gs.glyphAdvance(g), 0).Multiply(tm)
	}
	return out
}

// Image returns the image of an image or inline image element.
func (e *Element) Image() (*Image, error) {
	switch e.Type {
	case ElementImage:
		return LoadImage(e.doc, e.XObject.Obj)
	case ElementInlineImage:
		return inlineImage(e.doc, e.InlineDict, e.InlineData, e.resources), nil
	}
	return nil, sdf.Errorf("element image", sdf.ErrUnsupported, "%s element has no image", e.Type)
}

// ImageWidth, ImageHeight, ImageBPC and ImageColorSpace describe image
// elements.
func (e *Element) ImageWidth() int {
	if im, err := e.Image(); err == nil {
		return im.Width()
	}
	return 0
}

func (e *Element) ImageHeight() int {
	if im, err := e.Image(); err == nil {
		return im.Height()
	}
	return 0
}

func (e *Element) ImageBPC() int {
	if im, err := e.Image(); err == nil {
		return im.BitsPerComponent()
	}
	return 0
}

func (e *Element) ImageColorSpace() (ColorSpace, error) {
	im, err := e.Image()
	if err != nil {
		return ColorSpace{}, err
	}
	return im.ColorSpace()
}

// XObjectDict returns the dictionary of an image or form XObject.
func (e *Element) XObjectDict() *sdf.Dict {
	if e.doc == nil {
		return nil
	}
	return e.doc.Dict(e.XObject.Obj)
}

// FormMatrix returns the /Matrix of a form XObject.
func (e *Element) FormMatrix() coords.Matrix {
	if d := e.XObjectDict(); d != nil {
		if m, ok := e.doc.Numbers(d.Get("Matrix")); ok && len(m) == 6 {
			return coords.Matrix{m[0], m[1], m[2], m[3], m[4], m[5]}
		}
	}
	return coords.Identity()
}

// BBox returns the element's bounding box in user space. Elements that
// paint nothing report false.
func (e *Element) BBox() (coords.Rect, bool) {
	switch e.Type {
	case ElementPath:
		r, ok := e.Path.bounds()
		if !ok {
			return coords.Rect{}, false
		}
		r = e.State.CTM.TransformRect(r)
		if e.Stroked {
			r = r.Inflate(e.State.LineWidth * e.State.CTM.ScaleFactor() / 2)
		}
		return r, true
	case ElementText:
		var out coords.Rect
		found := false
		for _, c := range e.Chars() {
			if !found {
				out, found = c.BBox, true
				continue
			}
			out = out.Union(c.BBox)
		}
		return out, found
	case ElementImage, ElementInlineImage:
		return e.State.CTM.TransformRect(coords.Rect{X2: 1, Y2: 1}), true
	case ElementForm:
		d := e.XObjectDict()
		if d == nil {
			return coords.Rect{}, false
		}
		bb, ok := e.doc.Numbers(d.Get("BBox"))
		if !ok || len(bb) != 4 {
			return coords.Rect{}, false
		}
		m := e.FormMatrix().Multiply(e.State.CTM)
		return m.TransformRect(coords.NewRect(bb[0], bb[1], bb[2], bb[3])), true
	}
	return coords.Rect{}, false
}

func (p PathData) bounds() (coords.Rect, bool) {
	r := coords.Rect{X1: math.Inf(1), Y1: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}
	add := func(x, y float64) {
		r.X1, r.Y1 = math.Min(r.X1, x), math.Min(r.Y1, y)
		r.X2, r.Y2 = math.Max(r.X2, x), math.Max(r.Y2, y)
	}
	p.Each(func(op PathOp, pts []float64) {
		switch op {
		case RectOp:
			add(pts[0], pts[1])
			add(pts[0]+pts[2], pts[1]+pts[3])
		default:
			for i := 0; i+1 < len(pts); i += 2 {
				add(pts[i], pts[i+1])
			}
		}
	})
	if r.X1 > r.X2 {
		return coords.Rect{}, false
	}
	return r, true
}
