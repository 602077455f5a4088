package content

import (
	"context"
	"math"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// kappa places cubic control points for a quarter ellipse.
const kappa = 0.5522847498

// Builder creates elements for a Writer. Each element starts from the
// builder's current graphics state, which State exposes for changes that
// should apply to all following elements.
type Builder struct {
	doc   *sdf.Doc
	gs    GState
	stack []GState
	path  PathData
}

func NewBuilder(doc *sdf.Doc) *Builder {
	b := &Builder{doc: doc}
	b.Reset()
	return b
}

// Reset restores the default graphics state.
func (b *Builder) Reset() {
	b.gs = NewGState(coords.Identity())
	b.stack = nil
	b.path = PathData{}
}

// State returns the state new elements are created with.
func (b *Builder) State() *GState { return &b.gs }

func (b *Builder) element(t ElementType) *Element {
	e := &Element{Type: t, State: b.gs, MCID: -1, doc: b.doc}
	e.State.Dash = append([]float64(nil), b.gs.Dash...)
	return e
}

// CreateGroupBegin saves the builder state; the matching
// CreateGroupEnd restores it.
func (b *Builder) CreateGroupBegin() *Element {
	b.stack = append(b.stack, b.gs)
	return b.element(ElementGroupBegin)
}

func (b *Builder) CreateGroupEnd() *Element {
	if n := len(b.stack); n > 0 {
		b.gs = b.stack[n-1]
		b.stack = b.stack[:n-1]
	}
	return b.element(ElementGroupEnd)
}

// CreateRect returns a filled rectangle path.
func (b *Builder) CreateRect(x, y, w, h float64) *Element {
	e := b.element(ElementPath)
	e.Path = PathData{Ops: []PathOp{RectOp}, Points: []float64{x, y, w, h}}
	e.Filled = true
	return e
}

// CreateEllipse returns a filled ellipse centred on (cx, cy).
func (b *Builder) CreateEllipse(cx, cy, rx, ry float64) *Element {
	kx, ky := rx*kappa, ry*kappa
	e := b.element(ElementPath)
	e.Path = PathData{
		Ops: []PathOp{MoveTo, CurveTo, CurveTo, CurveTo, CurveTo, ClosePath},
		Points: []float64{
			cx + rx, cy,
			cx + rx, cy + ky, cx + kx, cy + ry, cx, cy + ry,
			cx - kx, cy + ry, cx - rx, cy + ky, cx - rx, cy,
			cx - rx, cy - ky, cx - kx, cy - ry, cx, cy - ry,
			cx + kx, cy - ry, cx + rx, cy - ky, cx + rx, cy,
		},
	}
	e.Filled = true
	return e
}

// CreatePath returns a stroked path from operators and their operands.
func (b *Builder) CreatePath(ops []PathOp, points []float64) *Element {
	e := b.element(ElementPath)
	e.Path = PathData{Ops: append([]PathOp(nil), ops...), Points: append([]float64(nil), points...)}
	e.Stroked = true
	return e
}

// PathBegin starts a path assembled with MoveTo, LineTo, CurveTo and
// ClosePath and finished by PathEnd.
func (b *Builder) PathBegin() { b.path = PathData{} }

func (b *Builder) MoveTo(x, y float64) {
	b.path.Ops = append(b.path.Ops, MoveTo)
	b.path.Points = append(b.path.Points, x, y)
}

func (b *Builder) LineTo(x, y float64) {
	b.path.Ops = append(b.path.Ops, LineTo)
	b.path.Points = append(b.path.Points, x, y)
}

func (b *Builder) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	b.path.Ops = append(b.path.Ops, CurveTo)
	b.path.Points = append(b.path.Points, x1, y1, x2, y2, x3, y3)
}

func (b *Builder) ClosePath() { b.path.Ops = append(b.path.Ops, ClosePath) }

// PathEnd returns the assembled path, stroked.
func (b *Builder) PathEnd() *Element {
	e := b.element(ElementPath)
	e.Path = b.path
	e.Stroked = true
	b.path = PathData{}
	return e
}

// CreateTextBegin opens a text object and resets the text matrices.
func (b *Builder) CreateTextBegin() *Element {
	b.gs.TextMatrix = coords.Identity()
	b.gs.TextLineMatrix = coords.Identity()
	return b.element(ElementTextBegin)
}

func (b *Builder) CreateTextEnd() *Element { return b.element(ElementTextEnd) }

// CreateTextRun shows text in font at size. The builder's text matrix
// advances past the run.
func (b *Builder) CreateTextRun(text string, font *Font, size float64) *Element {
	return b.textRun(font.Encode(text), font, size)
}

// CreateUnicodeTextRun shows text with a font made by NewType0Font, which
// shapes the text so scripts with contextual forms are shown correctly.
// Other fonts encode as CreateTextRun does.
func (b *Builder) CreateUnicodeTextRun(text string, font *Font, size float64) *Element {
	if font.uni != nil {
		enc, _ := font.uni.Encode(text)
		return b.textRun(enc, font, size)
	}
	return b.CreateTextRun(text, font, size)
}

func (b *Builder) textRun(enc []byte, font *Font, size float64) *Element {
	b.gs.SetFont(font, size)
	e := b.element(ElementText)
	e.Text = enc
	e.End = e.advance(e.State.TextMatrix)
	b.gs.TextMatrix = e.End
	return e
}

// CreateTextNewLine moves to the start of the next line offset by
// (dx, dy) from the start of the current one.
func (b *Builder) CreateTextNewLine(dx, dy float64) *Element {
	b.gs.TextLineMatrix = coords.Translate(dx, dy).Multiply(b.gs.TextLineMatrix)
	b.gs.TextMatrix = b.gs.TextLineMatrix
	e := b.element(ElementTextNewLine)
	e.DX, e.DY = dx, dy
	return e
}

// CreateImage draws img into the unit square mapped by m.
func (b *Builder) CreateImage(img *Image, m coords.Matrix) *Element {
	e := b.element(ElementImage)
	e.State.CTM = m.Multiply(b.gs.CTM)
	e.XObject = Resource{Obj: img.Ref}
	return e
}

// CreateImageAt draws img scaled to w by h with its lower left corner at
// (x, y).
func (b *Builder) CreateImageAt(img *Image, x, y, w, h float64) *Element {
	return b.CreateImage(img, coords.Matrix{w, 0, 0, h, x, y})
}

// CreateForm wraps the content of page into a form XObject drawn in the
// page's place. Pages of other documents are imported.
func (b *Builder) CreateForm(ctx context.Context, page *pdf.Page) (*Element, error) {
	data, err := page.ContentBytes(ctx)
	if err != nil {
		return nil, err
	}
	box := page.CropBox()
	dict := sdf.NewDict()
	dict.PutName("Type", "XObject")
	dict.PutName("Subtype", "Form")
	dict.PutRect("BBox", box.X1, box.Y1, box.X2, box.Y2)
	var res sdf.Obj = page.Resources()
	if src := page.Doc().SDF(); src != b.doc {
		if res, err = b.doc.Import(res, src); err != nil {
			return nil, err
		}
	}
	dict.Set("Resources", res)
	st := sdf.NewStream(dict, nil)
	if err := filters.SetStreamData(st, data, "FlateDecode"); err != nil {
		return nil, err
	}
	return b.CreateFormFromStream(b.doc.CreateIndirect(st)), nil
}

// CreateFormFromStream draws an existing form XObject.
func (b *Builder) CreateFormFromStream(ref sdf.Ref) *Element {
	e := b.element(ElementForm)
	e.XObject = Resource{Obj: ref}
	return e
}

// CreateShading paints a shading resource over the current clip.
func (b *Builder) CreateShading(shading sdf.Obj) *Element {
	e := b.element(ElementShading)
	e.Shading = Resource{Obj: shading}
	return e
}

// CreateMarkedContentBegin opens a marked-content sequence tagged tag.
// props may be nil.
func (b *Builder) CreateMarkedContentBegin(tag string, props *sdf.Dict) *Element {
	e := b.element(ElementMarkedContentBegin)
	e.Tag = sdf.Name(tag)
	e.Inline = props
	return e
}

func (b *Builder) CreateMarkedContentEnd() *Element { return b.element(ElementMarkedContentEnd) }

// RotateAbout returns a matrix rotating by deg degrees about (x, y).
func RotateAbout(deg, x, y float64) coords.Matrix {
	rad := deg * math.Pi / 180
	return coords.Translate(-x, -y).Multiply(coords.Rotate(rad)).Multiply(coords.Translate(x, y))
}
