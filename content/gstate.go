package content

import (
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// TextRenderMode matches the text rendering modes set with Tr.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// LineCap is the line cap style (J operator).
type LineCap int

const (
	LineCapButt LineCap = iota
	LineCapRound
	LineCapSquare
)

// LineJoin is the line join style (j operator).
type LineJoin int

const (
	LineJoinMiter LineJoin = iota
	LineJoinRound
	LineJoinBevel
)

// Resource is a named entry of a resource dictionary together with the
// object it names.
type Resource struct {
	Name sdf.Name
	Obj  sdf.Obj
}

// IsZero reports whether r names nothing.
func (r Resource) IsZero() bool { return r.Name == "" && r.Obj == nil }

// Color is a color value in some color space. Pattern colors name the
// pattern resource; uncolored patterns also carry components.
type Color struct {
	Comps   []float64
	Pattern Resource
}

func (c Color) equal(o Color) bool {
	if len(c.Comps) != len(o.Comps) || c.Pattern.Name != o.Pattern.Name || !sameObj(c.Pattern.Obj, o.Pattern.Obj) {
		return false
	}
	for i := range c.Comps {
		if c.Comps[i] != o.Comps[i] {
			return false
		}
	}
	return true
}

// GStateField identifies one attribute of the graphics state. Values
// combine as a bit set.
type GStateField uint32

const (
	FieldCTM GStateField = 1 << iota
	FieldLineWidth
	FieldLineCap
	FieldLineJoin
	FieldMiterLimit
	FieldDash
	FieldRenderingIntent
	FieldFlatness
	FieldFillColorSpace
	FieldFillColor
	FieldStrokeColorSpace
	FieldStrokeColor
	FieldFont
	FieldCharSpacing
	FieldWordSpacing
	FieldHorizScale
	FieldLeading
	FieldRise
	FieldRenderMode
	FieldTextMatrix
	FieldExtGState
	FieldAlpha
	FieldBlendMode
	fieldEnd
)

var fieldNames = []string{
	"CTM", "LineWidth", "LineCap", "LineJoin", "MiterLimit", "Dash",
	"RenderingIntent", "Flatness", "FillColorSpace", "FillColor",
	"StrokeColorSpace", "StrokeColor", "Font", "CharSpacing", "WordSpacing",
	"HorizScale", "Leading", "Rise", "RenderMode", "TextMatrix", "ExtGState",
	"Alpha", "BlendMode",
}

// Has reports whether every field of g is in f.
func (f GStateField) Has(g GStateField) bool { return f&g == g }

// Fields splits f into single fields, in declaration order.
func (f GStateField) Fields() []GStateField {
	var out []GStateField
	for b := GStateField(1); b < fieldEnd; b <<= 1 {
		if f&b != 0 {
			out = append(out, b)
		}
	}
	return out
}

func (f GStateField) String() string {
	s := ""
	for i, b := range f.Fields() {
		if i > 0 {
			s += "|"
		}
		for k := 0; k < len(fieldNames); k++ {
			if GStateField(1)<<k == b {
				s += fieldNames[k]
			}
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// GState is the graphics state in effect for an element. It combines
// the general graphics state with the text state.
type GState struct {
	CTM coords.Matrix

	LineWidth  float64
	LineCap    LineCap
	LineJoin   LineJoin
	MiterLimit float64
	Dash       []float64
	DashPhase  float64
	Intent     sdf.Name
	Flatness   float64

	FillSpace   ColorSpace
	FillColor   Color
	StrokeSpace ColorSpace
	StrokeColor Color

	ExtGState   Resource
	FillAlpha   float64
	StrokeAlpha float64
	BlendMode   sdf.Name

	Font        *Font
	FontName    sdf.Name
	FontSize    float64
	CharSpacing float64
	WordSpacing float64
	HorizScale  float64 // percent
	Leading     float64
	Rise        float64
	RenderMode  TextRenderMode

	TextMatrix     coords.Matrix
	TextLineMatrix coords.Matrix
}

// NewGState returns the initial graphics state of a page whose default
// user space is ctm.
func NewGState(ctm coords.Matrix) GState {
	return GState{
		CTM:            ctm,
		LineWidth:      1,
		MiterLimit:     10,
		Flatness:       1,
		Intent:         "RelativeColorimetric",
		FillSpace:      DeviceGray,
		FillColor:      Color{Comps: []float64{0}},
		StrokeSpace:    DeviceGray,
		StrokeColor:    Color{Comps: []float64{0}},
		FillAlpha:      1,
		StrokeAlpha:    1,
		BlendMode:      "Normal",
		HorizScale:     100,
		TextMatrix:     coords.Identity(),
		TextLineMatrix: coords.Identity(),
	}
}

// SetFillColor sets the fill color space and color. A nil comps slice
// selects the initial color of the space.
func (g *GState) SetFillColor(cs ColorSpace, comps ...float64) {
	g.FillSpace = cs
	if comps == nil {
		comps = cs.Initial()
	}
	g.FillColor = Color{Comps: comps}
}

// SetStrokeColor sets the stroke color space and color.
func (g *GState) SetStrokeColor(cs ColorSpace, comps ...float64) {
	g.StrokeSpace = cs
	if comps == nil {
		comps = cs.Initial()
	}
	g.StrokeColor = Color{Comps: comps}
}

// SetDash sets the dash pattern; an empty array draws solid lines.
func (g *GState) SetDash(array []float64, phase float64) {
	g.Dash = append([]float64(nil), array...)
	g.DashPhase = phase
}

// SetFont selects font at size.
func (g *GState) SetFont(f *Font, size float64) {
	g.Font = f
	g.FontName = ""
	g.FontSize = size
}

// diff returns the fields in which g and o differ.
func (g *GState) diff(o *GState) GStateField {
	var f GStateField
	if g.CTM != o.CTM {
		f |= FieldCTM
	}
	if g.LineWidth != o.LineWidth {
		f |= FieldLineWidth
	}
	if g.LineCap != o.LineCap {
		f |= FieldLineCap
	}
	if g.LineJoin != o.LineJoin {
		f |= FieldLineJoin
	}
	if g.MiterLimit != o.MiterLimit {
		f |= FieldMiterLimit
	}
	if !floatsEqual(g.Dash, o.Dash) || g.DashPhase != o.DashPhase {
		f |= FieldDash
	}
	if g.Intent != o.Intent {
		f |= FieldRenderingIntent
	}
	if g.Flatness != o.Flatness {
		f |= FieldFlatness
	}
	if !g.FillSpace.equal(o.FillSpace) {
		f |= FieldFillColorSpace
	}
	if !g.FillColor.equal(o.FillColor) {
		f |= FieldFillColor
	}
	if !g.StrokeSpace.equal(o.StrokeSpace) {
		f |= FieldStrokeColorSpace
	}
	if !g.StrokeColor.equal(o.StrokeColor) {
		f |= FieldStrokeColor
	}
	if !sameObj(g.ExtGState.Obj, o.ExtGState.Obj) {
		f |= FieldExtGState
	}
	if g.FillAlpha != o.FillAlpha || g.StrokeAlpha != o.StrokeAlpha {
		f |= FieldAlpha
	}
	if g.BlendMode != o.BlendMode {
		f |= FieldBlendMode
	}
	if g.FontSize != o.FontSize || !g.Font.same(o.Font) {
		f |= FieldFont
	}
	if g.CharSpacing != o.CharSpacing {
		f |= FieldCharSpacing
	}
	if g.WordSpacing != o.WordSpacing {
		f |= FieldWordSpacing
	}
	if g.HorizScale != o.HorizScale {
		f |= FieldHorizScale
	}
	if g.Leading != o.Leading {
		f |= FieldLeading
	}
	if g.Rise != o.Rise {
		f |= FieldRise
	}
	if g.RenderMode != o.RenderMode {
		f |= FieldRenderMode
	}
	if g.TextMatrix != o.TextMatrix {
		f |= FieldTextMatrix
	}
	return f
}

// applyExtGState copies the entries of an ExtGState dictionary that the
// state tracks.
func (g *GState) applyExtGState(doc *sdf.Doc, res Resource, fonts func(sdf.Obj) *Font) GStateField {
	dict := doc.Dict(res.Obj)
	if dict == nil {
		return 0
	}
	g.ExtGState = res
	changed := FieldExtGState
	if v, ok := doc.Number(dict.Get("LW")); ok {
		g.LineWidth = v
		changed |= FieldLineWidth
	}
	if v, ok := doc.Int(dict.Get("LC")); ok {
		g.LineCap = LineCap(v)
		changed |= FieldLineCap
	}
	if v, ok := doc.Int(dict.Get("LJ")); ok {
		g.LineJoin = LineJoin(v)
		changed |= FieldLineJoin
	}
	if v, ok := doc.Number(dict.Get("ML")); ok {
		g.MiterLimit = v
		changed |= FieldMiterLimit
	}
	if d := doc.Array(dict.Get("D")); d != nil {
		arr, _ := doc.Numbers(d.At(0))
		phase, _ := doc.Number(d.At(1))
		g.SetDash(arr, phase)
		changed |= FieldDash
	}
	if v, ok := doc.Name(dict.Get("RI")); ok {
		g.Intent = v
		changed |= FieldRenderingIntent
	}
	if v, ok := doc.Number(dict.Get("FL")); ok {
		g.Flatness = v
		changed |= FieldFlatness
	}
	if v, ok := doc.Number(dict.Get("ca")); ok {
		g.FillAlpha = v
		changed |= FieldAlpha
	}
	if v, ok := doc.Number(dict.Get("CA")); ok {
		g.StrokeAlpha = v
		changed |= FieldAlpha
	}
	switch bm := doc.MustResolve(dict.Get("BM")).(type) {
	case sdf.Name:
		g.BlendMode = bm
		changed |= FieldBlendMode
	case *sdf.Array:
		if n, ok := doc.Name(bm.At(0)); ok {
			g.BlendMode = n
			changed |= FieldBlendMode
		}
	}
	if fa := doc.Array(dict.Get("Font")); fa != nil && fonts != nil {
		if f := fonts(fa.At(0)); f != nil {
			g.Font = f
			g.FontName = ""
			g.FontSize, _ = doc.Number(fa.At(1))
			changed |= FieldFont
		}
	}
	return changed
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sameObj reports whether a and b denote the same object: equal references
// or the same direct value.
func sameObj(a, b sdf.Obj) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case sdf.Ref:
		y, ok := b.(sdf.Ref)
		return ok && x == y
	case *sdf.Dict, *sdf.Array, *sdf.Stream:
		return a == b
	}
	return sdf.Hash(a) == sdf.Hash(b)
}
