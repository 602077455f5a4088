package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/fonts"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Annotation subtypes.
const (
	AnnotText           = "Text"
	AnnotLink           = "Link"
	AnnotFreeText       = "FreeText"
	AnnotLine           = "Line"
	AnnotSquare         = "Square"
	AnnotCircle         = "Circle"
	AnnotHighlight      = "Highlight"
	AnnotUnderline      = "Underline"
	AnnotSquiggly       = "Squiggly"
	AnnotStrikeOut      = "StrikeOut"
	AnnotStamp          = "Stamp"
	AnnotInk            = "Ink"
	AnnotFileAttachment = "FileAttachment"
	AnnotWidget         = "Widget"
	AnnotRedact         = "Redact"
	AnnotPopup          = "Popup"
	AnnotWatermark      = "Watermark"
)

// Annotation flags (/F).
const (
	FlagInvisible      = 1 << 0
	FlagHidden         = 1 << 1
	FlagPrint          = 1 << 2
	FlagNoZoom         = 1 << 3
	FlagNoRotate       = 1 << 4
	FlagNoView         = 1 << 5
	FlagReadOnly       = 1 << 6
	FlagLocked         = 1 << 7
	FlagToggleNoView   = 1 << 8
	FlagLockedContents = 1 << 9
)

// Annot is an annotation dictionary.
type Annot struct {
	doc  *Doc
	Ref  sdf.Ref
	Dict *sdf.Dict
}

func (d *Doc) annot(o sdf.Obj) *Annot {
	dict := d.sdf.Dict(o)
	if dict == nil {
		return nil
	}
	ref, _ := o.(sdf.Ref)
	return &Annot{doc: d, Ref: ref, Dict: dict}
}

// Annot wraps an annotation dictionary, or returns nil when o is not a
// dictionary.
func (d *Doc) Annot(o sdf.Obj) *Annot { return d.annot(o) }

// Annots returns the page's annotations.
func (p *Page) Annots() []*Annot {
	arr := p.doc.sdf.Array(p.Dict.Get("Annots"))
	out := make([]*Annot, 0, arr.Len())
	for _, it := range arr.Items() {
		if a := p.doc.annot(it); a != nil {
			out = append(out, a)
		}
	}
	return out
}

// AddAnnot appends a to the page. Direct annotations are made indirect.
func (p *Page) AddAnnot(a *Annot) {
	if a.Ref.IsZero() {
		a.Ref = p.doc.sdf.CreateIndirect(a.Dict)
	}
	a.Dict.Set("P", p.Ref)
	arr := p.doc.sdf.Array(p.Dict.Get("Annots"))
	if arr == nil {
		arr = sdf.NewArray()
		p.Dict.Set("Annots", arr)
	}
	arr.Append(a.Ref)
}

// RemoveAnnot removes a from the page. It reports whether a was found.
func (p *Page) RemoveAnnot(a *Annot) bool {
	arr := p.doc.sdf.Array(p.Dict.Get("Annots"))
	for i, it := range arr.Items() {
		if r, ok := it.(sdf.Ref); ok && !a.Ref.IsZero() && r == a.Ref {
			arr.Remove(i)
			return true
		}
		if d, ok := it.(*sdf.Dict); ok && d == a.Dict {
			arr.Remove(i)
			return true
		}
	}
	return false
}

// CreateAnnot returns a new annotation of the given subtype. It is not
// placed on a page.
func (d *Doc) CreateAnnot(subtype string, r coords.Rect) *Annot {
	dict, ref := d.sdf.CreateIndirectDict()
	dict.PutName("Type", "Annot")
	dict.PutName("Subtype", subtype)
	r = r.Normalize()
	dict.PutRect("Rect", r.X1, r.Y1, r.X2, r.Y2)
	dict.PutInt("F", FlagPrint)
	return &Annot{doc: d, Ref: ref, Dict: dict}
}

// CreateLink makes a link that runs a when clicked.
func (d *Doc) CreateLink(r coords.Rect, a *Action) *Annot {
	an := d.CreateAnnot(AnnotLink, r)
	an.Dict.Set("Border", sdf.NewArray(sdf.Int(0), sdf.Int(0), sdf.Int(0)))
	if a != nil {
		an.Dict.Set("A", a.Dict)
	}
	return an
}

// CreateText makes a sticky note.
func (d *Doc) CreateText(r coords.Rect, contents string) *Annot {
	an := d.CreateAnnot(AnnotText, r)
	an.SetContents(contents)
	an.Dict.PutName("Name", "Comment")
	an.Dict.Set("F", sdf.Int(FlagPrint|FlagNoZoom|FlagNoRotate))
	return an
}

// CreateFreeText makes a text box drawn with Helvetica at size points.
func (d *Doc) CreateFreeText(r coords.Rect, text string, size float64) *Annot {
	an := d.CreateAnnot(AnnotFreeText, r)
	an.SetContents(text)
	an.Dict.PutString("DA", fmt.Sprintf("/Helv %s Tf 0 g", sdf.FormatReal(size)))
	return an
}

// CreateLine makes a line from a to b.
func (d *Doc) CreateLine(a, b coords.Point) *Annot {
	r := coords.NewRect(a.X, a.Y, b.X, b.Y).Inflate(2)
	an := d.CreateAnnot(AnnotLine, r)
	an.Dict.Set("L", sdf.NewArray(sdf.Real(a.X), sdf.Real(a.Y), sdf.Real(b.X), sdf.Real(b.Y)))
	an.SetColor(0, 0, 0)
	return an
}

func (d *Doc) CreateSquare(r coords.Rect) *Annot {
	an := d.CreateAnnot(AnnotSquare, r)
	an.SetColor(0, 0, 0)
	return an
}

func (d *Doc) CreateCircle(r coords.Rect) *Annot {
	an := d.CreateAnnot(AnnotCircle, r)
	an.SetColor(0, 0, 0)
	return an
}

// CreateTextMarkup makes a Highlight, Underline, Squiggly or StrikeOut
// annotation covering quads.
func (d *Doc) CreateTextMarkup(subtype string, quads []coords.Rect) *Annot {
	var bounds coords.Rect
	for i, q := range quads {
		if i == 0 {
			bounds = q.Normalize()
		} else {
			bounds = bounds.Union(q)
		}
	}
	an := d.CreateAnnot(subtype, bounds)
	an.SetQuadPoints(quads)
	if subtype == AnnotHighlight {
		an.SetColor(1, 1, 0)
	} else {
		an.SetColor(1, 0, 0)
	}
	return an
}

// CreateInk makes a freehand annotation from strokes.
func (d *Doc) CreateInk(strokes [][]coords.Point) *Annot {
	var bounds coords.Rect
	first := true
	list := sdf.NewArray()
	for _, s := range strokes {
		path := sdf.NewArray()
		for _, p := range s {
			path.Append(sdf.Real(p.X), sdf.Real(p.Y))
			pr := coords.Rect{X1: p.X, Y1: p.Y, X2: p.X, Y2: p.Y}
			if first {
				bounds, first = pr, false
			} else {
				bounds = bounds.Union(pr)
			}
		}
		list.Append(path)
	}
	an := d.CreateAnnot(AnnotInk, bounds.Inflate(1))
	an.Dict.Set("InkList", list)
	an.SetColor(0, 0, 1)
	return an
}

// CreateStamp makes a rubber stamp with one of the predefined icon names
// such as Approved or Draft.
func (d *Doc) CreateStamp(r coords.Rect, icon string) *Annot {
	an := d.CreateAnnot(AnnotStamp, r)
	an.Dict.PutName("Name", icon)
	return an
}

// CreateFileAttachment attaches data as an embedded file shown as an icon.
func (d *Doc) CreateFileAttachment(r coords.Rect, name string, data []byte) *Annot {
	an := d.CreateAnnot(AnnotFileAttachment, r)
	an.Dict.Set("FS", d.fileSpec(name, data, ""))
	an.Dict.PutName("Name", "PushPin")
	an.SetContents(name)
	return an
}

// CreateWidget makes a widget annotation, the visual part of a form field.
func (d *Doc) CreateWidget(r coords.Rect) *Annot {
	return d.CreateAnnot(AnnotWidget, r)
}

// CreateRedact marks r for redaction; overlay is shown over the area once
// applied.
func (d *Doc) CreateRedact(r coords.Rect, overlay string) *Annot {
	an := d.CreateAnnot(AnnotRedact, r)
	an.Dict.Set("IC", sdf.NewArray(sdf.Int(0), sdf.Int(0), sdf.Int(0)))
	if overlay != "" {
		an.Dict.PutText("OverlayText", overlay)
	}
	return an
}

// Type returns the annotation subtype.
func (a *Annot) Type() string {
	n, _ := a.doc.sdf.Name(a.Dict.Get("Subtype"))
	return string(n)
}

func (a *Annot) Rect() coords.Rect {
	v, ok := a.doc.sdf.Numbers(a.Dict.Get("Rect"))
	if !ok || len(v) != 4 {
		return coords.Rect{}
	}
	return coords.NewRect(v[0], v[1], v[2], v[3])
}

func (a *Annot) SetRect(r coords.Rect) {
	r = r.Normalize()
	a.Dict.PutRect("Rect", r.X1, r.Y1, r.X2, r.Y2)
}

func (a *Annot) Contents() string     { return a.doc.sdf.TextValue(a.Dict.Get("Contents")) }
func (a *Annot) SetContents(s string) { a.Dict.PutText("Contents", s) }

// UniqueID returns the annotation name (/NM).
func (a *Annot) UniqueID() string     { return a.doc.sdf.TextValue(a.Dict.Get("NM")) }
func (a *Annot) SetUniqueID(s string) { a.Dict.PutText("NM", s) }

// Color returns the color components (/C): none, gray, RGB or CMYK.
func (a *Annot) Color() []float64 {
	v, _ := a.doc.sdf.Numbers(a.Dict.Get("C"))
	return v
}

func (a *Annot) SetColor(c ...float64) { a.Dict.Set("C", reals(c)) }

// InteriorColor returns the fill color of shapes (/IC).
func (a *Annot) InteriorColor() []float64 {
	v, _ := a.doc.sdf.Numbers(a.Dict.Get("IC"))
	return v
}

func (a *Annot) SetInteriorColor(c ...float64) { a.Dict.Set("IC", reals(c)) }

func reals(v []float64) *sdf.Array {
	arr := sdf.NewArray()
	for _, f := range v {
		arr.Append(sdf.Real(f))
	}
	return arr
}

// BorderStyle is the /S entry of a border style dictionary.
type BorderStyle string

const (
	BorderSolid     BorderStyle = "S"
	BorderDashed    BorderStyle = "D"
	BorderBeveled   BorderStyle = "B"
	BorderInset     BorderStyle = "I"
	BorderUnderline BorderStyle = "U"
)

// Border returns the border width and style; 1 and solid by default.
func (a *Annot) Border() (float64, BorderStyle) {
	w, style := 1.0, BorderSolid
	if bs := a.doc.sdf.Dict(a.Dict.Get("BS")); bs != nil {
		if v, ok := a.doc.sdf.Number(bs.Get("W")); ok {
			w = v
		}
		if s, ok := a.doc.sdf.Name(bs.Get("S")); ok {
			style = BorderStyle(s)
		}
		return w, style
	}
	if b, ok := a.doc.sdf.Numbers(a.Dict.Get("Border")); ok && len(b) >= 3 {
		w = b[2]
	}
	return w, style
}

func (a *Annot) SetBorder(width float64, style BorderStyle) {
	bs := sdf.NewDict()
	bs.PutName("Type", "Border")
	bs.PutReal("W", width)
	bs.PutName("S", string(style))
	if style == BorderDashed {
		bs.Set("D", sdf.NewArray(sdf.Int(3)))
	}
	a.Dict.Set("BS", bs)
	a.Dict.Delete("Border")
}

func (a *Annot) Flags() int {
	f, _ := a.doc.sdf.Int(a.Dict.Get("F"))
	return int(f)
}

func (a *Annot) SetFlags(f int) { a.Dict.PutInt("F", int64(f)) }

// IsHidden reports whether the annotation is never shown on screen.
func (a *Annot) IsHidden() bool { return a.Flags()&(FlagHidden|FlagNoView) != 0 }

// Appearance returns the normal appearance stream for the current
// appearance state, or nil.
func (a *Annot) Appearance() *sdf.Stream {
	ap := a.doc.sdf.Dict(a.Dict.Get("AP"))
	if ap == nil {
		return nil
	}
	n := ap.Get("N")
	if st := a.doc.sdf.Stream(n); st != nil {
		return st
	}
	states := a.doc.sdf.Dict(n)
	if states == nil {
		return nil
	}
	as, _ := a.doc.sdf.Name(a.Dict.Get("AS"))
	return a.doc.sdf.Stream(states.Get(as))
}

// AppearanceRef returns the reference of the normal appearance stream.
func (a *Annot) AppearanceRef() (sdf.Ref, bool) {
	ap := a.doc.sdf.Dict(a.Dict.Get("AP"))
	if ap == nil {
		return sdf.Ref{}, false
	}
	n := ap.Get("N")
	if r, ok := n.(sdf.Ref); ok && a.doc.sdf.Stream(r) != nil {
		return r, true
	}
	if states := a.doc.sdf.Dict(n); states != nil {
		as, _ := a.doc.sdf.Name(a.Dict.Get("AS"))
		r, ok := states.Get(as).(sdf.Ref)
		return r, ok
	}
	return sdf.Ref{}, false
}

// AppearancePlacement returns the matrix that, used as the CTM when the
// normal appearance is painted with Do, fits the appearance's transformed
// bounding box to the annotation rectangle.
func (a *Annot) AppearancePlacement() (coords.Matrix, bool) {
	st := a.Appearance()
	if st == nil {
		return coords.Matrix{}, false
	}
	bb, ok := a.doc.sdf.Numbers(st.Dict.Get("BBox"))
	if !ok || len(bb) != 4 {
		return coords.Matrix{}, false
	}
	m := coords.Identity()
	if v, ok := a.doc.sdf.Numbers(st.Dict.Get("Matrix")); ok && len(v) == 6 {
		m = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
	}
	box := m.TransformRect(coords.NewRect(bb[0], bb[1], bb[2], bb[3]))
	r := a.Rect()
	if box.IsEmpty() || r.IsEmpty() {
		return coords.Matrix{}, false
	}
	sx, sy := r.Width()/box.Width(), r.Height()/box.Height()
	return coords.Translate(-box.X1, -box.Y1).Multiply(coords.Scale(sx, sy)).Multiply(coords.Translate(r.X1, r.Y1)), true
}

// SetAppearance installs st as the normal appearance.
func (a *Annot) SetAppearance(st *sdf.Stream) sdf.Ref {
	ref := a.doc.sdf.CreateIndirect(st)
	ap := a.doc.sdf.Dict(a.Dict.Get("AP"))
	if ap == nil {
		ap = a.Dict.PutDict("AP")
	}
	ap.Set("N", ref)
	return ref
}

// Action returns the link action, or nil.
func (a *Annot) Action() *Action {
	if act := a.doc.Action(a.Dict.Get("A")); act != nil {
		return act
	}
	if dest, ok := a.Dict.Find("Dest"); ok {
		act := a.doc.newAction("GoTo")
		act.Dict.Set("D", dest)
		return act
	}
	return nil
}

func (a *Annot) SetAction(act *Action) {
	a.Dict.Delete("Dest")
	if act == nil {
		a.Dict.Delete("A")
		return
	}
	a.Dict.Set("A", act.Dict)
}

// QuadPoints returns the regions of a text markup annotation as bounding
// rectangles.
func (a *Annot) QuadPoints() []coords.Rect {
	v, ok := a.doc.sdf.Numbers(a.Dict.Get("QuadPoints"))
	if !ok {
		return nil
	}
	var out []coords.Rect
	for i := 0; i+8 <= len(v); i += 8 {
		r := coords.NewRect(v[i], v[i+1], v[i], v[i+1])
		for j := 2; j < 8; j += 2 {
			r = r.Union(coords.Rect{X1: v[i+j], Y1: v[i+j+1], X2: v[i+j], Y2: v[i+j+1]})
		}
		out = append(out, r)
	}
	return out
}

// SetQuadPoints stores rectangles as quadrilaterals in the
// upper-left, upper-right, lower-left, lower-right order viewers expect.
func (a *Annot) SetQuadPoints(quads []coords.Rect) {
	arr := sdf.NewArray()
	for _, q := range quads {
		q = q.Normalize()
		arr.Append(sdf.Real(q.X1), sdf.Real(q.Y2), sdf.Real(q.X2), sdf.Real(q.Y2),
			sdf.Real(q.X1), sdf.Real(q.Y1), sdf.Real(q.X2), sdf.Real(q.Y1))
	}
	a.Dict.Set("QuadPoints", arr)
}

// RefreshAppearance regenerates the normal appearance of Square, Circle,
// Line, FreeText, Ink and text markup annotations from their properties.
func (a *Annot) RefreshAppearance() error {
	r := a.Rect()
	if r.IsEmpty() {
		return sdf.Errorf("refresh appearance", sdf.ErrCorrupt, "annotation has an empty rectangle")
	}
	var buf bytes.Buffer
	res := sdf.NewDict()
	w, _ := a.Border()
	// Content is drawn in a form space whose origin is the rect's lower
	// left corner.
	ox, oy := r.X1, r.Y1
	switch a.Type() {
	case AnnotSquare:
		fill := a.InteriorColor()
		fmt.Fprintf(&buf, "q %s w %s%s", fnum(w), colorOp(a.Color(), true), colorOp(fill, false))
		fmt.Fprintf(&buf, "%s %s %s %s re %s Q\n", fnum(w/2), fnum(w/2), fnum(r.Width()-w), fnum(r.Height()-w), paintOp(fill != nil, w > 0))
	case AnnotCircle:
		fill := a.InteriorColor()
		fmt.Fprintf(&buf, "q %s w %s%s", fnum(w), colorOp(a.Color(), true), colorOp(fill, false))
		ellipse(&buf, r.Width()/2, r.Height()/2, r.Width()/2-w/2, r.Height()/2-w/2)
		fmt.Fprintf(&buf, "%s Q\n", paintOp(fill != nil, w > 0))
	case AnnotLine:
		l, ok := a.doc.sdf.Numbers(a.Dict.Get("L"))
		if !ok || len(l) != 4 {
			return sdf.Errorf("refresh appearance", sdf.ErrCorrupt, "line annotation without /L")
		}
		fmt.Fprintf(&buf, "q %s w %s%s %s m %s %s l S Q\n", fnum(w), colorOp(a.Color(), true),
			fnum(l[0]-ox), fnum(l[1]-oy), fnum(l[2]-ox), fnum(l[3]-oy))
	case AnnotInk:
		fmt.Fprintf(&buf, "q %s w 1 J 1 j %s", fnum(w), colorOp(a.Color(), true))
		for _, s := range a.doc.sdf.Array(a.Dict.Get("InkList")).Items() {
			pts, ok := a.doc.sdf.Numbers(s)
			if !ok {
				continue
			}
			for i := 0; i+1 < len(pts); i += 2 {
				op := "l"
				if i == 0 {
					op = "m"
				}
				fmt.Fprintf(&buf, "%s %s %s ", fnum(pts[i]-ox), fnum(pts[i+1]-oy), op)
			}
			buf.WriteString("S ")
		}
		buf.WriteString("Q\n")
	case AnnotHighlight, AnnotUnderline, AnnotStrikeOut, AnnotSquiggly:
		a.markupAppearance(&buf, res, ox, oy)
	case AnnotFreeText:
		if err := a.freeTextAppearance(&buf, res, r); err != nil {
			return err
		}
	default:
		return sdf.Errorf("refresh appearance", sdf.ErrUnsupported, "no appearance generator for %s annotations", a.Type())
	}
	a.SetAppearance(formStream(buf.Bytes(), r.Width(), r.Height(), res))
	return nil
}

func (a *Annot) markupAppearance(buf *bytes.Buffer, res *sdf.Dict, ox, oy float64) {
	typ := a.Type()
	if typ == AnnotHighlight {
		gs := sdf.NewDict()
		gs.PutName("Type", "ExtGState")
		gs.PutName("BM", "Multiply")
		res.PutDict("ExtGState").Set("GS0", gs)
		fmt.Fprintf(buf, "q /GS0 gs %s", colorOp(a.Color(), false))
	} else {
		fmt.Fprintf(buf, "q %s", colorOp(a.Color(), true))
	}
	for _, q := range a.QuadPoints() {
		x1, y1, x2, y2 := q.X1-ox, q.Y1-oy, q.X2-ox, q.Y2-oy
		h := y2 - y1
		switch typ {
		case AnnotHighlight:
			fmt.Fprintf(buf, "%s %s %s %s re f ", fnum(x1), fnum(y1), fnum(x2-x1), fnum(h))
		case AnnotUnderline:
			fmt.Fprintf(buf, "%s w %s %s m %s %s l S ", fnum(h/14), fnum(x1), fnum(y1+h/14), fnum(x2), fnum(y1+h/14))
		case AnnotStrikeOut:
			fmt.Fprintf(buf, "%s w %s %s m %s %s l S ", fnum(h/14), fnum(x1), fnum(y1+h*0.4), fnum(x2), fnum(y1+h*0.4))
		case AnnotSquiggly:
			step := h / 6
			fmt.Fprintf(buf, "%s w %s %s m ", fnum(h/20), fnum(x1), fnum(y1+step))
			up := false
			for x := x1 + step; x <= x2; x += step {
				y := y1 + step
				if up {
					y = y1 + 2*step
				}
				fmt.Fprintf(buf, "%s %s l ", fnum(x), fnum(y))
				up = !up
			}
			buf.WriteString("S ")
		}
	}
	buf.WriteString("Q\n")
}

// freeTextAppearance lays out the contents with the default appearance
// font, breaking lines at newlines and at the box width.
func (a *Annot) freeTextAppearance(buf *bytes.Buffer, res *sdf.Dict, r coords.Rect) error {
	da := ParseDA(a.doc.sdf.TextValue(a.Dict.Get("DA")))
	font, err := fonts.Standard(da.Font)
	if err != nil {
		font, _ = fonts.Standard("Helvetica")
		da.Font = "Helv"
	}
	size := da.Size
	if size <= 0 {
		size = 12
	}
	res.PutDict("Font").Set(sdf.Name(da.Font), font.Dict())
	w, _ := a.Border()
	if w > 0 {
		fmt.Fprintf(buf, "q %s w %s%s %s %s %s re S Q\n", fnum(w), colorOp(a.Color(), true), fnum(w/2), fnum(w/2), fnum(r.Width()-w), fnum(r.Height()-w))
	}
	pad := w + 2
	lines := wrapText(font, a.Contents(), size, r.Width()-2*pad)
	fmt.Fprintf(buf, "q BT /%s %s Tf %s", da.Font, fnum(size), da.ColorOp)
	leading := size * 1.15
	fmt.Fprintf(buf, "%s TL %s %s Td ", fnum(leading), fnum(pad), fnum(r.Height()-pad-size*font.Ascent()/1000))
	for i, line := range lines {
		codes, _ := font.Encode(line)
		if i > 0 {
			buf.WriteString("T* ")
		}
		buf.Write(sdf.Bytes(sdf.String{Value: codes}))
		buf.WriteString(" Tj ")
	}
	buf.WriteString("ET Q\n")
	return nil
}

// wrapText breaks s into lines no wider than width.
func wrapText(m fonts.Metrics, s string, size, width float64) []string {
	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if fonts.Width(m, line+" "+w, size) > width {
				out = append(out, line)
				line = w
				continue
			}
			line += " " + w
		}
		out = append(out, line)
	}
	return out
}

// DA is a parsed default appearance string.
type DA struct {
	Font    string
	Size    float64
	Color   []float64
	ColorOp string
}

// ParseDA reads the font, size and color operators of a /DA string.
func ParseDA(s string) DA {
	da := DA{Font: "Helv", ColorOp: "0 g "}
	toks := strings.Fields(s)
	for i, t := range toks {
		switch t {
		case "Tf":
			if i >= 2 {
				da.Font = strings.TrimPrefix(toks[i-2], "/")
				fmt.Sscanf(toks[i-1], "%g", &da.Size)
			}
		case "g", "rg", "k":
			n := map[string]int{"g": 1, "rg": 3, "k": 4}[t]
			if i < n {
				continue
			}
			da.Color = da.Color[:0]
			for _, c := range toks[i-n : i] {
				var f float64
				fmt.Sscanf(c, "%g", &f)
				da.Color = append(da.Color, f)
			}
			da.ColorOp = colorOp(da.Color, false)
		}
	}
	return da
}

func fnum(f float64) string { return sdf.FormatReal(f) }

func colorOp(c []float64, stroke bool) string {
	var op string
	switch len(c) {
	case 1:
		op = "g"
	case 3:
		op = "rg"
	case 4:
		op = "k"
	default:
		return ""
	}
	if stroke {
		op = strings.ToUpper(op)
	}
	var b strings.Builder
	for _, v := range c {
		b.WriteString(fnum(v))
		b.WriteByte(' ')
	}
	b.WriteString(op)
	b.WriteByte(' ')
	return b.String()
}

func paintOp(fill, stroke bool) string {
	switch {
	case fill && stroke:
		return "B"
	case fill:
		return "f"
	case stroke:
		return "S"
	}
	return "n"
}

// ellipse appends four Bezier arcs approximating an ellipse.
func ellipse(buf *bytes.Buffer, cx, cy, rx, ry float64) {
	const k = 0.5523
	fmt.Fprintf(buf, "%s %s m ", fnum(cx+rx), fnum(cy))
	fmt.Fprintf(buf, "%s %s %s %s %s %s c ", fnum(cx+rx), fnum(cy+ry*k), fnum(cx+rx*k), fnum(cy+ry), fnum(cx), fnum(cy+ry))
	fmt.Fprintf(buf, "%s %s %s %s %s %s c ", fnum(cx-rx*k), fnum(cy+ry), fnum(cx-rx), fnum(cy+ry*k), fnum(cx-rx), fnum(cy))
	fmt.Fprintf(buf, "%s %s %s %s %s %s c ", fnum(cx-rx), fnum(cy-ry*k), fnum(cx-rx*k), fnum(cy-ry), fnum(cx), fnum(cy-ry))
	fmt.Fprintf(buf, "%s %s %s %s %s %s c ", fnum(cx+rx*k), fnum(cy-ry), fnum(cx+rx), fnum(cy-ry*k), fnum(cx+rx), fnum(cy))
}

// formStream builds a Form XObject of the given size.
func formStream(data []byte, w, h float64, res *sdf.Dict) *sdf.Stream {
	dict := sdf.NewDict()
	dict.PutName("Type", "XObject")
	dict.PutName("Subtype", "Form")
	dict.PutRect("BBox", 0, 0, w, h)
	if res != nil && res.Len() > 0 {
		dict.Set("Resources", res)
	}
	return sdf.NewStream(dict, data)
}
