package pdf

import (
	"context"
	"fmt"
	"math"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// DestType is the fit mode of an explicit destination.
type DestType int

const (
	DestXYZ DestType = iota
	DestFit
	DestFitH
	DestFitV
	DestFitR
	DestFitB
	DestFitBH
	DestFitBV
)

var destNames = [...]sdf.Name{"XYZ", "Fit", "FitH", "FitV", "FitR", "FitB", "FitBH", "FitBV"}

func (t DestType) String() string {
	if int(t) < len(destNames) {
		return string(destNames[t])
	}
	return fmt.Sprintf("DestType(%d)", int(t))
}

// Destination is an explicit destination. Unused coordinates are NaN and
// written as null, which keeps the viewer's current value.
type Destination struct {
	// Page is the target page in this document; zero for remote targets.
	Page sdf.Ref
	// PageNum is the 0-based page index used by remote (GoToR) targets.
	PageNum int
	Type    DestType
	Left    float64
	Top     float64
	Right   float64
	Bottom  float64
	Zoom    float64
}

func nan() float64 { return math.NaN() }

func newDest(p *Page, t DestType) Destination {
	d := Destination{Type: t, Left: nan(), Top: nan(), Right: nan(), Bottom: nan(), Zoom: nan()}
	if p != nil {
		d.Page = p.Ref
	}
	return d
}

// XYZ positions (left, top) at the window corner with the given zoom; 0
// zoom keeps the current one.
func XYZ(p *Page, left, top, zoom float64) Destination {
	d := newDest(p, DestXYZ)
	d.Left, d.Top = left, top
	if zoom != 0 {
		d.Zoom = zoom
	}
	return d
}

func Fit(p *Page) Destination  { return newDest(p, DestFit) }
func FitB(p *Page) Destination { return newDest(p, DestFitB) }

func FitH(p *Page, top float64) Destination {
	d := newDest(p, DestFitH)
	d.Top = top
	return d
}

func FitBH(p *Page, top float64) Destination {
	d := newDest(p, DestFitBH)
	d.Top = top
	return d
}

func FitV(p *Page, left float64) Destination {
	d := newDest(p, DestFitV)
	d.Left = left
	return d
}

func FitBV(p *Page, left float64) Destination {
	d := newDest(p, DestFitBV)
	d.Left = left
	return d
}

// FitR fits the rectangle r into the window.
func FitR(p *Page, r coords.Rect) Destination {
	d := newDest(p, DestFitR)
	r = r.Normalize()
	d.Left, d.Bottom, d.Right, d.Top = r.X1, r.Y1, r.X2, r.Y2
	return d
}

func num(v float64) sdf.Obj {
	if math.IsNaN(v) {
		return sdf.Null{}
	}
	return sdf.Real(v)
}

// Array encodes the destination.
func (dst Destination) Array() *sdf.Array {
	a := sdf.NewArray()
	if dst.Page.IsZero() {
		a.Append(sdf.Int(dst.PageNum))
	} else {
		a.Append(dst.Page)
	}
	a.Append(destNames[dst.Type])
	switch dst.Type {
	case DestXYZ:
		a.Append(num(dst.Left), num(dst.Top), num(dst.Zoom))
	case DestFitH, DestFitBH:
		a.Append(num(dst.Top))
	case DestFitV, DestFitBV:
		a.Append(num(dst.Left))
	case DestFitR:
		a.Append(num(dst.Left), num(dst.Bottom), num(dst.Right), num(dst.Top))
	}
	return a
}

// Destination resolves o as a destination: an explicit array, a name or
// string looked up among the named destinations, or a dictionary with /D.
func (d *Doc) Destination(o sdf.Obj) (Destination, bool) {
	return d.destination(o, 0)
}

func (d *Doc) destination(o sdf.Obj, depth int) (Destination, bool) {
	if depth > 4 {
		return Destination{}, false
	}
	switch v := d.sdf.MustResolve(o).(type) {
	case sdf.Name:
		if t, ok := d.namedDest(string(v)); ok {
			return d.destination(t, depth+1)
		}
	case sdf.String:
		if t, ok := d.namedDest(string(v.Value)); ok {
			return d.destination(t, depth+1)
		}
	case *sdf.Dict:
		return d.destination(v.Get("D"), depth+1)
	case *sdf.Array:
		return d.parseDestArray(v)
	}
	return Destination{}, false
}

func (d *Doc) parseDestArray(a *sdf.Array) (Destination, bool) {
	if a.Len() < 2 {
		return Destination{}, false
	}
	name, ok := d.sdf.Name(a.At(1))
	if !ok {
		return Destination{}, false
	}
	dst := newDest(nil, DestXYZ)
	found := false
	for i, n := range destNames {
		if n == name {
			dst.Type, found = DestType(i), true
		}
	}
	if !found {
		return Destination{}, false
	}
	switch p := a.At(0).(type) {
	case sdf.Ref:
		dst.Page = p
	default:
		n, ok := sdf.Integer(p)
		if !ok {
			return Destination{}, false
		}
		dst.PageNum = int(n)
	}
	arg := func(i int) float64 {
		if v, ok := d.sdf.Number(a.At(i)); ok {
			return v
		}
		return nan()
	}
	switch dst.Type {
	case DestXYZ:
		dst.Left, dst.Top, dst.Zoom = arg(2), arg(3), arg(4)
	case DestFitH, DestFitBH:
		dst.Top = arg(2)
	case DestFitV, DestFitBV:
		dst.Left = arg(2)
	case DestFitR:
		dst.Left, dst.Bottom, dst.Right, dst.Top = arg(2), arg(3), arg(4), arg(5)
	}
	return dst, true
}

// PageIndex returns the 1-based index of the destination page in d, or 0.
func (dst Destination) PageIndex(d *Doc) int {
	if dst.Page.IsZero() {
		return 0
	}
	for i, r := range d.pageRefs() {
		if r == dst.Page {
			return i + 1
		}
	}
	return 0
}

func (d *Doc) namedDest(name string) (sdf.Obj, bool) {
	if names := d.namesDict(false); names != nil {
		if v, ok := d.nameTreeLookup(names.Get("Dests"), name); ok {
			return v, true
		}
	}
	if cat := d.sdf.Root(); cat != nil {
		if legacy := d.sdf.Dict(cat.Get("Dests")); legacy != nil {
			if v, ok := legacy.Find(sdf.Name(name)); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// NamedDest looks up a named destination.
func (d *Doc) NamedDest(name string) (Destination, bool) {
	v, ok := d.namedDest(name)
	if !ok {
		return Destination{}, false
	}
	return d.destination(v, 1)
}

// SetNamedDest stores dst under name in the /Dests name tree.
func (d *Doc) SetNamedDest(name string, dst Destination) {
	d.nameTreePut(d.namesDict(true), "Dests", name, dst.Array())
}

// RemoveNamedDest deletes a named destination.
func (d *Doc) RemoveNamedDest(name string) {
	if names := d.namesDict(false); names != nil {
		d.nameTreePut(names, "Dests", name, nil)
	}
}

// Action wraps an action dictionary.
type Action struct {
	doc  *Doc
	Dict *sdf.Dict
}

func (d *Doc) newAction(kind string) *Action {
	a := sdf.NewDict()
	a.PutName("Type", "Action")
	a.PutName("S", kind)
	return &Action{doc: d, Dict: a}
}

// Action wraps an existing action dictionary; nil when o is not one.
func (d *Doc) Action(o sdf.Obj) *Action {
	dict := d.sdf.Dict(o)
	if dict == nil || !dict.Has("S") {
		return nil
	}
	return &Action{doc: d, Dict: dict}
}

// GoToAction jumps to an explicit destination.
func (d *Doc) GoToAction(dst Destination) *Action {
	a := d.newAction("GoTo")
	a.Dict.Set("D", dst.Array())
	return a
}

// GoToNamedAction jumps to a named destination.
func (d *Doc) GoToNamedAction(name string) *Action {
	a := d.newAction("GoTo")
	a.Dict.PutString("D", name)
	return a
}

// GoToRAction opens file at the 0-based page pageNum.
func (d *Doc) GoToRAction(file string, pageNum int, newWindow bool) *Action {
	a := d.newAction("GoToR")
	a.Dict.PutString("F", file)
	dst := Fit(nil)
	dst.PageNum = pageNum
	a.Dict.Set("D", dst.Array())
	if newWindow {
		a.Dict.PutBool("NewWindow", true)
	}
	return a
}

func (d *Doc) URIAction(uri string) *Action {
	a := d.newAction("URI")
	a.Dict.PutString("URI", uri)
	return a
}

// NamedAction runs a viewer command such as NextPage or Print.
func (d *Doc) NamedAction(name string) *Action {
	a := d.newAction("Named")
	a.Dict.PutName("N", name)
	return a
}

func (d *Doc) JavaScriptAction(script string) *Action {
	a := d.newAction("JavaScript")
	a.Dict.PutText("JS", script)
	return a
}

// Submit form flags.
const (
	SubmitExclude        = 1 << 0
	SubmitIncludeNoValue = 1 << 1
	SubmitHTML           = 1 << 2
	SubmitXFDF           = 1 << 5
)

// SubmitFormAction posts the named fields (all when empty) to url.
func (d *Doc) SubmitFormAction(url string, fields []string, flags int) *Action {
	a := d.newAction("SubmitForm")
	fs := a.Dict.PutDict("F")
	fs.PutName("FS", "URL")
	fs.PutString("F", url)
	if len(fields) > 0 {
		arr := a.Dict.PutArray("Fields")
		for _, f := range fields {
			arr.Append(sdf.Text(f))
		}
	}
	if flags != 0 {
		a.Dict.PutInt("Flags", int64(flags))
	}
	return a
}

// ResetFormAction resets the named fields, or all fields when empty.
func (d *Doc) ResetFormAction(fields []string) *Action {
	a := d.newAction("ResetForm")
	if len(fields) > 0 {
		arr := a.Dict.PutArray("Fields")
		for _, f := range fields {
			arr.Append(sdf.Text(f))
		}
	}
	return a
}

// Kind returns the action type (/S).
func (a *Action) Kind() string {
	n, _ := a.Dict.NameValue("S")
	return string(n)
}

// Dest returns the destination of a GoTo or GoToR action.
func (a *Action) Dest() (Destination, bool) {
	return a.doc.destination(a.Dict.Get("D"), 0)
}

func (a *Action) URI() string {
	s, _ := a.doc.sdf.StringValue(a.Dict.Get("URI"))
	return string(s.Value)
}

// JavaScript returns the script of a JavaScript action; the script may be
// a text string or a stream.
func (a *Action) JavaScript() string {
	js := a.Dict.Get("JS")
	if st := a.doc.sdf.Stream(js); st != nil {
		data, err := a.doc.decode(context.Background(), st)
		if err != nil {
			return ""
		}
		return sdf.DecodeText(data)
	}
	return a.doc.sdf.TextValue(js)
}

// Name returns the command of a Named action.
func (a *Action) Name() string {
	n, _ := a.doc.sdf.Name(a.Dict.Get("N"))
	return string(n)
}

// Next returns the actions chained after this one.
func (a *Action) Next() []*Action {
	next := a.Dict.Get("Next")
	if arr := a.doc.sdf.Array(next); arr != nil {
		var out []*Action
		for _, it := range arr.Items() {
			if n := a.doc.Action(it); n != nil {
				out = append(out, n)
			}
		}
		return out
	}
	if n := a.doc.Action(next); n != nil {
		return []*Action{n}
	}
	return nil
}
