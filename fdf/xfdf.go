package fdf

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

const xfdfNS = "http://ns.adobe.com/xfdf/"

// element is a generic XFDF node.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []*element `xml:",any"`
	Text     string     `xml:",chardata"`
}

func (e *element) attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (e *element) setAttr(name, value string) {
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

func (e *element) child(name string) *element {
	for _, c := range e.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	return nil
}

func newElement(name string) *element { return &element{XMLName: xml.Name{Local: name}} }

// flagNames are the XFDF spellings of annotation flags, lowest bit first.
var flagNames = []string{"invisible", "hidden", "print", "nozoom", "norotate", "noview",
	"readonly", "locked", "togglenoview", "lockedcontents"}

// subtypes maps XFDF element names to annotation subtypes.
var subtypes = map[string]string{
	"text": "Text", "link": "Link", "freetext": "FreeText", "line": "Line", "square": "Square",
	"circle": "Circle", "polygon": "Polygon", "polyline": "PolyLine", "highlight": "Highlight",
	"underline": "Underline", "squiggly": "Squiggly", "strikeout": "StrikeOut", "stamp": "Stamp",
	"caret": "Caret", "ink": "Ink", "fileattachment": "FileAttachment", "sound": "Sound",
	"redact": "Redact",
}

// textAttrs are annotation entries written as XFDF attributes verbatim.
var textAttrs = []struct {
	attr string
	key  sdf.Name
}{
	{"name", "NM"}, {"title", "T"}, {"subject", "Subj"}, {"date", "M"},
	{"creationdate", "CreationDate"}, {"overlay-text", "OverlayText"},
}

// WriteXFDF writes the document as XFDF.
func (d *Doc) WriteXFDF(w io.Writer) error {
	root := newElement("xfdf")
	root.setAttr("xmlns", xfdfNS)
	root.setAttr("xml:space", "preserve")
	if f := d.File(); f != "" {
		el := newElement("f")
		el.setAttr("href", f)
		root.Children = append(root.Children, el)
	}
	if fields := d.sd.Array(d.Root().Get("Fields")); fields.Len() > 0 {
		list := newElement("fields")
		for _, f := range fields.Items() {
			if el := d.fieldElement(f, 0); el != nil {
				list.Children = append(list.Children, el)
			}
		}
		root.Children = append(root.Children, list)
	}
	if annots := d.Annots(); len(annots) > 0 {
		list := newElement("annots")
		for _, a := range annots {
			if el := d.annotElement(a); el != nil {
				list.Children = append(list.Children, el)
			}
		}
		root.Children = append(root.Children, list)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func (d *Doc) fieldElement(o sdf.Obj, depth int) *element {
	dict := d.sd.Dict(o)
	if dict == nil || depth > 32 {
		return nil
	}
	el := newElement("field")
	el.setAttr("name", d.sd.TextValue(dict.Get("T")))
	switch v := d.sd.MustResolve(dict.Get("V")).(type) {
	case sdf.Name:
		el.Children = append(el.Children, &element{XMLName: xml.Name{Local: "value"}, Text: string(v)})
	case sdf.String:
		el.Children = append(el.Children, &element{XMLName: xml.Name{Local: "value"}, Text: v.Text()})
	case *sdf.Array:
		for _, it := range v.Items() {
			el.Children = append(el.Children, &element{XMLName: xml.Name{Local: "value"}, Text: d.sd.TextValue(it)})
		}
	}
	for _, k := range d.sd.Array(dict.Get("Kids")).Items() {
		if kid := d.fieldElement(k, depth+1); kid != nil {
			el.Children = append(el.Children, kid)
		}
	}
	return el
}

func formatNums(v []float64, sep string) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = sdf.FormatReal(x)
	}
	return strings.Join(parts, sep)
}

func hexColor(c []float64) string {
	var r, g, b float64
	switch len(c) {
	case 1:
		r, g, b = c[0], c[0], c[0]
	case 3:
		r, g, b = c[0], c[1], c[2]
	case 4:
		r, g, b = (1-c[0])*(1-c[3]), (1-c[1])*(1-c[3]), (1-c[2])*(1-c[3])
	default:
		return ""
	}
	byteOf := func(v float64) int { return int(math.Round(math.Max(0, math.Min(1, v)) * 255)) }
	return fmt.Sprintf("#%02X%02X%02X", byteOf(r), byteOf(g), byteOf(b))
}

func parseColor(s string) ([]float64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return nil, false
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, false
	}
	return []float64{float64(n>>16&0xff) / 255, float64(n>>8&0xff) / 255, float64(n&0xff) / 255}, true
}

func parseNums(s string, seps string) ([]float64, bool) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(seps, r) })
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func (d *Doc) annotElement(a *sdf.Dict) *element {
	sub, _ := d.sd.Name(a.Get("Subtype"))
	name := strings.ToLower(string(sub))
	if _, ok := subtypes[name]; !ok {
		return nil
	}
	el := newElement(name)
	page, _ := d.sd.Int(a.Get("Page"))
	el.setAttr("page", strconv.FormatInt(page, 10))
	if r, ok := d.sd.Numbers(a.Get("Rect")); ok && len(r) == 4 {
		el.setAttr("rect", formatNums(r, ","))
	}
	for _, ta := range textAttrs {
		if v := d.sd.TextValue(a.Get(ta.key)); v != "" {
			el.setAttr(ta.attr, v)
		}
	}
	if c, ok := d.sd.Numbers(a.Get("C")); ok {
		if h := hexColor(c); h != "" {
			el.setAttr("color", h)
		}
	}
	if c, ok := d.sd.Numbers(a.Get("IC")); ok {
		if h := hexColor(c); h != "" {
			el.setAttr("interior-color", h)
		}
	}
	if f, _ := d.sd.Int(a.Get("F")); f != 0 {
		var names []string
		for i, n := range flagNames {
			if f&(1<<i) != 0 {
				names = append(names, n)
			}
		}
		el.setAttr("flags", strings.Join(names, ","))
	}
	if bs := d.sd.Dict(a.Get("BS")); bs != nil {
		if w, ok := d.sd.Number(bs.Get("W")); ok {
			el.setAttr("width", sdf.FormatReal(w))
		}
	}
	if ca, ok := d.sd.Number(a.Get("CA")); ok {
		el.setAttr("opacity", sdf.FormatReal(ca))
	}
	if icon, ok := d.sd.Name(a.Get("Name")); ok {
		el.setAttr("icon", string(icon))
	}
	if q, ok := d.sd.Numbers(a.Get("QuadPoints")); ok {
		el.setAttr("coords", formatNums(q, ","))
	}
	if l, ok := d.sd.Numbers(a.Get("L")); ok && len(l) == 4 {
		el.setAttr("start", formatNums(l[:2], ","))
		el.setAttr("end", formatNums(l[2:], ","))
	}
	if v, ok := d.sd.Numbers(a.Get("Vertices")); ok {
		el.Children = append(el.Children, &element{XMLName: xml.Name{Local: "vertices"}, Text: pairs(v)})
	}
	if ink := d.sd.Array(a.Get("InkList")); ink.Len() > 0 {
		list := newElement("inklist")
		for _, g := range ink.Items() {
			if v, ok := d.sd.Numbers(g); ok {
				list.Children = append(list.Children, &element{XMLName: xml.Name{Local: "gesture"}, Text: pairs(v)})
			}
		}
		el.Children = append(el.Children, list)
	}
	if c := d.sd.TextValue(a.Get("Contents")); c != "" {
		el.Children = append(el.Children, &element{XMLName: xml.Name{Local: "contents"}, Text: c})
	}
	return el
}

// pairs writes x,y points separated by semicolons.
func pairs(v []float64) string {
	var parts []string
	for i := 0; i+1 < len(v); i += 2 {
		parts = append(parts, formatNums(v[i:i+2], ","))
	}
	return strings.Join(parts, ";")
}

func reals(v []float64) *sdf.Array {
	a := sdf.NewArray()
	for _, x := range v {
		a.Append(sdf.Real(x))
	}
	return a
}

// ReadXFDF parses an XFDF document into an FDF document.
func ReadXFDF(r io.Reader) (*Doc, error) {
	var root element
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, sdf.Errorf("read xfdf", sdf.ErrCorrupt, "%v", err)
	}
	if root.XMLName.Local != "xfdf" {
		return nil, sdf.Errorf("read xfdf", sdf.ErrCorrupt, "root element is <%s>", root.XMLName.Local)
	}
	d := New()
	for _, c := range root.Children {
		switch c.XMLName.Local {
		case "f":
			if href, ok := c.attr("href"); ok {
				d.SetFile(href)
			}
		case "fields":
			for _, f := range c.Children {
				d.readField(f, "")
			}
		case "annots":
			for _, a := range c.Children {
				if err := d.readAnnot(a); err != nil {
					return nil, err
				}
			}
		}
	}
	return d, nil
}

func (d *Doc) readField(el *element, prefix string) {
	if el.XMLName.Local != "field" {
		return
	}
	name, _ := el.attr("name")
	full := join(prefix, name)
	var values []string
	for _, c := range el.Children {
		switch c.XMLName.Local {
		case "value":
			values = append(values, c.Text)
		case "field":
			d.readField(c, full)
		}
	}
	switch len(values) {
	case 0:
		d.node(full)
	case 1:
		d.SetValue(full, values[0])
	default:
		arr := sdf.NewArray()
		for _, v := range values {
			arr.Append(sdf.Text(v))
		}
		d.set(full, arr)
	}
}

func (d *Doc) readAnnot(el *element) error {
	sub, ok := subtypes[el.XMLName.Local]
	if !ok {
		return nil
	}
	a := sdf.NewDict()
	a.PutName("Type", "Annot")
	a.PutName("Subtype", sub)
	if v, ok := el.attr("rect"); ok {
		r, ok := parseNums(v, ",")
		if !ok || len(r) != 4 {
			return sdf.Errorf("read xfdf", sdf.ErrCorrupt, "bad rect %q", v)
		}
		a.PutRect("Rect", r[0], r[1], r[2], r[3])
	}
	for _, ta := range textAttrs {
		if v, ok := el.attr(ta.attr); ok {
			a.PutText(ta.key, v)
		}
	}
	if v, ok := el.attr("color"); ok {
		if c, ok := parseColor(v); ok {
			a.Set("C", reals(c))
		}
	}
	if v, ok := el.attr("interior-color"); ok {
		if c, ok := parseColor(v); ok {
			a.Set("IC", reals(c))
		}
	}
	if v, ok := el.attr("flags"); ok {
		f := 0
		for _, n := range strings.Split(v, ",") {
			for i, name := range flagNames {
				if strings.EqualFold(strings.TrimSpace(n), name) {
					f |= 1 << i
				}
			}
		}
		a.PutInt("F", int64(f))
	}
	if v, ok := el.attr("width"); ok {
		if w, err := strconv.ParseFloat(v, 64); err == nil {
			a.PutDict("BS").PutReal("W", w)
		}
	}
	if v, ok := el.attr("opacity"); ok {
		if o, err := strconv.ParseFloat(v, 64); err == nil {
			a.PutReal("CA", o)
		}
	}
	if v, ok := el.attr("icon"); ok {
		a.PutName("Name", v)
	}
	if v, ok := el.attr("coords"); ok {
		if q, ok := parseNums(v, ","); ok {
			a.Set("QuadPoints", reals(q))
		}
	}
	start, hasStart := el.attr("start")
	end, hasEnd := el.attr("end")
	if hasStart && hasEnd {
		s, ok1 := parseNums(start, ",")
		e, ok2 := parseNums(end, ",")
		if ok1 && ok2 && len(s) == 2 && len(e) == 2 {
			a.Set("L", reals(append(s, e...)))
		}
	}
	if v := el.child("vertices"); v != nil {
		if pts, ok := parseNums(v.Text, ",;"); ok {
			a.Set("Vertices", reals(pts))
		}
	}
	if ink := el.child("inklist"); ink != nil {
		list := sdf.NewArray()
		for _, g := range ink.Children {
			if pts, ok := parseNums(g.Text, ",;"); ok {
				list.Append(reals(pts))
			}
		}
		a.Set("InkList", list)
	}
	if c := el.child("contents"); c != nil {
		a.PutText("Contents", c.Text)
	}
	page := 0
	if v, ok := el.attr("page"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return sdf.Errorf("read xfdf", sdf.ErrCorrupt, "bad page %q", v)
		}
		page = n
	}
	d.AddAnnot(a, page)
	return nil
}

// ExportXFDF writes the fields and annotations of doc as XFDF.
func ExportXFDF(doc *pdf.Doc, w io.Writer, opts Options) error {
	f, err := Export(doc, opts)
	if err != nil {
		return err
	}
	return f.WriteXFDF(w)
}

// ImportXFDF merges an XFDF document into doc. Imported annotations
// without an appearance get one generated.
func ImportXFDF(doc *pdf.Doc, r io.Reader, logger observability.Logger) error {
	f, err := ReadXFDF(r)
	if err != nil {
		return err
	}
	before := make(map[*sdf.Dict]bool)
	for _, p := range doc.Pages() {
		for _, a := range p.Annots() {
			before[a.Dict] = true
		}
	}
	if err := Import(doc, f, logger); err != nil {
		return err
	}
	log := observability.OrNop(logger)
	for _, p := range doc.Pages() {
		for _, a := range p.Annots() {
			if before[a.Dict] || a.Dict.Has("AP") {
				continue
			}
			if err := a.RefreshAppearance(); err != nil {
				log.Debug("fdf: no appearance for imported annotation",
					observability.String("subtype", a.Type()), observability.Err(err))
			}
		}
	}
	return nil
}
