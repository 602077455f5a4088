package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/fonts"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// FieldType classifies an interactive form field.
type FieldType int

const (
	FieldUnknown FieldType = iota
	FieldPushButton
	FieldCheckBox
	FieldRadio
	FieldText
	FieldChoice
	FieldSignature
)

func (t FieldType) String() string {
	switch t {
	case FieldPushButton:
		return "PushButton"
	case FieldCheckBox:
		return "CheckBox"
	case FieldRadio:
		return "Radio"
	case FieldText:
		return "Text"
	case FieldChoice:
		return "Choice"
	case FieldSignature:
		return "Signature"
	}
	return "Unknown"
}

// Field flags (/Ff).
const (
	FieldReadOnly        = 1 << 0
	FieldRequired        = 1 << 1
	FieldNoExport        = 1 << 2
	FieldMultiline       = 1 << 12
	FieldPassword        = 1 << 13
	FieldNoToggleToOff   = 1 << 14
	FieldRadioFlag       = 1 << 15
	FieldPushButtonFlag  = 1 << 16
	FieldCombo           = 1 << 17
	FieldEdit            = 1 << 18
	FieldDoNotSpellCheck = 1 << 22
	FieldComb            = 1 << 24
)

// Field is a terminal form field.
type Field struct {
	doc  *Doc
	Ref  sdf.Ref
	Dict *sdf.Dict
}

func (d *Doc) acroForm(create bool) *sdf.Dict {
	cat := d.sdf.Root()
	if cat == nil {
		return nil
	}
	if af := d.sdf.Dict(cat.Get("AcroForm")); af != nil {
		return af
	}
	if !create {
		return nil
	}
	af, ref := d.sdf.CreateIndirectDict()
	af.Set("Fields", sdf.NewArray())
	af.PutString("DA", "/Helv 0 Tf 0 g")
	dr := af.PutDict("DR").PutDict("Font")
	helv, _ := fonts.Standard("Helvetica")
	zadb, _ := fonts.Standard("ZapfDingbats")
	dr.Set("Helv", d.sdf.CreateIndirect(helv.Dict()))
	dr.Set("ZaDb", d.sdf.CreateIndirect(zadb.Dict()))
	cat.Set("AcroForm", ref)
	return af
}

// Fields returns the document's terminal fields in tree order.
func (d *Doc) Fields() []*Field {
	af := d.acroForm(false)
	if af == nil {
		return nil
	}
	var out []*Field
	seen := make(map[sdf.Ref]bool)
	var walk func(o sdf.Obj, depth int)
	walk = func(o sdf.Obj, depth int) {
		ref, _ := o.(sdf.Ref)
		if depth > maxTreeDepth || (!ref.IsZero() && seen[ref]) {
			return
		}
		seen[ref] = true
		dict := d.sdf.Dict(o)
		if dict == nil {
			return
		}
		kids := d.sdf.Array(dict.Get("Kids"))
		fieldKids := false
		for _, k := range kids.Items() {
			if kd := d.sdf.Dict(k); kd != nil && kd.Has("T") {
				fieldKids = true
				break
			}
		}
		if !fieldKids {
			out = append(out, &Field{doc: d, Ref: ref, Dict: dict})
			return
		}
		for _, k := range kids.Items() {
			if kd := d.sdf.Dict(k); kd != nil && kd.Has("T") {
				walk(k, depth+1)
			}
		}
	}
	for _, f := range d.sdf.Array(af.Get("Fields")).Items() {
		walk(f, 0)
	}
	return out
}

// Field returns the field with the fully qualified name, or nil.
func (d *Doc) Field(name string) *Field {
	for _, f := range d.Fields() {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// NeedAppearances reports whether viewers are asked to regenerate field
// appearances.
func (d *Doc) NeedAppearances() bool {
	af := d.acroForm(false)
	if af == nil {
		return false
	}
	b, _ := d.sdf.MustResolve(af.Get("NeedAppearances")).(sdf.Bool)
	return bool(b)
}

func (d *Doc) SetNeedAppearances(v bool) {
	af := d.acroForm(true)
	if v {
		af.PutBool("NeedAppearances", true)
	} else {
		af.Delete("NeedAppearances")
	}
}

// CreateField adds a top level field named name. Widgets are added with
// AddWidget.
func (d *Doc) CreateField(name string, t FieldType, value string) (*Field, error) {
	if strings.Contains(name, ".") {
		return nil, fmt.Errorf("pdf: field name %q must not contain '.'", name)
	}
	if d.Field(name) != nil {
		return nil, fmt.Errorf("pdf: field %q already exists", name)
	}
	af := d.acroForm(true)
	dict, ref := d.sdf.CreateIndirectDict()
	dict.PutText("T", name)
	switch t {
	case FieldText:
		dict.PutName("FT", "Tx")
	case FieldChoice:
		dict.PutName("FT", "Ch")
		dict.PutInt("Ff", FieldCombo)
	case FieldSignature:
		dict.PutName("FT", "Sig")
	case FieldCheckBox:
		dict.PutName("FT", "Btn")
	case FieldRadio:
		dict.PutName("FT", "Btn")
		dict.PutInt("Ff", FieldRadioFlag|FieldNoToggleToOff)
	case FieldPushButton:
		dict.PutName("FT", "Btn")
		dict.PutInt("Ff", FieldPushButtonFlag)
	default:
		return nil, fmt.Errorf("pdf: cannot create a field of type %v", t)
	}
	fields := d.sdf.Array(af.Get("Fields"))
	if fields == nil {
		fields = sdf.NewArray()
		af.Set("Fields", fields)
	}
	fields.Append(ref)
	f := &Field{doc: d, Ref: ref, Dict: dict}
	if value != "" && t != FieldSignature && t != FieldPushButton {
		switch t {
		case FieldCheckBox, FieldRadio:
			dict.PutName("V", value)
		default:
			dict.PutText("V", value)
		}
	}
	return f, nil
}

// AddWidget places a widget for f on page p. Radio widgets get the state
// names Choice1, Choice2 and so on; use AddButtonWidget to choose them.
func (f *Field) AddWidget(p *Page, r coords.Rect) *Annot {
	on := ""
	switch f.Type() {
	case FieldCheckBox:
		on = "Yes"
	case FieldRadio:
		on = fmt.Sprintf("Choice%d", len(f.Widgets())+1)
	}
	return f.AddButtonWidget(p, r, on)
}

// AddButtonWidget places a widget whose on state is named on. For fields
// other than check boxes and radio buttons on is ignored.
func (f *Field) AddButtonWidget(p *Page, r coords.Rect, on string) *Annot {
	w := f.doc.CreateWidget(r)
	w.Dict.Set("Parent", f.Ref)
	kids := f.doc.sdf.Array(f.Dict.Get("Kids"))
	if kids == nil {
		kids = sdf.NewArray()
		f.Dict.Set("Kids", kids)
	}
	kids.Append(w.Ref)
	p.AddAnnot(w)
	switch t := f.Type(); t {
	case FieldCheckBox, FieldRadio:
		if on == "" || on == "Off" {
			on = "Yes"
		}
		caption := "4"
		if t == FieldRadio {
			caption = "l"
		}
		w.Dict.PutDict("MK").PutString("CA", caption)
		f.buttonAppearance(w, on)
	case FieldText, FieldChoice:
		f.textAppearance(w)
	}
	return w
}

func (f *Field) inherited(key sdf.Name) sdf.Obj {
	node := f.Dict
	for i := 0; node != nil && i < maxTreeDepth; i++ {
		if v, ok := node.Find(key); ok && !sdf.IsNull(v) {
			return v
		}
		node = f.doc.sdf.Dict(node.Get("Parent"))
	}
	return nil
}

// Name returns the fully qualified field name.
func (f *Field) Name() string {
	var parts []string
	node := f.Dict
	for i := 0; node != nil && i < maxTreeDepth; i++ {
		if t, ok := node.Find("T"); ok {
			parts = append(parts, f.doc.sdf.TextValue(t))
		}
		node = f.doc.sdf.Dict(node.Get("Parent"))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// Rename sets the field's partial name.
func (f *Field) Rename(partial string) error {
	if strings.Contains(partial, ".") {
		return fmt.Errorf("pdf: field name %q must not contain '.'", partial)
	}
	f.Dict.PutText("T", partial)
	return nil
}

func (f *Field) Flags() int {
	v, _ := f.doc.sdf.Int(f.inherited("Ff"))
	return int(v)
}

func (f *Field) SetFlags(v int) { f.Dict.PutInt("Ff", int64(v)) }

func (f *Field) IsReadOnly() bool { return f.Flags()&FieldReadOnly != 0 }

func (f *Field) Type() FieldType {
	ft, _ := f.doc.sdf.Name(f.inherited("FT"))
	switch ft {
	case "Tx":
		return FieldText
	case "Ch":
		return FieldChoice
	case "Sig":
		return FieldSignature
	case "Btn":
		flags := f.Flags()
		switch {
		case flags&FieldPushButtonFlag != 0:
			return FieldPushButton
		case flags&FieldRadioFlag != 0:
			return FieldRadio
		}
		return FieldCheckBox
	}
	return FieldUnknown
}

// Widgets returns the field's widget annotations.
func (f *Field) Widgets() []*Annot {
	var out []*Annot
	if st, _ := f.Dict.NameValue("Subtype"); st == "Widget" {
		out = append(out, &Annot{doc: f.doc, Ref: f.Ref, Dict: f.Dict})
	}
	for _, k := range f.doc.sdf.Array(f.Dict.Get("Kids")).Items() {
		if a := f.doc.annot(k); a != nil && !a.Dict.Has("T") {
			out = append(out, a)
		}
	}
	return out
}

func valueString(d *Doc, o sdf.Obj) string {
	switch v := d.sdf.MustResolve(o).(type) {
	case sdf.Name:
		return string(v)
	case sdf.String:
		return v.Text()
	case *sdf.Array:
		if v.Len() > 0 {
			return valueString(d, v.At(0))
		}
	case *sdf.Stream:
		data, err := d.decode(context.Background(), v)
		if err == nil {
			return sdf.DecodeText(data)
		}
	}
	return ""
}

// Value returns the field value as text. Buttons report their state name.
func (f *Field) Value() string { return valueString(f.doc, f.inherited("V")) }

// DefaultValue returns /DV as text.
func (f *Field) DefaultValue() string { return valueString(f.doc, f.inherited("DV")) }

// Options returns the display strings of a choice field.
func (f *Field) Options() []string {
	var out []string
	for _, o := range f.doc.sdf.Array(f.inherited("Opt")).Items() {
		if pair := f.doc.sdf.Array(o); pair != nil {
			out = append(out, f.doc.sdf.TextValue(pair.At(pair.Len()-1)))
			continue
		}
		out = append(out, f.doc.sdf.TextValue(o))
	}
	return out
}

// SetOptions replaces the options of a choice field.
func (f *Field) SetOptions(opts []string) {
	arr := sdf.NewArray()
	for _, o := range opts {
		arr.Append(sdf.Text(o))
	}
	f.Dict.Set("Opt", arr)
}

// SetValue sets the field value and refreshes its appearance. Check boxes
// and radio buttons take a state name; "Off" clears them.
func (f *Field) SetValue(v string) error {
	switch f.Type() {
	case FieldText, FieldChoice:
		f.Dict.PutText("V", v)
	case FieldCheckBox, FieldRadio:
		if v == "" {
			v = "Off"
		}
		matched := v == "Off"
		for _, w := range f.Widgets() {
			if f.onState(w) == v {
				matched = true
			}
		}
		if !matched && f.Type() == FieldCheckBox {
			// Any non-Off value checks a box with a single on state.
			if ws := f.Widgets(); len(ws) > 0 {
				v = f.onState(ws[0])
			}
		} else if !matched {
			return fmt.Errorf("pdf: %q is not a state of radio field %q", v, f.Name())
		}
		f.Dict.PutName("V", v)
		for _, w := range f.Widgets() {
			if f.onState(w) == v {
				w.Dict.PutName("AS", v)
			} else {
				w.Dict.PutName("AS", "Off")
			}
		}
		return nil
	case FieldSignature:
		return sdf.Errorf("set field value", sdf.ErrUnsupported, "signature fields are set by signing")
	default:
		return sdf.Errorf("set field value", sdf.ErrUnsupported, "field %q has no value", f.Name())
	}
	return f.RefreshAppearance()
}

// Reset restores the default value.
func (f *Field) Reset() error {
	dv, ok := f.Dict.Find("DV")
	if ok && !sdf.IsNull(dv) {
		switch f.Type() {
		case FieldCheckBox, FieldRadio:
			return f.SetValue(valueString(f.doc, dv))
		}
		f.Dict.Set("V", sdf.Copy(f.doc.sdf.MustResolve(dv)))
		return f.RefreshAppearance()
	}
	switch f.Type() {
	case FieldCheckBox, FieldRadio:
		return f.SetValue("Off")
	}
	f.Dict.Delete("V")
	return f.RefreshAppearance()
}

// onState returns the widget's non-Off appearance state name.
func (f *Field) onState(w *Annot) string {
	ap := f.doc.sdf.Dict(w.Dict.Get("AP"))
	if ap != nil {
		for _, key := range []sdf.Name{"N", "D"} {
			if states := f.doc.sdf.Dict(ap.Get(key)); states != nil && f.doc.sdf.Stream(ap.Get(key)) == nil {
				for _, k := range states.Keys() {
					if k != "Off" {
						return string(k)
					}
				}
			}
		}
	}
	return "Yes"
}

// da returns the default appearance string, inherited from the form.
func (f *Field) da() string {
	if v := f.inherited("DA"); v != nil {
		return f.doc.sdf.TextValue(v)
	}
	if af := f.doc.acroForm(false); af != nil {
		return f.doc.sdf.TextValue(af.Get("DA"))
	}
	return ""
}

// RefreshAppearance regenerates the appearance streams of the field's
// widgets from its value.
func (f *Field) RefreshAppearance() error {
	switch f.Type() {
	case FieldText, FieldChoice:
		for _, w := range f.Widgets() {
			if err := f.textAppearance(w); err != nil {
				return err
			}
		}
	case FieldCheckBox, FieldRadio:
		for _, w := range f.Widgets() {
			f.buttonAppearance(w, f.onState(w))
		}
	}
	return nil
}

func (f *Field) textAppearance(w *Annot) error {
	r := w.Rect()
	if r.IsEmpty() {
		return nil
	}
	da := ParseDA(f.da())
	font, err := fonts.Standard(da.Font)
	if err != nil {
		font, _ = fonts.Standard("Helvetica")
		da.Font = "Helv"
	}
	value := f.Value()
	if f.Flags()&FieldPassword != 0 {
		value = strings.Repeat("*", len([]rune(value)))
	}
	const pad = 2.0
	size := da.Size
	multiline := f.Flags()&FieldMultiline != 0
	if size <= 0 {
		size = (r.Height() - 2*pad) * 1000 / (font.Ascent() - font.Descent())
		if multiline || size > 12 {
			size = 12
		}
		if tw := fonts.Width(font, value, 1); !multiline && tw > 0 && tw*size > r.Width()-2*pad {
			size = (r.Width() - 2*pad) / tw
		}
		if size < 4 {
			size = 4
		}
	}
	q, _ := f.doc.sdf.Int(f.inherited("Q"))
	var lines []string
	if multiline {
		lines = wrapText(font, value, size, r.Width()-2*pad)
	} else {
		lines = []string{value}
	}
	var buf bytes.Buffer
	buf.WriteString("/Tx BMC q ")
	fmt.Fprintf(&buf, "%s %s %s %s re W n ", fnum(pad/2), fnum(pad/2), fnum(r.Width()-pad), fnum(r.Height()-pad))
	fmt.Fprintf(&buf, "BT /%s %s Tf %s", da.Font, fnum(size), da.ColorOp)
	ascent := size * font.Ascent() / 1000
	y := r.Height() - pad - ascent
	if !multiline {
		y = (r.Height()-size*(font.Ascent()-font.Descent())/1000)/2 - size*font.Descent()/1000
	}
	x0 := 0.0
	for i, line := range lines {
		x := pad
		lw := fonts.Width(font, line, size)
		switch q {
		case 1:
			x = (r.Width() - lw) / 2
		case 2:
			x = r.Width() - pad - lw
		}
		dy := y
		if i > 0 {
			dy = -size * 1.15
		}
		fmt.Fprintf(&buf, "%s %s Td ", fnum(x-x0), fnum(dy))
		x0 = x
		codes, _ := font.Encode(line)
		buf.Write(sdf.Bytes(sdf.String{Value: codes}))
		buf.WriteString(" Tj ")
	}
	buf.WriteString("ET Q EMC\n")
	res := sdf.NewDict()
	res.PutDict("Font").Set(sdf.Name(da.Font), f.fontResource(da.Font, font))
	w.SetAppearance(formStream(buf.Bytes(), r.Width(), r.Height(), res))
	return nil
}

// fontResource reuses the form's /DR font of that name when present.
func (f *Field) fontResource(name string, font *fonts.StandardFont) sdf.Obj {
	if af := f.doc.acroForm(false); af != nil {
		if dr := f.doc.sdf.Dict(af.Get("DR")); dr != nil {
			if fd := f.doc.sdf.Dict(dr.Get("Font")); fd != nil {
				if v, ok := fd.Find(sdf.Name(name)); ok {
					return v
				}
			}
		}
	}
	return font.Dict()
}

// buttonAppearance writes the on and Off appearances of a check box or
// radio widget, drawing the ZapfDingbats caption glyph.
func (f *Field) buttonAppearance(w *Annot, on string) {
	r := w.Rect()
	if r.IsEmpty() {
		return
	}
	caption := "4"
	if f.Type() == FieldRadio {
		caption = "l"
	}
	if mk := f.doc.sdf.Dict(w.Dict.Get("MK")); mk != nil {
		if ca := f.doc.sdf.TextValue(mk.Get("CA")); ca != "" {
			caption = ca
		}
	}
	zadb, _ := fonts.Standard("ZapfDingbats")
	size := r.Height() * 0.8
	if r.Width() < r.Height() {
		size = r.Width() * 0.8
	}
	cw := fonts.Width(zadb, caption, size)
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "q BT /ZaDb %s Tf 0 g %s %s Td ", fnum(size), fnum((r.Width()-cw)/2), fnum((r.Height()-size*0.7)/2))
	codes, _ := zadb.Encode(caption)
	buf.Write(sdf.Bytes(sdf.String{Value: codes}))
	buf.WriteString(" Tj ET Q\n")
	res := sdf.NewDict()
	res.PutDict("Font").Set("ZaDb", f.fontResource("ZaDb", zadb))

	onRef := f.doc.sdf.CreateIndirect(formStream(buf.Bytes(), r.Width(), r.Height(), res))
	offRef := f.doc.sdf.CreateIndirect(formStream(nil, r.Width(), r.Height(), nil))
	ap := f.doc.sdf.Dict(w.Dict.Get("AP"))
	if ap == nil {
		ap = w.Dict.PutDict("AP")
	}
	n := sdf.NewDict()
	n.Set(sdf.Name(on), onRef)
	n.Set("Off", offRef)
	ap.Set("N", n)
	if v := f.Value(); v == on {
		w.Dict.PutName("AS", on)
	} else {
		w.Dict.PutName("AS", "Off")
	}
}
