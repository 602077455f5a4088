package pdf

import (
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Field trigger events in a field's /AA dictionary.
const (
	TriggerKeystroke = "K"
	TriggerFormat    = "F"
	TriggerValidate  = "V"
	TriggerCalculate = "C"
)

// Trigger returns the action run on event, or nil.
func (f *Field) Trigger(event string) *Action {
	aa := f.doc.sdf.Dict(f.Dict.Get("AA"))
	if aa == nil {
		return nil
	}
	return f.doc.Action(aa.Get(sdf.Name(event)))
}

// SetTrigger sets the action run on event. A calculate action also puts
// the field last in the calculation order.
func (f *Field) SetTrigger(event string, a *Action) {
	aa := f.doc.sdf.Dict(f.Dict.Get("AA"))
	if aa == nil {
		aa = f.Dict.PutDict("AA")
	}
	aa.Set(sdf.Name(event), a.Dict)
	if event != TriggerCalculate {
		return
	}
	af := f.doc.acroForm(true)
	co := f.doc.sdf.Array(af.Get("CO"))
	if co == nil {
		co = sdf.NewArray()
		af.Set("CO", co)
	}
	for _, o := range co.Items() {
		if o == sdf.Obj(f.Ref) {
			return
		}
	}
	co.Append(f.Ref)
}

// CalculationOrder returns the fields listed in /AcroForm /CO.
func (d *Doc) CalculationOrder() []*Field {
	af := d.acroForm(false)
	if af == nil {
		return nil
	}
	var out []*Field
	for _, o := range d.sdf.Array(af.Get("CO")).Items() {
		dict := d.sdf.Dict(o)
		if dict == nil {
			continue
		}
		ref, _ := o.(sdf.Ref)
		out = append(out, &Field{doc: d, Ref: ref, Dict: dict})
	}
	return out
}

// NamedScript is a document-level JavaScript.
type NamedScript struct {
	Name   string
	Action *Action
}

// Scripts returns the document-level JavaScript actions in name order.
func (d *Doc) Scripts() []NamedScript {
	names := d.namesDict(false)
	if names == nil {
		return nil
	}
	var out []NamedScript
	for _, e := range d.treeEntries(names.Get("JavaScript"), "Names") {
		if a := d.Action(e.val); a != nil {
			out = append(out, NamedScript{Name: e.key, Action: a})
		}
	}
	return out
}

// AddScript stores a document-level JavaScript under name.
func (d *Doc) AddScript(name, script string) {
	d.nameTreePut(d.namesDict(true), "JavaScript", name, d.JavaScriptAction(script).Dict)
}
