package pdf

import (
	"strconv"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// OCG is an optional content group (layer).
type OCG struct {
	doc  *Doc
	Ref  sdf.Ref
	Dict *sdf.Dict
}

func (d *Doc) ocProperties(create bool) *sdf.Dict {
	cat := d.sdf.Root()
	if cat == nil {
		return nil
	}
	if p := d.sdf.Dict(cat.Get("OCProperties")); p != nil {
		return p
	}
	if !create {
		return nil
	}
	p := cat.PutDict("OCProperties")
	p.Set("OCGs", sdf.NewArray())
	cfg := p.PutDict("D")
	cfg.Set("Order", sdf.NewArray())
	cfg.Set("ON", sdf.NewArray())
	cfg.Set("OFF", sdf.NewArray())
	return p
}

// defaultConfig returns /OCProperties /D, creating missing arrays.
func (d *Doc) defaultConfig(p *sdf.Dict) *sdf.Dict {
	cfg := d.sdf.Dict(p.Get("D"))
	if cfg == nil {
		cfg = p.PutDict("D")
	}
	for _, k := range []sdf.Name{"Order", "ON", "OFF"} {
		if d.sdf.Array(cfg.Get(k)) == nil {
			cfg.Set(k, sdf.NewArray())
		}
	}
	return cfg
}

// CreateOCG adds a layer that is visible by default.
func (d *Doc) CreateOCG(name string) *OCG {
	dict, ref := d.sdf.CreateIndirectDict()
	dict.PutName("Type", "OCG")
	dict.PutText("Name", name)
	p := d.ocProperties(true)
	ocgs := d.sdf.Array(p.Get("OCGs"))
	if ocgs == nil {
		ocgs = p.PutArray("OCGs")
	}
	ocgs.Append(ref)
	cfg := d.defaultConfig(p)
	d.sdf.Array(cfg.Get("Order")).Append(ref)
	d.sdf.Array(cfg.Get("ON")).Append(ref)
	return &OCG{doc: d, Ref: ref, Dict: dict}
}

// OCGs returns every layer of the document.
func (d *Doc) OCGs() []*OCG {
	p := d.ocProperties(false)
	if p == nil {
		return nil
	}
	var out []*OCG
	for _, it := range d.sdf.Array(p.Get("OCGs")).Items() {
		ref, ok := it.(sdf.Ref)
		if !ok {
			continue
		}
		if dict := d.sdf.Dict(ref); dict != nil {
			out = append(out, &OCG{doc: d, Ref: ref, Dict: dict})
		}
	}
	return out
}

func (o *OCG) Name() string { return o.doc.sdf.TextValue(o.Dict.Get("Name")) }

// IsOn reports the layer state in the default configuration.
func (o *OCG) IsOn() bool {
	p := o.doc.ocProperties(false)
	if p == nil {
		return true
	}
	cfg := o.doc.sdf.Dict(p.Get("D"))
	if cfg == nil {
		return true
	}
	if containsRef(o.doc.sdf.Array(cfg.Get("OFF")), o.Ref) {
		return false
	}
	if base, _ := o.doc.sdf.Name(cfg.Get("BaseState")); base == "OFF" {
		return containsRef(o.doc.sdf.Array(cfg.Get("ON")), o.Ref)
	}
	return true
}

// SetOCGState turns a layer on or off in the default configuration.
func (d *Doc) SetOCGState(o *OCG, on bool) {
	cfg := d.defaultConfig(d.ocProperties(true))
	onArr, offArr := d.sdf.Array(cfg.Get("ON")), d.sdf.Array(cfg.Get("OFF"))
	removeRef(onArr, o.Ref)
	removeRef(offArr, o.Ref)
	if on {
		onArr.Append(o.Ref)
	} else {
		offArr.Append(o.Ref)
	}
}

// MarkedContentProperties returns the resource name under which o is
// registered in res /Properties, adding it when needed. Content shown
// only with the layer is wrapped in "/OC /<name> BDC ... EMC".
func (o *OCG) MarkedContentProperties(res *sdf.Dict) sdf.Name {
	props := o.doc.sdf.Dict(res.Get("Properties"))
	if props == nil {
		props = res.PutDict("Properties")
	}
	for _, k := range props.Keys() {
		if r, ok := props.Get(k).(sdf.Ref); ok && r == o.Ref {
			return k
		}
	}
	for i := 0; ; i++ {
		name := sdf.Name("oc" + strconv.Itoa(i))
		if !props.Has(name) {
			props.Set(name, o.Ref)
			return name
		}
	}
}

func containsRef(a *sdf.Array, r sdf.Ref) bool {
	for _, it := range a.Items() {
		if x, ok := it.(sdf.Ref); ok && x == r {
			return true
		}
	}
	return false
}

func removeRef(a *sdf.Array, r sdf.Ref) {
	for i := a.Len() - 1; i >= 0; i-- {
		if x, ok := a.At(i).(sdf.Ref); ok && x == r {
			a.Remove(i)
		}
	}
}

// SetOCGAutoState lists o in the default configuration's /AS entry for
// the View or Print event, so viewers apply the layer's /Usage state for
// that event.
func (d *Doc) SetOCGAutoState(o *OCG, event string) {
	cfg := d.defaultConfig(d.ocProperties(true))
	as := d.sdf.Array(cfg.Get("AS"))
	if as == nil {
		as = cfg.PutArray("AS")
	}
	for _, it := range as.Items() {
		entry := d.sdf.Dict(it)
		if entry == nil {
			continue
		}
		if ev, _ := d.sdf.Name(entry.Get("Event")); string(ev) == event {
			ocgs := d.sdf.Array(entry.Get("OCGs"))
			if ocgs == nil {
				ocgs = entry.PutArray("OCGs")
			}
			if !containsRef(ocgs, o.Ref) {
				ocgs.Append(o.Ref)
			}
			return
		}
	}
	entry := sdf.NewDict()
	entry.PutName("Event", event)
	entry.Set("OCGs", sdf.NewArray(o.Ref))
	entry.Set("Category", sdf.NewArray(sdf.Name(event)))
	as.Append(entry)
}
