package optimize

import (
	"context"
	"errors"
	"io"

	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/scanner"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// prunable are the resource categories whose entries are only ever named
// from content streams.
var prunable = []sdf.Name{"XObject", "Font", "ExtGState", "Shading", "Pattern", "Properties"}

// usage collects, per resource dictionary, the names content streams
// drawn with it mention.
type usage struct {
	doc    *pdf.Doc
	sd     *sdf.Doc
	names  map[*sdf.Dict]map[sdf.Name]bool
	forms  map[*sdf.Stream]bool
	broken bool
}

// pruneResources deletes resource entries that no content stream names.
// Dictionaries are only pruned when every stream using them could be
// scanned.
func (o *Optimizer) pruneResources(ctx context.Context, doc *pdf.Doc) (int, error) {
	u := &usage{
		doc:   doc,
		sd:    doc.SDF(),
		names: make(map[*sdf.Dict]map[sdf.Name]bool),
		forms: make(map[*sdf.Stream]bool),
	}
	for _, p := range doc.Pages() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		data, err := p.ContentBytes(ctx)
		if err != nil {
			o.log.Debug("optimize: page content unreadable, resources kept")
			return 0, nil
		}
		if err := u.scan(ctx, data, p.ResourcesNoCreate()); err != nil {
			return 0, err
		}
		for _, a := range p.Annots() {
			ap := u.sd.Dict(a.Dict.Get("AP"))
			if ap == nil {
				continue
			}
			for _, k := range ap.Keys() {
				u.appearance(ctx, ap.Get(k))
			}
		}
	}
	if u.broken {
		return 0, nil
	}
	removed := 0
	for res, used := range u.names {
		for _, cat := range prunable {
			d := u.sd.Dict(res.Get(cat))
			if d == nil {
				continue
			}
			for _, k := range d.Keys() {
				if !used[k] {
					d.Delete(k)
					removed++
				}
			}
		}
	}
	return removed, nil
}

// appearance scans an appearance stream or a dictionary of state
// appearances.
func (u *usage) appearance(ctx context.Context, o sdf.Obj) {
	if st := u.sd.Stream(o); st != nil {
		u.form(ctx, st, nil)
		return
	}
	if d := u.sd.Dict(o); d != nil {
		for _, k := range d.Keys() {
			if st := u.sd.Stream(d.Get(k)); st != nil {
				u.form(ctx, st, nil)
			}
		}
	}
}

// form scans a form XObject. Forms without resources use parent's.
func (u *usage) form(ctx context.Context, st *sdf.Stream, parent *sdf.Dict) {
	if u.forms[st] {
		return
	}
	u.forms[st] = true
	data, err := u.doc.DecodeStream(ctx, st)
	if err != nil {
		u.broken = true
		return
	}
	res := u.sd.Dict(st.Dict.Get("Resources"))
	if res == nil {
		res = parent
	}
	if err := u.scan(ctx, data, res); err != nil {
		u.broken = true
	}
}

// scan records every name operand of data as used in res, following
// forms drawn with Do.
func (u *usage) scan(ctx context.Context, data []byte, res *sdf.Dict) error {
	if res == nil {
		return nil
	}
	used := u.names[res]
	if used == nil {
		used = make(map[sdf.Name]bool)
		u.names[res] = used
	}
	s := scanner.NewBytes(data, scanner.Config{Content: true})
	var last sdf.Name
	for {
		o, err := s.ReadObject()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			u.broken = true
			return nil
		}
		switch v := o.(type) {
		case sdf.Name:
			used[v] = true
			last = v
		case *sdf.Dict:
			// Property lists inline in BDC name nothing.
		case scanner.Keyword:
			switch v {
			case "ID":
				if _, err := s.ReadInlineImage(); err != nil {
					u.broken = true
					return nil
				}
			case "Do":
				if xo := u.sd.Dict(res.Get("XObject")); xo != nil {
					if st := u.sd.Stream(xo.Get(last)); st != nil {
						if sub, _ := u.sd.Name(st.Dict.Get("Subtype")); sub == "Form" {
							u.form(ctx, st, res)
						}
					}
				}
			}
		}
	}
}
