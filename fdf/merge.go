package fdf

import (
	"errors"
	"fmt"

	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Options selects what Export copies. With neither flag set both are
// copied.
type Options struct {
	Fields bool
	Annots bool
	// File names the source PDF in the /F entry.
	File   string
	Logger observability.Logger
}

func (o Options) both() (fields, annots bool) {
	if !o.Fields && !o.Annots {
		return true, true
	}
	return o.Fields, o.Annots
}

// pageLinks are the keys of an annotation that point into the page tree
// or at other annotations.
var pageLinks = map[sdf.Name]bool{"P": true, "Parent": true, "Popup": true, "IRT": true}

// Export copies the field values and annotations of doc into a new FDF
// document. Widgets and pop-ups are not exported as annotations; push
// buttons, signatures and fields flagged NoExport carry no value.
func Export(doc *pdf.Doc, opts Options) (*Doc, error) {
	withFields, withAnnots := opts.both()
	out := New()
	if opts.File != "" {
		out.SetFile(opts.File)
	}
	src := doc.SDF()
	if withFields {
		for _, f := range doc.Fields() {
			switch f.Type() {
			case pdf.FieldPushButton, pdf.FieldSignature:
				continue
			}
			if f.Flags()&pdf.FieldNoExport != 0 {
				continue
			}
			v, ok := f.Dict.Find("V")
			if !ok {
				out.node(f.Name())
				continue
			}
			v = src.MustResolve(v)
			if _, ok := v.(*sdf.Stream); ok {
				v = sdf.Text(f.Value())
			}
			out.set(f.Name(), sdf.Copy(v))
		}
	}
	if withAnnots {
		im := sdf.NewImporter(out.sd, src)
		im.Skip = pageLinks
		for i, p := range doc.Pages() {
			for _, a := range p.Annots() {
				switch a.Type() {
				case pdf.AnnotWidget, pdf.AnnotPopup:
					continue
				}
				cp, err := im.Import(a.Dict)
				if err != nil {
					return nil, fmt.Errorf("fdf: export annotation on page %d: %w", i+1, err)
				}
				out.AddAnnot(cp.(*sdf.Dict), i)
			}
		}
	}
	return out, nil
}

// Import merges f into doc. Field values are set on the fields of the
// same name; fields doc lacks are skipped. Annotations replace the
// annotation with the same /NM on their page, or are added.
func Import(doc *pdf.Doc, f *Doc, logger observability.Logger) error {
	log := observability.OrNop(logger)
	var errs []error
	for _, ff := range f.Fields() {
		if !ff.Dict.Has("V") {
			continue
		}
		pf := doc.Field(ff.Name)
		if pf == nil {
			log.Debug("fdf: field not in document", observability.String("field", ff.Name))
			continue
		}
		if err := pf.SetValue(ff.Value()); err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", ff.Name, err))
		}
	}
	im := sdf.NewImporter(doc.SDF(), f.sd)
	im.Skip = pageLinks
	for _, ad := range f.Annots() {
		n, _ := f.sd.Int(ad.Get("Page"))
		p := doc.Page(int(n) + 1)
		if p == nil {
			errs = append(errs, sdf.Errorf("fdf import", sdf.ErrNotFound, "annotation on page %d of %d", n+1, doc.PageCount()))
			continue
		}
		cp, err := im.Import(ad)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		dict := cp.(*sdf.Dict)
		dict.Delete("Page")
		if replaceAnnot(doc, p, dict) {
			continue
		}
		p.AddAnnot(doc.Annot(dict))
	}
	return errors.Join(errs...)
}

// replaceAnnot swaps the entries of the annotation on p that has the
// same /NM as dict.
func replaceAnnot(doc *pdf.Doc, p *pdf.Page, dict *sdf.Dict) bool {
	nm := doc.SDF().TextValue(dict.Get("NM"))
	if nm == "" {
		return false
	}
	for _, a := range p.Annots() {
		if a.UniqueID() != nm {
			continue
		}
		keep := map[sdf.Name]sdf.Obj{}
		for k := range pageLinks {
			if v, ok := a.Dict.Find(k); ok {
				keep[k] = v
			}
		}
		for _, k := range a.Dict.Keys() {
			a.Dict.Delete(k)
		}
		for _, k := range dict.Keys() {
			a.Dict.Set(k, dict.Get(k))
		}
		for k, v := range keep {
			a.Dict.Set(k, v)
		}
		return true
	}
	return false
}
