// Package flatten merges annotation and form field appearances into page
// content and removes the interactive objects they came from.
package flatten

import (
	"context"
	"errors"
	"fmt"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Mode selects which annotations are flattened.
type Mode int

const (
	// All flattens annotations and form fields.
	All Mode = iota
	// Annotations flattens everything except widgets.
	Annotations
	// Fields flattens widgets and removes the form.
	Fields
)

func (m Mode) String() string {
	switch m {
	case Annotations:
		return "annotations"
	case Fields:
		return "fields"
	}
	return "all"
}

// Hidden selects what happens to annotations that are never shown.
type Hidden int

const (
	// HiddenDrop removes hidden annotations without painting them.
	HiddenDrop Hidden = iota
	// HiddenKeep leaves hidden annotations in place.
	HiddenKeep
)

type Settings struct {
	Mode   Mode
	Hidden Hidden
	// Compress Flate-encodes the content streams written.
	Compress bool
	Logger   observability.Logger
}

// Report counts what Flatten changed.
type Report struct {
	Flattened int
	Dropped   int
}

// Flatten paints the normal appearance of every selected annotation into
// its page as a form XObject and removes the annotation. Widgets without
// an appearance are dropped along with their fields; other annotations
// without one stay in place. Callers sharing doc between goroutines hold
// its write lock.
func Flatten(ctx context.Context, doc *pdf.Doc, s Settings) (Report, error) {
	var rep Report
	if doc.PageCount() == 0 {
		return rep, nil
	}
	ctx, span := observability.StartSpan(ctx, "flatten")
	defer span.Finish()
	span.SetTag("mode", s.Mode.String())
	log := observability.OrNop(s.Logger)

	var errs []error
	for _, p := range doc.Pages() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		n, dropped, err := flattenPage(p, s)
		rep.Flattened += n
		rep.Dropped += dropped
		if err != nil {
			log.Warn("flatten: page failed", observability.Int("page", p.Index()), observability.Err(err))
			errs = append(errs, fmt.Errorf("page %d: %w", p.Index(), err))
		}
	}
	if s.Mode != Annotations && len(errs) == 0 && !hasWidgets(doc) {
		if cat := doc.Catalog(); cat != nil {
			cat.Delete("AcroForm")
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		span.SetError(err)
	}
	return rep, err
}

func hasWidgets(doc *pdf.Doc) bool {
	for _, p := range doc.Pages() {
		for _, a := range p.Annots() {
			if a.Type() == pdf.AnnotWidget {
				return true
			}
		}
	}
	return false
}

func selected(a *pdf.Annot, m Mode) bool {
	w := a.Type() == pdf.AnnotWidget
	switch m {
	case Annotations:
		return !w
	case Fields:
		return w
	}
	return true
}

// flattenPage writes the appearances of the selected annotations of p
// over its content and removes them.
func flattenPage(p *pdf.Page, s Settings) (flat, dropped int, err error) {
	sd := p.Doc().SDF()
	var (
		paint []*pdf.Annot
		gone  = make(map[*sdf.Dict]bool)
	)
	for _, a := range p.Annots() {
		if !selected(a, s.Mode) {
			continue
		}
		if a.IsHidden() {
			if s.Hidden == HiddenDrop {
				gone[a.Dict] = true
				dropped++
			}
			continue
		}
		if _, ok := a.AppearancePlacement(); ok {
			paint = append(paint, a)
			gone[a.Dict] = true
			continue
		}
		if a.Type() == pdf.AnnotWidget {
			gone[a.Dict] = true
			dropped++
		}
	}
	// Popups belong to the annotation they annotate.
	for _, a := range p.Annots() {
		if a.Type() != pdf.AnnotPopup {
			continue
		}
		if parent := sd.Dict(a.Dict.Get("Parent")); parent != nil && gone[parent] {
			gone[a.Dict] = true
			dropped++
		}
	}
	if len(paint) > 0 {
		if err := Paint(p, paint, s.Compress); err != nil {
			return 0, dropped, err
		}
	}
	for _, a := range p.Annots() {
		if gone[a.Dict] {
			p.RemoveAnnot(a)
		}
	}
	if arr := sd.Array(p.Dict.Get("Annots")); arr != nil && arr.Len() == 0 {
		p.Dict.Delete("Annots")
	}
	return len(paint), dropped, nil
}

// Paint draws the normal appearances of annots over the content of p,
// each positioned on its annotation rectangle. The annotations are left
// on the page.
func Paint(p *pdf.Page, annots []*pdf.Annot, compress bool) error {
	sd := p.Doc().SDF()
	b := content.NewBuilder(sd)
	w := content.NewWriter()
	if err := w.Begin(p, content.Overlay, compress); err != nil {
		return err
	}
	for _, a := range annots {
		m, ok := a.AppearancePlacement()
		if !ok {
			continue
		}
		ref, ok := a.AppearanceRef()
		if !ok {
			ref = sd.CreateIndirect(a.Appearance())
		}
		st := sd.Stream(ref)
		if !st.Dict.Has("Subtype") {
			st.Dict.PutName("Type", "XObject")
			st.Dict.PutName("Subtype", "Form")
		}
		if err := w.WriteElement(b.CreateGroupBegin()); err != nil {
			return err
		}
		b.State().CTM = m
		if err := w.WriteElement(b.CreateFormFromStream(ref)); err != nil {
			return err
		}
		if err := w.WriteElement(b.CreateGroupEnd()); err != nil {
			return err
		}
	}
	_, err := w.End()
	return err
}

// Annot flattens a single annotation of p.
func Annot(p *pdf.Page, a *pdf.Annot) error {
	if _, ok := a.AppearancePlacement(); ok && !a.IsHidden() {
		if err := Paint(p, []*pdf.Annot{a}, false); err != nil {
			return err
		}
	}
	p.RemoveAnnot(a)
	return nil
}
