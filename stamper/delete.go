package stamper

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

func isStamp(e *content.Element) bool {
	if e.Type != content.ElementMarkedContentBegin || e.Tag != stampTag {
		return false
	}
	props := e.Inline
	if props == nil && !e.Properties.IsZero() {
		props = e.Doc().Dict(e.Properties.Obj)
	}
	if props == nil {
		return false
	}
	sub, _ := props.NameValue("Subtype")
	return sub == "Watermark"
}

// HasStamps reports whether page p carries stamps.
func HasStamps(ctx context.Context, p *pdf.Page) (bool, error) {
	for _, a := range p.Annots() {
		if a.Type() == pdf.AnnotWatermark {
			return true, nil
		}
	}
	r := content.NewReader(p.Doc())
	if err := r.Begin(ctx, p); err != nil {
		return false, err
	}
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if isStamp(e) {
			return true, nil
		}
	}
}

// DeleteStamps removes the stamps from the pages of ps, both the marked
// content drawn into page content and Watermark annotations.
func DeleteStamps(ctx context.Context, doc *pdf.Doc, ps *pdf.PageSet) error {
	var errs []error
	for _, i := range ps.Pages(doc.PageCount()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := deletePage(ctx, doc.Page(i)); err != nil {
			errs = append(errs, fmt.Errorf("page %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func deletePage(ctx context.Context, p *pdf.Page) error {
	for _, a := range p.Annots() {
		if a.Type() == pdf.AnnotWatermark {
			p.RemoveAnnot(a)
		}
	}
	found, err := HasStamps(ctx, p)
	if err != nil || !found {
		return err
	}
	r := content.NewReader(p.Doc())
	if err := r.Begin(ctx, p); err != nil {
		return err
	}
	var kept []*content.Element
	skip := 0
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		switch {
		case skip > 0 && e.Type == content.ElementMarkedContentBegin:
			skip++
		case skip > 0 && e.Type == content.ElementMarkedContentEnd:
			skip--
		case skip > 0:
		case isStamp(e):
			skip = 1
		default:
			kept = append(kept, e)
		}
	}
	if skip > 0 {
		return sdf.Errorf("delete stamps", sdf.ErrCorrupt, "unterminated stamp sequence")
	}
	w := content.NewWriter()
	if err := w.Begin(p, content.Replacement, true); err != nil {
		return err
	}
	for _, e := range kept {
		if err := w.WriteElement(e); err != nil {
			w.End()
			return err
		}
	}
	_, err = w.End()
	return err
}
