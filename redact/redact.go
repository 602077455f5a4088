// Package redact removes page content inside (or outside) rectangular
// regions and marks the regions with an overlay.
//
// Removed content is destroyed, not hidden: text is cut glyph by glyph,
// and paths and images touching a region are dropped from the rewritten
// content stream. Form XObjects that cross a region boundary are inlined
// so their content can be cut the same way.
package redact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Redaction is a region of a page. Page is 1-based and Rect is in the
// page's user space. A negative redaction keeps what lies inside Rect
// and removes everything else. Text is shown in the overlay.
type Redaction struct {
	Page     int
	Rect     coords.Rect
	Negative bool
	Text     string
}

// Report counts what Redact removed.
type Report struct {
	Pages    int
	Elements int
	Glyphs   int
	Annots   int
}

// Redact applies the redactions to doc. Pages are processed in order; a
// page that fails is reported in the joined error and the rest are still
// redacted. Callers sharing doc between goroutines hold its write lock.
func Redact(ctx context.Context, doc *pdf.Doc, redactions []Redaction, app Appearance) (Report, error) {
	var rep Report
	if len(redactions) == 0 {
		return rep, nil
	}
	ctx, span := observability.StartSpan(ctx, "redact")
	defer span.Finish()
	log := observability.OrNop(app.Logger)

	byPage := make(map[int][]Redaction)
	var pages []int
	var errs []error
	for _, r := range redactions {
		if r.Page < 1 || r.Page > doc.PageCount() {
			errs = append(errs, sdf.Errorf("redact", sdf.ErrNotFound, "page %d of %d", r.Page, doc.PageCount()))
			continue
		}
		r.Rect = r.Rect.Normalize()
		if _, ok := byPage[r.Page]; !ok {
			pages = append(pages, r.Page)
		}
		byPage[r.Page] = append(byPage[r.Page], r)
	}
	sort.Ints(pages)
	for _, i := range pages {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		p := doc.Page(i)
		pr, err := redactPage(ctx, p, byPage[i], app)
		if err != nil {
			log.Warn("redact: page failed", observability.Int("page", i), observability.Err(err))
			errs = append(errs, fmt.Errorf("page %d: %w", i, err))
			continue
		}
		rep.Pages++
		rep.Elements += pr.Elements
		rep.Glyphs += pr.Glyphs
		rep.Annots += pr.Annots
	}
	err := errors.Join(errs...)
	if err != nil {
		span.SetError(err)
	}
	return rep, err
}

// FromAnnotations returns a redaction for every Redact annotation of doc,
// one per quadrilateral when the annotation has QuadPoints. Applying them
// removes the annotations too.
func FromAnnotations(doc *pdf.Doc) []Redaction {
	var out []Redaction
	for i, p := range doc.Pages() {
		for _, a := range p.Annots() {
			if a.Type() != pdf.AnnotRedact {
				continue
			}
			text := doc.SDF().TextValue(a.Dict.Get("OverlayText"))
			rects := a.QuadPoints()
			if len(rects) == 0 {
				rects = []coords.Rect{a.Rect()}
			}
			for _, r := range rects {
				out = append(out, Redaction{Page: i + 1, Rect: r, Text: text})
			}
		}
	}
	return out
}

// regionSet answers whether content at a location is redacted.
type regionSet struct {
	pos      *quadTree
	posRects []coords.Rect
	neg      []coords.Rect
}

func newRegionSet(rs []Redaction) *regionSet {
	s := &regionSet{}
	var bounds coords.Rect
	for i, r := range rs {
		if i == 0 {
			bounds = r.Rect
		}
		bounds = bounds.Union(r.Rect)
		if r.Negative {
			s.neg = append(s.neg, r.Rect)
		} else {
			s.posRects = append(s.posRects, r.Rect)
		}
	}
	s.pos = newQuadTree(bounds, 8)
	for i, r := range s.posRects {
		s.pos.insert(r, i)
	}
	return s
}

// touches treats boxes without area, such as those of thin rules, as
// touching when they overlap at all.
func touches(region, b coords.Rect) bool {
	if b.IsEmpty() {
		return overlaps(region, b.Normalize())
	}
	return region.Intersects(b)
}

// removes reports whether content with bounding box b is redacted.
func (s *regionSet) removes(b coords.Rect) bool {
	for _, i := range s.pos.query(b) {
		if touches(s.posRects[i], b) {
			return true
		}
	}
	if len(s.neg) == 0 {
		return false
	}
	for _, r := range s.neg {
		if r.ContainsRect(b) {
			return false
		}
	}
	return true
}

// covers reports whether b is removed in whole by a single region.
func (s *regionSet) covers(b coords.Rect) bool {
	for _, i := range s.pos.query(b) {
		if s.posRects[i].ContainsRect(b) {
			return true
		}
	}
	if len(s.neg) == 0 {
		return false
	}
	for _, r := range s.neg {
		if r.Intersects(b) {
			return false
		}
	}
	return true
}

// visible returns the parts of b inside redacted regions, for marking
// where content was removed.
func (s *regionSet) visible(b coords.Rect) []coords.Rect {
	var out []coords.Rect
	for _, i := range s.pos.query(b) {
		if r, ok := s.posRects[i].Intersect(b); ok {
			out = append(out, r)
		}
	}
	if len(s.neg) > 0 {
		out = append(out, b)
	}
	return out
}

type pageResult struct {
	Elements, Glyphs, Annots int
	removed                  []coords.Rect
}

// rewriter copies the elements of a page to a writer, leaving out what
// the regions remove.
type rewriter struct {
	set *regionSet
	r   *content.Reader
	w   *content.Writer
	b   *content.Builder
	res pageResult
	// depth holds the open group count of each inlined form level.
	depth []int
}

func redactPage(ctx context.Context, p *pdf.Page, rs []Redaction, app Appearance) (pageResult, error) {
	doc := p.Doc()
	rw := &rewriter{
		set:   newRegionSet(rs),
		r:     content.NewReader(doc),
		w:     content.NewWriter(),
		b:     content.NewBuilder(doc.SDF()),
		depth: []int{0},
	}
	if err := rw.r.Begin(ctx, p); err != nil {
		return rw.res, err
	}
	if err := rw.w.Begin(p, content.Replacement, true); err != nil {
		return rw.res, err
	}
	if err := rw.run(ctx); err != nil {
		rw.w.End()
		return rw.res, err
	}
	if _, err := rw.w.End(); err != nil {
		return rw.res, err
	}
	for _, a := range p.Annots() {
		if rw.set.removes(a.Rect()) {
			p.RemoveAnnot(a)
			rw.res.Annots++
		}
	}
	if err := drawOverlay(p, rs, rw.res.removed, app); err != nil {
		return rw.res, err
	}
	return rw.res, nil
}

func (rw *rewriter) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := rw.r.Next()
		if errors.Is(err, io.EOF) {
			if len(rw.depth) > 1 {
				for ; rw.depth[len(rw.depth)-1] > 0; rw.depth[len(rw.depth)-1]-- {
					if err := rw.w.WriteElement(rw.b.CreateGroupEnd()); err != nil {
						return err
					}
				}
				rw.depth = rw.depth[:len(rw.depth)-1]
				if err := rw.r.End(); err != nil {
					return err
				}
				// Closes the group opened for the inlined form.
				if err := rw.w.WriteElement(rw.b.CreateGroupEnd()); err != nil {
					return err
				}
				continue
			}
			return nil
		}
		if err != nil {
			return err
		}
		if err := rw.element(ctx, e); err != nil {
			return err
		}
	}
}

func (rw *rewriter) drop(b coords.Rect) {
	rw.res.Elements++
	rw.res.removed = append(rw.res.removed, rw.set.visible(b)...)
}

func (rw *rewriter) element(ctx context.Context, e *content.Element) error {
	top := &rw.depth[len(rw.depth)-1]
	switch e.Type {
	case content.ElementPath:
		if e.Filled || e.Stroked {
			if b, ok := e.BBox(); ok && rw.set.removes(b) {
				rw.drop(b)
				if !e.Clip {
					return nil
				}
				cp := *e
				cp.Filled, cp.Stroked = false, false
				e = &cp
			}
		}
	case content.ElementText:
		return rw.text(e)
	case content.ElementImage, content.ElementInlineImage:
		if b, ok := e.BBox(); ok && rw.set.removes(b) {
			rw.drop(b)
			return nil
		}
	case content.ElementShading:
		// A shading fills the clip, whose extent is not tracked.
		rw.res.Elements++
		rw.res.removed = append(rw.res.removed, rw.set.posRects...)
		return nil
	case content.ElementForm:
		b, ok := e.BBox()
		if !ok || !rw.set.removes(b) {
			break
		}
		if rw.set.covers(b) {
			rw.drop(b)
			return nil
		}
		return rw.inline(ctx, e)
	case content.ElementGroupBegin:
		*top++
	case content.ElementGroupEnd:
		if *top == 0 {
			return nil
		}
		*top--
	}
	return rw.w.WriteElement(e)
}

// inline replaces a form by its content, clipped to the form's box.
func (rw *rewriter) inline(ctx context.Context, e *content.Element) error {
	bb, ok := e.Doc().Numbers(e.XObjectDict().Get("BBox"))
	if !ok || len(bb) != 4 {
		return sdf.Errorf("redact", sdf.ErrCorrupt, "form /%s has no bounding box", e.XObject.Name)
	}
	if err := rw.w.WriteElement(rw.b.CreateGroupBegin()); err != nil {
		return err
	}
	rw.b.State().CTM = e.FormMatrix().Multiply(e.State.CTM)
	box := coords.NewRect(bb[0], bb[1], bb[2], bb[3])
	clip := rw.b.CreateRect(box.X1, box.Y1, box.Width(), box.Height())
	clip.Filled, clip.Clip = false, true
	rw.b.State().CTM = coords.Identity()
	if err := rw.w.WriteElement(clip); err != nil {
		return err
	}
	if err := rw.r.FormBegin(ctx); err != nil {
		return err
	}
	rw.depth = append(rw.depth, 0)
	return nil
}

// text writes the glyphs of e that survive as one or more runs.
func (rw *rewriter) text(e *content.Element) error {
	chars := e.Chars()
	keep := make([]bool, len(chars))
	cut := false
	for i, c := range chars {
		keep[i] = !rw.set.removes(c.BBox)
		if !keep[i] {
			cut = true
			rw.res.Glyphs++
			rw.res.removed = append(rw.res.removed, rw.set.visible(c.BBox)...)
		}
	}
	if !cut {
		return rw.w.WriteElement(e)
	}
	for i := 0; i < len(chars); {
		if !keep[i] {
			i++
			continue
		}
		j := i
		var run []byte
		for ; j < len(chars) && keep[j]; j++ {
			run = append(run, chars[j].Bytes...)
		}
		var prefix []byte
		for _, c := range chars[:i] {
			prefix = append(prefix, c.Bytes...)
		}
		cp := *e
		cp.Text = prefix
		dx := cp.TextLength()
		cp.SetTextMatrix(coords.Translate(dx, 0).Multiply(e.State.TextMatrix))
		cp.SetText(run)
		if err := rw.w.WriteElement(&cp); err != nil {
			return err
		}
		i = j
	}
	return nil
}
