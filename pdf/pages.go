package pdf

import (
	"context"
	"errors"
	"fmt"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// inheritable page attributes, resolved through /Parent.
var inheritable = []sdf.Name{"Resources", "MediaBox", "CropBox", "Rotate"}

// maxTreeDepth bounds page tree recursion in damaged files.
const maxTreeDepth = 64

// Page is one page of a document.
type Page struct {
	doc  *Doc
	Ref  sdf.Ref
	Dict *sdf.Dict
}

func (d *Doc) pageTree() *sdf.Dict {
	cat := d.sdf.Root()
	if cat == nil {
		return nil
	}
	return d.sdf.Dict(cat.Get("Pages"))
}

func (d *Doc) pageRefs() []sdf.Ref {
	if d.pages != nil {
		return d.pages
	}
	var out []sdf.Ref
	seen := make(map[sdf.Ref]bool)
	var walk func(o sdf.Obj, depth int)
	walk = func(o sdf.Obj, depth int) {
		ref, ok := o.(sdf.Ref)
		if !ok || seen[ref] || depth > maxTreeDepth {
			return
		}
		seen[ref] = true
		node := d.sdf.Dict(ref)
		if node == nil {
			return
		}
		if t, _ := node.NameValue("Type"); t == "Page" || (t != "Pages" && !node.Has("Kids")) {
			out = append(out, ref)
			return
		}
		if kids := d.sdf.Array(node.Get("Kids")); kids != nil {
			for _, k := range kids.Items() {
				walk(k, depth+1)
			}
		}
	}
	if cat := d.sdf.Root(); cat != nil {
		walk(cat.Get("Pages"), 0)
	}
	if out == nil {
		out = []sdf.Ref{}
	}
	d.pages = out
	return out
}

// PageCount returns the number of pages.
func (d *Doc) PageCount() int { return len(d.pageRefs()) }

// Page returns page i, counting from 1, or nil when out of range.
func (d *Doc) Page(i int) *Page {
	refs := d.pageRefs()
	if i < 1 || i > len(refs) {
		return nil
	}
	return d.page(refs[i-1])
}

func (d *Doc) page(ref sdf.Ref) *Page {
	dict := d.sdf.Dict(ref)
	if dict == nil {
		return nil
	}
	return &Page{doc: d, Ref: ref, Dict: dict}
}

// Pages returns every page in order.
func (d *Doc) Pages() []*Page {
	refs := d.pageRefs()
	out := make([]*Page, 0, len(refs))
	for _, r := range refs {
		if p := d.page(r); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// PageCreate returns a new page that is not yet part of the page tree.
func (d *Doc) PageCreate(mediaBox coords.Rect) *Page {
	dict, ref := d.sdf.CreateIndirectDict()
	dict.PutName("Type", "Page")
	r := mediaBox.Normalize()
	dict.PutRect("MediaBox", r.X1, r.Y1, r.X2, r.Y2)
	dict.Set("Resources", sdf.NewDict())
	return &Page{doc: d, Ref: ref, Dict: dict}
}

// PagePushBack appends p to the document.
func (d *Doc) PagePushBack(p *Page) error { return d.PageInsert(d.PageCount()+1, p) }

// PagePushFront inserts p before the first page.
func (d *Doc) PagePushFront(p *Page) error { return d.PageInsert(1, p) }

// PageInsert inserts p so that it becomes page at (1-based). at may be
// PageCount()+1 to append.
func (d *Doc) PageInsert(at int, p *Page) error {
	refs := d.pageRefs()
	if at < 1 || at > len(refs)+1 {
		return fmt.Errorf("pdf: insert position %d out of range 1..%d", at, len(refs)+1)
	}
	if p.doc != d {
		return errors.New("pdf: page belongs to another document; use ImportPages")
	}
	for _, r := range refs {
		if r == p.Ref {
			return errors.New("pdf: page is already in the document")
		}
	}
	out := make([]sdf.Ref, 0, len(refs)+1)
	out = append(out, refs[:at-1]...)
	out = append(out, p.Ref)
	out = append(out, refs[at-1:]...)
	return d.setPages(out)
}

// PageRemove removes page i (1-based). The page object stays in the table
// until a save with RemoveUnused.
func (d *Doc) PageRemove(i int) error {
	refs := d.pageRefs()
	if i < 1 || i > len(refs) {
		return fmt.Errorf("pdf: page %d out of range 1..%d", i, len(refs))
	}
	out := append(append([]sdf.Ref(nil), refs[:i-1]...), refs[i:]...)
	return d.setPages(out)
}

// MovePage moves page from to position to (both 1-based, to counted
// after removal).
func (d *Doc) MovePage(from, to int) error {
	refs := d.pageRefs()
	if from < 1 || from > len(refs) || to < 1 || to > len(refs) {
		return fmt.Errorf("pdf: move %d -> %d out of range 1..%d", from, to, len(refs))
	}
	ref := refs[from-1]
	rest := append(append([]sdf.Ref(nil), refs[:from-1]...), refs[from:]...)
	out := make([]sdf.Ref, 0, len(refs))
	out = append(out, rest[:to-1]...)
	out = append(out, ref)
	out = append(out, rest[to-1:]...)
	return d.setPages(out)
}

// ImportPages copies pages of src (1-based indexes, all pages when none
// are given) into d and returns the copies. They are not inserted into the
// page tree. Objects shared by several imported pages are copied once.
func (d *Doc) ImportPages(src *Doc, idx ...int) ([]*Page, error) {
	if len(idx) == 0 {
		for i := 1; i <= src.PageCount(); i++ {
			idx = append(idx, i)
		}
	}
	im := sdf.NewImporter(d.sdf, src.sdf)
	out := make([]*Page, 0, len(idx))
	for _, i := range idx {
		sp := src.Page(i)
		if sp == nil {
			return nil, fmt.Errorf("pdf: source page %d out of range", i)
		}
		// Copy without the parent link so the rest of the source tree
		// does not come along.
		flat := sdf.NewDict()
		for _, k := range sp.Dict.Keys() {
			if k != "Parent" {
				flat.Set(k, sp.Dict.Get(k))
			}
		}
		for _, k := range inheritable {
			if !flat.Has(k) {
				if v := sp.inherited(k); v != nil {
					flat.Set(k, v)
				}
			}
		}
		// Annotations pointing back at the page (/P) must land on the
		// copy, so the page number is reserved before its contents.
		ref := d.sdf.CreateIndirect(sdf.Null{})
		im.Map(sp.Ref, ref)
		copied, err := im.Import(flat)
		if err != nil {
			return nil, err
		}
		if err := d.sdf.Set(ref, copied); err != nil {
			return nil, err
		}
		out = append(out, d.page(ref))
	}
	return out, nil
}

// setPages rewrites the page tree as a single node holding refs. Inherited
// attributes are copied into each page first.
func (d *Doc) setPages(refs []sdf.Ref) error {
	root := d.sdf.Root()
	if root == nil {
		return sdf.Errorf("pages", sdf.ErrCorrupt, "document has no catalog")
	}
	treeRef, ok := root.Get("Pages").(sdf.Ref)
	tree := d.sdf.Dict(treeRef)
	if !ok || tree == nil {
		tree, treeRef = d.sdf.CreateIndirectDict()
		tree.PutName("Type", "Pages")
		root.Set("Pages", treeRef)
	}
	for _, r := range refs {
		p := d.page(r)
		if p == nil {
			continue
		}
		for _, k := range inheritable {
			if !p.Dict.Has(k) {
				if v := p.inherited(k); v != nil {
					p.Dict.Set(k, sdf.Copy(d.sdf.MustResolve(v)))
				}
			}
		}
	}
	kids := sdf.NewArray()
	for _, r := range refs {
		if p := d.page(r); p != nil {
			p.Dict.Set("Parent", treeRef)
			kids.Append(r)
		}
	}
	for _, k := range inheritable {
		tree.Delete(k)
	}
	tree.Set("Kids", kids)
	tree.PutInt("Count", int64(kids.Len()))
	d.pages = append([]sdf.Ref{}, refs...)
	return nil
}

// inherited looks key up on the page and then on its ancestors.
func (p *Page) inherited(key sdf.Name) sdf.Obj {
	node := p.Dict
	for i := 0; node != nil && i < maxTreeDepth; i++ {
		if v, ok := node.Find(key); ok && !sdf.IsNull(v) {
			return v
		}
		node = p.doc.sdf.Dict(node.Get("Parent"))
	}
	return nil
}

// Doc returns the document the page belongs to.
func (p *Page) Doc() *Doc { return p.doc }

// Index returns the 1-based page number, or 0 when the page is not in the
// page tree.
func (p *Page) Index() int {
	for i, r := range p.doc.pageRefs() {
		if r == p.Ref {
			return i + 1
		}
	}
	return 0
}

func (p *Page) box(key sdf.Name) (coords.Rect, bool) {
	v, ok := p.doc.sdf.Numbers(p.inherited(key))
	if !ok || len(v) != 4 {
		return coords.Rect{}, false
	}
	return coords.NewRect(v[0], v[1], v[2], v[3]), true
}

// MediaBox returns the page's media box; US Letter when missing.
func (p *Page) MediaBox() coords.Rect {
	if r, ok := p.box("MediaBox"); ok {
		return r
	}
	return coords.Rect{X1: 0, Y1: 0, X2: 612, Y2: 792}
}

// CropBox returns the crop box clipped to the media box; the media box
// when missing.
func (p *Page) CropBox() coords.Rect {
	media := p.MediaBox()
	if r, ok := p.box("CropBox"); ok {
		if c, ok := r.Intersect(media); ok {
			return c
		}
	}
	return media
}

// Box returns one of the boxes by name (MediaBox, CropBox, BleedBox,
// TrimBox, ArtBox). The optional boxes default to the crop box.
func (p *Page) Box(name string) coords.Rect {
	switch name {
	case "MediaBox":
		return p.MediaBox()
	case "CropBox":
		return p.CropBox()
	}
	if r, ok := p.box(sdf.Name(name)); ok {
		return r
	}
	return p.CropBox()
}

func (p *Page) SetMediaBox(r coords.Rect) {
	r = r.Normalize()
	p.Dict.PutRect("MediaBox", r.X1, r.Y1, r.X2, r.Y2)
}

func (p *Page) SetCropBox(r coords.Rect) {
	r = r.Normalize()
	p.Dict.PutRect("CropBox", r.X1, r.Y1, r.X2, r.Y2)
}

// Rotation returns the clockwise display rotation: 0, 90, 180 or 270.
func (p *Page) Rotation() int {
	v, _ := p.doc.sdf.Int(p.inherited("Rotate"))
	return normRotation(int(v))
}

// SetRotation sets the display rotation; deg is rounded to a quarter turn.
func (p *Page) SetRotation(deg int) {
	p.Dict.PutInt("Rotate", int64(normRotation(deg)))
}

func normRotation(deg int) int {
	deg = ((deg%360)+360)%360 + 45
	return (deg / 90 * 90) % 360
}

// Width and Height of the crop box as displayed, after rotation.
func (p *Page) Width() float64 {
	c := p.CropBox()
	if p.Rotation()%180 != 0 {
		return c.Height()
	}
	return c.Width()
}

func (p *Page) Height() float64 {
	c := p.CropBox()
	if p.Rotation()%180 != 0 {
		return c.Width()
	}
	return c.Height()
}

// DefaultMatrix maps user space to display space: the crop box's lower
// left corner at the origin, rotated as the page is displayed.
func (p *Page) DefaultMatrix() coords.Matrix {
	c := p.CropBox()
	m := coords.Translate(-c.X1, -c.Y1)
	w, h := c.Width(), c.Height()
	switch p.Rotation() {
	case 90:
		m = m.Multiply(coords.Matrix{0, -1, 1, 0, 0, w})
	case 180:
		m = m.Multiply(coords.Matrix{-1, 0, 0, -1, w, h})
	case 270:
		m = m.Multiply(coords.Matrix{0, 1, -1, 0, h, 0})
	}
	return m
}

// Resources returns the page's resource dictionary. Inherited resources
// are copied onto the page; a missing dictionary is created.
func (p *Page) Resources() *sdf.Dict {
	if r := p.doc.sdf.Dict(p.Dict.Get("Resources")); r != nil {
		return r
	}
	res := sdf.NewDict()
	if inh := p.doc.sdf.Dict(p.inherited("Resources")); inh != nil {
		res = sdf.Copy(inh).(*sdf.Dict)
	}
	p.Dict.Set("Resources", res)
	return res
}

// ResourcesNoCreate returns the page's own or inherited resource
// dictionary without modifying the page. It may be nil.
func (p *Page) ResourcesNoCreate() *sdf.Dict {
	return p.doc.sdf.Dict(p.inherited("Resources"))
}

// ContentStreams returns the page's content streams in order.
func (p *Page) ContentStreams() []*sdf.Stream {
	c := p.Dict.Get("Contents")
	if st := p.doc.sdf.Stream(c); st != nil {
		return []*sdf.Stream{st}
	}
	var out []*sdf.Stream
	if a := p.doc.sdf.Array(c); a != nil {
		for _, it := range a.Items() {
			if st := p.doc.sdf.Stream(it); st != nil {
				out = append(out, st)
			}
		}
	}
	return out
}

// ContentBytes returns the decoded page content, streams joined by a
// newline.
func (p *Page) ContentBytes(ctx context.Context) ([]byte, error) {
	var out []byte
	for i, st := range p.ContentStreams() {
		data, err := p.doc.decode(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("page %d content: %w", p.Index(), err)
		}
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, data...)
	}
	return out, nil
}

// SetContents replaces the page content with one stream.
func (p *Page) SetContents(st *sdf.Stream) sdf.Ref {
	ref := p.doc.sdf.CreateIndirect(st)
	p.Dict.Set("Contents", ref)
	return ref
}

// AppendContents adds a stream drawn after the existing content.
func (p *Page) AppendContents(st *sdf.Stream) sdf.Ref {
	return p.addContents(st, false)
}

// PrependContents adds a stream drawn before the existing content.
func (p *Page) PrependContents(st *sdf.Stream) sdf.Ref {
	return p.addContents(st, true)
}

func (p *Page) addContents(st *sdf.Stream, front bool) sdf.Ref {
	ref := p.doc.sdf.CreateIndirect(st)
	arr := sdf.NewArray()
	switch c := p.Dict.Get("Contents").(type) {
	case sdf.Ref:
		if a := p.doc.sdf.Array(c); a != nil {
			arr.Append(a.Items()...)
		} else {
			arr.Append(c)
		}
	case *sdf.Array:
		arr.Append(c.Items()...)
	}
	if front {
		arr.Insert(0, ref)
	} else {
		arr.Append(ref)
	}
	p.Dict.Set("Contents", arr)
	return ref
}
