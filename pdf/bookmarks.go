package pdf

import (
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Bookmark is an outline item.
type Bookmark struct {
	doc  *Doc
	Ref  sdf.Ref
	Dict *sdf.Dict
}

// Outline item flags (/F).
const (
	BookmarkItalic = 1
	BookmarkBold   = 2
)

func (d *Doc) bookmark(o sdf.Obj) *Bookmark {
	ref, ok := o.(sdf.Ref)
	if !ok {
		return nil
	}
	dict := d.sdf.Dict(ref)
	if dict == nil {
		return nil
	}
	return &Bookmark{doc: d, Ref: ref, Dict: dict}
}

// outlineRoot returns the /Outlines dictionary.
func (d *Doc) outlineRoot(create bool) (*sdf.Dict, sdf.Ref) {
	cat := d.sdf.Root()
	if cat == nil {
		return nil, sdf.Ref{}
	}
	if ref, ok := cat.Get("Outlines").(sdf.Ref); ok {
		if root := d.sdf.Dict(ref); root != nil {
			return root, ref
		}
	}
	if !create {
		return nil, sdf.Ref{}
	}
	root, ref := d.sdf.CreateIndirectDict()
	root.PutName("Type", "Outlines")
	cat.Set("Outlines", ref)
	return root, ref
}

// FirstBookmark returns the first top level bookmark, or nil.
func (d *Doc) FirstBookmark() *Bookmark {
	root, _ := d.outlineRoot(false)
	if root == nil {
		return nil
	}
	return d.bookmark(root.Get("First"))
}

// CreateBookmark returns a new bookmark that is not yet in the outline.
func (d *Doc) CreateBookmark(title string) *Bookmark {
	dict, ref := d.sdf.CreateIndirectDict()
	dict.PutText("Title", title)
	return &Bookmark{doc: d, Ref: ref, Dict: dict}
}

// AddRootBookmark appends a new top level bookmark.
func (d *Doc) AddRootBookmark(title string) *Bookmark {
	b := d.CreateBookmark(title)
	d.AddRootBookmarkItem(b)
	return b
}

// AddRootBookmarkItem appends b, unlinking it first, as a top level item.
func (d *Doc) AddRootBookmarkItem(b *Bookmark) {
	b.Unlink()
	root, ref := d.outlineRoot(true)
	d.appendChild(root, ref, b)
	d.updateOutlineCounts()
}

func (d *Doc) appendChild(parent *sdf.Dict, parentRef sdf.Ref, b *Bookmark) {
	b.Dict.Set("Parent", parentRef)
	b.Dict.Delete("Next")
	if last := d.bookmark(parent.Get("Last")); last != nil {
		last.Dict.Set("Next", b.Ref)
		b.Dict.Set("Prev", last.Ref)
	} else {
		b.Dict.Delete("Prev")
		parent.Set("First", b.Ref)
	}
	parent.Set("Last", b.Ref)
}

// AddChild appends a new child titled title.
func (b *Bookmark) AddChild(title string) *Bookmark {
	c := b.doc.CreateBookmark(title)
	b.AddChildBookmark(c)
	return c
}

// AddChildBookmark moves c to the end of b's children.
func (b *Bookmark) AddChildBookmark(c *Bookmark) {
	c.Unlink()
	b.doc.appendChild(b.Dict, b.Ref, c)
	b.doc.updateOutlineCounts()
}

// AddNext inserts a new sibling after b.
func (b *Bookmark) AddNext(title string) *Bookmark {
	n := b.doc.CreateBookmark(title)
	b.insert(n, false)
	return n
}

// AddPrev inserts a new sibling before b.
func (b *Bookmark) AddPrev(title string) *Bookmark {
	n := b.doc.CreateBookmark(title)
	b.insert(n, true)
	return n
}

func (b *Bookmark) insert(n *Bookmark, before bool) {
	n.Unlink()
	parentRef, _ := b.Dict.Get("Parent").(sdf.Ref)
	parent := b.doc.sdf.Dict(parentRef)
	if parent == nil {
		return
	}
	n.Dict.Set("Parent", parentRef)
	if before {
		prev := b.Prev()
		n.Dict.Set("Next", b.Ref)
		b.Dict.Set("Prev", n.Ref)
		if prev != nil {
			prev.Dict.Set("Next", n.Ref)
			n.Dict.Set("Prev", prev.Ref)
		} else {
			n.Dict.Delete("Prev")
			parent.Set("First", n.Ref)
		}
	} else {
		next := b.Next()
		n.Dict.Set("Prev", b.Ref)
		b.Dict.Set("Next", n.Ref)
		if next != nil {
			next.Dict.Set("Prev", n.Ref)
			n.Dict.Set("Next", next.Ref)
		} else {
			n.Dict.Delete("Next")
			parent.Set("Last", n.Ref)
		}
	}
	b.doc.updateOutlineCounts()
}

// Unlink removes b and its children from the outline without freeing them.
func (b *Bookmark) Unlink() {
	parentRef, ok := b.Dict.Get("Parent").(sdf.Ref)
	if !ok {
		return
	}
	parent := b.doc.sdf.Dict(parentRef)
	prev, next := b.Prev(), b.Next()
	if prev != nil {
		if next != nil {
			prev.Dict.Set("Next", next.Ref)
		} else {
			prev.Dict.Delete("Next")
		}
	} else if parent != nil {
		if next != nil {
			parent.Set("First", next.Ref)
		} else {
			parent.Delete("First")
		}
	}
	if next != nil {
		if prev != nil {
			next.Dict.Set("Prev", prev.Ref)
		} else {
			next.Dict.Delete("Prev")
		}
	} else if parent != nil {
		if prev != nil {
			parent.Set("Last", prev.Ref)
		} else {
			parent.Delete("Last")
		}
	}
	b.Dict.Delete("Parent")
	b.Dict.Delete("Prev")
	b.Dict.Delete("Next")
	b.doc.updateOutlineCounts()
}

// Delete unlinks b and frees it together with its descendants.
func (b *Bookmark) Delete() error {
	b.Unlink()
	var refs []sdf.Ref
	var collect func(x *Bookmark, depth int)
	collect = func(x *Bookmark, depth int) {
		if depth > maxTreeDepth {
			return
		}
		refs = append(refs, x.Ref)
		for c := x.FirstChild(); c != nil && len(refs) < 1<<20; c = c.Next() {
			collect(c, depth+1)
		}
	}
	collect(b, 0)
	for _, r := range refs {
		if err := b.doc.sdf.Free(r); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bookmark) Next() *Bookmark       { return b.doc.bookmark(b.Dict.Get("Next")) }
func (b *Bookmark) Prev() *Bookmark       { return b.doc.bookmark(b.Dict.Get("Prev")) }
func (b *Bookmark) FirstChild() *Bookmark { return b.doc.bookmark(b.Dict.Get("First")) }
func (b *Bookmark) LastChild() *Bookmark  { return b.doc.bookmark(b.Dict.Get("Last")) }

// Parent returns the parent item, or nil for top level items.
func (b *Bookmark) Parent() *Bookmark {
	p := b.doc.bookmark(b.Dict.Get("Parent"))
	if p == nil || !p.Dict.Has("Title") {
		return nil
	}
	return p
}

func (b *Bookmark) HasChildren() bool { return b.Dict.Has("First") }

// ChildCount returns the number of direct children.
func (b *Bookmark) ChildCount() int {
	n := 0
	for c := b.FirstChild(); c != nil && n < 1<<20; c = c.Next() {
		n++
	}
	return n
}

// Indent returns the nesting depth; top level items are at 0.
func (b *Bookmark) Indent() int {
	n := 0
	for p := b.Parent(); p != nil && n < maxTreeDepth; p = p.Parent() {
		n++
	}
	return n
}

// Find returns the first item titled title, searching b, its following
// siblings and all their descendants depth first.
func (b *Bookmark) Find(title string) *Bookmark {
	seen := make(map[sdf.Ref]bool)
	var find func(x *Bookmark, depth int) *Bookmark
	find = func(x *Bookmark, depth int) *Bookmark {
		for ; x != nil && !seen[x.Ref] && depth <= maxTreeDepth; x = x.Next() {
			seen[x.Ref] = true
			if x.Title() == title {
				return x
			}
			if hit := find(x.FirstChild(), depth+1); hit != nil {
				return hit
			}
		}
		return nil
	}
	return find(b, 0)
}

func (b *Bookmark) Title() string         { return b.doc.sdf.TextValue(b.Dict.Get("Title")) }
func (b *Bookmark) SetTitle(title string) { b.Dict.PutText("Title", title) }

// Action returns the item's action. A plain /Dest is reported as a GoTo
// action.
func (b *Bookmark) Action() *Action {
	if a := b.doc.Action(b.Dict.Get("A")); a != nil {
		return a
	}
	if dest, ok := b.Dict.Find("Dest"); ok {
		a := b.doc.newAction("GoTo")
		a.Dict.Set("D", dest)
		return a
	}
	return nil
}

// SetAction sets the item's action, replacing any destination.
func (b *Bookmark) SetAction(a *Action) {
	b.Dict.Delete("Dest")
	if a == nil {
		b.Dict.Delete("A")
		return
	}
	b.Dict.Set("A", a.Dict)
}

// Color returns the RGB text color; black when unset.
func (b *Bookmark) Color() (r, g, bl float64) {
	if v, ok := b.doc.sdf.Numbers(b.Dict.Get("C")); ok && len(v) == 3 {
		return v[0], v[1], v[2]
	}
	return 0, 0, 0
}

func (b *Bookmark) SetColor(r, g, bl float64) {
	if r == 0 && g == 0 && bl == 0 {
		b.Dict.Delete("C")
		return
	}
	b.Dict.Set("C", sdf.NewArray(sdf.Real(r), sdf.Real(g), sdf.Real(bl)))
}

func (b *Bookmark) Flags() int {
	f, _ := b.doc.sdf.Int(b.Dict.Get("F"))
	return int(f)
}

func (b *Bookmark) SetFlags(f int) {
	if f == 0 {
		b.Dict.Delete("F")
		return
	}
	b.Dict.PutInt("F", int64(f))
}

// IsOpen reports whether the item shows its children.
func (b *Bookmark) IsOpen() bool {
	c, ok := b.doc.sdf.Int(b.Dict.Get("Count"))
	return ok && c >= 0
}

func (b *Bookmark) SetOpen(open bool) {
	if open {
		b.Dict.PutInt("Count", 0)
	} else {
		b.Dict.PutInt("Count", -1)
	}
	b.doc.updateOutlineCounts()
}

// updateOutlineCounts recomputes /Count over the outline. An open item
// counts its visible descendants; a closed one stores the negated count.
func (d *Doc) updateOutlineCounts() {
	root, _ := d.outlineRoot(false)
	if root == nil {
		return
	}
	seen := make(map[sdf.Ref]bool)
	var visible func(parent *sdf.Dict, depth int) int64
	visible = func(parent *sdf.Dict, depth int) int64 {
		var n int64
		for c := d.bookmark(parent.Get("First")); c != nil; c = c.Next() {
			if seen[c.Ref] || depth > maxTreeDepth {
				break
			}
			seen[c.Ref] = true
			n++
			if !c.HasChildren() {
				if count, ok := d.sdf.Int(c.Dict.Get("Count")); ok && count < 0 {
					c.Dict.Delete("Count")
				}
				continue
			}
			open := c.IsOpen()
			v := visible(c.Dict, depth+1)
			if open {
				c.Dict.PutInt("Count", v)
				n += v
			} else {
				c.Dict.PutInt("Count", -v)
			}
		}
		return n
	}
	total := visible(root, 0)
	if total == 0 && !root.Has("First") {
		root.Delete("Count")
		return
	}
	root.PutInt("Count", total)
}
