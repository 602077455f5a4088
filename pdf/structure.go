package pdf

import (
	"errors"
	"fmt"
	"sort"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

var errStop = errors.New("stop")

// StructTree is the logical structure of a tagged document, rooted at the
// catalog's /StructTreeRoot.
type StructTree struct {
	doc  *Doc
	Ref  sdf.Ref
	Dict *sdf.Dict
}

// StructTree returns the structure tree, or nil for untagged documents.
func (d *Doc) StructTree() *StructTree {
	cat := d.sdf.Root()
	if cat == nil {
		return nil
	}
	root := d.sdf.Dict(cat.Get("StructTreeRoot"))
	if root == nil {
		return nil
	}
	ref, _ := cat.Get("StructTreeRoot").(sdf.Ref)
	return &StructTree{doc: d, Ref: ref, Dict: root}
}

// CreateStructTree returns the structure tree, adding an empty one and
// marking the document as tagged when there is none.
func (d *Doc) CreateStructTree() *StructTree {
	if t := d.StructTree(); t != nil {
		return t
	}
	dict, ref := d.sdf.CreateIndirectDict()
	dict.PutName("Type", "StructTreeRoot")
	dict.Set("K", sdf.NewArray())
	cat := d.sdf.Root()
	cat.Set("StructTreeRoot", ref)
	mark := d.sdf.Dict(cat.Get("MarkInfo"))
	if mark == nil {
		mark = cat.PutDict("MarkInfo")
	}
	mark.PutBool("Marked", true)
	return &StructTree{doc: d, Ref: ref, Dict: dict}
}

// Kids returns the top level structure elements.
func (t *StructTree) Kids() []*StructElem {
	var out []*StructElem
	for _, k := range t.doc.structKids(t.Dict.Get("K"), nil) {
		if k.Elem != nil {
			out = append(out, k.Elem)
		}
	}
	return out
}

// AppendKid adds a top level element of structure type typ.
func (t *StructTree) AppendKid(typ string) *StructElem {
	return t.doc.appendStructElem(t.Dict, t.Ref, typ)
}

// RoleMap returns the mapping from custom structure types to standard
// ones.
func (t *StructTree) RoleMap() map[string]string {
	out := make(map[string]string)
	rm := t.doc.sdf.Dict(t.Dict.Get("RoleMap"))
	if rm == nil {
		return out
	}
	for _, k := range rm.Keys() {
		if n, ok := t.doc.sdf.Name(rm.Get(k)); ok {
			out[string(k)] = string(n)
		}
	}
	return out
}

// SetRole maps the custom type to a standard structure type.
func (t *StructTree) SetRole(custom, standard string) {
	rm := t.doc.sdf.Dict(t.Dict.Get("RoleMap"))
	if rm == nil {
		rm = t.Dict.PutDict("RoleMap")
	}
	rm.PutName(sdf.Name(custom), standard)
}

// Walk visits every element depth first in document order. Returning an
// error from fn stops the walk.
func (t *StructTree) Walk(fn func(e *StructElem, depth int) error) error {
	seen := make(map[*sdf.Dict]bool)
	var walk func(elems []*StructElem, depth int) error
	walk = func(elems []*StructElem, depth int) error {
		if depth > maxTreeDepth {
			return nil
		}
		for _, e := range elems {
			if seen[e.Dict] {
				continue
			}
			seen[e.Dict] = true
			if err := fn(e, depth); err != nil {
				return err
			}
			if err := walk(e.Elems(), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(t.Kids(), 0)
}

// FindByID returns the element whose /ID is id.
func (t *StructTree) FindByID(id string) *StructElem {
	if o, ok := t.doc.nameTreeLookup(t.Dict.Get("IDTree"), id); ok {
		if d := t.doc.sdf.Dict(o); d != nil {
			ref, _ := o.(sdf.Ref)
			return &StructElem{doc: t.doc, Ref: ref, Dict: d}
		}
	}
	var found *StructElem
	_ = t.Walk(func(e *StructElem, _ int) error {
		if e.ID() == id {
			found = e
			return errStop
		}
		return nil
	})
	return found
}

// ParentElem returns the element owning marked content mcid on page, found
// through the page's /StructParents entry in the parent tree.
func (t *StructTree) ParentElem(page *Page, mcid int) *StructElem {
	key, ok := t.doc.sdf.Int(page.Dict.Get("StructParents"))
	if !ok || mcid < 0 {
		return nil
	}
	for _, e := range t.doc.treeEntries(t.Dict.Get("ParentTree"), "Nums") {
		if e.num != key {
			continue
		}
		arr := t.doc.sdf.Array(e.val)
		if arr == nil {
			return nil
		}
		o := arr.At(mcid)
		d := t.doc.sdf.Dict(o)
		if d == nil {
			return nil
		}
		ref, _ := o.(sdf.Ref)
		return &StructElem{doc: t.doc, Ref: ref, Dict: d}
	}
	return nil
}

// parentTreeSet stores val under key in the parent tree.
func (t *StructTree) parentTreeSet(key int64, val sdf.Obj) {
	entries := t.doc.treeEntries(t.Dict.Get("ParentTree"), "Nums")
	out := entries[:0]
	for _, e := range entries {
		if e.num != key {
			out = append(out, e)
		}
	}
	out = append(out, treeEntry{num: key, val: val})
	sort.SliceStable(out, func(i, j int) bool { return out[i].num < out[j].num })
	t.doc.writeTree(t.Dict, "ParentTree", "Nums", out)
}

func (t *StructTree) parentTreeGet(key int64) sdf.Obj {
	for _, e := range t.doc.treeEntries(t.Dict.Get("ParentTree"), "Nums") {
		if e.num == key {
			return e.val
		}
	}
	return nil
}

// nextParentKey allocates a parent tree key.
func (t *StructTree) nextParentKey() int64 {
	next, ok := t.doc.sdf.Int(t.Dict.Get("ParentTreeNextKey"))
	if !ok {
		for _, e := range t.doc.treeEntries(t.Dict.Get("ParentTree"), "Nums") {
			if e.num >= next {
				next = e.num + 1
			}
		}
	}
	t.Dict.PutInt("ParentTreeNextKey", next+1)
	return next
}

// StructElem is a node of the structure tree.
type StructElem struct {
	doc  *Doc
	Ref  sdf.Ref
	Dict *sdf.Dict
}

// Type returns the structure type, such as P or H1.
func (e *StructElem) Type() string {
	n, _ := e.doc.sdf.Name(e.Dict.Get("S"))
	return string(n)
}

// StandardType follows the role map from Type to a standard type.
func (e *StructElem) StandardType() string {
	typ := e.Type()
	t := e.doc.StructTree()
	if t == nil {
		return typ
	}
	rm := t.RoleMap()
	for i := 0; i < len(rm); i++ {
		next, ok := rm[typ]
		if !ok || next == typ {
			break
		}
		typ = next
	}
	return typ
}

func (e *StructElem) text(key sdf.Name) string { return e.doc.sdf.TextValue(e.Dict.Get(key)) }

func (e *StructElem) Title() string      { return e.text("T") }
func (e *StructElem) ID() string         { return e.text("ID") }
func (e *StructElem) Alt() string        { return e.text("Alt") }
func (e *StructElem) ActualText() string { return e.text("ActualText") }
func (e *StructElem) Lang() string       { return e.text("Lang") }

func (e *StructElem) HasTitle() bool { return e.Dict.Has("T") }

func (e *StructElem) SetTitle(s string)      { e.Dict.PutText("T", s) }
func (e *StructElem) SetAlt(s string)        { e.Dict.PutText("Alt", s) }
func (e *StructElem) SetActualText(s string) { e.Dict.PutText("ActualText", s) }

// SetID sets the element identifier and records it in the tree's ID map.
func (e *StructElem) SetID(id string) {
	e.Dict.PutString("ID", id)
	if t := e.doc.StructTree(); t != nil && !e.Ref.IsZero() {
		e.doc.nameTreePut(t.Dict, "IDTree", id, e.Ref)
	}
}

// Parent returns the enclosing element, or nil under the tree root.
func (e *StructElem) Parent() *StructElem {
	o := e.Dict.Get("P")
	d := e.doc.sdf.Dict(o)
	if d == nil {
		return nil
	}
	if n, _ := d.NameValue("Type"); n == "StructTreeRoot" {
		return nil
	}
	ref, _ := o.(sdf.Ref)
	return &StructElem{doc: e.doc, Ref: ref, Dict: d}
}

// Page returns the page named by /Pg, or nil.
func (e *StructElem) Page() *Page {
	ref, ok := e.Dict.Get("Pg").(sdf.Ref)
	if !ok {
		return nil
	}
	return e.doc.page(ref)
}

// Kids returns the element's children: elements and content items.
func (e *StructElem) Kids() []StructKid { return e.doc.structKids(e.Dict.Get("K"), e) }

// Elems returns only the child elements.
func (e *StructElem) Elems() []*StructElem {
	var out []*StructElem
	for _, k := range e.Kids() {
		if k.Elem != nil {
			out = append(out, k.Elem)
		}
	}
	return out
}

// AppendKid adds a child element of structure type typ.
func (e *StructElem) AppendKid(typ string) *StructElem {
	return e.doc.appendStructElem(e.Dict, e.Ref, typ)
}

// AppendContent links marked content mcid on page to the element and
// records the reverse mapping in the parent tree.
func (e *StructElem) AppendContent(page *Page, mcid int) error {
	t := e.doc.StructTree()
	if t == nil || e.Ref.IsZero() {
		return sdf.Errorf("struct content", sdf.ErrNotFound, "element is not in a structure tree")
	}
	if mcid < 0 {
		return fmt.Errorf("pdf: negative MCID %d", mcid)
	}
	if !e.Dict.Has("Pg") {
		e.Dict.Set("Pg", page.Ref)
	}
	if pg, ok := e.Dict.Get("Pg").(sdf.Ref); ok && pg == page.Ref {
		appendK(e.Dict, sdf.Int(mcid))
	} else {
		mcr := sdf.NewDict()
		mcr.PutName("Type", "MCR")
		mcr.Set("Pg", page.Ref)
		mcr.PutInt("MCID", int64(mcid))
		appendK(e.Dict, mcr)
	}

	key, ok := e.doc.sdf.Int(page.Dict.Get("StructParents"))
	if !ok {
		key = t.nextParentKey()
		page.Dict.PutInt("StructParents", key)
	}
	arr := t.doc.sdf.Array(t.parentTreeGet(key))
	if arr == nil {
		arr = sdf.NewArray()
	}
	for arr.Len() <= mcid {
		arr.Append(sdf.Null{})
	}
	arr.Set(mcid, e.Ref)
	t.parentTreeSet(key, arr)
	return nil
}

// AppendObject links a whole object, typically an annotation, to the
// element.
func (e *StructElem) AppendObject(page *Page, obj sdf.Ref, objDict *sdf.Dict) error {
	t := e.doc.StructTree()
	if t == nil || e.Ref.IsZero() {
		return sdf.Errorf("struct object", sdf.ErrNotFound, "element is not in a structure tree")
	}
	objr := sdf.NewDict()
	objr.PutName("Type", "OBJR")
	objr.Set("Obj", obj)
	objr.Set("Pg", page.Ref)
	appendK(e.Dict, objr)
	key := t.nextParentKey()
	objDict.PutInt("StructParent", key)
	t.parentTreeSet(key, e.Ref)
	return nil
}

// StructKidKind tells what a structure child refers to.
type StructKidKind int

const (
	KidElement StructKidKind = iota
	KidMCID
	KidOBJR
)

// StructKid is one child of a structure element. Page and MCID are set
// for marked content; Obj for object references.
type StructKid struct {
	Kind   StructKidKind
	Elem   *StructElem
	Page   *Page
	MCID   int
	Obj    sdf.Ref
	Stream sdf.Ref
}

func appendK(d *sdf.Dict, o sdf.Obj) {
	switch k := d.Get("K").(type) {
	case *sdf.Array:
		k.Append(o)
	case nil, sdf.Null:
		d.Set("K", o)
	default:
		d.Set("K", sdf.NewArray(k, o))
	}
}

func (d *Doc) appendStructElem(parent *sdf.Dict, parentRef sdf.Ref, typ string) *StructElem {
	dict, ref := d.sdf.CreateIndirectDict()
	dict.PutName("Type", "StructElem")
	dict.PutName("S", typ)
	dict.Set("P", parentRef)
	appendK(parent, ref)
	return &StructElem{doc: d, Ref: ref, Dict: dict}
}

// structKids decodes a /K value. Children without their own /Pg use the
// page of parent.
func (d *Doc) structKids(k sdf.Obj, parent *StructElem) []StructKid {
	var defPage *Page
	if parent != nil {
		defPage = parent.Page()
	}
	var items []sdf.Obj
	if arr := d.sdf.Array(k); arr != nil {
		items = arr.Items()
	} else if !sdf.IsNull(k) {
		items = []sdf.Obj{k}
	}
	var out []StructKid
	for _, it := range items {
		if n, ok := d.sdf.Int(it); ok {
			out = append(out, StructKid{Kind: KidMCID, Page: defPage, MCID: int(n)})
			continue
		}
		dict := d.sdf.Dict(it)
		if dict == nil {
			continue
		}
		pg := defPage
		if ref, ok := dict.Get("Pg").(sdf.Ref); ok {
			pg = d.page(ref)
		}
		typ, _ := dict.NameValue("Type")
		switch typ {
		case "MCR":
			n, _ := d.sdf.Int(dict.Get("MCID"))
			stm, _ := dict.Get("Stm").(sdf.Ref)
			out = append(out, StructKid{Kind: KidMCID, Page: pg, MCID: int(n), Stream: stm})
		case "OBJR":
			obj, _ := dict.Get("Obj").(sdf.Ref)
			out = append(out, StructKid{Kind: KidOBJR, Page: pg, MCID: -1, Obj: obj})
		default:
			ref, _ := it.(sdf.Ref)
			out = append(out, StructKid{Kind: KidElement, Elem: &StructElem{doc: d, Ref: ref, Dict: dict}, MCID: -1})
		}
	}
	return out
}
