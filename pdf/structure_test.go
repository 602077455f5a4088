package pdf

import (
	"fmt"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/google/go-cmp/cmp"
)

// taggedDoc builds Document > (H1 "Intro", Para > Span) over two pages.
func taggedDoc(t *testing.T) *Doc {
	t.Helper()
	d := newDoc(t, 2)
	tree := d.CreateStructTree()
	tree.SetRole("Para", "P")
	doc := tree.AppendKid("Document")
	h := doc.AppendKid("H1")
	h.SetTitle("Intro")
	h.SetID("intro")
	if err := h.AppendContent(d.Page(1), 0); err != nil {
		t.Fatalf("AppendContent: %v", err)
	}
	p := doc.AppendKid("Para")
	if err := p.AppendContent(d.Page(1), 1); err != nil {
		t.Fatalf("AppendContent: %v", err)
	}
	span := p.AppendKid("Span")
	if err := span.AppendContent(d.Page(2), 0); err != nil {
		t.Fatalf("AppendContent: %v", err)
	}
	// The paragraph continues on page 2 through a marked content reference.
	if err := p.AppendContent(d.Page(2), 1); err != nil {
		t.Fatalf("AppendContent: %v", err)
	}
	return d
}

func describe(t *testing.T, tree *StructTree) []string {
	t.Helper()
	var out []string
	err := tree.Walk(func(e *StructElem, depth int) error {
		s := fmt.Sprintf("%d %s/%s", depth, e.Type(), e.StandardType())
		for _, k := range e.Kids() {
			if k.Kind == KidMCID {
				s += fmt.Sprintf(" p%d:%d", k.Page.Index(), k.MCID)
			}
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	return out
}

func TestStructTree(t *testing.T) {
	d := taggedDoc(t)
	want := []string{
		"0 Document/Document",
		"1 H1/H1 p1:0",
		"1 Para/P p1:1 p2:1",
		"2 Span/Span p2:0",
	}
	if diff := cmp.Diff(want, describe(t, d.StructTree())); diff != "" {
		t.Errorf("tree (-want +got):\n%s", diff)
	}
	// The structure survives a save.
	got := roundTrip(t, d, NoFlags, "")
	if got.StructTree() == nil {
		t.Fatal("StructTreeRoot lost on save")
	}
	if diff := cmp.Diff(want, describe(t, got.StructTree())); diff != "" {
		t.Errorf("reopened tree (-want +got):\n%s", diff)
	}
	if m := got.Catalog().Get("MarkInfo"); sdf.IsNull(m) {
		t.Error("tagged document has no /MarkInfo")
	}
}

func TestStructTreeParentElem(t *testing.T) {
	d := roundTrip(t, taggedDoc(t), NoFlags, "")
	tree := d.StructTree()
	tests := []struct {
		page, mcid int
		want       string
	}{
		{1, 0, "H1"},
		{1, 1, "Para"},
		{2, 0, "Span"},
		{2, 1, "Para"},
		{2, 5, ""},
		{1, -1, ""},
	}
	for _, tt := range tests {
		got := ""
		if e := tree.ParentElem(d.Page(tt.page), tt.mcid); e != nil {
			got = e.Type()
		}
		if got != tt.want {
			t.Errorf("ParentElem(page %d, mcid %d) = %q, want %q", tt.page, tt.mcid, got, tt.want)
		}
	}
}

func TestStructTreeFindByID(t *testing.T) {
	d := taggedDoc(t)
	tree := d.StructTree()
	e := tree.FindByID("intro")
	if e == nil || e.Title() != "Intro" {
		t.Fatalf("FindByID(intro) = %v", e)
	}
	if p := e.Parent(); p == nil || p.Type() != "Document" {
		t.Errorf("parent = %v, want Document", p)
	}
	if p := e.Parent().Parent(); p != nil {
		t.Errorf("top level element has parent %v", p)
	}
	if tree.FindByID("missing") != nil {
		t.Error("found an element for an unknown ID")
	}
}

func TestStructTreeObjectReference(t *testing.T) {
	d := newDoc(t, 1)
	page := d.Page(1)
	link := d.CreateLink(coords.Rect{X1: 10, Y1: 10, X2: 50, Y2: 30}, nil)
	page.AddAnnot(link)
	tree := d.CreateStructTree()
	e := tree.AppendKid("Link")
	if err := e.AppendObject(page, link.Ref, link.Dict); err != nil {
		t.Fatalf("AppendObject: %v", err)
	}
	kids := e.Kids()
	if len(kids) != 1 || kids[0].Kind != KidOBJR || kids[0].Obj != link.Ref {
		t.Fatalf("kids = %+v", kids)
	}
	if _, ok := d.SDF().Int(link.Dict.Get("StructParent")); !ok {
		t.Error("annotation has no /StructParent")
	}
}

func TestUntaggedDocument(t *testing.T) {
	d := newDoc(t, 1)
	if d.StructTree() != nil {
		t.Fatal("untagged document reports a structure tree")
	}
	e := &StructElem{doc: d, Dict: sdf.NewDict()}
	if err := e.AppendContent(d.Page(1), 0); err == nil {
		t.Fatal("AppendContent outside a tree succeeded")
	}
}
