package sdf

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDictKeepsInsertionOrder(t *testing.T) {
	d := NewDict()
	d.PutName("Type", "Page")
	d.PutInt("Count", 3)
	d.PutText("Title", "Fish")
	d.Set("Count", Int(4))
	got := d.Keys()
	want := []Name{"Type", "Count", "Title"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	d.Set("Type", Null{})
	if d.Has("Type") || d.Len() != 2 {
		t.Fatalf("setting null should delete the key")
	}
	if _, ok := d.Get("Missing").(Null); !ok {
		t.Fatalf("missing key should read as null")
	}
}

func TestArrayEdits(t *testing.T) {
	a := NewArray(Int(1), Int(3))
	a.Insert(1, Int(2))
	a.Insert(10, Int(4))
	a.Remove(0)
	got, ok := Numbers(a)
	if !ok {
		t.Fatalf("numbers failed")
	}
	if diff := cmp.Diff([]float64{2, 3, 4}, got); diff != "" {
		t.Fatalf("array mismatch:\n%s", diff)
	}
	if _, ok := a.At(99).(Null); !ok {
		t.Fatalf("out of range should be null")
	}
}

func TestWriteObj(t *testing.T) {
	d := NewDict()
	d.PutName("Type", "Annot")
	d.Set("Name", Name("A B#"))
	d.PutString("T", "a(b)\\c\n")
	d.Set("R", NewArray(Real(1.5), Real(2), Real(0.1234567), Real(-0.0000001)))
	d.Set("P", Ref{Num: 4})
	d.Set("Open", Bool(true))
	got := string(Bytes(d))
	want := `<</Type /Annot/Name /A#20B#23/T (a\(b\)\\c\n)/R [1.5 2 0.12346 0]/P 4 0 R/Open true>>`
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
	hex := string(Bytes(HexStr([]byte{0xde, 0xad})))
	if hex != "<dead>" {
		t.Fatalf("hex string = %s", hex)
	}
}

func TestTextStrings(t *testing.T) {
	tests := []struct {
		in      string
		unicode bool
	}{
		{"Hello", false},
		{"Café €5", false},
		{"日本", true},
	}
	for _, tt := range tests {
		enc := EncodeText(tt.in)
		isUTF16 := len(enc) >= 2 && enc[0] == 0xFE && enc[1] == 0xFF
		if isUTF16 != tt.unicode {
			t.Errorf("%q: utf16 = %v", tt.in, isUTF16)
		}
		if got := DecodeText(enc); got != tt.in {
			t.Errorf("round trip %q -> %q", tt.in, got)
		}
	}
}

func TestCreateIndirectReusesFreedNumbers(t *testing.T) {
	d := NewDoc()
	a := d.CreateIndirect(Int(1))
	b := d.CreateIndirect(Int(2))
	if a.Num != 1 || b.Num != 2 {
		t.Fatalf("unexpected numbers %v %v", a, b)
	}
	if err := d.Free(a); err != nil {
		t.Fatal(err)
	}
	if o, _ := d.Get(a); !IsNull(o) {
		t.Fatalf("freed object should read as null")
	}
	c := d.CreateIndirect(Int(3))
	if c.Num != 1 || c.Gen != 1 {
		t.Fatalf("expected reuse of 1 with gen 1, got %v", c)
	}
	if o, _ := d.Get(a); !IsNull(o) {
		t.Fatalf("stale generation must not resolve")
	}
	seen := map[int]bool{}
	for _, r := range d.Refs() {
		if seen[r.Num] {
			t.Fatalf("duplicate object number %d", r.Num)
		}
		seen[r.Num] = true
	}
	if err := d.Free(a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double free err = %v", err)
	}
}

func TestResolveDepth(t *testing.T) {
	d := NewDoc()
	r1 := d.CreateIndirect(Null{})
	r2 := d.CreateIndirect(r1)
	if err := d.Set(r1, r2); err != nil {
		t.Fatal(err)
	}
	_, err := d.Resolve(r1)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("cycle should be corrupt, got %v", err)
	}
}

type mapLoader map[Ref]Obj

func (m mapLoader) Load(r Ref) (Obj, error) { return m[r], nil }

func TestChangedTracking(t *testing.T) {
	catalog := NewDict()
	catalog.PutName("Type", "Catalog")
	trailer := NewDict()
	trailer.Set("Root", Ref{Num: 1})
	d := NewLoadedDoc(trailer, mapLoader{{Num: 1}: catalog, {Num: 2}: Int(7)})
	d.AddEntry(1, 0, true)
	d.AddEntry(2, 0, true)

	root := d.Root()
	if root == nil {
		t.Fatalf("root not loaded")
	}
	if d.Changed(Ref{Num: 1}) {
		t.Fatalf("freshly loaded object reported changed")
	}
	root.PutName("PageMode", "UseOutlines")
	n := d.CreateIndirect(Int(9))
	got := d.ChangedRefs()
	want := []Ref{{Num: 1}, n}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("changed refs mismatch:\n%s", diff)
	}
}

func TestImportRemapsReferences(t *testing.T) {
	src := NewDoc()
	font := NewDict()
	font.PutName("Type", "Font")
	fontRef := src.CreateIndirect(font)
	page := NewDict()
	page.PutName("Type", "Page")
	page.Set("Parent", Ref{Num: 99})
	res := page.PutDict("Resources").PutDict("Font")
	res.Set("F1", fontRef)
	res.Set("F2", fontRef)
	pageRef := src.CreateIndirect(page)

	dst := NewDoc()
	dst.CreateIndirect(Int(0))
	im := NewImporter(dst, src)
	im.Skip = map[Name]bool{"Parent": true}
	out, err := im.Import(pageRef)
	if err != nil {
		t.Fatal(err)
	}
	p := dst.Dict(out)
	if p == nil || p.Has("Parent") {
		t.Fatalf("imported page wrong: %v", p)
	}
	fonts := dst.Dict(dst.Dict(p.Get("Resources")).Get("Font"))
	if fonts.Get("F1") != fonts.Get("F2") {
		t.Fatalf("shared font should be imported once")
	}
	if dst.Dict(fonts.Get("F1")).Get("Type") != Name("Font") {
		t.Fatalf("font not copied")
	}
}

func TestReachable(t *testing.T) {
	d := NewDoc()
	leaf := d.CreateIndirect(Int(1))
	orphan := d.CreateIndirect(Int(2))
	cat := NewDict()
	cat.Set("X", NewArray(leaf))
	d.Trailer().Set("Root", d.CreateIndirect(cat))
	seen, err := d.Reachable()
	if err != nil {
		t.Fatal(err)
	}
	if !seen[leaf] || seen[orphan] {
		t.Fatalf("reachable = %v", seen)
	}
}
