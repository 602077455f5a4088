package pdf

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/recovery"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/security"
	"github.com/google/go-cmp/cmp"
)

var letter = coords.Rect{X1: 0, Y1: 0, X2: 612, Y2: 792}

// newDoc returns a document whose page i draws "page i".
func newDoc(t *testing.T, n int) *Doc {
	t.Helper()
	d := New()
	for i := 1; i <= n; i++ {
		p := d.PageCreate(letter)
		p.SetContents(sdf.NewStream(nil, []byte(fmt.Sprintf("BT /F1 12 Tf 72 720 Td (page %d) Tj ET", i))))
		if err := d.PagePushBack(p); err != nil {
			t.Fatalf("PagePushBack: %v", err)
		}
	}
	return d
}

func contents(t *testing.T, d *Doc) []string {
	t.Helper()
	var out []string
	for _, p := range d.Pages() {
		b, err := p.ContentBytes(context.Background())
		if err != nil {
			t.Fatalf("ContentBytes: %v", err)
		}
		out = append(out, string(b))
	}
	return out
}

func roundTrip(t *testing.T, d *Doc, flags Flags, password string) *Doc {
	t.Helper()
	data, err := d.SaveBytes(flags)
	if err != nil {
		t.Fatalf("SaveBytes(%s): %v", flags, err)
	}
	out, err := OpenBytes(data, OpenOptions{Password: password, Recovery: recovery.NewStrictStrategy()})
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	return out
}

func TestSaveOpenRoundTrip(t *testing.T) {
	for _, flags := range []Flags{NoFlags, Compress, RemoveUnused | ObjectStreams, Linearized, Incremental} {
		t.Run(flags.String(), func(t *testing.T) {
			d := newDoc(t, 3)
			want := contents(t, d)
			if flags.Has(Incremental) {
				d = roundTrip(t, d, NoFlags, "")
			}
			got := roundTrip(t, d, flags, "")
			if got.PageCount() != 3 {
				t.Fatalf("PageCount = %d, want 3", got.PageCount())
			}
			if diff := cmp.Diff(want, contents(t, got)); diff != "" {
				t.Errorf("contents mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSaveIncrementalAddedPage(t *testing.T) {
	first, err := newDoc(t, 1).SaveBytes(NoFlags)
	if err != nil {
		t.Fatalf("SaveBytes: %v", err)
	}
	d, err := OpenBytes(first, OpenOptions{})
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	p := d.PageCreate(letter)
	p.SetContents(sdf.NewStream(nil, []byte("BT /F1 12 Tf 72 720 Td (page 2) Tj ET")))
	if err := d.PagePushBack(p); err != nil {
		t.Fatalf("PagePushBack: %v", err)
	}
	want := contents(t, d)

	got := roundTrip(t, d, Incremental, "")
	if got.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", got.PageCount())
	}
	if diff := cmp.Diff(want, contents(t, got)); diff != "" {
		t.Errorf("contents mismatch (-want +got):\n%s", diff)
	}
}

func TestTryLock(t *testing.T) {
	d := New()
	d.Lock()
	if d.TryLock(5 * time.Millisecond) {
		t.Fatal("TryLock succeeded while write-locked")
	}
	if d.TryLockRead(5 * time.Millisecond) {
		t.Fatal("TryLockRead succeeded while write-locked")
	}
	d.Unlock()

	d.LockRead()
	if !d.TryLockRead(5 * time.Millisecond) {
		t.Fatal("second reader was refused")
	}
	if d.TryLock(5 * time.Millisecond) {
		t.Fatal("TryLock succeeded while read-locked")
	}
	d.UnlockRead()
	d.UnlockRead()

	done := make(chan bool)
	d.Lock()
	go func() { done <- d.TryLock(time.Second) }()
	time.Sleep(10 * time.Millisecond)
	d.Unlock()
	if !<-done {
		t.Fatal("TryLock did not acquire the lock once it was released")
	}
	d.Unlock()
}

func encrypted(t *testing.T) []byte {
	t.Helper()
	d := newDoc(t, 1)
	s := security.DefaultSettings()
	s.UserPassword, s.OwnerPassword = "user", "owner"
	if _, err := d.NewSecurityHandler(s); err != nil {
		t.Fatalf("NewSecurityHandler: %v", err)
	}
	data, err := d.SaveBytes(NoFlags)
	if err != nil {
		t.Fatalf("SaveBytes: %v", err)
	}
	return data
}

func TestWrongPasswordNeverUnlocks(t *testing.T) {
	data := encrypted(t)

	d, err := OpenBytes(data, OpenOptions{})
	if !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("open without password: err = %v, want ErrPasswordRequired", err)
	}
	if d.InitSecurityHandler() {
		t.Fatal("empty password unlocked the document")
	}
	for _, pw := range []string{"", "User", "owner ", "wrong"} {
		if err := d.InitStdSecurityHandler(pw); !errors.Is(err, ErrInvalidPassword) {
			t.Errorf("InitStdSecurityHandler(%q) = %v, want ErrInvalidPassword", pw, err)
		}
		if d.SecurityState() != security.Locked {
			t.Fatalf("state after %q = %v, want Locked", pw, d.SecurityState())
		}
	}
	if _, err := d.SaveBytes(NoFlags); !errors.Is(err, ErrLocked) {
		t.Errorf("saving a locked document: err = %v, want ErrLocked", err)
	}
	if err := d.RemoveSecurity(); !errors.Is(err, ErrLocked) {
		t.Errorf("RemoveSecurity on locked document = %v, want ErrLocked", err)
	}

	if err := d.InitStdSecurityHandler("user"); err != nil {
		t.Fatalf("correct password: %v", err)
	}
	if d.SecurityState() != security.Unlocked {
		t.Fatalf("state = %v, want Unlocked", d.SecurityState())
	}
	if d.Permissions().Modify != true {
		t.Errorf("user permissions lost Modify")
	}
	if diff := cmp.Diff([]string{"BT /F1 12 Tf 72 720 Td (page 1) Tj ET"}, contents(t, d)); diff != "" {
		t.Errorf("decrypted contents (-want +got):\n%s", diff)
	}
}

func TestRemoveSecurity(t *testing.T) {
	d := newDoc(t, 1)
	if err := d.RemoveSecurity(); err != nil {
		t.Fatalf("RemoveSecurity on unencrypted document: %v", err)
	}
	if d.SecurityState() != security.Unencrypted {
		t.Fatalf("state = %v, want Unencrypted", d.SecurityState())
	}
	if d.SDF().Trailer().Has("Encrypt") {
		t.Fatal("trailer gained /Encrypt")
	}

	e, err := OpenBytes(encrypted(t), OpenOptions{Password: "owner"})
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	if err := e.RemoveSecurity(); err != nil {
		t.Fatalf("RemoveSecurity: %v", err)
	}
	plain := roundTrip(t, e, NoFlags, "")
	if plain.SecurityState() != security.Unencrypted {
		t.Fatalf("saved copy is still encrypted")
	}
	if diff := cmp.Diff([]string{"BT /F1 12 Tf 72 720 Td (page 1) Tj ET"}, contents(t, plain)); diff != "" {
		t.Errorf("contents (-want +got):\n%s", diff)
	}
}

func TestPageOperations(t *testing.T) {
	d := newDoc(t, 3)
	page := func(i int) string {
		b, _ := d.Page(i).ContentBytes(context.Background())
		return string(b)
	}
	order := func() []int {
		var out []int
		for i := 1; i <= d.PageCount(); i++ {
			var n int
			fmt.Sscanf(page(i), "BT /F1 12 Tf 72 720 Td (page %d)", &n)
			out = append(out, n)
		}
		return out
	}

	if err := d.MovePage(3, 1); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{3, 1, 2}, order()); diff != "" {
		t.Fatalf("after MovePage (-want +got):\n%s", diff)
	}
	if err := d.PageRemove(2); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{3, 2}, order()); diff != "" {
		t.Fatalf("after PageRemove (-want +got):\n%s", diff)
	}
	p := d.PageCreate(letter)
	p.SetContents(sdf.NewStream(nil, []byte("BT /F1 12 Tf 72 720 Td (page 9) Tj ET")))
	if err := d.PagePushFront(p); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{9, 3, 2}, order()); diff != "" {
		t.Fatalf("after PagePushFront (-want +got):\n%s", diff)
	}
	if p.Index() != 1 {
		t.Errorf("Index = %d, want 1", p.Index())
	}
	if err := d.PageInsert(5, d.PageCreate(letter)); err == nil {
		t.Error("PageInsert past the end succeeded")
	}
	if err := d.PagePushBack(p); err == nil {
		t.Error("inserting a page twice succeeded")
	}
	if got := d.pageTree().Get("Count"); got != sdf.Int(3) {
		t.Errorf("/Count = %v, want 3", got)
	}
}

func TestInheritedAttributes(t *testing.T) {
	d := New()
	s := d.SDF()
	tree := d.pageTree()
	tree.PutRect("MediaBox", 0, 0, 300, 400)
	tree.PutInt("Rotate", 90)
	inner, innerRef := s.CreateIndirectDict()
	inner.PutName("Type", "Pages")
	inner.Set("Parent", d.Catalog().Get("Pages"))
	page, pageRef := s.CreateIndirectDict()
	page.PutName("Type", "Page")
	page.Set("Parent", innerRef)
	inner.Set("Kids", sdf.NewArray(pageRef))
	inner.PutInt("Count", 1)
	tree.Set("Kids", sdf.NewArray(innerRef))
	tree.PutInt("Count", 1)
	d.pages = nil

	p := d.Page(1)
	if p == nil {
		t.Fatal("nested page not found")
	}
	if got := p.MediaBox(); got != coords.NewRect(0, 0, 300, 400) {
		t.Errorf("MediaBox = %v", got)
	}
	if p.Rotation() != 90 || p.Width() != 400 || p.Height() != 300 {
		t.Errorf("rotation %d, size %gx%g", p.Rotation(), p.Width(), p.Height())
	}
	m := p.DefaultMatrix()
	if got := m.Transform(coords.Point{X: 300, Y: 0}); got != (coords.Point{X: 0, Y: 0}) {
		t.Errorf("lower right corner maps to %v, want origin", got)
	}

	// Structural edits flatten the tree and copy inherited values down.
	if err := d.PagePushBack(d.PageCreate(letter)); err != nil {
		t.Fatal(err)
	}
	if !page.Has("MediaBox") || !page.Has("Rotate") {
		t.Error("inherited attributes were not copied onto the page")
	}
	if tree.Has("MediaBox") {
		t.Error("root page node kept an inheritable attribute")
	}
	if d.Page(1).Rotation() != 90 {
		t.Error("rotation lost after flattening")
	}
}

func TestImportPages(t *testing.T) {
	src := New()
	font, fontRef := src.SDF().CreateIndirectDict()
	font.PutName("Type", "Font")
	for i := 0; i < 2; i++ {
		p := src.PageCreate(letter)
		p.Resources().PutDict("Font").Set("F1", fontRef)
		p.SetContents(sdf.NewStream(nil, []byte("q Q")))
		link := src.CreateLink(coords.NewRect(0, 0, 10, 10), src.URIAction("https://example.com"))
		if err := src.PagePushBack(p); err != nil {
			t.Fatal(err)
		}
		p.AddAnnot(link)
	}

	dst := New()
	pages, err := dst.ImportPages(src)
	if err != nil {
		t.Fatalf("ImportPages: %v", err)
	}
	for _, p := range pages {
		if err := dst.PagePushBack(p); err != nil {
			t.Fatal(err)
		}
	}
	if dst.PageCount() != 2 {
		t.Fatalf("PageCount = %d", dst.PageCount())
	}
	r1 := dst.SDF().Dict(dst.Page(1).Dict.Get("Resources")).Get("Font")
	r2 := dst.SDF().Dict(dst.Page(2).Dict.Get("Resources")).Get("Font")
	fa := dst.SDF().Dict(r1).Get("F1")
	fb := dst.SDF().Dict(r2).Get("F1")
	if fa != fb {
		t.Errorf("shared font imported twice: %v and %v", fa, fb)
	}
	for i, p := range dst.Pages() {
		annots := p.Annots()
		if len(annots) != 1 {
			t.Fatalf("page %d has %d annotations", i+1, len(annots))
		}
		if got := annots[0].Dict.Get("P"); got != p.Ref {
			t.Errorf("page %d annotation /P = %v, want %v", i+1, got, p.Ref)
		}
	}
}

func TestBookmarks(t *testing.T) {
	d := newDoc(t, 3)
	ch1 := d.AddRootBookmark("Chapter 1")
	ch2 := d.AddRootBookmark("Chapter 2")
	s11 := ch1.AddChild("Section 1.1")
	s12 := ch1.AddChild("Section 1.2")
	s12.AddChild("Detail")
	ch1.SetAction(d.GoToAction(Fit(d.Page(2))))

	root, _ := d.outlineRoot(false)
	count := func(b *Bookmark) int64 {
		n, _ := d.SDF().Int(b.Dict.Get("Count"))
		return n
	}
	// Children are closed by default.
	if got, _ := d.SDF().Int(root.Get("Count")); got != 2 {
		t.Errorf("root /Count = %d, want 2", got)
	}
	if count(ch1) != -2 {
		t.Errorf("closed chapter /Count = %d, want -2", count(ch1))
	}
	ch1.SetOpen(true)
	s12.SetOpen(true)
	if count(ch1) != 3 {
		t.Errorf("open chapter /Count = %d, want 3", count(ch1))
	}
	if got, _ := d.SDF().Int(root.Get("Count")); got != 5 {
		t.Errorf("root /Count = %d, want 5", got)
	}

	if got := d.FirstBookmark().Find("Detail"); got == nil || got.Indent() != 2 {
		t.Fatalf("Find(Detail) = %v", got)
	}
	if ch1.ChildCount() != 2 || !ch1.HasChildren() || ch2.HasChildren() {
		t.Error("child bookkeeping is wrong")
	}
	if dst, ok := ch1.Action().Dest(); !ok || dst.PageIndex(d) != 2 {
		t.Errorf("chapter destination = %+v, %v", dst, ok)
	}

	s12.AddPrev("Section 1.1b")
	var titles []string
	for b := ch1.FirstChild(); b != nil; b = b.Next() {
		titles = append(titles, b.Title())
	}
	if diff := cmp.Diff([]string{"Section 1.1", "Section 1.1b", "Section 1.2"}, titles); diff != "" {
		t.Errorf("children (-want +got):\n%s", diff)
	}

	if err := s11.Delete(); err != nil {
		t.Fatal(err)
	}
	if ch1.FirstChild().Title() != "Section 1.1b" || ch1.FirstChild().Prev() != nil {
		t.Error("Delete left dangling links")
	}
	ch2.AddChildBookmark(s12)
	if s12.Parent().Title() != "Chapter 2" || ch1.ChildCount() != 1 {
		t.Error("moving a bookmark did not relink it")
	}

	reopened := roundTrip(t, d, NoFlags, "")
	var top []string
	for b := reopened.FirstBookmark(); b != nil; b = b.Next() {
		top = append(top, b.Title())
	}
	if diff := cmp.Diff([]string{"Chapter 1", "Chapter 2"}, top); diff != "" {
		t.Errorf("outline after save (-want +got):\n%s", diff)
	}
}

func TestNamedDestinations(t *testing.T) {
	d := newDoc(t, 2)
	d.SetNamedDest("intro", FitH(d.Page(2), 700))
	d.SetNamedDest("appendix", XYZ(d.Page(1), 10, 20, 0))

	got := roundTrip(t, d, NoFlags, "")
	dst, ok := got.NamedDest("intro")
	if !ok {
		t.Fatal("named destination lost")
	}
	if dst.Type != DestFitH || dst.Top != 700 || dst.PageIndex(got) != 2 {
		t.Errorf("intro = %+v", dst)
	}
	act := got.GoToNamedAction("appendix")
	if dst, ok := act.Dest(); !ok || dst.PageIndex(got) != 1 || dst.Left != 10 {
		t.Errorf("GoTo appendix = %+v, %v", dst, ok)
	}
	got.RemoveNamedDest("intro")
	if _, ok := got.NamedDest("intro"); ok {
		t.Error("RemoveNamedDest left the entry")
	}
}

func TestAnnotations(t *testing.T) {
	d := newDoc(t, 1)
	p := d.Page(1)
	sq := d.CreateSquare(coords.NewRect(100, 100, 200, 150))
	sq.SetInteriorColor(1, 0, 0)
	sq.SetBorder(2, BorderSolid)
	p.AddAnnot(sq)
	hl := d.CreateTextMarkup(AnnotHighlight, []coords.Rect{coords.NewRect(72, 700, 200, 712)})
	p.AddAnnot(hl)
	ft := d.CreateFreeText(coords.NewRect(300, 300, 400, 360), "hello free text", 10)
	p.AddAnnot(ft)

	for _, a := range p.Annots() {
		if err := a.RefreshAppearance(); err != nil {
			t.Fatalf("RefreshAppearance(%s): %v", a.Type(), err)
		}
		if a.Appearance() == nil {
			t.Fatalf("%s has no appearance", a.Type())
		}
	}
	if got := string(sq.Appearance().Data); got != "q 2 w 0 0 0 RG 1 0 0 rg 1 1 98 48 re B Q\n" {
		t.Errorf("square appearance = %q", got)
	}
	if got := hl.QuadPoints(); len(got) != 1 || got[0] != coords.NewRect(72, 700, 200, 712) {
		t.Errorf("QuadPoints = %v", got)
	}
	if err := d.CreateStamp(coords.NewRect(0, 0, 1, 1), "Draft").RefreshAppearance(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("stamp appearance err = %v, want ErrUnsupported", err)
	}

	if !p.RemoveAnnot(sq) || len(p.Annots()) != 2 {
		t.Error("RemoveAnnot failed")
	}
	if p.RemoveAnnot(sq) {
		t.Error("removing twice succeeded")
	}
}

func TestForms(t *testing.T) {
	d := newDoc(t, 1)
	p := d.Page(1)
	name, err := d.CreateField("name", FieldText, "")
	if err != nil {
		t.Fatal(err)
	}
	name.AddWidget(p, coords.NewRect(72, 600, 272, 620))
	agree, err := d.CreateField("agree", FieldCheckBox, "")
	if err != nil {
		t.Fatal(err)
	}
	agree.AddWidget(p, coords.NewRect(72, 560, 86, 574))
	color, _ := d.CreateField("color", FieldRadio, "")
	color.AddButtonWidget(p, coords.NewRect(72, 520, 86, 534), "Red")
	color.AddButtonWidget(p, coords.NewRect(92, 520, 106, 534), "Blue")

	if _, err := d.CreateField("name", FieldText, ""); err == nil {
		t.Error("duplicate field name accepted")
	}
	if err := name.SetValue("Ada Lovelace"); err != nil {
		t.Fatal(err)
	}
	if err := agree.SetValue("Yes"); err != nil {
		t.Fatal(err)
	}
	if err := color.SetValue("Blue"); err != nil {
		t.Fatal(err)
	}
	if err := color.SetValue("Green"); err == nil {
		t.Error("unknown radio state accepted")
	}

	got := roundTrip(t, d, NoFlags, "")
	values := map[string]string{}
	for _, f := range got.Fields() {
		values[f.Name()] = f.Value()
	}
	want := map[string]string{"name": "Ada Lovelace", "agree": "Yes", "color": "Blue"}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Errorf("field values (-want +got):\n%s", diff)
	}
	var states []string
	for _, w := range got.Field("color").Widgets() {
		as, _ := w.Dict.NameValue("AS")
		states = append(states, string(as))
	}
	if diff := cmp.Diff([]string{"Off", "Blue"}, states); diff != "" {
		t.Errorf("radio states (-want +got):\n%s", diff)
	}
	if err := got.Field("agree").Reset(); err != nil || got.Field("agree").Value() != "Off" {
		t.Errorf("Reset: %v, value %q", err, got.Field("agree").Value())
	}
	if got.Field("name").Widgets()[0].Appearance() == nil {
		t.Error("text field has no appearance")
	}
}

func TestParseDA(t *testing.T) {
	got := ParseDA("/HeBo 9.5 Tf 1 0 0 rg")
	want := DA{Font: "HeBo", Size: 9.5, Color: []float64{1, 0, 0}, ColorOp: "1 0 0 rg "}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseDA (-want +got):\n%s", diff)
	}
}

func TestPageLabels(t *testing.T) {
	d := newDoc(t, 8)
	if err := d.SetPageLabel(1, LabelRomanLower, "", 1); err != nil {
		t.Fatal(err)
	}
	if err := d.SetPageLabel(4, LabelDecimal, "", 1); err != nil {
		t.Fatal(err)
	}
	if err := d.SetPageLabel(7, LabelLettersUpper, "A-", 26); err != nil {
		t.Fatal(err)
	}
	var got []string
	for i := 1; i <= 8; i++ {
		got = append(got, d.PageLabel(i))
	}
	want := []string{"i", "ii", "iii", "1", "2", "3", "A-Z", "A-AA"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
	d.RemovePageLabel(4)
	if d.PageLabel(4) != "iv" {
		t.Errorf("after removal page 4 = %q, want iv", d.PageLabel(4))
	}
	if err := d.SetPageLabel(9, LabelDecimal, "", 1); err == nil {
		t.Error("label past the last page accepted")
	}
}

func TestFormatLabel(t *testing.T) {
	tests := []struct {
		style LabelStyle
		n     int
		want  string
	}{
		{LabelRomanUpper, 1994, "MCMXCIV"},
		{LabelRomanLower, 4, "iv"},
		{LabelLettersLower, 1, "a"},
		{LabelLettersLower, 27, "aa"},
		{LabelLettersUpper, 53, "AAA"},
		{LabelDecimal, 42, "42"},
		{LabelNone, 3, ""},
	}
	for _, tt := range tests {
		if got := FormatLabel(tt.style, tt.n); got != tt.want {
			t.Errorf("FormatLabel(%d, %d) = %q, want %q", tt.style, tt.n, got, tt.want)
		}
	}
}

func TestDates(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"D:20240229133005Z", time.Date(2024, 2, 29, 13, 30, 5, 0, time.UTC)},
		{"D:1999", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"D:20010203040506+05'30'", time.Date(2001, 2, 3, 4, 5, 6, 0, time.FixedZone("", 5*3600+30*60))},
		{"D:20010203040506-08'00", time.Date(2001, 2, 3, 4, 5, 6, 0, time.FixedZone("", -8*3600))},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if err != nil {
			t.Errorf("ParseDate(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseDate("D:xx"); err == nil {
		t.Error("ParseDate accepted garbage")
	}
	ts := time.Date(2020, 5, 6, 7, 8, 9, 0, time.FixedZone("", -(3*3600 + 30*60)))
	if got := FormatDate(ts); got != "D:20200506070809-03'30'" {
		t.Errorf("FormatDate = %q", got)
	}

	d := New()
	d.SetInfo(Info{Title: "Fish", Author: "Ада", Created: ts})
	info := roundTrip(t, d, NoFlags, "").Info()
	if info.Title != "Fish" || info.Author != "Ада" || !info.Created.Equal(ts) {
		t.Errorf("Info after save = %+v", info)
	}
}

func TestLayers(t *testing.T) {
	d := New()
	a := d.CreateOCG("Background")
	b := d.CreateOCG("Notes")
	d.SetOCGState(b, false)
	res := sdf.NewDict()
	if n1, n2 := a.MarkedContentProperties(res), a.MarkedContentProperties(res); n1 != n2 {
		t.Errorf("layer registered twice: %s, %s", n1, n2)
	}

	got := roundTrip(t, d, NoFlags, "")
	state := map[string]bool{}
	for _, o := range got.OCGs() {
		state[o.Name()] = o.IsOn()
	}
	if diff := cmp.Diff(map[string]bool{"Background": true, "Notes": false}, state); diff != "" {
		t.Errorf("layer states (-want +got):\n%s", diff)
	}
}

func TestEmbeddedFiles(t *testing.T) {
	d := New()
	d.AddFile("b.txt", []byte("bravo"), "second")
	d.AddFile("a.txt", []byte("alpha alpha alpha alpha alpha alpha"), "first")
	d.SetCollection(CollectionDetails)

	got := roundTrip(t, d, Compress, "")
	if !got.IsCollection() {
		t.Error("collection flag lost")
	}
	var names []string
	for _, f := range got.Files() {
		names = append(names, fmt.Sprintf("%s:%s:%d", f.Name, f.Description, f.Size))
	}
	if diff := cmp.Diff([]string{"a.txt:first:35", "b.txt:second:5"}, names); diff != "" {
		t.Errorf("files (-want +got):\n%s", diff)
	}
	data, err := got.FileData(context.Background(), "b.txt")
	if err != nil || string(data) != "bravo" {
		t.Errorf("FileData = %q, %v", data, err)
	}
	if _, err := got.FileData(context.Background(), "c.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file err = %v, want ErrNotFound", err)
	}
}
