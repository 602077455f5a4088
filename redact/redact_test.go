package redact

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/textextract"
)

const hello = "BT /F1 20 Tf 10 40 Td (Hello World) Tj ET"

func newDoc(t *testing.T, data string) (*pdf.Doc, *pdf.Page) {
	t.Helper()
	d := pdf.New()
	p := d.PageCreate(coords.Rect{X2: 200, Y2: 100})
	p.SetContents(sdf.NewStream(nil, []byte(data)))
	if err := d.PagePushBack(p); err != nil {
		t.Fatal(err)
	}
	p = d.Page(1)
	f, err := content.NewStandardFont(d.SDF(), "Helvetica")
	if err != nil {
		t.Fatal(err)
	}
	p.Resources().PutDict("Font").Set("F1", f.Obj)
	return d, p
}

func elements(t *testing.T, d *pdf.Doc, p *pdf.Page) []*content.Element {
	t.Helper()
	r := content.NewReader(d)
	if err := r.Begin(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	els, err := r.ReadAll(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	return els
}

func count(els []*content.Element, typ content.ElementType) int {
	n := 0
	for _, e := range els {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func plain() Appearance {
	a := DefaultAppearance()
	a.Overlay = false
	return a
}

func TestRedactTextGlyphs(t *testing.T) {
	d, p := newDoc(t, hello)
	rep, err := Redact(context.Background(), d, []Redaction{{Page: 1, Rect: coords.Rect{X1: 5, Y1: 30, X2: 58, Y2: 70}}}, plain())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Glyphs != 6 {
		t.Errorf("Glyphs = %d, want 6", rep.Glyphs)
	}
	res, err := textextract.Extract(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(res.Text()); got != "World" {
		t.Errorf("text = %q, want %q", got, "World")
	}
	// The kept run starts where W was, after "Hello " (2556/1000 em).
	for _, e := range elements(t, d, p) {
		if e.Type != content.ElementText {
			continue
		}
		if x := e.Chars()[0].Origin.X; math.Abs(x-(10+2.556*20)) > 0.01 {
			t.Errorf("W origin x = %v, want %v", x, 10+2.556*20)
		}
	}
}

func TestRedactTextMiddle(t *testing.T) {
	d, p := newDoc(t, hello)
	// Covers "lo W".
	_, err := Redact(context.Background(), d, []Redaction{{Page: 1, Rect: coords.Rect{X1: 44, Y1: 30, X2: 70, Y2: 70}}}, plain())
	if err != nil {
		t.Fatal(err)
	}
	var runs []string
	for _, e := range elements(t, d, p) {
		if e.Type == content.ElementText {
			runs = append(runs, e.TextString())
		}
	}
	if diff := cmp.Diff([]string{"Hel", "orld"}, runs); diff != "" {
		t.Errorf("runs (-want +got):\n%s", diff)
	}
}

func TestRedactPathsAndImages(t *testing.T) {
	tests := []struct {
		name   string
		rect   coords.Rect
		images int
		paths  int
	}{
		{"image", coords.Rect{X1: 140, Y1: 0, X2: 200, Y2: 50}, 0, 2},
		{"rect", coords.Rect{X1: 0, Y1: 0, X2: 15, Y2: 15}, 1, 1},
		{"hairline", coords.Rect{X1: 90, Y1: 85, X2: 100, Y2: 95}, 1, 1},
		{"nothing", coords.Rect{X1: 60, Y1: 40, X2: 80, Y2: 60}, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, p := newDoc(t, "q 20 0 0 20 150 10 cm /Im1 Do Q 1 0 0 rg 10 10 20 20 re f 0 G 0 90 m 200 90 l S")
			im := sdf.NewStream(nil, []byte{0})
			im.Dict.PutName("Type", "XObject")
			im.Dict.PutName("Subtype", "Image")
			im.Dict.PutInt("Width", 1)
			im.Dict.PutInt("Height", 1)
			im.Dict.PutInt("BitsPerComponent", 8)
			im.Dict.PutName("ColorSpace", "DeviceGray")
			p.Resources().PutDict("XObject").Set("Im1", d.SDF().CreateIndirect(im))

			if _, err := Redact(context.Background(), d, []Redaction{{Page: 1, Rect: tt.rect}}, plain()); err != nil {
				t.Fatal(err)
			}
			els := elements(t, d, p)
			if got := count(els, content.ElementImage); got != tt.images {
				t.Errorf("images = %d, want %d", got, tt.images)
			}
			if got := count(els, content.ElementPath); got != tt.paths {
				t.Errorf("paths = %d, want %d", got, tt.paths)
			}
		})
	}
}

func TestRedactNegative(t *testing.T) {
	d, p := newDoc(t, hello+" 10 10 5 5 re f")
	_, err := Redact(context.Background(), d, []Redaction{{Page: 1, Rect: coords.Rect{X1: 60, Y1: 30, X2: 150, Y2: 70}, Negative: true}}, plain())
	if err != nil {
		t.Fatal(err)
	}
	els := elements(t, d, p)
	if got := count(els, content.ElementPath); got != 0 {
		t.Errorf("paths outside the kept region = %d", got)
	}
	res, err := textextract.Extract(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(res.Text()); got != "World" {
		t.Errorf("text = %q, want World", got)
	}
}

func TestRedactInlinesCrossingForms(t *testing.T) {
	d, p := newDoc(t, "/Fm1 Do /Fm2 Do")
	sd := d.SDF()
	form := func(data string) sdf.Ref {
		st := sdf.NewStream(nil, []byte(data))
		st.Dict.PutName("Type", "XObject")
		st.Dict.PutName("Subtype", "Form")
		st.Dict.PutRect("BBox", 0, 0, 200, 100)
		return sd.CreateIndirect(st)
	}
	xo := p.Resources().PutDict("XObject")
	xo.Set("Fm1", form("0 0 10 10 re f 100 50 10 10 re f"))
	xo.Set("Fm2", form("q 0 0 1 rg 150 80 10 10 re f Q"))

	_, err := Redact(context.Background(), d, []Redaction{{Page: 1, Rect: coords.Rect{X1: 0, Y1: 0, X2: 20, Y2: 20}}}, plain())
	if err != nil {
		t.Fatal(err)
	}
	els := elements(t, d, p)
	// Both forms cross the region and are inlined; the clip rectangles of
	// the inlined forms are paths too.
	if got := count(els, content.ElementForm); got != 0 {
		t.Errorf("forms = %d, want 0", got)
	}
	var painted []coords.Rect
	for _, e := range els {
		if e.Type == content.ElementPath && e.Filled {
			b, _ := e.BBox()
			painted = append(painted, b)
		}
	}
	sort.Slice(painted, func(i, j int) bool { return painted[i].X1 < painted[j].X1 })
	want := []coords.Rect{{X1: 100, Y1: 50, X2: 110, Y2: 60}, {X1: 150, Y1: 80, X2: 160, Y2: 90}}
	if diff := cmp.Diff(want, painted); diff != "" {
		t.Errorf("painted (-want +got):\n%s", diff)
	}
}

func TestRedactAnnotations(t *testing.T) {
	d, p := newDoc(t, "")
	p.AddAnnot(d.CreateSquare(coords.Rect{X1: 10, Y1: 10, X2: 30, Y2: 30}))
	p.AddAnnot(d.CreateSquare(coords.Rect{X1: 100, Y1: 10, X2: 130, Y2: 30}))
	rep, err := Redact(context.Background(), d, []Redaction{{Page: 1, Rect: coords.Rect{X1: 0, Y1: 0, X2: 50, Y2: 50}}}, plain())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Annots != 1 || len(p.Annots()) != 1 {
		t.Errorf("annots removed = %d, left = %d", rep.Annots, len(p.Annots()))
	}
}

func TestRedactOverlay(t *testing.T) {
	d, p := newDoc(t, hello)
	app := DefaultAppearance()
	app.Border = true
	_, err := Redact(context.Background(), d, []Redaction{{Page: 1, Rect: coords.Rect{X1: 5, Y1: 30, X2: 58, Y2: 70}, Text: "SECRET"}}, app)
	if err != nil {
		t.Fatal(err)
	}
	els := elements(t, d, p)
	var fill, texts []string
	for _, e := range els {
		switch {
		case e.Type == content.ElementPath && e.Filled:
			fill = append(fill, string(e.State.FillSpace.Name))
		case e.Type == content.ElementText:
			texts = append(texts, e.TextString())
		}
	}
	if len(fill) != 1 {
		t.Errorf("filled paths = %v, want the overlay box", fill)
	}
	if diff := cmp.Diff([]string{"World", "SECRET"}, texts); diff != "" {
		t.Errorf("texts (-want +got):\n%s", diff)
	}
}

func TestFromAnnotations(t *testing.T) {
	d, p := newDoc(t, hello)
	a := d.CreateRedact(coords.Rect{X1: 5, Y1: 30, X2: 58, Y2: 70}, "gone")
	p.AddAnnot(a)
	rs := FromAnnotations(d)
	if len(rs) != 1 || rs[0].Page != 1 {
		t.Fatalf("redactions = %+v", rs)
	}
	if _, err := Redact(context.Background(), d, rs, plain()); err != nil {
		t.Fatal(err)
	}
	if len(p.Annots()) != 0 {
		t.Error("redact annotation not removed")
	}
}

func TestRedactBadPage(t *testing.T) {
	d, _ := newDoc(t, hello)
	_, err := Redact(context.Background(), d, []Redaction{{Page: 3, Rect: coords.Rect{X2: 10, Y2: 10}}}, plain())
	if !errors.Is(err, sdf.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestQuadTree(t *testing.T) {
	q := newQuadTree(coords.Rect{X2: 100, Y2: 100}, 2)
	for i := 0; i < 10; i++ {
		x := float64(i * 10)
		q.insert(coords.Rect{X1: x, Y1: x, X2: x + 5, Y2: x + 5}, i)
	}
	got := q.query(coords.Rect{X1: 12, Y1: 12, X2: 33, Y2: 33})
	sort.Ints(got)
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Errorf("query (-want +got):\n%s", diff)
	}
}
