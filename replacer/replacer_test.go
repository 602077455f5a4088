package replacer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"strings"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/textextract"
	"github.com/google/go-cmp/cmp"
)

func newPage(t *testing.T, stream string) (*pdf.Doc, *pdf.Page) {
	t.Helper()
	d := pdf.New()
	p := d.PageCreate(coords.Rect{X2: 612, Y2: 792})
	f, err := content.NewStandardFont(d.SDF(), "Helvetica")
	if err != nil {
		t.Fatal(err)
	}
	p.Resources().PutDict("Font").Set("F1", f.Obj)
	p.SetContents(sdf.NewStream(nil, []byte(stream)))
	if err := d.PagePushBack(p); err != nil {
		t.Fatal(err)
	}
	return d, p
}

func pageText(t *testing.T, p *pdf.Page) *textextract.Result {
	t.Helper()
	res, err := textextract.Extract(context.Background(), p)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return res
}

func elements(t *testing.T, d *pdf.Doc, p *pdf.Page) []*content.Element {
	t.Helper()
	r := content.NewReader(d)
	if err := r.Begin(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	var out []*content.Element
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, e)
	}
}

func TestAddString(t *testing.T) {
	_, p := newPage(t, `BT /F1 12 Tf 72 700 Td (Dear [NAME],) Tj ET
BT /F1 12 Tf 72 680 Td ([TITLE] [NAME] [UNKNOWN]) Tj ET`)
	r := New()
	r.AddString("NAME", "John Smith")
	r.AddString("TITLE", "Dr")
	rep, err := r.Process(context.Background(), p)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if rep.Strings != 3 {
		t.Errorf("Strings = %d, want 3", rep.Strings)
	}
	want := "Dear John Smith,\nDr John Smith [UNKNOWN]"
	if diff := cmp.Diff(want, pageText(t, p).Text()); diff != "" {
		t.Errorf("text (-want +got):\n%s", diff)
	}
}

func TestAddStringDelimiters(t *testing.T) {
	_, p := newPage(t, `BT /F1 12 Tf 72 700 Td (Hi {{NAME}} [NAME]) Tj ET`)
	r := New()
	r.Start, r.End = "{{", "}}"
	r.AddString("NAME", "Ann")
	if _, err := r.Process(context.Background(), p); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := pageText(t, p).Text(); got != "Hi Ann [NAME]" {
		t.Errorf("text = %q", got)
	}
}

func newImage(t *testing.T, d *pdf.Doc, c color.Color) *content.Image {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, c)
		}
	}
	img, err := content.NewImage(d.SDF(), src, content.ImageOptions{})
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	return img
}

func TestAddImage(t *testing.T) {
	d, p := newPage(t, "")
	old := newImage(t, d, color.RGBA{R: 255, A: 255})
	w := content.NewWriter()
	if err := w.Begin(p, content.Replacement, false); err != nil {
		t.Fatal(err)
	}
	b := content.NewBuilder(d.SDF())
	for _, x := range []float64{50, 300} {
		if err := w.WriteElement(b.CreateImageAt(old, x, 50, 100, 100)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := w.End(); err != nil {
		t.Fatal(err)
	}

	repl := newImage(t, d, color.RGBA{B: 255, A: 255})
	r := New()
	r.AddImage(coords.Rect{X1: 0, Y1: 0, X2: 200, Y2: 200}, repl.Ref)
	rep, err := r.Process(context.Background(), p)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if rep.Images != 1 {
		t.Errorf("Images = %d, want 1", rep.Images)
	}
	var got []sdf.Obj
	for _, e := range elements(t, d, p) {
		if e.Type == content.ElementImage {
			got = append(got, e.XObject.Obj)
		}
	}
	if diff := cmp.Diff([]sdf.Obj{repl.Ref, old.Ref}, got); diff != "" {
		t.Errorf("drawn images (-want +got):\n%s", diff)
	}
}

func TestAddText(t *testing.T) {
	_, p := newPage(t, `BT /F1 10 Tf 100 700 Td (old copy one) Tj ET
BT /F1 10 Tf 100 680 Td (old copy two) Tj ET
BT /F1 10 Tf 100 400 Td (kept) Tj ET`)
	region := coords.Rect{X1: 90, Y1: 600, X2: 200, Y2: 720}
	r := New()
	r.AddText(region, strings.Repeat("hello ", 10))
	rep, err := r.Process(context.Background(), p)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if rep.Texts != 2 {
		t.Errorf("Texts = %d, want 2", rep.Texts)
	}
	res := pageText(t, p)
	if strings.Contains(res.Text(), "old") {
		t.Fatalf("old text survived:\n%s", res.Text())
	}
	hellos := 0
	for _, w := range res.Words() {
		switch w.Text {
		case "hello":
			hellos++
			if !region.ContainsRect(w.BBox) {
				t.Errorf("word box %v outside region %v", w.BBox, region)
			}
		case "kept":
		default:
			t.Errorf("unexpected word %q", w.Text)
		}
	}
	if hellos != 10 {
		t.Errorf("hello count = %d, want 10", hellos)
	}
	if len(res.Lines()) < 3 {
		t.Errorf("replacement not wrapped: %d lines", len(res.Lines()))
	}
}

func TestWrap(t *testing.T) {
	// Every character is one unit wide.
	measure := func(s string) float64 { return float64(len(s)) }
	tests := []struct {
		text string
		max  float64
		want []string
	}{
		{"a b c", 10, []string{"a b c"}},
		{"aaa bbb ccc", 7, []string{"aaa bbb", "ccc"}},
		{"toolongword x", 5, []string{"toolongword", "x"}},
		{"  ", 5, nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, wrap(tt.text, tt.max, measure)); diff != "" {
			t.Errorf("wrap(%q, %v) (-want +got):\n%s", tt.text, tt.max, diff)
		}
	}
}
