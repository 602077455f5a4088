package flatten

import (
	"context"
	"image/color"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/render"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

func newDoc(t *testing.T) (*pdf.Doc, *pdf.Page) {
	t.Helper()
	d := pdf.New()
	p := d.PageCreate(coords.Rect{X2: 100, Y2: 100})
	if err := d.PagePushBack(p); err != nil {
		t.Fatal(err)
	}
	return d, d.Page(1)
}

// square adds a blue filled square annotation over r.
func square(t *testing.T, d *pdf.Doc, p *pdf.Page, r coords.Rect) *pdf.Annot {
	t.Helper()
	a := d.CreateSquare(r)
	a.SetInteriorColor(0, 0, 1)
	a.SetBorder(0, pdf.BorderSolid)
	if err := a.RefreshAppearance(); err != nil {
		t.Fatal(err)
	}
	p.AddAnnot(a)
	return a
}

func pixel(t *testing.T, p *pdf.Page, x, y int) color.RGBA {
	t.Helper()
	o := render.DefaultOptions()
	o.DPI = 72
	o.AntiAlias = false
	o.DrawAnnotations = false
	img, err := render.New(o).Render(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	return img.RGBAAt(x, 100-y)
}

func TestFlattenPaintsAppearance(t *testing.T) {
	d, p := newDoc(t)
	square(t, d, p, coords.Rect{X1: 10, Y1: 10, X2: 40, Y2: 40})

	rep, err := Flatten(context.Background(), d, Settings{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Flattened != 1 {
		t.Errorf("Flattened = %d, want 1", rep.Flattened)
	}
	if n := len(p.Annots()); n != 0 {
		t.Errorf("annotations left = %d", n)
	}
	if got := pixel(t, p, 25, 25); got != (color.RGBA{0, 0, 0xff, 0xff}) {
		t.Errorf("flattened pixel = %v, want blue", got)
	}
	if got := pixel(t, p, 60, 60); got != (color.RGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("pixel outside = %v, want white", got)
	}
}

func TestFlattenKeepsExistingContent(t *testing.T) {
	d, p := newDoc(t)
	p.SetContents(sdf.NewStream(nil, []byte("1 0 0 rg 60 60 30 30 re f 2 0 0 2 0 0 cm")))
	square(t, d, p, coords.Rect{X1: 10, Y1: 10, X2: 40, Y2: 40})
	if _, err := Flatten(context.Background(), d, Settings{Compress: true}); err != nil {
		t.Fatal(err)
	}
	if got := pixel(t, p, 75, 75); got != (color.RGBA{0xff, 0, 0, 0xff}) {
		t.Errorf("original content pixel = %v, want red", got)
	}
	// The page's leftover cm must not move the appearance.
	if got := pixel(t, p, 25, 25); got != (color.RGBA{0, 0, 0xff, 0xff}) {
		t.Errorf("flattened pixel = %v, want blue", got)
	}
}

func TestFlattenHidden(t *testing.T) {
	tests := []struct {
		name   string
		hidden Hidden
		left   int
	}{
		{"drop", HiddenDrop, 0},
		{"keep", HiddenKeep, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, p := newDoc(t)
			a := square(t, d, p, coords.Rect{X1: 10, Y1: 10, X2: 40, Y2: 40})
			a.SetFlags(pdf.FlagHidden)
			rep, err := Flatten(context.Background(), d, Settings{Hidden: tt.hidden})
			if err != nil {
				t.Fatal(err)
			}
			if rep.Flattened != 0 {
				t.Errorf("Flattened = %d, want 0", rep.Flattened)
			}
			if n := len(p.Annots()); n != tt.left {
				t.Errorf("annotations left = %d, want %d", n, tt.left)
			}
			if got := pixel(t, p, 25, 25); got != (color.RGBA{0xff, 0xff, 0xff, 0xff}) {
				t.Errorf("hidden annotation painted: %v", got)
			}
		})
	}
}

func TestFlattenModes(t *testing.T) {
	tests := []struct {
		mode        Mode
		annots      int
		hasAcroForm bool
	}{
		{All, 0, false},
		{Annotations, 1, true},
		{Fields, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			d, p := newDoc(t)
			square(t, d, p, coords.Rect{X1: 10, Y1: 10, X2: 40, Y2: 40})
			f, err := d.CreateField("name", pdf.FieldText, "Ada")
			if err != nil {
				t.Fatal(err)
			}
			f.AddWidget(p, coords.Rect{X1: 50, Y1: 50, X2: 90, Y2: 70})

			if _, err := Flatten(context.Background(), d, Settings{Mode: tt.mode}); err != nil {
				t.Fatal(err)
			}
			if n := len(p.Annots()); n != tt.annots {
				t.Errorf("annotations left = %d, want %d", n, tt.annots)
			}
			if got := d.Catalog().Has("AcroForm"); got != tt.hasAcroForm {
				t.Errorf("AcroForm present = %v, want %v", got, tt.hasAcroForm)
			}
		})
	}
}

func TestFlattenRemovesPopups(t *testing.T) {
	d, p := newDoc(t)
	a := square(t, d, p, coords.Rect{X1: 10, Y1: 10, X2: 40, Y2: 40})
	pop := d.CreateAnnot(pdf.AnnotPopup, coords.Rect{X1: 50, Y1: 50, X2: 90, Y2: 90})
	pop.Dict.Set("Parent", a.Ref)
	p.AddAnnot(pop)
	link := d.CreateLink(coords.Rect{X1: 0, Y1: 0, X2: 5, Y2: 5}, d.URIAction("https://example.com"))
	p.AddAnnot(link)

	rep, err := Flatten(context.Background(), d, Settings{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", rep.Dropped)
	}
	left := p.Annots()
	if len(left) != 1 || left[0].Type() != pdf.AnnotLink {
		t.Errorf("annotations left = %d, want only the link", len(left))
	}
}

func TestFlattenEmptyDocument(t *testing.T) {
	rep, err := Flatten(context.Background(), pdf.New(), Settings{})
	if err != nil || rep != (Report{}) {
		t.Fatalf("Flatten = %+v, %v", rep, err)
	}
}

func TestAnnot(t *testing.T) {
	d, p := newDoc(t)
	a := square(t, d, p, coords.Rect{X1: 10, Y1: 10, X2: 40, Y2: 40})
	keep := square(t, d, p, coords.Rect{X1: 60, Y1: 60, X2: 90, Y2: 90})
	if err := Annot(p, a); err != nil {
		t.Fatal(err)
	}
	left := p.Annots()
	if len(left) != 1 || left[0].Ref != keep.Ref {
		t.Fatalf("annotations left = %v", left)
	}
	if got := pixel(t, p, 25, 25); got != (color.RGBA{0, 0, 0xff, 0xff}) {
		t.Errorf("flattened pixel = %v, want blue", got)
	}
}
