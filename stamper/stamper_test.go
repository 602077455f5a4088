package stamper

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/textextract"
)

func newDoc(t *testing.T, pages int) *pdf.Doc {
	t.Helper()
	d := pdf.New()
	for i := 0; i < pages; i++ {
		p := d.PageCreate(coords.Rect{X2: 200, Y2: 200})
		p.SetContents(sdf.NewStream(nil, []byte("0 0 1 rg 0 0 10 10 re f")))
		if err := d.PagePushBack(p); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestPlacement(t *testing.T) {
	tests := []struct {
		name   string
		s      Stamper
		rotate int
		want   coords.Rect
	}{
		{
			name: "absolute bottom left",
			s:    Stamper{Size: AbsoluteSize, Width: 100, Height: 50, HAlign: HLeft, VAlign: VBottom, X: 10, Y: 20},
			want: coords.Rect{X1: 10, Y1: 20, X2: 60, Y2: 70},
		},
		{
			name: "relative centered",
			s:    Stamper{Size: RelativeScale, Width: 0.5, Height: 0.5},
			want: coords.Rect{X1: 50, Y1: 50, X2: 150, Y2: 150},
		},
		{
			name: "top right percent offset",
			s:    Stamper{Size: AbsoluteSize, Width: 20, HAlign: HRight, VAlign: VTop, X: 0.1, Y: 0.1, PercentPosition: true},
			want: coords.Rect{X1: 160, Y1: 160, X2: 180, Y2: 180},
		},
		{
			name: "rotated page",
			s:    Stamper{Size: AbsoluteSize, Width: 20, HAlign: HLeft, VAlign: VTop},
			// The display's top left corner is user space's bottom left.
			rotate: 90,
			want:   coords.Rect{X1: 0, Y1: 0, X2: 20, Y2: 20},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDoc(t, 1)
			p := d.Page(1)
			p.SetRotation(tt.rotate)
			m := tt.s.Placement(p, coords.Rect{X2: 10, Y2: 10}, false)
			if diff := cmp.Diff(tt.want, m.TransformRect(coords.Rect{X2: 10, Y2: 10}), approx); diff != "" {
				t.Errorf("placed box (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlacementRotation(t *testing.T) {
	d := newDoc(t, 1)
	s := Stamper{Size: AbsoluteSize, Rotation: 90, HAlign: HLeft, VAlign: VBottom}
	got := s.Placement(d.Page(1), coords.Rect{X2: 40, Y2: 10}, false).TransformRect(coords.Rect{X2: 40, Y2: 10})
	want := coords.Rect{X1: 0, Y1: 0, X2: 10, Y2: 40}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("rotated box (-want +got):\n%s", diff)
	}
}

func TestStampTextAndDelete(t *testing.T) {
	ctx := context.Background()
	d := newDoc(t, 3)
	s := New(FontSize, 24, 0)
	s.Opacity = 0.5
	if err := s.StampText(ctx, d, "DRAFT\nCOPY", pdf.NewPageSet(1, 0, pdf.AllPages)); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		ok, err := HasStamps(ctx, d.Page(i))
		if err != nil || !ok {
			t.Fatalf("page %d HasStamps = %v, %v", i, ok, err)
		}
	}
	res, err := textextract.Extract(ctx, d.Page(2))
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Text(); !strings.Contains(got, "DRAFT") || !strings.Contains(got, "COPY") {
		t.Errorf("text = %q", got)
	}
	data, err := d.Page(1).ContentBytes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(" gs")) {
		t.Errorf("no opacity state in %q", data)
	}

	if err := DeleteStamps(ctx, d, pdf.NewPageSet(1, 0, pdf.OddPages)); err != nil {
		t.Fatal(err)
	}
	for i, want := range []bool{false, true, false} {
		ok, err := HasStamps(ctx, d.Page(i+1))
		if err != nil {
			t.Fatal(err)
		}
		if ok != want {
			t.Errorf("page %d HasStamps = %v, want %v", i+1, ok, want)
		}
	}
	// Existing content survives deletion.
	r := content.NewReader(d)
	if err := r.Begin(ctx, d.Page(1)); err != nil {
		t.Fatal(err)
	}
	els, err := r.ReadAll(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	paths := 0
	for _, e := range els {
		if e.Type == content.ElementPath {
			paths++
		}
	}
	if paths != 1 {
		t.Errorf("paths after delete = %d, want 1", paths)
	}
}

func TestStampImageBackground(t *testing.T) {
	ctx := context.Background()
	d := newDoc(t, 1)
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	src.Set(0, 0, color.RGBA{0xff, 0, 0, 0xff})
	img, err := content.NewImage(d.SDF(), src, content.ImageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	s := New(AbsoluteSize, 100, 0)
	s.AsBackground = true
	if err := s.StampImage(ctx, d, img, pdf.NewPageSet(1, 1, pdf.AllPages)); err != nil {
		t.Fatal(err)
	}
	data, err := d.Page(1).ContentBytes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	stamp, fill := bytes.Index(data, []byte("/Artifact")), bytes.Index(data, []byte("re"))
	if stamp < 0 || fill < 0 || stamp > fill {
		t.Errorf("background stamp not drawn first in %q", data)
	}
}

func TestStampPageAsAnnotation(t *testing.T) {
	ctx := context.Background()
	src := newDoc(t, 1)
	d := newDoc(t, 2)
	s := New(RelativeScale, 0.25, 0.25)
	s.AsAnnotation = true
	s.ShowsOnScreen = false
	if err := s.StampPage(ctx, d, src.Page(1), pdf.NewPageSet(2, 2, pdf.AllPages)); err != nil {
		t.Fatal(err)
	}
	if n := len(d.Page(1).Annots()); n != 0 {
		t.Errorf("page 1 annots = %d", n)
	}
	annots := d.Page(2).Annots()
	if len(annots) != 1 {
		t.Fatalf("page 2 annots = %d, want 1", len(annots))
	}
	a := annots[0]
	if a.Type() != pdf.AnnotWatermark {
		t.Errorf("subtype = %s", a.Type())
	}
	if diff := cmp.Diff(coords.Rect{X1: 75, Y1: 75, X2: 125, Y2: 125}, a.Rect(), approx); diff != "" {
		t.Errorf("rect (-want +got):\n%s", diff)
	}
	if a.Flags()&pdf.FlagNoView == 0 || a.Flags()&pdf.FlagPrint == 0 {
		t.Errorf("flags = %b", a.Flags())
	}
	if err := DeleteStamps(ctx, d, pdf.AllPageSet()); err != nil {
		t.Fatal(err)
	}
	if n := len(d.Page(2).Annots()); n != 0 {
		t.Errorf("annots after delete = %d", n)
	}
}

func TestStampPrintOnlyLayer(t *testing.T) {
	d := newDoc(t, 1)
	s := New(FontSize, 12, 0)
	s.ShowsOnScreen = false
	if err := s.StampText(context.Background(), d, "printed", pdf.AllPageSet()); err != nil {
		t.Fatal(err)
	}
	ocgs := d.OCGs()
	if len(ocgs) != 1 {
		t.Fatalf("layers = %d, want 1", len(ocgs))
	}
	if ocgs[0].IsOn() {
		t.Error("layer visible on screen")
	}
	data, _ := d.Page(1).ContentBytes(context.Background())
	if !bytes.Contains(data, []byte("/OC /")) {
		t.Errorf("stamp not tied to the layer: %q", data)
	}
}

func TestStampTextEmpty(t *testing.T) {
	d := newDoc(t, 1)
	if err := New(FontSize, 12, 0).StampText(context.Background(), d, "", pdf.AllPageSet()); err == nil {
		t.Fatal("expected error")
	}
}

func TestScaleKeepsAspect(t *testing.T) {
	d := newDoc(t, 1)
	s := Stamper{Size: AbsoluteSize, Width: 50, Height: 50}
	if got := s.scale(d.Page(1), 100, 25, false); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("scale = %v, want 0.5", got)
	}
}
