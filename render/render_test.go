package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

func newPage(t *testing.T, w, h float64, data string) (*pdf.Doc, *pdf.Page) {
	t.Helper()
	d := pdf.New()
	p := d.PageCreate(coords.Rect{X2: w, Y2: h})
	p.SetContents(sdf.NewStream(nil, []byte(data)))
	if err := d.PagePushBack(p); err != nil {
		t.Fatal(err)
	}
	return d, d.Page(1)
}

// sharp renders at one pixel per point without anti-aliasing.
func sharp() Options {
	o := DefaultOptions()
	o.DPI = 72
	o.AntiAlias = false
	return o
}

func render(t *testing.T, o Options, p *pdf.Page) *image.RGBA {
	t.Helper()
	img, err := New(o).Render(context.Background(), p)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return img
}

// at returns the pixel under user space point (x, y) of a 72 DPI render
// of a page h points high.
func at(img *image.RGBA, x, y, h float64) color.RGBA {
	return img.RGBAAt(int(x), int(h-y))
}

var (
	white = color.RGBA{0xff, 0xff, 0xff, 0xff}
	black = color.RGBA{0, 0, 0, 0xff}
	red   = color.RGBA{0xff, 0, 0, 0xff}
	blue  = color.RGBA{0, 0, 0xff, 0xff}
)

func TestGeometry(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		rotate int
		w, h   int
	}{
		{"72 dpi", Options{DPI: 72}, 0, 612, 792},
		{"144 dpi", Options{DPI: 144}, 0, 1224, 1584},
		{"page rotated", Options{DPI: 72}, 90, 792, 612},
		{"option rotated", Options{DPI: 72, Rotate: 270}, 0, 792, 612},
		{"fit width", Options{Width: 306}, 0, 306, 396},
		{"fit box", Options{Width: 100, Height: 100}, 0, 77, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p := newPage(t, 612, 792, "")
			p.SetRotation(tt.rotate)
			_, w, h := New(tt.opts).Geometry(p)
			if w != tt.w || h != tt.h {
				t.Errorf("size = %dx%d, want %dx%d", w, h, tt.w, tt.h)
			}
		})
	}
}

func TestGeometryMapsCorners(t *testing.T) {
	_, p := newPage(t, 200, 100, "")
	m, _, _ := New(Options{DPI: 72}).Geometry(p)
	got := []coords.Point{m.Transform(coords.Point{X: 0, Y: 0}), m.Transform(coords.Point{X: 200, Y: 100})}
	want := []coords.Point{{X: 0, Y: 100}, {X: 200, Y: 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("corners (-want +got):\n%s", diff)
	}
}

func TestRenderPaths(t *testing.T) {
	tests := []struct {
		name    string
		content string
		probes  map[[2]float64]color.RGBA
	}{
		{
			name:    "filled rect",
			content: "1 0 0 rg 10 10 30 30 re f",
			probes:  map[[2]float64]color.RGBA{{25, 25}: red, {80, 20}: white},
		},
		{
			name:    "clip",
			content: "10 10 20 20 re W n 0 0 1 rg 0 0 100 100 re f",
			probes:  map[[2]float64]color.RGBA{{20, 20}: blue, {50, 50}: white},
		},
		{
			name:    "clip restored by Q",
			content: "q 10 10 20 20 re W n Q 0 0 1 rg 0 0 100 100 re f",
			probes:  map[[2]float64]color.RGBA{{20, 20}: blue, {50, 50}: blue},
		},
		{
			name:    "stroke",
			content: "0 G 4 w 10 50 m 90 50 l S",
			probes:  map[[2]float64]color.RGBA{{50, 50}: black, {50, 40}: white},
		},
		{
			name:    "dashed stroke",
			content: "0 G 4 w [10 10] 0 d 0 50 m 100 50 l S",
			probes:  map[[2]float64]color.RGBA{{5, 50}: black, {15, 50}: white, {25, 50}: black},
		},
		{
			name:    "cmyk fill",
			content: "0 0 0 1 k 0 0 50 50 re f",
			probes:  map[[2]float64]color.RGBA{{25, 25}: black},
		},
		{
			name:    "transformed",
			content: "q 2 0 0 2 0 0 cm 1 0 0 rg 0 0 10 10 re f Q",
			probes:  map[[2]float64]color.RGBA{{15, 15}: red, {25, 25}: white},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p := newPage(t, 100, 100, tt.content)
			img := render(t, sharp(), p)
			for pt, want := range tt.probes {
				if got := at(img, pt[0], pt[1], 100); got != want {
					t.Errorf("pixel at %v = %v, want %v", pt, got, want)
				}
			}
		})
	}
}

func TestRenderText(t *testing.T) {
	d, p := newPage(t, 100, 100, "BT /F1 72 Tf 10 20 Td (H) Tj ET")
	f, err := content.NewStandardFont(d.SDF(), "Helvetica")
	if err != nil {
		t.Fatal(err)
	}
	p.Resources().PutDict("Font").Set("F1", f.Obj)
	img := render(t, sharp(), p)
	// A row between the baseline and the crossbar crosses both stems.
	dark := 0
	for x := 10.0; x < 70; x++ {
		if at(img, x, 30, 100) == black {
			dark++
		}
	}
	if dark < 8 {
		t.Errorf("dark pixels across the stems = %d, want at least 8", dark)
	}
	if got := at(img, 20, 95, 100); got != white {
		t.Errorf("pixel above glyph = %v, want white", got)
	}
}

func TestRenderShading(t *testing.T) {
	_, p := newPage(t, 100, 100, "/Sh1 sh")
	fn := sdf.NewDict()
	fn.PutInt("FunctionType", 2)
	fn.Set("Domain", sdf.NewArray(sdf.Int(0), sdf.Int(1)))
	fn.Set("C0", sdf.NewArray(sdf.Int(1), sdf.Int(0), sdf.Int(0)))
	fn.Set("C1", sdf.NewArray(sdf.Int(0), sdf.Int(0), sdf.Int(1)))
	fn.PutInt("N", 1)
	sh := sdf.NewDict()
	sh.PutInt("ShadingType", 2)
	sh.PutName("ColorSpace", "DeviceRGB")
	sh.Set("Coords", sdf.NewArray(sdf.Int(0), sdf.Int(0), sdf.Int(100), sdf.Int(0)))
	sh.Set("Function", fn)
	p.Resources().PutDict("Shading").Set("Sh1", sh)

	img := render(t, sharp(), p)
	left, right := at(img, 1, 50, 100), at(img, 98, 50, 100)
	if left.R < 240 || left.B > 15 {
		t.Errorf("left = %v, want red", left)
	}
	if right.B < 240 || right.R > 15 {
		t.Errorf("right = %v, want blue", right)
	}
}

func TestRenderAnnotations(t *testing.T) {
	d, p := newPage(t, 100, 100, "")
	a := d.CreateSquare(coords.Rect{X1: 10, Y1: 10, X2: 50, Y2: 50})
	ap := sdf.NewStream(nil, []byte("0 0 1 rg 0 0 10 10 re f"))
	ap.Dict.PutRect("BBox", 0, 0, 10, 10)
	a.SetAppearance(ap)
	p.AddAnnot(a)

	img := render(t, sharp(), p)
	if got := at(img, 30, 30, 100); got != blue {
		t.Errorf("annotation pixel = %v, want blue (appearance scaled to rect)", got)
	}

	o := sharp()
	o.DrawAnnotations = false
	if got := at(render(t, o, p), 30, 30, 100); got != white {
		t.Errorf("with annotations off pixel = %v, want white", got)
	}

	a.SetFlags(pdf.FlagHidden)
	if got := at(render(t, sharp(), p), 30, 30, 100); got != white {
		t.Errorf("hidden annotation pixel = %v, want white", got)
	}
}

func TestRenderFormClip(t *testing.T) {
	d, p := newPage(t, 100, 100, "q 1 0 0 1 20 20 cm /Fm1 Do Q")
	form := sdf.NewStream(nil, []byte("1 0 0 rg 0 0 100 100 re f"))
	form.Dict.PutName("Type", "XObject")
	form.Dict.PutName("Subtype", "Form")
	form.Dict.PutRect("BBox", 0, 0, 10, 10)
	p.Resources().PutDict("XObject").Set("Fm1", d.SDF().CreateIndirect(form))

	img := render(t, sharp(), p)
	if got := at(img, 25, 25, 100); got != red {
		t.Errorf("inside form box = %v, want red", got)
	}
	if got := at(img, 50, 50, 100); got != white {
		t.Errorf("outside form box = %v, want white", got)
	}
}

func TestRenderCancelled(t *testing.T) {
	_, p := newPage(t, 100, 100, "0 0 10 10 re f")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(sharp()).Render(ctx, p); err == nil {
		t.Fatal("expected context error")
	}
}

func TestExport(t *testing.T) {
	_, p := newPage(t, 50, 40, "1 0 0 rg 0 0 50 40 re f")
	decoders := map[Format]func(*bytes.Buffer) (image.Image, error){
		PNG:  func(b *bytes.Buffer) (image.Image, error) { return png.Decode(b) },
		BMP:  func(b *bytes.Buffer) (image.Image, error) { return bmp.Decode(b) },
		TIFF: func(b *bytes.Buffer) (image.Image, error) { return tiff.Decode(b) },
	}
	for f, decode := range decoders {
		t.Run(f.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := New(sharp()).Export(context.Background(), p, &buf, f); err != nil {
				t.Fatalf("Export: %v", err)
			}
			img, err := decode(&buf)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got := img.Bounds().Size(); got != (image.Point{X: 50, Y: 40}) {
				t.Errorf("size = %v", got)
			}
			r, g, b, _ := img.At(25, 20).RGBA()
			if r>>8 != 0xff || g != 0 || b != 0 {
				t.Errorf("pixel = %d %d %d, want red", r>>8, g>>8, b>>8)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"png", PNG, true},
		{".JPG", JPEG, true},
		{"jpeg", JPEG, true},
		{"tif", TIFF, true},
		{"bmp", BMP, true},
		{"gif", PNG, false},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v", tt.in, got, err)
		}
	}
}
