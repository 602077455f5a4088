package optimize

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

func newDoc(t *testing.T, pages ...string) *pdf.Doc {
	t.Helper()
	d := pdf.New()
	for _, c := range pages {
		p := d.PageCreate(coords.Rect{X2: 200, Y2: 200})
		p.SetContents(sdf.NewStream(nil, []byte(c)))
		if err := d.PagePushBack(p); err != nil {
			t.Fatal(err)
		}
	}
	return d
}


func TestEmptyDocumentUntouched(t *testing.T) {
	d := pdf.New()
	before := len(d.SDF().Refs())
	rep, err := Optimize(context.Background(), d, DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	if rep != (Report{}) {
		t.Errorf("report = %+v, want zero", rep)
	}
	if got := len(d.SDF().Refs()); got != before {
		t.Errorf("objects = %d, want %d", got, before)
	}
}

func TestMergeDuplicateStreams(t *testing.T) {
	d := newDoc(t, "0 0 10 10 re f", "0 0 10 10 re f", "1 0 0 rg")
	rep, err := New(Settings{DedupStreams: true}).Optimize(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if rep.StreamsMerged != 1 {
		t.Errorf("StreamsMerged = %d, want 1", rep.StreamsMerged)
	}
	c1 := d.Page(1).Dict.Get("Contents")
	c2 := d.Page(2).Dict.Get("Contents")
	c3 := d.Page(3).Dict.Get("Contents")
	if c1 != c2 {
		t.Errorf("identical contents not shared: %v and %v", c1, c2)
	}
	if c1 == c3 {
		t.Errorf("different contents merged")
	}
}

func TestMergeDuplicateObjectsCascades(t *testing.T) {
	d := newDoc(t, "")
	sd := d.SDF()
	a := sd.CreateIndirect(sdf.NewArray(sdf.Int(1), sdf.Int(2)))
	b := sd.CreateIndirect(sdf.NewArray(sdf.Int(1), sdf.Int(2)))
	// Parents only become identical once a and b are merged.
	pa := sd.CreateIndirect(sdf.NewArray(a))
	pb := sd.CreateIndirect(sdf.NewArray(b))
	holder := d.Page(1).Dict.PutDict("PieceInfo")
	holder.Set("A", pa)
	holder.Set("B", pb)

	rep, err := New(Settings{DedupObjects: true}).Optimize(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if rep.ObjectsMerged != 2 {
		t.Errorf("ObjectsMerged = %d, want 2", rep.ObjectsMerged)
	}
	if holder.Get("A") != holder.Get("B") {
		t.Errorf("parents not merged: %v %v", holder.Get("A"), holder.Get("B"))
	}
}

func TestPagesNotMerged(t *testing.T) {
	d := newDoc(t, "", "")
	if _, err := New(Settings{DedupObjects: true, DedupStreams: true}).Optimize(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if d.PageCount() != 2 || d.Page(1).Ref == d.Page(2).Ref {
		t.Fatalf("page tree damaged: %d pages", d.PageCount())
	}
}

func TestRemoveUnreachable(t *testing.T) {
	d := newDoc(t, "")
	sd := d.SDF()
	orphan := sd.CreateIndirect(sdf.Str("nobody points here"))
	rep, err := New(Settings{RemoveUnused: true}).Optimize(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if rep.ObjectsRemoved != 1 {
		t.Errorf("ObjectsRemoved = %d, want 1", rep.ObjectsRemoved)
	}
	if !sd.IsFree(orphan.Num) {
		t.Errorf("orphan %v still in use", orphan)
	}
	if rep.BytesAfter >= rep.BytesBefore {
		t.Errorf("bytes %d -> %d, want a decrease", rep.BytesBefore, rep.BytesAfter)
	}
}

func TestPruneResources(t *testing.T) {
	d := newDoc(t, "BT /F1 12 Tf (x) Tj ET /GS1 gs /Fm1 Do")
	sd := d.SDF()
	p := d.Page(1)
	res := p.Resources()
	fonts := res.PutDict("Font")
	fonts.Set("F1", sdf.NewDict())
	fonts.Set("F2", sdf.NewDict())
	gs := res.PutDict("ExtGState")
	gs.Set("GS1", sdf.NewDict())
	gs.Set("GS9", sdf.NewDict())

	// The form has no resources of its own, so its names count against
	// the page's dictionary.
	form := sdf.NewStream(nil, []byte("/Im1 Do"))
	form.Dict.PutName("Type", "XObject")
	form.Dict.PutName("Subtype", "Form")
	form.Dict.PutRect("BBox", 0, 0, 10, 10)
	xo := res.PutDict("XObject")
	xo.Set("Fm1", sd.CreateIndirect(form))
	xo.Set("Im1", sdf.NewDict())
	xo.Set("Im2", sdf.NewDict())

	rep, err := New(Settings{RemoveUnused: true}).Optimize(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if rep.ResourcesRemoved != 3 {
		t.Errorf("ResourcesRemoved = %d, want 3", rep.ResourcesRemoved)
	}
	for cat, keys := range map[sdf.Name][]sdf.Name{"Font": {"F1"}, "ExtGState": {"GS1"}, "XObject": {"Fm1", "Im1"}} {
		got := sd.Dict(res.Get(cat)).Keys()
		if len(got) != len(keys) {
			t.Errorf("%s keys = %v, want %v", cat, got, keys)
		}
	}
}

func TestPruneResourcesKeepsAppearanceNames(t *testing.T) {
	d := newDoc(t, "")
	p := d.Page(1)
	ap := sdf.NewStream(nil, []byte("/F1 9 Tf"))
	ap.Dict.PutRect("BBox", 0, 0, 10, 10)
	apRes := ap.Dict.PutDict("Resources")
	apRes.PutDict("Font").Set("F1", sdf.NewDict())
	a := d.CreateSquare(coords.Rect{X2: 10, Y2: 10})
	a.SetAppearance(ap)
	p.AddAnnot(a)

	if _, err := New(Settings{RemoveUnused: true}).Optimize(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if !d.SDF().Dict(apRes.Get("Font")).Has("F1") {
		t.Error("font used by the appearance stream was removed")
	}
}

func TestCompressStreams(t *testing.T) {
	body := bytes.Repeat([]byte("0 0 10 10 re f\n"), 100)
	d := newDoc(t, string(body))
	hexed := sdf.NewStream(nil, nil)
	if err := filters.SetStreamData(hexed, body, "ASCIIHexDecode"); err != nil {
		t.Fatal(err)
	}
	d.Page(1).AppendContents(hexed)

	rep, err := New(Settings{CompressStreams: true}).Optimize(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if rep.StreamsCompressed != 2 {
		t.Errorf("StreamsCompressed = %d, want 2", rep.StreamsCompressed)
	}
	for _, st := range d.Page(1).ContentStreams() {
		if f, _ := d.SDF().Name(st.Dict.Get("Filter")); f != "FlateDecode" {
			t.Errorf("filter = %v, want FlateDecode", st.Dict.Get("Filter"))
		}
	}
	got, err := d.Page(1).ContentBytes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(got, body) {
		t.Error("content changed by compression")
	}
}

func TestCompressStreamsSkipsLargerResult(t *testing.T) {
	d := newDoc(t, "q Q")
	rep, err := New(Settings{CompressStreams: true}).Optimize(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if rep.StreamsCompressed != 0 {
		t.Errorf("StreamsCompressed = %d, want 0", rep.StreamsCompressed)
	}
}

func TestDownsampleImages(t *testing.T) {
	// A 400x400 image drawn 100pt wide is shown at 288 PPI.
	d := newDoc(t, "q 100 0 0 100 0 0 cm /Im1 Do Q")
	src := image.NewRGBA(image.Rect(0, 0, 400, 400))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+3] = 0xff, 0xff
	}
	im, err := content.NewImage(d.SDF(), src, content.ImageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	d.Page(1).Resources().PutDict("XObject").Set("Im1", im.Ref)

	s := Settings{DownsampleImages: DownsampleImages{MaxPPI: 150, ResamplePPI: 72}}
	rep, err := New(s).Optimize(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if rep.ImagesResampled != 1 {
		t.Fatalf("ImagesResampled = %d, want 1", rep.ImagesResampled)
	}
	got, err := content.LoadImage(d.SDF(), im.Ref)
	if err != nil {
		t.Fatal(err)
	}
	if got.Width() != 100 || got.Height() != 100 {
		t.Errorf("size = %dx%d, want 100x100", got.Width(), got.Height())
	}
	out, err := got.Decode(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := out.At(50, 50).RGBA()
	if c := (color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 0xff}); c.R < 0xf0 || c.G > 0x10 {
		t.Errorf("pixel = %v, want red", c)
	}
}

func TestDownsampleLeavesSmallImages(t *testing.T) {
	d := newDoc(t, "q 100 0 0 100 0 0 cm /Im1 Do Q")
	im, err := content.NewImage(d.SDF(), image.NewGray(image.Rect(0, 0, 100, 100)), content.ImageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	d.Page(1).Resources().PutDict("XObject").Set("Im1", im.Ref)
	rep, err := New(DefaultSettings()).Optimize(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if rep.ImagesResampled != 0 {
		t.Errorf("ImagesResampled = %d, want 0", rep.ImagesResampled)
	}
}

func TestStripMetadata(t *testing.T) {
	d := newDoc(t, "")
	d.SetInfo(pdf.Info{Title: "x"})
	d.SetMetadata([]byte("<x/>"))
	if _, err := New(Settings{StripMetadata: true}).Optimize(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if d.SDF().Trailer().Has("Info") || d.Catalog().Has("Metadata") {
		t.Error("metadata kept")
	}
}

func TestOptimizeCancelled(t *testing.T) {
	d := newDoc(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Optimize(ctx, d, DefaultSettings()); err == nil {
		t.Fatal("expected context error")
	}
}

func TestHashIgnoresKeyOrderAndLength(t *testing.T) {
	a := sdf.NewDict()
	a.PutInt("A", 1)
	a.PutInt("B", 2)
	b := sdf.NewDict()
	b.PutInt("B", 2)
	b.PutInt("A", 1)
	b.PutInt("Length", 9)
	if hashObject(a) != hashObject(b) {
		t.Error("dictionaries differing in key order and Length hash differently")
	}
	if hashObject(sdf.Str("ab")) == hashObject(sdf.NewArray(sdf.Str("a"), sdf.Str("b"))) {
		t.Error("distinct objects collide")
	}
}
