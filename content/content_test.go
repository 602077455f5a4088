package content

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/google/go-cmp/cmp"
)

var letter = coords.Rect{X2: 612, Y2: 792}

func newPage(t *testing.T, content string) (*pdf.Doc, *pdf.Page) {
	t.Helper()
	d := pdf.New()
	p := d.PageCreate(letter)
	if content != "" {
		p.SetContents(sdf.NewStream(nil, []byte(content)))
	}
	if err := d.PagePushBack(p); err != nil {
		t.Fatalf("PagePushBack: %v", err)
	}
	return d, p
}

func addHelvetica(t *testing.T, d *pdf.Doc, p *pdf.Page) *Font {
	t.Helper()
	f, err := NewStandardFont(d.SDF(), "Helvetica")
	if err != nil {
		t.Fatalf("NewStandardFont: %v", err)
	}
	p.Resources().PutDict("Font").Set("F1", f.Obj)
	return f
}

func readAll(t *testing.T, r *Reader) []*Element {
	t.Helper()
	var out []*Element
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, e)
	}
}

func types(els []*Element) []string {
	var out []string
	for _, e := range els {
		out = append(out, e.Type.String())
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestParseCMap(t *testing.T) {
	src := `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CMapName /Test-UCS def
1 begincodespacerange <0000> <FFFF> endcodespacerange
2 beginbfchar
<0003> <0020>
<0024> <00410042>
endbfchar
2 beginbfrange
<0010> <0012> <0061>
<0020> <0021> [<0078> <D83DDE00>]
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end end`
	cm, err := ParseCMap([]byte(src))
	if err != nil {
		t.Fatalf("ParseCMap: %v", err)
	}
	if cm.Name != "Test-UCS" {
		t.Errorf("Name = %q", cm.Name)
	}
	tests := []struct {
		code uint32
		want string
		ok   bool
	}{
		{0x0003, " ", true},
		{0x0024, "AB", true},
		{0x0010, "a", true},
		{0x0012, "c", true},
		{0x0020, "x", true},
		{0x0021, "\U0001F600", true},
		{0x0013, "", false},
	}
	for _, tt := range tests {
		got, ok := cm.Unicode(tt.code, 2)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Unicode(%#x) = %q, %v; want %q, %v", tt.code, got, ok, tt.want, tt.ok)
		}
	}
	code, n := cm.Next([]byte{0x00, 0x24, 0x01})
	if code != 0x24 || n != 2 {
		t.Errorf("Next = %#x, %d", code, n)
	}
}

func TestIdentityCMap(t *testing.T) {
	cm := identityCMap("Identity-H")
	cid, ok := cm.CID(0x1234, 2)
	if !ok || cid != 0x1234 {
		t.Fatalf("CID = %#x, %v", cid, ok)
	}
}

func TestReaderElements(t *testing.T) {
	d, p := newPage(t, `q 1 0 0 1 10 20 cm 1 0 0 rg 0 0 m 10 10 l S Q
BT /F1 12 Tf 100 700 Td (Hi) Tj [(A) -500 (B)] TJ ET
/OC /MC0 BDC 0 0 5 5 re W n EMC`)
	addHelvetica(t, d, p)
	r := NewReader(d)
	if err := r.Begin(context.Background(), p); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	els := readAll(t, r)
	want := []string{
		"group_begin", "path", "group_end",
		"text_begin", "text_new_line", "text", "text", "text", "text_end",
		"marked_content_begin", "path", "marked_content_end",
	}
	if diff := cmp.Diff(want, types(els)); diff != "" {
		t.Fatalf("element types (-want +got):\n%s", diff)
	}

	path := els[1]
	if !path.IsStroked() || path.IsFilled() {
		t.Errorf("path paint: stroked %v filled %v", path.IsStroked(), path.IsFilled())
	}
	if path.State.CTM != (coords.Matrix{1, 0, 0, 1, 10, 20}) {
		t.Errorf("path CTM = %v", path.State.CTM)
	}
	if got := path.State.FillColor.Comps; !cmp.Equal(got, []float64{1, 0, 0}) {
		t.Errorf("fill color = %v", got)
	}
	if els[4].State.CTM != coords.Identity() {
		t.Errorf("CTM not restored after Q: %v", els[4].State.CTM)
	}

	hi := els[5]
	if got := hi.TextString(); got != "Hi" {
		t.Errorf("TextString = %q", got)
	}
	// H and i are 722 and 222 thousandths in Helvetica.
	if want := 100 + (0.722+0.222)*12; !near(hi.End[4], want) {
		t.Errorf("text end x = %v, want %v", hi.End[4], want)
	}
	a, b := els[6], els[7]
	gap := b.State.TextMatrix[4] - a.End[4]
	if !near(gap, 6) {
		t.Errorf("TJ kerning moved %v, want 6", gap)
	}

	mc := els[9]
	if mc.Tag != "OC" || mc.Properties.Name != "MC0" {
		t.Errorf("marked content = %s %s", mc.Tag, mc.Properties.Name)
	}
	if clip := els[10]; !clip.IsClip() || clip.IsFilled() || clip.IsStroked() {
		t.Errorf("clip path flags wrong")
	}
}

func TestReaderMCID(t *testing.T) {
	d, p := newPage(t, `/P <</MCID 0>> BDC 0 0 5 5 re f
/Span BMC 1 1 2 2 re f EMC EMC
0 0 1 1 re f
/P /MC1 BDC 2 2 3 3 re f EMC`)
	props := p.Resources().PutDict("Properties")
	mc1 := sdf.NewDict()
	mc1.PutInt("MCID", 7)
	props.Set("MC1", mc1)
	r := NewReader(d)
	if err := r.Begin(context.Background(), p); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	var got []int
	for _, e := range readAll(t, r) {
		if e.Type == ElementPath {
			got = append(got, e.MCID)
		}
	}
	// Nested BMC without an MCID keeps the enclosing one.
	if diff := cmp.Diff([]int{0, 0, -1, 7}, got); diff != "" {
		t.Errorf("path MCIDs (-want +got):\n%s", diff)
	}
}

func TestReaderChangeList(t *testing.T) {
	d := pdf.New()
	r := NewReader(d)
	if err := r.BeginStream([]byte("2 w 0 0 1 RG 0 0 m 1 1 l S"), nil); err != nil {
		t.Fatal(err)
	}
	r.ClearChangeList()
	if _, err := r.Next(); err != nil {
		t.Fatal(err)
	}
	got := r.ChangesSince()
	for _, f := range []GStateField{FieldLineWidth, FieldStrokeColor, FieldStrokeColorSpace} {
		if !got.Has(f) {
			t.Errorf("changes %s missing %s", got, f)
		}
	}
	if got.Has(FieldFillColor) {
		t.Errorf("changes %s include fill color", got)
	}
}

func TestReaderInlineImage(t *testing.T) {
	d := pdf.New()
	r := NewReader(d)
	data := "q 10 0 0 10 0 0 cm BI /W 2 /H 1 /CS /G /BPC 8 ID \x00\xff\nEI Q"
	if err := r.BeginStream([]byte(data), nil); err != nil {
		t.Fatal(err)
	}
	els := readAll(t, r)
	if diff := cmp.Diff([]string{"group_begin", "inline_image", "group_end"}, types(els)); diff != "" {
		t.Fatalf("types (-want +got):\n%s", diff)
	}
	img, err := els[1].Image()
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if img.Width() != 2 || img.Height() != 1 {
		t.Fatalf("size = %dx%d", img.Width(), img.Height())
	}
	dec, err := img.Decode(context.Background())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r, _, _, _ := dec.At(1, 0).RGBA(); r>>8 != 0xff {
		t.Errorf("pixel 1 red = %#x", r>>8)
	}
	bb, ok := els[1].BBox()
	if !ok || bb != (coords.Rect{X2: 10, Y2: 10}) {
		t.Errorf("BBox = %v, %v", bb, ok)
	}
}

func formDoc(t *testing.T, selfRef bool) (*pdf.Doc, *pdf.Page) {
	t.Helper()
	d, p := newPage(t, "q 2 0 0 2 0 0 cm /Fm0 Do Q")
	s := d.SDF()
	fd := sdf.NewDict()
	fd.PutName("Type", "XObject")
	fd.PutName("Subtype", "Form")
	fd.PutRect("BBox", 0, 0, 50, 50)
	fd.Set("Matrix", sdf.NewArray(sdf.Int(1), sdf.Int(0), sdf.Int(0), sdf.Int(1), sdf.Int(5), sdf.Int(5)))
	body := "0 0 10 10 re f"
	if selfRef {
		body = "/Fm0 Do"
	}
	ref := s.CreateIndirect(sdf.NewStream(fd, []byte(body)))
	p.Resources().PutDict("XObject").Set("Fm0", ref)
	if selfRef {
		fd.PutDict("Resources").PutDict("XObject").Set("Fm0", ref)
	}
	return d, p
}

func TestFormBegin(t *testing.T) {
	d, p := formDoc(t, false)
	r := NewReader(d)
	ctx := context.Background()
	if err := r.Begin(ctx, p); err != nil {
		t.Fatal(err)
	}
	var form *Element
	for {
		e, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if e.Type == ElementForm {
			form = e
			break
		}
	}
	bb, ok := form.BBox()
	if !ok || bb != (coords.Rect{X1: 10, Y1: 10, X2: 110, Y2: 110}) {
		t.Errorf("form BBox = %v", bb)
	}
	if err := r.FormBegin(ctx); err != nil {
		t.Fatalf("FormBegin: %v", err)
	}
	if err := r.Begin(ctx, p); !errors.Is(err, ErrNotEnded) {
		t.Fatalf("Begin inside form = %v, want ErrNotEnded", err)
	}
	e, err := r.Next()
	if err != nil {
		t.Fatalf("Next in form: %v", err)
	}
	if e.Type != ElementPath || e.State.CTM != (coords.Matrix{2, 0, 0, 2, 10, 10}) {
		t.Fatalf("form path %s CTM %v", e.Type, e.State.CTM)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("end of form = %v", err)
	}
	if err := r.End(); err != nil {
		t.Fatal(err)
	}
	if e, err := r.Next(); err != nil || e.Type != ElementGroupEnd {
		t.Fatalf("after End: %v %v", e, err)
	}
}

func TestFormBeginRejectsCycle(t *testing.T) {
	d, p := formDoc(t, true)
	r := NewReader(d)
	ctx := context.Background()
	if err := r.Begin(ctx, p); err != nil {
		t.Fatal(err)
	}
	els, err := r.ReadAll(ctx, true)
	if err == nil {
		t.Fatalf("expected cycle error, read %v", types(els))
	}
	if !errors.Is(err, sdf.ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	d, p := newPage(t, "")
	font, err := NewStandardFont(d.SDF(), "Helvetica")
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(d.SDF())
	w := NewWriter()
	if err := w.Begin(p, Replacement, true); err != nil {
		t.Fatal(err)
	}
	b.State().SetFillColor(DeviceRGB, 0, 0, 1)
	els := []*Element{
		b.CreateGroupBegin(),
		b.CreateRect(10, 10, 100, 50),
		b.CreateGroupEnd(),
		b.CreateTextBegin(),
		b.CreateTextNewLine(72, 720),
		b.CreateTextRun("Hello", font, 14),
		b.CreateTextRun(" world", font, 14),
		b.CreateTextEnd(),
	}
	for _, e := range els {
		if err := w.WriteElement(e); err != nil {
			t.Fatalf("WriteElement(%s): %v", e.Type, err)
		}
	}
	if _, err := w.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	r := NewReader(d)
	if err := r.Begin(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	got := readAll(t, r)
	if diff := cmp.Diff(types(els), types(got)); diff != "" {
		t.Fatalf("types (-wrote +read):\n%s", diff)
	}
	if c := got[1].State.FillColor.Comps; !cmp.Equal(c, []float64{0, 0, 1}) {
		t.Errorf("rect fill = %v", c)
	}
	var text []string
	for _, e := range got {
		if e.Type == ElementText {
			text = append(text, e.TextString())
		}
	}
	if diff := cmp.Diff([]string{"Hello", " world"}, text); diff != "" {
		t.Errorf("text (-want +got):\n%s", diff)
	}
	if !near(got[6].State.TextMatrix[4], els[6].State.TextMatrix[4]) {
		t.Errorf("second run x = %v, want %v", got[6].State.TextMatrix[4], els[6].State.TextMatrix[4])
	}
	fontsDict := d.SDF().Dict(p.Resources().Get("Font"))
	if fontsDict.Len() != 1 {
		t.Errorf("font resources = %v", fontsDict.Keys())
	}
}

func TestWriterOverlayWrapsExisting(t *testing.T) {
	d, p := newPage(t, "1 0 0 RG")
	w := NewWriter()
	if err := w.Begin(p, Overlay, false); err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(d.SDF())
	if err := w.WriteElement(b.CreateRect(0, 0, 1, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := w.End(); err != nil {
		t.Fatal(err)
	}
	data, err := p.ContentBytes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.HasPrefix(s, "q\n") || !strings.Contains(s, "1 0 0 RG\nQ\n") {
		t.Fatalf("overlay content = %q", s)
	}
}

func TestWriterCopiesResourcesAcrossDocs(t *testing.T) {
	src, sp := formDoc(t, false)
	r := NewReader(src)
	if err := r.Begin(context.Background(), sp); err != nil {
		t.Fatal(err)
	}
	dst, dp := newPage(t, "")
	w := NewWriter()
	if err := w.Begin(dp, Replacement, false); err != nil {
		t.Fatal(err)
	}
	for _, e := range readAll(t, r) {
		if err := w.WriteElement(e); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := w.End(); err != nil {
		t.Fatal(err)
	}
	xo := dst.SDF().Dict(dp.Resources().Get("XObject"))
	ref, ok := xo.Get("Fm0").(sdf.Ref)
	if !ok {
		t.Fatalf("Fm0 = %v", xo.Get("Fm0"))
	}
	if st := dst.SDF().Stream(ref); st == nil {
		t.Fatalf("imported form missing")
	}
}

func TestImageRoundTrip(t *testing.T) {
	d := pdf.New()
	src := image.NewGray(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 40)
	}
	img, err := NewImage(d.SDF(), src, ImageOptions{})
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	if img.Width() != 3 || img.Height() != 2 || img.BitsPerComponent() != 8 {
		t.Fatalf("dims %dx%d bpc %d", img.Width(), img.Height(), img.BitsPerComponent())
	}
	loaded, err := LoadImage(d.SDF(), img.Ref)
	if err != nil {
		t.Fatal(err)
	}
	out, err := loaded.Decode(context.Background())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			want := src.GrayAt(x, y).Y
			got := color.GrayModel.Convert(out.At(x, y)).(color.Gray).Y
			if got != want {
				t.Errorf("pixel (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestImageWithAlpha(t *testing.T) {
	d := pdf.New()
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	img, err := NewImage(d.SDF(), src, ImageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if sdf.IsNull(img.Dict.Get("SMask")) {
		t.Fatal("no SMask written")
	}
	out, err := img.Decode(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a := color.NRGBAModel.Convert(out.At(0, 0)).(color.NRGBA).A; a != 128 {
		t.Errorf("alpha = %d", a)
	}
}

func TestFontDecodeDifferences(t *testing.T) {
	d := pdf.New()
	s := d.SDF()
	fd := sdf.NewDict()
	fd.PutName("Type", "Font")
	fd.PutName("Subtype", "Type1")
	fd.PutName("BaseFont", "Helvetica")
	enc := fd.PutDict("Encoding")
	enc.PutName("BaseEncoding", "WinAnsiEncoding")
	enc.Set("Differences", sdf.NewArray(sdf.Int(65), sdf.Name("Euro")))
	f, err := LoadFont(s, s.CreateIndirect(fd))
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, g := range f.Decode([]byte("AB ")) {
		got = append(got, g.Unicode)
	}
	if diff := cmp.Diff([]string{"€", "B", " "}, got); diff != "" {
		t.Errorf("decode (-want +got):\n%s", diff)
	}
	if gl := f.Decode([]byte(" ")); !gl[0].Space || gl[0].Width != 278 {
		t.Errorf("space glyph = %+v", gl[0])
	}
}

func TestBuilderEllipseBBox(t *testing.T) {
	b := NewBuilder(sdf.NewDoc())
	e := b.CreateEllipse(50, 50, 20, 10)
	bb, ok := e.BBox()
	if !ok {
		t.Fatal("no bbox")
	}
	if !near(bb.X1, 30) || !near(bb.X2, 70) || !near(bb.Y1, 40) || !near(bb.Y2, 60) {
		t.Errorf("ellipse bbox = %v", bb)
	}
}

func TestColorSpaceIndexed(t *testing.T) {
	s := sdf.NewDoc()
	cs, err := ResolveColorSpace(s, nil, sdf.NewArray(sdf.Name("Indexed"), sdf.Name("DeviceRGB"), sdf.Int(1),
		sdf.String{Value: []byte{0, 0, 0, 255, 0, 0}}))
	if err != nil {
		t.Fatal(err)
	}
	if cs.Family != FamilyIndexed || cs.N != 1 {
		t.Fatalf("cs = %+v", cs)
	}
	r, g, bl := cs.RGB([]float64{1})
	if r != 1 || g != 0 || bl != 0 {
		t.Errorf("RGB(1) = %v %v %v", r, g, bl)
	}
}
