package impose

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/textextract"
	"github.com/google/go-cmp/cmp"
)

var letter = coords.Rect{X2: 612, Y2: 792}

func sourceDoc(t *testing.T, n int) *pdf.Doc {
	t.Helper()
	d := pdf.New()
	f, err := content.NewStandardFont(d.SDF(), "Helvetica")
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= n; i++ {
		p := d.PageCreate(letter)
		p.Resources().PutDict("Font").Set("F1", f.Obj)
		p.SetContents(sdf.NewStream(nil, []byte(fmt.Sprintf("BT /F1 24 Tf 72 700 Td (page%d) Tj ET", i))))
		if err := d.PagePushBack(p); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func TestCell(t *testing.T) {
	l := Layout{Sheet: coords.Rect{X2: 200, Y2: 100}, Cols: 2, Rows: 2, Margin: 5}
	want := []coords.Rect{
		{X1: 5, Y1: 55, X2: 95, Y2: 95},
		{X1: 105, Y1: 55, X2: 195, Y2: 95},
		{X1: 5, Y1: 5, X2: 95, Y2: 45},
		{X1: 105, Y1: 5, X2: 195, Y2: 45},
		{X1: 5, Y1: 55, X2: 95, Y2: 95},
	}
	for i, w := range want {
		if got := l.Cell(i); got != w {
			t.Errorf("Cell(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestPlacementFitsCell(t *testing.T) {
	cell := coords.Rect{X1: 100, Y1: 50, X2: 400, Y2: 650}
	for _, rot := range []int{0, 90} {
		t.Run(fmt.Sprint(rot), func(t *testing.T) {
			d := sourceDoc(t, 1)
			p := d.Page(1)
			p.SetRotation(rot)
			box := Placement(p, cell, true).TransformRect(p.CropBox())
			if !cell.Inflate(1e-6).ContainsRect(box) {
				t.Fatalf("page box %v outside cell %v", box, cell)
			}
			// The limiting side fills the cell.
			if math.Abs(box.Width()-cell.Width()) > 1e-6 && math.Abs(box.Height()-cell.Height()) > 1e-6 {
				t.Errorf("page box %v does not fill cell %v", box, cell)
			}
			if c, cc := box.Center(), cell.Center(); math.Abs(c.X-cc.X) > 1e-6 || math.Abs(c.Y-cc.Y) > 1e-6 {
				t.Errorf("page centre %v, want %v", c, cc)
			}
		})
	}
}

func TestImposeTwoUp(t *testing.T) {
	src := sourceDoc(t, 3)
	dst := pdf.New()
	sheets, err := Impose(context.Background(), dst, src.Pages(), TwoUp())
	if err != nil {
		t.Fatalf("Impose: %v", err)
	}
	if len(sheets) != 2 || dst.PageCount() != 2 {
		t.Fatalf("sheets = %d, pages = %d; want 2", len(sheets), dst.PageCount())
	}
	data, err := dst.SaveBytes(pdf.NoFlags)
	if err != nil {
		t.Fatalf("SaveBytes: %v", err)
	}
	got, err := pdf.OpenBytes(data, pdf.OpenOptions{})
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	mid := TwoUp().Sheet.Width() / 2
	var words [][]string
	for _, p := range got.Pages() {
		res, err := textextract.Extract(context.Background(), p)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		var ws []string
		for _, w := range res.Words() {
			side := "left"
			if w.BBox.X1 >= mid {
				side = "right"
			}
			ws = append(ws, w.Text+" "+side)
		}
		words = append(words, ws)
	}
	want := [][]string{{"page1 left", "page2 right"}, {"page3 left"}}
	if diff := cmp.Diff(want, words); diff != "" {
		t.Errorf("sheet words (-want +got):\n%s", diff)
	}
}

func TestImposeEmptySheet(t *testing.T) {
	if _, err := Impose(context.Background(), pdf.New(), sourceDoc(t, 1).Pages(), Layout{}); err == nil {
		t.Fatal("imposed onto an empty sheet")
	}
}
