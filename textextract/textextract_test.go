package textextract

import (
	"context"
	"fmt"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/google/go-cmp/cmp"
)

func textDoc(t *testing.T, pages ...string) *pdf.Doc {
	t.Helper()
	d := pdf.New()
	f, err := content.NewStandardFont(d.SDF(), "Helvetica")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range pages {
		p := d.PageCreate(coords.Rect{X2: 612, Y2: 792})
		p.Resources().PutDict("Font").Set("F1", f.Obj)
		p.SetContents(sdf.NewStream(nil, []byte(c)))
		if err := d.PagePushBack(p); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func TestExtractOrdersLines(t *testing.T) {
	// The lower line is drawn first; word gaps come from TJ kerning and
	// explicit spaces.
	d := textDoc(t, `BT /F1 12 Tf 72 600 Td (second line) Tj ET
BT /F1 12 Tf 72 700 Td [(Hello) -1000 (world)] TJ ET`)
	res, err := Extract(context.Background(), d.Page(1))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if diff := cmp.Diff("Hello world\nsecond line", res.Text()); diff != "" {
		t.Errorf("Text (-want +got):\n%s", diff)
	}
	words := res.Words()
	if len(words) != 4 {
		t.Fatalf("words = %d", len(words))
	}
	if w := words[0].BBox; w.X1 != 72 || w.Y2 <= 700 {
		t.Errorf("Hello bbox = %v", w)
	}
}

func TestExtractRotatedPage(t *testing.T) {
	for _, rot := range []int{90, 180, 270} {
		t.Run(fmt.Sprint(rot), func(t *testing.T) {
			d := textDoc(t, `BT /F1 10 Tf 100 100 Td (Rotated) Tj ET
BT /F1 10 Tf 100 80 Td (second line) Tj ET`)
			p := d.Page(1)
			p.SetRotation(rot)
			res, err := Extract(context.Background(), p)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff("Rotated\nsecond line", res.Text()); diff != "" {
				t.Fatalf("Text (-want +got):\n%s", diff)
			}
			// Rotated pages report boxes in the displayed page space.
			page := coords.Rect{X2: 612, Y2: 792}
			if rot != 180 {
				page = coords.Rect{X2: 792, Y2: 612}
			}
			w := res.Words()[0].BBox.Normalize()
			if !page.ContainsRect(w) {
				t.Errorf("word box %v outside %v", w, page)
			}
			if vertical := w.Height() > w.Width(); vertical != (rot != 180) {
				t.Errorf("word box %v has the wrong orientation", w)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	d := textDoc(t,
		`BT /F1 12 Tf 72 700 Td (The quick brown fox) Tj ET`,
		`BT /F1 12 Tf 72 700 Td (a Foxglove and a fox) Tj ET`,
	)
	tests := []struct {
		name   string
		search Search
		want   []int // pages of matches
	}{
		{"plain case-insensitive", Search{Pattern: "fox"}, []int{1, 2, 2}},
		{"case-sensitive", Search{Pattern: "Fox", CaseSensitive: true}, []int{2}},
		{"whole word", Search{Pattern: "fox", WholeWord: true}, []int{1, 2}},
		{"regex", Search{Pattern: `qu\w+`, Regex: true}, []int{1}},
		{"page filter", Search{Pattern: "fox", Pages: []int{2}}, []int{2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, err := tt.search.Run(context.Background(), d)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			var got []int
			for _, m := range ms {
				got = append(got, m.Page)
				if len(m.Quads) != 1 || m.Quads[0].IsEmpty() {
					t.Errorf("match %q quads = %v", m.Text, m.Quads)
				}
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("pages (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSearchCancelled(t *testing.T) {
	d := textDoc(t, `BT /F1 12 Tf 72 700 Td (x) Tj ET`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Search{Pattern: "x"}).Run(ctx, d); err == nil {
		t.Fatal("expected context error")
	}
}
