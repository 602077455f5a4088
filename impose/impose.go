// Package impose places several source pages on each sheet of a new
// layout, as for n-up printing and booklets. Every source page becomes a
// form XObject scaled into its cell.
package impose

import (
	"context"
	"math"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Layout describes the sheets. Cells are filled left to right, top to
// bottom. Zero Cols or Rows count as one.
type Layout struct {
	Sheet  coords.Rect
	Cols   int
	Rows   int
	Margin float64
	// Center places a scaled page in the middle of its cell instead of
	// the lower left corner.
	Center   bool
	Compress bool
	Logger   observability.Logger
}

// TwoUp is a landscape A3 sheet holding two portrait pages side by side.
func TwoUp() Layout {
	return Layout{Sheet: coords.Rect{X2: 1190.88, Y2: 841.69}, Cols: 2, Rows: 1}
}

func (l Layout) grid() (cols, rows int) {
	cols, rows = l.Cols, l.Rows
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

// Cell returns the box of cell i on a sheet.
func (l Layout) Cell(i int) coords.Rect {
	cols, rows := l.grid()
	sheet := l.Sheet.Normalize()
	w, h := sheet.Width()/float64(cols), sheet.Height()/float64(rows)
	i %= cols * rows
	c, r := i%cols, i/cols
	x := sheet.X1 + float64(c)*w
	y := sheet.Y2 - float64(r+1)*h
	return coords.Rect{X1: x, Y1: y, X2: x + w, Y2: y + h}.Inflate(-l.Margin)
}

// Placement returns the matrix drawing page into cell, keeping its aspect
// ratio and honouring its crop box and rotation.
func Placement(page *pdf.Page, cell coords.Rect, center bool) coords.Matrix {
	pw, ph := page.Width(), page.Height()
	if pw <= 0 || ph <= 0 {
		return coords.Translate(cell.X1, cell.Y1)
	}
	s := math.Min(cell.Width()/pw, cell.Height()/ph)
	x, y := cell.X1, cell.Y1
	if center {
		x += (cell.Width() - pw*s) / 2
		y += (cell.Height() - ph*s) / 2
	}
	return page.DefaultMatrix().Multiply(coords.Scale(s, s)).Multiply(coords.Translate(x, y))
}

// Impose appends sheets to dst holding the src pages, which may belong to
// another document, and returns the new sheets.
func Impose(ctx context.Context, dst *pdf.Doc, src []*pdf.Page, l Layout) ([]*pdf.Page, error) {
	if l.Sheet.IsEmpty() {
		return nil, sdf.Errorf("impose", sdf.ErrUnsupported, "empty sheet")
	}
	ctx, span := observability.StartSpan(ctx, "impose")
	defer span.Finish()
	log := observability.OrNop(l.Logger)
	cols, rows := l.grid()
	per := cols * rows

	b := content.NewBuilder(dst.SDF())
	var sheets []*pdf.Page
	for start := 0; start < len(src); start += per {
		if err := ctx.Err(); err != nil {
			return sheets, err
		}
		sheet := dst.PageCreate(l.Sheet)
		w := content.NewWriter()
		if err := w.Begin(sheet, content.Replacement, l.Compress); err != nil {
			return sheets, err
		}
		for i := start; i < start+per && i < len(src); i++ {
			e, err := b.CreateForm(ctx, src[i])
			if err != nil {
				w.End()
				span.SetError(err)
				return sheets, err
			}
			e.State.CTM = Placement(src[i], l.Cell(i-start), l.Center)
			if err := w.WritePlacedElement(e); err != nil {
				w.End()
				return sheets, err
			}
		}
		if _, err := w.End(); err != nil {
			return sheets, err
		}
		if err := dst.PagePushBack(sheet); err != nil {
			return sheets, err
		}
		sheets = append(sheets, sheet)
	}
	log.Debug("impose: done", observability.Int("pages", len(src)), observability.Int("sheets", len(sheets)))
	return sheets, nil
}
