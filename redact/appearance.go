package redact

import (
	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
)

// Alignment places overlay text horizontally.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// Appearance styles the marks left on redacted regions. Colors have one
// (gray), three (RGB) or four (CMYK) components.
type Appearance struct {
	// Overlay fills each region with FillColor. Negative regions fill
	// the rest of the crop box instead.
	Overlay   bool
	FillColor []float64

	Border      bool
	BorderColor []float64
	BorderWidth float64

	// ShowRegions fills the areas where content was removed with
	// RegionColor, on top of the overlay.
	ShowRegions bool
	RegionColor []float64

	// Text of each redaction is drawn with Font, Helvetica when nil, at
	// the largest size between MinFontSize and MaxFontSize that fits.
	TextColor   []float64
	Font        *content.Font
	MinFontSize float64
	MaxFontSize float64
	Alignment   Alignment

	Logger observability.Logger
}

// DefaultAppearance draws black boxes with white centered text.
func DefaultAppearance() Appearance {
	return Appearance{
		Overlay:     true,
		FillColor:   []float64{0},
		BorderColor: []float64{1, 0, 0},
		BorderWidth: 1,
		RegionColor: []float64{0.3},
		TextColor:   []float64{1},
		MinFontSize: 2,
		MaxFontSize: 24,
		Alignment:   AlignCenter,
	}
}

func space(c []float64) content.ColorSpace {
	switch len(c) {
	case 1:
		return content.DeviceGray
	case 4:
		return content.DeviceCMYK
	}
	return content.DeviceRGB
}

func setFill(b *content.Builder, c []float64) {
	if c == nil {
		c = []float64{0}
	}
	b.State().SetFillColor(space(c), c...)
}

func drawOverlay(p *pdf.Page, rs []Redaction, removed []coords.Rect, app Appearance) error {
	if !app.Overlay && !app.Border && !app.ShowRegions && !hasText(rs) {
		return nil
	}
	sd := p.Doc().SDF()
	b := content.NewBuilder(sd)
	w := content.NewWriter()
	if err := w.Begin(p, content.Overlay, true); err != nil {
		return err
	}
	write := func(e *content.Element) {
		if err := w.WriteElement(e); err != nil {
			observability.OrNop(app.Logger).Debug("redact: overlay element", observability.Err(err))
		}
	}
	if app.Overlay {
		setFill(b, app.FillColor)
		for _, r := range rs {
			if r.Negative {
				write(outside(b, p.CropBox(), r.Rect))
				continue
			}
			write(b.CreateRect(r.Rect.X1, r.Rect.Y1, r.Rect.Width(), r.Rect.Height()))
		}
	}
	if app.ShowRegions {
		setFill(b, app.RegionColor)
		for _, r := range removed {
			write(b.CreateRect(r.X1, r.Y1, r.Width(), r.Height()))
		}
	}
	if app.Border {
		c := app.BorderColor
		if c == nil {
			c = []float64{0}
		}
		b.State().SetStrokeColor(space(c), c...)
		b.State().LineWidth = app.BorderWidth
		for _, r := range rs {
			e := b.CreateRect(r.Rect.X1, r.Rect.Y1, r.Rect.Width(), r.Rect.Height())
			e.Filled, e.Stroked = false, true
			write(e)
		}
	}
	if hasText(rs) {
		font := app.Font
		if font == nil {
			f, err := content.NewStandardFont(sd, "Helvetica")
			if err != nil {
				w.End()
				return err
			}
			font = f
		}
		for _, r := range rs {
			if r.Text == "" || r.Rect.IsEmpty() {
				continue
			}
			overlayText(b, write, r, font, app)
		}
	}
	_, err := w.End()
	return err
}

func hasText(rs []Redaction) bool {
	for _, r := range rs {
		if r.Text != "" {
			return true
		}
	}
	return false
}

// outside returns a path covering box minus hole. The hole winds the
// other way so either fill rule leaves it empty.
func outside(b *content.Builder, box, hole coords.Rect) *content.Element {
	b.PathBegin()
	b.MoveTo(box.X1, box.Y1)
	b.LineTo(box.X2, box.Y1)
	b.LineTo(box.X2, box.Y2)
	b.LineTo(box.X1, box.Y2)
	b.ClosePath()
	b.MoveTo(hole.X1, hole.Y1)
	b.LineTo(hole.X1, hole.Y2)
	b.LineTo(hole.X2, hole.Y2)
	b.LineTo(hole.X2, hole.Y1)
	b.ClosePath()
	e := b.PathEnd()
	e.Stroked, e.Filled = false, true
	e.FillRule = content.EvenOdd
	return e
}

// overlayText fits r.Text on one line inside the region, shrinking the
// font down to MinFontSize and clipping whatever still does not fit.
func overlayText(b *content.Builder, write func(*content.Element), r Redaction, font *content.Font, app Appearance) {
	const pad = 2
	lo, hi := app.MinFontSize, app.MaxFontSize
	if lo <= 0 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	box := r.Rect
	avail := box.Width() - 2*pad
	em := (font.Ascent() - font.Descent()) / 1000
	if em <= 0 {
		em = 1
	}
	size := hi
	for ; size > lo; size -= 0.5 {
		probe := b.CreateTextRun(r.Text, font, size)
		if probe.TextLength() <= avail && size*em <= box.Height() {
			break
		}
	}
	if size < lo {
		size = lo
	}

	write(b.CreateGroupBegin())
	clip := b.CreateRect(box.X1, box.Y1, box.Width(), box.Height())
	clip.Filled, clip.Clip = false, true
	write(clip)
	setFill(b, app.TextColor)
	write(b.CreateTextBegin())
	run := b.CreateTextRun(r.Text, font, size)
	width := run.TextLength()
	x := box.X1 + pad
	switch app.Alignment {
	case AlignCenter:
		x = box.X1 + (box.Width()-width)/2
	case AlignRight:
		x = box.X2 - pad - width
	}
	y := (box.Y1+box.Y2)/2 - (font.Ascent()+font.Descent())/2000*size
	run.SetTextMatrix(coords.Translate(x, y))
	write(run)
	write(b.CreateTextEnd())
	write(b.CreateGroupEnd())
}
