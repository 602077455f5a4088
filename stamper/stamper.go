// Package stamper places text, images and pages on existing pages as
// watermarks or headers. Every stamp is a form XObject drawn inside a
// marked-content sequence, or a Watermark annotation, so DeleteStamps can
// find and remove it later.
package stamper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// SizeMode selects how Width and Height size a stamp.
type SizeMode int

const (
	// AbsoluteSize fits the stamp into Width by Height points.
	AbsoluteSize SizeMode = iota
	// RelativeScale fits the stamp into a fraction of the page size.
	RelativeScale
	// FontSize draws text stamps with Width as the font size. Other
	// stamps keep their natural size.
	FontSize
)

// HAlign and VAlign anchor the stamp on the page.
type (
	HAlign int
	VAlign int
)

const (
	HCenter HAlign = iota
	HLeft
	HRight
)

const (
	VCenter VAlign = iota
	VBottom
	VTop
)

// TextAlign aligns the lines of a multi-line text stamp.
type TextAlign int

const (
	TextLeft TextAlign = iota
	TextCenter
	TextRight
)

// stampTag marks the content of a stamp in page content streams.
const stampTag = "Artifact"

// Stamper holds the placement and look shared by the stamps it draws.
// A non-positive Width or Height leaves that dimension unconstrained;
// stamps always keep their aspect ratio.
type Stamper struct {
	Size          SizeMode
	Width, Height float64

	HAlign HAlign
	VAlign VAlign
	// X and Y move the stamp away from the edge it is aligned to, or
	// from the center. They are fractions of the page size when
	// PercentPosition is set.
	X, Y            float64
	PercentPosition bool

	Opacity float64
	// Rotation turns the stamp counterclockwise about its center, in
	// degrees, relative to the page as displayed.
	Rotation float64

	AsBackground  bool
	AsAnnotation  bool
	ShowsOnScreen bool
	ShowsOnPrint  bool

	Font      *content.Font
	FontColor []float64
	TextAlign TextAlign

	Compress bool
	Logger   observability.Logger
}

// New returns a centered, opaque stamper shown on screen and in print.
func New(size SizeMode, width, height float64) *Stamper {
	return &Stamper{
		Size:          size,
		Width:         width,
		Height:        height,
		Opacity:       1,
		ShowsOnScreen: true,
		ShowsOnPrint:  true,
		FontColor:     []float64{0},
		TextAlign:     TextCenter,
		Compress:      true,
	}
}

func colorSpace(c []float64) content.ColorSpace {
	switch len(c) {
	case 1:
		return content.DeviceGray
	case 4:
		return content.DeviceCMYK
	}
	return content.DeviceRGB
}

// StampText draws text, split into lines at '\n', on the pages of ps.
func (s *Stamper) StampText(ctx context.Context, doc *pdf.Doc, text string, ps *pdf.PageSet) error {
	if text == "" {
		return sdf.Errorf("stamp text", sdf.ErrCorrupt, "empty text")
	}
	sd := doc.SDF()
	font := s.Font
	if font == nil {
		f, err := content.NewStandardFont(sd, "Helvetica")
		if err != nil {
			return err
		}
		font = f
	}
	size := 12.0
	if s.Size == FontSize && s.Width > 0 {
		size = s.Width
	}
	b := content.NewBuilder(sd)
	lines := strings.Split(text, "\n")
	runs := make([]*content.Element, len(lines))
	var width float64
	for i, l := range lines {
		runs[i] = b.CreateTextRun(l, font, size)
		width = math.Max(width, runs[i].TextLength())
	}
	ascent, descent := font.Ascent(), font.Descent()
	if ascent-descent <= 0 {
		ascent, descent = 750, -250
	}
	lineHeight := (ascent - descent) / 1000 * size
	height := lineHeight * float64(len(lines))

	w := content.NewWriter()
	if err := w.BeginForm(sd, coords.Rect{X2: width, Y2: height}, s.Compress); err != nil {
		return err
	}
	b.Reset()
	c := s.FontColor
	if c == nil {
		c = []float64{0}
	}
	b.State().SetFillColor(colorSpace(c), c...)
	if err := w.WriteElement(b.CreateTextBegin()); err != nil {
		w.End()
		return err
	}
	for i, l := range lines {
		x := 0.0
		switch s.TextAlign {
		case TextCenter:
			x = (width - runs[i].TextLength()) / 2
		case TextRight:
			x = width - runs[i].TextLength()
		}
		y := height - float64(i+1)*lineHeight - descent/1000*size
		b.State().TextMatrix = coords.Translate(x, y)
		b.State().TextLineMatrix = b.State().TextMatrix
		if err := w.WriteElement(b.CreateTextRun(l, font, size)); err != nil {
			w.End()
			return err
		}
	}
	if err := w.WriteElement(b.CreateTextEnd()); err != nil {
		w.End()
		return err
	}
	ref, err := w.End()
	if err != nil {
		return err
	}
	return s.stamp(ctx, doc, ref, true, ps)
}

// StampImage draws img, which must belong to doc, on the pages of ps.
// Its natural size is one point per pixel.
func (s *Stamper) StampImage(ctx context.Context, doc *pdf.Doc, img *content.Image, ps *pdf.PageSet) error {
	iw, ih := float64(img.Width()), float64(img.Height())
	if iw <= 0 || ih <= 0 {
		return sdf.Errorf("stamp image", sdf.ErrCorrupt, "image has no size")
	}
	sd := doc.SDF()
	w := content.NewWriter()
	if err := w.BeginForm(sd, coords.Rect{X2: iw, Y2: ih}, s.Compress); err != nil {
		return err
	}
	if err := w.WriteElement(content.NewBuilder(sd).CreateImageAt(img, 0, 0, iw, ih)); err != nil {
		w.End()
		return err
	}
	ref, err := w.End()
	if err != nil {
		return err
	}
	return s.stamp(ctx, doc, ref, false, ps)
}

// StampPage draws the content of src, which may belong to another
// document, on the pages of ps. Its natural size is its crop box.
func (s *Stamper) StampPage(ctx context.Context, doc *pdf.Doc, src *pdf.Page, ps *pdf.PageSet) error {
	e, err := content.NewBuilder(doc.SDF()).CreateForm(ctx, src)
	if err != nil {
		return err
	}
	ref, _ := e.XObject.Obj.(sdf.Ref)
	return s.stamp(ctx, doc, ref, false, ps)
}

// scale returns the factor that fits a w by h stamp into the requested
// size on page p.
func (s *Stamper) scale(p *pdf.Page, w, h float64, text bool) float64 {
	tw, th := s.Width, s.Height
	switch s.Size {
	case FontSize:
		return 1
	case RelativeScale:
		tw, th = tw*p.Width(), th*p.Height()
	}
	if text && s.Size == AbsoluteSize && tw <= 0 && th <= 0 {
		return 1
	}
	f := math.Inf(1)
	if tw > 0 {
		f = tw / w
	}
	if th > 0 {
		f = math.Min(f, th/h)
	}
	if math.IsInf(f, 1) {
		return 1
	}
	return f
}

// Placement returns the matrix that maps a form with bounding box bbox
// onto page p.
func (s *Stamper) Placement(p *pdf.Page, bbox coords.Rect, text bool) coords.Matrix {
	bbox = bbox.Normalize()
	k := s.scale(p, bbox.Width(), bbox.Height(), text)
	w, h := bbox.Width()*k, bbox.Height()*k
	rad := s.Rotation * math.Pi / 180
	cos, sin := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	rw, rh := w*cos+h*sin, w*sin+h*cos

	pw, ph := p.Width(), p.Height()
	dx, dy := s.X, s.Y
	if s.PercentPosition {
		dx, dy = dx*pw, dy*ph
	}
	cx, cy := pw/2+dx, ph/2+dy
	switch s.HAlign {
	case HLeft:
		cx = dx + rw/2
	case HRight:
		cx = pw - dx - rw/2
	}
	switch s.VAlign {
	case VBottom:
		cy = dy + rh/2
	case VTop:
		cy = ph - dy - rh/2
	}
	c := bbox.Center()
	m := coords.Translate(-c.X, -c.Y).
		Multiply(coords.Scale(k, k)).
		Multiply(coords.Rotate(rad)).
		Multiply(coords.Translate(cx, cy))
	if inv, err := p.DefaultMatrix().Inverse(); err == nil {
		m = m.Multiply(inv)
	}
	return m
}

func (s *Stamper) stamp(ctx context.Context, doc *pdf.Doc, form sdf.Ref, text bool, ps *pdf.PageSet) error {
	ctx, span := observability.StartSpan(ctx, "stamper.stamp")
	defer span.Finish()
	log := observability.OrNop(s.Logger)
	sd := doc.SDF()
	st := sd.Stream(form)
	if st == nil {
		return sdf.Errorf("stamp", sdf.ErrCorrupt, "stamp form %v is not a stream", form)
	}
	bb, ok := sd.Numbers(st.Dict.Get("BBox"))
	if !ok || len(bb) != 4 {
		return sdf.Errorf("stamp", sdf.ErrCorrupt, "stamp form has no bounding box")
	}
	bbox := coords.NewRect(bb[0], bb[1], bb[2], bb[3])

	var layer *pdf.OCG
	if !s.AsAnnotation && (!s.ShowsOnScreen || !s.ShowsOnPrint) {
		layer = s.visibilityLayer(doc)
	}
	var errs []error
	pages := ps.Pages(doc.PageCount())
	for _, i := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := doc.Page(i)
		m := s.Placement(p, bbox, text)
		var err error
		if s.AsAnnotation {
			err = s.annotate(p, form, bbox, m)
		} else {
			err = s.draw(p, form, m, layer)
		}
		if err != nil {
			log.Warn("stamper: page failed", observability.Int("page", i), observability.Err(err))
			errs = append(errs, fmt.Errorf("page %d: %w", i, err))
		}
	}
	span.SetTag("pages", len(pages))
	err := errors.Join(errs...)
	if err != nil {
		span.SetError(err)
	}
	return err
}

func (s *Stamper) opacity(b *content.Builder) {
	if s.Opacity > 0 && s.Opacity < 1 {
		b.State().FillAlpha = s.Opacity
		b.State().StrokeAlpha = s.Opacity
	}
}

func (s *Stamper) draw(p *pdf.Page, form sdf.Ref, m coords.Matrix, layer *pdf.OCG) error {
	sd := p.Doc().SDF()
	placement := content.Overlay
	if s.AsBackground {
		placement = content.Underlay
	}
	w := content.NewWriter()
	if err := w.Begin(p, placement, s.Compress); err != nil {
		return err
	}
	b := content.NewBuilder(sd)
	props := sdf.NewDict()
	props.PutName("Type", "Pagination")
	props.PutName("Subtype", "Watermark")
	els := []*content.Element{b.CreateMarkedContentBegin(stampTag, props)}
	if layer != nil {
		oc := b.CreateMarkedContentBegin("OC", nil)
		oc.Properties = content.Resource{Obj: layer.Ref}
		els = append(els, oc)
	}
	els = append(els, b.CreateGroupBegin())
	b.State().CTM = m
	s.opacity(b)
	els = append(els, b.CreateFormFromStream(form), b.CreateGroupEnd())
	if layer != nil {
		els = append(els, b.CreateMarkedContentEnd())
	}
	els = append(els, b.CreateMarkedContentEnd())
	for _, e := range els {
		if err := w.WriteElement(e); err != nil {
			w.End()
			return err
		}
	}
	_, err := w.End()
	return err
}

// annotate adds a Watermark annotation whose appearance draws the form
// at m. The appearance wraps the form so the annotation rectangle is the
// stamp's bounding box on the page.
func (s *Stamper) annotate(p *pdf.Page, form sdf.Ref, bbox coords.Rect, m coords.Matrix) error {
	doc := p.Doc()
	rect := m.TransformRect(bbox)
	w := content.NewWriter()
	if err := w.BeginForm(doc.SDF(), coords.Rect{X2: rect.Width(), Y2: rect.Height()}, s.Compress); err != nil {
		return err
	}
	b := content.NewBuilder(doc.SDF())
	b.State().CTM = m.Multiply(coords.Translate(-rect.X1, -rect.Y1))
	s.opacity(b)
	if err := w.WriteElement(b.CreateFormFromStream(form)); err != nil {
		w.End()
		return err
	}
	ap, err := w.End()
	if err != nil {
		return err
	}
	a := doc.CreateAnnot(pdf.AnnotWatermark, rect)
	flags := 0
	if s.ShowsOnPrint {
		flags |= pdf.FlagPrint
	}
	if !s.ShowsOnScreen {
		flags |= pdf.FlagNoView
	}
	a.SetFlags(flags)
	a.Dict.PutDict("AP").Set("N", ap)
	p.AddAnnot(a)
	return nil
}

// visibilityLayer returns a layer whose view and print states follow
// ShowsOnScreen and ShowsOnPrint.
func (s *Stamper) visibilityLayer(doc *pdf.Doc) *pdf.OCG {
	state := func(on bool) sdf.Name {
		if on {
			return "ON"
		}
		return "OFF"
	}
	layer := doc.CreateOCG("Watermark")
	usage := layer.Dict.PutDict("Usage")
	usage.PutDict("View").PutName("ViewState", string(state(s.ShowsOnScreen)))
	usage.PutDict("Print").PutName("PrintState", string(state(s.ShowsOnPrint)))
	doc.SetOCGState(layer, s.ShowsOnScreen)
	doc.SetOCGAutoState(layer, "View")
	doc.SetOCGAutoState(layer, "Print")
	return layer
}
