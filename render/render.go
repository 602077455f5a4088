package render

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/tiff"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Draw rasterizes pages. A Draw holds only options and may render pages
// of different documents concurrently.
type Draw struct {
	opts Options
	log  observability.Logger
}

// New returns a Draw with opts. Zero DPI means the default resolution.
func New(opts Options) *Draw {
	if opts.DPI <= 0 {
		opts.DPI = DefaultOptions().DPI
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = DefaultOptions().JPEGQuality
	}
	return &Draw{opts: opts, log: observability.NopLogger{}}
}

// WithLogger sets the logger for content that cannot be drawn. The
// document's logger is used when none is set.
func (d *Draw) WithLogger(l observability.Logger) *Draw {
	d.log = observability.OrNop(l)
	return d
}

// Options returns the options of d.
func (d *Draw) Options() Options { return d.opts }

// Geometry returns the matrix from the page's user space to pixel
// coordinates and the image size for page.
func (d *Draw) Geometry(page *pdf.Page) (coords.Matrix, int, int) {
	box := page.CropBox()
	if d.opts.PageBox == BoxMedia {
		box = page.MediaBox()
	}
	rot := ((page.Rotation()+d.opts.Rotate)%360 + 360) % 360
	bw, bh := box.Width(), box.Height()
	m := coords.Translate(-box.X1, -box.Y1)
	switch rot {
	case 90:
		m = m.Multiply(coords.Matrix{0, -1, 1, 0, 0, bw})
	case 180:
		m = m.Multiply(coords.Matrix{-1, 0, 0, -1, bw, bh})
	case 270:
		m = m.Multiply(coords.Matrix{0, 1, -1, 0, bh, 0})
	}
	if rot == 90 || rot == 270 {
		bw, bh = bh, bw
	}
	s := d.opts.DPI / 72
	switch w, h := float64(d.opts.Width), float64(d.opts.Height); {
	case w > 0 && h > 0:
		s = math.Min(w/bw, h/bh)
	case w > 0:
		s = w / bw
	case h > 0:
		s = h / bh
	}
	pw := max(1, int(math.Round(bw*s)))
	ph := max(1, int(math.Round(bh*s)))
	m = m.Multiply(coords.Scale(s, -s)).Multiply(coords.Translate(0, float64(ph)))
	return m, pw, ph
}

// Render draws page and its visible annotations into a new image.
// Content that cannot be drawn is logged and skipped; errors are returned
// only for unreadable page content or cancellation.
func (d *Draw) Render(ctx context.Context, page *pdf.Page) (*image.RGBA, error) {
	ctx, span := observability.StartSpan(ctx, "render.page")
	defer span.Finish()
	span.SetTag("page", page.Index())

	dev, w, h := d.Geometry(page)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if bg := d.opts.Background; bg != nil {
		draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	}
	log := d.log
	if _, nop := log.(observability.NopLogger); nop {
		log = page.Doc().Logger()
	}
	p := &painter{
		doc:   page.Doc(),
		c:     newCanvas(img, d.opts.AntiAlias),
		dev:   dev,
		base:  coords.Identity(),
		log:   log,
		faces: make(map[*sdf.Dict]*face),
	}
	r := content.NewReader(page.Doc())
	if err := r.Begin(ctx, page); err != nil {
		span.SetError(err)
		return nil, err
	}
	if err := p.run(ctx, r); err != nil {
		span.SetError(err)
		return nil, err
	}
	if d.opts.DrawAnnotations {
		for _, a := range page.Annots() {
			if a.IsHidden() {
				continue
			}
			m, ok := a.AppearancePlacement()
			if !ok {
				continue
			}
			st := a.Appearance()
			p.c.clip = nil
			p.base = m
			if err := r.BeginForm(ctx, st, m); err != nil {
				p.log.Warn("render: annotation appearance skipped",
					observability.String("subtype", a.Type()), observability.Err(err))
				continue
			}
			if bb, ok := p.doc.SDF().Numbers(st.Dict.Get("BBox")); ok && len(bb) == 4 {
				fm := coords.Identity()
				if v, ok := p.doc.SDF().Numbers(st.Dict.Get("Matrix")); ok && len(v) == 6 {
					fm = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
				}
				p.c.clipTo([][]coords.Point{rectPoints(coords.NewRect(bb[0], bb[1], bb[2], bb[3]), fm.Multiply(m).Multiply(dev))})
			}
			if err := p.run(ctx, r); err != nil {
				span.SetError(err)
				return nil, err
			}
		}
	}
	return img, nil
}

// Export renders page and encodes it to w in format f.
func (d *Draw) Export(ctx context.Context, page *pdf.Page, w io.Writer, f Format) error {
	img, err := d.Render(ctx, page)
	if err != nil {
		return err
	}
	return Encode(w, img, f, d.opts.JPEGQuality)
}

// ExportFile renders page into the file at path, choosing the format from
// its extension.
func (d *Draw) ExportFile(ctx context.Context, page *pdf.Page, path string) (err error) {
	f, err := FormatForFile(path)
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(out)
	if err := d.Export(ctx, page, bw, f); err != nil {
		return err
	}
	return bw.Flush()
}

// Encode writes img in format f. quality applies to JPEG.
func Encode(w io.Writer, img image.Image, f Format, quality int) error {
	switch f {
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case BMP:
		return bmp.Encode(w, img)
	case PNG:
		return png.Encode(w, img)
	}
	return fmt.Errorf("render: unknown format %d", f)
}

// painter draws the elements of one page.
type painter struct {
	doc   *pdf.Doc
	c     *canvas
	dev   coords.Matrix
	base  coords.Matrix // pattern space of the stream being drawn
	log   observability.Logger
	faces map[*sdf.Dict]*face

	clips  []*image.Alpha
	floors []int // len(clips) at each form entry
}

// run draws elements until the end of the stream r was begun on,
// descending into forms.
func (p *painter) run(ctx context.Context, r *content.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			if n := len(p.floors); n > 0 {
				p.restore(p.floors[n-1] - 1)
				p.floors = p.floors[:n-1]
				if err := r.End(); err != nil {
					return err
				}
				continue
			}
			p.restore(0)
			return r.End()
		}
		if err != nil {
			return err
		}
		switch e.Type {
		case content.ElementGroupBegin:
			p.clips = append(p.clips, p.c.clip)
		case content.ElementGroupEnd:
			floor := 0
			if n := len(p.floors); n > 0 {
				floor = p.floors[n-1]
			}
			if len(p.clips) > floor {
				p.restore(len(p.clips) - 1)
			}
		case content.ElementPath:
			p.paintPath(e)
		case content.ElementText:
			p.paintText(ctx, e)
		case content.ElementImage, content.ElementInlineImage:
			p.paintImage(ctx, e)
		case content.ElementShading:
			p.paintShadingElement(e)
		case content.ElementForm:
			bbox, hasBox := e.BBox()
			if err := r.FormBegin(ctx); err != nil {
				p.log.Warn("render: form skipped",
					observability.String("form", string(e.XObject.Name)), observability.Err(err))
				continue
			}
			p.clips = append(p.clips, p.c.clip)
			p.floors = append(p.floors, len(p.clips))
			if hasBox {
				// The box is already mapped to the page's user space.
				p.c.clipTo([][]coords.Point{rectPoints(bbox, p.dev)})
			}
		}
	}
}

// restore pops saved clips down to depth n.
func (p *painter) restore(n int) {
	if n < len(p.clips) {
		p.c.clip = p.clips[n]
		p.clips = p.clips[:n]
	}
}

func rectPoints(r coords.Rect, m coords.Matrix) []coords.Point {
	return []coords.Point{
		m.Transform(coords.Point{X: r.X1, Y: r.Y1}),
		m.Transform(coords.Point{X: r.X2, Y: r.Y1}),
		m.Transform(coords.Point{X: r.X2, Y: r.Y2}),
		m.Transform(coords.Point{X: r.X1, Y: r.Y2}),
	}
}

func (p *painter) paintPath(e *content.Element) {
	gs := &e.State
	m := gs.CTM.Multiply(p.dev)
	var lines []polyline
	if e.Filled || e.Stroked || e.Clip {
		lines = flattenPath(e.Path, m)
	}
	if e.Filled {
		// Even-odd fills are drawn with the nonzero rule.
		p.fillLines(lines, gs.FillSpace, gs.FillColor, gs.FillAlpha)
	}
	if e.Stroked {
		p.strokeLines(lines, gs)
	}
	if e.Clip {
		p.c.clipTo(points(lines))
	}
}

func (p *painter) fillLines(lines []polyline, cs content.ColorSpace, c content.Color, alpha float64) {
	mask := p.c.rasterize(points(lines))
	p.fillMask(mask, cs, c, alpha)
}

func (p *painter) strokeLines(lines []polyline, gs *content.GState) {
	scale := gs.CTM.Multiply(p.dev).ScaleFactor()
	s := stroker{
		hw:    math.Max(0.5, gs.LineWidth*scale/2),
		cap:   gs.LineCap,
		join:  gs.LineJoin,
		miter: gs.MiterLimit,
	}
	if len(gs.Dash) > 0 {
		pattern := make([]float64, len(gs.Dash))
		for i, v := range gs.Dash {
			pattern[i] = v * scale
		}
		lines = dash(lines, pattern, gs.DashPhase*scale)
	}
	for _, l := range lines {
		s.stroke(l)
	}
	mask := p.c.rasterize(s.out)
	p.fillMask(mask, gs.StrokeSpace, gs.StrokeColor, gs.StrokeAlpha)
}

// fillMask paints mask with a color or a shading pattern.
func (p *painter) fillMask(mask *image.Alpha, cs content.ColorSpace, c content.Color, alpha float64) {
	if cs.Family != content.FamilyPattern {
		p.c.paint(mask, nrgba(cs, c.Comps, alpha))
		return
	}
	sd := p.doc.SDF()
	pat := sd.Dict(c.Pattern.Obj)
	if pat == nil {
		return
	}
	if typ, _ := sd.Int(pat.Get("PatternType")); typ == 2 {
		sh, err := loadShading(sd, pat.Get("Shading"))
		if err != nil {
			p.log.Debug("render: shading pattern skipped", observability.Err(err))
			return
		}
		pm := coords.Identity()
		if v, ok := sd.Numbers(pat.Get("Matrix")); ok && len(v) == 6 {
			pm = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
		}
		p.c.paintShading(sh, pm.Multiply(p.base).Multiply(p.dev), mask, alpha)
		return
	}
	// Tiling patterns: uncolored ones are drawn in their color, colored
	// ones are not drawn.
	if base, ok := cs.Base(); ok && len(c.Comps) > 0 {
		p.c.paint(mask, nrgba(base, c.Comps, alpha))
		return
	}
	p.log.Debug("render: tiling pattern not drawn", observability.String("pattern", string(c.Pattern.Name)))
}

func nrgba(cs content.ColorSpace, comps []float64, alpha float64) color.NRGBA {
	r, g, b := cs.RGB(comps)
	return color.NRGBA{toByte(r), toByte(g), toByte(b), toByte(alpha)}
}

func (p *painter) paintShadingElement(e *content.Element) {
	sh, err := loadShading(p.doc.SDF(), e.Shading.Obj)
	if err != nil {
		p.log.Debug("render: shading skipped", observability.Err(err))
		return
	}
	p.c.paintShading(sh, e.State.CTM.Multiply(p.dev), p.c.full(), e.State.FillAlpha)
}

func (p *painter) paintImage(ctx context.Context, e *content.Element) {
	im, err := e.Image()
	if err == nil {
		var src image.Image
		if src, err = im.Decode(ctx); err == nil {
			p.drawImage(src, im.IsImageMask(), &e.State)
			return
		}
	}
	p.log.Debug("render: image skipped", observability.Err(err))
}

// drawImage maps src onto the unit square of the CTM. Stencil masks are
// painted with the fill color.
func (p *painter) drawImage(src image.Image, stencil bool, gs *content.GState) {
	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if w == 0 || h == 0 {
		return
	}
	m := coords.Translate(-float64(b.Min.X), -float64(b.Min.Y)).
		Multiply(coords.Matrix{1 / w, 0, 0, -1 / h, 0, 1}).
		Multiply(gs.CTM).
		Multiply(p.dev)
	aff := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
	dst := p.c.img
	var interp xdraw.Transformer = xdraw.BiLinear
	if !p.c.aa {
		interp = xdraw.NearestNeighbor
	}
	if stencil {
		mask := image.NewAlpha(dst.Bounds())
		interp.Transform(mask, aff, src, b, xdraw.Src, nil)
		p.c.limit(mask)
		p.fillMask(mask, gs.FillSpace, gs.FillColor, gs.FillAlpha)
		return
	}
	var opts *xdraw.Options
	if p.c.clip != nil {
		opts = &xdraw.Options{DstMask: p.c.clip}
	}
	interp.Transform(dst, aff, src, b, xdraw.Over, opts)
}
