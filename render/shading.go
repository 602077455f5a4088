package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// function is a PDF function of one input.
type function func(t float64) []float64

func loadFunction(doc *sdf.Doc, o sdf.Obj, depth int) (function, error) {
	if depth > 8 {
		return nil, sdf.Errorf("shading function", sdf.ErrCorrupt, "functions nest too deeply")
	}
	if arr := doc.Array(o); arr != nil {
		// One function per output component.
		var fs []function
		for i := 0; i < arr.Len(); i++ {
			f, err := loadFunction(doc, arr.At(i), depth+1)
			if err != nil {
				return nil, err
			}
			fs = append(fs, f)
		}
		return func(t float64) []float64 {
			out := make([]float64, 0, len(fs))
			for _, f := range fs {
				out = append(out, f(t)...)
			}
			return out
		}, nil
	}
	d := doc.Dict(o)
	if d == nil {
		return nil, sdf.Errorf("shading function", sdf.ErrCorrupt, "function is %s", doc.MustResolve(o).Type())
	}
	domain := [2]float64{0, 1}
	if v, ok := doc.Numbers(d.Get("Domain")); ok && len(v) >= 2 {
		domain = [2]float64{v[0], v[1]}
	}
	clampIn := func(t float64) float64 { return math.Max(domain[0], math.Min(domain[1], t)) }
	switch typ, _ := doc.Int(d.Get("FunctionType")); typ {
	case 2:
		c0, ok := doc.Numbers(d.Get("C0"))
		if !ok {
			c0 = []float64{0}
		}
		c1, ok := doc.Numbers(d.Get("C1"))
		if !ok {
			c1 = []float64{1}
		}
		n, ok := doc.Number(d.Get("N"))
		if !ok || n == 0 {
			n = 1
		}
		return func(t float64) []float64 {
			x := math.Pow(clampIn(t), n)
			out := make([]float64, len(c0))
			for i := range c0 {
				hi := 0.0
				if i < len(c1) {
					hi = c1[i]
				}
				out[i] = c0[i] + x*(hi-c0[i])
			}
			return out
		}, nil
	case 3:
		fa := doc.Array(d.Get("Functions"))
		var fs []function
		for i := 0; i < fa.Len(); i++ {
			f, err := loadFunction(doc, fa.At(i), depth+1)
			if err != nil {
				return nil, err
			}
			fs = append(fs, f)
		}
		if len(fs) == 0 {
			return nil, sdf.Errorf("shading function", sdf.ErrCorrupt, "stitching function without functions")
		}
		bounds, _ := doc.Numbers(d.Get("Bounds"))
		encode, _ := doc.Numbers(d.Get("Encode"))
		return func(t float64) []float64 {
			t = clampIn(t)
			k := 0
			for k < len(bounds) && k < len(fs)-1 && t >= bounds[k] {
				k++
			}
			lo, hi := domain[0], domain[1]
			if k > 0 {
				lo = bounds[k-1]
			}
			if k < len(bounds) {
				hi = bounds[k]
			}
			e0, e1 := 0.0, 1.0
			if 2*k+1 < len(encode) {
				e0, e1 = encode[2*k], encode[2*k+1]
			}
			if hi > lo {
				t = e0 + (t-lo)*(e1-e0)/(hi-lo)
			} else {
				t = e0
			}
			return fs[k](t)
		}, nil
	}
	return nil, sdf.Errorf("shading function", sdf.ErrUnsupported, "function type %v", d.Get("FunctionType"))
}

// shading is an axial or radial shading ready to be sampled.
type shading struct {
	typ    int64
	cs     content.ColorSpace
	coords []float64
	t0, t1 float64
	extend [2]bool
	lut    [256]color.NRGBA
}

func loadShading(doc *sdf.Doc, o sdf.Obj) (*shading, error) {
	d := doc.Dict(o)
	if d == nil {
		return nil, sdf.Errorf("shading", sdf.ErrCorrupt, "shading is not a dictionary")
	}
	typ, _ := doc.Int(d.Get("ShadingType"))
	if typ != 2 && typ != 3 {
		return nil, sdf.Errorf("shading", sdf.ErrUnsupported, "shading type %d", typ)
	}
	cs, err := content.ResolveColorSpace(doc, nil, d.Get("ColorSpace"))
	if err != nil {
		return nil, err
	}
	fn, err := loadFunction(doc, d.Get("Function"), 0)
	if err != nil {
		return nil, err
	}
	s := &shading{typ: typ, cs: cs, t0: 0, t1: 1}
	s.coords, _ = doc.Numbers(d.Get("Coords"))
	if (typ == 2 && len(s.coords) != 4) || (typ == 3 && len(s.coords) != 6) {
		return nil, sdf.Errorf("shading", sdf.ErrCorrupt, "bad /Coords")
	}
	if v, ok := doc.Numbers(d.Get("Domain")); ok && len(v) == 2 {
		s.t0, s.t1 = v[0], v[1]
	}
	if ext := doc.Array(d.Get("Extend")); ext != nil {
		for i := 0; i < 2; i++ {
			b, _ := doc.MustResolve(ext.At(i)).(sdf.Bool)
			s.extend[i] = bool(b)
		}
	}
	for i := range s.lut {
		t := s.t0 + (s.t1-s.t0)*float64(i)/255
		r, g, b := cs.RGB(fn(t))
		s.lut[i] = color.NRGBA{toByte(r), toByte(g), toByte(b), 0xff}
	}
	return s, nil
}

// param returns the position of a shading-space point along the shading
// in [0, 1], or false outside an unextended shading.
func (s *shading) param(x, y float64) (float64, bool) {
	c := s.coords
	if s.typ == 2 {
		dx, dy := c[2]-c[0], c[3]-c[1]
		l2 := dx*dx + dy*dy
		if l2 == 0 {
			return 0, false
		}
		return s.extended(((x-c[0])*dx + (y-c[1])*dy) / l2)
	}
	x0, y0, r0, x1, y1, r1 := c[0], c[1], c[2], c[3], c[4], c[5]
	cdx, cdy, dr := x1-x0, y1-y0, r1-r0
	pdx, pdy := x-x0, y-y0
	a := cdx*cdx + cdy*cdy - dr*dr
	b := pdx*cdx + pdy*cdy + r0*dr
	cc := pdx*pdx + pdy*pdy - r0*r0
	var roots []float64
	if math.Abs(a) < 1e-12 {
		if b != 0 {
			roots = []float64{cc / (2 * b)}
		}
	} else {
		disc := b*b - a*cc
		if disc < 0 {
			return 0, false
		}
		sq := math.Sqrt(disc)
		roots = []float64{(b + sq) / a, (b - sq) / a}
		if roots[1] > roots[0] {
			roots[0], roots[1] = roots[1], roots[0]
		}
	}
	for _, t := range roots {
		if r0+t*dr < 0 {
			continue
		}
		if v, ok := s.extended(t); ok {
			return v, true
		}
	}
	return 0, false
}

func (s *shading) extended(t float64) (float64, bool) {
	switch {
	case t < 0:
		return 0, s.extend[0]
	case t > 1:
		return 1, s.extend[1]
	}
	return t, true
}

// paintShading draws the shading through mask. m maps shading space to device
// space.
func (c *canvas) paintShading(s *shading, m coords.Matrix, mask *image.Alpha, alpha float64) {
	inv, err := m.Inverse()
	if err != nil {
		return
	}
	b := c.img.Bounds()
	src := image.NewNRGBA(b)
	a := toByte(alpha)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := mask.PixOffset(x, y)
			if mask.Pix[i] == 0 {
				continue
			}
			ux, uy := inv.Apply(float64(x)+0.5, float64(y)+0.5)
			t, ok := s.param(ux, uy)
			if !ok {
				mask.Pix[i] = 0
				continue
			}
			col := s.lut[int(t*255+0.5)]
			col.A = a
			src.SetNRGBA(x, y, col)
		}
	}
	draw.DrawMask(c.img, b, src, b.Min, mask, b.Min, draw.Over)
}
