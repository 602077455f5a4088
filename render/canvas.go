package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"

	"github.com/NityaNandPandey/AndroidPDF/coords"
)

// canvas composites coverage masks onto the output image. clip is nil
// when nothing is clipped.
type canvas struct {
	img  *image.RGBA
	ras  *vector.Rasterizer
	mask *image.Alpha
	clip *image.Alpha
	aa   bool
}

func newCanvas(img *image.RGBA, aa bool) *canvas {
	b := img.Bounds()
	return &canvas{
		img:  img,
		ras:  vector.NewRasterizer(b.Dx(), b.Dy()),
		mask: image.NewAlpha(b),
		aa:   aa,
	}
}

// rasterize fills the polygons with the nonzero rule and returns the
// coverage intersected with the clip. The returned mask is reused.
func (c *canvas) rasterize(polys [][]coords.Point) *image.Alpha {
	b := c.img.Bounds()
	c.ras.Reset(b.Dx(), b.Dy())
	for _, p := range polys {
		if len(p) < 2 {
			continue
		}
		c.ras.MoveTo(float32(p[0].X), float32(p[0].Y))
		for _, q := range p[1:] {
			c.ras.LineTo(float32(q.X), float32(q.Y))
		}
		c.ras.ClosePath()
	}
	clear(c.mask.Pix)
	c.ras.DrawOp = draw.Src
	c.ras.Draw(c.mask, b, image.Opaque, image.Point{})
	c.limit(c.mask)
	return c.mask
}

// limit applies the clip and, without anti-aliasing, thresholds m.
func (c *canvas) limit(m *image.Alpha) {
	for i, v := range m.Pix {
		if c.clip != nil {
			v = uint8(uint16(v) * uint16(c.clip.Pix[i]) / 255)
		}
		if !c.aa {
			if v >= 128 {
				v = 255
			} else {
				v = 0
			}
		}
		m.Pix[i] = v
	}
}

func points(lines []polyline) [][]coords.Point {
	out := make([][]coords.Point, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.pts)
	}
	return out
}

// paint composites a solid color through m.
func (c *canvas) paint(m *image.Alpha, col color.NRGBA) {
	if col.A == 0 {
		return
	}
	draw.DrawMask(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{}, m, image.Point{}, draw.Over)
}

// clipTo intersects the clip with the polygons.
func (c *canvas) clipTo(polys [][]coords.Point) {
	m := c.rasterize(polys)
	next := image.NewAlpha(m.Rect)
	copy(next.Pix, m.Pix)
	c.clip = next
}

// clipRect intersects the clip with a device-space rectangle.
func (c *canvas) clipRect(r coords.Rect) {
	c.clipTo([][]coords.Point{{
		{X: r.X1, Y: r.Y1}, {X: r.X2, Y: r.Y1}, {X: r.X2, Y: r.Y2}, {X: r.X1, Y: r.Y2},
	}})
}

// full returns a mask of the current clip, or everything.
func (c *canvas) full() *image.Alpha {
	if c.clip != nil {
		copy(c.mask.Pix, c.clip.Pix)
		return c.mask
	}
	for i := range c.mask.Pix {
		c.mask.Pix[i] = 0xff
	}
	return c.mask
}

func toByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xff
	}
	return uint8(v*255 + 0.5)
}
