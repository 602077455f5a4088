package render

import (
	"math"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
)

// polyline is a flattened subpath in device space.
type polyline struct {
	pts    []coords.Point
	closed bool
}

// flattener turns move, line and curve commands into polylines.
type flattener struct {
	out []polyline
	cur *polyline
	pen coords.Point
}

func (f *flattener) moveTo(p coords.Point) {
	f.flush()
	f.cur = &polyline{pts: []coords.Point{p}}
	f.pen = p
}

func (f *flattener) lineTo(p coords.Point) {
	if f.cur == nil {
		f.moveTo(f.pen)
	}
	f.cur.pts = append(f.cur.pts, p)
	f.pen = p
}

func segments(length float64) int {
	n := int(length/3) + 1
	if n > 100 {
		n = 100
	}
	return n
}

func (f *flattener) quadTo(c, p coords.Point) {
	a := f.pen
	n := segments(dist(a, c) + dist(c, p))
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		u := 1 - t
		f.lineTo(coords.Point{
			X: u*u*a.X + 2*u*t*c.X + t*t*p.X,
			Y: u*u*a.Y + 2*u*t*c.Y + t*t*p.Y,
		})
	}
}

func (f *flattener) cubeTo(c1, c2, p coords.Point) {
	a := f.pen
	n := segments(dist(a, c1) + dist(c1, c2) + dist(c2, p))
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		u := 1 - t
		f.lineTo(coords.Point{
			X: u*u*u*a.X + 3*u*u*t*c1.X + 3*u*t*t*c2.X + t*t*t*p.X,
			Y: u*u*u*a.Y + 3*u*u*t*c1.Y + 3*u*t*t*c2.Y + t*t*t*p.Y,
		})
	}
}

func (f *flattener) close() {
	if f.cur == nil {
		return
	}
	f.cur.closed = true
	start := f.cur.pts[0]
	f.flush()
	f.pen = start
}

func (f *flattener) flush() {
	if f.cur != nil {
		f.out = append(f.out, *f.cur)
		f.cur = nil
	}
}

func (f *flattener) result() []polyline {
	f.flush()
	return f.out
}

// flattenPath maps path through m and flattens its curves.
func flattenPath(path content.PathData, m coords.Matrix) []polyline {
	var f flattener
	pt := func(x, y float64) coords.Point { return m.Transform(coords.Point{X: x, Y: y}) }
	path.Each(func(op content.PathOp, v []float64) {
		switch op {
		case content.MoveTo:
			f.moveTo(pt(v[0], v[1]))
		case content.LineTo:
			f.lineTo(pt(v[0], v[1]))
		case content.CurveTo:
			f.cubeTo(pt(v[0], v[1]), pt(v[2], v[3]), pt(v[4], v[5]))
		case content.RectOp:
			x, y, w, h := v[0], v[1], v[2], v[3]
			f.moveTo(pt(x, y))
			f.lineTo(pt(x+w, y))
			f.lineTo(pt(x+w, y+h))
			f.lineTo(pt(x, y+h))
			f.close()
		case content.ClosePath:
			f.close()
		}
	})
	return f.result()
}

func dist(a, b coords.Point) float64 { return math.Hypot(b.X-a.X, b.Y-a.Y) }

// area returns the signed area of a closed polygon.
func area(pts []coords.Point) float64 {
	var s float64
	for i := range pts {
		j := (i + 1) % len(pts)
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return s / 2
}

// oriented returns pts wound counter-clockwise so that overlapping stroke
// pieces add up instead of cancelling.
func oriented(pts []coords.Point) []coords.Point {
	if area(pts) >= 0 {
		return pts
	}
	out := make([]coords.Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

func circle(c coords.Point, r float64) []coords.Point {
	n := int(r) + 8
	if n > 64 {
		n = 64
	}
	pts := make([]coords.Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = coords.Point{X: c.X + r*math.Cos(a), Y: c.Y + r*math.Sin(a)}
	}
	return pts
}

// stroker outlines polylines as filled polygons.
type stroker struct {
	hw    float64
	cap   content.LineCap
	join  content.LineJoin
	miter float64
	out   [][]coords.Point
}

func (s *stroker) add(pts ...coords.Point) { s.out = append(s.out, oriented(pts)) }

func dedupe(pts []coords.Point) []coords.Point {
	out := pts[:0:0]
	for _, p := range pts {
		if n := len(out); n > 0 && dist(out[n-1], p) < 1e-9 {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *stroker) stroke(l polyline) {
	pts := dedupe(l.pts)
	if l.closed && len(pts) > 1 && dist(pts[0], pts[len(pts)-1]) < 1e-9 {
		pts = pts[:len(pts)-1]
	}
	hw := s.hw
	if len(pts) == 1 {
		switch s.cap {
		case content.LineCapRound:
			s.add(circle(pts[0], hw)...)
		case content.LineCapSquare:
			p := pts[0]
			s.add(coords.Point{X: p.X - hw, Y: p.Y - hw}, coords.Point{X: p.X + hw, Y: p.Y - hw},
				coords.Point{X: p.X + hw, Y: p.Y + hw}, coords.Point{X: p.X - hw, Y: p.Y + hw})
		}
		return
	}
	if l.closed {
		pts = append(pts, pts[0])
	}
	n := len(pts) - 1
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[i+1]
		dx, dy := (b.X-a.X)/dist(a, b), (b.Y-a.Y)/dist(a, b)
		if !l.closed && s.cap == content.LineCapSquare {
			if i == 0 {
				a = coords.Point{X: a.X - dx*hw, Y: a.Y - dy*hw}
			}
			if i == n-1 {
				b = coords.Point{X: b.X + dx*hw, Y: b.Y + dy*hw}
			}
		}
		nx, ny := -dy*hw, dx*hw
		s.add(coords.Point{X: a.X + nx, Y: a.Y + ny}, coords.Point{X: b.X + nx, Y: b.Y + ny},
			coords.Point{X: b.X - nx, Y: b.Y - ny}, coords.Point{X: a.X - nx, Y: a.Y - ny})
	}
	for i := 1; i < n; i++ {
		s.joinAt(pts[i-1], pts[i], pts[i+1])
	}
	if l.closed {
		s.joinAt(pts[n-1], pts[0], pts[1])
	} else if s.cap == content.LineCapRound {
		s.add(circle(pts[0], hw)...)
		s.add(circle(pts[n], hw)...)
	}
}

func (s *stroker) joinAt(a, v, b coords.Point) {
	hw := s.hw
	if s.join == content.LineJoinRound {
		s.add(circle(v, hw)...)
		return
	}
	d1, d2 := dist(a, v), dist(v, b)
	n1 := coords.Point{X: -(v.Y - a.Y) / d1, Y: (v.X - a.X) / d1}
	n2 := coords.Point{X: -(b.Y - v.Y) / d2, Y: (b.X - v.X) / d2}
	sum := coords.Point{X: n1.X + n2.X, Y: n1.Y + n2.Y}
	l2 := sum.X*sum.X + sum.Y*sum.Y
	for _, side := range []float64{1, -1} {
		p1 := coords.Point{X: v.X + side*n1.X*hw, Y: v.Y + side*n1.Y*hw}
		p2 := coords.Point{X: v.X + side*n2.X*hw, Y: v.Y + side*n2.Y*hw}
		// The miter length relative to the line width is 2/|n1+n2|.
		if s.join == content.LineJoinMiter && l2 > 1e-12 && 2/math.Sqrt(l2) <= s.miter {
			k := side * 2 * hw / l2
			m := coords.Point{X: v.X + sum.X*k, Y: v.Y + sum.Y*k}
			s.add(v, p1, m, p2)
			continue
		}
		s.add(v, p1, p2)
	}
}

// dash splits polylines into the "on" pieces of a dash pattern given in
// device units.
func dash(lines []polyline, pattern []float64, phase float64) []polyline {
	total := 0.0
	for _, d := range pattern {
		if d < 0 {
			return lines
		}
		total += d
	}
	if total <= 0 {
		return lines
	}
	if len(pattern)%2 == 1 {
		pattern = append(append([]float64(nil), pattern...), pattern...)
	}
	var out []polyline
	for _, l := range lines {
		pts := l.pts
		if l.closed && len(pts) > 0 {
			pts = append(append([]coords.Point(nil), pts...), pts[0])
		}
		idx, left := 0, pattern[0]
		ph := math.Mod(phase, total)
		for ph > 0 {
			if ph < left {
				left -= ph
				break
			}
			ph -= left
			idx = (idx + 1) % len(pattern)
			left = pattern[idx]
		}
		var cur []coords.Point
		if idx%2 == 0 && len(pts) > 0 {
			cur = []coords.Point{pts[0]}
		}
		for i := 1; i < len(pts); i++ {
			a, b := pts[i-1], pts[i]
			seg := dist(a, b)
			pos := 0.0
			for seg-pos > left {
				pos += left
				t := pos / seg
				p := coords.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
				if idx%2 == 0 {
					out = append(out, polyline{pts: append(cur, p)})
					cur = nil
				} else {
					cur = []coords.Point{p}
				}
				idx = (idx + 1) % len(pattern)
				left = pattern[idx]
			}
			left -= seg - pos
			if idx%2 == 0 {
				cur = append(cur, b)
			}
		}
		if len(cur) > 1 {
			out = append(out, polyline{pts: cur})
		}
	}
	return out
}
