package coords

import "math"

// Rect is an axis-aligned rectangle given by two corners. Rectangles read from
// files may have their corners in any order; call Normalize before comparing.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

func NewRect(x1, y1, x2, y2 float64) Rect { return Rect{x1, y1, x2, y2}.Normalize() }

// Normalize orders the corners so that X1 <= X2 and Y1 <= Y2.
func (r Rect) Normalize() Rect {
	if r.X1 > r.X2 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y1 > r.Y2 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

func (r Rect) Width() float64  { return math.Abs(r.X2 - r.X1) }
func (r Rect) Height() float64 { return math.Abs(r.Y2 - r.Y1) }

// IsEmpty reports whether r has no area.
func (r Rect) IsEmpty() bool { return r.Width() == 0 || r.Height() == 0 }

func (r Rect) Contains(x, y float64) bool {
	n := r.Normalize()
	return x >= n.X1 && x <= n.X2 && y >= n.Y1 && y <= n.Y2
}

// ContainsRect reports whether o lies entirely inside r.
func (r Rect) ContainsRect(o Rect) bool {
	n, m := r.Normalize(), o.Normalize()
	return m.X1 >= n.X1 && m.X2 <= n.X2 && m.Y1 >= n.Y1 && m.Y2 <= n.Y2
}

// Intersects reports whether the rectangles share interior area.
func (r Rect) Intersects(o Rect) bool {
	n, m := r.Normalize(), o.Normalize()
	return n.X1 < m.X2 && m.X1 < n.X2 && n.Y1 < m.Y2 && m.Y1 < n.Y2
}

// Intersect returns the overlapping area and whether it is non-empty.
func (r Rect) Intersect(o Rect) (Rect, bool) {
	if !r.Intersects(o) {
		return Rect{}, false
	}
	n, m := r.Normalize(), o.Normalize()
	return Rect{
		X1: math.Max(n.X1, m.X1), Y1: math.Max(n.Y1, m.Y1),
		X2: math.Min(n.X2, m.X2), Y2: math.Min(n.Y2, m.Y2),
	}, true
}

func (r Rect) Union(o Rect) Rect {
	n, m := r.Normalize(), o.Normalize()
	return Rect{
		X1: math.Min(n.X1, m.X1), Y1: math.Min(n.Y1, m.Y1),
		X2: math.Max(n.X2, m.X2), Y2: math.Max(n.Y2, m.Y2),
	}
}

// Inflate grows the rectangle by d on every side; negative d shrinks it.
func (r Rect) Inflate(d float64) Rect {
	n := r.Normalize()
	return Rect{n.X1 - d, n.Y1 - d, n.X2 + d, n.Y2 + d}
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{(r.X1 + r.X2) / 2, (r.Y1 + r.Y2) / 2}
}
