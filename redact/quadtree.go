package redact

import "github.com/NityaNandPandey/AndroidPDF/coords"

// quadTree indexes rectangles for intersection queries.
type quadTree struct {
	bounds   coords.Rect
	capacity int
	items    []item
	nodes    []*quadTree
}

type item struct {
	rect  coords.Rect
	index int
}

func newQuadTree(bounds coords.Rect, capacity int) *quadTree {
	return &quadTree{bounds: bounds.Normalize(), capacity: capacity}
}

func (q *quadTree) insert(r coords.Rect, index int) bool {
	r = r.Normalize()
	if !overlaps(q.bounds, r) {
		return false
	}
	if q.nodes != nil {
		for _, n := range q.nodes {
			if n.bounds.ContainsRect(r) && n.insert(r, index) {
				return true
			}
		}
		q.items = append(q.items, item{r, index})
		return true
	}
	if len(q.items) < q.capacity || q.bounds.Width() < 1 {
		q.items = append(q.items, item{r, index})
		return true
	}
	q.subdivide()
	old := q.items
	q.items = nil
	for _, it := range old {
		q.insert(it.rect, it.index)
	}
	return q.insert(r, index)
}

func (q *quadTree) subdivide() {
	b := q.bounds
	mx, my := (b.X1+b.X2)/2, (b.Y1+b.Y2)/2
	q.nodes = []*quadTree{
		newQuadTree(coords.Rect{X1: b.X1, Y1: my, X2: mx, Y2: b.Y2}, q.capacity),
		newQuadTree(coords.Rect{X1: mx, Y1: my, X2: b.X2, Y2: b.Y2}, q.capacity),
		newQuadTree(coords.Rect{X1: b.X1, Y1: b.Y1, X2: mx, Y2: my}, q.capacity),
		newQuadTree(coords.Rect{X1: mx, Y1: b.Y1, X2: b.X2, Y2: my}, q.capacity),
	}
}

// query returns the indexes of the rectangles overlapping r.
func (q *quadTree) query(r coords.Rect) []int {
	r = r.Normalize()
	if !overlaps(q.bounds, r) {
		return nil
	}
	var out []int
	for _, it := range q.items {
		if overlaps(it.rect, r) {
			out = append(out, it.index)
		}
	}
	for _, n := range q.nodes {
		out = append(out, n.query(r)...)
	}
	return out
}

// overlaps is true for rectangles that touch, so degenerate boxes such
// as those of horizontal rules are still found.
func overlaps(a, b coords.Rect) bool {
	return !(b.X1 > a.X2 || b.X2 < a.X1 || b.Y1 > a.Y2 || b.Y2 < a.Y1)
}
