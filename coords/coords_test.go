package coords

import (
	"math"
	"testing"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMatrixMultiplyOrder(t *testing.T) {
	// Scale then translate: the translation is not scaled.
	m := Scale(2, 2).Multiply(Translate(10, 0))
	p := m.Transform(Point{1, 1})
	if !almost(p.X, 12) || !almost(p.Y, 2) {
		t.Fatalf("got %+v", p)
	}
}

func TestMatrixInverse(t *testing.T) {
	m := Matrix{2, 1, -1, 3, 5, 7}
	inv, err := m.Inverse()
	if err != nil {
		t.Fatal(err)
	}
	id := m.Multiply(inv)
	for i, v := range Identity() {
		if !almost(id[i], v) {
			t.Fatalf("m*inv = %v", id)
		}
	}
	if _, err := (Matrix{1, 2, 2, 4, 0, 0}).Inverse(); err == nil {
		t.Fatalf("singular matrix should fail")
	}
}

func TestRotateDegreesQuarterTurns(t *testing.T) {
	p := RotateDegrees(90).Transform(Point{1, 0})
	if p != (Point{0, 1}) {
		t.Fatalf("90deg rotation of (1,0) = %+v", p)
	}
	if RotateDegrees(-270) != RotateDegrees(90) {
		t.Fatalf("-270 should equal 90")
	}
}

func TestRectOps(t *testing.T) {
	r := Rect{100, 200, 0, 0}.Normalize()
	if r != (Rect{0, 0, 100, 200}) {
		t.Fatalf("normalize: %+v", r)
	}
	tests := []struct {
		name string
		a, b Rect
		want bool
	}{
		{"overlap", Rect{0, 0, 10, 10}, Rect{5, 5, 15, 15}, true},
		{"touching edges", Rect{0, 0, 10, 10}, Rect{10, 0, 20, 10}, false},
		{"disjoint", Rect{0, 0, 10, 10}, Rect{20, 20, 30, 30}, false},
		{"unnormalized", Rect{10, 10, 0, 0}, Rect{5, 5, 6, 6}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Intersects(tt.b); got != tt.want {
				t.Errorf("Intersects = %v, want %v", got, tt.want)
			}
		})
	}
	in, ok := Rect{0, 0, 10, 10}.Intersect(Rect{5, 5, 15, 15})
	if !ok || in != (Rect{5, 5, 10, 10}) {
		t.Fatalf("intersect = %+v %v", in, ok)
	}
	if u := (Rect{0, 0, 1, 1}).Union(Rect{2, 2, 3, 3}); u != (Rect{0, 0, 3, 3}) {
		t.Fatalf("union = %+v", u)
	}
	if got := Rotate(math.Pi / 2).TransformRect(Rect{0, 0, 2, 1}); !almost(got.X1, -1) || !almost(got.Y2, 2) {
		t.Fatalf("transform rect = %+v", got)
	}
}
