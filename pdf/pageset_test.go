package pdf

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParsePageSet(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"1-3", []int{1, 2, 3}},
		{"2,5", []int{2, 5}},
		{"4-", []int{4, 5, 6}},
		{"odd", []int{1, 3, 5}},
		{"1-4:even,6", []int{2, 4, 6}},
		{"3,1-2,3", []int{1, 2, 3}},
		{"5-20", []int{5, 6}},
	}
	for _, tt := range tests {
		s, err := ParsePageSet(tt.in)
		if err != nil {
			t.Fatalf("ParsePageSet(%q): %v", tt.in, err)
		}
		if diff := cmp.Diff(tt.want, s.Pages(6)); diff != "" {
			t.Errorf("ParsePageSet(%q) (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestParsePageSetErrors(t *testing.T) {
	for _, in := range []string{"", "0", "x", "3-1", "1:third"} {
		if _, err := ParsePageSet(in); err == nil {
			t.Errorf("ParsePageSet(%q) succeeded", in)
		}
	}
}

func TestPageSetContains(t *testing.T) {
	s := NewPageSet(1, 0, EvenPages)
	s.AddPage(3)
	for i, want := range map[int]bool{1: false, 2: true, 3: true, 4: true, 5: false, 9: false} {
		if got := s.Contains(i, 8); got != want {
			t.Errorf("Contains(%d) = %v, want %v", i, got, want)
		}
	}
	if got := s.String(); got != "1-:even,3" {
		t.Errorf("String = %q", got)
	}
}
