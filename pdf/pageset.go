package pdf

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// PageFilter restricts a page range to odd or even page numbers.
type PageFilter int

const (
	AllPages PageFilter = iota
	OddPages
	EvenPages
)

type pageRange struct {
	first, last int // last is 0 for an open range
	filter      PageFilter
}

// PageSet is a set of 1-based page numbers built from ranges.
type PageSet struct {
	ranges []pageRange
}

// NewPageSet returns the pages first through last that pass filter. A
// last of 0 extends the range to the end of the document.
func NewPageSet(first, last int, filter PageFilter) *PageSet {
	s := &PageSet{}
	s.AddRange(first, last, filter)
	return s
}

// AllPageSet selects every page.
func AllPageSet() *PageSet { return NewPageSet(1, 0, AllPages) }

// AddPage adds a single page.
func (s *PageSet) AddPage(i int) { s.AddRange(i, i, AllPages) }

// AddRange adds the pages first through last that pass filter.
func (s *PageSet) AddRange(first, last int, filter PageFilter) {
	s.ranges = append(s.ranges, pageRange{first: first, last: last, filter: filter})
}

// ParsePageSet reads a list such as "1-3,5,8-" or "odd". Each item may be
// followed by ":odd" or ":even".
func ParsePageSet(spec string) (*PageSet, error) {
	s := &PageSet{}
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		filter := AllPages
		if body, f, ok := strings.Cut(item, ":"); ok {
			item = body
			switch strings.ToLower(f) {
			case "odd":
				filter = OddPages
			case "even":
				filter = EvenPages
			default:
				return nil, sdf.Errorf("page set", sdf.ErrCorrupt, "unknown filter %q", f)
			}
		}
		switch strings.ToLower(item) {
		case "all", "":
			s.AddRange(1, 0, filter)
			continue
		case "odd":
			s.AddRange(1, 0, OddPages)
			continue
		case "even":
			s.AddRange(1, 0, EvenPages)
			continue
		}
		lo, hi, isRange := strings.Cut(item, "-")
		first, err := pageNumber(lo, 1)
		if err != nil {
			return nil, err
		}
		last := first
		if isRange {
			if last, err = pageNumber(hi, 0); err != nil {
				return nil, err
			}
			if last != 0 && last < first {
				return nil, sdf.Errorf("page set", sdf.ErrCorrupt, "range %q runs backwards", item)
			}
		}
		s.AddRange(first, last, filter)
	}
	if len(s.ranges) == 0 {
		return nil, sdf.Errorf("page set", sdf.ErrCorrupt, "no pages in %q", spec)
	}
	return s, nil
}

func pageNumber(s string, empty int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return empty, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, sdf.Errorf("page set", sdf.ErrCorrupt, "bad page number %q", s)
	}
	return n, nil
}

// Contains reports whether page i is in the set for a document of count
// pages.
func (s *PageSet) Contains(i, count int) bool {
	if i < 1 || i > count {
		return false
	}
	for _, r := range s.ranges {
		last := r.last
		if last == 0 || last > count {
			last = count
		}
		if i < r.first || i > last {
			continue
		}
		switch {
		case r.filter == OddPages && i%2 == 0:
		case r.filter == EvenPages && i%2 == 1:
		default:
			return true
		}
	}
	return false
}

// Pages returns the sorted page numbers of the set that exist in a
// document of count pages.
func (s *PageSet) Pages(count int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, r := range s.ranges {
		last := r.last
		if last == 0 || last > count {
			last = count
		}
		for i := max(r.first, 1); i <= last; i++ {
			if !seen[i] && s.Contains(i, count) {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	sort.Ints(out)
	return out
}

func (s *PageSet) String() string {
	var parts []string
	for _, r := range s.ranges {
		p := strconv.Itoa(r.first)
		switch {
		case r.last == 0:
			p += "-"
		case r.last != r.first:
			p += fmt.Sprintf("-%d", r.last)
		}
		switch r.filter {
		case OddPages:
			p += ":odd"
		case EvenPages:
			p += ":even"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ",")
}
