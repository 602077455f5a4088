package pdf

import (
	"sort"
	"strconv"
	"strings"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// LabelStyle is the numbering style of a page label range.
type LabelStyle int

const (
	LabelNone LabelStyle = iota
	LabelDecimal
	LabelRomanUpper
	LabelRomanLower
	LabelLettersUpper
	LabelLettersLower
)

var labelStyleNames = map[LabelStyle]sdf.Name{
	LabelDecimal:      "D",
	LabelRomanUpper:   "R",
	LabelRomanLower:   "r",
	LabelLettersUpper: "A",
	LabelLettersLower: "a",
}

// PageLabel describes a label range starting at a page.
type PageLabel struct {
	FirstPage int // 1-based
	Style     LabelStyle
	Prefix    string
	Start     int
}

// SetPageLabel starts a label range at firstPage (1-based). Pages up to
// the next range are numbered from start in style, after prefix.
func (d *Doc) SetPageLabel(firstPage int, style LabelStyle, prefix string, start int) error {
	if firstPage < 1 || firstPage > d.PageCount() {
		return sdf.Errorf("set page label", sdf.ErrNotFound, "page %d out of range 1..%d", firstPage, d.PageCount())
	}
	if start < 1 {
		start = 1
	}
	label := sdf.NewDict()
	label.PutName("Type", "PageLabel")
	if n, ok := labelStyleNames[style]; ok {
		label.Set("S", n)
	}
	if prefix != "" {
		label.PutText("P", prefix)
	}
	if start != 1 {
		label.PutInt("St", int64(start))
	}
	d.putLabel(int64(firstPage-1), label)
	return nil
}

// RemovePageLabel deletes the range starting at firstPage.
func (d *Doc) RemovePageLabel(firstPage int) {
	d.putLabel(int64(firstPage-1), nil)
}

func (d *Doc) putLabel(key int64, label sdf.Obj) {
	cat := d.sdf.Root()
	if cat == nil {
		return
	}
	entries := d.treeEntries(cat.Get("PageLabels"), "Nums")
	out := entries[:0]
	for _, e := range entries {
		if e.num != key {
			out = append(out, e)
		}
	}
	if label != nil {
		out = append(out, treeEntry{num: key, val: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].num < out[j].num })
	d.writeTree(cat, "PageLabels", "Nums", out)
}

// PageLabels returns the label ranges in page order.
func (d *Doc) PageLabels() []PageLabel {
	cat := d.sdf.Root()
	if cat == nil {
		return nil
	}
	var out []PageLabel
	for _, e := range d.treeEntries(cat.Get("PageLabels"), "Nums") {
		dict := d.sdf.Dict(e.val)
		if dict == nil {
			continue
		}
		pl := PageLabel{FirstPage: int(e.num) + 1, Start: 1}
		if s, ok := d.sdf.Name(dict.Get("S")); ok {
			for style, n := range labelStyleNames {
				if n == s {
					pl.Style = style
				}
			}
		}
		pl.Prefix = d.sdf.TextValue(dict.Get("P"))
		if st, ok := d.sdf.Int(dict.Get("St")); ok && st > 0 {
			pl.Start = int(st)
		}
		out = append(out, pl)
	}
	return out
}

// PageLabel returns the label of page i (1-based). Without label ranges
// the label is the page number.
func (d *Doc) PageLabel(i int) string {
	ranges := d.PageLabels()
	if len(ranges) == 0 {
		return strconv.Itoa(i)
	}
	var cur *PageLabel
	for k := range ranges {
		if ranges[k].FirstPage <= i {
			cur = &ranges[k]
		}
	}
	if cur == nil {
		return ""
	}
	return cur.Prefix + FormatLabel(cur.Style, cur.Start+i-cur.FirstPage)
}

// FormatLabel renders n in a label style.
func FormatLabel(style LabelStyle, n int) string {
	switch style {
	case LabelDecimal:
		return strconv.Itoa(n)
	case LabelRomanUpper:
		return roman(n)
	case LabelRomanLower:
		return strings.ToLower(roman(n))
	case LabelLettersUpper:
		return letters(n, 'A')
	case LabelLettersLower:
		return letters(n, 'a')
	}
	return ""
}

func roman(n int) string {
	if n <= 0 {
		return ""
	}
	vals := []int{1000, 900, 500, 400, 100, 90, 50, 40, 10, 9, 5, 4, 1}
	syms := []string{"M", "CM", "D", "CD", "C", "XC", "L", "XL", "X", "IX", "V", "IV", "I"}
	var b strings.Builder
	for i, v := range vals {
		for n >= v {
			b.WriteString(syms[i])
			n -= v
		}
	}
	return b.String()
}

// letters numbers A..Z, then AA..ZZ, AAA..ZZZ and so on.
func letters(n int, base rune) string {
	if n <= 0 {
		return ""
	}
	c := string(base + rune((n-1)%26))
	return strings.Repeat(c, (n-1)/26+1)
}
