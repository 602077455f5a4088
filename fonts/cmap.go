package fonts

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf16"
)

// ToUnicodeCMap writes a ToUnicode CMap mapping codes of nbytes bytes
// (1 or 2) to text.
func ToUnicodeCMap(m map[uint32][]rune, nbytes int) []byte {
	var b bytes.Buffer
	b.WriteString("/CIDInit /ProcSet findresource begin\n12 dict begin\nbegincmap\n")
	b.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	b.WriteString("/CMapName /Adobe-Identity-UCS def\n/CMapType 2 def\n")
	if nbytes == 1 {
		b.WriteString("1 begincodespacerange\n<00> <FF>\nendcodespacerange\n")
	} else {
		b.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	}
	codes := make([]uint32, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for len(codes) > 0 {
		n := len(codes)
		if n > 100 {
			n = 100
		}
		fmt.Fprintf(&b, "%d beginbfchar\n", n)
		for _, c := range codes[:n] {
			fmt.Fprintf(&b, "<%0*X> <", nbytes*2, c)
			for _, u := range utf16.Encode(m[c]) {
				fmt.Fprintf(&b, "%04X", u)
			}
			b.WriteString(">\n")
		}
		b.WriteString("endbfchar\n")
		codes = codes[n:]
	}
	b.WriteString("endcmap\nCMapName currentdict /CMap defineresource pop\nend\nend\n")
	return b.Bytes()
}
