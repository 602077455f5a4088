package content

import (
	"errors"
	"io"
	"unicode/utf16"

	"github.com/NityaNandPandey/AndroidPDF/scanner"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

type codespace struct {
	lo, hi []byte
}

func (c codespace) matches(b []byte) bool {
	if len(b) < len(c.lo) {
		return false
	}
	for i := range c.lo {
		if b[i] < c.lo[i] || b[i] > c.hi[i] {
			return false
		}
	}
	return true
}

type cmapRange struct {
	lo, hi uint32
	n      int
	dst    []uint16 // bfrange: UTF-16 of lo; the last unit is incremented
	list   []string // bfrange with an array destination
	cid    uint32   // cidrange: CID of lo
}

// CMap maps character codes to Unicode (ToUnicode CMaps) or to CIDs
// (encoding CMaps). Codes may be one to four bytes wide, as declared by
// the codespace ranges.
type CMap struct {
	Name string

	spaces    []codespace
	chars     map[cmapKey]string
	cids      map[cmapKey]uint32
	bfRanges  []cmapRange
	cidRanges []cmapRange
}

type cmapKey struct {
	code uint32
	n    int
}

func newCMap() *CMap {
	return &CMap{chars: make(map[cmapKey]string), cids: make(map[cmapKey]uint32)}
}

func codeOf(b []byte) uint32 {
	var c uint32
	for _, x := range b {
		c = c<<8 | uint32(x)
	}
	return c
}

// ParseCMap reads a CMap program. Unknown operators are skipped; usecmap
// references are ignored.
func ParseCMap(data []byte) (*CMap, error) {
	cm := newCMap()
	s := scanner.NewBytes(data, scanner.Config{Content: true, MaxDepth: 32})
	var operands []sdf.Obj
	for {
		o, err := s.ReadObject()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cm, sdf.Errorf("parse cmap", sdf.ErrCorrupt, "%v", err)
		}
		kw, ok := o.(scanner.Keyword)
		if !ok {
			operands = append(operands, o)
			continue
		}
		switch kw {
		case "endcodespacerange":
			for i := 0; i+1 < len(operands); i += 2 {
				lo, ok1 := operands[i].(sdf.String)
				hi, ok2 := operands[i+1].(sdf.String)
				if ok1 && ok2 && len(lo.Value) == len(hi.Value) && len(lo.Value) > 0 && len(lo.Value) <= 4 {
					cm.spaces = append(cm.spaces, codespace{lo: lo.Value, hi: hi.Value})
				}
			}
		case "endbfchar":
			for i := 0; i+1 < len(operands); i += 2 {
				src, ok := operands[i].(sdf.String)
				if !ok || len(src.Value) == 0 {
					continue
				}
				k := cmapKey{codeOf(src.Value), len(src.Value)}
				switch dst := operands[i+1].(type) {
				case sdf.String:
					cm.chars[k] = utf16String(dst.Value)
				case sdf.Name:
					cm.chars[k] = glyphNameText(string(dst))
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(operands); i += 3 {
				lo, ok1 := operands[i].(sdf.String)
				hi, ok2 := operands[i+1].(sdf.String)
				if !ok1 || !ok2 || len(lo.Value) == 0 {
					continue
				}
				r := cmapRange{lo: codeOf(lo.Value), hi: codeOf(hi.Value), n: len(lo.Value)}
				if r.hi < r.lo {
					continue
				}
				switch dst := operands[i+2].(type) {
				case sdf.String:
					r.dst = utf16Units(dst.Value)
				case *sdf.Array:
					for _, it := range dst.Items() {
						if st, ok := it.(sdf.String); ok {
							r.list = append(r.list, utf16String(st.Value))
						} else {
							r.list = append(r.list, "")
						}
					}
				default:
					continue
				}
				cm.bfRanges = append(cm.bfRanges, r)
			}
		case "endcidchar":
			for i := 0; i+1 < len(operands); i += 2 {
				src, ok := operands[i].(sdf.String)
				cid, ok2 := sdf.Integer(operands[i+1])
				if ok && ok2 && len(src.Value) > 0 {
					cm.cids[cmapKey{codeOf(src.Value), len(src.Value)}] = uint32(cid)
				}
			}
		case "endcidrange":
			for i := 0; i+2 < len(operands); i += 3 {
				lo, ok1 := operands[i].(sdf.String)
				hi, ok2 := operands[i+1].(sdf.String)
				cid, ok3 := sdf.Integer(operands[i+2])
				if ok1 && ok2 && ok3 && len(lo.Value) > 0 {
					cm.cidRanges = append(cm.cidRanges, cmapRange{
						lo: codeOf(lo.Value), hi: codeOf(hi.Value), n: len(lo.Value), cid: uint32(cid),
					})
				}
			}
		case "def":
			if len(operands) == 2 {
				if k, ok := operands[0].(sdf.Name); ok && k == "CMapName" {
					if v, ok := operands[1].(sdf.Name); ok {
						cm.Name = string(v)
					}
				}
			}
		}
		operands = operands[:0]
	}
	return cm, nil
}

// identityCMap is the two-byte Identity-H/V encoding.
func identityCMap(name string) *CMap {
	cm := newCMap()
	cm.Name = name
	cm.spaces = []codespace{{lo: []byte{0, 0}, hi: []byte{0xff, 0xff}}}
	cm.cidRanges = []cmapRange{{lo: 0, hi: 0xffff, n: 2, cid: 0}}
	return cm
}

// Next splits the first code off b. Without matching codespace ranges,
// the shortest declared width (or one byte) is used.
func (cm *CMap) Next(b []byte) (code uint32, n int) {
	if len(b) == 0 {
		return 0, 0
	}
	if cm != nil {
		for _, sp := range cm.spaces {
			if sp.matches(b) {
				return codeOf(b[:len(sp.lo)]), len(sp.lo)
			}
		}
		if len(cm.spaces) > 0 {
			n = 4
			for _, sp := range cm.spaces {
				if len(sp.lo) < n {
					n = len(sp.lo)
				}
			}
			if n > len(b) {
				n = len(b)
			}
			return codeOf(b[:n]), n
		}
	}
	return uint32(b[0]), 1
}

// Unicode returns the text for a code of n bytes.
func (cm *CMap) Unicode(code uint32, n int) (string, bool) {
	if cm == nil {
		return "", false
	}
	if s, ok := cm.chars[cmapKey{code, n}]; ok {
		return s, true
	}
	for _, r := range cm.bfRanges {
		if r.n != n || code < r.lo || code > r.hi {
			continue
		}
		off := code - r.lo
		if r.list != nil {
			if int(off) < len(r.list) {
				return r.list[off], true
			}
			return "", false
		}
		if len(r.dst) == 0 {
			return "", false
		}
		units := append([]uint16(nil), r.dst...)
		units[len(units)-1] += uint16(off)
		return string(utf16.Decode(units)), true
	}
	return "", false
}

// CID returns the CID of a code of n bytes.
func (cm *CMap) CID(code uint32, n int) (uint32, bool) {
	if cm == nil {
		return 0, false
	}
	if c, ok := cm.cids[cmapKey{code, n}]; ok {
		return c, true
	}
	for _, r := range cm.cidRanges {
		if r.n == n && code >= r.lo && code <= r.hi {
			return r.cid + code - r.lo, true
		}
	}
	return 0, false
}

func utf16Units(b []byte) []uint16 {
	out := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		out = append(out, uint16(b[i])<<8|uint16(b[i+1]))
	}
	if len(b)%2 == 1 {
		out = append(out, uint16(b[len(b)-1]))
	}
	return out
}

func utf16String(b []byte) string { return string(utf16.Decode(utf16Units(b))) }
