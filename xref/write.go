package xref

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Row places an entry at an object number for writing.
type Row struct {
	Num int
	Entry
}

// subsections groups rows into runs of consecutive object numbers.
func subsections(rows []Row) [][]Row {
	sorted := append([]Row(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Num < sorted[j].Num })
	var out [][]Row
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].Num == sorted[j-1].Num+1 {
			j++
		}
		out = append(out, sorted[i:j])
		i = j
	}
	return out
}

// WriteTable writes a classic "xref" section. Compressed entries cannot be
// expressed in a table and are rejected.
func WriteTable(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("xref\n")
	for _, sub := range subsections(rows) {
		fmt.Fprintf(bw, "%d %d\n", sub[0].Num, len(sub))
		for _, r := range sub {
			switch r.Type {
			case InUse:
				fmt.Fprintf(bw, "%010d %05d n\r\n", r.Offset, r.Gen)
			case Free:
				fmt.Fprintf(bw, "%010d %05d f\r\n", r.Offset, r.Gen)
			default:
				return fmt.Errorf("xref: object %d is compressed; use a stream", r.Num)
			}
		}
	}
	return bw.Flush()
}

// FreeList links the free rows of a full table: each free entry's offset
// field names the next free object, and the last points back to 0.
func FreeList(rows []Row) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Num < rows[j].Num })
	var free []int
	for i, r := range rows {
		if r.Type == Free {
			free = append(free, i)
		}
	}
	for k, i := range free {
		next := 0
		if k+1 < len(free) {
			next = rows[free[k+1]].Num
		}
		rows[i].Offset = int64(next)
	}
}

// EncodeStream builds the unfiltered payload of a cross-reference stream
// and returns it with the /W and /Index arrays.
func EncodeStream(rows []Row) ([]byte, *sdf.Array, *sdf.Array) {
	var maxOff int64
	maxIdx := 0
	for _, r := range rows {
		switch r.Type {
		case InUse:
			if r.Offset > maxOff {
				maxOff = r.Offset
			}
			if r.Gen > maxIdx {
				maxIdx = r.Gen
			}
		case Compressed:
			if int64(r.Stream) > maxOff {
				maxOff = int64(r.Stream)
			}
			if r.Index > maxIdx {
				maxIdx = r.Index
			}
		case Free:
			if r.Offset > maxOff {
				maxOff = r.Offset
			}
			if r.Gen > maxIdx {
				maxIdx = r.Gen
			}
		}
	}
	w1, w2 := byteWidth(maxOff), byteWidth(int64(maxIdx))
	index := sdf.NewArray()
	var data []byte
	for _, sub := range subsections(rows) {
		index.Append(sdf.Int(sub[0].Num), sdf.Int(len(sub)))
		for _, r := range sub {
			var f2, f3 int64
			switch r.Type {
			case InUse:
				f2, f3 = r.Offset, int64(r.Gen)
			case Compressed:
				f2, f3 = int64(r.Stream), int64(r.Index)
			case Free:
				f2, f3 = r.Offset, int64(r.Gen)
			}
			data = append(data, byte(r.Type))
			data = appendField(data, f2, w1)
			data = appendField(data, f3, w2)
		}
	}
	return data, sdf.NewArray(sdf.Int(1), sdf.Int(w1), sdf.Int(w2)), index
}

func byteWidth(v int64) int {
	n := 1
	for v > 0xFF {
		v >>= 8
		n++
	}
	return n
}

func appendField(b []byte, v int64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		b = append(b, byte(v>>(8*uint(i))))
	}
	return b
}
