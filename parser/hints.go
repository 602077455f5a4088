package parser

import (
	"context"
	"errors"
	"io"
	"math/bits"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// PageHint is one page offset hint table entry.
type PageHint struct {
	Objects int
	Length  int64
	// SharedRefs are indexes into HintTable.Shared.
	SharedRefs    []int
	ContentOffset int64
	ContentLength int64
}

// SharedHint is one shared object hint table entry (a group of objects).
type SharedHint struct {
	Length  int64
	Objects int
}

// HintTable is the primary hint stream of a linearized file.
type HintTable struct {
	// FirstPageOffset is the location of the first page's page object.
	FirstPageOffset int64
	Pages           []PageHint

	FirstSharedObject int
	FirstSharedOffset int64
	// SharedFirstPage counts the shared entries belonging to the first page.
	SharedFirstPage int
	Shared          []SharedHint
}

// DecodeHintStream decodes the hint stream st of a file with npages pages.
func DecodeHintStream(ctx context.Context, st *sdf.Stream, npages int) (*HintTable, error) {
	data, err := filters.DecodeStream(ctx, nil, st, filters.DefaultLimits())
	if err != nil {
		return nil, err
	}
	s, ok := sdf.Integer(st.Dict.Get("S"))
	if !ok {
		return nil, errors.New("hint stream missing /S")
	}
	return ParseHints(data, int(s), npages)
}

// ParseHints parses the page offset hint table at the start of data and
// the shared object hint table at sharedOffset.
func ParseHints(data []byte, sharedOffset, npages int) (*HintTable, error) {
	if sharedOffset < 0 || sharedOffset > len(data) {
		return nil, errors.New("shared object hint table offset out of range")
	}
	if npages < 0 {
		return nil, errors.New("negative page count")
	}
	br := &bitReader{data: data[:sharedOffset]}
	var hdr [13]int64
	for i, w := range pageHeaderWidths {
		v, err := br.read(w)
		if err != nil {
			return nil, err
		}
		hdr[i] = v
	}
	minObjs, minLen, minOff, minCLen := hdr[0], hdr[3], hdr[5], hdr[7]
	bObjs, bLen, bOff, bCLen := int(hdr[2]), int(hdr[4]), int(hdr[6]), int(hdr[8])
	bShared, bSharedID, bNum := int(hdr[9]), int(hdr[10]), int(hdr[11])

	ht := &HintTable{FirstPageOffset: hdr[1], Pages: make([]PageHint, npages)}
	pages := ht.Pages
	err := br.column(npages, bObjs, func(i int, v int64) { pages[i].Objects = int(minObjs + v) })
	if err == nil {
		err = br.column(npages, bLen, func(i int, v int64) { pages[i].Length = minLen + v })
	}
	if err == nil {
		err = br.column(npages, bShared, func(i int, v int64) { pages[i].SharedRefs = make([]int, v) })
	}
	if err == nil {
		for i := range pages {
			for j := range pages[i].SharedRefs {
				v, rerr := br.read(bSharedID)
				if rerr != nil {
					return nil, rerr
				}
				pages[i].SharedRefs[j] = int(v)
			}
		}
		br.align()
		// Numerators of the fractional position are not kept.
		for i := range pages {
			for range pages[i].SharedRefs {
				if _, rerr := br.read(bNum); rerr != nil {
					return nil, rerr
				}
			}
		}
		br.align()
		err = br.column(npages, bOff, func(i int, v int64) { pages[i].ContentOffset = minOff + v })
	}
	if err == nil {
		err = br.column(npages, bCLen, func(i int, v int64) { pages[i].ContentLength = minCLen + v })
	}
	if err != nil {
		return nil, err
	}

	sr := &bitReader{data: data[sharedOffset:]}
	var sh [7]int64
	for i, w := range sharedHeaderWidths {
		v, err := sr.read(w)
		if err != nil {
			return nil, err
		}
		sh[i] = v
	}
	ht.FirstSharedObject = int(sh[0])
	ht.FirstSharedOffset = sh[1]
	ht.SharedFirstPage = int(sh[2])
	n := int(sh[3])
	if n < 0 || n > len(data)*8 {
		return nil, errors.New("implausible shared object count")
	}
	bGroup, minGroup, bGroupLen := int(sh[4]), sh[5], int(sh[6])
	ht.Shared = make([]SharedHint, n)
	shared := ht.Shared
	if err := sr.column(n, bGroupLen, func(i int, v int64) { shared[i].Length = minGroup + v }); err != nil {
		return nil, err
	}
	signed := make([]bool, n)
	if err := sr.column(n, 1, func(i int, v int64) { signed[i] = v == 1 }); err != nil {
		return nil, err
	}
	for _, sig := range signed {
		if sig {
			for k := 0; k < 4; k++ {
				if _, err := sr.read(32); err != nil {
					return nil, err
				}
			}
		}
	}
	sr.align()
	if err := sr.column(n, bGroup, func(i int, v int64) { shared[i].Objects = int(v) + 1 }); err != nil {
		return nil, err
	}
	return ht, nil
}

var (
	pageHeaderWidths   = [13]int{32, 32, 16, 32, 16, 32, 16, 32, 16, 16, 16, 16, 16}
	sharedHeaderWidths = [7]int{32, 32, 32, 32, 16, 32, 16}
)

// Encode serializes h and returns the stream data and the offset of the
// shared object hint table (the /S entry).
func (h *HintTable) Encode() ([]byte, int) {
	pages := h.Pages
	minObjs, maxObjs := minMax(len(pages), func(i int) int64 { return int64(pages[i].Objects) })
	minLen, maxLen := minMax(len(pages), func(i int) int64 { return pages[i].Length })
	minOff, maxOff := minMax(len(pages), func(i int) int64 { return pages[i].ContentOffset })
	minCLen, maxCLen := minMax(len(pages), func(i int) int64 { return pages[i].ContentLength })
	_, maxShared := minMax(len(pages), func(i int) int64 { return int64(len(pages[i].SharedRefs)) })
	maxID := int64(0)
	for _, p := range pages {
		for _, r := range p.SharedRefs {
			if int64(r) > maxID {
				maxID = int64(r)
			}
		}
	}
	bObjs, bLen, bOff, bCLen := width(maxObjs-minObjs), width(maxLen-minLen), width(maxOff-minOff), width(maxCLen-minCLen)
	bShared, bID := width(maxShared), width(maxID)

	bw := &bitWriter{}
	hdr := [13]int64{minObjs, h.FirstPageOffset, int64(bObjs), minLen, int64(bLen), minOff, int64(bOff),
		minCLen, int64(bCLen), int64(bShared), int64(bID), 0, 1}
	for i, w := range pageHeaderWidths {
		bw.write(hdr[i], w)
	}
	bw.column(len(pages), bObjs, func(i int) int64 { return int64(pages[i].Objects) - minObjs })
	bw.column(len(pages), bLen, func(i int) int64 { return pages[i].Length - minLen })
	bw.column(len(pages), bShared, func(i int) int64 { return int64(len(pages[i].SharedRefs)) })
	for _, p := range pages {
		for _, r := range p.SharedRefs {
			bw.write(int64(r), bID)
		}
	}
	bw.align()
	bw.align() // numerators use zero bits
	bw.column(len(pages), bOff, func(i int) int64 { return pages[i].ContentOffset - minOff })
	bw.column(len(pages), bCLen, func(i int) int64 { return pages[i].ContentLength - minCLen })
	sharedOffset := len(bw.buf)

	shared := h.Shared
	minGroup, maxGroup := minMax(len(shared), func(i int) int64 { return shared[i].Length })
	_, maxGroupObjs := minMax(len(shared), func(i int) int64 { return int64(shared[i].Objects - 1) })
	bGroup, bGroupLen := width(maxGroupObjs), width(maxGroup-minGroup)
	sh := [7]int64{int64(h.FirstSharedObject), h.FirstSharedOffset, int64(h.SharedFirstPage), int64(len(shared)),
		int64(bGroup), minGroup, int64(bGroupLen)}
	for i, w := range sharedHeaderWidths {
		bw.write(sh[i], w)
	}
	bw.column(len(shared), bGroupLen, func(i int) int64 { return shared[i].Length - minGroup })
	bw.column(len(shared), 1, func(int) int64 { return 0 })
	bw.column(len(shared), bGroup, func(i int) int64 { return int64(shared[i].Objects - 1) })
	return bw.buf, sharedOffset
}

func minMax(n int, f func(int) int64) (int64, int64) {
	if n == 0 {
		return 0, 0
	}
	lo, hi := f(0), f(0)
	for i := 1; i < n; i++ {
		v := f(i)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func width(v int64) int {
	if v <= 0 {
		return 0
	}
	return bits.Len64(uint64(v))
}

type bitReader struct {
	data []byte
	pos  int // bit position
}

func (r *bitReader) read(n int) (int64, error) {
	if n > 63 {
		return 0, errors.New("bit field too wide")
	}
	var v int64
	for i := 0; i < n; i++ {
		idx := r.pos >> 3
		if idx >= len(r.data) {
			return 0, io.ErrUnexpectedEOF
		}
		bit := (r.data[idx] >> (7 - uint(r.pos&7))) & 1
		v = v<<1 | int64(bit)
		r.pos++
	}
	return v, nil
}

func (r *bitReader) align() { r.pos = (r.pos + 7) &^ 7 }

// column reads n fields of the given width, then skips to a byte boundary.
func (r *bitReader) column(n, w int, set func(int, int64)) error {
	for i := 0; i < n; i++ {
		v, err := r.read(w)
		if err != nil {
			return err
		}
		set(i, v)
	}
	r.align()
	return nil
}

type bitWriter struct {
	buf  []byte
	nbit int
}

func (w *bitWriter) write(v int64, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.nbit&7 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 == 1 {
			w.buf[len(w.buf)-1] |= 1 << (7 - uint(w.nbit&7))
		}
		w.nbit++
	}
}

func (w *bitWriter) align() { w.nbit = (w.nbit + 7) &^ 7 }

func (w *bitWriter) column(n, width int, get func(int) int64) {
	for i := 0; i < n; i++ {
		w.write(get(i), width)
	}
	w.align()
}
