// Package xref locates, parses, repairs and writes cross-reference data.
package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/recovery"
	"github.com/NityaNandPandey/AndroidPDF/scanner"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

type EntryType int

const (
	Free EntryType = iota
	InUse
	Compressed
)

// Entry is one cross-reference row. Offset and Gen apply to InUse entries;
// Stream and Index locate Compressed ones. Gen of a Free entry is the
// generation the next use gets.
type Entry struct {
	Type   EntryType
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table is the merged view over every section of a file, newest entries
// winning.
type Table struct {
	Entries map[int]Entry
	Trailer *sdf.Dict
	// StartXRef is the offset of the newest section.
	StartXRef int64
	// Sections counts the sections followed through /Prev.
	Sections int
	// Streams is set when any section was a cross-reference stream.
	Streams bool
	// XRefStreams lists the object numbers holding xref streams; their
	// contents are not encrypted.
	XRefStreams []int
	Repaired    bool
}

func NewTable() *Table {
	return &Table{Entries: make(map[int]Entry), Trailer: sdf.NewDict()}
}

func (t *Table) Lookup(num int) (Entry, bool) {
	e, ok := t.Entries[num]
	return e, ok
}

// Objects returns the object numbers with in-use or compressed entries.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.Entries))
	for k, e := range t.Entries {
		if e.Type != Free {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

// addIfAbsent keeps the entry already present, which comes from a newer
// section.
func (t *Table) addIfAbsent(num int, e Entry) {
	if _, ok := t.Entries[num]; !ok {
		t.Entries[num] = e
	}
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
	Limits       filters.Limits
}

type Resolver struct {
	cfg ResolverConfig
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 64
	}
	return &Resolver{cfg: cfg}
}

// Resolve reads the cross-reference chain starting at startxref. When the
// chain is damaged and the recovery strategy allows it, the table is
// rebuilt by scanning the file.
func (res *Resolver) Resolve(ctx context.Context, r io.ReaderAt, size int64) (*Table, error) {
	t, err := res.resolve(ctx, r, size)
	if err == nil {
		return t, nil
	}
	if res.cfg.Recovery == nil || !res.cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"}).Continue() {
		return nil, err
	}
	return Repair(ctx, r, size)
}

func (res *Resolver) resolve(ctx context.Context, r io.ReaderAt, size int64) (*Table, error) {
	start, err := FindStartXRef(r, size)
	if err != nil {
		return nil, err
	}
	t := NewTable()
	t.StartXRef = start
	t.Trailer = nil
	visited := make(map[int64]bool)
	offset := start
	for offset >= 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if visited[offset] {
			return nil, fmt.Errorf("xref: /Prev loop at offset %d", offset)
		}
		if len(visited) >= res.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref: more than %d sections", res.cfg.MaxXRefDepth)
		}
		visited[offset] = true
		if offset >= size {
			return nil, fmt.Errorf("xref: offset %d beyond end of file", offset)
		}
		trailer, err := res.readSection(ctx, r, offset, t)
		if err != nil {
			return nil, err
		}
		t.Sections++
		if t.Trailer == nil {
			t.Trailer = sdf.Copy(trailer).(*sdf.Dict)
		} else {
			for _, k := range trailer.Keys() {
				if !t.Trailer.Has(k) {
					t.Trailer.Set(k, trailer.Get(k))
				}
			}
		}
		prev, ok := sdf.Integer(trailer.Get("Prev"))
		if !ok {
			break
		}
		offset = prev
	}
	t.Trailer.Delete("Prev")
	t.Trailer.Delete("XRefStm")
	if t.Trailer.Has("Type") {
		// Dictionary came from an xref stream.
		for _, k := range []sdf.Name{"Type", "W", "Index", "Filter", "DecodeParms", "Length"} {
			t.Trailer.Delete(k)
		}
	}
	if _, ok := t.Trailer.Find("Root"); !ok {
		return nil, fmt.Errorf("xref: trailer has no /Root")
	}
	return t, nil
}

// readSection parses the classic table or xref stream at offset into t and
// returns its trailer.
func (res *Resolver) readSection(ctx context.Context, r io.ReaderAt, offset int64, t *Table) (*sdf.Dict, error) {
	s := scanner.New(r, scanner.Config{})
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, fmt.Errorf("xref at %d: %w", offset, err)
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		trailer, err := readTable(s, t)
		if err != nil {
			return nil, fmt.Errorf("xref table at %d: %w", offset, err)
		}
		if stm, ok := sdf.Integer(trailer.Get("XRefStm")); ok {
			if _, err := res.readStream(ctx, r, stm, t); err != nil {
				return nil, fmt.Errorf("hybrid xref stream at %d: %w", stm, err)
			}
		}
		return trailer, nil
	}
	if tok.Type == scanner.TokenNumber {
		return res.readStream(ctx, r, offset, t)
	}
	return nil, fmt.Errorf("xref: no table or stream at offset %d", offset)
}

func readTable(s *scanner.Scanner, t *Table) (*sdf.Dict, error) {
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			o, err := s.ReadObject()
			if err != nil {
				return nil, err
			}
			d, ok := o.(*sdf.Dict)
			if !ok {
				return nil, errors.New("trailer is not a dictionary")
			}
			return d, nil
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, fmt.Errorf("bad subsection header at %d", tok.Pos)
		}
		cnt, err := s.Next()
		if err != nil || cnt.Type != scanner.TokenNumber || !cnt.IsInt {
			return nil, fmt.Errorf("bad subsection count at %d", tok.Pos)
		}
		first := int(tok.Int)
		for i := 0; i < int(cnt.Int); i++ {
			off, err1 := s.Next()
			gen, err2 := s.Next()
			kind, err3 := s.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, err
			}
			if off.Type != scanner.TokenNumber || gen.Type != scanner.TokenNumber || kind.Type != scanner.TokenKeyword {
				return nil, fmt.Errorf("bad xref entry at %d", off.Pos)
			}
			num := first + i
			switch kind.Str {
			case "n":
				if off.Int == 0 && num != 0 {
					// An in-use entry at offset 0 points nowhere.
					t.addIfAbsent(num, Entry{Type: Free})
					continue
				}
				t.addIfAbsent(num, Entry{Type: InUse, Offset: off.Int, Gen: int(gen.Int)})
			case "f":
				t.addIfAbsent(num, Entry{Type: Free, Gen: int(gen.Int)})
			default:
				return nil, fmt.Errorf("bad xref entry type %q", kind.Str)
			}
		}
	}
}

func (res *Resolver) readStream(ctx context.Context, r io.ReaderAt, offset int64, t *Table) (*sdf.Dict, error) {
	s := scanner.New(r, scanner.Config{})
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	num, stream, err := readIndirectStream(s)
	if err != nil {
		return nil, err
	}
	if typ, _ := stream.Dict.NameValue("Type"); typ != "XRef" {
		return nil, fmt.Errorf("object at %d is not an xref stream", offset)
	}
	data, err := filters.DecodeStream(ctx, nil, stream, res.cfg.Limits)
	if err != nil {
		return nil, err
	}
	if err := decodeStreamEntries(stream.Dict, data, t); err != nil {
		return nil, err
	}
	t.Streams = true
	t.XRefStreams = append(t.XRefStreams, num)
	return stream.Dict, nil
}

// readIndirectStream reads "n g obj <<...>> stream ... endstream" at the
// scanner position. /Length must be direct.
func readIndirectStream(s *scanner.Scanner) (int, *sdf.Stream, error) {
	num, err := s.Next()
	if err != nil {
		return 0, nil, err
	}
	if _, err := s.Next(); err != nil {
		return 0, nil, err
	}
	if kw, err := s.Next(); err != nil || kw.Str != "obj" {
		return 0, nil, errors.New("missing obj keyword")
	}
	o, err := s.ReadObject()
	if err != nil {
		return 0, nil, err
	}
	dict, ok := o.(*sdf.Dict)
	if !ok {
		return 0, nil, errors.New("stream dictionary expected")
	}
	if kw, err := s.Next(); err != nil || kw.Str != "stream" {
		return 0, nil, errors.New("missing stream keyword")
	}
	length := int64(-1)
	if n, ok := dict.Get("Length").(sdf.Int); ok {
		length = int64(n)
	}
	data, err := s.ReadStream(length)
	if err != nil {
		return 0, nil, err
	}
	return int(num.Int), sdf.NewStream(dict, data), nil
}

func decodeStreamEntries(dict *sdf.Dict, data []byte, t *Table) error {
	w, ok := sdf.Numbers(arrayOf(dict.Get("W")))
	if !ok || len(w) != 3 {
		return errors.New("xref stream: bad /W")
	}
	w0, w1, w2 := int(w[0]), int(w[1]), int(w[2])
	if w0 < 0 || w1 < 0 || w2 < 0 || w0 > 8 || w1 > 8 || w2 > 8 {
		return errors.New("xref stream: bad /W widths")
	}
	rowLen := w0 + w1 + w2
	if rowLen == 0 {
		return errors.New("xref stream: zero row width")
	}
	size, _ := sdf.Integer(dict.Get("Size"))
	index := []float64{0, float64(size)}
	if idx, ok := sdf.Numbers(arrayOf(dict.Get("Index"))); ok && len(idx) >= 2 {
		index = idx
	}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := int(index[i]), int(index[i+1])
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return nil
			}
			row := data[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if w0 > 0 {
				typ = readField(row[:w0])
			}
			f2 := readField(row[w0 : w0+w1])
			f3 := readField(row[w0+w1:])
			num := first + j
			switch typ {
			case 0:
				t.addIfAbsent(num, Entry{Type: Free, Gen: int(f3)})
			case 1:
				t.addIfAbsent(num, Entry{Type: InUse, Offset: f2, Gen: int(f3)})
			case 2:
				t.addIfAbsent(num, Entry{Type: Compressed, Stream: int(f2), Index: int(f3)})
			}
		}
	}
	return nil
}

func arrayOf(o sdf.Obj) *sdf.Array {
	a, _ := o.(*sdf.Array)
	return a
}

func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

// FindStartXRef returns the offset recorded after the last "startxref".
func FindStartXRef(r io.ReaderAt, size int64) (int64, error) {
	const tail = 2048
	from := size - tail
	if from < 0 {
		from = 0
	}
	buf := make([]byte, size-from)
	n, err := r.ReadAt(buf, from)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	buf = buf[:n]
	i := bytes.LastIndex(buf, []byte("startxref"))
	if i < 0 {
		return 0, errors.New("startxref not found")
	}
	fields := bytes.Fields(buf[i+len("startxref"):])
	if len(fields) == 0 {
		return 0, errors.New("startxref offset missing")
	}
	off, err := strconv.ParseInt(string(fields[0]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	if off < 0 || off >= size {
		return 0, fmt.Errorf("startxref offset out of range: %d", off)
	}
	return off, nil
}
