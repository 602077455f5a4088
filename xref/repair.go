package xref

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"strconv"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/scanner"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

var objHeader = regexp.MustCompile(`(\d+)[\x00\t\n\f\r ]+(\d+)[\x00\t\n\f\r ]+obj\b`)

// Repair rebuilds the table by scanning the whole file for object headers.
// Later definitions of an object number win, as they would in an
// incremental update. The trailer comes from the last "trailer" keyword,
// or from the last xref stream; a catalog found by scanning fills in a
// missing /Root.
func Repair(ctx context.Context, r io.ReaderAt, size int64) (*Table, error) {
	data := make([]byte, size)
	n, err := r.ReadAt(data, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	data = data[:n]

	t := NewTable()
	t.Repaired = true
	for _, m := range objHeader.FindAllSubmatchIndex(data, -1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// The header must start a token.
		if m[0] > 0 && !isSpaceOrDelim(data[m[0]-1]) {
			continue
		}
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil || num <= 0 {
			continue
		}
		t.Entries[num] = Entry{Type: InUse, Offset: int64(m[0]), Gen: gen}
	}
	if len(t.Entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}

	var trailer *sdf.Dict
	if i := bytes.LastIndex(data, []byte("trailer")); i >= 0 {
		s := scanner.NewBytes(data, scanner.Config{})
		if s.Seek(int64(i+len("trailer"))) == nil {
			if o, err := s.ReadObject(); err == nil {
				trailer, _ = o.(*sdf.Dict)
			}
		}
	}

	var catalog int
	for _, num := range t.Objects() {
		e := t.Entries[num]
		s := scanner.NewBytes(data, scanner.Config{})
		if s.Seek(e.Offset) != nil {
			continue
		}
		_, stream, dict := readAny(s)
		if dict == nil {
			continue
		}
		switch typ, _ := dict.NameValue("Type"); typ {
		case "Catalog":
			catalog = num
		case "XRef":
			if trailer == nil || !trailer.Has("Root") {
				trailer = dict
			}
			t.XRefStreams = append(t.XRefStreams, num)
		case "ObjStm":
			if stream != nil {
				addObjStmEntries(ctx, t, num, stream)
			}
		}
	}
	if trailer == nil {
		trailer = sdf.NewDict()
	} else {
		trailer = sdf.Copy(trailer).(*sdf.Dict)
	}
	for _, k := range []sdf.Name{"Prev", "XRefStm", "Type", "W", "Index", "Filter", "DecodeParms", "Length"} {
		trailer.Delete(k)
	}
	if root, ok := trailer.Get("Root").(sdf.Ref); !ok || t.Entries[root.Num].Type == Free {
		if catalog == 0 {
			return nil, errors.New("repair failed: no document catalog")
		}
		trailer.Set("Root", sdf.Ref{Num: catalog, Gen: t.Entries[catalog].Gen})
	}
	maxNum := 0
	for num := range t.Entries {
		if num > maxNum {
			maxNum = num
		}
	}
	trailer.PutInt("Size", int64(maxNum+1))
	t.Trailer = trailer
	return t, nil
}

// readAny reads "n g obj <object>" and, for streams, the payload.
func readAny(s *scanner.Scanner) (sdf.Obj, *sdf.Stream, *sdf.Dict) {
	for i := 0; i < 3; i++ {
		if _, err := s.Next(); err != nil {
			return nil, nil, nil
		}
	}
	o, err := s.ReadObject()
	if err != nil {
		return nil, nil, nil
	}
	dict, ok := o.(*sdf.Dict)
	if !ok {
		return o, nil, nil
	}
	save := s.Position()
	if kw, err := s.Next(); err == nil && kw.Type == scanner.TokenKeyword && kw.Str == "stream" {
		length := int64(-1)
		if n, ok := dict.Get("Length").(sdf.Int); ok {
			length = int64(n)
		}
		data, err := s.ReadStream(length)
		if err != nil {
			// The declared length may be wrong; search instead.
			_ = s.Seek(save)
			s.Next()
			data, err = s.ReadStream(-1)
		}
		if err == nil {
			return dict, sdf.NewStream(dict, data), dict
		}
	}
	return dict, nil, dict
}

func addObjStmEntries(ctx context.Context, t *Table, num int, stream *sdf.Stream) {
	data, err := filters.DecodeStream(ctx, nil, stream, filters.DefaultLimits())
	if err != nil {
		return
	}
	count, _ := sdf.Integer(stream.Dict.Get("N"))
	s := scanner.NewBytes(data, scanner.Config{})
	for i := 0; i < int(count); i++ {
		objNum, err := s.Next()
		if err != nil || !objNum.IsInt {
			return
		}
		if _, err := s.Next(); err != nil {
			return
		}
		if _, ok := t.Entries[int(objNum.Int)]; !ok {
			t.Entries[int(objNum.Int)] = Entry{Type: Compressed, Stream: num, Index: i}
		}
	}
}

func isSpaceOrDelim(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ', '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
