package writer

import (
	"bytes"
	"context"
	"io"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/xref"
)

// saveIncremental copies the original file and appends the objects changed
// since it was read, with a cross-reference section chained by /Prev.
func saveIncremental(ctx context.Context, doc *sdf.Doc, w *countWriter, flags Flags, opts Options) error {
	src := doc.Source
	if src == nil || src.R == nil {
		return &sdf.Error{Op: "save incremental", Err: errNoSource}
	}
	encrypted := !sdf.IsNull(doc.Trailer().Get("Encrypt"))
	if encrypted != (opts.Security != nil) {
		return sdf.Errorf("save incremental", sdf.ErrUnsupported, "encryption cannot change in an incremental update")
	}
	if _, err := io.Copy(w, io.NewSectionReader(src.R, 0, src.Size)); err != nil {
		return err
	}
	if src.Size > 0 {
		last := make([]byte, 1)
		if _, err := src.R.ReadAt(last, src.Size-1); err == nil && last[0] != '\n' && last[0] != '\r' {
			w.WriteString("\n")
		}
	}

	encRef, _ := doc.Trailer().Get("Encrypt").(sdf.Ref)
	ow := newObjWriter(w, flags, opts, encRef)
	entries := make(map[int]xref.Entry)
	for _, ref := range doc.ChangedRefs() {
		o, err := doc.Get(ref)
		if err != nil {
			return err
		}
		o = sdf.Copy(o)
		if st, ok := o.(*sdf.Stream); ok && flags.Has(Compress) {
			if _, err := filters.Compress(st); err != nil {
				return err
			}
		}
		off, err := ow.write(ctx, ref, o)
		if err != nil {
			return err
		}
		entries[ref.Num] = xref.Entry{Type: xref.InUse, Offset: off, Gen: ref.Gen}
	}
	for _, ref := range doc.FreedRefs() {
		entries[ref.Num] = xref.Entry{Type: xref.Free, Gen: ref.Gen}
	}

	trailer := sdf.NewDict()
	for _, k := range doc.Trailer().Keys() {
		trailer.Set(k, doc.Trailer().Get(k))
	}
	size := doc.MaxObjNum() + 1
	trailer.PutInt("Prev", src.StartXRef)

	if usesXRefStream(src) {
		trailer.PutInt("Size", int64(size+1))
		return writeXRefStream(w, entries, sdf.Ref{Num: size}, trailer, nil, false)
	}
	trailer.PutInt("Size", int64(size))
	rows := make([]xref.Row, 0, len(entries)+1)
	hasFree := false
	for n, e := range entries {
		rows = append(rows, xref.Row{Num: n, Entry: e})
		hasFree = hasFree || e.Type == xref.Free
	}
	if hasFree {
		rows = append(rows, xref.Row{Num: 0, Entry: xref.Entry{Type: xref.Free, Gen: 65535}})
		xref.FreeList(rows)
	}
	start := w.n
	if err := xref.WriteTable(w, rows); err != nil {
		return err
	}
	w.WriteString("trailer\n")
	if err := sdf.WriteObj(w, trailer, sdf.WriteOptions{}); err != nil {
		return err
	}
	w.WriteString("\n")
	writeTrailerTail(w, start)
	return nil
}

// usesXRefStream reports whether the newest section of the source is a
// cross-reference stream.
func usesXRefStream(src *sdf.Source) bool {
	buf := make([]byte, 4)
	if _, err := src.R.ReadAt(buf, src.StartXRef); err != nil {
		return false
	}
	return !bytes.Equal(buf, []byte("xref"))
}
