package writer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/xref"
)

// objectsPerStream bounds how many objects share one object stream.
const objectsPerStream = 100

type packedObj struct {
	ref sdf.Ref
	obj sdf.Obj
}

func writeFull(ctx context.Context, p *plan, w *countWriter) error {
	w.WriteString(header(p.version))
	mapRef := p.out
	max := p.maxNum()
	if p.opts.Security != nil {
		max++
		p.encrypt = sdf.Ref{Num: max}
	}
	ow := newObjWriter(w, p.flags, p.opts, p.encrypt)
	entries := make(map[int]xref.Entry, len(p.refs)+1)
	packing := p.flags.Has(ObjectStreams)
	var packed []packedObj
	for _, ref := range p.refs {
		o, err := p.prepared(ref, mapRef)
		if err != nil {
			return err
		}
		outRef, _ := mapRef(ref)
		if _, isStream := o.(*sdf.Stream); packing && !isStream && outRef.Gen == 0 {
			packed = append(packed, packedObj{outRef, o})
			continue
		}
		off, err := ow.write(ctx, outRef, o)
		if err != nil {
			return err
		}
		entries[outRef.Num] = xref.Entry{Type: xref.InUse, Offset: off, Gen: outRef.Gen}
	}
	if !p.encrypt.IsZero() {
		off, err := ow.write(ctx, p.encrypt, sdf.Copy(p.opts.Security.EncryptDict()))
		if err != nil {
			return err
		}
		entries[p.encrypt.Num] = xref.Entry{Type: xref.InUse, Offset: off}
	}

	var gen func(int) int
	if p.remap == nil {
		gen = p.doc.Generation
	}
	trailer := p.trailer(mapRef)
	if !packing {
		size := max + 1
		rows := fullRows(entries, size, gen)
		start := w.n
		if err := xref.WriteTable(w, rows); err != nil {
			return err
		}
		trailer.PutInt("Size", int64(size))
		w.WriteString("trailer\n")
		if err := sdf.WriteObj(w, trailer, sdf.WriteOptions{}); err != nil {
			return err
		}
		w.WriteString("\n")
		writeTrailerTail(w, start)
		return nil
	}

	next := max + 1
	for len(packed) > 0 {
		n := len(packed)
		if n > objectsPerStream {
			n = objectsPerStream
		}
		chunk := packed[:n]
		packed = packed[n:]
		stmRef := sdf.Ref{Num: next}
		next++
		st, err := buildObjectStream(chunk, p.flags.Has(HexStrings))
		if err != nil {
			return err
		}
		off, err := ow.write(ctx, stmRef, st)
		if err != nil {
			return err
		}
		entries[stmRef.Num] = xref.Entry{Type: xref.InUse, Offset: off}
		for i, po := range chunk {
			entries[po.ref.Num] = xref.Entry{Type: xref.Compressed, Stream: stmRef.Num, Index: i}
		}
	}
	return writeXRefStream(w, entries, sdf.Ref{Num: next}, trailer, gen, true)
}

// writeXRefStream writes a cross-reference stream object at the current
// position, followed by startxref. With full set the table covers every
// number from 0; otherwise only the given entries.
func writeXRefStream(w *countWriter, entries map[int]xref.Entry, ref sdf.Ref, trailer *sdf.Dict, gen func(int) int, full bool) error {
	start := w.n
	entries[ref.Num] = xref.Entry{Type: xref.InUse, Offset: start}
	size := ref.Num + 1
	if s, ok := sdf.Integer(trailer.Get("Size")); ok && int(s) > size {
		size = int(s)
	}
	var rows []xref.Row
	if full {
		rows = fullRows(entries, size, gen)
	} else {
		for n, e := range entries {
			rows = append(rows, xref.Row{Num: n, Entry: e})
		}
	}
	data, wArr, index := xref.EncodeStream(rows)
	d := sdf.NewDict()
	d.PutName("Type", "XRef")
	d.PutInt("Size", int64(size))
	d.Set("W", wArr)
	d.Set("Index", index)
	for _, k := range trailer.Keys() {
		if k != "Size" {
			d.Set(k, trailer.Get(k))
		}
	}
	st := sdf.NewStream(d, nil)
	if err := filters.SetStreamData(st, data, "FlateDecode"); err != nil {
		return err
	}
	if _, err := w.Write(serializeIndirect(ref, st, false)); err != nil {
		return err
	}
	writeTrailerTail(w, start)
	return nil
}

func buildObjectStream(objs []packedObj, hex bool) (*sdf.Stream, error) {
	var head, body bytes.Buffer
	for i, po := range objs {
		if i > 0 {
			body.WriteByte('\n')
		}
		fmt.Fprintf(&head, "%d %d ", po.ref.Num, body.Len())
		if err := sdf.WriteObj(&body, po.obj, sdf.WriteOptions{HexStrings: hex}); err != nil {
			return nil, fmt.Errorf("object %s: %w", po.ref, err)
		}
	}
	d := sdf.NewDict()
	d.PutName("Type", "ObjStm")
	d.PutInt("N", int64(len(objs)))
	d.PutInt("First", int64(head.Len()))
	st := sdf.NewStream(d, nil)
	data := append(head.Bytes(), body.Bytes()...)
	if err := filters.SetStreamData(st, data, "FlateDecode"); err != nil {
		return nil, err
	}
	return st, nil
}
