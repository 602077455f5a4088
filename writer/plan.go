package writer

import (
	"context"
	"fmt"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/security"
	"github.com/NityaNandPandey/AndroidPDF/xref"
)

// plan is the set of objects a full rewrite emits, keyed by output
// reference.
type plan struct {
	doc     *sdf.Doc
	flags   Flags
	opts    Options
	version string

	// refs lists source objects in output order.
	refs []sdf.Ref
	src  map[sdf.Ref]sdf.Obj
	// remap maps source to output references; nil keeps numbering.
	remap map[sdf.Ref]sdf.Ref
	// encrypt is the output reference of the /Encrypt dictionary.
	encrypt sdf.Ref
}

func newPlan(ctx context.Context, doc *sdf.Doc, flags Flags, opts Options) (*plan, error) {
	p := &plan{doc: doc, flags: flags, opts: opts, src: make(map[sdf.Ref]sdf.Obj)}
	var keep map[sdf.Ref]bool
	if flags.Has(RemoveUnused) {
		reach, err := doc.Reachable()
		if err != nil {
			return nil, err
		}
		keep = reach
	}
	oldEncrypt, _ := doc.Trailer().Get("Encrypt").(sdf.Ref)
	for _, ref := range doc.Refs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ref == oldEncrypt || (keep != nil && !keep[ref]) {
			continue
		}
		o, err := doc.Get(ref)
		if err != nil {
			return nil, err
		}
		p.refs = append(p.refs, ref)
		p.src[ref] = o
	}
	if flags.Has(RemoveUnused) {
		p.remap = make(map[sdf.Ref]sdf.Ref, len(p.refs))
		for i, ref := range p.refs {
			p.remap[ref] = sdf.Ref{Num: i + 1}
		}
	}

	p.version = doc.Version
	if opts.Version != "" {
		p.version = opts.Version
	}
	if p.version == "" {
		p.version = "1.7"
	}
	if flags.Has(ObjectStreams) && !flags.Has(Linearized) {
		p.version = raiseVersion(p.version, "1.5")
	}
	if opts.Security != nil {
		if v, _ := sdf.Integer(opts.Security.EncryptDict().Get("V")); v >= 5 {
			p.version = raiseVersion(p.version, "1.7")
		} else if v == 4 {
			p.version = raiseVersion(p.version, "1.6")
		}
	}
	return p, nil
}

// out returns the output reference of a source reference.
func (p *plan) out(ref sdf.Ref) (sdf.Ref, bool) {
	if p.remap == nil {
		_, ok := p.src[ref]
		return ref, ok
	}
	r, ok := p.remap[ref]
	return r, ok
}

// maxNum is the largest output object number.
func (p *plan) maxNum() int {
	n := 0
	for _, ref := range p.refs {
		if r, _ := p.out(ref); r.Num > n {
			n = r.Num
		}
	}
	return n
}

// rewrite deep-copies o with references mapped to the output numbering.
// References to objects that are not written become null.
func (p *plan) rewrite(o sdf.Obj, mapRef func(sdf.Ref) (sdf.Ref, bool)) sdf.Obj {
	switch v := o.(type) {
	case sdf.Ref:
		if r, ok := mapRef(v); ok {
			return r
		}
		return sdf.Null{}
	case *sdf.Array:
		out := sdf.NewArray()
		for _, it := range v.Items() {
			out.Append(p.rewrite(it, mapRef))
		}
		return out
	case *sdf.Dict:
		out := sdf.NewDict()
		for _, k := range v.Keys() {
			out.Set(k, p.rewrite(v.Get(k), mapRef))
		}
		return out
	case *sdf.Stream:
		d := p.rewrite(v.Dict, mapRef).(*sdf.Dict)
		return sdf.NewStream(d, append([]byte(nil), v.Data...))
	}
	return sdf.Copy(o)
}

// prepared returns the output form of the source object at ref: rewritten
// references and, with Compress, encoded streams. Encryption happens when
// the object is serialized.
func (p *plan) prepared(ref sdf.Ref, mapRef func(sdf.Ref) (sdf.Ref, bool)) (sdf.Obj, error) {
	o := p.rewrite(p.src[ref], mapRef)
	if st, ok := o.(*sdf.Stream); ok && p.flags.Has(Compress) {
		if _, err := filters.Compress(st); err != nil {
			return nil, fmt.Errorf("compress %s: %w", ref, err)
		}
	}
	return o, nil
}

// trailer builds the output trailer. Size is set by the caller.
func (p *plan) trailer(mapRef func(sdf.Ref) (sdf.Ref, bool)) *sdf.Dict {
	src := p.doc.Trailer()
	t := sdf.NewDict()
	for _, k := range src.Keys() {
		switch k {
		case "Size", "Prev", "XRefStm", "Encrypt", "Type", "W", "Index", "Filter", "DecodeParms", "Length":
			continue
		}
		t.Set(k, p.rewrite(src.Get(k), mapRef))
	}
	var first []byte
	if id := security.FileID(src); len(id) > 0 {
		first = id
	}
	seed := sdf.Bytes(p.doc.Root())
	if first == nil {
		first = secondID(seed, p.opts.Deterministic)
	}
	t.Set("ID", sdf.NewArray(sdf.HexStr(first), sdf.HexStr(secondID(append(seed, first...), p.opts.Deterministic))))
	if !p.encrypt.IsZero() {
		t.Set("Encrypt", p.encrypt)
	}
	return t
}

// fullRows builds a complete classic table: entry 0, the given in-use
// rows, and free rows for the gaps.
func fullRows(inUse map[int]xref.Entry, size int, gen func(int) int) []xref.Row {
	rows := make([]xref.Row, 0, size)
	rows = append(rows, xref.Row{Num: 0, Entry: xref.Entry{Type: xref.Free, Gen: 65535}})
	for n := 1; n < size; n++ {
		if e, ok := inUse[n]; ok {
			rows = append(rows, xref.Row{Num: n, Entry: e})
			continue
		}
		g := 0
		if gen != nil {
			g = gen(n)
		}
		rows = append(rows, xref.Row{Num: n, Entry: xref.Entry{Type: xref.Free, Gen: g}})
	}
	xref.FreeList(rows)
	return rows
}
