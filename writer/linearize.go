package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/parser"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/xref"
)

// linearization groups source objects by the page that first needs them.
type linearization struct {
	pages []sdf.Ref
	// first holds the catalog and everything the first page needs.
	first []sdf.Ref
	// perPage[i] holds objects used only by page i (i >= 1).
	perPage [][]sdf.Ref
	shared  []sdf.Ref
	other   []sdf.Ref
	// usesShared[i] lists the shared objects page i references.
	usesShared [][]sdf.Ref
}

func classify(p *plan) (*linearization, error) {
	doc := p.doc
	rootRef, ok := doc.Trailer().Get("Root").(sdf.Ref)
	if !ok {
		return nil, sdf.Errorf("linearize", sdf.ErrCorrupt, "/Root is not a reference")
	}
	pages := pageRefs(doc)
	if len(pages) == 0 {
		return nil, sdf.Errorf("linearize", sdf.ErrUnsupported, "document has no pages")
	}
	l := &linearization{pages: pages, perPage: make([][]sdf.Ref, len(pages)), usesShared: make([][]sdf.Ref, len(pages))}

	inFirst := map[sdf.Ref]bool{rootRef: true}
	l.first = append(l.first, rootRef, pages[0])
	inFirst[pages[0]] = true
	for _, r := range pageClosure(doc, pages[0]) {
		if !inFirst[r] && p.has(r) {
			inFirst[r] = true
			l.first = append(l.first, r)
		}
	}

	users := make(map[sdf.Ref][]int)
	closures := make([][]sdf.Ref, len(pages))
	for i := 1; i < len(pages); i++ {
		closures[i] = append([]sdf.Ref{pages[i]}, pageClosure(doc, pages[i])...)
		for _, r := range closures[i] {
			if !inFirst[r] && p.has(r) {
				users[r] = append(users[r], i)
			}
		}
	}
	placed := make(map[sdf.Ref]bool)
	for r := range inFirst {
		placed[r] = true
	}
	sharedSet := make(map[sdf.Ref]bool)
	for i := 1; i < len(pages); i++ {
		for _, r := range closures[i] {
			if placed[r] || !p.has(r) {
				if sharedSet[r] {
					l.usesShared[i] = append(l.usesShared[i], r)
				}
				continue
			}
			placed[r] = true
			if len(users[r]) == 1 || r == pages[i] {
				l.perPage[i] = append(l.perPage[i], r)
				continue
			}
			sharedSet[r] = true
			l.shared = append(l.shared, r)
			l.usesShared[i] = append(l.usesShared[i], r)
		}
	}
	for _, r := range p.refs {
		if !placed[r] {
			l.other = append(l.other, r)
		}
	}
	return l, nil
}

func (p *plan) has(r sdf.Ref) bool {
	_, ok := p.src[r]
	return ok
}

// pageRefs lists the page objects in document order.
func pageRefs(doc *sdf.Doc) []sdf.Ref {
	var out []sdf.Ref
	seen := make(map[sdf.Ref]bool)
	var walk func(o sdf.Obj, depth int)
	walk = func(o sdf.Obj, depth int) {
		ref, ok := o.(sdf.Ref)
		if !ok || seen[ref] || depth > 64 {
			return
		}
		seen[ref] = true
		d := doc.Dict(ref)
		if d == nil {
			return
		}
		if t, _ := d.NameValue("Type"); t == "Page" || (t == "" && !d.Has("Kids")) {
			out = append(out, ref)
			return
		}
		if kids := doc.Array(d.Get("Kids")); kids != nil {
			for _, k := range kids.Items() {
				walk(k, depth+1)
			}
		}
	}
	walk(doc.Root().Get("Pages"), 0)
	return out
}

// pageClosure returns the page object and every object reachable from it
// without following /Parent or entering other pages.
func pageClosure(doc *sdf.Doc, page sdf.Ref) []sdf.Ref {
	var out []sdf.Ref
	seen := map[sdf.Ref]bool{page: true}
	var walk func(o sdf.Obj)
	walk = func(o sdf.Obj) {
		switch v := o.(type) {
		case sdf.Ref:
			if seen[v] {
				return
			}
			seen[v] = true
			target, err := doc.Get(v)
			if err != nil {
				return
			}
			if d, ok := target.(*sdf.Dict); ok {
				if t, _ := d.NameValue("Type"); t == "Page" || t == "Pages" {
					return
				}
			}
			out = append(out, v)
			walk(target)
		case *sdf.Array:
			for _, it := range v.Items() {
				walk(it)
			}
		case *sdf.Dict:
			for _, k := range v.Keys() {
				if k != "Parent" {
					walk(v.Get(k))
				}
			}
		case *sdf.Stream:
			walk(v.Dict)
		}
	}
	if o, err := doc.Get(page); err == nil {
		walk(o)
	}
	return out
}

// linearLayout is the numbering of a linearized file. Objects outside the
// first page section take the low numbers.
type linearLayout struct {
	remap    map[sdf.Ref]sdf.Ref
	linDict  sdf.Ref
	hint     sdf.Ref
	firstNum int // first number of the first page section
	size     int
}

func number(l *linearization, withEncrypt bool) *linearLayout {
	lay := &linearLayout{remap: make(map[sdf.Ref]sdf.Ref)}
	n := 1
	assign := func(refs []sdf.Ref) {
		for _, r := range refs {
			lay.remap[r] = sdf.Ref{Num: n}
			n++
		}
	}
	for i := 1; i < len(l.perPage); i++ {
		assign(l.perPage[i])
	}
	assign(l.shared)
	assign(l.other)
	lay.firstNum = n
	lay.linDict = sdf.Ref{Num: n}
	n++
	assign(l.first[:1]) // catalog
	lay.hint = sdf.Ref{Num: n}
	n++
	assign(l.first[1:])
	if withEncrypt {
		n++
	}
	lay.size = n
	return lay
}

type encodedObj struct {
	ref  sdf.Ref
	data []byte
}

func writeLinearized(ctx context.Context, p *plan, w *countWriter) error {
	l, err := classify(p)
	if err != nil {
		return err
	}
	lay := number(l, p.opts.Security != nil)
	if p.opts.Security != nil {
		p.encrypt = sdf.Ref{Num: lay.size - 1}
	}
	mapRef := func(r sdf.Ref) (sdf.Ref, bool) {
		out, ok := lay.remap[r]
		return out, ok
	}
	ow := newObjWriter(w, p.flags, p.opts, p.encrypt)
	encode := func(refs []sdf.Ref) ([]encodedObj, error) {
		out := make([]encodedObj, 0, len(refs))
		for _, r := range refs {
			o, err := p.prepared(r, mapRef)
			if err != nil {
				return nil, err
			}
			nr := lay.remap[r]
			b, err := ow.encode(ctx, nr, o)
			if err != nil {
				return nil, err
			}
			out = append(out, encodedObj{nr, b})
		}
		return out, nil
	}

	catalog, err := encode(l.first[:1])
	if err != nil {
		return err
	}
	firstPage, err := encode(l.first[1:])
	if err != nil {
		return err
	}
	var encObj []encodedObj
	if !p.encrypt.IsZero() {
		b, err := ow.encode(ctx, p.encrypt, sdf.Copy(p.opts.Security.EncryptDict()))
		if err != nil {
			return err
		}
		encObj = append(encObj, encodedObj{p.encrypt, b})
	}
	pageSections := make([][]encodedObj, len(l.pages))
	for i := 1; i < len(l.pages); i++ {
		if pageSections[i], err = encode(l.perPage[i]); err != nil {
			return err
		}
	}
	shared, err := encode(l.shared)
	if err != nil {
		return err
	}
	other, err := encode(l.other)
	if err != nil {
		return err
	}

	trailer := p.trailer(mapRef)
	hdr := header(p.version)
	contents := contentRefs(p, l, lay)

	var (
		linBytes, fpXRef, hintBytes []byte
		offsets                     map[int]int64
		fpXRefOffset, mainXRefOff   int64
		endFirst, fileLen           int64
	)
	// Offsets depend on the sizes of the dictionary, the first page
	// table and the hint stream, which depend on the offsets.
	converged := false
	for pass := 0; pass < 10 && !converged; pass++ {
		lin := linDict(lay, l, offsets[lay.hint.Num], len(hintBytes), endFirst, mainXRefOff, fileLen)
		newLin := serializeIndirect(lay.linDict, lin, false)

		fpTrailer := sdf.NewDict()
		for _, k := range trailer.Keys() {
			fpTrailer.Set(k, trailer.Get(k))
		}
		fpTrailer.PutInt("Size", int64(lay.size))
		fpTrailer.PutInt("Prev", mainXRefOff)
		newFP := firstPageTable(offsets, lay, fpTrailer)

		off := int64(len(hdr))
		next := make(map[int]int64)
		next[lay.linDict.Num] = off
		off += int64(len(newLin))
		fpOff := off
		off += int64(len(newFP))
		place := func(objs []encodedObj) {
			for _, e := range objs {
				next[e.ref.Num] = off
				off += int64(len(e.data))
			}
		}
		place(catalog)
		next[lay.hint.Num] = off
		hs, err := hintStream(ow, lay, l, offsets, pageSections, firstPage, shared, contents)
		if err != nil {
			return err
		}
		off += int64(len(hs))
		place(firstPage)
		place(encObj)
		nextEnd := off
		for i := 1; i < len(pageSections); i++ {
			place(pageSections[i])
		}
		place(shared)
		place(other)
		mainOff := off
		off += int64(len(mainTable(next, lay, fpOff)))

		stable := offsets != nil && nextEnd == endFirst && bytes.Equal(newLin, linBytes) && bytes.Equal(newFP, fpXRef) &&
			len(hs) == len(hintBytes) && mapsEqual(next, offsets) && mainOff == mainXRefOff && off == fileLen
		linBytes, fpXRef, hintBytes = newLin, newFP, hs
		offsets, fpXRefOffset, mainXRefOff, fileLen = next, fpOff, mainOff, off
		endFirst = nextEnd
		converged = stable
	}
	if !converged {
		return errors.New("linearize: layout did not converge")
	}

	w.WriteString(hdr)
	w.Write(linBytes)
	w.Write(fpXRef)
	emitAll := func(objs []encodedObj) error {
		for _, e := range objs {
			if _, err := ow.emit(ctx, e.ref, e.data); err != nil {
				return err
			}
		}
		return nil
	}
	if err := emitAll(catalog); err != nil {
		return err
	}
	w.Write(hintBytes)
	if err := emitAll(firstPage); err != nil {
		return err
	}
	if err := emitAll(encObj); err != nil {
		return err
	}
	for i := 1; i < len(pageSections); i++ {
		if err := emitAll(pageSections[i]); err != nil {
			return err
		}
	}
	if err := emitAll(shared); err != nil {
		return err
	}
	if err := emitAll(other); err != nil {
		return err
	}
	if w.n != mainXRefOff {
		return fmt.Errorf("linearize: layout drifted (%d != %d)", w.n, mainXRefOff)
	}
	w.Write(mainTable(offsets, lay, fpXRefOffset))
	return nil
}

func linDict(lay *linearLayout, l *linearization, hintOff int64, hintLen int, endFirst, mainXRef, fileLen int64) *sdf.Dict {
	d := sdf.NewDict()
	d.PutInt("Linearized", 1)
	d.PutInt("L", fileLen)
	d.Set("H", sdf.NewArray(sdf.Int(hintOff), sdf.Int(hintLen)))
	d.PutInt("O", int64(lay.remap[l.pages[0]].Num))
	d.PutInt("E", endFirst)
	d.PutInt("N", int64(len(l.pages)))
	// T points at the end-of-line before the first main table entry.
	var t int64
	if mainXRef > 0 {
		t = mainXRef + int64(len(fmt.Sprintf("xref\n0 %d\n", lay.firstNum))) - 1
	}
	d.PutInt("T", t)
	return d
}

func firstPageTable(offsets map[int]int64, lay *linearLayout, trailer *sdf.Dict) []byte {
	var buf bytes.Buffer
	rows := make([]xref.Row, 0, lay.size-lay.firstNum)
	for n := lay.firstNum; n < lay.size; n++ {
		rows = append(rows, xref.Row{Num: n, Entry: xref.Entry{Type: xref.InUse, Offset: offsets[n]}})
	}
	_ = xref.WriteTable(&buf, rows)
	buf.WriteString("trailer\n")
	_ = sdf.WriteObj(&buf, trailer, sdf.WriteOptions{})
	buf.WriteString("\nstartxref\n0\n%%EOF\n")
	return buf.Bytes()
}

func mainTable(offsets map[int]int64, lay *linearLayout, fpXRef int64) []byte {
	var buf bytes.Buffer
	entries := make(map[int]xref.Entry, lay.firstNum)
	for n := 1; n < lay.firstNum; n++ {
		entries[n] = xref.Entry{Type: xref.InUse, Offset: offsets[n]}
	}
	_ = xref.WriteTable(&buf, fullRows(entries, lay.firstNum, nil))
	t := sdf.NewDict()
	t.PutInt("Size", int64(lay.firstNum))
	buf.WriteString("trailer\n")
	_ = sdf.WriteObj(&buf, t, sdf.WriteOptions{})
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", fpXRef)
	return buf.Bytes()
}

// contentRefs finds the first content stream of every page, in output
// numbering (zero when absent).
func contentRefs(p *plan, l *linearization, lay *linearLayout) []sdf.Ref {
	out := make([]sdf.Ref, len(l.pages))
	for i, pg := range l.pages {
		d := p.doc.Dict(pg)
		if d == nil {
			continue
		}
		c := d.Get("Contents")
		if a := p.doc.Array(c); a != nil && a.Len() > 0 {
			c = a.At(0)
		}
		if r, ok := c.(sdf.Ref); ok {
			out[i] = lay.remap[r]
		}
	}
	return out
}

func hintStream(ow *objWriter, lay *linearLayout, l *linearization, offsets map[int]int64,
	pageSections [][]encodedObj, firstPage []encodedObj, shared []encodedObj, contents []sdf.Ref) ([]byte, error) {
	ht := &parser.HintTable{Pages: make([]parser.PageHint, len(l.pages))}
	sharedIndex := make(map[sdf.Ref]int, len(shared))
	for i, e := range shared {
		sharedIndex[e.ref] = i
		ht.Shared = append(ht.Shared, parser.SharedHint{Length: int64(len(e.data)), Objects: 1})
	}
	if len(shared) > 0 {
		ht.FirstSharedObject = shared[0].ref.Num
		ht.FirstSharedOffset = offsets[shared[0].ref.Num]
	}
	section := func(i int) []encodedObj {
		if i == 0 {
			return firstPage
		}
		return pageSections[i]
	}
	for i := range l.pages {
		objs := section(i)
		ph := parser.PageHint{Objects: len(objs), SharedRefs: []int{}}
		var start int64
		if len(objs) > 0 {
			start = offsets[objs[0].ref.Num]
		}
		for _, e := range objs {
			ph.Length += int64(len(e.data))
			if e.ref == contents[i] {
				ph.ContentOffset = offsets[e.ref.Num] - start
				ph.ContentLength = int64(len(e.data))
			}
		}
		for _, r := range l.usesShared[i] {
			if idx, ok := sharedIndex[lay.remap[r]]; ok {
				ph.SharedRefs = append(ph.SharedRefs, idx)
			}
		}
		sort.Ints(ph.SharedRefs)
		ht.Pages[i] = ph
	}
	ht.FirstPageOffset = offsets[lay.remap[l.pages[0]].Num]

	data, s := ht.Encode()
	d := sdf.NewDict()
	d.PutInt("S", int64(s))
	st := sdf.NewStream(d, nil)
	if err := filters.SetStreamData(st, data, "FlateDecode"); err != nil {
		return nil, err
	}
	return ow.seal(lay.hint, st)
}

func mapsEqual(a, b map[int]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
