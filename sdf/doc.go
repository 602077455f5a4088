package sdf

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sort"
	"sync"
)

// MaxGeneration is the highest generation number an object may carry. An
// entry that reaches it is never reused.
const MaxGeneration = 65535

// DefaultMaxDepth bounds reference chains followed by Resolve.
const DefaultMaxDepth = 32

// Loader materializes objects that are listed in the cross-reference table
// but have not been read yet.
type Loader interface {
	Load(ref Ref) (Obj, error)
}

// Source describes the bytes a document was opened from. Incremental saves
// append to it.
type Source struct {
	R         io.ReaderAt
	Size      int64
	StartXRef int64
}

type entry struct {
	gen    int
	free   bool
	obj    Obj
	loaded bool
	sum    [sha256.Size]byte
	hashed bool
}

// Doc is the indirect object table of one document.
type Doc struct {
	// Version is the header version, e.g. "1.7".
	Version string
	// Source is set for documents read from a file.
	Source *Source
	// MaxDepth limits Resolve; zero means DefaultMaxDepth.
	MaxDepth int

	mu      sync.Mutex
	entries map[int]*entry
	maxNum  int
	trailer *Dict
	loader  Loader
	freed   map[int]bool
}

// NewDoc returns an empty object table with an empty trailer.
func NewDoc() *Doc {
	return &Doc{
		Version: "1.7",
		entries: map[int]*entry{0: {gen: MaxGeneration, free: true, loaded: true}},
		trailer: NewDict(),
		freed:   make(map[int]bool),
	}
}

// NewLoadedDoc returns a table whose objects are read on demand through l.
// The caller registers the cross-reference entries with AddEntry.
func NewLoadedDoc(trailer *Dict, l Loader) *Doc {
	d := NewDoc()
	if trailer != nil {
		d.trailer = trailer
	}
	d.loader = l
	return d
}

// AddEntry registers a cross-reference entry found in the file.
func (d *Doc) AddEntry(num, gen int, inUse bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if num <= 0 {
		return
	}
	d.entries[num] = &entry{gen: gen, free: !inUse, loaded: !inUse}
	if num > d.maxNum {
		d.maxNum = num
	}
}

func (d *Doc) Trailer() *Dict { return d.trailer }

// SetTrailer replaces the trailer dictionary.
func (d *Doc) SetTrailer(t *Dict) { d.trailer = t }

// Root returns the document catalog, or nil when missing.
func (d *Doc) Root() *Dict { return d.Dict(d.trailer.Get("Root")) }

// MaxObjNum returns the highest object number in the table.
func (d *Doc) MaxObjNum() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxNum
}

// Get returns the object stored under ref. References to free, missing or
// stale objects resolve to Null.
func (d *Doc) Get(ref Ref) (Obj, error) {
	d.mu.Lock()
	e, ok := d.entries[ref.Num]
	if !ok || e.free || e.gen != ref.Gen {
		d.mu.Unlock()
		return Null{}, nil
	}
	if e.loaded {
		o := e.obj
		d.mu.Unlock()
		return o, nil
	}
	loader := d.loader
	d.mu.Unlock()
	if loader == nil {
		return Null{}, nil
	}
	o, err := loader.Load(ref)
	if err != nil {
		return Null{}, &Error{Op: "load", Ref: ref, Err: err}
	}
	if o == nil {
		o = Null{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if e.loaded {
		return e.obj, nil
	}
	e.obj, e.loaded = o, true
	e.sum, e.hashed = Hash(o), true
	return o, nil
}

// Resolve follows references starting at o until a direct object is found.
func (d *Doc) Resolve(o Obj) (Obj, error) {
	limit := d.MaxDepth
	if limit <= 0 {
		limit = DefaultMaxDepth
	}
	for i := 0; i < limit; i++ {
		r, ok := o.(Ref)
		if !ok {
			if o == nil {
				return Null{}, nil
			}
			return o, nil
		}
		v, err := d.Get(r)
		if err != nil {
			return Null{}, err
		}
		o = v
	}
	return Null{}, &Error{Op: "resolve", Err: fmt.Errorf("%w: reference chain deeper than %d", ErrCorrupt, limit)}
}

// MustResolve is Resolve with load failures mapped to Null.
func (d *Doc) MustResolve(o Obj) Obj {
	v, err := d.Resolve(o)
	if err != nil {
		return Null{}
	}
	return v
}

// Dict resolves o and returns it when it is a dictionary. The dictionary of
// a stream is returned for streams.
func (d *Doc) Dict(o Obj) *Dict {
	switch v := d.MustResolve(o).(type) {
	case *Dict:
		return v
	case *Stream:
		return v.Dict
	}
	return nil
}

func (d *Doc) Array(o Obj) *Array {
	a, _ := d.MustResolve(o).(*Array)
	return a
}

func (d *Doc) Stream(o Obj) *Stream {
	s, _ := d.MustResolve(o).(*Stream)
	return s
}

func (d *Doc) Name(o Obj) (Name, bool) {
	n, ok := d.MustResolve(o).(Name)
	return n, ok
}

func (d *Doc) Int(o Obj) (int64, bool) { return Integer(d.MustResolve(o)) }

func (d *Doc) Number(o Obj) (float64, bool) { return Number(d.MustResolve(o)) }

func (d *Doc) StringValue(o Obj) (String, bool) {
	s, ok := d.MustResolve(o).(String)
	return s, ok
}

// TextValue resolves o as a text string.
func (d *Doc) TextValue(o Obj) string {
	if s, ok := d.StringValue(o); ok {
		return s.Text()
	}
	return ""
}

// Numbers resolves o as an array of numbers, resolving each element.
func (d *Doc) Numbers(o Obj) ([]float64, bool) {
	a := d.Array(o)
	if a == nil {
		return nil, false
	}
	out := make([]float64, 0, a.Len())
	for _, it := range a.Items() {
		f, ok := d.Number(it)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// CreateIndirect stores o as a new indirect object. The lowest free object
// number is reused with its next generation; otherwise a new number is
// allocated.
func (d *Doc) CreateIndirect(o Obj) Ref {
	d.mu.Lock()
	defer d.mu.Unlock()
	num := -1
	for n := 1; n <= d.maxNum; n++ {
		e, ok := d.entries[n]
		if !ok {
			num = n
			d.entries[n] = &entry{}
			break
		}
		if e.free && e.gen < MaxGeneration {
			num = n
			break
		}
	}
	if num < 0 {
		d.maxNum++
		num = d.maxNum
		d.entries[num] = &entry{}
	}
	e := d.entries[num]
	e.free, e.loaded, e.obj, e.hashed = false, true, o, false
	delete(d.freed, num)
	return Ref{Num: num, Gen: e.gen}
}

func (d *Doc) CreateIndirectDict() (*Dict, Ref) {
	dict := NewDict()
	return dict, d.CreateIndirect(dict)
}

func (d *Doc) CreateIndirectArray() (*Array, Ref) {
	a := NewArray()
	return a, d.CreateIndirect(a)
}

func (d *Doc) CreateIndirectStream(dict *Dict, data []byte) (*Stream, Ref) {
	s := NewStream(dict, data)
	return s, d.CreateIndirect(s)
}

// Set replaces the object stored under an in-use ref.
func (d *Doc) Set(ref Ref, o Obj) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[ref.Num]
	if !ok || e.free || e.gen != ref.Gen {
		return &Error{Op: "set", Ref: ref, Err: ErrNotFound}
	}
	if !e.loaded && !e.hashed {
		// Mark as changed against an unknown original.
		e.hashed = true
	}
	e.obj, e.loaded = o, true
	return nil
}

// Free releases ref. The number becomes available again with the next
// generation.
func (d *Doc) Free(ref Ref) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[ref.Num]
	if !ok || e.free || e.gen != ref.Gen || ref.Num == 0 {
		return &Error{Op: "free", Ref: ref, Err: ErrNotFound}
	}
	e.free, e.obj, e.loaded, e.hashed = true, nil, true, false
	if e.gen < MaxGeneration {
		e.gen++
	}
	d.freed[ref.Num] = true
	return nil
}

// IsFree reports whether num is unused.
func (d *Doc) IsFree(num int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[num]
	return !ok || e.free
}

// Generation returns the current generation of num, i.e. the generation of
// the live object or the one the next reuse gets.
func (d *Doc) Generation(num int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[num]; ok {
		return e.gen
	}
	return 0
}

// Refs returns every in-use reference in ascending order.
func (d *Doc) Refs() []Ref {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Ref, 0, len(d.entries))
	for n, e := range d.entries {
		if n > 0 && !e.free {
			out = append(out, Ref{Num: n, Gen: e.gen})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

// LoadAll materializes every in-use object.
func (d *Doc) LoadAll() error {
	for _, r := range d.Refs() {
		if _, err := d.Get(r); err != nil {
			return err
		}
	}
	return nil
}

// Changed reports whether ref was created, replaced or mutated since it
// was loaded. Objects never loaded are unchanged.
func (d *Doc) Changed(ref Ref) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[ref.Num]
	if !ok || e.free || !e.loaded {
		return false
	}
	if d.loader == nil {
		return true
	}
	return !e.hashed || e.sum != Hash(e.obj)
}

// ChangedRefs lists the in-use objects for which Changed is true.
func (d *Doc) ChangedRefs() []Ref {
	var out []Ref
	for _, r := range d.Refs() {
		if d.Changed(r) {
			out = append(out, r)
		}
	}
	return out
}

// FreedRefs lists the objects freed since the document was opened, with
// the generation their next use would carry.
func (d *Doc) FreedRefs() []Ref {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Ref, 0, len(d.freed))
	for n := range d.freed {
		if e := d.entries[n]; e != nil && e.free {
			out = append(out, Ref{Num: n, Gen: e.gen})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

// MarkClean records the current state of every loaded object as the
// baseline for Changed.
func (d *Doc) MarkClean() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entries {
		if e.loaded && !e.free {
			e.sum, e.hashed = Hash(e.obj), true
		}
	}
	d.freed = make(map[int]bool)
}

// Reachable returns the set of objects reachable from the trailer.
func (d *Doc) Reachable() (map[Ref]bool, error) {
	seen := make(map[Ref]bool)
	var stack []Obj
	stack = append(stack, d.trailer)
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch v := o.(type) {
		case Ref:
			if seen[v] {
				continue
			}
			obj, err := d.Get(v)
			if err != nil {
				return nil, err
			}
			if IsNull(obj) {
				continue
			}
			seen[v] = true
			stack = append(stack, obj)
		case *Array:
			stack = append(stack, v.Items()...)
		case *Dict:
			for _, k := range v.keys {
				stack = append(stack, v.m[k])
			}
		case *Stream:
			stack = append(stack, v.Dict)
		}
	}
	return seen, nil
}

// Hash returns a digest of the serialized form of o.
func Hash(o Obj) [sha256.Size]byte {
	return sha256.Sum256(Bytes(o))
}
