// Package sdf implements the low-level PDF object graph: primitive objects,
// dictionaries, arrays, streams, indirect references and the object table
// that owns them.
package sdf

import (
	"fmt"
	"sort"
)

// Obj is any PDF object.
type Obj interface {
	Type() string
}

type Null struct{}

func (Null) Type() string { return "null" }

type Bool bool

func (Bool) Type() string { return "boolean" }

type Int int64

func (Int) Type() string { return "integer" }

type Real float64

func (Real) Type() string { return "real" }

type Name string

func (Name) Type() string { return "name" }

// String is a PDF string. Hex records the form it was read in or should be
// written in.
type String struct {
	Value []byte
	Hex   bool
}

func (String) Type() string { return "string" }

// Text returns the string decoded as a PDF text string.
func (s String) Text() string { return DecodeText(s.Value) }

func Str(s string) String { return String{Value: []byte(s)} }

// Text builds a text string, UTF-16BE encoded when PDFDocEncoding cannot
// represent s.
func Text(s string) String { return String{Value: EncodeText(s)} }

func HexStr(b []byte) String { return String{Value: b, Hex: true} }

// Ref is an indirect object reference.
type Ref struct {
	Num int
	Gen int
}

func (Ref) Type() string { return "reference" }

func (r Ref) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// IsZero reports whether r is the unset reference.
func (r Ref) IsZero() bool { return r.Num == 0 }

type Array struct {
	items []Obj
}

func (*Array) Type() string { return "array" }

func NewArray(items ...Obj) *Array {
	return &Array{items: append([]Obj(nil), items...)}
}

func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.items)
}

// At returns the i-th item or Null when out of range.
func (a *Array) At(i int) Obj {
	if a == nil || i < 0 || i >= len(a.items) {
		return Null{}
	}
	return a.items[i]
}

func (a *Array) Set(i int, o Obj) {
	if i >= 0 && i < len(a.items) {
		a.items[i] = o
	}
}

func (a *Array) Append(o ...Obj) { a.items = append(a.items, o...) }

// Insert places o before index i, appending when i is past the end.
func (a *Array) Insert(i int, o Obj) {
	if i < 0 {
		i = 0
	}
	if i >= len(a.items) {
		a.items = append(a.items, o)
		return
	}
	a.items = append(a.items, nil)
	copy(a.items[i+1:], a.items[i:])
	a.items[i] = o
}

func (a *Array) Remove(i int) {
	if i < 0 || i >= len(a.items) {
		return
	}
	a.items = append(a.items[:i], a.items[i+1:]...)
}

// Items returns the backing slice; callers must not retain it across mutations.
func (a *Array) Items() []Obj {
	if a == nil {
		return nil
	}
	return a.items
}

// Dict is a dictionary that remembers key insertion order so that written
// output is stable.
type Dict struct {
	keys []Name
	m    map[Name]Obj
}

func (*Dict) Type() string { return "dictionary" }

func NewDict() *Dict { return &Dict{m: make(map[Name]Obj)} }

func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Get returns the value for key or Null when absent.
func (d *Dict) Get(key Name) Obj {
	if o, ok := d.Find(key); ok {
		return o
	}
	return Null{}
}

func (d *Dict) Find(key Name) (Obj, bool) {
	if d == nil {
		return nil, false
	}
	o, ok := d.m[key]
	return o, ok
}

func (d *Dict) Has(key Name) bool {
	_, ok := d.Find(key)
	return ok
}

// Set stores o under key. Setting Null or nil deletes the key.
func (d *Dict) Set(key Name, o Obj) {
	if o == nil {
		d.Delete(key)
		return
	}
	if _, isNull := o.(Null); isNull {
		d.Delete(key)
		return
	}
	if d.m == nil {
		d.m = make(map[Name]Obj)
	}
	if _, ok := d.m[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.m[key] = o
}

func (d *Dict) Delete(key Name) {
	if d == nil {
		return
	}
	if _, ok := d.m[key]; !ok {
		return
	}
	delete(d.m, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []Name {
	if d == nil {
		return nil
	}
	return append([]Name(nil), d.keys...)
}

// SortedKeys returns the keys in byte order.
func (d *Dict) SortedKeys() []Name {
	keys := d.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (d *Dict) PutName(key Name, v string)   { d.Set(key, Name(v)) }
func (d *Dict) PutInt(key Name, v int64)     { d.Set(key, Int(v)) }
func (d *Dict) PutReal(key Name, v float64)  { d.Set(key, Real(v)) }
func (d *Dict) PutBool(key Name, v bool)     { d.Set(key, Bool(v)) }
func (d *Dict) PutString(key Name, v string) { d.Set(key, Str(v)) }
func (d *Dict) PutText(key Name, v string)   { d.Set(key, Text(v)) }
func (d *Dict) PutRect(key Name, x1, y1, x2, y2 float64) {
	d.Set(key, NewArray(Real(x1), Real(y1), Real(x2), Real(y2)))
}

// PutDict stores and returns a new direct dictionary under key.
func (d *Dict) PutDict(key Name) *Dict {
	sub := NewDict()
	d.Set(key, sub)
	return sub
}

// PutArray stores and returns a new direct array under key.
func (d *Dict) PutArray(key Name) *Array {
	a := NewArray()
	d.Set(key, a)
	return a
}

// NameValue returns the name stored directly under key.
func (d *Dict) NameValue(key Name) (Name, bool) {
	n, ok := d.Get(key).(Name)
	return n, ok
}

// Stream is a dictionary plus a payload. Data holds the bytes exactly as
// they appear in the file, i.e. still encoded by the /Filter chain but
// already decrypted.
type Stream struct {
	Dict *Dict
	Data []byte
}

func (*Stream) Type() string { return "stream" }

func NewStream(dict *Dict, data []byte) *Stream {
	if dict == nil {
		dict = NewDict()
	}
	return &Stream{Dict: dict, Data: data}
}

// Filters returns the stream's filter names in application order.
func (s *Stream) Filters() []Name {
	switch f := s.Dict.Get("Filter").(type) {
	case Name:
		return []Name{f}
	case *Array:
		var out []Name
		for _, it := range f.Items() {
			if n, ok := it.(Name); ok {
				out = append(out, n)
			}
		}
		return out
	}
	return nil
}

// Copy returns a deep copy of direct objects. References are copied as is.
func Copy(o Obj) Obj {
	switch v := o.(type) {
	case *Array:
		out := &Array{items: make([]Obj, len(v.items))}
		for i, it := range v.items {
			out.items[i] = Copy(it)
		}
		return out
	case *Dict:
		out := &Dict{keys: append([]Name(nil), v.keys...), m: make(map[Name]Obj, len(v.m))}
		for k, it := range v.m {
			out.m[k] = Copy(it)
		}
		return out
	case *Stream:
		return &Stream{Dict: Copy(v.Dict).(*Dict), Data: append([]byte(nil), v.Data...)}
	case String:
		return String{Value: append([]byte(nil), v.Value...), Hex: v.Hex}
	}
	return o
}

// Number returns the numeric value of an Int or Real.
func Number(o Obj) (float64, bool) {
	switch v := o.(type) {
	case Int:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

// Integer returns the value of an Int, or a Real with no fractional part.
func Integer(o Obj) (int64, bool) {
	switch v := o.(type) {
	case Int:
		return int64(v), true
	case Real:
		if float64(v) == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// Numbers converts an array of numbers, failing on any non-number.
func Numbers(a *Array) ([]float64, bool) {
	if a == nil {
		return nil, false
	}
	out := make([]float64, 0, a.Len())
	for _, it := range a.Items() {
		f, ok := Number(it)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// IsNull reports whether o is nil or the null object.
func IsNull(o Obj) bool {
	if o == nil {
		return true
	}
	_, ok := o.(Null)
	return ok
}
