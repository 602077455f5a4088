// Package fdf reads and writes Forms Data Format files and their XML
// counterpart, XFDF, and moves field values and annotations between them
// and PDF documents.
package fdf

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/NityaNandPandey/AndroidPDF/scanner"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

const header = "%FDF-1.2\n%\xE2\xE3\xCF\xD3\n"

// Doc is an FDF document: an object table whose catalog holds an /FDF
// dictionary with /Fields and /Annots.
type Doc struct {
	sd *sdf.Doc
}

// New returns an empty FDF document.
func New() *Doc {
	sd := sdf.NewDoc()
	sd.Version = "1.2"
	cat, ref := sd.CreateIndirectDict()
	cat.PutDict("FDF")
	sd.Trailer().Set("Root", ref)
	return &Doc{sd: sd}
}

// SDF returns the document's object table.
func (d *Doc) SDF() *sdf.Doc { return d.sd }

// Root returns the /FDF dictionary.
func (d *Doc) Root() *sdf.Dict {
	cat := d.sd.Root()
	if cat == nil {
		cat = sdf.NewDict()
		d.sd.Trailer().Set("Root", d.sd.CreateIndirect(cat))
	}
	root := d.sd.Dict(cat.Get("FDF"))
	if root == nil {
		root = cat.PutDict("FDF")
	}
	return root
}

// File returns the /F entry naming the PDF the data belongs to.
func (d *Doc) File() string { return d.sd.TextValue(d.Root().Get("F")) }

func (d *Doc) SetFile(name string) { d.Root().PutString("F", name) }

// Field is a terminal field of an FDF document.
type Field struct {
	doc  *Doc
	Name string
	Dict *sdf.Dict
}

// Value returns /V as text. Names, such as check box states, are returned
// without the slash.
func (f *Field) Value() string {
	switch v := f.doc.sd.MustResolve(f.Dict.Get("V")).(type) {
	case sdf.Name:
		return string(v)
	case sdf.String:
		return v.Text()
	case *sdf.Array:
		if v.Len() > 0 {
			return f.doc.sd.TextValue(v.At(0))
		}
	}
	return ""
}

// PartialName is the last component of Name.
func (f *Field) PartialName() string {
	if i := strings.LastIndexByte(f.Name, '.'); i >= 0 {
		return f.Name[i+1:]
	}
	return f.Name
}

// Fields returns the terminal fields in tree order with their fully
// qualified names.
func (d *Doc) Fields() []*Field {
	var out []*Field
	seen := make(map[*sdf.Dict]bool)
	var walk func(o sdf.Obj, prefix string, depth int)
	walk = func(o sdf.Obj, prefix string, depth int) {
		dict := d.sd.Dict(o)
		if dict == nil || seen[dict] || depth > 32 {
			return
		}
		seen[dict] = true
		name := prefix
		if dict.Has("T") {
			name = join(prefix, d.sd.TextValue(dict.Get("T")))
		}
		kids := d.sd.Array(dict.Get("Kids"))
		if kids.Len() == 0 {
			out = append(out, &Field{doc: d, Name: name, Dict: dict})
			return
		}
		for _, k := range kids.Items() {
			walk(k, name, depth+1)
		}
	}
	for _, f := range d.sd.Array(d.Root().Get("Fields")).Items() {
		walk(f, "", 0)
	}
	return out
}

func join(prefix, part string) string {
	if prefix == "" {
		return part
	}
	return prefix + "." + part
}

// Field returns the terminal field with the fully qualified name, or nil.
func (d *Doc) Field(name string) *Field {
	for _, f := range d.Fields() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// node finds or creates the field dictionary for name, creating the
// intermediate /Kids levels.
func (d *Doc) node(name string) *sdf.Dict {
	root := d.Root()
	list := d.sd.Array(root.Get("Fields"))
	if list == nil {
		list = root.PutArray("Fields")
	}
	var node *sdf.Dict
	for _, part := range strings.Split(name, ".") {
		var next *sdf.Dict
		for _, k := range list.Items() {
			if kd := d.sd.Dict(k); kd != nil && d.sd.TextValue(kd.Get("T")) == part {
				next = kd
				break
			}
		}
		if next == nil {
			next = sdf.NewDict()
			next.PutText("T", part)
			list.Append(next)
		}
		node = next
		list = d.sd.Array(node.Get("Kids"))
		if list == nil {
			list = node.PutArray("Kids")
		}
	}
	if k := d.sd.Array(node.Get("Kids")); k != nil && k.Len() == 0 {
		node.Delete("Kids")
	}
	return node
}

// SetValue sets the text value of the named field, creating it if
// needed.
func (d *Doc) SetValue(name, value string) *Field {
	return d.set(name, sdf.Text(value))
}

// SetStateValue sets a name value, as check boxes and radio buttons take.
func (d *Doc) SetStateValue(name, state string) *Field {
	return d.set(name, sdf.Name(state))
}

func (d *Doc) set(name string, v sdf.Obj) *Field {
	node := d.node(name)
	node.Set("V", v)
	return &Field{doc: d, Name: name, Dict: node}
}

// Annots returns the annotation dictionaries of the document.
func (d *Doc) Annots() []*sdf.Dict {
	var out []*sdf.Dict
	for _, a := range d.sd.Array(d.Root().Get("Annots")).Items() {
		if dict := d.sd.Dict(a); dict != nil {
			out = append(out, dict)
		}
	}
	return out
}

// AddAnnot appends an annotation dictionary. page is 0-based.
func (d *Doc) AddAnnot(dict *sdf.Dict, page int) {
	dict.PutInt("Page", int64(page))
	root := d.Root()
	list := d.sd.Array(root.Get("Annots"))
	if list == nil {
		list = root.PutArray("Annots")
	}
	list.Append(d.sd.CreateIndirect(dict))
}

// Save writes the document in FDF syntax.
func (d *Doc) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(header)
	for _, ref := range d.sd.Refs() {
		o, err := d.sd.Get(ref)
		if err != nil {
			return err
		}
		if st, ok := o.(*sdf.Stream); ok {
			st.Dict.PutInt("Length", int64(len(st.Data)))
		}
		fmt.Fprintf(bw, "%d %d obj\n", ref.Num, ref.Gen)
		if err := sdf.WriteObj(bw, o, sdf.WriteOptions{}); err != nil {
			return err
		}
		bw.WriteString("\nendobj\n")
	}
	trailer := sdf.NewDict()
	trailer.Set("Root", d.sd.Trailer().Get("Root"))
	bw.WriteString("trailer\n")
	if err := sdf.WriteObj(bw, trailer, sdf.WriteOptions{}); err != nil {
		return err
	}
	bw.WriteString("\n%%EOF\n")
	return bw.Flush()
}

// Bytes returns the serialized document.
func (d *Doc) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	err := d.Save(&buf)
	return buf.Bytes(), err
}

type objects map[sdf.Ref]sdf.Obj

func (o objects) Load(ref sdf.Ref) (sdf.Obj, error) {
	if obj, ok := o[ref]; ok {
		return obj, nil
	}
	return nil, &sdf.Error{Op: "load", Ref: ref, Err: sdf.ErrNotFound}
}

// Open reads an FDF document. Objects are read in file order; the
// cross-reference table, which FDF files may omit, is not used.
func Open(r io.Reader) (*Doc, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	start := bytes.Index(data, []byte("%FDF-"))
	if start < 0 || start > 1024 {
		return nil, sdf.Errorf("open fdf", sdf.ErrCorrupt, "no %%FDF- header")
	}
	s := scanner.NewBytes(data, scanner.Config{MaxDepth: 64})
	if err := s.Seek(int64(start)); err != nil {
		return nil, err
	}
	objs := make(objects)
	var trailer *sdf.Dict
	for {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, sdf.Errorf("open fdf", sdf.ErrCorrupt, "%v", err)
		}
		switch {
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			o, err := s.ReadObject()
			if err != nil {
				return nil, sdf.Errorf("open fdf", sdf.ErrCorrupt, "trailer: %v", err)
			}
			if t, ok := o.(*sdf.Dict); ok {
				trailer = t
			}
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			ref, obj, ok, err := readIndirect(s, tok)
			if err != nil {
				return nil, err
			}
			if ok {
				objs[ref] = obj
			}
		}
	}
	if trailer == nil || trailer.Get("Root") == nil {
		return nil, sdf.Errorf("open fdf", sdf.ErrCorrupt, "no trailer with /Root")
	}
	sd := sdf.NewLoadedDoc(trailer, objs)
	sd.Version = "1.2"
	for ref := range objs {
		sd.AddEntry(ref.Num, ref.Gen, true)
	}
	d := &Doc{sd: sd}
	if sd.Root() == nil {
		return nil, sdf.Errorf("open fdf", sdf.ErrCorrupt, "catalog missing")
	}
	return d, nil
}

// readIndirect reads "gen obj ... endobj" after the object number num.
// ok is false when the tokens do not start an object.
func readIndirect(s *scanner.Scanner, num scanner.Token) (sdf.Ref, sdf.Obj, bool, error) {
	back := s.Position()
	gen, err := s.Next()
	if err != nil || gen.Type != scanner.TokenNumber || !gen.IsInt {
		return sdf.Ref{}, nil, false, s.Seek(back)
	}
	kw, err := s.Next()
	if err != nil || kw.Type != scanner.TokenKeyword || kw.Str != "obj" {
		return sdf.Ref{}, nil, false, s.Seek(back)
	}
	ref := sdf.Ref{Num: int(num.Int), Gen: int(gen.Int)}
	obj, err := s.ReadObject()
	if err != nil {
		return ref, nil, false, sdf.Errorf("open fdf", sdf.ErrCorrupt, "object %v: %v", ref, err)
	}
	next, err := s.Next()
	if err != nil {
		return ref, obj, true, nil
	}
	if next.Type == scanner.TokenKeyword && next.Str == "stream" {
		dict, ok := obj.(*sdf.Dict)
		if !ok {
			return ref, nil, false, sdf.Errorf("open fdf", sdf.ErrCorrupt, "object %v: stream without dictionary", ref)
		}
		length := int64(-1)
		if n, ok := dict.Get("Length").(sdf.Int); ok {
			length = int64(n)
		}
		data, err := s.ReadStream(length)
		if err != nil {
			return ref, nil, false, sdf.Errorf("open fdf", sdf.ErrCorrupt, "object %v: %v", ref, err)
		}
		obj = sdf.NewStream(dict, data)
		dict.PutInt("Length", int64(len(data)))
		next, err = s.Next()
		if err != nil {
			return ref, obj, true, nil
		}
	}
	if next.Type != scanner.TokenKeyword || next.Str != "endobj" {
		// Tolerate a missing endobj.
		if err := s.Seek(next.Pos); err != nil {
			return ref, nil, false, err
		}
	}
	return ref, obj, true, nil
}
