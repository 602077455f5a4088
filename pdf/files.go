package pdf

import (
	"context"
	"crypto/md5"
	"time"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// EmbeddedFile is an entry of the /EmbeddedFiles name tree.
type EmbeddedFile struct {
	Name        string
	Description string
	Size        int64
	Spec        *sdf.Dict
}

// fileSpec builds a file specification that embeds data.
func (d *Doc) fileSpec(name string, data []byte, desc string) *sdf.Dict {
	sd := sdf.NewDict()
	sd.PutName("Type", "EmbeddedFile")
	params := sd.PutDict("Params")
	params.PutInt("Size", int64(len(data)))
	params.PutString("ModDate", FormatDate(time.Now()))
	sum := md5.Sum(data)
	params.Set("CheckSum", sdf.HexStr(sum[:]))
	st := sdf.NewStream(sd, nil)
	if err := filters.SetStreamData(st, data, "FlateDecode"); err != nil {
		st.Data = data
		sd.PutInt("Length", int64(len(data)))
	}
	ref := d.sdf.CreateIndirect(st)

	fs := sdf.NewDict()
	fs.PutName("Type", "Filespec")
	fs.PutString("F", name)
	fs.PutText("UF", name)
	if desc != "" {
		fs.PutText("Desc", desc)
	}
	fs.PutDict("EF").Set("F", ref)
	return fs
}

// AddFile embeds data under name in the document's attachment list.
func (d *Doc) AddFile(name string, data []byte, description string) {
	fs := d.fileSpec(name, data, description)
	d.nameTreePut(d.namesDict(true), "EmbeddedFiles", name, d.sdf.CreateIndirect(fs))
}

// RemoveFile deletes the attachment named name.
func (d *Doc) RemoveFile(name string) {
	if names := d.namesDict(false); names != nil {
		d.nameTreePut(names, "EmbeddedFiles", name, nil)
	}
}

// Files lists the embedded files by name.
func (d *Doc) Files() []EmbeddedFile {
	names := d.namesDict(false)
	if names == nil {
		return nil
	}
	var out []EmbeddedFile
	for _, e := range d.treeEntries(names.Get("EmbeddedFiles"), "Names") {
		fs := d.sdf.Dict(e.val)
		if fs == nil {
			continue
		}
		f := EmbeddedFile{Name: e.key, Description: d.sdf.TextValue(fs.Get("Desc")), Spec: fs, Size: -1}
		if ef := d.sdf.Dict(fs.Get("EF")); ef != nil {
			if sd := d.sdf.Dict(ef.Get("F")); sd != nil {
				if params := d.sdf.Dict(sd.Get("Params")); params != nil {
					if n, ok := d.sdf.Int(params.Get("Size")); ok {
						f.Size = n
					}
				}
			}
		}
		out = append(out, f)
	}
	return out
}

// FileData returns the decoded content of the attachment named name.
func (d *Doc) FileData(ctx context.Context, name string) ([]byte, error) {
	names := d.namesDict(false)
	if names == nil {
		return nil, sdf.Errorf("file data", sdf.ErrNotFound, "no embedded file %q", name)
	}
	v, ok := d.nameTreeLookup(names.Get("EmbeddedFiles"), name)
	if !ok {
		return nil, sdf.Errorf("file data", sdf.ErrNotFound, "no embedded file %q", name)
	}
	return d.fileSpecData(ctx, v)
}

func (d *Doc) fileSpecData(ctx context.Context, spec sdf.Obj) ([]byte, error) {
	fs := d.sdf.Dict(spec)
	if fs == nil {
		return nil, sdf.Errorf("file data", sdf.ErrCorrupt, "file specification is not a dictionary")
	}
	ef := d.sdf.Dict(fs.Get("EF"))
	if ef == nil {
		return nil, sdf.Errorf("file data", sdf.ErrUnsupported, "file is not embedded")
	}
	for _, k := range []sdf.Name{"UF", "F"} {
		if st := d.sdf.Stream(ef.Get(k)); st != nil {
			return d.decode(ctx, st)
		}
	}
	return nil, sdf.Errorf("file data", sdf.ErrCorrupt, "embedded file has no stream")
}

// CollectionView is the initial presentation of a portable collection.
type CollectionView string

const (
	CollectionDetails CollectionView = "D"
	CollectionTile    CollectionView = "T"
	CollectionHidden  CollectionView = "H"
)

// SetCollection turns the document into a portable collection (package)
// shown with view.
func (d *Doc) SetCollection(view CollectionView) {
	cat := d.sdf.Root()
	if cat == nil {
		return
	}
	c := cat.PutDict("Collection")
	c.PutName("Type", "Collection")
	c.PutName("View", string(view))
}

// IsCollection reports whether the document is a portable collection.
func (d *Doc) IsCollection() bool {
	cat := d.sdf.Root()
	return cat != nil && cat.Has("Collection")
}
