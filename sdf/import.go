package sdf

// Importer copies objects from one document into another, allocating new
// indirect objects in the destination. Objects reached more than once are
// copied once, so shared resources stay shared.
type Importer struct {
	dst, src *Doc
	mapped   map[Ref]Ref
	// Skip names dictionary keys that are not followed, e.g. /Parent when
	// importing pages.
	Skip map[Name]bool
}

func NewImporter(dst, src *Doc) *Importer {
	return &Importer{dst: dst, src: src, mapped: make(map[Ref]Ref)}
}

// Import deep copies o. References into src become references into dst.
func (im *Importer) Import(o Obj) (Obj, error) {
	switch v := o.(type) {
	case Ref:
		if nr, ok := im.mapped[v]; ok {
			return nr, nil
		}
		obj, err := im.src.Get(v)
		if err != nil {
			return nil, err
		}
		if IsNull(obj) {
			return Null{}, nil
		}
		// Reserve the number first so cycles terminate.
		nr := im.dst.CreateIndirect(Null{})
		im.mapped[v] = nr
		cp, err := im.Import(obj)
		if err != nil {
			return nil, err
		}
		if err := im.dst.Set(nr, cp); err != nil {
			return nil, err
		}
		return nr, nil
	case *Array:
		out := NewArray()
		for _, it := range v.Items() {
			cp, err := im.Import(it)
			if err != nil {
				return nil, err
			}
			out.Append(cp)
		}
		return out, nil
	case *Dict:
		out := NewDict()
		for _, k := range v.keys {
			if im.Skip[k] {
				continue
			}
			cp, err := im.Import(v.m[k])
			if err != nil {
				return nil, err
			}
			out.Set(k, cp)
		}
		return out, nil
	case *Stream:
		dict, err := im.Import(v.Dict)
		if err != nil {
			return nil, err
		}
		return &Stream{Dict: dict.(*Dict), Data: append([]byte(nil), v.Data...)}, nil
	}
	return Copy(o), nil
}

// Mapped returns the destination reference of a source reference already
// imported.
func (im *Importer) Mapped(r Ref) (Ref, bool) {
	nr, ok := im.mapped[r]
	return nr, ok
}

// Import deep copies o from src into d.
func (d *Doc) Import(o Obj, src *Doc) (Obj, error) {
	return NewImporter(d, src).Import(o)
}

// Map records that src is represented by dst, so later references to src
// are rewritten instead of copied.
func (im *Importer) Map(src, dst Ref) { im.mapped[src] = dst }
