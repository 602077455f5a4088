package optimize

import (
	"context"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// mergeable reports whether o may share an object number with an
// identical object. Nodes of the page, outline and field trees and
// annotations have an identity of their own.
func mergeable(sd *sdf.Doc, o sdf.Obj) bool {
	d := sd.Dict(o)
	if d == nil {
		return true
	}
	if d.Has("Parent") || d.Has("P") {
		return false
	}
	switch t, _ := sd.Name(d.Get("Type")); t {
	case "Page", "Pages", "Catalog", "Annot", "Outlines", "Sig", "XRef", "ObjStm":
		return false
	}
	return true
}

// combineObjects replaces references to duplicate indirect objects with
// a reference to the first copy and frees the rest, repeating until no
// duplicates remain: merging children can make parents identical.
func combineObjects(ctx context.Context, sd *sdf.Doc, streams, others bool) (int, error) {
	protected := map[sdf.Ref]bool{}
	for _, k := range []sdf.Name{"Root", "Info", "Encrypt"} {
		if r, ok := sd.Trailer().Get(k).(sdf.Ref); ok {
			protected[r] = true
		}
	}
	merged := 0
	for {
		if err := ctx.Err(); err != nil {
			return merged, err
		}
		seen := make(map[digest]sdf.Ref)
		replacements := make(map[sdf.Ref]sdf.Ref)
		for _, ref := range sd.Refs() {
			if protected[ref] {
				continue
			}
			obj, err := sd.Get(ref)
			if err != nil {
				return merged, err
			}
			_, isStream := obj.(*sdf.Stream)
			if (isStream && !streams) || (!isStream && !others) || !mergeable(sd, obj) {
				continue
			}
			h := hashObject(obj)
			if first, ok := seen[h]; ok {
				replacements[ref] = first
			} else {
				seen[h] = ref
			}
		}
		if len(replacements) == 0 {
			return merged, nil
		}
		if err := applyReplacements(sd, replacements); err != nil {
			return merged, err
		}
		for dup := range replacements {
			if err := sd.Free(dup); err != nil {
				return merged, err
			}
		}
		merged += len(replacements)
	}
}

func applyReplacements(sd *sdf.Doc, replacements map[sdf.Ref]sdf.Ref) error {
	for _, ref := range sd.Refs() {
		obj, err := sd.Get(ref)
		if err != nil {
			return err
		}
		replaceRefs(obj, replacements)
	}
	replaceRefs(sd.Trailer(), replacements)
	return nil
}

func replaceRefs(o sdf.Obj, replacements map[sdf.Ref]sdf.Ref) {
	switch t := o.(type) {
	case *sdf.Array:
		for i, v := range t.Items() {
			if r, ok := v.(sdf.Ref); ok {
				if n, found := replacements[r]; found {
					t.Set(i, n)
				}
				continue
			}
			replaceRefs(v, replacements)
		}
	case *sdf.Dict:
		for _, k := range t.Keys() {
			v := t.Get(k)
			if r, ok := v.(sdf.Ref); ok {
				if n, found := replacements[r]; found {
					t.Set(k, n)
				}
				continue
			}
			replaceRefs(v, replacements)
		}
	case *sdf.Stream:
		replaceRefs(t.Dict, replacements)
	}
}

// removeUnreachable frees every object the trailer does not lead to.
func removeUnreachable(sd *sdf.Doc) (int, error) {
	reach, err := sd.Reachable()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range sd.Refs() {
		if reach[r] {
			continue
		}
		if err := sd.Free(r); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
