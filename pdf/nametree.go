package pdf

import (
	"sort"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

type treeEntry struct {
	key string
	num int64
	val sdf.Obj
}

// treeEntries collects the leaves of a name tree (leaf key "Names") or a
// number tree (leaf key "Nums"), sorted by key.
func (d *Doc) treeEntries(root sdf.Obj, leafKey sdf.Name) []treeEntry {
	var out []treeEntry
	seen := make(map[*sdf.Dict]bool)
	var walk func(o sdf.Obj, depth int)
	walk = func(o sdf.Obj, depth int) {
		node := d.sdf.Dict(o)
		if node == nil || seen[node] || depth > maxTreeDepth {
			return
		}
		seen[node] = true
		if leaf := d.sdf.Array(node.Get(leafKey)); leaf != nil {
			for i := 0; i+1 < leaf.Len(); i += 2 {
				e := treeEntry{val: leaf.At(i + 1)}
				if leafKey == "Nums" {
					n, ok := d.sdf.Int(leaf.At(i))
					if !ok {
						continue
					}
					e.num = n
				} else {
					s, ok := d.sdf.StringValue(leaf.At(i))
					if !ok {
						continue
					}
					e.key = string(s.Value)
				}
				out = append(out, e)
			}
		}
		if kids := d.sdf.Array(node.Get("Kids")); kids != nil {
			for _, k := range kids.Items() {
				walk(k, depth+1)
			}
		}
	}
	walk(root, 0)
	sort.SliceStable(out, func(i, j int) bool {
		if leafKey == "Nums" {
			return out[i].num < out[j].num
		}
		return out[i].key < out[j].key
	})
	return out
}

func (d *Doc) nameTreeLookup(root sdf.Obj, key string) (sdf.Obj, bool) {
	for _, e := range d.treeEntries(root, "Names") {
		if e.key == key {
			return e.val, true
		}
	}
	return nil, false
}

// writeTree replaces the tree stored under holder[key] with a single leaf
// node holding entries. An empty entry list removes the tree.
func (d *Doc) writeTree(holder *sdf.Dict, key, leafKey sdf.Name, entries []treeEntry) {
	if len(entries) == 0 {
		holder.Delete(key)
		return
	}
	leaf := sdf.NewArray()
	for _, e := range entries {
		if leafKey == "Nums" {
			leaf.Append(sdf.Int(e.num), e.val)
		} else {
			leaf.Append(sdf.Str(e.key), e.val)
		}
	}
	node := d.sdf.Dict(holder.Get(key))
	if node == nil {
		var ref sdf.Ref
		node, ref = d.sdf.CreateIndirectDict()
		holder.Set(key, ref)
	}
	for _, k := range node.Keys() {
		node.Delete(k)
	}
	node.Set(leafKey, leaf)
}

// nameTreePut sets key in the name tree under holder[treeKey]; a nil val
// removes it.
func (d *Doc) nameTreePut(holder *sdf.Dict, treeKey sdf.Name, key string, val sdf.Obj) {
	entries := d.treeEntries(holder.Get(treeKey), "Names")
	out := entries[:0]
	for _, e := range entries {
		if e.key != key {
			out = append(out, e)
		}
	}
	if val != nil {
		out = append(out, treeEntry{key: key, val: val})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].key < out[j].key })
	d.writeTree(holder, treeKey, "Names", out)
}

// namesDict returns the catalog's /Names dictionary, creating it when
// create is set.
func (d *Doc) namesDict(create bool) *sdf.Dict {
	cat := d.sdf.Root()
	if cat == nil {
		return nil
	}
	if n := d.sdf.Dict(cat.Get("Names")); n != nil {
		return n
	}
	if !create {
		return nil
	}
	n, ref := d.sdf.CreateIndirectDict()
	cat.Set("Names", ref)
	return n
}
