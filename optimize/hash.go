package optimize

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

type digest [sha256.Size]byte

// hashObject digests o with dictionary keys in sorted order, so that
// dictionaries differing only in key order hash alike.
func hashObject(o sdf.Obj) digest {
	h := sha256.New()
	writeHash(h, o)
	var d digest
	h.Sum(d[:0])
	return d
}

func writeHash(h hash.Hash, o sdf.Obj) {
	if o == nil {
		fmt.Fprint(h, "null")
		return
	}
	fmt.Fprint(h, o.Type(), ":")
	switch t := o.(type) {
	case sdf.Name:
		fmt.Fprint(h, string(t))
	case sdf.Int:
		fmt.Fprint(h, int64(t))
	case sdf.Real:
		fmt.Fprint(h, sdf.FormatReal(float64(t)))
	case sdf.Bool:
		fmt.Fprint(h, bool(t))
	case sdf.String:
		fmt.Fprintf(h, "%d:", len(t.Value))
		h.Write(t.Value)
	case sdf.Ref:
		fmt.Fprintf(h, "%d %d R", t.Num, t.Gen)
	case *sdf.Array:
		fmt.Fprint(h, "[")
		for _, v := range t.Items() {
			writeHash(h, v)
			fmt.Fprint(h, ",")
		}
		fmt.Fprint(h, "]")
	case *sdf.Dict:
		fmt.Fprint(h, "<<")
		for _, k := range t.SortedKeys() {
			if k == "Length" {
				continue
			}
			fmt.Fprint(h, string(k), "=")
			writeHash(h, t.Get(k))
		}
		fmt.Fprint(h, ">>")
	case *sdf.Stream:
		writeHash(h, t.Dict)
		fmt.Fprintf(h, "%d:", len(t.Data))
		h.Write(t.Data)
	}
}
