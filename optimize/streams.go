package optimize

import (
	"context"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// recodable filters are replaced by Flate. Lossy and image-specific
// filters are left alone.
var recodable = map[string]bool{
	"ASCIIHexDecode":  true,
	"ASCII85Decode":   true,
	"LZWDecode":       true,
	"RunLengthDecode": true,
}

// compressStreams Flate-encodes uncompressed streams and streams whose
// filters compress poorly. A stream is only rewritten when the result is
// smaller.
func (o *Optimizer) compressStreams(ctx context.Context, doc *pdf.Doc) (int, error) {
	sd := doc.SDF()
	n := 0
	for _, ref := range sd.Refs() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		obj, err := sd.Get(ref)
		if err != nil {
			continue
		}
		st, ok := obj.(*sdf.Stream)
		if !ok || !compressible(sd, st) {
			continue
		}
		data, err := doc.DecodeStream(ctx, st)
		if err != nil {
			o.log.Debug("optimize: stream not decodable", observability.Int("obj", ref.Num), observability.Err(err))
			continue
		}
		before := len(st.Data)
		next := sdf.NewStream(sdf.Copy(st.Dict).(*sdf.Dict), nil)
		if err := filters.SetStreamData(next, data, "FlateDecode"); err != nil {
			return n, err
		}
		if len(next.Data) >= before {
			continue
		}
		st.Data, st.Dict = next.Data, next.Dict
		if err := sd.Set(ref, st); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func compressible(sd *sdf.Doc, st *sdf.Stream) bool {
	typ, _ := sd.Name(st.Dict.Get("Type"))
	if typ == "XRef" || typ == "Metadata" {
		return false
	}
	if st.Dict.Has("F") {
		return false
	}
	names, _ := filters.ExtractFilters(sd, st.Dict)
	for _, f := range names {
		if !recodable[f] {
			return false
		}
	}
	return true
}
