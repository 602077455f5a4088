package filters

import (
	"context"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// ExtractFilters reads /Filter and /DecodeParms from a stream dictionary,
// resolving indirect parameters through doc (which may be nil).
func ExtractFilters(doc *sdf.Doc, dict *sdf.Dict) ([]string, []*sdf.Dict) {
	resolve := func(o sdf.Obj) sdf.Obj {
		if doc == nil {
			return o
		}
		return doc.MustResolve(o)
	}
	var names []string
	switch f := resolve(dict.Get("Filter")).(type) {
	case sdf.Name:
		names = append(names, string(f))
	case *sdf.Array:
		for _, it := range f.Items() {
			if n, ok := resolve(it).(sdf.Name); ok {
				names = append(names, string(n))
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	params := make([]*sdf.Dict, len(names))
	parms := dict.Get("DecodeParms")
	if sdf.IsNull(parms) {
		parms = dict.Get("DP")
	}
	switch p := resolve(parms).(type) {
	case *sdf.Dict:
		params[0] = p
	case *sdf.Array:
		for i, it := range p.Items() {
			if i < len(params) {
				params[i], _ = resolve(it).(*sdf.Dict)
			}
		}
	}
	return names, params
}

// DecodeStream returns the fully decoded payload of s.
func DecodeStream(ctx context.Context, doc *sdf.Doc, s *sdf.Stream, limits Limits) ([]byte, error) {
	names, params := ExtractFilters(doc, s.Dict)
	if len(names) == 0 {
		return s.Data, nil
	}
	return NewPipeline(nil, limits).Decode(ctx, s.Data, names, params)
}

// DecodeStreamUntil decodes s but stops before the first filter named in
// stop, returning the remaining filter names. Image consumers use it to
// get at DCT data.
func DecodeStreamUntil(ctx context.Context, doc *sdf.Doc, s *sdf.Stream, limits Limits, stop ...string) ([]byte, []string, error) {
	names, params := ExtractFilters(doc, s.Dict)
	for i, n := range names {
		for _, st := range stop {
			if canonical(n) == st {
				data, err := NewPipeline(nil, limits).Decode(ctx, s.Data, names[:i], params[:i])
				return data, names[i:], err
			}
		}
	}
	data, err := NewPipeline(nil, limits).Decode(ctx, s.Data, names, params)
	return data, nil, err
}

// SetStreamData encodes data with the given filters and stores it in s,
// updating /Filter, /DecodeParms and /Length.
func SetStreamData(s *sdf.Stream, data []byte, filterNames ...string) error {
	encoded, err := NewPipeline(nil, Limits{}).Encode(data, filterNames, nil)
	if err != nil {
		return err
	}
	s.Data = encoded
	s.Dict.Delete("DecodeParms")
	switch len(filterNames) {
	case 0:
		s.Dict.Delete("Filter")
	case 1:
		s.Dict.Set("Filter", sdf.Name(filterNames[0]))
	default:
		arr := sdf.NewArray()
		for _, n := range filterNames {
			arr.Append(sdf.Name(n))
		}
		s.Dict.Set("Filter", arr)
	}
	s.Dict.PutInt("Length", int64(len(encoded)))
	return nil
}

// Compress flate-compresses an unfiltered stream in place. It reports
// whether the stream was changed.
func Compress(s *sdf.Stream) (bool, error) {
	if s.Dict.Has("Filter") || len(s.Data) < 32 {
		return false, nil
	}
	enc, err := flateCodec{}.Encode(s.Data, nil)
	if err != nil {
		return false, err
	}
	if len(enc) >= len(s.Data) {
		return false, nil
	}
	s.Data = enc
	s.Dict.Set("Filter", sdf.Name("FlateDecode"))
	s.Dict.PutInt("Length", int64(len(enc)))
	return true, nil
}
