package writer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/security"
)

// objWriter emits indirect objects, encrypting them on the way.
type objWriter struct {
	w            *countWriter
	hex          bool
	sec          security.Handler
	plain        sdf.Ref // the /Encrypt dictionary
	interceptors []Interceptor
}

func newObjWriter(w *countWriter, flags Flags, opts Options, plain sdf.Ref) *objWriter {
	return &objWriter{
		w:            w,
		hex:          flags.Has(HexStrings),
		sec:          opts.Security,
		plain:        plain,
		interceptors: opts.Interceptors,
	}
}

// write emits "n g obj ... endobj" for o, which the writer may modify.
// It returns the offset of the object.
func (ow *objWriter) write(ctx context.Context, ref sdf.Ref, o sdf.Obj) (int64, error) {
	b, err := ow.encode(ctx, ref, o)
	if err != nil {
		return 0, err
	}
	return ow.emit(ctx, ref, b)
}

// encode encrypts and serializes o without writing it.
func (ow *objWriter) encode(ctx context.Context, ref sdf.Ref, o sdf.Obj) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, ic := range ow.interceptors {
		if err := ic.BeforeWrite(ctx, ref, o); err != nil {
			return nil, fmt.Errorf("write %s: %w", ref, err)
		}
	}
	return ow.seal(ref, o)
}

// seal encrypts and serializes o.
func (ow *objWriter) seal(ref sdf.Ref, o sdf.Obj) ([]byte, error) {
	if ow.sec != nil && ref != ow.plain {
		if err := encryptObj(ow.sec, ref, o); err != nil {
			return nil, fmt.Errorf("encrypt %s: %w", ref, err)
		}
	}
	return serializeIndirect(ref, o, ow.hex), nil
}

// emit writes an encoded object and returns its offset.
func (ow *objWriter) emit(ctx context.Context, ref sdf.Ref, b []byte) (int64, error) {
	start := ow.w.n
	if _, err := ow.w.Write(b); err != nil {
		return 0, err
	}
	for _, ic := range ow.interceptors {
		if err := ic.AfterWrite(ctx, ref, int64(len(b))); err != nil {
			return 0, fmt.Errorf("write %s: %w", ref, err)
		}
	}
	return start, nil
}

func serializeIndirect(ref sdf.Ref, o sdf.Obj, hex bool) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	if st, ok := o.(*sdf.Stream); ok {
		st.Dict.PutInt("Length", int64(len(st.Data)))
	}
	_ = sdf.WriteObj(&buf, o, sdf.WriteOptions{HexStrings: hex})
	buf.WriteString("\nendobj\n")
	return buf.Bytes()
}

// encryptObj encrypts the strings and stream data of o in place.
// Signature /Contents and cross-reference streams stay plain.
func encryptObj(h security.Handler, ref sdf.Ref, o sdf.Obj) error {
	var walk func(o sdf.Obj) (sdf.Obj, error)
	walk = func(o sdf.Obj) (sdf.Obj, error) {
		switch v := o.(type) {
		case sdf.String:
			enc, err := h.Encrypt(ref, v.Value, security.DataClassString, "")
			if err != nil {
				return nil, err
			}
			return sdf.String{Value: enc, Hex: v.Hex}, nil
		case *sdf.Array:
			for i, it := range v.Items() {
				e, err := walk(it)
				if err != nil {
					return nil, err
				}
				v.Set(i, e)
			}
		case *sdf.Dict:
			sig := false
			if t, _ := v.NameValue("Type"); t == "Sig" || t == "DocTimeStamp" {
				sig = true
			}
			for _, k := range v.Keys() {
				if sig && k == "Contents" {
					continue
				}
				e, err := walk(v.Get(k))
				if err != nil {
					return nil, err
				}
				v.Set(k, e)
			}
		case *sdf.Stream:
			if t, _ := v.Dict.NameValue("Type"); t == "XRef" {
				return o, nil
			}
			if _, err := walk(v.Dict); err != nil {
				return nil, err
			}
			class, filter := security.ClassifyStream(v.Dict)
			enc, err := h.Encrypt(ref, v.Data, class, filter)
			if err != nil {
				return nil, err
			}
			v.Data = enc
		}
		return o, nil
	}
	_, err := walk(o)
	return err
}
