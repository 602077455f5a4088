package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/recovery"
	"github.com/NityaNandPandey/AndroidPDF/scanner"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/security"
	"github.com/NityaNandPandey/AndroidPDF/xref"
)

// objectLoader reads objects on demand for an sdf.Doc. It is safe for
// concurrent use: every load scans with its own scanner.
type objectLoader struct {
	reader   io.ReaderAt
	table    *xref.Table
	limits   security.Limits
	recovery recovery.Strategy

	mu sync.Mutex
	// sec is nil for unencrypted files.
	sec *security.Standard
	// plain lists objects stored without encryption: the /Encrypt
	// dictionary and xref streams.
	plain  map[int]bool
	objstm map[int]*objectStream
}

type objectStream struct {
	objs map[int]sdf.Obj
	err  error
}

func newObjectLoader(r io.ReaderAt, t *xref.Table, limits security.Limits, rec recovery.Strategy) *objectLoader {
	l := &objectLoader{
		reader:   r,
		table:    t,
		limits:   limits,
		recovery: rec,
		plain:    make(map[int]bool),
		objstm:   make(map[int]*objectStream),
	}
	for _, n := range t.XRefStreams {
		l.plain[n] = true
	}
	return l
}

func (l *objectLoader) setSecurity(h *security.Standard, encryptNum int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sec = h
	if encryptNum > 0 {
		l.plain[encryptNum] = true
	}
}

func (l *objectLoader) scannerConfig() scanner.Config {
	return scanner.Config{
		MaxStringLength: l.limits.MaxStringLength,
		MaxDepth:        l.limits.MaxNesting,
		MaxStreamLength: l.limits.MaxStreamLength,
		WindowSize:      8 * 1024,
		Recovery:        l.recovery,
	}
}

// Load implements sdf.Loader.
func (l *objectLoader) Load(ref sdf.Ref) (sdf.Obj, error) {
	return l.load(ref, 0)
}

func (l *objectLoader) load(ref sdf.Ref, depth int) (sdf.Obj, error) {
	if depth > l.limits.MaxIndirectDepth {
		return nil, fmt.Errorf("%w: /Length chain deeper than %d", sdf.ErrCorrupt, l.limits.MaxIndirectDepth)
	}
	e, ok := l.table.Lookup(ref.Num)
	if !ok || e.Type == xref.Free {
		return sdf.Null{}, nil
	}
	switch e.Type {
	case xref.Compressed:
		if ref.Gen != 0 {
			return sdf.Null{}, nil
		}
		return l.loadCompressed(ref.Num, e, depth)
	default:
		if e.Gen != ref.Gen {
			return sdf.Null{}, nil
		}
		return l.loadAt(ref, e.Offset, depth)
	}
}

func (l *objectLoader) loadAt(ref sdf.Ref, offset int64, depth int) (sdf.Obj, error) {
	s := scanner.New(l.reader, l.scannerConfig())
	s.SetRecoveryLocation(recovery.Location{ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "loader"})
	if err := s.Seek(offset); err != nil {
		return nil, fmt.Errorf("%w: object %s at %d: %v", sdf.ErrCorrupt, ref, offset, err)
	}
	if err := l.readHeader(s, ref); err != nil {
		return nil, err
	}
	obj, err := s.ReadObject()
	if err != nil {
		return nil, fmt.Errorf("%w: object %s: %v", sdf.ErrCorrupt, ref, err)
	}
	if dict, ok := obj.(*sdf.Dict); ok {
		pos := s.Position()
		if tok, err := s.Next(); err == nil && tok.Type == scanner.TokenKeyword && tok.Str == "stream" {
			length := l.streamLength(dict, depth)
			data, err := s.ReadStream(length)
			if err != nil {
				return nil, fmt.Errorf("%w: stream %s: %v", sdf.ErrCorrupt, ref, err)
			}
			if length < 0 || int64(len(data)) != length {
				dict.PutInt("Length", int64(len(data)))
			}
			obj = sdf.NewStream(dict, data)
		} else {
			_ = s.Seek(pos)
		}
	}
	return l.decrypt(ref, obj)
}

// readHeader consumes "n g obj". A mismatched number is reported to the
// recovery strategy.
func (l *objectLoader) readHeader(s *scanner.Scanner, ref sdf.Ref) error {
	num, err := s.Next()
	if err != nil {
		return fmt.Errorf("%w: object %s: %v", sdf.ErrCorrupt, ref, err)
	}
	gen, err := s.Next()
	if err != nil {
		return fmt.Errorf("%w: object %s: %v", sdf.ErrCorrupt, ref, err)
	}
	kw, err := s.Next()
	if err != nil {
		return fmt.Errorf("%w: object %s: %v", sdf.ErrCorrupt, ref, err)
	}
	if num.Type != scanner.TokenNumber || gen.Type != scanner.TokenNumber || kw.Str != "obj" {
		return fmt.Errorf("%w: no object header for %s", sdf.ErrCorrupt, ref)
	}
	if int(num.Int) != ref.Num || int(gen.Int) != ref.Gen {
		err := fmt.Errorf("%w: header %d %d obj where %s expected", sdf.ErrCorrupt, num.Int, gen.Int, ref)
		if l.recovery == nil || !l.recovery.OnError(nil, err, recovery.Location{ByteOffset: num.Pos, ObjectNum: ref.Num, Component: "loader"}).Continue() {
			return err
		}
	}
	return nil
}

// streamLength resolves /Length, following an indirect reference. -1 means
// unknown.
func (l *objectLoader) streamLength(dict *sdf.Dict, depth int) int64 {
	switch v := dict.Get("Length").(type) {
	case sdf.Int:
		return int64(v)
	case sdf.Ref:
		o, err := l.load(v, depth+1)
		if err != nil {
			return -1
		}
		if n, ok := sdf.Integer(o); ok {
			return n
		}
	}
	return -1
}

func (l *objectLoader) loadCompressed(num int, e xref.Entry, depth int) (sdf.Obj, error) {
	l.mu.Lock()
	ostm, ok := l.objstm[e.Stream]
	l.mu.Unlock()
	if !ok {
		ostm = l.readObjectStream(e.Stream, depth)
		l.mu.Lock()
		l.objstm[e.Stream] = ostm
		l.mu.Unlock()
	}
	if ostm.err != nil {
		return nil, ostm.err
	}
	if o, ok := ostm.objs[num]; ok {
		return o, nil
	}
	return sdf.Null{}, nil
}

func (l *objectLoader) readObjectStream(num int, depth int) *objectStream {
	fail := func(err error) *objectStream {
		return &objectStream{err: fmt.Errorf("%w: object stream %d: %v", sdf.ErrCorrupt, num, err)}
	}
	e, ok := l.table.Lookup(num)
	if !ok || e.Type != xref.InUse {
		return fail(errors.New("not an in-use object"))
	}
	o, err := l.loadAt(sdf.Ref{Num: num, Gen: e.Gen}, e.Offset, depth)
	if err != nil {
		return &objectStream{err: err}
	}
	st, ok := o.(*sdf.Stream)
	if !ok {
		return fail(errors.New("not a stream"))
	}
	data, err := filters.DecodeStream(context.Background(), nil, st, l.limits.Filters())
	if err != nil {
		return fail(err)
	}
	n, _ := sdf.Integer(st.Dict.Get("N"))
	first, _ := sdf.Integer(st.Dict.Get("First"))
	if n < 0 || first < 0 || first > int64(len(data)) {
		return fail(errors.New("bad /N or /First"))
	}
	hs := scanner.NewBytes(data[:first], l.scannerConfig())
	type pair struct{ num, off int64 }
	pairs := make([]pair, 0, n)
	for int64(len(pairs)) < n {
		a, err := hs.Next()
		if err != nil {
			break
		}
		b, err := hs.Next()
		if err != nil {
			break
		}
		pairs = append(pairs, pair{a.Int, b.Int})
	}
	out := &objectStream{objs: make(map[int]sdf.Obj, len(pairs))}
	body := data[first:]
	for _, p := range pairs {
		if p.off < 0 || p.off > int64(len(body)) {
			continue
		}
		bs := scanner.NewBytes(body[p.off:], l.scannerConfig())
		obj, err := bs.ReadObject()
		if err != nil {
			if l.recovery == nil || !l.recovery.OnError(nil, err, recovery.Location{ObjectNum: int(p.num), Component: "objstm"}).Continue() {
				return fail(err)
			}
			continue
		}
		if _, dup := out.objs[int(p.num)]; !dup {
			out.objs[int(p.num)] = obj
		}
	}
	return out
}

// decrypt applies the security handler to the strings and stream data of
// a freshly read object.
func (l *objectLoader) decrypt(ref sdf.Ref, obj sdf.Obj) (sdf.Obj, error) {
	l.mu.Lock()
	sec, plain := l.sec, l.plain[ref.Num]
	l.mu.Unlock()
	if sec == nil || plain {
		return obj, nil
	}
	if sec.State() != security.Unlocked {
		return nil, fmt.Errorf("%w: object %s", sdf.ErrLocked, ref)
	}
	if st, ok := obj.(*sdf.Stream); ok {
		if typ, _ := st.Dict.NameValue("Type"); typ == "XRef" {
			return obj, nil
		}
	}
	return obj, decryptObj(sec, ref, obj)
}

func decryptObj(sec *security.Standard, ref sdf.Ref, obj sdf.Obj) error {
	var walk func(o sdf.Obj) (sdf.Obj, error)
	walk = func(o sdf.Obj) (sdf.Obj, error) {
		switch v := o.(type) {
		case sdf.String:
			dec, err := sec.Decrypt(ref, v.Value, security.DataClassString, "")
			if err != nil {
				return nil, err
			}
			return sdf.String{Value: dec, Hex: v.Hex}, nil
		case *sdf.Array:
			for i, it := range v.Items() {
				d, err := walk(it)
				if err != nil {
					return nil, err
				}
				v.Set(i, d)
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
				d, err := walk(v.Get(k))
				if err != nil {
					return nil, err
				}
				v.Set(k, d)
			}
		case *sdf.Stream:
			if _, err := walk(v.Dict); err != nil {
				return nil, err
			}
			class, filter := security.ClassifyStream(v.Dict)
			dec, err := sec.Decrypt(ref, v.Data, class, filter)
			if err != nil {
				return nil, err
			}
			v.Data = dec
			v.Dict.PutInt("Length", int64(len(dec)))
		}
		return o, nil
	}
	_, err := walk(obj)
	return err
}
