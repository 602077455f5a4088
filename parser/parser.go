// Package parser opens PDF files into an sdf.Doc whose objects load on
// demand.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/recovery"
	"github.com/NityaNandPandey/AndroidPDF/scanner"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/security"
	"github.com/NityaNandPandey/AndroidPDF/xref"
)

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

// Options controls how a file is opened.
type Options struct {
	Password string
	// Limits zero fields take their DefaultLimits value.
	Limits security.Limits
	// Recovery decides how damage is handled. Nil repairs what it can and
	// reports problems to Logger.
	Recovery recovery.Strategy
	Logger   observability.Logger
}

// Document is an opened file.
type Document struct {
	Doc *sdf.Doc
	// Security is nil for unencrypted files.
	Security *security.Standard
	XRef     *xref.Table
	// Header is the version from the %PDF- line.
	Header string
	// Offset is where the %PDF- marker starts. Leading garbage shifts
	// every offset in the file.
	Offset int64
	// Linearization is the linearization parameter dictionary, nil when
	// the file is not linearized.
	Linearization *sdf.Dict
	Hints         *HintTable

	loader *objectLoader
}

// Open reads the structure of a file. Objects are loaded lazily.
//
// An encrypted file whose password does not authenticate is still returned
// in the Locked state together with sdf.ErrPasswordRequired (no password
// given) or sdf.ErrInvalidPassword.
func Open(ctx context.Context, r io.ReaderAt, size int64, opts Options) (*Document, error) {
	log := observability.OrNop(opts.Logger)
	ctx, span := observability.StartSpan(ctx, observability.SpanOpen)
	defer span.Finish()

	limits := withDefaults(opts.Limits)
	if limits.MaxParseTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limits.MaxParseTime)
		defer cancel()
	}
	rec := opts.Recovery
	if rec == nil {
		rec = recovery.NewLoggingStrategy(log)
	}

	header, offset, err := readHeader(r, size)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	var src io.ReaderAt = r
	if offset > 0 {
		log.Warn("data before header", observability.Int64("offset", offset))
		src = io.NewSectionReader(r, offset, size-offset)
		size -= offset
	}

	res := xref.NewResolver(xref.ResolverConfig{
		MaxXRefDepth: limits.MaxXRefDepth,
		Recovery:     rec,
		Limits:       limits.Filters(),
	})
	table, err := res.Resolve(ctx, src, size)
	if err != nil {
		span.SetError(err)
		return nil, wrapCorrupt("read cross-reference", err)
	}
	if table.Repaired {
		log.Warn("cross-reference table rebuilt", observability.Int("objects", len(table.Entries)))
	}

	loader := newObjectLoader(src, table, limits, rec)
	doc := sdf.NewLoadedDoc(table.Trailer, loader)
	doc.Version = header
	doc.MaxDepth = limits.MaxIndirectDepth
	doc.Source = &sdf.Source{R: src, Size: size, StartXRef: table.StartXRef}
	for num, e := range table.Entries {
		if num == 0 {
			continue
		}
		doc.AddEntry(num, e.Gen, e.Type != xref.Free)
	}
	out := &Document{Doc: doc, XRef: table, Header: header, Offset: offset, loader: loader}

	if err := out.setupSecurity(opts.Password); err != nil {
		if out.Security != nil && out.Security.State() == security.Locked {
			log.Debug("document locked", observability.Err(err))
			return out, err
		}
		span.SetError(err)
		return nil, err
	}

	if _, ok := doc.Trailer().Get("Root").(sdf.Ref); !ok {
		return nil, sdf.Errorf("open", sdf.ErrCorrupt, "trailer has no /Root reference")
	}
	root, err := doc.Resolve(doc.Trailer().Get("Root"))
	if err != nil {
		return nil, wrapCorrupt("load catalog", err)
	}
	if _, ok := root.(*sdf.Dict); !ok {
		return nil, sdf.Errorf("open", sdf.ErrCorrupt, "catalog is %s, not a dictionary", root.Type())
	}

	out.readLinearization(ctx)
	log.Debug("opened",
		observability.String("version", header),
		observability.Int("objects", len(table.Entries)),
		observability.Bool("encrypted", out.Security != nil),
		observability.Bool("linearized", out.Linearization != nil))
	return out, nil
}

// Unlock authenticates a Locked document.
func (d *Document) Unlock(password string) error {
	if d.Security == nil {
		return nil
	}
	return d.Security.Authenticate(password)
}

func (d *Document) setupSecurity(password string) error {
	trailer := d.Doc.Trailer()
	encObj := trailer.Get("Encrypt")
	if sdf.IsNull(encObj) {
		return nil
	}
	encNum := 0
	if ref, ok := encObj.(sdf.Ref); ok {
		encNum = ref.Num
		// Read the dictionary before a handler exists so it stays plain.
		d.loader.setSecurity(nil, encNum)
	}
	enc := d.Doc.Dict(encObj)
	if enc == nil {
		return sdf.Errorf("open", sdf.ErrCorrupt, "/Encrypt is not a dictionary")
	}
	h, err := security.Open(enc, security.FileID(trailer))
	if err != nil {
		return &sdf.Error{Op: "open security handler", Err: err}
	}
	d.Security = h
	d.loader.setSecurity(h, encNum)
	if err := h.Authenticate(password); err != nil {
		if !errors.Is(err, sdf.ErrInvalidPassword) {
			return err
		}
		if password == "" {
			return sdf.ErrPasswordRequired
		}
		return sdf.ErrInvalidPassword
	}
	return nil
}

func readHeader(r io.ReaderAt, size int64) (string, int64, error) {
	n := int64(headerWindow)
	if size < n {
		n = size
	}
	buf := make([]byte, n)
	m, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", 0, &sdf.Error{Op: "read header", Err: err}
	}
	buf = buf[:m]
	idx := bytes.Index(buf, []byte("%PDF-"))
	if idx < 0 {
		return "", 0, sdf.ErrNotPDF
	}
	v := buf[idx+5:]
	end := 0
	for end < len(v) && (v[end] == '.' || (v[end] >= '0' && v[end] <= '9')) {
		end++
	}
	version := string(v[:end])
	if version == "" {
		version = "1.4"
	}
	return version, int64(idx), nil
}

// readLinearization looks for a linearization parameter dictionary as the
// first object of the file. Problems leave the document unlinearized.
func (d *Document) readLinearization(ctx context.Context) {
	s := scanner.New(d.Doc.Source.R, d.loader.scannerConfig())
	var nums []int64
	found := false
	for i := 0; i < 8 && !found; i++ {
		tok, err := s.Next()
		if err != nil {
			return
		}
		if tok.Type == scanner.TokenNumber && tok.IsInt {
			nums = append(nums, tok.Int)
			continue
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "obj" && len(nums) >= 2 {
			found = true
			continue
		}
		nums = nums[:0]
	}
	if !found {
		return
	}
	ref := sdf.Ref{Num: int(nums[len(nums)-2]), Gen: int(nums[len(nums)-1])}
	o, err := d.Doc.Get(ref)
	if err != nil {
		return
	}
	dict, ok := o.(*sdf.Dict)
	if !ok || !dict.Has("Linearized") {
		return
	}
	// A stale dictionary after an incremental update no longer describes
	// the file.
	if l, ok := sdf.Integer(dict.Get("L")); ok && l != d.Doc.Source.Size {
		return
	}
	d.Linearization = dict
	d.Hints, _ = d.readHints(ctx, dict)
}

func (d *Document) readHints(ctx context.Context, lin *sdf.Dict) (*HintTable, error) {
	h, ok := sdf.Numbers(d.Doc.Array(lin.Get("H")))
	if !ok || len(h) < 2 {
		return nil, errors.New("missing /H")
	}
	s := scanner.New(d.Doc.Source.R, d.loader.scannerConfig())
	if err := s.Seek(int64(h[0])); err != nil {
		return nil, err
	}
	var ref sdf.Ref
	num, err := s.Next()
	if err != nil {
		return nil, err
	}
	gen, err := s.Next()
	if err != nil {
		return nil, err
	}
	ref.Num, ref.Gen = int(num.Int), int(gen.Int)
	st := d.Doc.Stream(ref)
	if st == nil {
		return nil, fmt.Errorf("hint stream %s missing", ref)
	}
	n, _ := sdf.Integer(lin.Get("N"))
	return DecodeHintStream(ctx, st, int(n))
}

func withDefaults(l security.Limits) security.Limits {
	def := security.DefaultLimits()
	if l.MaxDecompressedSize <= 0 {
		l.MaxDecompressedSize = def.MaxDecompressedSize
	}
	if l.MaxIndirectDepth <= 0 {
		l.MaxIndirectDepth = def.MaxIndirectDepth
	}
	if l.MaxXRefDepth <= 0 {
		l.MaxXRefDepth = def.MaxXRefDepth
	}
	if l.MaxXObjectDepth <= 0 {
		l.MaxXObjectDepth = def.MaxXObjectDepth
	}
	if l.MaxNesting <= 0 {
		l.MaxNesting = def.MaxNesting
	}
	if l.MaxStringLength <= 0 {
		l.MaxStringLength = def.MaxStringLength
	}
	if l.MaxStreamLength <= 0 {
		l.MaxStreamLength = def.MaxStreamLength
	}
	if l.MaxDecodeTime <= 0 {
		l.MaxDecodeTime = def.MaxDecodeTime
	}
	if l.MaxParseTime <= 0 {
		l.MaxParseTime = def.MaxParseTime
	}
	return l
}

func wrapCorrupt(op string, err error) error {
	if errors.Is(err, sdf.ErrCorrupt) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &sdf.Error{Op: op, Err: err}
	}
	return &sdf.Error{Op: op, Err: fmt.Errorf("%w: %v", sdf.ErrCorrupt, err)}
}
