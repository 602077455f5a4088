// Package pdf is the document layer: pages, outlines, annotations, forms,
// page labels, optional content and embedded files over an sdf.Doc.
//
// A Doc is not safe for concurrent use. Goroutines other than the owner
// take the document lock (Lock, LockRead, TryLock) around their work.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/parser"
	"github.com/NityaNandPandey/AndroidPDF/recovery"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/security"
	"github.com/NityaNandPandey/AndroidPDF/writer"
)

// Error classes, shared with the sdf layer.
var (
	ErrNotPDF           = sdf.ErrNotPDF
	ErrPasswordRequired = sdf.ErrPasswordRequired
	ErrInvalidPassword  = sdf.ErrInvalidPassword
	ErrCorrupt          = sdf.ErrCorrupt
	ErrUnsupported      = sdf.ErrUnsupported
	ErrLocked           = sdf.ErrLocked
	ErrPermission       = sdf.ErrPermission
	ErrNotFound         = sdf.ErrNotFound
)

// Flags select save options; they combine with |.
type Flags = writer.Flags

// Save flags.
const (
	NoFlags       = writer.NoFlags
	Linearized    = writer.Linearized
	RemoveUnused  = writer.RemoveUnused
	HexStrings    = writer.HexStrings
	Compress      = writer.Compress
	ObjectStreams = writer.ObjectStreams
	Incremental   = writer.Incremental
)

// OpenOptions configure Open.
type OpenOptions struct {
	Password string
	// Limits zero fields take their security.DefaultLimits value.
	Limits   security.Limits
	Recovery recovery.Strategy
	Logger   observability.Logger
}

// Doc is a PDF document.
type Doc struct {
	sdf    *sdf.Doc
	parsed *parser.Document
	// sec is the handler applied when saving; nil writes plain output.
	sec    *security.Standard
	limits security.Limits
	log    observability.Logger
	closer io.Closer

	mu    sync.RWMutex
	pages []sdf.Ref // cached page order, nil when stale
}

// New returns an empty document with a catalog and an empty page tree.
func New() *Doc {
	s := sdf.NewDoc()
	pages, pagesRef := s.CreateIndirectDict()
	pages.PutName("Type", "Pages")
	pages.Set("Kids", sdf.NewArray())
	pages.PutInt("Count", 0)
	cat, catRef := s.CreateIndirectDict()
	cat.PutName("Type", "Catalog")
	cat.Set("Pages", pagesRef)
	s.Trailer().Set("Root", catRef)
	return &Doc{sdf: s, limits: security.DefaultLimits(), log: observability.NopLogger{}}
}

// Open opens the file at path. The file stays open until Close.
//
// Encrypted documents whose password does not authenticate are returned
// together with ErrPasswordRequired or ErrInvalidPassword; they can be
// unlocked later with InitStdSecurityHandler.
func Open(path string, opts OpenOptions) (*Doc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	d, err := OpenReader(f, info.Size(), opts)
	if d == nil {
		f.Close()
		return nil, err
	}
	d.closer = f
	return d, err
}

// OpenBytes opens a document held in memory.
func OpenBytes(data []byte, opts OpenOptions) (*Doc, error) {
	return OpenReader(bytes.NewReader(data), int64(len(data)), opts)
}

// OpenReader opens a document read through r.
func OpenReader(r io.ReaderAt, size int64, opts OpenOptions) (*Doc, error) {
	log := observability.OrNop(opts.Logger)
	pd, err := parser.Open(context.Background(), r, size, parser.Options{
		Password: opts.Password,
		Limits:   opts.Limits,
		Recovery: opts.Recovery,
		Logger:   log,
	})
	if pd == nil {
		return nil, err
	}
	limits := opts.Limits
	if limits == (security.Limits{}) {
		limits = security.DefaultLimits()
	}
	d := &Doc{sdf: pd.Doc, parsed: pd, sec: pd.Security, limits: limits, log: log}
	if err != nil {
		return d, err
	}
	d.sdf.MarkClean()
	return d, nil
}

// Close releases the file behind a document opened with Open.
func (d *Doc) Close() error {
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	return err
}

// SDF returns the object table.
func (d *Doc) SDF() *sdf.Doc { return d.sdf }

// Catalog returns the document catalog.
func (d *Doc) Catalog() *sdf.Dict { return d.sdf.Root() }

// IsLinearized reports whether the document was read from a linearized file.
func (d *Doc) IsLinearized() bool { return d.parsed != nil && d.parsed.Linearization != nil }

// Save writes the document to path.
func (d *Doc) Save(path string, flags Flags) error {
	data, err := d.SaveBytes(flags)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// SaveBytes returns the serialized document.
func (d *Doc) SaveBytes(flags Flags) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.SaveTo(context.Background(), &buf, flags); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveTo writes the document to w.
func (d *Doc) SaveTo(ctx context.Context, w io.Writer, flags Flags) error {
	return d.SaveWithOptions(ctx, w, flags, writer.Options{})
}

// SaveWithOptions writes the document with explicit writer options. The
// document's security handler is used unless opts sets one.
func (d *Doc) SaveWithOptions(ctx context.Context, w io.Writer, flags Flags, opts writer.Options) error {
	if d.sec != nil && d.sec.State() == security.Locked {
		return &sdf.Error{Op: "save", Err: sdf.ErrLocked}
	}
	if opts.Security == nil && d.sec != nil {
		opts.Security = d.sec
	}
	if opts.Logger == nil {
		opts.Logger = d.log
	}
	return writer.Save(ctx, d.sdf, w, flags, opts)
}

// Lock takes the document lock for writing.
func (d *Doc) Lock() { d.mu.Lock() }

func (d *Doc) Unlock() { d.mu.Unlock() }

// LockRead takes the document lock for reading.
func (d *Doc) LockRead() { d.mu.RLock() }

func (d *Doc) UnlockRead() { d.mu.RUnlock() }

// TryLock tries to take the write lock for up to timeout.
func (d *Doc) TryLock(timeout time.Duration) bool {
	return poll(timeout, d.mu.TryLock)
}

// TryLockRead tries to take the read lock for up to timeout.
func (d *Doc) TryLockRead(timeout time.Duration) bool {
	return poll(timeout, d.mu.TryRLock)
}

func poll(timeout time.Duration, try func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if try() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// decode returns the decoded payload of a stream.
func (d *Doc) decode(ctx context.Context, st *sdf.Stream) ([]byte, error) {
	return filters.DecodeStream(ctx, d.sdf, st, d.limits.Filters())
}

// DecodeStream returns the decoded payload of the stream o refers to.
func (d *Doc) DecodeStream(ctx context.Context, o sdf.Obj) ([]byte, error) {
	st := d.sdf.Stream(o)
	if st == nil {
		return nil, errors.New("pdf: not a stream")
	}
	return d.decode(ctx, st)
}

// Limits returns the resource limits the document was opened with.
func (d *Doc) Limits() security.Limits { return d.limits }

// Logger returns the document's logger.
func (d *Doc) Logger() observability.Logger { return observability.OrNop(d.log) }
