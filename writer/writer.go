// Package writer serializes an sdf.Doc as a PDF file.
package writer

import (
	"bufio"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/security"
)

// Flags select how a document is saved. They combine with |.
type Flags uint

const (
	// Linearized orders the file for page-at-a-time display and adds a
	// linearization dictionary and hint stream.
	Linearized Flags = 1 << iota
	// RemoveUnused drops objects unreachable from the trailer and numbers
	// the rest compactly.
	RemoveUnused
	// HexStrings writes every string in hexadecimal form.
	HexStrings
	// Compress Flate-encodes streams that have no filter.
	Compress
	// ObjectStreams packs non-stream objects into object streams and
	// writes a cross-reference stream. Ignored with Linearized.
	ObjectStreams
	// Incremental appends changed objects after the original bytes.
	Incremental
)

// NoFlags rewrites the whole file with a classic cross-reference table.
const NoFlags Flags = 0

func (f Flags) Has(x Flags) bool { return f&x != 0 }

func (f Flags) String() string {
	if f == NoFlags {
		return "NoFlags"
	}
	names := []string{"Linearized", "RemoveUnused", "HexStrings", "Compress", "ObjectStreams", "Incremental"}
	var parts []string
	for i, n := range names {
		if f&(1<<uint(i)) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}

// Interceptor observes indirect objects as they are written.
type Interceptor interface {
	BeforeWrite(ctx context.Context, ref sdf.Ref, obj sdf.Obj) error
	AfterWrite(ctx context.Context, ref sdf.Ref, bytesWritten int64) error
}

// Options configure Save.
type Options struct {
	// Version overrides the header version. Features that need a newer
	// version raise it.
	Version string
	// Security encrypts the output. The handler must be unlocked and
	// built for the trailer's file identifier (see EnsureFileID).
	Security security.Handler
	// Deterministic derives the second file identifier from the content
	// instead of randomness.
	Deterministic bool
	Logger        observability.Logger
	Interceptors  []Interceptor
}

// Save writes doc to w.
func Save(ctx context.Context, doc *sdf.Doc, w io.Writer, flags Flags, opts Options) (err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanSave)
	span.SetTag("flags", flags.String())
	defer func() {
		span.SetError(err)
		span.Finish()
	}()
	if doc.Root() == nil {
		return sdf.Errorf("save", sdf.ErrCorrupt, "document has no catalog")
	}
	if opts.Security != nil && opts.Security.State() == security.Locked {
		return &sdf.Error{Op: "save", Err: sdf.ErrLocked}
	}
	log := observability.OrNop(opts.Logger)
	out := newCountWriter(w)
	if flags.Has(Incremental) {
		if flags.Has(Linearized) {
			return sdf.Errorf("save", sdf.ErrUnsupported, "incremental save cannot linearize")
		}
		err = saveIncremental(ctx, doc, out, flags, opts)
	} else {
		var p *plan
		p, err = newPlan(ctx, doc, flags, opts)
		if err != nil {
			return err
		}
		if flags.Has(Linearized) {
			err = writeLinearized(ctx, p, out)
		} else {
			err = writeFull(ctx, p, out)
		}
	}
	if err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return err
	}
	log.Debug("saved", observability.String("flags", flags.String()), observability.Int64("bytes", out.n))
	return nil
}

// EnsureFileID gives the trailer an /ID if it has none and returns its
// first element, the identifier security handlers are keyed on.
func EnsureFileID(doc *sdf.Doc) []byte {
	if id := security.FileID(doc.Trailer()); len(id) > 0 {
		return id
	}
	id := security.NewFileID(sdf.Bytes(doc.Trailer()))
	doc.Trailer().Set("ID", sdf.NewArray(sdf.HexStr(id), sdf.HexStr(id)))
	return id
}

// countWriter tracks the output offset. The buffer is a named field so
// io.Copy cannot bypass the count through bufio.Writer.ReadFrom.
type countWriter struct {
	buf *bufio.Writer
	n   int64
}

func newCountWriter(w io.Writer) *countWriter {
	return &countWriter{buf: bufio.NewWriterSize(w, 64*1024)}
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.buf.Write(p)
	c.n += int64(n)
	return n, err
}

func (c *countWriter) WriteString(s string) (int, error) {
	n, err := c.buf.WriteString(s)
	c.n += int64(n)
	return n, err
}

func (c *countWriter) Flush() error { return c.buf.Flush() }

func header(version string) string {
	return "%PDF-" + version + "\n%\xE2\xE3\xCF\xD3\n"
}

// versionAtLeast reports whether v >= min for "major.minor" versions.
func versionAtLeast(v, min string) bool {
	parse := func(s string) (int, int) {
		maj, minor, _ := strings.Cut(s, ".")
		a, _ := strconv.Atoi(maj)
		b, _ := strconv.Atoi(minor)
		return a, b
	}
	va, vb := parse(v)
	ma, mb := parse(min)
	return va > ma || (va == ma && vb >= mb)
}

func raiseVersion(v, min string) string {
	if versionAtLeast(v, min) {
		return v
	}
	return min
}

// secondID builds the second /ID element for a rewritten file.
func secondID(seed []byte, deterministic bool) []byte {
	if deterministic {
		sum := md5.Sum(seed)
		return sum[:]
	}
	return security.NewFileID(seed)
}

var errNoSource = errors.New("incremental save needs a document read from a file")

func writeTrailerTail(w *countWriter, startxref int64) {
	fmt.Fprintf(w, "startxref\n%d\n%%%%EOF\n", startxref)
}
