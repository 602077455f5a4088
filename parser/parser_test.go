package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/recovery"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/security"
	"github.com/google/go-cmp/cmp"
)

// buildPDF lays out numbered objects (object i+1 is objs[i]) with a classic
// cross-reference table.
func buildPDF(objs []string, trailer string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f\r\n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&b, "trailer\n<</Size %d /Root 1 0 R %s>>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, trailer, xref)
	return b.Bytes()
}

var basicObjects = []string{
	"<</Type /Catalog /Pages 2 0 R>>",
	"<</Type /Pages /Kids [3 0 R] /Count 1>>",
	"<</Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R>>",
	"<</Length 5 0 R>>\nstream\nBT ET\nendstream",
	"5",
}

func open(t *testing.T, data []byte, opts Options) *Document {
	t.Helper()
	d, err := Open(context.Background(), bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return d
}

func TestOpenClassic(t *testing.T) {
	d := open(t, buildPDF(basicObjects, ""), Options{})
	if d.Header != "1.7" {
		t.Fatalf("header = %q", d.Header)
	}
	if typ, _ := d.Doc.Root().NameValue("Type"); typ != "Catalog" {
		t.Fatalf("root type = %q", typ)
	}
	pages := d.Doc.Dict(d.Doc.Root().Get("Pages"))
	if n, _ := d.Doc.Int(pages.Get("Count")); n != 1 {
		t.Fatalf("Count = %d", n)
	}
	st := d.Doc.Stream(sdf.Ref{Num: 4})
	if st == nil || string(st.Data) != "BT ET" {
		t.Fatalf("stream with indirect /Length = %#v", st)
	}
	if d.Security != nil || d.Linearization != nil {
		t.Fatalf("unexpected security or linearization")
	}
}

func TestOpenIncrementalUpdate(t *testing.T) {
	base := buildPDF(basicObjects, "")
	prev := bytes.LastIndex(base, []byte("\nxref\n")) + 1
	var b bytes.Buffer
	b.Write(base)
	off := b.Len()
	b.WriteString("2 0 obj\n<</Type /Pages /Kids [3 0 R] /Count 1 /Updated true>>\nendobj\n")
	x := b.Len()
	fmt.Fprintf(&b, "xref\n2 1\n%010d 00000 n\r\ntrailer\n<</Size 6 /Root 1 0 R /Prev %d>>\nstartxref\n%d\n%%%%EOF\n", off, prev, x)

	d := open(t, b.Bytes(), Options{})
	pages := d.Doc.Dict(sdf.Ref{Num: 2})
	if !pages.Has("Updated") {
		t.Fatalf("newest revision of object 2 not used: %v", pages.Keys())
	}
	if d.XRef.Sections != 2 {
		t.Fatalf("sections = %d", d.XRef.Sections)
	}
	if d.Doc.Trailer().Has("Prev") {
		t.Fatalf("merged trailer keeps /Prev")
	}
}

func TestOpenNotPDF(t *testing.T) {
	data := []byte(strings.Repeat("hello world ", 200))
	_, err := Open(context.Background(), bytes.NewReader(data), int64(len(data)), Options{})
	if !errors.Is(err, sdf.ErrNotPDF) {
		t.Fatalf("err = %v, want ErrNotPDF", err)
	}
}

func TestOpenLeadingGarbage(t *testing.T) {
	data := append([]byte("JUNK\r\n"), buildPDF(basicObjects, "")...)
	d := open(t, data, Options{})
	if d.Offset != 6 {
		t.Fatalf("offset = %d", d.Offset)
	}
	if d.Doc.Root() == nil {
		t.Fatalf("catalog not found")
	}
}

func TestOpenRepairsBrokenXRef(t *testing.T) {
	data := buildPDF(basicObjects, "")
	// Point startxref into the middle of an object.
	idx := bytes.LastIndex(data, []byte("startxref\n"))
	broken := append(append([]byte(nil), data[:idx]...), []byte("startxref\n17\n%%EOF\n")...)

	_, err := Open(context.Background(), bytes.NewReader(broken), int64(len(broken)), Options{Recovery: recovery.NewStrictStrategy()})
	if !errors.Is(err, sdf.ErrCorrupt) {
		t.Fatalf("strict open err = %v, want ErrCorrupt", err)
	}

	lenient := recovery.NewLenientStrategy()
	d := open(t, broken, Options{Recovery: lenient})
	if !d.XRef.Repaired {
		t.Fatalf("table not marked repaired")
	}
	if d.Doc.Stream(sdf.Ref{Num: 4}) == nil {
		t.Fatalf("content stream lost in repair")
	}
	if len(lenient.Problems()) == 0 {
		t.Fatalf("repair not reported to the strategy")
	}
}

func TestOpenMissingRoot(t *testing.T) {
	data := buildPDF([]string{"<</Type /Catalog>>"}, "")
	data = bytes.Replace(data, []byte("/Root 1 0 R"), []byte("/Rot 1 0 R "), 1)
	_, err := Open(context.Background(), bytes.NewReader(data), int64(len(data)), Options{Recovery: recovery.NewStrictStrategy()})
	if !errors.Is(err, sdf.ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func encryptedPDF(t *testing.T) []byte {
	t.Helper()
	id := []byte("0123456789ABCDEF")
	s := security.DefaultSettings()
	s.Algorithm = security.AES_128
	s.UserPassword = "user"
	s.OwnerPassword = "owner"
	h, err := security.NewStandard(s, id)
	if err != nil {
		t.Fatalf("NewStandard: %v", err)
	}
	title, err := h.Encrypt(sdf.Ref{Num: 3}, []byte("Secret Title"), security.DataClassString, "")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	objs := []string{
		"<</Type /Catalog /Pages 2 0 R>>",
		"<</Type /Pages /Kids [] /Count 0>>",
		"<</Title " + string(sdf.Bytes(sdf.HexStr(title))) + ">>",
		string(sdf.Bytes(h.EncryptDict())),
	}
	idHex := string(sdf.Bytes(sdf.HexStr(id)))
	return buildPDF(objs, "/Info 3 0 R /Encrypt 4 0 R /ID ["+idHex+" "+idHex+"]")
}

func TestOpenEncrypted(t *testing.T) {
	data := encryptedPDF(t)
	ctx := context.Background()

	d, err := Open(ctx, bytes.NewReader(data), int64(len(data)), Options{})
	if !errors.Is(err, sdf.ErrPasswordRequired) {
		t.Fatalf("no password: err = %v", err)
	}
	if d == nil || d.Security.State() != security.Locked {
		t.Fatalf("document should be returned locked")
	}
	if _, err := d.Doc.Get(sdf.Ref{Num: 3}); !errors.Is(err, sdf.ErrLocked) {
		t.Fatalf("load while locked: %v", err)
	}

	if _, err := Open(ctx, bytes.NewReader(data), int64(len(data)), Options{Password: "nope"}); !errors.Is(err, sdf.ErrInvalidPassword) {
		t.Fatalf("wrong password: err = %v", err)
	}

	if err := d.Unlock("owner"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	info := d.Doc.Dict(sdf.Ref{Num: 3})
	if got := d.Doc.TextValue(info.Get("Title")); got != "Secret Title" {
		t.Fatalf("Title = %q", got)
	}
	if !d.Security.IsOwner() {
		t.Fatalf("owner password should give owner rights")
	}

	u := open(t, data, Options{Password: "user"})
	if u.Security.IsOwner() {
		t.Fatalf("user password gave owner rights")
	}
}

func TestHintTableRoundTrip(t *testing.T) {
	want := &HintTable{
		FirstPageOffset: 920,
		Pages: []PageHint{
			{Objects: 5, Length: 1200, SharedRefs: []int{0, 2}, ContentOffset: 40, ContentLength: 800},
			{Objects: 3, Length: 700, SharedRefs: []int{}, ContentOffset: 30, ContentLength: 512},
			{Objects: 9, Length: 4100, SharedRefs: []int{1}, ContentOffset: 31, ContentLength: 3900},
		},
		FirstSharedObject: 17,
		FirstSharedOffset: 5000,
		SharedFirstPage:   2,
		Shared:            []SharedHint{{Length: 90, Objects: 1}, {Length: 300, Objects: 2}, {Length: 45, Objects: 1}},
	}
	data, s := want.Encode()
	got, err := ParseHints(data, s, len(want.Pages))
	if err != nil {
		t.Fatalf("ParseHints: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("hint table mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHintsTruncated(t *testing.T) {
	if _, err := ParseHints(make([]byte, 10), 10, 1); err == nil {
		t.Fatalf("expected error for truncated header")
	}
}
