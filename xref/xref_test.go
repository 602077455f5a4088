package xref

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/recovery"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

func buildSimplePDF() ([]byte, map[int]int64) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	offsets := make(map[int]int64)
	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 /Kids [] >>\nendobj\n")
	xrefOffset := buf.Len()
	var rows []Row
	rows = append(rows, Row{Num: 0, Entry: Entry{Type: Free, Gen: 65535}})
	for i := 1; i <= 2; i++ {
		rows = append(rows, Row{Num: i, Entry: Entry{Type: InUse, Offset: offsets[i]}})
	}
	WriteTable(buf, rows)
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), offsets
}

func TestResolverParsesXRefTable(t *testing.T) {
	pdf, offsets := buildSimplePDF()
	table, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(pdf), int64(len(pdf)))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for obj, off := range offsets {
		e, ok := table.Lookup(obj)
		if !ok || e.Type != InUse || e.Offset != off || e.Gen != 0 {
			t.Fatalf("object %d: got %+v", obj, e)
		}
	}
	if root, _ := table.Trailer.Get("Root").(sdf.Ref); root.Num != 1 {
		t.Fatalf("trailer root = %v", table.Trailer.Get("Root"))
	}
	if table.Repaired {
		t.Fatalf("intact file reported as repaired")
	}
}

func TestResolverFollowsPrevNewestWins(t *testing.T) {
	pdf, _ := buildSimplePDF()
	buf := bytes.NewBuffer(append([]byte(nil), pdf...))
	firstXRef, _ := FindStartXRef(bytes.NewReader(pdf), int64(len(pdf)))
	off := int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 /Kids [] /Updated true >>\nendobj\n")
	xrefOff := buf.Len()
	WriteTable(buf, []Row{{Num: 2, Entry: Entry{Type: InUse, Offset: off}}})
	fmt.Fprintf(buf, "trailer\n<< /Size 3 /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", firstXRef, xrefOff)

	data := buf.Bytes()
	table, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if e, _ := table.Lookup(2); e.Offset != off {
		t.Fatalf("object 2 offset %d, want newest %d", e.Offset, off)
	}
	if table.Sections != 2 || !table.Trailer.Has("Root") || table.Trailer.Has("Prev") {
		t.Fatalf("sections %d trailer %s", table.Sections, sdf.Bytes(table.Trailer))
	}
}

func TestResolverParsesXRefStream(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.5\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	xrefOff := buf.Len()
	rows := []Row{
		{Num: 0, Entry: Entry{Type: Free, Gen: 65535}},
		{Num: 1, Entry: Entry{Type: InUse, Offset: int64(off1)}},
		{Num: 2, Entry: Entry{Type: InUse, Offset: int64(xrefOff)}},
		{Num: 5, Entry: Entry{Type: Compressed, Stream: 4, Index: 3}},
	}
	raw, w, index := EncodeStream(rows)
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	zw.Write(raw)
	zw.Close()
	dict := sdf.NewDict()
	dict.PutName("Type", "XRef")
	dict.Set("W", w)
	dict.Set("Index", index)
	dict.PutInt("Size", 6)
	dict.Set("Root", sdf.Ref{Num: 1})
	dict.PutName("Filter", "FlateDecode")
	dict.PutInt("Length", int64(z.Len()))
	fmt.Fprintf(buf, "2 0 obj\n%s\nstream\n", sdf.Bytes(dict))
	buf.Write(z.Bytes())
	fmt.Fprintf(buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefOff)

	data := buf.Bytes()
	table, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if e, _ := table.Lookup(5); e.Type != Compressed || e.Stream != 4 || e.Index != 3 {
		t.Fatalf("compressed entry = %+v", e)
	}
	if e, _ := table.Lookup(1); e.Offset != int64(off1) {
		t.Fatalf("object 1 = %+v", e)
	}
	if !table.Streams || table.Trailer.Has("W") || !table.Trailer.Has("Root") {
		t.Fatalf("stream trailer not cleaned: %s", sdf.Bytes(table.Trailer))
	}
}

func TestResolverRepairsCorruptXRef(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n%%EOF\n")
	data := buf.Bytes()

	if _, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(data), int64(len(data))); err == nil {
		t.Fatal("expected error on missing startxref")
	}
	table, err := NewResolver(ResolverConfig{Recovery: recovery.NewLenientStrategy()}).Resolve(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if e, _ := table.Lookup(1); e.Offset != int64(off1) {
		t.Errorf("object 1 offset %d want %d", e.Offset, off1)
	}
	if e, _ := table.Lookup(2); e.Offset != int64(off2) {
		t.Errorf("object 2 offset %d want %d", e.Offset, off2)
	}
	if !table.Repaired {
		t.Errorf("table not marked repaired")
	}
}

func TestRepairFindsCatalogWithoutTrailer(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n999 ")
	buf.WriteString("7 0 obj\n<< /Type /Catalog >>\nendobj\n")
	data := buf.Bytes()
	table, err := Repair(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if root, _ := table.Trailer.Get("Root").(sdf.Ref); root.Num != 7 {
		t.Fatalf("root = %v", table.Trailer.Get("Root"))
	}
	if _, ok := table.Lookup(999); ok {
		t.Fatalf("garbage number taken as object")
	}
}

func TestWriteTableSubsections(t *testing.T) {
	rows := []Row{
		{Num: 0, Entry: Entry{Type: Free, Gen: 65535}},
		{Num: 3, Entry: Entry{Type: Free, Gen: 1}},
		{Num: 1, Entry: Entry{Type: InUse, Offset: 15}},
		{Num: 7, Entry: Entry{Type: InUse, Offset: 99, Gen: 2}},
	}
	FreeList(rows)
	var buf bytes.Buffer
	if err := WriteTable(&buf, rows); err != nil {
		t.Fatal(err)
	}
	want := "xref\n0 2\n0000000003 65535 f\r\n0000000015 00000 n\r\n3 1\n0000000000 00001 f\r\n7 1\n0000000099 00002 n\r\n"
	if buf.String() != want {
		t.Fatalf("got %q", buf.String())
	}
}
