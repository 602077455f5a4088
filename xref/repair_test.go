package xref

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/recovery"
)

func TestRepairSkipsGarbagePrefix(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n999 ")
	off := int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	buf.WriteString("trailer\n<< /Size 2 /Root 1 0 R >>\n%%EOF\n")
	data := buf.Bytes()

	table, err := Repair(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if e, ok := table.Lookup(1); !ok || e.Offset != off {
		t.Errorf("object 1 = %+v, %v; want offset %d", e, ok, off)
	}
	if !table.Repaired {
		t.Error("table not marked repaired")
	}
}

func TestRepairLaterDefinitionWins(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n1 0 obj\n<< /Type /Catalog /V 1 >>\nendobj\n")
	off := int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /V 2 >>\nendobj\n")
	buf.WriteString("trailer\n<< /Size 2 /Root 1 0 R >>\n%%EOF\n")
	data := buf.Bytes()

	table, err := Repair(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if e, _ := table.Lookup(1); e.Offset != off {
		t.Errorf("object 1 offset = %d, want %d", e.Offset, off)
	}
}

func TestResolverStrictDoesNotRepair(t *testing.T) {
	data := []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
	cfg := ResolverConfig{Recovery: recovery.NewStrictStrategy()}
	if _, err := NewResolver(cfg).Resolve(context.Background(), bytes.NewReader(data), int64(len(data))); err == nil {
		t.Fatal("strict resolver accepted a file without startxref")
	}
}

func TestRepairCancelled(t *testing.T) {
	data := []byte("%PDF-1.7\n1 0 obj\n<< >>\nendobj\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Repair(ctx, bytes.NewReader(data), int64(len(data))); !errors.Is(err, context.Canceled) {
		t.Fatalf("Repair = %v, want context.Canceled", err)
	}
}
