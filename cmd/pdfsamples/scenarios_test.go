package main

import (
	"context"
	"os"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/recovery"
)

func TestScenarios(t *testing.T) {
	tests := []struct {
		name  string
		out   string
		pages int
	}{
		{"structure", "tagged.pdf", 0},
		{"imposition", "booklet.pdf", 0},
		{"replacer", "business_card.pdf", 1},
		{"rect", "rect.pdf", 0},
		{"memory", "memory.pdf", 0},
		{"unicode", "unicode.pdf", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &env{outDir: t.TempDir()}
			if err := scenarios[tt.name].run(context.Background(), e); err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			data, err := os.ReadFile(e.path(tt.out))
			if err != nil {
				t.Fatal(err)
			}
			doc, err := pdf.OpenBytes(data, pdf.OpenOptions{Recovery: recovery.NewStrictStrategy()})
			if err != nil {
				t.Fatalf("reopen %s: %v", tt.out, err)
			}
			if tt.pages > 0 && doc.PageCount() != tt.pages {
				t.Errorf("%s has %d pages, want %d", tt.out, doc.PageCount(), tt.pages)
			}
			if doc.PageCount() == 0 {
				t.Errorf("%s has no pages", tt.out)
			}
		})
	}
}

func TestStructureScenarioTags(t *testing.T) {
	e := &env{outDir: t.TempDir()}
	if err := structure(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	doc, err := pdf.Open(e.path("tagged.pdf"), pdf.OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()
	tree := doc.StructTree()
	if tree == nil {
		t.Fatal("no structure tree")
	}
	h := tree.FindByID("summary-heading")
	if h == nil || h.StandardType() != "H1" {
		t.Fatalf("heading = %v", h)
	}
	last := doc.Page(doc.PageCount())
	if p := tree.ParentElem(last, 1); p == nil || p.Type() != "P" {
		t.Errorf("owner of mcid 1 = %v, want P", p)
	}
}

func TestScenarioNamesSorted(t *testing.T) {
	names := scenarioNames()
	if len(names) != len(scenarios) {
		t.Fatalf("%d names for %d scenarios", len(names), len(scenarios))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}
