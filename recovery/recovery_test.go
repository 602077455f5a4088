package recovery

import (
	"errors"
	"strings"
	"testing"
)

func TestStrictFails(t *testing.T) {
	a := NewStrictStrategy().OnError(nil, errors.New("boom"), Location{Component: "xref"})
	if a != ActionFail || a.Continue() {
		t.Fatalf("strict action = %v", a)
	}
}

func TestLenientRecords(t *testing.T) {
	s := NewLenientStrategy()
	a := s.OnError(nil, errors.New("missing >>"), Location{Component: "parser", ObjectNum: 4, ByteOffset: 120})
	if !a.Continue() {
		t.Fatalf("lenient should continue, got %v", a)
	}
	probs := s.Problems()
	if len(probs) != 1 {
		t.Fatalf("got %d problems", len(probs))
	}
	if !strings.Contains(probs[0].Error(), "object 4 0") {
		t.Errorf("problem %q lacks location", probs[0])
	}
}
