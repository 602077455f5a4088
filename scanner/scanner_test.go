package scanner

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/recovery"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/google/go-cmp/cmp"
)

func nextToken(t *testing.T, s *Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func TestScanner_BasicTokens(t *testing.T) {
	s := New(bytes.NewReader([]byte("%PDF-1.7\n1 0 obj\n<< /Na#20me /Value /N [1 -2.5 .5] /F true /X null >>\nendobj")), Config{WindowSize: 7})

	if tok := nextToken(t, s); tok.Type != TokenNumber || !tok.IsInt || tok.Int != 1 {
		t.Fatalf("expected number 1, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenNumber || tok.Int != 0 {
		t.Fatalf("expected number 0, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "obj" {
		t.Fatalf("expected obj, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenDict {
		t.Fatalf("expected <<, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenName || tok.Str != "Na me" {
		t.Fatalf("expected escaped name, got %+v", tok)
	}
	nextToken(t, s)
	nextToken(t, s)
	if tok := nextToken(t, s); tok.Type != TokenArray {
		t.Fatalf("expected [, got %+v", tok)
	}
	nextToken(t, s)
	if tok := nextToken(t, s); tok.IsInt || tok.Float != -2.5 {
		t.Fatalf("expected -2.5, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Float != 0.5 {
		t.Fatalf("expected .5, got %+v", tok)
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		in   string
		want string
		hex  bool
	}{
		{`(a\(b\)c)`, "a(b)c", false},
		{`(nested (parens) ok)`, "nested (parens) ok", false},
		{`(\101\102\1)`, "AB\x01", false},
		{"(line\\\ncontinued)", "linecontinued", false},
		{"(cr\r\nlf)", "cr\nlf", false},
		{`<48 65 6C6C 6F>`, "Hello", true},
		{`<414>`, "A@", true},
	}
	for _, tt := range tests {
		tok := nextToken(t, NewBytes([]byte(tt.in), Config{}))
		if string(tok.Bytes) != tt.want || tok.Hex != tt.hex {
			t.Errorf("%q: got %q hex=%v", tt.in, tok.Bytes, tok.Hex)
		}
	}
}

func TestReadObject(t *testing.T) {
	s := NewBytes([]byte(`<< /Type /Page /Parent 3 0 R /Kids [1 0 R 2 0 R] /Box [0 0 612 792] /N 5 /S (x) >>`), Config{})
	o, err := s.ReadObject()
	if err != nil {
		t.Fatal(err)
	}
	want := sdf.NewDict()
	want.PutName("Type", "Page")
	want.Set("Parent", sdf.Ref{Num: 3})
	want.Set("Kids", sdf.NewArray(sdf.Ref{Num: 1}, sdf.Ref{Num: 2}))
	want.Set("Box", sdf.NewArray(sdf.Int(0), sdf.Int(0), sdf.Int(612), sdf.Int(792)))
	want.PutInt("N", 5)
	want.PutString("S", "x")
	if string(sdf.Bytes(o)) != string(sdf.Bytes(want)) {
		t.Fatalf("got %s\nwant %s", sdf.Bytes(o), sdf.Bytes(want))
	}
}

func TestContentModeKeepsOperands(t *testing.T) {
	s := NewBytes([]byte("1 0 0 RG 10 20 m"), Config{Content: true})
	var got []string
	for {
		o, err := s.ReadObject()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if kw, ok := o.(Keyword); ok {
			got = append(got, string(kw)+":"+o.Type())
			continue
		}
		got = append(got, string(sdf.Bytes(o))+":"+o.Type())
	}
	want := []string{"1:integer", "0:integer", "0:integer", "RG:keyword", "10:integer", "20:integer", "m:keyword"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch:\n%s", diff)
	}
}

func TestReadStream(t *testing.T) {
	data := "stream\r\nabc\nendstream endobj"
	s := NewBytes([]byte(data), Config{})
	if tok := nextToken(t, s); tok.Str != "stream" {
		t.Fatalf("got %+v", tok)
	}
	payload, err := s.ReadStream(4)
	if err != nil || string(payload) != "abc\n" {
		t.Fatalf("payload %q err %v", payload, err)
	}
	if tok := nextToken(t, s); tok.Str != "endobj" {
		t.Fatalf("expected endobj after stream, got %+v", tok)
	}
}

func TestReadStreamWrongLength(t *testing.T) {
	data := "stream\nabcdef\nendstream"
	strict := NewBytes([]byte(data), Config{Recovery: recovery.NewStrictStrategy()})
	strict.Next()
	if _, err := strict.ReadStream(2); err == nil {
		t.Fatalf("strict scanner accepted a bad /Length")
	}
	lenient := NewBytes([]byte(data), Config{Recovery: recovery.NewLenientStrategy()})
	lenient.Next()
	payload, err := lenient.ReadStream(2)
	if err != nil || string(payload) != "abcdef" {
		t.Fatalf("payload %q err %v", payload, err)
	}
}

func TestInlineImage(t *testing.T) {
	s := NewBytes([]byte("BI /W 2 /H 1 /BPC 8 /CS /G ID \x00EI\xff\nEI Q"), Config{Content: true})
	for {
		o, err := s.ReadObject()
		if err != nil {
			t.Fatal(err)
		}
		if o == Keyword("ID") {
			break
		}
	}
	data, err := s.ReadInlineImage()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "\x00EI\xff" {
		t.Fatalf("inline data %q", data)
	}
	if o, _ := s.ReadObject(); o != Keyword("Q") {
		t.Fatalf("expected Q after EI, got %v", o)
	}
}
