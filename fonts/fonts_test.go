package fonts_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-text/typesetting/language"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/fonts"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

func TestDetectScript(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect language.Script
	}{
		{"Latin", "Hello World", language.Latin},
		{"Arabic", "مرحبا بالعالم", language.Arabic},
		{"Hebrew", "שלום עולם", language.Hebrew},
		{"Cyrillic", "Привет мир", language.Cyrillic},
		{"Greek", "Γειά σου Κόσμε", language.Greek},
		{"Latin dominant", "Hello World مرحبا", language.Latin},
		{"Arabic dominant", "مرحبا بالعالم Hello", language.Arabic},
		{"Han", "你好世界", language.Han},
		{"Hangul", "안녕하세요", language.Hangul},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := fonts.DetectScript([]rune(tc.input)); got != tc.expect {
				t.Errorf("DetectScript(%q) = %v, want %v", tc.input, got, tc.expect)
			}
		})
	}
}

func TestStandardNames(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"Helvetica", "Helvetica", true},
		{"Helv", "Helvetica", true},
		{"ABCDEF+Arial,Bold", "Helvetica-Bold", true},
		{"ZaDb", "ZapfDingbats", true},
		{"Garamond", "", false},
	}
	for _, tc := range tests {
		got, ok := fonts.StandardName(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("StandardName(%q) = %q, %v", tc.in, got, ok)
		}
	}
}

func TestStandardWidths(t *testing.T) {
	helv, err := fonts.Standard("Helvetica")
	if err != nil {
		t.Fatal(err)
	}
	if w := helv.Advance('A'); w != 667 {
		t.Fatalf("Helvetica A = %v", w)
	}
	if w := fonts.Width(helv, "ii", 10); w != 4.44 {
		t.Fatalf("width of ii at 10pt = %v", w)
	}
	cour, _ := fonts.Standard("Courier-Bold")
	if cour.Advance('W') != 600 || cour.Advance('i') != 600 {
		t.Fatalf("Courier is monospaced")
	}
	times, _ := fonts.Standard("Times-Roman")
	if w := times.Advance('m'); w <= times.Advance('i') {
		t.Fatalf("Times m (%v) should be wider than i (%v)", w, times.Advance('i'))
	}
	if _, err := fonts.Standard("NoSuchFont"); err == nil {
		t.Fatalf("expected error for unknown font")
	}
}

func TestEncodingDifferences(t *testing.T) {
	enc := fonts.WinAnsi.WithDifferences(sdf.NewArray(sdf.Int(65), sdf.Name("Euro"), sdf.Name("uni263A")))
	if r := enc.Decode(65); r != '€' {
		t.Fatalf("code 65 = %q", r)
	}
	if r := enc.Decode(66); r != '☺' {
		t.Fatalf("code 66 = %q", r)
	}
	if r := fonts.WinAnsi.Decode(65); r != 'A' {
		t.Fatalf("WinAnsi was modified")
	}
	codes, ok := fonts.WinAnsi.EncodeString("é€☺")
	if ok || !bytes.Equal(codes, []byte{0xE9, 0x80, '?'}) {
		t.Fatalf("EncodeString = %x, %v", codes, ok)
	}
}

func TestLoadTrueType(t *testing.T) {
	doc := sdf.NewDoc()
	f, err := fonts.LoadTrueType(doc, goregular.TTF)
	if err != nil {
		t.Fatalf("LoadTrueType: %v", err)
	}
	d := doc.Dict(f.Ref)
	if st, _ := d.NameValue("Subtype"); st != "TrueType" {
		t.Fatalf("Subtype = %q", st)
	}
	widths := doc.Array(d.Get("Widths"))
	if widths.Len() != 224 {
		t.Fatalf("Widths has %d entries", widths.Len())
	}
	desc := doc.Dict(d.Get("FontDescriptor"))
	file := doc.Stream(desc.Get("FontFile2"))
	data, err := filters.DecodeStream(context.Background(), doc, file, filters.DefaultLimits())
	if err != nil || !bytes.Equal(data, goregular.TTF) {
		t.Fatalf("embedded font program differs (err %v)", err)
	}
	if f.Advance('W') <= f.Advance('i') {
		t.Fatalf("W should be wider than i")
	}
}

func TestUnicodeFontFlush(t *testing.T) {
	doc := sdf.NewDoc()
	f, err := fonts.LoadUnicode(doc, goregular.TTF)
	if err != nil {
		t.Fatalf("LoadUnicode: %v", err)
	}
	codes, glyphs := f.Encode("Héllo")
	if len(codes) != 2*len(glyphs) || len(glyphs) != 5 {
		t.Fatalf("codes %x for %d glyphs", codes, len(glyphs))
	}
	if err := f.Flush(doc); err != nil {
		t.Fatal(err)
	}
	font := doc.Dict(f.Ref)
	cmap := doc.Stream(font.Get("ToUnicode"))
	data, err := filters.DecodeStream(context.Background(), doc, cmap, filters.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("<00E9>")) {
		t.Fatalf("ToUnicode lacks é:\n%s", data)
	}
	cid := doc.Dict(doc.Array(font.Get("DescendantFonts")).At(0))
	if w := doc.Array(cid.Get("W")); w == nil || w.Len() == 0 {
		t.Fatalf("W array missing")
	}
}

func TestToUnicodeCMapSingleByte(t *testing.T) {
	out := string(fonts.ToUnicodeCMap(map[uint32][]rune{0x41: {'f', 'i'}}, 1))
	if !bytes.Contains([]byte(out), []byte("<41> <00660069>")) {
		t.Fatalf("cmap:\n%s", out)
	}
}
