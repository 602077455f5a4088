package fonts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/math/fixed"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// TrueTypeFont is a simple (single-byte, WinAnsi) TrueType font with the
// whole font program embedded.
type TrueTypeFont struct {
	Name    string
	Ref     sdf.Ref
	widths  map[rune]float64
	missing float64
	ascent  float64
	descent float64
}

// LoadTrueType parses data and adds the font dictionary, descriptor and
// font file to doc.
func LoadTrueType(doc *sdf.Doc, data []byte) (*TrueTypeFont, error) {
	if len(data) == 0 {
		return nil, errors.New("fonts: empty TrueType data")
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fonts: parse TrueType: %w", err)
	}
	upem := f.FUnitsPerEm()
	if upem <= 0 {
		return nil, errors.New("fonts: invalid unitsPerEm")
	}
	name := strings.ReplaceAll(f.Name(truetype.NameIDPostscriptName), " ", "")
	if name == "" {
		name = "TrueType"
	}
	tt := &TrueTypeFont{Name: name, widths: make(map[rune]float64, 224)}
	widths := sdf.NewArray()
	for code := 32; code < 256; code++ {
		r := WinAnsi.Decode(byte(code))
		var w float64
		if r != 0 && f.Index(r) != 0 {
			w = advance1000(f, r, upem)
			tt.widths[r] = w
		}
		widths.Append(sdf.Int(int64(w + 0.5)))
	}
	tt.missing = advance1000(f, 0, upem)

	scale := fixed.Int26_6(upem)
	b := f.Bounds(scale)
	unit := func(v fixed.Int26_6) float64 { return float64(v) * 1000 / float64(upem) }
	tt.ascent, tt.descent = unit(b.Max.Y), unit(b.Min.Y)

	file := sdf.NewStream(nil, nil)
	if err := filters.SetStreamData(file, data, "FlateDecode"); err != nil {
		return nil, err
	}
	file.Dict.PutInt("Length1", int64(len(data)))
	fileRef := doc.CreateIndirect(file)

	desc, descRef := doc.CreateIndirectDict()
	desc.PutName("Type", "FontDescriptor")
	desc.PutName("FontName", name)
	desc.PutInt("Flags", 32) // nonsymbolic
	desc.PutRect("FontBBox", unit(b.Min.X), unit(b.Min.Y), unit(b.Max.X), unit(b.Max.Y))
	desc.PutInt("ItalicAngle", 0)
	desc.PutReal("Ascent", tt.ascent)
	desc.PutReal("Descent", tt.descent)
	desc.PutReal("CapHeight", tt.ascent)
	desc.PutInt("StemV", 80)
	desc.Set("FontFile2", fileRef)

	font, ref := doc.CreateIndirectDict()
	font.PutName("Type", "Font")
	font.PutName("Subtype", "TrueType")
	font.PutName("BaseFont", name)
	font.PutName("Encoding", "WinAnsiEncoding")
	font.PutInt("FirstChar", 32)
	font.PutInt("LastChar", 255)
	font.Set("Widths", widths)
	font.Set("FontDescriptor", descRef)
	tt.Ref = ref
	return tt, nil
}

func (t *TrueTypeFont) Advance(r rune) float64 {
	if w, ok := t.widths[r]; ok {
		return w
	}
	return t.missing
}

func (t *TrueTypeFont) Ascent() float64  { return t.ascent }
func (t *TrueTypeFont) Descent() float64 { return t.descent }

// Encode converts text to WinAnsi codes.
func (t *TrueTypeFont) Encode(s string) ([]byte, bool) { return WinAnsi.EncodeString(s) }

var _ Metrics = (*TrueTypeFont)(nil)
