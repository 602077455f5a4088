package content

import (
	"context"
	"strings"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/fonts"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Glyph is one character code of a shown string.
type Glyph struct {
	Code    uint32
	Bytes   []byte
	Unicode string
	// Width is the horizontal advance in glyph space (thousandths of an em).
	Width float64
	// Space is set for the single-byte code 32, which word spacing applies to.
	Space bool
}

// Font wraps a font dictionary for decoding shown strings and, for fonts
// created through this package, encoding text.
type Font struct {
	Obj      sdf.Obj
	Dict     *sdf.Dict
	Subtype  string
	BaseFont string

	doc       *sdf.Doc
	enc       *fonts.Encoding
	toUnicode *CMap
	encoding  *CMap // Type0 code to CID
	firstChar int
	widths    []float64
	missing   float64
	cidWidths map[uint32]float64
	dw        float64
	metrics   fonts.Metrics
	scale     float64 // glyph space to thousandths of an em (Type3)
	ascent    float64
	descent   float64
	embedded  sdf.Obj

	encode func(string) []byte
	uni    *fonts.UnicodeFont
}

// LoadFont wraps the font dictionary o refers to.
func LoadFont(doc *sdf.Doc, o sdf.Obj) (*Font, error) {
	dict := doc.Dict(o)
	if dict == nil {
		return nil, sdf.Errorf("load font", sdf.ErrCorrupt, "font is not a dictionary")
	}
	f := &Font{Obj: o, Dict: dict, doc: doc, scale: 1, ascent: 800, descent: -200}
	st, _ := doc.Name(dict.Get("Subtype"))
	f.Subtype = string(st)
	bf, _ := doc.Name(dict.Get("BaseFont"))
	f.BaseFont = string(bf)
	if tu := doc.Stream(dict.Get("ToUnicode")); tu != nil {
		if data, err := filters.DecodeStream(context.Background(), doc, tu, filters.DefaultLimits()); err == nil {
			f.toUnicode, _ = ParseCMap(data)
		}
	}
	if f.Subtype == "Type0" {
		f.loadType0(dict)
	} else {
		f.loadSimple(dict)
	}
	return f, nil
}

func (f *Font) loadSimple(dict *sdf.Dict) {
	doc := f.doc
	std, stdErr := fonts.Standard(f.BaseFont)
	if stdErr == nil {
		f.metrics = std
		f.ascent, f.descent = std.Ascent(), std.Descent()
	}
	f.enc = fonts.StandardEncoding
	if stdErr == nil && std.Encoding() == fonts.Symbolic {
		f.enc = fonts.Symbolic
	}
	desc := doc.Dict(dict.Get("FontDescriptor"))
	if desc != nil {
		if flags, ok := doc.Int(desc.Get("Flags")); ok && flags&4 != 0 && f.Subtype == "TrueType" {
			f.enc = fonts.Symbolic
		}
		f.readDescriptor(desc)
	}
	switch e := doc.MustResolve(dict.Get("Encoding")).(type) {
	case sdf.Name:
		if enc, ok := fonts.EncodingByName(string(e)); ok {
			f.enc = enc
		}
	case *sdf.Dict:
		if bn, ok := doc.Name(e.Get("BaseEncoding")); ok {
			if enc, ok := fonts.EncodingByName(string(bn)); ok {
				f.enc = enc
			}
		}
		if diffs := doc.Array(e.Get("Differences")); diffs != nil {
			f.enc = f.enc.WithDifferences(diffs)
		}
	}
	if fc, ok := doc.Int(dict.Get("FirstChar")); ok {
		f.firstChar = int(fc)
	}
	if ws, ok := doc.Numbers(dict.Get("Widths")); ok {
		f.widths = ws
	}
	if f.Subtype == "Type3" {
		if m, ok := doc.Numbers(dict.Get("FontMatrix")); ok && len(m) == 6 {
			f.scale = m[0] * 1000
		} else {
			f.scale = 1
		}
	}
}

func (f *Font) loadType0(dict *sdf.Dict) {
	doc := f.doc
	switch e := doc.MustResolve(dict.Get("Encoding")).(type) {
	case sdf.Name:
		f.encoding = identityCMap(string(e))
	case *sdf.Stream:
		if data, err := filters.DecodeStream(context.Background(), doc, e, filters.DefaultLimits()); err == nil {
			if cm, err := ParseCMap(data); err == nil {
				f.encoding = cm
			}
		}
	}
	if f.encoding == nil {
		f.encoding = identityCMap("Identity-H")
	}
	f.dw = 1000
	cid := doc.Dict(doc.Array(dict.Get("DescendantFonts")).At(0))
	if cid == nil {
		return
	}
	if dw, ok := doc.Number(cid.Get("DW")); ok {
		f.dw = dw
	}
	f.cidWidths = make(map[uint32]float64)
	w := doc.Array(cid.Get("W"))
	for i := 0; i < w.Len(); {
		first, ok := doc.Int(w.At(i))
		if !ok {
			break
		}
		if list := doc.Array(w.At(i + 1)); list != nil {
			for k, it := range list.Items() {
				if v, ok := doc.Number(it); ok {
					f.cidWidths[uint32(first)+uint32(k)] = v
				}
			}
			i += 2
			continue
		}
		last, ok1 := doc.Int(w.At(i + 1))
		v, ok2 := doc.Number(w.At(i + 2))
		if !ok1 || !ok2 {
			break
		}
		for c := first; c <= last && c-first < 0x10000; c++ {
			f.cidWidths[uint32(c)] = v
		}
		i += 3
	}
	if desc := doc.Dict(cid.Get("FontDescriptor")); desc != nil {
		f.readDescriptor(desc)
	}
}

func (f *Font) readDescriptor(desc *sdf.Dict) {
	doc := f.doc
	if v, ok := doc.Number(desc.Get("Ascent")); ok && v != 0 {
		f.ascent = v
	}
	if v, ok := doc.Number(desc.Get("Descent")); ok && v != 0 {
		f.descent = v
	}
	if v, ok := doc.Number(desc.Get("MissingWidth")); ok {
		f.missing = v
	}
	for _, k := range []sdf.Name{"FontFile2", "FontFile3", "FontFile"} {
		if r := desc.Get(k); !sdf.IsNull(r) {
			f.embedded = r
			break
		}
	}
}

// NewStandardFont adds a standard 14 font dictionary to doc.
func NewStandardFont(doc *sdf.Doc, name string) (*Font, error) {
	std, err := fonts.Standard(name)
	if err != nil {
		return nil, err
	}
	f, err := LoadFont(doc, doc.CreateIndirect(std.Dict()))
	if err != nil {
		return nil, err
	}
	f.encode = func(s string) []byte { b, _ := std.Encode(s); return b }
	return f, nil
}

// NewTrueTypeFont embeds a TrueType program as a simple font.
func NewTrueTypeFont(doc *sdf.Doc, data []byte) (*Font, error) {
	tt, err := fonts.LoadTrueType(doc, data)
	if err != nil {
		return nil, err
	}
	f, err := LoadFont(doc, tt.Ref)
	if err != nil {
		return nil, err
	}
	f.metrics = tt
	f.encode = func(s string) []byte { b, _ := tt.Encode(s); return b }
	return f, nil
}

// NewType0Font embeds a font program as a Type0 font with Identity-H
// encoding. Text is shaped when encoded, so any script the font covers
// can be shown.
func NewType0Font(doc *sdf.Doc, data []byte) (*Font, error) {
	u, err := fonts.LoadUnicode(doc, data)
	if err != nil {
		return nil, err
	}
	f, err := LoadFont(doc, u.Ref)
	if err != nil {
		return nil, err
	}
	f.uni = u
	f.ascent, f.descent = u.Ascent(), u.Descent()
	f.encode = func(s string) []byte { b, _ := u.Encode(s); return b }
	return f, nil
}

// Flush completes fonts whose dictionaries depend on the glyphs used,
// such as Type0 fonts made by NewType0Font.
func (f *Font) Flush() error {
	if f.uni == nil {
		return nil
	}
	return f.uni.Flush(f.doc)
}

// CanEncode reports whether text can be encoded with f.
func (f *Font) CanEncode() bool { return f.encode != nil }

// Encode converts text to character codes. Fonts that were not created
// by this package encode through their simple-font encoding when they
// have one.
func (f *Font) Encode(s string) []byte {
	if f.encode != nil {
		return f.encode(s)
	}
	if f.enc != nil {
		b, _ := f.enc.EncodeString(s)
		return b
	}
	return []byte(s)
}

func (f *Font) same(o *Font) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f == o || sameObj(f.Obj, o.Obj)
}

// IsSimple reports whether codes are single bytes.
func (f *Font) IsSimple() bool { return f.Subtype != "Type0" }

// IsStandard14 reports whether f is an unembedded standard font.
func (f *Font) IsStandard14() bool {
	name, ok := fonts.StandardName(f.BaseFont)
	return ok && fonts.IsStandard14(name) && f.embedded == nil
}

// Embedded returns the font program stream, if any.
func (f *Font) Embedded() *sdf.Stream {
	if f.embedded == nil {
		return nil
	}
	return f.doc.Stream(f.embedded)
}

// Ascent and Descent are in thousandths of an em.
func (f *Font) Ascent() float64  { return f.ascent }
func (f *Font) Descent() float64 { return f.descent }

// Widths returns the first code and the /Widths array of a simple font.
func (f *Font) Widths() (firstChar int, widths []float64) { return f.firstChar, f.widths }

// Width returns the advance of a code of n bytes in thousandths of an em.
func (f *Font) Width(code uint32, n int) float64 {
	if !f.IsSimple() {
		cid, ok := f.encoding.CID(code, n)
		if !ok {
			cid = code
		}
		if w, ok := f.cidWidths[cid]; ok {
			return w
		}
		if f.uni != nil {
			return f.uni.GlyphWidth(uint16(cid))
		}
		return f.dw
	}
	if i := int(code) - f.firstChar; i >= 0 && i < len(f.widths) {
		return f.widths[i] * f.scale
	}
	if f.metrics != nil && f.enc != nil {
		if r := f.enc.Decode(byte(code)); r != 0 {
			return f.metrics.Advance(r)
		}
	}
	if f.missing != 0 {
		return f.missing * f.scale
	}
	if f.metrics != nil {
		return f.metrics.Advance(' ')
	}
	return 500
}

// Decode splits a shown string into glyphs.
func (f *Font) Decode(b []byte) []Glyph {
	var out []Glyph
	for len(b) > 0 {
		var code uint32
		n := 1
		if f.IsSimple() {
			code = uint32(b[0])
		} else {
			code, n = f.encoding.Next(b)
			if n == 0 {
				break
			}
		}
		g := Glyph{Code: code, Bytes: b[:n], Width: f.Width(code, n), Space: n == 1 && code == 32}
		g.Unicode = f.unicode(code, n)
		out = append(out, g)
		b = b[n:]
	}
	return out
}

func (f *Font) unicode(code uint32, n int) string {
	if s, ok := f.toUnicode.Unicode(code, n); ok {
		return s
	}
	if f.IsSimple() {
		if f.enc != nil {
			if r := f.enc.Decode(byte(code)); r != 0 {
				return string(r)
			}
		}
		return ""
	}
	if f.uni != nil {
		if cid, ok := f.encoding.CID(code, n); ok {
			return string(f.uni.GlyphRunes(uint16(cid)))
		}
	}
	return ""
}

// glyphNameText maps a glyph name (from a bfchar destination) to text.
func glyphNameText(name string) string {
	if r, ok := fonts.GlyphRune(name); ok {
		return string(r)
	}
	// Ligature names such as f_f_i.
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if r, ok := fonts.GlyphRune(part); ok {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CID returns the CID a Type0 font selects for g.
func (f *Font) CID(g Glyph) (uint32, bool) {
	if f.IsSimple() {
		return 0, false
	}
	return f.encoding.CID(g.Code, len(g.Bytes))
}

// Doc returns the object table the font dictionary lives in.
func (f *Font) Doc() *sdf.Doc { return f.doc }
