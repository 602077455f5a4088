// Package fonts provides the metrics and font dictionaries used when text is
// written: the standard 14 fonts, simple TrueType fonts and Unicode (Type0)
// fonts shaped with go-text.
package fonts

import (
	"fmt"
	"strings"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Metrics measures text in thousandths of an em.
type Metrics interface {
	Advance(r rune) float64
	Ascent() float64
	Descent() float64
}

// Width returns the width of s set at size points.
func Width(m Metrics, s string, size float64) float64 {
	var w float64
	for _, r := range s {
		w += m.Advance(r)
	}
	return w * size / 1000
}

var standard14 = []string{
	"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique",
	"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique",
	"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic",
	"Symbol", "ZapfDingbats",
}

// aliases maps common substitutes and the abbreviations used in form
// default appearances to standard names.
var aliases = map[string]string{
	"Arial":                  "Helvetica",
	"Arial,Bold":             "Helvetica-Bold",
	"Arial,Italic":           "Helvetica-Oblique",
	"Arial,BoldItalic":       "Helvetica-BoldOblique",
	"ArialMT":                "Helvetica",
	"Arial-BoldMT":           "Helvetica-Bold",
	"Arial-ItalicMT":         "Helvetica-Oblique",
	"Arial-BoldItalicMT":     "Helvetica-BoldOblique",
	"TimesNewRoman":          "Times-Roman",
	"TimesNewRoman,Bold":     "Times-Bold",
	"TimesNewRoman,Italic":   "Times-Italic",
	"TimesNewRomanPSMT":      "Times-Roman",
	"TimesNewRomanPS-BoldMT": "Times-Bold",
	"CourierNew":             "Courier",
	"CourierNewPSMT":         "Courier",
	"CourierNew,Bold":        "Courier-Bold",
	"Helv":                   "Helvetica",
	"HeBo":                   "Helvetica-Bold",
	"TiRo":                   "Times-Roman",
	"TiBo":                   "Times-Bold",
	"Cour":                   "Courier",
	"Symb":                   "Symbol",
	"ZaDb":                   "ZapfDingbats",
}

// StandardName returns the standard 14 name for name or one of its
// aliases. Subset prefixes ("ABCDEF+Helvetica") are ignored.
func StandardName(name string) (string, bool) {
	if i := strings.IndexByte(name, '+'); i == 6 {
		name = name[i+1:]
	}
	for _, s := range standard14 {
		if s == name {
			return s, true
		}
	}
	s, ok := aliases[name]
	return s, ok
}

// IsStandard14 reports whether name is one of the 14 standard fonts.
func IsStandard14(name string) bool {
	for _, s := range standard14 {
		if s == name {
			return true
		}
	}
	return false
}

// StandardFont is one of the 14 fonts every viewer provides. Text is
// encoded with WinAnsiEncoding, except for Symbol and ZapfDingbats which
// use their built-in encodings.
type StandardFont struct {
	Name    string
	widths  map[rune]float64
	missing float64
	ascent  float64
	descent float64
	enc     *Encoding
}

// Standard returns the metrics of a standard font or alias.
func Standard(name string) (*StandardFont, error) {
	canon, ok := StandardName(name)
	if !ok {
		return nil, fmt.Errorf("fonts: %q is not a standard font", name)
	}
	f := &StandardFont{Name: canon, enc: WinAnsi, ascent: 718, descent: -207}
	switch {
	case strings.HasPrefix(canon, "Courier"):
		f.missing = 600
		f.ascent, f.descent = 629, -157
	case canon == "Helvetica" || canon == "Helvetica-Oblique":
		f.widths = tableWidths(helveticaWidths)
		f.missing = 556
	case strings.HasPrefix(canon, "Helvetica-Bold"):
		f.widths = tableWidths(helveticaBoldWidths)
		f.missing = 556
	case strings.HasPrefix(canon, "Times"):
		f.widths = goFontWidths(styleOf(canon))
		f.missing = 500
		f.ascent, f.descent = 683, -217
	default:
		// Symbol and ZapfDingbats use their own encodings.
		f.enc = Symbolic
		f.missing = 600
		f.ascent, f.descent = 700, -200
	}
	return f, nil
}

// Advance returns the advance width of r.
func (f *StandardFont) Advance(r rune) float64 {
	if w, ok := f.widths[r]; ok {
		return w
	}
	return f.missing
}

func (f *StandardFont) Ascent() float64  { return f.ascent }
func (f *StandardFont) Descent() float64 { return f.descent }

// Encoding returns the encoding the font's dictionary declares.
func (f *StandardFont) Encoding() *Encoding { return f.enc }

// Encode converts text to character codes. Runes the encoding lacks become
// '?' and are reported by ok=false.
func (f *StandardFont) Encode(s string) (codes []byte, ok bool) {
	return f.enc.EncodeString(s)
}

// Dict builds the font dictionary.
func (f *StandardFont) Dict() *sdf.Dict {
	d := sdf.NewDict()
	d.PutName("Type", "Font")
	d.PutName("Subtype", "Type1")
	d.PutName("BaseFont", f.Name)
	if f.enc == WinAnsi {
		d.PutName("Encoding", "WinAnsiEncoding")
	}
	return d
}

var _ Metrics = (*StandardFont)(nil)
