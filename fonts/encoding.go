package fonts

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"golang.org/x/text/encoding/charmap"
)

// Encoding maps single-byte character codes of simple fonts to Unicode.
type Encoding struct {
	Name     string
	toRune   [256]rune
	fromRune map[rune]byte
}

var (
	WinAnsi  = fromCharmap("WinAnsiEncoding", charmap.Windows1252)
	MacRoman = fromCharmap("MacRomanEncoding", charmap.Macintosh)
	// StandardEncoding is the built-in encoding of most Type 1 fonts.
	StandardEncoding = standardEncoding()
	// Symbolic maps codes to the same code points; used when a font's
	// built-in encoding is unknown.
	Symbolic = identityEncoding()
)

func fromCharmap(name string, cm *charmap.Charmap) *Encoding {
	e := &Encoding{Name: name}
	for c := 32; c < 256; c++ {
		r := cm.DecodeByte(byte(c))
		if r == utf8.RuneError || (r >= 0x80 && r < 0xA0) {
			continue
		}
		e.toRune[c] = r
	}
	if name == "WinAnsiEncoding" {
		// Unused positions show a bullet; 0xA0 and 0xAD are space and hyphen.
		e.toRune[0xA0] = ' '
		e.toRune[0xAD] = '-'
	}
	e.index()
	return e
}

func standardEncoding() *Encoding {
	e := &Encoding{Name: "StandardEncoding"}
	for c := 32; c < 127; c++ {
		e.toRune[c] = rune(c)
	}
	e.toRune[0x27] = '’'
	e.toRune[0x60] = '‘'
	high := map[int]rune{
		0xA1: '¡', 0xA2: '¢', 0xA3: '£', 0xA4: '⁄', 0xA5: '¥', 0xA6: 'ƒ', 0xA7: '§',
		0xA8: '¤', 0xA9: '\'', 0xAA: '“', 0xAB: '«', 0xAC: '‹', 0xAD: '›', 0xAE: 'ﬁ',
		0xAF: 'ﬂ', 0xB1: '–', 0xB2: '†', 0xB3: '‡', 0xB4: '·', 0xB6: '¶', 0xB7: '•',
		0xB8: '‚', 0xB9: '„', 0xBA: '”', 0xBB: '»', 0xBC: '…', 0xBD: '‰', 0xBF: '¿',
		0xC1: '`', 0xC2: '´', 0xC3: 'ˆ', 0xC4: '˜', 0xC5: '¯', 0xC6: '˘', 0xC7: '˙',
		0xC8: '¨', 0xCA: '˚', 0xCB: '¸', 0xCD: '˝', 0xCE: '˛', 0xCF: 'ˇ', 0xD0: '—',
		0xE1: 'Æ', 0xE3: 'ª', 0xE8: 'Ł', 0xE9: 'Ø', 0xEA: 'Œ', 0xEB: 'º', 0xF1: 'æ',
		0xF5: 'ı', 0xF8: 'ł', 0xF9: 'ø', 0xFA: 'œ', 0xFB: 'ß',
	}
	for c, r := range high {
		e.toRune[c] = r
	}
	e.index()
	return e
}

func identityEncoding() *Encoding {
	e := &Encoding{Name: "Symbolic"}
	for c := 0; c < 256; c++ {
		e.toRune[c] = rune(c)
	}
	e.index()
	return e
}

func (e *Encoding) index() {
	e.fromRune = make(map[rune]byte, 256)
	for c := 255; c >= 0; c-- {
		if r := e.toRune[c]; r != 0 {
			e.fromRune[r] = byte(c)
		}
	}
}

// EncodingByName returns a predefined encoding.
func EncodingByName(name string) (*Encoding, bool) {
	switch name {
	case "WinAnsiEncoding":
		return WinAnsi, true
	case "MacRomanEncoding":
		return MacRoman, true
	case "StandardEncoding":
		return StandardEncoding, true
	}
	return nil, false
}

// Decode returns the rune for code, or 0 when the code is unmapped.
func (e *Encoding) Decode(code byte) rune { return e.toRune[code] }

// Encode returns the code for r.
func (e *Encoding) Encode(r rune) (byte, bool) {
	c, ok := e.fromRune[r]
	return c, ok
}

// EncodeString encodes s, substituting '?' for runes without a code.
func (e *Encoding) EncodeString(s string) ([]byte, bool) {
	out := make([]byte, 0, len(s))
	ok := true
	for _, r := range s {
		c, found := e.fromRune[r]
		if !found {
			c, ok = '?', false
		}
		out = append(out, c)
	}
	return out, ok
}

// WithDifferences returns a copy of e with a /Differences array applied.
func (e *Encoding) WithDifferences(diffs *sdf.Array) *Encoding {
	out := &Encoding{Name: e.Name, toRune: e.toRune}
	code := 0
	for _, it := range diffs.Items() {
		switch v := it.(type) {
		case sdf.Int:
			code = int(v)
		case sdf.Name:
			if code >= 0 && code < 256 {
				if r, ok := GlyphRune(string(v)); ok {
					out.toRune[code] = r
				} else {
					out.toRune[code] = 0
				}
			}
			code++
		}
	}
	out.index()
	return out
}

// GlyphRune maps a glyph name to Unicode using the common Adobe glyph
// names and the uniXXXX / uXXXXXX conventions.
func GlyphRune(name string) (rune, bool) {
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if len(name) == 1 && name[0] < 0x80 {
		return rune(name[0]), true
	}
	if strings.HasPrefix(name, "uni") && len(name) >= 7 {
		if v, err := strconv.ParseUint(name[3:7], 16, 32); err == nil {
			return rune(v), true
		}
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	return 0, false
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#', "dollar": '$',
	"percent": '%', "ampersand": '&', "quotesingle": '\'', "quoteright": '’',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+', "comma": ',',
	"hyphen": '-', "minus": '−', "period": '.', "slash": '/', "zero": '0', "one": '1',
	"two": '2', "three": '3', "four": '4', "five": '5', "six": '6', "seven": '7',
	"eight": '8', "nine": '9', "colon": ':', "semicolon": ';', "less": '<', "equal": '=',
	"greater": '>', "question": '?', "at": '@', "bracketleft": '[', "backslash": '\\',
	"bracketright": ']', "asciicircum": '^', "underscore": '_', "grave": '`',
	"quoteleft": '‘', "braceleft": '{', "bar": '|', "braceright": '}',
	"asciitilde": '~', "bullet": '•', "endash": '–', "emdash": '—',
	"ellipsis": '…', "quotedblleft": '“', "quotedblright": '”',
	"quotesinglbase": '‚', "quotedblbase": '„', "dagger": '†',
	"daggerdbl": '‡', "perthousand": '‰', "trademark": '™',
	"copyright": '©', "registered": '®', "degree": '°', "fi": 'ﬁ',
	"fl": 'ﬂ', "ff": 'ﬀ', "ffi": 'ﬃ', "ffl": 'ﬄ', "Euro": '€',
	"section": '§', "paragraph": '¶', "germandbls": 'ß',
	"eacute": 'é', "egrave": 'è', "ecircumflex": 'ê', "edieresis": 'ë',
	"aacute": 'á', "agrave": 'à', "acircumflex": 'â', "adieresis": 'ä',
	"atilde": 'ã', "aring": 'å', "ccedilla": 'ç', "iacute": 'í',
	"igrave": 'ì', "icircumflex": 'î', "idieresis": 'ï', "ntilde": 'ñ',
	"oacute": 'ó', "ograve": 'ò', "ocircumflex": 'ô', "odieresis": 'ö',
	"otilde": 'õ', "uacute": 'ú', "ugrave": 'ù', "ucircumflex": 'û',
	"udieresis": 'ü', "Eacute": 'É', "Aacute": 'Á', "Adieresis": 'Ä',
	"Odieresis": 'Ö', "Udieresis": 'Ü', "Ccedilla": 'Ç', "Ntilde": 'Ñ',
	"multiply": '×', "divide": '÷', "plusminus": '±', "nbspace": ' ',
	"sterling": '£', "yen": '¥', "cent": '¢', "florin": 'ƒ',
	"guillemotleft": '«', "guillemotright": '»', "dotlessi": 'ı',
}
