package sdf

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// pdfDocHigh maps PDFDocEncoding bytes 0x80..0xAD (where it departs from
// Latin-1) to Unicode. Zero marks an undefined code.
var pdfDocHigh = [...]rune{
	0x2022, 0x2020, 0x2021, 0x2026, 0x2014, 0x2013, 0x0192, 0x2044,
	0x2039, 0x203A, 0x2212, 0x2030, 0x201E, 0x201C, 0x201D, 0x2018,
	0x2019, 0x201A, 0x2122, 0xFB01, 0xFB02, 0x0141, 0x0152, 0x0160,
	0x0178, 0x017D, 0x0131, 0x0142, 0x0153, 0x0161, 0x017E, 0,
	0x20AC,
}

var pdfDocLow = map[byte]rune{
	0x18: 0x02D8, 0x19: 0x02C7, 0x1A: 0x02C6, 0x1B: 0x02D9,
	0x1C: 0x02DD, 0x1D: 0x02DB, 0x1E: 0x02DA, 0x1F: 0x02DC,
}

var pdfDocReverse = func() map[rune]byte {
	m := make(map[rune]byte)
	for i, r := range pdfDocHigh {
		if r != 0 {
			m[r] = byte(0x80 + i)
		}
	}
	for b, r := range pdfDocLow {
		m[r] = b
	}
	return m
}()

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// DecodeText interprets b as a PDF text string: UTF-16BE when it starts with
// a byte order mark, UTF-8 with BOM (PDF 2.0), PDFDocEncoding otherwise.
func DecodeText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		out, err := utf16be.NewDecoder().Bytes(b)
		if err == nil {
			return string(out)
		}
	}
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) && utf8.Valid(b[3:]) {
		return string(b[3:])
	}
	var sb []rune
	for _, c := range b {
		switch {
		case c >= 0x80 && int(c-0x80) < len(pdfDocHigh):
			if r := pdfDocHigh[c-0x80]; r != 0 {
				sb = append(sb, r)
			} else {
				sb = append(sb, utf8.RuneError)
			}
		case pdfDocLow[c] != 0:
			sb = append(sb, pdfDocLow[c])
		default:
			sb = append(sb, rune(c))
		}
	}
	return string(sb)
}

// EncodeText encodes s in PDFDocEncoding when every rune is representable,
// and as UTF-16BE with a byte order mark otherwise.
func EncodeText(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r < 0x80 && r >= 0x20 || r == '\n' || r == '\r' || r == '\t':
			out = append(out, byte(r))
		case r >= 0xA1 && r <= 0xFF && r != 0xAD:
			out = append(out, byte(r))
		default:
			b, ok := pdfDocReverse[r]
			if !ok {
				enc, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
				if err != nil {
					return []byte(s)
				}
				return enc
			}
			out = append(out, b)
		}
	}
	return out
}
