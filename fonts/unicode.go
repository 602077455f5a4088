package fonts

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/math/fixed"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// ShapedGlyph is one glyph produced by shaping, with advances and offsets
// in thousandths of an em.
type ShapedGlyph struct {
	ID       uint16
	Cluster  int
	Runes    []rune
	XAdvance float64
	YAdvance float64
	XOffset  float64
	YOffset  float64
}

// UnicodeFont is a Type0 font with Identity-H encoding over an embedded
// TrueType program. Character codes are glyph ids. Glyphs used through
// Encode are recorded so Flush can write the /W array and ToUnicode map.
type UnicodeFont struct {
	Name string
	Ref  sdf.Ref

	face    *gofont.Face
	upem    float64
	ascent  float64
	descent float64
	cidRef  sdf.Ref
	used    map[uint16][]rune
	widths  map[uint16]float64
}

// LoadUnicode parses data and adds a Type0 font using it to doc. Call Flush
// after the last Encode.
func LoadUnicode(doc *sdf.Doc, data []byte) (*UnicodeFont, error) {
	if len(data) == 0 {
		return nil, errors.New("fonts: empty font data")
	}
	face, err := gofont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("fonts: parse font: %w", err)
	}
	u := &UnicodeFont{
		face:   face,
		upem:   float64(face.Upem()),
		used:   make(map[uint16][]rune),
		widths: make(map[uint16]float64),
	}
	if u.upem == 0 {
		return nil, errors.New("fonts: invalid unitsPerEm")
	}
	if ext, ok := face.FontHExtents(); ok {
		u.ascent = float64(ext.Ascender) * 1000 / u.upem
		u.descent = float64(ext.Descender) * 1000 / u.upem
	}
	u.Name = "Unicode"
	if tt, err := truetype.Parse(data); err == nil {
		if n := strings.ReplaceAll(tt.Name(truetype.NameIDPostscriptName), " ", ""); n != "" {
			u.Name = n
		}
	}

	file := sdf.NewStream(nil, nil)
	if err := filters.SetStreamData(file, data, "FlateDecode"); err != nil {
		return nil, err
	}
	file.Dict.PutInt("Length1", int64(len(data)))
	fileRef := doc.CreateIndirect(file)

	desc, descRef := doc.CreateIndirectDict()
	desc.PutName("Type", "FontDescriptor")
	desc.PutName("FontName", u.Name)
	desc.PutInt("Flags", 4) // symbolic
	desc.PutRect("FontBBox", 0, u.descent, 1000, u.ascent)
	desc.PutInt("ItalicAngle", 0)
	desc.PutReal("Ascent", u.ascent)
	desc.PutReal("Descent", u.descent)
	desc.PutReal("CapHeight", u.ascent)
	desc.PutInt("StemV", 80)
	desc.Set("FontFile2", fileRef)

	cid, cidRef := doc.CreateIndirectDict()
	cid.PutName("Type", "Font")
	cid.PutName("Subtype", "CIDFontType2")
	cid.PutName("BaseFont", u.Name)
	info := cid.PutDict("CIDSystemInfo")
	info.PutString("Registry", "Adobe")
	info.PutString("Ordering", "Identity")
	info.PutInt("Supplement", 0)
	cid.Set("FontDescriptor", descRef)
	cid.PutInt("DW", 1000)
	cid.PutName("CIDToGIDMap", "Identity")
	u.cidRef = cidRef

	font, ref := doc.CreateIndirectDict()
	font.PutName("Type", "Font")
	font.PutName("Subtype", "Type0")
	font.PutName("BaseFont", u.Name)
	font.PutName("Encoding", "Identity-H")
	font.Set("DescendantFonts", sdf.NewArray(cidRef))
	u.Ref = ref
	return u, nil
}

// Advance returns the nominal advance of r.
func (u *UnicodeFont) Advance(r rune) float64 {
	gid, ok := u.face.NominalGlyph(r)
	if !ok {
		return 0
	}
	return float64(u.face.HorizontalAdvance(gid)) * 1000 / u.upem
}

func (u *UnicodeFont) Ascent() float64  { return u.ascent }
func (u *UnicodeFont) Descent() float64 { return u.descent }

// Shape runs the HarfBuzz shaper over text.
func (u *UnicodeFont) Shape(text string) []ShapedGlyph {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	script := DetectScript(runes)
	// Shaping at 1000 units per em gives advances in glyph space directly.
	out := (&shaping.HarfbuzzShaper{}).Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      u.face,
		Size:      fixed.I(1000),
		Script:    script,
		Language:  language.DefaultLanguage(),
	})
	glyphs := make([]ShapedGlyph, 0, len(out.Glyphs))
	for _, g := range out.Glyphs {
		end := g.ClusterIndex + g.RuneCount
		if end > len(runes) {
			end = len(runes)
		}
		var rs []rune
		if g.ClusterIndex >= 0 && g.ClusterIndex < end {
			rs = runes[g.ClusterIndex:end]
		}
		glyphs = append(glyphs, ShapedGlyph{
			ID:       uint16(g.GlyphID),
			Cluster:  g.ClusterIndex,
			Runes:    rs,
			XAdvance: float64(g.XAdvance) / 64,
			YAdvance: float64(g.YAdvance) / 64,
			XOffset:  float64(g.XOffset) / 64,
			YOffset:  float64(g.YOffset) / 64,
		})
	}
	return glyphs
}

// Encode shapes text and returns the two-byte glyph codes. The glyphs are
// recorded for Flush.
func (u *UnicodeFont) Encode(text string) ([]byte, []ShapedGlyph) {
	glyphs := u.Shape(text)
	codes := make([]byte, 0, 2*len(glyphs))
	for _, g := range glyphs {
		codes = append(codes, byte(g.ID>>8), byte(g.ID))
		if _, seen := u.used[g.ID]; !seen || len(u.used[g.ID]) == 0 {
			u.used[g.ID] = g.Runes
		}
		u.widths[g.ID] = float64(u.face.HorizontalAdvance(gofont.GID(g.ID))) * 1000 / u.upem
	}
	return codes, glyphs
}

// GlyphWidth returns the advance of a glyph id.
func (u *UnicodeFont) GlyphWidth(gid uint16) float64 {
	if w, ok := u.widths[gid]; ok {
		return w
	}
	return float64(u.face.HorizontalAdvance(gofont.GID(gid))) * 1000 / u.upem
}

// Flush writes the widths and the ToUnicode map of every glyph used so far.
func (u *UnicodeFont) Flush(doc *sdf.Doc) error {
	cid := doc.Dict(u.cidRef)
	font := doc.Dict(u.Ref)
	if cid == nil || font == nil {
		return errors.New("fonts: font dictionaries missing")
	}
	ids := make([]int, 0, len(u.widths))
	for id := range u.widths {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	w := sdf.NewArray()
	for i := 0; i < len(ids); {
		j := i + 1
		for j < len(ids) && ids[j] == ids[j-1]+1 {
			j++
		}
		run := sdf.NewArray()
		for _, id := range ids[i:j] {
			run.Append(sdf.Int(int64(u.widths[uint16(id)] + 0.5)))
		}
		w.Append(sdf.Int(int64(ids[i])), run)
		i = j
	}
	cid.Set("W", w)

	m := make(map[uint32][]rune, len(u.used))
	for id, rs := range u.used {
		if len(rs) > 0 {
			m[uint32(id)] = rs
		}
	}
	st := sdf.NewStream(nil, nil)
	if err := filters.SetStreamData(st, ToUnicodeCMap(m, 2), "FlateDecode"); err != nil {
		return err
	}
	if old, ok := font.Get("ToUnicode").(sdf.Ref); ok {
		return doc.Set(old, st)
	}
	font.Set("ToUnicode", doc.CreateIndirect(st))
	return nil
}

var _ Metrics = (*UnicodeFont)(nil)

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

// DetectScript returns the most frequent script in runes; ties keep the
// script seen first.
func DetectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	best := language.Latin
	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > maxCount {
			maxCount = counts[script]
			best = script
		}
	}
	return best
}

var scriptTables = []struct {
	table  *unicode.RangeTable
	script language.Script
}{
	{unicode.Arabic, language.Arabic},
	{unicode.Hebrew, language.Hebrew},
	{unicode.Latin, language.Latin},
	{unicode.Cyrillic, language.Cyrillic},
	{unicode.Greek, language.Greek},
	{unicode.Thai, language.Thai},
	{unicode.Devanagari, language.Devanagari},
	{unicode.Bengali, language.Bengali},
	{unicode.Tamil, language.Tamil},
	{unicode.Han, language.Han},
	{unicode.Hiragana, language.Hiragana},
	{unicode.Katakana, language.Katakana},
	{unicode.Hangul, language.Hangul},
}

func scriptFromRune(r rune) language.Script {
	for _, s := range scriptTables {
		if unicode.Is(s.table, r) {
			return s.script
		}
	}
	return language.Unknown
}

// GlyphRunes returns the text a glyph was shaped from, if it has been
// encoded.
func (u *UnicodeFont) GlyphRunes(gid uint16) []rune { return u.used[gid] }
