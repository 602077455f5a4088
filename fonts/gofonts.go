package fonts

import (
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

type style int

const (
	styleRegular style = iota
	styleBold
	styleItalic
	styleBoldItalic
	styleMono
	styleMonoBold
)

var goTTF = map[style][]byte{
	styleRegular:    goregular.TTF,
	styleBold:       gobold.TTF,
	styleItalic:     goitalic.TTF,
	styleBoldItalic: gobolditalic.TTF,
	styleMono:       gomono.TTF,
	styleMonoBold:   gomonobold.TTF,
}

// styleOf guesses the Go font style matching a base font name.
func styleOf(baseFont string) style {
	name := strings.ToLower(baseFont)
	bold := strings.Contains(name, "bold") || strings.Contains(name, "black") || strings.Contains(name, "heavy")
	italic := strings.Contains(name, "italic") || strings.Contains(name, "oblique")
	if strings.Contains(name, "courier") || strings.Contains(name, "mono") {
		if bold {
			return styleMonoBold
		}
		return styleMono
	}
	switch {
	case bold && italic:
		return styleBoldItalic
	case bold:
		return styleBold
	case italic:
		return styleItalic
	}
	return styleRegular
}

var (
	widthsMu    sync.Mutex
	widthsCache = make(map[style]map[rune]float64)
)

// goFontWidths measures the WinAnsi repertoire in a Go font with freetype.
func goFontWidths(s style) map[rune]float64 {
	widthsMu.Lock()
	defer widthsMu.Unlock()
	if w, ok := widthsCache[s]; ok {
		return w
	}
	w := make(map[rune]float64, 224)
	if f, err := truetype.Parse(goTTF[s]); err == nil {
		upem := f.FUnitsPerEm()
		for code := 32; code < 256; code++ {
			r := WinAnsi.Decode(byte(code))
			if r == 0 {
				continue
			}
			w[r] = advance1000(f, r, upem)
		}
	}
	widthsCache[s] = w
	return w
}

func advance1000(f *truetype.Font, r rune, upem int32) float64 {
	hm := f.HMetric(fixed.Int26_6(upem), f.Index(r))
	return float64(hm.AdvanceWidth) * 1000 / float64(upem)
}

var (
	facesMu sync.Mutex
	faces   = make(map[style]*sfnt.Font)
)

// FallbackFace returns a Go font outline face resembling baseFont, used to
// draw text in fonts that are not embedded.
func FallbackFace(baseFont string) *sfnt.Font {
	s := styleOf(baseFont)
	facesMu.Lock()
	defer facesMu.Unlock()
	if f, ok := faces[s]; ok {
		return f
	}
	f, err := sfnt.Parse(goTTF[s])
	if err != nil {
		return nil
	}
	faces[s] = f
	return f
}
