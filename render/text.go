package render

import (
	"context"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/fonts"
	"github.com/NityaNandPandey/AndroidPDF/observability"
)

// face is a parsed font program used to draw the glyphs of one font
// dictionary.
type face struct {
	sf       *sfnt.Font
	embedded bool
	cidToGID []byte // nil for the identity mapping
	upem     float64
	buf      sfnt.Buffer
}

func (p *painter) face(ctx context.Context, f *content.Font) *face {
	if fc, ok := p.faces[f.Dict]; ok {
		return fc
	}
	fc := &face{}
	if st := f.Embedded(); st != nil {
		data, err := p.doc.DecodeStream(ctx, st)
		if err == nil {
			fc.sf, err = sfnt.Parse(data)
		}
		if err != nil {
			p.log.Debug("render: embedded font not usable",
				observability.String("font", f.BaseFont), observability.Err(err))
			fc.sf = nil
		}
		fc.embedded = fc.sf != nil
	}
	if fc.sf == nil {
		fc.sf = fonts.FallbackFace(f.BaseFont)
	}
	if fc.sf == nil {
		p.faces[f.Dict] = nil
		return nil
	}
	fc.upem = float64(fc.sf.UnitsPerEm())
	if !f.IsSimple() {
		sd := p.doc.SDF()
		if desc := sd.Dict(sd.Array(f.Dict.Get("DescendantFonts")).At(0)); desc != nil {
			if sd.Stream(desc.Get("CIDToGIDMap")) != nil {
				if data, err := p.doc.DecodeStream(ctx, desc.Get("CIDToGIDMap")); err == nil {
					fc.cidToGID = data
				}
			}
		}
	}
	p.faces[f.Dict] = fc
	return fc
}

// index picks the glyph for g. Type0 fonts with embedded programs map
// CIDs to glyph ids; other fonts go through the font's cmap.
func (fc *face) index(f *content.Font, g content.Glyph) (sfnt.GlyphIndex, bool) {
	if fc.embedded && !f.IsSimple() {
		cid, ok := f.CID(g)
		if !ok {
			return 0, false
		}
		gid := cid
		if fc.cidToGID != nil {
			if int(2*cid+1) >= len(fc.cidToGID) {
				return 0, false
			}
			gid = uint32(fc.cidToGID[2*cid])<<8 | uint32(fc.cidToGID[2*cid+1])
		}
		return sfnt.GlyphIndex(gid), gid != 0
	}
	var try []rune
	for _, r := range g.Unicode {
		try = append(try, r)
		break
	}
	if fc.embedded {
		// Symbolic TrueType fonts map codes in the 0xF000 page.
		try = append(try, 0xF000+rune(g.Code), rune(g.Code))
	}
	for _, r := range try {
		if x, err := fc.sf.GlyphIndex(&fc.buf, r); err == nil && x != 0 {
			return x, true
		}
	}
	if fc.embedded && int(g.Code) < fc.sf.NumGlyphs() && g.Code != 0 {
		return sfnt.GlyphIndex(g.Code), true
	}
	return 0, false
}

// outline returns the flattened outline of glyph x placed by m, which
// maps one em to device space. Substitute faces are stretched to the
// advance width the font dictionary declares.
func (fc *face) outline(x sfnt.GlyphIndex, m coords.Matrix, width float64) []polyline {
	ppem := fixed.Int26_6(fc.upem * 64)
	segs, err := fc.sf.LoadGlyph(&fc.buf, x, ppem, nil)
	if err != nil {
		return nil
	}
	sx := 1.0
	if !fc.embedded && width > 0 {
		if adv, err := fc.sf.GlyphAdvance(&fc.buf, x, ppem, font.HintingNone); err == nil && adv > 0 {
			sx = width / 1000 / (float64(adv) / 64 / fc.upem)
		}
	}
	unit := 64 * fc.upem
	g := coords.Matrix{sx / unit, 0, 0, -1 / unit, 0, 0}.Multiply(m)
	pt := func(p fixed.Point26_6) coords.Point {
		return g.Transform(coords.Point{X: float64(p.X), Y: float64(p.Y)})
	}
	var f flattener
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if f.cur != nil {
				f.close()
			}
			f.moveTo(pt(s.Args[0]))
		case sfnt.SegmentOpLineTo:
			f.lineTo(pt(s.Args[0]))
		case sfnt.SegmentOpQuadTo:
			f.quadTo(pt(s.Args[0]), pt(s.Args[1]))
		case sfnt.SegmentOpCubeTo:
			f.cubeTo(pt(s.Args[0]), pt(s.Args[1]), pt(s.Args[2]))
		}
	}
	f.close()
	return f.result()
}

// paintText fills and strokes the glyphs of a text element. Type3 fonts
// and clipping render modes other than their paint part are not drawn.
func (p *painter) paintText(ctx context.Context, e *content.Element) {
	gs := &e.State
	f := gs.Font
	if f == nil || f.Subtype == "Type3" {
		return
	}
	var fill, stroke bool
	switch gs.RenderMode {
	case content.TextFill, content.TextFillClip:
		fill = true
	case content.TextStroke, content.TextStrokeClip:
		stroke = true
	case content.TextFillStroke, content.TextFillStrokeClip:
		fill, stroke = true, true
	default:
		return
	}
	fc := p.face(ctx, f)
	if fc == nil {
		return
	}
	var lines []polyline
	for _, ch := range e.Chars() {
		x, ok := fc.index(f, ch.Glyph)
		if !ok {
			continue
		}
		lines = append(lines, fc.outline(x, ch.Matrix.Multiply(p.dev), ch.Width)...)
	}
	if len(lines) == 0 {
		return
	}
	if fill {
		p.fillLines(lines, gs.FillSpace, gs.FillColor, gs.FillAlpha)
	}
	if stroke {
		p.strokeLines(lines, gs)
	}
}
