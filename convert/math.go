package convert

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// mathBox is a typeset MathML node. x and y place its baseline origin
// relative to the parent's; ascent and descent are measured from the
// baseline.
type mathBox struct {
	tag      string
	text     string
	style    style
	size     float64
	x, y     float64
	width    float64
	ascent   float64
	descent  float64
	children []*mathBox
}

// scripted lists elements whose children after the base are set smaller.
var scripted = map[string]bool{
	"msup": true, "msub": true, "msubsup": true,
	"mover": true, "munder": true, "munderover": true,
}

func (e *engine) measureMath(n *html.Node, size float64) *mathBox {
	return e.mathNode(n, size, 0)
}

func (e *engine) mathNode(n *html.Node, size float64, st style) *mathBox {
	switch n.Type {
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		f := e.font(st)
		if text == "" || f == nil {
			return nil
		}
		return &mathBox{
			text:    text,
			style:   st,
			size:    size,
			width:   e.measure(text, f, size),
			ascent:  f.Ascent() / 1000 * size,
			descent: -f.Descent() / 1000 * size,
		}
	case html.ElementNode:
	default:
		return nil
	}
	switch n.Data {
	case "annotation", "annotation-xml", "none", "mprescripts":
		return nil
	case "mi":
		// Single letter identifiers are italic.
		if utf8.RuneCountInString(strings.TrimSpace(textContent(n))) == 1 {
			st = italic
		} else {
			st = 0
		}
	case "mn", "mo", "mtext":
		st = 0
	}
	box := &mathBox{tag: n.Data, size: size}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cs := size
		if len(box.children) > 0 && scripted[n.Data] {
			cs = size * 0.7
		}
		if cb := e.mathNode(c, cs, st); cb != nil {
			box.children = append(box.children, cb)
		}
	}
	if len(box.children) == 0 {
		return nil
	}
	box.layout()
	return box
}

func (b *mathBox) layout() {
	c := b.children
	size := b.size
	switch {
	case b.tag == "mfrac" && len(c) >= 2:
		num, den := c[0], c[1]
		axis := size * 0.25
		b.width = max(num.width, den.width) + 4
		num.x = (b.width - num.width) / 2
		den.x = (b.width - den.width) / 2
		num.y = axis + 2 + num.descent
		den.y = axis - 2 - den.ascent
		b.ascent = num.y + num.ascent
		b.descent = den.descent - den.y
	case b.tag == "msup" && len(c) >= 2:
		base, sup := c[0], c[1]
		sup.x, sup.y = base.width, base.ascent*0.5
		b.width = base.width + sup.width
		b.ascent = max(base.ascent, sup.y+sup.ascent)
		b.descent = base.descent
	case b.tag == "msub" && len(c) >= 2:
		base, sub := c[0], c[1]
		sub.x, sub.y = base.width, -size*0.25
		b.width = base.width + sub.width
		b.ascent = base.ascent
		b.descent = max(base.descent, sub.descent-sub.y)
	case b.tag == "msubsup" && len(c) >= 3:
		base, sub, sup := c[0], c[1], c[2]
		sub.x, sub.y = base.width, -size*0.25
		sup.x, sup.y = base.width, base.ascent*0.5
		b.width = base.width + max(sub.width, sup.width)
		b.ascent = max(base.ascent, sup.y+sup.ascent)
		b.descent = max(base.descent, sub.descent-sub.y)
	case (b.tag == "mover" || b.tag == "munder" || b.tag == "munderover") && len(c) >= 2:
		base := c[0]
		b.width = base.width
		for _, s := range c[1:] {
			b.width = max(b.width, s.width)
		}
		for _, s := range c {
			s.x = (b.width - s.width) / 2
		}
		b.ascent, b.descent = base.ascent, base.descent
		under, over := c[1], (*mathBox)(nil)
		switch {
		case b.tag == "mover":
			under, over = nil, c[1]
		case b.tag == "munderover" && len(c) >= 3:
			over = c[2]
		}
		if over != nil {
			over.y = base.ascent + 1 + over.descent
			b.ascent = over.y + over.ascent
		}
		if under != nil {
			under.y = -(base.descent + 1 + under.ascent)
			b.descent = under.descent - under.y
		}
	case b.tag == "msqrt" || b.tag == "mroot":
		// mroot indices are not drawn.
		if b.tag == "mroot" {
			c = c[:1]
			b.children = c
		}
		pad := size * 0.5
		b.row(c, pad)
		b.width += 1
		b.ascent += 2
	case b.tag == "mo":
		b.row(c, size*0.2)
		b.width += size * 0.2
	default:
		b.row(c, 0)
	}
}

// row places children side by side on the baseline after a left pad.
func (b *mathBox) row(c []*mathBox, pad float64) {
	b.width = pad
	for _, k := range c {
		k.x, k.y = b.width, 0
		b.width += k.width
		b.ascent = max(b.ascent, k.ascent)
		b.descent = max(b.descent, k.descent)
	}
}

// drawMath draws m with its baseline origin at (x, y).
func (e *engine) drawMath(m *mathBox, x, y float64) {
	if m.text != "" {
		e.write(e.b.CreateTextBegin())
		e.show(m.text, e.font(m.style), m.size, x, y, [3]float64{})
		e.write(e.b.CreateTextEnd())
	}
	lw := m.size / 24
	switch m.tag {
	case "mfrac":
		axis := y + m.size*0.25
		e.polyline(lw, x+1, axis, x+m.width-1, axis)
	case "msqrt", "mroot":
		top := y + m.ascent - 1
		pad := m.size * 0.5
		e.polyline(lw, x, y+m.ascent*0.4, x+pad*0.3, y+m.ascent*0.5, x+pad*0.55, y-m.descent, x+pad*0.9, top, x+m.width, top)
	}
	for _, c := range m.children {
		e.drawMath(c, x+c.x, y+c.y)
	}
}
