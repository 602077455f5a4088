package convert

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// inline is the style inherited by text inside inline elements.
type inline struct {
	style     style
	color     [3]float64
	link      string
	underline bool
	strike    bool
}

var linkColor = [3]float64{0, 0, 0.8}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isMath(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == "math" }

func isInline(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return true
	case html.ElementNode:
	default:
		return false
	}
	if isMath(n) {
		return attr(n, "display") != "block"
	}
	switch n.DataAtom {
	case atom.A, atom.Abbr, atom.B, atom.Big, atom.Br, atom.Cite, atom.Code, atom.Del, atom.Em,
		atom.Font, atom.I, atom.Img, atom.Ins, atom.Kbd, atom.Label, atom.Mark, atom.Q, atom.S,
		atom.Samp, atom.Small, atom.Span, atom.Strike, atom.Strong, atom.Sub, atom.Sup, atom.Tt,
		atom.U, atom.Var:
		return true
	}
	return false
}

// blocks lays out the children of n. Consecutive inline children form an
// anonymous paragraph.
func (e *engine) blocks(n *html.Node) {
	var run []*html.Node
	flush := func() {
		if len(run) == 0 {
			return
		}
		spans := e.spans(run, inline{})
		run = nil
		if hasContent(spans) {
			e.paragraph(spans, e.opts.FontSize, displayed(spans))
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if e.cancelled() {
			return
		}
		if isInline(c) {
			run = append(run, c)
			continue
		}
		flush()
		e.block(c)
	}
	flush()
}

func (e *engine) block(n *html.Node) {
	if n.Type != html.ElementNode {
		return
	}
	size := e.opts.FontSize
	if isMath(n) {
		if box := e.measureMath(n, size); box != nil {
			e.paragraph([]span{{math: box}}, size, true)
			e.gap(size * 0.5)
		}
		return
	}
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Template, atom.Noscript:
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		e.heading(int(n.Data[1]-'0'), e.spans(children(n), inline{}))
	case atom.P:
		spans := e.spans(children(n), inline{})
		e.paragraph(spans, size, displayed(spans))
		e.gap(size * 0.5)
	case atom.Ul, atom.Ol:
		e.list(n)
	case atom.Pre:
		e.preformatted(textContent(n))
		e.gap(size * 0.5)
	case atom.Blockquote:
		e.indent += 2 * size
		e.blocks(n)
		e.indent -= 2 * size
	case atom.Hr:
		e.hr()
	case atom.Table:
		e.table(n)
		e.gap(size * 0.5)
	default:
		e.blocks(n)
	}
}

func (e *engine) list(n *html.Node) {
	ordered := n.DataAtom == atom.Ol
	num := 1
	if v, err := strconv.Atoi(attr(n, "start")); err == nil {
		num = v
	}
	indent := 1.5 * e.opts.FontSize
	e.indent += indent
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if c.DataAtom != atom.Li {
			e.block(c)
			continue
		}
		if ordered {
			e.marker = strconv.Itoa(num) + "."
			num++
		} else {
			e.marker = "•"
		}
		e.blocks(c)
		e.marker = ""
	}
	e.indent -= indent
	if e.indent == 0 {
		e.gap(e.opts.FontSize * 0.5)
	}
}

// table lays out each row as one paragraph of cells separated by bars.
func (e *engine) table(n *html.Node) {
	var rows []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.DataAtom {
			case atom.Tr:
				rows = append(rows, c)
			case atom.Thead, atom.Tbody, atom.Tfoot:
				walk(c)
			}
		}
	}
	walk(n)
	for _, tr := range rows {
		var spans []span
		for td := tr.FirstChild; td != nil; td = td.NextSibling {
			if td.DataAtom != atom.Td && td.DataAtom != atom.Th {
				continue
			}
			if len(spans) > 0 {
				spans = append(spans, span{text: " | "})
			}
			st := inline{}
			if td.DataAtom == atom.Th {
				st.style |= bold
			}
			spans = append(spans, e.spans(children(td), st)...)
		}
		if hasContent(spans) {
			e.paragraph(spans, e.opts.FontSize, false)
		}
	}
}

func (e *engine) spans(nodes []*html.Node, st inline) []span {
	var out []span
	for _, n := range nodes {
		e.inline(n, st, &out)
	}
	return out
}

func (e *engine) inline(n *html.Node, st inline, out *[]span) {
	switch n.Type {
	case html.TextNode:
		*out = append(*out, span{
			text: n.Data, style: st.style, color: st.color,
			link: st.link, underline: st.underline, strike: st.strike,
		})
		return
	case html.ElementNode:
	default:
		return
	}
	if isMath(n) {
		if box := e.measureMath(n, e.opts.FontSize); box != nil {
			*out = append(*out, span{math: box, display: attr(n, "display") == "block"})
		}
		return
	}
	switch n.DataAtom {
	case atom.B, atom.Strong:
		st.style |= bold
	case atom.I, atom.Em, atom.Cite, atom.Var:
		st.style |= italic
	case atom.Code, atom.Tt, atom.Kbd, atom.Samp:
		st.style |= mono
	case atom.U, atom.Ins:
		st.underline = true
	case atom.S, atom.Del, atom.Strike:
		st.strike = true
	case atom.A:
		if href := attr(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
			st.link = href
			st.color = linkColor
			st.underline = true
		}
	case atom.Br:
		*out = append(*out, span{brk: true})
		return
	case atom.Img, atom.Script, atom.Style:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.inline(c, st, out)
	}
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}
