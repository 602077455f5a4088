package textextract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
)

// Search describes a text search over a document.
type Search struct {
	Pattern       string
	Regex         bool
	CaseSensitive bool
	WholeWord     bool
	// Pages restricts the search to these 1-based pages; empty means all.
	Pages []int
}

// Match is one occurrence. Quads holds one box per line the match spans.
type Match struct {
	Page  int
	Text  string
	Quads []coords.Rect
}

func (s Search) compile() (*regexp.Regexp, error) {
	pat := s.Pattern
	if !s.Regex {
		pat = regexp.QuoteMeta(pat)
	}
	if s.WholeWord {
		pat = `\b(?:` + pat + `)\b`
	}
	if !s.CaseSensitive {
		pat = "(?i)" + pat
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, fmt.Errorf("search pattern: %w", err)
	}
	return re, nil
}

// Run searches doc. Each page is read under the document's read lock,
// so other goroutines may edit the document between pages.
func (s Search) Run(ctx context.Context, doc *pdf.Doc) ([]Match, error) {
	if s.Pattern == "" {
		return nil, nil
	}
	re, err := s.compile()
	if err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, "textextract.search")
	defer span.Finish()

	pages := s.Pages
	if len(pages) == 0 {
		doc.LockRead()
		n := doc.PageCount()
		doc.UnlockRead()
		for i := 1; i <= n; i++ {
			pages = append(pages, i)
		}
	}
	var out []Match
	for _, i := range pages {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		doc.LockRead()
		page := doc.Page(i)
		var res *Result
		if page != nil {
			res, err = Extract(ctx, page)
		}
		doc.UnlockRead()
		if page == nil {
			continue
		}
		if err != nil {
			span.SetError(err)
			return out, fmt.Errorf("page %d: %w", i, err)
		}
		out = append(out, res.find(re)...)
	}
	return out, nil
}

// find matches re against the page text and maps each match back to the
// characters it covers.
func (r *Result) find(re *regexp.Regexp) []Match {
	type owner struct{ line, word, char int }
	var b strings.Builder
	var owners []owner
	for li, l := range r.lines {
		if li > 0 {
			b.WriteByte('\n')
			owners = append(owners, owner{-1, -1, -1})
		}
		for wi, w := range l.Words {
			if wi > 0 {
				b.WriteByte(' ')
				owners = append(owners, owner{-1, -1, -1})
			}
			for ci, c := range w.Chars {
				b.WriteString(c.Text)
				for range c.Text {
					owners = append(owners, owner{li, wi, ci})
				}
			}
		}
	}
	text := b.String()
	// owners is indexed by byte, so extend multi-byte characters.
	byByte := make([]owner, 0, len(text))
	oi := 0
	for _, rn := range text {
		o := owners[oi]
		oi++
		for k := 0; k < len(string(rn)); k++ {
			byByte = append(byByte, o)
		}
	}

	var out []Match
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if loc[0] == loc[1] {
			continue
		}
		m := Match{Page: r.Page, Text: text[loc[0]:loc[1]]}
		quads := map[int]coords.Rect{}
		var order []int
		for i := loc[0]; i < loc[1] && i < len(byByte); i++ {
			o := byByte[i]
			if o.line < 0 {
				continue
			}
			box := r.lines[o.line].Words[o.word].Chars[o.char].BBox
			if q, ok := quads[o.line]; ok {
				quads[o.line] = q.Union(box)
			} else {
				quads[o.line] = box
				order = append(order, o.line)
			}
		}
		for _, li := range order {
			m.Quads = append(m.Quads, quads[li])
		}
		out = append(out, m)
	}
	return out
}
