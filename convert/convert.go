// Package convert lays out plain text, Markdown and HTML as new pages of a
// PDF document. The layout is a single flowing column with word wrap,
// page breaks, link annotations and simple MathML typesetting.
package convert

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	treeblood "github.com/wyatt915/goldmark-treeblood"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Standard page sizes in points.
var (
	A4     = coords.Rect{X2: 595.28, Y2: 841.89}
	Letter = coords.Rect{X2: 612, Y2: 792}
)

// Margins are page margins in points.
type Margins struct {
	Top, Bottom, Left, Right float64
}

// Options configure the layout. Zero fields take the defaults noted.
type Options struct {
	// PageSize is the media box of new pages; A4.
	PageSize coords.Rect
	// Margins; 50 points on every side.
	Margins Margins
	// Font is a standard 14 family: Helvetica, Times-Roman or Courier.
	// Bold and italic spans use the family's variants. Helvetica.
	Font string
	// FontSize of body text; 12.
	FontSize float64
	// LineHeight is a multiple of the font size; 1.2.
	LineHeight float64
	// Outline adds a bookmark for every heading.
	Outline  bool
	Compress bool
	Logger   observability.Logger
}

func (o Options) withDefaults() Options {
	if o.PageSize.IsEmpty() {
		o.PageSize = A4
	}
	if o.Margins == (Margins{}) {
		o.Margins = Margins{Top: 50, Bottom: 50, Left: 50, Right: 50}
	}
	if o.Font == "" {
		o.Font = "Helvetica"
	}
	if o.FontSize <= 0 {
		o.FontSize = 12
	}
	if o.LineHeight <= 0 {
		o.LineHeight = 1.2
	}
	o.Logger = observability.OrNop(o.Logger)
	return o
}

func run(ctx context.Context, doc *pdf.Doc, opts Options, source string, body func(*engine)) error {
	ctx, span := observability.StartSpan(ctx, "convert."+source)
	defer span.Finish()
	e, err := newEngine(ctx, doc, opts)
	if err == nil {
		body(e)
		err = e.finish()
	}
	if err != nil {
		span.SetError(err)
		return err
	}
	span.SetTag("pages", e.pages)
	e.log.Debug("convert: done", observability.String("source", source), observability.Int("pages", e.pages))
	return nil
}

// FromText appends the lines of r as wrapped paragraphs. Blank lines leave
// a gap and form feeds start a new page.
func FromText(ctx context.Context, doc *pdf.Doc, r io.Reader, opts Options) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return run(ctx, doc, opts, "text", func(e *engine) {
		text := strings.ReplaceAll(string(data), "\r\n", "\n")
		for i, page := range strings.Split(text, "\f") {
			if i > 0 {
				e.newPage()
			}
			for _, line := range strings.Split(page, "\n") {
				if e.cancelled() {
					return
				}
				line = strings.ReplaceAll(line, "\t", "    ")
				if strings.TrimSpace(line) == "" {
					e.gap(e.opts.FontSize * e.opts.LineHeight)
					continue
				}
				e.paragraph([]span{{text: line}}, e.opts.FontSize, false)
			}
		}
	})
}

// markdown renders Markdown to HTML. $...$ and $$...$$ become MathML.
var markdown = goldmark.New(goldmark.WithExtensions(
	extension.Strikethrough,
	extension.Linkify,
	treeblood.MathML(),
))

// FromMarkdown appends the rendered Markdown source.
func FromMarkdown(ctx context.Context, doc *pdf.Doc, src []byte, opts Options) error {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return sdf.Errorf("convert markdown", sdf.ErrCorrupt, "%v", err)
	}
	return FromHTML(ctx, doc, &buf, opts)
}

// FromLaTeX appends a display formula written in LaTeX math notation.
func FromLaTeX(ctx context.Context, doc *pdf.Doc, latex string, opts Options) error {
	return FromMarkdown(ctx, doc, []byte("$$"+latex+"$$"), opts)
}

// FromHTML appends the HTML document read from r. Headings, paragraphs,
// lists, preformatted text, block quotes, rules, tables as rows of cells,
// inline styles, links and MathML are laid out; scripts, styles and images
// are skipped.
func FromHTML(ctx context.Context, doc *pdf.Doc, r io.Reader, opts Options) error {
	root, err := html.Parse(r)
	if err != nil {
		return sdf.Errorf("convert html", sdf.ErrCorrupt, "%v", err)
	}
	return run(ctx, doc, opts, "html", func(e *engine) { e.blocks(root) })
}

// FromFile converts the file at path chosen by its extension. Office
// formats return sdf.ErrUnsupported.
func FromFile(ctx context.Context, doc *pdf.Doc, path string, opts Options) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".doc", ".docx", ".odt", ".rtf", ".xls", ".xlsx", ".ppt", ".pptx":
		return sdf.Errorf("convert", sdf.ErrUnsupported, "office format %s", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext {
	case ".md", ".markdown":
		return FromMarkdown(ctx, doc, data, opts)
	case ".html", ".htm", ".xhtml":
		return FromHTML(ctx, doc, bytes.NewReader(data), opts)
	case ".txt", ".text", ".log", "":
		return FromText(ctx, doc, bytes.NewReader(data), opts)
	}
	return sdf.Errorf("convert", sdf.ErrUnsupported, "file type %s", ext)
}
