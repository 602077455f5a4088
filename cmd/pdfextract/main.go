package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/internal/cli"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/textextract"
)

type featureSelection struct {
	Text        bool
	Images      bool
	Annotations bool
	Metadata    bool
	Bookmarks   bool
	TOC         bool
	Fonts       bool
	Attachments bool
}

type options struct {
	pdfPath  string
	outDir   string
	password string
	verbose  bool
	features featureSelection
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfextract: %v\n", err)
		os.Exit(2)
	}
	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfextract: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pdfextract [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	text := flag.Bool("text", false, "Extract text per page")
	images := flag.Bool("images", false, "Extract image XObjects to disk")
	annotations := flag.Bool("annotations", false, "List annotations per page")
	metadata := flag.Bool("metadata", false, "Dump document metadata")
	bookmarks := flag.Bool("bookmarks", false, "Dump document outlines")
	toc := flag.Bool("toc", false, "Emit a flattened table of contents")
	fonts := flag.Bool("fonts", false, "Report font usage across pages")
	attachments := flag.Bool("attachments", false, "Extract embedded files to disk")
	outDir := flag.String("out", "extract_output", "Directory for binary artifacts (images/attachments)")
	password := flag.String("password", "", "Password to open encrypted PDFs")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	opts.pdfPath = flag.Arg(0)
	opts.outDir = *outDir
	opts.password = *password
	opts.verbose = *verbose
	opts.features = featureSelection{
		Text:        *text,
		Images:      *images,
		Annotations: *annotations,
		Metadata:    *metadata,
		Bookmarks:   *bookmarks,
		TOC:         *toc,
		Fonts:       *fonts,
		Attachments: *attachments,
	}
	if opts.features == (featureSelection{}) {
		opts.features = featureSelection{Text: true, Images: true, Annotations: true, Metadata: true, Bookmarks: true, TOC: true, Fonts: true, Attachments: true}
	}
	return opts, nil
}

func run(ctx context.Context, opts options) error {
	doc, err := cli.Open(opts.pdfPath, opts.password, cli.TerminalPrompt, cli.NewLogger(opts.verbose))
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	if opts.features.Text {
		pages, err := extractText(ctx, doc)
		if err != nil {
			return fmt.Errorf("extract text: %w", err)
		}
		if err := emitSection("text", pages); err != nil {
			return err
		}
	}
	if opts.features.Images {
		summaries, err := writeImages(ctx, doc, filepath.Join(opts.outDir, "images"))
		if err != nil {
			return err
		}
		if err := emitSection("images", summaries); err != nil {
			return err
		}
	}
	if opts.features.Annotations {
		if err := emitSection("annotations", extractAnnotations(doc)); err != nil {
			return err
		}
	}
	if opts.features.Metadata {
		if err := emitSection("metadata", extractMetadata(doc)); err != nil {
			return err
		}
	}
	if opts.features.Bookmarks {
		if err := emitSection("bookmarks", extractBookmarks(doc, doc.FirstBookmark())); err != nil {
			return err
		}
	}
	if opts.features.TOC {
		if err := emitSection("table_of_contents", tableOfContents(doc)); err != nil {
			return err
		}
	}
	if opts.features.Fonts {
		if err := emitSection("fonts", extractFonts(doc)); err != nil {
			return err
		}
	}
	if opts.features.Attachments {
		summaries, err := writeAttachments(ctx, doc, filepath.Join(opts.outDir, "attachments"))
		if err != nil {
			return err
		}
		if err := emitSection("attachments", summaries); err != nil {
			return err
		}
	}
	return nil
}

type pageText struct {
	Page  int      `json:"page"`
	Lines []string `json:"lines"`
}

func extractText(ctx context.Context, doc *pdf.Doc) ([]pageText, error) {
	var out []pageText
	for i := 1; i <= doc.PageCount(); i++ {
		r, err := textextract.Extract(ctx, doc.Page(i))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pt := pageText{Page: i}
		if t := r.Text(); t != "" {
			pt.Lines = strings.Split(t, "\n")
		}
		out = append(out, pt)
	}
	return out, nil
}

type annotation struct {
	Page     int       `json:"page"`
	Subtype  string    `json:"subtype"`
	Rect     []float64 `json:"rect"`
	Contents string    `json:"contents,omitempty"`
	URI      string    `json:"uri,omitempty"`
}

func extractAnnotations(doc *pdf.Doc) []annotation {
	var out []annotation
	for i := 1; i <= doc.PageCount(); i++ {
		for _, a := range doc.Page(i).Annots() {
			r := a.Rect()
			an := annotation{
				Page:     i,
				Subtype:  a.Type(),
				Rect:     []float64{r.X1, r.Y1, r.X2, r.Y2},
				Contents: a.Contents(),
			}
			if act := a.Action(); act != nil {
				an.URI = act.URI()
			}
			out = append(out, an)
		}
	}
	return out
}

type metadata struct {
	Title     string    `json:"title,omitempty"`
	Author    string    `json:"author,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Keywords  string    `json:"keywords,omitempty"`
	Creator   string    `json:"creator,omitempty"`
	Producer  string    `json:"producer,omitempty"`
	Created   time.Time `json:"created,omitzero"`
	Modified  time.Time `json:"modified,omitzero"`
	Pages     int       `json:"pages"`
	Encrypted string    `json:"security"`
	XMP       bool      `json:"xmp"`
}

func extractMetadata(doc *pdf.Doc) metadata {
	info := doc.Info()
	_, hasXMP := doc.Catalog().Find("Metadata")
	return metadata{
		Title:     info.Title,
		Author:    info.Author,
		Subject:   info.Subject,
		Keywords:  info.Keywords,
		Creator:   info.Creator,
		Producer:  info.Producer,
		Created:   info.Created,
		Modified:  info.Modified,
		Pages:     doc.PageCount(),
		Encrypted: doc.SecurityState().String(),
		XMP:       hasXMP,
	}
}

type bookmark struct {
	Title    string     `json:"title"`
	Page     int        `json:"page,omitempty"`
	Children []bookmark `json:"children,omitempty"`
}

func extractBookmarks(doc *pdf.Doc, b *pdf.Bookmark) []bookmark {
	var out []bookmark
	for ; b != nil; b = b.Next() {
		out = append(out, bookmark{
			Title:    b.Title(),
			Page:     bookmarkPage(doc, b),
			Children: extractBookmarks(doc, b.FirstChild()),
		})
	}
	return out
}

// bookmarkPage returns the 1-based target page of b, or 0.
func bookmarkPage(doc *pdf.Doc, b *pdf.Bookmark) int {
	act := b.Action()
	if act == nil {
		return 0
	}
	dst, ok := act.Dest()
	if !ok {
		return 0
	}
	for i, p := range doc.Pages() {
		if p.Ref == dst.Page {
			return i + 1
		}
	}
	return 0
}

type tocEntry struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Page  int    `json:"page,omitempty"`
}

func tableOfContents(doc *pdf.Doc) []tocEntry {
	var out []tocEntry
	var walk func(b *pdf.Bookmark, level int)
	walk = func(b *pdf.Bookmark, level int) {
		for ; b != nil; b = b.Next() {
			out = append(out, tocEntry{Level: level, Title: b.Title(), Page: bookmarkPage(doc, b)})
			walk(b.FirstChild(), level+1)
		}
	}
	walk(doc.FirstBookmark(), 1)
	return out
}

type fontUsage struct {
	BaseFont string `json:"baseFont"`
	Subtype  string `json:"subtype"`
	Embedded bool   `json:"embedded"`
	Pages    []int  `json:"pages"`
}

func extractFonts(doc *pdf.Doc) []fontUsage {
	sd := doc.SDF()
	var out []fontUsage
	index := make(map[sdf.Obj]int)
	for i := 1; i <= doc.PageCount(); i++ {
		res := doc.Page(i).ResourcesNoCreate()
		if res == nil {
			continue
		}
		fonts := sd.Dict(res.Get("Font"))
		if fonts == nil {
			continue
		}
		for _, name := range fonts.SortedKeys() {
			o := fonts.Get(name)
			key := o
			if _, ok := o.(sdf.Ref); !ok {
				key = sdf.Name(fmt.Sprintf("%d/%s", i, name))
			}
			if k, ok := index[key]; ok {
				if u := &out[k]; u.Pages[len(u.Pages)-1] != i {
					u.Pages = append(u.Pages, i)
				}
				continue
			}
			f, err := content.LoadFont(sd, o)
			if err != nil {
				continue
			}
			index[key] = len(out)
			out = append(out, fontUsage{
				BaseFont: f.BaseFont,
				Subtype:  f.Subtype,
				Embedded: f.Embedded() != nil,
				Pages:    []int{i},
			})
		}
	}
	return out
}

type imageSummary struct {
	Page         int    `json:"page"`
	ResourceName string `json:"resource"`
	Width        int64  `json:"width"`
	Height       int64  `json:"height"`
	Bits         int64  `json:"bitsPerComponent"`
	ColorSpace   string `json:"colorSpace"`
	Path         string `json:"path"`
}

type attachmentSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
}

func writeImages(ctx context.Context, doc *pdf.Doc, dir string) ([]imageSummary, error) {
	sd := doc.SDF()
	var summaries []imageSummary
	for i := 1; i <= doc.PageCount(); i++ {
		res := doc.Page(i).ResourcesNoCreate()
		if res == nil {
			continue
		}
		xobjs := sd.Dict(res.Get("XObject"))
		if xobjs == nil {
			continue
		}
		for _, name := range xobjs.SortedKeys() {
			st := sd.Stream(xobjs.Get(name))
			if st == nil {
				continue
			}
			if sub, _ := st.Dict.NameValue("Subtype"); sub != "Image" {
				continue
			}
			data, err := doc.DecodeStream(ctx, st)
			if err != nil {
				// Codecs that are not decoded keep their encoded bytes.
				data = st.Data
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create image dir: %w", err)
			}
			path := filepath.Join(dir, fmt.Sprintf("page-%03d-%s.bin", i, safeName(string(name))))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return nil, fmt.Errorf("write image %q: %w", path, err)
			}
			w, _ := sd.Int(st.Dict.Get("Width"))
			h, _ := sd.Int(st.Dict.Get("Height"))
			bpc, _ := sd.Int(st.Dict.Get("BitsPerComponent"))
			cs := ""
			if n, ok := sd.Name(st.Dict.Get("ColorSpace")); ok {
				cs = string(n)
			} else if arr := sd.Array(st.Dict.Get("ColorSpace")); arr != nil {
				if n, ok := sd.Name(arr.At(0)); ok {
					cs = string(n)
				}
			}
			summaries = append(summaries, imageSummary{
				Page:         i,
				ResourceName: string(name),
				Width:        w,
				Height:       h,
				Bits:         bpc,
				ColorSpace:   cs,
				Path:         path,
			})
		}
	}
	return summaries, nil
}

func writeAttachments(ctx context.Context, doc *pdf.Doc, dir string) ([]attachmentSummary, error) {
	files := doc.Files()
	if len(files) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	summaries := make([]attachmentSummary, 0, len(files))
	for idx, file := range files {
		name := file.Name
		if name == "" {
			name = fmt.Sprintf("attachment_%d.bin", idx+1)
		}
		data, err := doc.FileData(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("read attachment %q: %w", file.Name, err)
		}
		path := filepath.Join(dir, safeName(name))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write attachment %q: %w", path, err)
		}
		summaries = append(summaries, attachmentSummary{
			Name:        file.Name,
			Description: file.Description,
			Size:        int64(len(data)),
			Path:        path,
		})
	}
	return summaries, nil
}

func emitSection(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	fmt.Printf("== %s ==\n%s\n\n", name, data)
	return nil
}

func safeName(name string) string {
	if name == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
