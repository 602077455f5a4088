package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/convert"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/fdf"
	"github.com/NityaNandPandey/AndroidPDF/impose"
	"github.com/NityaNandPandey/AndroidPDF/optimize"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/redact"
	"github.com/NityaNandPandey/AndroidPDF/render"
	"github.com/NityaNandPandey/AndroidPDF/replacer"
	"github.com/NityaNandPandey/AndroidPDF/scripting"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"github.com/NityaNandPandey/AndroidPDF/security"
	"github.com/NityaNandPandey/AndroidPDF/signature"
	"github.com/NityaNandPandey/AndroidPDF/stamper"
	"github.com/NityaNandPandey/AndroidPDF/textextract"
)

type scenario struct {
	about string
	run   func(ctx context.Context, e *env) error
}

var scenarios = map[string]scenario{
	"sdf":         {"count objects by type", objectTypes},
	"pages":       {"import, reorder and insert pages", reorderPages},
	"bookmarks":   {"add a bookmark per page and print the outline", bookmarks},
	"annotations": {"add link, note, square and highlight annotations", annotations},
	"elements":    {"list the content elements of page 1", elements},
	"encryption":  {"encrypt with AES-256, reopen and unlock", encryption},
	"optimizer":   {"merge, prune and compress objects", optimizer},
	"redact":      {"redact every account number", redaction},
	"draw":        {"rasterize page 1 to PNG", draw},
	"fdf":         {"export and import form data as FDF and XFDF", formData},
	"forms":       {"create fields and run calculation scripts", forms},
	"labels":      {"number pages with roman and decimal labels", labels},
	"stamper":     {"stamp a rotated DRAFT watermark", stamp},
	"text":        {"extract text and search it", text},
	"layers":      {"draw content into an optional content group", layers},
	"package":     {"embed files as a portable collection", portfolio},
	"signatures":  {"sign with a self-signed key and verify", signatures},
	"convert":     {"convert plain text and Markdown to PDF", conversion},
	"structure":   {"tag content and walk the logical structure tree", structure},
	"imposition":  {"place two pages side by side on each sheet", imposition},
	"replacer":    {"fill a business card template", replacement},
	"rect":        {"rectangle arithmetic and page boxes", rects},
	"memory":      {"open, edit and save entirely in memory", memory},
	"unicode":     {"write shaped Unicode text with an embedded font", unicodeText},
}

func objectTypes(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	sd := doc.SDF()
	counts := map[string]int{}
	for _, ref := range sd.Refs() {
		o, err := sd.Get(ref)
		if err != nil {
			counts["error"]++
			continue
		}
		counts[strings.TrimPrefix(fmt.Sprintf("%T", o), "*")]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-14s %d\n", k, counts[k])
	}
	return nil
}

func reorderPages(ctx context.Context, e *env) error {
	src, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer src.Close()
	doc := pdf.New()
	defer doc.Close()

	idx := make([]int, src.PageCount())
	for i := range idx {
		idx[i] = src.PageCount() - i
	}
	pages, err := doc.ImportPages(src, idx...)
	if err != nil {
		return err
	}
	for _, p := range pages {
		if err := doc.PagePushBack(p); err != nil {
			return err
		}
	}
	if err := doc.PagePushFront(doc.PageCreate(convert.Letter)); err != nil {
		return err
	}
	if err := doc.MovePage(1, doc.PageCount()); err != nil {
		return err
	}
	fmt.Printf("  %d pages reversed, blank page appended\n", src.PageCount())
	return e.save(doc, "pages.pdf", pdf.RemoveUnused)
}

func bookmarks(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	top := doc.AddRootBookmark("Pages")
	top.SetColor(0, 0, 0.6)
	for i, p := range doc.Pages() {
		b := top.AddChild(fmt.Sprintf("Page %d", i+1))
		b.SetAction(doc.GoToAction(pdf.XYZ(p, 0, p.Height(), 0)))
	}
	var walk func(b *pdf.Bookmark, depth int)
	walk = func(b *pdf.Bookmark, depth int) {
		for ; b != nil; b = b.Next() {
			fmt.Printf("  %s%s\n", strings.Repeat("  ", depth), b.Title())
			walk(b.FirstChild(), depth+1)
		}
	}
	walk(doc.FirstBookmark(), 0)
	return e.save(doc, "bookmarks.pdf", pdf.NoFlags)
}

func annotations(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	p := doc.Page(1)
	if p == nil {
		return errors.New("document has no pages")
	}
	box := p.MediaBox()

	link := doc.CreateLink(coords.Rect{X1: 50, Y1: 20, X2: 250, Y2: 40}, doc.URIAction("https://example.com/"))
	note := doc.CreateText(coords.Rect{X1: box.X2 - 60, Y1: box.Y2 - 60, X2: box.X2 - 40, Y2: box.Y2 - 40}, "Reviewed")
	sq := doc.CreateSquare(coords.Rect{X1: 40, Y1: 10, X2: 260, Y2: 50})
	sq.SetColor(1, 0, 0)
	annots := []*pdf.Annot{link, note, sq}

	res, err := textextract.Extract(ctx, p)
	if err != nil {
		return err
	}
	if words := res.Words(); len(words) > 0 {
		hl := doc.CreateTextMarkup("Highlight", []coords.Rect{words[0].BBox})
		hl.SetColor(1, 1, 0)
		annots = append(annots, hl)
	}
	for _, a := range annots {
		p.AddAnnot(a)
		if err := a.RefreshAppearance(); err != nil && !errors.Is(err, sdf.ErrUnsupported) {
			return err
		}
	}
	for _, a := range p.Annots() {
		fmt.Printf("  %-10s %v\n", a.Type(), a.Rect())
	}
	return e.save(doc, "annotations.pdf", pdf.NoFlags)
}

func elements(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	r := content.NewReader(doc)
	if err := r.Begin(ctx, doc.Page(1)); err != nil {
		return err
	}
	els, err := r.ReadAll(ctx, true)
	if err != nil {
		return err
	}
	counts := map[content.ElementType]int{}
	for _, el := range els {
		counts[el.Type]++
	}
	for t := content.ElementNull; t <= content.ElementMarkedContentPoint; t++ {
		if counts[t] > 0 {
			fmt.Printf("  %-22s %d\n", t, counts[t])
		}
	}
	return nil
}

func encryption(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	settings := security.DefaultSettings()
	settings.UserPassword = "user"
	settings.OwnerPassword = "owner"
	settings.Permissions.Copy = false
	if _, err := doc.NewSecurityHandler(settings); err != nil {
		return err
	}
	data, err := doc.SaveBytes(pdf.NoFlags)
	if err != nil {
		return err
	}
	if err := os.WriteFile(e.path("encrypted.pdf"), data, 0o644); err != nil {
		return err
	}

	back, err := pdf.OpenBytes(data, pdf.OpenOptions{Logger: e.log})
	if back == nil {
		return err
	}
	defer back.Close()
	if !errors.Is(err, pdf.ErrPasswordRequired) {
		return fmt.Errorf("reopen without password: got %v, want a password error", err)
	}
	fmt.Printf("  reopened: %s\n", back.SecurityState())
	if err := back.InitStdSecurityHandler("user"); err != nil {
		return err
	}
	fmt.Printf("  with user password: %s, copy allowed: %v\n", back.SecurityState(), back.Permissions().Copy)
	if err := back.RemoveSecurity(); err != nil {
		return err
	}
	return e.save(back, "decrypted.pdf", pdf.NoFlags)
}

func optimizer(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	rep, err := optimize.Optimize(ctx, doc, optimize.DefaultSettings())
	if err != nil {
		return err
	}
	fmt.Printf("  removed %d objects, merged %d streams and %d objects, compressed %d streams\n",
		rep.ObjectsRemoved, rep.StreamsMerged, rep.ObjectsMerged, rep.StreamsCompressed)
	fmt.Printf("  %d -> %d bytes\n", rep.BytesBefore, rep.BytesAfter)
	return e.save(doc, "optimized.pdf", pdf.RemoveUnused|pdf.Compress|pdf.ObjectStreams)
}

func redaction(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	matches, err := textextract.Search{Pattern: `\d{4}-\d{4}-\d{4}-\d{4}`, Regex: true}.Run(ctx, doc)
	if err != nil {
		return err
	}
	var rs []redact.Redaction
	for _, m := range matches {
		for _, q := range m.Quads {
			rs = append(rs, redact.Redaction{Page: m.Page, Rect: q, Text: "REDACTED"})
		}
	}
	rep, err := redact.Redact(ctx, doc, rs, redact.DefaultAppearance())
	if err != nil {
		return err
	}
	fmt.Printf("  %d matches: %d glyphs and %d elements removed on %d pages\n",
		len(matches), rep.Glyphs, rep.Elements, rep.Pages)
	return e.save(doc, "redacted.pdf", pdf.RemoveUnused|pdf.Compress)
}

func draw(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	opts := render.DefaultOptions()
	opts.DPI = 72
	out := e.path("page-1.png")
	if err := render.New(opts).WithLogger(e.log).ExportFile(ctx, doc.Page(1), out); err != nil {
		return err
	}
	fmt.Printf("  wrote %s\n", out)
	return nil
}

// formDoc adds two text fields and a total to page 1.
func formDoc(doc *pdf.Doc) error {
	p := doc.Page(1)
	if p == nil {
		return errors.New("document has no pages")
	}
	values := map[string]string{"qty": "3", "price": "12.5", "total": ""}
	y := 80.0
	for _, name := range []string{"qty", "price", "total"} {
		f, err := doc.CreateField(name, pdf.FieldText, values[name])
		if err != nil {
			return err
		}
		f.AddWidget(p, coords.Rect{X1: 300, Y1: y, X2: 400, Y2: y + 20})
		y -= 25
	}
	doc.Field("total").SetTrigger(pdf.TriggerCalculate,
		doc.JavaScriptAction(`event.value = getField("qty").value * getField("price").value;`))
	return nil
}

func forms(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	if err := formDoc(doc); err != nil {
		return err
	}
	if err := scripting.RunCalculations(ctx, doc, e.log); err != nil {
		return err
	}
	for _, f := range doc.Fields() {
		if err := f.RefreshAppearance(); err != nil {
			return err
		}
		fmt.Printf("  %-6s = %s\n", f.Name(), f.Value())
	}
	return e.save(doc, "forms.pdf", pdf.NoFlags)
}

func formData(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	if err := formDoc(doc); err != nil {
		return err
	}
	note := doc.CreateText(coords.Rect{X1: 20, Y1: 20, X2: 40, Y2: 40}, "exported note")
	note.SetUniqueID("note-1")
	doc.Page(1).AddAnnot(note)

	f, err := fdf.Export(doc, fdf.Options{File: "forms.pdf", Logger: e.log})
	if err != nil {
		return err
	}
	data, err := f.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(e.path("data.fdf"), data, 0o644); err != nil {
		return err
	}
	var xml bytes.Buffer
	if err := fdf.ExportXFDF(doc, &xml, fdf.Options{}); err != nil {
		return err
	}
	if err := os.WriteFile(e.path("data.xfdf"), xml.Bytes(), 0o644); err != nil {
		return err
	}

	// Change the values, then restore them from each export.
	for _, name := range []string{"qty", "price"} {
		if err := doc.Field(name).SetValue("0"); err != nil {
			return err
		}
	}
	back, err := fdf.Open(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if err := fdf.Import(doc, back, e.log); err != nil {
		return err
	}
	fmt.Printf("  after FDF import: qty=%s price=%s\n", doc.Field("qty").Value(), doc.Field("price").Value())
	if err := doc.Field("qty").SetValue("0"); err != nil {
		return err
	}
	if err := fdf.ImportXFDF(doc, bytes.NewReader(xml.Bytes()), e.log); err != nil {
		return err
	}
	fmt.Printf("  after XFDF import: qty=%s, %d annotations on page 1\n", doc.Field("qty").Value(), len(doc.Page(1).Annots()))
	return nil
}

func labels(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	// A two page cover section numbered i, ii and the body from 1.
	for doc.PageCount() < 3 {
		if err := doc.PagePushFront(doc.PageCreate(convert.A4)); err != nil {
			return err
		}
	}
	if err := doc.SetPageLabel(1, pdf.LabelRomanLower, "", 1); err != nil {
		return err
	}
	if err := doc.SetPageLabel(3, pdf.LabelDecimal, "P-", 1); err != nil {
		return err
	}
	for i := 1; i <= doc.PageCount(); i++ {
		fmt.Printf("  page %d: %s\n", i, doc.PageLabel(i))
	}
	return e.save(doc, "labels.pdf", pdf.NoFlags)
}

func stamp(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	s := stamper.New(stamper.RelativeScale, 0.6, 0.6)
	s.Rotation = 45
	s.Opacity = 0.3
	s.FontColor = []float64{0.8, 0, 0}
	if err := s.StampText(ctx, doc, "DRAFT", pdf.AllPageSet()); err != nil {
		return err
	}
	footer := stamper.New(stamper.FontSize, 9, 0)
	footer.VAlign = stamper.VBottom
	footer.HAlign = stamper.HRight
	footer.AsAnnotation = true
	footer.ShowsOnScreen = false
	if err := footer.StampText(ctx, doc, "printed copy", pdf.AllPageSet()); err != nil {
		return err
	}
	has, err := stamper.HasStamps(ctx, doc.Page(1))
	if err != nil {
		return err
	}
	fmt.Printf("  page 1 stamped: %v\n", has)
	return e.save(doc, "stamped.pdf", pdf.Compress)
}

func text(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	var all strings.Builder
	for i, p := range doc.Pages() {
		res, err := textextract.Extract(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(&all, "--- page %d ---\n%s\n", i+1, res.Text())
		if i == 0 {
			first, _, _ := strings.Cut(res.Text(), "\n")
			fmt.Printf("  first line: %q\n", first)
		}
	}
	if err := os.WriteFile(e.path("text.txt"), []byte(all.String()), 0o644); err != nil {
		return err
	}
	matches, err := textextract.Search{Pattern: "the", WholeWord: true}.Run(ctx, doc)
	if err != nil {
		return err
	}
	fmt.Printf("  %d whole-word matches of \"the\"\n", len(matches))
	return nil
}

func layers(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	p := doc.Page(1)
	if p == nil {
		return errors.New("document has no pages")
	}
	notes := doc.CreateOCG("Reviewer notes")
	grid := doc.CreateOCG("Grid")
	doc.SetOCGState(grid, false)

	w := content.NewWriter()
	if err := w.Begin(p, content.Overlay, true); err != nil {
		return err
	}
	b := content.NewBuilder(doc.SDF())
	box := p.MediaBox()
	var els []*content.Element

	oc := b.CreateMarkedContentBegin("OC", nil)
	oc.Properties = content.Resource{Obj: grid.Ref}
	els = append(els, oc)
	b.State().SetStrokeColor(content.DeviceGray, 0.8)
	b.State().LineWidth = 0.25
	for x := box.X1; x <= box.X2; x += 36 {
		b.PathBegin()
		b.MoveTo(x, box.Y1)
		b.LineTo(x, box.Y2)
		els = append(els, b.PathEnd())
	}
	els = append(els, b.CreateMarkedContentEnd())

	oc = b.CreateMarkedContentBegin("OC", nil)
	oc.Properties = content.Resource{Obj: notes.Ref}
	els = append(els, oc)
	font, err := content.NewStandardFont(doc.SDF(), "Helvetica-Oblique")
	if err != nil {
		w.End()
		return err
	}
	b.State().SetFillColor(content.DeviceRGB, 0, 0.5, 0)
	b.State().TextMatrix = coords.Translate(box.X1+40, box.Y1+60)
	b.State().TextLineMatrix = b.State().TextMatrix
	els = append(els, b.CreateTextBegin(), b.CreateTextRun("Checked against source data.", font, 11), b.CreateTextEnd())
	els = append(els, b.CreateMarkedContentEnd())

	for _, el := range els {
		if err := w.WriteElement(el); err != nil {
			w.End()
			return err
		}
	}
	if _, err := w.End(); err != nil {
		return err
	}
	for _, o := range doc.OCGs() {
		fmt.Printf("  %-16s on=%v\n", o.Name(), o.IsOn())
	}
	return e.save(doc, "layers.pdf", pdf.NoFlags)
}

func portfolio(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	doc.AddFile("readme.txt", []byte("Files attached to the sample report.\n"), "Read me")
	doc.AddFile("data.csv", []byte("quarter,revenue\nQ1,10\nQ2,12\n"), "Quarterly figures")
	doc.SetCollection(pdf.CollectionDetails)
	for _, f := range doc.Files() {
		data, err := doc.FileData(ctx, f.Name)
		if err != nil {
			return err
		}
		fmt.Printf("  %-12s %4d bytes  %s\n", f.Name, len(data), f.Description)
	}
	return e.save(doc, "package.pdf", pdf.Compress)
}

// selfSigned returns a throwaway ECDSA identity.
func selfSigned() (*signature.Identity, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "Sample Signer", Organization: []string{"Example"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, key.Public(), key)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &signature.Identity{Key: key, Chain: []*x509.Certificate{cert}}, nil
}

func signatures(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	id, err := selfSigned()
	if err != nil {
		return err
	}
	var signed bytes.Buffer
	err = signature.Sign(ctx, doc, &signed, id, signature.Options{
		FieldName: "Approval",
		Reason:    "Sample approval",
		Location:  "Samples",
		Rect:      coords.Rect{X1: 400, Y1: 20, X2: 560, Y2: 60},
		PAdES:     true,
		Logger:    e.log,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(e.path("signed.pdf"), signed.Bytes(), 0o644); err != nil {
		return err
	}
	results, err := signature.Verifier{Logger: e.log}.Verify(ctx, signed.Bytes())
	if err != nil {
		return err
	}
	for _, r := range results {
		status, signer := "valid", "unknown signer"
		if !r.Valid() {
			status = r.Err.Error()
		}
		if r.Signer != nil {
			signer = r.Signer.Subject.CommonName
		}
		fmt.Printf("  %s (%s) by %s: %s, covers document: %v\n",
			r.Field, r.SubFilter, signer, status, r.CoversDocument)
	}
	return nil
}

func conversion(ctx context.Context, e *env) error {
	txt := pdf.New()
	defer txt.Close()
	body := "Plain text conversion.\n\nLines wrap at the right margin and a form feed\fstarts a new page.\n"
	if err := convert.FromText(ctx, txt, strings.NewReader(body), convert.Options{PageSize: convert.Letter, Logger: e.log}); err != nil {
		return err
	}
	fmt.Printf("  text: %d pages\n", txt.PageCount())
	if err := e.save(txt, "text.pdf", pdf.Compress); err != nil {
		return err
	}

	md := pdf.New()
	defer md.Close()
	opts := convert.Options{Font: "Times-Roman", Outline: true, Compress: true, Logger: e.log}
	if err := convert.FromMarkdown(ctx, md, []byte(sampleMarkdown), opts); err != nil {
		return err
	}
	fmt.Printf("  markdown: %d pages\n", md.PageCount())
	return e.save(md, "markdown.pdf", pdf.NoFlags)
}

// writeTagged appends a page whose heading and paragraph are marked
// content sequences linked into a new structure tree.
func writeTagged(doc *pdf.Doc) error {
	p := doc.PageCreate(convert.Letter)
	if err := doc.PagePushBack(p); err != nil {
		return err
	}
	font, err := content.NewStandardFont(doc.SDF(), "Helvetica")
	if err != nil {
		return err
	}
	w := content.NewWriter()
	if err := w.Begin(p, content.Replacement, true); err != nil {
		return err
	}
	b := content.NewBuilder(doc.SDF())
	var els []*content.Element
	for i, run := range []struct {
		tag, text string
		size      float64
	}{{"H1", "Quarterly report", 20}, {"P", "Revenue grew in every region.", 11}} {
		props := sdf.NewDict()
		props.PutInt("MCID", int64(i))
		b.State().TextMatrix = coords.Translate(72, 700-float64(i)*40)
		b.State().TextLineMatrix = b.State().TextMatrix
		els = append(els,
			b.CreateMarkedContentBegin(run.tag, props),
			b.CreateTextBegin(), b.CreateTextRun(run.text, font, run.size), b.CreateTextEnd(),
			b.CreateMarkedContentEnd())
	}
	for _, el := range els {
		if err := w.WriteElement(el); err != nil {
			w.End()
			return err
		}
	}
	if _, err := w.End(); err != nil {
		return err
	}

	tree := doc.CreateStructTree()
	tree.SetRole("Heading", "H1")
	sect := tree.AppendKid("Sect")
	sect.SetTitle("Summary")
	h := sect.AppendKid("Heading")
	h.SetID("summary-heading")
	if err := h.AppendContent(p, 0); err != nil {
		return err
	}
	return sect.AppendKid("P").AppendContent(p, 1)
}

func structure(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	if doc.StructTree() == nil {
		fmt.Println("  no logical structure, tagging a new page")
		if err := writeTagged(doc); err != nil {
			return err
		}
	}
	tree := doc.StructTree()
	err = tree.Walk(func(el *pdf.StructElem, depth int) error {
		line := fmt.Sprintf("  %s%s", strings.Repeat("  ", depth), el.Type())
		if std := el.StandardType(); std != el.Type() {
			line += " (" + std + ")"
		}
		if el.HasTitle() {
			line += " title=" + el.Title()
		}
		for _, k := range el.Kids() {
			switch k.Kind {
			case pdf.KidMCID:
				if k.Page != nil {
					line += fmt.Sprintf(" [page %d mcid %d]", k.Page.Index(), k.MCID)
				}
			case pdf.KidOBJR:
				line += fmt.Sprintf(" [obj %d]", k.Obj.Num)
			}
		}
		fmt.Println(line)
		return nil
	})
	if err != nil {
		return err
	}

	// Text grouped by the structure element that owns it.
	for _, p := range doc.Pages() {
		r := content.NewReader(doc)
		if err := r.Begin(ctx, p); err != nil {
			return err
		}
		els, err := r.ReadAll(ctx, true)
		if err != nil {
			return err
		}
		for _, el := range els {
			if el.Type != content.ElementText || el.MCID < 0 {
				continue
			}
			if parent := tree.ParentElem(p, el.MCID); parent != nil {
				fmt.Printf("  page %d <%s> %s\n", p.Index(), parent.StandardType(), el.TextString())
			}
		}
	}
	return e.save(doc, "tagged.pdf", pdf.NoFlags)
}

func imposition(ctx context.Context, e *env) error {
	src, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer src.Close()
	doc := pdf.New()
	defer doc.Close()
	l := impose.TwoUp()
	l.Center, l.Compress, l.Logger = true, true, e.log
	sheets, err := impose.Impose(ctx, doc, src.Pages(), l)
	if err != nil {
		return err
	}
	fmt.Printf("  %d pages on %d sheets\n", src.PageCount(), len(sheets))
	return e.save(doc, "booklet.pdf", pdf.Linearized)
}

func replacement(ctx context.Context, e *env) error {
	doc := pdf.New()
	defer doc.Close()
	card := doc.PageCreate(coords.Rect{X2: 252, Y2: 144})
	if err := doc.PagePushBack(card); err != nil {
		return err
	}
	font, err := content.NewStandardFont(doc.SDF(), "Helvetica")
	if err != nil {
		return err
	}
	w := content.NewWriter()
	if err := w.Begin(card, content.Replacement, false); err != nil {
		return err
	}
	b := content.NewBuilder(doc.SDF())
	els := []*content.Element{b.CreateTextBegin()}
	for i, line := range []string{"[NAME]", "[JOB_TITLE]", "[PHONE_OFFICE]  [EMAIL]"} {
		b.State().TextMatrix = coords.Translate(16, 110-float64(i)*18)
		b.State().TextLineMatrix = b.State().TextMatrix
		els = append(els, b.CreateTextRun(line, font, 10))
	}
	els = append(els, b.CreateTextEnd())
	for _, el := range els {
		if err := w.WriteElement(el); err != nil {
			w.End()
			return err
		}
	}
	if _, err := w.End(); err != nil {
		return err
	}

	r := replacer.New()
	r.Logger = e.log
	r.AddString("NAME", "Priya Raman")
	r.AddString("JOB_TITLE", "Software Developer")
	r.AddString("PHONE_OFFICE", "020-555-0100")
	r.AddString("EMAIL", "priya@example.com")
	rep, err := r.Process(ctx, card)
	if err != nil {
		return err
	}
	fmt.Printf("  card: %d placeholders filled\n", rep.Strings)
	if err := e.save(doc, "business_card.pdf", pdf.RemoveUnused); err != nil {
		return err
	}

	src, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer src.Close()
	p := src.Page(1)
	if p == nil {
		return errors.New("document has no pages")
	}
	r = replacer.New()
	r.AddText(p.MediaBox(), strings.Repeat("hello ", 10))
	if rep, err = r.Process(ctx, p); err != nil {
		return err
	}
	fmt.Printf("  page 1: %d text runs replaced\n", rep.Texts)
	return e.save(src, "content_replaced.pdf", pdf.RemoveUnused)
}

func rects(ctx context.Context, e *env) error {
	a := coords.NewRect(10, 10, 110, 60)
	b := coords.NewRect(80, 40, 200, 120)
	fmt.Printf("  a=%v b=%v\n", a, b)
	fmt.Printf("  a.Width=%g a.Height=%g\n", a.Width(), a.Height())
	if in, ok := a.Intersect(b); ok {
		fmt.Printf("  a∩b=%v\n", in)
	}
	fmt.Printf("  a∪b=%v inflated=%v\n", a.Union(b), a.Inflate(5))
	fmt.Printf("  a contains (50,30): %v\n", a.Contains(50, 30))

	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	defer doc.Close()
	p := doc.Page(1)
	if p == nil {
		return errors.New("document has no pages")
	}
	media := p.MediaBox()
	fmt.Printf("  page 1 media box %v\n", media)
	// Shift the media box and trim a crop box inside it.
	p.SetMediaBox(coords.Translate(-media.X1+10, -media.Y1+10).TransformRect(media))
	p.SetCropBox(p.MediaBox().Inflate(-18))
	fmt.Printf("  new media box %v, crop box %v\n", p.MediaBox(), p.CropBox())
	return e.save(doc, "rect.pdf", pdf.NoFlags)
}

func memory(ctx context.Context, e *env) error {
	doc, err := e.source(ctx)
	if err != nil {
		return err
	}
	data, err := doc.SaveBytes(pdf.NoFlags)
	doc.Close()
	if err != nil {
		return err
	}
	fmt.Printf("  serialized %d bytes\n", len(data))

	mem, err := pdf.OpenBytes(data, pdf.OpenOptions{Logger: e.log})
	if err != nil {
		return err
	}
	defer mem.Close()
	font, err := content.NewStandardFont(mem.SDF(), "Helvetica")
	if err != nil {
		return err
	}
	for _, p := range mem.Pages() {
		w := content.NewWriter()
		if err := w.Begin(p, content.Overlay, true); err != nil {
			return err
		}
		b := content.NewBuilder(mem.SDF())
		b.State().TextMatrix = coords.Translate(p.MediaBox().X1+20, p.MediaBox().Y1+20)
		b.State().TextLineMatrix = b.State().TextMatrix
		for _, el := range []*content.Element{b.CreateTextBegin(), b.CreateTextRun(fmt.Sprintf("%d", p.Index()), font, 9), b.CreateTextEnd()} {
			if err := w.WriteElement(el); err != nil {
				w.End()
				return err
			}
		}
		if _, err := w.End(); err != nil {
			return err
		}
	}
	// An incremental update appends to the bytes the document came from.
	var buf bytes.Buffer
	if err := mem.SaveTo(ctx, &buf, pdf.Incremental); err != nil {
		return err
	}
	fmt.Printf("  incremental update added %d bytes\n", buf.Len()-len(data))
	if err := os.WriteFile(e.path("memory.pdf"), buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Printf("  wrote %s\n", e.path("memory.pdf"))
	return nil
}

func unicodeText(ctx context.Context, e *env) error {
	doc := pdf.New()
	defer doc.Close()
	p := doc.PageCreate(convert.Letter)
	if err := doc.PagePushBack(p); err != nil {
		return err
	}
	font, err := content.NewType0Font(doc.SDF(), goregular.TTF)
	if err != nil {
		return err
	}
	w := content.NewWriter()
	if err := w.Begin(p, content.Replacement, true); err != nil {
		return err
	}
	b := content.NewBuilder(doc.SDF())
	els := []*content.Element{b.CreateTextBegin()}
	lines := []string{
		"Unicode text with an embedded font",
		"Ελληνικά: καλημέρα κόσμε",
		"Кириллица: съешь же ещё этих мягких булок",
		"Latin: Ærøskøbing, Łódź, Ğüneş, Ça va?",
		"Symbols: € £ ¥ ± ≤ ≥ → ∞",
	}
	for i, line := range lines {
		size := 12.0
		if i == 0 {
			size = 18
		}
		b.State().TextMatrix = coords.Translate(72, 720-float64(i)*28)
		b.State().TextLineMatrix = b.State().TextMatrix
		els = append(els, b.CreateUnicodeTextRun(line, font, size))
	}
	els = append(els, b.CreateTextEnd())
	for _, el := range els {
		if err := w.WriteElement(el); err != nil {
			w.End()
			return err
		}
	}
	if _, err := w.End(); err != nil {
		return err
	}
	res, err := textextract.Extract(ctx, p)
	if err != nil {
		return err
	}
	fmt.Printf("  %d lines written, first: %q\n", len(res.Lines()), lines[0])
	return e.save(doc, "unicode.pdf", pdf.Compress)
}
