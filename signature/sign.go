package signature

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

const (
	subFilterPKCS7 = "adbe.pkcs7.detached"
	subFilterCAdES = "ETSI.CAdES.detached"

	// DefaultReserve is the number of bytes kept for the CMS envelope.
	DefaultReserve = 8192
)

// Options configure Sign.
type Options struct {
	// FieldName names the signature field. A missing field is created;
	// an existing one must be an unsigned signature field.
	FieldName   string
	Reason      string
	Location    string
	ContactInfo string
	// Page and Rect place the widget of a created field. Page defaults to
	// 1; an empty Rect makes the signature invisible.
	Page int
	Rect coords.Rect
	// PAdES writes an ETSI.CAdES.detached signature with a
	// signing-certificate-v2 attribute instead of adbe.pkcs7.detached.
	PAdES bool
	// Reserve overrides DefaultReserve.
	Reserve int
	// Time is the signing time; zero means now.
	Time   time.Time
	Logger observability.Logger
}

// byteRangeMax fills the /ByteRange placeholder written before the
// offsets are known, giving each offset ten digits.
const byteRangeMax = 9999999999

// Sign writes doc followed by an incremental update that adds a
// signature to w. A document never saved is written in full first.
func Sign(ctx context.Context, doc *pdf.Doc, w io.Writer, id *Identity, opts Options) (err error) {
	ctx, span := observability.StartSpan(ctx, "signature.sign")
	defer func() {
		span.SetError(err)
		span.Finish()
	}()
	if id == nil || id.Key == nil || id.Certificate() == nil {
		return sdf.Errorf("sign", sdf.ErrNotFound, "identity has no key or certificate")
	}
	if opts.FieldName == "" {
		opts.FieldName = "Signature1"
	}
	if opts.Page == 0 {
		opts.Page = 1
	}
	if opts.Reserve <= 0 {
		opts.Reserve = DefaultReserve
	}
	if opts.Time.IsZero() {
		opts.Time = time.Now()
	}
	log := observability.OrNop(opts.Logger)
	if !sdf.IsNull(doc.SDF().Trailer().Get("Encrypt")) {
		return sdf.Errorf("sign", sdf.ErrUnsupported, "signing encrypted documents")
	}
	if doc.SDF().Source == nil {
		data, err := doc.SaveBytes(pdf.NoFlags)
		if err != nil {
			return err
		}
		if doc, err = pdf.OpenBytes(data, pdf.OpenOptions{Logger: opts.Logger}); err != nil {
			return err
		}
	}

	field, err := signatureField(doc, opts)
	if err != nil {
		return err
	}
	sd := doc.SDF()
	placeholder := sdf.NewArray(sdf.Int(0), sdf.Int(byteRangeMax), sdf.Int(byteRangeMax), sdf.Int(byteRangeMax))
	sig := sdf.NewDict()
	sig.PutName("Type", "Sig")
	sig.PutName("Filter", "Adobe.PPKLite")
	if opts.PAdES {
		sig.PutName("SubFilter", subFilterCAdES)
	} else {
		sig.PutName("SubFilter", subFilterPKCS7)
	}
	sig.PutString("M", pdf.FormatDate(opts.Time))
	if cn := id.Certificate().Subject.CommonName; cn != "" {
		sig.PutText("Name", cn)
	}
	for _, e := range []struct {
		key sdf.Name
		v   string
	}{{"Reason", opts.Reason}, {"Location", opts.Location}, {"ContactInfo", opts.ContactInfo}} {
		if e.v != "" {
			sig.PutText(e.key, e.v)
		}
	}
	sig.Set("ByteRange", placeholder)
	sig.Set("Contents", sdf.HexStr(make([]byte, opts.Reserve)))
	field.Dict.Set("V", sd.CreateIndirect(sig))
	if af := sd.Dict(doc.Catalog().Get("AcroForm")); af != nil {
		af.PutInt("SigFlags", 3)
	}
	for _, wd := range field.Widgets() {
		if err := signatureAppearance(doc, wd, id.Certificate().Subject.CommonName, opts.Time); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := doc.SaveTo(ctx, &buf, pdf.Incremental); err != nil {
		return err
	}
	out := buf.Bytes()
	hole := "<" + strings.Repeat("0", 2*opts.Reserve) + ">"
	start := bytes.LastIndex(out, []byte(hole))
	brText := sdf.Bytes(placeholder)
	br := bytes.LastIndex(out, brText)
	if start < 0 || br < 0 {
		return sdf.Errorf("sign", sdf.ErrCorrupt, "signature placeholders not found in the update")
	}
	end := start + len(hole)
	ranges := fmt.Sprintf("[0 %d %d %d", start, end, len(out)-end)
	if len(ranges)+1 > len(brText) {
		return sdf.Errorf("sign", sdf.ErrUnsupported, "file too large for the byte range")
	}
	copy(out[br:], ranges+strings.Repeat(" ", len(brText)-len(ranges)-1)+"]")

	h := sha256.New()
	h.Write(out[:start])
	h.Write(out[end:])
	der, err := createPKCS7(id.Key, id.Chain, h.Sum(nil), opts.Time, opts.PAdES)
	if err != nil {
		return err
	}
	if len(der) > opts.Reserve {
		return sdf.Errorf("sign", sdf.ErrUnsupported, "signature of %d bytes exceeds the %d reserved", len(der), opts.Reserve)
	}
	hex.Encode(out[start+1:], der)
	log.Info("signed document",
		observability.String("field", field.Name()),
		observability.String("signer", id.Certificate().Subject.CommonName),
		observability.Int("bytes", len(der)))
	_, err = w.Write(out)
	return err
}

// signatureField finds or creates the field that receives the signature.
func signatureField(doc *pdf.Doc, opts Options) (*pdf.Field, error) {
	if f := doc.Field(opts.FieldName); f != nil {
		if f.Type() != pdf.FieldSignature {
			return nil, fmt.Errorf("signature: field %q is not a signature field", opts.FieldName)
		}
		if !sdf.IsNull(f.Dict.Get("V")) {
			return nil, fmt.Errorf("signature: field %q is already signed", opts.FieldName)
		}
		return f, nil
	}
	p := doc.Page(opts.Page)
	if p == nil {
		return nil, sdf.Errorf("sign", sdf.ErrNotFound, "page %d of %d", opts.Page, doc.PageCount())
	}
	f, err := doc.CreateField(opts.FieldName, pdf.FieldSignature, "")
	if err != nil {
		return nil, err
	}
	wd := f.AddWidget(p, opts.Rect)
	if opts.Rect.IsEmpty() {
		wd.SetFlags(pdf.FlagPrint | pdf.FlagHidden)
	}
	return f, nil
}

// signatureAppearance gives a visible widget a framed caption naming the
// signer.
func signatureAppearance(doc *pdf.Doc, wd *pdf.Annot, signer string, at time.Time) error {
	r := wd.Rect()
	if r.IsEmpty() {
		return nil
	}
	font, err := content.NewStandardFont(doc.SDF(), "Helvetica")
	if err != nil {
		return err
	}
	w, h := r.Width(), r.Height()
	size := h / 4
	var b strings.Builder
	fmt.Fprintf(&b, "q 0 0 0.6 RG 1 w 0.5 0.5 %s %s re S Q\n", sdf.FormatReal(w-1), sdf.FormatReal(h-1))
	fmt.Fprintf(&b, "BT /Helv %s Tf 0 g %s %s Td ", sdf.FormatReal(size), sdf.FormatReal(size/2), sdf.FormatReal(h-1.5*size))
	fmt.Fprintf(&b, "%s Tj 0 %s Td ", sdf.Bytes(sdf.Str("Digitally signed by "+signer)), sdf.FormatReal(-1.3*size))
	fmt.Fprintf(&b, "%s Tj ET", sdf.Bytes(sdf.Str("Date: "+at.Format("2006.01.02 15:04:05 -07'00'"))))

	res := sdf.NewDict()
	res.PutDict("Font").Set("Helv", font.Obj)
	form := sdf.NewStream(nil, []byte(b.String()))
	form.Dict.PutName("Type", "XObject")
	form.Dict.PutName("Subtype", "Form")
	form.Dict.PutRect("BBox", 0, 0, w, h)
	form.Dict.Set("Resources", res)
	wd.SetAppearance(form)
	return nil
}
