package signature

import (
	"bytes"
	"context"
	"crypto/x509"
	"time"

	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Result describes one signature field of a verified file.
type Result struct {
	Field     string
	SubFilter string
	Signer    *x509.Certificate
	Reason    string
	Location  string
	// SigningTime comes from the signing-time attribute, else /M.
	SigningTime time.Time
	// CoversDocument is false when bytes were appended after the signed
	// revision.
	CoversDocument bool
	// Err is nil when the digest and the signature verify.
	Err error
	// Trust is set when the Verifier has roots; Revocation when it has a
	// checker.
	Trust      error
	Revocation RevocationStatus
}

// Valid reports whether the signature verifies over the bytes it claims.
func (r Result) Valid() bool { return r.Err == nil }

// Verifier checks signatures. The zero value checks integrity only.
type Verifier struct {
	// Roots enables chain building to these anchors.
	Roots *x509.CertPool
	// Revocation is consulted for the signer once the chain is known.
	Revocation RevocationChecker
	Logger     observability.Logger
}

// Verify checks every signed signature field in data.
func Verify(ctx context.Context, data []byte) ([]Result, error) {
	return Verifier{}.Verify(ctx, data)
}

// Verify checks every signed signature field in data.
func (v Verifier) Verify(ctx context.Context, data []byte) ([]Result, error) {
	log := observability.OrNop(v.Logger)
	doc, err := pdf.OpenBytes(data, pdf.OpenOptions{Logger: v.Logger})
	if err != nil {
		return nil, err
	}
	sd := doc.SDF()
	var out []Result
	for _, f := range doc.Fields() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if f.Type() != pdf.FieldSignature {
			continue
		}
		sig := sd.Dict(f.Dict.Get("V"))
		if sig == nil {
			continue
		}
		sf, _ := sig.NameValue("SubFilter")
		r := Result{
			Field:     f.Name(),
			SubFilter: string(sf),
			Reason:    sd.TextValue(sig.Get("Reason")),
			Location:  sd.TextValue(sig.Get("Location")),
		}
		if t, err := pdf.ParseDate(sd.TextValue(sig.Get("M"))); err == nil {
			r.SigningTime = t
		}
		env, digest, err := v.check(sd, sig, data, &r)
		if err != nil {
			r.Err = err
		} else {
			r.Signer = env.signer
			if !env.signingTime.IsZero() {
				r.SigningTime = env.signingTime
			}
			r.Err = env.check(digest)
			if r.Err == nil && v.Roots != nil {
				v.trust(ctx, env, &r)
			}
		}
		log.Debug("verified signature", observability.String("field", r.Field), observability.Err(r.Err))
		out = append(out, r)
	}
	return out, nil
}

// check validates the byte range of sig against data and returns the
// parsed envelope with the digest of the covered bytes.
func (v Verifier) check(sd *sdf.Doc, sig *sdf.Dict, data []byte, r *Result) (*envelope, []byte, error) {
	switch r.SubFilter {
	case subFilterPKCS7, subFilterCAdES:
	default:
		return nil, nil, sdf.Errorf("verify", sdf.ErrUnsupported, "sub-filter %q", r.SubFilter)
	}
	br, ok := sd.Numbers(sig.Get("ByteRange"))
	if !ok || len(br) != 4 {
		return nil, nil, sdf.Errorf("verify", sdf.ErrCorrupt, "bad /ByteRange")
	}
	a, b, c, d := int(br[0]), int(br[1]), int(br[2]), int(br[3])
	if a != 0 || b <= 0 || c <= b || d < 0 || c+d > len(data) {
		return nil, nil, sdf.Errorf("verify", sdf.ErrCorrupt, "/ByteRange %v outside the file", br)
	}
	if data[b] != '<' || data[c-1] != '>' {
		return nil, nil, sdf.Errorf("verify", sdf.ErrCorrupt, "/ByteRange gap is not the /Contents string")
	}
	r.CoversDocument = c+d == len(bytes.TrimRight(data, "\r\n")) || c+d == len(data)
	contents, ok := sd.MustResolve(sig.Get("Contents")).(sdf.String)
	if !ok || len(contents.Value) == 0 {
		return nil, nil, sdf.Errorf("verify", sdf.ErrCorrupt, "no /Contents")
	}
	env, err := parsePKCS7(contents.Value)
	if err != nil {
		return nil, nil, sdf.Errorf("verify", sdf.ErrCorrupt, "%v", err)
	}
	h := env.hash.New()
	h.Write(data[:b])
	h.Write(data[c : c+d])
	return env, h.Sum(nil), nil
}
