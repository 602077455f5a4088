package signature

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

func newIdentity(t *testing.T, useRSA bool) *Identity {
	t.Helper()
	var key crypto.Signer
	var err error
	if useRSA {
		key, err = rsa.GenerateKey(rand.Reader, 2048)
	} else {
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}
	if err != nil {
		t.Fatal(err)
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(7),
		Subject:               pkix.Name{CommonName: "Test Signer"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, key.Public(), key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return &Identity{Key: key, Chain: []*x509.Certificate{cert}}
}

func TestPKCS7(t *testing.T) {
	for _, useRSA := range []bool{true, false} {
		for _, pades := range []bool{false, true} {
			id := newIdentity(t, useRSA)
			sum := sha256.Sum256([]byte("signed bytes"))
			der, err := createPKCS7(id.Key, id.Chain, sum[:], time.Now(), pades)
			if err != nil {
				t.Fatalf("rsa=%v pades=%v: %v", useRSA, pades, err)
			}
			env, err := parsePKCS7(der)
			if err != nil {
				t.Fatalf("rsa=%v pades=%v: parse: %v", useRSA, pades, err)
			}
			if !env.signer.Equal(id.Certificate()) {
				t.Error("signer certificate not found")
			}
			if env.signingTime.IsZero() == !pades {
				t.Errorf("pades=%v: signing time %v", pades, env.signingTime)
			}
			if err := env.check(sum[:]); err != nil {
				t.Errorf("rsa=%v pades=%v: check: %v", useRSA, pades, err)
			}
			other := sha256.Sum256([]byte("other bytes"))
			if err := env.check(other[:]); err == nil {
				t.Errorf("rsa=%v pades=%v: wrong digest verified", useRSA, pades)
			}
		}
	}
}

func TestParsePKCS7Garbage(t *testing.T) {
	if _, err := parsePKCS7([]byte{0x30, 0x03, 0x02, 0x01, 0x01}); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadPKCS12Rejects(t *testing.T) {
	if _, err := LoadPKCS12([]byte("not a pfx"), "secret"); err == nil {
		t.Fatal("expected error")
	}
}

func testDoc(t *testing.T) *pdf.Doc {
	t.Helper()
	d := pdf.New()
	p := d.PageCreate(coords.Rect{X2: 300, Y2: 200})
	p.SetContents(sdf.NewStream(nil, []byte("BT /F1 12 Tf 20 100 Td (Hello signed world) Tj ET")))
	if err := d.PagePushBack(p); err != nil {
		t.Fatal(err)
	}
	return d
}

func sign(t *testing.T, d *pdf.Doc, id *Identity, opts Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Sign(context.Background(), d, &buf, id, opts); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return buf.Bytes()
}

func TestSignVerify(t *testing.T) {
	tests := []struct {
		name      string
		rsa       bool
		opts      Options
		subFilter string
	}{
		{"ecdsa", false, Options{Reason: "approved", Location: "Pune"}, subFilterPKCS7},
		{"rsa", true, Options{Reason: "approved", Location: "Pune"}, subFilterPKCS7},
		{"pades visible", false, Options{Reason: "approved", Location: "Pune", PAdES: true,
			Rect: coords.Rect{X1: 10, Y1: 10, X2: 160, Y2: 50}}, subFilterCAdES},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := sign(t, testDoc(t), newIdentity(t, tt.rsa), tt.opts)
			results, err := Verify(context.Background(), data)
			if err != nil {
				t.Fatal(err)
			}
			if len(results) != 1 {
				t.Fatalf("results = %d, want 1", len(results))
			}
			r := results[0]
			if !r.Valid() {
				t.Fatalf("signature invalid: %v", r.Err)
			}
			if !r.CoversDocument {
				t.Error("signature does not cover the document")
			}
			if r.Field != "Signature1" || r.SubFilter != tt.subFilter || r.Reason != "approved" || r.Location != "Pune" {
				t.Errorf("result = %+v", r)
			}
			if r.Signer == nil || r.Signer.Subject.CommonName != "Test Signer" {
				t.Errorf("signer = %v", r.Signer)
			}
			if r.SigningTime.IsZero() {
				t.Error("no signing time")
			}
		})
	}
}

func TestSignVisibleAppearance(t *testing.T) {
	data := sign(t, testDoc(t), newIdentity(t, false), Options{Rect: coords.Rect{X1: 10, Y1: 10, X2: 160, Y2: 50}})
	d, err := pdf.OpenBytes(data, pdf.OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	ws := d.Field("Signature1").Widgets()
	if len(ws) != 1 || ws[0].Appearance() == nil {
		t.Fatal("visible signature has no appearance")
	}
	if flags, _ := d.SDF().Int(d.SDF().Dict(d.Catalog().Get("AcroForm")).Get("SigFlags")); flags != 3 {
		t.Errorf("SigFlags = %d", flags)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	data := sign(t, testDoc(t), newIdentity(t, false), Options{})
	tampered := bytes.Replace(data, []byte("Hello signed"), []byte("Jello signed"), 1)
	if bytes.Equal(tampered, data) {
		t.Fatal("content not found in the output")
	}
	results, err := Verify(context.Background(), tampered)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Valid() {
		t.Fatalf("tampered file verified: %+v", results)
	}
}

func TestSignTwice(t *testing.T) {
	id := newIdentity(t, false)
	first := sign(t, testDoc(t), id, Options{})
	d, err := pdf.OpenBytes(first, pdf.OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Sign(context.Background(), d, &buf, id, Options{}); err == nil {
		t.Fatal("signing a signed field succeeded")
	}
	second := sign(t, d, id, Options{FieldName: "Approval"})
	if !bytes.HasPrefix(second, first) {
		t.Fatal("second signature rewrote the first revision")
	}
	results, err := Verify(context.Background(), second)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	covers := map[string]bool{}
	for _, r := range results {
		if !r.Valid() {
			t.Errorf("%s: %v", r.Field, r.Err)
		}
		covers[r.Field] = r.CoversDocument
	}
	if covers["Signature1"] || !covers["Approval"] {
		t.Errorf("covers = %v", covers)
	}
}

func TestSignRejects(t *testing.T) {
	id := newIdentity(t, false)
	d := testDoc(t)
	if _, err := d.CreateField("name", pdf.FieldText, ""); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		id   *Identity
		opts Options
	}{
		{"no identity", &Identity{}, Options{}},
		{"not a signature field", id, Options{FieldName: "name"}},
		{"missing page", id, Options{Page: 9}},
		{"reserve too small", id, Options{Reserve: 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Sign(context.Background(), d, &buf, tt.id, tt.opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestVerifyTrust(t *testing.T) {
	id := newIdentity(t, false)
	data := sign(t, testDoc(t), id, Options{})

	roots := x509.NewCertPool()
	roots.AddCert(id.Certificate())
	results, err := Verifier{Roots: roots}.Verify(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Trust != nil {
		t.Errorf("trusted root: %v", results[0].Trust)
	}

	results, err = Verifier{Roots: x509.NewCertPool()}.Verify(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Trust == nil {
		t.Error("untrusted signer accepted")
	}
	if !results[0].Valid() {
		t.Errorf("integrity should not depend on trust: %v", results[0].Err)
	}
}

func TestRevocationCheckersWithoutEndpoints(t *testing.T) {
	cert, issuer := &x509.Certificate{}, &x509.Certificate{}
	for _, c := range []RevocationChecker{NewOCSPChecker(), NewCRLChecker()} {
		status, err := c.Check(context.Background(), cert, issuer)
		if err != nil || status != StatusUnknown {
			t.Errorf("%T: %v, %v", c, status, err)
		}
	}
}
