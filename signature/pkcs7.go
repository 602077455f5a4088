package signature

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	oidData                     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidSignedData               = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidDigestSHA1               = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidDigestSHA256             = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidDigestSHA384             = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidDigestSHA512             = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
	oidEncryptionRSA            = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidSignatureECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidAttributeContentType     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidAttributeMessageDigest   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidAttributeSigningTime     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
	oidAttributeSigningCertV2   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47}
)

var digestHashes = map[string]crypto.Hash{
	oidDigestSHA1.String():   crypto.SHA1,
	oidDigestSHA256.String(): crypto.SHA256,
	oidDigestSHA384.String(): crypto.SHA384,
	oidDigestSHA512.String(): crypto.SHA512,
}

type contentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,tag:0"`
}

type signedData struct {
	Version          int
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo encapsulatedContentInfo
	Certificates     asn1.RawValue `asn1:"optional,tag:0"`
	CRLs             asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos      []signerInfo `asn1:"set"`
}

type encapsulatedContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// signerInfo keeps the authenticated attributes as raw bytes so the
// signed encoding is the one embedded in the file.
type signerInfo struct {
	Version                   int
	IssuerAndSerialNumber     issuerAndSerialNumber
	DigestAlgorithm           pkix.AlgorithmIdentifier
	AuthenticatedAttributes   asn1.RawValue `asn1:"optional,tag:0"`
	DigestEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedDigest           []byte
	UnauthenticatedAttributes asn1.RawValue `asn1:"optional,tag:1"`
}

type issuerAndSerialNumber struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

type attribute struct {
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue `asn1:"set"`
}

// signingCertificateV2 binds the signer certificate by hash (RFC 5035).
type signingCertificateV2 struct {
	Certs []essCertIDv2
}

type essCertIDv2 struct {
	HashAlgorithm pkix.AlgorithmIdentifier
	CertHash      []byte
}

var sha256Algorithm = pkix.AlgorithmIdentifier{Algorithm: oidDigestSHA256, Parameters: asn1.NullRawValue}

func rawAttribute(typ asn1.ObjectIdentifier, v any) (attribute, error) {
	b, err := asn1.Marshal(v)
	if err != nil {
		return attribute{}, fmt.Errorf("marshal attribute %v: %w", typ, err)
	}
	return attribute{Type: typ, Values: []asn1.RawValue{{FullBytes: b}}}, nil
}

// signedAttributes builds the DER SET OF attributes that the signature
// covers.
func signedAttributes(cert *x509.Certificate, digest []byte, signingTime time.Time, pades bool) ([]byte, error) {
	type item struct {
		typ asn1.ObjectIdentifier
		v   any
	}
	items := []item{
		{oidAttributeContentType, oidData},
		{oidAttributeMessageDigest, digest},
	}
	if pades {
		sum := sha256.Sum256(cert.Raw)
		items = append(items, item{oidAttributeSigningCertV2, signingCertificateV2{
			Certs: []essCertIDv2{{HashAlgorithm: sha256Algorithm, CertHash: sum[:]}},
		}})
	} else {
		items = append(items, item{oidAttributeSigningTime, signingTime.UTC()})
	}
	attrs := make([]attribute, 0, len(items))
	for _, it := range items {
		a, err := rawAttribute(it.typ, it.v)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	wrapper := struct {
		Attrs []attribute `asn1:"set"`
	}{attrs}
	b, err := asn1.Marshal(wrapper)
	if err != nil {
		return nil, fmt.Errorf("marshal attributes: %w", err)
	}
	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(b, &seq); err != nil {
		return nil, err
	}
	return seq.Bytes, nil
}

// signatureAlgorithm picks the SignerInfo algorithm for key.
func signatureAlgorithm(pub crypto.PublicKey) (pkix.AlgorithmIdentifier, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return pkix.AlgorithmIdentifier{Algorithm: oidEncryptionRSA, Parameters: asn1.NullRawValue}, nil
	case *ecdsa.PublicKey:
		return pkix.AlgorithmIdentifier{Algorithm: oidSignatureECDSAWithSHA256}, nil
	}
	return pkix.AlgorithmIdentifier{}, fmt.Errorf("signature: unsupported key type %T", pub)
}

// createPKCS7 makes a detached CMS SignedData over a SHA-256 content
// digest.
func createPKCS7(key crypto.Signer, chain []*x509.Certificate, digest []byte, signingTime time.Time, pades bool) ([]byte, error) {
	if len(chain) == 0 {
		return nil, errors.New("signature: certificate chain is empty")
	}
	cert := chain[0]
	alg, err := signatureAlgorithm(key.Public())
	if err != nil {
		return nil, err
	}
	attrs, err := signedAttributes(cert, digest, signingTime, pades)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(attrs)
	sig, err := key.Sign(rand.Reader, sum[:], crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("signature: sign attributes: %w", err)
	}
	// Embedded as [0] IMPLICIT.
	implicit := append([]byte{0xa0}, attrs[1:]...)

	var certs bytes.Buffer
	certs.Write(cert.Raw)
	for _, c := range chain[1:] {
		if !c.Equal(cert) {
			certs.Write(c.Raw)
		}
	}
	sd := signedData{
		Version:          1,
		DigestAlgorithms: []pkix.AlgorithmIdentifier{sha256Algorithm},
		EncapContentInfo: encapsulatedContentInfo{EContentType: oidData},
		Certificates:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: certs.Bytes()},
		SignerInfos: []signerInfo{{
			Version: 1,
			IssuerAndSerialNumber: issuerAndSerialNumber{
				Issuer:       asn1.RawValue{FullBytes: cert.RawIssuer},
				SerialNumber: cert.SerialNumber,
			},
			DigestAlgorithm:           sha256Algorithm,
			AuthenticatedAttributes:   asn1.RawValue{FullBytes: implicit},
			DigestEncryptionAlgorithm: alg,
			EncryptedDigest:           sig,
		}},
	}
	sdBytes, err := asn1.Marshal(sd)
	if err != nil {
		return nil, fmt.Errorf("signature: marshal signed data: %w", err)
	}
	return asn1.Marshal(contentInfo{
		ContentType: oidSignedData,
		Content:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: sdBytes},
	})
}

// envelope is a parsed detached signature.
type envelope struct {
	certs  []*x509.Certificate
	signer *x509.Certificate
	hash   crypto.Hash
	info   signerInfo
	// attrs is the SET OF encoding of the authenticated attributes, nil
	// when the signature is over the content digest itself.
	attrs       []byte
	digest      []byte
	signingTime time.Time
}

func parsePKCS7(der []byte) (*envelope, error) {
	var ci contentInfo
	if _, err := asn1.Unmarshal(der, &ci); err != nil {
		return nil, fmt.Errorf("parse content info: %w", err)
	}
	if !ci.ContentType.Equal(oidSignedData) {
		return nil, fmt.Errorf("content type %v is not signed data", ci.ContentType)
	}
	var sd signedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return nil, fmt.Errorf("parse signed data: %w", err)
	}
	if len(sd.SignerInfos) != 1 {
		return nil, fmt.Errorf("%d signer infos", len(sd.SignerInfos))
	}
	env := &envelope{info: sd.SignerInfos[0]}
	if len(sd.Certificates.Bytes) > 0 {
		certs, err := x509.ParseCertificates(sd.Certificates.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificates: %w", err)
		}
		env.certs = certs
	}
	ias := env.info.IssuerAndSerialNumber
	for _, c := range env.certs {
		if bytes.Equal(c.RawIssuer, ias.Issuer.FullBytes) && c.SerialNumber.Cmp(ias.SerialNumber) == 0 {
			env.signer = c
			break
		}
	}
	if env.signer == nil {
		return nil, errors.New("signer certificate not embedded")
	}
	h, ok := digestHashes[env.info.DigestAlgorithm.Algorithm.String()]
	if !ok || !h.Available() {
		return nil, fmt.Errorf("unsupported digest algorithm %v", env.info.DigestAlgorithm.Algorithm)
	}
	env.hash = h
	if raw := env.info.AuthenticatedAttributes.FullBytes; len(raw) > 0 {
		env.attrs = append([]byte{0x31}, raw[1:]...)
		var attrs []attribute
		if _, err := asn1.UnmarshalWithParams(env.attrs, &attrs, "set"); err != nil {
			return nil, fmt.Errorf("parse attributes: %w", err)
		}
		for _, a := range attrs {
			if len(a.Values) == 0 {
				continue
			}
			switch {
			case a.Type.Equal(oidAttributeMessageDigest):
				asn1.Unmarshal(a.Values[0].FullBytes, &env.digest)
			case a.Type.Equal(oidAttributeSigningTime):
				asn1.Unmarshal(a.Values[0].FullBytes, &env.signingTime)
			}
		}
		if env.digest == nil {
			return nil, errors.New("no message digest attribute")
		}
	}
	return env, nil
}

// check verifies the signature against the signer certificate. content is
// the digest of the signed bytes.
func (e *envelope) check(content []byte) error {
	if e.attrs != nil && !bytes.Equal(e.digest, content) {
		return errors.New("message digest does not match the signed bytes")
	}
	msg := content
	if e.attrs != nil {
		hh := e.hash.New()
		hh.Write(e.attrs)
		msg = hh.Sum(nil)
	}
	sig := e.info.EncryptedDigest
	switch pub := e.signer.PublicKey.(type) {
	case *rsa.PublicKey:
		return rsa.VerifyPKCS1v15(pub, e.hash, msg, sig)
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, msg, sig) {
			return errors.New("ecdsa signature does not verify")
		}
		return nil
	}
	return fmt.Errorf("unsupported signer key %T", e.signer.PublicKey)
}
