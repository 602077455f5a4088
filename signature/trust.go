package signature

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"
)

// RevocationStatus is the revocation state of a certificate.
type RevocationStatus int

const (
	StatusUnchecked RevocationStatus = iota
	StatusGood
	StatusRevoked
	StatusUnknown
)

func (s RevocationStatus) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusRevoked:
		return "revoked"
	case StatusUnknown:
		return "unknown"
	}
	return "unchecked"
}

// RevocationChecker reports whether cert, issued by issuer, is revoked.
type RevocationChecker interface {
	Check(ctx context.Context, cert, issuer *x509.Certificate) (RevocationStatus, error)
}

// trust builds a chain from the signer to the verifier's roots and checks
// the signer's revocation status.
func (v Verifier) trust(ctx context.Context, env *envelope, r *Result) {
	inter := x509.NewCertPool()
	for _, c := range env.certs {
		if c != env.signer {
			inter.AddCert(c)
		}
	}
	at := r.SigningTime
	if at.IsZero() {
		at = time.Now()
	}
	chains, err := env.signer.Verify(x509.VerifyOptions{
		Roots:         v.Roots,
		Intermediates: inter,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		r.Trust = err
		return
	}
	if v.Revocation == nil || len(chains[0]) < 2 {
		return
	}
	status, err := v.Revocation.Check(ctx, env.signer, chains[0][1])
	r.Revocation = status
	if err != nil {
		r.Trust = fmt.Errorf("revocation: %w", err)
	}
}

// OCSPChecker asks the responders named in the certificate.
type OCSPChecker struct {
	Client *http.Client
}

func NewOCSPChecker() *OCSPChecker {
	return &OCSPChecker{Client: &http.Client{Timeout: 10 * time.Second}}
}

func (c *OCSPChecker) Check(ctx context.Context, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	if len(cert.OCSPServer) == 0 {
		return StatusUnknown, nil
	}
	var lastErr error
	for _, url := range cert.OCSPServer {
		status, err := c.checkOne(ctx, url, cert, issuer)
		if err == nil && status != StatusUnknown {
			return status, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return StatusUnknown, lastErr
}

func (c *OCSPChecker) checkOne(ctx context.Context, url string, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	req, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA1})
	if err != nil {
		return StatusUnknown, fmt.Errorf("create OCSP request: %w", err)
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(req))
	if err != nil {
		return StatusUnknown, err
	}
	hr.Header.Set("Content-Type", "application/ocsp-request")
	hr.Header.Set("Accept", "application/ocsp-response")
	resp, err := c.Client.Do(hr)
	if err != nil {
		return StatusUnknown, fmt.Errorf("OCSP request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return StatusUnknown, fmt.Errorf("read OCSP response: %w", err)
	}
	or, err := ocsp.ParseResponse(body, issuer)
	if err != nil {
		return StatusUnknown, fmt.Errorf("parse OCSP response: %w", err)
	}
	switch or.Status {
	case ocsp.Good:
		return StatusGood, nil
	case ocsp.Revoked:
		return StatusRevoked, nil
	}
	return StatusUnknown, nil
}

// CRLChecker downloads the certificate's revocation lists.
type CRLChecker struct {
	Client *http.Client
}

func NewCRLChecker() *CRLChecker {
	return &CRLChecker{Client: &http.Client{Timeout: 30 * time.Second}}
}

func (c *CRLChecker) Check(ctx context.Context, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	if len(cert.CRLDistributionPoints) == 0 {
		return StatusUnknown, nil
	}
	var lastErr error
	for _, url := range cert.CRLDistributionPoints {
		status, err := c.checkOne(ctx, url, cert, issuer)
		if err == nil && status != StatusUnknown {
			return status, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return StatusUnknown, lastErr
}

func (c *CRLChecker) checkOne(ctx context.Context, url string, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusUnknown, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return StatusUnknown, fmt.Errorf("CRL request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return StatusUnknown, fmt.Errorf("read CRL: %w", err)
	}
	crl, err := x509.ParseRevocationList(body)
	if err != nil {
		return StatusUnknown, fmt.Errorf("parse CRL: %w", err)
	}
	if err := crl.CheckSignatureFrom(issuer); err != nil {
		return StatusUnknown, fmt.Errorf("CRL signature: %w", err)
	}
	for _, rc := range crl.RevokedCertificateEntries {
		if rc.SerialNumber.Cmp(cert.SerialNumber) == 0 {
			return StatusRevoked, nil
		}
	}
	return StatusGood, nil
}
