// Package signature signs PDF documents with detached CMS signatures and
// verifies the signatures a file carries.
package signature

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/pkcs12"
)

// Identity is a signing key with its certificate chain, leaf first.
type Identity struct {
	Key   crypto.Signer
	Chain []*x509.Certificate
}

// Certificate returns the signer certificate.
func (id *Identity) Certificate() *x509.Certificate {
	if len(id.Chain) == 0 {
		return nil
	}
	return id.Chain[0]
}

// LoadPKCS12 reads a PKCS#12 (.pfx) bundle. The certificate matching the
// private key is placed first in the chain.
func LoadPKCS12(data []byte, password string) (*Identity, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, fmt.Errorf("signature: decode pkcs12: %w", err)
	}
	id := &Identity{}
	for _, b := range blocks {
		switch b.Type {
		case "PRIVATE KEY":
			if id.Key, err = parseKey(b); err != nil {
				return nil, err
			}
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, fmt.Errorf("signature: pkcs12 certificate: %w", err)
			}
			id.Chain = append(id.Chain, c)
		}
	}
	if id.Key == nil {
		return nil, errors.New("signature: pkcs12 bundle has no private key")
	}
	for i, c := range id.Chain {
		if samePublicKey(c.PublicKey, id.Key.Public()) {
			id.Chain[0], id.Chain[i] = id.Chain[i], id.Chain[0]
			return id, nil
		}
	}
	return nil, errors.New("signature: pkcs12 bundle has no certificate for its key")
}

func parseKey(b *pem.Block) (crypto.Signer, error) {
	if k, err := x509.ParsePKCS1PrivateKey(b.Bytes); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(b.Bytes); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(b.Bytes)
	if err != nil {
		return nil, fmt.Errorf("signature: pkcs12 private key: %w", err)
	}
	s, ok := k.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("signature: unsupported key %T", k)
	}
	return s, nil
}

func samePublicKey(a, b crypto.PublicKey) bool {
	switch k := a.(type) {
	case *rsa.PublicKey:
		return k.Equal(b)
	case *ecdsa.PublicKey:
		return k.Equal(b)
	}
	return false
}
