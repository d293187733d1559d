// Package signing loads issuer credentials from PKCS#12 containers and
// produces the enveloped XML signatures embedded into non-verifiable records.
package signing

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"

	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// Credential is a decoded signing identity: the issuer's private key, its
// certificate and any intermediates shipped in the container. The same
// credential backs both XML signing and the mutual-TLS client handshake.
type Credential struct {
	key   *rsa.PrivateKey
	cert  *x509.Certificate
	chain []*x509.Certificate
}

// LoadCredential decodes a PKCS#12 container. A wrong password and a
// malformed container are indistinguishable to the caller on purpose; both
// come back as a credential error.
func LoadCredential(container []byte, password string) (*Credential, error) {
	if len(container) == 0 {
		return nil, fiscalerrors.New(fiscalerrors.CodeCredential, "empty credential container")
	}
	key, cert, chain, err := pkcs12.DecodeChain(container, password)
	if err != nil {
		return nil, fiscalerrors.Wrap(fiscalerrors.CodeCredential, "decode credential container", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fiscalerrors.New(fiscalerrors.CodeCredential, "credential key is not RSA")
	}
	if cert == nil {
		return nil, fiscalerrors.New(fiscalerrors.CodeCredential, "credential container holds no certificate")
	}
	return &Credential{key: rsaKey, cert: cert, chain: chain}, nil
}

// NewCredential wraps an already-decoded key pair. Used by tests and by
// deployments that keep PEM material instead of a PKCS#12 container.
func NewCredential(key *rsa.PrivateKey, cert *x509.Certificate, chain ...*x509.Certificate) *Credential {
	return &Credential{key: key, cert: cert, chain: chain}
}

// GetKeyPair satisfies the xmldsig key store contract.
func (c *Credential) GetKeyPair() (*rsa.PrivateKey, []byte, error) {
	if c == nil || c.key == nil || c.cert == nil {
		return nil, nil, fiscalerrors.New(fiscalerrors.CodeCredential, "credential not loaded")
	}
	return c.key, c.cert.Raw, nil
}

// TLSCertificate exposes the credential as a client certificate for the
// mutual-TLS handshake with the tax agency.
func (c *Credential) TLSCertificate() (tls.Certificate, error) {
	if c == nil || c.key == nil || c.cert == nil {
		return tls.Certificate{}, fiscalerrors.New(fiscalerrors.CodeCredential, "credential not loaded")
	}
	tlsCert := tls.Certificate{
		Certificate: [][]byte{c.cert.Raw},
		PrivateKey:  c.key,
		Leaf:        c.cert,
	}
	for _, ca := range c.chain {
		tlsCert.Certificate = append(tlsCert.Certificate, ca.Raw)
	}
	return tlsCert, nil
}

// Subject returns the certificate subject for logging.
func (c *Credential) Subject() string {
	if c == nil || c.cert == nil {
		return ""
	}
	return c.cert.Subject.String()
}
