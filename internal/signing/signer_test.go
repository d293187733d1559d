package signing

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

func testCredential(t *testing.T) *Credential {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Acme SL", Organization: []string{"Acme"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return NewCredential(key, cert)
}

const sampleDocument = `<sum:RegistroAlta xmlns:sum="urn:test"><sum:IDVersion>1.0</sum:IDVersion><sum:Huella>ABCD</sum:Huella></sum:RegistroAlta>`

func TestSignProducesEnvelopedSignature(t *testing.T) {
	signer := NewSigner(testCredential(t))

	sig, err := signer.Sign(sampleDocument)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(sig))
	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "Signature", root.Tag)
	assert.NotNil(t, findByTag(root, "SignedInfo"))
	assert.NotNil(t, findByTag(root, "SignatureValue"))
	assert.NotNil(t, findByTag(root, "X509Certificate"))
}

func findByTag(el *etree.Element, tag string) *etree.Element {
	if el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByTag(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func TestSignRejectsMalformedDocument(t *testing.T) {
	signer := NewSigner(testCredential(t))
	_, err := signer.Sign("<unterminated")
	require.Error(t, err)
	assert.Equal(t, fiscalerrors.CodeInvalidInput, fiscalerrors.CodeOf(err))
}

func TestSignWithoutCredential(t *testing.T) {
	signer := NewSigner(nil)
	_, err := signer.Sign(sampleDocument)
	require.Error(t, err)
	assert.Equal(t, fiscalerrors.CodeCredential, fiscalerrors.CodeOf(err))
}

func TestSignaturesDifferPerDocument(t *testing.T) {
	signer := NewSigner(testCredential(t))
	a, err := signer.Sign(sampleDocument)
	require.NoError(t, err)
	b, err := signer.Sign(`<sum:RegistroAlta xmlns:sum="urn:test"><sum:IDVersion>1.0</sum:IDVersion><sum:Huella>EEEE</sum:Huella></sum:RegistroAlta>`)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
