package signing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

func TestLoadCredentialRejectsEmptyContainer(t *testing.T) {
	_, err := LoadCredential(nil, "secret")
	require.Error(t, err)
	assert.Equal(t, fiscalerrors.CodeCredential, fiscalerrors.CodeOf(err))
}

func TestLoadCredentialRejectsGarbage(t *testing.T) {
	_, err := LoadCredential([]byte("this is not a pkcs12 container"), "secret")
	require.Error(t, err)
	assert.Equal(t, fiscalerrors.CodeCredential, fiscalerrors.CodeOf(err))
}

func TestCredentialTLSCertificate(t *testing.T) {
	cred := testCredential(t)
	tlsCert, err := cred.TLSCertificate()
	require.NoError(t, err)
	require.NotEmpty(t, tlsCert.Certificate)
	assert.NotNil(t, tlsCert.PrivateKey)
	assert.NotNil(t, tlsCert.Leaf)
}

func TestCredentialKeyPair(t *testing.T) {
	cred := testCredential(t)
	key, certDER, err := cred.GetKeyPair()
	require.NoError(t, err)
	assert.NotNil(t, key)
	assert.NotEmpty(t, certDER)
	assert.Contains(t, cred.Subject(), "Acme SL")
}

func TestCredentialNotLoaded(t *testing.T) {
	var cred *Credential
	_, _, err := cred.GetKeyPair()
	require.Error(t, err)
	assert.Equal(t, fiscalerrors.CodeCredential, fiscalerrors.CodeOf(err))
}

func TestFileSourceMissingFile(t *testing.T) {
	src := FileSource{Path: "/nonexistent/credential.p12", Password: "secret"}
	_, _, err := src.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, fiscalerrors.CodeCredential, fiscalerrors.CodeOf(err))
}

func TestStaticSourceScopedRelease(t *testing.T) {
	src := StaticSource{Cred: testCredential(t)}
	cred, release, err := src.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cred)
	release()

	empty := StaticSource{}
	_, _, err = empty.Acquire(context.Background())
	require.Error(t, err)
}
