package signing

import (
	"context"
	"os"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// Source hands out credentials scoped to one operation. The release function
// marks the end of the scope; credentials must not be cached across
// operations, so Acquire decodes the container fresh every time.
type Source interface {
	Acquire(ctx context.Context) (*Credential, func(), error)
}

// FileSource reads a PKCS#12 container from disk on every acquisition.
type FileSource struct {
	Path     string
	Password string
}

func (s FileSource) Acquire(_ context.Context) (*Credential, func(), error) {
	container, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, nil, fiscalerrors.Wrap(fiscalerrors.CodeCredential, "read credential container", err)
	}
	cred, err := LoadCredential(container, s.Password)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		cred.key = nil
		cred.cert = nil
		cred.chain = nil
	}
	return cred, release, nil
}

// StaticSource wraps a pre-built credential. Used by tests.
type StaticSource struct {
	Cred *Credential
}

func (s StaticSource) Acquire(_ context.Context) (*Credential, func(), error) {
	if s.Cred == nil {
		return nil, nil, fiscalerrors.New(fiscalerrors.CodeCredential, "no credential configured")
	}
	return s.Cred, func() {}, nil
}
