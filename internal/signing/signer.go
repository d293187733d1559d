package signing

import (
	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// Signer produces enveloped RSA-SHA256 signatures over rendered record
// documents. The signature is computed over the record as rendered; callers
// embed the returned element and must not touch the record afterwards.
type Signer struct {
	cred *Credential
}

func NewSigner(cred *Credential) *Signer {
	return &Signer{cred: cred}
}

// Sign parses the rendered document, signs its root element and returns the
// detached signature element serialized on its own. Canonicalization is
// inclusive C14N 1.0, the profile the receiving side validates against.
func (s *Signer) Sign(document string) (string, error) {
	if s.cred == nil {
		return "", fiscalerrors.New(fiscalerrors.CodeCredential, "signer has no credential")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(document); err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeInvalidInput, "parse document for signing", err)
	}
	root := doc.Root()
	if root == nil {
		return "", fiscalerrors.New(fiscalerrors.CodeInvalidInput, "document for signing has no root element")
	}

	ctx := dsig.NewDefaultSigningContext(s.cred)
	ctx.Canonicalizer = dsig.MakeC14N10RecCanonicalizer()
	if err := ctx.SetSignatureMethod(dsig.RSASHA256SignatureMethod); err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeInternal, "configure signature method", err)
	}

	signed, err := ctx.SignEnveloped(root)
	if err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeCredential, "sign record document", err)
	}
	sig := lastSignatureChild(signed)
	if sig == nil {
		return "", fiscalerrors.New(fiscalerrors.CodeInternal, "signed document carries no signature element")
	}

	out := etree.NewDocument()
	out.SetRoot(sig.Copy())
	serialized, err := out.WriteToString()
	if err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeInternal, "serialize signature", err)
	}
	return serialized, nil
}

func lastSignatureChild(el *etree.Element) *etree.Element {
	children := el.ChildElements()
	for i := len(children) - 1; i >= 0; i-- {
		if children[i].Tag == "Signature" {
			return children[i]
		}
	}
	return nil
}
