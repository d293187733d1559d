package record

import (
	"bytes"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// Volatile elements stripped before comparing two rendered documents: the
// fingerprint, the generation timestamp, the continuity flags, the chain
// link, the corrective-type marker and any embedded signature. Everything
// that remains is legally significant.
var volatileElements = map[string]bool{
	"Huella":                   true,
	"HuellaEvento":             true,
	"TipoHuella":               true,
	"FechaHoraHusoGenRegistro": true,
	"FechaHoraHusoGenEvento":   true,
	"Encadenamiento":           true,
	"Subsanacion":              true,
	"RechazoPrevio":            true,
	"SinRegistroPrevio":        true,
	"TipoRectificativa":        true,
	"Signature":                true,
}

// CompareRegisters reports whether two rendered record documents are
// equivalent after stripping volatile elements and canonicalizing
// (exclusive C14N, no comments). It allows invoice metadata edits that do
// not touch legally significant fields after a record has been accepted.
// The comparison is symmetric and CompareRegisters(d, d) is always true for
// well-formed d.
func CompareRegisters(a, b string) (bool, error) {
	ca, err := canonicalizeStripped(a)
	if err != nil {
		return false, err
	}
	cb, err := canonicalizeStripped(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}

func canonicalizeStripped(document string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(document); err != nil {
		return nil, fiscalerrors.Wrap(fiscalerrors.CodeInvalidInput, "parse record document", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fiscalerrors.New(fiscalerrors.CodeInvalidInput, "record document has no root element")
	}
	stripVolatile(root)
	out, err := dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("").Canonicalize(root)
	if err != nil {
		return nil, fiscalerrors.Wrap(fiscalerrors.CodeInternal, "canonicalize record document", err)
	}
	return out, nil
}

func stripVolatile(el *etree.Element) {
	for _, child := range el.ChildElements() {
		if volatileElements[child.Tag] {
			el.RemoveChild(child)
			continue
		}
		stripVolatile(child)
	}
}
