package record

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// Fingerprint computation. The canonical payload, the previous fingerprint
// and the generation timestamp are rendered into a `&`-joined key=value
// string and hashed with SHA-256, uppercase hex. The rendering is pure and
// deterministic; it is the basis for the chain and for the equivalence
// comparison, so field order must never change.

func chainKeys(c Category) (hashKey, timestampKey string) {
	if c == CategoryEvent {
		return "HuellaEvento", "FechaHoraHusoGenEvento"
	}
	return "Huella", "FechaHoraHusoGenRegistro"
}

// CanonicalString renders the hash input for a record. Exposed for tests and
// for audit tooling; it does not mutate the record.
func CanonicalString(r *FiscalRecord) string {
	hashKey, tsKey := chainKeys(r.Category)
	parts := make([]string, 0, len(r.Fields)+2)
	for _, f := range r.Fields {
		parts = append(parts, f.Name+"="+strings.TrimSpace(f.Value))
	}
	parts = append(parts, hashKey+"="+strings.TrimSpace(r.PreviousFingerprint))
	parts = append(parts, tsKey+"="+r.GenerationTimestamp())
	return strings.Join(parts, "&")
}

// ComputeFingerprint seals the record: it derives the SHA-256 fingerprint
// over the canonical string and writes it once. Recomputing a sealed record
// is rejected; a rebuilt submission must be a new record.
func ComputeFingerprint(r *FiscalRecord) error {
	if r.Sealed() {
		return fiscalerrors.Newf(fiscalerrors.CodeConsistency, "record %s: fingerprint already computed", r.ID)
	}
	if len(r.Fields) == 0 {
		return fiscalerrors.Newf(fiscalerrors.CodeInvalidInput, "record %s: empty canonical payload", r.ID)
	}
	sum := sha256.Sum256([]byte(CanonicalString(r)))
	r.Fingerprint = strings.ToUpper(hex.EncodeToString(sum[:]))
	return nil
}
