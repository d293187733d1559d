package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rauletepaz/account-verifactu/internal/record"
	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// writeError centralizes coded error translation to HTTP responses so every
// handler returns the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := string(fiscalerrors.CodeInternal)
	var le *fiscalerrors.LedgerError
	if errors.As(err, &le) {
		status = fiscalerrors.ToHTTPStatus(le.Code)
		code = string(le.Code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": code,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type recordResponse struct {
	ID                  string     `json:"id"`
	InvoiceID           string     `json:"invoice_id,omitempty"`
	Category            string     `json:"category"`
	Subtype             string     `json:"subtype,omitempty"`
	State               string     `json:"state"`
	Fingerprint         string     `json:"fingerprint"`
	PreviousFingerprint string     `json:"previous_fingerprint,omitempty"`
	NoPriorRecord       string     `json:"no_prior_record,omitempty"`
	PriorRejection      string     `json:"prior_rejection,omitempty"`
	IsCorrection        string     `json:"is_correction,omitempty"`
	GeneratedAt         time.Time  `json:"generated_at"`
	SentAt              *time.Time `json:"sent_at,omitempty"`
}

func toRecordResponse(r *record.FiscalRecord) recordResponse {
	return recordResponse{
		ID:                  r.ID.String(),
		InvoiceID:           r.SourceInvoiceID,
		Category:            string(r.Category),
		Subtype:             string(r.Subtype),
		State:               string(r.State),
		Fingerprint:         r.Fingerprint,
		PreviousFingerprint: r.PreviousFingerprint,
		NoPriorRecord:       string(r.Flags.NoPriorRecord),
		PriorRejection:      string(r.Flags.PriorRejection),
		IsCorrection:        string(r.Flags.IsCorrection),
		GeneratedAt:         r.GeneratedAt,
		SentAt:              r.SentAt,
	}
}
