package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rauletepaz/account-verifactu/internal/classify"
	"github.com/rauletepaz/account-verifactu/internal/record"
	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// LedgerService is the slice of the pipeline the HTTP layer calls.
type LedgerService interface {
	SubmitIssuance(ctx context.Context, snap record.InvoiceSnapshot) (*record.FiscalRecord, error)
	SubmitVoidance(ctx context.Context, snap record.InvoiceSnapshot) (*record.FiscalRecord, error)
	RecordEvent(ctx context.Context, snap record.InvoiceSnapshot, subtype record.EventType) (*record.FiscalRecord, error)
	Resubmit(ctx context.Context, recordID uuid.UUID) (*record.FiscalRecord, error)
	SubmitPending(ctx context.Context) error
	GetRecord(ctx context.Context, id uuid.UUID) (*record.FiscalRecord, error)
	InvoiceQR(ctx context.Context, issuerID, invoiceID string) (string, error)
}

// LedgerHandler is the thin HTTP layer over the pipeline. It parses, calls
// the service and translates errors; no business logic lives here.
type LedgerHandler struct {
	service LedgerService
}

func NewLedgerHandler(service LedgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

func (h *LedgerHandler) Register(r chi.Router) {
	r.Post("/fiscal/issuances", h.handleIssuance)
	r.Post("/fiscal/voidances", h.handleVoidance)
	r.Post("/fiscal/events", h.handleEvent)
	r.Post("/fiscal/resubmit", h.handleResubmit)
	r.Post("/fiscal/submit-pending", h.handleSubmitPending)
	r.Get("/fiscal/records/{recordID}", h.handleGetRecord)
	r.Get("/fiscal/invoices/{invoiceID}/qr", h.handleInvoiceQR)
	r.Post("/fiscal/classify", h.handleClassify)
}

type classifyRequest struct {
	DeclaredKind                 string `json:"declared_kind"`
	HasCounterparty              bool   `json:"has_counterparty"`
	HasCorrectiveRef             bool   `json:"has_corrective_ref"`
	CorrectiveRefHasCounterparty bool   `json:"corrective_ref_has_counterparty"`
	CurrentType                  string `json:"current_type"`
}

type classifyResponse struct {
	Kind                     string   `json:"kind"`
	InvoiceType              string   `json:"invoice_type"`
	Allowed                  []string `json:"allowed,omitempty"`
	ForceCounterpartyFromRef bool     `json:"force_counterparty_from_ref"`
	ClearCorrectiveRef       bool     `json:"clear_corrective_ref"`
}

// handleClassify evaluates the invoice-type rules for a document mutation.
// Callers apply the decision to their own accounting objects; nothing is
// stored here.
func (h *LedgerHandler) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fiscalerrors.New(fiscalerrors.CodeBadRequest, "invalid request body"))
		return
	}
	d := classify.Decide(classify.Input{
		DeclaredKind:                 classify.Kind(req.DeclaredKind),
		HasCounterparty:              req.HasCounterparty,
		HasCorrectiveRef:             req.HasCorrectiveRef,
		CorrectiveRefHasCounterparty: req.CorrectiveRefHasCounterparty,
		CurrentType:                  req.CurrentType,
	})
	writeJSON(w, http.StatusOK, classifyResponse{
		Kind:                     string(d.Kind),
		InvoiceType:              d.InvoiceType,
		Allowed:                  d.Allowed,
		ForceCounterpartyFromRef: d.ForceCounterpartyFromRef,
		ClearCorrectiveRef:       d.ClearCorrectiveRef,
	})
}

type snapshotRequest struct {
	InvoiceID      string `json:"invoice_id"`
	IssuerTaxID    string `json:"issuer_tax_id"`
	IssuerCountry  string `json:"issuer_country"`
	IssuerName     string `json:"issuer_name"`
	DocumentNumber string `json:"document_number"`
	IssueDate      string `json:"issue_date"` // YYYY-MM-DD
	InvoiceType    string `json:"invoice_type"`
	TaxTotal       string `json:"tax_total"`
	GrandTotal     string `json:"grand_total"`
	Corrective     bool   `json:"corrective"`
	EventType      string `json:"event_type,omitempty"`
}

func (req snapshotRequest) toSnapshot() (record.InvoiceSnapshot, error) {
	snap := record.InvoiceSnapshot{
		InvoiceID:      req.InvoiceID,
		IssuerTaxID:    req.IssuerTaxID,
		IssuerCountry:  req.IssuerCountry,
		IssuerName:     req.IssuerName,
		DocumentNumber: req.DocumentNumber,
		InvoiceType:    req.InvoiceType,
		Corrective:     req.Corrective,
	}
	if req.IssueDate != "" {
		t, err := time.Parse("2006-01-02", req.IssueDate)
		if err != nil {
			return snap, fiscalerrors.New(fiscalerrors.CodeInvalidInput, "issue_date must be YYYY-MM-DD")
		}
		snap.IssueDate = t
	}
	var err error
	if req.TaxTotal != "" {
		if snap.TaxTotal, err = decimal.NewFromString(req.TaxTotal); err != nil {
			return snap, fiscalerrors.New(fiscalerrors.CodeInvalidInput, "tax_total is not a decimal amount")
		}
	}
	if req.GrandTotal != "" {
		if snap.GrandTotal, err = decimal.NewFromString(req.GrandTotal); err != nil {
			return snap, fiscalerrors.New(fiscalerrors.CodeInvalidInput, "grand_total is not a decimal amount")
		}
	}
	return snap, nil
}

func (h *LedgerHandler) handleIssuance(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.decodeSnapshot(w, r)
	if !ok {
		return
	}
	rec, err := h.service.SubmitIssuance(r.Context(), snap)
	h.respondRecord(w, rec, err)
}

func (h *LedgerHandler) handleVoidance(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.decodeSnapshot(w, r)
	if !ok {
		return
	}
	rec, err := h.service.SubmitVoidance(r.Context(), snap)
	h.respondRecord(w, rec, err)
}

func (h *LedgerHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fiscalerrors.New(fiscalerrors.CodeBadRequest, "invalid request body"))
		return
	}
	snap, err := req.toSnapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.service.RecordEvent(r.Context(), snap, record.EventType(req.EventType))
	h.respondRecord(w, rec, err)
}

func (h *LedgerHandler) handleResubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecordID string `json:"record_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fiscalerrors.New(fiscalerrors.CodeBadRequest, "invalid request body"))
		return
	}
	id, err := uuid.Parse(req.RecordID)
	if err != nil {
		writeError(w, fiscalerrors.New(fiscalerrors.CodeInvalidInput, "record_id must be a UUID"))
		return
	}
	rec, err := h.service.Resubmit(r.Context(), id)
	h.respondRecord(w, rec, err)
}

func (h *LedgerHandler) handleSubmitPending(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SubmitPending(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "done"})
}

func (h *LedgerHandler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, fiscalerrors.New(fiscalerrors.CodeInvalidInput, "record id must be a UUID"))
		return
	}
	rec, err := h.service.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *LedgerHandler) handleInvoiceQR(w http.ResponseWriter, r *http.Request) {
	issuerID := r.URL.Query().Get("issuer_id")
	if issuerID == "" {
		writeError(w, fiscalerrors.New(fiscalerrors.CodeInvalidInput, "issuer_id query parameter is required"))
		return
	}
	qr, err := h.service.InvoiceQR(r.Context(), issuerID, chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"qr_url": qr})
}

func (h *LedgerHandler) decodeSnapshot(w http.ResponseWriter, r *http.Request) (record.InvoiceSnapshot, bool) {
	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fiscalerrors.New(fiscalerrors.CodeBadRequest, "invalid request body"))
		return record.InvoiceSnapshot{}, false
	}
	snap, err := req.toSnapshot()
	if err != nil {
		writeError(w, err)
		return record.InvoiceSnapshot{}, false
	}
	return snap, true
}

// respondRecord writes the record even when the submission failed: a
// rejected record is a valid, persisted outcome the caller needs to see.
func (h *LedgerHandler) respondRecord(w http.ResponseWriter, rec *record.FiscalRecord, err error) {
	if err != nil && rec == nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if rec.State == record.StateRejected {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, toRecordResponse(rec))
}
