package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rauletepaz/account-verifactu/internal/jwttoken"
	"github.com/rauletepaz/account-verifactu/internal/record"
	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// stubService returns canned results per call.
type stubService struct {
	record *record.FiscalRecord
	err    error
	qr     string

	gotSnapshot record.InvoiceSnapshot
	gotSubtype  record.EventType
	gotRecordID uuid.UUID
}

func (s *stubService) SubmitIssuance(_ context.Context, snap record.InvoiceSnapshot) (*record.FiscalRecord, error) {
	s.gotSnapshot = snap
	return s.record, s.err
}

func (s *stubService) SubmitVoidance(_ context.Context, snap record.InvoiceSnapshot) (*record.FiscalRecord, error) {
	s.gotSnapshot = snap
	return s.record, s.err
}

func (s *stubService) RecordEvent(_ context.Context, snap record.InvoiceSnapshot, subtype record.EventType) (*record.FiscalRecord, error) {
	s.gotSnapshot = snap
	s.gotSubtype = subtype
	return s.record, s.err
}

func (s *stubService) Resubmit(_ context.Context, id uuid.UUID) (*record.FiscalRecord, error) {
	s.gotRecordID = id
	return s.record, s.err
}

func (s *stubService) SubmitPending(context.Context) error { return s.err }

func (s *stubService) GetRecord(_ context.Context, id uuid.UUID) (*record.FiscalRecord, error) {
	s.gotRecordID = id
	return s.record, s.err
}

func (s *stubService) InvoiceQR(context.Context, string, string) (string, error) {
	return s.qr, s.err
}

func acceptedRecord() *record.FiscalRecord {
	sent := time.Date(2026, 3, 15, 11, 0, 0, 0, time.UTC)
	return &record.FiscalRecord{
		ID:              uuid.New(),
		SourceInvoiceID: "INV-1",
		Category:        record.CategoryIssuance,
		State:           record.StateAccepted,
		Fingerprint:     "ABCD",
		GeneratedAt:     time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
		SentAt:          &sent,
	}
}

func newTestRouter(svc *stubService) http.Handler {
	r := chi.NewRouter()
	NewLedgerHandler(svc).Register(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec.Code, decoded
}

func TestHandleIssuance(t *testing.T) {
	svc := &stubService{record: acceptedRecord()}
	router := newTestRouter(svc)

	body := `{
		"invoice_id": "INV-1",
		"issuer_tax_id": "ES89890001K",
		"issuer_country": "ES",
		"issuer_name": "Acme SL",
		"document_number": "F-2026-0001",
		"issue_date": "2026-03-15",
		"invoice_type": "F1",
		"tax_total": "21.00",
		"grand_total": "121.00"
	}`
	status, resp := doRequest(t, router, http.MethodPost, "/fiscal/issuances", body)

	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "accepted", resp["state"])
	assert.Equal(t, "ABCD", resp["fingerprint"])
	assert.Equal(t, "89890001K", svc.gotSnapshot.VATNumber())
	assert.Equal(t, "121.00", svc.gotSnapshot.GrandTotal.StringFixed(2))
}

func TestHandleIssuanceBadBody(t *testing.T) {
	router := newTestRouter(&stubService{})
	status, resp := doRequest(t, router, http.MethodPost, "/fiscal/issuances", "{not json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", resp["error"])
}

func TestHandleIssuanceBadDate(t *testing.T) {
	router := newTestRouter(&stubService{})
	status, resp := doRequest(t, router, http.MethodPost, "/fiscal/issuances",
		`{"issue_date": "15-03-2026"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", resp["error"])
}

func TestHandleIssuanceRejectedMapsToBadGateway(t *testing.T) {
	rejected := acceptedRecord()
	rejected.State = record.StateRejected
	svc := &stubService{
		record: rejected,
		err:    fiscalerrors.New(fiscalerrors.CodeTransport, "submission timed out"),
	}
	router := newTestRouter(svc)

	status, resp := doRequest(t, router, http.MethodPost, "/fiscal/issuances",
		`{"invoice_id": "INV-1"}`)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "rejected", resp["state"])
}

func TestHandleEvent(t *testing.T) {
	svc := &stubService{record: acceptedRecord()}
	router := newTestRouter(svc)

	status, _ := doRequest(t, router, http.MethodPost, "/fiscal/events",
		`{"issuer_tax_id": "ES89890001K", "event_type": "01"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, record.EventType("01"), svc.gotSubtype)
}

func TestHandleResubmit(t *testing.T) {
	svc := &stubService{record: acceptedRecord()}
	router := newTestRouter(svc)
	id := uuid.New()

	status, _ := doRequest(t, router, http.MethodPost, "/fiscal/resubmit",
		`{"record_id": "`+id.String()+`"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, id, svc.gotRecordID)

	status, resp := doRequest(t, router, http.MethodPost, "/fiscal/resubmit",
		`{"record_id": "not-a-uuid"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", resp["error"])
}

func TestHandleGetRecord(t *testing.T) {
	rec := acceptedRecord()
	svc := &stubService{record: rec}
	router := newTestRouter(svc)

	status, resp := doRequest(t, router, http.MethodGet, "/fiscal/records/"+rec.ID.String(), "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, rec.ID.String(), resp["id"])

	svc.record = nil
	svc.err = fiscalerrors.New(fiscalerrors.CodeNotFound, "no such record")
	status, resp = doRequest(t, router, http.MethodGet, "/fiscal/records/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", resp["error"])
}

func TestHandleInvoiceQR(t *testing.T) {
	svc := &stubService{qr: "https://qr.example.test/validate?nif=89890001K"}
	router := newTestRouter(svc)

	status, resp := doRequest(t, router, http.MethodGet, "/fiscal/invoices/INV-1/qr?issuer_id=ES89890001K", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, svc.qr, resp["qr_url"])

	status, resp = doRequest(t, router, http.MethodGet, "/fiscal/invoices/INV-1/qr", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", resp["error"])
}

func TestHandleClassify(t *testing.T) {
	router := newTestRouter(&stubService{})

	status, resp := doRequest(t, router, http.MethodPost, "/fiscal/classify",
		`{"declared_kind": "sale_invoice", "has_counterparty": true}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "F1", resp["invoice_type"])

	status, resp = doRequest(t, router, http.MethodPost, "/fiscal/classify",
		`{"declared_kind": "sale_refund", "has_corrective_ref": true, "corrective_ref_has_counterparty": true}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "R1", resp["invoice_type"])
	assert.Equal(t, true, resp["force_counterparty_from_ref"])
}

func TestRouterAuth(t *testing.T) {
	tokens := jwttoken.NewService("test-signing-key", "account-verifactu", "fiscal-api")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(NewLedgerHandler(&stubService{record: acceptedRecord()}), tokens,
		http.NotFoundHandler(), log)

	req := httptest.NewRequest(http.MethodGet, "/fiscal/records/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := tokens.GenerateAccessToken("op-1", "ES89890001K", time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/fiscal/records/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health needs no token.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
