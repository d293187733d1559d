// Package verifactu runs the build-chain-sign-submit pipeline over the
// fiscal record ledger and exposes the operations the transport layer calls.
package verifactu

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rauletepaz/account-verifactu/internal/aeat"
	"github.com/rauletepaz/account-verifactu/internal/audit"
	"github.com/rauletepaz/account-verifactu/internal/platform/metrics"
	"github.com/rauletepaz/account-verifactu/internal/record"
	"github.com/rauletepaz/account-verifactu/internal/signing"
	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
	"github.com/rauletepaz/account-verifactu/pkg/requestcontext"
)

// Config is the immutable pipeline configuration, passed in explicitly.
type Config struct {
	Environment aeat.Environment
	Mode        aeat.Mode
	Endpoints   aeat.Endpoints
	System      record.SystemInfo

	// QRBaseOverride replaces the endpoint-derived verification base when set.
	QRBaseOverride string
}

type Service struct {
	cfg      Config
	store    record.Store
	builder  *record.Builder
	linker   *record.Linker
	renderer *record.Renderer
	client   *aeat.Client
	creds    signing.Source
	lanes    *laneLocks
	trail    *audit.Trail
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewService(
	cfg Config,
	store record.Store,
	client *aeat.Client,
	creds signing.Source,
	trail *audit.Trail,
	m *metrics.Metrics,
	log *slog.Logger,
) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		builder:  record.NewBuilder(cfg.System),
		linker:   record.NewLinker(store),
		renderer: record.NewRenderer(cfg.System),
		client:   client,
		creds:    creds,
		lanes:    newLaneLocks(),
		trail:    trail,
		metrics:  m,
		log:      log,
	}
}

// SubmitIssuance builds, chains and submits an issuance record for a final
// invoice. The returned record is always persisted, whatever the outcome.
func (s *Service) SubmitIssuance(ctx context.Context, snap record.InvoiceSnapshot) (*record.FiscalRecord, error) {
	r, err := s.builder.BuildIssuance(snap, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	return s.run(ctx, r)
}

// SubmitVoidance builds, chains and submits a voidance record cancelling a
// previously reported invoice.
func (s *Service) SubmitVoidance(ctx context.Context, snap record.InvoiceSnapshot) (*record.FiscalRecord, error) {
	r, err := s.builder.BuildVoidance(snap, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	return s.run(ctx, r)
}

// RecordEvent builds, chains and submits an event record on the issuer's
// event lane.
func (s *Service) RecordEvent(ctx context.Context, snap record.InvoiceSnapshot, subtype record.EventType) (*record.FiscalRecord, error) {
	r, err := s.builder.BuildEvent(snap, subtype, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	return s.run(ctx, r)
}

// Resubmit creates a fresh record for the invoice behind a rejected one and
// runs the full pipeline again. The rejected record stays in the ledger; the
// new record re-reads the lane head, so the rejection shows up in the new
// record's continuity flags.
func (s *Service) Resubmit(ctx context.Context, recordID uuid.UUID) (*record.FiscalRecord, error) {
	prior, err := s.store.GetByID(ctx, recordID)
	if err != nil {
		return nil, fiscalerrors.Wrap(fiscalerrors.CodeNotFound, "load record for resubmission", err)
	}
	if prior.State != record.StateRejected {
		return nil, fiscalerrors.Newf(fiscalerrors.CodeInvalidInput,
			"record %s is %s; only rejected records can be resubmitted", prior.ID, prior.State)
	}
	snap, err := snapshotFromRecord(prior)
	if err != nil {
		return nil, err
	}
	switch prior.Category {
	case record.CategoryIssuance:
		return s.SubmitIssuance(ctx, snap)
	case record.CategoryVoidance:
		return s.SubmitVoidance(ctx, snap)
	case record.CategoryEvent:
		return s.RecordEvent(ctx, snap, prior.Subtype)
	}
	return nil, fiscalerrors.Newf(fiscalerrors.CodeInvalidInput, "record %s has unknown category %q", prior.ID, prior.Category)
}

// SubmitPending submits every persisted Draft record, one worker per
// issuer+lane so lanes stay serial while issuers proceed in parallel. A
// record that fails stays Rejected in the ledger; the sweep continues.
func (s *Service) SubmitPending(ctx context.Context) error {
	drafts, err := s.store.ListByState(ctx, record.StateDraft)
	if err != nil {
		return fiscalerrors.Wrap(fiscalerrors.CodeInternal, "list pending records", err)
	}
	groups := make(map[string][]*record.FiscalRecord)
	for _, r := range drafts {
		key := r.IssuerID + "/" + string(r.Lane())
		groups[key] = append(groups[key], r)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, lane := range groups {
		g.Go(func() error {
			for _, r := range lane {
				unlock := s.lanes.acquire(r.IssuerID, r.Lane())
				err := s.submit(ctx, r)
				unlock()
				if err != nil {
					s.log.ErrorContext(ctx, "pending submission failed",
						"request_id", requestcontext.RequestID(ctx),
						"record_id", r.ID,
						"error", err)
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// GetRecord loads one ledger entry.
func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*record.FiscalRecord, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fiscalerrors.Wrap(fiscalerrors.CodeNotFound, "load record", err)
	}
	return r, nil
}

// InvoiceQR returns the verification URL for the latest accepted record of
// an invoice.
func (s *Service) InvoiceQR(ctx context.Context, issuerID, invoiceID string) (string, error) {
	r, err := s.store.LatestAcceptedForInvoice(ctx, issuerID, record.LaneInvoicing, invoiceID)
	if err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeNotFound, "no accepted record for invoice", err)
	}
	base := s.cfg.QRBaseOverride
	if base == "" {
		base, err = s.cfg.Endpoints.QRVerificationBase(s.cfg.Environment, s.cfg.Mode)
		if err != nil {
			return "", err
		}
	}
	snap, err := snapshotFromRecord(r)
	if err != nil {
		return "", err
	}
	return record.QRPayload(base, snap)
}

// EnsureEditAllowed gates invoice edits after acceptance: the candidate
// rendering must be register-equivalent to the accepted document, or the
// edit is blocked with a consistency error.
func (s *Service) EnsureEditAllowed(ctx context.Context, recordID uuid.UUID, candidateDocument string) error {
	r, err := s.store.GetByID(ctx, recordID)
	if err != nil {
		return fiscalerrors.Wrap(fiscalerrors.CodeNotFound, "load record for edit check", err)
	}
	if !r.State.Chainable() || r.Document == "" {
		return nil
	}
	equivalent, err := record.CompareRegisters(r.Document, candidateDocument)
	if err != nil {
		return err
	}
	if !equivalent {
		s.metrics.EditsBlockedTotal.Inc()
		s.trail.Record(ctx, audit.ActionEditBlocked, r.ID, r.SourceInvoiceID, "register equivalence failed")
		return fiscalerrors.Newf(fiscalerrors.CodeConsistency,
			"invoice %s: edit changes legally significant fields of an accepted record", r.SourceInvoiceID)
	}
	return nil
}

// run executes the full pipeline under the record's lane lock.
func (s *Service) run(ctx context.Context, r *record.FiscalRecord) (*record.FiscalRecord, error) {
	unlock := s.lanes.acquire(r.IssuerID, r.Lane())
	defer unlock()
	started := time.Now()
	defer func() {
		s.metrics.SubmissionDuration.Observe(time.Since(started).Seconds())
	}()

	if err := s.linker.Link(ctx, r); err != nil {
		if fiscalerrors.CodeOf(err) == fiscalerrors.CodeChainIntegrity {
			s.metrics.ChainErrorsTotal.Inc()
		}
		return nil, err
	}
	if err := record.ComputeFingerprint(r); err != nil {
		return nil, err
	}
	doc, err := s.renderer.Render(r)
	if err != nil {
		return nil, err
	}
	r.Document = doc

	if err := s.store.Save(ctx, r); err != nil {
		return nil, fiscalerrors.Wrap(fiscalerrors.CodeInternal, "persist record", err)
	}
	s.trail.Record(ctx, audit.ActionRecordBuilt, r.ID, r.SourceInvoiceID, string(r.Category))

	if err := s.submit(ctx, r); err != nil {
		return r, err
	}
	return r, nil
}

// submit transmits an already-persisted, sealed record and stamps the
// verdict. Any failure on the way to the wire marks the record Rejected;
// resubmission means a new record, never a retry of this one.
func (s *Service) submit(ctx context.Context, r *record.FiscalRecord) error {
	cred, release, err := s.creds.Acquire(ctx)
	if err != nil {
		return s.reject(ctx, r, err)
	}
	defer release()

	if s.cfg.Mode == aeat.ModeNonVerifiable && r.Signature == "" {
		sig, err := signing.NewSigner(cred).Sign(r.Document)
		if err != nil {
			return s.reject(ctx, r, err)
		}
		signed, err := record.EmbedSignature(r.Document, sig)
		if err != nil {
			return s.reject(ctx, r, err)
		}
		r.Signature = sig
		r.Document = signed
	}

	envelope, err := s.buildEnvelope(r)
	if err != nil {
		return s.reject(ctx, r, err)
	}
	r.TransportRequest = envelope

	body, err := s.client.Submit(ctx, s.cfg.Environment, s.cfg.Mode, cred, envelope)
	if err != nil {
		return s.reject(ctx, r, err)
	}
	r.TransportResponse = body

	verdict, verdictErr := aeat.Interpret(body)
	r.State = verdict.State
	now := requestcontext.Now(ctx)
	r.SentAt = &now
	if err := s.store.Update(ctx, r); err != nil {
		return fiscalerrors.Wrap(fiscalerrors.CodeInternal, "persist submission outcome", err)
	}
	s.metrics.SubmissionsTotal.WithLabelValues(string(r.Category), string(r.State)).Inc()
	s.trail.Record(ctx, audit.ActionRecordSubmitted, r.ID, r.SourceInvoiceID, string(r.State))
	return verdictErr
}

// reject stamps a pre-verdict failure. The record stays in the ledger as a
// rejection so the next record's continuity flags see it.
func (s *Service) reject(ctx context.Context, r *record.FiscalRecord, cause error) error {
	r.State = record.StateRejected
	now := requestcontext.Now(ctx)
	r.SentAt = &now
	if err := s.store.Update(ctx, r); err != nil {
		s.log.ErrorContext(ctx, "failed to persist rejection",
			"request_id", requestcontext.RequestID(ctx),
			"record_id", r.ID,
			"error", err)
	}
	s.metrics.SubmissionsTotal.WithLabelValues(string(r.Category), string(record.StateRejected)).Inc()
	s.trail.Record(ctx, audit.ActionRecordRejected, r.ID, r.SourceInvoiceID, cause.Error())
	return cause
}

func (s *Service) buildEnvelope(r *record.FiscalRecord) (string, error) {
	ob := aeat.Obligor{Name: r.IssuerName, VATNumber: obligorVAT(r)}
	if r.Category == record.CategoryEvent {
		return aeat.BuildEventEnvelope(ob, r.Document)
	}
	return aeat.BuildInvoiceEnvelope(ob, r.Document)
}

func obligorVAT(r *record.FiscalRecord) string {
	for _, name := range []string{"IDEmisorFactura", "IDEmisorFacturaAnulada", "NIF"} {
		if v := r.FieldValue(name); v != "" {
			return v
		}
	}
	return r.IssuerID
}

// snapshotFromRecord reconstructs an invoice snapshot from a record's
// canonical fields. Amounts come back with the polarity already applied, so
// the snapshot is never marked corrective. The issuer id keeps its original
// form so the new record lands on the same chain lane; the country prefix is
// recovered from the difference against the wire VAT number.
func snapshotFromRecord(r *record.FiscalRecord) (record.InvoiceSnapshot, error) {
	snap := record.InvoiceSnapshot{
		InvoiceID:   r.SourceInvoiceID,
		IssuerTaxID: r.IssuerID,
		IssuerName:  r.IssuerName,
	}
	if vat := obligorVAT(r); vat != r.IssuerID && strings.HasSuffix(r.IssuerID, vat) {
		snap.IssuerCountry = strings.TrimSuffix(r.IssuerID, vat)
	}
	switch r.Category {
	case record.CategoryIssuance:
		snap.DocumentNumber = r.FieldValue("NumSerieFactura")
		snap.InvoiceType = r.FieldValue("TipoFactura")
		if err := parseWireDate(r.FieldValue("FechaExpedicionFactura"), &snap.IssueDate); err != nil {
			return snap, err
		}
		var err error
		if snap.TaxTotal, err = parseWireAmount(r.FieldValue("CuotaTotal")); err != nil {
			return snap, err
		}
		if snap.GrandTotal, err = parseWireAmount(r.FieldValue("ImporteTotal")); err != nil {
			return snap, err
		}
	case record.CategoryVoidance:
		snap.DocumentNumber = r.FieldValue("NumSerieFacturaAnulada")
		if err := parseWireDate(r.FieldValue("FechaExpedicionFacturaAnulada"), &snap.IssueDate); err != nil {
			return snap, err
		}
	case record.CategoryEvent:
		// Events carry no invoice payload.
	}
	return snap, nil
}

func parseWireDate(v string, dst *time.Time) error {
	t, err := time.Parse("02-01-2006", v)
	if err != nil {
		return fiscalerrors.Wrap(fiscalerrors.CodeInvalidInput, "parse record issue date", err)
	}
	*dst = t
	return nil
}

func parseWireAmount(v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fiscalerrors.Wrap(fiscalerrors.CodeInvalidInput, "parse record amount", err)
	}
	return d, nil
}
