package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rauletepaz/account-verifactu/pkg/platform/sentinel"
)

// PostgresStore persists the ledger in PostgreSQL. Each Save is its own
// durable write, independent of any caller transaction; records are appended,
// never deleted, and Update only touches outcome columns so the legally
// significant fields stay immutable at the schema level.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the ledger table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fiscal_records (
			id                   UUID PRIMARY KEY,
			seq                  BIGSERIAL,
			issuer_id            TEXT NOT NULL,
			issuer_name          TEXT NOT NULL DEFAULT '',
			source_invoice_id    TEXT NOT NULL DEFAULT '',
			category             TEXT NOT NULL,
			subtype              TEXT NOT NULL DEFAULT '',
			lane                 TEXT NOT NULL,
			generated_at         TIMESTAMPTZ NOT NULL,
			fields               JSONB NOT NULL,
			previous_fingerprint TEXT NOT NULL DEFAULT '',
			fingerprint          TEXT NOT NULL,
			flag_no_prior        TEXT NOT NULL DEFAULT '',
			flag_prior_rejection TEXT NOT NULL DEFAULT '',
			flag_correction      TEXT NOT NULL DEFAULT '',
			document             TEXT NOT NULL DEFAULT '',
			signature            TEXT NOT NULL DEFAULT '',
			transport_request    TEXT NOT NULL DEFAULT '',
			transport_response   TEXT NOT NULL DEFAULT '',
			state                TEXT NOT NULL,
			sent_at              TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS fiscal_records_lane_idx
			ON fiscal_records (issuer_id, lane, sent_at DESC, generated_at DESC, seq DESC);
		CREATE INDEX IF NOT EXISTS fiscal_records_invoice_idx
			ON fiscal_records (issuer_id, lane, source_invoice_id);`)
	if err != nil {
		return fmt.Errorf("migrate fiscal_records: %w", err)
	}
	return nil
}

const recordColumns = `id, seq, issuer_id, issuer_name, source_invoice_id, category, subtype,
	generated_at, fields, previous_fingerprint, fingerprint,
	flag_no_prior, flag_prior_rejection, flag_correction,
	document, signature, transport_request, transport_response, state, sent_at`

func (s *PostgresStore) Save(ctx context.Context, r *FiscalRecord) error {
	fields, err := json.Marshal(r.Fields)
	if err != nil {
		return fmt.Errorf("encode record fields: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO fiscal_records (
			id, issuer_id, issuer_name, source_invoice_id, category, subtype, lane,
			generated_at, fields, previous_fingerprint, fingerprint,
			flag_no_prior, flag_prior_rejection, flag_correction,
			document, signature, transport_request, transport_response, state, sent_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING seq`,
		r.ID, r.IssuerID, r.IssuerName, r.SourceInvoiceID, r.Category, r.Subtype, r.Lane(),
		r.GeneratedAt, fields, r.PreviousFingerprint, r.Fingerprint,
		r.Flags.NoPriorRecord, r.Flags.PriorRejection, r.Flags.IsCorrection,
		r.Document, r.Signature, r.TransportRequest, r.TransportResponse, r.State, r.SentAt,
	).Scan(&r.Seq)
	if err != nil {
		return fmt.Errorf("insert fiscal record: %w", err)
	}
	return nil
}

// Update persists the submission outcome. Legal columns are deliberately
// absent from the statement.
func (s *PostgresStore) Update(ctx context.Context, r *FiscalRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fiscal_records
		SET document = $2, signature = $3, transport_request = $4,
			transport_response = $5, state = $6, sent_at = $7
		WHERE id = $1`,
		r.ID, r.Document, r.Signature, r.TransportRequest,
		r.TransportResponse, r.State, r.SentAt)
	if err != nil {
		return fmt.Errorf("update fiscal record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update fiscal record: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*FiscalRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM fiscal_records WHERE id = $1`, id)
	return scanRecord(row)
}

func (s *PostgresStore) LatestSent(ctx context.Context, issuerID string, lane Lane) (*FiscalRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM fiscal_records
		WHERE issuer_id = $1 AND lane = $2 AND state <> $3
		ORDER BY sent_at DESC NULLS LAST, generated_at DESC, seq DESC
		LIMIT 1`, issuerID, lane, StateDraft)
	return scanRecord(row)
}

func (s *PostgresStore) LatestChainable(ctx context.Context, issuerID string, lane Lane) (*FiscalRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM fiscal_records
		WHERE issuer_id = $1 AND lane = $2 AND state IN ($3, $4)
		ORDER BY sent_at DESC NULLS LAST, generated_at DESC, seq DESC
		LIMIT 1`, issuerID, lane, StateAccepted, StatePartiallyAccepted)
	return scanRecord(row)
}

func (s *PostgresStore) LatestAcceptedForInvoice(ctx context.Context, issuerID string, lane Lane, invoiceID string) (*FiscalRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM fiscal_records
		WHERE issuer_id = $1 AND lane = $2 AND source_invoice_id = $3 AND state IN ($4, $5)
		ORDER BY sent_at DESC NULLS LAST, generated_at DESC, seq DESC
		LIMIT 1`, issuerID, lane, invoiceID, StateAccepted, StatePartiallyAccepted)
	return scanRecord(row)
}

func (s *PostgresStore) ListByState(ctx context.Context, state State) ([]*FiscalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM fiscal_records
		WHERE state = $1
		ORDER BY seq ASC`, state)
	if err != nil {
		return nil, fmt.Errorf("list fiscal records: %w", err)
	}
	defer rows.Close()
	var out []*FiscalRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fiscal records: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*FiscalRecord, error) {
	var (
		r      FiscalRecord
		fields []byte
		sentAt sql.NullTime
	)
	err := row.Scan(
		&r.ID, &r.Seq, &r.IssuerID, &r.IssuerName, &r.SourceInvoiceID, &r.Category, &r.Subtype,
		&r.GeneratedAt, &fields, &r.PreviousFingerprint, &r.Fingerprint,
		&r.Flags.NoPriorRecord, &r.Flags.PriorRejection, &r.Flags.IsCorrection,
		&r.Document, &r.Signature, &r.TransportRequest, &r.TransportResponse, &r.State, &sentAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan fiscal record: %w", err)
	}
	if err := json.Unmarshal(fields, &r.Fields); err != nil {
		return nil, fmt.Errorf("decode record fields: %w", err)
	}
	if sentAt.Valid {
		t := sentAt.Time.In(time.UTC)
		r.SentAt = &t
	}
	return &r, nil
}
