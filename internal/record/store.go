package record

import (
	"context"

	"github.com/google/uuid"
)

// Store is the ledger persistence port. Implementations return
// sentinel.ErrNotFound (wrapped or bare) when a lookup misses.
//
// Lane queries order by (SentAt desc, GeneratedAt desc, Seq desc); Seq is the
// store-assigned monotonic tie-breaker.
type Store interface {
	// Save appends a new record to the ledger and assigns Seq. The write is
	// its own durable boundary, independent of any caller transaction.
	Save(ctx context.Context, r *FiscalRecord) error

	// Update persists the submission outcome (state, sentAt, transport
	// payloads, document, signature). Legal fields of a record that already
	// reached a chainable state are immutable; implementations reject
	// attempts to change them.
	Update(ctx context.Context, r *FiscalRecord) error

	GetByID(ctx context.Context, id uuid.UUID) (*FiscalRecord, error)

	// LatestSent returns the most recently sent record in the lane, any
	// terminal state.
	LatestSent(ctx context.Context, issuerID string, lane Lane) (*FiscalRecord, error)

	// LatestChainable returns the most recent Accepted/PartiallyAccepted
	// record in the lane; it supplies previousFingerprint.
	LatestChainable(ctx context.Context, issuerID string, lane Lane) (*FiscalRecord, error)

	// LatestAcceptedForInvoice returns the most recent Accepted or
	// PartiallyAccepted record for one source invoice, used to detect a
	// duplicate issuance attempt.
	LatestAcceptedForInvoice(ctx context.Context, issuerID string, lane Lane, invoiceID string) (*FiscalRecord, error)

	// ListByState returns records in the given state across all lanes,
	// oldest first.
	ListByState(ctx context.Context, state State) ([]*FiscalRecord, error)
}
