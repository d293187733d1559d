package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rauletepaz/account-verifactu/pkg/requestcontext"
)

// Trail writes entries to the store and mirrors them into the structured log.
// Trail failures are logged, never propagated: the fiscal pipeline must not
// fail because the operational trail does.
type Trail struct {
	store Store
	log   *slog.Logger
}

func NewTrail(store Store, log *slog.Logger) *Trail {
	return &Trail{store: store, log: log}
}

func (t *Trail) Record(ctx context.Context, action Action, recordID uuid.UUID, invoiceID, detail string) {
	e := Entry{
		ID:         uuid.New(),
		At:         requestcontext.Now(ctx),
		OperatorID: requestcontext.OperatorID(ctx),
		Action:     action,
		RecordID:   recordID,
		InvoiceID:  invoiceID,
		Detail:     detail,
	}
	if err := t.store.Append(ctx, e); err != nil {
		t.log.ErrorContext(ctx, "audit append failed",
			"request_id", requestcontext.RequestID(ctx),
			"action", action,
			"error", err)
		return
	}
	t.log.InfoContext(ctx, "audit",
		"request_id", requestcontext.RequestID(ctx),
		"action", action,
		"record_id", recordID,
		"invoice_id", invoiceID,
		"operator_id", e.OperatorID,
		"detail", detail)
}
