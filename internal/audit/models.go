// Package audit keeps an operational trail of ledger activity: who triggered
// which record, when, and how the submission ended. The trail is for
// operators; the fiscal ledger itself stays in the record store.
package audit

import (
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionRecordBuilt     Action = "record_built"
	ActionRecordSubmitted Action = "record_submitted"
	ActionRecordRejected  Action = "record_rejected"
	ActionEditBlocked     Action = "edit_blocked"
)

type Entry struct {
	ID         uuid.UUID
	At         time.Time
	OperatorID string
	Action     Action
	RecordID   uuid.UUID
	InvoiceID  string
	Detail     string
}
