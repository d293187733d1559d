// Package record implements the fiscal record ledger: building, chaining,
// fingerprinting, rendering and comparing the invoicing records submitted to
// the tax agency. Records are write-once for their legally significant fields;
// history is never edited, only extended with new chained records.
package record

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category is the record category. Issuance and Voidance share one chain lane
// per issuer; Event records form a separate lane.
type Category string

const (
	CategoryIssuance Category = "alta"
	CategoryVoidance Category = "anulacion"
	CategoryEvent    Category = "evento"
)

// Lane identifies a chain lane within an issuer's ledger.
type Lane string

const (
	LaneInvoicing Lane = "invoicing"
	LaneEvent     Lane = "event"
)

// LaneOf maps a category onto its chain lane.
func LaneOf(c Category) Lane {
	if c == CategoryEvent {
		return LaneEvent
	}
	return LaneInvoicing
}

// FlagsApply reports whether continuity flags are meaningful for the
// category. Event records skip them entirely.
func (c Category) FlagsApply() bool { return c != CategoryEvent }

// EventType is the enumerated subtype of an Event record.
type EventType string

var validEventTypes = map[EventType]bool{
	"01": true, "02": true, "03": true, "04": true, "05": true,
	"06": true, "07": true, "08": true, "09": true, "10": true,
	"90": true,
}

// Valid reports whether the event code is one of the wire enumeration.
func (e EventType) Valid() bool { return validEventTypes[e] }

// State is the record-level submission state. Draft is initial; the other
// three are terminal for the record — the lane continues with new records.
type State string

const (
	StateDraft             State = "draft"
	StateAccepted          State = "accepted"
	StatePartiallyAccepted State = "partially_accepted"
	StateRejected          State = "rejected"
)

// Chainable reports whether a record in this state may supply
// previousFingerprint to its successors.
func (s State) Chainable() bool {
	return s == StateAccepted || s == StatePartiallyAccepted
}

// Flag is the three-valued wire marker used by the continuity flags.
type Flag string

const (
	FlagYes Flag = "S"
	FlagNo  Flag = "N"
	// FlagNotApplicable marks the no-prior-pending-correction combination on
	// the prior-rejection flag: a correction is being sent but no accepted
	// record exists yet, so "was the previous try rejected" has no S/N answer.
	FlagNotApplicable Flag = "X"
)

// ContinuityFlags are derived by the chain linker; they are never settable
// independently.
type ContinuityFlags struct {
	NoPriorRecord  Flag
	PriorRejection Flag
	IsCorrection   Flag
}

// Field is one canonical (name, value) pair of the record payload. Order is
// part of the wire contract.
type Field struct {
	Name  string
	Value string
}

// InvoiceSnapshot is the slice of invoice data the engine consumes. The
// surrounding accounting lifecycle is out of scope; the snapshot is taken
// when the invoice becomes final or voided.
type InvoiceSnapshot struct {
	InvoiceID      string
	IssuerTaxID    string // VAT number, possibly country-prefixed
	IssuerCountry  string // ISO country code, e.g. "ES"
	IssuerName     string
	DocumentNumber string
	IssueDate      time.Time
	InvoiceType    string // classification code F1..F3, R1..R5
	TaxTotal       decimal.Decimal
	GrandTotal     decimal.Decimal
	Corrective     bool // corrective polarity: amounts enter the hash negated
}

// VATNumber returns the issuer tax id without its country prefix, the form
// the wire document and the QR payload require.
func (s InvoiceSnapshot) VATNumber() string {
	vat := strings.TrimSpace(s.IssuerTaxID)
	cc := strings.TrimSpace(s.IssuerCountry)
	if cc != "" && len(vat) >= len(cc) && strings.EqualFold(vat[:len(cc)], cc) {
		vat = vat[len(cc):]
	}
	return strings.TrimSpace(vat)
}

// IssueDateWire returns the issue date in the DD-MM-YYYY wire format.
func (s InvoiceSnapshot) IssueDateWire() string {
	return s.IssueDate.Format("02-01-2006")
}

// SystemInfo identifies the invoicing software instance; event records carry
// it in their canonical payload.
type SystemInfo struct {
	SystemID           string
	Version            string
	InstallationNumber string
}

// FiscalRecord is one ledger entry. After the first successful build the
// legally significant fields (Fields, Fingerprint, PreviousFingerprint,
// GeneratedAt) are write-once.
type FiscalRecord struct {
	ID              uuid.UUID
	Seq             int64 // store-assigned, monotonic, tie-breaker only
	IssuerID        string
	IssuerName      string
	SourceInvoiceID string
	Category        Category
	Subtype         EventType

	// GeneratedAt is assigned exactly once at build time and never
	// recomputed for the same record.
	GeneratedAt time.Time

	Fields              []Field
	PreviousFingerprint string
	Fingerprint         string
	Flags               ContinuityFlags

	Document          string
	Signature         string
	TransportRequest  string
	TransportResponse string

	State  State
	SentAt *time.Time
}

// Lane returns the chain lane this record belongs to.
func (r *FiscalRecord) Lane() Lane { return LaneOf(r.Category) }

// FieldValue returns the first canonical field with the given name, or "".
func (r *FiscalRecord) FieldValue(name string) string {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// GenerationTimestamp renders GeneratedAt as the ISO-8601 instant with
// UTC offset that enters the canonical hash string.
func (r *FiscalRecord) GenerationTimestamp() string {
	return r.GeneratedAt.Format("2006-01-02T15:04:05-07:00")
}

// Sealed reports whether the fingerprint has been computed; sealed records
// reject any further mutation of their canonical payload.
func (r *FiscalRecord) Sealed() bool { return r.Fingerprint != "" }

// Terminal reports whether the record reached a terminal submission state.
func (r *FiscalRecord) Terminal() bool { return r.State != StateDraft }

// Clone returns a deep copy so stores never hand out aliased records.
func (r *FiscalRecord) Clone() *FiscalRecord {
	cp := *r
	cp.Fields = append([]Field(nil), r.Fields...)
	if r.SentAt != nil {
		t := *r.SentAt
		cp.SentAt = &t
	}
	return &cp
}
