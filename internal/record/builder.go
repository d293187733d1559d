package record

import (
	"time"

	"github.com/google/uuid"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// Builder assembles the canonical field set for a record from an invoice
// snapshot. Chain and hash fields stay unpopulated; the chain linker and hash
// computer own those.
type Builder struct {
	system SystemInfo
}

func NewBuilder(system SystemInfo) *Builder {
	return &Builder{system: system}
}

// BuildIssuance creates a Draft issuance record. The generation timestamp is
// assigned here, exactly once; rebuilding for the same invoice produces a new
// record with its own timestamp.
func (b *Builder) BuildIssuance(snap InvoiceSnapshot, now time.Time) (*FiscalRecord, error) {
	if err := validateCommon(snap); err != nil {
		return nil, err
	}
	if snap.InvoiceType == "" {
		return nil, fiscalerrors.Newf(fiscalerrors.CodeInvalidInput, "invoice %s: missing classification code", snap.InvoiceID)
	}
	if snap.GrandTotal.IsZero() {
		return nil, fiscalerrors.Newf(fiscalerrors.CodeInvalidInput, "invoice %s: issuance requires a non-zero total", snap.InvoiceID)
	}

	tax, total := snap.TaxTotal, snap.GrandTotal
	if snap.Corrective {
		tax, total = tax.Neg(), total.Neg()
	}

	r := b.newRecord(snap, CategoryIssuance, now)
	r.Fields = []Field{
		{"IDEmisorFactura", snap.VATNumber()},
		{"NumSerieFactura", snap.DocumentNumber},
		{"FechaExpedicionFactura", snap.IssueDateWire()},
		{"TipoFactura", snap.InvoiceType},
		{"CuotaTotal", tax.StringFixed(2)},
		{"ImporteTotal", total.StringFixed(2)},
	}
	return r, nil
}

// BuildVoidance creates a Draft voidance record cancelling a previously
// reported invoice.
func (b *Builder) BuildVoidance(snap InvoiceSnapshot, now time.Time) (*FiscalRecord, error) {
	if err := validateCommon(snap); err != nil {
		return nil, err
	}
	r := b.newRecord(snap, CategoryVoidance, now)
	r.Fields = []Field{
		{"IDEmisorFacturaAnulada", snap.VATNumber()},
		{"NumSerieFacturaAnulada", snap.DocumentNumber},
		{"FechaExpedicionFacturaAnulada", snap.IssueDateWire()},
	}
	return r, nil
}

// BuildEvent creates a Draft event record. The issuer id appears twice in the
// canonical payload; that repetition is part of the wire format.
func (b *Builder) BuildEvent(snap InvoiceSnapshot, subtype EventType, now time.Time) (*FiscalRecord, error) {
	if snap.VATNumber() == "" {
		return nil, fiscalerrors.New(fiscalerrors.CodeInvalidInput, "event record requires an issuer tax id")
	}
	if !subtype.Valid() {
		return nil, fiscalerrors.Newf(fiscalerrors.CodeInvalidInput, "invalid event subtype %q", subtype)
	}
	r := b.newRecord(snap, CategoryEvent, now)
	r.Subtype = subtype
	r.Fields = []Field{
		{"NIF", snap.VATNumber()},
		{"IdSistemaInformatico", b.system.SystemID},
		{"Version", b.system.Version},
		{"NumeroInstalacion", b.system.InstallationNumber},
		{"NIF", snap.VATNumber()},
		{"TipoEvento", string(subtype)},
	}
	return r, nil
}

func (b *Builder) newRecord(snap InvoiceSnapshot, category Category, now time.Time) *FiscalRecord {
	return &FiscalRecord{
		ID:              uuid.New(),
		IssuerID:        snap.IssuerTaxID,
		IssuerName:      snap.IssuerName,
		SourceInvoiceID: snap.InvoiceID,
		Category:        category,
		GeneratedAt:     now,
		State:           StateDraft,
	}
}

func validateCommon(snap InvoiceSnapshot) error {
	if snap.VATNumber() == "" {
		return fiscalerrors.Newf(fiscalerrors.CodeInvalidInput, "invoice %s: missing issuer tax id", snap.InvoiceID)
	}
	if snap.DocumentNumber == "" {
		return fiscalerrors.Newf(fiscalerrors.CodeInvalidInput, "invoice %s: missing document number", snap.InvoiceID)
	}
	if snap.IssueDate.IsZero() {
		return fiscalerrors.Newf(fiscalerrors.CodeInvalidInput, "invoice %s: missing issue date", snap.InvoiceID)
	}
	return nil
}
