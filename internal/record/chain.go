package record

import (
	"context"
	"errors"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
	"github.com/rauletepaz/account-verifactu/pkg/platform/sentinel"
)

// Linker attaches the chain link and derives the continuity flags. It must
// run under the lane lock: two concurrent links in one lane would race on
// previousFingerprint selection and fork the chain.
type Linker struct {
	store Store
}

func NewLinker(store Store) *Linker {
	return &Linker{store: store}
}

// Link populates PreviousFingerprint and Flags on a freshly built record.
// A rejected record never supplies the fingerprint; it only counts as the
// lane head for flag purposes.
func (l *Linker) Link(ctx context.Context, r *FiscalRecord) error {
	if r.Sealed() {
		return fiscalerrors.Newf(fiscalerrors.CodeConsistency, "record %s: cannot relink a sealed record", r.ID)
	}
	lane := r.Lane()

	chainable, err := l.store.LatestChainable(ctx, r.IssuerID, lane)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fiscalerrors.Wrap(fiscalerrors.CodeChainIntegrity, "lane history lookup failed", err)
	}
	if chainable != nil {
		if chainable.Fingerprint == "" {
			return fiscalerrors.Newf(fiscalerrors.CodeChainIntegrity,
				"lane %s/%s: chainable record %s has no fingerprint", r.IssuerID, lane, chainable.ID)
		}
		r.PreviousFingerprint = chainable.Fingerprint
	}

	if !r.Category.FlagsApply() {
		return nil
	}

	latestAny, err := l.store.LatestSent(ctx, r.IssuerID, lane)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fiscalerrors.Wrap(fiscalerrors.CodeChainIntegrity, "lane history lookup failed", err)
	}
	acceptedForInvoice, err := l.store.LatestAcceptedForInvoice(ctx, r.IssuerID, lane, r.SourceInvoiceID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fiscalerrors.Wrap(fiscalerrors.CodeChainIntegrity, "lane history lookup failed", err)
	}

	priorAccepted := acceptedForInvoice != nil
	priorRejected := latestAny != nil && latestAny.State == StateRejected

	switch r.Category {
	case CategoryIssuance:
		correction := priorAccepted || priorRejected
		r.Flags.IsCorrection = boolFlag(correction)
		r.Flags.NoPriorRecord = boolFlag(!priorAccepted)
		switch {
		case correction && !priorAccepted:
			// Correction pending with no accepted predecessor: distinct from a
			// plain correction, kept representable on the wire.
			r.Flags.PriorRejection = FlagNotApplicable
		case correction && priorRejected:
			r.Flags.PriorRejection = FlagYes
		default:
			r.Flags.PriorRejection = FlagNo
		}
	case CategoryVoidance:
		// Voidance never corrects an accepted record; only a prior rejection
		// marks it as a correction.
		r.Flags.IsCorrection = boolFlag(priorRejected)
		r.Flags.NoPriorRecord = boolFlag(!priorAccepted)
		r.Flags.PriorRejection = boolFlag(priorRejected)
	}
	return nil
}

func boolFlag(b bool) Flag {
	if b {
		return FlagYes
	}
	return FlagNo
}
