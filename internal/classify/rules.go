// Package classify holds the pure classification rules deciding which
// invoice type code a document may carry. It is evaluated once per relevant
// mutation and returns a tagged result; nothing here infers values in place.
package classify

// Kind is the commercial document kind as declared by the caller.
type Kind string

const (
	KindSaleInvoice     Kind = "sale_invoice"
	KindSaleRefund      Kind = "sale_refund"
	KindReplacement     Kind = "replacement"
	KindPurchaseInvoice Kind = "purchase_invoice"
	KindPurchaseRefund  Kind = "purchase_refund"
)

func (k Kind) purchase() bool {
	return k == KindPurchaseInvoice || k == KindPurchaseRefund
}

// Input captures everything the rules read. CorrectiveRef* describe the
// invoice this document rectifies or substitutes, when one is referenced.
type Input struct {
	DeclaredKind                 Kind
	HasCounterparty              bool
	HasCorrectiveRef             bool
	CorrectiveRefHasCounterparty bool
	CurrentType                  string // invoice type code currently selected, may be ""
}

// Decision is the tagged outcome: the (possibly forced) kind, the invoice
// type to apply, the allowed set, and whether the counterparty must be taken
// from the corrective reference.
type Decision struct {
	Kind                     Kind
	InvoiceType              string
	Allowed                  []string
	ForceCounterpartyFromRef bool
	ClearCorrectiveRef       bool
}

var ordinaryCorrectives = []string{"R1", "R2", "R3", "R4"}

// Decide maps the input onto exactly one classification outcome.
//
// Rules, in order:
//   - purchase documents carry no fiscal classification at all;
//   - rectifying an identified invoice forces a refund with that invoice's
//     counterparty and an R1..R4 code (default R1);
//   - rectifying a simplified invoice without naming a counterparty is R5;
//   - rectifying a simplified invoice while naming a counterparty is a
//     substitution, F3;
//   - an ordinary sale with a counterparty is F1, a refund with a
//     counterparty defaults to R1 within R1..R4;
//   - no reference and no counterparty means a simplified sale, F2.
func Decide(in Input) Decision {
	if in.DeclaredKind.purchase() {
		return Decision{Kind: in.DeclaredKind, ClearCorrectiveRef: true}
	}

	if in.HasCorrectiveRef {
		if in.CorrectiveRefHasCounterparty {
			return Decision{
				Kind:                     KindSaleRefund,
				InvoiceType:              keepWithin(in.CurrentType, ordinaryCorrectives, "R1"),
				Allowed:                  ordinaryCorrectives,
				ForceCounterpartyFromRef: true,
			}
		}
		if !in.HasCounterparty {
			return Decision{Kind: KindSaleRefund, InvoiceType: "R5", Allowed: []string{"R5"}}
		}
		return Decision{Kind: KindReplacement, InvoiceType: "F3", Allowed: []string{"F3"}}
	}

	if in.HasCounterparty {
		if in.DeclaredKind == KindSaleRefund {
			return Decision{
				Kind:        KindSaleRefund,
				InvoiceType: keepWithin(in.CurrentType, ordinaryCorrectives, "R1"),
				Allowed:     ordinaryCorrectives,
			}
		}
		return Decision{Kind: KindSaleInvoice, InvoiceType: "F1", Allowed: []string{"F1"}}
	}

	return Decision{Kind: KindSaleInvoice, InvoiceType: "F2", Allowed: []string{"F2"}}
}

// ResolveCreditNoteType validates a requested corrective code for a credit
// note. R5 only applies to simplified originals: the issuer must allow
// simplified invoicing and the original must have no identified counterparty;
// otherwise the request falls back to R4, the catch-all corrective.
func ResolveCreditNoteType(requested string, originHasCounterparty, simplifiedAllowed bool) string {
	if requested == "" {
		return "R4"
	}
	if requested == "R5" && (originHasCounterparty || !simplifiedAllowed) {
		return "R4"
	}
	for _, code := range append(ordinaryCorrectives, "R5") {
		if requested == code {
			return requested
		}
	}
	return "R4"
}

func keepWithin(current string, allowed []string, fallback string) string {
	for _, code := range allowed {
		if current == code {
			return current
		}
	}
	return fallback
}
