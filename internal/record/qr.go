package record

import (
	"net/url"
	"strings"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// QRPayload builds the verification URL encoded into the invoice QR code.
// Parameter order is fixed and each value is percent-encoded individually;
// the URL as a whole is never re-encoded. Rendering the QR image itself is
// out of scope.
func QRPayload(base string, snap InvoiceSnapshot) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", fiscalerrors.New(fiscalerrors.CodeInvalidInput, "missing QR verification base URL")
	}
	amount := snap.GrandTotal
	if snap.Corrective {
		amount = amount.Neg()
	}
	params := []struct{ key, value string }{
		{"nif", snap.VATNumber()},
		{"numserie", snap.DocumentNumber},
		{"fecha", snap.IssueDateWire()},
		{"importe", amount.StringFixed(2)},
	}
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteByte('?')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(p.key)
		sb.WriteByte('=')
		sb.WriteString(escapeParam(p.value))
	}
	return sb.String(), nil
}

// escapeParam percent-encodes a single query value. QueryEscape encodes a
// space as '+'; the verification service expects %20.
func escapeParam(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
