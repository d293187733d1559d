package aeat

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/rauletepaz/account-verifactu/internal/record"
	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// Verdict is the interpreted submission outcome.
type Verdict struct {
	State       record.State
	StatusToken string
	ErrorCodes  []string
}

// The agency's response schema varies between channels and versions; the
// status token can live under any of these element names. Search order
// matters: the envelope-level status wins over per-line statuses.
var statusTokenTags = []string{
	"EstadoEnvio",
	"Estado",
	"Resultado",
	"CodigoResultado",
	"CodigoRespuesta",
	"resultCode",
}

// Interpret maps a response body onto a terminal state. The decision is
// fail-safe: an unparseable or statusless body is Rejected, never Accepted.
//
// Priority order: partial acceptance (an explicit partial marker, or coded
// errors next to an otherwise-accepting status), then clean acceptance, then
// rejection.
func Interpret(body string) (Verdict, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(body); err != nil || doc.Root() == nil {
		return Verdict{State: record.StateRejected},
			fiscalerrors.New(fiscalerrors.CodeProtocol, "unparseable submission response")
	}
	root := doc.Root()

	token := findStatusToken(root)
	errorCodes := collectErrorCodes(root)
	if token == "" && len(errorCodes) == 0 {
		return Verdict{State: record.StateRejected},
			fiscalerrors.New(fiscalerrors.CodeProtocol, "submission response carries no status")
	}

	v := Verdict{StatusToken: token, ErrorCodes: errorCodes}
	switch {
	case isPartial(token) || (len(errorCodes) > 0 && isAccepting(token)):
		v.State = record.StatePartiallyAccepted
	case isAccepting(token) && len(errorCodes) == 0:
		v.State = record.StateAccepted
	default:
		v.State = record.StateRejected
	}
	return v, nil
}

func findStatusToken(root *etree.Element) string {
	for _, tag := range statusTokenTags {
		if el := firstByTag(root, tag); el != nil {
			if text := strings.TrimSpace(el.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func firstByTag(el *etree.Element, tag string) *etree.Element {
	if el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := firstByTag(child, tag); found != nil {
			return found
		}
	}
	return nil
}

// collectErrorCodes gathers per-line error codes: any Codigo-style element
// nested under an element whose tag mentions an error.
func collectErrorCodes(el *etree.Element) []string {
	var codes []string
	var walk func(e *etree.Element, inError bool)
	walk = func(e *etree.Element, inError bool) {
		tagged := inError || strings.Contains(strings.ToLower(e.Tag), "error")
		if tagged && isCodeTag(e.Tag) {
			if text := strings.TrimSpace(e.Text()); text != "" {
				codes = append(codes, text)
			}
		}
		for _, child := range e.ChildElements() {
			walk(child, tagged)
		}
	}
	walk(el, false)
	return codes
}

func isCodeTag(tag string) bool {
	lower := strings.ToLower(tag)
	return lower == "codigo" || lower == "code" ||
		strings.HasPrefix(lower, "codigoerror") || lower == "codigo_error"
}

func isPartial(token string) bool {
	lower := strings.ToLower(token)
	return strings.Contains(lower, "parcial") ||
		strings.Contains(lower, "con error") ||
		strings.Contains(lower, "conerror")
}

func isAccepting(token string) bool {
	lower := strings.ToLower(strings.TrimSpace(token))
	switch lower {
	case "correcto", "correcta", "ok", "00", "0":
		return true
	}
	return strings.Contains(lower, "acept")
}
