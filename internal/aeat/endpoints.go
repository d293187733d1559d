// Package aeat talks to the tax agency: endpoint selection, SOAP envelope
// construction, the mutual-TLS HTTP client and the response interpreter.
package aeat

import (
	"net/url"
	"strings"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// Environment selects the production or test side of the endpoint matrix.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentTest       Environment = "test"
)

// Mode selects the verification side of the matrix. Verifiable is the
// synchronous real-time channel; non-verifiable is the asynchronous channel
// that requires signed records.
type Mode string

const (
	ModeVerifiable    Mode = "verifiable"
	ModeNonVerifiable Mode = "nonverifiable"
)

// Default submission endpoints published by the agency.
const (
	DefaultProductionVerifiable    = "https://www1.agenciatributaria.gob.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
	DefaultProductionNonVerifiable = "https://www1.agenciatributaria.gob.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/RequerimientoSOAP"
	DefaultTestVerifiable          = "https://prewww1.aeat.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
	DefaultTestNonVerifiable       = "https://prewww1.aeat.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/RequerimientoSOAP"
)

// Endpoints is the four-way (environment x mode) endpoint matrix. An empty
// cell is a configuration error surfaced before any network attempt.
type Endpoints struct {
	ProductionVerifiable    string
	ProductionNonVerifiable string
	TestVerifiable          string
	TestNonVerifiable       string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		ProductionVerifiable:    DefaultProductionVerifiable,
		ProductionNonVerifiable: DefaultProductionNonVerifiable,
		TestVerifiable:          DefaultTestVerifiable,
		TestNonVerifiable:       DefaultTestNonVerifiable,
	}
}

// Resolve picks the submission URL for the given cell.
func (e Endpoints) Resolve(env Environment, mode Mode) (string, error) {
	var u string
	switch {
	case env == EnvironmentProduction && mode == ModeVerifiable:
		u = e.ProductionVerifiable
	case env == EnvironmentProduction && mode == ModeNonVerifiable:
		u = e.ProductionNonVerifiable
	case env == EnvironmentTest && mode == ModeVerifiable:
		u = e.TestVerifiable
	case env == EnvironmentTest && mode == ModeNonVerifiable:
		u = e.TestNonVerifiable
	default:
		return "", fiscalerrors.Newf(fiscalerrors.CodeTransport, "unknown endpoint selector %s/%s", env, mode)
	}
	if strings.TrimSpace(u) == "" {
		return "", fiscalerrors.Newf(fiscalerrors.CodeTransport, "no endpoint configured for %s/%s", env, mode)
	}
	return u, nil
}

// QRVerificationBase derives the QR verification base URL from the submission
// endpoint of the same cell: the validation service lives on the www2 twin of
// the submission host, under ValidarQR (verifiable) or ValidarQRNoVerifactu.
func (e Endpoints) QRVerificationBase(env Environment, mode Mode) (string, error) {
	endpoint, err := e.Resolve(env, mode)
	if err != nil {
		return "", err
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeTransport, "parse submission endpoint", err)
	}
	host := strings.Replace(parsed.Host, "www1", "www2", 1)
	path := "/wlpl/TIKE-CONT/ValidarQR"
	if mode == ModeNonVerifiable {
		path = "/wlpl/TIKE-CONT/ValidarQRNoVerifactu"
	}
	return parsed.Scheme + "://" + host + path, nil
}
