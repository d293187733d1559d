// Package fiscalerrors defines the coded error type shared by the fiscal
// record engine. Services create coded errors, the HTTP layer translates them
// to status codes, and callers branch on the code rather than the message.
package fiscalerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and for HTTP translation.
type Code string

const (
	// Pipeline taxonomy. None of these are silently swallowed; each carries
	// enough context (record id, lane, field) for the operator to act.
	CodeInvalidInput   Code = "invalid_input"   // malformed invoice snapshot, fatal
	CodeChainIntegrity Code = "chain_integrity" // corrupt or missing lane history, fatal
	CodeCredential     Code = "credential"      // bad PKCS#12 container or password
	CodeTransport      Code = "transport"       // network/TLS/HTTP failure, record Rejected
	CodeProtocol       Code = "protocol"        // unparseable or schema-violating response
	CodeConsistency    Code = "consistency"     // post-acceptance mutation blocked

	// Transport-level codes.
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeInternal     Code = "internal"
)

// LedgerError is the concrete coded error. It optionally wraps a cause.
type LedgerError struct {
	Code    Code
	Message string
	Err     error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// New builds a coded error without a cause.
func New(code Code, message string) error {
	return &LedgerError{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &LedgerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a coded error around a cause.
func Wrap(code Code, message string, err error) error {
	return &LedgerError{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// CodeOf extracts the code from err, or CodeInternal when err is uncoded.
func CodeOf(err error) Code {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto an HTTP status for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConsistency:
		return http.StatusConflict
	case CodeTransport:
		return http.StatusBadGateway
	case CodeProtocol:
		return http.StatusBadGateway
	case CodeCredential, CodeChainIntegrity, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
