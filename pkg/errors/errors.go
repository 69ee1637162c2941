// Package errors provides the typed error taxonomy used across the gate
// and analytics surfaces. Each error carries a Kind so HTTP handlers can
// map failures to statuses without string matching.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an error.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindValidation covers malformed input such as negative policy
	// thresholds or unknown sort fields. Never silently clamped.
	KindValidation
	// KindDataUnavailable covers a time range or tenant with no data
	// where the caller explicitly requires data presence.
	KindDataUnavailable
	// KindCapabilityDisabled covers ML insight requests while the
	// optional capability is off. Distinct from computation failures.
	KindCapabilityDisabled
	// KindComputation covers numerical failures such as a correlation
	// over a degenerate single-valued input.
	KindComputation
	// KindNotFound covers lookups of scans or findings that do not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDataUnavailable:
		return "data_unavailable"
	case KindCapabilityDisabled:
		return "capability_disabled"
	case KindComputation:
		return "computation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the base error type. Op names the operation that failed,
// e.g. "gate.Evaluate".
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E constructs an Error.
func E(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Validationf constructs a KindValidation error.
func Validationf(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Computationf constructs a KindComputation error.
func Computationf(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindComputation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// CapabilityDisabled constructs a KindCapabilityDisabled error carrying
// the operator-facing reason the capability is off.
func CapabilityDisabled(op, reason string) *Error {
	return &Error{Kind: KindCapabilityDisabled, Op: op, Message: reason}
}

// NotFoundf constructs a KindNotFound error.
func NotFoundf(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or KindUnknown when err is not an
// *Error from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the HTTP status the API surface reports.
// Disabled capabilities are a success with enabled:false in the body,
// so they map to 503 only when surfaced as an error directly.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDataUnavailable:
		return http.StatusUnprocessableEntity
	case KindCapabilityDisabled:
		return http.StatusServiceUnavailable
	case KindComputation:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
