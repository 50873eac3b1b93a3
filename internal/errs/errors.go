// Package errs defines the caller-visible error taxonomy for the payout
// ledger: one Kind per row of the error table, carried through the ledger,
// event log, projector and state machine instead of bare fmt.Errorf strings.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error the way callers need to branch on it: validation
// vs. conflict vs. retryable-transient vs. programmer-bug.
type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindIdempotencyConflict Kind = "IDEMPOTENCY_CONFLICT"
	KindIllegalTransition  Kind = "ILLEGAL_TRANSITION"
	KindUnbalanced         Kind = "UNBALANCED"
	KindNonPositiveAmount  Kind = "NON_POSITIVE_AMOUNT"
	KindUnknownAccount     Kind = "UNKNOWN_ACCOUNT"
	KindDuplicateTransaction Kind = "DUPLICATE_TRANSACTION"
	KindDuplicateEventID   Kind = "DUPLICATE_EVENT_ID"
	KindConflict           Kind = "CONFLICT"
	KindNotFound           Kind = "NOT_FOUND"
	KindProviderTransient  Kind = "PROVIDER_TRANSIENT"
	KindProviderPermanent  Kind = "PROVIDER_PERMANENT"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
)

// httpStatus is the 4xx/5xx a transport layer should map a Kind to. Kinds
// with no natural HTTP representation (e.g. KindUnbalanced, which aborts an
// atomic unit before any response is framed) are absent and fall back to 500.
var httpStatus = map[Kind]int{
	KindValidation:           http.StatusBadRequest,
	KindIdempotencyConflict:  http.StatusConflict,
	KindIllegalTransition:    http.StatusConflict,
	KindConflict:             http.StatusConflict,
	KindNotFound:             http.StatusNotFound,
	KindProviderPermanent:    http.StatusUnprocessableEntity,
	KindStorageUnavailable:   http.StatusServiceUnavailable,
}

// Error is the single error type the core packages return. It wraps an
// optional cause so errors.Is/errors.As keep working against sentinel
// errors from pgx or sarama.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus returns the status code a gin handler should respond with.
func (e *Error) HTTPStatus() int {
	if status, ok := httpStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error wrapping cause, or returns nil if cause is nil.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
