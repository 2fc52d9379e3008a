// Package apperr defines the error kinds surfaced by the issuance workflow
// and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidInput marks missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict marks a duplicate identity for the same category and phone.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks an absent identity or OTP record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCode marks an OTP mismatch, expiry or reuse.
	ErrInvalidCode = errors.New("invalid code")
	// ErrDeliveryFailed marks a notification transport failure.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrConfiguration marks a missing contract-address mapping or similar setup gap.
	ErrConfiguration = errors.New("configuration error")
	// ErrIssuanceExecution marks a failed, timed out or non-zero mint invocation.
	ErrIssuanceExecution = errors.New("issuance execution failed")
	// ErrChainRead marks an on-chain read failure after a completed mint.
	ErrChainRead = errors.New("chain read failed")
)

var statusByKind = map[error]int{
	ErrInvalidInput:      http.StatusBadRequest,
	ErrConflict:          http.StatusConflict,
	ErrNotFound:          http.StatusNotFound,
	ErrInvalidCode:       http.StatusUnauthorized,
	ErrDeliveryFailed:    http.StatusInternalServerError,
	ErrConfiguration:     http.StatusInternalServerError,
	ErrIssuanceExecution: http.StatusInternalServerError,
	ErrChainRead:         http.StatusInternalServerError,
}

// Error carries a kind, a caller-facing message and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

// New builds an error of the given kind without a cause.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an error of the given kind around an underlying cause.
func Wrap(kind error, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Is matches the error kind so callers can use errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

var kinds = []error{
	ErrInvalidInput,
	ErrConflict,
	ErrNotFound,
	ErrInvalidCode,
	ErrDeliveryFailed,
	ErrConfiguration,
	ErrIssuanceExecution,
	ErrChainRead,
}

// KindOf returns the kind of err, or nil when err carries none. The outermost
// *Error wins over kinds found deeper in the chain.
func KindOf(err error) error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Status maps err onto an HTTP status code. Unknown errors are 500.
func Status(err error) int {
	if kind := KindOf(err); kind != nil {
		return statusByKind[kind]
	}
	return http.StatusInternalServerError
}

// Message returns the caller-facing message of err without internal causes.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Msg != "" {
		return appErr.Msg
	}
	return http.StatusText(Status(err))
}
