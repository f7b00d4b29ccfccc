// Package apierr defines the error taxonomy surfaced by the gateway.
//
// Lower layers (directory, retriever, answer, speech) raise typed errors
// with contextual detail but never shape HTTP responses; only the HTTP
// layer maps an error to a status code via Status.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway error.
type Kind int

const (
	// KindInternal is an unexpected failure (500).
	KindInternal Kind = iota
	// KindValidation is a missing or malformed request field (400).
	KindValidation
	// KindAuth is a missing, invalid, or expired API key (401).
	KindAuth
	// KindNotFound is an unknown customer or resource (404).
	KindNotFound
	// KindConflict is a duplicate registration (409).
	KindConflict
	// KindRateLimit is a rejected request over the rate ceiling (429).
	KindRateLimit
	// KindUpstream is an AI-provider or datastore failure. It is a
	// 502-class condition surfaced as 500 with the provider message.
	KindUpstream
)

// String returns the taxonomy name for logging.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimit:
		return "rate_limit"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a classified gateway error. The zero Kind is KindInternal so an
// unclassified error never leaks a misleading status.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for this error's kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		// Upstream failures are surfaced as 500 with the provider
		// message rather than a bare 502.
		return http.StatusInternalServerError
	}
}

// Validation creates a 400-class error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Auth creates a 401-class error.
func Auth(format string, args ...any) *Error {
	return &Error{Kind: KindAuth, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a 404-class error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a 409-class error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// RateLimited creates a 429-class error.
func RateLimited(format string, args ...any) *Error {
	return &Error{Kind: KindRateLimit, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps a provider or datastore failure.
func Upstream(err error, format string, args ...any) *Error {
	return &Error{Kind: KindUpstream, Message: fmt.Sprintf(format, args...), Err: err}
}

// Internal wraps an unexpected failure.
func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status for err, 500 for unclassified errors.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status()
	}
	return http.StatusInternalServerError
}

// MessageOf returns the user-facing message for err. Unclassified errors
// degrade to their Error() string; the HTTP layer decides whether that is
// safe to expose.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
