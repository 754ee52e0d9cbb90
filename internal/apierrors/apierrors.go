// Package apierrors defines the error taxonomy returned by the orchestrator
// and translated into HTTP responses by the API layer.
package apierrors

import (
	"errors"
	"net/http"
)

// Kind names a category of failure understood by the HTTP layer.
type Kind string

const (
	KindInvalidRequest  Kind = "invalid_request"
	KindUnauthorized    Kind = "unauthorized"
	KindNotFound        Kind = "not_found"
	KindNotImplemented  Kind = "not_implemented"
	KindUpstreamError   Kind = "upstream_error"
	KindBadGateway      Kind = "bad_gateway"
	KindTimeout         Kind = "timeout"
	KindInternal        Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindInvalidRequest: http.StatusBadRequest,
	KindUnauthorized:   http.StatusUnauthorized,
	KindNotFound:       http.StatusNotFound,
	KindNotImplemented: http.StatusNotImplemented,
	KindUpstreamError:  http.StatusBadGateway,
	KindBadGateway:     http.StatusBadGateway,
	KindTimeout:        http.StatusGatewayTimeout,
	KindInternal:       http.StatusInternalServerError,
}

// Error is the concrete error type the core packages return. Handlers
// recover the kind via errors.As and never pattern-match on message text.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCode maps the error's kind to the HTTP status code from spec §7.
func (e *Error) StatusCode() int {
	if code, ok := statusByKind[e.Kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func InvalidRequest(format string) *Error { return New(KindInvalidRequest, format) }
func NotFound(format string) *Error       { return New(KindNotFound, format) }
func NotImplemented(format string) *Error { return New(KindNotImplemented, format) }
func Unauthorized(format string) *Error   { return New(KindUnauthorized, format) }
func Internal(cause error) *Error         { return Wrap(KindInternal, "internal error", cause) }
func Timeout(cause error) *Error          { return Wrap(KindTimeout, "upstream deadline exceeded", cause) }
func BadGateway(format string) *Error     { return New(KindBadGateway, format) }
func UpstreamError(cause error) *Error    { return Wrap(KindUpstreamError, "upstream call failed", cause) }

// As is a small convenience wrapper around errors.As for the common case.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusCode resolves the HTTP status for any error, defaulting to 500
// for errors that are not part of the taxonomy.
func StatusCode(err error) int {
	if e, ok := As(err); ok {
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}

// KindOf resolves the taxonomy kind for any error, defaulting to internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
