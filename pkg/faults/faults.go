// Package faults defines the platform-wide error taxonomy.
//
// Every error that crosses a service or stage boundary is classified into
// one of the kinds below. Synchronous endpoints map kinds to RFC 7807
// problem details; stage consumers map them to retry / emit-failure /
// commit decisions.
package faults

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for propagation decisions.
type Kind string

const (
	// KindValidation: input violates a stated constraint. Never retried.
	KindValidation Kind = "validation"
	// KindAuthorization: missing/expired token or insufficient permission.
	KindAuthorization Kind = "authorization"
	// KindNotFound: the resource is absent.
	KindNotFound Kind = "not_found"
	// KindConflict: illegal state transition, duplicate, legal-hold violation.
	KindConflict Kind = "conflict"
	// KindTransient: a downstream dependency failed with a retryable signal.
	KindTransient Kind = "transient_dependency"
	// KindTerminal: a downstream dependency returned a non-retryable error.
	KindTerminal Kind = "terminal_dependency"
	// KindInternal: unexpected. Logged with detail, surfaced as generic 500.
	KindInternal Kind = "internal"
)

// Error is the platform error type. Code is a stable machine-readable
// identifier (e.g. "FILE_TOO_LARGE") used to derive the RFC 7807 type URI.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Validationf builds a Validation-kind error with a formatted message.
func Validationf(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Transientf builds a Transient-kind error with a formatted message.
func Transientf(code string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindTransient, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Terminalf builds a Terminal-kind error with a formatted message.
func Terminalf(code string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindTerminal, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, or "INTERNAL_ERROR" if unclassified.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return "INTERNAL_ERROR"
}

// IsRetryable reports whether the error should be retried by a stage worker.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// HTTPStatus maps the error kind to an HTTP status code. Validation errors
// carry code-specific overrides (413 for oversize, 415 for media type, 429
// for quota) matching the ingestion API contract.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case "FILE_TOO_LARGE":
		return http.StatusRequestEntityTooLarge
	case "UNSUPPORTED_MEDIA_TYPE":
		return http.StatusUnsupportedMediaType
	case "QUOTA_EXCEEDED":
		return http.StatusTooManyRequests
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// TypeURI derives the RFC 7807 type URI from the error code,
// e.g. FILE_TOO_LARGE -> urn:waqedi:error:file-too-large.
func TypeURI(err error) string {
	code := strings.ToLower(CodeOf(err))
	return "urn:waqedi:error:" + strings.ReplaceAll(code, "_", "-")
}

// Title renders the error code as a human-readable title,
// e.g. FILE_TOO_LARGE -> "File Too Large".
func Title(err error) string {
	words := strings.Split(strings.ToLower(CodeOf(err)), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
