// Package errs defines the typed error kinds surfaced across the knowledge
// bank pipeline and at the HTTP boundary.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds the system surfaces verbatim in responses.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindQuota              Kind = "quota"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindExtraction         Kind = "extraction"
	KindOracleUnavailable  Kind = "oracle_unavailable"
	KindOracleSchema       Kind = "oracle_schema"
	KindCancelled          Kind = "cancelled"
	KindInternal           Kind = "internal"
)

// Error is a typed, structured error carrying a Kind plus optional context
// fields used by handlers to render a response shape without leaking a
// stack trace across the API boundary.
type Error struct {
	Kind          Kind
	Message       string
	Cause         error
	Format        string // extraction: offending format
	Limit         int64  // quota: the limit that was exceeded
	Current       int64  // quota: current usage at time of rejection
	ResetsAt      string // quota: RFC3339 timestamp of next period
	CorrelationID string // internal: correlation id for log lookup
	URLs          []string // validation: parsed URL list for multi-URL rejection
	Field         string // validation: the offending field name
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// As reports whether err is (or wraps) an *Error and, if so, returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field}
}

func MultiURL(urls []string) *Error {
	return &Error{Kind: KindValidation, Message: "input contains multiple URLs", URLs: urls}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Extraction(format, message string, cause error) *Error {
	return &Error{Kind: KindExtraction, Message: message, Format: format, Cause: cause}
}

func OracleUnavailable(cause error) *Error {
	return &Error{Kind: KindOracleUnavailable, Message: "the oracle is unavailable", Cause: cause}
}

func OracleSchema(message string) *Error {
	return &Error{Kind: KindOracleSchema, Message: message}
}

func Cancelled(message string) *Error {
	return &Error{Kind: KindCancelled, Message: message}
}

func Internal(correlationID string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Cause: cause, CorrelationID: correlationID}
}

func Quota(limit, current int64, resetsAt string) *Error {
	return &Error{
		Kind:     KindQuota,
		Message:  "quota exceeded",
		Limit:    limit,
		Current:  current,
		ResetsAt: resetsAt,
	}
}
