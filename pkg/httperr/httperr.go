// Package httperr provides the structured error type the request
// ingestion and dispatch pipeline raises to signal a specific HTTP
// status response, plus the IANA status-code/reason-phrase table used by
// the response writer.
package httperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind categorizes an Error by the taxonomy in the framework's error
// handling design: each kind carries a default HTTP status.
type Kind string

const (
	KindBadRequest         Kind = "bad_request"
	KindUnauthorized       Kind = "unauthorized"
	KindNotFound           Kind = "not_found"
	KindMethodNotAllowed   Kind = "method_not_allowed"
	KindLengthRequired     Kind = "length_required"
	KindPayloadTooLarge    Kind = "payload_too_large"
	KindRequestTimeout     Kind = "request_timeout"
	KindInternalServer     Kind = "internal_server_error"
)

var defaultStatus = map[Kind]int{
	KindBadRequest:       400,
	KindUnauthorized:     401,
	KindNotFound:         404,
	KindMethodNotAllowed: 405,
	KindLengthRequired:   411,
	KindPayloadTooLarge:  413,
	KindRequestTimeout:   408,
	KindInternalServer:   500,
}

// Error is a structured, typed error carrying the HTTP status the
// Connection Loop should emit for it, plus the operation and any
// underlying cause for logging.
type Error struct {
	Kind      Kind
	Status    int
	Op        string
	Message   string
	Cause     error
	Timestamp time.Time
}

// HttpError is the name used throughout the component designs in
// spec.md; it is an alias kept for readability at call sites.
type HttpError = Error

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = ReasonPhrase(e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on Kind, following the teacher's net.Error-flavored
// Is/Unwrap pattern.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func newErr(kind Kind, op, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Status:    defaultStatus[kind],
		Op:        op,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

func NewBadRequest(op, message string) *Error { return newErr(KindBadRequest, op, message, nil) }

func NewUnauthorized(op, message string) *Error { return newErr(KindUnauthorized, op, message, nil) }

func NewNotFound(op, message string) *Error { return newErr(KindNotFound, op, message, nil) }

func NewMethodNotAllowed(op, message string) *Error {
	return newErr(KindMethodNotAllowed, op, message, nil)
}

func NewLengthRequired(op, message string) *Error {
	return newErr(KindLengthRequired, op, message, nil)
}

func NewPayloadTooLarge(op, message string) *Error {
	return newErr(KindPayloadTooLarge, op, message, nil)
}

func NewRequestTimeout(op, message string) *Error {
	return newErr(KindRequestTimeout, op, message, nil)
}

func NewInternal(op string, cause error) *Error {
	return newErr(KindInternalServer, op, "internal server error", cause)
}

// WithStatus overrides the default status for a kind — used by handlers
// that raise an HttpError with an arbitrary registered status code
// (e.g. a 409 Conflict) rather than one of the taxonomy's defaults.
func WithStatus(status int, op, message string) *Error {
	return &Error{Status: status, Op: op, Message: message, Timestamp: time.Now()}
}

// StatusOf returns the HTTP status carried by err if it is (or wraps) an
// *Error, and KindInternalServer's default status otherwise.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return defaultStatus[KindInternalServer]
}

// MessageOf returns the human-readable message carried by err, or the
// generic reason phrase for its status when the error isn't an *Error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return ReasonPhrase(StatusOf(err))
}
