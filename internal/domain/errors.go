package domain

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the signaling core can produce.
type Kind string

const (
	// Admission-time kinds. Fatal to the connection attempt.
	KindUnauthenticated Kind = "unauthenticated"
	KindInvalidToken    Kind = "invalid-token"
	KindUnknownSubject  Kind = "unknown-subject"
	KindInternal        Kind = "internal"

	// Relay-path kinds. The event is dropped, the connection stays open.
	KindRoleMismatch       Kind = "role-mismatch"
	KindInvariantViolation Kind = "invariant-violation"
	KindTargetNotFound     Kind = "target-not-found"
	KindMalformedPayload   Kind = "malformed-payload"
)

// Error is the single typed error of the signaling core.
type Error struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == ""
}

func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(format string, args ...any) *Error {
	return NewError(KindUnauthenticated, format, args...)
}

func InvalidToken(format string, args ...any) *Error {
	return NewError(KindInvalidToken, format, args...)
}

func UnknownSubject(format string, args ...any) *Error {
	return NewError(KindUnknownSubject, format, args...)
}

func Internal(format string, args ...any) *Error {
	return NewError(KindInternal, format, args...)
}

func RoleMismatch(format string, args ...any) *Error {
	return NewError(KindRoleMismatch, format, args...)
}

func InvariantViolation(format string, args ...any) *Error {
	return NewError(KindInvariantViolation, format, args...)
}

func TargetNotFound(format string, args ...any) *Error {
	return NewError(KindTargetNotFound, format, args...)
}

func MalformedPayload(format string, args ...any) *Error {
	return NewError(KindMalformedPayload, format, args...)
}

// KindOf returns the kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsFatal reports whether err must terminate the connection attempt.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindUnauthenticated, KindInvalidToken, KindUnknownSubject, KindInternal:
		return true
	}
	return false
}

// CloseReason is the typed reason sent to a rejected connection.
func CloseReason(err error) string {
	switch KindOf(err) {
	case KindUnauthenticated:
		return "no-token"
	case KindInvalidToken:
		return "invalid-token"
	case KindUnknownSubject:
		return "unknown-subject"
	default:
		return "server-error"
	}
}
