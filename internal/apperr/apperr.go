// Package apperr defines the error kinds shared by every layer of the service.
//
// Errors carry a Kind so that transports can map them to a status without
// string matching. errors.Is(err, ErrForbidden) matches any error of kind
// Forbidden, whatever its message.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindHandleTaken      Kind = "handle_taken"
	KindForbidden        Kind = "forbidden"
	KindInvalidOperation Kind = "invalid_operation"
	KindAuthFailed       Kind = "auth_failed"
	KindTimeout          Kind = "timeout"
	KindConflict         Kind = "conflict"
	KindInternal         Kind = "internal"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

var (
	ErrNotFound         = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrHandleTaken      = &Error{Kind: KindHandleTaken, Msg: "handle already taken"}
	ErrForbidden        = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrInvalidOperation = &Error{Kind: KindInvalidOperation, Msg: "invalid operation"}
	ErrAuthFailed       = &Error{Kind: KindAuthFailed, Msg: "authentication failed"}
	ErrTimeout          = &Error{Kind: KindTimeout, Msg: "operation timed out"}
	ErrConflict         = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrEmailTaken       = &Error{Kind: KindConflict, Msg: "email already registered"}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf reports the kind of err. Context deadline errors are reported as
// timeouts; anything unclassified is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// FromContext converts a context failure into a timeout error, passing every
// other error through untouched.
func FromContext(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(KindTimeout, ErrTimeout.Msg, err)
	}
	return err
}

// Message returns a message safe to show a client. Internal errors never
// leak their cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	if KindOf(err) == KindTimeout {
		return ErrTimeout.Msg
	}
	return "internal error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindHandleTaken, KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidOperation:
		return http.StatusBadRequest
	case KindAuthFailed:
		return http.StatusUnauthorized
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
