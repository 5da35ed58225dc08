package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures so the transport can map them without
// inspecting messages.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindExpired
	KindUnauthorized
)

// String returns the code used in the "error" field of HTTP replies.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal_error"
	}
}

// Error is the error type returned by LinkService.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) holds
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation   = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrConflict     = &Error{Kind: KindConflict, Message: "slug already in use"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "link not found"}
	ErrExpired      = &Error{Kind: KindExpired, Message: "link has expired"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "password required or incorrect"}
	ErrInternal     = &Error{Kind: KindInternal, Message: "internal error"}
)

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err. Errors that did not come from the service are
// treated as internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
