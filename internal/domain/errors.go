package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed sum of error categories the gateway ever returns.
// It is exhaustive by design; adding a variant is a breaking change.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindInvalidID  ErrorKind = "invalid_id"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindStorage    ErrorKind = "storage"
	KindProvider   ErrorKind = "provider"
	KindInternal   ErrorKind = "internal"
)

// Error is the gateway's single error type. Op names the failing operation
// ("chain.execute", "model.save"), Message is human-readable, Err wraps the
// underlying cause when one exists.
type Error struct {
	Kind     ErrorKind
	Op       string
	Message  string
	Provider string // set only when Kind == KindProvider
	Err      error
}

func (e *Error) Error() string {
	var b string
	if e.Op != "" {
		b = e.Op + ": "
	}
	if e.Kind == KindProvider && e.Provider != "" {
		b += fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
	} else {
		b += e.Message
	}
	if e.Err != nil {
		b += ": " + e.Err.Error()
	}
	return b
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

func NewValidationError(op, msg string) *Error { return newErr(KindValidation, op, msg, nil) }

func NewInvalidIDError(op, msg string) *Error { return newErr(KindInvalidID, op, msg, nil) }

func NewNotFoundError(op, msg string) *Error { return newErr(KindNotFound, op, msg, nil) }

func NewConflictError(op, msg string) *Error { return newErr(KindConflict, op, msg, nil) }

func NewStorageError(op string, err error) *Error {
	return newErr(KindStorage, op, "storage operation failed", err)
}

func NewProviderError(op, provider, msg string, err error) *Error {
	e := newErr(KindProvider, op, msg, err)
	e.Provider = provider
	return e
}

func NewInternalError(op, msg string, err error) *Error {
	return newErr(KindInternal, op, msg, err)
}

// Kind classification helpers, mirroring the teacher's Is* family.

func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

func IsConflict(err error) bool { return hasKind(err, KindConflict) }

func IsValidation(err error) bool {
	return hasKind(err, KindValidation) || hasKind(err, KindInvalidID)
}

func IsStorage(err error) bool { return hasKind(err, KindStorage) }

func IsProvider(err error) bool { return hasKind(err, KindProvider) }

func hasKind(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
