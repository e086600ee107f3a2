// Package apperr defines the error taxonomy shared by the ledger, the
// registration state machine and the transport layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how a caller should react to it.
type Kind uint8

const (
	// KindInternal is an unexpected fault. Unclassified errors map here.
	KindInternal Kind = iota
	KindInvalid
	KindUnauthenticated
	KindNotFound
	KindConflict
	KindExpired
	KindRateLimited
	// KindTransient means the whole operation may be retried by the caller.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExpired:
		return "expired"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind to the status code the HTTP layer responds with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalid, KindExpired:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeEventNotFound     Code = "EVENT_NOT_FOUND"
	CodeNotRegistered     Code = "NOT_REGISTERED"
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeEventFull         Code = "EVENT_FULL"
	CodeEventInPast       Code = "EVENT_IN_PAST"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeTransientStorage  Code = "TRANSIENT_STORAGE_FAILURE"
	CodeInconsistent      Code = "INTERNAL_CONSISTENCY_FAULT"
	CodeInternal          Code = "INTERNAL"
)

// Error is a sentinel carrying a kind, a code and a user-facing message.
// Compare with errors.Is; wrap with fmt.Errorf("...: %w", err).
type Error struct {
	kind Kind
	code Code
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// Code returns the error's machine-readable code.
func (e *Error) Code() Code { return e.code }

var (
	ErrInvalidInput      = &Error{KindInvalid, CodeInvalidInput, "invalid input"}
	ErrUnauthenticated   = &Error{KindUnauthenticated, CodeUnauthenticated, "authentication required"}
	ErrEventNotFound     = &Error{KindNotFound, CodeEventNotFound, "event not found"}
	ErrNotRegistered     = &Error{KindNotFound, CodeNotRegistered, "registration not found"}
	ErrAlreadyRegistered = &Error{KindConflict, CodeAlreadyRegistered, "already registered for this event"}
	ErrEventFull         = &Error{KindConflict, CodeEventFull, "event is fully booked"}
	ErrEventInPast       = &Error{KindExpired, CodeEventInPast, "cannot register for a past event"}
	ErrRateLimited       = &Error{KindRateLimited, CodeRateLimited, "rate limit exceeded, please try again later"}
	ErrTransientStorage  = &Error{KindTransient, CodeTransientStorage, "storage temporarily unavailable, please retry"}
	// ErrInconsistent signals a seat count outside [0, capacity]: a
	// serialization bug, never corrected silently.
	ErrInconsistent = &Error{KindInternal, CodeInconsistent, "internal consistency fault"}
)

// Invalid returns a validation error describing msg.
func Invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// Transient marks err as a retryable storage failure. The cause stays
// reachable through errors.Is / errors.As.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientStorage, err)
}

// IsTransient reports whether err may be retried by the caller.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindInternal
}

// CodeOf returns the code of the outermost *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return CodeInternal
}

// Message returns a message safe to show to a caller. Internal errors are
// reduced to a generic text so storage details do not leak.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	if e.Kind() == KindInvalid {
		return err.Error()
	}
	return e.msg
}
