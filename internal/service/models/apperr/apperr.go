package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so transports and callers can decide how to react
// without parsing messages.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is malformed input: no state was mutated.
	KindValidation
	// KindConflict is a lost race or a business-rule collision (order already
	// taken, order already rated). Distinguishable from validation so clients
	// can retry against a different resource.
	KindConflict
	// KindAuthorization is a role-gated operation attempted by the wrong actor.
	KindAuthorization
	// KindNotFound is a missing referenced entity.
	KindNotFound
	// KindUnavailable is a failed external dependency. Never surfaced to
	// callers of the core operations, only logged.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error carries a kind and a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}

	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func Conflictf(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

func Authorizationf(format string, args ...any) *Error {
	return newf(KindAuthorization, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Unavailablef(format string, args ...any) *Error {
	return newf(KindUnavailable, format, args...)
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind of an error, KindUnknown if it is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

func IsValidation(err error) bool    { return KindOf(err) == KindValidation }
func IsConflict(err error) bool      { return KindOf(err) == KindConflict }
func IsAuthorization(err error) bool { return KindOf(err) == KindAuthorization }
func IsNotFound(err error) bool      { return KindOf(err) == KindNotFound }
func IsUnavailable(err error) bool   { return KindOf(err) == KindUnavailable }
