package errs

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the transport boundary.
type Kind uint8

const (
	KindInternal Kind = iota
	KindInvalid
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTooLarge:
		return "too_large"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind to the status code written by the API layer.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalid:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// KindError is a message tagged with a Kind. Package-level sentinels are
// built with New and compared with errors.Is.
type KindError struct {
	kind Kind
	msg  string
}

func New(kind Kind, msg string) error {
	return &KindError{kind: kind, msg: msg}
}

func (e *KindError) Error() string { return e.msg }
func (e *KindError) Kind() Kind    { return e.kind }

// KindOf returns the first Kind found in the chain, KindInternal otherwise.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}

	var kinded interface{ Kind() Kind }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return KindInternal
}

// Public reports whether the error message is safe to return to a caller.
func Public(err error) bool {
	return KindOf(err) != KindInternal
}
