// Package apperr defines the error kinds shared by every layer of the assistant.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to branch on it.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindIndexLoad       Kind = "index_load"
	KindIndexWrite      Kind = "index_write"
	KindGateway         Kind = "gateway"
	KindGenerationEmpty Kind = "generation_empty"
	KindLedger          Kind = "ledger"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

// Error carries a Kind, the operation that failed ("Manager.Upsert"),
// a message safe to show a client, and the wrapped cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error.
func E(kind Kind, op, msg string, err error) error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or
// KindInternal when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// Detail returns the client-facing message for err.
func Detail(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	if err == nil {
		return ""
	}
	return "internal error"
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	return KindOf(err).HTTPStatus()
}

// HTTPStatus is the status code for errors of kind k.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindGateway, KindGenerationEmpty:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
