// Package apperr defines the error taxonomy shared by services and handlers.
// Services return *Error values (or wrap them); the HTTP boundary converts
// any error with From and writes it through httpx.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/validation"
	"gorm.io/gorm"
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindWorkflow
	KindNotFound
	KindConflict
	KindRateLimited
)

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindWorkflow, KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error.
// Code is the stable machine-readable identifier sent to clients.
type Error struct {
	Kind    Kind
	Code    string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Transition names the states of a rejected workflow transition.
type Transition struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func Validation(v validation.Violations) *Error {
	return &Error{Kind: KindValidation, Code: "validation_failed", Details: v}
}

// Field is a shortcut for a single-field validation error.
func Field(field, reason string) *Error {
	return Validation(validation.Violations{field: reason})
}

// MissingFields reports data that must be present before an operation can run.
func MissingFields(fields ...string) *Error {
	v := make(validation.Violations, len(fields))
	for _, f := range fields {
		v[f] = "missing_required_field"
	}
	return &Error{Kind: KindValidation, Code: "missing_required_field", Details: v}
}

func BadRequest(code string) *Error {
	return &Error{Kind: KindValidation, Code: code}
}

func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Code: "unauthorized"}
}

func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Code: "forbidden"}
}

func Workflow(from, to string) *Error {
	return &Error{
		Kind:    KindWorkflow,
		Code:    "workflow_violation",
		Details: Transition{From: from, To: to},
		Err:     fmt.Errorf("transition %s -> %s not allowed", from, to),
	}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Details: map[string]string{"resource": resource}}
}

func Conflict(code string) *Error {
	return &Error{Kind: KindConflict, Code: code}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Code: "rate_limited"}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Err: err}
}

// From classifies any error. Gate sentinels become auth errors, missing
// records become not-found, unique-constraint violations become conflicts,
// anything else is internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, gate.ErrUnauthenticated):
		return Unauthenticated()
	case errors.Is(err, gate.ErrForbidden), errors.Is(err, gate.ErrNoPolicyDefined):
		return Forbidden()
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Code: "not_found"}
	case IsDuplicate(err):
		return &Error{Kind: KindConflict, Code: "conflict", Err: err}
	}
	return Internal(err)
}

// IsNotFound reports whether err classifies as not found.
func IsNotFound(err error) bool {
	ae := From(err)
	return ae != nil && ae.Kind == KindNotFound
}

// IsDuplicate reports unique-constraint violations from postgres or sqlite.
func IsDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	return From(err).Kind
}
