// Package apperr defines the typed errors services return. httpkit maps
// the Kind of an error to a status code and a stable machine-readable code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindForbidden
	KindUnauthorized
	KindInternal
	// KindInvalidTransition is a lifecycle edge the state machine rejects.
	KindInvalidTransition
	// KindUpstream is a failing collaborator: blob store, converter, SMTP, Redis.
	KindUpstream
)

type kindInfo struct {
	status int
	code   string
}

var kinds = map[Kind]kindInfo{
	KindUnknown:           {http.StatusInternalServerError, "unknown"},
	KindNotFound:          {http.StatusNotFound, "not_found"},
	KindValidation:        {http.StatusBadRequest, "validation"},
	KindConflict:          {http.StatusConflict, "conflict"},
	KindForbidden:         {http.StatusForbidden, "forbidden"},
	KindUnauthorized:      {http.StatusUnauthorized, "unauthorized"},
	KindInternal:          {http.StatusInternalServerError, "internal"},
	KindInvalidTransition: {http.StatusConflict, "invalid_transition"},
	KindUpstream:          {http.StatusBadGateway, "upstream"},
}

// String returns the machine-readable code of k.
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return kinds[KindUnknown].code
}

// Error is a failure with a Kind, a message safe to show to clients and
// optional structured details.
type Error struct {
	Kind    Kind
	Message string
	Op      string
	Err     error
	Details any
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status code clients receive for e.
func (e *Error) HTTPStatus() int {
	if info, ok := kinds[e.Kind]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// WithOp records the operation that failed. It mutates e.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails attaches structured details to the response body. It mutates e.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func NotFound(message string) *Error     { return newError(KindNotFound, message) }
func Validation(message string) *Error   { return newError(KindValidation, message) }
func Conflict(message string) *Error     { return newError(KindConflict, message) }
func Forbidden(message string) *Error    { return newError(KindForbidden, message) }
func Unauthorized(message string) *Error { return newError(KindUnauthorized, message) }
func Internal(message string) *Error     { return newError(KindInternal, message) }

// InvalidTransition rejects the lifecycle edge from -> to. The details carry
// both statuses so clients can explain the refusal.
func InvalidTransition(from, to string) *Error {
	return newError(KindInvalidTransition, fmt.Sprintf("transition %s -> %s is not allowed", from, to)).
		WithDetails(map[string]string{"from": from, "to": to})
}

// Upstream wraps the failure of an external collaborator.
func Upstream(message string, err error) *Error {
	e := newError(KindUpstream, message)
	e.Err = err
	return e
}

// GetKind returns the Kind of the first *Error in err's chain.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
