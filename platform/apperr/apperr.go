// Package apperr provides standardized domain error types for the application.
// Domain services return these typed errors, and the HTTP layer
// maps them to status codes without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates an unknown id.
	KindNotFound
	// KindValidation indicates a payload or field-level failure.
	KindValidation
	// KindConflict indicates a lost compare-and-set or a duplicate.
	KindConflict
	// KindForbidden indicates the actor lacks rights for this resource/state.
	KindForbidden
	// KindUnauthorized indicates authentication is required or failed.
	KindUnauthorized
	// KindBadRequest indicates a malformed request.
	KindBadRequest
	// KindInternal indicates an unexpected internal error.
	KindInternal
	// KindGone indicates a resource that existed but is no longer available.
	KindGone
	// KindInvalidTransition indicates a state machine guard rejected the move.
	KindInvalidTransition
	// KindRateLimited indicates a guest or IP quota was exceeded.
	KindRateLimited
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindNotFound:          "not_found",
	KindValidation:        "validation_failed",
	KindConflict:          "conflict",
	KindForbidden:         "forbidden",
	KindUnauthorized:      "unauthorized",
	KindBadRequest:        "bad_request",
	KindInternal:          "internal",
	KindGone:              "gone",
	KindInvalidTransition: "invalid_transition",
	KindRateLimited:       "rate_limited",
}

// String returns the stable wire code of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional, never rendered)
	Details interface{} // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindConflict, KindInvalidTransition:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInternal:
		return http.StatusInternalServerError
	case KindGone:
		return http.StatusGone
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the operation on the error and returns it.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails sets response details on the error and returns it.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// ValidationField creates a validation error naming the offending field.
func ValidationField(field, message string) *Error {
	return New(KindValidation, message).WithDetails(map[string]string{"field": field})
}

// Conflict creates a conflict error.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// BadRequest creates a bad request error.
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// Gone creates a gone error.
func Gone(message string) *Error {
	return New(KindGone, message)
}

// RateLimited creates a rate limit error.
func RateLimited(message string) *Error {
	return New(KindRateLimited, message)
}

// InvalidTransition creates a state machine error naming both states.
func InvalidTransition(from, to string) *Error {
	return New(KindInvalidTransition, fmt.Sprintf("cannot transition from %s to %s", from, to)).
		WithDetails(map[string]string{"from": from, "to": to})
}

// Unavailable hides a store failure behind a generic service error.
func Unavailable(op string, err error) *Error {
	return Wrap(KindInternal, "service unavailable", err).WithOp(op)
}

// GetKind extracts the error kind from an error.
// Returns KindUnknown if the error chain holds no *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// Field returns the field name carried by a validation error, if any.
func Field(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	if details, ok := e.Details.(map[string]string); ok {
		return details["field"]
	}
	return ""
}
