// Package apperr defines the error taxonomy shared by the tag services and
// the HTTP layer.
//
// Services return *Error values; handlers map them to a status with
// HTTPStatus and match specific failures with errors.Is against the
// sentinels below:
//
//	if errors.Is(err, apperr.ErrAlreadyRegistered) {
//	    ...
//	}
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeNotRegistered     Code = "NOT_REGISTERED"
	CodePushDisabled      Code = "PUSH_DISABLED"
	CodeInvalidFormat     Code = "INVALID_FORMAT"
	CodeValidation        Code = "VALIDATION"
	CodeStore             Code = "STORE_ERROR"
	CodeDelivery          Code = "DELIVERY_ERROR"
)

// HTTPStatus returns the response status for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyRegistered:
		return http.StatusConflict
	case CodeNotRegistered, CodePushDisabled, CodeInvalidFormat, CodeValidation:
		return http.StatusBadRequest
	case CodeDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, a human-readable message and
// optional details (for DeliveryError, the collaborator's payload).
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the response status for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// Sentinels for errors.Is.
var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyRegistered = &Error{Code: CodeAlreadyRegistered, Message: "already registered"}
	ErrNotRegistered     = &Error{Code: CodeNotRegistered, Message: "not registered"}
	ErrPushDisabled      = &Error{Code: CodePushDisabled, Message: "push disabled"}
	ErrInvalidFormat     = &Error{Code: CodeInvalidFormat, Message: "invalid format"}
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrStore             = &Error{Code: CodeStore, Message: "store error"}
	ErrDelivery          = &Error{Code: CodeDelivery, Message: "delivery error"}
)

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func AlreadyRegistered(msg string) *Error {
	return &Error{Code: CodeAlreadyRegistered, Message: msg}
}

func NotRegistered(msg string) *Error {
	return &Error{Code: CodeNotRegistered, Message: msg}
}

func PushDisabled(msg string) *Error {
	return &Error{Code: CodePushDisabled, Message: msg}
}

func InvalidFormat(msg string) *Error {
	return &Error{Code: CodeInvalidFormat, Message: msg}
}

// ValidationWithDetails carries per-field messages.
func ValidationWithDetails(msg string, fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: fields}
}

// Store wraps a datastore failure.
func Store(msg string, err error) *Error {
	return &Error{Code: CodeStore, Message: msg, cause: err}
}

// Delivery wraps a push collaborator failure and its diagnostic payload.
func Delivery(msg string, details any, err error) *Error {
	return &Error{Code: CodeDelivery, Message: msg, Details: details, cause: err}
}

// StatusOf returns the HTTP status for err, defaulting to 500 for errors
// outside the taxonomy.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// MessageOf returns the human-readable message for err. Errors outside the
// taxonomy are not exposed.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
