// Package apperror defines the error taxonomy surfaced by the reservation engine.
// Every error carries a stable machine-readable code and a human-readable message.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeCapacityExceeded    Code = "CAPACITY_EXCEEDED"
	CodeNoAvailability      Code = "NO_AVAILABILITY"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeInvalidState        Code = "INVALID_STATE"
	CodePersistence         Code = "PERSISTENCE_ERROR"
)

// Sentinels for errors.Is checks; matching is done on Code only.
var (
	ErrValidation          = &Error{Code: CodeValidation}
	ErrCapacityExceeded    = &Error{Code: CodeCapacityExceeded}
	ErrNoAvailability      = &Error{Code: CodeNoAvailability}
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrConcurrencyConflict = &Error{Code: CodeConcurrencyConflict}
	ErrInvalidState        = &Error{Code: CodeInvalidState}
	ErrPersistence         = &Error{Code: CodePersistence}
)

type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func CapacityExceeded(format string, args ...any) *Error {
	return &Error{Code: CodeCapacityExceeded, Message: fmt.Sprintf(format, args...)}
}

func NoAvailability(format string, args ...any) *Error {
	return &Error{Code: CodeNoAvailability, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity string, id int64) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %d not found", entity, id)}
}

func InvalidState(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

func ConcurrencyConflict(message string, cause error) *Error {
	return &Error{Code: CodeConcurrencyConflict, Message: message, Cause: cause}
}

func Persistence(message string, cause error) *Error {
	return &Error{Code: CodePersistence, Message: message, Cause: cause}
}

// CodeOf extracts the code of err, treating unknown errors as persistence failures.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodePersistence
}

// MessageOf returns the human-readable part of err without the cause chain.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// Expected reports whether err is a normal business outcome rather than a fault.
func Expected(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeCapacityExceeded, CodeNoAvailability, CodeNotFound, CodeInvalidState:
		return true
	default:
		return false
	}
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeCapacityExceeded:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNoAvailability, CodeConcurrencyConflict, CodeInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
