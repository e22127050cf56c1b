/**
 * @description
 * Error kinds shared by every layer. Each failure the service reports is one of
 * three kinds, and the API layer maps the kind to an HTTP status.
 */
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrPermission = errors.New("permission denied")
	ErrNotFound   = errors.New("not found")
)

// Error carries a caller-facing message tagged with one of the error kinds.
type Error struct {
	kind    error
	message string
}

// NewError creates an error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{kind: kind, message: message}
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.kind
}

// Validationf builds a validation error with a formatted message.
func Validationf(format string, args ...any) error {
	return NewError(ErrValidation, fmt.Sprintf(format, args...))
}

// Permissionf builds a permission error with a formatted message.
func Permissionf(format string, args ...any) error {
	return NewError(ErrPermission, fmt.Sprintf(format, args...))
}

// NotFoundf builds a not-found error with a formatted message.
func NotFoundf(format string, args ...any) error {
	return NewError(ErrNotFound, fmt.Sprintf(format, args...))
}
