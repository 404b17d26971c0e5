// internal/apperrors/apperrors.go
package apperrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeNotFound     Code = "NOT_FOUND"
	CodeInvalidState Code = "INVALID_STATE"
	CodeForbidden    Code = "FORBIDDEN"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeConflict     Code = "CONFLICT"
)

// AppError carries a taxonomy code alongside a user-visible message. Deny
// reasons are specific: "insufficient rating" is distinguishable from
// "no rating history" and "restricted by seller".
type AppError struct {
	Code    Code
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NotFound(resource string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func InvalidState(message string) *AppError {
	return &AppError{Code: CodeInvalidState, Message: message}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

func Validation(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// Conflict marks a lost optimistic update on the auction row.
func Conflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// CodeOf extracts the taxonomy code, or "" for untyped errors.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
