package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by stores when no document matches.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by stores on unique index violations.
var ErrDuplicate = errors.New("duplicate key")

// Machine-readable error codes returned to clients.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeForbidden     = "FORBIDDEN"
	CodeConflict      = "CONFLICT"
	CodeTokenMissing  = "TOKEN_MISSING"
	CodeTokenExpired  = "TOKEN_EXPIRED"
	CodeTokenInvalid  = "TOKEN_INVALID"
	CodeTokenRevoked  = "TOKEN_REVOKED"
	CodeUserNotFound  = "USER_NOT_FOUND"
	CodeBadCredential = "INVALID_CREDENTIALS"
)

// AppError is an error with an HTTP status attached
type AppError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a 400.
func NewValidationError(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError returns a 404 naming the missing resource.
func NewNotFoundError(resource string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: resource + " not found", Err: ErrNotFound}
}

// NewForbiddenError returns a 403.
func NewForbiddenError(message string) *AppError {
	return &AppError{Status: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

// NewConflictError returns a 409.
func NewConflictError(message string) *AppError {
	return &AppError{Status: http.StatusConflict, Code: CodeConflict, Message: message, Err: ErrDuplicate}
}

// NewAuthError returns a 401 with the given code.
func NewAuthError(code, message string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: code, Message: message}
}

// AsAppError extracts an *AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
