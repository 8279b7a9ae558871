package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Tern error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrInvalidURL         ErrorCode = "INVALID_URL"         // 400
	ErrInvalidConfig      ErrorCode = "INVALID_CONFIG"      // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrDisabled           ErrorCode = "DISABLED"            // 409
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE" // 503
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// TernError represents a structured error with code, status, and details.
type TernError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *TernError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *TernError {
	return &TernError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidURL creates a 400 error for a URL that failed validation.
// reason is the validator's stable identifier (e.g. "INVALID_PROTOCOL").
func NewInvalidURL(url, reason, msg string) *TernError {
	return &TernError{
		Code:    ErrInvalidURL,
		Status:  400,
		Message: msg,
		Details: map[string]any{"url": url, "reason": reason},
	}
}

// NewInvalidConfig creates a 400 error for a configuration value that cannot be used.
// This is the caller-misuse class: it is always returned, never swallowed.
func NewInvalidConfig(field, msg string) *TernError {
	return &TernError{
		Code:    ErrInvalidConfig,
		Status:  400,
		Message: fmt.Sprintf("%s: %s", field, msg),
		Details: map[string]any{"field": field},
	}
}

// NewNotFound creates a 404 error for a missing session or slot.
func NewNotFound(identifier string) *TernError {
	return &TernError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewDisabled creates a 409 error for operations refused because tracking is disabled.
func NewDisabled() *TernError {
	return &TernError{
		Code:    ErrDisabled,
		Status:  409,
		Message: "utm tracking is disabled by configuration",
	}
}

// NewStorageUnavailable creates a 503 error when the session medium cannot be used.
func NewStorageUnavailable(msg string) *TernError {
	return &TernError{
		Code:    ErrStorageUnavailable,
		Status:  503,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *TernError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &TernError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a TernError with the given code.
// Wrapped errors are unwrapped.
func Is(err error, code ErrorCode) bool {
	var tErr *TernError
	if stderrors.As(err, &tErr) {
		return tErr.Code == code
	}
	return false
}
