// Package errors provides the standardized error taxonomy for the template API.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeTemplateNotFound   ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable"`
	RetryAfter time.Duration          `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches two StandardErrors by code so errors.Is works with
// code-level sentinels.
func (e *StandardError) Is(target error) bool {
	var std *StandardError
	if !errors.As(target, &std) {
		return false
	}
	return e.Code == std.Code
}

// ==========================
// Error Constructors
// ==========================

// NewTemplateNotFoundError creates a non-retryable not-found error.
func NewTemplateNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Template not found for application",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthorizedError creates a non-retryable credential error.
func NewUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Missing or invalid credentials",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitExceededError creates a retryable admission error carrying the
// retry-after hint.
func NewRateLimitExceededError(retryAfter time.Duration) *StandardError {
	return &StandardError{
		Code:       ErrCodeRateLimitExceeded,
		Message:    "Rate limit exceeded",
		Retryable:  true,
		RetryAfter: retryAfter,
		Timestamp:  time.Now().UTC(),
	}
}

// NewBackendUnavailableError creates a retryable distributed-store error.
func NewBackendUnavailableError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendUnavailable,
		Message:   fmt.Sprintf("Backend '%s' unavailable", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable error naming the violated
// constraint; callers must fix their input.
func NewValidationError(field, constraint string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Validation failed",
		Details:   fmt.Sprintf("field: %s, constraint: %s", field, constraint),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// Utility Functions
// ==========================

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	var std *StandardError
	if !errors.As(err, &std) {
		return false
	}
	return std.Code == code
}

// Normalize ensures we always have a StandardError to report.
func Normalize(err error) *StandardError {
	var std *StandardError
	if errors.As(err, &std) {
		return std
	}
	return NewInternalError(err)
}
