// Package services provides the application services behind the HTTP API and
// the worker: transition submission, configuration administration and
// lifecycle analytics.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrEmptyTenantID     = errors.New("tenant ID cannot be empty")
	ErrEmptyWorkOrderID  = errors.New("work order ID cannot be empty")
	ErrEmptyActorID      = errors.New("actor ID cannot be empty")
	ErrEmptyTargetStatus = errors.New("target status cannot be empty")
	ErrEmptyReference    = errors.New("work order reference cannot be empty")
	ErrMalformedDocument = errors.New("configuration document is malformed")
	ErrInvalidTimeRange  = errors.New("time range start must precede its end")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrEmptyTenantID) ||
		errors.Is(err, ErrEmptyWorkOrderID) ||
		errors.Is(err, ErrEmptyActorID) ||
		errors.Is(err, ErrEmptyTargetStatus) ||
		errors.Is(err, ErrEmptyReference) ||
		errors.Is(err, ErrMalformedDocument) ||
		errors.Is(err, ErrInvalidTimeRange)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
