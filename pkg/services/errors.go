// Package services provides the policy lifecycle service and its error
// taxonomy.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest     = errors.New("invalid request")
	ErrPolicyNameRequired = errors.New("policy name is required")
	ErrDefinitionRequired = errors.New("policy must have a workflow definition")
	ErrInvalidDefinition  = errors.New("invalid workflow definition")
	ErrInvalidNodeConfig  = errors.New("invalid node configuration")
	ErrPolicyNil          = errors.New("policy cannot be nil")

	// Business logic conflicts (409 Conflict).
	ErrInvalidTransition = errors.New("invalid policy status transition")
	ErrPolicyImmutable   = errors.New("archived policies cannot be modified")
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

// IsValidationError checks if an error should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrPolicyNameRequired) ||
		errors.Is(err, ErrDefinitionRequired) ||
		errors.Is(err, ErrInvalidDefinition) ||
		errors.Is(err, ErrInvalidNodeConfig) ||
		errors.Is(err, ErrPolicyNil)
}

// IsConflictError checks if an error should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrPolicyImmutable)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{Op: op, Code: code, Message: message, Err: err}
}
