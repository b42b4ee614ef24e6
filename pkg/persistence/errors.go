// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrPolicyNotFound indicates a policy was not found by the given identifier.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrTransactionNotFound indicates a transaction was not found by the given identifier.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrModelNotFound indicates a fraud model was not found by the given identifier.
	ErrModelNotFound = errors.New("fraud model not found")

	// ErrTraceNotFound indicates an execution trace was not found.
	ErrTraceNotFound = errors.New("execution trace not found")

	// ErrPolicyArchived indicates a write was attempted against an archived policy.
	ErrPolicyArchived = errors.New("policy is archived")
)

// PolicyError wraps policy-related errors with additional context.
type PolicyError struct {
	Op       string // Operation being performed (e.g., "PolicyByID", "Save")
	PolicyID string
	Err      error
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s operation failed for policy %s: %v", e.Op, e.PolicyID, e.Err)
}

func (e *PolicyError) Unwrap() error {
	return e.Err
}

func (e *PolicyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewPolicyError creates a new policy error with context.
func NewPolicyError(op, policyID string, err error) *PolicyError {
	return &PolicyError{Op: op, PolicyID: policyID, Err: err}
}

// IsPolicyNotFound checks if an error indicates a policy was not found.
func IsPolicyNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound)
}

// IsTransactionNotFound checks if an error indicates a transaction was not found.
func IsTransactionNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound)
}

// IsModelNotFound checks if an error indicates a fraud model was not found.
func IsModelNotFound(err error) bool {
	return errors.Is(err, ErrModelNotFound)
}

// IsTraceNotFound checks if an error indicates an execution trace was not found.
func IsTraceNotFound(err error) bool {
	return errors.Is(err, ErrTraceNotFound)
}
