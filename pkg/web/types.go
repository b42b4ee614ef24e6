// Package web provides the HTTP surface: policy management, execution,
// and fraud evaluation endpoints.
package web

import (
	"github.com/finwatch/sentinel/pkg/models"
)

// CreatePolicyRequest is the request body for creating a new policy. New
// policies always start in draft status.
type CreatePolicyRequest struct {
	Name         string                     `json:"name"          validate:"required,min=3"`
	Type         models.PolicyType          `json:"type"          validate:"required,oneof=transaction onboarding"`
	Definition   *models.WorkflowDefinition `json:"definition"    validate:"required"`
	ABTestConfig *models.ABTestConfig       `json:"ab_test_config,omitempty"`
	Metadata     map[string]any             `json:"metadata,omitempty"`
}

// UpdateDefinitionRequest replaces a policy's workflow definition wholesale.
type UpdateDefinitionRequest struct {
	Definition *models.WorkflowDefinition `json:"definition" validate:"required"`
}

// PolicyResponse wraps a policy with the non-fatal validation warnings
// collected while saving it.
type PolicyResponse struct {
	Policy   *models.Policy `json:"policy"`
	Warnings []string       `json:"warnings,omitempty"`
}

// ExecutePolicyRequest is the request body for running a policy.
type ExecutePolicyRequest struct {
	InputData map[string]any `json:"input_data"`
}

// EvaluateTransactionRequest is the request body for fraud evaluation.
// Callers either reference an already ingested transaction by ID or submit
// the transaction inline; inline transactions are persisted before scoring
// so history-based models see them.
type EvaluateTransactionRequest struct {
	TransactionID string              `json:"transaction_id,omitempty"`
	Transaction   *models.Transaction `json:"transaction,omitempty"`
}

// EvaluateTransactionResponse reports the outcome of one evaluation.
type EvaluateTransactionResponse struct {
	Success       bool                 `json:"success"`
	FraudDetected bool                 `json:"fraud_detected"`
	AlertsCreated int                  `json:"alerts_created"`
	Alerts        []*models.FraudAlert `json:"alerts"`
}

// NodeKindResponse describes one registered node kind and its config schema.
type NodeKindResponse struct {
	Kind   models.NodeKind `json:"kind"`
	Schema map[string]any  `json:"schema"`
}
