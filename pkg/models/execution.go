package models

import "time"

// ExecutionStatus is the state-machine state of one policy run.
type ExecutionStatus string

const (
	ExecutionStatusPending      ExecutionStatus = "pending"
	ExecutionStatusRunning      ExecutionStatus = "running"
	ExecutionStatusApproved     ExecutionStatus = "approved"
	ExecutionStatusRejected     ExecutionStatus = "rejected"
	ExecutionStatusManualReview ExecutionStatus = "manual_review"
	ExecutionStatusFailed       ExecutionStatus = "failed"
	ExecutionStatusIncomplete   ExecutionStatus = "incomplete"
)

// Decision is the final verdict of a run.
type Decision string

const (
	DecisionApproved     Decision = "approved"
	DecisionRejected     Decision = "rejected"
	DecisionManualReview Decision = "manual_review"
	DecisionFailed       Decision = "failed"
	DecisionIncomplete   Decision = "incomplete"
)

// NodeResultStatus is the outcome of one node invocation.
type NodeResultStatus string

const (
	NodeResultSuccess NodeResultStatus = "success"
	NodeResultError   NodeResultStatus = "error"
	NodeResultSkipped NodeResultStatus = "skipped"
)

// NodeResult records one node invocation for the execution trace.
type NodeResult struct {
	NodeID      string           `json:"node_id"`
	Status      NodeResultStatus `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Output      any              `json:"output,omitempty"`
	Error       string           `json:"error,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`
	Attempts    int              `json:"attempts,omitempty"`
	Branch      string           `json:"branch,omitempty"`
}

// ExecutionContext is the ephemeral per-run state. It exists only for the
// lifetime of one execution and is never shared across runs.
type ExecutionContext struct {
	ID          string                `json:"id"`
	PolicyID    string                `json:"policy_id"`
	Variant     string                `json:"variant,omitempty"`
	InputData   map[string]any        `json:"input_data,omitempty"`
	Results     map[string]NodeResult `json:"results,omitempty"`
	ContextVars map[string]any        `json:"context_vars,omitempty"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
}

// ExecutionTrace is the ordered, timestamped record of every node visited in
// one run plus the final decision; persisted for audit even on failure.
type ExecutionTrace struct {
	ExecutionID string       `json:"execution_id"`
	PolicyID    string       `json:"policy_id"`
	Variant     string       `json:"variant,omitempty"`
	Decision    Decision     `json:"decision"`
	Results     []NodeResult `json:"results"`
	Error       string       `json:"error,omitempty"`
	FailedNode  string       `json:"failed_node,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}

// Status maps the final decision back to the execution state machine.
func (t *ExecutionTrace) Status() ExecutionStatus {
	switch t.Decision {
	case DecisionApproved:
		return ExecutionStatusApproved
	case DecisionRejected:
		return ExecutionStatusRejected
	case DecisionManualReview:
		return ExecutionStatusManualReview
	case DecisionFailed:
		return ExecutionStatusFailed
	case DecisionIncomplete:
		return ExecutionStatusIncomplete
	default:
		return ExecutionStatusRunning
	}
}
