// Package models defines the core domain models for policy-driven fraud decisioning.
package models

import "time"

// PolicyStatus represents the lifecycle state of a policy.
type PolicyStatus string

const (
	PolicyStatusDraft    PolicyStatus = "draft"    // Editable, not executable
	PolicyStatusActive   PolicyStatus = "active"   // Executable
	PolicyStatusPaused   PolicyStatus = "paused"   // Temporarily not executable
	PolicyStatusArchived PolicyStatus = "archived" // Historical, kept for execution audit
)

// PolicyType categorizes what kind of record a policy decides on.
type PolicyType string

const (
	PolicyTypeTransaction PolicyType = "transaction"
	PolicyTypeOnboarding  PolicyType = "onboarding"
)

// ABTestConfig routes a percentage of executions to an alternate policy.
type ABTestConfig struct {
	VariantAPercentage int    `json:"variant_a_percentage" validate:"min=0,max=100"`
	VariantBPolicyID   string `json:"variant_b_policy_id"  validate:"required"`
}

// VariantStats tracks aggregate outcomes for one A/B variant.
type VariantStats struct {
	ExecutionCount int64   `json:"execution_count"`
	ApprovedCount  int64   `json:"approved_count"`
	ApprovalRate   float64 `json:"approval_rate"`
}

// Policy is a named decision workflow plus metadata. The workflow definition
// is replaced wholesale on edit; policies are archived, never hard-deleted,
// while execution history references them.
type Policy struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"                validate:"required,min=3"`
	Type               PolicyType          `json:"type"                validate:"required"`
	Status             PolicyStatus        `json:"status"              validate:"required"`
	WorkflowDefinition *WorkflowDefinition `json:"workflow_definition"`
	ABTestConfig       *ABTestConfig       `json:"ab_test_config,omitempty"`
	Stats              VariantStats        `json:"stats"`
	Metadata           map[string]any      `json:"metadata,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	ArchivedAt         *time.Time          `json:"archived_at,omitempty"`
}

// IsExecutable reports whether the policy may be run.
func (p *Policy) IsExecutable() bool {
	return p.Status == PolicyStatusActive
}

// WorkflowDefinition is the immutable graph a policy executes.
type WorkflowDefinition struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// NodeByID returns the node with the given ID, if present.
func (d *WorkflowDefinition) NodeByID(id string) (*Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return nil, false
}

// StartNode returns the single start node of the graph, if present.
func (d *WorkflowDefinition) StartNode() (*Node, bool) {
	for _, n := range d.Nodes {
		if n.Kind == NodeKindStart {
			return n, true
		}
	}

	return nil, false
}

// OutgoingEdges returns the edges leaving the given node.
func (d *WorkflowDefinition) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge

	for _, e := range d.Edges {
		if e.SourceNodeID == nodeID {
			out = append(out, e)
		}
	}

	return out
}

// Edge defines the next node to visit, optionally gated by a branch label.
// BranchLabel is empty for unconditional edges and required for edges
// leaving a condition node.
type Edge struct {
	ID           string `json:"id"             validate:"required"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	TargetNodeID string `json:"target_node_id" validate:"required"`
	BranchLabel  string `json:"branch_label,omitempty"`
}
