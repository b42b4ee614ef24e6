package models

import (
	"encoding/json"
	"fmt"
)

// NodeKind identifies the behavior of a node in a workflow graph.
type NodeKind string

const (
	NodeKindStart        NodeKind = "start"
	NodeKindDataSource   NodeKind = "data_source"
	NodeKindAPICall      NodeKind = "api_call"
	NodeKindCondition    NodeKind = "condition"
	NodeKindAction       NodeKind = "action"
	NodeKindCustomCode   NodeKind = "custom_code"
	NodeKindApprove      NodeKind = "approve"
	NodeKindReject       NodeKind = "reject"
	NodeKindManualReview NodeKind = "manual_review"
)

// IsTerminal reports whether the kind ends traversal and fixes the decision.
func (k NodeKind) IsTerminal() bool {
	switch k {
	case NodeKindApprove, NodeKindReject, NodeKindManualReview:
		return true
	default:
		return false
	}
}

// ErrorHandling controls what the engine does when a node fails.
type ErrorHandling string

const (
	ErrorHandlingStop     ErrorHandling = "stop"     // Abort the run
	ErrorHandlingContinue ErrorHandling = "continue" // Proceed along the default edge, ignore output
	ErrorHandlingRetry    ErrorHandling = "retry"    // Re-invoke up to RetryCount times, then stop
)

// Node is one typed step in a workflow graph. Config is a tagged union keyed
// by Kind; exactly one variant is populated.
type Node struct {
	ID            string        `json:"id"             validate:"required"`
	Kind          NodeKind      `json:"kind"           validate:"required"`
	Label         string        `json:"label"`
	Config        NodeConfig    `json:"config"`
	ErrorHandling ErrorHandling `json:"error_handling,omitempty"`
	RetryCount    int           `json:"retry_count,omitempty"`
}

// NodeConfig is the kind-specific configuration variant of a node.
type NodeConfig interface {
	ConfigKind() NodeKind
}

// StartConfig carries no settings; the start node only marks the begin time.
type StartConfig struct{}

func (StartConfig) ConfigKind() NodeKind { return NodeKindStart }

// DataSourceConfig invokes a named external provider with a templated payload.
type DataSourceConfig struct {
	ProviderID     string            `json:"provider_id"    validate:"required"`
	Payload        map[string]string `json:"payload,omitempty"`
	ResponsePath   string            `json:"response_path,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
}

func (DataSourceConfig) ConfigKind() NodeKind { return NodeKindDataSource }

// APICallConfig performs an HTTP call with templated method, URL, headers and body.
type APICallConfig struct {
	Method         string            `json:"method"`
	URL            string            `json:"url"            validate:"required"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	ResponsePath   string            `json:"response_path,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
}

func (APICallConfig) ConfigKind() NodeKind { return NodeKindAPICall }

// ConditionConfig evaluates an operator against a resolved value and a
// literal, and selects the outgoing edge whose branch label matches the
// outcome. Branches defaults to ["true", "false"] when empty; N-way branch
// sets list one case label per branch plus the literal for each case.
type ConditionConfig struct {
	Value    string   `json:"value"    validate:"required"`
	Operator string   `json:"operator" validate:"required"`
	Literal  string   `json:"literal"`
	Branches []string `json:"branches,omitempty"`
	Cases    []Case   `json:"cases,omitempty"`
}

// Case is one labeled branch of an N-way condition.
type Case struct {
	Branch  string `json:"branch"  validate:"required"`
	Literal string `json:"literal"`
}

func (ConditionConfig) ConfigKind() NodeKind { return NodeKindCondition }

// ActionConfig emits a side effect through the injected effect port and may
// assign templated values into the execution's context variables.
type ActionConfig struct {
	Set            map[string]string `json:"set,omitempty"`
	Effect         string            `json:"effect,omitempty"`
	Params         map[string]string `json:"params,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
}

func (ActionConfig) ConfigKind() NodeKind { return NodeKindAction }

// CustomCodeConfig runs a bounded set of template assignments against the
// context variables. There is no general scripting; each assignment is a
// template expression resolved against the execution context.
type CustomCodeConfig struct {
	Assignments map[string]string `json:"assignments" validate:"required"`
}

func (CustomCodeConfig) ConfigKind() NodeKind { return NodeKindCustomCode }

// TerminalConfig fixes the run's final decision. Reason is an optional
// template rendered into the trace for audit.
type TerminalConfig struct {
	Reason string `json:"reason,omitempty"`
}

func (TerminalConfig) ConfigKind() NodeKind { return NodeKindApprove }

// nodeJSON is the wire form of a Node; config is decoded per kind.
type nodeJSON struct {
	ID            string          `json:"id"`
	Kind          NodeKind        `json:"kind"`
	Label         string          `json:"label"`
	Config        json.RawMessage `json:"config"`
	ErrorHandling ErrorHandling   `json:"error_handling,omitempty"`
	RetryCount    int             `json:"retry_count,omitempty"`
}

// UnmarshalJSON decodes the config union variant that matches the node kind.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	n.ID = raw.ID
	n.Kind = raw.Kind
	n.Label = raw.Label
	n.ErrorHandling = raw.ErrorHandling
	n.RetryCount = raw.RetryCount

	if n.ErrorHandling == "" {
		n.ErrorHandling = ErrorHandlingStop
	}

	cfg, err := decodeNodeConfig(raw.Kind, raw.Config)
	if err != nil {
		return err
	}

	n.Config = cfg

	return nil
}

// MarshalJSON writes the node with its config variant inline.
func (n *Node) MarshalJSON() ([]byte, error) {
	var cfg json.RawMessage

	if n.Config != nil {
		encoded, err := json.Marshal(n.Config)
		if err != nil {
			return nil, err
		}

		cfg = encoded
	}

	return json.Marshal(nodeJSON{
		ID:            n.ID,
		Kind:          n.Kind,
		Label:         n.Label,
		Config:        cfg,
		ErrorHandling: n.ErrorHandling,
		RetryCount:    n.RetryCount,
	})
}

func decodeNodeConfig(kind NodeKind, raw json.RawMessage) (NodeConfig, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	switch kind {
	case NodeKindStart:
		var cfg StartConfig

		return cfg, json.Unmarshal(raw, &cfg)
	case NodeKindDataSource:
		var cfg DataSourceConfig

		return cfg, json.Unmarshal(raw, &cfg)
	case NodeKindAPICall:
		var cfg APICallConfig

		return cfg, json.Unmarshal(raw, &cfg)
	case NodeKindCondition:
		var cfg ConditionConfig

		return cfg, json.Unmarshal(raw, &cfg)
	case NodeKindAction:
		var cfg ActionConfig

		return cfg, json.Unmarshal(raw, &cfg)
	case NodeKindCustomCode:
		var cfg CustomCodeConfig

		return cfg, json.Unmarshal(raw, &cfg)
	case NodeKindApprove, NodeKindReject, NodeKindManualReview:
		var cfg TerminalConfig

		return cfg, json.Unmarshal(raw, &cfg)
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
}

// BranchLabels returns the declared branch set of a condition config,
// defaulting to the two-branch true/false convention.
func (c ConditionConfig) BranchLabels() []string {
	if len(c.Cases) > 0 {
		labels := make([]string, 0, len(c.Cases))
		for _, cs := range c.Cases {
			labels = append(labels, cs.Branch)
		}

		return labels
	}

	if len(c.Branches) > 0 {
		return c.Branches
	}

	return []string{"true", "false"}
}
