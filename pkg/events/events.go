// Package events defines the notification types published on the event
// stream as executions and fraud evaluations progress.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/finwatch/sentinel/pkg/models"
)

type EventType string

// Topic is the stream all lifecycle events are published on.
const Topic = "sentinel.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Policy execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	NodeCompletedEvent      EventType = "execution.node.completed"

	// Policy lifecycle events.
	PolicyActivatedEvent EventType = "policy.activated"
	PolicyArchivedEvent  EventType = "policy.archived"

	// Fraud pipeline events.
	FraudAlertCreatedEvent  EventType = "fraud.alert.created"
	TransactionBlockedEvent EventType = "fraud.transaction.blocked"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	PolicyID  string         `json:"policy_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, policyID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		PolicyID:  policyID,
	}
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Variant     string         `json:"variant,omitempty"`
	InputData   map[string]any `json:"input_data,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string          `json:"execution_id"`
	Decision    models.Decision `json:"decision"`
	Duration    time.Duration   `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	FailedNode  string        `json:"failed_node,omitempty"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type NodeCompleted struct {
	BaseEvent

	ExecutionID string                  `json:"execution_id"`
	NodeID      string                  `json:"node_id"`
	Status      models.NodeResultStatus `json:"status"`
	Branch      string                  `json:"branch,omitempty"`
	DurationMs  int64                   `json:"duration_ms"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type PolicyActivated struct {
	BaseEvent
}

func (e PolicyActivated) GetType() EventType {
	return PolicyActivatedEvent
}

type PolicyArchived struct {
	BaseEvent
}

func (e PolicyArchived) GetType() EventType {
	return PolicyArchivedEvent
}

type FraudAlertCreated struct {
	BaseEvent

	AlertID       string          `json:"alert_id"`
	TransactionID string          `json:"transaction_id"`
	ModelID       string          `json:"model_id"`
	Severity      models.Severity `json:"severity"`
	Confidence    float64         `json:"confidence"`
}

func (e FraudAlertCreated) GetType() EventType {
	return FraudAlertCreatedEvent
}

type TransactionBlocked struct {
	BaseEvent

	TransactionID string `json:"transaction_id"`
	ModelID       string `json:"model_id"`
}

func (e TransactionBlocked) GetType() EventType {
	return TransactionBlockedEvent
}
