// Package cases defines the case-escalation contract used when a critical
// fraud detection needs human review on a tight SLA.
package cases

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Priority grades how urgently a case must be worked.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Request describes the case to open.
type Request struct {
	Type        string   `json:"type"`
	Priority    Priority `json:"priority"`
	Subject     string   `json:"subject"`
	Description string   `json:"description"`
	SLAHours    int      `json:"sla_hours"`
}

// Escalator is the case-management collaborator contract.
type Escalator interface {
	CreateCase(ctx context.Context, req Request) (string, error)
}

// LogEscalator records escalations to the log and assigns case IDs locally.
// It stands in where no case-management system is wired.
type LogEscalator struct {
	logger *slog.Logger
}

func NewLogEscalator(logger *slog.Logger) *LogEscalator {
	return &LogEscalator{logger: logger.With("module", "case_escalator")}
}

func (e *LogEscalator) CreateCase(_ context.Context, req Request) (string, error) {
	caseID := "case-" + uuid.New().String()[:8]

	e.logger.Info("Created escalation case",
		"case_id", caseID,
		"type", req.Type,
		"priority", req.Priority,
		"subject", req.Subject,
		"sla_hours", req.SLAHours,
	)

	return caseID, nil
}
