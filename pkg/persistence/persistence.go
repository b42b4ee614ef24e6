// Package persistence provides the data storage abstraction for policies,
// transactions, fraud models, alerts, traces and schedules.
package persistence

import (
	"context"
	"time"

	"github.com/finwatch/sentinel/pkg/models"
)

type Persistence interface {
	PolicyRepository() PolicyRepository
	TransactionRepository() TransactionRepository
	FraudModelRepository() FraudModelRepository
	FraudAlertRepository() FraudAlertRepository
	TraceRepository() TraceRepository
	ScheduleRepository() ScheduleRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// PolicyRepository stores policies and their execution statistics.
type PolicyRepository interface {
	Policies(ctx context.Context) ([]*models.Policy, error)
	PolicyByID(ctx context.Context, id string) (*models.Policy, error)
	SavePolicy(ctx context.Context, policy *models.Policy) error

	// RecordExecution atomically increments the policy's execution count,
	// its approved count when approved, and recomputes the approval rate.
	// Implementations must not lose updates under concurrent triggers.
	RecordExecution(ctx context.Context, policyID string, approved bool) (models.VariantStats, error)
}

// TransactionRepository stores transactions and answers the history queries
// the scoring models need.
type TransactionRepository interface {
	TransactionByID(ctx context.Context, id string) (*models.Transaction, error)
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error

	// RecentByAccount returns the account's transactions created at or after
	// since, newest first.
	RecentByAccount(ctx context.Context, accountID string, since time.Time) ([]*models.Transaction, error)

	// DistinctIPsForFingerprint returns the distinct source addresses seen
	// for a device fingerprint at or after since.
	DistinctIPsForFingerprint(ctx context.Context, fingerprint string, since time.Time) ([]string, error)
}

// FraudModelRepository stores scoring model configurations.
type FraudModelRepository interface {
	ActiveModels(ctx context.Context) ([]*models.FraudModel, error)
	ModelByID(ctx context.Context, id string) (*models.FraudModel, error)
	SaveModel(ctx context.Context, model *models.FraudModel) error

	// IncrementDetectionCount atomically bumps the model's detection count.
	IncrementDetectionCount(ctx context.Context, id string) error
}

// FraudAlertRepository stores alerts with the (transaction, model)
// idempotency key.
type FraudAlertRepository interface {
	// CreateAlert persists the alert unless one already exists for the same
	// (TransactionID, ModelID) pair; created reports whether a new record
	// was written.
	CreateAlert(ctx context.Context, alert *models.FraudAlert) (created bool, err error)
	AlertsByTransaction(ctx context.Context, transactionID string) ([]*models.FraudAlert, error)
}

// TraceRepository persists execution traces for audit, including partial
// traces of failed runs.
type TraceRepository interface {
	SaveTrace(ctx context.Context, trace *models.ExecutionTrace) error
	TraceByExecutionID(ctx context.Context, executionID string) (*models.ExecutionTrace, error)
	TracesByPolicy(ctx context.Context, policyID string) ([]*models.ExecutionTrace, error)
}

// ScheduleRepository stores recurring triggers.
type ScheduleRepository interface {
	Schedules(ctx context.Context) ([]*models.Schedule, error)
	SaveSchedule(ctx context.Context, schedule *models.Schedule) error
	DueSchedules(ctx context.Context, now time.Time) ([]*models.Schedule, error)
}
