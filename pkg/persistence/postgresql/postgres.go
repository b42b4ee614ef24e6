// Package postgresql provides PostgreSQL persistence for policies,
// transactions, fraud models, alerts, traces and schedules.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/finwatch/sentinel/pkg/persistence"
	"github.com/finwatch/sentinel/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	policyRepo      *PolicyRepository
	transactionRepo *TransactionRepository
	fraudModelRepo  *FraudModelRepository
	fraudAlertRepo  *FraudAlertRepository
	traceRepo       *TraceRepository
	scheduleRepo    *ScheduleRepository
}

// NewPersistence connects, migrates, and returns a ready persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	p := &Persistence{
		db:              database,
		logger:          logger,
		policyRepo:      &PolicyRepository{db: database},
		transactionRepo: &TransactionRepository{db: database},
		fraudModelRepo:  &FraudModelRepository{db: database},
		fraudAlertRepo:  &FraudAlertRepository{db: database},
		traceRepo:       &TraceRepository{db: database},
		scheduleRepo:    &ScheduleRepository{db: database},
	}

	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return p, nil
}

func (p *Persistence) PolicyRepository() persistence.PolicyRepository {
	return p.policyRepo
}

func (p *Persistence) TransactionRepository() persistence.TransactionRepository {
	return p.transactionRepo
}

func (p *Persistence) FraudModelRepository() persistence.FraudModelRepository {
	return p.fraudModelRepo
}

func (p *Persistence) FraudAlertRepository() persistence.FraudAlertRepository {
	return p.fraudAlertRepo
}

func (p *Persistence) TraceRepository() persistence.TraceRepository {
	return p.traceRepo
}

func (p *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return p.scheduleRepo
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
