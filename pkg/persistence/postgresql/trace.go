package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence"
)

// TraceRepository persists execution traces, including partial traces of
// failed runs.
type TraceRepository struct {
	db *sql.DB
}

func (r *TraceRepository) SaveTrace(ctx context.Context, trace *models.ExecutionTrace) error {
	results, err := json.Marshal(trace.Results)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO execution_traces (execution_id, policy_id, variant, decision,
		                              results, error, failed_node, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (execution_id) DO UPDATE SET
			decision = EXCLUDED.decision,
			results = EXCLUDED.results,
			error = EXCLUDED.error,
			failed_node = EXCLUDED.failed_node,
			completed_at = EXCLUDED.completed_at`,
		trace.ExecutionID, trace.PolicyID, trace.Variant, trace.Decision,
		results, trace.Error, trace.FailedNode, trace.StartedAt, trace.CompletedAt)

	return err
}

func (r *TraceRepository) TraceByExecutionID(ctx context.Context, executionID string) (*models.ExecutionTrace, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT execution_id, policy_id, variant, decision, results, error,
		       failed_node, started_at, completed_at
		FROM execution_traces
		WHERE execution_id = $1`, executionID)

	trace, err := scanTrace(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTraceNotFound
		}

		return nil, err
	}

	return trace, nil
}

func (r *TraceRepository) TracesByPolicy(ctx context.Context, policyID string) ([]*models.ExecutionTrace, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT execution_id, policy_id, variant, decision, results, error,
		       failed_node, started_at, completed_at
		FROM execution_traces
		WHERE policy_id = $1
		ORDER BY started_at DESC`, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var traces []*models.ExecutionTrace

	for rows.Next() {
		trace, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}

		traces = append(traces, trace)
	}

	return traces, rows.Err()
}

func scanTrace(row rowScanner) (*models.ExecutionTrace, error) {
	var (
		trace   models.ExecutionTrace
		results []byte
	)

	err := row.Scan(&trace.ExecutionID, &trace.PolicyID, &trace.Variant,
		&trace.Decision, &results, &trace.Error, &trace.FailedNode,
		&trace.StartedAt, &trace.CompletedAt)
	if err != nil {
		return nil, err
	}

	if len(results) > 0 {
		if err := json.Unmarshal(results, &trace.Results); err != nil {
			return nil, err
		}
	}

	return &trace, nil
}

// ScheduleRepository stores recurring triggers.
type ScheduleRepository struct {
	db *sql.DB
}

func (r *ScheduleRepository) Schedules(ctx context.Context) ([]*models.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, policy_id, type, cron_expression, repeat_interval, repeat_unit,
		       input_data, next_due_at, created_at, updated_at, active
		FROM schedules
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectSchedules(rows)
}

func (r *ScheduleRepository) SaveSchedule(ctx context.Context, schedule *models.Schedule) error {
	inputData, err := json.Marshal(schedule.InputData)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}

	schedule.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO schedules (id, policy_id, type, cron_expression, repeat_interval,
		                       repeat_unit, input_data, next_due_at, created_at, updated_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			cron_expression = EXCLUDED.cron_expression,
			repeat_interval = EXCLUDED.repeat_interval,
			repeat_unit = EXCLUDED.repeat_unit,
			input_data = EXCLUDED.input_data,
			next_due_at = EXCLUDED.next_due_at,
			updated_at = EXCLUDED.updated_at,
			active = EXCLUDED.active`,
		schedule.ID, schedule.PolicyID, schedule.Type, schedule.CronExpression,
		schedule.RepeatInterval, schedule.RepeatUnit, inputData, schedule.NextDueAt,
		schedule.CreatedAt, schedule.UpdatedAt, schedule.Active)

	return err
}

func (r *ScheduleRepository) DueSchedules(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, policy_id, type, cron_expression, repeat_interval, repeat_unit,
		       input_data, next_due_at, created_at, updated_at, active
		FROM schedules
		WHERE active = true AND next_due_at <= $1
		ORDER BY next_due_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectSchedules(rows)
}

func collectSchedules(rows *sql.Rows) ([]*models.Schedule, error) {
	var schedules []*models.Schedule

	for rows.Next() {
		var (
			schedule  models.Schedule
			inputData []byte
		)

		err := rows.Scan(&schedule.ID, &schedule.PolicyID, &schedule.Type,
			&schedule.CronExpression, &schedule.RepeatInterval, &schedule.RepeatUnit,
			&inputData, &schedule.NextDueAt, &schedule.CreatedAt, &schedule.UpdatedAt,
			&schedule.Active)
		if err != nil {
			return nil, err
		}

		if len(inputData) > 0 {
			if err := json.Unmarshal(inputData, &schedule.InputData); err != nil {
				return nil, err
			}
		}

		schedules = append(schedules, &schedule)
	}

	return schedules, rows.Err()
}
