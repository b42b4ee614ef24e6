package file

import (
	"context"
	"os"
	"time"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence"
)

// TraceRepository stores one JSON file per execution under traces/.
type TraceRepository struct {
	p *Persistence
}

func (r *TraceRepository) path(executionID string) string {
	return r.p.dir("traces", executionID+".json")
}

func (r *TraceRepository) SaveTrace(_ context.Context, trace *models.ExecutionTrace) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return r.p.writeJSON(r.path(trace.ExecutionID), trace)
}

func (r *TraceRepository) TraceByExecutionID(_ context.Context, executionID string) (*models.ExecutionTrace, error) {
	var trace models.ExecutionTrace

	if err := r.p.readJSON(r.path(executionID), &trace); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrTraceNotFound
		}

		return nil, err
	}

	return &trace, nil
}

func (r *TraceRepository) TracesByPolicy(_ context.Context, policyID string) ([]*models.ExecutionTrace, error) {
	all, err := readAll[models.ExecutionTrace](r.p, r.p.dir("traces"))
	if err != nil {
		return nil, err
	}

	var matched []*models.ExecutionTrace

	for _, trace := range all {
		if trace.PolicyID == policyID {
			matched = append(matched, trace)
		}
	}

	return matched, nil
}

// ScheduleRepository stores one JSON file per schedule under schedules/.
type ScheduleRepository struct {
	p *Persistence
}

func (r *ScheduleRepository) path(id string) string {
	return r.p.dir("schedules", id+".json")
}

func (r *ScheduleRepository) Schedules(_ context.Context) ([]*models.Schedule, error) {
	return readAll[models.Schedule](r.p, r.p.dir("schedules"))
}

func (r *ScheduleRepository) SaveSchedule(_ context.Context, schedule *models.Schedule) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return r.p.writeJSON(r.path(schedule.ID), schedule)
}

func (r *ScheduleRepository) DueSchedules(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	all, err := r.Schedules(ctx)
	if err != nil {
		return nil, err
	}

	var due []*models.Schedule

	for _, schedule := range all {
		if schedule.IsDue(now) {
			due = append(due, schedule)
		}
	}

	return due, nil
}
