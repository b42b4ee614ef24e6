// Package schedule polls the schedule store and fires due schedules into
// the engine.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/finwatch/sentinel/pkg/persistence"
	"github.com/finwatch/sentinel/pkg/triggers"
)

const defaultPollInterval = 10 * time.Second

// Scheduler drives recurring policy executions. Due schedules are found by
// polling the store's precomputed next-due timestamps; each firing advances
// the schedule before invoking the callback so a crash between the two
// never replays more than one period.
type Scheduler struct {
	schedules    persistence.ScheduleRepository
	callback     triggers.Callback
	logger       *slog.Logger
	pollInterval time.Duration
	cron         *cron.Cron
}

func NewScheduler(logger *slog.Logger, schedules persistence.ScheduleRepository, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &Scheduler{
		schedules:    schedules,
		pollInterval: pollInterval,
		logger:       logger.With("module", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context, callback triggers.Callback) error {
	s.logger.InfoContext(ctx, "Starting scheduler", "poll_interval", s.pollInterval)
	s.callback = callback

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.pollInterval), func() {
		s.poll(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to register poll job: %w", err)
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping scheduler")

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	return nil
}

// poll fires every schedule that is due. Firing is sequential per poll;
// executions themselves run on their own goroutines.
func (s *Scheduler) poll(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.schedules.DueSchedules(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query due schedules", "error", err)

		return
	}

	for _, sched := range due {
		logger := s.logger.With("schedule_id", sched.ID, "policy_id", sched.PolicyID)

		scheduledFor := sched.NextDueAt

		if err := sched.UpdateNextDueAt(); err != nil {
			logger.ErrorContext(ctx, "Failed to advance schedule, deactivating", "error", err)

			sched.Active = false
		}

		if err := s.schedules.SaveSchedule(ctx, sched); err != nil {
			logger.ErrorContext(ctx, "Failed to save schedule", "error", err)

			continue
		}

		inputData := make(map[string]any, len(sched.InputData)+3)
		for k, v := range sched.InputData {
			inputData[k] = v
		}

		inputData["schedule_id"] = sched.ID
		inputData["scheduled_for"] = scheduledFor.Format(time.RFC3339)
		// Retried firings of the same period share one idempotency key,
		// so replays route and deduplicate consistently downstream.
		inputData["idempotency_key"] = fmt.Sprintf("%s@%s", sched.ID, scheduledFor.Format(time.RFC3339))

		go func() {
			if err := s.callback(ctx, sched.PolicyID, inputData); err != nil {
				logger.ErrorContext(ctx, "Scheduled execution failed", "error", err)
			}
		}()
	}
}
