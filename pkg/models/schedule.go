package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleType distinguishes simple fixed-interval schedules from cron ones.
type ScheduleType string

const (
	ScheduleTypeSimple ScheduleType = "simple"
	ScheduleTypeCron   ScheduleType = "cron"
)

// RepeatUnit is the unit of a simple schedule's interval.
type RepeatUnit string

const (
	RepeatUnitMinutes RepeatUnit = "minutes"
	RepeatUnitHours   RepeatUnit = "hours"
	RepeatUnitDays    RepeatUnit = "days"
)

// Schedule is a recurring trigger that invokes a policy with fixed input
// data. NextDueAt is precomputed so a poller can query due schedules without
// keeping per-schedule timers.
type Schedule struct {
	ID string `json:"id" validate:"required"`

	// PolicyID identifies the policy this schedule triggers
	PolicyID string `json:"policy_id" validate:"required"`

	Type ScheduleType `json:"type" validate:"required"`

	// CronExpression is required for cron schedules; standard 5-field form
	// (minute hour day month weekday)
	CronExpression string `json:"cron_expression,omitempty"`

	// RepeatInterval/RepeatUnit are required for simple schedules
	RepeatInterval int        `json:"repeat_interval,omitempty"`
	RepeatUnit     RepeatUnit `json:"repeat_unit,omitempty"`

	// InputData is passed verbatim to every triggered execution
	InputData map[string]any `json:"input_data,omitempty"`

	// NextDueAt is the precomputed next execution time
	NextDueAt time.Time `json:"next_due_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Active    bool      `json:"active"`
}

// ErrInvalidSchedule is returned when schedule validation fails.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// NewSchedule creates a Schedule; the caller sets the type-specific timing
// fields and then calls UpdateNextDueAt to compute the first due time.
func NewSchedule(id, policyID string, scheduleType ScheduleType) (*Schedule, error) {
	now := time.Now().UTC()
	schedule := &Schedule{
		ID:        id,
		PolicyID:  policyID,
		Type:      scheduleType,
		CreatedAt: now,
		UpdatedAt: now,
		Active:    true,
	}

	return schedule, nil
}

// Interval returns the duration of one simple-schedule period.
func (s *Schedule) Interval() (time.Duration, error) {
	if s.RepeatInterval <= 0 {
		return 0, fmt.Errorf("%w: repeat interval must be positive", ErrInvalidSchedule)
	}

	switch s.RepeatUnit {
	case RepeatUnitMinutes:
		return time.Duration(s.RepeatInterval) * time.Minute, nil
	case RepeatUnitHours:
		return time.Duration(s.RepeatInterval) * time.Hour, nil
	case RepeatUnitDays:
		return time.Duration(s.RepeatInterval) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: unknown repeat unit %q", ErrInvalidSchedule, s.RepeatUnit)
	}
}

// UpdateNextDueAt advances NextDueAt from the current time.
func (s *Schedule) UpdateNextDueAt() error {
	return s.calculateNextDueAt(time.Now().UTC())
}

// calculateNextDueAt computes the next execution time from referenceTime.
func (s *Schedule) calculateNextDueAt(referenceTime time.Time) error {
	switch s.Type {
	case ScheduleTypeCron:
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

		cronSchedule, err := parser.Parse(s.CronExpression)
		if err != nil {
			return err
		}

		s.NextDueAt = cronSchedule.Next(referenceTime)
	case ScheduleTypeSimple:
		interval, err := s.Interval()
		if err != nil {
			return err
		}

		s.NextDueAt = referenceTime.Add(interval)
	default:
		return fmt.Errorf("%w: unknown schedule type %q", ErrInvalidSchedule, s.Type)
	}

	s.UpdatedAt = time.Now().UTC()

	return nil
}

// IsDue reports whether this schedule should fire at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Active && !s.NextDueAt.After(now)
}

// Validate checks the schedule's fields for its type.
func (s *Schedule) Validate() error {
	if s.ID == "" || s.PolicyID == "" {
		return ErrInvalidSchedule
	}

	switch s.Type {
	case ScheduleTypeCron:
		if s.CronExpression == "" {
			return ErrInvalidSchedule
		}

		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		_, err := parser.Parse(s.CronExpression)

		return err
	case ScheduleTypeSimple:
		_, err := s.Interval()

		return err
	default:
		return fmt.Errorf("%w: unknown schedule type %q", ErrInvalidSchedule, s.Type)
	}
}
