package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_Cron_NextDueAtAdvances(t *testing.T) {
	t.Parallel()

	schedule, err := NewSchedule("sch-1", "pol-1", ScheduleTypeCron)
	require.NoError(t, err)

	schedule.CronExpression = "*/5 * * * *"
	require.NoError(t, schedule.Validate())

	before := time.Now().UTC()
	require.NoError(t, schedule.UpdateNextDueAt())

	assert.True(t, schedule.NextDueAt.After(before))
	assert.False(t, schedule.IsDue(before))

	first := schedule.NextDueAt

	require.NoError(t, schedule.calculateNextDueAt(first))
	assert.True(t, schedule.NextDueAt.After(first))
}

func TestSchedule_Simple_Interval(t *testing.T) {
	t.Parallel()

	schedule := &Schedule{
		ID:             "sch-2",
		PolicyID:       "pol-1",
		Type:           ScheduleTypeSimple,
		RepeatInterval: 2,
		RepeatUnit:     RepeatUnitHours,
		Active:         true,
	}

	require.NoError(t, schedule.Validate())

	interval, err := schedule.Interval()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, interval)
}

func TestSchedule_Validate_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		schedule Schedule
	}{
		{"missing policy", Schedule{ID: "s", Type: ScheduleTypeCron, CronExpression: "* * * * *"}},
		{"bad cron", Schedule{ID: "s", PolicyID: "p", Type: ScheduleTypeCron, CronExpression: "not-cron"}},
		{"zero interval", Schedule{ID: "s", PolicyID: "p", Type: ScheduleTypeSimple, RepeatUnit: RepeatUnitMinutes}},
		{"unknown unit", Schedule{ID: "s", PolicyID: "p", Type: ScheduleTypeSimple, RepeatInterval: 1, RepeatUnit: "fortnights"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Error(t, tt.schedule.Validate())
		})
	}
}

func TestSchedule_IsDue(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	schedule := &Schedule{Active: true, NextDueAt: now.Add(-time.Minute)}
	assert.True(t, schedule.IsDue(now))

	schedule.Active = false
	assert.False(t, schedule.IsDue(now))
}
