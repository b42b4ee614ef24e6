package schedule

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence/file"
)

func TestPollFiresDueSchedule(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	sched, err := models.NewSchedule("sched-1", "policy-1", models.ScheduleTypeSimple)
	require.NoError(t, err)

	sched.RepeatInterval = 5
	sched.RepeatUnit = models.RepeatUnitMinutes
	sched.InputData = map[string]any{"source": "nightly-batch"}
	sched.NextDueAt = time.Now().UTC().Add(-time.Minute)

	require.NoError(t, persist.ScheduleRepository().SaveSchedule(ctx, sched))

	type firing struct {
		policyID  string
		inputData map[string]any
	}

	fired := make(chan firing, 1)

	scheduler := NewScheduler(slog.Default(), persist.ScheduleRepository(), time.Second)
	scheduler.callback = func(_ context.Context, policyID string, inputData map[string]any) error {
		fired <- firing{policyID: policyID, inputData: inputData}

		return nil
	}

	scheduler.poll(ctx)

	select {
	case f := <-fired:
		assert.Equal(t, "policy-1", f.policyID)
		assert.Equal(t, "nightly-batch", f.inputData["source"])
		assert.Equal(t, "sched-1", f.inputData["schedule_id"])
		assert.NotEmpty(t, f.inputData["idempotency_key"])
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not fire due schedule")
	}

	// The schedule is advanced past now so the next poll will not refire.
	stored, err := persist.ScheduleRepository().DueSchedules(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPollSkipsFutureSchedule(t *testing.T) {
	t.Parallel()

	persist := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	sched, err := models.NewSchedule("sched-future", "policy-1", models.ScheduleTypeSimple)
	require.NoError(t, err)

	sched.RepeatInterval = 1
	sched.RepeatUnit = models.RepeatUnitHours
	sched.NextDueAt = time.Now().UTC().Add(time.Hour)

	require.NoError(t, persist.ScheduleRepository().SaveSchedule(ctx, sched))

	fired := make(chan struct{}, 1)

	scheduler := NewScheduler(slog.Default(), persist.ScheduleRepository(), time.Second)
	scheduler.callback = func(context.Context, string, map[string]any) error {
		fired <- struct{}{}

		return nil
	}

	scheduler.poll(ctx)

	select {
	case <-fired:
		t.Fatal("scheduler fired a schedule that was not due")
	case <-time.After(200 * time.Millisecond):
	}
}
