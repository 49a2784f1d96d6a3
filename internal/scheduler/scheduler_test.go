package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takumi-oki/chorus/internal/clock"
	"github.com/takumi-oki/chorus/internal/logging"
	"github.com/takumi-oki/chorus/internal/model"
	"github.com/takumi-oki/chorus/internal/registry"
)

type nopNotifier struct{}

func (nopNotifier) Record(string, map[string]any) {}

// blockingDelay parks every sleeper until the context is cancelled, so a
// supervision loop under test stays in its first iteration indefinitely.
type blockingDelay struct{}

func (blockingDelay) Sleep(ctx context.Context, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestScheduler(cfg model.Config, delay clock.Delay) (*Scheduler, *registry.Memory, *clock.Fake) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 15, 30, 0, 0, time.UTC))
	if delay == nil {
		delay = clk
	}
	reg := registry.NewMemory()
	logger := logging.New(io.Discard, logging.LevelError, "test")
	return New(cfg, reg, nopNotifier{}, clk, delay, logger), reg, clk
}

func TestScheduleJobDefaults(t *testing.T) {
	s, _, _ := newTestScheduler(model.DefaultConfig(), nil)

	id, err := s.ScheduleJob(JobSpec{Name: "adhoc", TaskIDs: []string{"t1"}})
	require.NoError(t, err)

	job, err := s.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobKindManual, job.Kind)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, model.PriorityMedium, job.Priority)
	assert.Equal(t, 3, job.Metadata.MaxRetries)
	assert.Equal(t, 30*time.Minute, job.Timeout())
	assert.Nil(t, job.NextRun, "manual jobs have no schedule")
}

func TestScheduleJobComputesNextRun(t *testing.T) {
	s, _, clk := newTestScheduler(model.DefaultConfig(), nil)

	id, err := s.ScheduleJob(JobSpec{Kind: model.JobKindScheduled, Name: "hourly", Schedule: "0 * * * *"})
	require.NoError(t, err)

	job, err := s.GetJob(id)
	require.NoError(t, err)
	require.NotNil(t, job.NextRun)
	assert.Equal(t, clk.Now().Truncate(time.Hour).Add(time.Hour), *job.NextRun)
}

func TestStartJobUnknown(t *testing.T) {
	s, _, _ := newTestScheduler(model.DefaultConfig(), nil)
	_, err := s.StartJob(context.Background(), "job_missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStartJobConcurrencyCeiling(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Scheduler.MaxConcurrentJobs = 1
	s, reg, _ := newTestScheduler(cfg, blockingDelay{})
	reg.PutTask(model.Task{ID: "t1", Status: model.TaskStatusPending})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.Wait()
	}()

	first, err := s.ScheduleJob(JobSpec{Name: "first", TaskIDs: []string{"t1"}})
	require.NoError(t, err)
	second, err := s.ScheduleJob(JobSpec{Name: "second", TaskIDs: []string{"t1"}})
	require.NoError(t, err)

	started, err := s.StartJob(ctx, first)
	require.NoError(t, err)
	require.True(t, started)

	started, err = s.StartJob(ctx, second)
	assert.ErrorIs(t, err, model.ErrConcurrencyLimit)
	assert.False(t, started)

	// The blocked job is untouched.
	job, err := s.GetJob(second)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)
}

func TestStartJobAlreadyRunning(t *testing.T) {
	s, reg, _ := newTestScheduler(model.DefaultConfig(), blockingDelay{})
	reg.PutTask(model.Task{ID: "t1", Status: model.TaskStatusPending})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.Wait()
	}()

	id, err := s.ScheduleJob(JobSpec{Name: "once", TaskIDs: []string{"t1"}})
	require.NoError(t, err)

	started, err := s.StartJob(ctx, id)
	require.NoError(t, err)
	require.True(t, started)

	started, err = s.StartJob(ctx, id)
	require.NoError(t, err)
	assert.False(t, started, "double start is a no-op, not an error")

	job, _ := s.GetJob(id)
	assert.Equal(t, 1, job.RunCount)
}

func TestJobCompletesWhenAllTasksComplete(t *testing.T) {
	s, reg, _ := newTestScheduler(model.DefaultConfig(), nil)
	reg.PutTask(model.Task{ID: "t1", Status: model.TaskStatusCompleted, AssignedAgent: "agent-9"})
	reg.PutTask(model.Task{ID: "t2", Status: model.TaskStatusCompleted, AssignedAgent: "agent-9"})

	id, err := s.ScheduleJob(JobSpec{Name: "done deal", TaskIDs: []string{"t1", "t2"}})
	require.NoError(t, err)

	started, err := s.StartJob(context.Background(), id)
	require.NoError(t, err)
	require.True(t, started)
	s.Wait()

	job, err := s.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.RunCount)
	assert.Equal(t, 1, job.SuccessCount)

	report, err := s.Report(id)
	require.NoError(t, err)
	require.Len(t, report.Records, 2)
	for _, rec := range report.Records {
		assert.Equal(t, model.CoordinationStatusCompleted, rec.Status)
		assert.Equal(t, "agent-9", rec.AgentID)
		assert.NotNil(t, rec.ActualCompletion)
	}
}

func TestJobFailsWhenAnyTaskFails(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Scheduler.RetryFailedJobs = false
	s, reg, _ := newTestScheduler(cfg, nil)
	reg.PutTask(model.Task{ID: "t1", Status: model.TaskStatusCompleted})
	reg.PutTask(model.Task{ID: "t2", Status: model.TaskStatusFailed})

	id, err := s.ScheduleJob(JobSpec{Name: "half broken", TaskIDs: []string{"t1", "t2"}})
	require.NoError(t, err)

	_, err = s.StartJob(context.Background(), id)
	require.NoError(t, err)
	s.Wait()

	job, _ := s.GetJob(id)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, 0, job.SuccessCount)
}

func TestStuckJobTimesOutAndRearms(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Scheduler.RetryFailedJobs = true
	s, reg, clk := newTestScheduler(cfg, nil)
	// The task never leaves pending; supervision advances the fake clock one
	// poll interval at a time until the job's timeout elapses.
	reg.PutTask(model.Task{ID: "t1", Status: model.TaskStatusPending})

	id, err := s.ScheduleJob(JobSpec{Name: "stuck", TaskIDs: []string{"t1"}})
	require.NoError(t, err)

	before := clk.Now()
	_, err = s.StartJob(context.Background(), id)
	require.NoError(t, err)
	s.Wait()

	job, err := s.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status, "timed-out job re-arms after the back-off")
	assert.Equal(t, 1, job.RunCount)
	assert.True(t, clk.Now().Sub(before) > job.Timeout(), "the fake clock passed the timeout")
}

func TestRetryBudgetExhausted(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Scheduler.RetryFailedJobs = true
	s, reg, _ := newTestScheduler(cfg, nil)
	reg.PutTask(model.Task{ID: "t1", Status: model.TaskStatusFailed})

	id, err := s.ScheduleJob(JobSpec{Name: "hopeless", TaskIDs: []string{"t1"}, MaxRetries: 1})
	require.NoError(t, err)

	// First run fails and re-arms: run count 1 is within the budget.
	_, err = s.StartJob(context.Background(), id)
	require.NoError(t, err)
	s.Wait()
	job, _ := s.GetJob(id)
	require.Equal(t, model.JobStatusPending, job.Status)

	// Second run exceeds the budget and stays failed.
	_, err = s.StartJob(context.Background(), id)
	require.NoError(t, err)
	s.Wait()
	job, _ = s.GetJob(id)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, 2, job.RunCount)
}

func TestPauseAndResume(t *testing.T) {
	s, reg, _ := newTestScheduler(model.DefaultConfig(), blockingDelay{})
	reg.PutTask(model.Task{ID: "t1", Status: model.TaskStatusPending})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.Wait()
	}()

	id, err := s.ScheduleJob(JobSpec{Name: "pausable", TaskIDs: []string{"t1"}})
	require.NoError(t, err)
	_, err = s.StartJob(ctx, id)
	require.NoError(t, err)

	require.NoError(t, s.PauseJob(id))
	job, _ := s.GetJob(id)
	assert.Equal(t, model.JobStatusPaused, job.Status)

	// Pausing a paused job is rejected by the transition table.
	assert.Error(t, s.PauseJob(id))

	require.NoError(t, s.ResumeJob(ctx, id))
	job, _ = s.GetJob(id)
	assert.Equal(t, model.JobStatusRunning, job.Status)
}

func TestCancelJob(t *testing.T) {
	s, reg, _ := newTestScheduler(model.DefaultConfig(), blockingDelay{})
	reg.PutTask(model.Task{ID: "t1", Status: model.TaskStatusPending})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.Wait()
	}()

	id, err := s.ScheduleJob(JobSpec{Name: "doomed", TaskIDs: []string{"t1"}})
	require.NoError(t, err)
	_, err = s.StartJob(ctx, id)
	require.NoError(t, err)

	require.NoError(t, s.CancelJob(id))
	job, _ := s.GetJob(id)
	assert.Equal(t, model.JobStatusFailed, job.Status)

	assert.ErrorIs(t, s.CancelJob("job_missing"), model.ErrNotFound)
}

func TestNextRunFrom(t *testing.T) {
	s, _, _ := newTestScheduler(model.DefaultConfig(), nil)
	// A Thursday afternoon.
	now := time.Date(2026, 1, 1, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule string
		want     time.Time
	}{
		{"hourly", "0 * * * *", time.Date(2026, 1, 1, 16, 0, 0, 0, time.UTC)},
		{"daily_midnight", "0 0 * * *", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"weekly_monday", "0 0 * * 1", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"unrecognized_falls_back", "*/7 3 * * 2", now.Add(time.Hour)},
		{"empty_falls_back", "", now.Add(time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.nextRunFrom(now, tt.schedule))
		})
	}
}

func TestScheduleSweepStartsDueJobs(t *testing.T) {
	s, reg, clk := newTestScheduler(model.DefaultConfig(), nil)
	reg.PutTask(model.Task{ID: "t1", Status: model.TaskStatusCompleted})

	id, err := s.ScheduleJob(JobSpec{Kind: model.JobKindScheduled, Name: "hourly", Schedule: "0 * * * *", TaskIDs: []string{"t1"}})
	require.NoError(t, err)

	// Not due yet: nothing starts.
	s.ScheduleSweep(context.Background())
	job, _ := s.GetJob(id)
	assert.Equal(t, 0, job.RunCount)

	clk.Advance(2 * time.Hour)
	s.ScheduleSweep(context.Background())
	s.Wait()

	job, err = s.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, 1, job.RunCount)
	require.NotNil(t, job.NextRun)
	assert.True(t, job.NextRun.After(*job.LastRun), "next run was recomputed past the start time")
}

func TestScheduleSweepDefersAtCeiling(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Scheduler.MaxConcurrentJobs = 1
	s, reg, clk := newTestScheduler(cfg, blockingDelay{})
	reg.PutTask(model.Task{ID: "t1", Status: model.TaskStatusPending})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.Wait()
	}()

	for _, name := range []string{"a", "b"} {
		_, err := s.ScheduleJob(JobSpec{Kind: model.JobKindScheduled, Name: name, Schedule: "0 * * * *", TaskIDs: []string{"t1"}})
		require.NoError(t, err)
	}

	clk.Advance(2 * time.Hour)
	s.ScheduleSweep(ctx)

	assert.Len(t, s.RunningJobs(), 1, "the ceiling admits one job; the other waits for the next sweep")
}

func TestHealthSweepFailsStuckJob(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Scheduler.RetryFailedJobs = false
	s, reg, clk := newTestScheduler(cfg, blockingDelay{})
	reg.PutTask(model.Task{ID: "t1", Status: model.TaskStatusPending})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.Wait()
	}()

	id, err := s.ScheduleJob(JobSpec{Name: "wedged", TaskIDs: []string{"t1"}})
	require.NoError(t, err)
	_, err = s.StartJob(ctx, id)
	require.NoError(t, err)

	// Within the timeout the sweep leaves it alone.
	s.HealthSweep(ctx)
	job, _ := s.GetJob(id)
	assert.Equal(t, model.JobStatusRunning, job.Status)

	clk.Advance(31 * time.Minute)
	s.HealthSweep(ctx)
	job, _ = s.GetJob(id)
	assert.Equal(t, model.JobStatusFailed, job.Status)
}
