package scheduler

import (
	"context"
	"errors"

	"github.com/takumi-oki/chorus/internal/metrics"
	"github.com/takumi-oki/chorus/internal/model"
)

// ScheduleSweep starts every scheduled job whose next run is due and
// recomputes its next run. A job blocked by the concurrency ceiling stays
// pending and is retried on the next sweep.
func (s *Scheduler) ScheduleSweep(ctx context.Context) {
	now := s.clock.Now()

	s.mu.RLock()
	var due []string
	for id, job := range s.jobs {
		if job.Kind == model.JobKindScheduled && job.Status == model.JobStatusPending &&
			job.NextRun != nil && !job.NextRun.After(now) {
			due = append(due, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range due {
		started, err := s.StartJob(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrConcurrencyLimit) {
				s.logger.Debugf("schedule_sweep job=%s deferred: %v", id, err)
			} else {
				s.logger.Errorf("schedule_sweep job=%s: %v", id, err)
			}
			continue
		}
		if !started {
			continue
		}

		s.mu.Lock()
		if job, ok := s.jobs[id]; ok {
			next := s.nextRunFrom(now, job.Schedule)
			job.NextRun = &next
		}
		s.mu.Unlock()
	}
}

// HealthSweep proactively fails any running job whose time since last run
// exceeds its timeout. Defense in depth against a supervision loop that died
// without completing.
func (s *Scheduler) HealthSweep(ctx context.Context) {
	now := s.clock.Now()

	s.mu.RLock()
	var stuck []string
	for id, job := range s.jobs {
		if job.Status != model.JobStatusRunning || job.LastRun == nil {
			continue
		}
		if now.Sub(*job.LastRun) > job.Timeout() {
			stuck = append(stuck, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stuck {
		s.logger.Warnf("health_sweep job=%s stuck, failing proactively", id)
		metrics.StuckJobsRecoveredTotal.Inc()
		s.failJob(ctx, id, model.ErrTimeout)
	}
}
