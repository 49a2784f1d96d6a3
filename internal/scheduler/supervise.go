package scheduler

import (
	"context"
	"errors"

	"github.com/takumi-oki/chorus/internal/metrics"
	"github.com/takumi-oki/chorus/internal/model"
)

type pollOutcome int

const (
	pollContinue pollOutcome = iota
	pollCompleted
	pollFailed
	pollTimeout
)

// supervise is the per-running-job loop: every poll interval it re-reads each
// task's external status and folds it into the coordination records, until
// the job completes, fails, times out, or leaves running state. A cancelled
// or paused job is noticed on the next iteration; the loop never outlives a
// non-running job.
func (s *Scheduler) supervise(ctx context.Context, jobID string) {
	for {
		if err := s.delay.Sleep(ctx, s.cfg.PollInterval()); err != nil {
			s.logger.Debugf("supervise job=%s: context done", jobID)
			return
		}

		job, err := s.GetJob(jobID)
		if err != nil {
			s.logger.Errorf("supervise job=%s: %v", jobID, err)
			return
		}
		if job.Status != model.JobStatusRunning {
			s.logger.Infof("supervise_exit job=%s status=%s", jobID, job.Status)
			return
		}

		switch s.pollOnce(ctx, job) {
		case pollCompleted:
			s.completeJob(jobID)
			return
		case pollFailed:
			s.failJob(ctx, jobID, model.ErrTaskFailure)
			return
		case pollTimeout:
			s.failJob(ctx, jobID, model.ErrTimeout)
			return
		}
	}
}

// pollOnce reads every task once and updates the job's coordination records.
// Intermediate task states between two polls are not observed; a task that
// flips pending→completed between polls is seen only as completed.
func (s *Scheduler) pollOnce(ctx context.Context, job model.Job) pollOutcome {
	s.mu.RLock()
	records := s.coordinations[job.ID]
	taskIDs := make([]string, len(records))
	for i, rec := range records {
		taskIDs[i] = rec.TaskID
	}
	s.mu.RUnlock()

	tasks := make(map[string]*model.Task, len(taskIDs))
	for _, taskID := range taskIDs {
		task, err := s.registry.GetTask(ctx, taskID)
		if err != nil {
			s.logger.Errorf("poll job=%s task=%s: %v", job.ID, taskID, err)
			continue
		}
		tasks[taskID] = task
	}

	now := s.clock.Now()
	allCompleted := true
	anyFailed := false

	s.mu.Lock()
	for _, rec := range records {
		task := tasks[rec.TaskID]
		if task == nil {
			allCompleted = false
			continue
		}
		if task.AssignedAgent != "" {
			rec.AgentID = task.AssignedAgent
		}

		var target model.CoordinationStatus
		switch task.Status {
		case model.TaskStatusCompleted:
			target = model.CoordinationStatusCompleted
		case model.TaskStatusFailed:
			target = model.CoordinationStatusFailed
		case model.TaskStatusAnalyzing, model.TaskStatusImplementing, model.TaskStatusTesting:
			target = model.CoordinationStatusRunning
		default: // pending: no-op
			target = ""
		}
		if target != "" && target != rec.Status {
			if err := model.ValidateCoordinationTransition(rec.Status, target); err != nil {
				s.logger.Errorf("poll job=%s task=%s: %v", job.ID, rec.TaskID, err)
			} else {
				rec.Status = target
				if target == model.CoordinationStatusCompleted {
					completion := now
					rec.ActualCompletion = &completion
				}
			}
		}

		switch rec.Status {
		case model.CoordinationStatusFailed:
			anyFailed = true
			allCompleted = false
		case model.CoordinationStatusCompleted:
		default:
			allCompleted = false
		}
	}
	s.mu.Unlock()

	if anyFailed {
		return pollFailed
	}
	if allCompleted && len(records) > 0 {
		return pollCompleted
	}
	if job.LastRun != nil && now.Sub(*job.LastRun) > job.Timeout() {
		return pollTimeout
	}
	return pollContinue
}

func (s *Scheduler) completeJob(jobID string) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != model.JobStatusRunning {
		s.mu.Unlock()
		return
	}
	job.Status = model.JobStatusCompleted
	job.SuccessCount++
	var duration float64
	if job.LastRun != nil {
		duration = s.clock.Now().Sub(*job.LastRun).Seconds()
	}
	s.mu.Unlock()

	metrics.JobsRunning.Dec()
	metrics.JobsCompletedTotal.WithLabelValues("completed").Inc()
	metrics.JobDurationSeconds.Observe(duration)
	s.notifier.Record("job_completed", map[string]any{"job_id": jobID, "duration_sec": duration})
	s.logger.Infof("job_completed id=%s duration=%.0fs", jobID, duration)
}

// failJob converts a supervision failure into a status transition and, when
// the retry budget allows, re-arms the job to pending after the fixed
// back-off instead of immediately. The delay caps retry storms.
func (s *Scheduler) failJob(ctx context.Context, jobID string, cause error) {
	outcome := "failed"
	if errors.Is(cause, model.ErrTimeout) {
		outcome = "timeout"
	}

	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != model.JobStatusRunning {
		// Already failed elsewhere (health sweep, cancel); nothing to do.
		s.mu.Unlock()
		return
	}
	job.Status = model.JobStatusFailed
	retry := s.cfg.Scheduler.RetryFailedJobs && job.RunCount <= job.Metadata.MaxRetries
	s.mu.Unlock()

	metrics.JobsRunning.Dec()
	metrics.JobsCompletedTotal.WithLabelValues(outcome).Inc()
	s.notifier.Record("job_failed", map[string]any{"job_id": jobID, "reason": cause.Error()})
	s.logger.Warnf("job_failed id=%s reason=%v retry=%t", jobID, cause, retry)

	if retry {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.rearmAfterDelay(ctx, jobID)
		}()
	}
}

func (s *Scheduler) rearmAfterDelay(ctx context.Context, jobID string) {
	if err := s.delay.Sleep(ctx, s.cfg.RetryDelay()); err != nil {
		return
	}

	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if err := model.ValidateJobTransition(job.Status, model.JobStatusPending); err != nil {
		// The job moved on while we waited; leave it alone.
		s.mu.Unlock()
		s.logger.Debugf("rearm_skip job=%s: %v", jobID, err)
		return
	}
	job.Status = model.JobStatusPending
	s.mu.Unlock()

	metrics.JobRetriesTotal.Inc()
	s.notifier.Record("job_retry_scheduled", map[string]any{"job_id": jobID})
	s.logger.Infof("job_rearmed id=%s", jobID)
}
