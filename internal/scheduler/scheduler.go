// Package scheduler turns named, possibly recurring requests into supervised
// job runs: it manages concurrency limits, timeouts, retries, and the
// periodic "is it time to run / is it stuck" sweeps.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/takumi-oki/chorus/internal/clock"
	"github.com/takumi-oki/chorus/internal/lock"
	"github.com/takumi-oki/chorus/internal/logging"
	"github.com/takumi-oki/chorus/internal/metrics"
	"github.com/takumi-oki/chorus/internal/model"
	"github.com/takumi-oki/chorus/internal/registry"
)

// JobSpec describes a scheduling request.
type JobSpec struct {
	Kind           model.JobKind
	Name           string
	Description    string
	Schedule       string
	TaskIDs        []string
	Priority       model.Priority
	Owner          string
	Tier           string
	MaxRetries     int
	TimeoutMinutes int
}

// Scheduler owns the job and coordination-record maps. All mutation goes
// through it; jobs are never deleted (cancellation flips status to failed).
type Scheduler struct {
	mu            sync.RWMutex
	jobs          map[string]*model.Job
	coordinations map[string][]*model.CoordinationRecord

	cfg      model.Config
	registry registry.TaskRegistry
	notifier registry.Notifier
	clock    clock.Clock
	delay    clock.Delay
	logger   *logging.Logger
	lockMap  *lock.MutexMap
	wg       sync.WaitGroup
}

// New creates a scheduler.
func New(cfg model.Config, reg registry.TaskRegistry, notifier registry.Notifier, clk clock.Clock, delay clock.Delay, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		jobs:          make(map[string]*model.Job),
		coordinations: make(map[string][]*model.CoordinationRecord),
		cfg:           cfg,
		registry:      reg,
		notifier:      notifier,
		clock:         clk,
		delay:         delay,
		logger:        logger,
		lockMap:       lock.NewMutexMap(),
	}
}

// ScheduleJob registers a job. For scheduled jobs the next run is computed
// from the schedule string; unrecognized patterns degrade to the one-hour
// fallback rather than failing.
func (s *Scheduler) ScheduleJob(spec JobSpec) (string, error) {
	id, err := model.GenerateID(model.IDTypeJob)
	if err != nil {
		return "", fmt.Errorf("generate job ID: %w", err)
	}

	if spec.Kind == "" {
		spec.Kind = model.JobKindManual
	}
	if spec.Priority == "" {
		spec.Priority = model.PriorityMedium
	}
	if spec.MaxRetries <= 0 {
		spec.MaxRetries = s.cfg.Scheduler.DefaultMaxRetries
	}
	if spec.TimeoutMinutes <= 0 {
		spec.TimeoutMinutes = s.cfg.Scheduler.DefaultTimeoutMin
	}

	now := s.clock.Now()
	job := &model.Job{
		ID:          id,
		Kind:        spec.Kind,
		Name:        spec.Name,
		Description: spec.Description,
		Schedule:    spec.Schedule,
		TaskIDs:     append([]string(nil), spec.TaskIDs...),
		Status:      model.JobStatusPending,
		Priority:    spec.Priority,
		CreatedAt:   now,
		Metadata: model.JobMetadata{
			Owner:          spec.Owner,
			Tier:           spec.Tier,
			MaxRetries:     spec.MaxRetries,
			TimeoutMinutes: spec.TimeoutMinutes,
		},
	}
	if spec.Kind == model.JobKindScheduled {
		next := s.nextRunFrom(now, spec.Schedule)
		job.NextRun = &next
	}

	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	metrics.JobsScheduledTotal.Inc()
	s.notifier.Record("job_scheduled", map[string]any{
		"job_id": id,
		"kind":   string(spec.Kind),
		"tasks":  len(spec.TaskIDs),
	})
	s.logger.Infof("job_scheduled id=%s kind=%s name=%q tasks=%d", id, spec.Kind, spec.Name, len(spec.TaskIDs))
	return id, nil
}

// StartJob begins supervising a job. It returns (false, nil) when the job is
// already running, model.ErrNotFound for an unknown ID, and
// model.ErrConcurrencyLimit when the running-job ceiling is reached. On
// success one coordination record per task is created and the supervision
// loop is spawned under ctx.
func (s *Scheduler) StartJob(ctx context.Context, id string) (bool, error) {
	s.lockMap.Lock("job:" + id)
	defer s.lockMap.Unlock("job:" + id)

	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("job %s: %w", id, model.ErrNotFound)
	}
	if job.Status == model.JobStatusRunning {
		s.mu.Unlock()
		return false, nil
	}
	running := 0
	for _, j := range s.jobs {
		if j.Status == model.JobStatusRunning {
			running++
		}
	}
	if running >= s.cfg.Scheduler.MaxConcurrentJobs {
		s.mu.Unlock()
		return false, fmt.Errorf("%d jobs running (limit %d): %w",
			running, s.cfg.Scheduler.MaxConcurrentJobs, model.ErrConcurrencyLimit)
	}
	if err := model.ValidateJobTransition(job.Status, model.JobStatusRunning); err != nil {
		s.mu.Unlock()
		return false, err
	}

	now := s.clock.Now()
	job.Status = model.JobStatusRunning
	job.LastRun = &now
	job.RunCount++
	taskIDs := append([]string(nil), job.TaskIDs...)
	s.mu.Unlock()

	records := make([]*model.CoordinationRecord, 0, len(taskIDs))
	for _, taskID := range taskIDs {
		recordID, err := model.GenerateID(model.IDTypeCoordination)
		if err != nil {
			return false, fmt.Errorf("generate coordination ID: %w", err)
		}
		estimate := now
		if task, err := s.registry.GetTask(ctx, taskID); err == nil && task != nil {
			estimate = now.Add(task.EstimatedTime)
		}
		records = append(records, &model.CoordinationRecord{
			ID:                  recordID,
			JobID:               id,
			TaskID:              taskID,
			Status:              model.CoordinationStatusAssigned,
			StartTime:           now,
			EstimatedCompletion: estimate,
		})
	}

	s.mu.Lock()
	s.coordinations[id] = records
	s.mu.Unlock()

	metrics.JobsRunning.Inc()
	s.notifier.Record("job_started", map[string]any{"job_id": id, "run": s.runCount(id)})
	s.logger.Infof("job_started id=%s tasks=%d run=%d", id, len(records), s.runCount(id))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.supervise(ctx, id)
	}()
	return true, nil
}

// PauseJob suspends supervision; the loop observes the status change on its
// next poll and exits.
func (s *Scheduler) PauseJob(id string) error {
	return s.transition(id, model.JobStatusPaused)
}

// ResumeJob re-enters running state and restarts the supervision loop.
func (s *Scheduler) ResumeJob(ctx context.Context, id string) error {
	if err := s.transition(id, model.JobStatusRunning); err != nil {
		return err
	}
	metrics.JobsRunning.Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.supervise(ctx, id)
	}()
	return nil
}

// CancelJob is best-effort: it marks the job failed and logs the intent to
// cancel the underlying tasks, but the external registry may let tasks that
// are already implementing complete anyway. That race is accepted.
func (s *Scheduler) CancelJob(id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("job %s: %w", id, model.ErrNotFound)
	}
	wasRunning := job.Status == model.JobStatusRunning
	if err := model.ValidateJobTransition(job.Status, model.JobStatusFailed); err != nil {
		s.mu.Unlock()
		return err
	}
	job.Status = model.JobStatusFailed
	taskIDs := append([]string(nil), job.TaskIDs...)
	s.mu.Unlock()

	if wasRunning {
		metrics.JobsRunning.Dec()
	}
	s.notifier.Record("job_cancelled", map[string]any{"job_id": id})
	s.logger.Infof("job_cancelled id=%s: requesting cancellation of %d tasks (best effort)", id, len(taskIDs))
	return nil
}

// GetJob returns a copy of the job, or model.ErrNotFound.
func (s *Scheduler) GetJob(id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, fmt.Errorf("job %s: %w", id, model.ErrNotFound)
	}
	return *job, nil
}

// JobReport bundles a job with its coordination records for reporting.
type JobReport struct {
	Job     model.Job
	Records []model.CoordinationRecord
}

// Report returns the job and copies of its coordination records.
func (s *Scheduler) Report(id string) (JobReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return JobReport{}, fmt.Errorf("job %s: %w", id, model.ErrNotFound)
	}
	report := JobReport{Job: *job}
	for _, rec := range s.coordinations[id] {
		report.Records = append(report.Records, *rec)
	}
	return report, nil
}

// RunningJobs returns copies of all jobs currently in running state, sorted
// by ID for stable iteration.
func (s *Scheduler) RunningJobs() []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Job
	for _, job := range s.jobs {
		if job.Status == model.JobStatusRunning {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Wait blocks until all supervision loops have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) transition(id string, to model.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, model.ErrNotFound)
	}
	if err := model.ValidateJobTransition(job.Status, to); err != nil {
		return err
	}
	if job.Status == model.JobStatusRunning && to == model.JobStatusPaused {
		metrics.JobsRunning.Dec()
	}
	job.Status = to
	return nil
}

func (s *Scheduler) runCount(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if job, ok := s.jobs[id]; ok {
		return job.RunCount
	}
	return 0
}
