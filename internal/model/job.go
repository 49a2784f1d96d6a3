// Package model defines the data structures for chorus jobs, coordination
// records, communications, knowledge entries, collaborations, and conflicts.
package model

import "time"

type JobKind string

const (
	JobKindScheduled JobKind = "scheduled"
	JobKindTriggered JobKind = "triggered"
	JobKindManual    JobKind = "manual"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// JobMetadata carries the per-job scheduling policy.
type JobMetadata struct {
	Owner          string `yaml:"owner"`
	Tier           string `yaml:"tier"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutMinutes int    `yaml:"timeout_minutes"`
}

// Job is a supervised unit of scheduling wrapping one or more external tasks.
type Job struct {
	ID          string      `yaml:"id"`
	Kind        JobKind     `yaml:"kind"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Schedule    string      `yaml:"schedule,omitempty"`
	TaskIDs     []string    `yaml:"task_ids"`
	Status      JobStatus   `yaml:"status"`
	Priority    Priority    `yaml:"priority"`
	CreatedAt   time.Time   `yaml:"created_at"`
	LastRun     *time.Time  `yaml:"last_run,omitempty"`
	NextRun     *time.Time  `yaml:"next_run,omitempty"`
	RunCount    int         `yaml:"run_count"`
	SuccessCount int        `yaml:"success_count"`
	Metadata    JobMetadata `yaml:"metadata"`
}

// Timeout returns the job's wall-clock deadline as a duration.
func (j *Job) Timeout() time.Duration {
	return time.Duration(j.Metadata.TimeoutMinutes) * time.Minute
}

// CoordinationRecord links a job to one of its tasks and, once assigned, to
// the agent executing it. One record is created per task at job start and
// retained for the job's lifetime.
type CoordinationRecord struct {
	ID                  string             `yaml:"id"`
	JobID               string             `yaml:"job_id"`
	TaskID              string             `yaml:"task_id"`
	AgentID             string             `yaml:"agent_id,omitempty"`
	Status              CoordinationStatus `yaml:"status"`
	StartTime           time.Time          `yaml:"start_time"`
	EstimatedCompletion time.Time          `yaml:"estimated_completion"`
	ActualCompletion    *time.Time         `yaml:"actual_completion,omitempty"`
}
