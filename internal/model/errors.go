package model

import "errors"

var (
	// ErrNotFound is returned for an unknown job, task, collaboration, or
	// conflict ID.
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyLimit is returned when starting a job would exceed the
	// configured ceiling of running jobs.
	ErrConcurrencyLimit = errors.New("concurrency limit exceeded")

	// ErrTimeout marks a job that exceeded its wall-clock deadline.
	ErrTimeout = errors.New("job timed out")

	// ErrTaskFailure marks a job whose referenced task reported failure.
	ErrTaskFailure = errors.New("task failed")
)
