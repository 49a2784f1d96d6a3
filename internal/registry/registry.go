// Package registry defines the boundary to the external task/agent registry
// and the notification sink, plus an in-memory implementation used by tests
// and the demo daemon mode.
package registry

import (
	"context"

	"github.com/takumi-oki/chorus/internal/model"
)

// TaskSpec describes a task submitted to the external registry.
type TaskSpec struct {
	Type          string
	Description   string
	Priority      model.Priority
	EstimatedTime string
	Dependencies  []string
}

// TaskRegistry is the consumed interface of the external task/agent registry.
// GetTask returns (nil, nil) for an unknown ID; errors are reserved for
// transport-level failures.
type TaskRegistry interface {
	SubmitTask(ctx context.Context, spec TaskSpec) (string, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	GetAgents(ctx context.Context) ([]model.Agent, error)
	StopProcessing()
}

// Notifier is a fire-and-forget telemetry sink. Record never blocks for long
// and never propagates a failure to the caller.
type Notifier interface {
	Record(event string, properties map[string]any)
}
