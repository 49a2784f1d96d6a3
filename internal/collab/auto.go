package collab

import (
	"context"
	"fmt"

	"github.com/takumi-oki/chorus/internal/model"
)

// MaybeAutoCollaborate creates a collaboration for a running job's task set
// when the heuristic says the set would benefit from coordinated multi-agent
// work. Returns the new collaboration ID, or "" when nothing was created.
func (m *Manager) MaybeAutoCollaborate(ctx context.Context, job model.Job) (string, error) {
	tasks, err := m.fetchTasks(ctx, job.TaskIDs)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "", nil
	}

	if !m.deservesCollaboration(tasks) {
		return "", nil
	}

	// Dedup: skip if any existing collaboration already references one of
	// these tasks.
	existing := m.ActiveTaskIDs()
	for _, t := range tasks {
		if existing[t.ID] {
			m.logger.Debugf("auto_collab_skip job=%s task=%s already covered", job.ID, t.ID)
			return "", nil
		}
	}

	coordinationType := chooseTopology(tasks)
	name := fmt.Sprintf("auto: %s", job.Name)
	description := fmt.Sprintf("auto-created for job %s (%d tasks)", job.ID, len(tasks))

	id, err := m.CreateCollaboration(ctx, name, description, job.TaskIDs, coordinationType)
	if err != nil {
		return "", fmt.Errorf("auto-create collaboration for job %s: %w", job.ID, err)
	}
	m.logger.Infof("auto_collab_created job=%s collab=%s type=%s", job.ID, id, coordinationType)
	return id, nil
}

// deservesCollaboration: any high/critical task, any long-running estimate,
// or any feature-development task.
func (m *Manager) deservesCollaboration(tasks []model.Task) bool {
	threshold := m.cfg.LongTaskThreshold()
	for _, t := range tasks {
		if t.Priority == model.PriorityHigh || t.Priority == model.PriorityCritical {
			return true
		}
		if t.EstimatedTime > threshold {
			return true
		}
		if containsFold(t.Type, "feature") {
			return true
		}
	}
	return false
}

// chooseTopology: hierarchical when a task looks architectural, sequential
// when dependencies exist, parallel otherwise.
func chooseTopology(tasks []model.Task) model.CoordinationType {
	for _, t := range tasks {
		if containsFold(t.Type, "architect") || containsFold(t.Description, "architect") ||
			containsFold(t.Type, "system") || containsFold(t.Description, "system-level") {
			return model.CoordinationHierarchical
		}
	}
	for _, t := range tasks {
		if len(t.Dependencies) > 0 {
			return model.CoordinationSequential
		}
	}
	return model.CoordinationParallel
}
