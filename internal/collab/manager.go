// Package collab implements the collaboration manager: grouping tasks under
// a coordination topology, selecting participating agents, and supervising
// progress to completion or failure.
package collab

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/takumi-oki/chorus/internal/clock"
	"github.com/takumi-oki/chorus/internal/comms"
	"github.com/takumi-oki/chorus/internal/knowledge"
	"github.com/takumi-oki/chorus/internal/logging"
	"github.com/takumi-oki/chorus/internal/metrics"
	"github.com/takumi-oki/chorus/internal/model"
	"github.com/takumi-oki/chorus/internal/registry"
)

// Manager owns the collaboration map and drives each collaboration from
// planning through completion.
type Manager struct {
	mu             sync.RWMutex
	collaborations map[string]*model.Collaboration

	cfg       model.Config
	bus       *comms.Bus
	registry  registry.TaskRegistry
	knowledge *knowledge.Store
	notifier  registry.Notifier
	clock     clock.Clock
	logger    *logging.Logger
}

// NewManager creates a collaboration manager.
func NewManager(cfg model.Config, bus *comms.Bus, reg registry.TaskRegistry, store *knowledge.Store, notifier registry.Notifier, clk clock.Clock, logger *logging.Logger) *Manager {
	return &Manager{
		collaborations: make(map[string]*model.Collaboration),
		cfg:            cfg,
		bus:            bus,
		registry:       reg,
		knowledge:      store,
		notifier:       notifier,
		clock:          clk,
		logger:         logger,
	}
}

// CreateCollaboration selects agents for the task set, persists the
// collaboration, notifies every participant of its role, and activates it.
func (m *Manager) CreateCollaboration(ctx context.Context, name, description string, taskIDs []string, coordinationType model.CoordinationType) (string, error) {
	if len(taskIDs) == 0 {
		return "", fmt.Errorf("collaboration requires at least one task")
	}

	tasks, err := m.fetchTasks(ctx, taskIDs)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "", fmt.Errorf("tasks %v: %w", taskIDs, model.ErrNotFound)
	}

	agents, err := m.registry.GetAgents(ctx)
	if err != nil {
		return "", fmt.Errorf("get agents: %w", err)
	}

	selected := m.selectAgents(agents, tasks, coordinationType)
	if len(selected) == 0 {
		return "", fmt.Errorf("no eligible agents for collaboration %q", name)
	}
	participants := assignRoles(selected, coordinationType)

	id, err := model.GenerateID(model.IDTypeCollaboration)
	if err != nil {
		return "", fmt.Errorf("generate collaboration ID: %w", err)
	}

	now := m.clock.Now()
	estimated := estimateDuration(tasks, coordinationType, len(selected))
	c := &model.Collaboration{
		ID:                  id,
		Name:                name,
		Description:         description,
		Participants:        participants,
		TaskIDs:             append([]string(nil), taskIDs...),
		Type:                coordinationType,
		Status:              model.CollaborationStatusPlanning,
		StartTime:           now,
		EstimatedCompletion: now.Add(estimated),
	}

	m.mu.Lock()
	m.collaborations[id] = c
	m.mu.Unlock()
	metrics.CollaborationsActive.Inc()

	for _, p := range participants {
		coordination := model.TaskCoordination{
			CollaborationID:  id,
			TaskIDs:          taskIDs,
			Role:             p.Role,
			CoordinationType: coordinationType,
		}
		if _, err := m.bus.Send(comms.CoordinatorActor, p.AgentID, coordination, model.PriorityHigh, false); err != nil {
			m.logger.Errorf("notify_role collab=%s agent=%s: %v", id, p.AgentID, err)
		}
	}

	// Participants are briefed; the collaboration is live from here on and
	// the coordination sweep takes over.
	m.transition(id, model.CollaborationStatusActive)

	m.notifier.Record("collaboration_created", map[string]any{
		"collaboration_id": id,
		"type":             string(coordinationType),
		"agents":           len(participants),
		"tasks":            len(taskIDs),
	})
	m.logger.Infof("collaboration_created id=%s name=%q type=%s agents=%d tasks=%d estimated=%s",
		id, name, coordinationType, len(participants), len(taskIDs), estimated)
	return id, nil
}

// Get returns a copy of the collaboration, or model.ErrNotFound.
func (m *Manager) Get(id string) (model.Collaboration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collaborations[id]
	if !ok {
		return model.Collaboration{}, fmt.Errorf("collaboration %s: %w", id, model.ErrNotFound)
	}
	return *c, nil
}

// Monitor re-reads the tasks of every active collaboration and folds the
// outcome in. Invoked from the coordination sweep.
func (m *Manager) Monitor(ctx context.Context) {
	m.mu.RLock()
	var active []string
	for id, c := range m.collaborations {
		if c.Status == model.CollaborationStatusActive {
			active = append(active, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range active {
		if err := m.monitorOne(ctx, id); err != nil {
			m.logger.Errorf("monitor collab=%s: %v", id, err)
		}
	}
}

func (m *Manager) monitorOne(ctx context.Context, id string) error {
	m.mu.RLock()
	c, ok := m.collaborations[id]
	if !ok || c.Status != model.CollaborationStatusActive {
		m.mu.RUnlock()
		return nil
	}
	taskIDs := append([]string(nil), c.TaskIDs...)
	m.mu.RUnlock()

	tasks, err := m.fetchTasks(ctx, taskIDs)
	if err != nil {
		return err
	}

	completed, failed := 0, 0
	for _, t := range tasks {
		switch t.Status {
		case model.TaskStatusCompleted:
			completed++
		case model.TaskStatusFailed:
			failed++
		}
	}

	switch {
	case completed == len(tasks):
		m.complete(id, tasks)
	case failed*2 > len(tasks):
		m.fail(id, tasks)
	}
	return nil
}

// complete finalizes a collaboration. Results are computed exactly once; a
// repeat monitor pass after completion is a no-op.
func (m *Manager) complete(id string, tasks []model.Task) {
	m.mu.Lock()
	c, ok := m.collaborations[id]
	if !ok || c.Status != model.CollaborationStatusActive || c.Results != nil {
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	c.ActualCompletion = &now
	c.Results = computeResults(c, tasks, now)
	c.Status = model.CollaborationStatusCompleted
	participants := append([]model.Participant(nil), c.Participants...)
	results := *c.Results
	m.mu.Unlock()
	metrics.CollaborationsActive.Dec()

	for _, p := range participants {
		report := model.StatusReport{
			Status: string(model.CollaborationStatusCompleted),
			Detail: fmt.Sprintf("collaboration %s completed: success_rate=%.2f quality=%.2f", id, results.SuccessRate, results.QualityScore),
		}
		if _, err := m.bus.Send(comms.CoordinatorActor, p.AgentID, report, model.PriorityMedium, false); err != nil {
			m.logger.Errorf("notify_completion collab=%s agent=%s: %v", id, p.AgentID, err)
		}
	}

	m.notifier.Record("collaboration_completed", map[string]any{
		"collaboration_id": id,
		"success_rate":     results.SuccessRate,
		"time_efficiency":  results.TimeEfficiency,
		"quality_score":    results.QualityScore,
	})
	m.logger.Infof("collaboration_completed id=%s success_rate=%.2f efficiency=%.2f quality=%.2f",
		id, results.SuccessRate, results.TimeEfficiency, results.QualityScore)
}

// fail marks a collaboration failed once more than half its tasks have
// failed, then runs the recovery analysis.
func (m *Manager) fail(id string, tasks []model.Task) {
	m.mu.Lock()
	c, ok := m.collaborations[id]
	if !ok || c.Status != model.CollaborationStatusActive {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	c.ActualCompletion = &now
	c.Status = model.CollaborationStatusFailed
	m.mu.Unlock()
	metrics.CollaborationsActive.Dec()

	m.notifier.Record("collaboration_failed", map[string]any{"collaboration_id": id})
	m.logger.Warnf("collaboration_failed id=%s", id)
	m.analyzeRecovery(id, tasks)
}

// Recoverable failure causes. The list is a fixed heuristic; a failed task
// whose description mentions one of these is a candidate for a recovery
// collaboration.
var recoverableCauses = []string{"timeout", "resource", "dependency", "transient"}

// analyzeRecovery inspects failed tasks for recoverable causes. Creating the
// recovery collaboration itself is intentionally left as a hook; today the
// analysis only logs what it found.
func (m *Manager) analyzeRecovery(id string, tasks []model.Task) {
	recoverable := 0
	for _, t := range tasks {
		if t.Status != model.TaskStatusFailed {
			continue
		}
		for _, cause := range recoverableCauses {
			if containsFold(t.Description, cause) || containsFold(t.Type, cause) {
				recoverable++
				break
			}
		}
	}
	if recoverable > 0 {
		// TODO: spin up a recovery collaboration over the recoverable tasks.
		m.logger.Infof("recovery_candidates collab=%s recoverable=%d", id, recoverable)
	}
}

// ActiveTaskIDs returns the union of task IDs referenced by any existing
// collaboration. Used to dedupe auto-collaboration creation.
func (m *Manager) ActiveTaskIDs() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool)
	for _, c := range m.collaborations {
		for _, tid := range c.TaskIDs {
			out[tid] = true
		}
	}
	return out
}

func (m *Manager) transition(id string, to model.CollaborationStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collaborations[id]
	if !ok {
		return
	}
	if err := model.ValidateCollaborationTransition(c.Status, to); err != nil {
		m.logger.Errorf("transition collab=%s: %v", id, err)
		return
	}
	c.Status = to
}

func (m *Manager) fetchTasks(ctx context.Context, taskIDs []string) ([]model.Task, error) {
	tasks := make([]model.Task, 0, len(taskIDs))
	for _, id := range taskIDs {
		t, err := m.registry.GetTask(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get task %s: %w", id, err)
		}
		if t == nil {
			continue
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

// estimateDuration derives the expected collaboration duration from the
// topology: parallel divides the total across agents, sequential runs it
// end-to-end, hierarchical and peer-to-peer apply coordination discounts.
func estimateDuration(tasks []model.Task, coordinationType model.CoordinationType, agentCount int) time.Duration {
	var total time.Duration
	for _, t := range tasks {
		total += t.EstimatedTime
	}
	switch coordinationType {
	case model.CoordinationParallel:
		if agentCount > 0 {
			return total / time.Duration(agentCount)
		}
		return total
	case model.CoordinationHierarchical:
		return total * 8 / 10
	case model.CoordinationPeerToPeer:
		return total * 9 / 10
	default: // sequential
		return total
	}
}

func computeResults(c *model.Collaboration, tasks []model.Task, now time.Time) *model.CollaborationResults {
	completed := 0
	qualitySum := 0.0
	for _, t := range tasks {
		if t.Status == model.TaskStatusCompleted {
			completed++
			quality := 0.8 - 0.1*float64(t.ErrorCount)
			if quality < 0.1 {
				quality = 0.1
			}
			qualitySum += quality
		}
	}

	successRate := 0.0
	if len(tasks) > 0 {
		successRate = float64(completed) / float64(len(tasks))
	}

	qualityScore := 0.0
	if completed > 0 {
		qualityScore = qualitySum / float64(completed)
	}

	timeEfficiency := 1.0
	estimated := c.EstimatedCompletion.Sub(c.StartTime)
	actual := now.Sub(c.StartTime)
	if actual > 0 {
		timeEfficiency = estimated.Seconds() / actual.Seconds()
		if timeEfficiency > 1 {
			timeEfficiency = 1
		}
		if timeEfficiency < 0 {
			timeEfficiency = 0
		}
	}

	return &model.CollaborationResults{
		TasksCompleted: completed,
		SuccessRate:    successRate,
		TimeEfficiency: timeEfficiency,
		QualityScore:   qualityScore,
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
