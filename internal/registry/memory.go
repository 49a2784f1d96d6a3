package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/takumi-oki/chorus/internal/model"
)

// Memory is an in-memory TaskRegistry. It backs the test suites and the demo
// daemon mode; a production deployment swaps in a client for the real
// registry service.
type Memory struct {
	mu      sync.RWMutex
	tasks   map[string]model.Task
	agents  map[string]model.Agent
	stopped bool
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		tasks:  make(map[string]model.Task),
		agents: make(map[string]model.Agent),
	}
}

func (m *Memory) SubmitTask(ctx context.Context, spec TaskSpec) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return "", fmt.Errorf("registry stopped")
	}
	id := "task_" + uuid.NewString()
	priority := spec.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	m.tasks[id] = model.Task{
		ID:           id,
		Type:         spec.Type,
		Description:  spec.Description,
		Status:       model.TaskStatusPending,
		Priority:     priority,
		Dependencies: spec.Dependencies,
	}
	return id, nil
}

func (m *Memory) GetTask(ctx context.Context, id string) (*model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) GetTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Task
	for _, t := range m.tasks {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) GetAgents(ctx context.Context) ([]model.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) StopProcessing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// PutTask inserts or replaces a task. Test helper; the real registry owns
// task lifecycles.
func (m *Memory) PutTask(t model.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
}

// SetTaskStatus updates one task's status in place.
func (m *Memory) SetTaskStatus(id string, status model.TaskStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		t.Status = status
		m.tasks[id] = t
	}
}

// PutAgent inserts or replaces an agent.
func (m *Memory) PutAgent(a model.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[a.ID] = a
}
