package model

import "time"

// Task is the external registry's unit of work. The registry owns its
// lifecycle; chorus only observes it through polling.
type Task struct {
	ID            string        `yaml:"id"`
	Type          string        `yaml:"type"`
	Description   string        `yaml:"description,omitempty"`
	Status        TaskStatus    `yaml:"status"`
	Priority      Priority      `yaml:"priority"`
	EstimatedTime time.Duration `yaml:"estimated_time"`
	AssignedAgent string        `yaml:"assigned_agent,omitempty"`
	Dependencies  []string      `yaml:"dependencies,omitempty"`
	ErrorCount    int           `yaml:"error_count"`
}

// Agent is an external worker entity with declared specialties, load, and a
// historical success rate.
type Agent struct {
	ID                 string   `yaml:"id"`
	Type               string   `yaml:"type"`
	Specialties        []string `yaml:"specialties"`
	SuccessRate        float64  `yaml:"success_rate"`
	CurrentLoad        int      `yaml:"current_load"`
	MaxConcurrentTasks int      `yaml:"max_concurrent_tasks"`
	Status             string   `yaml:"status"`
}

// TaskFilter narrows GetTasks results. Zero-value fields are ignored.
type TaskFilter struct {
	Status   TaskStatus
	Type     string
	Priority Priority
	IDs      []string
}

// Matches reports whether a task passes every set filter field.
func (f TaskFilter) Matches(t Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == t.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
