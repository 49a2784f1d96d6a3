package model

import "time"

type CoordinationType string

const (
	CoordinationParallel     CoordinationType = "parallel"
	CoordinationSequential   CoordinationType = "sequential"
	CoordinationHierarchical CoordinationType = "hierarchical"
	CoordinationPeerToPeer   CoordinationType = "peer_to_peer"
)

// Participant binds an agent to its role within a collaboration.
type Participant struct {
	AgentID string `yaml:"agent_id"`
	Role    string `yaml:"role"`
}

// CollaborationResults is populated exactly once, at the transition into
// completed, and never recomputed afterward.
type CollaborationResults struct {
	TasksCompleted int     `yaml:"tasks_completed"`
	SuccessRate    float64 `yaml:"success_rate"`
	TimeEfficiency float64 `yaml:"time_efficiency"`
	QualityScore   float64 `yaml:"quality_score"`
}

// Collaboration is a named grouping of tasks under one coordination topology.
type Collaboration struct {
	ID                  string                `yaml:"id"`
	Name                string                `yaml:"name"`
	Description         string                `yaml:"description,omitempty"`
	Participants        []Participant         `yaml:"participants"`
	TaskIDs             []string              `yaml:"task_ids"`
	Type                CoordinationType      `yaml:"type"`
	Status              CollaborationStatus   `yaml:"status"`
	StartTime           time.Time             `yaml:"start_time"`
	EstimatedCompletion time.Time             `yaml:"estimated_completion"`
	ActualCompletion    *time.Time            `yaml:"actual_completion,omitempty"`
	Results             *CollaborationResults `yaml:"results,omitempty"`
}
