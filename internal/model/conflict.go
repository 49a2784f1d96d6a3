package model

import "time"

type ConflictType string

const (
	ConflictResource             ConflictType = "resource_conflict"
	ConflictApproachDisagreement ConflictType = "approach_disagreement"
	ConflictPriority             ConflictType = "priority_conflict"
	ConflictKnowledgeDiscrepancy ConflictType = "knowledge_discrepancy"
)

// ResolutionStrategy names how a conflict outcome was (or could be) chosen.
// Only performance_based is implemented; the others are declared extension
// points.
type ResolutionStrategy string

const (
	ResolutionPerformanceBased ResolutionStrategy = "performance_based"
	ResolutionVoting           ResolutionStrategy = "voting"
	ResolutionSupervisor       ResolutionStrategy = "supervisor"
	ResolutionConsensus        ResolutionStrategy = "consensus"
)

// Proposal is one agent's suggested solution to a conflict.
type Proposal struct {
	AgentID    string  `yaml:"agent_id"`
	Solution   string  `yaml:"solution"`
	Reasoning  string  `yaml:"reasoning,omitempty"`
	Confidence float64 `yaml:"confidence"`
}

// Resolution records a settled conflict. It is computed once and never
// recomputed after the conflict is resolved.
type Resolution struct {
	ChosenSolution Proposal           `yaml:"chosen_solution"`
	Reasoning      string             `yaml:"reasoning"`
	ResolvedBy     ResolutionStrategy `yaml:"resolved_by"`
	Timestamp      time.Time          `yaml:"timestamp"`
}

// Conflict is a disputed decision requiring multi-party input.
type Conflict struct {
	ID             string         `yaml:"id"`
	Type           ConflictType   `yaml:"type"`
	InvolvedAgents []string       `yaml:"involved_agents"`
	TaskID         string         `yaml:"task_id,omitempty"`
	Description    string         `yaml:"description"`
	Proposals      []Proposal     `yaml:"proposals"`
	Resolution     *Resolution    `yaml:"resolution,omitempty"`
	Status         ConflictStatus `yaml:"status"`
	CreatedAt      time.Time      `yaml:"created_at"`
}
