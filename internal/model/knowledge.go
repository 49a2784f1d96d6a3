package model

import "time"

// KnowledgeSet groups the four deduplicated knowledge categories an agent
// accumulates per domain.
type KnowledgeSet struct {
	Patterns      []string `yaml:"patterns,omitempty"`
	Solutions     []string `yaml:"solutions,omitempty"`
	BestPractices []string `yaml:"best_practices,omitempty"`
	CommonIssues  []string `yaml:"common_issues,omitempty"`
}

// KnowledgeEntry is one agent's accumulated expertise in one domain.
type KnowledgeEntry struct {
	AgentID     string       `yaml:"agent_id"`
	Domain      string       `yaml:"domain"`
	Knowledge   KnowledgeSet `yaml:"knowledge"`
	Confidence  float64      `yaml:"confidence"`
	LastUpdated time.Time    `yaml:"last_updated"`
	UsageCount  int          `yaml:"usage_count"`
}

// LearningInsight is a derived observation about agent performance. It feeds
// the knowledge store only; nothing else in the core consumes it.
type LearningInsight struct {
	ID          string    `yaml:"id"`
	AgentID     string    `yaml:"agent_id"`
	Domain      string    `yaml:"domain"`
	Observation string    `yaml:"observation"`
	Confidence  float64   `yaml:"confidence"`
	CreatedAt   time.Time `yaml:"created_at"`
}
