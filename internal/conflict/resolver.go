// Package conflict implements collection and resolution of competing
// proposals for disputed decisions.
package conflict

import (
	"context"
	"fmt"
	"sync"

	"github.com/takumi-oki/chorus/internal/clock"
	"github.com/takumi-oki/chorus/internal/comms"
	"github.com/takumi-oki/chorus/internal/logging"
	"github.com/takumi-oki/chorus/internal/metrics"
	"github.com/takumi-oki/chorus/internal/model"
	"github.com/takumi-oki/chorus/internal/registry"
)

// Scoring weights for performance-based resolution.
const (
	successRateWeight = 0.7
	confidenceWeight  = 0.3
)

// Resolver collects proposals for open conflicts and settles each one once
// enough proposals are in.
type Resolver struct {
	mu        sync.RWMutex
	conflicts map[string]*model.Conflict

	bus      *comms.Bus
	registry registry.TaskRegistry
	notifier registry.Notifier
	clock    clock.Clock
	logger   *logging.Logger
}

// NewResolver creates a conflict resolver.
func NewResolver(bus *comms.Bus, reg registry.TaskRegistry, notifier registry.Notifier, clk clock.Clock, logger *logging.Logger) *Resolver {
	return &Resolver{
		conflicts: make(map[string]*model.Conflict),
		bus:       bus,
		registry:  reg,
		notifier:  notifier,
		clock:     clk,
		logger:    logger,
	}
}

// CreateConflict opens a conflict and immediately requests a proposed
// solution from every involved agent over the bus.
func (r *Resolver) CreateConflict(conflictType model.ConflictType, involvedAgents []string, taskID, description string) (string, error) {
	if len(involvedAgents) == 0 {
		return "", fmt.Errorf("conflict requires at least one involved agent")
	}
	id, err := model.GenerateID(model.IDTypeConflict)
	if err != nil {
		return "", fmt.Errorf("generate conflict ID: %w", err)
	}

	c := &model.Conflict{
		ID:             id,
		Type:           conflictType,
		InvolvedAgents: append([]string(nil), involvedAgents...),
		TaskID:         taskID,
		Description:    description,
		Status:         model.ConflictStatusOpen,
		CreatedAt:      r.clock.Now(),
	}

	r.mu.Lock()
	r.conflicts[id] = c
	r.mu.Unlock()

	for _, agentID := range involvedAgents {
		notice := model.ConflictNotice{
			ConflictID:   id,
			ConflictType: conflictType,
			Description:  description,
		}
		if _, err := r.bus.Send(comms.CoordinatorActor, agentID, notice, model.PriorityHigh, true); err != nil {
			r.logger.Errorf("request_proposal conflict=%s agent=%s: %v", id, agentID, err)
		}
	}

	r.notifier.Record("conflict_created", map[string]any{
		"conflict_id": id,
		"type":        string(conflictType),
		"agents":      len(involvedAgents),
	})
	r.logger.Infof("conflict_created id=%s type=%s task=%s agents=%d", id, conflictType, taskID, len(involvedAgents))
	return id, nil
}

// AddProposal records an agent's proposed solution. Proposals are counted
// raw: a duplicate proposal from an agent that already proposed still counts
// toward the resolution threshold. That matches the observed behavior of the
// system this replaces; dedup by agent would change when resolution fires.
func (r *Resolver) AddProposal(conflictID string, proposal model.Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conflicts[conflictID]
	if !ok {
		return fmt.Errorf("conflict %s: %w", conflictID, model.ErrNotFound)
	}
	if c.Status != model.ConflictStatusOpen {
		return fmt.Errorf("conflict %s is %s, not open", conflictID, c.Status)
	}
	c.Proposals = append(c.Proposals, proposal)
	r.logger.Debugf("proposal_added conflict=%s agent=%s proposals=%d/%d",
		conflictID, proposal.AgentID, len(c.Proposals), len(c.InvolvedAgents))
	return nil
}

// Get returns a copy of the conflict, or model.ErrNotFound.
func (r *Resolver) Get(id string) (model.Conflict, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conflicts[id]
	if !ok {
		return model.Conflict{}, fmt.Errorf("conflict %s: %w", id, model.ErrNotFound)
	}
	return *c, nil
}

// CheckResolutions settles every open conflict whose proposal count has
// reached the involved-agent count. Invoked from the coordination sweep; a
// failed attempt leaves the conflict open for the next sweep.
func (r *Resolver) CheckResolutions(ctx context.Context) {
	r.mu.RLock()
	var ready []string
	for id, c := range r.conflicts {
		if c.Status == model.ConflictStatusOpen && len(c.Proposals) >= len(c.InvolvedAgents) {
			ready = append(ready, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range ready {
		if err := r.resolve(ctx, id); err != nil {
			r.logger.Errorf("resolve conflict=%s: %v", id, err)
		}
	}
}

// resolve scores each proposal by the proposing agent's success rate and the
// proposal's stated confidence, picks the maximum, and notifies every
// involved agent. The resolution is computed exactly once.
func (r *Resolver) resolve(ctx context.Context, conflictID string) error {
	agents, err := r.registry.GetAgents(ctx)
	if err != nil {
		return fmt.Errorf("get agents: %w", err)
	}
	successRates := make(map[string]float64, len(agents))
	for _, a := range agents {
		successRates[a.ID] = a.SuccessRate
	}

	r.mu.Lock()
	c, ok := r.conflicts[conflictID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("conflict %s: %w", conflictID, model.ErrNotFound)
	}
	if c.Status != model.ConflictStatusOpen {
		r.mu.Unlock()
		return nil
	}

	best := -1
	bestScore := -1.0
	for i, p := range c.Proposals {
		score := p.Confidence
		if rate, known := successRates[p.AgentID]; known {
			score = rate*successRateWeight + p.Confidence*confidenceWeight
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}

	chosen := c.Proposals[best]
	c.Resolution = &model.Resolution{
		ChosenSolution: chosen,
		Reasoning: fmt.Sprintf("proposal by %s scored %.3f across %d proposals",
			chosen.AgentID, bestScore, len(c.Proposals)),
		ResolvedBy: model.ResolutionPerformanceBased,
		Timestamp:  r.clock.Now(),
	}
	c.Status = model.ConflictStatusResolved
	involved := append([]string(nil), c.InvolvedAgents...)
	conflictType := c.Type
	description := c.Description
	resolution := *c.Resolution
	r.mu.Unlock()

	for _, agentID := range involved {
		notice := model.ConflictNotice{
			ConflictID:   conflictID,
			ConflictType: conflictType,
			Description:  description,
			Outcome:      &resolution,
		}
		if _, err := r.bus.Send(comms.CoordinatorActor, agentID, notice, model.PriorityHigh, false); err != nil {
			r.logger.Errorf("notify_resolution conflict=%s agent=%s: %v", conflictID, agentID, err)
		}
	}

	metrics.ConflictsResolvedTotal.Inc()
	r.notifier.Record("conflict_resolved", map[string]any{
		"conflict_id": conflictID,
		"chosen_by":   chosen.AgentID,
		"score":       bestScore,
	})
	r.logger.Infof("conflict_resolved id=%s agent=%s score=%.3f", conflictID, chosen.AgentID, bestScore)
	return nil
}
