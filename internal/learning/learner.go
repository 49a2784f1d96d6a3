// Package learning derives insights about agent performance and feeds them
// into the knowledge store. Nothing else in the core consumes insights; the
// sweep is a forward-looking hook.
package learning

import (
	"context"
	"fmt"

	"github.com/takumi-oki/chorus/internal/clock"
	"github.com/takumi-oki/chorus/internal/knowledge"
	"github.com/takumi-oki/chorus/internal/logging"
	"github.com/takumi-oki/chorus/internal/model"
	"github.com/takumi-oki/chorus/internal/registry"
)

// highPerformerThreshold marks agents whose track record is worth recording
// as a pattern for their specialties.
const highPerformerThreshold = 0.8

// Learner runs the periodic learning sweep.
type Learner struct {
	registry  registry.TaskRegistry
	knowledge *knowledge.Store
	notifier  registry.Notifier
	clock     clock.Clock
	logger    *logging.Logger
}

func New(reg registry.TaskRegistry, store *knowledge.Store, notifier registry.Notifier, clk clock.Clock, logger *logging.Logger) *Learner {
	return &Learner{
		registry:  reg,
		knowledge: store,
		notifier:  notifier,
		clock:     clk,
		logger:    logger,
	}
}

// Sweep derives one insight per (high-performing agent, specialty) pair and
// merges it into the knowledge store. Repeated sweeps re-merge the same
// pattern, which only nudges the stored confidence upward.
func (l *Learner) Sweep(ctx context.Context) {
	agents, err := l.registry.GetAgents(ctx)
	if err != nil {
		l.logger.Errorf("learning_sweep: get agents: %v", err)
		return
	}

	derived := 0
	for _, agent := range agents {
		if agent.SuccessRate < highPerformerThreshold {
			continue
		}
		for _, specialty := range agent.Specialties {
			insight := l.insightFor(agent, specialty)
			l.knowledge.Add(agent.ID, specialty, model.KnowledgeSet{
				Patterns: []string{insight.Observation},
			}, agent.SuccessRate)
			l.notifier.Record("insight_recorded", map[string]any{
				"agent_id": agent.ID,
				"domain":   specialty,
			})
			derived++
		}
	}
	if derived > 0 {
		l.logger.Infof("learning_sweep insights=%d agents=%d", derived, len(agents))
	}
}

func (l *Learner) insightFor(agent model.Agent, domain string) model.LearningInsight {
	id, _ := model.GenerateID(model.IDTypeInsight)
	return model.LearningInsight{
		ID:      id,
		AgentID: agent.ID,
		Domain:  domain,
		Observation: fmt.Sprintf("agent %s sustains a %.0f%% success rate on %s work",
			agent.ID, agent.SuccessRate*100, domain),
		Confidence: agent.SuccessRate,
		CreatedAt:  l.clock.Now(),
	}
}
