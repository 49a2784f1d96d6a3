package collab

import (
	"sort"
	"strings"

	"github.com/takumi-oki/chorus/internal/model"
)

// Scoring constants for agent selection.
const (
	specialtyMatchScore = 10.0
	successRateWeight   = 20.0
	loadPenaltyWeight   = 15.0
	architectBonus      = 15.0
	developerBonus      = 10.0
	knowledgeWeight     = 5.0
)

// Selection caps per topology; every cap is further limited by task count.
func maxAgentsFor(coordinationType model.CoordinationType) int {
	switch coordinationType {
	case model.CoordinationHierarchical:
		return 3
	case model.CoordinationSequential:
		return 2
	default:
		return 4
	}
}

type scoredAgent struct {
	agent model.Agent
	score float64
}

// scoreAgents ranks candidate agents for a task set under a topology,
// descending by score.
func (m *Manager) scoreAgents(agents []model.Agent, tasks []model.Task, coordinationType model.CoordinationType) []scoredAgent {
	scored := make([]scoredAgent, 0, len(agents))
	for _, agent := range agents {
		score := 0.0

		for _, task := range tasks {
			if specialtyOverlap(task.Type, agent.Specialties) {
				score += specialtyMatchScore
			}
		}

		score += agent.SuccessRate * successRateWeight

		if agent.MaxConcurrentTasks > 0 {
			score -= float64(agent.CurrentLoad) / float64(agent.MaxConcurrentTasks) * loadPenaltyWeight
		}

		switch {
		case coordinationType == model.CoordinationHierarchical && agent.Type == "architect":
			score += architectBonus
		case coordinationType == model.CoordinationPeerToPeer && agent.Type == "developer":
			score += developerBonus
		}

		for _, task := range tasks {
			score += m.knowledge.Confidence(agent.ID, task.Type) * knowledgeWeight
		}

		scored = append(scored, scoredAgent{agent: agent, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	return scored
}

// selectAgents returns the top-ranked agents, capped by topology and task
// count.
func (m *Manager) selectAgents(agents []model.Agent, tasks []model.Task, coordinationType model.CoordinationType) []model.Agent {
	limit := maxAgentsFor(coordinationType)
	if len(tasks) < limit {
		limit = len(tasks)
	}

	scored := m.scoreAgents(agents, tasks, coordinationType)
	if len(scored) < limit {
		limit = len(scored)
	}

	selected := make([]model.Agent, 0, limit)
	for _, sa := range scored[:limit] {
		selected = append(selected, sa.agent)
	}
	return selected
}

// assignRoles binds each selected agent to its role under the topology.
func assignRoles(agents []model.Agent, coordinationType model.CoordinationType) []model.Participant {
	participants := make([]model.Participant, 0, len(agents))
	for i, agent := range agents {
		role := ""
		switch coordinationType {
		case model.CoordinationHierarchical:
			switch agent.Type {
			case "architect":
				role = "coordinator"
			case "reviewer":
				role = "quality_controller"
			default:
				role = "executor"
			}
		case model.CoordinationPeerToPeer:
			role = "peer"
		case model.CoordinationSequential:
			switch {
			case i == 0:
				role = "initiator"
			case i == len(agents)-1:
				role = "finalizer"
			default:
				role = "processor"
			}
		default: // parallel
			role = "parallel_executor"
		}
		participants = append(participants, model.Participant{AgentID: agent.ID, Role: role})
	}
	return participants
}

// specialtyOverlap reports whether any token of the task type matches any
// token of the agent's declared specialties.
func specialtyOverlap(taskType string, specialties []string) bool {
	taskTokens := tokenize(taskType)
	for _, specialty := range specialties {
		for st := range tokenize(specialty) {
			if taskTokens[st] {
				return true
			}
		}
	}
	return false
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '/'
	}) {
		tokens[tok] = true
	}
	return tokens
}
