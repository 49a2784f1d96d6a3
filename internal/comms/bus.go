// Package comms implements the communication bus: directed messages between
// named actors with a forward-only lifecycle and optional synchronous
// response.
package comms

import (
	"fmt"
	"sort"
	"sync"

	"github.com/takumi-oki/chorus/internal/clock"
	"github.com/takumi-oki/chorus/internal/knowledge"
	"github.com/takumi-oki/chorus/internal/logging"
	"github.com/takumi-oki/chorus/internal/metrics"
	"github.com/takumi-oki/chorus/internal/model"
	"github.com/takumi-oki/chorus/internal/registry"
)

// CoordinatorActor is the bus name under which the engine itself sends and
// receives messages.
const CoordinatorActor = "coordinator"

// maxRecommendations caps the textual recommendations built for an
// assistance request.
const maxRecommendations = 3

// Bus routes communications and dispatches each one synchronously to its
// type-specific handler.
type Bus struct {
	mu       sync.RWMutex
	messages map[string]*model.Communication

	knowledge *knowledge.Store
	notifier  registry.Notifier
	clock     clock.Clock
	logger    *logging.Logger
}

// NewBus creates a communication bus.
func NewBus(store *knowledge.Store, notifier registry.Notifier, clk clock.Clock, logger *logging.Logger) *Bus {
	return &Bus{
		messages:  make(map[string]*model.Communication),
		knowledge: store,
		notifier:  notifier,
		clock:     clk,
		logger:    logger,
	}
}

// Send creates a communication in pending state and dispatches it. The
// handler for the payload's type may advance the status and attach a
// response before Send returns.
func (b *Bus) Send(from, to string, payload model.Payload, priority model.Priority, requiresResponse bool) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("nil payload")
	}
	id, err := model.GenerateID(model.IDTypeMessage)
	if err != nil {
		return "", fmt.Errorf("generate message ID: %w", err)
	}
	if priority == "" {
		priority = model.PriorityMedium
	}

	msg := &model.Communication{
		ID:               id,
		From:             from,
		To:               to,
		Type:             payload.Kind(),
		Payload:          payload,
		Priority:         priority,
		Timestamp:        b.clock.Now(),
		Status:           model.MessageStatusPending,
		RequiresResponse: requiresResponse,
	}

	b.mu.Lock()
	b.messages[id] = msg
	b.mu.Unlock()

	metrics.MessagesTotal.WithLabelValues(string(msg.Type)).Inc()
	b.logger.Debugf("send id=%s from=%s to=%s type=%s priority=%s", id, from, to, msg.Type, priority)

	b.dispatch(msg)
	b.notifier.Record("message_sent", map[string]any{
		"message_id": id,
		"from":       from,
		"to":         to,
		"type":       string(msg.Type),
	})
	return id, nil
}

// Get returns a copy of the communication, or model.ErrNotFound.
func (b *Bus) Get(id string) (model.Communication, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	msg, ok := b.messages[id]
	if !ok {
		return model.Communication{}, fmt.Errorf("message %s: %w", id, model.ErrNotFound)
	}
	return *msg, nil
}

// For returns all communications addressed to an actor, oldest first.
func (b *Bus) For(actor string) []model.Communication {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []model.Communication
	for _, msg := range b.messages {
		if msg.To == actor {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Respond attaches a response to a message and marks it resolved. Used by
// agents answering a requiresResponse message asynchronously.
func (b *Bus) Respond(id string, payload map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, ok := b.messages[id]
	if !ok {
		return fmt.Errorf("message %s: %w", id, model.ErrNotFound)
	}
	if msg.Response != nil {
		return fmt.Errorf("message %s already has a response", id)
	}
	if msg.Status != model.MessageStatusResolved {
		if err := model.ValidateMessageTransition(msg.Status, model.MessageStatusResolved); err != nil {
			return err
		}
		msg.Status = model.MessageStatusResolved
	}
	msg.Response = &model.Response{Payload: payload, Timestamp: b.clock.Now()}
	return nil
}

// dispatch advances the message through delivery and the type handler.
// Handler errors leave the message delivered for a later retry; they never
// propagate to the sender.
func (b *Bus) dispatch(msg *model.Communication) {
	b.advance(msg.ID, model.MessageStatusDelivered)

	switch p := msg.Payload.(type) {
	case model.AssistanceRequest:
		b.handleAssistanceRequest(msg, p)
	case model.KnowledgeShare:
		b.handleKnowledgeShare(msg, p)
	case model.TaskCoordination, model.StatusReport, model.ConflictNotice:
		// Deeper semantics live in the collaboration manager and conflict
		// resolver, which call back into the bus with outcomes.
		b.advance(msg.ID, model.MessageStatusAcknowledged)
	default:
		b.logger.Warnf("unhandled payload type=%s id=%s", msg.Type, msg.ID)
	}
}

// handleAssistanceRequest builds recommendations from agents with confident
// knowledge in the requested domain and resolves the message with them.
func (b *Bus) handleAssistanceRequest(msg *model.Communication, req model.AssistanceRequest) {
	entries := b.knowledge.FindWithKnowledge(req.Domain)

	var recommendations []string
	for _, entry := range entries {
		if len(recommendations) >= maxRecommendations {
			break
		}
		if len(entry.Knowledge.Solutions) > 0 {
			recommendations = append(recommendations, fmt.Sprintf(
				"%s (confidence %.2f): %s", entry.AgentID, entry.Confidence, entry.Knowledge.Solutions[0]))
			continue
		}
		if len(entry.Knowledge.BestPractices) > 0 {
			recommendations = append(recommendations, fmt.Sprintf(
				"%s (confidence %.2f): %s", entry.AgentID, entry.Confidence, entry.Knowledge.BestPractices[0]))
		}
	}

	b.mu.Lock()
	stored := b.messages[msg.ID]
	stored.Response = &model.Response{
		Payload: map[string]any{
			"domain":          req.Domain,
			"recommendations": recommendations,
			"sources":         len(entries),
		},
		Timestamp: b.clock.Now(),
	}
	b.mu.Unlock()

	b.advance(msg.ID, model.MessageStatusResolved)
	b.logger.Infof("assistance_resolved id=%s domain=%s recommendations=%d", msg.ID, req.Domain, len(recommendations))
}

// handleKnowledgeShare merges shared knowledge into the store attributed to
// the originating agent and acknowledges the message.
func (b *Bus) handleKnowledgeShare(msg *model.Communication, share model.KnowledgeShare) {
	b.knowledge.Add(msg.From, share.Domain, share.Knowledge, share.Confidence)
	b.advance(msg.ID, model.MessageStatusAcknowledged)
	b.notifier.Record("knowledge_added", map[string]any{
		"agent_id": msg.From,
		"domain":   share.Domain,
	})
	b.logger.Infof("knowledge_shared id=%s from=%s to=%s domain=%s", msg.ID, msg.From, msg.To, share.Domain)
}

func (b *Bus) advance(id string, to model.MessageStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, ok := b.messages[id]
	if !ok {
		return
	}
	if err := model.ValidateMessageTransition(msg.Status, to); err != nil {
		b.logger.Errorf("advance id=%s: %v", id, err)
		return
	}
	msg.Status = to
}
