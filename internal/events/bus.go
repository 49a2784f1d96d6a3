// Package events provides a non-blocking in-process pub/sub bus. Scheduler
// and coordination notifications fan out through it so observers (audit log,
// metrics, tests) can subscribe without coupling to the core.
package events

import (
	"sync"
	"time"
)

// EventType identifies a published event.
type EventType string

const (
	EventJobScheduled           EventType = "job_scheduled"
	EventJobStarted             EventType = "job_started"
	EventJobCompleted           EventType = "job_completed"
	EventJobFailed              EventType = "job_failed"
	EventJobRetryScheduled      EventType = "job_retry_scheduled"
	EventJobCancelled           EventType = "job_cancelled"
	EventCollaborationCreated   EventType = "collaboration_created"
	EventCollaborationCompleted EventType = "collaboration_completed"
	EventCollaborationFailed    EventType = "collaboration_failed"
	EventConflictCreated        EventType = "conflict_created"
	EventConflictResolved       EventType = "conflict_resolved"
	EventMessageSent            EventType = "message_sent"
	EventKnowledgeAdded         EventType = "knowledge_added"
	EventInsightRecorded        EventType = "insight_recorded"
)

// Event is one published occurrence.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]any
}

// Subscriber receives events.
type Subscriber func(Event)

// Bus delivers events asynchronously over buffered channels. If a
// subscriber's channel is full the event is dropped for that subscriber;
// publishers never block.
type Bus struct {
	mu         sync.RWMutex
	byType     map[EventType][]chan Event
	all        []chan Event
	bufferSize int
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		byType:     make(map[EventType][]chan Event),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a subscriber for one event type and returns an
// unsubscribe function.
func (b *Bus) Subscribe(t EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := b.startSubscriber(fn)
	b.byType[t] = append(b.byType[t], ch)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byType[t] = removeChan(b.byType[t], ch)
	}
}

// SubscribeAll registers a subscriber for every event type.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := b.startSubscriber(fn)
	b.all = append(b.all, ch)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = removeChan(b.all, ch)
	}
}

func (b *Bus) startSubscriber(fn Subscriber) chan Event {
	ch := make(chan Event, b.bufferSize)
	go func() {
		for event := range ch {
			func() {
				defer func() {
					// A panicking subscriber must not take the bus down.
					recover()
				}()
				fn(event)
			}()
		}
	}()
	return ch
}

func removeChan(subs []chan Event, target chan Event) []chan Event {
	for i, ch := range subs {
		if ch == target {
			close(ch)
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

// Publish sends an event to type subscribers and all-subscribers without
// blocking. Full channels drop the event.
func (b *Bus) Publish(t EventType, data map[string]any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
	for _, ch := range b.byType[t] {
		select {
		case ch <- event:
		default:
		}
	}
	for _, ch := range b.all {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close shuts down all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.byType {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.byType, t)
	}
	for _, ch := range b.all {
		close(ch)
	}
	b.all = nil
}
