package events

import (
	"fmt"
	"log"
	"sort"
	"time"
)

// BusNotifier implements the notification sink over the event bus. Record is
// fire-and-forget: it recovers any panic and never reports failure to the
// caller.
type BusNotifier struct {
	bus *Bus
}

// NewBusNotifier wraps a bus as a notifier.
func NewBusNotifier(bus *Bus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

func (n *BusNotifier) Record(event string, properties map[string]any) {
	defer func() {
		recover()
	}()
	n.bus.Publish(EventType(event), properties)
}

// AuditLogger subscribes to every event on a bus and appends key=value lines
// to the given logger. Returns an unsubscribe function.
func AuditLogger(bus *Bus, logger *log.Logger) func() {
	return bus.SubscribeAll(func(e Event) {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		line := fmt.Sprintf("%s AUDIT event=%s", e.Timestamp.Format(time.RFC3339), e.Type)
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%v", k, e.Data[k])
		}
		logger.Print(line)
	})
}
