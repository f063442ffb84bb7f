// Package stream fans submission lifecycle events out to live listeners.
// Publishing never blocks: a slow subscriber just misses events.
package stream

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventSubmissionAccepted = "submission.accepted"
	EventClientBlocked      = "client.blocked"
	EventRetentionPruned    = "retention.pruned"
)

type Event struct {
	Type string          `json:"type"`
	At   string          `json:"at"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewEvent(eventType string, data interface{}) Event {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	return Event{Type: eventType, At: time.Now().UTC().Format(time.RFC3339Nano), Data: raw}
}

// SubmissionAccepted announces a freshly persisted record without leaking
// its field values.
func SubmissionAccepted(id, clientAddress string, suspicious bool) Event {
	return NewEvent(EventSubmissionAccepted, map[string]interface{}{
		"submissionId":  id,
		"clientAddress": clientAddress,
		"suspicious":    suspicious,
	})
}

func ClientBlocked(clientAddress, reason string) Event {
	return NewEvent(EventClientBlocked, map[string]string{
		"clientAddress": clientAddress,
		"reason":        reason,
	})
}

func RetentionPruned(removed int) Event {
	return NewEvent(EventRetentionPruned, map[string]int{"removed": removed})
}

type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[chan Event]struct{}{}}
}

func (h *Hub) Subscribe(buffer int) chan Event {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan Event, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	_, exists := h.subs[ch]
	if exists {
		delete(h.subs, ch)
	}
	h.mu.Unlock()
	if exists {
		close(ch)
	}
}

func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
