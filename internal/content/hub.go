package content

import (
	"sync"
	"sync/atomic"
	"time"

	"newswatch/internal/metrics"
)

const (
	EventArticlesChanged     = "articles_changed"
	EventNotificationSettled = "notification_settled"
)

// Event is a hub message. Type selects which optional fields are set.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`

	ArticleCount int `json:"article_count,omitempty"`

	NotificationUUID string `json:"notification_uuid,omitempty"`
	SignalUUID       string `json:"signal_uuid,omitempty"`
	SignalName       string `json:"signal_name,omitempty"`
	Delivered        int    `json:"delivered,omitempty"`
	Failed           int    `json:"failed,omitempty"`
}

// Hub fans out events to in-process subscribers by event type.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event
	dropped uint64
}

func NewHub() *Hub {
	return &Hub{subs: map[string][]chan Event{}}
}

// Subscribe returns a channel that receives events of the given type.
func (h *Hub) Subscribe(eventType string, buf int) <-chan Event {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Event, buf)
	h.mu.Lock()
	h.subs[eventType] = append(h.subs[eventType], ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (h *Hub) Unsubscribe(eventType string, ch <-chan Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[eventType]
	kept := make([]chan Event, 0, len(subs))
	for _, sub := range subs {
		if sub == ch {
			close(sub)
			continue
		}
		kept = append(kept, sub)
	}
	h.subs[eventType] = kept
}

func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[event.Type] {
		select {
		case ch <- event:
		default:
			// Drop when the subscriber is slow; publishing must not block.
			atomic.AddUint64(&h.dropped, 1)
			metrics.StreamDropped.Inc()
		}
	}
}

// Dropped reports how many events were discarded because a subscriber
// buffer was full.
func (h *Hub) Dropped() uint64 {
	if h == nil {
		return 0
	}
	return atomic.LoadUint64(&h.dropped)
}
