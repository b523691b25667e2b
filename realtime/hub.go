package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"wellkit/core"
)

// Hub fans reward events out to live subscribers. A subscription can be
// scoped to one user, so a client only sees its own coin and badge events,
// or left unscoped for firehose consumers.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	user core.UserID // empty matches every user
	ch   chan core.Event
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe registers a channel for the given user's events. An empty user
// id receives everything. Slow consumers lose events rather than block the
// reward pipeline.
func (h *Hub) Subscribe(user core.UserID, buffer int) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan core.Event, buffer)
	h.subs[id] = subscriber{user: user, ch: ch}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	h.mu.RLock()
	// copy to avoid holding lock during send
	receivers := make([]chan core.Event, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.user != "" && sub.user != ev.UserID {
			continue
		}
		receivers = append(receivers, sub.ch)
	}
	h.mu.RUnlock()
	for _, ch := range receivers {
		select {
		case ch <- ev:
		default: /* drop if full */
		}
	}
}

// MarshalJSON is a helper to convert events to JSON bytes for WebSocket/SSE.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
