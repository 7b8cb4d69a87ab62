// Package hub fans committed state-change events out to every connected
// session. Fanout is global (no per-task subscriptions), at-most-once, and
// fire-and-forget: a slow or dead subscriber drops frames rather than
// stalling the publisher.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Frame is the wire shape of every broadcast message.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

const subscriberBuffer = 32

type Hub struct {
	log *slog.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func New(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{log: log, subs: map[chan []byte]struct{}{}}
}

// Subscribe registers a session. The returned channel carries marshaled
// frames; cancel must be called exactly once when the session ends.
func (h *Hub) Subscribe() (ch <-chan []byte, cancel func()) {
	c := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[c] = struct{}{}
	h.mu.Unlock()
	return c, func() {
		h.mu.Lock()
		delete(h.subs, c)
		h.mu.Unlock()
		close(c)
	}
}

// Publish marshals one frame and hands it to every live subscriber without
// blocking. Callers invoke it only after the corresponding store mutation
// has committed.
func (h *Hub) Publish(event string, payload any) {
	b, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.log.Error("hub: marshal broadcast", "event", event, "err", err)
		return
	}
	h.mu.Lock()
	for c := range h.subs {
		select {
		case c <- b:
		default:
			// Subscriber buffer full: drop. The client re-syncs on reconnect.
		}
	}
	h.mu.Unlock()
}

// Sessions reports the current subscriber count.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
