package presence

import (
	"sync"
)

// Hub is the set of connected sessions, bound or not. Broadcast delivers to a
// snapshot of that set without blocking: a session whose queue is full is evicted
// and the others are unaffected.
type Hub struct {
	mu       sync.RWMutex
	sessions map[ConnID]*Session
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[ConnID]*Session)}
}

func (h *Hub) add(s *Session) {
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
}

func (h *Hub) remove(id ConnID) {
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
}

// Len returns the number of connected sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// Broadcast queues frame on every connected session and returns how many accepted it.
func (h *Hub) Broadcast(frame []byte) int {
	delivered := 0
	for _, s := range h.snapshot() {
		if s.enqueue(frame) {
			delivered++
			continue
		}
		s.evict()
	}
	return delivered
}
