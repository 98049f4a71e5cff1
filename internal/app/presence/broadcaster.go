package presence

import (
	"github.com/rs/zerolog"

	"groupnav/internal/metrics"
	"groupnav/internal/pkg/logx"
)

// Broadcaster announces the presence count to every connected session.
type Broadcaster struct {
	registry *Registry
	hub      *Hub
	logger   zerolog.Logger
}

// NewBroadcaster returns a Broadcaster reading from registry and sending through hub.
func NewBroadcaster(registry *Registry, hub *Hub) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		hub:      hub,
		logger:   logx.Component("presence.broadcaster"),
	}
}

// AnnounceCount sends the current count to every session. The read and the enqueue
// happen under the registry lock, so sessions see counts in mutation order and the
// last count each one receives is the current one.
func (b *Broadcaster) AnnounceCount() {
	b.registry.withCount(func(count int) {
		frame, err := encodeFrame(TypePresenceCount, PresenceCountPayload{Count: count})
		if err != nil {
			b.logger.Error().Err(err).Msg("Failed to encode presence count.")
			return
		}
		delivered := b.hub.Broadcast(frame)
		metrics.PresenceBroadcasts.WithLabelValues(string(TypePresenceCount)).Inc()
		b.logger.Debug().Int("count", count).Int("recipients", delivered).Msg("Presence count announced.")
	})
}

// admit adds s to the hub and queues the current count for it as one step, so its
// first count cannot be older than any announcement it receives afterwards.
func (b *Broadcaster) admit(s *Session) {
	b.registry.withCount(func(count int) {
		b.hub.add(s)
		frame, err := encodeFrame(TypePresenceCount, PresenceCountPayload{Count: count})
		if err != nil {
			b.logger.Error().Err(err).Msg("Failed to encode presence count.")
			return
		}
		s.enqueue(frame)
	})
}
