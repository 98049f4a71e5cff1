package presence

import (
	"github.com/rs/zerolog"

	"groupnav/internal/metrics"
	"groupnav/internal/pkg/logx"
)

// LocationSink accepts coordinates for persistence. Enqueue must not block.
type LocationSink interface {
	Enqueue(userID int64, lat, lng float64)
}

// Relay handles location updates from bound connections.
type Relay struct {
	registry *Registry
	hub      *Hub
	sink     LocationSink
	logger   zerolog.Logger
}

// NewRelay returns a Relay. sink may be nil, in which case nothing is persisted.
func NewRelay(registry *Registry, hub *Hub, sink LocationSink) *Relay {
	return &Relay{
		registry: registry,
		hub:      hub,
		sink:     sink,
		logger:   logx.Component("presence.relay"),
	}
}

// HandleUpdate resolves the sender, hands the coordinate to the sink, updates the
// registry and fans a location_broadcast out to every session, the sender included.
// An unbound connection is logged and ignored. It reports whether a broadcast was sent.
func (r *Relay) HandleUpdate(connID ConnID, lat, lng float64) bool {
	userID, ok := r.registry.Resolve(connID)
	if !ok {
		metrics.RecordDropped("unbound")
		r.logger.Debug().Str("conn_id", string(connID)).Msg("Location update from unbound connection dropped.")
		return false
	}

	if r.sink != nil {
		r.sink.Enqueue(userID, lat, lng)
	}

	var sent bool
	ok = r.registry.publishLocation(connID, lat, lng, func(state LiveUserState) {
		frame, err := encodeFrame(TypeLocationBroadcast, LocationBroadcastPayload{
			UserID:      state.UserID,
			DisplayName: state.DisplayName,
			Latitude:    lat,
			Longitude:   lng,
		})
		if err != nil {
			r.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to encode location broadcast.")
			return
		}
		r.hub.Broadcast(frame)
		sent = true
	})
	if !ok {
		// Unbound between the two steps; the write above is harmless.
		metrics.RecordDropped("unbound")
		return false
	}
	if sent {
		metrics.PresenceBroadcasts.WithLabelValues(string(TypeLocationBroadcast)).Inc()
	}
	return sent
}
