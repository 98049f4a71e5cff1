package presence

import (
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"groupnav/internal/metrics"
	"groupnav/internal/pkg/req"
)

// State is a session's position in its lifecycle.
type State int32

const (
	StateUnbound State = iota
	StateBound
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// CloseReason records why a session ended.
type CloseReason string

const (
	ReasonLeave        CloseReason = "leave"
	ReasonDisconnect   CloseReason = "disconnect"
	ReasonWriteError   CloseReason = "write_error"
	ReasonSlowConsumer CloseReason = "slow_consumer"
	ReasonShutdown     CloseReason = "shutdown"
)

// Session is the server side of one connection: Unbound until a valid join, Bound
// afterwards, Closed exactly once whatever ends it.
type Session struct {
	id  ConnID
	svc *Service

	// claimedUserID is the user id proven by an access token, 0 when none was presented.
	claimedUserID int64

	mu    sync.Mutex
	state State

	send chan []byte
	done chan struct{}

	closeOnce   sync.Once
	closeReason atomic.Value
	evicting    atomic.Bool

	logger zerolog.Logger
}

// ID returns the connection id.
func (s *Session) ID() ConnID { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the user this session currently speaks for. ok is false before a
// join, after Close, and once a newer connection for the same user has taken over.
func (s *Session) UserID() (id int64, ok bool) {
	return s.svc.registry.Resolve(s.id)
}

// Outbound is the queue of encoded frames waiting to be written to the client.
func (s *Session) Outbound() <-chan []byte { return s.send }

// Done is closed when the session enters Closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Reason returns why the session closed, or "" while it is open.
func (s *Session) Reason() CloseReason {
	if r, ok := s.closeReason.Load().(CloseReason); ok {
		return r
	}
	return ""
}

// HandleFrame decodes one inbound frame and dispatches it. Malformed, invalid or
// unknown frames are logged and dropped; they never end the session.
func (s *Session) HandleFrame(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		metrics.RecordDropped("malformed")
		s.logger.Warn().Err(err).Int("bytes", len(raw)).Msg("Client sent invalid JSON")
		return
	}

	metrics.PresenceMessagesReceived.WithLabelValues(string(env.Type)).Inc()

	switch env.Type {
	case TypeJoin:
		var p JoinPayload
		if !s.decode(env, &p) {
			return
		}
		s.Join(p.UserID, p.DisplayName)

	case TypeLocationUpdate:
		var p LocationPayload
		if !s.decode(env, &p) {
			return
		}
		s.UpdateLocation(*p.Latitude, *p.Longitude)

	case TypeLeave:
		s.Close(ReasonLeave)

	default:
		metrics.RecordDropped("unknown_type")
		s.logger.Warn().Str("msg_type", string(env.Type)).Msg("Client sent unsupported message type")
	}
}

func (s *Session) decode(env Envelope, dst any) bool {
	if len(env.Payload) == 0 {
		metrics.RecordDropped("invalid")
		s.logger.Warn().Str("msg_type", string(env.Type)).Msg("Client sent message without payload")
		return false
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		metrics.RecordDropped("malformed")
		s.logger.Warn().Err(err).Str("msg_type", string(env.Type)).Msg("Client sent invalid payload")
		return false
	}
	if customErr := req.ValidateStruct(dst); customErr != nil {
		metrics.RecordDropped("invalid")
		s.logger.Warn().Str("msg_type", string(env.Type)).Str("reason", customErr.Message).Msg("Client sent incomplete payload")
		return false
	}
	return true
}

// Join binds the session to userID and announces the new count. The joiner then
// receives a snapshot of everyone present. A join contradicting the access token the
// connection was opened with is dropped, as is any join after Closed.
func (s *Session) Join(userID int64, displayName string) bool {
	if s.claimedUserID != 0 && s.claimedUserID != userID {
		metrics.RecordDropped("forged")
		s.logger.Warn().
			Int64("claimed_user_id", s.claimedUserID).
			Int64("join_user_id", userID).
			Msg("Join for a different user than the access token; dropped.")
		return false
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return false
	}
	s.svc.registry.Bind(s.id, userID, displayName)
	s.state = StateBound
	s.mu.Unlock()

	s.logger.Info().Int64("user_id", userID).Str("display_name", displayName).Msg("Session joined.")

	s.svc.broadcaster.AnnounceCount()
	s.sendSnapshot()
	return true
}

// UpdateLocation routes a position report through the relay. Reports from an
// unbound session are dropped.
func (s *Session) UpdateLocation(lat, lng float64) bool {
	if s.State() != StateBound {
		metrics.RecordDropped("unbound")
		s.logger.Debug().Msg("Location update before join dropped.")
		return false
	}
	return s.svc.relay.HandleUpdate(s.id, lat, lng)
}

// Close moves the session to Closed. Only the first call has any effect: it unbinds
// the connection, removes it from the hub and announces the count.
func (s *Session) Close(reason CloseReason) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		s.closeReason.Store(reason)
		close(s.done)

		s.svc.hub.remove(s.id)
		if state, ok := s.svc.registry.Unbind(s.id); ok {
			s.logger.Info().Int64("user_id", state.UserID).Str("display_name", state.DisplayName).Msg("User left.")
		}
		s.svc.broadcaster.AnnounceCount()

		metrics.PresenceConnections.Dec()
		s.logger.Info().Str("reason", string(reason)).Msg("Session closed.")
	})
}

func (s *Session) sendSnapshot() {
	frame, err := encodeFrame(TypePresenceSnapshot, PresenceSnapshotPayload{Users: s.svc.registry.Snapshot()})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode presence snapshot.")
		return
	}
	if !s.enqueue(frame) {
		s.evict()
	}
}

// enqueue queues frame without blocking and reports whether there was room.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}

	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// evict closes a session that cannot keep up. The close runs on its own goroutine
// because callers may hold the registry lock.
func (s *Session) evict() {
	if !s.evicting.CompareAndSwap(false, true) {
		return
	}
	metrics.PresenceEvictions.Inc()
	s.logger.Warn().Int("queue_len", len(s.send)).Msg("Send queue full; closing session.")
	go s.Close(ReasonSlowConsumer)
}
