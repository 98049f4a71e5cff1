package presence

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"groupnav/internal/metrics"
	"groupnav/internal/pkg/logx"
)

// DefaultSendBuffer is the per-session outbound queue length used when Options leaves it unset.
const DefaultSendBuffer = 64

// Options configures a Service.
type Options struct {
	// SendBuffer is the outbound queue length of each session.
	SendBuffer int

	// Sink receives coordinates for persistence; nil disables persistence.
	Sink LocationSink
}

// Service owns the single live room: one Registry, one Hub and the components that
// act on them. It is created once at startup and handed to the transport.
type Service struct {
	registry    *Registry
	hub         *Hub
	broadcaster *Broadcaster
	relay       *Relay

	sendBuffer int
	logger     zerolog.Logger
}

// NewService wires a Service.
func NewService(opts Options) *Service {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}

	registry := NewRegistry()
	hub := NewHub()

	return &Service{
		registry:    registry,
		hub:         hub,
		broadcaster: NewBroadcaster(registry, hub),
		relay:       NewRelay(registry, hub, opts.Sink),
		sendBuffer:  opts.SendBuffer,
		logger:      logx.Component("presence"),
	}
}

// Registry exposes the presence table for read-only views.
func (s *Service) Registry() *Registry { return s.registry }

// Count returns the number of distinct joined users.
func (s *Service) Count() int { return s.registry.Count() }

// Snapshot returns the state of every joined user.
func (s *Service) Snapshot() []LiveUserState { return s.registry.Snapshot() }

// Connections returns the number of open sessions, joined or not.
func (s *Service) Connections() int { return s.hub.Len() }

// Connect creates an Unbound session and adds it to the hub. claimedUserID is the
// user proven by an access token, or 0. The session's first frame is the current count.
func (s *Service) Connect(claimedUserID int64) *Session {
	return s.connect(claimedUserID, s.sendBuffer)
}

func (s *Service) connect(claimedUserID int64, sendBuffer int) *Session {
	id := ConnID(uuid.NewString())

	session := &Session{
		id:            id,
		svc:           s,
		claimedUserID: claimedUserID,
		state:         StateUnbound,
		send:          make(chan []byte, sendBuffer),
		done:          make(chan struct{}),
		logger:        s.logger.With().Str("conn_id", string(id)).Logger(),
	}

	metrics.PresenceConnections.Inc()
	s.broadcaster.admit(session)

	session.logger.Debug().Int64("claimed_user_id", claimedUserID).Msg("Session connected.")
	return session
}

// Shutdown closes every open session.
func (s *Service) Shutdown() {
	sessions := s.hub.snapshot()
	for _, session := range sessions {
		session.Close(ReasonShutdown)
	}
	s.logger.Info().Int("sessions", len(sessions)).Msg("Presence service shut down.")
}

// Serve blocks until ctx is done, then closes every session.
func (s *Service) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.Shutdown()
	return ctx.Err()
}

// String names the service for the supervisor.
func (s *Service) String() string { return "presence" }
