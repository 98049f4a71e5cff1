/*
Package supervisor runs the long-lived parts of the server under a suture tree.

The tree has two layers. The presence layer holds the live session service and the
location writer; the api layer holds the HTTP server and the rate limiter sweepers.
A crash in one layer is restarted without taking the other down.
*/
package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"groupnav/internal/pkg/logx"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay, in seconds.
	FailureDecay float64

	// FailureBackoff is the duration to wait when the threshold is exceeded.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long each service gets to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the root supervisor and its layers.
type Tree struct {
	root     *suture.Supervisor
	presence *suture.Supervisor
	api      *suture.Supervisor
}

// NewTree builds an empty tree. Zero config fields take their defaults.
func NewTree(config TreeConfig) *Tree {
	defaults := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = defaults.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = defaults.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}

	spec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	rootSpec := spec
	rootSpec.EventHook = EventHook(logx.Component("supervisor"))

	root := suture.New("groupnav", rootSpec)
	presence := suture.New("presence-layer", spec)
	api := suture.New("api-layer", spec)

	root.Add(presence)
	root.Add(api)

	return &Tree{root: root, presence: presence, api: api}
}

// EventHook logs supervisor events through logger.
func EventHook(logger zerolog.Logger) suture.EventHook {
	return func(e suture.Event) {
		var event *zerolog.Event
		switch e.Type() {
		case suture.EventTypeServicePanic, suture.EventTypeStopTimeout:
			event = logger.Error()
		case suture.EventTypeServiceTerminate, suture.EventTypeBackoff:
			event = logger.Warn()
		default:
			event = logger.Info()
		}
		event.Fields(e.Map()).Msg(e.String())
	}
}

// AddPresenceService adds a service to the presence layer.
func (t *Tree) AddPresenceService(svc suture.Service) suture.ServiceToken {
	return t.presence.Add(svc)
}

// AddAPIService adds a service to the api layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree on its own goroutine.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
