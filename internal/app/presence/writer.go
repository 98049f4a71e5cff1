package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"groupnav/internal/app/profile"
	"groupnav/internal/metrics"
	"groupnav/internal/pkg/logx"
)

// LocationStore is the part of the profile store the writer needs.
type LocationStore interface {
	SetLocation(ctx context.Context, id int64, lat, lng float64) error
}

// WriterOptions configures a LocationWriter.
type WriterOptions struct {
	// Timeout bounds a single store write.
	Timeout time.Duration

	// BreakerFailures consecutive failures open the breaker.
	BreakerFailures uint32

	// BreakerCooldown is how long the breaker stays open before a probe.
	BreakerCooldown time.Duration
}

type coord struct {
	lat, lng float64
}

// LocationWriter persists coordinates off the broadcast path. Enqueue never blocks;
// pending writes are coalesced per user so only the newest coordinate is written.
// Failures are logged and counted; the next update for that user retries implicitly.
type LocationWriter struct {
	store   LocationStore
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[struct{}]

	mu      sync.Mutex
	pending map[int64]coord
	notify  chan struct{}

	logger zerolog.Logger
}

// NewLocationWriter returns a writer for store. Call Serve to start writing.
func NewLocationWriter(store LocationStore, opts WriterOptions) *LocationWriter {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}

	w := &LocationWriter{
		store:   store,
		timeout: opts.Timeout,
		pending: make(map[int64]coord),
		notify:  make(chan struct{}, 1),
		logger:  logx.Component("presence.writer"),
	}

	failures := opts.BreakerFailures
	w.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "location-writer",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// A missing profile is the caller's problem and a cancelled write is a
			// shutdown; neither is the store's fault.
			return err == nil || errors.Is(err, profile.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.LocationBreakerState.Set(float64(to))
			w.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Location writer circuit breaker changed state.")
		},
	})

	return w
}

// Enqueue records the newest coordinate for userID and wakes the worker.
func (w *LocationWriter) Enqueue(userID int64, lat, lng float64) {
	w.mu.Lock()
	if _, ok := w.pending[userID]; ok {
		metrics.LocationWrites.WithLabelValues("coalesced").Inc()
	}
	w.pending[userID] = coord{lat: lat, lng: lng}
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of users with an unwritten coordinate.
func (w *LocationWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Serve writes pending coordinates until ctx is done, then makes a final bounded flush.
func (w *LocationWriter) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), w.timeout)
			w.Flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-w.notify:
			w.Flush(ctx)
		}
	}
}

// String names the worker for the supervisor.
func (w *LocationWriter) String() string { return "location-writer" }

// Flush writes every pending coordinate once. Coordinates it could not write because
// ctx ended go back to pending unless a newer one has arrived.
func (w *LocationWriter) Flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[int64]coord, len(batch))
	w.mu.Unlock()

	for userID, c := range batch {
		if ctx.Err() != nil {
			w.requeue(userID, c)
			continue
		}
		if err := w.write(ctx, userID, c); err != nil && ctx.Err() != nil {
			w.requeue(userID, c)
		}
	}
}

func (w *LocationWriter) requeue(userID int64, c coord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, newer := w.pending[userID]; !newer {
		w.pending[userID] = c
	}
}

func (w *LocationWriter) write(parent context.Context, userID int64, c coord) error {
	start := time.Now()
	_, err := w.breaker.Execute(func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(parent, w.timeout)
		defer cancel()
		return struct{}{}, w.store.SetLocation(ctx, userID, c.lat, c.lng)
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.LocationWrites.WithLabelValues("breaker_open").Inc()
		w.logger.Debug().Int64("user_id", userID).Msg("Location write skipped; breaker open.")
	case errors.Is(err, profile.ErrNotFound):
		metrics.RecordLocationWrite(time.Since(start), err)
		w.logger.Warn().Int64("user_id", userID).Msg("Location write for unknown profile dropped.")
	case err != nil:
		metrics.RecordLocationWrite(time.Since(start), err)
		w.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to persist location.")
	default:
		metrics.RecordLocationWrite(time.Since(start), nil)
	}
	return err
}
