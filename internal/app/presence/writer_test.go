package presence

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupnav/internal/app/profile"
)

type storeCall struct {
	userID   int64
	lat, lng float64
}

type fakeStore struct {
	mu    sync.Mutex
	calls []storeCall
	fn    func(ctx context.Context) error
}

func (f *fakeStore) SetLocation(ctx context.Context, id int64, lat, lng float64) error {
	f.mu.Lock()
	f.calls = append(f.calls, storeCall{id, lat, lng})
	fn := f.fn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (f *fakeStore) Calls() []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storeCall(nil), f.calls...)
}

func TestLocationWriter_CoalescesPerUser(t *testing.T) {
	store := &fakeStore{}
	w := NewLocationWriter(store, WriterOptions{})

	w.Enqueue(1, 1, 1)
	w.Enqueue(1, 2, 2)
	w.Enqueue(1, 3, 3)
	w.Enqueue(2, 9, 9)
	assert.Equal(t, 2, w.Pending())

	w.Flush(context.Background())

	assert.ElementsMatch(t, []storeCall{{1, 3, 3}, {2, 9, 9}}, store.Calls())
	assert.Zero(t, w.Pending())
}

func TestLocationWriter_ServeWritesAndFlushesOnStop(t *testing.T) {
	store := &fakeStore{}
	w := NewLocationWriter(store, WriterOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Serve(ctx) }()

	w.Enqueue(7, 10, 20)
	require.Eventually(t, func() bool { return len(store.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	// Anything enqueued before the worker stops is still written.
	stopped, stop := context.WithCancel(context.Background())
	stop()
	w.Enqueue(8, 1, 2)
	assert.ErrorIs(t, w.Serve(stopped), context.Canceled)
	assert.Contains(t, store.Calls(), storeCall{8, 1, 2})
}

func TestLocationWriter_StopMidBatchKeepsCoordinates(t *testing.T) {
	var n atomic.Int32
	entered := make(chan struct{})
	store := &fakeStore{fn: func(ctx context.Context) error {
		if n.Add(1) == 1 {
			close(entered)
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}}
	w := NewLocationWriter(store, WriterOptions{Timeout: time.Minute})
	w.Enqueue(1, 10, 10)
	w.Enqueue(2, 20, 20)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Serve(ctx) }()

	<-entered
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	// The interrupted write and the one never started are both made by the final flush.
	calls := store.Calls()
	require.Len(t, calls, 3)
	assert.ElementsMatch(t, []storeCall{{1, 10, 10}, {2, 20, 20}}, calls[1:])
	assert.Zero(t, w.Pending())
}

func TestLocationWriter_FailuresAreSwallowed(t *testing.T) {
	store := &fakeStore{fn: func(context.Context) error { return errors.New("disk on fire") }}
	w := NewLocationWriter(store, WriterOptions{BreakerFailures: 100})

	w.Enqueue(1, 1, 1)
	w.Flush(context.Background())

	// The failed coordinate is not retried; the next update for the user is.
	assert.Zero(t, w.Pending())
	w.Enqueue(1, 2, 2)
	w.Flush(context.Background())
	assert.Equal(t, []storeCall{{1, 1, 1}, {1, 2, 2}}, store.Calls())
}

func TestLocationWriter_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	store := &fakeStore{fn: func(context.Context) error { return errors.New("connection refused") }}
	w := NewLocationWriter(store, WriterOptions{BreakerFailures: 3, BreakerCooldown: time.Hour})

	for i := int64(1); i <= 6; i++ {
		w.Enqueue(i, 0, 0)
		w.Flush(context.Background())
	}

	assert.Len(t, store.Calls(), 3, "writes stop reaching the store once the breaker is open")
}

func TestLocationWriter_MissingProfileDoesNotTripBreaker(t *testing.T) {
	store := &fakeStore{fn: func(context.Context) error { return profile.ErrNotFound }}
	w := NewLocationWriter(store, WriterOptions{BreakerFailures: 2, BreakerCooldown: time.Hour})

	for i := int64(1); i <= 5; i++ {
		w.Enqueue(i, 0, 0)
		w.Flush(context.Background())
	}

	assert.Len(t, store.Calls(), 5)
}

func TestLocationWriter_WriteTimeout(t *testing.T) {
	var gotErr error
	var mu sync.Mutex
	store := &fakeStore{fn: func(ctx context.Context) error {
		<-ctx.Done()
		mu.Lock()
		gotErr = ctx.Err()
		mu.Unlock()
		return ctx.Err()
	}}
	w := NewLocationWriter(store, WriterOptions{Timeout: 20 * time.Millisecond})

	w.Enqueue(1, 1, 1)
	start := time.Now()
	w.Flush(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	mu.Lock()
	assert.ErrorIs(t, gotErr, context.DeadlineExceeded)
	mu.Unlock()
}

func TestLocationWriter_HangingStoreDoesNotDelayBroadcast(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	store := &fakeStore{fn: func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}}
	w := NewLocationWriter(store, WriterOptions{Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Serve(ctx) }()

	svc := NewService(Options{SendBuffer: 64, Sink: w})
	a, b := svc.Connect(0), svc.Connect(0)
	require.True(t, a.Join(1, "Alice"))
	queued(t, b)

	require.True(t, a.UpdateLocation(1, 1))
	require.Eventually(t, func() bool { return len(store.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	// The worker is stuck on the first write; the next updates still fan out at once.
	for i := 0; i < 5; i++ {
		done := make(chan bool, 1)
		go func() { done <- a.UpdateLocation(2, float64(i)) }()
		select {
		case ok := <-done:
			assert.True(t, ok)
		case <-time.After(time.Second):
			t.Fatal("location update blocked on persistence")
		}
	}
	assert.Len(t, ofType(queued(t, b), TypeLocationBroadcast), 6)
}

func TestScenario_LocationIsPersisted(t *testing.T) {
	ctx := context.Background()
	store, err := profile.Open(ctx, filepath.Join(t.TempDir(), "groupnav.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	alice, err := store.Create(ctx, profile.NewProfile{Username: "alice", Email: "alice@example.com", FullName: "Alice"})
	require.NoError(t, err)
	bob, err := store.Create(ctx, profile.NewProfile{Username: "bob", Email: "bob@example.com", FullName: "Bob"})
	require.NoError(t, err)

	w := NewLocationWriter(store, WriterOptions{})
	serveCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	go func() { _ = w.Serve(serveCtx) }()

	svc := NewService(Options{SendBuffer: 64, Sink: w})
	a, b := svc.Connect(0), svc.Connect(0)
	require.True(t, a.Join(alice.ID, alice.DisplayName()))
	require.True(t, b.Join(bob.ID, bob.DisplayName()))
	queued(t, a)
	queued(t, b)

	require.True(t, a.UpdateLocation(10.0, 20.0))

	for _, s := range []*Session{a, b} {
		got := ofType(queued(t, s), TypeLocationBroadcast)
		require.Len(t, got, 1)
		assert.Equal(t, LocationBroadcastPayload{UserID: alice.ID, DisplayName: "Alice", Latitude: 10, Longitude: 20},
			decodePayload[LocationBroadcastPayload](t, got[0]))
	}

	require.Eventually(t, func() bool {
		lat, lng, ok, err := store.GetLocation(ctx, alice.ID)
		return err == nil && ok && lat == 10.0 && lng == 20.0
	}, 2*time.Second, 10*time.Millisecond)
}
