package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CountTracksDistinctBoundUsers(t *testing.T) {
	r := NewRegistry()

	bound := map[ConnID]bool{}
	ops := []struct {
		bind bool
		conn ConnID
		user int64
	}{
		{true, "a", 1}, {true, "b", 2}, {true, "c", 3},
		{false, "b", 0}, {true, "d", 4}, {false, "a", 0},
		{false, "zz", 0}, {true, "e", 5}, {false, "c", 0},
	}

	for _, op := range ops {
		if op.bind {
			r.Bind(op.conn, op.user, fmt.Sprintf("user-%d", op.user))
			bound[op.conn] = true
		} else {
			r.Unbind(op.conn)
			delete(bound, op.conn)
		}
		assert.Equal(t, len(bound), r.Count())
	}
}

func TestRegistry_BindStartsWithoutCoordinates(t *testing.T) {
	r := NewRegistry()
	r.Bind("a", 1, "Alice")

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "Alice", snap[0].DisplayName)
	assert.False(t, snap[0].HasLocation())

	st, ok := r.UpdateLocation("a", 10, 20)
	require.True(t, ok)
	assert.Equal(t, 10.0, *st.Latitude)

	// Re-joining resets the state.
	r.Bind("a", 1, "Alice")
	assert.False(t, r.Snapshot()[0].HasLocation())
}

func TestRegistry_UnbindIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Bind("a", 1, "Alice")
	r.Bind("b", 2, "Bob")

	st, ok := r.Unbind("a")
	require.True(t, ok)
	assert.Equal(t, int64(1), st.UserID)

	_, ok = r.Unbind("a")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count())

	_, ok = r.Unbind("never-bound")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_UpdateFromUnboundConnection(t *testing.T) {
	r := NewRegistry()

	_, ok := r.UpdateLocation("ghost", 1, 2)
	assert.False(t, ok)
	assert.Zero(t, r.Count())
}

// A second join for the same user makes the newest connection the owner. The
// displaced connection is not disconnected but loses its binding, and its later
// unbind leaves the new owner's entry alone.
func TestRegistry_DuplicateJoinLastConnectionWins(t *testing.T) {
	r := NewRegistry()

	r.Bind("A", 1, "Alice (phone)")
	displaced := r.Bind("B", 1, "Alice (laptop)")
	assert.Equal(t, ConnID("A"), displaced)

	assert.Equal(t, 1, r.Count())
	owner, ok := r.Owner(1)
	require.True(t, ok)
	assert.Equal(t, ConnID("B"), owner)

	_, ok = r.Resolve("A")
	assert.False(t, ok, "displaced connection is unbound")
	_, ok = r.UpdateLocation("A", 5, 5)
	assert.False(t, ok, "displaced connection cannot move the marker")

	_, ok = r.Unbind("A")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count())
	owner, _ = r.Owner(1)
	assert.Equal(t, ConnID("B"), owner)
	assert.Equal(t, "Alice (laptop)", r.Snapshot()[0].DisplayName)

	_, ok = r.Unbind("B")
	assert.True(t, ok)
	assert.Zero(t, r.Count())
}

func TestRegistry_RebindToAnotherUserReleasesTheFirst(t *testing.T) {
	r := NewRegistry()

	r.Bind("A", 1, "Alice")
	r.Bind("A", 2, "Bob")

	assert.Equal(t, 1, r.Count())
	_, ok := r.Owner(1)
	assert.False(t, ok)
	userID, ok := r.Resolve("A")
	require.True(t, ok)
	assert.Equal(t, int64(2), userID)
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Bind("a", 1, "Alice")
	r.UpdateLocation("a", 1, 1)

	snap := r.Snapshot()
	*snap[0].Latitude = 99

	assert.Equal(t, 1.0, *r.Snapshot()[0].Latitude)
}

func TestRegistry_ConcurrentMutations(t *testing.T) {
	r := NewRegistry()
	const workers = 64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := ConnID(fmt.Sprintf("c%d", i))
			user := int64(i%16 + 1)

			r.Bind(conn, user, "u")
			r.UpdateLocation(conn, float64(i), float64(i))
			_ = r.Count()
			_ = r.Snapshot()
			if i%2 == 0 {
				r.Unbind(conn)
				r.Unbind(conn)
			}
		}(i)
	}
	wg.Wait()

	// Every remaining entry is owned by a connection that resolves back to it.
	snap := r.Snapshot()
	assert.Equal(t, len(snap), r.Count())
	for _, st := range snap {
		owner, ok := r.Owner(st.UserID)
		require.True(t, ok)
		userID, ok := r.Resolve(owner)
		require.True(t, ok)
		assert.Equal(t, st.UserID, userID)
	}
}
