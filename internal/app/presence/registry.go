/*
Package presence is the live core of the server: which connections are bound to
which users, where those users are, and who gets told about it.

A Registry holds the presence table, a Hub holds the connected sessions, the
Broadcaster announces the user count, and the Relay handles location updates.
Sessions tie them together for one connection each and are created by Service.
*/
package presence

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"groupnav/internal/metrics"
	"groupnav/internal/pkg/logx"
)

// ConnID identifies one transport connection for its lifetime.
type ConnID string

// LiveUserState is the in-memory view of a joined user. Coordinates stay nil
// until the first location update after the join.
type LiveUserState struct {
	UserID      int64    `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// HasLocation reports whether both coordinates are known.
func (s LiveUserState) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}

func (s LiveUserState) clone() LiveUserState {
	if s.Latitude != nil {
		lat := *s.Latitude
		s.Latitude = &lat
	}
	if s.Longitude != nil {
		lng := *s.Longitude
		s.Longitude = &lng
	}
	return s
}

type liveEntry struct {
	owner ConnID
	state LiveUserState
}

// Registry is the authoritative presence table. It keeps two maps under one mutex:
// connection -> user and user -> state, where each state records the connection that
// owns it. At most one connection owns a user; the most recent join wins.
type Registry struct {
	mu    sync.Mutex
	conns map[ConnID]int64
	users map[int64]*liveEntry

	logger zerolog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[ConnID]int64),
		users:  make(map[int64]*liveEntry),
		logger: logx.Component("presence.registry"),
	}
}

// Bind records connID -> userID and installs a fresh, coordinate-absent state for
// userID, replacing any previous one. If another connection owned userID, that
// connection loses its binding (it stays connected but unbound) and is returned as
// displaced. If connID was bound to a different user it owned, that user is released.
func (r *Registry) Bind(connID ConnID, userID int64, displayName string) (displaced ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.conns[connID]; ok && prev != userID {
		if e := r.users[prev]; e != nil && e.owner == connID {
			delete(r.users, prev)
		}
	}

	if e, ok := r.users[userID]; ok && e.owner != connID {
		displaced = e.owner
		delete(r.conns, e.owner)
		r.logger.Info().
			Int64("user_id", userID).
			Str("displaced_conn", string(displaced)).
			Str("conn_id", string(connID)).
			Msg("User joined from a new connection; previous connection unbound.")
	}

	r.conns[connID] = userID
	r.users[userID] = &liveEntry{
		owner: connID,
		state: LiveUserState{UserID: userID, DisplayName: displayName},
	}
	metrics.PresenceUsers.Set(float64(len(r.users)))

	return displaced
}

// Resolve returns the user bound to connID.
func (r *Registry) Resolve(connID ConnID) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.conns[connID]
	return userID, ok
}

// UpdateLocation sets the coordinates of the user bound to connID and returns a copy
// of the new state. It is a no-op returning false when connID is unbound.
func (r *Registry) UpdateLocation(connID ConnID, lat, lng float64) (LiveUserState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(connID, lat, lng)
}

// publishLocation updates connID's coordinates and runs fn with the new state before
// releasing the lock, so a concurrent Unbind and its count follow whatever fn
// publishes. fn must not block or call back into the Registry.
func (r *Registry) publishLocation(connID ConnID, lat, lng float64, fn func(LiveUserState)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.updateLocked(connID, lat, lng)
	if !ok {
		return false
	}
	fn(state)
	return true
}

func (r *Registry) updateLocked(connID ConnID, lat, lng float64) (LiveUserState, bool) {
	userID, ok := r.conns[connID]
	if !ok {
		return LiveUserState{}, false
	}

	e, ok := r.users[userID]
	if !ok || e.owner != connID {
		return LiveUserState{}, false
	}

	e.state.Latitude = &lat
	e.state.Longitude = &lng
	return e.state.clone(), true
}

// Unbind drops connID's binding. The user's state is removed only when connID still
// owns it; a displaced connection leaves the new owner untouched. Unbinding an
// unknown connection is a no-op, so repeated calls are safe.
func (r *Registry) Unbind(connID ConnID) (LiveUserState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.conns[connID]
	if !ok {
		return LiveUserState{}, false
	}
	delete(r.conns, connID)

	e, ok := r.users[userID]
	if !ok || e.owner != connID {
		return LiveUserState{}, false
	}

	delete(r.users, userID)
	metrics.PresenceUsers.Set(float64(len(r.users)))
	return e.state.clone(), true
}

// Count returns the number of distinct bound users.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// Owner returns the connection that currently owns userID.
func (r *Registry) Owner(userID int64) (ConnID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.users[userID]
	if !ok {
		return "", false
	}
	return e.owner, true
}

// Snapshot returns copies of every state ordered by user id.
func (r *Registry) Snapshot() []LiveUserState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]LiveUserState, 0, len(r.users))
	for _, e := range r.users {
		out = append(out, e.state.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// withCount runs fn with the current count while holding the registry lock, so that
// what fn publishes cannot be overtaken by a later mutation's publication.
// fn must not block or call back into the Registry.
func (r *Registry) withCount(fn func(count int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(len(r.users))
}
