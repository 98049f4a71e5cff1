package profile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupnav/internal/app/db"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := "sqlite://file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	sqlDB, err := db.OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)

	store := NewSQLiteStore(sqlDB)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func ptr[T any](v T) *T { return &v }

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.Create(ctx, NewProfile{Username: "alice", Email: "alice@example.com", FullName: "Alice"})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Nil(t, p.Latitude)
	assert.False(t, p.CreatedAt.IsZero())
	assert.False(t, p.HasPassword())
	assert.Equal(t, "Alice", p.DisplayName())

	got, err := store.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = store.Get(ctx, p.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Uniqueness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, NewProfile{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	_, err = store.Create(ctx, NewProfile{Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrUsernameExists)

	_, err = store.Create(ctx, NewProfile{Username: "bob", Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestSQLiteStore_UpdateListDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, NewProfile{Username: "alice", Email: "a@example.com", VehicleType: "car"})
	require.NoError(t, err)
	_, err = store.Create(ctx, NewProfile{Username: "bob", Email: "b@example.com"})
	require.NoError(t, err)

	updated, err := store.Update(ctx, a.ID, Changes{VehicleType: ptr("bike"), IsAdmin: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, "bike", updated.VehicleType)
	assert.True(t, updated.IsAdmin)
	assert.Empty(t, updated.FullName, "untouched fields stay as they were")

	_, err = store.Update(ctx, 9999, Changes{FullName: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Username)

	require.NoError(t, store.Delete(ctx, a.ID))
	assert.ErrorIs(t, store.Delete(ctx, a.ID), ErrNotFound)
}

func TestSQLiteStore_Location(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.Create(ctx, NewProfile{Username: "alice", Email: "a@example.com"})
	require.NoError(t, err)

	_, _, ok, err := store.GetLocation(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok, "no coordinate before the first update")

	require.NoError(t, store.SetLocation(ctx, p.ID, 10.0, 20.0))
	require.NoError(t, store.SetLocation(ctx, p.ID, 123.5, -500.25))

	lat, lng, ok, err := store.GetLocation(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 123.5, lat, "out-of-range values are stored verbatim")
	assert.Equal(t, -500.25, lng)

	assert.ErrorIs(t, store.SetLocation(ctx, 9999, 1, 2), ErrNotFound)
	_, _, _, err = store.GetLocation(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_PasswordAndSeededLocation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.Create(ctx, NewProfile{
		Username:  "ewabeach",
		Email:     "ewa@example.com",
		Latitude:  ptr(21.3156),
		Longitude: ptr(-158.0072),
	})
	require.NoError(t, err)
	require.NotNil(t, p.Latitude)
	assert.Equal(t, 21.3156, *p.Latitude)

	require.NoError(t, store.SetPassword(ctx, p.ID, "hash"))
	got, err := store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.HasPassword())
}
