package user

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"groupnav/internal/app/db"
	"groupnav/internal/app/profile"
)

func newTestGate(t *testing.T) (*Gate, profile.Store) {
	t.Helper()
	dsn := "sqlite://file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	sqlDB, err := db.OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)

	store := profile.NewSQLiteStore(sqlDB)
	t.Cleanup(func() { _ = store.Close() })

	g := NewGate(store)
	g.cost = bcrypt.MinCost
	return g, store
}

func TestGate_RegisterAndVerify(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	p, err := g.Register(ctx, Registration{Username: "alice", Email: "a@example.com", Password: "secret1", FullName: "Alice"})
	require.NoError(t, err)

	id, err := g.Verify(ctx, Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, p.ID, id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)
	assert.False(t, id.IsAdmin)

	_, err = g.Verify(ctx, Credentials{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = g.Verify(ctx, Credentials{Username: "nobody", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGate_RegisterValidation(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	_, err := g.Register(ctx, Registration{Username: "a b", Email: "x@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidUsername)

	_, err = g.Register(ctx, Registration{Username: "alice", Email: "x@example.com", Password: "123"})
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = g.Register(ctx, Registration{Username: "alice", Email: "x@example.com", Password: strings.Repeat("p", 73)})
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestGate_ProfileWithoutPasswordCannotLogIn(t *testing.T) {
	g, store := newTestGate(t)
	ctx := context.Background()

	_, err := store.Create(ctx, profile.NewProfile{Username: "ewabeach", Email: "ewa@example.com"})
	require.NoError(t, err)

	_, err = g.Verify(ctx, Credentials{Username: "ewabeach", Password: ""})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGate_ChangePassword(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	p, err := g.Register(ctx, Registration{Username: "bob", Email: "b@example.com", Password: "first-pass"})
	require.NoError(t, err)

	assert.ErrorIs(t, g.ChangePassword(ctx, p.ID, "nope", "second-pass"), ErrInvalidCredentials)
	require.NoError(t, g.ChangePassword(ctx, p.ID, "first-pass", "second-pass"))

	_, err = g.Verify(ctx, Credentials{Username: "bob", Password: "second-pass"})
	assert.NoError(t, err)
}
