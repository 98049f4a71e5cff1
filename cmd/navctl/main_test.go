package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupnav/internal/app/profile"
	"groupnav/internal/app/user"
)

func TestRun_AdminLifecycle(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "navctl.db")
	var out bytes.Buffer

	require.NoError(t, run(ctx, []string{"create-admin", "-db", dsn, "-username", "root", "-email", "root@example.com", "-password", "secret1"}, &out))
	assert.Contains(t, out.String(), "created profile")

	require.NoError(t, run(ctx, []string{"add-user", "-db", dsn, "-username", "alice", "-email", "alice@example.com", "-lat", "21.3", "-lng", "-157.8"}, &out))
	require.NoError(t, run(ctx, []string{"set-password", "-db", dsn, "-username", "alice", "-password", "secret2"}, &out))

	store, err := profile.Open(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	root, err := store.GetByUsername(ctx, "root")
	require.NoError(t, err)
	assert.True(t, root.IsAdmin)

	alice, err := store.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, alice.IsAdmin)
	require.NotNil(t, alice.Latitude)
	assert.Equal(t, 21.3, *alice.Latitude)

	_, err = user.NewGate(store).Verify(ctx, user.Credentials{Username: "alice", Password: "secret2"})
	assert.NoError(t, err)
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "navctl.db")
	var out bytes.Buffer

	assert.ErrorIs(t, run(ctx, nil, &out), errUsage)
	assert.Error(t, run(ctx, []string{"add-user", "-db", dsn, "-email", "x@example.com"}, &out))
	assert.Error(t, run(ctx, []string{"add-user", "-db", dsn, "-username", "bob", "-email", "b@example.com", "-lat", "1"}, &out))
	assert.Error(t, run(ctx, []string{"create-admin", "-db", dsn, "-username", "root", "-email", "r@example.com"}, &out))
	assert.ErrorIs(t, run(ctx, []string{"set-password", "-db", dsn, "-username", "ghost", "-password", "secret1"}, &out), profile.ErrNotFound)
	assert.ErrorIs(t, run(ctx, []string{"teleport", "-db", dsn, "-username", "x"}, &out), errUsage)
}
