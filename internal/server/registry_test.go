package server

import (
	"context"
	"testing"
	"time"

	"github.com/leapstack-labs/sqlsandbox/internal/engine"
	"github.com/leapstack-labs/sqlsandbox/internal/sandbox"
	"github.com/leapstack-labs/sqlsandbox/internal/testutil"
	"github.com/leapstack-labs/sqlsandbox/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, max int) (*Registry, *time.Time) {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	reg := NewRegistry(func() *sandbox.Session {
		mgr := engine.NewManager(engine.Options{Bundle: adapter.Config{Type: "sqlite"}, Logger: logger})
		return sandbox.New(mgr, sandbox.Options{Logger: logger})
	}, max, logger)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	t.Cleanup(func() { reg.CloseAll(context.Background()) })
	return reg, &now
}

func TestRegistry_CreateGetRemove(t *testing.T) {
	reg, _ := newTestRegistry(t, 0)

	s, err := reg.Create()
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))

	got, ok := reg.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	assert.True(t, reg.Remove(context.Background(), s.ID()))
	assert.False(t, s.Ready(), "removed session must be closed")
	assert.False(t, reg.Remove(context.Background(), s.ID()))

	_, ok = reg.Get(s.ID())
	assert.False(t, ok)
}

func TestRegistry_Cap(t *testing.T) {
	reg, _ := newTestRegistry(t, 2)

	_, err := reg.Create()
	require.NoError(t, err)
	second, err := reg.Create()
	require.NoError(t, err)

	_, err = reg.Create()
	assert.ErrorIs(t, err, ErrTooManySessions)

	reg.Remove(context.Background(), second.ID())
	_, err = reg.Create()
	assert.NoError(t, err)
}

func TestRegistry_Sweep(t *testing.T) {
	reg, now := newTestRegistry(t, 0)
	ctx := context.Background()

	idle, err := reg.Create()
	require.NoError(t, err)
	require.NoError(t, idle.Open(ctx))
	busy, err := reg.Create()
	require.NoError(t, err)

	*now = now.Add(20 * time.Minute)
	_, ok := reg.Get(busy.ID())
	require.True(t, ok)

	*now = now.Add(15 * time.Minute)
	closed := reg.Sweep(ctx, 30*time.Minute)

	assert.Equal(t, []string{idle.ID()}, closed)
	assert.False(t, idle.Ready())
	assert.Equal(t, 1, reg.Len())
	_, ok = reg.Get(busy.ID())
	assert.True(t, ok)
}

func TestRegistry_HasDoesNotTouch(t *testing.T) {
	reg, now := newTestRegistry(t, 0)
	ctx := context.Background()

	s, err := reg.Create()
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	assert.True(t, reg.Has(s.ID()))
	assert.Equal(t, []string{s.ID()}, reg.Sweep(ctx, 30*time.Minute))
	assert.False(t, reg.Has(s.ID()))
}
