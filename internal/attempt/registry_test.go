package attempt

import (
	"testing"
	"time"

	"github.com/neudev/attemptd/internal/auth"
	"github.com/neudev/attemptd/internal/model"
	"github.com/neudev/attemptd/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	be := newBackend()
	store := repository.NewMemoryStore()
	clock := newClock()
	created := 0
	reg := NewRegistry(func(key model.SessionKey, _ auth.Identity) *Manager {
		created++
		return NewManager(key, store, be, Options{TickInterval: time.Hour, PollInterval: time.Hour, SyncInterval: time.Hour, Now: clock.Now, Log: zerolog.Nop()})
	}, zerolog.Nop())

	alice := auth.Identity{UserID: "1", Role: auth.RoleStudent, Token: "a"}
	bob := auth.Identity{UserID: "2", Role: auth.RoleStudent, Token: "b"}

	m1 := acquire(t, reg, alice, 42)
	assert.Same(t, m1, acquire(t, reg, alice, 42))
	m2 := acquire(t, reg, bob, 42)
	assert.NotSame(t, m1, m2)
	assert.NotSame(t, m1, acquire(t, reg, alice, 43))
	assert.Equal(t, 3, created)
	assert.Equal(t, KeyFor(alice, 42), m1.Key())

	got, ok := reg.Get(bob, 42)
	require.True(t, ok)
	assert.Same(t, m2, got)

	require.NoError(t, m1.Start(ctx))
	require.NoError(t, reg.Release(ctx, alice, 42))
	finalizes, _ := be.counts()
	assert.Equal(t, 1, finalizes)
	_, ok = reg.Get(alice, 42)
	assert.False(t, ok)
	assert.NoError(t, reg.Release(ctx, alice, 42))

	reg.Shutdown()
	assert.Zero(t, reg.Len())
}

func acquire(t *testing.T, reg *Registry, id auth.Identity, activityID int64) *Manager {
	t.Helper()
	m, err := reg.Acquire(id, activityID)
	require.NoError(t, err)
	return m
}

func newTestRegistry(be *fakeBackend, store repository.SessionStore, clock *fakeClock) *Registry {
	return NewRegistry(func(key model.SessionKey, _ auth.Identity) *Manager {
		return NewManager(key, store, be, Options{TickInterval: time.Hour, PollInterval: time.Hour, SyncInterval: time.Hour, Now: clock.Now, Log: zerolog.Nop()})
	}, zerolog.Nop())
}

func TestRegistryRejectsOtherTokenWithSameClaims(t *testing.T) {
	be := newBackend()
	reg := newTestRegistry(be, repository.NewMemoryStore(), newClock())
	t.Cleanup(reg.Shutdown)

	owner := auth.Identity{UserID: "7", Role: auth.RoleStudent, Token: "issued"}
	forged := auth.Identity{UserID: "7", Role: auth.RoleStudent, Token: "forged"}
	require.Equal(t, owner.Namespace(), forged.Namespace())

	m := acquire(t, reg, owner, 5)
	require.NoError(t, m.Start(ctx))

	_, ok := reg.Get(forged, 5)
	assert.False(t, ok)
	_, err := reg.Acquire(forged, 5)
	assert.ErrorIs(t, err, ErrForeignAttempt)
	assert.ErrorIs(t, reg.Release(ctx, forged, 5), ErrForeignAttempt)

	finalizes, _ := be.counts()
	assert.Zero(t, finalizes)
	got, ok := reg.Get(owner, 5)
	require.True(t, ok)
	assert.Same(t, m, got)
}

func TestRegistryAcceptsRotatedVerifiedToken(t *testing.T) {
	reg := newTestRegistry(newBackend(), repository.NewMemoryStore(), newClock())
	t.Cleanup(reg.Shutdown)

	first := auth.Identity{UserID: "7", Role: auth.RoleStudent, Token: "t1", Verified: true}
	rotated := auth.Identity{UserID: "7", Role: auth.RoleStudent, Token: "t2", Verified: true}

	m := acquire(t, reg, first, 5)
	assert.Same(t, m, acquire(t, reg, rotated, 5))
}

func TestReleaseDuringExpirySubmitsOnce(t *testing.T) {
	be := newBackend()
	be.finalizeStarted = make(chan struct{}, 1)
	be.finalizeGate = make(chan struct{})
	clock := newClock()
	reg := newTestRegistry(be, repository.NewMemoryStore(), clock)
	t.Cleanup(reg.Shutdown)

	alice := auth.Identity{UserID: "1", Role: auth.RoleStudent, Token: "a"}
	m := acquire(t, reg, alice, 42)
	require.NoError(t, m.Start(ctx))

	clock.Advance(31 * time.Minute)
	go m.Tick(ctx, clock.Now())
	select {
	case <-be.finalizeStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry did not submit")
	}

	released := make(chan error, 1)
	go func() { released <- reg.Release(ctx, alice, 42) }()

	// Reopening while the expiry submission is in flight reuses the manager.
	reopened := acquire(t, reg, alice, 42)
	assert.Same(t, m, reopened)
	require.NoError(t, reopened.Start(ctx))

	close(be.finalizeGate)
	select {
	case err := <-released:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("release did not return")
	}
	assert.Zero(t, reg.Len())

	be.set(func(b *fakeBackend) { b.progress = nil })
	next := acquire(t, reg, alice, 42)
	assert.NotSame(t, m, next)
	require.NoError(t, next.Start(ctx))

	finalizes, _ := be.counts()
	assert.Equal(t, 1, finalizes)
	assert.Equal(t, StateIdle, next.Snapshot().State)
}
