package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headachelog/internal/journal"
	"github.com/headachelog/internal/localstore"
)

type mapBackendFactory map[uint]*memoryBackend

func (f mapBackendFactory) ForIdentity(id Identity) (journal.Backend, error) {
	if b, ok := f[id.UserID]; ok {
		return b, nil
	}
	return nil, ErrNoBackend
}

func newTestManager(factory BackendFactory, clock *fakeClock) *SessionManager {
	return NewSessionManager(factory, AutoSaveOptions{Clock: clock}, time.Hour)
}

func TestSessionIdentitySwitchDoesNotLeakEntries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC))
	alice := newMemoryBackend()
	alice.entries["2024-06-01"] = journal.Entry{PainLevel: 4, Notes: "alice only"}
	bob := newMemoryBackend()
	manager := newTestManager(mapBackendFactory{1: alice, 2: bob}, clock)

	s := manager.Create()
	require.NoError(t, s.SignIn(ctx, Identity{UserID: 1, Email: "alice@example.com"}))
	assert.Equal(t, 1, s.Store().Len())
	assert.Equal(t, "2024-06-30", s.Editor().Status().Date)

	_, err := s.Editor().Edit(ctx, "painLevel", 2)
	require.NoError(t, err)

	require.NoError(t, s.SignIn(ctx, Identity{UserID: 2, Email: "bob@example.com"}))

	stored, ok := alice.stored("2024-06-30")
	require.True(t, ok, "pending edit flushed to the previous identity")
	assert.Equal(t, 2, stored.PainLevel)

	assert.Zero(t, s.Store().Len(), "bob must not see alice's entries")
	_, ok = s.Store().Get("2024-06-01")
	assert.False(t, ok)
	assert.Zero(t, s.Editor().Status().Entry.PainLevel)
	_, ok = bob.stored("2024-06-30")
	assert.False(t, ok)

	require.NoError(t, s.SignOut(ctx))
	assert.Nil(t, s.Identity())
	assert.Nil(t, s.Backend())
	assert.Empty(t, s.Editor().Status().Date)
}

func TestSessionEditDuringIdentitySwitchIsRejected(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC))
	alice := newMemoryBackend()
	alice.entries["2024-06-30"] = journal.Entry{PainLevel: 1, Notes: "alice private note"}
	bob := newMemoryBackend()
	manager := newTestManager(mapBackendFactory{1: alice, 2: bob}, clock)

	s := manager.Create()
	require.NoError(t, s.SignIn(ctx, Identity{UserID: 1}))
	require.Equal(t, "alice private note", s.Editor().Status().Entry.Notes)

	release, entered := bob.holdNextLoad()
	done := make(chan error, 1)
	go func() { done <- s.SignIn(ctx, Identity{UserID: 2}) }()

	select {
	case <-entered:
	case <-time.After(timeoutShort):
		t.Fatal("bob's entries were never requested")
	}

	status, err := s.Editor().Edit(ctx, "painLevel", 3)
	assert.ErrorIs(t, err, ErrNoActiveDate)
	assert.Empty(t, status.Entry.Notes, "form cleared while switching")
	clock.Advance(time.Second)

	release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(timeoutShort):
		t.Fatal("sign in did not finish")
	}
	clock.Advance(10 * time.Second)

	_, ok := bob.stored("2024-06-30")
	assert.False(t, ok, "nothing from alice's form written to bob")
	assert.Zero(t, bob.putCount())
	assert.Equal(t, "2024-06-30", s.Editor().Status().Date)
	assert.Empty(t, s.Editor().Status().Entry.Notes)

	stored, _ := alice.stored("2024-06-30")
	assert.Equal(t, 1, stored.PainLevel)
}

func TestSessionSignInRejectsUnknownBackend(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Now())
	manager := newTestManager(mapBackendFactory{}, clock)

	s := manager.Create()
	err := s.SignIn(ctx, Identity{UserID: 7})
	require.Error(t, err)
	assert.Nil(t, s.Identity())
}

func TestSessionLocalIdentityUsesDiskCache(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC))
	factory := StoreBackendFactory{Local: localstore.Open(t.TempDir())}
	manager := newTestManager(factory, clock)
	deviceID := uuid.NewString()

	first := manager.Create()
	require.NoError(t, first.SignIn(ctx, Identity{DeviceID: deviceID}))
	_, err := first.Editor().Edit(ctx, "triptan", 1)
	require.NoError(t, err)
	require.NoError(t, manager.Remove(ctx, first.ID))

	second := manager.Create()
	require.NoError(t, second.SignIn(ctx, Identity{DeviceID: deviceID}))
	entry, ok := second.Store().Get("2024-06-30")
	require.True(t, ok, "entry persisted in the local cache survives the session")
	assert.Equal(t, 1, entry.Triptan)

	err = second.SignIn(ctx, Identity{DeviceID: "not-a-uuid"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSessionDeleteAndImport(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC))
	backend := newMemoryBackend()
	backend.entries["2024-06-30"] = journal.Entry{PainLevel: 1}
	manager := newTestManager(mapBackendFactory{1: backend}, clock)

	s := manager.Create()
	require.NoError(t, s.SignIn(ctx, Identity{UserID: 1}))

	n, err := s.Import(ctx, journal.Collection{"2024-06-30": {PainLevel: 3}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, s.Editor().Status().Entry.PainLevel, "open form refreshed after import")

	require.NoError(t, s.DeleteEntry(ctx, "2024-06-30"))
	assert.False(t, s.Editor().Status().Exists)
	assert.ErrorIs(t, s.DeleteEntry(ctx, "2024-06-30"), journal.ErrNotFound)
}

func TestSessionManagerSweepsIdleSessions(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC))
	backend := newMemoryBackend()
	manager := newTestManager(mapBackendFactory{1: backend}, clock)

	idle := manager.Create()
	require.NoError(t, idle.SignIn(ctx, Identity{UserID: 1}))
	_, err := idle.Editor().Edit(ctx, "notes", "unsaved")
	require.NoError(t, err)
	active := manager.Create()

	clock.Advance(6 * time.Second)
	require.Equal(t, 1, backend.putCount(), "text edit saved by its own timer")

	clock.Advance(50 * time.Minute)
	_, ok := manager.Get(active.ID)
	require.True(t, ok)
	clock.Advance(20 * time.Minute)

	assert.Equal(t, 1, manager.Sweep(ctx))
	_, ok = manager.Get(idle.ID)
	assert.False(t, ok)
	_, ok = manager.Get(active.ID)
	assert.True(t, ok)

	s, created := manager.GetOrCreate(idle.ID)
	assert.True(t, created)
	assert.NotEqual(t, idle.ID, s.ID)
}
