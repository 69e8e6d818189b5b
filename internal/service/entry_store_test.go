package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headachelog/internal/journal"
)

func newLoadedStore(t *testing.T, backend journal.Backend) *EntryStore {
	t.Helper()
	store := NewEntryStore(nil)
	require.NoError(t, store.Swap(context.Background(), backend))
	return store
}

func TestEntryStoreSaveStampsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	store := newLoadedStore(t, backend)

	saved, err := store.Save(ctx, "2024-06-01", journal.Entry{PainLevel: 2, Notes: " aura "})
	require.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero())
	assert.Equal(t, "aura", saved.Notes)

	got, ok := store.Get("2024-06-01")
	require.True(t, ok)
	assert.Equal(t, saved, got)

	remote, ok := backend.stored("2024-06-01")
	require.True(t, ok)
	assert.True(t, remote.SameContent(got))
}

func TestEntryStoreRollsBackFailedSave(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	backend.entries["2024-06-01"] = journal.Entry{PainLevel: 1}
	store := newLoadedStore(t, backend)

	backend.setFailPuts(true)

	_, err := store.Save(ctx, "2024-06-01", journal.Entry{PainLevel: 4})
	require.ErrorIs(t, err, ErrPersistence)
	got, ok := store.Get("2024-06-01")
	require.True(t, ok)
	assert.Equal(t, 1, got.PainLevel, "prior value restored")

	_, err = store.Save(ctx, "2024-06-02", journal.Entry{PainLevel: 3})
	require.ErrorIs(t, err, ErrPersistence)
	_, ok = store.Get("2024-06-02")
	assert.False(t, ok, "new date removed again")
}

func TestEntryStoreRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	store := newLoadedStore(t, backend)

	_, err := store.Save(ctx, "2024-06-01", journal.Entry{PainLevel: 7})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = store.Save(ctx, "June 1st", journal.Entry{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, backend.putCount())
	assert.Zero(t, store.Len())
}

func TestEntryStoreWithoutBackend(t *testing.T) {
	store := NewEntryStore(nil)
	_, err := store.Save(context.Background(), "2024-06-01", journal.Entry{})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestEntryStoreEarlierResponseDoesNotOverwriteLaterValue(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	store := newLoadedStore(t, backend)

	release, entered := backend.holdNextPut()

	done := make(chan error, 1)
	go func() {
		_, err := store.Save(ctx, "2024-06-01", journal.Entry{PainLevel: 1})
		done <- err
	}()
	<-entered

	_, err := store.Save(ctx, "2024-06-01", journal.Entry{PainLevel: 3})
	require.NoError(t, err)

	release()
	require.NoError(t, <-done)

	got, _ := store.Get("2024-06-01")
	assert.Equal(t, 3, got.PainLevel)
}

func TestEntryStoreOverlappingFailuresRestoreConfirmedValue(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	backend.entries["2024-06-01"] = journal.Entry{PainLevel: 1}
	store := newLoadedStore(t, backend)
	backend.setFailPuts(true)

	release, entered := backend.holdNextPut()
	done := make(chan error, 1)
	go func() {
		_, err := store.Save(ctx, "2024-06-01", journal.Entry{PainLevel: 2})
		done <- err
	}()
	<-entered

	_, err := store.Save(ctx, "2024-06-01", journal.Entry{PainLevel: 4})
	require.ErrorIs(t, err, ErrPersistence)
	got, _ := store.Get("2024-06-01")
	assert.Equal(t, 1, got.PainLevel, "unsaved optimistic value is not a rollback target")

	release()
	require.ErrorIs(t, <-done, ErrPersistence)
	got, _ = store.Get("2024-06-01")
	assert.Equal(t, 1, got.PainLevel)

	backend.setFailPuts(false)
	_, err = store.Save(ctx, "2024-06-02", journal.Entry{PainLevel: 3})
	require.NoError(t, err)
	backend.setFailPuts(true)
	_, err = store.Save(ctx, "2024-06-02", journal.Entry{PainLevel: 0})
	require.ErrorIs(t, err, ErrPersistence)
	got, _ = store.Get("2024-06-02")
	assert.Equal(t, 3, got.PainLevel, "rolls back to the last successful save")
}

func TestEntryStoreDelete(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	backend.entries["2024-06-01"] = journal.Entry{PainLevel: 2}
	store := newLoadedStore(t, backend)

	assert.ErrorIs(t, store.Delete(ctx, "2024-06-02"), ErrEntryNotFound)

	backend.failDeletes = true
	require.ErrorIs(t, store.Delete(ctx, "2024-06-01"), ErrPersistence)
	_, ok := store.Get("2024-06-01")
	assert.True(t, ok, "entry kept when backend delete fails")

	backend.failDeletes = false
	require.NoError(t, store.Delete(ctx, "2024-06-01"))
	_, ok = store.Get("2024-06-01")
	assert.False(t, ok)
}

func TestEntryStoreSwapDiscardsPreviousIdentity(t *testing.T) {
	ctx := context.Background()
	first := newMemoryBackend()
	first.entries["2024-06-01"] = journal.Entry{PainLevel: 4, Notes: "private"}
	store := newLoadedStore(t, first)
	require.Equal(t, 1, store.Len())

	second := newMemoryBackend()
	second.failLoad = true
	err := store.Swap(ctx, second)
	require.ErrorIs(t, err, ErrPersistence)
	assert.Zero(t, store.Len(), "old entries must not survive a failed load")

	require.NoError(t, store.Swap(ctx, nil))
	assert.Nil(t, store.Backend())
	assert.Zero(t, store.Len())
}

func TestEntryStoreImportMerges(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	backend.entries["2024-06-01"] = journal.Entry{PainLevel: 1}
	backend.entries["2024-06-05"] = journal.Entry{PainLevel: 2}
	store := newLoadedStore(t, backend)

	n, err := store.Import(ctx, journal.Collection{
		"2024-06-01": {PainLevel: 3},
		"2024-06-02": {Triptan: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, store.Len())

	got, _ := store.Get("2024-06-01")
	assert.Equal(t, 3, got.PainLevel)
	got, _ = store.Get("2024-06-05")
	assert.Equal(t, 2, got.PainLevel, "dates absent from the import are untouched")
}

func TestEntryStoreImportValidatesFirst(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	store := newLoadedStore(t, backend)

	_, err := store.Import(ctx, journal.Collection{
		"2024-06-01": {PainLevel: 1},
		"2024-06-02": {PainLevel: 9},
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, store.Len())
	assert.Zero(t, backend.putCount())
}
