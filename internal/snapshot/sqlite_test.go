package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/bujotrack/internal/model"
	"github.com/minhvu/bujotrack/internal/snapshot"
	"github.com/minhvu/bujotrack/tests/testutil"
)

var savedAt = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func sampleSnapshot(version int, lastEventID string) model.ProjectionSnapshot {
	return model.ProjectionSnapshot{
		Version:     version,
		LastEventID: lastEventID,
		State:       []byte(`[{"id":"t1"}]`),
		SavedAt:     savedAt,
	}
}

// Both store implementations honor the same contract; exercise them
// through one suite.
func stores(t *testing.T) map[string]snapshot.Store {
	t.Helper()
	return map[string]snapshot.Store{
		"sqlite": snapshot.NewSQLiteStore(testutil.NewStorageDB(t), model.SnapshotSchemaVersion),
		"memory": snapshot.NewMemoryStore(model.SnapshotSchemaVersion),
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := sampleSnapshot(model.SnapshotSchemaVersion, "ev-9")
			require.NoError(t, store.Save(ctx, "entries", want))

			got, err := store.Load(ctx, "entries")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, want.Version, got.Version)
			assert.Equal(t, want.LastEventID, got.LastEventID)
			assert.JSONEq(t, string(want.State), string(got.State))
			assert.True(t, want.SavedAt.Equal(got.SavedAt))
		})
	}
}

func TestSnapshotLoadMissingIsNil(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.Load(context.Background(), "entries")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestSnapshotStaleSchemaLoadsAsNil(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stale := sampleSnapshot(model.SnapshotSchemaVersion+1, "ev-9")
			require.NoError(t, store.Save(ctx, "entries", stale))

			got, err := store.Load(ctx, "entries")
			require.NoError(t, err)
			assert.Nil(t, got, "a schema-stale snapshot reads like a missing one")
		})
	}
}

func TestSnapshotSaveIsLastWriteWins(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, "entries", sampleSnapshot(model.SnapshotSchemaVersion, "ev-1")))
			require.NoError(t, store.Save(ctx, "entries", sampleSnapshot(model.SnapshotSchemaVersion, "ev-2")))

			got, err := store.Load(ctx, "entries")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "ev-2", got.LastEventID)
		})
	}
}

func TestSnapshotClear(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, "entries", sampleSnapshot(model.SnapshotSchemaVersion, "ev-1")))
			require.NoError(t, store.Clear(ctx, "entries"))

			got, err := store.Load(ctx, "entries")
			require.NoError(t, err)
			assert.Nil(t, got)

			// Clearing an absent key is not an error.
			require.NoError(t, store.Clear(ctx, "entries"))
		})
	}
}

func TestSnapshotKeysAreIndependent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, "entries", sampleSnapshot(model.SnapshotSchemaVersion, "ev-1")))
			require.NoError(t, store.Save(ctx, "collections", sampleSnapshot(model.SnapshotSchemaVersion, "ev-2")))
			require.NoError(t, store.Clear(ctx, "entries"))

			got, err := store.Load(ctx, "collections")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "ev-2", got.LastEventID)
		})
	}
}
