package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/bujotrack/internal/eventlog"
	"github.com/minhvu/bujotrack/internal/model"
	syncmgr "github.com/minhvu/bujotrack/internal/sync"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func ev(id, aggregate string, at time.Time) model.Event {
	return model.NewEvent(id, model.EntryRestored, aggregate, at, model.EntryRestoredPayload{})
}

func ids(t *testing.T, log eventlog.Store) []string {
	t.Helper()
	all, err := log.All(context.Background())
	require.NoError(t, err)
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.ID
	}
	return out
}

func TestSyncOnceConvergesBothDirections(t *testing.T) {
	local := eventlog.NewMemoryLog()
	remote := eventlog.NewMemoryLog()
	ctx := context.Background()

	require.NoError(t, local.AppendBatch(ctx, []model.Event{
		ev("shared", "e1", base),
		ev("local-only", "e1", base.Add(time.Second)),
	}))
	require.NoError(t, remote.AppendBatch(ctx, []model.Event{
		ev("shared", "e1", base),
		ev("remote-only", "e2", base.Add(2*time.Second)),
	}))

	m := syncmgr.New(local, remote, time.Minute)
	pushed, pulled, err := m.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pushed)
	assert.Equal(t, 1, pulled)

	want := []string{"shared", "local-only", "remote-only"}
	assert.Equal(t, want, ids(t, local))
	assert.Equal(t, want, ids(t, remote))
}

func TestSyncOnceIsIdempotent(t *testing.T) {
	local := eventlog.NewMemoryLog()
	remote := eventlog.NewMemoryLog()
	ctx := context.Background()

	require.NoError(t, local.Append(ctx, ev("a", "e1", base)))
	m := syncmgr.New(local, remote, time.Minute)

	_, _, err := m.SyncOnce(ctx)
	require.NoError(t, err)
	pushed, pulled, err := m.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, pushed)
	assert.Zero(t, pulled)
	assert.Len(t, ids(t, remote), 1)
}

func TestSyncOnceEmptyLogs(t *testing.T) {
	m := syncmgr.New(eventlog.NewMemoryLog(), eventlog.NewMemoryLog(), time.Minute)
	pushed, pulled, err := m.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pushed)
	assert.Zero(t, pulled)
}

func TestSyncLoopRunsOnTrigger(t *testing.T) {
	local := eventlog.NewMemoryLog()
	remote := eventlog.NewMemoryLog()
	ctx := context.Background()

	require.NoError(t, local.Append(ctx, ev("a", "e1", base)))

	synced := make(chan model.Event, 4)
	unsub := remote.Subscribe(func(e model.Event) { synced <- e })
	defer unsub()

	m := syncmgr.New(local, remote, time.Hour)
	m.Start()
	defer m.Stop()

	// The loop makes an immediate first pass on start.
	select {
	case e := <-synced:
		assert.Equal(t, "a", e.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial sync pass")
	}

	require.NoError(t, local.Append(ctx, ev("b", "e1", base.Add(time.Second))))
	m.TriggerNow()
	select {
	case e := <-synced:
		assert.Equal(t, "b", e.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for triggered sync pass")
	}

	status := m.GetStatus()
	assert.Equal(t, syncmgr.Idle, status.State)
	assert.NoError(t, status.Error)
}

func TestSyncStopIsIdempotentAndRestartable(t *testing.T) {
	m := syncmgr.New(eventlog.NewMemoryLog(), eventlog.NewMemoryLog(), time.Hour)
	m.Start()
	m.Start() // second start is a no-op while running
	m.Stop()
	m.Stop()
	m.Start()
	m.Stop()
}
