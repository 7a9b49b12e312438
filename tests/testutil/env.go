// Package testutil builds fully wired in-memory engines for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/minhvu/bujotrack/internal/command"
	"github.com/minhvu/bujotrack/internal/eventlog"
	"github.com/minhvu/bujotrack/internal/projection"
	"github.com/minhvu/bujotrack/internal/storage"
)

// Env is an in-memory engine: a MemoryLog, the three projections, and
// command handlers whose clock is the controllable Now field.
type Env struct {
	Log         *eventlog.MemoryLog
	Entries     *projection.Entries
	Collections *projection.Collections
	Preferences *projection.Preferences
	Handlers    *command.Handlers

	// Now is the handler clock. Mutate it (or call Advance) to move
	// time-window behavior like the create-collection dedup.
	Now time.Time
}

// NewEnv wires an Env over a fresh in-memory log. The clock starts at a
// fixed instant so tests are deterministic.
func NewEnv(t *testing.T, opts ...command.Option) *Env {
	t.Helper()

	env := &Env{
		Log: eventlog.NewMemoryLog(),
		Now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}

	ctx := context.Background()
	var err error
	if env.Entries, err = projection.NewEntries(ctx, env.Log, nil); err != nil {
		t.Fatalf("building entries projection: %v", err)
	}
	if env.Collections, err = projection.NewCollections(ctx, env.Log, nil); err != nil {
		t.Fatalf("building collections projection: %v", err)
	}
	if env.Preferences, err = projection.NewPreferences(ctx, env.Log, nil); err != nil {
		t.Fatalf("building preferences projection: %v", err)
	}
	t.Cleanup(func() {
		env.Entries.Close()
		env.Collections.Close()
		env.Preferences.Close()
	})

	allOpts := append([]command.Option{
		command.WithClock(func() time.Time {
			// Each call ticks the clock forward so sibling events
			// created in one command keep distinct timestamps.
			env.Now = env.Now.Add(time.Millisecond)
			return env.Now
		}),
	}, opts...)
	env.Handlers = command.New(env.Log, env.Entries, env.Collections, env.Preferences, allOpts...)
	return env
}

// Advance moves the handler clock forward.
func (e *Env) Advance(d time.Duration) {
	e.Now = e.Now.Add(d)
}

// Collection creates a custom collection and returns its ID.
func (e *Env) Collection(t *testing.T, name string) string {
	t.Helper()
	id, err := e.Handlers.CreateCollection(context.Background(), command.CreateCollectionInput{
		Name: name,
		Type: "custom",
	})
	if err != nil {
		t.Fatalf("creating collection %q: %v", name, err)
	}
	return id
}

// Task creates a task and returns its ID.
func (e *Env) Task(t *testing.T, title, collectionID string) string {
	t.Helper()
	id, err := e.Handlers.CreateTask(context.Background(), command.CreateTaskInput{
		Title:        title,
		CollectionID: collectionID,
	})
	if err != nil {
		t.Fatalf("creating task %q: %v", title, err)
	}
	return id
}

// SubTask creates a sub-task under parent and returns its ID.
func (e *Env) SubTask(t *testing.T, title, collectionID, parentID string) string {
	t.Helper()
	id, err := e.Handlers.CreateTask(context.Background(), command.CreateTaskInput{
		Title:        title,
		CollectionID: collectionID,
		ParentTaskID: parentID,
	})
	if err != nil {
		t.Fatalf("creating sub-task %q: %v", title, err)
	}
	return id
}

// NewStorageDB opens an in-memory SQLite database with all migrations
// applied, closed automatically when the test completes.
func NewStorageDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing test db: %v", err)
		}
	})
	return db
}
