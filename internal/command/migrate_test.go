package command_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/bujotrack/internal/command"
	"github.com/minhvu/bujotrack/internal/model"
	"github.com/minhvu/bujotrack/internal/projection"
	"github.com/minhvu/bujotrack/tests/testutil"
)

// A completed task migrated to next month keeps its state in the new
// collection while the original shows as crossed out.
func TestMigrateTaskMove(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	march := env.Collection(t, "March")
	april := env.Collection(t, "April")
	id := env.Task(t, "Buy milk", march)
	require.NoError(t, env.Handlers.CompleteTask(ctx, id))

	newID, err := env.Handlers.MigrateTask(ctx, id, april, model.MigrateMove)
	require.NoError(t, err)
	require.NotEqual(t, id, newID)

	// The original is crossed out of March's active view but still
	// reachable for audit.
	assert.Empty(t, env.Entries.List(projection.Filter{CollectionID: march}))
	orig := env.Entries.ByID(id)
	require.NotNil(t, orig)
	assert.True(t, orig.Migrated())
	assert.Equal(t, newID, orig.MigratedTo)
	assert.True(t, orig.InCollection(march), "membership survives the move")

	// The copy lands in April carrying status and provenance.
	inApril := env.Entries.List(projection.Filter{CollectionID: april})
	require.Len(t, inApril, 1)
	got := inApril[0]
	assert.Equal(t, newID, got.ID)
	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, id, got.MigratedFrom)
	assert.Equal(t, march, got.MigratedFromCollectionID)
}

func TestMigrateTaskIsIdempotentPerTarget(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	march := env.Collection(t, "March")
	april := env.Collection(t, "April")
	may := env.Collection(t, "May")
	id := env.Task(t, "Buy milk", march)

	newID, err := env.Handlers.MigrateTask(ctx, id, april, model.MigrateMove)
	require.NoError(t, err)

	// A retry to the same target returns the existing entry, no new events.
	before := eventCount(t, env)
	again, err := env.Handlers.MigrateTask(ctx, id, april, model.MigrateMove)
	require.NoError(t, err)
	assert.Equal(t, newID, again)
	assert.Equal(t, before, eventCount(t, env))

	// A different target is a conflict; the caller must migrate the new
	// entry instead.
	_, err = env.Handlers.MigrateTask(ctx, id, may, model.MigrateMove)
	assert.ErrorIs(t, err, command.ErrEntryMigrated)

	// And migrating the landing entry onward works.
	third, err := env.Handlers.MigrateTask(ctx, newID, may, model.MigrateMove)
	require.NoError(t, err)
	assert.Equal(t, newID, env.Entries.ByID(third).MigratedFrom)
}

func TestMigrateTaskAddMode(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	march := env.Collection(t, "March")
	goals := env.Collection(t, "Goals")
	id := env.Task(t, "Run a 10k", march)

	got, err := env.Handlers.MigrateTask(ctx, id, goals, model.MigrateAdd)
	require.NoError(t, err)
	assert.Equal(t, id, got, "add mode keeps the same entry")

	e := env.Entries.ByID(id)
	assert.False(t, e.Migrated())
	assert.ElementsMatch(t, []string{march, goals}, e.Collections)

	// The one entry appears in both collections; completing it in either
	// view completes it everywhere.
	require.Len(t, env.Entries.List(projection.Filter{CollectionID: march}), 1)
	require.Len(t, env.Entries.List(projection.Filter{CollectionID: goals}), 1)
	require.NoError(t, env.Handlers.CompleteTask(ctx, id))
	assert.Equal(t, model.TaskStatusCompleted, env.Entries.List(projection.Filter{CollectionID: march})[0].Status)

	// Re-adding is a no-op.
	before := eventCount(t, env)
	_, err = env.Handlers.MigrateTask(ctx, id, goals, model.MigrateAdd)
	require.NoError(t, err)
	assert.Equal(t, before, eventCount(t, env))
}

func TestMigrateCascadesToLiveSubTasks(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	march := env.Collection(t, "March")
	april := env.Collection(t, "April")
	parent := env.Task(t, "ship it", march)
	child1 := env.SubTask(t, "write docs", march, parent)
	child2 := env.SubTask(t, "cut release", march, parent)
	require.NoError(t, env.Handlers.DeleteTask(ctx, child2))

	newParent, err := env.Handlers.MigrateTask(ctx, parent, april, model.MigrateMove)
	require.NoError(t, err)

	// The live child moved with its parent, re-parented under the copy.
	subs := env.Entries.SubTasks(newParent)
	require.Len(t, subs, 1)
	assert.Equal(t, "write docs", subs[0].Title)
	assert.Equal(t, child1, subs[0].MigratedFrom)
	assert.True(t, subs[0].ActiveIn(april))

	// The deleted child stayed behind, untouched.
	assert.True(t, env.Entries.ByID(child2).Deleted())
	assert.False(t, env.Entries.ByID(child2).Migrated())
	assert.True(t, env.Entries.ByID(child1).Migrated())
}

func TestMigrateCascadesThroughDeepSubTaskTrees(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	march := env.Collection(t, "March")
	april := env.Collection(t, "April")
	parent := env.Task(t, "ship it", march)
	child := env.SubTask(t, "write docs", march, parent)
	grandchild := env.SubTask(t, "draft changelog", march, child)

	newParent, err := env.Handlers.MigrateTask(ctx, parent, april, model.MigrateMove)
	require.NoError(t, err)

	// Every level of the original tree is crossed out of March.
	for _, id := range []string{parent, child, grandchild} {
		assert.True(t, env.Entries.ByID(id).Migrated())
	}
	assert.Empty(t, env.Entries.List(projection.Filter{CollectionID: march}))

	// The copies form the same tree under the new parent.
	subs := env.Entries.SubTasks(newParent)
	require.Len(t, subs, 1)
	childCopy := subs[0]
	assert.Equal(t, child, childCopy.MigratedFrom)
	assert.True(t, childCopy.ActiveIn(april))

	grandSubs := env.Entries.SubTasks(childCopy.ID)
	require.Len(t, grandSubs, 1)
	assert.Equal(t, "draft changelog", grandSubs[0].Title)
	assert.Equal(t, grandchild, grandSubs[0].MigratedFrom)
	assert.True(t, grandSubs[0].ActiveIn(april))
}

func TestMigratedOriginalRejectsFurtherMutation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	march := env.Collection(t, "March")
	april := env.Collection(t, "April")
	id := env.Task(t, "Buy milk", march)

	newID, err := env.Handlers.MigrateTask(ctx, id, april, model.MigrateMove)
	require.NoError(t, err)

	assert.ErrorIs(t, env.Handlers.CompleteTask(ctx, id), command.ErrEntryMigrated)
	assert.ErrorIs(t, env.Handlers.UpdateTaskTitle(ctx, id, "Buy oat milk"), command.ErrEntryMigrated)
	assert.ErrorIs(t, env.Handlers.ReorderTask(ctx, id, "", ""), command.ErrEntryMigrated)
	assert.ErrorIs(t, env.Handlers.DeleteTask(ctx, id), command.ErrEntryMigrated)
	assert.ErrorIs(t, env.Handlers.AddTaskToCollection(ctx, id, april), command.ErrEntryMigrated)
	assert.ErrorIs(t, env.Handlers.RemoveTaskFromCollection(ctx, id, march), command.ErrEntryMigrated)

	// The landing copy is the live entry and takes mutation as usual.
	require.NoError(t, env.Handlers.CompleteTask(ctx, newID))
	assert.Equal(t, model.TaskStatusCompleted, env.Entries.ByID(newID).Status)
}

func TestMigrateSkipsIndependentlyMigratedChildren(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	march := env.Collection(t, "March")
	april := env.Collection(t, "April")
	may := env.Collection(t, "May")
	parent := env.Task(t, "ship it", march)
	child := env.SubTask(t, "write docs", march, parent)

	// The child moved to May on its own first.
	childCopy, err := env.Handlers.MigrateTask(ctx, child, may, model.MigrateMove)
	require.NoError(t, err)

	newParent, err := env.Handlers.MigrateTask(ctx, parent, april, model.MigrateMove)
	require.NoError(t, err)

	// The already-migrated child keeps its May location.
	assert.Empty(t, env.Entries.SubTasks(newParent))
	assert.Equal(t, childCopy, env.Entries.ByID(child).MigratedTo)
	assert.True(t, env.Entries.ByID(childCopy).ActiveIn(may))
}

func TestMigrateDefaultModes(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	march := env.Collection(t, "March")
	april := env.Collection(t, "April")
	parent := env.Task(t, "ship it", march)
	child := env.SubTask(t, "write docs", march, parent)

	// Sub-tasks default to add mode.
	got, err := env.Handlers.MigrateTask(ctx, child, april, "")
	require.NoError(t, err)
	assert.Equal(t, child, got)
	assert.False(t, env.Entries.ByID(child).Migrated())

	// Top-level entries default to move mode.
	got, err = env.Handlers.MigrateTask(ctx, parent, april, "")
	require.NoError(t, err)
	assert.NotEqual(t, parent, got)
	assert.True(t, env.Entries.ByID(parent).Migrated())
}

func TestMigrateRejectsBadTargets(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	march := env.Collection(t, "March")
	gone := env.Collection(t, "Gone")
	id := env.Task(t, "Buy milk", march)
	require.NoError(t, env.Handlers.DeleteCollection(ctx, gone))

	_, err := env.Handlers.MigrateTask(ctx, id, "missing", model.MigrateMove)
	assert.ErrorIs(t, err, command.ErrCollectionNotFound)
	_, err = env.Handlers.MigrateTask(ctx, id, gone, model.MigrateMove)
	assert.ErrorIs(t, err, command.ErrCollectionDeleted)

	require.NoError(t, env.Handlers.DeleteTask(ctx, id))
	_, err = env.Handlers.MigrateTask(ctx, id, march, model.MigrateMove)
	assert.ErrorIs(t, err, command.ErrEntryDeleted)
}

func TestMigrateNoteAndEvent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	march := env.Collection(t, "March")
	april := env.Collection(t, "April")

	noteID, err := env.Handlers.CreateNote(ctx, command.CreateNoteInput{
		Content: "remember", CollectionID: march,
	})
	require.NoError(t, err)
	eventID, err := env.Handlers.CreateEvent(ctx, command.CreateEventInput{
		Content: "dentist", CollectionID: march, EventDate: "2026-04-01",
	})
	require.NoError(t, err)

	newNote, err := env.Handlers.MigrateNote(ctx, noteID, april, model.MigrateMove)
	require.NoError(t, err)
	assert.Equal(t, "remember", env.Entries.ByID(newNote).Content)

	newEvent, err := env.Handlers.MigrateEvent(ctx, eventID, april, model.MigrateMove)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-01", env.Entries.ByID(newEvent).EventDate)
}
