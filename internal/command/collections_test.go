package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/bujotrack/internal/command"
	"github.com/minhvu/bujotrack/internal/model"
	"github.com/minhvu/bujotrack/tests/testutil"
)

func TestCreateCollection(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	id, err := env.Handlers.CreateCollection(ctx, command.CreateCollectionInput{
		Name: "  Groceries  ",
		Type: model.CollectionCustom,
	})
	require.NoError(t, err)

	c := env.Collections.ByID(id)
	require.NotNil(t, c)
	assert.Equal(t, "Groceries", c.Name)
	assert.Equal(t, model.CollectionCustom, c.Type)
	assert.NotEmpty(t, c.Order)
}

func TestCreateCollectionDateRules(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	_, err := env.Handlers.CreateCollection(ctx, command.CreateCollectionInput{
		Name: "today", Type: model.CollectionDaily, Date: "2026-03-14",
	})
	require.NoError(t, err)

	_, err = env.Handlers.CreateCollection(ctx, command.CreateCollectionInput{
		Name: "bad daily", Type: model.CollectionDaily, Date: "2026-03",
	})
	assert.ErrorIs(t, err, command.ErrInvalidDate)

	_, err = env.Handlers.CreateCollection(ctx, command.CreateCollectionInput{
		Name: "this month", Type: model.CollectionMonthly, Date: "2026-03",
	})
	require.NoError(t, err)

	_, err = env.Handlers.CreateCollection(ctx, command.CreateCollectionInput{
		Name: "bad monthly", Type: model.CollectionMonthly, Date: "",
	})
	assert.ErrorIs(t, err, command.ErrInvalidDate)

	_, err = env.Handlers.CreateCollection(ctx, command.CreateCollectionInput{
		Name: "freeform", Type: "weekly",
	})
	assert.Error(t, err, "unknown collection type")
}

func TestCreateCollectionDedupeWindow(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	first, err := env.Handlers.CreateCollection(ctx, command.CreateCollectionInput{
		Name: "Groceries", Type: model.CollectionCustom,
	})
	require.NoError(t, err)

	// A duplicate inside the window is a retry: same ID, no new events.
	before := eventCount(t, env)
	env.Advance(2 * time.Second)
	retry, err := env.Handlers.CreateCollection(ctx, command.CreateCollectionInput{
		Name: "Groceries", Type: model.CollectionCustom,
	})
	require.NoError(t, err)
	assert.Equal(t, first, retry)
	assert.Equal(t, before, eventCount(t, env))

	// A different name inside the window is a real create.
	other, err := env.Handlers.CreateCollection(ctx, command.CreateCollectionInput{
		Name: "groceries", Type: model.CollectionCustom,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, other, "dedup compare is case-sensitive")

	// Past the window the same name makes a second collection.
	env.Advance(time.Minute)
	second, err := env.Handlers.CreateCollection(ctx, command.CreateCollectionInput{
		Name: "Groceries", Type: model.CollectionCustom,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Len(t, env.Collections.ActiveByName("Groceries"), 2)
}

func TestRenameCollection(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	id := env.Collection(t, "Groceries")

	before := eventCount(t, env)
	require.NoError(t, env.Handlers.RenameCollection(ctx, id, "Groceries"))
	assert.Equal(t, before, eventCount(t, env), "unchanged name appends nothing")

	require.NoError(t, env.Handlers.RenameCollection(ctx, id, "groceries"))
	assert.Equal(t, before+1, eventCount(t, env), "case-only rename is a real change")
	assert.Equal(t, "groceries", env.Collections.ByID(id).Name)

	assert.Error(t, env.Handlers.RenameCollection(ctx, id, "   "))
}

func TestReorderCollection(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	a := env.Collection(t, "A")
	b := env.Collection(t, "B")
	c := env.Collection(t, "C")

	require.NoError(t, env.Handlers.ReorderCollection(ctx, c, a, b))
	list := env.Collections.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{a, c, b}, []string{list[0].ID, list[1].ID, list[2].ID})

	before := eventCount(t, env)
	require.NoError(t, env.Handlers.ReorderCollection(ctx, c, a, b))
	assert.Equal(t, before, eventCount(t, env), "repeat reorder recomputes the same key")

	assert.ErrorIs(t, env.Handlers.ReorderCollection(ctx, c, "missing", ""), command.ErrCollectionNotFound)
}

func TestUpdateCollectionSettings(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	id := env.Collection(t, "Groceries")

	require.NoError(t, env.Handlers.UpdateCollectionSettings(ctx, id, model.CompletedTaskHide))
	c := env.Collections.ByID(id)
	require.NotNil(t, c.Settings)
	assert.Equal(t, model.CompletedTaskHide, c.Settings.CompletedTaskBehavior)

	before := eventCount(t, env)
	require.NoError(t, env.Handlers.UpdateCollectionSettings(ctx, id, model.CompletedTaskHide))
	assert.Equal(t, before, eventCount(t, env))

	assert.Error(t, env.Handlers.UpdateCollectionSettings(ctx, id, "vanish"))
}

func TestSetCollectionFavorite(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	id := env.Collection(t, "Groceries")

	require.NoError(t, env.Handlers.SetCollectionFavorite(ctx, id, true))
	assert.True(t, env.Collections.ByID(id).IsFavorite)

	before := eventCount(t, env)
	require.NoError(t, env.Handlers.SetCollectionFavorite(ctx, id, true))
	assert.Equal(t, before, eventCount(t, env))
}

func TestDeleteAndRestoreCollection(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	id := env.Collection(t, "Groceries")
	taskID := env.Task(t, "Buy milk", id)

	require.NoError(t, env.Handlers.DeleteCollection(ctx, id))
	assert.True(t, env.Collections.ByID(id).Deleted())
	assert.ErrorIs(t, env.Handlers.DeleteCollection(ctx, id), command.ErrCollectionDeleted)
	assert.ErrorIs(t, env.Handlers.RestoreCollection(ctx, "missing"), command.ErrCollectionNotFound)

	// Entries keep their membership, so restoring brings the page back.
	require.NoError(t, env.Handlers.RestoreCollection(ctx, id))
	assert.False(t, env.Collections.ByID(id).Deleted())
	assert.True(t, env.Entries.ByID(taskID).ActiveIn(id))

	assert.ErrorIs(t, env.Handlers.RestoreCollection(ctx, id), command.ErrCollectionNotDeleted)
}
