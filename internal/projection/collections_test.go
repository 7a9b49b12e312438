package projection_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/bujotrack/internal/eventlog"
	"github.com/minhvu/bujotrack/internal/model"
	"github.com/minhvu/bujotrack/internal/projection"
)

func createCollection(c *clock, id, name string, typ model.CollectionType, date, order string) model.Event {
	return model.NewEvent("create-"+id, model.CollectionCreated, id, c.next(), model.CollectionCreatedPayload{
		Name:  name,
		Type:  typ,
		Date:  date,
		Order: order,
	})
}

func TestCollectionsFoldsLifecycle(t *testing.T) {
	log := eventlog.NewMemoryLog()
	c := &clock{t: base}
	ctx := context.Background()

	p, err := projection.NewCollections(ctx, log, nil)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, log.Append(ctx, createCollection(c, "col-a", "Groceries", model.CollectionCustom, "", "V")))

	col := p.ByID("col-a")
	require.NotNil(t, col)
	assert.Equal(t, "Groceries", col.Name)
	assert.False(t, col.IsFavorite)
	assert.Nil(t, col.Settings)

	require.NoError(t, log.AppendBatch(ctx, []model.Event{
		model.NewEvent("rename", model.CollectionRenamed, "col-a", c.next(),
			model.CollectionRenamedPayload{Name: "Errands"}),
		model.NewEvent("fav", model.CollectionFavoriteSet, "col-a", c.next(),
			model.CollectionFavoriteSetPayload{Favorite: true}),
		model.NewEvent("settings", model.CollectionSettingsUpdated, "col-a", c.next(),
			model.CollectionSettingsUpdatedPayload{CompletedTaskBehavior: model.CompletedTaskHide}),
	}))

	col = p.ByID("col-a")
	assert.Equal(t, "Errands", col.Name)
	assert.True(t, col.IsFavorite)
	require.NotNil(t, col.Settings)
	assert.Equal(t, model.CompletedTaskHide, col.Settings.CompletedTaskBehavior)

	deletedAt := c.next()
	require.NoError(t, log.Append(ctx, model.NewEvent("del", model.CollectionDeleted, "col-a", deletedAt,
		model.CollectionDeletedPayload{DeletedAt: deletedAt})))
	assert.Empty(t, p.List())
	assert.True(t, p.ByID("col-a").Deleted())

	require.NoError(t, log.Append(ctx, model.NewEvent("undel", model.CollectionRestored, "col-a", c.next(),
		model.CollectionRestoredPayload{})))
	require.Len(t, p.List(), 1)
}

func TestCollectionsListOrder(t *testing.T) {
	log := eventlog.NewMemoryLog()
	c := &clock{t: base}
	ctx := context.Background()

	p, err := projection.NewCollections(ctx, log, nil)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, log.AppendBatch(ctx, []model.Event{
		createCollection(c, "col-b", "B", model.CollectionCustom, "", "V"),
		createCollection(c, "col-a", "A", model.CollectionCustom, "", "F"),
	}))
	require.NoError(t, log.Append(ctx, model.NewEvent("reorder", model.CollectionReordered, "col-b", c.next(),
		model.CollectionReorderedPayload{Order: "A"})))

	list := p.List()
	require.Len(t, list, 2)
	assert.Equal(t, "col-b", list[0].ID)
	assert.Equal(t, "col-a", list[1].ID)
}

func TestCollectionsActiveByName(t *testing.T) {
	log := eventlog.NewMemoryLog()
	c := &clock{t: base}
	ctx := context.Background()

	p, err := projection.NewCollections(ctx, log, nil)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, log.AppendBatch(ctx, []model.Event{
		createCollection(c, "col-a", "Inbox", model.CollectionCustom, "", "F"),
		createCollection(c, "col-b", "inbox", model.CollectionCustom, "", "V"),
	}))
	deletedAt := c.next()
	require.NoError(t, log.Append(ctx, model.NewEvent("del", model.CollectionDeleted, "col-a", deletedAt,
		model.CollectionDeletedPayload{DeletedAt: deletedAt})))

	// Case-sensitive, live only.
	assert.Empty(t, p.ActiveByName("Inbox"))
	got := p.ActiveByName("inbox")
	require.Len(t, got, 1)
	assert.Equal(t, "col-b", got[0].ID)
}

func TestCollectionDisplayName(t *testing.T) {
	tests := []struct {
		name string
		col  model.Collection
		want string
	}{
		{
			name: "daily formats its date",
			col:  model.Collection{Type: model.CollectionDaily, Name: "stale", Date: "2026-03-14"},
			want: "Sat, Mar 14, 2026",
		},
		{
			name: "monthly formats its month",
			col:  model.Collection{Type: model.CollectionMonthly, Name: "stale", Date: "2026-03"},
			want: "March 2026",
		},
		{
			name: "custom uses stored name",
			col:  model.Collection{Type: model.CollectionCustom, Name: "Groceries"},
			want: "Groceries",
		},
		{
			name: "unparsable date falls back to stored name",
			col:  model.Collection{Type: model.CollectionDaily, Name: "fallback", Date: "not-a-date"},
			want: "fallback",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.col.DisplayName())
		})
	}
}
