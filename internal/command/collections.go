package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minhvu/bujotrack/internal/fracindex"
	"github.com/minhvu/bujotrack/internal/model"
)

// CreateCollectionInput creates a journal collection. Date is required for
// daily ("2006-01-02") and monthly ("2006-01") collections.
type CreateCollectionInput struct {
	Name string               `validate:"required,max=500"`
	Type model.CollectionType `validate:"required,oneof=daily monthly custom"`
	Date string
}

// CreateCollection appends a collection and returns its ID. A duplicate
// create with the same name inside the dedup window is treated as a retry:
// it returns the existing collection's ID and appends nothing. Outside the
// window duplicate names are allowed and create a second collection.
func (h *Handlers) CreateCollection(ctx context.Context, in CreateCollectionInput) (string, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := h.validate.Struct(in); err != nil {
		return "", err
	}
	if err := checkCollectionDate(in.Type, in.Date); err != nil {
		return "", err
	}

	now := h.now()
	for _, c := range h.cols.ActiveByName(in.Name) {
		if now.Sub(c.CreatedAt) <= h.dedupeWindow {
			return c.ID, nil
		}
	}

	last := ""
	if list := h.cols.List(); len(list) > 0 {
		last = list[len(list)-1].Order
	}
	order, err := fracindex.KeyBetween(last, "")
	if err != nil {
		return "", err
	}

	id := h.newID()
	ev := h.event(model.CollectionCreated, id, model.CollectionCreatedPayload{
		Name:  in.Name,
		Type:  in.Type,
		Date:  in.Date,
		Order: order,
	})
	if err := h.log.Append(ctx, ev); err != nil {
		return "", err
	}
	return id, nil
}

func checkCollectionDate(t model.CollectionType, date string) error {
	switch t {
	case model.CollectionDaily:
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return fmt.Errorf("%w: daily collections need a YYYY-MM-DD date, got %q", ErrInvalidDate, date)
		}
	case model.CollectionMonthly:
		if _, err := time.Parse("2006-01", date); err != nil {
			return fmt.Errorf("%w: monthly collections need a YYYY-MM date, got %q", ErrInvalidDate, date)
		}
	}
	return nil
}

// RenameCollection sets a new stored name. Renaming to the current name
// (case-sensitive compare) appends nothing.
func (h *Handlers) RenameCollection(ctx context.Context, collectionID, name string) error {
	name = strings.TrimSpace(name)
	in := struct {
		Name string `validate:"required,max=500"`
	}{name}
	if err := h.validate.Struct(in); err != nil {
		return err
	}
	c, err := h.requireActiveCollection(collectionID)
	if err != nil {
		return err
	}
	if c.Name == name {
		return nil
	}
	return h.log.Append(ctx, h.event(model.CollectionRenamed, c.ID, model.CollectionRenamedPayload{
		Name: name,
	}))
}

// ReorderCollection moves a collection between two neighbors; empty IDs
// mean list ends. A reorder that lands on the current key appends nothing.
func (h *Handlers) ReorderCollection(ctx context.Context, collectionID, previousID, nextID string) error {
	c, err := h.requireActiveCollection(collectionID)
	if err != nil {
		return err
	}
	a, b := "", ""
	if previousID != "" {
		prev := h.cols.ByID(previousID)
		if prev == nil {
			return ErrCollectionNotFound
		}
		a = prev.Order
	}
	if nextID != "" {
		next := h.cols.ByID(nextID)
		if next == nil {
			return ErrCollectionNotFound
		}
		b = next.Order
	}
	order, err := fracindex.KeyBetween(a, b)
	if err != nil {
		return err
	}
	if order == c.Order {
		return nil
	}
	return h.log.Append(ctx, h.event(model.CollectionReordered, c.ID, model.CollectionReorderedPayload{
		Order: order,
	}))
}

// UpdateCollectionSettings sets the completed-task behavior. An unchanged
// value appends nothing.
func (h *Handlers) UpdateCollectionSettings(ctx context.Context, collectionID, completedTaskBehavior string) error {
	in := struct {
		Behavior string `validate:"required,oneof=show strike hide"`
	}{completedTaskBehavior}
	if err := h.validate.Struct(in); err != nil {
		return err
	}
	c, err := h.requireActiveCollection(collectionID)
	if err != nil {
		return err
	}
	if c.Settings != nil && c.Settings.CompletedTaskBehavior == completedTaskBehavior {
		return nil
	}
	return h.log.Append(ctx, h.event(model.CollectionSettingsUpdated, c.ID, model.CollectionSettingsUpdatedPayload{
		CompletedTaskBehavior: completedTaskBehavior,
	}))
}

// SetCollectionFavorite toggles the favorite flag. An unchanged flag
// appends nothing.
func (h *Handlers) SetCollectionFavorite(ctx context.Context, collectionID string, favorite bool) error {
	c, err := h.requireActiveCollection(collectionID)
	if err != nil {
		return err
	}
	if c.IsFavorite == favorite {
		return nil
	}
	return h.log.Append(ctx, h.event(model.CollectionFavoriteSet, c.ID, model.CollectionFavoriteSetPayload{
		Favorite: favorite,
	}))
}

// DeleteCollection soft-deletes a collection. Entries keep their
// membership so a restore brings the page back intact.
func (h *Handlers) DeleteCollection(ctx context.Context, collectionID string) error {
	c, err := h.requireActiveCollection(collectionID)
	if err != nil {
		return err
	}
	return h.log.Append(ctx, h.event(model.CollectionDeleted, c.ID, model.CollectionDeletedPayload{
		DeletedAt: h.now().UTC(),
	}))
}

// RestoreCollection reverts a soft delete.
func (h *Handlers) RestoreCollection(ctx context.Context, collectionID string) error {
	c := h.cols.ByID(collectionID)
	if c == nil {
		return ErrCollectionNotFound
	}
	if !c.Deleted() {
		return ErrCollectionNotDeleted
	}
	return h.log.Append(ctx, h.event(model.CollectionRestored, c.ID, model.CollectionRestoredPayload{}))
}
