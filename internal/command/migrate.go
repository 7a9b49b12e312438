package command

import (
	"context"

	"github.com/minhvu/bujotrack/internal/fracindex"
	"github.com/minhvu/bujotrack/internal/model"
)

// MigrateTask migrates a task to another collection and returns the ID of
// the entry now representing it there. With mode empty the default
// applies: Add for sub-tasks (they stay with their parent's other
// memberships), Move for top-level entries.
func (h *Handlers) MigrateTask(ctx context.Context, taskID, targetCollectionID string, mode model.MigrateMode) (string, error) {
	return h.migrateEntry(ctx, taskID, model.KindTask, targetCollectionID, mode)
}

func (h *Handlers) MigrateNote(ctx context.Context, noteID, targetCollectionID string, mode model.MigrateMode) (string, error) {
	return h.migrateEntry(ctx, noteID, model.KindNote, targetCollectionID, mode)
}

func (h *Handlers) MigrateEvent(ctx context.Context, eventID, targetCollectionID string, mode model.MigrateMode) (string, error) {
	return h.migrateEntry(ctx, eventID, model.KindEvent, targetCollectionID, mode)
}

func (h *Handlers) migrateEntry(ctx context.Context, id string, kind model.EntryKind, targetID string, mode model.MigrateMode) (string, error) {
	e, err := h.requireEntry(id, kind)
	if err != nil {
		return "", err
	}
	if _, err := h.requireActiveCollection(targetID); err != nil {
		return "", err
	}

	if e.Migrated() {
		// Re-migrating to the same target is a retry and returns the
		// existing migrated entry; a different target is a conflict.
		dst := h.entries.ByID(e.MigratedTo)
		if dst != nil && dst.InCollection(targetID) {
			return e.MigratedTo, nil
		}
		return "", ErrEntryMigrated
	}

	if mode == "" {
		if e.ParentEntryID != "" {
			mode = model.MigrateAdd
		} else {
			mode = model.MigrateMove
		}
	}

	if mode == model.MigrateAdd {
		if e.InCollection(targetID) {
			return e.ID, nil
		}
		ev := h.event(model.EntryMigrated, e.ID, model.EntryMigratedPayload{
			TargetCollectionID: targetID,
			Mode:               model.MigrateAdd,
		})
		if err := h.log.Append(ctx, ev); err != nil {
			return "", err
		}
		return e.ID, nil
	}

	return h.moveMigrate(ctx, e, targetID)
}

// moveMigrate crosses the entry out where it is and recreates it in the
// target collection, cascading down the whole live sub-task tree. Every
// affected entity is validated first and updated in one atomic batch.
func (h *Handlers) moveMigrate(ctx context.Context, e *model.Entry, targetID string) (string, error) {
	order, err := h.tailOrder(targetID)
	if err != nil {
		return "", err
	}

	newID := h.newID()
	batch := []model.Event{
		h.event(model.EntryMigrated, e.ID, model.EntryMigratedPayload{
			MigratedTo:         newID,
			TargetCollectionID: targetID,
			Mode:               model.MigrateMove,
		}),
		h.event(model.EntryCreated, newID, migratedCopy(e, targetID, order, e.ParentEntryID)),
	}

	batch, _, err = h.cascadeMigrate(batch, e.ID, newID, e.PrimaryCollection(), targetID, order)
	if err != nil {
		return "", err
	}
	if err := h.log.AppendBatch(ctx, batch); err != nil {
		return "", err
	}
	return newID, nil
}

// cascadeMigrate walks the live sub-task tree below parentID, migrating
// each level and re-parenting under the new IDs. A child that already
// migrated itself, or whose membership no longer includes the collection
// the tree is leaving (its landing copy lives elsewhere), keeps its final
// location; the migratedFrom chain stays intact for audit.
func (h *Handlers) cascadeMigrate(batch []model.Event, parentID, newParentID, fromID, targetID, tail string) ([]model.Event, string, error) {
	for _, child := range h.entries.SubTasks(parentID) {
		if child.Migrated() || !child.InCollection(fromID) {
			continue
		}
		childOrder, err := fracindex.KeyBetween(tail, "")
		if err != nil {
			return nil, "", err
		}
		tail = childOrder

		childNewID := h.newID()
		batch = append(batch,
			h.event(model.EntryMigrated, child.ID, model.EntryMigratedPayload{
				MigratedTo:         childNewID,
				TargetCollectionID: targetID,
				Mode:               model.MigrateMove,
			}),
			h.event(model.EntryCreated, childNewID, migratedCopy(child, targetID, childOrder, newParentID)),
		)
		batch, tail, err = h.cascadeMigrate(batch, child.ID, childNewID, fromID, targetID, tail)
		if err != nil {
			return nil, "", err
		}
	}
	return batch, tail, nil
}

// migratedCopy builds the creation payload for the landing side of a move,
// carrying state forward and recording where it came from.
func migratedCopy(e *model.Entry, targetID, order, parentID string) model.EntryCreatedPayload {
	return model.EntryCreatedPayload{
		Kind:                     e.Kind,
		Title:                    e.Title,
		Content:                  e.Content,
		EventDate:                e.EventDate,
		CollectionID:             targetID,
		Collections:              []string{targetID},
		Order:                    order,
		ParentEntryID:            parentID,
		Status:                   e.Status,
		CompletedAt:              e.CompletedAt,
		MigratedFrom:             e.ID,
		MigratedFromCollectionID: e.PrimaryCollection(),
	}
}
