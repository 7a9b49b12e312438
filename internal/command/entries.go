package command

import (
	"context"
	"strings"

	"github.com/minhvu/bujotrack/internal/model"
)

// CreateTaskInput creates a task entry, optionally as a sub-task.
type CreateTaskInput struct {
	Title        string `validate:"required,max=500"`
	CollectionID string `validate:"required"`
	ParentTaskID string
}

// CreateTask appends a task at the end of its collection and returns the
// new entry ID.
func (h *Handlers) CreateTask(ctx context.Context, in CreateTaskInput) (string, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := h.validate.Struct(in); err != nil {
		return "", err
	}
	col, err := h.requireActiveCollection(in.CollectionID)
	if err != nil {
		return "", err
	}
	if in.ParentTaskID != "" {
		if _, err := h.requireLiveEntry(in.ParentTaskID, model.KindTask); err != nil {
			return "", err
		}
	}
	order, err := h.tailOrder(col.ID)
	if err != nil {
		return "", err
	}

	id := h.newID()
	ev := h.event(model.EntryCreated, id, model.EntryCreatedPayload{
		Kind:          model.KindTask,
		Title:         in.Title,
		CollectionID:  col.ID,
		Collections:   []string{col.ID},
		Order:         order,
		ParentEntryID: in.ParentTaskID,
		Status:        model.TaskStatusOpen,
	})
	if err := h.log.Append(ctx, ev); err != nil {
		return "", err
	}
	return id, nil
}

// CreateNoteInput creates a note entry.
type CreateNoteInput struct {
	Content      string `validate:"required,max=5000"`
	CollectionID string `validate:"required"`
}

func (h *Handlers) CreateNote(ctx context.Context, in CreateNoteInput) (string, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := h.validate.Struct(in); err != nil {
		return "", err
	}
	return h.createContentEntry(ctx, model.KindNote, in.Content, "", in.CollectionID)
}

// CreateEventInput creates an event entry with an optional date.
type CreateEventInput struct {
	Content      string `validate:"required,max=5000"`
	CollectionID string `validate:"required"`
	EventDate    string `validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handlers) CreateEvent(ctx context.Context, in CreateEventInput) (string, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := h.validate.Struct(in); err != nil {
		return "", err
	}
	return h.createContentEntry(ctx, model.KindEvent, in.Content, in.EventDate, in.CollectionID)
}

func (h *Handlers) createContentEntry(ctx context.Context, kind model.EntryKind, content, eventDate, collectionID string) (string, error) {
	col, err := h.requireActiveCollection(collectionID)
	if err != nil {
		return "", err
	}
	order, err := h.tailOrder(col.ID)
	if err != nil {
		return "", err
	}

	id := h.newID()
	ev := h.event(model.EntryCreated, id, model.EntryCreatedPayload{
		Kind:         kind,
		Content:      content,
		EventDate:    eventDate,
		CollectionID: col.ID,
		Collections:  []string{col.ID},
		Order:        order,
	})
	if err := h.log.Append(ctx, ev); err != nil {
		return "", err
	}
	return id, nil
}

// CompleteTask marks a task completed. Completing an already-completed
// task changes nothing and appends nothing.
func (h *Handlers) CompleteTask(ctx context.Context, taskID string) error {
	e, err := h.requireLiveEntry(taskID, model.KindTask)
	if err != nil {
		return err
	}
	if e.Status == model.TaskStatusCompleted {
		return nil
	}
	return h.log.Append(ctx, h.event(model.TaskCompleted, e.ID, model.TaskCompletedPayload{
		CompletedAt: h.now().UTC(),
	}))
}

// ReopenTask reverts a completed task to open.
func (h *Handlers) ReopenTask(ctx context.Context, taskID string) error {
	e, err := h.requireLiveEntry(taskID, model.KindTask)
	if err != nil {
		return err
	}
	if e.Status != model.TaskStatusCompleted {
		return nil
	}
	return h.log.Append(ctx, h.event(model.TaskReopened, e.ID, model.TaskReopenedPayload{}))
}

// UpdateTaskTitle renames a task. An unchanged title (case-sensitive)
// appends nothing.
func (h *Handlers) UpdateTaskTitle(ctx context.Context, taskID, title string) error {
	title = strings.TrimSpace(title)
	in := struct {
		Title string `validate:"required,max=500"`
	}{title}
	if err := h.validate.Struct(in); err != nil {
		return err
	}
	e, err := h.requireLiveEntry(taskID, model.KindTask)
	if err != nil {
		return err
	}
	if e.Title == title {
		return nil
	}
	return h.log.Append(ctx, h.event(model.EntryUpdated, e.ID, model.EntryUpdatedPayload{
		Title: &title,
	}))
}

// UpdateNoteContent rewrites a note's content.
func (h *Handlers) UpdateNoteContent(ctx context.Context, noteID, content string) error {
	return h.updateContent(ctx, noteID, model.KindNote, content)
}

// UpdateEventContent rewrites an event entry's content.
func (h *Handlers) UpdateEventContent(ctx context.Context, eventID, content string) error {
	return h.updateContent(ctx, eventID, model.KindEvent, content)
}

func (h *Handlers) updateContent(ctx context.Context, id string, kind model.EntryKind, content string) error {
	content = strings.TrimSpace(content)
	in := struct {
		Content string `validate:"required,max=5000"`
	}{content}
	if err := h.validate.Struct(in); err != nil {
		return err
	}
	e, err := h.requireLiveEntry(id, kind)
	if err != nil {
		return err
	}
	if e.Content == content {
		return nil
	}
	return h.log.Append(ctx, h.event(model.EntryUpdated, e.ID, model.EntryUpdatedPayload{
		Content: &content,
	}))
}

// ReorderTask moves a task between two neighbors; nil IDs mean list ends.
func (h *Handlers) ReorderTask(ctx context.Context, taskID, previousTaskID, nextTaskID string) error {
	return h.reorderEntry(ctx, taskID, model.KindTask, previousTaskID, nextTaskID)
}

func (h *Handlers) ReorderNote(ctx context.Context, noteID, previousNoteID, nextNoteID string) error {
	return h.reorderEntry(ctx, noteID, model.KindNote, previousNoteID, nextNoteID)
}

func (h *Handlers) ReorderEvent(ctx context.Context, eventID, previousEventID, nextEventID string) error {
	return h.reorderEntry(ctx, eventID, model.KindEvent, previousEventID, nextEventID)
}

func (h *Handlers) reorderEntry(ctx context.Context, id string, kind model.EntryKind, prevID, nextID string) error {
	e, err := h.requireLiveEntry(id, kind)
	if err != nil {
		return err
	}
	var prev, next *model.Entry
	if prevID != "" {
		if prev = h.entries.ByID(prevID); prev == nil {
			return ErrEntryNotFound
		}
	}
	if nextID != "" {
		if next = h.entries.ByID(nextID); next == nil {
			return ErrEntryNotFound
		}
	}
	order, err := orderBetween(prev, next)
	if err != nil {
		return err
	}
	if order == e.Order {
		return nil
	}
	return h.log.Append(ctx, h.event(model.EntryReordered, e.ID, model.EntryReorderedPayload{
		Order: order,
	}))
}

// DeleteTask soft-deletes a task. Live sub-tasks go with it: the parent
// and every descendant are deleted together in one atomic batch. Callers
// surface the sub-task count and confirm before invoking; the handler
// cascades unconditionally.
func (h *Handlers) DeleteTask(ctx context.Context, taskID string) error {
	return h.deleteEntry(ctx, taskID, model.KindTask)
}

func (h *Handlers) DeleteNote(ctx context.Context, noteID string) error {
	return h.deleteEntry(ctx, noteID, model.KindNote)
}

func (h *Handlers) DeleteEvent(ctx context.Context, eventID string) error {
	return h.deleteEntry(ctx, eventID, model.KindEvent)
}

func (h *Handlers) deleteEntry(ctx context.Context, id string, kind model.EntryKind) error {
	e, err := h.requireLiveEntry(id, kind)
	if err != nil {
		return err
	}

	deletedAt := h.now().UTC()
	batch := []model.Event{
		h.event(model.EntryDeleted, e.ID, model.EntryDeletedPayload{DeletedAt: deletedAt}),
	}
	for _, child := range h.descendants(e.ID) {
		batch = append(batch, h.event(model.EntryDeleted, child.ID, model.EntryDeletedPayload{
			DeletedAt: deletedAt,
		}))
	}
	return h.log.AppendBatch(ctx, batch)
}

// descendants collects the live sub-tree below an entry, parents before
// children.
func (h *Handlers) descendants(id string) []*model.Entry {
	var out []*model.Entry
	for _, child := range h.entries.SubTasks(id) {
		out = append(out, child)
		out = append(out, h.descendants(child.ID)...)
	}
	return out
}

// RestoreEntry reverts a soft delete. Deleting a sub-task alone never
// touched its parent, so restore is likewise per-entry.
func (h *Handlers) RestoreEntry(ctx context.Context, entryID string) error {
	e := h.entries.ByID(entryID)
	if e == nil {
		return ErrEntryNotFound
	}
	if !e.Deleted() {
		return ErrEntryNotDeleted
	}
	return h.log.Append(ctx, h.event(model.EntryRestored, e.ID, model.EntryRestoredPayload{}))
}

// AddTaskToCollection adds a collection to a task's membership set without
// removing it anywhere (a ghost entry). Adding an existing membership
// appends nothing.
func (h *Handlers) AddTaskToCollection(ctx context.Context, taskID, collectionID string) error {
	return h.addToCollection(ctx, taskID, model.KindTask, collectionID)
}

func (h *Handlers) AddNoteToCollection(ctx context.Context, noteID, collectionID string) error {
	return h.addToCollection(ctx, noteID, model.KindNote, collectionID)
}

func (h *Handlers) AddEventToCollection(ctx context.Context, eventID, collectionID string) error {
	return h.addToCollection(ctx, eventID, model.KindEvent, collectionID)
}

func (h *Handlers) addToCollection(ctx context.Context, id string, kind model.EntryKind, collectionID string) error {
	e, err := h.requireLiveEntry(id, kind)
	if err != nil {
		return err
	}
	if _, err := h.requireActiveCollection(collectionID); err != nil {
		return err
	}
	if e.InCollection(collectionID) {
		return nil
	}
	return h.log.Append(ctx, h.event(model.EntryAddedToCollection, e.ID, model.EntryAddedToCollectionPayload{
		CollectionID: collectionID,
	}))
}

// RemoveTaskFromCollection removes one membership; other memberships and
// the entry itself are untouched.
func (h *Handlers) RemoveTaskFromCollection(ctx context.Context, taskID, collectionID string) error {
	return h.removeFromCollection(ctx, taskID, model.KindTask, collectionID)
}

func (h *Handlers) RemoveNoteFromCollection(ctx context.Context, noteID, collectionID string) error {
	return h.removeFromCollection(ctx, noteID, model.KindNote, collectionID)
}

func (h *Handlers) RemoveEventFromCollection(ctx context.Context, eventID, collectionID string) error {
	return h.removeFromCollection(ctx, eventID, model.KindEvent, collectionID)
}

func (h *Handlers) removeFromCollection(ctx context.Context, id string, kind model.EntryKind, collectionID string) error {
	e, err := h.requireLiveEntry(id, kind)
	if err != nil {
		return err
	}
	if !e.InCollection(collectionID) {
		return ErrNotInCollection
	}
	return h.log.Append(ctx, h.event(model.EntryRemovedFromCollection, e.ID, model.EntryRemovedFromCollectionPayload{
		CollectionID: collectionID,
	}))
}

// MoveTaskToCollection atomically swaps one membership for another.
func (h *Handlers) MoveTaskToCollection(ctx context.Context, taskID, fromCollectionID, toCollectionID string) error {
	return h.moveToCollection(ctx, taskID, model.KindTask, fromCollectionID, toCollectionID)
}

func (h *Handlers) MoveNoteToCollection(ctx context.Context, noteID, fromCollectionID, toCollectionID string) error {
	return h.moveToCollection(ctx, noteID, model.KindNote, fromCollectionID, toCollectionID)
}

func (h *Handlers) MoveEventToCollection(ctx context.Context, eventID, fromCollectionID, toCollectionID string) error {
	return h.moveToCollection(ctx, eventID, model.KindEvent, fromCollectionID, toCollectionID)
}

func (h *Handlers) moveToCollection(ctx context.Context, id string, kind model.EntryKind, fromID, toID string) error {
	e, err := h.requireLiveEntry(id, kind)
	if err != nil {
		return err
	}
	if !e.InCollection(fromID) {
		return ErrNotInCollection
	}
	if _, err := h.requireActiveCollection(toID); err != nil {
		return err
	}
	if fromID == toID {
		return nil
	}
	batch := []model.Event{
		h.event(model.EntryRemovedFromCollection, e.ID, model.EntryRemovedFromCollectionPayload{CollectionID: fromID}),
	}
	if !e.InCollection(toID) {
		batch = append(batch, h.event(model.EntryAddedToCollection, e.ID, model.EntryAddedToCollectionPayload{CollectionID: toID}))
	}
	return h.log.AppendBatch(ctx, batch)
}
