package model

import "time"

// EntryKind discriminates the tagged union of journal entries.
type EntryKind string

const (
	KindTask  EntryKind = "task"
	KindNote  EntryKind = "note"
	KindEvent EntryKind = "event"
)

// Task status constants.
const (
	TaskStatusOpen      = "open"
	TaskStatusCompleted = "completed"
)

// Entry is a journal entry: a task, a note, or an event. Task entries use
// Title/Status/CompletedAt; note and event entries use Content, and event
// entries may additionally carry EventDate.
//
// Collections is the authoritative membership set. CollectionID is a legacy
// convenience pointer that may be stale and must never win over Collections
// when they disagree.
type Entry struct {
	ID          string     `json:"id"`
	Kind        EntryKind  `json:"kind"`
	Title       string     `json:"title,omitempty"`
	Content     string     `json:"content,omitempty"`
	EventDate   string     `json:"eventDate,omitempty"`
	Status      string     `json:"status,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Order        string   `json:"order"`
	CollectionID string   `json:"collectionId,omitempty"`
	Collections  []string `json:"collections"`

	ParentEntryID string `json:"parentEntryId,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	MigratedTo               string `json:"migratedTo,omitempty"`
	MigratedFrom             string `json:"migratedFrom,omitempty"`
	MigratedFromCollectionID string `json:"migratedFromCollectionId,omitempty"`
}

// Deleted reports whether the entry is soft-deleted.
func (e *Entry) Deleted() bool { return e.DeletedAt != nil }

// Migrated reports whether the entry has been moved elsewhere and is
// crossed out in its original collections.
func (e *Entry) Migrated() bool { return e.MigratedTo != "" }

// InCollection checks membership against the authoritative set.
func (e *Entry) InCollection(collectionID string) bool {
	for _, id := range e.Collections {
		if id == collectionID {
			return true
		}
	}
	return false
}

// ActiveIn reports whether the entry should appear in a collection's
// active view: a live member that has not been migrated away.
func (e *Entry) ActiveIn(collectionID string) bool {
	return !e.Deleted() && !e.Migrated() && e.InCollection(collectionID)
}

// LinkedElsewhere reports whether a sub-task migrated independently of its
// parent: viewed in the parent's collection, a child whose membership set
// no longer includes that collection shows as linked elsewhere.
func (e *Entry) LinkedElsewhere(viewCollectionID string) bool {
	if e.ParentEntryID == "" {
		return false
	}
	return e.Migrated() || !e.InCollection(viewCollectionID)
}

// PrimaryCollection resolves the collection an entry is "in" for display
// and back-navigation purposes, preferring the authoritative set.
func (e *Entry) PrimaryCollection() string {
	if len(e.Collections) > 0 {
		return e.Collections[0]
	}
	return e.CollectionID
}

// Clone returns a deep copy so projection internals never leak to callers.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Collections = append([]string(nil), e.Collections...)
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

func (e *Entry) addCollection(id string) {
	if !e.InCollection(id) {
		e.Collections = append(e.Collections, id)
	}
}

func (e *Entry) removeCollection(id string) {
	out := e.Collections[:0]
	for _, c := range e.Collections {
		if c != id {
			out = append(out, c)
		}
	}
	e.Collections = out
}

// Apply folds one event into the entry, assuming ev.AggregateID == e.ID.
// Creation is handled by the caller; unknown types are ignored.
func (e *Entry) Apply(ev Event) {
	switch p := ev.Payload.(type) {
	case TaskCompletedPayload:
		e.Status = TaskStatusCompleted
		t := p.CompletedAt
		e.CompletedAt = &t
	case TaskReopenedPayload:
		e.Status = TaskStatusOpen
		e.CompletedAt = nil
	case EntryUpdatedPayload:
		if p.Title != nil {
			e.Title = *p.Title
		}
		if p.Content != nil {
			e.Content = *p.Content
		}
		if p.EventDate != nil {
			e.EventDate = *p.EventDate
		}
	case EntryReorderedPayload:
		e.Order = p.Order
	case EntryDeletedPayload:
		t := p.DeletedAt
		e.DeletedAt = &t
	case EntryRestoredPayload:
		e.DeletedAt = nil
	case EntryMigratedPayload:
		if p.Mode == MigrateAdd {
			e.addCollection(p.TargetCollectionID)
			return
		}
		e.MigratedTo = p.MigratedTo
	case EntryAddedToCollectionPayload:
		e.addCollection(p.CollectionID)
	case EntryRemovedFromCollectionPayload:
		e.removeCollection(p.CollectionID)
		if e.CollectionID == p.CollectionID {
			e.CollectionID = e.PrimaryCollection()
		}
	}
}

// NewEntryFromCreate materializes an entry from its creation payload.
func NewEntryFromCreate(id string, createdAt time.Time, p EntryCreatedPayload) *Entry {
	status := p.Status
	if p.Kind == KindTask && status == "" {
		status = TaskStatusOpen
	}
	collections := append([]string(nil), p.Collections...)
	collectionID := p.CollectionID
	if collectionID == "" && len(collections) > 0 {
		collectionID = collections[0]
	}
	return &Entry{
		ID:                       id,
		Kind:                     p.Kind,
		Title:                    p.Title,
		Content:                  p.Content,
		EventDate:                p.EventDate,
		Status:                   status,
		CompletedAt:              p.CompletedAt,
		Order:                    p.Order,
		CollectionID:             collectionID,
		Collections:              collections,
		ParentEntryID:            p.ParentEntryID,
		CreatedAt:                createdAt,
		MigratedFrom:             p.MigratedFrom,
		MigratedFromCollectionID: p.MigratedFromCollectionID,
	}
}
