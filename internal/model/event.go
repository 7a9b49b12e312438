package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventSchemaVersion is stamped on every newly built event and identifies
// the payload shape. Bump it when a payload struct changes incompatibly.
const EventSchemaVersion = 1

// EventType tags the payload carried by an event envelope.
type EventType string

// Entry aggregate events.
const (
	EntryCreated               EventType = "entry.created"
	TaskCompleted              EventType = "task.completed"
	TaskReopened               EventType = "task.reopened"
	EntryUpdated               EventType = "entry.updated"
	EntryReordered             EventType = "entry.reordered"
	EntryDeleted               EventType = "entry.deleted"
	EntryRestored              EventType = "entry.restored"
	EntryMigrated              EventType = "entry.migrated"
	EntryAddedToCollection     EventType = "entry.added-to-collection"
	EntryRemovedFromCollection EventType = "entry.removed-from-collection"
)

// Collection aggregate events.
const (
	CollectionCreated         EventType = "collection.created"
	CollectionRenamed         EventType = "collection.renamed"
	CollectionReordered       EventType = "collection.reordered"
	CollectionSettingsUpdated EventType = "collection.settings-updated"
	CollectionFavoriteSet     EventType = "collection.favorite-set"
	CollectionDeleted         EventType = "collection.deleted"
	CollectionRestored        EventType = "collection.restored"
)

// Preferences aggregate events.
const (
	PreferencesUpdated EventType = "preferences.updated"
)

// Event is the immutable envelope appended to an event log. ID is globally
// unique and is the dedup key during sync; AggregateID names the entity the
// event mutates; Timestamp provides the total order used when folding,
// with ties broken by insertion order within a single log.
type Event struct {
	ID          string
	Type        EventType
	AggregateID string
	Timestamp   time.Time
	Version     int
	Payload     any
}

// MigrateMode selects between the two migration behaviors.
type MigrateMode string

const (
	// MigrateMove crosses the entry out in its original collection and
	// creates a linked copy in the target.
	MigrateMove MigrateMode = "move"
	// MigrateAdd adds the target collection to the entry's membership set
	// without removing it anywhere (a ghost entry).
	MigrateAdd MigrateMode = "add"
)

// EntryCreatedPayload carries the full initial state of a new entry.
// Migration fields are set when the entry is the landing side of a move.
type EntryCreatedPayload struct {
	Kind                     EntryKind `json:"kind"`
	Title                    string    `json:"title,omitempty"`
	Content                  string    `json:"content,omitempty"`
	EventDate                string    `json:"eventDate,omitempty"`
	CollectionID             string    `json:"collectionId,omitempty"`
	Collections              []string  `json:"collections"`
	Order                    string    `json:"order"`
	ParentEntryID            string    `json:"parentEntryId,omitempty"`
	Status                   string    `json:"status,omitempty"`
	CompletedAt              *time.Time `json:"completedAt,omitempty"`
	MigratedFrom             string    `json:"migratedFrom,omitempty"`
	MigratedFromCollectionID string    `json:"migratedFromCollectionId,omitempty"`
}

type TaskCompletedPayload struct {
	CompletedAt time.Time `json:"completedAt"`
}

type TaskReopenedPayload struct{}

// EntryUpdatedPayload is a partial update; nil fields are untouched.
type EntryUpdatedPayload struct {
	Title     *string `json:"title,omitempty"`
	Content   *string `json:"content,omitempty"`
	EventDate *string `json:"eventDate,omitempty"`
}

type EntryReorderedPayload struct {
	Order string `json:"order"`
}

type EntryDeletedPayload struct {
	DeletedAt time.Time `json:"deletedAt"`
}

type EntryRestoredPayload struct{}

// EntryMigratedPayload is applied to the original entry of a move; the new
// entry in the target collection is produced by a companion EntryCreated.
type EntryMigratedPayload struct {
	MigratedTo         string      `json:"migratedTo"`
	TargetCollectionID string      `json:"targetCollectionId"`
	Mode               MigrateMode `json:"mode"`
}

type EntryAddedToCollectionPayload struct {
	CollectionID string `json:"collectionId"`
}

type EntryRemovedFromCollectionPayload struct {
	CollectionID string `json:"collectionId"`
}

type CollectionCreatedPayload struct {
	Name  string         `json:"name"`
	Type  CollectionType `json:"type"`
	Date  string         `json:"date,omitempty"`
	Order string         `json:"order"`
}

type CollectionRenamedPayload struct {
	Name string `json:"name"`
}

type CollectionReorderedPayload struct {
	Order string `json:"order"`
}

type CollectionSettingsUpdatedPayload struct {
	CompletedTaskBehavior string `json:"completedTaskBehavior"`
}

type CollectionFavoriteSetPayload struct {
	Favorite bool `json:"favorite"`
}

type CollectionDeletedPayload struct {
	DeletedAt time.Time `json:"deletedAt"`
}

type CollectionRestoredPayload struct{}

// PreferencesUpdatedPayload is a partial update; nil fields are untouched.
type PreferencesUpdatedPayload struct {
	Theme               *string `json:"theme,omitempty"`
	DefaultCollectionID *string `json:"defaultCollectionId,omitempty"`
	ShowCompletedTasks  *bool   `json:"showCompletedTasks,omitempty"`
}

// RawPayload holds the payload of an event whose type this build does not
// know. Projections skip such events; logs still persist and sync them.
type RawPayload json.RawMessage

var ErrMalformedEvent = errors.New("malformed event")

// NewEvent builds an envelope with a fresh schema version stamp.
func NewEvent(id string, t EventType, aggregateID string, ts time.Time, payload any) Event {
	return Event{
		ID:          id,
		Type:        t,
		AggregateID: aggregateID,
		Timestamp:   ts.UTC(),
		Version:     EventSchemaVersion,
		Payload:     payload,
	}
}

// Validate rejects envelopes that must never reach persistence: missing
// identity fields, a zero timestamp, or a payload that does not match the
// declared type tag.
func (e Event) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: missing id", ErrMalformedEvent)
	case e.Type == "":
		return fmt.Errorf("%w: missing type", ErrMalformedEvent)
	case e.AggregateID == "":
		return fmt.Errorf("%w: missing aggregate id", ErrMalformedEvent)
	case e.Timestamp.IsZero():
		return fmt.Errorf("%w: zero timestamp", ErrMalformedEvent)
	}
	if !payloadMatches(e.Type, e.Payload) {
		return fmt.Errorf("%w: payload does not match type %q", ErrMalformedEvent, e.Type)
	}
	return nil
}

// payloadMatches is the single place that pairs type tags with payload
// shapes. Unknown tags are accepted as long as the payload is raw, so
// events from newer builds can pass through this one.
func payloadMatches(t EventType, p any) bool {
	switch t {
	case EntryCreated:
		_, ok := p.(EntryCreatedPayload)
		return ok
	case TaskCompleted:
		_, ok := p.(TaskCompletedPayload)
		return ok
	case TaskReopened:
		_, ok := p.(TaskReopenedPayload)
		return ok
	case EntryUpdated:
		_, ok := p.(EntryUpdatedPayload)
		return ok
	case EntryReordered:
		_, ok := p.(EntryReorderedPayload)
		return ok
	case EntryDeleted:
		_, ok := p.(EntryDeletedPayload)
		return ok
	case EntryRestored:
		_, ok := p.(EntryRestoredPayload)
		return ok
	case EntryMigrated:
		_, ok := p.(EntryMigratedPayload)
		return ok
	case EntryAddedToCollection:
		_, ok := p.(EntryAddedToCollectionPayload)
		return ok
	case EntryRemovedFromCollection:
		_, ok := p.(EntryRemovedFromCollectionPayload)
		return ok
	case CollectionCreated:
		_, ok := p.(CollectionCreatedPayload)
		return ok
	case CollectionRenamed:
		_, ok := p.(CollectionRenamedPayload)
		return ok
	case CollectionReordered:
		_, ok := p.(CollectionReorderedPayload)
		return ok
	case CollectionSettingsUpdated:
		_, ok := p.(CollectionSettingsUpdatedPayload)
		return ok
	case CollectionFavoriteSet:
		_, ok := p.(CollectionFavoriteSetPayload)
		return ok
	case CollectionDeleted:
		_, ok := p.(CollectionDeletedPayload)
		return ok
	case CollectionRestored:
		_, ok := p.(CollectionRestoredPayload)
		return ok
	case PreferencesUpdated:
		_, ok := p.(PreferencesUpdatedPayload)
		return ok
	default:
		_, ok := p.(RawPayload)
		return ok
	}
}

// DecodePayload turns a serialized payload back into its typed struct.
// Unknown type tags decode to RawPayload rather than failing, so logs can
// carry events written by newer schema versions.
func DecodePayload(t EventType, data json.RawMessage) (any, error) {
	decode := func(v any) (any, error) {
		if len(data) == 0 {
			data = []byte("{}")
		}
		if err := json.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("%w: decoding %s payload: %v", ErrMalformedEvent, t, err)
		}
		return deref(v), nil
	}

	switch t {
	case EntryCreated:
		return decode(&EntryCreatedPayload{})
	case TaskCompleted:
		return decode(&TaskCompletedPayload{})
	case TaskReopened:
		return decode(&TaskReopenedPayload{})
	case EntryUpdated:
		return decode(&EntryUpdatedPayload{})
	case EntryReordered:
		return decode(&EntryReorderedPayload{})
	case EntryDeleted:
		return decode(&EntryDeletedPayload{})
	case EntryRestored:
		return decode(&EntryRestoredPayload{})
	case EntryMigrated:
		return decode(&EntryMigratedPayload{})
	case EntryAddedToCollection:
		return decode(&EntryAddedToCollectionPayload{})
	case EntryRemovedFromCollection:
		return decode(&EntryRemovedFromCollectionPayload{})
	case CollectionCreated:
		return decode(&CollectionCreatedPayload{})
	case CollectionRenamed:
		return decode(&CollectionRenamedPayload{})
	case CollectionReordered:
		return decode(&CollectionReorderedPayload{})
	case CollectionSettingsUpdated:
		return decode(&CollectionSettingsUpdatedPayload{})
	case CollectionFavoriteSet:
		return decode(&CollectionFavoriteSetPayload{})
	case CollectionDeleted:
		return decode(&CollectionDeletedPayload{})
	case CollectionRestored:
		return decode(&CollectionRestoredPayload{})
	case PreferencesUpdated:
		return decode(&PreferencesUpdatedPayload{})
	default:
		raw := make(RawPayload, len(data))
		copy(raw, data)
		return raw, nil
	}
}

func deref(v any) any {
	switch p := v.(type) {
	case *EntryCreatedPayload:
		return *p
	case *TaskCompletedPayload:
		return *p
	case *TaskReopenedPayload:
		return *p
	case *EntryUpdatedPayload:
		return *p
	case *EntryReorderedPayload:
		return *p
	case *EntryDeletedPayload:
		return *p
	case *EntryRestoredPayload:
		return *p
	case *EntryMigratedPayload:
		return *p
	case *EntryAddedToCollectionPayload:
		return *p
	case *EntryRemovedFromCollectionPayload:
		return *p
	case *CollectionCreatedPayload:
		return *p
	case *CollectionRenamedPayload:
		return *p
	case *CollectionReorderedPayload:
		return *p
	case *CollectionSettingsUpdatedPayload:
		return *p
	case *CollectionFavoriteSetPayload:
		return *p
	case *CollectionDeletedPayload:
		return *p
	case *CollectionRestoredPayload:
		return *p
	case *PreferencesUpdatedPayload:
		return *p
	default:
		return v
	}
}

// MarshalPayload serializes an event's payload for storage.
func MarshalPayload(e Event) ([]byte, error) {
	if raw, ok := e.Payload.(RawPayload); ok {
		return json.RawMessage(raw), nil
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s payload: %v", ErrMalformedEvent, e.Type, err)
	}
	return data, nil
}

type eventJSON struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregateId"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := MarshalPayload(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventJSON{
		ID:          e.ID,
		Type:        string(e.Type),
		AggregateID: e.AggregateID,
		Timestamp:   e.Timestamp,
		Version:     e.Version,
		Payload:     payload,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := DecodePayload(EventType(raw.Type), raw.Payload)
	if err != nil {
		return err
	}
	e.ID = raw.ID
	e.Type = EventType(raw.Type)
	e.AggregateID = raw.AggregateID
	e.Timestamp = raw.Timestamp
	e.Version = raw.Version
	e.Payload = payload
	return nil
}
