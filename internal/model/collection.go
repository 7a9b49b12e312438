package model

import "time"

// CollectionType distinguishes journal pages.
type CollectionType string

const (
	CollectionDaily   CollectionType = "daily"
	CollectionMonthly CollectionType = "monthly"
	CollectionCustom  CollectionType = "custom"
)

// Completed-task behaviors selectable per collection.
const (
	CompletedTaskShow   = "show"
	CompletedTaskStrike = "strike"
	CompletedTaskHide   = "hide"
)

// CollectionSettings holds per-collection display behavior.
type CollectionSettings struct {
	CompletedTaskBehavior string `json:"completedTaskBehavior,omitempty"`
}

// Collection is a named bucket of entries: a daily log, a monthly log, or a
// custom list. Daily and monthly collections carry a Date ("2006-01-02" or
// "2006-01") and derive their display name from it; the stored Name may be
// stale for those types.
type Collection struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Type       CollectionType      `json:"type"`
	Date       string              `json:"date,omitempty"`
	Order      string              `json:"order"`
	IsFavorite bool                `json:"isFavorite,omitempty"`
	Settings   *CollectionSettings `json:"settings,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	DeletedAt  *time.Time          `json:"deletedAt,omitempty"`
}

// Deleted reports whether the collection is soft-deleted.
func (c *Collection) Deleted() bool { return c.DeletedAt != nil }

// DisplayName derives the rendered name. Dated collections format their
// Date; custom collections use the stored name as-is.
func (c *Collection) DisplayName() string {
	switch c.Type {
	case CollectionDaily:
		if t, err := time.Parse("2006-01-02", c.Date); err == nil {
			return t.Format("Mon, Jan 2, 2006")
		}
	case CollectionMonthly:
		if t, err := time.Parse("2006-01", c.Date); err == nil {
			return t.Format("January 2006")
		}
	}
	return c.Name
}

// Clone returns a deep copy of the collection.
func (c *Collection) Clone() *Collection {
	out := *c
	if c.Settings != nil {
		s := *c.Settings
		out.Settings = &s
	}
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

// Apply folds one event into the collection. Creation is handled by the
// caller; unknown types are ignored.
func (c *Collection) Apply(ev Event) {
	switch p := ev.Payload.(type) {
	case CollectionRenamedPayload:
		c.Name = p.Name
	case CollectionReorderedPayload:
		c.Order = p.Order
	case CollectionSettingsUpdatedPayload:
		c.Settings = &CollectionSettings{CompletedTaskBehavior: p.CompletedTaskBehavior}
	case CollectionFavoriteSetPayload:
		c.IsFavorite = p.Favorite
	case CollectionDeletedPayload:
		t := p.DeletedAt
		c.DeletedAt = &t
	case CollectionRestoredPayload:
		c.DeletedAt = nil
	}
}

// NewCollectionFromCreate materializes a collection from its creation payload.
func NewCollectionFromCreate(id string, createdAt time.Time, p CollectionCreatedPayload) *Collection {
	return &Collection{
		ID:        id,
		Name:      p.Name,
		Type:      p.Type,
		Date:      p.Date,
		Order:     p.Order,
		CreatedAt: createdAt,
	}
}
