// Package command implements the write side: one handler per user intent.
// Handlers validate against current projection state, compute fractional
// orders, build domain events, and append them to the local event log.
// Multi-entity cascades always go through a single atomic AppendBatch.
package command

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/minhvu/bujotrack/internal/eventlog"
	"github.com/minhvu/bujotrack/internal/fracindex"
	"github.com/minhvu/bujotrack/internal/model"
	"github.com/minhvu/bujotrack/internal/projection"
)

// DefaultDedupeWindow is how long a create-collection with an identical
// name is treated as a retry of the first call. A heuristic carried over
// from the original behavior, configurable rather than invariant.
const DefaultDedupeWindow = 5 * time.Second

// Handlers is the only legitimate write surface. The UI never touches the
// event log directly.
type Handlers struct {
	log     eventlog.Store
	entries *projection.Entries
	cols    *projection.Collections
	prefs   *projection.Preferences

	validate     *validator.Validate
	now          func() time.Time
	newID        func() string
	dedupeWindow time.Duration
}

// Option customizes a Handlers, mainly for tests.
type Option func(*Handlers)

// WithClock substitutes the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

// WithIDGenerator substitutes the ID source.
func WithIDGenerator(fn func() string) Option {
	return func(h *Handlers) { h.newID = fn }
}

// WithDedupeWindow overrides the create-collection dedup window.
func WithDedupeWindow(d time.Duration) Option {
	return func(h *Handlers) { h.dedupeWindow = d }
}

// New builds the command handlers over a log and its projections.
func New(log eventlog.Store, entries *projection.Entries, cols *projection.Collections, prefs *projection.Preferences, opts ...Option) *Handlers {
	h := &Handlers{
		log:          log,
		entries:      entries,
		cols:         cols,
		prefs:        prefs,
		validate:     validator.New(),
		now:          time.Now,
		newID:        uuid.NewString,
		dedupeWindow: DefaultDedupeWindow,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// event builds an envelope with a fresh ID and the current time.
func (h *Handlers) event(t model.EventType, aggregateID string, payload any) model.Event {
	return model.NewEvent(h.newID(), t, aggregateID, h.now(), payload)
}

// requireActiveCollection resolves a collection that commands may target.
func (h *Handlers) requireActiveCollection(id string) (*model.Collection, error) {
	c := h.cols.ByID(id)
	if c == nil {
		return nil, ErrCollectionNotFound
	}
	if c.Deleted() {
		return nil, ErrCollectionDeleted
	}
	return c, nil
}

// requireEntry resolves an existing, non-deleted entry of the given kind.
func (h *Handlers) requireEntry(id string, kind model.EntryKind) (*model.Entry, error) {
	e := h.entries.ByID(id)
	if e == nil || (kind != "" && e.Kind != kind) {
		return nil, ErrEntryNotFound
	}
	if e.Deleted() {
		return nil, ErrEntryDeleted
	}
	return e, nil
}

// requireLiveEntry resolves an entry that commands may mutate: existing,
// not soft-deleted, and not migrated away. A move-migrated original is
// crossed out; the landing copy is the one that takes further mutation.
func (h *Handlers) requireLiveEntry(id string, kind model.EntryKind) (*model.Entry, error) {
	e, err := h.requireEntry(id, kind)
	if err != nil {
		return nil, err
	}
	if e.Migrated() {
		return nil, ErrEntryMigrated
	}
	return e, nil
}

// tailOrder returns a fractional key sorting after every active entry of a
// collection.
func (h *Handlers) tailOrder(collectionID string) (string, error) {
	last := ""
	if list := h.entries.List(projection.Filter{CollectionID: collectionID}); len(list) > 0 {
		last = list[len(list)-1].Order
	}
	return fracindex.KeyBetween(last, "")
}

// orderBetween resolves the fractional key for a reorder between two
// optional neighbor entries.
func orderBetween(prev, next *model.Entry) (string, error) {
	a, b := "", ""
	if prev != nil {
		a = prev.Order
	}
	if next != nil {
		b = next.Order
	}
	return fracindex.KeyBetween(a, b)
}
