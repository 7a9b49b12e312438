package projection

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/minhvu/bujotrack/internal/eventlog"
	"github.com/minhvu/bujotrack/internal/model"
	"github.com/minhvu/bujotrack/internal/snapshot"
)

// EntriesKey is the snapshot key of the entries projection.
const EntriesKey = "entries"

// Filter selects entries from the projection. The zero value lists every
// live, non-migrated entry across all collections.
type Filter struct {
	// CollectionID limits results to members of one collection.
	CollectionID string
	// Kind limits results to one entry kind when non-empty.
	Kind model.EntryKind
	// IncludeDeleted keeps soft-deleted entries in the result.
	IncludeDeleted bool
	// IncludeMigrated keeps crossed-out (migrated-away) entries in the
	// result, for audit and back-navigation views.
	IncludeMigrated bool
}

// Entries is the read model over all journal entries, with secondary
// indexes by parent for sub-task queries. All getters return clones.
type Entries struct {
	mu          sync.RWMutex
	log         eventlog.Store
	byID        map[string]*model.Entry
	byParent    map[string]map[string]struct{}
	newestTS    map[string]time.Time
	lastEventID string
	folded      int

	listeners listeners
	unsub     func()
}

// NewEntries builds the projection, seeding from snaps (which may be nil)
// and subscribing to the log for subsequent events.
func NewEntries(ctx context.Context, log eventlog.Store, snaps snapshot.Store) (*Entries, error) {
	p := &Entries{
		log:      log,
		byID:     make(map[string]*model.Entry),
		byParent: make(map[string]map[string]struct{}),
		newestTS: make(map[string]time.Time),
	}
	lastID, err := bootstrap(ctx, log, snaps, EntriesKey, p)
	if err != nil {
		return nil, err
	}
	p.lastEventID = lastID
	p.unsub = log.Subscribe(p.consume)
	return p, nil
}

// Close detaches the projection from the log.
func (p *Entries) Close() {
	if p.unsub != nil {
		p.unsub()
	}
}

func (p *Entries) consume(ev model.Event) {
	p.fold(ev)
	p.listeners.notify()
}

// fold applies one event. Events this projection does not recognize only
// advance the cursor; they are never an error. Folding is ordered by event
// timestamp, not arrival: an event that sorts before ones already folded
// for its aggregate (a sync pull can deliver those) triggers a replay of
// that aggregate from the log, so live state always matches a rebuild.
func (p *Entries) fold(ev model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastEventID = ev.ID
	p.folded++

	newest, known := p.newestTS[ev.AggregateID]
	_, indexed := p.byID[ev.AggregateID]
	if (known && ev.Timestamp.Before(newest)) || (!known && indexed) {
		// Late arrival, or a snapshot-seeded aggregate whose folded
		// timestamps are unknown.
		p.refold(ev.AggregateID)
		return
	}
	p.newestTS[ev.AggregateID] = ev.Timestamp
	p.apply(ev)
}

func (p *Entries) apply(ev model.Event) {
	if cp, ok := ev.Payload.(model.EntryCreatedPayload); ok {
		p.index(model.NewEntryFromCreate(ev.AggregateID, ev.Timestamp, cp))
		return
	}
	e, ok := p.byID[ev.AggregateID]
	if !ok {
		return
	}
	e.Apply(ev)
}

// refold re-derives one aggregate by replaying its events in log order.
func (p *Entries) refold(id string) {
	evs, err := p.log.ByAggregate(context.Background(), id)
	if err != nil {
		log.Printf("projection: replaying entry %s: %v", id, err)
		return
	}
	p.unindex(id)
	for _, ev := range evs {
		p.newestTS[id] = ev.Timestamp
		p.apply(ev)
	}
}

func (p *Entries) unindex(id string) {
	e, ok := p.byID[id]
	if !ok {
		return
	}
	delete(p.byID, id)
	if e.ParentEntryID != "" {
		delete(p.byParent[e.ParentEntryID], id)
	}
}

func (p *Entries) index(e *model.Entry) {
	p.byID[e.ID] = e
	if e.ParentEntryID != "" {
		children, ok := p.byParent[e.ParentEntryID]
		if !ok {
			children = make(map[string]struct{})
			p.byParent[e.ParentEntryID] = children
		}
		children[e.ID] = struct{}{}
	}
}

// seed installs snapshot state all-or-nothing.
func (p *Entries) seed(state json.RawMessage) error {
	var entries []*model.Entry
	if err := json.Unmarshal(state, &entries); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID = make(map[string]*model.Entry, len(entries))
	p.byParent = make(map[string]map[string]struct{})
	p.newestTS = make(map[string]time.Time)
	for _, e := range entries {
		p.index(e)
	}
	return nil
}

// List returns matching entries ordered by their fractional index, not by
// creation time.
func (p *Entries) List(f Filter) []*model.Entry {
	p.mu.RLock()
	out := make([]*model.Entry, 0, 16)
	for _, e := range p.byID {
		if !f.IncludeDeleted && e.Deleted() {
			continue
		}
		if !f.IncludeMigrated && e.Migrated() {
			continue
		}
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		if f.CollectionID != "" && !e.InCollection(f.CollectionID) {
			continue
		}
		out = append(out, e.Clone())
	}
	p.mu.RUnlock()

	sortByOrder(out)
	return out
}

// ByID returns any entry, including soft-deleted and migrated ones, so
// command handlers can validate restore and migrate preconditions. Nil when
// absent.
func (p *Entries) ByID(id string) *model.Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.byID[id]; ok {
		return e.Clone()
	}
	return nil
}

// TaskByID returns the entry only when it is a task.
func (p *Entries) TaskByID(id string) *model.Entry {
	e := p.ByID(id)
	if e == nil || e.Kind != model.KindTask {
		return nil
	}
	return e
}

// SubTasks returns the live (non-deleted) children of a parent entry, in
// fractional-index order. Children migrated away are included; callers use
// Entry.LinkedElsewhere to render them as linked.
func (p *Entries) SubTasks(parentID string) []*model.Entry {
	p.mu.RLock()
	out := make([]*model.Entry, 0, 4)
	for id := range p.byParent[parentID] {
		e := p.byID[id]
		if e == nil || e.Deleted() {
			continue
		}
		out = append(out, e.Clone())
	}
	p.mu.RUnlock()

	sortByOrder(out)
	return out
}

// Subscribe registers a state-change listener.
func (p *Entries) Subscribe(fn func()) func() {
	return p.listeners.add(fn)
}

// LastEventID returns the cursor of the last consumed event.
func (p *Entries) LastEventID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastEventID
}

// FoldedEvents returns how many events have been folded since startup.
func (p *Entries) FoldedEvents() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.folded
}

// SnapshotNow serializes current state for the snapshot store.
func (p *Entries) SnapshotNow() (model.ProjectionSnapshot, error) {
	p.mu.RLock()
	entries := make([]*model.Entry, 0, len(p.byID))
	for _, e := range p.byID {
		entries = append(entries, e)
	}
	lastID := p.lastEventID
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	state, err := json.Marshal(entries)
	p.mu.RUnlock()
	if err != nil {
		return model.ProjectionSnapshot{}, err
	}
	return model.ProjectionSnapshot{
		Version:     model.SnapshotSchemaVersion,
		LastEventID: lastID,
		State:       state,
		SavedAt:     time.Now().UTC(),
	}, nil
}

func sortByOrder(entries []*model.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
