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

// CollectionsKey is the snapshot key of the collections projection.
const CollectionsKey = "collections"

// Collections is the read model over journal collections.
type Collections struct {
	mu          sync.RWMutex
	log         eventlog.Store
	byID        map[string]*model.Collection
	newestTS    map[string]time.Time
	lastEventID string
	folded      int

	listeners listeners
	unsub     func()
}

func NewCollections(ctx context.Context, log eventlog.Store, snaps snapshot.Store) (*Collections, error) {
	p := &Collections{
		log:      log,
		byID:     make(map[string]*model.Collection),
		newestTS: make(map[string]time.Time),
	}
	lastID, err := bootstrap(ctx, log, snaps, CollectionsKey, p)
	if err != nil {
		return nil, err
	}
	p.lastEventID = lastID
	p.unsub = log.Subscribe(p.consume)
	return p, nil
}

func (p *Collections) Close() {
	if p.unsub != nil {
		p.unsub()
	}
}

func (p *Collections) consume(ev model.Event) {
	p.fold(ev)
	p.listeners.notify()
}

// fold orders by event timestamp, not arrival, like Entries.fold: a late
// event replays its aggregate from the log.
func (p *Collections) fold(ev model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastEventID = ev.ID
	p.folded++

	newest, known := p.newestTS[ev.AggregateID]
	_, indexed := p.byID[ev.AggregateID]
	if (known && ev.Timestamp.Before(newest)) || (!known && indexed) {
		p.refold(ev.AggregateID)
		return
	}
	p.newestTS[ev.AggregateID] = ev.Timestamp
	p.apply(ev)
}

func (p *Collections) apply(ev model.Event) {
	if cp, ok := ev.Payload.(model.CollectionCreatedPayload); ok {
		p.byID[ev.AggregateID] = model.NewCollectionFromCreate(ev.AggregateID, ev.Timestamp, cp)
		return
	}
	c, ok := p.byID[ev.AggregateID]
	if !ok {
		return
	}
	c.Apply(ev)
}

func (p *Collections) refold(id string) {
	evs, err := p.log.ByAggregate(context.Background(), id)
	if err != nil {
		log.Printf("projection: replaying collection %s: %v", id, err)
		return
	}
	delete(p.byID, id)
	for _, ev := range evs {
		p.newestTS[id] = ev.Timestamp
		p.apply(ev)
	}
}

func (p *Collections) seed(state json.RawMessage) error {
	var cols []*model.Collection
	if err := json.Unmarshal(state, &cols); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID = make(map[string]*model.Collection, len(cols))
	p.newestTS = make(map[string]time.Time)
	for _, c := range cols {
		p.byID[c.ID] = c
	}
	return nil
}

// List returns active collections in fractional-index order.
func (p *Collections) List() []*model.Collection {
	p.mu.RLock()
	out := make([]*model.Collection, 0, len(p.byID))
	for _, c := range p.byID {
		if c.Deleted() {
			continue
		}
		out = append(out, c.Clone())
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
	return out
}

// ByID returns any collection, including soft-deleted ones, so handlers can
// validate restore preconditions. Nil when absent.
func (p *Collections) ByID(id string) *model.Collection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if c, ok := p.byID[id]; ok {
		return c.Clone()
	}
	return nil
}

// ActiveByName returns live collections whose stored name matches exactly
// (case-sensitive). Used by the create-collection dedup window.
func (p *Collections) ActiveByName(name string) []*model.Collection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*model.Collection
	for _, c := range p.byID {
		if !c.Deleted() && c.Name == name {
			out = append(out, c.Clone())
		}
	}
	return out
}

func (p *Collections) Subscribe(fn func()) func() {
	return p.listeners.add(fn)
}

func (p *Collections) LastEventID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastEventID
}

func (p *Collections) FoldedEvents() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.folded
}

func (p *Collections) SnapshotNow() (model.ProjectionSnapshot, error) {
	p.mu.RLock()
	cols := make([]*model.Collection, 0, len(p.byID))
	for _, c := range p.byID {
		cols = append(cols, c)
	}
	lastID := p.lastEventID
	sort.Slice(cols, func(i, j int) bool { return cols[i].ID < cols[j].ID })
	state, err := json.Marshal(cols)
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
