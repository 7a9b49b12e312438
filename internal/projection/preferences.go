package projection

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/minhvu/bujotrack/internal/eventlog"
	"github.com/minhvu/bujotrack/internal/model"
	"github.com/minhvu/bujotrack/internal/snapshot"
)

// PreferencesKey is the snapshot key of the preferences projection.
const PreferencesKey = "preferences"

// Preferences is the read model over the single user-preferences aggregate.
type Preferences struct {
	mu          sync.RWMutex
	log         eventlog.Store
	prefs       model.UserPreferences
	newest      time.Time
	seeded      bool
	lastEventID string
	folded      int

	listeners listeners
	unsub     func()
}

func NewPreferences(ctx context.Context, log eventlog.Store, snaps snapshot.Store) (*Preferences, error) {
	p := &Preferences{log: log, prefs: model.DefaultPreferences()}
	lastID, err := bootstrap(ctx, log, snaps, PreferencesKey, p)
	if err != nil {
		return nil, err
	}
	p.lastEventID = lastID
	p.unsub = log.Subscribe(p.consume)
	return p, nil
}

func (p *Preferences) Close() {
	if p.unsub != nil {
		p.unsub()
	}
}

func (p *Preferences) consume(ev model.Event) {
	p.fold(ev)
	p.listeners.notify()
}

// fold orders by event timestamp, not arrival: a late update replays the
// aggregate from the log.
func (p *Preferences) fold(ev model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastEventID = ev.ID
	p.folded++

	up, ok := ev.Payload.(model.PreferencesUpdatedPayload)
	if !ok {
		return
	}
	if ev.Timestamp.Before(p.newest) || (p.newest.IsZero() && p.seeded) {
		p.refold()
		return
	}
	p.newest = ev.Timestamp
	p.prefs.Apply(up)
}

func (p *Preferences) refold() {
	evs, err := p.log.ByAggregate(context.Background(), model.PreferencesAggregateID)
	if err != nil {
		log.Printf("projection: replaying preferences: %v", err)
		return
	}
	p.prefs = model.DefaultPreferences()
	p.seeded = false
	for _, ev := range evs {
		p.newest = ev.Timestamp
		if up, ok := ev.Payload.(model.PreferencesUpdatedPayload); ok {
			p.prefs.Apply(up)
		}
	}
}

func (p *Preferences) seed(state json.RawMessage) error {
	prefs := model.DefaultPreferences()
	if err := json.Unmarshal(state, &prefs); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs = prefs
	p.seeded = true
	p.newest = time.Time{}
	return nil
}

// Get returns the current preferences.
func (p *Preferences) Get() model.UserPreferences {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prefs
}

func (p *Preferences) Subscribe(fn func()) func() {
	return p.listeners.add(fn)
}

func (p *Preferences) LastEventID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastEventID
}

func (p *Preferences) FoldedEvents() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.folded
}

func (p *Preferences) SnapshotNow() (model.ProjectionSnapshot, error) {
	p.mu.RLock()
	state, err := json.Marshal(p.prefs)
	lastID := p.lastEventID
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
