// Package projection builds the read-side materialized views by folding
// the event log. Projections never mutate log state; they are rebuildable
// from scratch at any time, optionally seeded from a snapshot.
package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/minhvu/bujotrack/internal/eventlog"
	"github.com/minhvu/bujotrack/internal/model"
	"github.com/minhvu/bujotrack/internal/snapshot"
)

// folder is what bootstrap needs from a concrete projection: all-or-nothing
// snapshot seeding and per-event folding.
type folder interface {
	seed(state json.RawMessage) error
	fold(ev model.Event)
}

// bootstrap seeds a projection from its snapshot when one is present and
// schema-current, then replays the events recorded after the snapshot
// cursor. When the cursor is unknown to the log (or there is no usable
// snapshot) it replays the full log from empty state. Returns the ID of
// the last event consumed.
func bootstrap(ctx context.Context, log eventlog.Store, snaps snapshot.Store, key string, f folder) (string, error) {
	evs, err := log.All(ctx)
	if err != nil {
		return "", fmt.Errorf("replaying %s projection: %w", key, err)
	}

	start := 0
	lastID := ""
	if snaps != nil {
		snap, err := snaps.Load(ctx, key)
		if err != nil {
			return "", fmt.Errorf("loading %s snapshot: %w", key, err)
		}
		if snap != nil {
			if idx := indexOfEvent(evs, snap.LastEventID); idx >= 0 {
				if err := f.seed(snap.State); err != nil {
					return "", fmt.Errorf("seeding %s projection: %w", key, err)
				}
				start = idx + 1
				lastID = snap.LastEventID
			}
		}
	}

	for _, ev := range evs[start:] {
		f.fold(ev)
		lastID = ev.ID
	}
	return lastID, nil
}

func indexOfEvent(evs []model.Event, id string) int {
	if id == "" {
		return -1
	}
	for i, ev := range evs {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

// listeners notifies UI-side subscribers after state changes. Callbacks run
// on the folding goroutine, outside the projection lock.
type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func()
}

func (l *listeners) add(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func())
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

func (l *listeners) notify() {
	l.mu.Lock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
