// Package eventlog provides the append-only domain event log. Three
// implementations share one contract: a durable local SQLite log, a remote
// CouchDB log, and an in-memory log for tests.
package eventlog

import (
	"context"
	"sort"
	"sync"

	"github.com/minhvu/bujotrack/internal/model"
)

// Subscriber receives each successfully appended event exactly once, in
// append order. A failed append fires no notifications for any event of
// the same batch.
type Subscriber func(model.Event)

// Store is the event log contract. The log is the sole durable source of
// truth; it never mutates or reorders events once appended.
type Store interface {
	// Append persists one event and then notifies subscribers.
	Append(ctx context.Context, ev model.Event) error

	// AppendBatch persists events all-or-nothing, in slice order.
	// Implementations backed by a transport with a per-transaction
	// operation cap chunk the batch transparently.
	AppendBatch(ctx context.Context, evs []model.Event) error

	// ByAggregate returns the events of one aggregate in timestamp
	// order, ties broken by insertion order within this log.
	ByAggregate(ctx context.Context, aggregateID string) ([]model.Event, error)

	// All returns every event in timestamp order, ties broken by
	// insertion order within this log.
	All(ctx context.Context) ([]model.Event, error)

	// Subscribe registers a callback and returns its unsubscribe func.
	Subscribe(fn Subscriber) (unsubscribe func())
}

// subscribers is the shared registration/notification plumbing. Callbacks
// run on the appending goroutine, outside the registry lock.
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]Subscriber
}

func (s *subscribers) add(fn Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]Subscriber)
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscribers) notify(evs []model.Event) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.fns))
	for id := range s.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.fns[id])
	}
	s.mu.Unlock()

	for _, ev := range evs {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

func validateBatch(evs []model.Event) error {
	for _, ev := range evs {
		if err := ev.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// sortEvents orders by timestamp with a caller-supplied insertion rank for
// ties.
func sortEvents(evs []model.Event, rank func(id string) int64) {
	sort.SliceStable(evs, func(i, j int) bool {
		if !evs[i].Timestamp.Equal(evs[j].Timestamp) {
			return evs[i].Timestamp.Before(evs[j].Timestamp)
		}
		return rank(evs[i].ID) < rank(evs[j].ID)
	})
}
