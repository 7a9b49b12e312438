package eventlog

import (
	"context"
	"sync"

	"github.com/minhvu/bujotrack/internal/model"
)

// MemoryLog is a purely in-memory event log for tests. It honors the full
// Store contract, including dedup by event ID and ordered notifications.
type MemoryLog struct {
	mu   sync.Mutex
	evs  []model.Event
	rank map[string]int64
	subs subscribers
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{rank: make(map[string]int64)}
}

func (l *MemoryLog) Append(ctx context.Context, ev model.Event) error {
	return l.AppendBatch(ctx, []model.Event{ev})
}

func (l *MemoryLog) AppendBatch(ctx context.Context, evs []model.Event) error {
	if err := validateBatch(evs); err != nil {
		return err
	}

	l.mu.Lock()
	inserted := make([]model.Event, 0, len(evs))
	for _, ev := range evs {
		if _, dup := l.rank[ev.ID]; dup {
			continue
		}
		l.rank[ev.ID] = int64(len(l.evs))
		l.evs = append(l.evs, ev)
		inserted = append(inserted, ev)
	}
	l.mu.Unlock()

	l.subs.notify(inserted)
	return nil
}

func (l *MemoryLog) ByAggregate(ctx context.Context, aggregateID string) ([]model.Event, error) {
	l.mu.Lock()
	out := make([]model.Event, 0, 8)
	for _, ev := range l.evs {
		if ev.AggregateID == aggregateID {
			out = append(out, ev)
		}
	}
	rank := l.snapshotRanks()
	l.mu.Unlock()

	sortEvents(out, func(id string) int64 { return rank[id] })
	return out, nil
}

func (l *MemoryLog) All(ctx context.Context) ([]model.Event, error) {
	l.mu.Lock()
	out := append([]model.Event(nil), l.evs...)
	rank := l.snapshotRanks()
	l.mu.Unlock()

	sortEvents(out, func(id string) int64 { return rank[id] })
	return out, nil
}

func (l *MemoryLog) snapshotRanks() map[string]int64 {
	rank := make(map[string]int64, len(l.rank))
	for id, r := range l.rank {
		rank[id] = r
	}
	return rank
}

func (l *MemoryLog) Subscribe(fn Subscriber) func() {
	return l.subs.add(fn)
}

var _ Store = (*MemoryLog)(nil)
