// Package sync reconciles the local event log with the remote one for a
// single user. Events are immutable facts keyed by globally unique IDs, so
// there are no update conflicts to merge, only "have vs. don't have yet";
// projection folding orders by each event's own timestamp, not by log
// arrival.
package sync

import (
	"context"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/minhvu/bujotrack/internal/eventlog"
	"github.com/minhvu/bujotrack/internal/model"
)

// syncTimeout is the maximum time allowed for a single reconciliation pass.
const syncTimeout = 30 * time.Second

// State represents the current state of the sync loop.
type State int

const (
	Idle State = iota
	Running
	Errored
)

// Status reports the outcome of the most recent pass.
type Status struct {
	State    State
	LastSync time.Time
	Pushed   int
	Pulled   int
	Error    error
}

// Manager drives the recurring reconciliation schedule. Edge triggers
// (regained connectivity, app foregrounded) map to TriggerNow.
type Manager struct {
	local    eventlog.Store
	remote   eventlog.Store
	interval time.Duration

	mu        gosync.Mutex
	status    Status
	running   bool
	stopCh    chan struct{}
	triggerCh chan struct{}
}

// New creates a Manager reconciling local with remote on the given
// interval.
func New(local, remote eventlog.Store, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Manager{
		local:     local,
		remote:    remote,
		interval:  interval,
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the sync loop: one immediate pass, then the recurring
// schedule plus any TriggerNow edges. Starting twice is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	go m.run(stopCh)
}

// Stop halts the loop and its timer. Idempotent; an in-flight pass is
// allowed to finish and is simply not rescheduled.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	close(m.stopCh)
	m.running = false
}

// TriggerNow requests an immediate pass without waiting for the ticker.
func (m *Manager) TriggerNow() {
	select {
	case m.triggerCh <- struct{}{}:
	default:
		// A pass is already pending; coalesce.
	}
}

// GetStatus returns the most recent pass outcome.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.pass()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.pass()
		case <-m.triggerCh:
			m.pass()
		}
	}
}

// pass runs one reconciliation, logging rather than surfacing transient
// failures; the next scheduled pass is the retry.
func (m *Manager) pass() {
	m.setState(Running, 0, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	pushed, pulled, err := m.SyncOnce(ctx)
	if err != nil {
		log.Printf("sync: reconciliation failed: %v", err)
		m.setState(Errored, pushed, pulled, err)
		return
	}
	m.setState(Idle, pushed, pulled, nil)
}

// SyncOnce performs a single bidirectional reconciliation: the set
// difference by event ID is computed from both logs, missing remote events
// are appended locally and missing local events are pushed out, both as
// batches (the remote store chunks to its per-batch ceiling itself).
func (m *Manager) SyncOnce(ctx context.Context) (pushed, pulled int, err error) {
	localEvs, err := m.local.All(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("reading local log: %w", err)
	}
	remoteEvs, err := m.remote.All(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("reading remote log: %w", err)
	}

	missingRemote := diff(localEvs, remoteEvs)
	missingLocal := diff(remoteEvs, localEvs)

	if len(missingLocal) > 0 {
		if err := m.local.AppendBatch(ctx, missingLocal); err != nil {
			return 0, 0, fmt.Errorf("pulling %d events: %w", len(missingLocal), err)
		}
	}
	if len(missingRemote) > 0 {
		if err := m.remote.AppendBatch(ctx, missingRemote); err != nil {
			return 0, len(missingLocal), fmt.Errorf("pushing %d events: %w", len(missingRemote), err)
		}
	}
	return len(missingRemote), len(missingLocal), nil
}

// diff returns the events of a that b does not have, in a's order.
func diff(a, b []model.Event) []model.Event {
	have := make(map[string]struct{}, len(b))
	for _, ev := range b {
		have[ev.ID] = struct{}{}
	}
	var out []model.Event
	for _, ev := range a {
		if _, ok := have[ev.ID]; !ok {
			out = append(out, ev)
		}
	}
	return out
}

func (m *Manager) setState(s State, pushed, pulled int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = Status{
		State:    s,
		LastSync: time.Now(),
		Pushed:   pushed,
		Pulled:   pulled,
		Error:    err,
	}
}
