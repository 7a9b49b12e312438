package snapshot

import (
	"context"
	"sync"

	"github.com/minhvu/bujotrack/internal/model"
)

// MemoryStore is an in-memory snapshot cache for tests.
type MemoryStore struct {
	mu            sync.Mutex
	snaps         map[string]model.ProjectionSnapshot
	schemaVersion int
}

func NewMemoryStore(schemaVersion int) *MemoryStore {
	return &MemoryStore{
		snaps:         make(map[string]model.ProjectionSnapshot),
		schemaVersion: schemaVersion,
	}
}

func (s *MemoryStore) Save(ctx context.Context, key string, snap model.ProjectionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[key] = snap
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, key string) (*model.ProjectionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[key]
	if !ok || snap.Version != s.schemaVersion {
		return nil, nil
	}
	out := snap
	return &out, nil
}

func (s *MemoryStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, key)
	return nil
}

var _ Store = (*MemoryStore)(nil)
