// Package snapshot persists projection snapshots so cold starts can skip a
// full event replay. Snapshots are a disposable acceleration cache; losing
// one only costs replay time.
package snapshot

import (
	"context"

	"github.com/minhvu/bujotrack/internal/model"
)

// Store is the snapshot cache contract. Save is last-write-wins per key.
// Load reports a schema-stale snapshot exactly like a missing one: nil with
// no error. A stale-shaped snapshot is never coerced.
type Store interface {
	Save(ctx context.Context, key string, snap model.ProjectionSnapshot) error
	Load(ctx context.Context, key string) (*model.ProjectionSnapshot, error)
	Clear(ctx context.Context, key string) error
}
