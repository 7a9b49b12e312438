package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/minhvu/bujotrack/internal/model"
)

// SQLiteStore is the durable local snapshot cache, and the reliability path
// for snapshots: remote snapshot writes are best-effort on top of it.
type SQLiteStore struct {
	db            *sqlx.DB
	schemaVersion int
}

// NewSQLiteStore wraps an opened storage database. schemaVersion is the
// caller's current snapshot schema; stored snapshots with any other
// version load as nil.
func NewSQLiteStore(db *sqlx.DB, schemaVersion int) *SQLiteStore {
	return &SQLiteStore{db: db, schemaVersion: schemaVersion}
}

type snapshotRow struct {
	Projection  string `db:"projection"`
	Version     int    `db:"version"`
	LastEventID string `db:"last_event_id"`
	State       string `db:"state"`
	SavedAt     int64  `db:"saved_at"`
}

func (s *SQLiteStore) Save(ctx context.Context, key string, snap model.ProjectionSnapshot) error {
	const query = `
		INSERT OR REPLACE INTO snapshots (projection, version, last_event_id, state, saved_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		key, snap.Version, snap.LastEventID, string(snap.State), snap.SavedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (*model.ProjectionSnapshot, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row,
		"SELECT projection, version, last_event_id, state, saved_at FROM snapshots WHERE projection = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", key, err)
	}
	if row.Version != s.schemaVersion {
		return nil, nil
	}
	return &model.ProjectionSnapshot{
		Version:     row.Version,
		LastEventID: row.LastEventID,
		State:       json.RawMessage(row.State),
		SavedAt:     time.Unix(0, row.SavedAt).UTC(),
	}, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE projection = ?", key); err != nil {
		return fmt.Errorf("clearing snapshot %s: %w", key, err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
