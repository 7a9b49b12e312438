package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kivik/kivik/v4"

	"github.com/minhvu/bujotrack/internal/couchutil"
	"github.com/minhvu/bujotrack/internal/model"
)

// RemoteStore caches snapshots in the per-user CouchDB database, keyed
// "snapshot:<projection>". Remote snapshot persistence is a best-effort
// optimization: callers must not block correctness on its success, the
// local store remains the reliability path.
type RemoteStore struct {
	db            *kivik.DB
	schemaVersion int
}

func NewRemoteStore(client *kivik.Client, dbName string, schemaVersion int) *RemoteStore {
	return &RemoteStore{db: client.DB(dbName), schemaVersion: schemaVersion}
}

type snapshotDoc struct {
	DocID       string          `json:"_id"`
	Rev         string          `json:"_rev,omitempty"`
	Kind        string          `json:"kind"`
	Projection  string          `json:"projection"`
	Version     int             `json:"version"`
	LastEventID string          `json:"lastEventId"`
	State       json.RawMessage `json:"state"`
	SavedAt     time.Time       `json:"savedAt"`
}

func snapshotDocID(key string) string { return "snapshot:" + key }

// Save overwrites the snapshot document for key, fetching the current
// revision first so the write is last-write-wins.
func (s *RemoteStore) Save(ctx context.Context, key string, snap model.ProjectionSnapshot) error {
	doc := snapshotDoc{
		DocID:       snapshotDocID(key),
		Kind:        "snapshot",
		Projection:  key,
		Version:     snap.Version,
		LastEventID: snap.LastEventID,
		State:       snap.State,
		SavedAt:     snap.SavedAt,
	}

	var existing snapshotDoc
	if err := s.db.Get(ctx, doc.DocID).ScanDoc(&existing); err == nil {
		doc.Rev = existing.Rev
	} else if kivik.HTTPStatus(err) != http.StatusNotFound {
		return fmt.Errorf("fetching snapshot %s revision: %w", key, err)
	}

	sanitized, err := couchutil.SanitizeDoc(doc)
	if err != nil {
		return err
	}
	if _, err := s.db.Put(ctx, doc.DocID, sanitized); err != nil {
		return fmt.Errorf("saving remote snapshot %s: %w", key, err)
	}
	return nil
}

func (s *RemoteStore) Load(ctx context.Context, key string) (*model.ProjectionSnapshot, error) {
	var doc snapshotDoc
	err := s.db.Get(ctx, snapshotDocID(key)).ScanDoc(&doc)
	if kivik.HTTPStatus(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading remote snapshot %s: %w", key, err)
	}
	if doc.Version != s.schemaVersion {
		return nil, nil
	}
	return &model.ProjectionSnapshot{
		Version:     doc.Version,
		LastEventID: doc.LastEventID,
		State:       doc.State,
		SavedAt:     doc.SavedAt.UTC(),
	}, nil
}

func (s *RemoteStore) Clear(ctx context.Context, key string) error {
	var doc snapshotDoc
	err := s.db.Get(ctx, snapshotDocID(key)).ScanDoc(&doc)
	if kivik.HTTPStatus(err) == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clearing remote snapshot %s: %w", key, err)
	}
	if _, err := s.db.Delete(ctx, snapshotDocID(key), doc.Rev); err != nil {
		return fmt.Errorf("clearing remote snapshot %s: %w", key, err)
	}
	return nil
}

var _ Store = (*RemoteStore)(nil)
