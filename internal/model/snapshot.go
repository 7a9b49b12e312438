package model

import (
	"encoding/json"
	"time"
)

// SnapshotSchemaVersion identifies the serialized state shape of projection
// snapshots. A stored snapshot with a different version is treated as
// absent, never coerced.
const SnapshotSchemaVersion = 1

// ProjectionSnapshot is a cached serialization of a projection's state at a
// known event cursor, used to skip full replay on cold start.
type ProjectionSnapshot struct {
	Version     int             `json:"version"`
	LastEventID string          `json:"lastEventId"`
	State       json.RawMessage `json:"state"`
	SavedAt     time.Time       `json:"savedAt"`
}
