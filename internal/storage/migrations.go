package storage

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id           TEXT PRIMARY KEY,
	aggregate_id TEXT NOT NULL,
	type         TEXT NOT NULL,
	ts           INTEGER NOT NULL,
	version      INTEGER NOT NULL,
	payload      TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_events_aggregate_id ON events(aggregate_id);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);

CREATE TABLE IF NOT EXISTS snapshots (
	projection    TEXT PRIMARY KEY,
	version       INTEGER NOT NULL,
	last_event_id TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT '[]',
	saved_at      INTEGER NOT NULL
);
`,
	},
}
