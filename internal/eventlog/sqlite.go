package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/minhvu/bujotrack/internal/model"
)

// SQLiteLog is the durable local event log, backed by the events table of
// the shared SQLite database. Event IDs are the primary key; appends of an
// already-present ID are ignored (the ID is the sync dedup key) and fire no
// notification.
type SQLiteLog struct {
	db   *sqlx.DB
	subs subscribers
}

// NewSQLiteLog wraps an opened storage database.
func NewSQLiteLog(db *sqlx.DB) *SQLiteLog {
	return &SQLiteLog{db: db}
}

type eventRow struct {
	ID          string `db:"id"`
	AggregateID string `db:"aggregate_id"`
	Type        string `db:"type"`
	TS          int64  `db:"ts"`
	Version     int    `db:"version"`
	Payload     string `db:"payload"`
}

func rowToEvent(r eventRow) (model.Event, error) {
	payload, err := model.DecodePayload(model.EventType(r.Type), json.RawMessage(r.Payload))
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{
		ID:          r.ID,
		Type:        model.EventType(r.Type),
		AggregateID: r.AggregateID,
		Timestamp:   time.Unix(0, r.TS).UTC(),
		Version:     r.Version,
		Payload:     payload,
	}, nil
}

// Append persists a single event and notifies subscribers.
func (l *SQLiteLog) Append(ctx context.Context, ev model.Event) error {
	return l.AppendBatch(ctx, []model.Event{ev})
}

// AppendBatch persists the events in one transaction, in slice order, then
// notifies subscribers once per newly inserted event in that same order.
func (l *SQLiteLog) AppendBatch(ctx context.Context, evs []model.Event) error {
	if len(evs) == 0 {
		return nil
	}
	if err := validateBatch(evs); err != nil {
		return err
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO events (id, aggregate_id, type, ts, version, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	inserted := make([]model.Event, 0, len(evs))
	for _, ev := range evs {
		payload, err := model.MarshalPayload(ev)
		if err != nil {
			return err
		}
		res, err := stmt.ExecContext(ctx,
			ev.ID, ev.AggregateID, string(ev.Type),
			ev.Timestamp.UnixNano(), ev.Version, string(payload),
		)
		if err != nil {
			return fmt.Errorf("inserting event %s: %w", ev.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted = append(inserted, ev)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing events: %w", err)
	}

	l.subs.notify(inserted)
	return nil
}

// ByAggregate returns one aggregate's events in timestamp order, ties
// broken by insertion order.
func (l *SQLiteLog) ByAggregate(ctx context.Context, aggregateID string) ([]model.Event, error) {
	const query = `
		SELECT id, aggregate_id, type, ts, version, payload
		FROM events WHERE aggregate_id = ?
		ORDER BY ts, rowid`
	return l.query(ctx, query, aggregateID)
}

// All returns every event in timestamp order, ties broken by insertion
// order.
func (l *SQLiteLog) All(ctx context.Context) ([]model.Event, error) {
	const query = `
		SELECT id, aggregate_id, type, ts, version, payload
		FROM events
		ORDER BY ts, rowid`
	return l.query(ctx, query)
}

func (l *SQLiteLog) query(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	var rows []eventRow
	if err := l.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	evs := make([]model.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := rowToEvent(r)
		if err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}
	return evs, nil
}

// Subscribe registers a callback for future appends.
func (l *SQLiteLog) Subscribe(fn Subscriber) func() {
	return l.subs.add(fn)
}

var _ Store = (*SQLiteLog)(nil)
