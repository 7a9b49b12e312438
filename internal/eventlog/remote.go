package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-kivik/kivik/v4"

	"github.com/minhvu/bujotrack/internal/couchutil"
	"github.com/minhvu/bujotrack/internal/model"
)

// defaultBatchLimit caps documents per bulk write when the caller does not
// configure one.
const defaultBatchLimit = 400

// RemoteLog is the network-backed event log, one CouchDB database per user.
// Event documents are keyed "event:<id>", so the event ID doubles as the
// dedup key: writing an ID that already exists is a no-op, not an error.
type RemoteLog struct {
	db         *kivik.DB
	batchLimit int
	subs       subscribers
}

// NewRemoteLog wraps an existing per-user database. batchLimit caps the
// documents per bulk write; zero or negative selects the default.
func NewRemoteLog(client *kivik.Client, dbName string, batchLimit int) *RemoteLog {
	if batchLimit <= 0 {
		batchLimit = defaultBatchLimit
	}
	return &RemoteLog{db: client.DB(dbName), batchLimit: batchLimit}
}

// eventDoc is the remote document shape. Kind marks the document type so
// events and snapshots can share one database.
type eventDoc struct {
	DocID       string          `json:"_id"`
	Rev         string          `json:"_rev,omitempty"`
	Kind        string          `json:"kind"`
	EventID     string          `json:"eventId"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregateId"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func eventDocID(eventID string) string { return "event:" + eventID }

func toEventDoc(ev model.Event) (eventDoc, error) {
	payload, err := model.MarshalPayload(ev)
	if err != nil {
		return eventDoc{}, err
	}
	return eventDoc{
		DocID:       eventDocID(ev.ID),
		Kind:        "event",
		EventID:     ev.ID,
		Type:        string(ev.Type),
		AggregateID: ev.AggregateID,
		Timestamp:   ev.Timestamp,
		Version:     ev.Version,
		Payload:     payload,
	}, nil
}

func fromEventDoc(d eventDoc) (model.Event, error) {
	payload, err := model.DecodePayload(model.EventType(d.Type), d.Payload)
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{
		ID:          d.EventID,
		Type:        model.EventType(d.Type),
		AggregateID: d.AggregateID,
		Timestamp:   d.Timestamp.UTC(),
		Version:     d.Version,
		Payload:     payload,
	}, nil
}

func (l *RemoteLog) Append(ctx context.Context, ev model.Event) error {
	return l.AppendBatch(ctx, []model.Event{ev})
}

// AppendBatch writes the events in slice order, chunked to the per-batch
// write ceiling. Already-present IDs are skipped; subscribers are notified
// once per newly written event after its chunk succeeds.
func (l *RemoteLog) AppendBatch(ctx context.Context, evs []model.Event) error {
	if len(evs) == 0 {
		return nil
	}
	if err := validateBatch(evs); err != nil {
		return err
	}

	for start := 0; start < len(evs); start += l.batchLimit {
		end := start + l.batchLimit
		if end > len(evs) {
			end = len(evs)
		}
		if err := l.appendChunk(ctx, evs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (l *RemoteLog) appendChunk(ctx context.Context, evs []model.Event) error {
	docs := make([]interface{}, 0, len(evs))
	for _, ev := range evs {
		doc, err := toEventDoc(ev)
		if err != nil {
			return err
		}
		sanitized, err := couchutil.SanitizeDoc(doc)
		if err != nil {
			return err
		}
		docs = append(docs, sanitized)
	}

	results, err := l.db.BulkDocs(ctx, docs)
	if err != nil {
		return fmt.Errorf("bulk writing events: %w", err)
	}

	written := make(map[string]struct{}, len(results))
	for _, res := range results {
		if res.Error != nil {
			// An existing document ID means this event already
			// reached the remote through another device.
			if kivik.HTTPStatus(res.Error) == http.StatusConflict {
				continue
			}
			return fmt.Errorf("writing event doc %s: %w", res.ID, res.Error)
		}
		written[res.ID] = struct{}{}
	}

	inserted := make([]model.Event, 0, len(evs))
	for _, ev := range evs {
		if _, ok := written[eventDocID(ev.ID)]; ok {
			inserted = append(inserted, ev)
		}
	}
	l.subs.notify(inserted)
	return nil
}

func (l *RemoteLog) ByAggregate(ctx context.Context, aggregateID string) ([]model.Event, error) {
	return l.find(ctx, map[string]interface{}{
		"selector": map[string]interface{}{
			"kind":        "event",
			"aggregateId": aggregateID,
		},
	})
}

func (l *RemoteLog) All(ctx context.Context) ([]model.Event, error) {
	return l.find(ctx, map[string]interface{}{
		"selector": map[string]interface{}{
			"kind": "event",
		},
	})
}

func (l *RemoteLog) find(ctx context.Context, query map[string]interface{}) ([]model.Event, error) {
	rows := l.db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying remote events: %w", err)
	}
	defer rows.Close()

	var evs []model.Event
	for rows.Next() {
		var doc eventDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("scanning remote event: %w", err)
		}
		ev, err := fromEventDoc(doc)
		if err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}

	// The remote has no insertion counter; event IDs break timestamp
	// ties the same way for every reader.
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].Timestamp.Equal(evs[j].Timestamp) {
			return evs[i].Timestamp.Before(evs[j].Timestamp)
		}
		return evs[i].ID < evs[j].ID
	})
	return evs, nil
}

func (l *RemoteLog) Subscribe(fn Subscriber) func() {
	return l.subs.add(fn)
}

var _ Store = (*RemoteLog)(nil)
