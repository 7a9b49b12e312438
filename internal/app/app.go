// Package app wires the engine together: local and remote stores,
// projections, command handlers, and the sync manager. The UI layer holds
// an Engine and talks only to Handlers (writes) and the projections
// (reads).
package app

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
	"github.com/jmoiron/sqlx"

	"github.com/minhvu/bujotrack/internal/command"
	"github.com/minhvu/bujotrack/internal/credential"
	"github.com/minhvu/bujotrack/internal/eventlog"
	"github.com/minhvu/bujotrack/internal/model"
	"github.com/minhvu/bujotrack/internal/projection"
	"github.com/minhvu/bujotrack/internal/snapshot"
	"github.com/minhvu/bujotrack/internal/storage"
	syncmgr "github.com/minhvu/bujotrack/internal/sync"
)

// Engine is the assembled offline-first journal engine.
type Engine struct {
	Local       eventlog.Store
	Remote      eventlog.Store // nil when remote sync is disabled
	Entries     *projection.Entries
	Collections *projection.Collections
	Preferences *projection.Preferences
	Handlers    *command.Handlers
	Sync        *syncmgr.Manager // nil when remote sync is disabled

	db          *sqlx.DB
	snaps       snapshot.Store
	remoteSnaps snapshot.Store // nil when remote sync is disabled

	snapEvery   int
	sinceSnap   atomic.Int64
	unsubEvents func()
}

// New opens the local database, connects the remote when enabled, seeds
// projections from snapshots, and builds the command handlers. The sync
// manager is constructed but not started; call Engine.Sync.Start.
func New(ctx context.Context, cfg *model.AppConfig) (*Engine, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		db:        db,
		snapEvery: cfg.SnapshotEveryEvents,
	}
	e.Local = eventlog.NewSQLiteLog(db)
	e.snaps = snapshot.NewSQLiteStore(db, model.SnapshotSchemaVersion)

	if cfg.Remote.Enabled {
		if err := e.connectRemote(ctx, cfg); err != nil {
			db.Close()
			return nil, err
		}
	}

	if e.Entries, err = projection.NewEntries(ctx, e.Local, e.snaps); err != nil {
		db.Close()
		return nil, err
	}
	if e.Collections, err = projection.NewCollections(ctx, e.Local, e.snaps); err != nil {
		db.Close()
		return nil, err
	}
	if e.Preferences, err = projection.NewPreferences(ctx, e.Local, e.snaps); err != nil {
		db.Close()
		return nil, err
	}

	e.Handlers = command.New(e.Local, e.Entries, e.Collections, e.Preferences,
		command.WithDedupeWindow(time.Duration(cfg.CollectionDedupeWindowSec)*time.Second),
	)

	if e.snapEvery > 0 {
		e.unsubEvents = e.Local.Subscribe(e.onEvent)
	}
	return e, nil
}

// connectRemote dials CouchDB, ensures the per-user database exists, and
// builds the remote log, remote snapshot store, and sync manager.
func (e *Engine) connectRemote(ctx context.Context, cfg *model.AppConfig) error {
	couchURL, err := remoteURL(cfg.Remote)
	if err != nil {
		return err
	}

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		return fmt.Errorf("connecting to remote: %w", err)
	}

	exists, err := client.DBExists(ctx, cfg.Remote.Database)
	if err != nil {
		return fmt.Errorf("checking remote database: %w", err)
	}
	if !exists {
		if err := client.CreateDB(ctx, cfg.Remote.Database); err != nil {
			return fmt.Errorf("creating remote database: %w", err)
		}
		log.Printf("app: created remote database %s", cfg.Remote.Database)
	}

	remote := eventlog.NewRemoteLog(client, cfg.Remote.Database, cfg.Remote.BatchLimit)
	e.Remote = remote
	e.remoteSnaps = snapshot.NewRemoteStore(client, cfg.Remote.Database, model.SnapshotSchemaVersion)
	e.Sync = syncmgr.New(e.Local, remote, time.Duration(cfg.Sync.IntervalSec)*time.Second)
	return nil
}

// remoteURL embeds the credentials into the configured base URL. Config
// values win so development setups work without a keyring; otherwise the
// system keyring is consulted.
func remoteURL(cfg model.RemoteConfig) (string, error) {
	user, pass := cfg.Username, cfg.Password
	if user == "" {
		var err error
		if user, err = credential.Get(credential.KeyRemoteUsername); err != nil {
			return "", fmt.Errorf("remote username not configured: %w", err)
		}
		if pass, err = credential.Get(credential.KeyRemotePassword); err != nil {
			return "", fmt.Errorf("remote password not configured: %w", err)
		}
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parsing remote url: %w", err)
	}
	u.User = url.UserPassword(user, pass)
	return u.String(), nil
}

// onEvent counts folded events and snapshots the projections every
// snapEvery appends.
func (e *Engine) onEvent(model.Event) {
	if e.sinceSnap.Add(1) < int64(e.snapEvery) {
		return
	}
	e.sinceSnap.Store(0)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.SaveSnapshots(ctx); err != nil {
			log.Printf("app: periodic snapshot failed: %v", err)
		}
	}()
}

// SaveSnapshots persists all projection snapshots. The local store is the
// reliability path; remote snapshot writes are best-effort and only
// logged on failure.
func (e *Engine) SaveSnapshots(ctx context.Context) error {
	saves := []struct {
		key  string
		snap func() (model.ProjectionSnapshot, error)
	}{
		{projection.EntriesKey, e.Entries.SnapshotNow},
		{projection.CollectionsKey, e.Collections.SnapshotNow},
		{projection.PreferencesKey, e.Preferences.SnapshotNow},
	}

	for _, s := range saves {
		snap, err := s.snap()
		if err != nil {
			return fmt.Errorf("serializing %s snapshot: %w", s.key, err)
		}
		if err := e.snaps.Save(ctx, s.key, snap); err != nil {
			return err
		}
		if e.remoteSnaps != nil {
			if err := e.remoteSnaps.Save(ctx, s.key, snap); err != nil {
				log.Printf("app: remote snapshot %s failed: %v", s.key, err)
			}
		}
	}
	return nil
}

// Close stops the sync loop, detaches projections, and closes the local
// database.
func (e *Engine) Close() error {
	if e.Sync != nil {
		e.Sync.Stop()
	}
	if e.unsubEvents != nil {
		e.unsubEvents()
	}
	e.Entries.Close()
	e.Collections.Close()
	e.Preferences.Close()
	return e.db.Close()
}
