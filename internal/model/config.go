package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// RemoteConfig holds the connection settings for the remote event log
// (a per-user CouchDB database). Username and Password here are development
// overrides; the keyring is consulted first when they are empty.
type RemoteConfig struct {
	// Enabled turns remote sync on. The engine is fully functional
	// offline when false.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// URL is the CouchDB base URL, e.g. http://localhost:5984.
	URL string `mapstructure:"url" yaml:"url"`

	// Database is the per-user database name.
	Database string `mapstructure:"database" yaml:"database"`

	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// BatchLimit caps the number of documents per remote write batch;
	// larger appends are chunked transparently.
	BatchLimit int `mapstructure:"batch_limit" yaml:"batch_limit"`
}

// SyncConfig controls the reconciliation schedule.
type SyncConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// AppConfig is the top-level engine configuration.
type AppConfig struct {
	// DBPath is the local SQLite database holding the event log and
	// snapshot tables.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`
	Sync   SyncConfig   `mapstructure:"sync" yaml:"sync"`

	// CollectionDedupeWindowSec is how long a duplicate create-collection
	// with the same name is treated as a retry of the first one.
	CollectionDedupeWindowSec int `mapstructure:"collection_dedupe_window_sec" yaml:"collection_dedupe_window_sec"`

	// SnapshotEveryEvents triggers a projection snapshot save after this
	// many folded events. Zero disables count-based snapshotting.
	SnapshotEveryEvents int `mapstructure:"snapshot_every_events" yaml:"snapshot_every_events"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/bujotrack/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "bujotrack", "config.yaml")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "bujotrack.db")
	}
	return filepath.Join(home, ".local", "share", "bujotrack", "bujotrack.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		DBPath: defaultDBPath(),
		Remote: RemoteConfig{
			BatchLimit: 400,
		},
		Sync: SyncConfig{
			IntervalSec: 60,
		},
		CollectionDedupeWindowSec: 5,
		SnapshotEveryEvents:       200,
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// with BUJOTRACK_* environment variables overriding file values. If the
// file does not exist, it returns the default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BUJOTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.batch_limit", 400)
	v.SetDefault("sync.interval_sec", 60)
	v.SetDefault("collection_dedupe_window_sec", 5)
	v.SetDefault("snapshot_every_events", 200)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
