package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/dialhaven/recall/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the RECALL_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (RECALL_API_LISTEN, RECALL_AUTH_SECRET, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: RECALL_API_LISTEN, RECALL_STORAGE_PROVIDER, etc.
	v.SetEnvPrefix("RECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Auth
	v.SetDefault("auth.secret", d.Auth.Secret)
	v.SetDefault("auth.tenants", d.Auth.Tenants)

	// API
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.recent_limit", d.API.RecentLimit)
	v.SetDefault("api.search_limit", d.API.SearchLimit)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_url", d.Storage.PostgresURL)

	// Buffer
	v.SetDefault("buffer.capacity", d.Buffer.Capacity)
	v.SetDefault("buffer.watermark", d.Buffer.Watermark)
	v.SetDefault("buffer.snapshot_every", d.Buffer.SnapshotEvery)
	v.SetDefault("buffer.store_timeout_ms", d.Buffer.StoreTimeoutMS)
	v.SetDefault("buffer.snapshot_queue", d.Buffer.SnapshotQueue)

	// Consolidate
	v.SetDefault("consolidate.slice", d.Consolidate.Slice)
	v.SetDefault("consolidate.retries", d.Consolidate.Retries)
	v.SetDefault("consolidate.timeout_seconds", d.Consolidate.TimeoutSeconds)
	v.SetDefault("consolidate.sweep_spec", d.Consolidate.SweepSpec)
	v.SetDefault("consolidate.sweep_at", d.Consolidate.SweepAt)

	// Extract
	v.SetDefault("extract.provider", d.Extract.Provider)
	v.SetDefault("extract.model", d.Extract.Model)
	v.SetDefault("extract.base_url", d.Extract.BaseURL)
	v.SetDefault("extract.api_key", d.Extract.APIKey)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.db_path", d.VectorStore.DBPath)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
}
