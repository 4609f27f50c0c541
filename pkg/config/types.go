package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent recall configuration stored as config.toml
// in the .recall/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Auth        AuthConfig        `toml:"auth"`
	API         APIConfig         `toml:"api"`
	Storage     StorageConfig     `toml:"storage"`
	Buffer      BufferConfig      `toml:"buffer"`
	Consolidate ConsolidateConfig `toml:"consolidate"`
	Extract     ExtractConfig     `toml:"extract"`
	Events      EventsConfig      `toml:"events"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
}

// AuthConfig holds tenant authentication settings. Secret is the shared
// HMAC key for bearer tokens; Tenants is the allow list of known tenant
// IDs (empty accepts any tenant a valid token names).
type AuthConfig struct {
	Secret  string   `toml:"secret,omitempty"`
	Tenants []string `toml:"tenants,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen      string `toml:"listen,omitempty"`
	RecentLimit int    `toml:"recent_limit,omitempty"`
	SearchLimit int    `toml:"search_limit,omitempty"`
}

// StorageConfig holds durable store settings.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresURL string `toml:"postgres_url,omitempty"`
}

// BufferConfig holds rolling thread buffer settings.
type BufferConfig struct {
	Capacity       int `toml:"capacity,omitempty"`
	Watermark      int `toml:"watermark,omitempty"`
	SnapshotEvery  int `toml:"snapshot_every,omitempty"`
	StoreTimeoutMS int `toml:"store_timeout_ms,omitempty"`
	SnapshotQueue  int `toml:"snapshot_queue,omitempty"`
}

// ConsolidateConfig holds consolidation engine settings.
type ConsolidateConfig struct {
	Slice          int    `toml:"slice,omitempty"`
	Retries        int    `toml:"retries,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds,omitempty"`
	SweepSpec      string `toml:"sweep_spec,omitempty"`
	SweepAt        int    `toml:"sweep_at,omitempty"`
}

// ExtractConfig holds fact extractor settings.
type ExtractConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	DBPath   string `toml:"db_path,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func intKey(get func(c *Config) *int, name string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if n := *get(c); n != 0 {
				return strconv.Itoa(n)
			}
			return ""
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*get(c) = n
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"auth.secret": {
		get: func(c *Config) string { return c.Auth.Secret },
		set: func(c *Config, v string) error { c.Auth.Secret = v; return nil },
	},
	"auth.tenants": {
		get: func(c *Config) string { return strings.Join(c.Auth.Tenants, ",") },
		set: func(c *Config, v string) error {
			c.Auth.Tenants = nil
			for _, t := range strings.Split(v, ",") {
				if t = strings.TrimSpace(t); t != "" {
					c.Auth.Tenants = append(c.Auth.Tenants, t)
				}
			}
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"api.recent_limit": intKey(func(c *Config) *int { return &c.API.RecentLimit }, "api.recent_limit"),
	"api.search_limit": intKey(func(c *Config) *int { return &c.API.SearchLimit }, "api.search_limit"),
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_url": {
		get: func(c *Config) string { return c.Storage.PostgresURL },
		set: func(c *Config, v string) error { c.Storage.PostgresURL = v; return nil },
	},
	"buffer.capacity":         intKey(func(c *Config) *int { return &c.Buffer.Capacity }, "buffer.capacity"),
	"buffer.watermark":        intKey(func(c *Config) *int { return &c.Buffer.Watermark }, "buffer.watermark"),
	"buffer.snapshot_every":   intKey(func(c *Config) *int { return &c.Buffer.SnapshotEvery }, "buffer.snapshot_every"),
	"buffer.store_timeout_ms": intKey(func(c *Config) *int { return &c.Buffer.StoreTimeoutMS }, "buffer.store_timeout_ms"),
	"buffer.snapshot_queue":   intKey(func(c *Config) *int { return &c.Buffer.SnapshotQueue }, "buffer.snapshot_queue"),
	"consolidate.slice":       intKey(func(c *Config) *int { return &c.Consolidate.Slice }, "consolidate.slice"),
	"consolidate.retries":     intKey(func(c *Config) *int { return &c.Consolidate.Retries }, "consolidate.retries"),
	"consolidate.timeout_seconds": intKey(
		func(c *Config) *int { return &c.Consolidate.TimeoutSeconds }, "consolidate.timeout_seconds"),
	"consolidate.sweep_spec": {
		get: func(c *Config) string { return c.Consolidate.SweepSpec },
		set: func(c *Config, v string) error { c.Consolidate.SweepSpec = v; return nil },
	},
	"consolidate.sweep_at": intKey(func(c *Config) *int { return &c.Consolidate.SweepAt }, "consolidate.sweep_at"),
	"extract.provider": {
		get: func(c *Config) string { return c.Extract.Provider },
		set: func(c *Config, v string) error { c.Extract.Provider = v; return nil },
	},
	"extract.model": {
		get: func(c *Config) string { return c.Extract.Model },
		set: func(c *Config, v string) error { c.Extract.Model = v; return nil },
	},
	"extract.base_url": {
		get: func(c *Config) string { return c.Extract.BaseURL },
		set: func(c *Config, v string) error { c.Extract.BaseURL = v; return nil },
	},
	"extract.api_key": {
		get: func(c *Config) string { return c.Extract.APIKey },
		set: func(c *Config, v string) error { c.Extract.APIKey = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.Brokers = nil
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.Events.Brokers = append(c.Events.Brokers, b)
				}
			}
			return nil
		},
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"vector_store.db_path": {
		get: func(c *Config) string { return c.VectorStore.DBPath },
		set: func(c *Config, v string) error { c.VectorStore.DBPath = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
}
