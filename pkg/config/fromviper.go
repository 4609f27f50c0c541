package config

import "github.com/spf13/viper"

// FromViper materializes a Config from the viper precedence chain
// (flags > env > config file > defaults). Commands that wire the full
// service use this; commands that only edit the file use Configer.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Auth: AuthConfig{
			Secret:  v.GetString("auth.secret"),
			Tenants: v.GetStringSlice("auth.tenants"),
		},
		API: APIConfig{
			Listen:      v.GetString("api.listen"),
			RecentLimit: v.GetInt("api.recent_limit"),
			SearchLimit: v.GetInt("api.search_limit"),
		},
		Storage: StorageConfig{
			Provider:    v.GetString("storage.provider"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresURL: v.GetString("storage.postgres_url"),
		},
		Buffer: BufferConfig{
			Capacity:       v.GetInt("buffer.capacity"),
			Watermark:      v.GetInt("buffer.watermark"),
			SnapshotEvery:  v.GetInt("buffer.snapshot_every"),
			StoreTimeoutMS: v.GetInt("buffer.store_timeout_ms"),
			SnapshotQueue:  v.GetInt("buffer.snapshot_queue"),
		},
		Consolidate: ConsolidateConfig{
			Slice:          v.GetInt("consolidate.slice"),
			Retries:        v.GetInt("consolidate.retries"),
			TimeoutSeconds: v.GetInt("consolidate.timeout_seconds"),
			SweepSpec:      v.GetString("consolidate.sweep_spec"),
			SweepAt:        v.GetInt("consolidate.sweep_at"),
		},
		Extract: ExtractConfig{
			Provider: v.GetString("extract.provider"),
			Model:    v.GetString("extract.model"),
			BaseURL:  v.GetString("extract.base_url"),
			APIKey:   v.GetString("extract.api_key"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetStringSlice("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		VectorStore: VectorStoreConfig{
			Provider: v.GetString("vector_store.provider"),
			Target:   v.GetString("vector_store.target"),
			DBPath:   v.GetString("vector_store.db_path"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
	}
}
