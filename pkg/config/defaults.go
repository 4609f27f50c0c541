package config

const (
	defaultAPIListen   = ":8080"
	defaultRecentLimit = 50
	defaultSearchLimit = 10

	defaultStorageProvider = "sqlite"

	defaultBufferCapacity       = 500
	defaultBufferWatermark      = 400
	defaultBufferSnapshotEvery  = 20
	defaultBufferStoreTimeoutMS = 250
	defaultBufferSnapshotQueue  = 256

	defaultConsolidateSlice   = 200
	defaultConsolidateRetries = 3
	defaultConsolidateTimeout = 60
	defaultConsolidateSweep   = "@every 2m"
	defaultConsolidateSweepAt = 400

	defaultExtractProvider = "rules"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "recall.memory"

	defaultVectorProvider = "none"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen:      defaultAPIListen,
			RecentLimit: defaultRecentLimit,
			SearchLimit: defaultSearchLimit,
		},
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		Buffer: BufferConfig{
			Capacity:       defaultBufferCapacity,
			Watermark:      defaultBufferWatermark,
			SnapshotEvery:  defaultBufferSnapshotEvery,
			StoreTimeoutMS: defaultBufferStoreTimeoutMS,
			SnapshotQueue:  defaultBufferSnapshotQueue,
		},
		Consolidate: ConsolidateConfig{
			Slice:          defaultConsolidateSlice,
			Retries:        defaultConsolidateRetries,
			TimeoutSeconds: defaultConsolidateTimeout,
			SweepSpec:      defaultConsolidateSweep,
			SweepAt:        defaultConsolidateSweepAt,
		},
		Extract: ExtractConfig{
			Provider: defaultExtractProvider,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
	}
}
