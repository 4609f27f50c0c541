// Package servecmder provides the serve command that runs the memory engine.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dialhaven/recall/api"
	"github.com/dialhaven/recall/pkg/config"
	"github.com/dialhaven/recall/pkg/consolidate"
	"github.com/dialhaven/recall/pkg/embeddings"
	embeddingutils "github.com/dialhaven/recall/pkg/embeddings/utils"
	"github.com/dialhaven/recall/pkg/eventstream"
	"github.com/dialhaven/recall/pkg/eventstream/kafka"
	"github.com/dialhaven/recall/pkg/eventstream/nop"
	"github.com/dialhaven/recall/pkg/extract"
	extractopenai "github.com/dialhaven/recall/pkg/extract/openai"
	"github.com/dialhaven/recall/pkg/extract/rules"
	"github.com/dialhaven/recall/pkg/logger"
	"github.com/dialhaven/recall/pkg/metrics"
	"github.com/dialhaven/recall/pkg/search"
	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/store/inmemory"
	"github.com/dialhaven/recall/pkg/store/postgres"
	"github.com/dialhaven/recall/pkg/store/sqlite"
	"github.com/dialhaven/recall/pkg/tenant"
	"github.com/dialhaven/recall/pkg/thread"
	"github.com/dialhaven/recall/pkg/vector"
	vectorutils "github.com/dialhaven/recall/pkg/vector/utils"
)

// serveFlags is the flag registry for the serve command.
var serveFlags = config.FlagSet{
	config.FlagListen: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagAuthSecret: {
		Name: "auth-secret", ViperKey: "auth.secret",
		Description: "Shared HMAC secret for tenant bearer tokens",
	},
	config.FlagStorageProvider: {
		Name: "storage-provider", ViperKey: "storage.provider",
		Description: "Durable store backend (inmemory, sqlite, postgres)",
	},
	config.FlagSQLite: {
		Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path",
		Description: "Path to the SQLite database file",
	},
	config.FlagPostgres: {
		Name: "postgres", ViperKey: "storage.postgres_url",
		Description: "Postgres connection string",
	},
	config.FlagBufferCapacity: {
		Name: "buffer-capacity", ViperKey: "buffer.capacity",
		Description: "Hard cap on turns held per thread",
	},
	config.FlagBufferWatermark: {
		Name: "buffer-watermark", ViperKey: "buffer.watermark",
		Description: "Thread length that triggers consolidation",
	},
	config.FlagExtractProvider: {
		Name: "extract-provider", ViperKey: "extract.provider",
		Description: "Fact extractor (rules, openai)",
	},
	config.FlagExtractModel: {
		Name: "extract-model", ViperKey: "extract.model",
		Description: "Chat model used by the openai extractor",
	},
	config.FlagEventsProvider: {
		Name: "events-provider", ViperKey: "events.provider",
		Description: "Event stream backend (nop, kafka)",
	},
	config.FlagVectorProvider: {
		Name: "vector-provider", ViperKey: "vector_store.provider",
		Description: "Vector store backend (none, sqlite-vec, chroma)",
	},
	config.FlagVectorTarget: {
		Name: "vector-target", ViperKey: "vector_store.target",
		Description: "Vector store URL (chroma)",
	},
	config.FlagEmbeddingProv: {
		Name: "embedding-provider", ViperKey: "embedding.provider",
		Description: "Embedding provider (ollama)",
	},
	config.FlagEmbeddingTgt: {
		Name: "embedding-target", ViperKey: "embedding.target",
		Description: "Embedding provider URL",
	},
	config.FlagEmbeddingModel: {
		Name: "embedding-model", ViperKey: "embedding.model",
		Description: "Embedding model name",
	},
	config.FlagEmbeddingDims: {
		Name: "embedding-dimensions", ViperKey: "embedding.dimensions",
		Description: "Embedding vector dimensions",
	},
}

// serveFlagKeys lists every registry key the serve command binds.
var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagAuthSecret,
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagBufferCapacity,
	config.FlagBufferWatermark,
	config.FlagExtractProvider,
	config.FlagExtractModel,
	config.FlagEventsProvider,
	config.FlagVectorProvider,
	config.FlagVectorTarget,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

type ServeCommander struct {
	listen          string
	authSecret      string
	storageProvider string
	sqlitePath      string
	postgresURL     string
	bufferCapacity  int
	bufferWatermark int
	extractProvider string
	extractModel    string
	eventsProvider  string
	vectorProvider  string
	vectorTarget    string
	embeddingProv   string
	embeddingTgt    string
	embeddingModel  string
	embeddingDims   uint

	debug  bool
	logger *zap.Logger
}

const serveLongDesc string = `Run the recall memory engine.

Starts the HTTP API, the rolling thread buffers, and the consolidation
engine together. Configuration comes from flags, RECALL_* environment
variables, and config.toml in the .recall/ directory, in that order.`

const serveShortDesc string = "Run the recall memory engine"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	var cfg *config.Config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)
			cfg = config.FromViper(v)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cfg)
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagAuthSecret, &cmder.authSecret)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagPostgres, &cmder.postgresURL)
	config.AddIntFlag(cmd, serveFlags, config.FlagBufferCapacity, &cmder.bufferCapacity)
	config.AddIntFlag(cmd, serveFlags, config.FlagBufferWatermark, &cmder.bufferWatermark)
	config.AddStringFlag(cmd, serveFlags, config.FlagExtractProvider, &cmder.extractProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagExtractModel, &cmder.extractModel)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorProvider, &cmder.vectorProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorTarget, &cmder.vectorTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, serveFlags, config.FlagEmbeddingDims, &cmder.embeddingDims)

	return cmd
}

func (c *ServeCommander) run(cfg *config.Config) error {
	c.logger = logger.NewServiceLogger("recall", c.debug)
	defer c.logger.Sync()

	if cfg.Auth.Secret == "" {
		return errors.New("auth.secret is required (set RECALL_AUTH_SECRET or --auth-secret)")
	}

	m := metrics.New()

	driver, err := c.newStoreDriver(cfg)
	if err != nil {
		return err
	}
	defer driver.Close()

	registry := thread.NewRegistry(thread.Config{
		Capacity:      cfg.Buffer.Capacity,
		Watermark:     cfg.Buffer.Watermark,
		SnapshotEvery: cfg.Buffer.SnapshotEvery,
		StoreTimeout:  time.Duration(cfg.Buffer.StoreTimeoutMS) * time.Millisecond,
		SnapshotQueue: cfg.Buffer.SnapshotQueue,
	}, driver, m, c.logger)
	defer registry.Close()

	extractor, err := c.newExtractor(cfg)
	if err != nil {
		return err
	}
	defer extractor.Close()

	vectors, embedder, err := c.newSemanticPath(cfg)
	if err != nil {
		return err
	}
	if vectors != nil {
		defer vectors.Close()
	}
	if embedder != nil {
		defer embedder.Close()
	}

	searcher := search.NewSearcher(driver, vectors, embedder, c.logger)

	publisher, err := c.newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	engine := consolidate.NewEngine(consolidate.Config{
		Slice:     cfg.Consolidate.Slice,
		Retries:   uint64(cfg.Consolidate.Retries),
		Timeout:   time.Duration(cfg.Consolidate.TimeoutSeconds) * time.Second,
		SweepSpec: cfg.Consolidate.SweepSpec,
		SweepAt:   cfg.Consolidate.SweepAt,
	}, registry, driver, extractor, searcher, publisher, m, c.logger)
	if err := engine.Start(); err != nil {
		return err
	}
	defer engine.Close()

	var directory tenant.Directory
	if len(cfg.Auth.Tenants) > 0 {
		directory = tenant.NewStaticDirectory(cfg.Auth.Tenants)
	}
	verifier := tenant.NewVerifier([]byte(cfg.Auth.Secret), directory)

	server := api.NewServer(api.Config{
		ListenAddr:         cfg.API.Listen,
		DefaultRecentLimit: cfg.API.RecentLimit,
		DefaultSearchLimit: cfg.API.SearchLimit,
	}, registry, driver, searcher, engine, vectors, verifier, m, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

func (c *ServeCommander) newStoreDriver(cfg *config.Config) (store.Driver, error) {
	switch cfg.Storage.Provider {
	case "inmemory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	case "sqlite":
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = "recall.db"
		}
		driver, err := sqlite.NewDriver(path)
		if err != nil {
			return nil, fmt.Errorf("creating SQLite store: %w", err)
		}
		c.logger.Info("using SQLite storage", zap.String("path", path))
		return driver, nil
	case "postgres":
		if cfg.Storage.PostgresURL == "" {
			return nil, errors.New("storage.postgres_url is required for the postgres provider")
		}
		driver, err := postgres.NewDriver(context.Background(), cfg.Storage.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("creating Postgres store: %w", err)
		}
		c.logger.Info("using Postgres storage")
		return driver, nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Storage.Provider)
	}
}

func (c *ServeCommander) newExtractor(cfg *config.Config) (extract.Extractor, error) {
	switch cfg.Extract.Provider {
	case "rules":
		c.logger.Info("using rule-based extraction")
		return rules.NewExtractor(), nil
	case "openai":
		c.logger.Info("using openai extraction", zap.String("model", cfg.Extract.Model))
		return extractopenai.NewExtractor(extractopenai.Config{
			APIKey:  cfg.Extract.APIKey,
			BaseURL: cfg.Extract.BaseURL,
			Model:   cfg.Extract.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported extract provider: %s", cfg.Extract.Provider)
	}
}

// newSemanticPath builds the vector driver and embedder pair, or neither
// when the vector store is disabled.
func (c *ServeCommander) newSemanticPath(cfg *config.Config) (vector.Driver, embeddings.Embedder, error) {
	if cfg.VectorStore.Provider == "" || cfg.VectorStore.Provider == "none" {
		return nil, nil, nil
	}

	vectors, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    cfg.VectorStore.Target,
		DBPath:       cfg.VectorStore.DBPath,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating vector driver: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
	})
	if err != nil {
		vectors.Close()
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}

	return vectors, embedder, nil
}

func (c *ServeCommander) newPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	switch cfg.Events.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		if len(cfg.Events.Brokers) == 0 {
			return nil, errors.New("events.brokers is required for the kafka provider")
		}
		c.logger.Info("publishing events to kafka",
			zap.Strings("brokers", cfg.Events.Brokers),
			zap.String("topic", cfg.Events.Topic),
		)
		return kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", cfg.Events.Provider)
	}
}
