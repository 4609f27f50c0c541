package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dialhaven/recall/pkg/consolidate"
	"github.com/dialhaven/recall/pkg/metrics"
	"github.com/dialhaven/recall/pkg/search"
	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/tenant"
	"github.com/dialhaven/recall/pkg/thread"
	"github.com/dialhaven/recall/pkg/vector"
)

// Server is the API server fronting the memory engine. Every /v1 route
// runs behind bearer-token auth; the tenant resolved from the token is
// the only tenant a request can touch.
type Server struct {
	config   Config
	registry *thread.Registry
	storer   store.Driver
	searcher *search.Searcher
	engine   *consolidate.Engine
	vectors  vector.Driver
	verifier *tenant.Verifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a new API server. Collaborators are injected so the
// serve command can share them with the consolidation engine. vectors may
// be nil when the semantic path is disabled.
func NewServer(
	config Config,
	registry *thread.Registry,
	storer store.Driver,
	searcher *search.Searcher,
	engine *consolidate.Engine,
	vectors vector.Driver,
	verifier *tenant.Verifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	config.applyDefaults()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		registry: registry,
		storer:   storer,
		searcher: searcher,
		engine:   engine,
		vectors:  vectors,
		verifier: verifier,
		metrics:  m,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))

	v1 := app.Group("/v1", s.requireTenant)
	v1.Post("/thread/append", s.handleThreadAppend)
	v1.Get("/thread/recent", s.handleThreadRecent)
	v1.Post("/memory/write", s.handleMemoryWrite)
	v1.Get("/memory/read", s.handleMemoryRead)
	v1.Post("/memory/search", s.handleMemorySearch)
	v1.Delete("/tenant", s.handleTenantPurge)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying fiber app, for handler tests.
func (s *Server) App() *fiber.App {
	return s.app
}
