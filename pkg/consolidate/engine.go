// Package consolidate runs the extraction passes that move conversation
// turns out of rolling thread buffers and into durable memory.
package consolidate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/dialhaven/recall/pkg/eventstream"
	"github.com/dialhaven/recall/pkg/extract"
	"github.com/dialhaven/recall/pkg/metrics"
	"github.com/dialhaven/recall/pkg/search"
	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/tenant"
	"github.com/dialhaven/recall/pkg/thread"
)

var (
	defaultSlice     = 200
	defaultRetries   = uint64(3)
	defaultTimeout   = 60 * time.Second
	defaultSweepSpec = "@every 2m"
	defaultSweepAt   = 400
)

// Config holds the engine's tunables.
type Config struct {
	// Slice is the maximum number of turns consumed per pass.
	Slice int

	// Retries bounds extraction attempts per pass before the slice is
	// abandoned.
	Retries uint64

	// Timeout bounds one whole pass, extraction included.
	Timeout time.Duration

	// SweepSpec is the cron schedule for the periodic sweep that catches
	// threads whose calls ended quietly. Empty disables the sweep.
	SweepSpec string

	// SweepAt is the buffer length at which the sweep triggers a pass.
	SweepAt int
}

func (c *Config) applyDefaults() {
	if c.Slice == 0 {
		c.Slice = defaultSlice
	}
	if c.Retries == 0 {
		c.Retries = defaultRetries
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.SweepSpec == "" {
		c.SweepSpec = defaultSweepSpec
	}
	if c.SweepAt == 0 {
		c.SweepAt = defaultSweepAt
	}
}

// Engine coordinates consolidation passes. Triggers for a thread that is
// already being consolidated coalesce into the running pass, so a burst of
// watermark crossings costs one extraction.
type Engine struct {
	config    Config
	registry  *thread.Registry
	store     store.Driver
	extractor extract.Extractor
	searcher  *search.Searcher
	publisher eventstream.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	cron   *cron.Cron

	mu       sync.Mutex
	inflight map[tenant.ThreadID]struct{}
}

// NewEngine creates a consolidation engine. Start must be called before
// triggers are honored on a schedule; Trigger works immediately.
func NewEngine(
	config Config,
	registry *thread.Registry,
	driver store.Driver,
	extractor extract.Extractor,
	searcher *search.Searcher,
	publisher eventstream.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Engine {
	config.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		config:    config,
		registry:  registry,
		store:     driver,
		extractor: extractor,
		searcher:  searcher,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		inflight:  make(map[tenant.ThreadID]struct{}),
	}
}

// Start begins the periodic sweep. Safe to skip for engines that only
// consolidate on watermark triggers.
func (e *Engine) Start() error {
	if e.config.SweepSpec == "" {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(e.config.SweepSpec, e.sweep); err != nil {
		return fmt.Errorf("scheduling consolidation sweep: %w", err)
	}
	c.Start()
	e.cron = c

	e.logger.Info("consolidation sweep scheduled",
		zap.String("spec", e.config.SweepSpec),
		zap.Int("sweep_at", e.config.SweepAt),
	)

	return nil
}

// Trigger requests a consolidation pass for a thread. It returns
// immediately; the pass runs detached with its own deadline so it
// survives the end of the HTTP request that crossed the watermark.
// Returns false when a pass for the thread is already in flight.
func (e *Engine) Trigger(tenantID tenant.ID, callerID tenant.CallerID) bool {
	threadID := tenant.NewThreadID(tenantID, callerID)

	e.mu.Lock()
	if _, busy := e.inflight[threadID]; busy {
		e.mu.Unlock()
		return false
	}
	e.inflight[threadID] = struct{}{}
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.inflight, threadID)
			e.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(e.ctx, e.config.Timeout)
		defer cancel()

		if err := e.consolidate(ctx, tenantID, callerID, threadID); err != nil {
			e.logger.Error("consolidation pass failed",
				zap.String("thread", string(threadID)),
				zap.Error(err),
			)
		}
	}()

	return true
}

// sweep triggers passes for live threads that accumulated turns without
// crossing the watermark on an append, e.g. after a burst of short calls.
func (e *Engine) sweep() {
	for _, info := range e.registry.Threads() {
		if info.Len >= e.config.SweepAt {
			e.Trigger(info.TenantID, info.CallerID)
		}
	}
}

// Close stops the sweep and waits for in-flight passes to finish.
func (e *Engine) Close() error {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
	e.cancel()
	e.wg.Wait()
	return nil
}

// consolidate runs one pass: peek the oldest slice, extract facts from a
// copy, persist survivors, then truncate the buffer through the slice
// boundary. The buffer keeps serving reads and appends the whole time.
// When extraction exhausts its retries the slice is dropped anyway, as
// explicit data loss; keeping it would re-run the same failing extraction
// on every sweep.
func (e *Engine) consolidate(ctx context.Context, tenantID tenant.ID, callerID tenant.CallerID, threadID tenant.ThreadID) error {
	turns, ok := e.registry.PeekOldest(threadID, e.config.Slice)
	if !ok || len(turns) == 0 {
		return nil
	}
	boundary := turns[len(turns)-1].Seq

	extraction, err := e.extractWithRetry(ctx, threadID, turns)
	if err != nil {
		e.truncateWithoutExtraction(threadID, boundary, len(turns))
		return fmt.Errorf("extraction abandoned after retries: %w", err)
	}

	written, err := e.persistCandidates(ctx, tenantID, callerID, extraction.Candidates)
	if err != nil {
		return err
	}

	var replacement *thread.Turn
	if extraction.Summary != "" {
		replacement = &thread.Turn{
			Role:    thread.RoleAgent,
			Text:    extraction.Summary,
			At:      time.Now(),
			Summary: true,
		}
	}

	remaining := e.registry.DiscardThrough(threadID, boundary, replacement)

	if err := e.registry.SnapshotNow(ctx, threadID); err != nil {
		e.logger.Warn("post-consolidation snapshot failed",
			zap.String("thread", string(threadID)),
			zap.Error(err),
		)
	}

	if err := e.searcher.IndexRecords(ctx, written); err != nil {
		e.logger.Warn("indexing consolidated records failed",
			zap.String("thread", string(threadID)),
			zap.Error(err),
		)
	}

	e.publishConsolidated(ctx, tenantID, threadID, len(turns), len(written), extraction.Summary)

	e.metrics.ConsolidationRun()
	e.logger.Info("thread consolidated",
		zap.String("thread", string(threadID)),
		zap.Int("turns", len(turns)),
		zap.Int("facts", len(written)),
		zap.Int("remaining", remaining),
	)

	return nil
}

// truncateWithoutExtraction drops the slice after exhausted retries and
// snapshots the shrunken buffer so a restart does not resurrect the turns.
// The pass context may already be dead, so the snapshot gets its own.
func (e *Engine) truncateWithoutExtraction(threadID tenant.ThreadID, boundary uint64, dropped int) {
	remaining := e.registry.DiscardThrough(threadID, boundary, nil)

	snapCtx, cancel := context.WithTimeout(e.ctx, e.config.Timeout)
	defer cancel()
	if err := e.registry.SnapshotNow(snapCtx, threadID); err != nil {
		e.logger.Warn("post-truncation snapshot failed",
			zap.String("thread", string(threadID)),
			zap.Error(err),
		)
	}

	e.metrics.ConsolidationDataLoss()
	e.logger.Error("slice dropped without extraction",
		zap.String("thread", string(threadID)),
		zap.Int("turns_lost", dropped),
		zap.Int("remaining", remaining),
	)
}

// extractWithRetry calls the extractor with exponential backoff. One flaky
// LLM response does not abandon the slice.
func (e *Engine) extractWithRetry(ctx context.Context, threadID tenant.ThreadID, turns []thread.Turn) (*extract.Extraction, error) {
	var extraction *extract.Extraction

	op := func() error {
		var err error
		extraction, err = e.extractor.Extract(ctx, turns)
		if err != nil {
			e.metrics.ConsolidationRetry()
			e.logger.Warn("extraction attempt failed",
				zap.String("thread", string(threadID)),
				zap.Error(err),
			)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.config.Retries),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}

	return extraction, nil
}

// persistCandidates writes extracted facts, skipping candidates whose
// stored value is already identical so repeated mentions do not churn
// UpdatedAt or the event stream.
func (e *Engine) persistCandidates(ctx context.Context, tenantID tenant.ID, callerID tenant.CallerID, candidates []extract.Candidate) ([]*store.Record, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	existing, err := e.store.Get(ctx, store.Query{
		TenantID: tenantID,
		CallerID: callerID,
	})
	if err != nil {
		return nil, fmt.Errorf("loading existing records: %w", err)
	}

	current := make(map[string]string, len(existing))
	for _, r := range existing {
		current[recordIdentity(r.CallerID, r.Type, r.Key)] = r.Value
	}

	var written []*store.Record
	for _, c := range candidates {
		rec := candidateRecord(tenantID, callerID, c)
		if err := rec.Validate(); err != nil {
			e.logger.Warn("dropping invalid extraction candidate",
				zap.String("key", c.Key),
				zap.Error(err),
			)
			continue
		}

		if v, ok := current[recordIdentity(rec.CallerID, rec.Type, rec.Key)]; ok && v == rec.Value {
			continue
		}

		saved, err := e.store.Put(ctx, rec)
		if err != nil {
			return written, fmt.Errorf("persisting fact %s/%s: %w", rec.Type, rec.Key, err)
		}

		e.metrics.RecordWritten()
		written = append(written, saved)
		e.publishRecordWritten(ctx, tenantID, saved)
	}

	return written, nil
}

func (e *Engine) publishRecordWritten(ctx context.Context, tenantID tenant.ID, rec *store.Record) {
	event := &eventstream.RecordWrittenEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeRecordWritten,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		TenantID:      tenantID,
		Record:        *rec,
	}
	if err := e.publisher.PublishRecordWritten(ctx, event); err != nil {
		e.logger.Warn("publishing record event failed", zap.Error(err))
	}
}

func (e *Engine) publishConsolidated(ctx context.Context, tenantID tenant.ID, threadID tenant.ThreadID, dropped, facts int, summary string) {
	event := &eventstream.ThreadConsolidatedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeThreadConsolidated,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		TenantID:      tenantID,
		ThreadID:      threadID,
		TurnsDropped:  dropped,
		FactsWritten:  facts,
		Summary:       summary,
	}
	if err := e.publisher.PublishThreadConsolidated(ctx, event); err != nil {
		e.logger.Warn("publishing consolidation event failed", zap.Error(err))
	}
}

// candidateRecord maps an extraction candidate to its durable record.
// Tenant-scoped facts drop the caller so every caller of the tenant
// shares them.
func candidateRecord(tenantID tenant.ID, callerID tenant.CallerID, c extract.Candidate) *store.Record {
	scope := store.ParseScope(c.Scope)

	rec := &store.Record{
		TenantID: tenantID,
		Type:     store.ParseType(c.Type),
		Key:      c.Key,
		Value:    c.Value,
		Scope:    scope,
	}
	if scope == store.ScopeCaller {
		rec.CallerID = callerID
	}

	return rec
}

func recordIdentity(callerID tenant.CallerID, t store.Type, key string) string {
	return string(callerID) + "\x1f" + string(t) + "\x1f" + key
}
