package thread

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/dialhaven/recall/pkg/metrics"
	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/tenant"
)

var (
	defaultCapacity      = 500
	defaultWatermark     = 400
	defaultSnapshotEvery = 20
	defaultStoreTimeout  = 250 * time.Millisecond
	defaultSnapshotQueue = 256
)

// Config holds the registry's tunables. The illustrative numbers from the
// product side (400-of-500, snapshot every 20 turns) are defaults, not
// constants; the right values depend on deployed LLM context limits.
type Config struct {
	// Capacity is the hard cap on turns held per thread.
	Capacity int

	// Watermark is the length at which consolidation should be triggered,
	// below Capacity so extraction runs before eviction ever has to.
	Watermark int

	// SnapshotEvery is the append interval between durable snapshots.
	SnapshotEvery int

	// StoreTimeout bounds snapshot hydration and persistence calls so a
	// slow store degrades context depth, not call latency.
	StoreTimeout time.Duration

	// SnapshotQueue is the capacity of the async snapshot channel.
	SnapshotQueue int
}

func (c *Config) applyDefaults() {
	if c.Capacity == 0 {
		c.Capacity = defaultCapacity
	}
	if c.Watermark == 0 {
		c.Watermark = defaultWatermark
	}
	if c.SnapshotEvery == 0 {
		c.SnapshotEvery = defaultSnapshotEvery
	}
	if c.StoreTimeout == 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	if c.SnapshotQueue == 0 {
		c.SnapshotQueue = defaultSnapshotQueue
	}
}

// State is what an append reports back to the caller.
type State struct {
	ThreadID tenant.ThreadID

	// Len is the buffer length after the append.
	Len int

	// WatermarkCrossed is true only on the append that reaches the
	// watermark, so duplicate consolidation triggers are rare by
	// construction (and coalesced by the engine regardless).
	WatermarkCrossed bool
}

// Info describes one live thread, for the periodic consolidation sweep.
type Info struct {
	ThreadID tenant.ThreadID
	TenantID tenant.ID
	CallerID tenant.CallerID
	Len      int
}

// snapshot is the durable form of a buffer, stored under the reserved
// thread_snapshot record type.
type snapshot struct {
	Turns   []Turn `json:"turns"`
	NextSeq uint64 `json:"next_seq"`
}

// Registry is the process-wide map of live thread buffers. It is explicitly
// ephemeral: a restart clears it and threads rehydrate from their last
// store snapshot. Locking is per thread; the registry-level lock only
// guards the map itself.
type Registry struct {
	config  Config
	store   store.Driver
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu      lockedBuffers
	saves   chan *store.Record
	done    chan struct{}
	stopped chan struct{}
}

// NewRegistry creates a registry and starts its snapshot writer.
func NewRegistry(config Config, driver store.Driver, m *metrics.Metrics, logger *zap.Logger) *Registry {
	config.applyDefaults()

	r := &Registry{
		config:  config,
		store:   driver,
		metrics: m,
		logger:  logger,
		mu:      lockedBuffers{buffers: make(map[tenant.ThreadID]*buffer)},
		saves:   make(chan *store.Record, config.SnapshotQueue),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go r.snapshotWriter()

	return r
}

// Append adds a turn to the thread for (tenantID, callerID), creating and
// hydrating the buffer on first touch. It returns the post-append state.
func (r *Registry) Append(ctx context.Context, tenantID tenant.ID, callerID tenant.CallerID, role Role, text string) (State, error) {
	if tenantID == "" {
		return State{}, store.ErrMissingTenant
	}
	if callerID == "" {
		return State{}, store.ErrMissingCaller
	}

	buf := r.obtain(tenantID, callerID)

	buf.mu.Lock()
	defer buf.mu.Unlock()

	r.hydrateLocked(ctx, buf)

	before := len(buf.turns)
	buf.append(role, text, time.Now)

	if evicted := buf.evictOver(r.config.Capacity); evicted > 0 {
		r.logger.Warn("thread buffer over capacity, evicted oldest turns",
			zap.String("thread", string(buf.threadID)),
			zap.Int("evicted", evicted),
		)
	}

	if buf.sinceSnapshot >= r.config.SnapshotEvery {
		r.enqueueSnapshotLocked(buf)
	}

	after := len(buf.turns)

	return State{
		ThreadID:         buf.threadID,
		Len:              after,
		WatermarkCrossed: before < r.config.Watermark && after >= r.config.Watermark,
	}, nil
}

// Recent returns the last limit turns of the thread, most-recent-last.
// A cold thread hydrates first; a warm one answers without store I/O.
func (r *Registry) Recent(ctx context.Context, tenantID tenant.ID, callerID tenant.CallerID, limit int) ([]Turn, error) {
	if tenantID == "" {
		return nil, store.ErrMissingTenant
	}
	if callerID == "" {
		return nil, store.ErrMissingCaller
	}

	buf := r.obtain(tenantID, callerID)

	buf.mu.Lock()
	defer buf.mu.Unlock()

	r.hydrateLocked(ctx, buf)

	return buf.recent(limit), nil
}

// PeekOldest copies the first k turns of a thread without removing them.
// The consolidation engine extracts from the copy and truncates afterwards
// via DiscardThrough, so a failed extraction loses nothing.
func (r *Registry) PeekOldest(threadID tenant.ThreadID, k int) ([]Turn, bool) {
	buf, ok := r.lookup(threadID)
	if !ok {
		return nil, false
	}

	buf.mu.Lock()
	defer buf.mu.Unlock()

	return buf.peekOldest(k), true
}

// DiscardThrough removes a thread's turns up to and including seq,
// optionally leaving a synthetic summary turn in their place. Returns the
// new length.
func (r *Registry) DiscardThrough(threadID tenant.ThreadID, seq uint64, replacement *Turn) int {
	buf, ok := r.lookup(threadID)
	if !ok {
		return 0
	}

	buf.mu.Lock()
	defer buf.mu.Unlock()

	return buf.discardThrough(seq, replacement)
}

// SnapshotNow persists a thread's buffer synchronously. The consolidation
// engine calls it after truncation; the hot path never does.
func (r *Registry) SnapshotNow(ctx context.Context, threadID tenant.ThreadID) error {
	buf, ok := r.lookup(threadID)
	if !ok {
		return fmt.Errorf("no live buffer for thread %s", threadID)
	}

	buf.mu.Lock()
	rec, err := r.snapshotRecordLocked(buf)
	buf.sinceSnapshot = 0
	buf.mu.Unlock()

	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.StoreTimeout)
	defer cancel()

	if _, err := r.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("persisting snapshot: %w", err)
	}

	return nil
}

// Threads lists the live buffers, for the consolidation sweep.
func (r *Registry) Threads() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.mu.buffers))
	for _, buf := range r.mu.buffers {
		buf.mu.Lock()
		infos = append(infos, Info{
			ThreadID: buf.threadID,
			TenantID: buf.tenantID,
			CallerID: buf.callerID,
			Len:      len(buf.turns),
		})
		buf.mu.Unlock()
	}

	return infos
}

// Close stops the snapshot writer, draining queued writes first.
func (r *Registry) Close() {
	close(r.done)
	<-r.stopped
}

// obtain returns the buffer for a (tenant, caller) pair, creating it when
// absent.
func (r *Registry) obtain(tenantID tenant.ID, callerID tenant.CallerID) *buffer {
	threadID := tenant.NewThreadID(tenantID, callerID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if buf, ok := r.mu.buffers[threadID]; ok {
		return buf
	}

	buf := newBuffer(threadID, tenantID, callerID)
	r.mu.buffers[threadID] = buf

	return buf
}

func (r *Registry) lookup(threadID tenant.ThreadID) (*buffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.mu.buffers[threadID]
	return buf, ok
}

// hydrateLocked loads the last persisted snapshot into a cold buffer.
// A store failure degrades to an empty buffer; the call proceeds without
// deep history rather than blocking or dropping. Caller holds buf.mu.
func (r *Registry) hydrateLocked(ctx context.Context, buf *buffer) {
	if buf.hydrated {
		return
	}
	buf.hydrated = true

	ctx, cancel := context.WithTimeout(ctx, r.config.StoreTimeout)
	defer cancel()

	records, err := r.store.Get(ctx, store.Query{
		TenantID:  buf.tenantID,
		CallerID:  buf.callerID,
		Types:     []store.Type{store.TypeThreadSnapshot},
		KeyPrefix: string(buf.threadID),
	})
	if err != nil {
		r.logger.Warn("snapshot hydration failed, starting thread empty",
			zap.String("thread", string(buf.threadID)),
			zap.Error(err),
		)
		return
	}

	for _, rec := range records {
		if rec.Key != string(buf.threadID) {
			continue
		}

		var snap snapshot
		if err := json.Unmarshal([]byte(rec.Value), &snap); err != nil {
			r.logger.Warn("discarding unreadable thread snapshot",
				zap.String("thread", string(buf.threadID)),
				zap.Error(err),
			)
			return
		}

		buf.turns = snap.Turns
		buf.nextSeq = snap.NextSeq
		if buf.nextSeq == 0 {
			buf.nextSeq = 1
		}
		buf.evictOver(r.config.Capacity)

		r.logger.Debug("thread hydrated from snapshot",
			zap.String("thread", string(buf.threadID)),
			zap.Int("turns", len(buf.turns)),
		)
		return
	}
}

// snapshotRecordLocked serializes a buffer into its snapshot record.
// Caller holds buf.mu.
func (r *Registry) snapshotRecordLocked(buf *buffer) (*store.Record, error) {
	payload, err := json.Marshal(snapshot{
		Turns:   buf.turns,
		NextSeq: buf.nextSeq,
	})
	if err != nil {
		return nil, fmt.Errorf("serializing snapshot: %w", err)
	}

	return &store.Record{
		TenantID: buf.tenantID,
		CallerID: buf.callerID,
		Type:     store.TypeThreadSnapshot,
		Key:      string(buf.threadID),
		Value:    string(payload),
		Scope:    store.ScopeCaller,
	}, nil
}

// enqueueSnapshotLocked hands a serialized snapshot to the async writer.
// A full queue drops the write (the next interval will try again) rather
// than blocking the append path. Caller holds buf.mu.
func (r *Registry) enqueueSnapshotLocked(buf *buffer) {
	rec, err := r.snapshotRecordLocked(buf)
	if err != nil {
		r.logger.Error("could not serialize thread snapshot", zap.Error(err))
		return
	}
	buf.sinceSnapshot = 0

	select {
	case r.saves <- rec:
	default:
		r.metrics.SnapshotWriteDropped()
		r.logger.Error("snapshot queue full, snapshot dropped",
			zap.String("thread", rec.Key),
		)
	}
}

// snapshotWriter persists queued snapshots with bounded retries. It is the
// durability half of the hot-path trade-off: appends never wait on it.
func (r *Registry) snapshotWriter() {
	defer close(r.stopped)

	for {
		select {
		case rec := <-r.saves:
			r.writeSnapshot(rec)
		case <-r.done:
			// Drain anything still queued before stopping.
			for {
				select {
				case rec := <-r.saves:
					r.writeSnapshot(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Registry) writeSnapshot(rec *store.Record) {
	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.StoreTimeout)
		defer cancel()

		_, err := r.store.Put(ctx, rec)
		return err
	}

	err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3))
	if err != nil {
		r.metrics.SnapshotWriteDropped()
		r.logger.Error("snapshot write dropped after retries",
			zap.String("thread", rec.Key),
			zap.Error(err),
		)
	}
}

// lockedBuffers bundles the buffer map with its mutex so the zero-value
// field layout in Registry stays obvious.
type lockedBuffers struct {
	sync.Mutex
	buffers map[tenant.ThreadID]*buffer
}
