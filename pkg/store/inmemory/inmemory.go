// Package inmemory provides a map-backed store driver. It is the default
// for local development and the workhorse of the test suites; it holds no
// durable state across restarts.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/tenant"
)

// recordKey is the composite upsert key. Tenant-scoped records use an empty
// caller component.
type recordKey struct {
	tenantID tenant.ID
	callerID tenant.CallerID
	recType  store.Type
	key      string
}

// Driver implements store.Driver using an in-memory map.
type Driver struct {
	// mu guards records.
	mu sync.RWMutex

	// records maps the composite scope key to the stored record.
	records map[recordKey]*store.Record
}

// NewDriver creates a new in-memory store driver.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[recordKey]*store.Record),
	}
}

// Put upserts a record by its scope key. An existing record keeps its
// CreatedAt; the value, scope, and TTL are overwritten.
func (d *Driver) Put(_ context.Context, rec *store.Record) (*store.Record, error) {
	if rec == nil {
		return nil, store.ErrMissingKey
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().UTC()
	k := recordKey{
		tenantID: rec.TenantID,
		callerID: rec.CallerID,
		recType:  rec.Type,
		key:      rec.Key,
	}

	stored := *rec
	stored.UpdatedAt = now
	stored.CreatedAt = now

	if existing, ok := d.records[k]; ok && !existing.Expired(now) {
		stored.CreatedAt = existing.CreatedAt
	}

	d.records[k] = &stored

	result := stored
	return &result, nil
}

// Get returns live records matching the query. Expired records encountered
// along the way are garbage-collected.
func (d *Driver) Get(_ context.Context, q store.Query) ([]*store.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().UTC()
	results := make([]*store.Record, 0)

	for k, rec := range d.records {
		if rec.Expired(now) {
			delete(d.records, k)
			continue
		}
		if q.Matches(rec) {
			copied := *rec
			results = append(results, &copied)
		}
	}

	return results, nil
}

// Search ranks the tenant/caller's live records against the query text.
func (d *Driver) Search(ctx context.Context, q store.SearchQuery) ([]*store.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	candidates, err := d.Get(ctx, store.Query{
		TenantID: q.TenantID,
		CallerID: q.CallerID,
	})
	if err != nil {
		return nil, err
	}

	return store.Rank(candidates, q.Text, q.Limit), nil
}

// PurgeTenant removes every record belonging to the tenant.
func (d *Driver) PurgeTenant(_ context.Context, id tenant.ID) (int64, error) {
	if id == "" {
		return 0, store.ErrMissingTenant
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var purged int64
	for k := range d.records {
		if k.tenantID == id {
			delete(d.records, k)
			purged++
		}
	}

	return purged, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

var _ store.Driver = (*Driver)(nil)
