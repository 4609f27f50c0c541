package store

import (
	"context"

	"github.com/dialhaven/recall/pkg/tenant"
)

// Driver is the interface for durable memory backends. Every method
// validates that a tenant identifier is present and fails with
// ErrMissingTenant before touching any state. The tenant check lives at
// this boundary, not in callers.
type Driver interface {
	// Put upserts a record by its scope key. The returned record carries
	// the authoritative CreatedAt/UpdatedAt: an update preserves the
	// original CreatedAt. Last writer wins.
	Put(ctx context.Context, rec *Record) (*Record, error)

	// Get returns the live records matching the query, or an empty slice
	// when nothing matches. Records past their TTL are excluded and may
	// be garbage-collected lazily.
	Get(ctx context.Context, q Query) ([]*Record, error)

	// Search returns up to Limit records ranked by lexical relevance to
	// the query text, ties broken by recency (newest first).
	Search(ctx context.Context, q SearchQuery) ([]*Record, error)

	// PurgeTenant hard-deletes everything belonging to a tenant. This is
	// the administrative data-erasure primitive; it never runs on the
	// call hot path.
	PurgeTenant(ctx context.Context, id tenant.ID) (int64, error)

	// Close releases backend resources.
	Close() error
}
