// Package vector provides interfaces and implementations for vector storage
// of memory record embeddings.
package vector

import (
	"context"
	"strings"

	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/tenant"
)

// Document represents a stored memory record embedding with its scope.
type Document struct {
	// ID uniquely identifies the document within the store. Use
	// DocumentID to derive it from a memory record.
	ID string

	// TenantID scopes the document to a tenant. Every query filters on it.
	TenantID tenant.ID

	// CallerID scopes the document to a caller. Empty means tenant-wide.
	CallerID tenant.CallerID

	// Embedding is the vector representation of the record content.
	Embedding []float32
}

// Result represents a search result with similarity score.
type Result struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Query is a scoped nearest-neighbor search. Results are always limited
// to the query's tenant; caller-scoped queries also see tenant-wide
// documents (empty caller).
type Query struct {
	TenantID  tenant.ID
	CallerID  tenant.CallerID
	Embedding []float32
	TopK      int
}

// Driver handles storage and retrieval of scoped vector embeddings.
type Driver interface {
	// Index stores documents with their embeddings, replacing any
	// existing document with the same ID.
	Index(ctx context.Context, docs []Document) error

	// Query finds the most similar documents within the query's scope.
	Query(ctx context.Context, q Query) ([]Result, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// PurgeTenant removes every document belonging to a tenant and
	// reports how many were removed.
	PurgeTenant(ctx context.Context, tenantID tenant.ID) (int64, error)

	// Close releases any resources held by the driver.
	Close() error
}

// idSep separates identity fields inside a document ID. It cannot occur
// in caller IDs (normalized to digits) or record keys in practice.
const idSep = "\x1f"

// DocumentID derives the stable document ID for a memory record, so
// re-embedding an updated record replaces its previous vector.
func DocumentID(r *store.Record) string {
	return strings.Join([]string{
		string(r.TenantID),
		string(r.CallerID),
		string(r.Type),
		r.Key,
	}, idSep)
}
