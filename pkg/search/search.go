// Package search answers relevance queries over durable memory, using
// vector similarity when an embedder and vector store are configured and
// falling back to lexical ranking otherwise.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dialhaven/recall/pkg/embeddings"
	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/vector"
)

// Searcher resolves search queries against the durable store. The vector
// driver and embedder are optional; without them every query takes the
// lexical path.
type Searcher struct {
	store    store.Driver
	vectors  vector.Driver
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewSearcher creates a searcher. Pass nil vectors or embedder to
// disable the semantic path.
func NewSearcher(s store.Driver, vectors vector.Driver, embedder embeddings.Embedder, logger *zap.Logger) *Searcher {
	return &Searcher{
		store:    s,
		vectors:  vectors,
		embedder: embedder,
		logger:   logger,
	}
}

// Search returns records relevant to the query text, most relevant first.
// A semantic failure degrades to lexical ranking rather than failing the
// request.
func (s *Searcher) Search(ctx context.Context, q store.SearchQuery) ([]*store.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if s.vectors == nil || s.embedder == nil {
		return s.store.Search(ctx, q)
	}

	records, err := s.semantic(ctx, q)
	if err != nil {
		s.logger.Warn("semantic search failed, falling back to lexical",
			zap.String("tenant_id", string(q.TenantID)),
			zap.Error(err),
		)
		return s.store.Search(ctx, q)
	}

	return records, nil
}

// semantic embeds the query text and resolves nearest neighbors back to
// their records.
func (s *Searcher) semantic(ctx context.Context, q store.SearchQuery) ([]*store.Record, error) {
	embedding, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.vectors.Query(ctx, vector.Query{
		TenantID:  q.TenantID,
		CallerID:  q.CallerID,
		Embedding: embedding,
		TopK:      q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}

	if len(results) == 0 {
		return nil, nil
	}

	// Load the caller's visible records once and resolve hits by
	// document ID, preserving similarity order.
	candidates, err := s.store.Get(ctx, store.Query{
		TenantID: q.TenantID,
		CallerID: q.CallerID,
	})
	if err != nil {
		return nil, fmt.Errorf("loading candidate records: %w", err)
	}

	byDocID := make(map[string]*store.Record, len(candidates))
	for _, r := range candidates {
		byDocID[vector.DocumentID(r)] = r
	}

	records := make([]*store.Record, 0, len(results))
	for _, res := range results {
		if r, ok := byDocID[res.ID]; ok {
			records = append(records, r)
		}
	}

	return records, nil
}

// IndexRecords embeds records and upserts them into the vector store.
// A no-op when the semantic path is disabled.
func (s *Searcher) IndexRecords(ctx context.Context, records []*store.Record) error {
	if s.vectors == nil || s.embedder == nil || len(records) == 0 {
		return nil
	}

	docs := make([]vector.Document, 0, len(records))
	for _, r := range records {
		embedding, err := s.embedder.Embed(ctx, embeddingText(r))
		if err != nil {
			return fmt.Errorf("embedding record %s: %w", r.Key, err)
		}

		docs = append(docs, vector.Document{
			ID:        vector.DocumentID(r),
			TenantID:  r.TenantID,
			CallerID:  r.CallerID,
			Embedding: embedding,
		})
	}

	return s.vectors.Index(ctx, docs)
}

// embeddingText renders a record as the text fed to the embedder.
func embeddingText(r *store.Record) string {
	return strings.Join([]string{string(r.Type), r.Key, r.Value}, " ")
}
