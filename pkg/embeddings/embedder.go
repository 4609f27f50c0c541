// Package embeddings defines the text embedding interface used by the
// semantic memory search path.
package embeddings

import "context"

// Embedder converts record text into vector embeddings.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
