// Package extract defines the extraction collaborator: the step that turns
// a slice of raw conversation turns into structured memory candidates and a
// prose summary. Backends are pluggable: an LLM in production, a
// deterministic rule set for local development and tests.
package extract

import (
	"context"
	"errors"

	"github.com/dialhaven/recall/pkg/thread"
)

// Candidate is one structured fact proposed by an extractor. Type and scope
// arrive as free text and are coerced to the closed enums by the
// consolidation engine, so a creative extractor degrades instead of
// failing a job.
type Candidate struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value"`
	Scope string `json:"scope,omitempty"`
}

// Extraction is an extractor's full output for one slice of turns.
type Extraction struct {
	Candidates []Candidate `json:"facts"`
	Summary    string      `json:"summary"`
}

// ErrNoTurns indicates an extractor was called with an empty slice.
var ErrNoTurns = errors.New("no turns to extract from")

// Extractor distills durable facts from conversation turns.
type Extractor interface {
	// Extract analyzes the turns and returns candidate records plus a
	// short prose summary of what the slice covered.
	Extract(ctx context.Context, turns []thread.Turn) (*Extraction, error)

	// Close releases extractor resources.
	Close() error
}
