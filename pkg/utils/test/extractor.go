package testutils

import (
	"context"
	"fmt"

	"github.com/dialhaven/recall/pkg/extract"
	"github.com/dialhaven/recall/pkg/thread"
)

// MockExtractor is a test extractor that records calls and returns
// configurable results.
type MockExtractor struct {
	// Result is returned by Extract on success.
	Result *extract.Extraction

	// FailCount makes the first N Extract calls fail, then succeed.
	FailCount int

	// Calls accumulates the turn slices passed to Extract.
	Calls [][]thread.Turn
}

// NewMockExtractor creates a mock extractor returning an empty extraction.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		Result: &extract.Extraction{},
	}
}

func (m *MockExtractor) Extract(_ context.Context, turns []thread.Turn) (*extract.Extraction, error) {
	m.Calls = append(m.Calls, turns)

	if m.FailCount > 0 {
		m.FailCount--
		return nil, fmt.Errorf("mock extraction failure")
	}

	return m.Result, nil
}

func (m *MockExtractor) Close() error {
	return nil
}
