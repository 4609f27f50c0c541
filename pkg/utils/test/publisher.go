package testutils

import (
	"context"
	"sync"

	"github.com/dialhaven/recall/pkg/eventstream"
)

// MockPublisher is a test publisher that records published events.
type MockPublisher struct {
	mu           sync.Mutex
	Records      []*eventstream.RecordWrittenEvent
	Consolidated []*eventstream.ThreadConsolidatedEvent
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishRecordWritten(_ context.Context, event *eventstream.RecordWrittenEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, event)
	return nil
}

func (m *MockPublisher) PublishThreadConsolidated(_ context.Context, event *eventstream.ThreadConsolidatedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Consolidated = append(m.Consolidated, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}
