package nop

import (
	"context"

	"github.com/dialhaven/recall/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishRecordWritten validates input and otherwise does nothing.
func (p *Publisher) PublishRecordWritten(_ context.Context, event *eventstream.RecordWrittenEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// PublishThreadConsolidated validates input and otherwise does nothing.
func (p *Publisher) PublishThreadConsolidated(_ context.Context, event *eventstream.ThreadConsolidatedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
