package eventstream

import "context"

// Publisher publishes memory lifecycle events to an event stream backend.
type Publisher interface {
	PublishRecordWritten(ctx context.Context, event *RecordWrittenEvent) error
	PublishThreadConsolidated(ctx context.Context, event *ThreadConsolidatedEvent) error
	Close() error
}
