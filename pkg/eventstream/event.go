package eventstream

import (
	"time"

	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/tenant"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRecordWritten is emitted after a memory record is persisted.
	EventTypeRecordWritten = "recall.record.written"

	// EventTypeThreadConsolidated is emitted after a consolidation pass
	// truncates a thread buffer.
	EventTypeThreadConsolidated = "recall.thread.consolidated"
)

// RecordWrittenEvent is a transport-neutral event payload for a persisted
// memory record.
type RecordWrittenEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	TenantID      tenant.ID    `json:"tenant_id"`
	Record        store.Record `json:"record"`
}

// ThreadConsolidatedEvent is a transport-neutral event payload for a
// completed consolidation pass over a thread.
type ThreadConsolidatedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	TenantID      tenant.ID       `json:"tenant_id"`
	ThreadID      tenant.ThreadID `json:"thread_id"`
	TurnsDropped  int             `json:"turns_dropped"`
	FactsWritten  int             `json:"facts_written"`
	Summary       string          `json:"summary,omitempty"`
}
