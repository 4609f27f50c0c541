package api

import (
	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/thread"
)

// ErrorResponse is the uniform error body for every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ThreadAppendRequest is the body of POST /v1/thread/append.
type ThreadAppendRequest struct {
	CallerID string `json:"caller_id"`
	Role     string `json:"role"`
	Text     string `json:"text"`
}

// ThreadAppendResponse reports the thread state after an append.
type ThreadAppendResponse struct {
	ThreadID  string `json:"thread_id"`
	TurnCount int    `json:"turn_count"`

	// ConsolidationTriggered is true when this append crossed the
	// watermark and started a consolidation pass.
	ConsolidationTriggered bool `json:"consolidation_triggered"`
}

// ThreadRecentResponse is the body of GET /v1/thread/recent.
type ThreadRecentResponse struct {
	ThreadID string        `json:"thread_id"`
	Turns    []thread.Turn `json:"turns"`
}

// MemoryWriteRequest is the body of POST /v1/memory/write.
type MemoryWriteRequest struct {
	CallerID   string `json:"caller_id,omitempty"`
	Type       string `json:"type"`
	Key        string `json:"key"`
	Value      string `json:"value"`
	Scope      string `json:"scope,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

// RecordsResponse wraps a list of memory records.
type RecordsResponse struct {
	Count   int             `json:"count"`
	Records []*store.Record `json:"records"`
}

// MemorySearchRequest is the body of POST /v1/memory/search.
type MemorySearchRequest struct {
	CallerID string `json:"caller_id,omitempty"`
	Text     string `json:"text"`
	Limit    int    `json:"limit,omitempty"`
}

// TenantPurgeResponse reports what DELETE /v1/tenant removed.
type TenantPurgeResponse struct {
	RecordsPurged int64 `json:"records_purged"`
	VectorsPurged int64 `json:"vectors_purged"`
}
