package thread

import (
	"sync"
	"time"

	"github.com/dialhaven/recall/pkg/tenant"
)

// buffer is the in-process history of one thread. All access goes through
// its own mutex so operations on one thread serialize while distinct
// threads proceed in parallel.
type buffer struct {
	mu sync.Mutex

	threadID tenant.ThreadID
	tenantID tenant.ID
	callerID tenant.CallerID

	turns   []Turn
	nextSeq uint64

	// hydrated flips once the snapshot load has been attempted, success
	// or not; a store outage must not be retried on every turn.
	hydrated bool

	// sinceSnapshot counts appends since the last snapshot was enqueued.
	sinceSnapshot int
}

func newBuffer(threadID tenant.ThreadID, tenantID tenant.ID, callerID tenant.CallerID) *buffer {
	return &buffer{
		threadID: threadID,
		tenantID: tenantID,
		callerID: callerID,
		nextSeq:  1,
	}
}

// append adds a turn at the tail and returns it. Caller holds b.mu.
func (b *buffer) append(role Role, text string, at timeProvider) Turn {
	turn := Turn{
		Seq:  b.nextSeq,
		Role: role,
		Text: text,
		At:   at(),
	}

	b.nextSeq++
	b.sinceSnapshot++
	b.turns = append(b.turns, turn)

	return turn
}

// evictOver drops oldest turns until len <= capacity. Caller holds b.mu.
// Returns how many were evicted.
func (b *buffer) evictOver(capacity int) int {
	if capacity <= 0 || len(b.turns) <= capacity {
		return 0
	}

	evicted := len(b.turns) - capacity
	b.turns = append([]Turn(nil), b.turns[evicted:]...)

	return evicted
}

// recent copies the last limit turns, most-recent-last. Caller holds b.mu.
func (b *buffer) recent(limit int) []Turn {
	n := len(b.turns)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Turn, n)
	copy(out, b.turns[len(b.turns)-n:])

	return out
}

// peekOldest copies the first k turns. Caller holds b.mu.
func (b *buffer) peekOldest(k int) []Turn {
	if k > len(b.turns) {
		k = len(b.turns)
	}

	out := make([]Turn, k)
	copy(out, b.turns[:k])

	return out
}

// discardThrough removes every turn with Seq <= seq, optionally putting a
// replacement summary turn at the head. The replacement reuses the boundary
// seq so ordering against the surviving turns holds. Caller holds b.mu.
func (b *buffer) discardThrough(seq uint64, replacement *Turn) int {
	idx := 0
	for idx < len(b.turns) && b.turns[idx].Seq <= seq {
		idx++
	}

	if idx == 0 {
		return len(b.turns)
	}

	remaining := b.turns[idx:]
	turns := make([]Turn, 0, len(remaining)+1)

	if replacement != nil {
		r := *replacement
		r.Seq = seq
		r.Summary = true
		turns = append(turns, r)
	}

	turns = append(turns, remaining...)
	b.turns = turns

	return len(b.turns)
}

// timeProvider supplies timestamps so tests can freeze the clock.
type timeProvider func() time.Time
