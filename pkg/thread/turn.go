// Package thread maintains the rolling conversational buffer: a bounded,
// ordered, in-process message history per (tenant, caller) thread. It is the
// hot path of the engine. Appends and reads never wait on the durable
// store once a thread is hydrated.
package thread

import (
	"fmt"
	"time"
)

// Role identifies the speaker of a turn.
type Role string

const (
	// RoleCaller is the external party on the phone.
	RoleCaller Role = "caller"

	// RoleAgent is the AI agent. Synthetic summary turns produced by
	// consolidation also carry this role.
	RoleAgent Role = "agent"
)

// ParseRole validates a wire-format role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCaller:
		return RoleCaller, nil
	case RoleAgent:
		return RoleAgent, nil
	default:
		return "", fmt.Errorf("unknown role %q (want %q or %q)", s, RoleCaller, RoleAgent)
	}
}

// Turn is one utterance in a thread. Seq is a per-thread monotonic counter;
// ordering is by append sequence, never wall clock, since two appends can
// race at the same timestamp.
type Turn struct {
	Seq  uint64    `json:"seq"`
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`

	// Summary marks the synthetic turn consolidation leaves in place of
	// the slice it extracted.
	Summary bool `json:"summary,omitempty"`
}
