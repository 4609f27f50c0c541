// Package store defines the durable memory store: the system of record for
// extracted facts and thread snapshots, scoped by tenant and caller.
package store

import (
	"time"

	"github.com/dialhaven/recall/pkg/tenant"
)

// Type is the closed category of a memory record.
type Type string

const (
	TypePerson     Type = "person"
	TypePreference Type = "preference"
	TypeCommitment Type = "commitment"
	TypeFact       Type = "fact"
	TypeRule       Type = "rule"
	TypeMoment     Type = "moment"

	// TypeThreadSnapshot is reserved for rolling-buffer snapshots. It is
	// never produced by extraction and is excluded from reads unless
	// requested explicitly.
	TypeThreadSnapshot Type = "thread_snapshot"
)

// factTypes are the categories an extractor may emit.
var factTypes = map[Type]struct{}{
	TypePerson:     {},
	TypePreference: {},
	TypeCommitment: {},
	TypeFact:       {},
	TypeRule:       {},
	TypeMoment:     {},
}

// ParseType maps a free-text category to a Type. Unknown categories are
// coerced to TypeFact so a misbehaving extractor degrades instead of
// failing consolidation. The reserved snapshot type is not reachable here.
func ParseType(s string) Type {
	t := Type(s)
	if _, ok := factTypes[t]; ok {
		return t
	}
	return TypeFact
}

// Scope says whether a record belongs to one caller or to the whole tenant.
type Scope string

const (
	// ScopeCaller records are private to one (tenant, caller) pair.
	ScopeCaller Scope = "caller"

	// ScopeTenant records are shared across all of a tenant's callers,
	// e.g. business-wide settings.
	ScopeTenant Scope = "tenant"
)

// ParseScope maps a string to a Scope, defaulting to caller scope.
func ParseScope(s string) Scope {
	if Scope(s) == ScopeTenant {
		return ScopeTenant
	}
	return ScopeCaller
}

// Record is a durable fact. Caller-scoped records are unique on
// (tenant, caller, type, key); tenant-scoped records carry an empty CallerID
// and are unique on (tenant, type, key). A write to an existing key updates
// the value and preserves CreatedAt.
type Record struct {
	TenantID  tenant.ID       `json:"tenant_id"`
	CallerID  tenant.CallerID `json:"caller_id,omitempty"`
	Type      Type            `json:"type"`
	Key       string          `json:"key"`
	Value     string          `json:"value"`
	Scope     Scope           `json:"scope"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// ExpiresAt is the optional TTL bound. A nil value persists forever.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the record's TTL has passed at the given instant.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// Validate enforces the fail-secure invariants before any backend work:
// a record without a tenant is a programming error, and a caller-scoped
// record must name its caller.
func (r *Record) Validate() error {
	if r.TenantID == "" {
		return ErrMissingTenant
	}
	if r.Key == "" {
		return ErrMissingKey
	}
	if r.Scope == ScopeCaller && r.CallerID == "" {
		return ErrMissingCaller
	}
	if r.Scope == ScopeTenant && r.CallerID != "" {
		return ErrScopeMismatch
	}
	return nil
}

// Query selects records by tenant first, then by the optional caller, type,
// and key-prefix filters. An empty Types list matches every category except
// the reserved snapshot type.
type Query struct {
	TenantID  tenant.ID
	CallerID  tenant.CallerID
	Types     []Type
	KeyPrefix string
}

// Validate rejects unscoped queries before they reach a backend.
func (q Query) Validate() error {
	if q.TenantID == "" {
		return ErrMissingTenant
	}
	return nil
}

// Matches reports whether a live (non-expired) record satisfies the query
// filters. Tenant mismatch is always a non-match; a query with a caller
// also sees the tenant-scoped shared records.
func (q Query) Matches(r *Record) bool {
	if r.TenantID != q.TenantID {
		return false
	}

	if r.CallerID != "" && r.CallerID != q.CallerID {
		return false
	}

	if len(q.Types) == 0 {
		if r.Type == TypeThreadSnapshot {
			return false
		}
	} else {
		found := false
		for _, t := range q.Types {
			if r.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if q.KeyPrefix != "" && !hasPrefix(r.Key, q.KeyPrefix) {
		return false
	}

	return true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// SearchQuery ranks a tenant/caller's records against free text.
type SearchQuery struct {
	TenantID tenant.ID
	CallerID tenant.CallerID
	Text     string
	Limit    int
}

// Validate rejects unscoped searches.
func (q SearchQuery) Validate() error {
	if q.TenantID == "" {
		return ErrMissingTenant
	}
	return nil
}
