// Package tenant provides the multi-tenant identity model for the recall
// engine: tenant and caller identifiers, deterministic thread derivation,
// and bearer-token verification.
//
// Every other package takes a verified ID as a mandatory first-class
// parameter. Nothing in this codebase infers a tenant from caller input.
package tenant

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ID identifies a paying customer whose callers' data must never mix with
// another tenant's. It is opaque to the engine.
type ID string

// CallerID is an external party's phone number normalized to a canonical
// digit string. It is meaningful only within a tenant.
type CallerID string

// ThreadID identifies the ongoing conversation context for one
// (tenant, caller) pair. It is stable across calls, so the same caller
// reaching the same tenant always lands on the same thread.
type ThreadID string

// ErrEmptyCaller is returned when a caller identifier normalizes to nothing.
var ErrEmptyCaller = errors.New("caller id has no digits")

// NormalizeCaller reduces a raw phone number to its canonical form: an
// optional leading "+" followed by digits only. "+1 (555) 123-4567" and
// "15551234567" stay distinct; formatting characters do not.
func NormalizeCaller(raw string) (CallerID, error) {
	var b strings.Builder

	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}

	normalized := b.String()
	if normalized == "" || normalized == "+" {
		return "", ErrEmptyCaller
	}

	return CallerID(normalized), nil
}

// NewThreadID derives the thread for a (tenant, caller) pair. The derivation
// is a hash over both identifiers with a separator byte that cannot appear
// in either, so a thread can never be shared across tenants.
func NewThreadID(tenantID ID, callerID CallerID) ThreadID {
	h := sha256.New()
	h.Write([]byte(tenantID))
	h.Write([]byte{0x1f})
	h.Write([]byte(callerID))

	return ThreadID(hex.EncodeToString(h.Sum(nil)))
}
