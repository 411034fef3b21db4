package authz

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryAuthorizer is an in-memory grant table for tests and development.
type MemoryAuthorizer struct {
	mu     sync.RWMutex
	grants map[grantKey]bool
}

type grantKey struct {
	actorID    int64
	capability string
	scopeID    uuid.UUID
}

// NewMemoryAuthorizer creates an empty MemoryAuthorizer.
func NewMemoryAuthorizer() *MemoryAuthorizer {
	return &MemoryAuthorizer{grants: make(map[grantKey]bool)}
}

// Grant records a capability for an actor over a scope. Use uuid.Nil as the
// scope for a wildcard grant.
func (a *MemoryAuthorizer) Grant(actorID int64, capability string, scopeID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.grants[grantKey{actorID, capability, scopeID}] = true
}

// HasCapability implements Authorizer.
func (a *MemoryAuthorizer) HasCapability(_ context.Context, actorID int64, capability string, scopeID uuid.UUID) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.grants[grantKey{actorID, capability, scopeID}] {
		return true, nil
	}
	return a.grants[grantKey{actorID, capability, uuid.Nil}], nil
}
