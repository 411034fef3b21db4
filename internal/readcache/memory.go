package readcache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/versions"
)

type memoryEntry struct {
	version   *versions.ProtocolVersion
	expiresAt time.Time
}

func (e *memoryEntry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// MemoryCache is a thread-safe in-process Cache. Entries expire after a
// configurable TTL.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*memoryEntry
	ttl     time.Duration
}

// NewMemoryCache creates a MemoryCache with the given entry TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[uuid.UUID]*memoryEntry),
		ttl:     ttl,
	}
}

// GetCurrent implements Cache.
func (c *MemoryCache) GetCurrent(_ context.Context, documentMasterID uuid.UUID) (*versions.ProtocolVersion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[documentMasterID]
	if !ok || e.expired() {
		return nil, false
	}
	cp := *e.version
	return &cp, true
}

// SetCurrent implements Cache.
func (c *MemoryCache) SetCurrent(_ context.Context, v *versions.ProtocolVersion) {
	cp := *v
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[v.DocumentMasterID] = &memoryEntry{
		version:   &cp,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// InvalidateCurrent implements Cache.
func (c *MemoryCache) InvalidateCurrent(_ context.Context, documentMasterID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, documentMasterID)
}

// Evict removes all expired entries and reports how many were dropped.
func (c *MemoryCache) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.expired() {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries (including expired).
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
