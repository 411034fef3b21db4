package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/recordhash"
)

// MemoryTrail is an in-memory, thread-safe Trail implementation.
type MemoryTrail struct {
	mu     sync.RWMutex
	chains map[chainKey][]*Record
}

type chainKey struct {
	entityType EntityType
	entityID   uuid.UUID
}

// NewMemoryTrail creates an empty MemoryTrail.
func NewMemoryTrail() *MemoryTrail {
	return &MemoryTrail{chains: make(map[chainKey][]*Record)}
}

// Append implements Trail.
func (t *MemoryTrail) Append(_ context.Context, entityType EntityType, entityID uuid.UUID, fromStatus, toStatus string, actorID int64) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := chainKey{entityType, entityID}
	prev := recordhash.Sentinel
	if chain := t.chains[key]; len(chain) > 0 {
		prev = chain[len(chain)-1].RecordHash
	}

	rec := &Record{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		ActorID:    actorID,
		Timestamp:  time.Now().UTC(),
	}
	if err := rec.seal(prev); err != nil {
		return nil, err
	}

	t.chains[key] = append(t.chains[key], rec)
	return rec, nil
}

// List implements Trail.
func (t *MemoryTrail) List(_ context.Context, entityType EntityType, entityID uuid.UUID) ([]*Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	chain := t.chains[chainKey{entityType, entityID}]
	out := make([]*Record, len(chain))
	for i, rec := range chain {
		cp := *rec
		out[i] = &cp
	}
	return out, nil
}

// VerifyChain implements Trail.
func (t *MemoryTrail) VerifyChain(_ context.Context, entityType EntityType, entityID uuid.UUID) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	prev := recordhash.Sentinel
	for _, rec := range t.chains[chainKey{entityType, entityID}] {
		if err := rec.verifyAgainst(prev); err != nil {
			return err
		}
		prev = rec.RecordHash
	}
	return nil
}
