package delegations

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
)

// MemoryRepository is an in-memory, thread-safe delegationRepo implementation
// for tests and single-process development.
type MemoryRepository struct {
	mu          sync.RWMutex
	delegations map[uuid.UUID]*Delegation
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{delegations: make(map[uuid.UUID]*Delegation)}
}

// Create implements delegationRepo.
func (r *MemoryRepository) Create(_ context.Context, d *Delegation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.UpdatedAt = time.Now().UTC()
	cp := *d
	r.delegations[d.ID] = &cp
	return nil
}

// Get implements delegationRepo.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Delegation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.delegations[id]
	if !ok {
		return nil, fmt.Errorf("%w: delegation %s", errdefs.ErrNotFound, id)
	}
	cp := *d
	return &cp, nil
}

// ListByVersion implements delegationRepo.
func (r *MemoryRepository) ListByVersion(_ context.Context, protocolVersionID uuid.UUID) ([]*Delegation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Delegation
	for _, d := range r.delegations {
		if d.ProtocolVersionID == protocolVersionID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DelegationDate.After(out[j].DelegationDate) })
	return out, nil
}

// ListByUser implements delegationRepo.
func (r *MemoryRepository) ListByUser(_ context.Context, delegatedUserID int64, limit, offset int) ([]*Delegation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}

	var out []*Delegation
	for _, d := range r.delegations {
		if d.DelegatedUserID == delegatedUserID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DelegationDate.After(out[j].DelegationDate) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update implements delegationRepo.
func (r *MemoryRepository) Update(_ context.Context, d *Delegation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.delegations[d.ID]; !ok {
		return fmt.Errorf("%w: delegation %s", errdefs.ErrNotFound, d.ID)
	}
	d.UpdatedAt = time.Now().UTC()
	cp := *d
	r.delegations[d.ID] = &cp
	return nil
}
