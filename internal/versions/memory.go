package versions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
)

// MemoryRepository is an in-memory, thread-safe versionRepo implementation
// for tests and single-process development.
type MemoryRepository struct {
	mu       sync.RWMutex
	masters  map[uuid.UUID]*DocumentMaster
	versions map[uuid.UUID]*ProtocolVersion
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		masters:  make(map[uuid.UUID]*DocumentMaster),
		versions: make(map[uuid.UUID]*ProtocolVersion),
	}
}

// CreateMaster implements versionRepo.
func (r *MemoryRepository) CreateMaster(_ context.Context, m *DocumentMaster) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.CreatedAt = time.Now().UTC()
	cp := *m
	r.masters[m.ID] = &cp
	return nil
}

// GetMaster implements versionRepo.
func (r *MemoryRepository) GetMaster(_ context.Context, id uuid.UUID) (*DocumentMaster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.masters[id]
	if !ok {
		return nil, fmt.Errorf("%w: document master %s", errdefs.ErrNotFound, id)
	}
	cp := *m
	return &cp, nil
}

// ListMasters implements versionRepo.
func (r *MemoryRepository) ListMasters(_ context.Context, trialID uuid.UUID, limit, offset int) ([]*DocumentMaster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}

	var out []*DocumentMaster
	for _, m := range r.masters {
		if m.TrialID == trialID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateVersion implements versionRepo.
func (r *MemoryRepository) CreateVersion(_ context.Context, v *ProtocolVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v.UpdatedAt = time.Now().UTC()
	cp := *v
	r.versions[v.ID] = &cp
	return nil
}

// GetVersion implements versionRepo.
func (r *MemoryRepository) GetVersion(_ context.Context, id uuid.UUID) (*ProtocolVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.versions[id]
	if !ok {
		return nil, fmt.Errorf("%w: protocol version %s", errdefs.ErrNotFound, id)
	}
	cp := *v
	return &cp, nil
}

// GetCurrent implements versionRepo.
func (r *MemoryRepository) GetCurrent(_ context.Context, documentMasterID uuid.UUID) (*ProtocolVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.versions {
		if v.DocumentMasterID == documentMasterID && v.Status == StatusCurrent {
			cp := *v
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: no current version for master %s", errdefs.ErrNotFound, documentMasterID)
}

// GetLatest implements versionRepo.
func (r *MemoryRepository) GetLatest(_ context.Context, documentMasterID uuid.UUID) (*ProtocolVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *ProtocolVersion
	for _, v := range r.versions {
		if v.DocumentMasterID != documentMasterID {
			continue
		}
		if latest == nil || v.UploadedAt.After(latest.UploadedAt) {
			latest = v
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: no versions for master %s", errdefs.ErrNotFound, documentMasterID)
	}
	cp := *latest
	return &cp, nil
}

// ListVersions implements versionRepo.
func (r *MemoryRepository) ListVersions(_ context.Context, documentMasterID uuid.UUID) ([]*ProtocolVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*ProtocolVersion
	for _, v := range r.versions {
		if v.DocumentMasterID == documentMasterID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

// UpdateVersion implements versionRepo.
func (r *MemoryRepository) UpdateVersion(_ context.Context, v *ProtocolVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.versions[v.ID]; !ok {
		return fmt.Errorf("%w: protocol version %s", errdefs.ErrNotFound, v.ID)
	}
	v.UpdatedAt = time.Now().UTC()
	cp := *v
	r.versions[v.ID] = &cp
	return nil
}
