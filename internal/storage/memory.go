package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryTxRunner serializes units of work with in-process keyed mutexes.
// It provides the same per-lineage ordering guarantee as the Postgres
// advisory locks, but no rollback: intended for tests and single-process
// development against the in-memory repositories.
type MemoryTxRunner struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewMemoryTxRunner creates a MemoryTxRunner.
func NewMemoryTxRunner() *MemoryTxRunner {
	return &MemoryTxRunner{locks: make(map[int64]*sync.Mutex)}
}

// InTx implements TxRunner. Lock keys are acquired in sorted order so two
// units holding overlapping key sets cannot deadlock.
func (r *MemoryTxRunner) InTx(ctx context.Context, lockKeys []int64, fn func(ctx context.Context) error) error {
	keys := append([]int64(nil), lockKeys...)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		m := r.lock(key)
		m.Lock()
		defer m.Unlock()
	}
	return fn(ctx)
}

func (r *MemoryTxRunner) lock(key int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locks[key]
	if !ok {
		m = &sync.Mutex{}
		r.locks[key] = m
	}
	return m
}
