// Package storage provides the transactional seam between the compliance
// ledgers and PostgreSQL.
//
// Repositories read their querier from the request context: inside a TxRunner
// transaction they see the pgx.Tx, outside they fall back to the pool. This
// keeps every ledger mutation of one logical operation inside a single
// transaction without threading transaction handles through every signature.
package storage

import (
	"context"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations shared by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner executes fn inside one atomic unit of work, serialized against
// other units holding any of the same lock keys. On error the unit is rolled
// back in full; no partial writes survive.
type TxRunner interface {
	InTx(ctx context.Context, lockKeys []int64, fn func(ctx context.Context) error) error
}

// LockKey derives a stable 64-bit advisory lock key from an entity ID.
// All mutations of the same lineage must use the same key.
func LockKey(id uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(id[:]) //nolint:errcheck
	return int64(h.Sum64())
}

type txKey struct{}

// withTx returns a context carrying the given transaction.
func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// txFrom extracts the transaction from ctx, if any.
func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}
