package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
)

// DB wraps a pgx connection pool with the per-lineage transaction discipline
// the ledgers require.
type DB struct {
	pool      *pgxpool.Pool
	txTimeout time.Duration
	logger    *zap.Logger
}

// NewDB creates a DB. txTimeout bounds every InTx unit of work; zero means
// a 10 second default.
func NewDB(pool *pgxpool.Pool, txTimeout time.Duration, logger *zap.Logger) *DB {
	if txTimeout == 0 {
		txTimeout = 10 * time.Second
	}
	return &DB{pool: pool, txTimeout: txTimeout, logger: logger}
}

// Pool exposes the underlying pool for health checks and shutdown.
func (db *DB) Pool() *pgxpool.Pool { return db.pool }

// Querier returns the active transaction from ctx, or the pool when called
// outside a transaction (plain reads).
func (db *DB) Querier(ctx context.Context) Querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.pool
}

// InTx implements TxRunner. It opens a transaction, takes a transaction-scoped
// advisory lock per key to serialize writers on the same lineage, runs fn with
// the transaction injected into the context, and commits. Every failure rolls
// the whole unit back.
func (db *DB) InTx(ctx context.Context, lockKeys []int64, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, db.txTimeout)
	defer cancel()

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return MapError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, key := range lockKeys {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", key); err != nil {
			return MapError(fmt.Errorf("acquire advisory lock: %w", err))
		}
	}

	if err := fn(withTx(ctx, tx)); err != nil {
		return MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return MapError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// MapError translates driver-level failures into the errdefs taxonomy.
// Errors already belonging to the taxonomy pass through unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		errdefs.ErrNotFound,
		errdefs.ErrInvalidTransition,
		errdefs.ErrUnauthorized,
		errdefs.ErrConcurrentModification,
		errdefs.ErrEncoding,
		errdefs.ErrTransactionTimeout,
		errdefs.ErrStorage,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", errdefs.ErrTransactionTimeout, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", errdefs.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", errdefs.ErrConcurrentModification, err)
		case "55P03", "57014": // lock_not_available, query_canceled
			return fmt.Errorf("%w: %v", errdefs.ErrTransactionTimeout, err)
		}
	}
	return fmt.Errorf("%w: %v", errdefs.ErrStorage, err)
}
