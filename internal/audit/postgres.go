package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/recordhash"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/storage"
)

// PostgresTrail persists the audit chain in the audit_records table.
// It implements Trail. Append runs on whatever querier the context carries,
// so it joins the surrounding ComplianceCore transaction; the caller is
// responsible for serializing writers on the same entity.
type PostgresTrail struct {
	db     *storage.DB
	logger *zap.Logger
}

// NewPostgresTrail creates a PostgresTrail backed by db.
func NewPostgresTrail(db *storage.DB, logger *zap.Logger) *PostgresTrail {
	return &PostgresTrail{db: db, logger: logger}
}

// Append implements Trail.
func (t *PostgresTrail) Append(ctx context.Context, entityType EntityType, entityID uuid.UUID, fromStatus, toStatus string, actorID int64) (*Record, error) {
	q := t.db.Querier(ctx)

	prev := recordhash.Sentinel
	err := q.QueryRow(ctx,
		`SELECT record_hash FROM audit_records
		 WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY seq DESC LIMIT 1`,
		string(entityType), entityID,
	).Scan(&prev)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: read audit tail: %v", errdefs.ErrStorage, err)
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

	if _, err := q.Exec(ctx,
		`INSERT INTO audit_records
		   (id, entity_type, entity_id, from_status, to_status, actor_id, timestamp, record_hash, previous_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, string(rec.EntityType), rec.EntityID, rec.FromStatus, rec.ToStatus,
		rec.ActorID, rec.Timestamp, rec.RecordHash, rec.PreviousHash,
	); err != nil {
		return nil, fmt.Errorf("%w: insert audit record: %v", errdefs.ErrStorage, err)
	}

	t.logger.Debug("audit record appended",
		zap.String("entity_type", string(rec.EntityType)),
		zap.String("entity_id", rec.EntityID.String()),
		zap.String("to_status", rec.ToStatus),
	)
	return rec, nil
}

// List implements Trail.
func (t *PostgresTrail) List(ctx context.Context, entityType EntityType, entityID uuid.UUID) ([]*Record, error) {
	rows, err := t.db.Querier(ctx).Query(ctx,
		`SELECT id, entity_type, entity_id, from_status, to_status, actor_id, timestamp, record_hash, previous_hash
		 FROM audit_records
		 WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY seq ASC`,
		string(entityType), entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query audit records: %v", errdefs.ErrStorage, err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec := &Record{}
		var et string
		if err := rows.Scan(
			&rec.ID, &et, &rec.EntityID, &rec.FromStatus, &rec.ToStatus,
			&rec.ActorID, &rec.Timestamp, &rec.RecordHash, &rec.PreviousHash,
		); err != nil {
			return nil, fmt.Errorf("%w: scan audit record: %v", errdefs.ErrStorage, err)
		}
		rec.EntityType = EntityType(et)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// VerifyChain implements Trail. O(n) in the entity's chain length.
func (t *PostgresTrail) VerifyChain(ctx context.Context, entityType EntityType, entityID uuid.UUID) error {
	records, err := t.List(ctx, entityType, entityID)
	if err != nil {
		return err
	}

	prev := recordhash.Sentinel
	for _, rec := range records {
		if err := rec.verifyAgainst(prev); err != nil {
			return err
		}
		prev = rec.RecordHash
	}
	return nil
}
