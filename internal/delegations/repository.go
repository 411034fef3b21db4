package delegations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/storage"
)

// delegationRepo is the persistence interface consumed by Ledger.
type delegationRepo interface {
	Create(ctx context.Context, d *Delegation) error
	Get(ctx context.Context, id uuid.UUID) (*Delegation, error)
	ListByVersion(ctx context.Context, protocolVersionID uuid.UUID) ([]*Delegation, error)
	ListByUser(ctx context.Context, delegatedUserID int64, limit, offset int) ([]*Delegation, error)
	Update(ctx context.Context, d *Delegation) error
}

// Repository is the Postgres-backed implementation of delegationRepo.
// All methods run on the querier carried by ctx.
type Repository struct {
	db     *storage.DB
	logger *zap.Logger
}

// NewRepository creates a Repository.
func NewRepository(db *storage.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

const delegationColumns = `id, protocol_version_id, delegated_user_id, job_title, delegation_date,
	effective_start_date, status, signed_by, signed_at, issued_by, record_hash, previous_hash, updated_at`

// Create inserts a new delegations row.
func (r *Repository) Create(ctx context.Context, d *Delegation) error {
	const q = `
		INSERT INTO delegations
		  (id, protocol_version_id, delegated_user_id, job_title, delegation_date,
		   effective_start_date, status, signed_by, signed_at, issued_by, record_hash, previous_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING updated_at`

	err := r.db.Querier(ctx).QueryRow(ctx, q,
		d.ID, d.ProtocolVersionID, d.DelegatedUserID, d.JobTitle, d.DelegationDate,
		d.EffectiveStartDate, string(d.Status), d.SignedBy, d.SignedAt, d.IssuedBy,
		d.RecordHash, d.PreviousHash,
	).Scan(&d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: create delegation: %v", errdefs.ErrStorage, err)
	}
	return nil
}

// Get fetches a delegation by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Delegation, error) {
	q := `SELECT ` + delegationColumns + ` FROM delegations WHERE id = $1`
	return r.scan(r.db.Querier(ctx).QueryRow(ctx, q, id))
}

// ListByVersion returns all delegations on a protocol version, newest first.
func (r *Repository) ListByVersion(ctx context.Context, protocolVersionID uuid.UUID) ([]*Delegation, error) {
	q := `SELECT ` + delegationColumns + `
		FROM delegations
		WHERE protocol_version_id = $1
		ORDER BY delegation_date DESC`
	return r.list(ctx, q, protocolVersionID)
}

// ListByUser returns delegations granted to a user, newest first.
func (r *Repository) ListByUser(ctx context.Context, delegatedUserID int64, limit, offset int) ([]*Delegation, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + delegationColumns + `
		FROM delegations
		WHERE delegated_user_id = $1
		ORDER BY delegation_date DESC
		LIMIT $2 OFFSET $3`
	return r.list(ctx, q, delegatedUserID, limit, offset)
}

// Update writes a delegation's signature fields, status, and advanced hash
// lineage.
func (r *Repository) Update(ctx context.Context, d *Delegation) error {
	const q = `
		UPDATE delegations
		SET status = $1, signed_by = $2, signed_at = $3,
		    record_hash = $4, previous_hash = $5, updated_at = now()
		WHERE id = $6`

	tag, err := r.db.Querier(ctx).Exec(ctx, q,
		string(d.Status), d.SignedBy, d.SignedAt, d.RecordHash, d.PreviousHash, d.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update delegation: %v", errdefs.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: delegation %s", errdefs.ErrNotFound, d.ID)
	}
	return nil
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]*Delegation, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list delegations: %v", errdefs.ErrStorage, err)
	}
	defer rows.Close()

	var out []*Delegation
	for rows.Next() {
		d := &Delegation{}
		var status string
		if err := rows.Scan(
			&d.ID, &d.ProtocolVersionID, &d.DelegatedUserID, &d.JobTitle, &d.DelegationDate,
			&d.EffectiveStartDate, &status, &d.SignedBy, &d.SignedAt, &d.IssuedBy,
			&d.RecordHash, &d.PreviousHash, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan delegation row: %v", errdefs.ErrStorage, err)
		}
		d.Status = Status(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) scan(row pgx.Row) (*Delegation, error) {
	d := &Delegation{}
	var status string
	err := row.Scan(
		&d.ID, &d.ProtocolVersionID, &d.DelegatedUserID, &d.JobTitle, &d.DelegationDate,
		&d.EffectiveStartDate, &status, &d.SignedBy, &d.SignedAt, &d.IssuedBy,
		&d.RecordHash, &d.PreviousHash, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: delegation", errdefs.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: scan delegation: %v", errdefs.ErrStorage, err)
	}
	d.Status = Status(status)
	return d, nil
}
