package versions

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

// versionRepo is the persistence interface consumed by Ledger.
// Defined here to keep the ledger testable without a real DB.
type versionRepo interface {
	CreateMaster(ctx context.Context, m *DocumentMaster) error
	GetMaster(ctx context.Context, id uuid.UUID) (*DocumentMaster, error)
	ListMasters(ctx context.Context, trialID uuid.UUID, limit, offset int) ([]*DocumentMaster, error)
	CreateVersion(ctx context.Context, v *ProtocolVersion) error
	GetVersion(ctx context.Context, id uuid.UUID) (*ProtocolVersion, error)
	GetCurrent(ctx context.Context, documentMasterID uuid.UUID) (*ProtocolVersion, error)
	GetLatest(ctx context.Context, documentMasterID uuid.UUID) (*ProtocolVersion, error)
	ListVersions(ctx context.Context, documentMasterID uuid.UUID) ([]*ProtocolVersion, error)
	UpdateVersion(ctx context.Context, v *ProtocolVersion) error
}

// Repository is the Postgres-backed implementation of versionRepo.
// All methods run on the querier carried by ctx, so they join any
// surrounding transaction.
type Repository struct {
	db     *storage.DB
	logger *zap.Logger
}

// NewRepository creates a Repository.
func NewRepository(db *storage.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

const versionColumns = `id, document_master_id, version_number, status, uploaded_by, uploaded_at,
	file_reference, record_hash, previous_hash, updated_at`

// CreateMaster inserts a new document_masters row.
func (r *Repository) CreateMaster(ctx context.Context, m *DocumentMaster) error {
	const q = `
		INSERT INTO document_masters (id, trial_id, display_name)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.Querier(ctx).QueryRow(ctx, q, m.ID, m.TrialID, m.DisplayName).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: create document master: %v", errdefs.ErrStorage, err)
	}
	return nil
}

// GetMaster fetches a document master by ID.
func (r *Repository) GetMaster(ctx context.Context, id uuid.UUID) (*DocumentMaster, error) {
	const q = `
		SELECT id, trial_id, display_name, created_at
		FROM document_masters
		WHERE id = $1`

	m := &DocumentMaster{}
	err := r.db.Querier(ctx).QueryRow(ctx, q, id).Scan(&m.ID, &m.TrialID, &m.DisplayName, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: document master %s", errdefs.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: get document master: %v", errdefs.ErrStorage, err)
	}
	return m, nil
}

// ListMasters returns document masters for a trial, newest first.
func (r *Repository) ListMasters(ctx context.Context, trialID uuid.UUID, limit, offset int) ([]*DocumentMaster, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT id, trial_id, display_name, created_at
		FROM document_masters
		WHERE trial_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Querier(ctx).Query(ctx, q, trialID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list document masters: %v", errdefs.ErrStorage, err)
	}
	defer rows.Close()

	var out []*DocumentMaster
	for rows.Next() {
		m := &DocumentMaster{}
		if err := rows.Scan(&m.ID, &m.TrialID, &m.DisplayName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan document master: %v", errdefs.ErrStorage, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateVersion inserts a new protocol_versions row.
func (r *Repository) CreateVersion(ctx context.Context, v *ProtocolVersion) error {
	const q = `
		INSERT INTO protocol_versions
		  (id, document_master_id, version_number, status, uploaded_by, uploaded_at,
		   file_reference, record_hash, previous_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING updated_at`

	err := r.db.Querier(ctx).QueryRow(ctx, q,
		v.ID, v.DocumentMasterID, v.VersionNumber, string(v.Status), v.UploadedBy,
		v.UploadedAt, v.FileReference, v.RecordHash, v.PreviousHash,
	).Scan(&v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: create protocol version: %v", errdefs.ErrStorage, err)
	}
	return nil
}

// GetVersion fetches a protocol version by ID.
func (r *Repository) GetVersion(ctx context.Context, id uuid.UUID) (*ProtocolVersion, error) {
	q := `SELECT ` + versionColumns + ` FROM protocol_versions WHERE id = $1`
	return r.scan(r.db.Querier(ctx).QueryRow(ctx, q, id))
}

// GetCurrent fetches the single current version of a document master, or
// ErrNotFound if the master has no current version yet.
func (r *Repository) GetCurrent(ctx context.Context, documentMasterID uuid.UUID) (*ProtocolVersion, error) {
	q := `SELECT ` + versionColumns + `
		FROM protocol_versions
		WHERE document_master_id = $1 AND status = 'current'`
	return r.scan(r.db.Querier(ctx).QueryRow(ctx, q, documentMasterID))
}

// GetLatest fetches the most recently uploaded version of a document master.
// New uploads chain their previous_hash from this row's record_hash.
func (r *Repository) GetLatest(ctx context.Context, documentMasterID uuid.UUID) (*ProtocolVersion, error) {
	q := `SELECT ` + versionColumns + `
		FROM protocol_versions
		WHERE document_master_id = $1
		ORDER BY uploaded_at DESC, id DESC
		LIMIT 1`
	return r.scan(r.db.Querier(ctx).QueryRow(ctx, q, documentMasterID))
}

// ListVersions returns all versions of a document master, oldest first.
func (r *Repository) ListVersions(ctx context.Context, documentMasterID uuid.UUID) ([]*ProtocolVersion, error) {
	q := `SELECT ` + versionColumns + `
		FROM protocol_versions
		WHERE document_master_id = $1
		ORDER BY uploaded_at ASC, id ASC`

	rows, err := r.db.Querier(ctx).Query(ctx, q, documentMasterID)
	if err != nil {
		return nil, fmt.Errorf("%w: list protocol versions: %v", errdefs.ErrStorage, err)
	}
	defer rows.Close()

	var out []*ProtocolVersion
	for rows.Next() {
		v, scanErr := r.scanRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateVersion writes a version's status and advanced hash lineage.
func (r *Repository) UpdateVersion(ctx context.Context, v *ProtocolVersion) error {
	const q = `
		UPDATE protocol_versions
		SET status = $1, record_hash = $2, previous_hash = $3, updated_at = now()
		WHERE id = $4`

	tag, err := r.db.Querier(ctx).Exec(ctx, q, string(v.Status), v.RecordHash, v.PreviousHash, v.ID)
	if err != nil {
		return fmt.Errorf("%w: update protocol version: %v", errdefs.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: protocol version %s", errdefs.ErrNotFound, v.ID)
	}
	return nil
}

func (r *Repository) scan(row pgx.Row) (*ProtocolVersion, error) {
	v := &ProtocolVersion{}
	var status string
	err := row.Scan(
		&v.ID, &v.DocumentMasterID, &v.VersionNumber, &status, &v.UploadedBy,
		&v.UploadedAt, &v.FileReference, &v.RecordHash, &v.PreviousHash, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: protocol version", errdefs.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: scan protocol version: %v", errdefs.ErrStorage, err)
	}
	v.Status = Status(status)
	return v, nil
}

func (r *Repository) scanRow(rows pgx.Rows) (*ProtocolVersion, error) {
	v := &ProtocolVersion{}
	var status string
	err := rows.Scan(
		&v.ID, &v.DocumentMasterID, &v.VersionNumber, &status, &v.UploadedBy,
		&v.UploadedAt, &v.FileReference, &v.RecordHash, &v.PreviousHash, &v.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: scan protocol version row: %v", errdefs.ErrStorage, err)
	}
	v.Status = Status(status)
	return v, nil
}
