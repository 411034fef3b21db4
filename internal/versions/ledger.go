// Package versions owns the protocol version set of each document master and
// enforces the single-current invariant: promoting a version supersedes the
// previous current version inside the same unit of work, so at most one
// version per master is ever current.
package versions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/audit"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/recordhash"
)

// Ledger contains the version lifecycle rules. Mutating methods expect to run
// inside a transaction serialized per document master; ComplianceCore owns
// that boundary.
type Ledger struct {
	repo   versionRepo
	logger *zap.Logger
}

// NewLedger creates a Ledger.
func NewLedger(repo versionRepo, logger *zap.Logger) *Ledger {
	return &Ledger{repo: repo, logger: logger}
}

// RegisterDocument creates a new DocumentMaster.
func (l *Ledger) RegisterDocument(ctx context.Context, req *RegisterDocumentRequest) (*DocumentMaster, error) {
	if req.DisplayName == "" {
		return nil, fmt.Errorf("display_name is required")
	}

	m := &DocumentMaster{
		ID:          uuid.New(),
		TrialID:     req.TrialID,
		DisplayName: req.DisplayName,
	}
	if err := l.repo.CreateMaster(ctx, m); err != nil {
		return nil, err
	}

	l.logger.Info("document master registered",
		zap.String("id", m.ID.String()),
		zap.String("display_name", m.DisplayName),
	)
	return m, nil
}

// RegisterUpload records a newly uploaded revision in status uploaded. Its
// previous_hash chains from the master's most recent version, or from the
// sentinel when this is the first revision.
func (l *Ledger) RegisterUpload(ctx context.Context, req *RegisterUploadRequest) (*ProtocolVersion, []audit.Transition, error) {
	if _, err := l.repo.GetMaster(ctx, req.DocumentMasterID); err != nil {
		return nil, nil, err
	}

	prev := recordhash.Sentinel
	latest, err := l.repo.GetLatest(ctx, req.DocumentMasterID)
	switch {
	case err == nil:
		prev = latest.RecordHash
	case !isNotFound(err):
		return nil, nil, err
	}

	v := &ProtocolVersion{
		ID:               uuid.New(),
		DocumentMasterID: req.DocumentMasterID,
		VersionNumber:    req.VersionNumber,
		Status:           StatusUploaded,
		UploadedBy:       req.UploadedBy,
		UploadedAt:       time.Now().UTC(),
		FileReference:    req.FileReference,
	}
	hash, err := recordhash.Compute(v.CanonicalFields(), prev)
	if err != nil {
		return nil, nil, err
	}
	v.PreviousHash = prev
	v.RecordHash = hash

	if err := l.repo.CreateVersion(ctx, v); err != nil {
		return nil, nil, err
	}

	l.logger.Info("protocol version uploaded",
		zap.String("id", v.ID.String()),
		zap.String("document_master_id", v.DocumentMasterID.String()),
		zap.String("version_number", v.VersionNumber),
	)

	transitions := []audit.Transition{{
		EntityType: audit.EntityProtocolVersion,
		EntityID:   v.ID,
		FromStatus: "",
		ToStatus:   string(StatusUploaded),
	}}
	return v, transitions, nil
}

// Promote makes the target version current, superseding the master's previous
// current version in the same unit of work. Calling Promote on a version that
// is already current is a no-op and reports no transitions, so retries never
// produce duplicate audit entries. Promoting a superseded version fails: a
// new revision must be uploaded instead.
func (l *Ledger) Promote(ctx context.Context, versionID uuid.UUID) (*ProtocolVersion, []audit.Transition, error) {
	v, err := l.repo.GetVersion(ctx, versionID)
	if err != nil {
		return nil, nil, err
	}

	switch v.Status {
	case StatusCurrent:
		return v, nil, nil
	case StatusUploaded:
		// promotable
	default:
		return nil, nil, fmt.Errorf("%w: cannot promote version %s from status %q",
			errdefs.ErrInvalidTransition, v.ID, v.Status)
	}

	var transitions []audit.Transition

	cur, err := l.repo.GetCurrent(ctx, v.DocumentMasterID)
	switch {
	case err == nil:
		cur.Status = StatusSuperseded
		if err := cur.rehash(); err != nil {
			return nil, nil, err
		}
		if err := l.repo.UpdateVersion(ctx, cur); err != nil {
			return nil, nil, err
		}
		transitions = append(transitions, audit.Transition{
			EntityType: audit.EntityProtocolVersion,
			EntityID:   cur.ID,
			FromStatus: string(StatusCurrent),
			ToStatus:   string(StatusSuperseded),
		})
	case !isNotFound(err):
		return nil, nil, err
	}

	v.Status = StatusCurrent
	if err := v.rehash(); err != nil {
		return nil, nil, err
	}
	if err := l.repo.UpdateVersion(ctx, v); err != nil {
		return nil, nil, err
	}
	transitions = append(transitions, audit.Transition{
		EntityType: audit.EntityProtocolVersion,
		EntityID:   v.ID,
		FromStatus: string(StatusUploaded),
		ToStatus:   string(StatusCurrent),
	})

	l.logger.Info("protocol version promoted",
		zap.String("id", v.ID.String()),
		zap.String("document_master_id", v.DocumentMasterID.String()),
	)
	return v, transitions, nil
}

// Get returns a version by ID.
func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (*ProtocolVersion, error) {
	return l.repo.GetVersion(ctx, id)
}

// VersionExists checks that a protocol version exists. Satisfies the
// delegations.VersionChecker interface.
func (l *Ledger) VersionExists(ctx context.Context, id uuid.UUID) error {
	_, err := l.repo.GetVersion(ctx, id)
	return err
}

// GetMaster returns a document master by ID.
func (l *Ledger) GetMaster(ctx context.Context, id uuid.UUID) (*DocumentMaster, error) {
	return l.repo.GetMaster(ctx, id)
}

// Current returns the master's current version, or ErrNotFound when none has
// been promoted yet.
func (l *Ledger) Current(ctx context.Context, documentMasterID uuid.UUID) (*ProtocolVersion, error) {
	return l.repo.GetCurrent(ctx, documentMasterID)
}

// List returns all versions of a master, oldest first.
func (l *Ledger) List(ctx context.Context, documentMasterID uuid.UUID) ([]*ProtocolVersion, error) {
	return l.repo.ListVersions(ctx, documentMasterID)
}

// ListMasters returns document masters for a trial.
func (l *Ledger) ListMasters(ctx context.Context, trialID uuid.UUID, limit, offset int) ([]*DocumentMaster, error) {
	return l.repo.ListMasters(ctx, trialID, limit, offset)
}

func isNotFound(err error) bool {
	return errors.Is(err, errdefs.ErrNotFound)
}
