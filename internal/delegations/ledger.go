// Package delegations owns delegation-of-authority records and enforces
// their state machine: a delegation is issued pending, signed (accepted or
// declined) only by its delegatee, and revoked only from accepted by a
// site/trial administrator.
package delegations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/audit"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/recordhash"
)

// VersionChecker verifies that the protocol version a delegation targets
// exists. *versions.Ledger satisfies this interface.
type VersionChecker interface {
	VersionExists(ctx context.Context, id uuid.UUID) error
}

// Ledger contains the delegation lifecycle rules. Mutating methods expect to
// run inside a transaction serialized per delegation; ComplianceCore owns
// that boundary.
type Ledger struct {
	repo     delegationRepo
	versions VersionChecker // nil = skip target existence check
	logger   *zap.Logger
}

// NewLedger creates a Ledger.
func NewLedger(repo delegationRepo, versions VersionChecker, logger *zap.Logger) *Ledger {
	return &Ledger{repo: repo, versions: versions, logger: logger}
}

// Issue grants a new delegation in status pending. Each delegation starts its
// own hash lineage at the sentinel.
func (l *Ledger) Issue(ctx context.Context, req *IssueRequest) (*Delegation, []audit.Transition, error) {
	if req.JobTitle == "" {
		return nil, nil, fmt.Errorf("job_title is required")
	}
	if l.versions != nil {
		if err := l.versions.VersionExists(ctx, req.ProtocolVersionID); err != nil {
			return nil, nil, err
		}
	}

	d := &Delegation{
		ID:                 uuid.New(),
		ProtocolVersionID:  req.ProtocolVersionID,
		DelegatedUserID:    req.DelegatedUserID,
		JobTitle:           req.JobTitle,
		DelegationDate:     time.Now().UTC(),
		EffectiveStartDate: req.EffectiveStartDate.UTC(),
		Status:             StatusPending,
		IssuedBy:           req.IssuedBy,
	}
	hash, err := recordhash.Compute(d.CanonicalFields(), recordhash.Sentinel)
	if err != nil {
		return nil, nil, err
	}
	d.PreviousHash = recordhash.Sentinel
	d.RecordHash = hash

	if err := l.repo.Create(ctx, d); err != nil {
		return nil, nil, err
	}

	l.logger.Info("delegation issued",
		zap.String("id", d.ID.String()),
		zap.Int64("delegated_user_id", d.DelegatedUserID),
		zap.String("job_title", d.JobTitle),
	)

	transitions := []audit.Transition{{
		EntityType: audit.EntityDelegation,
		EntityID:   d.ID,
		FromStatus: "",
		ToStatus:   string(StatusPending),
	}}
	return d, transitions, nil
}

// Sign records the delegatee's accept or decline decision on a pending
// delegation. Only the delegated user may sign; any status other than
// pending rejects the attempt.
func (l *Ledger) Sign(ctx context.Context, id uuid.UUID, actingUserID int64, req *SignRequest) (*Delegation, []audit.Transition, error) {
	d, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if actingUserID != d.DelegatedUserID {
		return nil, nil, fmt.Errorf("%w: user %d is not the delegatee of %s",
			errdefs.ErrUnauthorized, actingUserID, d.ID)
	}
	if d.Status != StatusPending {
		return nil, nil, fmt.Errorf("%w: cannot sign delegation %s in status %q",
			errdefs.ErrInvalidTransition, d.ID, d.Status)
	}

	var to Status
	switch req.Decision {
	case DecisionAccept:
		to = StatusAccepted
	case DecisionDecline:
		to = StatusDeclined
	default:
		return nil, nil, fmt.Errorf("%w: unknown decision %q", errdefs.ErrInvalidTransition, req.Decision)
	}

	now := time.Now().UTC()
	d.Status = to
	d.SignedBy = req.PrintedName
	d.SignedAt = &now
	if err := d.rehash(); err != nil {
		return nil, nil, err
	}
	if err := l.repo.Update(ctx, d); err != nil {
		return nil, nil, err
	}

	l.logger.Info("delegation signed",
		zap.String("id", d.ID.String()),
		zap.String("decision", string(req.Decision)),
		zap.String("signed_by", d.SignedBy),
	)

	transitions := []audit.Transition{{
		EntityType: audit.EntityDelegation,
		EntityID:   d.ID,
		FromStatus: string(StatusPending),
		ToStatus:   string(to),
	}}
	return d, transitions, nil
}

// Revoke withdraws an accepted delegation. The administrator capability check
// belongs to ComplianceCore; the ledger enforces only the state machine.
func (l *Ledger) Revoke(ctx context.Context, id uuid.UUID) (*Delegation, []audit.Transition, error) {
	d, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d.Status != StatusAccepted {
		return nil, nil, fmt.Errorf("%w: cannot revoke delegation %s in status %q",
			errdefs.ErrInvalidTransition, d.ID, d.Status)
	}

	d.Status = StatusRevoked
	if err := d.rehash(); err != nil {
		return nil, nil, err
	}
	if err := l.repo.Update(ctx, d); err != nil {
		return nil, nil, err
	}

	l.logger.Info("delegation revoked", zap.String("id", d.ID.String()))

	transitions := []audit.Transition{{
		EntityType: audit.EntityDelegation,
		EntityID:   d.ID,
		FromStatus: string(StatusAccepted),
		ToStatus:   string(StatusRevoked),
	}}
	return d, transitions, nil
}

// Get returns a delegation by ID.
func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (*Delegation, error) {
	return l.repo.Get(ctx, id)
}

// ListByVersion returns all delegations on a protocol version.
func (l *Ledger) ListByVersion(ctx context.Context, protocolVersionID uuid.UUID) ([]*Delegation, error) {
	return l.repo.ListByVersion(ctx, protocolVersionID)
}

// ListByUser returns delegations granted to a user.
func (l *Ledger) ListByUser(ctx context.Context, delegatedUserID int64, limit, offset int) ([]*Delegation, error) {
	return l.repo.ListByUser(ctx, delegatedUserID, limit, offset)
}
