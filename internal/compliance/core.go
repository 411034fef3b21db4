// Package compliance binds the version and delegation ledgers, the audit
// trail, and the authorization collaborator under one transaction per public
// operation.
//
// Every operation follows the same shape: check the actor's capability, run
// the ledger mutation and its audit appends inside one atomic unit of work
// serialized per lineage, then fire the after-commit hooks (cache
// invalidation, webhooks, notification). On any failure the whole unit rolls
// back and no partial audit entry survives.
package compliance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/audit"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/authz"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/delegations"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/storage"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/versions"
)

// EventDispatcher fans audit transitions out to webhook subscribers.
// *webhooks.Service satisfies this interface.
type EventDispatcher interface {
	Dispatch(ctx context.Context, eventType string, payload map[string]string)
}

// CurrentCacheInvalidator drops the cached current version of a master after
// a promotion commits. *readcache.Cache implementations satisfy this.
type CurrentCacheInvalidator interface {
	InvalidateCurrent(ctx context.Context, documentMasterID uuid.UUID)
}

// Notifier delivers transactional notifications. *notify senders satisfy it.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Core is the orchestrator external callers invoke.
type Core struct {
	versions    *versions.Ledger
	delegations *delegations.Ledger
	trail       audit.Trail
	authorizer  authz.Authorizer
	tx          storage.TxRunner

	dispatcher      EventDispatcher // nil = no webhook dispatch
	cache           CurrentCacheInvalidator
	notifier        Notifier
	notifyRecipient string

	logger *zap.Logger
}

// NewCore creates a Core. The dispatcher, cache, and notifier hooks are
// optional and configured via setters.
func NewCore(v *versions.Ledger, d *delegations.Ledger, trail audit.Trail, az authz.Authorizer, tx storage.TxRunner, logger *zap.Logger) *Core {
	return &Core{
		versions:    v,
		delegations: d,
		trail:       trail,
		authorizer:  az,
		tx:          tx,
		logger:      logger,
	}
}

// SetEventDispatcher configures webhook fan-out of committed transitions.
func (c *Core) SetEventDispatcher(d EventDispatcher) { c.dispatcher = d }

// SetCurrentCache configures current-version cache invalidation.
func (c *Core) SetCurrentCache(cache CurrentCacheInvalidator) { c.cache = cache }

// SetNotifier configures email notification of issued delegations.
func (c *Core) SetNotifier(n Notifier, recipient string) {
	c.notifier = n
	c.notifyRecipient = recipient
}

// RegisterDocument creates a new DocumentMaster.
func (c *Core) RegisterDocument(ctx context.Context, req *versions.RegisterDocumentRequest) (*versions.DocumentMaster, error) {
	var m *versions.DocumentMaster
	err := c.tx.InTx(ctx, nil, func(txCtx context.Context) error {
		var err error
		m, err = c.versions.RegisterDocument(txCtx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterUpload records a newly uploaded protocol revision and its audit
// entry in one transaction.
func (c *Core) RegisterUpload(ctx context.Context, req *versions.RegisterUploadRequest) (*versions.ProtocolVersion, error) {
	var (
		v           *versions.ProtocolVersion
		transitions []audit.Transition
	)
	err := c.tx.InTx(ctx, []int64{storage.LockKey(req.DocumentMasterID)}, func(txCtx context.Context) error {
		var err error
		v, transitions, err = c.versions.RegisterUpload(txCtx, req)
		if err != nil {
			return err
		}
		return c.appendAudit(txCtx, transitions, req.UploadedBy)
	})
	if err != nil {
		return nil, err
	}

	c.dispatch(ctx, transitions, req.UploadedBy)
	return v, nil
}

// PromoteVersion makes the target version current, superseding the previous
// current version of the same master atomically. Promoting the version that
// is already current is idempotent and writes no duplicate audit entries.
func (c *Core) PromoteVersion(ctx context.Context, versionID uuid.UUID, actorID int64) (*versions.ProtocolVersion, error) {
	target, err := c.versions.Get(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if err := c.requireCapability(ctx, actorID, authz.CapPromoteVersion, target.DocumentMasterID); err != nil {
		return nil, err
	}

	var (
		promoted    *versions.ProtocolVersion
		transitions []audit.Transition
	)
	err = c.tx.InTx(ctx, []int64{storage.LockKey(target.DocumentMasterID)}, func(txCtx context.Context) error {
		var err error
		promoted, transitions, err = c.versions.Promote(txCtx, versionID)
		if err != nil {
			return err
		}
		return c.appendAudit(txCtx, transitions, actorID)
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil && len(transitions) > 0 {
		c.cache.InvalidateCurrent(ctx, promoted.DocumentMasterID)
	}
	c.dispatch(ctx, transitions, actorID)
	return promoted, nil
}

// IssueDelegation grants a delegation in status pending.
func (c *Core) IssueDelegation(ctx context.Context, req *delegations.IssueRequest) (*delegations.Delegation, error) {
	target, err := c.versions.Get(ctx, req.ProtocolVersionID)
	if err != nil {
		return nil, err
	}
	if err := c.requireCapability(ctx, req.IssuedBy, authz.CapIssueDelegation, target.DocumentMasterID); err != nil {
		return nil, err
	}

	var (
		d           *delegations.Delegation
		transitions []audit.Transition
	)
	err = c.tx.InTx(ctx, []int64{storage.LockKey(req.ProtocolVersionID)}, func(txCtx context.Context) error {
		var err error
		d, transitions, err = c.delegations.Issue(txCtx, req)
		if err != nil {
			return err
		}
		return c.appendAudit(txCtx, transitions, req.IssuedBy)
	})
	if err != nil {
		return nil, err
	}

	c.dispatch(ctx, transitions, req.IssuedBy)
	c.notifyIssued(ctx, d)
	return d, nil
}

// SignDelegation records the delegatee's accept/decline decision.
func (c *Core) SignDelegation(ctx context.Context, delegationID uuid.UUID, actorID int64, req *delegations.SignRequest) (*delegations.Delegation, error) {
	var (
		d           *delegations.Delegation
		transitions []audit.Transition
	)
	err := c.tx.InTx(ctx, []int64{storage.LockKey(delegationID)}, func(txCtx context.Context) error {
		var err error
		d, transitions, err = c.delegations.Sign(txCtx, delegationID, actorID, req)
		if err != nil {
			return err
		}
		return c.appendAudit(txCtx, transitions, actorID)
	})
	if err != nil {
		return nil, err
	}

	c.dispatch(ctx, transitions, actorID)
	return d, nil
}

// RevokeDelegation withdraws an accepted delegation. Only an actor holding
// the revoke capability over the delegation's document master may revoke.
func (c *Core) RevokeDelegation(ctx context.Context, delegationID uuid.UUID, actorID int64) (*delegations.Delegation, error) {
	d, err := c.delegations.Get(ctx, delegationID)
	if err != nil {
		return nil, err
	}
	target, err := c.versions.Get(ctx, d.ProtocolVersionID)
	if err != nil {
		return nil, err
	}
	if err := c.requireCapability(ctx, actorID, authz.CapRevokeDelegation, target.DocumentMasterID); err != nil {
		return nil, err
	}

	var (
		revoked     *delegations.Delegation
		transitions []audit.Transition
	)
	err = c.tx.InTx(ctx, []int64{storage.LockKey(delegationID)}, func(txCtx context.Context) error {
		var err error
		revoked, transitions, err = c.delegations.Revoke(txCtx, delegationID)
		if err != nil {
			return err
		}
		return c.appendAudit(txCtx, transitions, actorID)
	})
	if err != nil {
		return nil, err
	}

	c.dispatch(ctx, transitions, actorID)
	return revoked, nil
}

// VerifyChain walks one entity's audit chain and reports whether every hash
// and predecessor link is intact.
func (c *Core) VerifyChain(ctx context.Context, entityType audit.EntityType, entityID uuid.UUID) error {
	return c.trail.VerifyChain(ctx, entityType, entityID)
}

// AuditLog returns one entity's audit entries in chain order.
func (c *Core) AuditLog(ctx context.Context, entityType audit.EntityType, entityID uuid.UUID) ([]*audit.Record, error) {
	return c.trail.List(ctx, entityType, entityID)
}

// Versions exposes the version ledger's read surface.
func (c *Core) Versions() *versions.Ledger { return c.versions }

// Delegations exposes the delegation ledger's read surface.
func (c *Core) Delegations() *delegations.Ledger { return c.delegations }

func (c *Core) requireCapability(ctx context.Context, actorID int64, capability string, scopeID uuid.UUID) error {
	ok, err := c.authorizer.HasCapability(ctx, actorID, capability, scopeID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: actor %d lacks %s over %s", errdefs.ErrUnauthorized, actorID, capability, scopeID)
	}
	return nil
}

func (c *Core) appendAudit(ctx context.Context, transitions []audit.Transition, actorID int64) error {
	for _, tr := range transitions {
		if _, err := c.trail.Append(ctx, tr.EntityType, tr.EntityID, tr.FromStatus, tr.ToStatus, actorID); err != nil {
			return err
		}
	}
	return nil
}

// dispatch fans committed transitions out to webhook subscribers (non-fatal).
func (c *Core) dispatch(ctx context.Context, transitions []audit.Transition, actorID int64) {
	if c.dispatcher == nil {
		return
	}
	for _, tr := range transitions {
		c.dispatcher.Dispatch(ctx, eventType(tr), map[string]string{
			"entity_type": string(tr.EntityType),
			"entity_id":   tr.EntityID.String(),
			"from_status": tr.FromStatus,
			"to_status":   tr.ToStatus,
			"actor_id":    fmt.Sprintf("%d", actorID),
		})
	}
}

// notifyIssued emails the configured compliance contact (non-fatal — the
// delegation is already committed).
func (c *Core) notifyIssued(ctx context.Context, d *delegations.Delegation) {
	if c.notifier == nil || c.notifyRecipient == "" {
		return
	}
	subject := "Delegation awaiting signature"
	body := fmt.Sprintf(
		"A delegation (%s) has been issued to user %d as %q and is awaiting their signature.",
		d.ID, d.DelegatedUserID, d.JobTitle,
	)
	if err := c.notifier.Send(ctx, c.notifyRecipient, subject, body); err != nil {
		c.logger.Warn("delegation notification failed (non-fatal)", zap.Error(err))
	}
}

// eventType maps an audit transition to its webhook event name.
func eventType(tr audit.Transition) string {
	return string(tr.EntityType) + "." + eventSuffix(tr)
}

func eventSuffix(tr audit.Transition) string {
	if tr.FromStatus == "" {
		switch tr.EntityType {
		case audit.EntityDelegation:
			return "issued"
		default:
			return "uploaded"
		}
	}
	switch tr.ToStatus {
	case string(versions.StatusCurrent):
		return "promoted"
	default:
		return tr.ToStatus
	}
}
