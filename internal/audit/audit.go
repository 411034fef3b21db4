// Package audit implements the append-only, hash-chained audit trail for
// compliance records.
//
// Every state transition of a ProtocolVersion or Delegation produces exactly
// one Record. Records for one entity form their own chain: the first entry
// links to the recordhash.Sentinel and every later entry links to the hash of
// its predecessor, so tampering with any stored entry is detectable by
// VerifyChain.
//
// Two implementations of Trail are provided:
//   - MemoryTrail: in-process, for testing and development.
//   - PostgresTrail: durable, for production use.
package audit

import (
	"context"

	"github.com/google/uuid"
)

// Trail is the interface for the append-only audit log.
type Trail interface {
	// Append records one state transition for an entity, chained to the
	// entity's previous audit entry. It participates in any transaction
	// present on ctx.
	Append(ctx context.Context, entityType EntityType, entityID uuid.UUID, fromStatus, toStatus string, actorID int64) (*Record, error)

	// List returns an entity's audit entries in chain order.
	List(ctx context.Context, entityType EntityType, entityID uuid.UUID) ([]*Record, error)

	// VerifyChain walks one entity's chain, recomputing every hash and
	// checking every predecessor link. Returns nil if the chain is intact.
	VerifyChain(ctx context.Context, entityType EntityType, entityID uuid.UUID) error
}
