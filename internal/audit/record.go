package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/recordhash"
)

// EntityType identifies which ledger a record belongs to.
type EntityType string

const (
	EntityProtocolVersion EntityType = "protocol_version"
	EntityDelegation      EntityType = "delegation"
)

// ParseEntityType validates a caller-supplied entity type string.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityProtocolVersion, EntityDelegation:
		return EntityType(s), nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Transition describes one entity status change awaiting an audit entry.
// The ledgers return these; ComplianceCore turns each into a Record inside
// the same transaction as the mutation.
type Transition struct {
	EntityType EntityType
	EntityID   uuid.UUID
	FromStatus string
	ToStatus   string
}

// Record is one immutable audit entry. FromStatus is empty for the entry
// written when an entity is created.
type Record struct {
	ID           uuid.UUID  `json:"id"            db:"id"`
	EntityType   EntityType `json:"entity_type"   db:"entity_type"`
	EntityID     uuid.UUID  `json:"entity_id"     db:"entity_id"`
	FromStatus   string     `json:"from_status"   db:"from_status"`
	ToStatus     string     `json:"to_status"     db:"to_status"`
	ActorID      int64      `json:"actor_id"      db:"actor_id"`
	Timestamp    time.Time  `json:"timestamp"     db:"timestamp"`
	RecordHash   string     `json:"record_hash"   db:"record_hash"`
	PreviousHash string     `json:"previous_hash" db:"previous_hash"`
}

// CanonicalFields returns the fixed hashing order for audit records:
// id, entity_type, entity_id, from_status, to_status, actor_id, timestamp.
func (r *Record) CanonicalFields() []recordhash.Field {
	return []recordhash.Field{
		recordhash.UUID("id", r.ID),
		recordhash.String("entity_type", string(r.EntityType)),
		recordhash.UUID("entity_id", r.EntityID),
		recordhash.String("from_status", r.FromStatus),
		recordhash.String("to_status", r.ToStatus),
		recordhash.Int("actor_id", r.ActorID),
		recordhash.Time("timestamp", r.Timestamp),
	}
}

// seal computes and stores the record's chained hash.
func (r *Record) seal(previousHash string) error {
	h, err := recordhash.Compute(r.CanonicalFields(), previousHash)
	if err != nil {
		return err
	}
	r.PreviousHash = previousHash
	r.RecordHash = h
	return nil
}

// verifyAgainst checks r's stored hash and its link to the predecessor hash.
func (r *Record) verifyAgainst(previousHash string) error {
	if r.PreviousHash != previousHash {
		return fmt.Errorf("audit chain broken at entry %s: previous_hash %q, want %q",
			r.ID, r.PreviousHash, previousHash)
	}
	ok, err := recordhash.Matches(r.CanonicalFields(), r.PreviousHash, r.RecordHash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("audit entry %s has invalid record_hash", r.ID)
	}
	return nil
}
