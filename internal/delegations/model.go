package delegations

import (
	"time"

	"github.com/google/uuid"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/recordhash"
)

// Status represents the lifecycle state of a delegation.
//
// The only permitted transitions are pending→accepted and pending→declined
// (by the delegatee) and accepted→revoked (by a site/trial administrator).
// Declined and revoked are terminal: re-granting requires a fresh issue.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
	StatusRevoked  Status = "revoked"
)

// Decision is the delegatee's answer when signing a pending delegation.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// Delegation is a grant of authority from a trial/site owner to a named user
// to act on a specific protocol version in a stated job-title capacity.
// Rows are retained forever for audit.
type Delegation struct {
	ID                 uuid.UUID  `json:"id"                   db:"id"`
	ProtocolVersionID  uuid.UUID  `json:"protocol_version_id"  db:"protocol_version_id"`
	DelegatedUserID    int64      `json:"delegated_user_id"    db:"delegated_user_id"`
	JobTitle           string     `json:"job_title"            db:"job_title"`
	DelegationDate     time.Time  `json:"delegation_date"      db:"delegation_date"`
	EffectiveStartDate time.Time  `json:"effective_start_date" db:"effective_start_date"`
	Status             Status     `json:"status"               db:"status"`
	SignedBy           string     `json:"signed_by,omitempty"  db:"signed_by"`
	SignedAt           *time.Time `json:"signed_at,omitempty"  db:"signed_at"`
	IssuedBy           int64      `json:"issued_by"            db:"issued_by"`
	RecordHash         string     `json:"record_hash"          db:"record_hash"`
	PreviousHash       string     `json:"previous_hash"        db:"previous_hash"`
	UpdatedAt          time.Time  `json:"updated_at"           db:"updated_at"`
}

// CanonicalFields returns the fixed hashing order for delegations:
// id, protocol_version_id, delegated_user_id, job_title, delegation_date,
// effective_start_date, status, signed_by, signed_at, issued_by.
func (d *Delegation) CanonicalFields() []recordhash.Field {
	return []recordhash.Field{
		recordhash.UUID("id", d.ID),
		recordhash.UUID("protocol_version_id", d.ProtocolVersionID),
		recordhash.Int("delegated_user_id", d.DelegatedUserID),
		recordhash.String("job_title", d.JobTitle),
		recordhash.Time("delegation_date", d.DelegationDate),
		recordhash.Time("effective_start_date", d.EffectiveStartDate),
		recordhash.String("status", string(d.Status)),
		recordhash.String("signed_by", d.SignedBy),
		recordhash.TimePtr("signed_at", d.SignedAt),
		recordhash.Int("issued_by", d.IssuedBy),
	}
}

// rehash advances the delegation's own hash lineage after a status change.
func (d *Delegation) rehash() error {
	prev := d.RecordHash
	h, err := recordhash.Compute(d.CanonicalFields(), prev)
	if err != nil {
		return err
	}
	d.PreviousHash = prev
	d.RecordHash = h
	return nil
}

// IssueRequest is the payload for granting a new delegation.
type IssueRequest struct {
	ProtocolVersionID  uuid.UUID `json:"protocol_version_id"  binding:"required"`
	DelegatedUserID    int64     `json:"delegated_user_id"    binding:"required"`
	JobTitle           string    `json:"job_title"            binding:"required"`
	EffectiveStartDate time.Time `json:"effective_start_date" binding:"required"`
	IssuedBy           int64     `json:"issued_by"`
}

// SignRequest is the payload for the delegatee's accept/decline decision.
// PrintedName is the electronic-signature name recorded as signed_by.
type SignRequest struct {
	Decision    Decision `json:"decision"     binding:"required"`
	PrintedName string   `json:"printed_name" binding:"required"`
}
