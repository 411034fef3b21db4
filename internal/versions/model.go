package versions

import (
	"time"

	"github.com/google/uuid"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/recordhash"
)

// Status represents the lifecycle state of a protocol version.
// Versions only ever move uploaded → current → superseded; superseded is
// terminal and a superseded version can never be re-promoted.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusCurrent    Status = "current"
	StatusSuperseded Status = "superseded"
)

// DocumentMaster is the logical identity of a protocol document across all
// its revisions. Masters are created once and never deleted; superseded
// versions accumulate beneath them.
type DocumentMaster struct {
	ID          uuid.UUID `json:"id"           db:"id"`
	TrialID     uuid.UUID `json:"trial_id"     db:"trial_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
}

// ProtocolVersion is one uploaded revision of a DocumentMaster. At most one
// version per master holds StatusCurrent at any instant.
type ProtocolVersion struct {
	ID               uuid.UUID `json:"id"                 db:"id"`
	DocumentMasterID uuid.UUID `json:"document_master_id" db:"document_master_id"`
	VersionNumber    string    `json:"version_number"     db:"version_number"`
	Status           Status    `json:"status"             db:"status"`
	UploadedBy       int64     `json:"uploaded_by"        db:"uploaded_by"`
	UploadedAt       time.Time `json:"uploaded_at"        db:"uploaded_at"`
	FileReference    string    `json:"file_reference"     db:"file_reference"`
	RecordHash       string    `json:"record_hash"        db:"record_hash"`
	PreviousHash     string    `json:"previous_hash"      db:"previous_hash"`
	UpdatedAt        time.Time `json:"updated_at"         db:"updated_at"`
}

// CanonicalFields returns the fixed hashing order for protocol versions:
// id, document_master_id, version_number, status, uploaded_by, uploaded_at,
// file_reference. Recomputing over these fields plus previous_hash must
// reproduce record_hash exactly.
func (v *ProtocolVersion) CanonicalFields() []recordhash.Field {
	return []recordhash.Field{
		recordhash.UUID("id", v.ID),
		recordhash.UUID("document_master_id", v.DocumentMasterID),
		recordhash.String("version_number", v.VersionNumber),
		recordhash.String("status", string(v.Status)),
		recordhash.Int("uploaded_by", v.UploadedBy),
		recordhash.Time("uploaded_at", v.UploadedAt),
		recordhash.String("file_reference", v.FileReference),
	}
}

// rehash advances the version's own hash lineage after a status change.
func (v *ProtocolVersion) rehash() error {
	prev := v.RecordHash
	h, err := recordhash.Compute(v.CanonicalFields(), prev)
	if err != nil {
		return err
	}
	v.PreviousHash = prev
	v.RecordHash = h
	return nil
}

// RegisterDocumentRequest is the payload for creating a DocumentMaster.
type RegisterDocumentRequest struct {
	TrialID     uuid.UUID `json:"trial_id"     binding:"required"`
	DisplayName string    `json:"display_name" binding:"required"`
}

// RegisterUploadRequest is the payload for registering an uploaded revision.
// FileReference is an opaque pointer into external blob storage; the core
// never reads file bytes.
type RegisterUploadRequest struct {
	DocumentMasterID uuid.UUID `json:"document_master_id" binding:"required"`
	VersionNumber    string    `json:"version_number"     binding:"required"`
	UploadedBy       int64     `json:"uploaded_by"`
	FileReference    string    `json:"file_reference"     binding:"required"`
}
