package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Document is a protocol document master.
type Document struct {
	ID          string    `json:"id"`
	TrialID     string    `json:"trial_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Version is one uploaded revision of a document.
type Version struct {
	ID               string    `json:"id"`
	DocumentMasterID string    `json:"document_master_id"`
	VersionNumber    string    `json:"version_number"`
	Status           string    `json:"status"`
	UploadedBy       int64     `json:"uploaded_by"`
	UploadedAt       time.Time `json:"uploaded_at"`
	FileReference    string    `json:"file_reference"`
	RecordHash       string    `json:"record_hash"`
	PreviousHash     string    `json:"previous_hash"`
}

// Delegation is a grant of authority over a protocol version.
type Delegation struct {
	ID                 string     `json:"id"`
	ProtocolVersionID  string     `json:"protocol_version_id"`
	DelegatedUserID    int64      `json:"delegated_user_id"`
	JobTitle           string     `json:"job_title"`
	DelegationDate     time.Time  `json:"delegation_date"`
	EffectiveStartDate time.Time  `json:"effective_start_date"`
	Status             string     `json:"status"`
	SignedBy           string     `json:"signed_by,omitempty"`
	SignedAt           *time.Time `json:"signed_at,omitempty"`
	IssuedBy           int64      `json:"issued_by"`
	RecordHash         string     `json:"record_hash"`
	PreviousHash       string     `json:"previous_hash"`
}

// AuditRecord is one entry of an entity's audit chain.
type AuditRecord struct {
	ID           string    `json:"id"`
	EntityType   string    `json:"entity_type"`
	EntityID     string    `json:"entity_id"`
	FromStatus   string    `json:"from_status"`
	ToStatus     string    `json:"to_status"`
	ActorID      int64     `json:"actor_id"`
	Timestamp    time.Time `json:"timestamp"`
	RecordHash   string    `json:"record_hash"`
	PreviousHash string    `json:"previous_hash"`
}

// RegisterDocumentRequest is the payload for RegisterDocument.
type RegisterDocumentRequest struct {
	TrialID     string `json:"trial_id"`
	DisplayName string `json:"display_name"`
}

// RegisterUploadRequest is the payload for RegisterUpload. The uploader is
// always the token's actor; there is no uploader field.
type RegisterUploadRequest struct {
	DocumentMasterID string `json:"document_master_id"`
	VersionNumber    string `json:"version_number"`
	FileReference    string `json:"file_reference"`
}

// IssueDelegationRequest is the payload for IssueDelegation.
type IssueDelegationRequest struct {
	ProtocolVersionID  string    `json:"protocol_version_id"`
	DelegatedUserID    int64     `json:"delegated_user_id"`
	JobTitle           string    `json:"job_title"`
	EffectiveStartDate time.Time `json:"effective_start_date"`
}

// RegisterDocument creates a new protocol document master.
func (c *Client) RegisterDocument(ctx context.Context, req *RegisterDocumentRequest) (*Document, error) {
	var doc Document
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/documents", req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns the document masters of one trial.
func (c *Client) ListDocuments(ctx context.Context, trialID string) ([]Document, error) {
	var resp struct {
		Documents []Document `json:"documents"`
	}
	path := "/api/v1/documents?trial_id=" + url.QueryEscape(trialID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// GetDocument fetches one document master.
func (c *Client) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	var doc Document
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/documents/"+documentID, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListVersions returns all versions of a document, newest upload first.
func (c *Client) ListVersions(ctx context.Context, documentID string) ([]Version, error) {
	var resp struct {
		Versions []Version `json:"versions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/documents/"+documentID+"/versions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Versions, nil
}

// CurrentVersion returns the document's current version.
func (c *Client) CurrentVersion(ctx context.Context, documentID string) (*Version, error) {
	var v Version
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/documents/"+documentID+"/current", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// RegisterUpload records a newly uploaded protocol revision.
func (c *Client) RegisterUpload(ctx context.Context, req *RegisterUploadRequest) (*Version, error) {
	var v Version
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/versions", req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetVersion fetches one protocol version.
func (c *Client) GetVersion(ctx context.Context, versionID string) (*Version, error) {
	var v Version
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/versions/"+versionID, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// PromoteVersion makes a version current, superseding the previous current
// version of the same document.
func (c *Client) PromoteVersion(ctx context.Context, versionID string) (*Version, error) {
	var v Version
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/versions/"+versionID+"/promote", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// IssueDelegation grants a delegation of authority in status pending.
func (c *Client) IssueDelegation(ctx context.Context, req *IssueDelegationRequest) (*Delegation, error) {
	var d Delegation
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/delegations", req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDelegation fetches one delegation.
func (c *Client) GetDelegation(ctx context.Context, delegationID string) (*Delegation, error) {
	var d Delegation
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/delegations/"+delegationID, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SignDelegation records the acting user's accept or decline decision.
// decision must be "accept" or "decline".
func (c *Client) SignDelegation(ctx context.Context, delegationID, decision, printedName string) (*Delegation, error) {
	var d Delegation
	body := map[string]string{"decision": decision, "printed_name": printedName}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/delegations/"+delegationID+"/sign", body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// RevokeDelegation withdraws an accepted delegation.
func (c *Client) RevokeDelegation(ctx context.Context, delegationID string) (*Delegation, error) {
	var d Delegation
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/delegations/"+delegationID+"/revoke", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// MyDelegations returns delegations granted to the acting user.
func (c *Client) MyDelegations(ctx context.Context) ([]Delegation, error) {
	var resp struct {
		Delegations []Delegation `json:"delegations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/users/me/delegations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Delegations, nil
}

// AuditLog returns one entity's audit entries in chain order. entityType is
// "protocol_version" or "delegation".
func (c *Client) AuditLog(ctx context.Context, entityType, entityID string) ([]AuditRecord, error) {
	var resp struct {
		Records []AuditRecord `json:"records"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/audit/"+entityType+"/"+entityID, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// VerifyChain walks an entity's audit chain server-side. It returns nil when
// the chain is intact and an *APIError-free descriptive error when not.
func (c *Client) VerifyChain(ctx context.Context, entityType, entityID string) error {
	var resp struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/audit/"+entityType+"/"+entityID+"/verify", nil, &resp); err != nil {
		return err
	}
	if !resp.Valid {
		return &ChainIntegrityError{EntityType: entityType, EntityID: entityID, Detail: resp.Error}
	}
	return nil
}

// ChainIntegrityError reports a failed server-side chain verification.
type ChainIntegrityError struct {
	EntityType string
	EntityID   string
	Detail     string
}

func (e *ChainIntegrityError) Error() string {
	return "audit chain for " + e.EntityType + " " + e.EntityID + " failed verification: " + e.Detail
}
