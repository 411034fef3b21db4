package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/storage"
)

// PostgresAuthorizer reads grants from the authz_grants table, which the
// external site-administration system keeps in sync.
type PostgresAuthorizer struct {
	db *storage.DB
}

// NewPostgresAuthorizer creates a PostgresAuthorizer backed by db.
func NewPostgresAuthorizer(db *storage.DB) *PostgresAuthorizer {
	return &PostgresAuthorizer{db: db}
}

// HasCapability implements Authorizer. A row with scope_id = the nil UUID is
// a wildcard grant over all scopes.
func (a *PostgresAuthorizer) HasCapability(ctx context.Context, actorID int64, capability string, scopeID uuid.UUID) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM authz_grants
			WHERE actor_id = $1 AND capability = $2 AND scope_id IN ($3, $4)
		)`

	var ok bool
	err := a.db.Querier(ctx).QueryRow(ctx, q, actorID, capability, scopeID, uuid.Nil).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("%w: check capability: %v", errdefs.ErrStorage, err)
	}
	return ok, nil
}

// Grant inserts a grant row; used by the seeder and admin tooling.
func (a *PostgresAuthorizer) Grant(ctx context.Context, actorID int64, capability string, scopeID uuid.UUID) error {
	const q = `
		INSERT INTO authz_grants (actor_id, capability, scope_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`

	if _, err := a.db.Querier(ctx).Exec(ctx, q, actorID, capability, scopeID); err != nil {
		return fmt.Errorf("%w: insert grant: %v", errdefs.ErrStorage, err)
	}
	return nil
}
