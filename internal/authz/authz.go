// Package authz defines the capability checks the compliance core delegates
// to the authorization collaborator. The core never carries ambient user
// state: every operation receives an explicit actor ID and asks whether that
// actor holds the required capability over a scope (a document master).
package authz

import (
	"context"

	"github.com/google/uuid"
)

// Capabilities checked by the compliance core.
const (
	CapPromoteVersion   = "protocol.promote"
	CapIssueDelegation  = "delegation.issue"
	CapRevokeDelegation = "delegation.revoke"
)

// Authorizer answers capability questions for an actor over a scope.
// A uuid.Nil scope grant acts as a wildcard over all scopes.
type Authorizer interface {
	HasCapability(ctx context.Context, actorID int64, capability string, scopeID uuid.UUID) (bool, error)
}
