// Package readcache caches the current protocol version of each document
// master. Promotion is rare and reads of the current version dominate, so
// the handlers consult the cache first and the compliance core invalidates
// the master's entry after every committed promotion.
package readcache

import (
	"context"

	"github.com/google/uuid"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/versions"
)

// Cache stores the current version per document master.
type Cache interface {
	GetCurrent(ctx context.Context, documentMasterID uuid.UUID) (*versions.ProtocolVersion, bool)
	SetCurrent(ctx context.Context, v *versions.ProtocolVersion)
	InvalidateCurrent(ctx context.Context, documentMasterID uuid.UUID)
}
