// Package handler exposes the compliance engine over HTTP. Handlers bind and
// validate request payloads, resolve the acting user from the session token,
// and translate the engine's error taxonomy to HTTP statuses; all domain
// rules live below in the compliance core and the ledgers.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
)

// writeError maps a domain error onto an HTTP response. Unrecognized errors
// become 500s with a generic body so internals never leak to callers.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, errdefs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errdefs.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errdefs.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, errdefs.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent modification, retry the request"})
	case errors.Is(err, errdefs.ErrTransactionTimeout):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "operation timed out, retry the request"})
	default:
		logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
