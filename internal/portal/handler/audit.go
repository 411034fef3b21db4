package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/audit"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/compliance"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/identity"
)

// AuditHandler exposes read-only HTTP endpoints for the audit trail.
type AuditHandler struct {
	core   *compliance.Core
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(core *compliance.Core, tokens *identity.TokenIssuer, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{core: core, tokens: tokens, logger: logger}
}

// Register mounts the audit routes on the given router group.
func (h *AuditHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/audit", identity.RequireToken(h.tokens))
	{
		a.GET("/:entityType/:id", h.List)
		a.GET("/:entityType/:id/verify", h.Verify)
	}
}

func (h *AuditHandler) chainParams(c *gin.Context) (audit.EntityType, bool) {
	et, err := audit.ParseEntityType(c.Param("entityType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return et, true
}

// List handles GET /audit/:entityType/:id — one entity's entries in chain
// order.
func (h *AuditHandler) List(c *gin.Context) {
	et, ok := h.chainParams(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	records, err := h.core.AuditLog(c.Request.Context(), et, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if records == nil {
		records = []*audit.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// Verify handles GET /audit/:entityType/:id/verify — walks the chain and
// reports integrity. Tampering is reported in the body, not as an HTTP error.
func (h *AuditHandler) Verify(c *gin.Context) {
	et, ok := h.chainParams(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.core.VerifyChain(c.Request.Context(), et, id); err != nil {
		h.logger.Warn("audit chain integrity check failed",
			zap.String("entity_type", string(et)),
			zap.String("entity_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}
