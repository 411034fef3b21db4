package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/compliance"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/delegations"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/identity"
)

// DelegationHandler handles HTTP requests for delegations of authority.
type DelegationHandler struct {
	core   *compliance.Core
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

// NewDelegationHandler creates a DelegationHandler.
func NewDelegationHandler(core *compliance.Core, tokens *identity.TokenIssuer, logger *zap.Logger) *DelegationHandler {
	return &DelegationHandler{core: core, tokens: tokens, logger: logger}
}

// Register registers all delegation routes on the router group.
func (h *DelegationHandler) Register(rg *gin.RouterGroup) {
	auth := identity.RequireToken(h.tokens)

	dels := rg.Group("/delegations", auth)
	{
		dels.POST("", h.Issue)
		dels.GET("/:id", h.Get)
		dels.POST("/:id/sign", h.Sign)
		dels.POST("/:id/revoke", h.Revoke)
	}

	rg.GET("/versions/:id/delegations", auth, h.ListByVersion)
	rg.GET("/users/me/delegations", auth, h.ListMine)
}

// Issue handles POST /delegations. The issuer is always the acting user from
// the session token.
func (h *DelegationHandler) Issue(c *gin.Context) {
	var req delegations.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.IssuedBy = identity.ActorFromCtx(c)

	d, err := h.core.IssueDelegation(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	RecordDelegationIssued()
	c.JSON(http.StatusCreated, d)
}

// Get handles GET /delegations/:id.
func (h *DelegationHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	d, err := h.core.Delegations().Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Sign handles POST /delegations/:id/sign. Only the delegatee may sign; the
// core rejects anyone else by comparing against the token's actor.
func (h *DelegationHandler) Sign(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req delegations.SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.core.SignDelegation(c.Request.Context(), id, identity.ActorFromCtx(c), &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Revoke handles POST /delegations/:id/revoke.
func (h *DelegationHandler) Revoke(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	d, err := h.core.RevokeDelegation(c.Request.Context(), id, identity.ActorFromCtx(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ListByVersion handles GET /versions/:id/delegations.
func (h *DelegationHandler) ListByVersion(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	ds, err := h.core.Delegations().ListByVersion(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if ds == nil {
		ds = []*delegations.Delegation{}
	}
	c.JSON(http.StatusOK, gin.H{"delegations": ds, "count": len(ds)})
}

// ListMine handles GET /users/me/delegations — delegations granted to the
// acting user.
func (h *DelegationHandler) ListMine(c *gin.Context) {
	ds, err := h.core.Delegations().ListByUser(c.Request.Context(), identity.ActorFromCtx(c), 0, 0)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if ds == nil {
		ds = []*delegations.Delegation{}
	}
	c.JSON(http.StatusOK, gin.H{"delegations": ds, "count": len(ds)})
}
