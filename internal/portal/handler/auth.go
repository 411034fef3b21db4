package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/identity"
)

// AuthHandler exchanges credentials for session tokens. Password and SSO
// authentication happen in the site-administration system; this portal only
// exchanges the static admin secret for an admin token and re-verifies
// existing tokens.
type AuthHandler struct {
	tokens      *identity.TokenIssuer
	adminSecret *identity.AdminSecret // nil = admin exchange disabled
	adminActor  int64
	logger      *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(tokens *identity.TokenIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{tokens: tokens, logger: logger}
}

// SetAdminSecret enables the admin token exchange. adminActor is the actor ID
// admin tokens act as.
func (h *AuthHandler) SetAdminSecret(secret *identity.AdminSecret, adminActor int64) {
	h.adminSecret = secret
	h.adminActor = adminActor
}

// Register mounts the auth routes on the given router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/admin-token", h.AdminToken)
		auth.GET("/whoami", identity.RequireToken(h.tokens), h.WhoAmI)
	}
}

type adminTokenRequest struct {
	Secret string `json:"secret" binding:"required"`
}

// AdminToken handles POST /auth/admin-token — exchanges the static admin
// secret for a short-lived admin session token.
func (h *AuthHandler) AdminToken(c *gin.Context) {
	if h.adminSecret == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "admin token exchange is not enabled"})
		return
	}

	var req adminTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.adminSecret.Check(req.Secret) {
		h.logger.Warn("admin token exchange rejected", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin secret"})
		return
	}

	tok, err := h.tokens.IssueAdminToken(h.adminActor, 0)
	if err != nil {
		h.logger.Error("issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok, "token_type": "Bearer"})
}

// WhoAmI handles GET /auth/whoami — echoes the verified session claims.
func (h *AuthHandler) WhoAmI(c *gin.Context) {
	claims := identity.ClaimsFromCtx(c)
	c.JSON(http.StatusOK, gin.H{
		"actor_id": claims.ActorID,
		"email":    claims.Email,
		"role":     claims.Role,
	})
}
