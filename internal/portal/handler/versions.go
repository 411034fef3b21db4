package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/compliance"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/identity"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/readcache"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/versions"
)

// VersionHandler handles HTTP requests for document masters and protocol
// versions.
type VersionHandler struct {
	core   *compliance.Core
	tokens *identity.TokenIssuer
	cache  readcache.Cache // nil = no read caching
	logger *zap.Logger
}

// NewVersionHandler creates a VersionHandler.
func NewVersionHandler(core *compliance.Core, tokens *identity.TokenIssuer, logger *zap.Logger) *VersionHandler {
	return &VersionHandler{core: core, tokens: tokens, logger: logger}
}

// SetCache configures current-version read caching.
func (h *VersionHandler) SetCache(cache readcache.Cache) {
	h.cache = cache
}

// Register registers all document and version routes on the router group.
func (h *VersionHandler) Register(rg *gin.RouterGroup) {
	auth := identity.RequireToken(h.tokens)

	docs := rg.Group("/documents", auth)
	{
		docs.POST("", h.RegisterDocument)
		docs.GET("", h.ListDocuments)
		docs.GET("/:id", h.GetDocument)
		docs.GET("/:id/versions", h.ListVersions)
		docs.GET("/:id/current", h.GetCurrent)
	}

	vers := rg.Group("/versions", auth)
	{
		vers.POST("", h.RegisterUpload)
		vers.GET("/:id", h.GetVersion)
		vers.POST("/:id/promote", h.Promote)
	}
}

// RegisterDocument handles POST /documents.
func (h *VersionHandler) RegisterDocument(c *gin.Context) {
	var req versions.RegisterDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.core.RegisterDocument(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// ListDocuments handles GET /documents?trial_id=...&limit=&offset=.
func (h *VersionHandler) ListDocuments(c *gin.Context) {
	trialID, err := uuid.Parse(c.Query("trial_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trial_id query parameter must be a UUID"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	masters, err := h.core.Versions().ListMasters(c.Request.Context(), trialID, limit, offset)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if masters == nil {
		masters = []*versions.DocumentMaster{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": masters, "count": len(masters)})
}

// GetDocument handles GET /documents/:id.
func (h *VersionHandler) GetDocument(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	m, err := h.core.Versions().GetMaster(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ListVersions handles GET /documents/:id/versions.
func (h *VersionHandler) ListVersions(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	vs, err := h.core.Versions().List(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if vs == nil {
		vs = []*versions.ProtocolVersion{}
	}
	c.JSON(http.StatusOK, gin.H{"versions": vs, "count": len(vs)})
}

// GetCurrent handles GET /documents/:id/current. Reads go through the cache
// when one is configured; misses fall through to the ledger and refill it.
func (h *VersionHandler) GetCurrent(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if h.cache != nil {
		if v, hit := h.cache.GetCurrent(ctx, id); hit {
			c.JSON(http.StatusOK, v)
			return
		}
	}

	v, err := h.core.Versions().Current(ctx, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if h.cache != nil {
		h.cache.SetCurrent(ctx, v)
	}
	c.JSON(http.StatusOK, v)
}

// RegisterUpload handles POST /versions. The uploader is always the acting
// user from the session token, never a caller-supplied field.
func (h *VersionHandler) RegisterUpload(c *gin.Context) {
	var req versions.RegisterUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.UploadedBy = identity.ActorFromCtx(c)

	v, err := h.core.RegisterUpload(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	RecordVersionUpload()
	c.JSON(http.StatusCreated, v)
}

// GetVersion handles GET /versions/:id.
func (h *VersionHandler) GetVersion(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	v, err := h.core.Versions().Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Promote handles POST /versions/:id/promote.
func (h *VersionHandler) Promote(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	v, err := h.core.PromoteVersion(c.Request.Context(), id, identity.ActorFromCtx(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	RecordPromotion()
	c.JSON(http.StatusOK, v)
}

// pathUUID parses a UUID path parameter, writing a 400 on failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}
