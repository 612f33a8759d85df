package knowledge

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eion/tenantgate/internal/auth"
	"github.com/eion/tenantgate/internal/logging"
	"github.com/eion/tenantgate/internal/zerrors"
)

// Handlers provides HTTP handlers for knowledge space management. Routes expect the auth middleware
// to have stored an auth.Context on the request context.
type Handlers struct {
	manager Manager
	logger  logging.Logger
}

// NewHandlers creates new knowledge handlers
func NewHandlers(manager Manager, logger logging.Logger) *Handlers {
	return &Handlers{
		manager: manager,
		logger:  logger,
	}
}

// RegisterRoutes registers knowledge space routes
func (h *Handlers) RegisterRoutes(router *gin.RouterGroup) {
	spaces := router.Group("/knowledge-spaces")
	{
		spaces.POST("", h.CreateKnowledgeSpace)
		spaces.GET("", h.ListKnowledgeSpaces)
		spaces.GET("/:id", h.GetKnowledgeSpace)
		spaces.DELETE("/:id", h.DeleteKnowledgeSpace)
	}
}

// CreateKnowledgeSpace creates a knowledge space for the caller's tenant
func (h *Handlers) CreateKnowledgeSpace(c *gin.Context) {
	ac, ok := h.identity(c)
	if !ok {
		return
	}

	var req CreateKnowledgeSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
		return
	}

	space, err := h.manager.CreateKnowledgeSpace(c.Request.Context(), ac.TenantID, &req)
	if err != nil {
		h.fail(c, "failed to create knowledge space", err, ac)
		return
	}

	c.JSON(http.StatusCreated, space)
}

// ListKnowledgeSpaces lists the caller's knowledge spaces
func (h *Handlers) ListKnowledgeSpaces(c *gin.Context) {
	ac, ok := h.identity(c)
	if !ok {
		return
	}

	spaces, err := h.manager.ListKnowledgeSpaces(c.Request.Context(), ac.TenantID)
	if err != nil {
		h.fail(c, "failed to list knowledge spaces", err, ac)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"knowledge_spaces": spaces,
		"total_count":      len(spaces),
	})
}

// GetKnowledgeSpace retrieves one of the caller's knowledge spaces
func (h *Handlers) GetKnowledgeSpace(c *gin.Context) {
	ac, ok := h.identity(c)
	if !ok {
		return
	}

	space, err := h.manager.GetKnowledgeSpace(c.Request.Context(), ac.TenantID, c.Param("id"))
	if err != nil {
		h.fail(c, "failed to get knowledge space", err, ac)
		return
	}

	c.JSON(http.StatusOK, space)
}

// DeleteKnowledgeSpace deletes one of the caller's knowledge spaces
func (h *Handlers) DeleteKnowledgeSpace(c *gin.Context) {
	ac, ok := h.identity(c)
	if !ok {
		return
	}

	if err := h.manager.DeleteKnowledgeSpace(c.Request.Context(), ac.TenantID, c.Param("id")); err != nil {
		h.fail(c, "failed to delete knowledge space", err, ac)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handlers) identity(c *gin.Context) (auth.Context, bool) {
	ac, ok := auth.FromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return auth.Context{}, false
	}
	return ac, true
}

// fail maps err to a response. Only validation and not-found messages reach the caller.
func (h *Handlers) fail(c *gin.Context, msg string, err error, ac auth.Context) {
	kind := zerrors.KindOf(err)
	status := zerrors.HTTPStatus(kind)

	switch kind {
	case zerrors.KindValidation, zerrors.KindNotFound:
		c.JSON(status, gin.H{"error": zerrors.CallerMessage(err)})
	default:
		h.logger.Error(msg, err, logging.Fields{
			"tenantId": ac.TenantID,
			"userId":   ac.UserID,
			"path":     c.Request.URL.Path,
			"method":   c.Request.Method,
		})
		c.JSON(status, gin.H{"error": "Internal server error"})
	}
}
