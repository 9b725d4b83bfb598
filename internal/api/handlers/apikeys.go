package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jahboukie/ndarite/internal/api/middleware"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/services"
)

type APIKeyHandler struct {
	apiKeys *services.APIKeyService
	logger  *zap.Logger
}

func NewAPIKeyHandler(apiKeys *services.APIKeyService, logger *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		apiKeys: apiKeys,
		logger:  logger.With(zap.String("handler", "apikeys")),
	}
}

type apiKeyResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Prefix      string     `json:"prefix"`
	Permissions []string   `json:"permissions"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toAPIKeyResponse(k *models.APIKey) apiKeyResponse {
	return apiKeyResponse{
		ID:          k.ID.String(),
		Name:        k.Name,
		Prefix:      k.Prefix,
		Permissions: k.Permissions,
		IsActive:    k.IsActive,
		ExpiresAt:   k.ExpiresAt,
		LastUsed:    k.LastUsed,
		CreatedAt:   k.CreatedAt,
	}
}

type createKeyRequest struct {
	Name        string     `json:"name" binding:"required"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// Create issues a new key. The plaintext appears in this response only.
func (h *APIKeyHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if len(req.Permissions) == 0 {
		req.Permissions = []string{"documents:read"}
	}

	created, err := h.apiKeys.Create(c.Request.Context(), user.ID, req.Name, req.Permissions, req.ExpiresAt)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":     created.Key,
		"api_key": toAPIKeyResponse(created.Model),
	})
}

func (h *APIKeyHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)

	keys, err := h.apiKeys.List(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]apiKeyResponse, len(keys))
	for i := range keys {
		responses[i] = toAPIKeyResponse(&keys[i])
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": responses})
}

func (h *APIKeyHandler) Revoke(c *gin.Context) {
	user := middleware.CurrentUser(c)

	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.apiKeys.Revoke(c.Request.Context(), user.ID, keyID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API key revoked"})
}
