package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/services"
)

const (
	ContextUserKey   = "user"
	ContextUserIDKey = "userID"
	ContextAPIKeyKey = "apiKey"
)

type AuthMiddleware struct {
	tokens  *services.TokenService
	apiKeys *services.APIKeyService
	db      *gorm.DB
	logger  *zap.Logger
}

func NewAuthMiddleware(tokens *services.TokenService, apiKeys *services.APIKeyService, db *gorm.DB, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:  tokens,
		apiKeys: apiKeys,
		db:      db,
		logger:  logger,
	}
}

// RequireAuth accepts either a Bearer access token or an X-API-Key header
// and attaches the resolved user to the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := am.resolveUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}
		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID.String())
		c.Next()
	}
}

// OptionalAuth resolves the user when credentials are present but never
// rejects the request.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, ok := am.resolveUser(c); ok {
			c.Set(ContextUserKey, user)
			c.Set(ContextUserIDKey, user.ID.String())
		}
		c.Next()
	}
}

func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin access required",
			})
			return
		}
		c.Next()
	}
}

// RequireTier rejects users below the given subscription tier.
func (am *AuthMiddleware) RequireTier(tier models.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.Tier.AtLeast(tier) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":         "This feature requires a higher subscription tier",
				"required_tier": tier,
			})
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) resolveUser(c *gin.Context) (*models.User, bool) {
	if key := c.GetHeader("X-API-Key"); key != "" {
		user, apiKey, err := am.apiKeys.Authenticate(c.Request.Context(), key)
		if err != nil {
			if !errors.Is(err, services.ErrAPIKeyInvalid) {
				am.logger.Error("API key lookup failed", zap.Error(err))
			}
			return nil, false
		}
		c.Set(ContextAPIKeyKey, apiKey)
		return user, true
	}

	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}

	userID, err := am.tokens.Verify(strings.TrimPrefix(header, "Bearer "), services.TokenAccess)
	if err != nil {
		return nil, false
	}

	var user models.User
	err = am.db.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			am.logger.Error("User lookup failed", zap.Error(err))
		}
		return nil, false
	}
	if !user.IsActive {
		return nil, false
	}
	return &user, true
}

// CurrentUser returns the authenticated user attached by RequireAuth, or nil.
func CurrentUser(c *gin.Context) *models.User {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}
