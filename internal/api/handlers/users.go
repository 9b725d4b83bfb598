package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/api/middleware"
	"github.com/jahboukie/ndarite/internal/config"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/services"
)

type UserHandler struct {
	accounts *services.AccountService
	usage    *services.UsageService
	tiers    config.TierConfig
	db       *gorm.DB
	logger   *zap.Logger
}

func NewUserHandler(
	accounts *services.AccountService,
	usage *services.UsageService,
	tiers config.TierConfig,
	db *gorm.DB,
	logger *zap.Logger,
) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		usage:    usage,
		tiers:    tiers,
		db:       db,
		logger:   logger.With(zap.String("handler", "users")),
	}
}

func (h *UserHandler) Profile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var update services.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.accounts.UpdateProfile(c.Request.Context(), user, &update); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.accounts.ChangePassword(c.Request.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed"})
}

// Stats reports the month's document usage against the tier limit.
func (h *UserHandler) Stats(c *gin.Context) {
	user := middleware.CurrentUser(c)

	monthly, err := h.usage.MonthlyDocumentCount(user.ID)
	if err != nil {
		h.logger.Error("Usage count failed", zap.Error(err))
		respondError(c, err)
		return
	}

	var total int64
	if err := h.db.WithContext(c.Request.Context()).Model(&models.Document{}).
		Where("user_id = ?", user.ID).Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	limit := h.tiers.DocumentLimits()[user.Tier]
	remaining := -1
	if limit >= 0 {
		remaining = limit - int(monthly)
		if remaining < 0 {
			remaining = 0
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":                 user.Tier,
		"documents_total":      total,
		"documents_this_month": monthly,
		"monthly_limit":        limit,
		"remaining_this_month": remaining,
	})
}

func (h *UserHandler) Deactivate(c *gin.Context) {
	user := middleware.CurrentUser(c)

	if err := h.accounts.Deactivate(c.Request.Context(), user.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deactivated"})
}

// SetUserActive flips an account's active flag. Admin only; admins cannot
// deactivate themselves.
func (h *UserHandler) SetUserActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin := middleware.CurrentUser(c)

		userID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			respondBadRequest(c, err)
			return
		}
		if !active && userID == admin.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot deactivate your own account"})
			return
		}

		result := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
			Where("id = ?", userID).
			Update("is_active", active)
		if result.Error != nil {
			respondError(c, result.Error)
			return
		}
		if result.RowsAffected == 0 {
			respondError(c, services.ErrUserNotFound)
			return
		}

		action := "user_activated"
		if !active {
			action = "user_deactivated"
		}
		h.usage.Audit(&models.AuditLog{
			UserID:       &admin.ID,
			Action:       action,
			ResourceType: "user",
			ResourceID:   &userID,
			NewValues:    models.JSONMap{"is_active": active},
		})
		c.JSON(http.StatusOK, gin.H{"message": "User updated", "is_active": active})
	}
}

// ListUsers is the admin account directory.
func (h *UserHandler) ListUsers(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if tier := c.Query("tier"); tier != "" {
		query = query.Where("tier = ?", tier)
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var users []models.User
	if err := query.Scopes(Paginate(c)).Order("created_at DESC").Find(&users).Error; err != nil {
		respondError(c, err)
		return
	}

	responses := make([]UserResponse, len(users))
	for i := range users {
		responses[i] = toUserResponse(&users[i])
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(c, responses, total))
}
