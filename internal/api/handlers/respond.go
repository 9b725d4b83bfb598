package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/services"
)

// UserResponse is the public shape of a user account.
type UserResponse struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	FirstName     string      `json:"first_name"`
	LastName      string      `json:"last_name"`
	CompanyName   string      `json:"company_name,omitempty"`
	Phone         string      `json:"phone,omitempty"`
	Role          string      `json:"role"`
	Tier          models.Tier `json:"tier"`
	EmailVerified bool        `json:"email_verified"`
	CreatedAt     time.Time   `json:"created_at"`
	LastLogin     *time.Time  `json:"last_login,omitempty"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		CompanyName:   u.CompanyName,
		Phone:         u.Phone,
		Role:          string(u.Role),
		Tier:          u.Tier,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		LastLogin:     u.LastLogin,
	}
}

// respondError maps service errors to HTTP statuses and writes the standard
// error body. Unrecognized errors come back as a 500 without leaking detail.
func respondError(c *gin.Context, err error) {
	var fieldErr *services.FieldError
	if errors.As(err, &fieldErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":          "Required fields are missing",
			"missing_fields": fieldErr.Missing,
		})
		return
	}

	var passwordErr *services.PasswordError
	if errors.As(err, &passwordErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Password does not meet requirements",
			"issues": passwordErr.Issues,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrWrongTokenUse):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrAccountDisabled),
		errors.Is(err, services.ErrTierRequired):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrAlreadySubscribed),
		errors.Is(err, services.ErrDocumentLocked),
		errors.Is(err, services.ErrNotGenerated):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrTemplateNotFound),
		errors.Is(err, services.ErrDocumentNotFound),
		errors.Is(err, services.ErrAPIKeyNotFound),
		errors.Is(err, services.ErrNoSubscription):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrDocumentLimit):
		status = http.StatusPaymentRequired
	case errors.Is(err, services.ErrUnknownPlan),
		errors.Is(err, services.ErrNoSigners):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrBillingDisabled):
		status = http.StatusServiceUnavailable
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
}
