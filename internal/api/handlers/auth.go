package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jahboukie/ndarite/internal/services"
)

type AuthHandler struct {
	accounts *services.AccountService
	tokens   *services.TokenService
	logger   *zap.Logger
}

func NewAuthHandler(accounts *services.AccountService, tokens *services.TokenService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		logger:   logger.With(zap.String("handler", "auth")),
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}

	pair, err := h.tokens.IssuePair(user.ID)
	if err != nil {
		h.logger.Error("Token issue failed", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":   toUserResponse(user),
		"tokens": pair,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	user, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	pair, err := h.tokens.IssuePair(user.ID)
	if err != nil {
		h.logger.Error("Token issue failed", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   toUserResponse(user),
		"tokens": pair,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	userID, err := h.tokens.Verify(req.RefreshToken, services.TokenRefresh)
	if err != nil {
		respondError(c, err)
		return
	}

	// The account must still exist and be active before a new pair goes out.
	user, err := h.accounts.FetchByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, services.ErrInvalidToken)
		return
	}
	if !user.IsActive {
		respondError(c, services.ErrAccountDisabled)
		return
	}

	pair, err := h.tokens.IssuePair(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": pair})
}

// Logout is a client-side operation with stateless tokens; the endpoint
// exists so clients have a uniform flow.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.logger.Error("Password reset request failed", zap.Error(err))
	}

	// Always the same answer, whether or not the address is registered.
	c.JSON(http.StatusOK, gin.H{
		"message": "If the address is registered, a reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}

type verifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.accounts.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
}
