package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/config"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/utils"
	"github.com/jahboukie/ndarite/pkg/metrics"
)

var (
	ErrEmailTaken         = errors.New("email address already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrUserNotFound       = errors.New("user not found")
)

// PasswordError wraps ErrWeakPassword with the individual policy failures.
type PasswordError struct {
	Issues []string
}

func (e *PasswordError) Error() string {
	return fmt.Sprintf("weak password: %s", strings.Join(e.Issues, "; "))
}

func (e *PasswordError) Unwrap() error { return ErrWeakPassword }

type RegisterInput struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone"`
}

type ProfileUpdate struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	CompanyName *string `json:"company_name"`
	Phone       *string `json:"phone"`
}

// AccountService covers registration, login and the mailed token flows for
// email verification and password resets.
type AccountService struct {
	db      *gorm.DB
	cfg     config.SecurityConfig
	mail    *MailService
	usage   *UsageService
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewAccountService(
	db *gorm.DB,
	cfg config.SecurityConfig,
	mail *MailService,
	usage *UsageService,
	logger *zap.Logger,
	collector *metrics.Collector,
) *AccountService {
	return &AccountService{
		db:      db,
		cfg:     cfg,
		mail:    mail,
		usage:   usage,
		logger:  logger.With(zap.String("service", "account_service")),
		metrics: collector,
	}
}

func (as *AccountService) Register(ctx context.Context, input *RegisterInput) (*models.User, error) {
	if issues := utils.CheckPasswordStrength(input.Password); len(issues) > 0 {
		return nil, &PasswordError{Issues: issues}
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	var existing int64
	if err := as.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		CompanyName:  input.CompanyName,
		Phone:        input.Phone,
		Role:         models.RoleUser,
		Tier:         models.TierFree,
		IsActive:     true,
	}
	if err := as.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if token, err := as.issueToken(ctx, user.ID, models.PurposeEmailVerification, as.cfg.VerifyTokenExpiry); err != nil {
		as.logger.Warn("Verification token issue failed", zap.Error(err))
	} else if err := as.mail.SendVerification(user, token); err != nil {
		as.logger.Warn("Verification mail failed", zap.Error(err))
	}

	as.metrics.Increment("accounts.registered")
	as.logger.Info("User registered",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email))
	return user, nil
}

func (as *AccountService) Login(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := as.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !utils.VerifyPassword(user.PasswordHash, password) {
		as.metrics.Increment("accounts.login_failures")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	now := time.Now().UTC()
	if err := as.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		as.logger.Debug("Failed to record login time", zap.Error(err))
	}
	user.LastLogin = &now

	as.metrics.Increment("accounts.logins")
	return &user, nil
}

func (as *AccountService) FetchByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := as.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (as *AccountService) UpdateProfile(ctx context.Context, user *models.User, update *ProfileUpdate) error {
	changes := map[string]any{}
	if update.FirstName != nil {
		changes["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		changes["last_name"] = *update.LastName
	}
	if update.CompanyName != nil {
		changes["company_name"] = *update.CompanyName
	}
	if update.Phone != nil {
		changes["phone"] = *update.Phone
	}
	if len(changes) == 0 {
		return nil
	}
	return as.db.WithContext(ctx).Model(user).Updates(changes).Error
}

func (as *AccountService) ChangePassword(ctx context.Context, user *models.User, current, next string) error {
	if !utils.VerifyPassword(user.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if issues := utils.CheckPasswordStrength(next); len(issues) > 0 {
		return &PasswordError{Issues: issues}
	}

	hash, err := utils.HashPassword(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := as.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return err
	}

	as.usage.Audit(&models.AuditLog{
		UserID: &user.ID,
		Action: "password_changed",
	})
	return nil
}

// RequestPasswordReset issues a reset token when the address is known.
// Unknown addresses succeed silently so the endpoint cannot be used to
// enumerate registered accounts.
func (as *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	var user models.User
	err := as.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := as.issueToken(ctx, user.ID, models.PurposePasswordReset, as.cfg.ResetTokenExpiry)
	if err != nil {
		return err
	}
	if err := as.mail.SendPasswordReset(&user, token); err != nil {
		as.logger.Warn("Reset mail failed", zap.Error(err))
	}
	return nil
}

func (as *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if issues := utils.CheckPasswordStrength(newPassword); len(issues) > 0 {
		return &PasswordError{Issues: issues}
	}

	authToken, err := as.consumeToken(ctx, token, models.PurposePasswordReset)
	if err != nil {
		return err
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := as.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", authToken.UserID).
		Update("password_hash", hash).Error; err != nil {
		return err
	}

	as.usage.Audit(&models.AuditLog{
		UserID: &authToken.UserID,
		Action: "password_reset",
	})
	as.logger.Info("Password reset completed", zap.String("user_id", authToken.UserID.String()))
	return nil
}

func (as *AccountService) VerifyEmail(ctx context.Context, token string) error {
	authToken, err := as.consumeToken(ctx, token, models.PurposeEmailVerification)
	if err != nil {
		return err
	}
	if err := as.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", authToken.UserID).
		Update("email_verified", true).Error; err != nil {
		return err
	}
	as.metrics.Increment("accounts.emails_verified")
	return nil
}

// Deactivate soft-disables the account. Existing tokens stop working at the
// next authenticated request.
func (as *AccountService) Deactivate(ctx context.Context, userID uuid.UUID) error {
	result := as.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (as *AccountService) issueToken(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, ttl time.Duration) (string, error) {
	plaintext := utils.RandomToken(32)
	token := &models.AuthToken{
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: utils.HashToken(plaintext),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := as.db.WithContext(ctx).Create(token).Error; err != nil {
		return "", err
	}
	return plaintext, nil
}

func (as *AccountService) consumeToken(ctx context.Context, plaintext string, purpose models.TokenPurpose) (*models.AuthToken, error) {
	var token models.AuthToken
	err := as.db.WithContext(ctx).
		Where("token_hash = ?", utils.HashToken(plaintext)).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if token.Purpose != purpose || !token.Usable() {
		return nil, ErrInvalidToken
	}

	now := time.Now().UTC()
	result := as.db.WithContext(ctx).Model(&token).
		Where("consumed_at IS NULL").
		Update("consumed_at", now)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidToken
	}
	return &token, nil
}
