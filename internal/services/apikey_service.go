package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/utils"
)

var (
	ErrAPIKeyNotFound = errors.New("api key not found")
	ErrAPIKeyInvalid  = errors.New("invalid api key")
)

// APIKeyService issues and validates programmatic access keys. Keys are
// stored hashed; the plaintext is shown once at creation.
type APIKeyService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAPIKeyService(db *gorm.DB, logger *zap.Logger) *APIKeyService {
	return &APIKeyService{
		db:     db,
		logger: logger.With(zap.String("service", "apikey_service")),
	}
}

// CreatedKey carries the one-time plaintext alongside the stored row.
type CreatedKey struct {
	Key   string
	Model *models.APIKey
}

func (as *APIKeyService) Create(ctx context.Context, userID uuid.UUID, name string, permissions []string, expiresAt *time.Time) (*CreatedKey, error) {
	plaintext := utils.NewAPIKey()
	key := &models.APIKey{
		UserID:      userID,
		Name:        name,
		KeyHash:     utils.HashToken(plaintext),
		Prefix:      plaintext[:12],
		Permissions: permissions,
		ExpiresAt:   expiresAt,
		IsActive:    true,
	}
	if err := as.db.WithContext(ctx).Create(key).Error; err != nil {
		return nil, err
	}

	as.logger.Info("API key created",
		zap.String("user_id", userID.String()),
		zap.String("key_id", key.ID.String()),
		zap.String("prefix", key.Prefix))
	return &CreatedKey{Key: plaintext, Model: key}, nil
}

func (as *APIKeyService) List(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := as.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

func (as *APIKeyService) Revoke(ctx context.Context, userID, keyID uuid.UUID) error {
	result := as.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ? AND user_id = ?", keyID, userID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAPIKeyNotFound
	}
	as.logger.Info("API key revoked",
		zap.String("user_id", userID.String()),
		zap.String("key_id", keyID.String()))
	return nil
}

// Authenticate resolves a plaintext key to its owner. Expired and revoked
// keys are rejected. Last-used tracking is best effort.
func (as *APIKeyService) Authenticate(ctx context.Context, plaintext string) (*models.User, *models.APIKey, error) {
	var key models.APIKey
	err := as.db.WithContext(ctx).
		Preload("User").
		Where("key_hash = ?", utils.HashToken(plaintext)).
		First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrAPIKeyInvalid
	}
	if err != nil {
		return nil, nil, err
	}
	if !key.IsValid() || key.User == nil || !key.User.IsActive {
		return nil, nil, ErrAPIKeyInvalid
	}

	now := time.Now().UTC()
	if err := as.db.WithContext(ctx).Model(&key).Update("last_used", now).Error; err != nil {
		as.logger.Debug("Failed to record key use", zap.Error(err))
	}

	return key.User, &key, nil
}
