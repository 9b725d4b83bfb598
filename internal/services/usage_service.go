package services

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/db/models"
)

// UsageService records billable actions and audit events.
type UsageService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewUsageService(db *gorm.DB, logger *zap.Logger) *UsageService {
	return &UsageService{
		db:     db,
		logger: logger.With(zap.String("service", "usage_service")),
	}
}

func (us *UsageService) Record(userID uuid.UUID, action string, resourceID *uuid.UUID, metadata models.JSONMap) {
	record := models.UsageRecord{
		UserID:     userID,
		Action:     action,
		ResourceID: resourceID,
		Metadata:   metadata,
	}
	if err := us.db.Create(&record).Error; err != nil {
		us.logger.Warn("Failed to record usage",
			zap.String("action", action),
			zap.Error(err))
	}
}

func (us *UsageService) Audit(entry *models.AuditLog) {
	if err := us.db.Create(entry).Error; err != nil {
		us.logger.Warn("Failed to write audit log",
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}

// MonthStart is the first instant of the current UTC month, the boundary
// for tier document limits.
func MonthStart() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd is the first instant of the next UTC month.
func MonthEnd() time.Time {
	return MonthStart().AddDate(0, 1, 0)
}

func (us *UsageService) MonthlyDocumentCount(userID uuid.UUID) (int64, error) {
	var count int64
	err := us.db.Model(&models.Document{}).
		Where("user_id = ? AND created_at >= ?", userID, MonthStart()).
		Count(&count).Error
	return count, err
}
