package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actions recorded for analytics and billing.
const (
	ActionDocumentGenerated = "document_generated"
	ActionTemplateUsed      = "template_used"
	ActionSignatureSent     = "signature_sent"
	ActionDocumentDownload  = "document_downloaded"
)

type UsageRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"index"`

	UserID uuid.UUID `gorm:"type:uuid;index;not null"`
	User   *User

	Action     string     `gorm:"index;not null"`
	ResourceID *uuid.UUID `gorm:"type:uuid"`
	Metadata   JSONMap    `gorm:"type:jsonb"`
}

func (u *UsageRecord) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"index"`

	UserID *uuid.UUID `gorm:"type:uuid;index"`

	Action       string `gorm:"not null"`
	ResourceType string
	ResourceID   *uuid.UUID `gorm:"type:uuid"`

	OldValues JSONMap `gorm:"type:jsonb"`
	NewValues JSONMap `gorm:"type:jsonb"`

	IPAddress string
	UserAgent string
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
