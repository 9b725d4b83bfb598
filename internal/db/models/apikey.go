package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type APIKey struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time

	UserID uuid.UUID `gorm:"type:uuid;index;not null"`
	User   *User

	Name        string     `gorm:"not null"`
	KeyHash     string     `gorm:"uniqueIndex;not null"`
	Prefix      string     `gorm:"not null"`
	Permissions StringList `gorm:"type:jsonb;not null"`

	RateLimit int  `gorm:"not null;default:1000"`
	IsActive  bool `gorm:"not null;default:true"`
	ExpiresAt *time.Time
	LastUsed  *time.Time
}

func (k *APIKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return nil
}

func (k *APIKey) IsExpired() bool {
	return k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt)
}

func (k *APIKey) IsValid() bool {
	return k.IsActive && !k.IsExpired()
}
