package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// AuthToken is a single-use token handed out by mail for email verification
// and password resets. Only the sha256 hash is stored.
type AuthToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time

	UserID uuid.UUID `gorm:"type:uuid;index;not null"`

	Purpose   TokenPurpose `gorm:"not null"`
	TokenHash string       `gorm:"uniqueIndex;not null"`

	ExpiresAt  time.Time `gorm:"not null"`
	ConsumedAt *time.Time
}

func (t *AuthToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t *AuthToken) Usable() bool {
	return t.ConsumedAt == nil && time.Now().Before(t.ExpiresAt)
}
