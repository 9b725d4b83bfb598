package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

type Subscription struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID uuid.UUID `gorm:"type:uuid;index;not null"`
	User   *User

	StripeSubscriptionID string `gorm:"uniqueIndex"`

	Plan   Tier               `gorm:"not null"`
	Status SubscriptionStatus `gorm:"not null"`

	CurrentPeriodStart time.Time `gorm:"not null"`
	CurrentPeriodEnd   time.Time `gorm:"not null"`
	CancelAtPeriodEnd  bool      `gorm:"not null;default:false"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionActive || s.Status == SubscriptionTrialing
}

func (s *Subscription) IsTrial() bool {
	return s.Status == SubscriptionTrialing
}

func (s *Subscription) DaysUntilRenewal() int {
	delta := time.Until(s.CurrentPeriodEnd)
	if delta < 0 {
		return 0
	}
	return int(delta.Hours() / 24)
}
