package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleUser         UserRole = "user"
	RoleAdmin        UserRole = "admin"
	RoleLegalPartner UserRole = "legal_partner"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`

	FirstName   string `gorm:"not null"`
	LastName    string `gorm:"not null"`
	CompanyName string
	Phone       string

	Role UserRole `gorm:"not null;default:'user'"`
	Tier Tier     `gorm:"not null;default:'free'"`

	StripeCustomerID string `gorm:"index"`

	EmailVerified bool `gorm:"not null;default:false"`
	IsActive      bool `gorm:"not null;default:true"`
	LastLogin     *time.Time

	Subscriptions []Subscription
	Documents     []Document
	APIKeys       []APIKey
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsPremium() bool {
	return u.Tier.Rank() > TierFree.Rank()
}

// CanCreateDocuments checks the monthly document count against the tier
// limit. A limit of -1 means unlimited.
func (u *User) CanCreateDocuments(currentCount int64, limits map[Tier]int) bool {
	limit, ok := limits[u.Tier]
	if !ok {
		return false
	}
	if limit == -1 {
		return true
	}
	return currentCount < int64(limit)
}
