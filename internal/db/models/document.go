package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusGenerated DocumentStatus = "generated"
	StatusError     DocumentStatus = "error"
	StatusSigned    DocumentStatus = "signed"
	StatusCompleted DocumentStatus = "completed"
)

type SignatureStatus string

const (
	SignaturePending  SignatureStatus = "pending"
	SignatureSigned   SignatureStatus = "signed"
	SignatureDeclined SignatureStatus = "declined"
	SignatureExpired  SignatureStatus = "expired"
)

type Document struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID     uuid.UUID `gorm:"type:uuid;index;not null"`
	User       *User
	TemplateID uuid.UUID `gorm:"type:uuid;index;not null"`
	Template   *Template

	Name string  `gorm:"not null"`
	Data JSONMap `gorm:"type:jsonb;not null"`

	DisclosingParty   JSONMap  `gorm:"type:jsonb;not null"`
	ReceivingParty    JSONMap  `gorm:"type:jsonb;not null"`
	AdditionalParties JSONList `gorm:"type:jsonb"`

	EffectiveDate  *time.Time
	ExpirationDate *time.Time
	GoverningLaw   string

	PDFPath  string
	DOCXPath string

	Status DocumentStatus `gorm:"index;not null;default:'draft'"`

	EnvelopeID      string          `gorm:"index"`
	SignatureStatus SignatureStatus
	SignedAt        *time.Time

	ViewCount     int `gorm:"not null;default:0"`
	DownloadCount int `gorm:"not null;default:0"`
	LastAccessed  *time.Time

	Signers []Signer `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (d *Document) IsGenerated() bool {
	switch d.Status {
	case StatusGenerated, StatusSigned, StatusCompleted:
		return true
	}
	return false
}

// Locked documents can no longer be edited or deleted.
func (d *Document) Locked() bool {
	return d.Status == StatusSigned || d.Status == StatusCompleted
}

type Signer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time

	DocumentID uuid.UUID `gorm:"type:uuid;index;not null"`

	Name  string `gorm:"not null"`
	Email string `gorm:"not null"`
	Role  string

	Status   SignatureStatus `gorm:"not null;default:'pending'"`
	SignedAt *time.Time

	IPAddress string
	UserAgent string
}

func (s *Signer) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
