package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TemplateKind string

const (
	KindBilateral    TemplateKind = "bilateral"
	KindUnilateral   TemplateKind = "unilateral"
	KindMultilateral TemplateKind = "multilateral"
)

func (k TemplateKind) IsValid() bool {
	switch k {
	case KindBilateral, KindUnilateral, KindMultilateral:
		return true
	}
	return false
}

type Complexity string

const (
	ComplexityBasic    Complexity = "basic"
	ComplexityStandard Complexity = "standard"
	ComplexityAdvanced Complexity = "advanced"
)

type TemplateCategory struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time

	Name        string `gorm:"not null"`
	Slug        string `gorm:"uniqueIndex;not null"`
	Description string
	SortOrder   int  `gorm:"not null;default:0"`
	IsActive    bool `gorm:"not null;default:true"`

	Templates []Template `gorm:"foreignKey:CategoryID"`
}

func (c *TemplateCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Template is an NDA blueprint. Clauses hold the legal text with
// {{placeholder}} markers; RequiredFields and OptionalFields describe the
// questionnaire inputs that feed those markers.
type Template struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	CategoryID *uuid.UUID `gorm:"type:uuid;index"`
	Category   *TemplateCategory

	Name         string       `gorm:"not null"`
	Description  string
	Kind         TemplateKind `gorm:"not null"`
	Jurisdiction string       `gorm:"not null;default:'United States'"`
	Industry     string
	Complexity   Complexity `gorm:"not null;default:'standard'"`

	Clauses        JSONList   `gorm:"type:jsonb;not null"`
	RequiredFields StringList `gorm:"type:jsonb;not null"`
	OptionalFields StringList `gorm:"type:jsonb"`

	TierRequirement Tier `gorm:"not null;default:'starter'"`
	Version         int  `gorm:"not null;default:1"`
	IsActive        bool `gorm:"not null;default:true"`

	CreatedBy  *uuid.UUID `gorm:"type:uuid"`
	ReviewedBy *uuid.UUID `gorm:"type:uuid"`
}

func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t *Template) AccessibleTo(tier Tier) bool {
	return tier.AtLeast(t.TierRequirement)
}
