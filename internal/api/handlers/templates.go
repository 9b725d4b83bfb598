package handlers

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/api/middleware"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/services"
)

type TemplateHandler struct {
	db     *gorm.DB
	usage  *services.UsageService
	logger *zap.Logger
}

func NewTemplateHandler(db *gorm.DB, usage *services.UsageService, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		db:     db,
		usage:  usage,
		logger: logger.With(zap.String("handler", "templates")),
	}
}

// TemplateSummary is the catalog listing shape. Locked marks templates the
// caller's tier cannot use yet.
type TemplateSummary struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Description     string              `json:"description,omitempty"`
	Kind            models.TemplateKind `json:"kind"`
	Jurisdiction    string              `json:"jurisdiction"`
	Industry        string              `json:"industry,omitempty"`
	Complexity      models.Complexity   `json:"complexity"`
	TierRequirement models.Tier         `json:"tier_requirement"`
	Version         int                 `json:"version"`
	Locked          bool                `json:"locked"`
}

func toTemplateSummary(t *models.Template, tier models.Tier) TemplateSummary {
	return TemplateSummary{
		ID:              t.ID.String(),
		Name:            t.Name,
		Description:     t.Description,
		Kind:            t.Kind,
		Jurisdiction:    t.Jurisdiction,
		Industry:        t.Industry,
		Complexity:      t.Complexity,
		TierRequirement: t.TierRequirement,
		Version:         t.Version,
		Locked:          !t.AccessibleTo(tier),
	}
}

// List returns the active template catalog. All templates are visible so
// free users can see what an upgrade unlocks.
func (h *TemplateHandler) List(c *gin.Context) {
	tier := models.TierFree
	if user := middleware.CurrentUser(c); user != nil {
		tier = user.Tier
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.Template{}).
		Where("is_active = ?", true)
	if kind := c.Query("kind"); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if category := c.Query("category"); category != "" {
		query = query.Joins("JOIN template_categories ON template_categories.id = templates.category_id").
			Where("template_categories.slug = ?", category)
	}
	if industry := c.Query("industry"); industry != "" {
		query = query.Where("industry = ?", industry)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var templates []models.Template
	if err := query.Scopes(Paginate(c)).Order("name").Find(&templates).Error; err != nil {
		respondError(c, err)
		return
	}

	summaries := make([]TemplateSummary, len(templates))
	for i := range templates {
		summaries[i] = toTemplateSummary(&templates[i], tier)
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(c, summaries, total))
}

// Get returns full template detail including clauses and questionnaire
// fields. Inaccessible tiers still see the summary, not the clause text.
func (h *TemplateHandler) Get(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var template models.Template
	err = h.db.WithContext(c.Request.Context()).
		Preload("Category").
		Where("id = ? AND is_active = ?", templateID, true).
		First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, services.ErrTemplateNotFound)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	tier := models.TierFree
	user := middleware.CurrentUser(c)
	if user != nil {
		tier = user.Tier
	}

	summary := toTemplateSummary(&template, tier)
	if summary.Locked {
		c.JSON(http.StatusOK, gin.H{"template": summary})
		return
	}

	if user != nil {
		h.usage.Record(user.ID, models.ActionTemplateUsed, &template.ID, nil)
	}

	c.JSON(http.StatusOK, gin.H{
		"template":        summary,
		"clauses":         template.Clauses,
		"required_fields": template.RequiredFields,
		"optional_fields": template.OptionalFields,
	})
}

func (h *TemplateHandler) ListCategories(c *gin.Context) {
	var categories []models.TemplateCategory
	err := h.db.WithContext(c.Request.Context()).
		Where("is_active = ?", true).
		Order("sort_order, name").
		Find(&categories).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

type templateInput struct {
	CategoryID      *uuid.UUID          `json:"category_id"`
	Name            string              `json:"name" binding:"required"`
	Description     string              `json:"description"`
	Kind            models.TemplateKind `json:"kind" binding:"required"`
	Jurisdiction    string              `json:"jurisdiction"`
	Industry        string              `json:"industry"`
	Complexity      models.Complexity   `json:"complexity"`
	Clauses         models.JSONList     `json:"clauses" binding:"required"`
	RequiredFields  models.StringList   `json:"required_fields" binding:"required"`
	OptionalFields  models.StringList   `json:"optional_fields"`
	TierRequirement models.Tier         `json:"tier_requirement"`
}

// Create adds a template to the catalog. Admin only.
func (h *TemplateHandler) Create(c *gin.Context) {
	var input templateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}
	if !input.Kind.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown template kind"})
		return
	}

	admin := middleware.CurrentUser(c)
	template := models.Template{
		CategoryID:      input.CategoryID,
		Name:            input.Name,
		Description:     input.Description,
		Kind:            input.Kind,
		Jurisdiction:    input.Jurisdiction,
		Industry:        input.Industry,
		Complexity:      input.Complexity,
		Clauses:         input.Clauses,
		RequiredFields:  input.RequiredFields,
		OptionalFields:  input.OptionalFields,
		TierRequirement: input.TierRequirement,
		IsActive:        true,
		CreatedBy:       &admin.ID,
	}
	if template.Jurisdiction == "" {
		template.Jurisdiction = "United States"
	}
	if template.Complexity == "" {
		template.Complexity = models.ComplexityStandard
	}
	if template.TierRequirement == "" {
		template.TierRequirement = models.TierStarter
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&template).Error; err != nil {
		respondError(c, err)
		return
	}

	h.usage.Audit(&models.AuditLog{
		UserID:       &admin.ID,
		Action:       "template_created",
		ResourceType: "template",
		ResourceID:   &template.ID,
		NewValues:    models.JSONMap{"name": template.Name, "kind": string(template.Kind)},
	})
	h.logger.Info("Template created",
		zap.String("template_id", template.ID.String()),
		zap.String("name", template.Name))
	c.JSON(http.StatusCreated, template)
}

// Update revises a template in place and bumps its version when the clause
// text changes.
func (h *TemplateHandler) Update(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var template models.Template
	err = h.db.WithContext(c.Request.Context()).First(&template, "id = ?", templateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, services.ErrTemplateNotFound)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	var input templateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}

	version := template.Version
	if !reflect.DeepEqual(input.Clauses, template.Clauses) {
		version++
	}

	admin := middleware.CurrentUser(c)
	changes := map[string]any{
		"category_id":      input.CategoryID,
		"name":             input.Name,
		"description":      input.Description,
		"kind":             input.Kind,
		"jurisdiction":     input.Jurisdiction,
		"industry":         input.Industry,
		"complexity":       input.Complexity,
		"clauses":          input.Clauses,
		"required_fields":  input.RequiredFields,
		"optional_fields":  input.OptionalFields,
		"tier_requirement": input.TierRequirement,
		"version":          version,
		"reviewed_by":      admin.ID,
	}
	if err := h.db.WithContext(c.Request.Context()).Model(&template).Updates(changes).Error; err != nil {
		respondError(c, err)
		return
	}

	h.usage.Audit(&models.AuditLog{
		UserID:       &admin.ID,
		Action:       "template_updated",
		ResourceType: "template",
		ResourceID:   &template.ID,
		OldValues:    models.JSONMap{"version": template.Version},
		NewValues:    models.JSONMap{"version": version},
	})
	c.JSON(http.StatusOK, template)
}

// Deactivate retires a template from the catalog. Existing documents keep
// referring to it.
func (h *TemplateHandler) Deactivate(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.Template{}).
		Where("id = ?", templateID).
		Update("is_active", false)
	if result.Error != nil {
		respondError(c, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, services.ErrTemplateNotFound)
		return
	}

	admin := middleware.CurrentUser(c)
	h.usage.Audit(&models.AuditLog{
		UserID:       &admin.ID,
		Action:       "template_deactivated",
		ResourceType: "template",
		ResourceID:   &templateID,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Template deactivated"})
}
