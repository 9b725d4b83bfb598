package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/api/middleware"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/services"
)

type DocumentHandler struct {
	documents *services.DocumentService
	usage     *services.UsageService
	db        *gorm.DB
	logger    *zap.Logger
}

func NewDocumentHandler(
	documents *services.DocumentService,
	usage *services.UsageService,
	db *gorm.DB,
	logger *zap.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		usage:     usage,
		db:        db,
		logger:    logger.With(zap.String("handler", "documents")),
	}
}

type DocumentResponse struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	TemplateID      string                 `json:"template_id"`
	Status          models.DocumentStatus  `json:"status"`
	SignatureStatus models.SignatureStatus `json:"signature_status,omitempty"`
	EffectiveDate   *time.Time             `json:"effective_date,omitempty"`
	ExpirationDate  *time.Time             `json:"expiration_date,omitempty"`
	GoverningLaw    string                 `json:"governing_law,omitempty"`
	HasPDF          bool                   `json:"has_pdf"`
	HasDOCX         bool                   `json:"has_docx"`
	ViewCount       int                    `json:"view_count"`
	DownloadCount   int                    `json:"download_count"`
	SignedAt        *time.Time             `json:"signed_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func toDocumentResponse(d *models.Document) DocumentResponse {
	return DocumentResponse{
		ID:              d.ID.String(),
		Name:            d.Name,
		TemplateID:      d.TemplateID.String(),
		Status:          d.Status,
		SignatureStatus: d.SignatureStatus,
		EffectiveDate:   d.EffectiveDate,
		ExpirationDate:  d.ExpirationDate,
		GoverningLaw:    d.GoverningLaw,
		HasPDF:          d.PDFPath != "",
		HasDOCX:         d.DOCXPath != "",
		ViewCount:       d.ViewCount,
		DownloadCount:   d.DownloadCount,
		SignedAt:        d.SignedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// Generate starts document creation. The response carries the draft; the
// rendered files become available once status flips to generated.
func (h *DocumentHandler) Generate(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var input services.GenerateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}

	doc, err := h.documents.Generate(c.Request.Context(), user, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toDocumentResponse(doc))
}

func (h *DocumentHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.Document{}).
		Where("user_id = ?", user.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var docs []models.Document
	if err := query.Scopes(Paginate(c)).Order("created_at DESC").Find(&docs).Error; err != nil {
		respondError(c, err)
		return
	}

	responses := make([]DocumentResponse, len(docs))
	for i := range docs {
		responses[i] = toDocumentResponse(&docs[i])
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(c, responses, total))
}

func (h *DocumentHandler) Get(c *gin.Context) {
	user := middleware.CurrentUser(c)
	doc, ok := h.fetchOwned(c, user)
	if !ok {
		return
	}

	now := time.Now().UTC()
	if err := h.db.WithContext(c.Request.Context()).Model(doc).Updates(map[string]any{
		"view_count":    gorm.Expr("view_count + 1"),
		"last_accessed": now,
	}).Error; err != nil {
		h.logger.Debug("View tracking failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"document":           toDocumentResponse(doc),
		"data":               doc.Data,
		"disclosing_party":   doc.DisclosingParty,
		"receiving_party":    doc.ReceivingParty,
		"additional_parties": doc.AdditionalParties,
		"signers":            h.signerResponses(c, doc),
	})
}

type documentUpdateRequest struct {
	Name *string `json:"name"`
}

// Update renames a document. Content edits require regenerating; signed and
// completed documents are immutable.
func (h *DocumentHandler) Update(c *gin.Context) {
	user := middleware.CurrentUser(c)
	doc, ok := h.fetchOwned(c, user)
	if !ok {
		return
	}
	if doc.Locked() {
		respondError(c, services.ErrDocumentLocked)
		return
	}

	var req documentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if req.Name == nil || *req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(doc).Update("name", *req.Name).Error; err != nil {
		respondError(c, err)
		return
	}
	doc.Name = *req.Name
	c.JSON(http.StatusOK, toDocumentResponse(doc))
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	doc, ok := h.fetchOwned(c, user)
	if !ok {
		return
	}

	if err := h.documents.Delete(c.Request.Context(), doc); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}

// Download streams the rendered file. format=pdf (default) or format=docx.
func (h *DocumentHandler) Download(c *gin.Context) {
	user := middleware.CurrentUser(c)
	doc, ok := h.fetchOwned(c, user)
	if !ok {
		return
	}
	if !doc.IsGenerated() {
		respondError(c, services.ErrNotGenerated)
		return
	}

	path := doc.PDFPath
	filename := doc.Name + ".pdf"
	if c.DefaultQuery("format", "pdf") == "docx" {
		path = doc.DOCXPath
		filename = doc.Name + ".docx"
	}
	if path == "" {
		respondError(c, services.ErrNotGenerated)
		return
	}

	now := time.Now().UTC()
	if err := h.db.WithContext(c.Request.Context()).Model(doc).Updates(map[string]any{
		"download_count": gorm.Expr("download_count + 1"),
		"last_accessed":  now,
	}).Error; err != nil {
		h.logger.Debug("Download tracking failed", zap.Error(err))
	}
	h.usage.Record(user.ID, models.ActionDocumentDownload, &doc.ID, models.JSONMap{
		"format": c.DefaultQuery("format", "pdf"),
	})

	c.FileAttachment(path, filename)
}

type signatureRequest struct {
	Signers []services.SignerInput `json:"signers" binding:"required,dive"`
}

// SendSignature submits the document to the e-signature provider.
func (h *DocumentHandler) SendSignature(c *gin.Context) {
	user := middleware.CurrentUser(c)
	doc, ok := h.fetchOwned(c, user)
	if !ok {
		return
	}

	var req signatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.documents.SendForSignature(c.Request.Context(), user, doc, req.Signers); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message":     "Document sent for signature",
		"envelope_id": doc.EnvelopeID,
	})
}

// SignatureStatus reports the envelope state. Pending envelopes are
// reconciled against the provider first, so the response reflects
// signatures the callback has not delivered yet.
func (h *DocumentHandler) SignatureStatus(c *gin.Context) {
	user := middleware.CurrentUser(c)
	doc, ok := h.fetchOwned(c, user)
	if !ok {
		return
	}

	if err := h.documents.RefreshSignatureStatus(c.Request.Context(), doc); err != nil {
		h.logger.Warn("Signature status refresh failed",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"signature_status": doc.SignatureStatus,
		"envelope_id":      doc.EnvelopeID,
		"signed_at":        doc.SignedAt,
		"signers":          h.signerResponses(c, doc),
	})
}

type signerResponse struct {
	Name     string                 `json:"name"`
	Email    string                 `json:"email"`
	Role     string                 `json:"role,omitempty"`
	Status   models.SignatureStatus `json:"status"`
	SignedAt *time.Time             `json:"signed_at,omitempty"`
}

func (h *DocumentHandler) signerResponses(c *gin.Context, doc *models.Document) []signerResponse {
	var signers []models.Signer
	err := h.db.WithContext(c.Request.Context()).
		Where("document_id = ?", doc.ID).
		Order("created_at").
		Find(&signers).Error
	if err != nil {
		h.logger.Error("Signer lookup failed", zap.Error(err))
		return nil
	}

	responses := make([]signerResponse, len(signers))
	for i, s := range signers {
		responses[i] = signerResponse{
			Name:     s.Name,
			Email:    s.Email,
			Role:     s.Role,
			Status:   s.Status,
			SignedAt: s.SignedAt,
		}
	}
	return responses
}

func (h *DocumentHandler) fetchOwned(c *gin.Context, user *models.User) (*models.Document, bool) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return nil, false
	}

	doc, err := h.documents.FetchOwned(c.Request.Context(), user.ID, docID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return doc, true
}
