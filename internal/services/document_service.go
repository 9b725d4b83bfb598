package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/config"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/esign"
	"github.com/jahboukie/ndarite/internal/render"
	"github.com/jahboukie/ndarite/internal/utils"
	"github.com/jahboukie/ndarite/pkg/metrics"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTierRequired     = errors.New("template requires a higher subscription tier")
	ErrDocumentLimit    = errors.New("monthly document limit reached")
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentLocked   = errors.New("signed or completed documents cannot be modified")
	ErrNotGenerated     = errors.New("document must be generated before sending for signature")
	ErrNoSigners        = errors.New("at least one signer is required")
)

const dateLayout = "2006-01-02"

type PartyInput struct {
	Name    string `json:"name" binding:"required"`
	Title   string `json:"title"`
	Company string `json:"company"`
	Address string `json:"address"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
}

func (p PartyInput) toMap() models.JSONMap {
	return models.JSONMap{
		"name":    p.Name,
		"title":   p.Title,
		"company": p.Company,
		"address": p.Address,
		"email":   p.Email,
		"phone":   p.Phone,
	}
}

type GenerateInput struct {
	TemplateID     uuid.UUID         `json:"template_id" binding:"required"`
	Name           string            `json:"document_name" binding:"required"`
	Disclosing     PartyInput        `json:"disclosing_party" binding:"required"`
	Receiving      PartyInput        `json:"receiving_party" binding:"required"`
	Additional     []PartyInput      `json:"additional_parties"`
	EffectiveDate  string            `json:"effective_date"`
	ExpirationDate string            `json:"expiration_date"`
	GoverningLaw   string            `json:"governing_law"`
	Fields         map[string]string `json:"custom_fields"`
}

type SignerInput struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role"`
}

// DocumentService owns the generation pipeline: tier limit enforcement,
// template validation, persistence, rendering and signature routing.
type DocumentService struct {
	db      *gorm.DB
	cfg     *config.Configuration
	esign   *esign.Client
	mail    *MailService
	usage   *UsageService
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewDocumentService(
	db *gorm.DB,
	cfg *config.Configuration,
	esignClient *esign.Client,
	mail *MailService,
	usage *UsageService,
	logger *zap.Logger,
	collector *metrics.Collector,
) *DocumentService {
	return &DocumentService{
		db:      db,
		cfg:     cfg,
		esign:   esignClient,
		mail:    mail,
		usage:   usage,
		logger:  logger.With(zap.String("service", "document_service")),
		metrics: collector,
	}
}

// FieldError reports questionnaire fields the template requires but the
// request left empty.
type FieldError struct {
	Missing []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("missing required fields: %v", e.Missing)
}

// Generate validates access and inputs, persists the draft and kicks off
// rendering in the background. The returned document is in draft status;
// rendering flips it to generated (or error).
func (ds *DocumentService) Generate(ctx context.Context, user *models.User, input *GenerateInput) (*models.Document, error) {
	start := time.Now()
	defer func() {
		ds.metrics.ObserveLatency("documents.generate", time.Since(start))
	}()

	count, err := ds.usage.MonthlyDocumentCount(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if !user.CanCreateDocuments(count, ds.cfg.Tiers.DocumentLimits()) {
		return nil, ErrDocumentLimit
	}

	var template models.Template
	err = ds.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", input.TemplateID, true).
		First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	if !template.AccessibleTo(user.Tier) {
		return nil, ErrTierRequired
	}

	if missing := missingRequiredFields(&template, input.Fields); len(missing) > 0 {
		return nil, &FieldError{Missing: missing}
	}

	effective, err := parseOptionalDate(input.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("invalid effective_date: %w", err)
	}
	expiration, err := parseOptionalDate(input.ExpirationDate)
	if err != nil {
		return nil, fmt.Errorf("invalid expiration_date: %w", err)
	}

	data := models.JSONMap{
		"template_name": template.Name,
		"template_kind": string(template.Kind),
		"responses":     toAnyMap(input.Fields),
	}

	doc := &models.Document{
		UserID:          user.ID,
		TemplateID:      template.ID,
		Name:            input.Name,
		Data:            data,
		DisclosingParty: input.Disclosing.toMap(),
		ReceivingParty:  input.Receiving.toMap(),
		EffectiveDate:   effective,
		ExpirationDate:  expiration,
		GoverningLaw:    input.GoverningLaw,
		Status:          models.StatusDraft,
	}
	for _, p := range input.Additional {
		doc.AdditionalParties = append(doc.AdditionalParties, map[string]any(p.toMap()))
	}

	if err := ds.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	go ds.renderFiles(doc.ID, template.ID)

	ds.usage.Record(user.ID, models.ActionDocumentGenerated, &doc.ID, models.JSONMap{
		"template_id": template.ID.String(),
	})
	ds.metrics.Increment("documents.generated")

	ds.logger.Info("Document generation started",
		zap.String("document_id", doc.ID.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("template", template.Name))

	return doc, nil
}

// renderFiles produces the PDF and DOCX renditions and records their paths.
// Runs detached from the request.
func (ds *DocumentService) renderFiles(docID, templateID uuid.UUID) {
	var doc models.Document
	if err := ds.db.First(&doc, "id = ?", docID).Error; err != nil {
		ds.logger.Error("Render lookup failed", zap.String("document_id", docID.String()), zap.Error(err))
		return
	}
	var template models.Template
	if err := ds.db.First(&template, "id = ?", templateID).Error; err != nil {
		ds.logger.Error("Render template lookup failed", zap.String("document_id", docID.String()), zap.Error(err))
		return
	}

	agreement := ds.buildAgreement(&doc, &template)

	if err := os.MkdirAll(ds.cfg.Storage.DocumentDir, 0o755); err != nil {
		ds.failRender(&doc, err)
		return
	}

	pdfPath := filepath.Join(ds.cfg.Storage.DocumentDir, utils.SecureFilename(doc.Name+".pdf", doc.UserID.String()))
	if err := writeFile(pdfPath, func(f *os.File) error { return render.WritePDF(agreement, f) }); err != nil {
		ds.failRender(&doc, err)
		return
	}

	docxPath := filepath.Join(ds.cfg.Storage.DocumentDir, utils.SecureFilename(doc.Name+".docx", doc.UserID.String()))
	if err := writeFile(docxPath, func(f *os.File) error { return render.WriteDOCX(agreement, f) }); err != nil {
		ds.failRender(&doc, err)
		return
	}

	updates := map[string]any{
		"pdf_path":  pdfPath,
		"docx_path": docxPath,
		"status":    models.StatusGenerated,
	}
	if err := ds.db.Model(&doc).Updates(updates).Error; err != nil {
		ds.logger.Error("Failed to record rendered files", zap.String("document_id", doc.ID.String()), zap.Error(err))
		return
	}

	ds.metrics.Increment("documents.rendered")
	ds.logger.Info("Document rendered",
		zap.String("document_id", doc.ID.String()),
		zap.String("pdf", pdfPath))
}

func (ds *DocumentService) failRender(doc *models.Document, err error) {
	ds.logger.Error("Document rendering failed",
		zap.String("document_id", doc.ID.String()),
		zap.Error(err))
	ds.metrics.Increment("documents.render_errors")
	ds.db.Model(doc).Update("status", models.StatusError)
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (ds *DocumentService) buildAgreement(doc *models.Document, template *models.Template) *render.Agreement {
	agreement := &render.Agreement{
		DocumentID:   doc.ID.String(),
		Title:        doc.Name,
		Kind:         string(template.Kind),
		GoverningLaw: doc.GoverningLaw,
		Disclosing:   partyFromMap(doc.DisclosingParty),
		Receiving:    partyFromMap(doc.ReceivingParty),
		Fields:       responsesFromData(doc.Data),
		GeneratedAt:  time.Now().UTC().Format("January 2, 2006"),
	}
	if doc.EffectiveDate != nil {
		agreement.EffectiveDate = doc.EffectiveDate.Format("January 2, 2006")
	}
	if doc.ExpirationDate != nil {
		agreement.ExpirationDate = doc.ExpirationDate.Format("January 2, 2006")
	}
	for _, p := range doc.AdditionalParties {
		agreement.Additional = append(agreement.Additional, partyFromMap(p))
	}
	for _, c := range template.Clauses {
		agreement.Clauses = append(agreement.Clauses, render.Clause{
			Title: stringAt(c, "title"),
			Body:  stringAt(c, "body"),
		})
	}
	return agreement
}

// FetchOwned loads a document scoped to its owner.
func (ds *DocumentService) FetchOwned(ctx context.Context, userID, docID uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := ds.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", docID, userID).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete removes a document and its rendered files. Locked documents are
// refused.
func (ds *DocumentService) Delete(ctx context.Context, doc *models.Document) error {
	if doc.Locked() {
		return ErrDocumentLocked
	}

	for _, path := range []string{doc.PDFPath, doc.DOCXPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			ds.logger.Warn("Failed to remove rendered file",
				zap.String("path", path),
				zap.Error(err))
		}
	}

	return ds.db.WithContext(ctx).Select("Signers").Delete(doc).Error
}

// SendForSignature creates signer rows, submits an envelope to the provider
// and marks the document pending.
func (ds *DocumentService) SendForSignature(ctx context.Context, user *models.User, doc *models.Document, signerInputs []SignerInput) error {
	if doc.Status != models.StatusGenerated || doc.PDFPath == "" {
		return ErrNotGenerated
	}
	if len(signerInputs) == 0 {
		return ErrNoSigners
	}

	pdf, err := os.ReadFile(doc.PDFPath)
	if err != nil {
		return fmt.Errorf("failed to read rendered PDF: %w", err)
	}

	var recipients []esign.Recipient
	var signers []models.Signer
	for _, in := range signerInputs {
		signers = append(signers, models.Signer{
			DocumentID: doc.ID,
			Name:       in.Name,
			Email:      in.Email,
			Role:       in.Role,
			Status:     models.SignaturePending,
		})
		recipients = append(recipients, esign.Recipient{Name: in.Name, Email: in.Email})
	}

	envelopeID, err := ds.esign.CreateEnvelope(ctx, "Signature requested: "+doc.Name, doc.Name+".pdf", pdf, recipients)
	if err != nil {
		return fmt.Errorf("failed to create envelope: %w", err)
	}

	err = ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&signers).Error; err != nil {
			return err
		}
		return tx.Model(doc).Updates(map[string]any{
			"envelope_id":      envelopeID,
			"signature_status": models.SignaturePending,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to persist signature request: %w", err)
	}

	for i := range signers {
		if err := ds.mail.SendSignatureRequest(&signers[i], doc, user); err != nil {
			ds.logger.Warn("Signature mail failed",
				zap.String("signer", signers[i].Email),
				zap.Error(err))
		}
	}

	ds.usage.Record(user.ID, models.ActionSignatureSent, &doc.ID, models.JSONMap{
		"envelope_id": envelopeID,
		"signers":     len(signers),
	})
	ds.metrics.Increment("documents.signature_sent")

	ds.logger.Info("Document sent for signature",
		zap.String("document_id", doc.ID.String()),
		zap.String("envelope_id", envelopeID),
		zap.Int("signers", len(signers)))

	return nil
}

// SignerUpdate is one recipient state from the provider callback.
type SignerUpdate struct {
	Email    string
	Status   models.SignatureStatus
	SignedAt *time.Time
}

// SignatureStatusFromProvider maps the provider's recipient status strings
// onto local signature states.
func SignatureStatusFromProvider(status string) models.SignatureStatus {
	switch status {
	case "completed", "signed":
		return models.SignatureSigned
	case "declined":
		return models.SignatureDeclined
	case "autoresponded", "expired":
		return models.SignatureExpired
	}
	return models.SignaturePending
}

// RefreshSignatureStatus polls the provider for recipient state while an
// envelope is still out for signature and folds the result into the
// document. Terminal states and missing envelopes are served from storage.
func (ds *DocumentService) RefreshSignatureStatus(ctx context.Context, doc *models.Document) error {
	if !ds.esign.Enabled() || doc.EnvelopeID == "" || doc.SignatureStatus != models.SignaturePending {
		return nil
	}

	recipients, err := ds.esign.EnvelopeRecipients(ctx, doc.EnvelopeID)
	if err != nil {
		return fmt.Errorf("failed to poll envelope: %w", err)
	}

	updates := make([]SignerUpdate, 0, len(recipients))
	for _, r := range recipients {
		update := SignerUpdate{Email: r.Email, Status: SignatureStatusFromProvider(r.Status)}
		if r.SignedDateTime != "" {
			if t, err := time.Parse(time.RFC3339, r.SignedDateTime); err == nil {
				update.SignedAt = &t
			}
		}
		updates = append(updates, update)
	}

	if err := ds.ApplyEnvelopeUpdate(ctx, doc.EnvelopeID, updates); err != nil {
		return err
	}
	return ds.db.WithContext(ctx).First(doc, "id = ?", doc.ID).Error
}

// ApplyEnvelopeUpdate reconciles provider callback state into the document
// and signer rows. When every signer has signed, the document completes.
// Idempotent: replays converge to the same state.
func (ds *DocumentService) ApplyEnvelopeUpdate(ctx context.Context, envelopeID string, updates []SignerUpdate) error {
	var doc models.Document
	err := ds.db.WithContext(ctx).Where("envelope_id = ?", envelopeID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return err
	}

	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, update := range updates {
			changes := map[string]any{"status": update.Status}
			if update.SignedAt != nil {
				changes["signed_at"] = update.SignedAt
			}
			if err := tx.Model(&models.Signer{}).
				Where("document_id = ? AND email = ?", doc.ID, update.Email).
				Updates(changes).Error; err != nil {
				return err
			}
		}

		var pending int64
		if err := tx.Model(&models.Signer{}).
			Where("document_id = ? AND status <> ?", doc.ID, models.SignatureSigned).
			Count(&pending).Error; err != nil {
			return err
		}

		var declined int64
		if err := tx.Model(&models.Signer{}).
			Where("document_id = ? AND status = ?", doc.ID, models.SignatureDeclined).
			Count(&declined).Error; err != nil {
			return err
		}

		docChanges := map[string]any{}
		switch {
		case declined > 0:
			docChanges["signature_status"] = models.SignatureDeclined
		case pending == 0:
			now := time.Now().UTC()
			docChanges["signature_status"] = models.SignatureSigned
			docChanges["status"] = models.StatusCompleted
			docChanges["signed_at"] = now
		default:
			docChanges["signature_status"] = models.SignaturePending
		}

		if err := tx.Model(&doc).Updates(docChanges).Error; err != nil {
			return err
		}

		ds.logger.Info("Envelope update applied",
			zap.String("envelope_id", envelopeID),
			zap.Int64("pending", pending),
			zap.Int64("declined", declined))
		return nil
	})
}

func missingRequiredFields(template *models.Template, fields map[string]string) []string {
	var missing []string
	for _, name := range template.RequiredFields {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func parseOptionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toAnyMap(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func partyFromMap(m map[string]any) render.Party {
	return render.Party{
		Name:    stringAt(m, "name"),
		Title:   stringAt(m, "title"),
		Company: stringAt(m, "company"),
		Address: stringAt(m, "address"),
		Email:   stringAt(m, "email"),
		Phone:   stringAt(m, "phone"),
	}
}

func responsesFromData(data models.JSONMap) map[string]string {
	out := make(map[string]string)
	responses, _ := data["responses"].(map[string]any)
	for k, v := range responses {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func stringAt(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
