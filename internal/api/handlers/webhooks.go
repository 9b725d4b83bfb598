package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/jahboukie/ndarite/internal/services"
)

// Payloads above this size are rejected before signature verification.
const maxWebhookBody = 1 << 16

// ESignSignatureHeader carries the provider's HMAC-SHA256 of the callback
// body, base64 encoded.
const ESignSignatureHeader = "X-ESign-Signature"

type WebhookHandler struct {
	billing      *services.BillingService
	documents    *services.DocumentService
	stripeSecret string
	esignSecret  string
	logger       *zap.Logger
}

func NewWebhookHandler(
	billing *services.BillingService,
	documents *services.DocumentService,
	stripeSecret string,
	esignSecret string,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		billing:      billing,
		documents:    documents,
		stripeSecret: stripeSecret,
		esignSecret:  esignSecret,
		logger:       logger.With(zap.String("handler", "webhooks")),
	}
}

// Stripe verifies the event signature and applies billing state changes.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable payload"})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.stripeSecret)
	if err != nil {
		h.logger.Warn("Stripe signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	if err := h.billing.ApplyStripeEvent(c.Request.Context(), &event); err != nil {
		h.logger.Error("Stripe event failed",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
		// Non-2xx makes Stripe retry the delivery.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Event processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

type esignCallbackRecipient struct {
	Email    string `json:"email"`
	Status   string `json:"status"`
	SignedAt string `json:"signedDateTime"`
}

type esignCallback struct {
	EnvelopeID string                   `json:"envelopeId"`
	Status     string                   `json:"status"`
	Recipients []esignCallbackRecipient `json:"recipients"`
}

// ESign receives envelope status callbacks from the signature provider.
// Each callback carries an HMAC of the body; unverifiable ones are refused.
func (h *WebhookHandler) ESign(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable payload"})
		return
	}

	if !h.verifyESignSignature(payload, c.GetHeader(ESignSignatureHeader)) {
		h.logger.Warn("E-sign signature verification failed",
			zap.String("remote_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var callback esignCallback
	if err := json.Unmarshal(payload, &callback); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed payload"})
		return
	}
	if callback.EnvelopeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing envelope id"})
		return
	}

	updates := make([]services.SignerUpdate, 0, len(callback.Recipients))
	for _, r := range callback.Recipients {
		update := services.SignerUpdate{
			Email:  r.Email,
			Status: services.SignatureStatusFromProvider(r.Status),
		}
		if r.SignedAt != "" {
			if t, err := time.Parse(time.RFC3339, r.SignedAt); err == nil {
				update.SignedAt = &t
			}
		}
		updates = append(updates, update)
	}

	if err := h.documents.ApplyEnvelopeUpdate(c.Request.Context(), callback.EnvelopeID, updates); err != nil {
		if err == services.ErrDocumentNotFound {
			// Unknown envelopes are acknowledged so the provider stops
			// retrying deliveries for documents we no longer hold.
			h.logger.Warn("Callback for unknown envelope",
				zap.String("envelope_id", callback.EnvelopeID))
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		h.logger.Error("Envelope update failed",
			zap.String("envelope_id", callback.EnvelopeID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Callback processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// verifyESignSignature checks the provider's HMAC-SHA256 of the raw body.
// An unset shared secret fails every callback closed.
func (h *WebhookHandler) verifyESignSignature(payload []byte, signature string) bool {
	if h.esignSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.esignSecret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
