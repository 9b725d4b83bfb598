// Package esign is the REST client for the e-signature provider. The
// provider owns the signing ceremony; this client only creates envelopes
// and reads recipient status.
package esign

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/jahboukie/ndarite/internal/config"
)

var ErrDisabled = errors.New("e-signature provider not configured")

type Client struct {
	http      *resty.Client
	accountID string
	enabled   bool
	logger    *zap.Logger
}

func NewClient(cfg config.ESignConfig, logger *zap.Logger) *Client {
	client := &Client{
		accountID: cfg.AccountID,
		enabled:   cfg.Enabled(),
		logger:    logger.With(zap.String("service", "esign")),
	}
	if !client.enabled {
		client.logger.Warn("E-signature provider not configured, envelopes disabled")
		return client
	}

	client.http = resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return client
}

func (c *Client) Enabled() bool {
	return c.enabled
}

type Recipient struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	RecipientID    string `json:"recipientId"`
	RoutingOrder   string `json:"routingOrder"`
	Status         string `json:"status,omitempty"`
	SignedDateTime string `json:"signedDateTime,omitempty"`
}

type envelopeDocument struct {
	DocumentBase64 string `json:"documentBase64"`
	Name           string `json:"name"`
	FileExtension  string `json:"fileExtension"`
	DocumentID     string `json:"documentId"`
}

type envelopeRequest struct {
	EmailSubject string             `json:"emailSubject"`
	Documents    []envelopeDocument `json:"documents"`
	Recipients   struct {
		Signers []Recipient `json:"signers"`
	} `json:"recipients"`
	Status string `json:"status"`
}

type envelopeResponse struct {
	EnvelopeID string `json:"envelopeId"`
	Status     string `json:"status"`
}

type errorResponse struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// CreateEnvelope submits a PDF for signature and returns the provider's
// envelope id. The envelope is sent immediately.
func (c *Client) CreateEnvelope(ctx context.Context, subject, documentName string, pdf []byte, recipients []Recipient) (string, error) {
	if !c.enabled {
		return "", ErrDisabled
	}

	req := envelopeRequest{
		EmailSubject: subject,
		Documents: []envelopeDocument{{
			DocumentBase64: base64.StdEncoding.EncodeToString(pdf),
			Name:           documentName,
			FileExtension:  "pdf",
			DocumentID:     "1",
		}},
		Status: "sent",
	}
	for i, r := range recipients {
		r.RecipientID = fmt.Sprintf("%d", i+1)
		r.RoutingOrder = "1"
		req.Recipients.Signers = append(req.Recipients.Signers, r)
	}

	var result envelopeResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post(fmt.Sprintf("/v2.1/accounts/%s/envelopes", c.accountID))
	if err != nil {
		return "", fmt.Errorf("envelope request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("envelope rejected (%d): %s", resp.StatusCode(), apiErr.Message)
	}

	c.logger.Info("Envelope created",
		zap.String("envelope_id", result.EnvelopeID),
		zap.Int("recipients", len(recipients)))

	return result.EnvelopeID, nil
}

type recipientsResponse struct {
	Signers []Recipient `json:"signers"`
}

// EnvelopeRecipients reads the signer status list of an envelope.
func (c *Client) EnvelopeRecipients(ctx context.Context, envelopeID string) ([]Recipient, error) {
	if !c.enabled {
		return nil, ErrDisabled
	}

	var result recipientsResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&apiErr).
		Get(fmt.Sprintf("/v2.1/accounts/%s/envelopes/%s/recipients", c.accountID, envelopeID))
	if err != nil {
		return nil, fmt.Errorf("recipient status request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("recipient status rejected (%d): %s", resp.StatusCode(), apiErr.Message)
	}
	return result.Signers, nil
}
