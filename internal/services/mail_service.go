package services

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/jahboukie/ndarite/internal/config"
	"github.com/jahboukie/ndarite/internal/db/models"
)

// MailService sends transactional mail over SMTP. When SMTP is not
// configured it logs the intent and drops the message, so development
// environments work without a relay.
type MailService struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

func NewMailService(cfg config.MailConfig, logger *zap.Logger) *MailService {
	return &MailService{
		cfg:    cfg,
		logger: logger.With(zap.String("service", "mail_service")),
	}
}

func (ms *MailService) send(to, subject, htmlBody string) error {
	if !ms.cfg.Enabled() {
		ms.logger.Info("SMTP not configured, dropping mail",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", ms.cfg.FromEmail, ms.cfg.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	dialer := gomail.NewDialer(ms.cfg.SMTPHost, ms.cfg.SMTPPort, ms.cfg.SMTPUser, ms.cfg.SMTPPass)
	if err := dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	ms.logger.Info("Mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func (ms *MailService) SendVerification(user *models.User, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", ms.cfg.AppURL, token)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Confirm your NDARite account by following <a href=%q>this link</a>. The link expires in 48 hours.</p>",
		user.FirstName, link)
	return ms.send(user.Email, "Verify your NDARite account", body)
}

func (ms *MailService) SendPasswordReset(user *models.User, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", ms.cfg.AppURL, token)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>A password reset was requested for your account. Follow <a href=%q>this link</a> to choose a new password. The link expires in one hour. If you did not request this, ignore this mail.</p>",
		user.FirstName, link)
	return ms.send(user.Email, "Reset your NDARite password", body)
}

func (ms *MailService) SendSignatureRequest(signer *models.Signer, doc *models.Document, sender *models.User) error {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>%s has requested your signature on the agreement <strong>%s</strong>. You will receive a signing link from our e-signature provider shortly.</p>",
		signer.Name, sender.FullName(), doc.Name)
	return ms.send(signer.Email, "Signature requested: "+doc.Name, body)
}
