package utils

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// Attachment est une pièce jointe binaire (ex: relevé PDF).
type Attachment struct {
	Name string
	Data []byte
}

// Mailer envoie un email HTML. Implémenté par SMTPMailer et par les faux des tests.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string, attachments ...Attachment) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer envoie les emails via go-mail.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string, attachments ...Attachment) error {
	if m.cfg.Host == "" {
		m.logger.Warn("⚠️ SMTP non configuré, email ignoré", "to", to, "subject", subject)
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("expéditeur invalide: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("destinataire invalide: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	for _, a := range attachments {
		msg.AttachReader(a.Name, bytes.NewReader(a.Data))
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("client SMTP: %w", err)
	}

	m.logger.Info("📤 Envoi de l'e-mail", "to", to, "subject", subject)
	return client.DialAndSendWithContext(ctx, msg)
}

// SendTemplated rend le gabarit puis envoie l'email.
func SendTemplated(ctx context.Context, mailer Mailer, to string, content EmailContent, attachments ...Attachment) error {
	html, err := RenderEmail(content)
	if err != nil {
		return err
	}
	return mailer.Send(ctx, to, content.Subject, html, attachments...)
}
