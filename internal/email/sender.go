// Package email delivers notification emails over SMTP.
package email

import (
	"context"

	"marketplace_backend/platform/config"
)

// Message is one rendered notification email.
type Message struct {
	Subject  string
	Heading  string
	Body     string
	CTALabel string
	CTAURL   string
}

// Sender delivers notification emails.
type Sender interface {
	SendNotificationEmail(ctx context.Context, toEmail string, msg Message) error
}

// NoopSender drops every email. Used when email is disabled.
type NoopSender struct{}

func (NoopSender) SendNotificationEmail(ctx context.Context, toEmail string, msg Message) error {
	return nil
}

// NewSender returns an SMTP sender when email is enabled, otherwise a NoopSender.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}
