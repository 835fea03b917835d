package email

import (
	"context"
	"time"

	"techo_backend/platform/config"
)

// VisitItem is one incidence listed in a technician's visit digest.
type VisitItem struct {
	Category  string
	Address   string
	Priority  string
	IdleSince time.Time
	URL       string
}

// Sender delivers the transactional e-mails of the maintenance workflow.
type Sender interface {
	SendAssignmentNotice(ctx context.Context, toEmail, technicianName, category, incidenceURL string) error
	SendRatingInvitation(ctx context.Context, toEmail, beneficiaryName, category, ratingURL string) error
	SendPosventaReviewed(ctx context.Context, toEmail, beneficiaryName, verdict, formURL string) error
	SendVisitDigest(ctx context.Context, toEmail, technicianName, date string, visits []VisitItem) error
}

// NoopSender discards every message. It is used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendAssignmentNotice(context.Context, string, string, string, string) error {
	return nil
}

func (NoopSender) SendRatingInvitation(context.Context, string, string, string, string) error {
	return nil
}

func (NoopSender) SendPosventaReviewed(context.Context, string, string, string, string) error {
	return nil
}

func (NoopSender) SendVisitDigest(context.Context, string, string, string, []VisitItem) error {
	return nil
}

var _ Sender = NoopSender{}

// NewSender returns an SMTP sender, or a NoopSender when e-mail is disabled.
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
