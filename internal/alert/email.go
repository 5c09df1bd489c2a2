package alert

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"medivault.org/internal/obs"
)

// EmailConfig configures SMTP delivery for the security team channel.
type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	From     string
	FromPass string
	To       []string
}

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	client *mail.Client
	from   string
	to     []string
}

var _ Sender = (*EmailSender)(nil)

func NewEmailSender(cfg EmailConfig) (*EmailSender, error) {
	client, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.From),
		mail.WithPassword(cfg.FromPass),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("alert: create mail client: %w", err)
	}
	return &EmailSender{client: client, from: cfg.From, to: cfg.To}, nil
}

func (s *EmailSender) Send(ctx context.Context, n Notification) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return err
	}
	if err := msg.To(s.to...); err != nil {
		return err
	}
	msg.Subject(fmt.Sprintf("[%s] compliance violation: %s", n.Severity, n.ViolationType))
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Violation: %s\nSeverity:  %s\nIdentity:  %s\nResource:  %s\nWhen:      %s\n\n%s\n\nRemediation: %s\n",
		n.ViolationType, n.Severity, n.Identity, n.ResourceID,
		n.OccurredAt.Format("2006-01-02 15:04:05 MST"), n.Description, n.Remediation))
	return s.client.DialAndSendWithContext(ctx, msg)
}

// LogSender writes notifications to the operational log. Used when no SMTP
// channel is configured.
type LogSender struct {
	log *zap.Logger
}

var _ Sender = (*LogSender)(nil)

func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = obs.Logger()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, n Notification) error {
	s.log.Warn("compliance alert",
		zap.String("violation_type", n.ViolationType),
		zap.String("severity", n.Severity),
		zap.String("identity", n.Identity),
		zap.String("resource_id", n.ResourceID),
		zap.Time("occurred_at", n.OccurredAt),
		zap.String("description", n.Description),
		zap.String("remediation", n.Remediation))
	return nil
}
