package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/classbridge/billing-renewals/internal/renewal"
	"github.com/classbridge/billing-renewals/pkg/config"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier mails the summary to the operator over SMTP.
type EmailNotifier struct {
	sender mailSender
	from   string
	to     string
}

func NewEmailNotifier(cfg config.NotifyConfig) (*EmailNotifier, error) {
	if !cfg.EmailEnabled() {
		return nil, errors.New("smtp host and operator email are required")
	}
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	return newEmailNotifier(dialer, cfg.FromEmail, cfg.OperatorEmail), nil
}

func newEmailNotifier(sender mailSender, from, to string) *EmailNotifier {
	return &EmailNotifier{sender: sender, from: strings.TrimSpace(from), to: strings.TrimSpace(to)}
}

func (n *EmailNotifier) NotifyRunSummary(ctx context.Context, summary renewal.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to)
	m.SetHeader("Subject", Subject(summary))
	m.SetBody("text/plain", Body(summary))
	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send renewal summary to %s: %w", n.to, err)
	}
	return nil
}
