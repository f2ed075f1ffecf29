// Package mail defines the email delivery boundary. Actual delivery (SMTP,
// a transactional provider) is an external collaborator; the server only
// needs a way to hand a magic link off for sending.
package mail

import (
	"context"

	"github.com/mkorchagin/onboardchat/internal/logging"
)

// Mailer delivers a magic link to an email address.
type Mailer interface {
	SendMagicLink(ctx context.Context, email, link string) error
}

// LogMailer writes the link to the log instead of sending mail.
// Development only: the raw link ends up in the log output.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "mail")}
}

func (m *LogMailer) SendMagicLink(ctx context.Context, email, link string) error {
	m.logger.Info(ctx, "magic link ready for delivery", "email", email, "link", link)
	return nil
}
