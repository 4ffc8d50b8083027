package mail

import (
	"context"

	"meistro/pkg/logger"
)

// ConsoleSender logs mail instead of delivering it. Used in development and
// when no SMTP relay is configured.
type ConsoleSender struct {
	log *logger.Logger
}

func NewConsoleSender(log *logger.Logger) *ConsoleSender {
	return &ConsoleSender{log: log}
}

func (s *ConsoleSender) Send(ctx context.Context, email Email) error {
	s.log.Info("Email (console sender)",
		"to", email.To,
		"subject", email.Subject,
		"body", email.Body,
	)
	return nil
}
