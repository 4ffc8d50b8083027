package mail

import (
	"fmt"
	"net/smtp"
	"strings"

	"context"
)

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(addr string, from string) *SMTPSender {
	return &SMTPSender{
		addr: addr,
		from: from,
	}
}

func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return fmt.Errorf("email recipient cannot be empty")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", email.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", email.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(email.Body)

	if err := smtp.SendMail(s.addr, nil, s.from, []string{email.To}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", email.To, err)
	}
	return nil
}
