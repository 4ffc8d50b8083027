package mail

import "context"

type Email struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one email. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, email Email) error
}
