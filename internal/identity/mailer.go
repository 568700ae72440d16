package identity

import (
	"context"

	"github.com/LeeRoiii/Image-Vault/internal/logging"
)

// Message is an outbound account email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers account emails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the request logger instead of sending them.
// It is the development default and makes recovery links visible in the logs.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	logging.FromContext(ctx).Info("outbound email",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
