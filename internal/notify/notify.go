// Package notify carries best-effort user notifications. The engine
// treats delivery as fire-and-forget: a failed notification is logged
// by the caller and never affects committed ledger state.
package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

// SMTPNotifier sends plain-text mail through a single SMTP relay.
type SMTPNotifier struct {
	addr string // host:port
	from string
	auth smtp.Auth
}

// NewSMTP builds a notifier for the given relay. username may be empty
// for unauthenticated relays.
func NewSMTP(host string, port int, from, username, password string) *SMTPNotifier {
	n := &SMTPNotifier{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
	}
	if username != "" {
		n.auth = smtp.PlainAuth("", username, password, host)
	}
	return n
}

// Notify implements ledger.Notifier.
func (n *SMTPNotifier) Notify(ctx context.Context, email, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", n.from, email, subject, body)
	if err := smtp.SendMail(n.addr, n.auth, n.from, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("Notify: send to %s: %w", email, err)
	}
	return nil
}

// LogNotifier writes notifications to the log instead of delivering
// them. Used when no relay is configured and in tests.
type LogNotifier struct {
	Log zerolog.Logger
}

// Notify implements ledger.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, email, subject, body string) error {
	n.Log.Info().
		Str("email", email).
		Str("subject", subject).
		Msg("notification (log only)")
	return nil
}
