// Package smtp implements domain.Notifier over an authenticated, implicitly
// encrypted SMTP relay.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/textproto"
	"strings"
	"time"

	"github.com/couchcryptid/yard-weather-service/internal/domain"
	"github.com/wneessen/go-mail"
)

// Settings describes the outbound relay. Username doubles as the From address.
type Settings struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// sender is the part of *mail.Client the notifier uses.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Notifier sends one HTML message per report. It does not retry or queue.
type Notifier struct {
	from   string
	client sender
	logger *slog.Logger
}

// NewNotifier creates a notifier for the relay. Port 465 uses implicit TLS;
// any other port requires STARTTLS. The configured port is used as given.
func NewNotifier(s Settings, logger *slog.Logger) (*Notifier, error) {
	opts := []mail.Option{
		mail.WithPort(s.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.Username),
		mail.WithPassword(s.Password),
		mail.WithTimeout(s.Timeout),
	}
	if s.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(s.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &Notifier{from: s.Username, client: client, logger: logger}, nil
}

// Send delivers the report. Rejected credentials wrap domain.ErrAuthentication;
// every other failure, including a malformed recipient, wraps domain.ErrDelivery.
func (n *Notifier) Send(ctx context.Context, report domain.Report) error {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("%w: invalid sender address: %v", domain.ErrDelivery, err)
	}
	if err := msg.To(report.To); err != nil {
		return fmt.Errorf("%w: invalid recipient address %q: %v", domain.ErrDelivery, report.To, err)
	}
	msg.Subject(report.Subject)
	msg.SetBodyString(mail.TypeTextHTML, report.Body)

	n.logger.Debug("sending report", "to", report.To, "kind", report.Kind)
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		if isAuthFailure(err) {
			return fmt.Errorf("%w: authentication failed, check the sender email and app password: %v", domain.ErrAuthentication, err)
		}
		return fmt.Errorf("%w: failed to send email: %v", domain.ErrDelivery, err)
	}
	n.logger.Info("report sent", "to", report.To, "kind", report.Kind)
	return nil
}

// isAuthFailure reports whether the relay rejected the credentials
// (SMTP 530, 534 or 535).
func isAuthFailure(err error) bool {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case 530, 534, 535:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SMTP AUTH failed") || strings.Contains(msg, "535 ")
}
