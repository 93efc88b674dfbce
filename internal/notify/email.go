package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	domainerrors "github.com/add0794/automated-file-mover/internal/errors"
)

// Email sends notifications through an SMTP server over implicit TLS,
// the scheme used by smtp.gmail.com:465.
type Email struct {
	host      string
	port      int
	sender    string
	password  string
	recipient string
	logger    *slog.Logger

	// Seam for tests
	sendFn func(ctx context.Context, msg []byte) error
}

// NewEmail creates an email sink. Credentials come from the environment
// (EMAIL_SENDER, EMAIL_PASSWORD) via config.
func NewEmail(host string, port int, sender, password, recipient string, logger *slog.Logger) *Email {
	e := &Email{
		host:      host,
		port:      port,
		sender:    sender,
		password:  password,
		recipient: recipient,
		logger:    logger,
	}
	e.sendFn = e.sendSMTP
	return e
}

// Name identifies the sink.
func (e *Email) Name() string { return "email" }

// Send delivers the message to the configured recipient.
func (e *Email) Send(ctx context.Context, msg Message) error {
	raw := buildMIME(e.sender, e.recipient, msg, time.Now())
	if err := e.sendFn(ctx, raw); err != nil {
		return err
	}
	e.logger.Debug("email sent", "to", e.recipient, "subject", msg.Subject)
	return nil
}

// sendSMTP opens a TLS connection, authenticates, and submits the message.
func (e *Email) sendSMTP(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(e.host, strconv.Itoa(e.port))

	dialer := tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 10 * time.Second},
		Config:    &tls.Config{ServerName: e.host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeUnavailable, "connecting to %s", addr)
	}

	client, err := smtp.NewClient(conn, e.host)
	if err != nil {
		conn.Close()
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "smtp handshake failed")
	}
	defer client.Close()

	auth := smtp.PlainAuth("", e.sender, e.password, e.host)
	if err := client.Auth(auth); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "smtp authentication failed")
	}

	if err := client.Mail(e.sender); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "smtp MAIL failed")
	}
	if err := client.Rcpt(e.recipient); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "smtp RCPT failed")
	}

	w, err := client.Data()
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "smtp DATA failed")
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "writing message body")
	}
	if err := w.Close(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "finishing message body")
	}

	return client.Quit()
}

// buildMIME renders a plain-text RFC 5322 message with CRLF line endings.
func buildMIME(from, to string, msg Message, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
