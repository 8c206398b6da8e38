// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

// Package mail delivers credential notices over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/hpms/hpms/internal/auth"
)

// Default SMTP endpoint.
const (
	DefaultHost = "smtp.gmail.com"
	DefaultPort = 587
)

const (
	dialTimeout = 10 * time.Second
	// sessionTimeout bounds the whole SMTP conversation after connect.
	sessionTimeout = 30 * time.Second
)

// Settings configures an SMTPMailer.
type Settings struct {
	Host     string
	Port     int
	Username string
	Password string
	// From defaults to Username.
	From     string
	StartTLS bool
}

// client is the subset of *smtp.Client used for one delivery.
type client interface {
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

type dialFunc func(ctx context.Context, addr, host string) (client, error)

// SMTPMailer implements auth.Mailer over SMTP with STARTTLS and PLAIN auth.
// It refuses to send when no credentials are configured.
type SMTPMailer struct {
	settings Settings
	logger   *slog.Logger
	dial     dialFunc
}

var _ auth.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates an SMTPMailer. A nil logger discards output.
func NewSMTPMailer(s Settings, logger *slog.Logger) *SMTPMailer {
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.From == "" {
		s.From = s.Username
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SMTPMailer{settings: s, logger: logger, dial: dialSMTP}
}

// Configured reports whether credentials are present.
func (m *SMTPMailer) Configured() bool {
	return m.settings.Username != "" && m.settings.Password != ""
}

// SendEmail delivers an HTML message to a single recipient.
func (m *SMTPMailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if !m.Configured() {
		return oops.Code("SMTP_NOT_CONFIGURED").
			Errorf("email credentials not configured")
	}
	to = strings.TrimSpace(to)
	if to == "" || strings.ContainsAny(to, "\r\n") {
		return oops.Code("SMTP_BAD_RECIPIENT").With("to", to).Errorf("invalid recipient")
	}

	addr := net.JoinHostPort(m.settings.Host, strconv.Itoa(m.settings.Port))
	c, err := m.dial(ctx, addr, m.settings.Host)
	if err != nil {
		return oops.Code("SMTP_DIAL_FAILED").With("addr", addr).Wrap(err)
	}
	defer c.Close() //nolint:errcheck // Quit already reported the outcome

	if err := m.deliver(c, to, subject, htmlBody); err != nil {
		return oops.With("addr", addr).With("to", to).Wrap(err)
	}
	m.logger.InfoContext(ctx, "email sent", "to", to, "subject", subject)
	return nil
}

func (m *SMTPMailer) deliver(c client, to, subject, htmlBody string) error {
	if m.settings.StartTLS {
		if err := c.StartTLS(&tls.Config{ServerName: m.settings.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return oops.Code("SMTP_STARTTLS_FAILED").Wrap(err)
		}
	}
	creds := smtp.PlainAuth("", m.settings.Username, m.settings.Password, m.settings.Host)
	if err := c.Auth(creds); err != nil {
		return oops.Code("SMTP_AUTH_FAILED").Wrap(err)
	}
	if err := c.Mail(m.settings.From); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "mail").Wrap(err)
	}
	if err := c.Rcpt(to); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "rcpt").Wrap(err)
	}
	w, err := c.Data()
	if err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "data").Wrap(err)
	}
	if _, err := io.WriteString(w, buildMessage(m.settings.From, to, subject, htmlBody)); err != nil {
		_ = w.Close() //nolint:errcheck // write error takes precedence
		return oops.Code("SMTP_SEND_FAILED").With("stage", "write").Wrap(err)
	}
	if err := w.Close(); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "data").Wrap(err)
	}
	if err := c.Quit(); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "quit").Wrap(err)
	}
	return nil
}

func buildMessage(from, to, subject, htmlBody string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return b.String()
}

func dialSMTP(ctx context.Context, addr, host string) (client, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(sessionDeadline(ctx, time.Now())); err != nil {
		_ = conn.Close() //nolint:errcheck // deadline error takes precedence
		return nil, err
	}
	// Cancellation interrupts any blocked read or write on the session.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0)) //nolint:errcheck // conn may already be closed
	})
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		stop()
		_ = conn.Close() //nolint:errcheck // handshake error takes precedence
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return &boundClient{Client: c, stop: stop}, nil
}

// sessionDeadline is the earlier of the context deadline and now plus
// sessionTimeout.
func sessionDeadline(ctx context.Context, now time.Time) time.Time {
	deadline := now.Add(sessionTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

// boundClient releases the cancellation hook when the session closes.
type boundClient struct {
	*smtp.Client
	stop func() bool
}

func (c *boundClient) Close() error {
	c.stop()
	return c.Client.Close()
}
