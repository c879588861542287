package utils

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/campusbbs/config"
)

// Mailer delivers a plain text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ErrSMTPNotConfigured is returned by SMTPMailer when host or sender is missing.
var ErrSMTPNotConfigured = errors.New("smtp not configured")

// SMTPMailer sends mail through the configured SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// NewSMTPMailer copies the SMTP settings out of cfg.
func NewSMTPMailer(cfg config.AppConfig) *SMTPMailer {
	return &SMTPMailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		TLS:      cfg.SMTPTLS,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.Host == "" || m.From == "" {
		return ErrSMTPNotConfigured
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	msg := m.compose(to, subject, body)

	if !m.TLS {
		return smtp.SendMail(addr, auth, m.From, []string{to}, msg)
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(15 * time.Second)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
			return err
		}
	}
	if m.Username != "" {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(m.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (m *SMTPMailer) compose(to, subject, body string) []byte {
	fromName := m.FromName
	if fromName == "" {
		fromName = "CampusBBS"
	}
	headers := []struct{ k, v string }{
		{"From", fmt.Sprintf("%s <%s>", encodeRFC2047(fromName), m.From)},
		{"To", to},
		{"Subject", encodeRFC2047(subject)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	}
	var msg strings.Builder
	for _, h := range headers {
		msg.WriteString(h.k + ": " + h.v + "\r\n")
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}

// encodeRFC2047 encodes a header value when it contains non-ASCII characters.
func encodeRFC2047(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 128 {
			return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
		}
	}
	return s
}

// LogMailer writes messages to the log instead of sending them. Used when no
// SMTP relay is configured.
type LogMailer struct {
	Logger *zap.Logger

	mu   sync.Mutex
	sent []SentMail
}

// SentMail is a message captured by LogMailer.
type SentMail struct {
	To, Subject, Body string
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	if m.Logger != nil {
		m.Logger.Info("mail not sent, smtp disabled", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	}
	m.mu.Lock()
	m.sent = append(m.sent, SentMail{To: to, Subject: subject, Body: body})
	m.mu.Unlock()
	return nil
}

// Sent returns the captured messages.
func (m *LogMailer) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.sent...)
}

// NewMailer returns an SMTPMailer when a relay is configured and a LogMailer otherwise.
func NewMailer(cfg config.AppConfig, logger *zap.Logger) Mailer {
	if cfg.SMTPHost == "" {
		return &LogMailer{Logger: logger}
	}
	return NewSMTPMailer(cfg)
}
