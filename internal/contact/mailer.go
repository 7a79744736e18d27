package contact

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/Zachkp/folio/internal/store"
)

var ErrSMTPNotConfigured = errors.New("SMTP credentials not configured")

type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	To   string
}

// Enabled reports whether enough is configured to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.User != "" && c.Pass != "" && c.To != ""
}

// Mailer emails new enquiries to the site owner.
type Mailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// Notify sends one enquiry. The visitor's address goes in Reply-To so the
// owner can answer directly.
func (m *Mailer) Notify(_ context.Context, msg store.ContactMessage) error {
	if !m.cfg.Enabled() {
		return ErrSMTPNotConfigured
	}
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.User, []string{m.cfg.To}, m.compose(msg)); err != nil {
		return fmt.Errorf("send contact mail: %w", err)
	}
	return nil
}

func (m *Mailer) compose(msg store.ContactMessage) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "New enquiry from your portfolio:\n\n")
	fmt.Fprintf(&b, "Name: %s\n", msg.Name)
	if msg.BusinessName != "" {
		fmt.Fprintf(&b, "Business: %s\n", msg.BusinessName)
	}
	fmt.Fprintf(&b, "Email: %s\n", msg.Email)
	if msg.WhatsApp != "" {
		fmt.Fprintf(&b, "WhatsApp: %s\n", msg.WhatsApp)
	}
	fmt.Fprintf(&b, "Project: %s\n\nMessage:\n%s\n", msg.ProjectType, msg.Message)

	headers := "To: " + m.cfg.To + "\r\n" +
		"Subject: " + headerSafe("Portfolio enquiry: "+msg.Name) + "\r\n" +
		"From: " + m.cfg.User + "\r\n" +
		"Reply-To: " + headerSafe(msg.Email) + "\r\n" +
		"\r\n"
	return []byte(headers + b.String() + "\r\n")
}

// headerSafe strips line breaks so form input cannot inject headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
