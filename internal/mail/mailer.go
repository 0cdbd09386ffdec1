package mail

import (
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"nasmon/internal/config"
	"nasmon/internal/models"
)

// Mailer delivers immediate alert emails.
type Mailer interface {
	Send(msg models.MailMessage) error
}

// SmtpMailer sends through the configured relay. Recipients default to
// the operator addresses from config when the payload names none.
type SmtpMailer struct {
	cfg config.SmtpConfig
}

func NewSmtpMailer(cfg config.SmtpConfig) *SmtpMailer {
	return &SmtpMailer{cfg: cfg}
}

func (m *SmtpMailer) Send(msg models.MailMessage) error {
	to := msg.To
	if len(to) == 0 {
		to = m.cfg.To
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients for mail %q", msg.Subject)
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.cfg.From, strings.Join(to, ", "), msg.Subject, msg.Body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, to, []byte(body)); err != nil {
		return fmt.Errorf("failed to send mail %q: %w", msg.Subject, err)
	}

	return nil
}

// MemoryMailer records messages in memory; used in tests.
type MemoryMailer struct {
	mu       sync.Mutex
	Messages []models.MailMessage
}

func NewMemoryMailer() *MemoryMailer {
	return &MemoryMailer{}
}

func (m *MemoryMailer) Send(msg models.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msg)
	return nil
}
