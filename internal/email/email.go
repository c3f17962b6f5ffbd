package email

import (
	"fmt"
	"net/smtp"

	"parcelpoint.app/cloud/internal/config"
	"parcelpoint.app/cloud/internal/logger"
)

// Mailer sends plain-text notification mail over SMTP. Sending is a
// best-effort side path everywhere it is used; callers log failures
// instead of propagating them.
type Mailer struct {
	host string
	port string
	user string
	pass string
	from string
}

func NewMailer(cfg *config.Config) *Mailer {
	if !cfg.EmailEnabled() {
		return nil
	}
	return &Mailer{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: cfg.EmailFrom,
	}
}

func (m *Mailer) Send(to, subject, body string) error {
	if m == nil {
		logger.Warn("email not configured, dropping message", map[string]any{
			"to":      to,
			"subject": subject,
		})
		return fmt.Errorf("email not configured")
	}

	auth := smtp.PlainAuth("", m.user, m.pass, m.host)

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", m.from, to, subject, body))

	addr := fmt.Sprintf("%s:%s", m.host, m.port)
	return smtp.SendMail(addr, auth, m.from, []string{to}, msg)
}
