package email

import (
	"github.com/openon-app/capsule-api/internal/config"
	"github.com/openon-app/capsule-api/pkg/logger"
	"gopkg.in/gomail.v2"
)

// Sender delivers a single message to one address.
type Sender interface {
	Send(to, subject, body string) error
}

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

type noopSender struct {
	logger *logger.Logger
}

// NewSender builds an SMTP sender from config. When email is disabled
// it returns a sender that only logs, so the dispatcher's flow stays
// identical in environments without an SMTP relay.
func NewSender(cfg config.EmailConfig, logger *logger.Logger) Sender {
	if !cfg.Enabled {
		return &noopSender{logger: logger}
	}
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}

func (s *noopSender) Send(to, subject, body string) error {
	s.logger.ZL.Debug().Str("to", to).Str("subject", subject).Msg("email delivery disabled, skipping")
	return nil
}
