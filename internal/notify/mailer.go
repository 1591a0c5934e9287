// Package notify delivers alert and report emails over SMTP. A nil *Mailer
// is valid and drops every message, which is how the daemon runs when no
// SMTP host is configured.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config carries the SMTP endpoint and envelope addresses.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// Breaker tuning: after three consecutive failed deliveries stop trying for
// five minutes.
const (
	breakerFailures = 3
	breakerOpenTime = 5 * time.Minute
	breakerInterval = time.Minute
)

type Mailer struct {
	cfg    Config
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg Config, logger *zap.Logger) *Mailer {
	return &Mailer{
		cfg: cfg,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "smtp",
			Interval: breakerInterval,
			Timeout:  breakerOpenTime,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= breakerFailures
			},
		}),
		logger: logger,
		send:   smtp.SendMail,
	}
}

// Send delivers one plain-text message to all configured recipients.
func (m *Mailer) Send(subject, body string) error {
	if m == nil {
		return nil
	}
	msg := m.compose(subject, body)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	_, err := m.cb.Execute(func() (any, error) {
		return nil, m.send(addr, auth, m.cfg.From, m.cfg.To, msg)
	})
	if err != nil {
		m.logger.Warn("mail delivery failed",
			zap.String("subject", subject), zap.Error(err))
		return err
	}
	m.logger.Debug("mail sent", zap.String("subject", subject),
		zap.Strings("to", m.cfg.To))
	return nil
}

func (m *Mailer) compose(subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
