package services

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ErrEmailSimulated is returned by SMTPMailer when it only logged the message.
var ErrEmailSimulated = errors.New("email simulated: SMTP not configured")

// MailSender delivers one HTML email.
type MailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPMailer sends mail through an authenticated SMTP relay
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	breaker  *gobreaker.CircuitBreaker
	log      *logrus.Logger
}

// NewSMTPMailer creates a mailer. With no credentials it runs in
// development mode and only logs what it would have sent.
func NewSMTPMailer(host string, port int, username, password string, log *logrus.Logger) *SMTPMailer {
	// Quoted values are common in .env files
	password = strings.Trim(password, `"`)

	m := &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     username,
		breaker:  newBreaker("smtp", log),
		log:      log,
	}

	if !m.Configured() {
		log.WithFields(logrus.Fields{
			"host":     host,
			"username": username,
			"password": maskPassword(password),
		}).Warn("incomplete SMTP configuration, emails will be simulated")
	}
	return m
}

// Configured reports whether real delivery is possible.
func (m *SMTPMailer) Configured() bool {
	return m.host != "" && m.port > 0 && m.username != "" && m.password != ""
}

// Send delivers the message. When unconfigured it logs the message and
// returns ErrEmailSimulated.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.Configured() {
		m.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("email simulated (SMTP not configured)")
		return ErrEmailSimulated
	}

	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		m.from, to, subject, htmlBody)
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	_, err := m.breaker.Execute(func() (interface{}, error) {
		return nil, smtp.SendMail(addr, auth, m.from, []string{to}, []byte(message))
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Debug("email sent")
	return nil
}

func maskPassword(password string) string {
	if len(password) <= 4 {
		return strings.Repeat("*", len(password))
	}
	return password[:2] + strings.Repeat("*", len(password)-4) + password[len(password)-2:]
}
