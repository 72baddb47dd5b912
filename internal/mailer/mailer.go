// Package mailer delivers one-time passcodes to signers. The SMTP sender is
// the production path; the dev sender stands in when no mail host is
// configured, in which case the signing service returns the code directly to
// the caller instead.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// Sender is the outbound email capability used by the signing protocol.
type Sender interface {
	SendOtp(ctx context.Context, address, code string) error
}

// SMTPSender delivers codes through a plain SMTP relay.
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPSender(host, port, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *SMTPSender) SendOtp(_ context.Context, address, code string) error {
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Your signing code\r\n\r\n"+
		"Your one-time signing code is %s. It expires in 10 minutes.\r\n",
		s.from, address, code)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	addr := s.host + ":" + s.port
	if err := smtp.SendMail(addr, auth, s.from, []string{address}, []byte(body)); err != nil {
		return fmt.Errorf("failed to send otp email: %w", err)
	}
	return nil
}

// DevSender logs the code instead of dispatching it. For environments without
// a configured mail sender.
type DevSender struct {
	logger *zap.Logger
}

func NewDevSender(logger *zap.Logger) *DevSender {
	return &DevSender{logger: logger}
}

func (s *DevSender) SendOtp(_ context.Context, address, code string) error {
	s.logger.Info("otp issued in development mode, not dispatched",
		zap.String("address", address),
		zap.String("code", code))
	return nil
}
