package config

import (
	"context"
	"crypto/tls"
	"errors"

	mail "github.com/go-mail/mail/v2"
)

var ErrSMTPNotConfigured = errors.New("smtp not configured (SMTP_HOST/SMTP_FROM)")

// SMTPMailer delivers HTML mail through the configured SMTP relay.
type SMTPMailer struct {
	host          string
	port          int
	user          string
	pass          string
	from          string
	skipTLSVerify bool
}

func NewSMTPMailer(cfg *Config) *SMTPMailer {
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	return &SMTPMailer{
		host:          cfg.SMTPHost,
		port:          port,
		user:          cfg.SMTPUser,
		pass:          cfg.SMTPPass,
		from:          cfg.SMTPFrom,
		skipTLSVerify: cfg.SMTPSkipTLSVerify,
	}
}

func (m *SMTPMailer) Configured() bool {
	return m != nil && m.host != "" && m.from != ""
}

// Verify dials and authenticates against the relay, then hangs up.
func (m *SMTPMailer) Verify(ctx context.Context) error {
	if !m.Configured() {
		return ErrSMTPNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := m.dialer().Dial()
	if err != nil {
		return err
	}
	return conn.Close()
}

func (m *SMTPMailer) dialer() *mail.Dialer {
	d := mail.NewDialer(m.host, m.port, m.user, m.pass)
	// Relays on 587 must upgrade with STARTTLS.
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         m.host,
		InsecureSkipVerify: m.skipTLSVerify,
	}
	return d
}

func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if !m.Configured() {
		return ErrSMTPNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	return m.dialer().DialAndSend(msg)
}
