// internal/pkg/email/smtp.go
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/your-org/marketplace-api/internal/config"
)

type smtpSender struct {
	config config.EmailConfig
}

// Send delivers the message over SMTP, using implicit TLS when configured
func (s *smtpSender) Send(ctx context.Context, msg *Message) error {
	if s.config.SMTPHost == "" || s.config.SMTPUser == "" {
		return fmt.Errorf("SMTP configuration incomplete: missing host or username")
	}

	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPass, s.config.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	body := buildMIME(s.config, msg)

	if !s.config.SMTPUseTLS {
		return smtp.SendMail(addr, auth, s.config.FromEmail, msg.To, body)
	}

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.config.SMTPHost}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create TLS connection: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	return s.deliver(conn, auth, msg.To, body)
}

func (s *smtpSender) deliver(conn net.Conn, auth smtp.Auth, to []string, body []byte) error {
	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(s.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", addr, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to send DATA command: %w", err)
	}
	if _, err := writer.Write(body); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write email content: %w", err)
	}
	return writer.Close()
}

// buildMIME renders headers in a fixed order so messages are reproducible
func buildMIME(cfg config.EmailConfig, msg *Message) []byte {
	var buf bytes.Buffer
	header := func(k, v string) {
		buf.WriteString(k + ": " + v + "\r\n")
	}

	header("From", formatFrom(cfg))
	header("To", strings.Join(msg.To, ", "))
	header("Subject", msg.Subject)
	if cfg.ReplyTo != "" {
		header("Reply-To", cfg.ReplyTo)
	}
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	buf.WriteString("\r\n")
	buf.WriteString(msg.HTML)

	return buf.Bytes()
}

func formatFrom(cfg config.EmailConfig) string {
	if cfg.FromName != "" {
		return fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}
	return cfg.FromEmail
}

// Ping dials the SMTP server and authenticates without sending anything
func (s *smtpSender) Ping(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)

	var conn net.Conn
	var err error
	if s.config.SMTPUseTLS {
		dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.config.SMTPHost}}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Quit()

	if !s.config.SMTPUseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.config.SMTPHost}); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPass, s.config.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	return nil
}
