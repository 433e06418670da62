// internal/pkg/email/api_providers.go
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
)

const (
	resendEndpoint     = "https://api.resend.com/emails"
	sendGridEndpoint   = "https://api.sendgrid.com/v3/mail/send"
	mailerSendEndpoint = "https://api.mailersend.com/v1/email"
)

// Resend API structures
type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// SendGrid API structures
type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             namedAddress              `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	ReplyTo          *namedAddress             `json:"reply_to,omitempty"`
}

type sendGridPersonalization struct {
	To []namedAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// MailerSend API structures
type mailerSendRequest struct {
	From    namedAddress   `json:"from"`
	To      []namedAddress `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"html"`
	ReplyTo *namedAddress  `json:"reply_to,omitempty"`
	Tags    []string       `json:"tags,omitempty"`
}

type namedAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// apiSender posts JSON payloads to an HTTP email API
type apiSender struct {
	name     string
	endpoint string
	apiKey   string
	okStatus int
	client   *http.Client
	payload  func(msg *Message) interface{}
}

func (a *apiSender) Send(ctx context.Context, msg *Message) error {
	if a.apiKey == "" {
		return fmt.Errorf("%s API key not configured", a.name)
	}

	body, err := json.Marshal(a.payload(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", a.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", a.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", a.name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != a.okStatus {
		return fmt.Errorf("%s API returned status %d", a.name, resp.StatusCode)
	}
	return nil
}

func recipients(to []string) []namedAddress {
	out := make([]namedAddress, 0, len(to))
	for _, addr := range to {
		out = append(out, namedAddress{Email: addr})
	}
	return out
}

func replyTo(cfg config.EmailConfig) *namedAddress {
	if cfg.ReplyTo == "" {
		return nil
	}
	return &namedAddress{Email: cfg.ReplyTo}
}

func newResendSender(cfg config.EmailConfig, client *http.Client, endpoint string) *apiSender {
	return &apiSender{
		name: "Resend", endpoint: endpoint, apiKey: cfg.APIKey, okStatus: http.StatusOK, client: client,
		payload: func(msg *Message) interface{} {
			return resendRequest{
				From:    formatFrom(cfg),
				To:      msg.To,
				Subject: msg.Subject,
				HTML:    msg.HTML,
				ReplyTo: cfg.ReplyTo,
			}
		},
	}
}

func newSendGridSender(cfg config.EmailConfig, client *http.Client, endpoint string) *apiSender {
	return &apiSender{
		name: "SendGrid", endpoint: endpoint, apiKey: cfg.APIKey, okStatus: http.StatusAccepted, client: client,
		payload: func(msg *Message) interface{} {
			return sendGridRequest{
				Personalizations: []sendGridPersonalization{{To: recipients(msg.To)}},
				From:             namedAddress{Email: cfg.FromEmail, Name: cfg.FromName},
				Subject:          msg.Subject,
				Content:          []sendGridContent{{Type: "text/html", Value: msg.HTML}},
				ReplyTo:          replyTo(cfg),
			}
		},
	}
}

func newMailerSendSender(cfg config.EmailConfig, client *http.Client, endpoint string) *apiSender {
	return &apiSender{
		name: "MailerSend", endpoint: endpoint, apiKey: cfg.APIKey, okStatus: http.StatusAccepted, client: client,
		payload: func(msg *Message) interface{} {
			return mailerSendRequest{
				From:    namedAddress{Email: cfg.FromEmail, Name: cfg.FromName},
				To:      recipients(msg.To),
				Subject: msg.Subject,
				HTML:    msg.HTML,
				ReplyTo: replyTo(cfg),
				Tags:    []string{string(msg.Kind)},
			}
		},
	}
}

// logSender only records the message, for development and tests
type logSender struct {
	logger *logrus.Logger
}

func (l *logSender) Send(_ context.Context, msg *Message) error {
	l.logger.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
		"kind":    msg.Kind,
	}).Info("Email delivery skipped (log provider)")
	return nil
}

func newSender(cfg config.EmailConfig, client *http.Client, logger *logrus.Logger) (Sender, error) {
	switch cfg.Provider {
	case "smtp":
		return &smtpSender{config: cfg}, nil
	case "resend":
		return newResendSender(cfg, client, resendEndpoint), nil
	case "sendgrid":
		return newSendGridSender(cfg, client, sendGridEndpoint), nil
	case "mailersend":
		return newMailerSendSender(cfg, client, mailerSendEndpoint), nil
	case "log", "":
		return &logSender{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.Provider)
	}
}
