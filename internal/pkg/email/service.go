// internal/pkg/email/service.go
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

var templateNames = []string{
	"welcome",
	"password_reset",
	"order_confirmation",
	"order_status_update",
}

// Sender delivers a rendered message through one provider
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Service renders and sends transactional emails
type Service struct {
	config    config.EmailConfig
	siteURL   string
	sender    Sender
	templates map[string]*template.Template
	logger    *logrus.Logger
}

// NewService creates an email service for the configured provider
func NewService(cfg *config.Config, logger *logrus.Logger) (*Service, error) {
	client := &http.Client{Timeout: cfg.Email.APITimeout}
	sender, err := newSender(cfg.Email, client, logger)
	if err != nil {
		return nil, err
	}
	return NewServiceWithSender(cfg, sender, logger)
}

// NewServiceWithSender creates an email service around an explicit sender
func NewServiceWithSender(cfg *config.Config, sender Sender, logger *logrus.Logger) (*Service, error) {
	s := &Service{
		config:    cfg.Email,
		siteURL:   cfg.App.BaseURL,
		sender:    sender,
		templates: make(map[string]*template.Template, len(templateNames)),
		logger:    logger,
	}
	if err := s.loadTemplates(); err != nil {
		return nil, err
	}
	return s, nil
}

// Send sends a message using the configured provider
func (s *Service) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("email %q has no recipients", msg.Subject)
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s email: %w", msg.Kind, err)
	}
	return nil
}

// SendWelcome sends the account activation email
func (s *Service) SendWelcome(ctx context.Context, userEmail, userName, activationURL string) error {
	data := WelcomeData{
		BaseData:      s.baseData(userName, userEmail),
		ActivationURL: activationURL,
	}
	return s.renderAndSend(ctx, "welcome", KindWelcome, userEmail,
		fmt.Sprintf("Welcome to %s!", s.config.FromName), data)
}

// SendPasswordReset sends the password reset link
func (s *Service) SendPasswordReset(ctx context.Context, userEmail, userName, resetURL, expiry string) error {
	data := PasswordResetData{
		BaseData:   s.baseData(userName, userEmail),
		ResetURL:   resetURL,
		ExpiryTime: expiry,
	}
	return s.renderAndSend(ctx, "password_reset", KindPasswordReset, userEmail, "Reset Your Password", data)
}

// SendOrderConfirmation sends the order confirmation email
func (s *Service) SendOrderConfirmation(ctx context.Context, userEmail, userName string, data OrderData) error {
	data.BaseData = s.baseData(userName, userEmail)
	return s.renderAndSend(ctx, "order_confirmation", KindOrderConfirmation, userEmail,
		fmt.Sprintf("Order Confirmation - %s", data.OrderNumber), data)
}

// SendOrderStatusUpdate sends an order status change email
func (s *Service) SendOrderStatusUpdate(ctx context.Context, userEmail, userName string, data OrderData) error {
	data.BaseData = s.baseData(userName, userEmail)
	if data.StatusMessage == "" {
		data.StatusMessage = statusMessage(data.Status)
	}
	return s.renderAndSend(ctx, "order_status_update", KindOrderStatusUpdate, userEmail,
		fmt.Sprintf("Order Update - %s", data.OrderNumber), data)
}

func (s *Service) renderAndSend(ctx context.Context, name string, kind Kind, to, subject string, data interface{}) error {
	html, err := s.Render(name, data)
	if err != nil {
		return err
	}
	return s.Send(ctx, &Message{
		To:      []string{to},
		Subject: subject,
		HTML:    html,
		Kind:    kind,
	})
}

// Render executes a named template
func (s *Service) Render(name string, data interface{}) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// loadTemplates prefers files in the configured template dir and falls back
// to the embedded defaults.
func (s *Service) loadTemplates() error {
	for _, name := range templateNames {
		if s.config.TemplateDir != "" {
			path := filepath.Join(s.config.TemplateDir, name+".html")
			if _, err := os.Stat(path); err == nil {
				tmpl, err := template.ParseFiles(path)
				if err != nil {
					return fmt.Errorf("failed to parse template %s: %w", path, err)
				}
				s.templates[name] = tmpl
				continue
			}
			s.logger.WithField("template", name).Warn("Email template override not found, using default")
		}

		tmpl, err := template.ParseFS(defaultTemplates, "templates/"+name+".html")
		if err != nil {
			return fmt.Errorf("failed to parse embedded template %s: %w", name, err)
		}
		s.templates[name] = tmpl
	}
	return nil
}

func statusMessage(status string) string {
	switch status {
	case "confirmed":
		return "Your order has been confirmed and is being prepared."
	case "shipped":
		return "Your order is on its way."
	case "delivered":
		return "Your order has been delivered."
	case "cancelled":
		return "Your order has been cancelled and any reserved stock released."
	default:
		return "Your order status has changed."
	}
}

// CheckConnection verifies the provider is reachable when it supports it
func (s *Service) CheckConnection(ctx context.Context) error {
	if p, ok := s.sender.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
