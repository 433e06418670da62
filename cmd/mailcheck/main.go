// cmd/mailcheck/main.go
package main

import (
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
	"github.com/your-org/marketplace-api/internal/pkg/email"
	"github.com/your-org/marketplace-api/internal/pkg/logger"
)

// mailcheck verifies the configured email provider and sends one test message
func main() {
	to := flag.String("to", "", "recipient address for the test message")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := logger.New(cfg.Logging)

	if *to == "" {
		log.Fatal("Usage: mailcheck -to <address>")
	}

	mailer, err := email.NewService(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create email service")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mailer.CheckConnection(ctx); err != nil {
		log.WithError(err).Fatal("Provider connection failed")
	}

	err = mailer.Send(ctx, &email.Message{
		To:      []string{*to},
		Subject: "Test email from " + cfg.App.Name,
		HTML:    "<h1>It works</h1><p>The " + cfg.Email.Provider + " provider delivered this message.</p>",
		Kind:    email.KindTest,
	})
	if err != nil {
		log.WithError(err).Fatal("Send failed")
	}

	log.WithFields(logrus.Fields{"to": *to, "provider": cfg.Email.Provider}).Info("Test email sent")
}
