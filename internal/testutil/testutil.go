// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-api/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database and migrates models into it.
// The pool is capped at one connection so concurrent transactions serialize.
func NewDB(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		require.NoError(t, db.AutoMigrate(models...))
	}
	return db
}

// Config returns a configuration suitable for tests
func Config() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "marketplace-test",
			Version:     "test",
			Environment: "test",
			BaseURL:     "http://shop.test",
		},
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
			MaxBodyBytes:   10 << 20,
		},
		JWT: config.JWTConfig{
			Secret:             "test-secret-test-secret-test-secret",
			AccessTokenExpiry:  time.Hour,
			RefreshTokenExpiry: 24 * time.Hour,
		},
		Security: config.SecurityConfig{
			BcryptCost:            4,
			RateLimitPerMinute:    1000,
			RateLimitBurst:        1000,
			CORSAllowedOrigins:    []string{"http://localhost:3000"},
			CORSAllowedMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			CORSAllowedHeaders:    []string{"Origin", "Content-Type", "Authorization"},
			ActivationTokenTTL:    time.Hour,
			PasswordResetTokenTTL: time.Hour,
		},
		Email: config.EmailConfig{Provider: "log", FromName: "Shop", FromEmail: "noreply@shop.test"},
		Upload: config.UploadConfig{
			MaxSize:           5 << 20,
			MaxFiles:          5,
			AllowedExtensions: []string{"jpg", "jpeg", "png", "gif", "webp"},
			PublicURL:         "/api/v1/uploads/images",
		},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
		Orders: config.OrdersConfig{
			StrictTransitions: true,
			DefaultPageSize:   20,
			MaxPageSize:       100,
		},
		Notification: config.NotificationConfig{Workers: 1, QueueSize: 16, SendTimeout: time.Second},
		Stats: config.StatsConfig{
			CacheTTL:                 time.Minute,
			DefaultTopLimit:          10,
			DefaultLowStockThreshold: 10,
		},
	}
}
