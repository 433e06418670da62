// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the marketplace API
type Config struct {
	App          AppConfig
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Security     SecurityConfig
	Email        EmailConfig
	Upload       UploadConfig
	Logging      LoggingConfig
	Orders       OrdersConfig
	Notification NotificationConfig
	Stats        StatsConfig
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
	BaseURL     string
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
	Seed         bool
	SeedFile     string
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// JWTConfig contains JWT token configuration
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	BcryptCost            int
	RateLimitPerMinute    int
	RateLimitBurst        int
	CORSAllowedOrigins    []string
	CORSAllowedMethods    []string
	CORSAllowedHeaders    []string
	TrustedProxies        []string
	ActivationTokenTTL    time.Duration
	PasswordResetTokenTTL time.Duration
}

// EmailConfig contains email delivery configuration
type EmailConfig struct {
	Provider    string
	APIKey      string
	FromEmail   string
	FromName    string
	ReplyTo     string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	SMTPUseTLS  bool
	TemplateDir string
	APITimeout  time.Duration
}

// UploadConfig contains file upload configuration
type UploadConfig struct {
	LocalPath         string
	PublicURL         string
	MaxSize           int64
	MaxFiles          int
	AllowedExtensions []string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// OrdersConfig contains order workflow configuration
type OrdersConfig struct {
	// StrictTransitions rejects status updates outside the
	// pending -> confirmed -> shipped -> delivered graph.
	StrictTransitions bool
	DefaultPageSize   int
	MaxPageSize       int
}

// NotificationConfig contains the async notification dispatcher configuration
type NotificationConfig struct {
	Workers      int
	QueueSize    int
	SendTimeout  time.Duration
	DrainTimeout time.Duration
}

// StatsConfig contains statistics endpoint configuration
type StatsConfig struct {
	CacheTTL                 time.Duration
	DefaultTopLimit          int
	DefaultLowStockThreshold int
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Marketplace API"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvAsBool("APP_DEBUG", true),
			BaseURL:     getEnv("APP_BASE_URL", "http://localhost:8080"),
		},
		Server: ServerConfig{
			Port:            getEnv("APP_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodyBytes:    getEnvAsInt64("SERVER_MAX_BODY_BYTES", 30<<20),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "marketplace_db"),
			User:         getEnv("DB_USER", "marketplace_user"),
			Password:     getEnv("DB_PASSWORD", "marketplace_password"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 300*time.Second),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
			Seed:         getEnvAsBool("DB_SEED", false),
			SeedFile:     getEnv("DB_SEED_FILE", ""),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "change-me-to-a-long-random-secret-value"),
			AccessTokenExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRE", 24*time.Hour),
			RefreshTokenExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRE", 7*24*time.Hour),
		},
		Security: SecurityConfig{
			BcryptCost:            getEnvAsInt("BCRYPT_COST", 12),
			RateLimitPerMinute:    getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
			RateLimitBurst:        getEnvAsInt("RATE_LIMIT_BURST", 50),
			CORSAllowedOrigins:    getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			CORSAllowedMethods:    getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			CORSAllowedHeaders:    getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}),
			TrustedProxies:        getEnvAsSlice("TRUSTED_PROXIES", []string{}),
			ActivationTokenTTL:    getEnvAsDuration("ACTIVATION_TOKEN_TTL", 24*time.Hour),
			PasswordResetTokenTTL: getEnvAsDuration("PASSWORD_RESET_TOKEN_TTL", time.Hour),
		},
		Email: EmailConfig{
			Provider:    getEnv("EMAIL_PROVIDER", "log"),
			APIKey:      getEnv("EMAIL_API_KEY", ""),
			FromEmail:   getEnv("FROM_EMAIL", "noreply@example.com"),
			FromName:    getEnv("FROM_NAME", "Marketplace"),
			ReplyTo:     getEnv("REPLY_TO_EMAIL", ""),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
			SMTPUseTLS:  getEnvAsBool("SMTP_USE_TLS", true),
			TemplateDir: getEnv("EMAIL_TEMPLATE_DIR", ""),
			APITimeout:  getEnvAsDuration("EMAIL_API_TIMEOUT", 10*time.Second),
		},
		Upload: UploadConfig{
			LocalPath:         getEnv("UPLOAD_PATH", "./uploads"),
			PublicURL:         getEnv("UPLOAD_PUBLIC_URL", "/api/v1/uploads/images"),
			MaxSize:           getEnvAsInt64("UPLOAD_MAX_SIZE", 5<<20),
			MaxFiles:          getEnvAsInt("UPLOAD_MAX_FILES", 5),
			AllowedExtensions: getEnvAsSlice("UPLOAD_ALLOWED_EXTENSIONS", []string{"jpg", "jpeg", "png", "gif", "webp"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Orders: OrdersConfig{
			StrictTransitions: getEnvAsBool("ORDER_STRICT_TRANSITIONS", true),
			DefaultPageSize:   getEnvAsInt("ORDER_PAGE_SIZE", 20),
			MaxPageSize:       getEnvAsInt("ORDER_MAX_PAGE_SIZE", 100),
		},
		Notification: NotificationConfig{
			Workers:      getEnvAsInt("NOTIFY_WORKERS", 4),
			QueueSize:    getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			SendTimeout:  getEnvAsDuration("NOTIFY_SEND_TIMEOUT", 15*time.Second),
			DrainTimeout: getEnvAsDuration("NOTIFY_DRAIN_TIMEOUT", 10*time.Second),
		},
		Stats: StatsConfig{
			CacheTTL:                 getEnvAsDuration("STATS_CACHE_TTL", time.Minute),
			DefaultTopLimit:          getEnvAsInt("STATS_TOP_LIMIT", 10),
			DefaultLowStockThreshold: getEnvAsInt("STATS_LOW_STOCK_THRESHOLD", 10),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}

	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}

	if c.Notification.Workers < 1 {
		return fmt.Errorf("NOTIFY_WORKERS must be positive")
	}
	if c.Notification.QueueSize < 1 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}

	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("UPLOAD_MAX_SIZE must be positive")
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
