// internal/interfaces/http/server.go
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
	"github.com/your-org/marketplace-api/internal/interfaces/http/middleware"
	"github.com/your-org/marketplace-api/internal/interfaces/http/routes"
)

// HealthChecker is a dependency probed by /health
type HealthChecker interface {
	Health() error
}

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	logger     *logrus.Logger
	engine     *gin.Engine
	httpServer *http.Server
	checks     map[string]HealthChecker
	startedAt  time.Time
}

// NewServer builds the gin engine with its middleware chain and routes.
// redisClient may be nil; rate limiting then stays in process.
func NewServer(cfg *config.Config, logger *logrus.Logger, redisClient *redis.Client, deps *routes.Dependencies, checks map[string]HealthChecker) (*Server, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	s := &Server{
		config:    cfg,
		logger:    logger,
		engine:    engine,
		checks:    checks,
		startedAt: time.Now(),
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.CORS(cfg),
		middleware.SecurityHeaders(),
		middleware.NewRateLimiter(cfg, redisClient, logger).Middleware(),
		middleware.Timeout(cfg.Server.RequestTimeout),
	)

	engine.GET("/health", s.healthCheck)
	engine.GET("/api/v1/health", s.healthCheck)
	routes.SetupRoutes(engine.Group("/api/v1"), deps)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s, nil
}

// Handler exposes the engine, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.WithFields(logrus.Fields{
		"port":        s.config.Server.Port,
		"environment": s.config.App.Environment,
	}).Info("HTTP server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) healthCheck(c *gin.Context) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	services := gin.H{}
	for _, name := range names {
		if err := s.checks[name].Health(); err != nil {
			s.logger.WithError(err).WithField("service", name).Warn("Health check failed")
			services[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		services[name] = "healthy"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":      overall,
		"services":    services,
		"timestamp":   time.Now().UTC(),
		"uptime":      time.Since(s.startedAt).Round(time.Second).String(),
		"version":     s.config.App.Version,
		"environment": s.config.App.Environment,
	})
}
