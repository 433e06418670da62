// internal/infrastructure/database/redis/connection.go
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
)

const (
	dialTimeout = 5 * time.Second
	ioTimeout   = 3 * time.Second
	pingTimeout = 3 * time.Second
)

// Client owns the shared go-redis client used for the stats cache and the
// rate limiter
type Client struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

func options(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
		PoolTimeout:  ioTimeout + time.Second,
	}
}

// NewConnection dials Redis and fails unless it answers a ping
func NewConnection(cfg *config.Config, log *logrus.Logger) (*Client, error) {
	c := &Client{rdb: redis.NewClient(options(cfg)), logger: log}
	if err := c.Health(); err != nil {
		_ = c.rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.GetRedisAddr(), err)
	}

	log.WithFields(logrus.Fields{
		"addr": cfg.GetRedisAddr(),
		"db":   cfg.Redis.DB,
	}).Info("Redis connection established")
	return c, nil
}

// GetClient returns the underlying go-redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Health pings the server
func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// Close logs pool usage and closes every connection
func (c *Client) Close() error {
	stats := c.rdb.PoolStats()
	c.logger.WithFields(logrus.Fields{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"timeouts": stats.Timeouts,
	}).Debug("Closing Redis connection")
	return c.rdb.Close()
}
