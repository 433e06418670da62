package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
	"golang.org/x/time/rate"
)

const rateWindow = time.Minute

// RateLimiter counts requests per client IP in a fixed one minute window in
// Redis. When Redis is unavailable it falls back to an in-process token bucket
// per IP.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	burst  int
	logger *logrus.Logger
	now    func() time.Time

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// NewRateLimiter creates a limiter. redisClient may be nil.
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  cfg.Security.RateLimitPerMinute,
		burst:  cfg.Security.RateLimitBurst,
		logger: logger,
		now:    time.Now,
		local:  make(map[string]*rate.Limiter),
	}
}

// Middleware returns the gin handler
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		allowed, remaining := rl.allow(c.Request.Context(), ip)

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ctx context.Context, ip string) (bool, int) {
	if rl.redis != nil {
		allowed, remaining, err := rl.allowRedis(ctx, ip)
		if err == nil {
			return allowed, remaining
		}
		rl.logger.WithError(err).Warn("Rate limiter falling back to in-process limits")
	}
	return rl.allowLocal(ip)
}

func (rl *RateLimiter) allowRedis(ctx context.Context, ip string) (bool, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	window := rl.now().Unix() / int64(rateWindow.Seconds())
	key := fmt.Sprintf("rate_limit:%s:%d", ip, window)

	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rateWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := int(incr.Val())
	remaining := rl.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.limit, remaining, nil
}

func (rl *RateLimiter) allowLocal(ip string) (bool, int) {
	rl.mu.Lock()
	lim, ok := rl.local[ip]
	if !ok {
		burst := rl.burst
		if burst <= 0 {
			burst = rl.limit
		}
		lim = rate.NewLimiter(rate.Limit(float64(rl.limit)/rateWindow.Seconds()), burst)
		rl.local[ip] = lim
	}
	rl.mu.Unlock()

	allowed := lim.AllowN(rl.now(), 1)
	remaining := int(lim.TokensAt(rl.now()))
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining
}
