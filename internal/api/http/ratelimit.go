package http

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/contacts-service/internal/observability"
	apperrors "github.com/spec-kit/contacts-service/pkg/util/errorutil"
)

// RateLimiter is a fixed-window per-client-IP limiter backed by Redis.
// When Redis is unavailable requests are let through.
type RateLimiter struct {
	client  redis.Cmdable
	name    string
	limit   int64
	window  time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRateLimiter allows limit requests per window for the route group name.
func NewRateLimiter(client redis.Cmdable, name string, limit int, window time.Duration, logger *zap.Logger, metrics *observability.Metrics) *RateLimiter {
	return &RateLimiter{
		client:  client,
		name:    name,
		limit:   int64(limit),
		window:  window,
		logger:  logger,
		metrics: metrics,
	}
}

// Handle enforces the limit.
func (l *RateLimiter) Handle(c *fiber.Ctx) error {
	if l == nil || l.client == nil || l.limit <= 0 {
		return c.Next()
	}
	ctx := c.UserContext()
	key := fmt.Sprintf("ratelimit:%s:%s", l.name, c.IP())

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		l.logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
		return c.Next()
	}
	count := incr.Val()
	window := ttl.Val()
	// A counter without expiry would block the client forever.
	if window < 0 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.Warn("rate limiter expire failed", zap.String("key", key), zap.Error(err))
		}
		window = l.window
	}

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	c.Set("X-RateLimit-Limit", strconv.FormatInt(l.limit, 10))
	c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

	if count > l.limit {
		if window > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int((window+time.Second-1)/time.Second)))
		}
		l.metrics.RecordRateLimited()
		return apperrors.NewTooManyRequests(fmt.Sprintf("Rate limit exceeded: %d per %s", l.limit, describeWindow(l.window)))
	}
	return c.Next()
}

func describeWindow(d time.Duration) string {
	switch d {
	case time.Minute:
		return "1 minute"
	case time.Hour:
		return "1 hour"
	default:
		return d.String()
	}
}
