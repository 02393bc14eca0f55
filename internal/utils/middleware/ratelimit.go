package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flox/server/internal/shared/logger"
	"github.com/flox/server/internal/shared/response"
	apperrors "github.com/flox/server/internal/utils/errors"
)

const (
	// RateLimitRemaining is the header for remaining requests.
	RateLimitRemaining = "X-RateLimit-Remaining"
	// RateLimitLimit is the header for the limit.
	RateLimitLimit = "X-RateLimit-Limit"
	// RateLimitReset is the header for reset time.
	RateLimitReset = "X-RateLimit-Reset"
	// RetryAfter is the header for retry time.
	RetryAfter = "Retry-After"

	rateLimitKeyPrefix = "ratelimit:"
)

// RateLimiter decides whether a key may make another request in the window.
type RateLimiter interface {
	// Allow records one request and reports whether it fits, with the remaining budget.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}

// RedisRateLimiter is a sliding-window limiter backed by a sorted set per key.
type RedisRateLimiter struct {
	client redis.UniversalClient
}

// NewRedisRateLimiter creates a new sliding-window rate limiter.
func NewRedisRateLimiter(client redis.UniversalClient) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

// Allow implements RateLimiter.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	fullKey := rateLimitKeyPrefix + key
	now := time.Now().UnixNano()
	windowStart := now - window.Nanoseconds()

	// Drop entries outside the window, then count what is left.
	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	current := int(countCmd.Val())
	if current >= limit {
		return false, 0, nil
	}

	pipe = r.client.Pipeline()
	pipe.ZAdd(ctx, fullKey, redis.Z{
		Score:  float64(now),
		Member: fmt.Sprintf("%d-%s", now, uuid.NewString()),
	})
	pipe.Expire(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	return true, limit - current - 1, nil
}

// Compile-time check
var _ RateLimiter = (*RedisRateLimiter)(nil)

// RateLimitConfig holds rate limit configuration.
type RateLimitConfig struct {
	// Limit is the maximum number of requests.
	Limit int
	// Window is the time window.
	Window time.Duration
	// KeyFunc generates the rate limit key from request.
	// Default uses client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimit returns a middleware that limits requests using the given limiter.
// Limiter failures are logged and the request is let through.
func RateLimit(limiter RateLimiter, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string {
			return "ip:" + c.ClientIP()
		}
	}

	return func(c *gin.Context) {
		if limiter == nil || cfg.Limit <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		allowed, remaining, err := limiter.Allow(ctx, cfg.KeyFunc(c), cfg.Limit, cfg.Window)
		if err != nil {
			logger.FromContext(ctx).Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header(RateLimitLimit, strconv.Itoa(cfg.Limit))
		c.Header(RateLimitRemaining, strconv.Itoa(remaining))
		c.Header(RateLimitReset, strconv.FormatInt(time.Now().Add(cfg.Window).Unix(), 10))

		if !allowed {
			c.Header(RetryAfter, strconv.Itoa(int(cfg.Window.Seconds())))
			response.Error(c, apperrors.RateLimited("Too many requests, please try again later"))
			return
		}

		c.Next()
	}
}

// RateLimitByUser returns a rate limiter that limits by user ID and route.
// Falls back to IP if user is not authenticated.
func RateLimitByUser(limiter RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(limiter, RateLimitConfig{
		Limit:  limit,
		Window: window,
		KeyFunc: func(c *gin.Context) string {
			if userID := GetUserID(c); userID != uuid.Nil {
				return "user:" + userID.String() + ":" + c.FullPath()
			}
			return "ip:" + c.ClientIP() + ":" + c.FullPath()
		},
	})
}
