// Package ratelimit provides a Redis-backed fixed-window rate limiter,
// applied as gin middleware to the endpoints that burn CPU on anonymous
// traffic (bcrypt on login/signup, the WebSocket handshake).
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Limiter struct {
	rdb    *redis.Client
	logger *zap.Logger
	limit  int
	window time.Duration
}

// New creates a limiter allowing `limit` requests per key per `window`.
// rdb may be nil, in which case the limiter allows everything — the server
// can run without Redis in development.
func New(rdb *redis.Client, limit int, window time.Duration, logger *zap.Logger) *Limiter {
	return &Limiter{
		rdb:    rdb,
		logger: logger,
		limit:  limit,
		window: window,
	}
}

// Allow increments the counter for key and reports whether the caller is
// still within the window's budget. The counter's TTL is set when the
// window opens, so stale keys expire on their own.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, int64, error) {
	count, err := l.rdb.Incr(ctx, "ratelimit:"+key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		l.rdb.Expire(ctx, "ratelimit:"+key, l.window)
	}
	return count <= int64(l.limit), count, nil
}

// Middleware enforces the limit per client IP. A Redis outage does not
// block requests: the limiter fails open and logs.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rdb == nil {
			c.Next()
			return
		}

		allowed, count, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			l.logger.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		remaining := int64(l.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
