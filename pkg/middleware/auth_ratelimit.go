package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/troikatech/collections-agent/pkg/errors"
)

// AuthRateLimiter provides stricter rate limiting for the login endpoint
type AuthRateLimiter struct {
	client      redis.Cmdable
	maxAttempts int
	window      time.Duration
	block       time.Duration
}

// NewAuthRateLimiter allows maxAttempts per window per IP, then blocks the
// IP for block.
func NewAuthRateLimiter(client redis.Cmdable, maxAttempts int, window, block time.Duration) *AuthRateLimiter {
	return &AuthRateLimiter{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
		block:       block,
	}
}

// Middleware returns a gin middleware for auth rate limiting
func (arl *AuthRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		key := "auth_ratelimit:" + ip
		blockKey := "auth_blocked:" + ip
		ctx := c.Request.Context()

		if ttl, err := arl.client.TTL(ctx, blockKey).Result(); err == nil && ttl > 0 {
			arl.reject(c, ttl)
			return
		}

		count, err := arl.client.Incr(ctx, key).Result()
		if err != nil {
			// fail open
			c.Next()
			return
		}
		if count == 1 {
			arl.client.Expire(ctx, key, arl.window)
		}

		if count > int64(arl.maxAttempts) {
			arl.client.Set(ctx, blockKey, "1", arl.block)
			arl.reject(c, arl.block)
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", arl.maxAttempts))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", arl.maxAttempts-int(count)))
		c.Next()
	}
}

func (arl *AuthRateLimiter) reject(c *gin.Context, retryAfter time.Duration) {
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", arl.maxAttempts))
	c.Header("X-RateLimit-Remaining", "0")
	c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
	errors.ErrorResponse(c, http.StatusTooManyRequests, "Too Many Requests", "too many authentication attempts")
	c.Abort()
}
