package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/resaletix/resaletix-backend/errors"
	"github.com/resaletix/resaletix-backend/logger"
	"github.com/resaletix/resaletix-backend/services"
)

// UploadRateLimiter caps ticket uploads per seller. Redis failures let the
// request through so a cache outage never blocks selling.
func UploadRateLimiter(limiter services.RateLimiterInterface, uploads int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("upload:%s", rateLimitIdentifier(c))
		allowed, remaining, retryAfter, err := limiter.CheckLimit(c.Request.Context(), key, uploads, window)
		if err != nil {
			logger.GetLogger().Warnw("Upload rate limit check failed, allowing request", "key", key, "error", err)
			c.Next()
			return
		}

		setRateLimitHeaders(c, uploads, remaining, retryAfter)
		if !allowed {
			_ = c.Error(apperrors.RateLimitExceeded(int(retryAfter.Seconds())))
			c.Abort()
			return
		}
		c.Next()
	}
}

// rateLimitIdentifier prefers the authenticated user and falls back to the client IP.
func rateLimitIdentifier(c *gin.Context) string {
	if userID := c.GetString(string(UserIDKey)); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

func setRateLimitHeaders(c *gin.Context, limit, remaining int, retryAfter time.Duration) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if retryAfter > 0 {
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
}
