package ratelimit

import (
	"net/http"

	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(c *gin.Context) string

// CookieOrIP keys by the named cookie when present, otherwise by client IP.
func CookieOrIP(cookieName string) KeyFunc {
	return func(c *gin.Context) string {
		if value, err := c.Cookie(cookieName); err == nil && value != "" {
			return "guest:" + value
		}
		return "ip:" + c.ClientIP()
	}
}

// Middleware rejects requests over the limit with 429. Limiter errors fail
// open so a redis outage does not take the public surface down.
func Middleware(limiter Limiter, key KeyFunc, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c)
		allowed, err := limiter.Allow(c.Request.Context(), k)
		if err != nil {
			log.Warn("rate limiter unavailable", "error", err, "path", c.Request.URL.Path)
			c.Next()
			return
		}
		if !allowed {
			log.RateLimitExceeded(k, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httpkit.ErrorResponse{
				Error: "too many requests, try again later",
				Code:  "rate_limited",
			})
			return
		}
		c.Next()
	}
}
