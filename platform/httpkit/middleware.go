// Package httpkit provides HTTP middleware infrastructure.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"context"
	"errors"
	"sync"
	"time"

	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const headerRequestID = "X-Request-ID"

// RequestID propagates or generates a request id and stores it on the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger logs HTTP requests with timing, and errors attached by handlers.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := c.ClientIP()

		if len(c.Errors) > 0 {
			log.WithContext(c.Request.Context()).HTTPError(c.Request.Method, path, status, errors.New(c.Errors.String()), clientIP)
		}
		log.HTTPRequest(c.Request.Method, path, status, float64(latency.Milliseconds()), clientIP)
	}
}

// SecurityHeaders adds security headers to responses.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// IPRateLimiter keeps a token bucket per client IP. It guards the whole
// API against bursts; the per-guest draft and vehicle quotas live in the
// ratelimit package.
type IPRateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

// NewIPRateLimiter returns a limiter allowing perSecond requests with burst.
func NewIPRateLimiter(perSecond rate.Limit, burst int, log *logger.Logger) *IPRateLimiter {
	return &IPRateLimiter{rate: perSecond, burst: burst, log: log}
}

func (i *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	limiter, _ := i.limiters.LoadOrStore(ip, rate.NewLimiter(i.rate, i.burst))
	return limiter.(*rate.Limiter)
}

// RateLimit aborts with 429 once the caller's bucket is empty.
func (i *IPRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !i.limiterFor(ip).Allow() {
			if i.log != nil {
				i.log.RateLimitExceeded(ip, c.Request.URL.Path)
			}
			abortWithError(c, apperr.RateLimited("too many requests"))
			return
		}
		c.Next()
	}
}
