package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// SecurityConfig holds security middleware configuration
type SecurityConfig struct {
	MaxRequestSize    int64
	RateLimitRequests int
	RateLimitBurst    int
	RateLimitWindow   time.Duration
	RequireHTTPS      bool

	// Credential endpoints get their own, stricter bucket.
	AuthRateLimitRequests int
	AuthRateLimitBurst    int
}

// DefaultSecurityConfig returns default security configuration
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		MaxRequestSize:    10 * 1024 * 1024, // 10MB
		RateLimitRequests: 100,
		RateLimitBurst:    50,
		RateLimitWindow:   time.Minute,

		AuthRateLimitRequests: 20,
		AuthRateLimitBurst:    10,
	}
}

// ipLimiter hands out one token bucket per client IP
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

func newIPLimiter(requests, burst int, window time.Duration) *ipLimiter {
	if requests <= 0 {
		requests = 1
	}
	if burst <= 0 {
		burst = requests
	}
	return &ipLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(window / time.Duration(requests)),
		burst:    burst,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.every, l.burst)
		l.limiters[ip] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

var suspiciousPatterns = []string{
	"../", "..\\", "<script", "javascript:", "vbscript:",
	"onload=", "onerror=", "eval(", "expression(",
}

// SecurityMiddleware enforces the body size limit, per-IP rate limiting,
// JSON content types on writes, and sets security headers.
func SecurityMiddleware(config *SecurityConfig, log *logrus.Logger) gin.HandlerFunc {
	if config == nil {
		config = DefaultSecurityConfig()
	}
	limiter := newIPLimiter(config.RateLimitRequests, config.RateLimitBurst, config.RateLimitWindow)

	return func(c *gin.Context) {
		if c.Request.ContentLength > config.MaxRequestSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error":   "Request body too large",
			})
			return
		}

		clientIP := c.ClientIP()
		if !limiter.allow(clientIP) {
			log.WithFields(logrus.Fields{
				"ip":     clientIP,
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			}).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Rate limit exceeded",
			})
			return
		}

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			contentType := c.GetHeader("Content-Type")
			if c.Request.ContentLength > 0 && !strings.Contains(contentType, "application/json") {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"success": false,
					"error":   "Unsupported content type: " + contentType,
				})
				return
			}
		}

		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")

		if config.RequireHTTPS && c.GetHeader("X-Forwarded-Proto") != "https" {
			c.AbortWithStatusJSON(http.StatusUpgradeRequired, gin.H{
				"success": false,
				"error":   "HTTPS required",
			})
			return
		}

		requestURI := strings.ToLower(c.Request.RequestURI)
		for _, pattern := range suspiciousPatterns {
			if strings.Contains(requestURI, pattern) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error":   "Suspicious request pattern detected",
				})
				return
			}
		}

		c.Next()
	}
}

// AuthRateLimitMiddleware applies the stricter per-IP limit to credential
// endpoints.
func AuthRateLimitMiddleware(config *SecurityConfig, log *logrus.Logger) gin.HandlerFunc {
	if config == nil {
		config = DefaultSecurityConfig()
	}
	limiter := newIPLimiter(config.AuthRateLimitRequests, config.AuthRateLimitBurst, config.RateLimitWindow)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !limiter.allow(clientIP) {
			log.WithFields(logrus.Fields{
				"ip":   clientIP,
				"path": c.Request.URL.Path,
			}).Warn("Auth rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Too many authentication attempts. Please try again later.",
			})
			return
		}
		c.Next()
	}
}
