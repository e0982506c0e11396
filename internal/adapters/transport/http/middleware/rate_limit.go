package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidhost/auth-service/internal/adapters/transport/ratelimit"
)

// RateLimitPerIP limits requests per second for each remote host.
func RateLimitPerIP(limit, burst, cacheSize int, ttl time.Duration) gin.HandlerFunc {
	visitors := ratelimit.NewVisitors(limit, burst, cacheSize, ttl)

	return func(c *gin.Context) {
		if !visitors.Allow(ratelimit.Host(c.Request.RemoteAddr)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
