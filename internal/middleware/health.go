package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether the database is usable.
type HealthChecker interface {
	Healthy() bool
}

// DatabaseHealth short-circuits with 503 while the database monitor
// reports the connection as down.
func DatabaseHealth(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker != nil && !checker.Healthy() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   "Database temporarily unavailable",
				"code":    "DB_UNAVAILABLE",
			})
			return
		}
		c.Next()
	}
}
