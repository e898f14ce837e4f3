package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shongeorg/posts-api/internal/logs"
)

// RequestLogger writes one JSON line per request once the response is done.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := "INFO"
		switch {
		case status >= 500:
			level = "ERROR"
		case status >= 400:
			level = "WARN"
		}

		logs.LogJSON(level, "request", map[string]interface{}{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"route":     c.FullPath(),
			"status":    status,
			"latencyMs": time.Since(start).Milliseconds(),
			"clientIP":  c.ClientIP(),
		})
	}
}
