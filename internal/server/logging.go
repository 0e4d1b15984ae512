package server

import (
	"time"

	"github.com/xSkywa1ker/dance-bot/internal/logger"

	"github.com/gin-gonic/gin"
)

// Scrape and healthcheck traffic would drown out the real requests.
var quietPaths = map[string]bool{
	"/metrics": true,
	"/health":  true,
}

// RequestLoggingMiddleware logs every request with structured fields.
// Server errors log at error level so they stand out in aggregation.
func RequestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if quietPaths[path] {
			return
		}

		status := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		if status >= 500 {
			logger.Error("HTTP request failed", fields...)
			return
		}
		logger.Info("HTTP request", fields...)
	}
}
