package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lexiqai/doc-audio-service/internal/observability"
)

// CorrelationHeader carries the request correlation ID in both directions
const CorrelationHeader = "X-Correlation-ID"

// RequestLogger attaches a correlation-scoped logger to the request context
// and logs every request once it completes
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationHeader)
		if correlationID == "" {
			correlationID = observability.NewCorrelationID()
		}
		c.Header(CorrelationHeader, correlationID)

		logger := observability.WithCorrelationID(correlationID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		start := time.Now()
		c.Next()

		event := logger.Info()
		switch path := c.FullPath(); {
		case c.Writer.Status() >= http.StatusInternalServerError:
			event = logger.Error()
		case path == "/health" || path == "/ready" || path == "/metrics":
			event = logger.Debug()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}

// CORS allows browser requests from the configured origins. A "*" entry
// allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(origins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", "Authorization", CorrelationHeader}, ", "))
			c.Header("Access-Control-Expose-Headers", "Content-Disposition, "+CorrelationHeader)
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(origins []string, origin string) bool {
	return slices.Contains(origins, "*") || slices.Contains(origins, origin)
}
