package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "orders"

// NewLogger builds the process-wide JSON logger. LOG_LEVEL=debug turns on
// debug output; anything else stays at info.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("service", serviceName))
}

// LoggingMiddleware logs one line per request with the matched route and the
// request id minted by the RequestID middleware. Probe endpoints are skipped.
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = path
		}

		requestID, _ := c.Keys["request_id"].(string)

		logger.Info("HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", requestID),
		)
	}
}
