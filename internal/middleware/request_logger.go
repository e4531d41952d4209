package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// quietPaths are probed often and logged at debug level only.
var quietPaths = map[string]bool{
	"/health": true,
	"/ready":  true,
	"/live":   true,
}

// RequestLogger logs one structured line per request. It runs after the
// tracing middleware so the trace ID is already in the request context.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"size":        c.Writer.Size(),
		}
		if route := c.FullPath(); route != "" {
			fields["route"] = route
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
		if subject, ok := c.Get(ContextKeySubject); ok {
			fields["subject"] = subject
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status >= 400:
			entry.Warn("HTTP request rejected")
		case quietPaths[c.Request.URL.Path]:
			entry.Debug("HTTP request")
		default:
			entry.Info("HTTP request")
		}
	}
}
