package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TraceIDHeader is the HTTP header carrying the trace ID.
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the gin context key for the trace ID.
	TraceIDKey = "trace_id"
	// UserKey is the gin context key for the authenticated user.
	UserKey = "auth_user"
)

// EnrichContext makes every request traceable: an inbound trace ID is
// reused, otherwise a fresh one is minted, and either way it is echoed
// back in the response header.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

// GetTraceID returns the trace ID stored by EnrichContext, or "" when the
// middleware did not run.
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}
