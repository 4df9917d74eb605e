package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codarkat/rumai/internal/infra/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID stores a per-request correlation ID in the request context and
// reflects it in the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), logger.RequestIDKey{}, id),
		)
		c.Header(requestIDHeader, id)

		c.Next()
	}
}
