package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/codarkat/rumai/internal/infra/logger"
)

// Logger writes one access-log line per request. Client addresses are
// masked before they reach the log stream.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := accessFields(c, time.Since(start))
		if len(c.Errors) > 0 {
			log.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		log.Info("request completed", fields...)
	}
}

func accessFields(c *gin.Context, latency time.Duration) []zap.Field {
	requestID, _ := c.Request.Context().Value(appLogger.RequestIDKey{}).(string)

	fields := []zap.Field{
		zap.String("trace_id", GetTraceID(c)),
		zap.String("request_id", requestID),
		zap.Int("status", c.Writer.Status()),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Duration("latency", latency),
		zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
	}
	if ua := c.Request.UserAgent(); ua != "" {
		fields = append(fields, zap.String("user_agent", ua))
	}
	return fields
}
