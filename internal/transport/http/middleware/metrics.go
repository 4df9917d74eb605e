package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codarkat/rumai/internal/infra/telemetry"
)

// Metrics observes request counts and latency per route. Requests that did
// not match a route are labelled with the raw path so 404 probes remain
// visible.
func Metrics(m *telemetry.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		method := c.Request.Method

		m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
