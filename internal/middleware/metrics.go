package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pubkeyapp/realms-vsr-holders/pkg/metrics"
)

// MetricsMiddleware records request counts and latency. Requests answered
// with a status below 400 count as successful.
func MetricsMiddleware(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		collector.RecordRequest()

		c.Next()

		collector.RecordRequestComplete(time.Since(start), c.Writer.Status() < http.StatusBadRequest)
	}
}
