package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route template keeps label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures command duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	channel string
	method  string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, channel, method string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		channel: channel,
		method:  method,
	}
}

// Stop stops the timer and records the command outcome
func (t *Timer) Stop(outcome string) {
	t.metrics.RecordCommand(t.channel, t.method, outcome, time.Since(t.start))
}
