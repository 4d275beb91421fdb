package middleware

import (
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agripulse/agri_go_server/internal/pkg/metrics"
)

// Logger 请求日志与耗时指标
func Logger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.Request(c.Request.Method, route, strconv.Itoa(status), latency.Seconds())
		log.Printf("[http] %s %s %d %s", c.Request.Method, c.Request.URL.Path, status, latency)
	}
}
