package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const unmatchedRoute = "unmatched"

// Scrapes and health checks would otherwise dominate the request counters.
var unobservedPaths = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
}

// HTTPMetricsMiddleware counts requests by route pattern. Recorders other
// than *Metrics get a pass-through handler.
func HTTPMetricsMiddleware(m Recorder) gin.HandlerFunc {
	prom, ok := m.(*Metrics)
	if !ok {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if _, skip := unobservedPaths[c.Request.URL.Path]; skip {
			c.Next()
			return
		}

		prom.HTTPRequestsInFlight.Inc()
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		prom.HTTPRequestsInFlight.Dec()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		prom.HTTPRequestsTotal.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Inc()
		prom.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route).
			Observe(elapsed.Seconds())
	}
}
