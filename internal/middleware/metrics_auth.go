package middleware

import (
	"net/http"

	"github.com/go-authgate/mcpgate/internal/util"

	"github.com/gin-gonic/gin"
)

const metricsRealm = `Bearer realm="mcpgate-metrics"`

// MetricsAuthMiddleware guards /metrics with the static METRICS_TOKEN. The
// scrape token is unrelated to OAuth access tokens. An empty token disables
// the check.
func MetricsAuthMiddleware(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		provided, ok := bearerToken(c.GetHeader("Authorization"))
		switch {
		case !ok:
			rejectScrape(c, "invalid_request", "Bearer token required")
		case !util.ConstantTimeEqual(provided, token):
			rejectScrape(c, "invalid_token", "Invalid token")
		default:
			c.Next()
		}
	}
}

func rejectScrape(c *gin.Context, code, description string) {
	c.Header("WWW-Authenticate", metricsRealm)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":             code,
		"error_description": description,
	})
}
