package middleware

import (
	"net/http"

	"github.com/go-authgate/mcpgate/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	csrfTokenKey    = "csrf_token"
	csrfFormField   = "csrf_token"
	csrfHeaderField = "X-CSRF-Token"
)

// CSRFMiddleware protects cookie-authenticated state-changing requests. The
// token is handed out by GET /api/auth/me and the consent descriptor, and
// must come back in the X-CSRF-Token header or a csrf_token form field.
// Bearer-authenticated requests are exempt.
func CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(ContextViaBearer) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		token, _ := session.Get(csrfTokenKey).(string)
		if token == "" {
			var err error
			if token, err = util.RandomHex(16); err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
				return
			}
			session.Set(csrfTokenKey, token)
			if err := session.Save(); err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
				return
			}
		}
		c.Set(csrfTokenKey, token)

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
			submitted := c.GetHeader(csrfHeaderField)
			if submitted == "" {
				submitted = c.PostForm(csrfFormField)
			}
			if !util.ConstantTimeEqual(submitted, token) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":             "invalid_request",
					"error_description": "CSRF token validation failed",
				})
				return
			}
		}

		c.Next()
	}
}

// GetCSRFToken retrieves the CSRF token from the context
func GetCSRFToken(c *gin.Context) string {
	return c.GetString(csrfTokenKey)
}
