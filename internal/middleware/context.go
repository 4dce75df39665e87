package middleware

import (
	"github.com/gin-gonic/gin"
)

// Gin context keys set by the auth middlewares.
const (
	ContextUserID    = "user_id"
	ContextClientID  = "client_id"
	ContextScopes    = "scopes"
	ContextRequestID = "request_id"
	ContextViaBearer = "via_bearer"
	ContextUser      = "user"
)

// UserID returns the authenticated platform user, or "" when the request is
// anonymous.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// ClientID returns the OAuth client behind a bearer-authenticated request.
func ClientID(c *gin.Context) string {
	return c.GetString(ContextClientID)
}

// Scopes returns the space-separated scopes of the presented access token.
func Scopes(c *gin.Context) string {
	return c.GetString(ContextScopes)
}
