package middleware

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-authgate/mcpgate/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	SessionUserID = "user_id"
)

// TokenValidator checks bearer tokens presented to protected routes.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, rawToken string) (*models.AccessToken, error)
}

// UserLookup resolves platform accounts for role checks.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// RequireAdmin must run after RequireAuth. Non-admin users get 403.
func RequireAdmin(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login_required"})
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), userID)
		if err != nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "forbidden",
				"error_description": "Admin access required",
			})
			return
		}
		c.Set(ContextUser, user)
		c.Next()
	}
}

// RequireAuth requires a platform session. Anonymous requests get a JSON
// login_required error rather than a redirect.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !setSessionUser(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "login_required",
				"error_description": "A platform session is required",
			})
			return
		}
		c.Next()
	}
}

// RequireBearer authenticates requests with an access token issued by this
// server. Failures point the client at the protected resource metadata
// (RFC 9728 §5.1).
func RequireBearer(tokens TokenValidator, resourceMetadataURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticateBearer(c, tokens, resourceMetadataURL) {
			return
		}
		c.Next()
	}
}

// RequireUser accepts either a bearer token or a platform session. A request
// carrying an Authorization header is always treated as a bearer request.
func RequireUser(tokens TokenValidator, resourceMetadataURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" && setSessionUser(c) {
			c.Next()
			return
		}
		if !authenticateBearer(c, tokens, resourceMetadataURL) {
			return
		}
		c.Next()
	}
}

// RequireScope rejects bearer requests whose token lacks scope. Session
// requests carry the user's full authority and pass through.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextViaBearer) || slices.Contains(strings.Fields(Scopes(c)), scope) {
			c.Next()
			return
		}
		c.Header("WWW-Authenticate", fmt.Sprintf(`Bearer error="insufficient_scope", scope=%q`, scope))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":             "insufficient_scope",
			"error_description": "The access token lacks the " + scope + " scope",
		})
	}
}

func setSessionUser(c *gin.Context) bool {
	userID, ok := sessions.Default(c).Get(SessionUserID).(string)
	if !ok || userID == "" {
		return false
	}
	c.Set(ContextUserID, userID)
	return true
}

func authenticateBearer(c *gin.Context, tokens TokenValidator, resourceMetadataURL string) bool {
	raw, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		abortBearer(c, resourceMetadataURL, "", "")
		return false
	}

	tok, err := tokens.ValidateAccessToken(c.Request.Context(), raw)
	if err != nil {
		abortBearer(c, resourceMetadataURL, "invalid_token", err.Error())
		return false
	}

	c.Set(ContextUserID, tok.UserID)
	c.Set(ContextClientID, tok.ClientID)
	c.Set(ContextScopes, tok.Scopes)
	c.Set(ContextViaBearer, true)
	return true
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortBearer(c *gin.Context, resourceMetadataURL, code, description string) {
	challenge := fmt.Sprintf(`Bearer resource_metadata=%q`, resourceMetadataURL)
	body := gin.H{"error": "unauthorized", "error_description": "Bearer token required"}
	if code != "" {
		challenge += fmt.Sprintf(`, error=%q, error_description=%q`, code, description)
		body = gin.H{"error": code, "error_description": description}
	}
	c.Header("WWW-Authenticate", challenge)
	c.AbortWithStatusJSON(http.StatusUnauthorized, body)
}
