package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/middleware"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionUsername = "username"

// isRedirectSafe reports whether redirectURL stays on this server: a
// relative path that is not protocol-relative, or an http(s) URL on the
// baseURL host.
func isRedirectSafe(redirectURL, baseURL string) bool {
	if redirectURL == "" {
		return true
	}

	// header injection
	if strings.ContainsAny(redirectURL, "\r\n") {
		return false
	}

	if strings.HasPrefix(redirectURL, "/") {
		// "//evil.com" and "/\evil.com" are read as hosts by browsers.
		return !strings.HasPrefix(redirectURL, "//") && !strings.Contains(redirectURL, "\\")
	}

	parsedRedirect, err := url.Parse(redirectURL)
	if err != nil {
		return false
	}

	if parsedRedirect.Scheme != "" && parsedRedirect.Scheme != "http" &&
		parsedRedirect.Scheme != "https" {
		return false
	}

	if parsedRedirect.Host != "" {
		parsedBase, err := url.Parse(baseURL)
		if err != nil {
			return false
		}
		if parsedRedirect.Host != parsedBase.Host {
			return false
		}
	}

	return true
}

// AuthHandler manages platform sessions for the JSON dashboard API.
type AuthHandler struct {
	userService *services.UserService
	baseURL     string
	log         *zap.Logger
}

func NewAuthHandler(us *services.UserService, baseURL string, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: us,
		baseURL:     baseURL,
		log:         log.Named("auth"),
	}
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Redirect string `json:"redirect" form:"redirect"`
}

// Login handles POST /api/auth/login. It accepts JSON or form bodies. A safe
// redirect target, typically the /authorize URL that returned
// login_required, is echoed back for the client to follow.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil || req.Username == "" || req.Password == "" {
		oauthError(c, http.StatusBadRequest, errInvalidRequest, "username and password are required")
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			oauthError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
			return
		}
		respondError(c, h.log, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserID, user.ID)
	session.Set(sessionUsername, user.Username)
	if err := session.Save(); err != nil {
		h.log.Error("failed to save session", zap.String("user_id", user.ID), zap.Error(err))
		oauthError(c, http.StatusInternalServerError, errServerError, "Failed to create session")
		return
	}

	resp := gin.H{"data": userJSON(user)}
	if req.Redirect != "" && isRedirectSafe(req.Redirect, h.baseURL) {
		resp["redirect"] = req.Redirect
	}
	c.JSON(http.StatusOK, resp)
}

// Logout clears the session.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		oauthError(c, http.StatusInternalServerError, errServerError, "Failed to save session")
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the logged-in user together with the CSRF token the dashboard
// must send on state-changing requests.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), middleware.UserID(c))
	if errors.Is(err, services.ErrUserNotFound) {
		// Account removed after login.
		sessions.Default(c).Clear()
		_ = sessions.Default(c).Save()
		oauthError(c, http.StatusUnauthorized, "login_required", "A platform session is required")
		return
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       userJSON(user),
		"csrf_token": middleware.GetCSRFToken(c),
	})
}

func userJSON(u *models.User) gin.H {
	return gin.H{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"role":     u.Role,
	}
}
