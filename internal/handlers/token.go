package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenHandler serves the token and revocation endpoints.
type TokenHandler struct {
	tokenService         *services.TokenService
	authorizationService *services.AuthorizationService
	clientService        *services.ClientService
	log                  *zap.Logger
}

func NewTokenHandler(
	ts *services.TokenService,
	as *services.AuthorizationService,
	cs *services.ClientService,
	log *zap.Logger,
) *TokenHandler {
	return &TokenHandler{
		tokenService:         ts,
		authorizationService: as,
		clientService:        cs,
		log:                  log.Named("token"),
	}
}

// Token handles POST /api/oauth/token for the authorization_code and
// refresh_token grants (RFC 6749 §4.1.3, §6).
func (h *TokenHandler) Token(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	grantType := c.PostForm("grant_type")
	switch grantType {
	case services.GrantTypeAuthorizationCode, services.GrantTypeRefreshToken:
	case "":
		oauthError(c, http.StatusBadRequest, errInvalidRequest, "grant_type is required")
		return
	default:
		oauthError(c, http.StatusBadRequest, "unsupported_grant_type",
			"Supported grant types: authorization_code, refresh_token")
		return
	}

	client, ok := h.authenticateClient(c, true)
	if !ok {
		return
	}

	if grantType == services.GrantTypeAuthorizationCode {
		h.handleAuthorizationCodeGrant(c, client)
		return
	}
	h.handleRefreshTokenGrant(c, client)
}

func (h *TokenHandler) handleAuthorizationCodeGrant(c *gin.Context, client *models.OAuthClient) {
	if !client.AllowsGrant(services.GrantTypeAuthorizationCode) {
		oauthError(c, http.StatusBadRequest, "unauthorized_client",
			"authorization_code grant is not enabled for this client")
		return
	}

	code := c.PostForm("code")
	redirectURI := c.PostForm("redirect_uri")
	if code == "" || redirectURI == "" {
		oauthError(c, http.StatusBadRequest, errInvalidRequest, "code and redirect_uri are required")
		return
	}

	ctx := c.Request.Context()
	record, err := h.authorizationService.ExchangeCode(ctx, client, code, redirectURI, c.PostForm("code_verifier"))
	if err != nil {
		h.grantError(c, err)
		return
	}

	pair, err := h.tokenService.ExchangeAuthorizationCode(ctx, client, record)
	if err != nil {
		h.grantError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse(pair, time.Now()))
}

func (h *TokenHandler) handleRefreshTokenGrant(c *gin.Context, client *models.OAuthClient) {
	refreshToken := c.PostForm("refresh_token")
	if refreshToken == "" {
		oauthError(c, http.StatusBadRequest, errInvalidRequest, "refresh_token is required")
		return
	}

	pair, err := h.tokenService.RefreshAccessToken(
		c.Request.Context(), client, refreshToken, c.PostForm("scope"),
	)
	if err != nil {
		h.grantError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse(pair, time.Now()))
}

// grantError reports a failed grant. Code and refresh token failures are
// all invalid_grant (RFC 6749 §5.2).
func (h *TokenHandler) grantError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorizedClient):
		oauthError(c, http.StatusBadRequest, "unauthorized_client", err.Error())
	case errors.Is(err, services.ErrInvalidScope):
		oauthError(c, http.StatusBadRequest, "invalid_scope", err.Error())
	case errors.Is(err, core.ErrNotFound):
		oauthError(c, http.StatusBadRequest, errInvalidGrant, err.Error())
	default:
		h.log.Error("token grant failed", zap.Error(err))
		oauthError(c, http.StatusInternalServerError, errServerError, "")
	}
}

// Revoke handles POST /api/oauth/revoke (RFC 7009). Client credentials are
// optional; when present they restrict revocation to the client's own
// tokens. The response is 200 whether or not the token existed.
func (h *TokenHandler) Revoke(c *gin.Context) {
	token := c.PostForm("token")
	if token == "" {
		oauthError(c, http.StatusBadRequest, errInvalidRequest, "token is required")
		return
	}

	var clientID string
	if _, _, found := clientCredentials(c); found {
		client, ok := h.authenticateClient(c, false)
		if !ok {
			return
		}
		clientID = client.ID
	}

	if err := h.tokenService.RevokeTokenForClient(c.Request.Context(), clientID, token); err != nil {
		h.log.Error("token revocation failed", zap.Error(err))
		oauthError(c, http.StatusServiceUnavailable, "temporarily_unavailable", "")
		return
	}
	c.Status(http.StatusOK)
}

// authenticateClient resolves the calling client from HTTP Basic or form
// credentials and writes an invalid_client response on failure. required
// controls whether absent credentials are an error.
func (h *TokenHandler) authenticateClient(c *gin.Context, required bool) (*models.OAuthClient, bool) {
	clientID, clientSecret, found := clientCredentials(c)
	if !found {
		if required {
			oauthError(c, http.StatusBadRequest, errInvalidRequest, "client_id is required")
		}
		return nil, false
	}

	client, err := h.clientService.AuthenticateClient(c.Request.Context(), clientID, clientSecret)
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			c.Header("WWW-Authenticate", `Basic realm="mcpgate"`)
			oauthError(c, http.StatusUnauthorized, errInvalidClient, "Client authentication failed")
			return nil, false
		}
		h.log.Error("client lookup failed", zap.String("client_id", clientID), zap.Error(err))
		oauthError(c, http.StatusInternalServerError, errServerError, "")
		return nil, false
	}
	return client, true
}

// clientCredentials reads client_secret_basic credentials, falling back to
// client_secret_post form fields. Basic credentials are form-urlencoded
// before base64 (RFC 6749 §2.3.1).
func clientCredentials(c *gin.Context) (clientID, clientSecret string, found bool) {
	if id, secret, ok := c.Request.BasicAuth(); ok {
		if unescaped, err := url.QueryUnescape(id); err == nil {
			id = unescaped
		}
		if unescaped, err := url.QueryUnescape(secret); err == nil {
			secret = unescaped
		}
		return id, secret, id != ""
	}
	clientID = c.PostForm("client_id")
	return clientID, c.PostForm("client_secret"), clientID != ""
}

func tokenResponse(pair *core.TokenPair, now time.Time) gin.H {
	expiresIn := int(pair.AccessToken.ExpiresAt.Sub(now).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	resp := gin.H{
		"access_token": pair.AccessToken.RawToken,
		"token_type":   "bearer",
		"expires_in":   expiresIn,
		"scope":        pair.AccessToken.Scopes,
	}
	if pair.RefreshToken != nil && pair.RefreshToken.RawToken != "" {
		resp["refresh_token"] = pair.RefreshToken.RawToken
	}
	return resp
}
