package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-authgate/mcpgate/internal/middleware"
	"github.com/go-authgate/mcpgate/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxStateLength = 1024
	consentApprove = "approve"
)

// AuthorizationHandler serves the authorization endpoint of the code flow.
type AuthorizationHandler struct {
	authorizationService *services.AuthorizationService
	log                  *zap.Logger
}

func NewAuthorizationHandler(as *services.AuthorizationService, log *zap.Logger) *AuthorizationHandler {
	return &AuthorizationHandler{
		authorizationService: as,
		log:                  log.Named("authorize"),
	}
}

// consentRequest carries the authorization parameters. GET /authorize reads
// them from the query string; POST /authorize gets them back from the
// consent screen as a form or JSON, together with the user's decision.
type consentRequest struct {
	ClientID            string `form:"client_id"             json:"client_id"`
	RedirectURI         string `form:"redirect_uri"          json:"redirect_uri"`
	ResponseType        string `form:"response_type"         json:"response_type"`
	Scope               string `form:"scope"                 json:"scope"`
	State               string `form:"state"                 json:"state"`
	CodeChallenge       string `form:"code_challenge"        json:"code_challenge"`
	CodeChallengeMethod string `form:"code_challenge_method" json:"code_challenge_method"`
	Action              string `form:"action"                json:"action"`
}

// validate resolves the request against the registered client. It writes
// the error response itself and returns nil when the request is rejected.
func (h *AuthorizationHandler) validate(c *gin.Context, in consentRequest) *services.AuthorizationRequest {
	req, err := h.authorizationService.ValidateAuthorizationRequest(
		c.Request.Context(),
		in.ClientID,
		in.RedirectURI,
		in.ResponseType,
		in.Scope,
		in.CodeChallenge,
		in.CodeChallengeMethod,
	)
	if err != nil {
		if req == nil {
			h.rejectDirectly(c, err)
			return nil
		}
		h.redirectWithError(c, req.RedirectURI, in.State, oauthErrorCode(err), err.Error())
		return nil
	}
	if len(in.State) > maxStateLength {
		h.redirectWithError(c, req.RedirectURI, "", errInvalidRequest, "state parameter exceeds maximum length")
		return nil
	}
	return req
}

// Authorize handles GET /authorize for a logged-in user. It never issues a
// code: a valid request is answered with the consent descriptor the UI shows
// the user, and the decision comes back through Consent.
func (h *AuthorizationHandler) Authorize(c *gin.Context) {
	in := consentRequest{
		ClientID:            c.Query("client_id"),
		RedirectURI:         c.Query("redirect_uri"),
		ResponseType:        c.Query("response_type"),
		Scope:               c.Query("scope"),
		State:               c.Query("state"),
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: c.Query("code_challenge_method"),
	}
	req := h.validate(c, in)
	if req == nil {
		return
	}

	// RFC 6749 §10.13: the consent screen must not be framed.
	c.Header("X-Frame-Options", "DENY")
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"client": gin.H{
			"client_id":   req.Client.ID,
			"client_name": req.Client.Name,
			"client_uri":  req.Client.URI,
		},
		"redirect_uri":          req.RedirectURI,
		"scope":                 req.Scopes,
		"scopes":                strings.Fields(req.Scopes),
		"state":                 in.State,
		"response_type":         in.ResponseType,
		"code_challenge":        req.CodeChallenge,
		"code_challenge_method": req.CodeChallengeMethod,
		"consent_endpoint":      PathAuthorize,
		"csrf_token":            middleware.GetCSRFToken(c),
	})
}

// Consent handles POST /authorize, the user's approve or deny decision. The
// request is validated again because the posted parameters are untrusted.
// Only an explicit approval issues a code.
func (h *AuthorizationHandler) Consent(c *gin.Context) {
	var in consentRequest
	if err := c.ShouldBind(&in); err != nil {
		oauthError(c, http.StatusBadRequest, errInvalidRequest, "malformed consent request")
		return
	}
	if in.ResponseType == "" {
		in.ResponseType = "code"
	}

	req := h.validate(c, in)
	if req == nil {
		return
	}

	userID := middleware.UserID(c)
	if in.Action != consentApprove {
		h.authorizationService.DenyAuthorization(c.Request.Context(), req, userID)
		h.redirectWithError(c, req.RedirectURI, in.State, "access_denied", "User denied the authorization request")
		return
	}

	code, _, err := h.authorizationService.SaveCode(c.Request.Context(), req.CodeRequest(userID))
	if err != nil {
		h.log.Error("failed to issue authorization code", zap.String("client_id", req.Client.ID), zap.Error(err))
		h.redirectWithError(c, req.RedirectURI, in.State, errServerError, "Failed to issue authorization code")
		return
	}

	if !redirectBack(c, req.RedirectURI, in.State, url.Values{"code": {code}}) {
		oauthError(c, http.StatusBadRequest, errInvalidRequest, "redirect_uri is not a valid URL")
	}
}

// redirectBack merges params (and state, when set) into the client's
// redirect URI, keeping any query it was registered with.
func redirectBack(c *gin.Context, redirectURI, state string, params url.Values) bool {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, u.String())
	return true
}

// rejectDirectly answers errors that must not be redirected because the
// redirect target could not be verified.
func (h *AuthorizationHandler) rejectDirectly(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorizedClient):
		oauthError(c, http.StatusBadRequest, "unauthorized_client", err.Error())
	case errors.Is(err, services.ErrInvalidRedirectURI):
		oauthError(c, http.StatusBadRequest, errInvalidRequest, err.Error())
	default:
		respondError(c, h.log, err)
	}
}

// redirectWithError sends the error back to a verified redirect URI
// (RFC 6749 §4.1.2.1).
func (h *AuthorizationHandler) redirectWithError(
	c *gin.Context,
	redirectURI, state, errorCode, description string,
) {
	params := url.Values{"error": {errorCode}, "error_description": {description}}
	if !redirectBack(c, redirectURI, state, params) {
		oauthError(c, http.StatusBadRequest, errorCode, description)
	}
}

// oauthErrorCode maps authorization request errors to RFC 6749 error codes.
func oauthErrorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrUnauthorizedClient):
		return "unauthorized_client"
	case errors.Is(err, services.ErrUnsupportedResponseType):
		return "unsupported_response_type"
	case errors.Is(err, services.ErrInvalidScope):
		return "invalid_scope"
	default:
		return errInvalidRequest
	}
}
