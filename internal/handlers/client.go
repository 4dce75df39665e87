package handlers

import (
	"errors"
	"net/http"

	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClientHandler serves dynamic client registration and client lookup.
type ClientHandler struct {
	clientService *services.ClientService
	log           *zap.Logger
}

func NewClientHandler(cs *services.ClientService, log *zap.Logger) *ClientHandler {
	return &ClientHandler{clientService: cs, log: log.Named("client")}
}

type registerRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	ClientName              string   `json:"client_name"`
	ClientURI               string   `json:"client_uri"`
	Scope                   string   `json:"scope"`
}

// Register handles POST /api/oauth/register (RFC 7591 §3).
func (h *ClientHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		oauthError(c, http.StatusBadRequest, "invalid_client_metadata", "Request body must be a JSON object")
		return
	}

	result, err := h.clientService.Register(c.Request.Context(), services.RegisterRequest{
		RedirectURIs:            req.RedirectURIs,
		TokenEndpointAuthMethod: req.TokenEndpointAuthMethod,
		GrantTypes:              req.GrantTypes,
		ResponseTypes:           req.ResponseTypes,
		ClientName:              req.ClientName,
		ClientURI:               req.ClientURI,
		Scope:                   req.Scope,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRedirectURIs):
			oauthError(c, http.StatusBadRequest, "invalid_redirect_uri", err.Error())
		case errors.Is(err, core.ErrValidation):
			oauthError(c, http.StatusBadRequest, "invalid_client_metadata", err.Error())
		default:
			respondError(c, h.log, err)
		}
		return
	}

	client := result.Client
	resp := gin.H{
		"client_id":                  client.ID,
		"client_id_issued_at":        client.CreatedAt.Unix(),
		"client_secret_expires_at":   0,
		"redirect_uris":              client.RedirectURIs,
		"grant_types":                client.Grants,
		"response_types":             []string{"code"},
		"token_endpoint_auth_method": client.TokenEndpointAuthMethod,
		"client_name":                client.Name,
		"scope":                      client.Scope.Join(" "),
	}
	if client.URI != "" {
		resp["client_uri"] = client.URI
	}
	if result.ClientSecret != "" {
		resp["client_secret"] = result.ClientSecret
	}
	c.JSON(http.StatusCreated, resp)
}

// Info handles GET /api/oauth/client?id=. It exposes only public metadata,
// which a consent screen needs to name the requesting client.
func (h *ClientHandler) Info(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		oauthError(c, http.StatusBadRequest, errInvalidRequest, "id is required")
		return
	}

	client, err := h.clientService.GetClient(c.Request.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":           client.ID,
		"name":         client.Name,
		"uri":          client.URI,
		"redirectUris": client.RedirectURIs,
		"scope":        client.Scope.Join(" "),
	}})
}
