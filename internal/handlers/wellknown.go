package handlers

import (
	"net/http"
	"strings"

	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/services"

	"github.com/gin-gonic/gin"
)

// Endpoint paths advertised in the discovery documents.
const (
	PathAuthorize                 = "/authorize"
	PathToken                     = "/api/oauth/token"
	PathRevoke                    = "/api/oauth/revoke"
	PathRegister                  = "/api/oauth/register"
	PathAuthorizationServerMeta   = "/.well-known/oauth-authorization-server"
	PathProtectedResourceMetadata = "/.well-known/oauth-protected-resource"
)

// WellKnownHandler serves the discovery documents clients use to find the
// authorization server.
type WellKnownHandler struct {
	config *config.Config
}

func NewWellKnownHandler(cfg *config.Config) *WellKnownHandler {
	return &WellKnownHandler{config: cfg}
}

// authorizationServerMetadata is the RFC 8414 §2 document.
type authorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

// protectedResourceMetadata is the RFC 9728 §2 document.
type protectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

func (h *WellKnownHandler) base() string {
	return strings.TrimRight(h.config.BaseURL, "/")
}

// AuthorizationServer handles /.well-known/oauth-authorization-server and any
// path-suffixed variant (RFC 8414 §3.1). Every issuer suffix resolves to the
// same server.
func (h *WellKnownHandler) AuthorizationServer(c *gin.Context) {
	base := h.base()
	c.JSON(http.StatusOK, authorizationServerMetadata{
		Issuer:                 base,
		AuthorizationEndpoint:  base + PathAuthorize,
		TokenEndpoint:          base + PathToken,
		RegistrationEndpoint:   base + PathRegister,
		RevocationEndpoint:     base + PathRevoke,
		ScopesSupported:        h.config.SupportedScopes,
		ResponseTypesSupported: []string{"code"},
		GrantTypesSupported: []string{
			services.GrantTypeAuthorizationCode,
			services.GrantTypeRefreshToken,
		},
		TokenEndpointAuthMethodsSupported: []string{
			models.AuthMethodClientSecretBasic,
			models.AuthMethodClientSecretPost,
			models.AuthMethodNone,
		},
		CodeChallengeMethodsSupported: []string{services.CodeChallengeS256, services.CodeChallengePlain},
	})
}

// ProtectedResource handles /.well-known/oauth-protected-resource and its
// path-suffixed variants. The suffix names the resource (RFC 9728 §3.1).
func (h *WellKnownHandler) ProtectedResource(c *gin.Context) {
	base := h.base()
	resource := base
	if suffix := strings.TrimRight(c.Param("suffix"), "/"); suffix != "" {
		resource = base + suffix
	}
	c.JSON(http.StatusOK, protectedResourceMetadata{
		Resource:               resource,
		AuthorizationServers:   []string{base},
		ScopesSupported:        h.config.SupportedScopes,
		BearerMethodsSupported: []string{"header"},
	})
}

// ProtectedResourceMetadataURL is the URL advertised in WWW-Authenticate
// challenges.
func ProtectedResourceMetadataURL(cfg *config.Config) string {
	return strings.TrimRight(cfg.BaseURL, "/") + PathProtectedResourceMetadata
}
