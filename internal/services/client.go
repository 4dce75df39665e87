package services

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-authgate/mcpgate/internal/cache"
	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Grant types this server issues tokens for.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

var supportedGrantTypes = []string{GrantTypeAuthorizationCode, GrantTypeRefreshToken}

var supportedAuthMethods = []string{
	models.AuthMethodClientSecretBasic,
	models.AuthMethodClientSecretPost,
	models.AuthMethodNone,
}

var (
	ErrClientNotFound      = core.NewError(core.ErrNotFound, "client not found")
	ErrInvalidClient       = core.NewError(core.ErrUnauthorized, "client authentication failed")
	ErrInvalidRedirectURIs = core.NewError(
		core.ErrValidation,
		"redirect_uris must be a non-empty list of absolute URIs without fragments",
	)
	ErrClientNameRequired    = core.NewError(core.ErrValidation, "client_name is required")
	ErrUnsupportedAuthMethod = core.NewError(core.ErrValidation, "unsupported token_endpoint_auth_method")
)

// RegisterRequest is an RFC 7591 client registration request.
type RegisterRequest struct {
	RedirectURIs            []string
	TokenEndpointAuthMethod string
	GrantTypes              []string
	ResponseTypes           []string
	ClientName              string
	ClientURI               string
	Scope                   string
}

// RegisterResult carries the stored client and, for confidential clients,
// the plaintext secret. The secret is never retrievable again.
type RegisterResult struct {
	Client       *models.OAuthClient
	ClientSecret string
}

// ClientService registers OAuth clients and resolves them for the grant flows.
type ClientService struct {
	store        core.ClientStore
	config       *config.Config
	cache        *cache.Loader[models.OAuthClient]
	metrics      core.Recorder
	auditService *AuditService
	log          *zap.Logger
}

func NewClientService(
	s core.ClientStore,
	cfg *config.Config,
	clientCache cache.Cache[models.OAuthClient],
	metrics core.Recorder,
	auditService *AuditService,
	log *zap.Logger,
) *ClientService {
	if clientCache == nil {
		clientCache = cache.NewMemoryCache[models.OAuthClient]()
	}
	return &ClientService{
		store:        s,
		config:       cfg,
		cache:        cache.NewLoader(clientCache, cfg.ClientCacheTTL),
		metrics:      metrics,
		auditService: auditService,
		log:          log.Named("client"),
	}
}

// Register validates RFC 7591 metadata and creates a client. Unsupported
// grant types and scopes are dropped; if nothing is left the defaults apply.
func (s *ClientService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := validateRedirectURIs(req.RedirectURIs); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.ClientName)
	if name == "" {
		return nil, ErrClientNameRequired
	}

	method := req.TokenEndpointAuthMethod
	if method == "" {
		method = models.AuthMethodClientSecretBasic
	}
	if !slices.Contains(supportedAuthMethods, method) {
		return nil, ErrUnsupportedAuthMethod
	}

	client := &models.OAuthClient{
		ID:                      uuid.New().String(),
		Name:                    name,
		URI:                     strings.TrimSpace(req.ClientURI),
		RedirectURIs:            models.StringArray(slices.Clone(req.RedirectURIs)),
		Grants:                  filterOrDefault(req.GrantTypes, supportedGrantTypes),
		Scope:                   filterOrDefault(strings.Fields(req.Scope), s.config.SupportedScopes),
		TokenEndpointAuthMethod: method,
		CreatedAt:               time.Now(),
	}

	var secret string
	if !client.IsPublic() {
		var err error
		if secret, err = client.GenerateSecret(ctx); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreateClient(ctx, client); err != nil {
		return nil, err
	}

	s.metrics.RecordClientRegistered()
	s.log.Info("client registered",
		zap.String("client_id", client.ID),
		zap.String("client_name", client.Name),
		zap.String("auth_method", method),
	)
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventClientRegistered,
		Severity:     models.SeverityInfo,
		ResourceType: models.ResourceClient,
		ResourceID:   client.ID,
		Action:       "Client registered",
		Details: models.AuditDetails{
			"client_name":   client.Name,
			"redirect_uris": []string(client.RedirectURIs),
			"grant_types":   []string(client.Grants),
			"scope":         client.Scope.Join(" "),
		},
		Success: true,
	})

	return &RegisterResult{Client: client, ClientSecret: secret}, nil
}

// GetClient resolves a client through the lookup cache.
func (s *ClientService) GetClient(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	if clientID == "" {
		return nil, ErrClientNotFound
	}
	client, err := s.cache.Get(ctx, "client:"+clientID, func(ctx context.Context) (models.OAuthClient, error) {
		c, err := s.store.GetClient(ctx, clientID)
		if err != nil {
			return models.OAuthClient{}, err
		}
		return *c, nil
	})
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// AuthenticateClient checks the credentials presented at the token endpoint.
// Public clients authenticate with client_id alone.
func (s *ClientService) AuthenticateClient(
	ctx context.Context,
	clientID, clientSecret string,
) (*models.OAuthClient, error) {
	client, err := s.GetClient(ctx, clientID)
	if errors.Is(err, ErrClientNotFound) {
		return nil, ErrInvalidClient
	}
	if err != nil {
		return nil, err
	}

	if client.IsPublic() {
		return client, nil
	}
	if clientSecret == "" || !client.ValidateSecret([]byte(clientSecret)) {
		s.log.Info("client authentication failed", zap.String("client_id", clientID))
		return nil, ErrInvalidClient
	}
	return client, nil
}

func validateRedirectURIs(uris []string) error {
	if len(uris) == 0 {
		return ErrInvalidRedirectURIs
	}
	for _, raw := range uris {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Fragment != "" || strings.Contains(raw, "#") {
			return ErrInvalidRedirectURIs
		}
	}
	return nil
}

// filterOrDefault keeps the requested values that appear in supported, in
// request order and without duplicates.
func filterOrDefault(requested, supported []string) models.StringArray {
	out := models.StringArray{}
	for _, v := range requested {
		if slices.Contains(supported, v) && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return models.StringArray(slices.Clone(supported))
	}
	return out
}
