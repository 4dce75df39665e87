package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/metrics"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), "sqlite", ":memory:", &config.Config{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:                "http://localhost:8080",
		AuthCodeExpiration:     10 * time.Minute,
		AccessTokenExpiration:  time.Hour,
		RefreshTokenExpiration: 24 * time.Hour,
		RefreshTokenRotation:   config.RotationReissue,
		PKCERequiredForPublic:  true,
		SupportedScopes:        []string{"mcp", "connections:read", "connections:write"},
		OAuthTimeout:           5 * time.Second,
		ClientCacheTTL:         time.Minute,
	}
}

type testServices struct {
	store   *store.Store
	config  *config.Config
	clients *ClientService
	authz   *AuthorizationService
	tokens  *TokenService
}

func newTestServices(t *testing.T, cfg *config.Config) *testServices {
	t.Helper()
	s := setupTestStore(t)
	m := metrics.NewNoopMetrics()
	log := zap.NewNop()
	clients := NewClientService(s, cfg, nil, m, nil, log)
	return &testServices{
		store:   s,
		config:  cfg,
		clients: clients,
		authz:   NewAuthorizationService(s, clients, cfg, m, nil, log),
		tokens:  NewTokenService(s, cfg, m, nil, log),
	}
}

// registerClient registers a client and returns it with its plaintext secret.
func (ts *testServices) registerClient(t *testing.T, method string, grants ...string) (*models.OAuthClient, string) {
	t.Helper()
	res, err := ts.clients.Register(context.Background(), RegisterRequest{
		RedirectURIs:            []string{"https://a.test/cb"},
		TokenEndpointAuthMethod: method,
		GrantTypes:              grants,
		ClientName:              "test client",
	})
	require.NoError(t, err)
	return res.Client, res.ClientSecret
}

// issueCode runs /authorize validation and stores a code for userID.
func (ts *testServices) issueCode(
	t *testing.T,
	client *models.OAuthClient,
	userID, challenge, method string,
) string {
	t.Helper()
	ctx := context.Background()
	req, err := ts.authz.ValidateAuthorizationRequest(
		ctx, client.ID, "https://a.test/cb", "code", "", challenge, method,
	)
	require.NoError(t, err)
	code, _, err := ts.authz.SaveCode(ctx, req.CodeRequest(userID))
	require.NoError(t, err)
	return code
}
