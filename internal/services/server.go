package services

import (
	"context"

	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/models"
)

var _ core.AuthorizationServer = (*AuthorizationServer)(nil)

// AuthorizationServer implements core.AuthorizationServer on top of the
// client, authorization and token services.
type AuthorizationServer struct {
	clients *ClientService
	authz   *AuthorizationService
	tokens  *TokenService
}

func NewAuthorizationServer(
	clients *ClientService,
	authz *AuthorizationService,
	tokens *TokenService,
) *AuthorizationServer {
	return &AuthorizationServer{clients: clients, authz: authz, tokens: tokens}
}

func (a *AuthorizationServer) GetClient(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	return a.clients.GetClient(ctx, clientID)
}

func (a *AuthorizationServer) SaveCode(
	ctx context.Context,
	req core.CodeRequest,
) (string, *models.AuthorizationCode, error) {
	return a.authz.SaveCode(ctx, req)
}

func (a *AuthorizationServer) GetCode(ctx context.Context, plainCode string) (*models.AuthorizationCode, error) {
	return a.authz.GetCode(ctx, plainCode)
}

func (a *AuthorizationServer) RevokeCode(ctx context.Context, code *models.AuthorizationCode) error {
	return a.authz.RevokeCode(ctx, code)
}

func (a *AuthorizationServer) SaveToken(
	ctx context.Context,
	client *models.OAuthClient,
	userID, scopes string,
) (*core.TokenPair, error) {
	return a.tokens.SaveToken(ctx, client, userID, scopes)
}

func (a *AuthorizationServer) GetAccessToken(ctx context.Context, rawToken string) (*models.AccessToken, error) {
	return a.tokens.GetAccessToken(ctx, rawToken)
}

func (a *AuthorizationServer) GetRefreshToken(ctx context.Context, rawToken string) (*models.AccessToken, error) {
	return a.tokens.GetRefreshToken(ctx, rawToken)
}

func (a *AuthorizationServer) RevokeToken(ctx context.Context, rawToken string) error {
	return a.tokens.RevokeToken(ctx, rawToken)
}

func (a *AuthorizationServer) GenerateAccessToken() (string, error) {
	return a.tokens.GenerateAccessToken()
}
