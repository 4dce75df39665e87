package core

import (
	"context"

	"github.com/go-authgate/mcpgate/internal/models"
)

// AuthorizationServer is the first-party OAuth 2.0 grant server. Handlers
// depend on this port; the services package provides the implementation.
type AuthorizationServer interface {
	GetClient(ctx context.Context, clientID string) (*models.OAuthClient, error)

	// SaveCode issues an authorization code and returns its plaintext.
	SaveCode(ctx context.Context, req CodeRequest) (string, *models.AuthorizationCode, error)
	// GetCode resolves a plaintext code without consuming it.
	GetCode(ctx context.Context, plainCode string) (*models.AuthorizationCode, error)
	// RevokeCode consumes a code. Only one caller ever succeeds for a given code.
	RevokeCode(ctx context.Context, code *models.AuthorizationCode) error

	// SaveToken mints and stores an access/refresh pair.
	SaveToken(ctx context.Context, client *models.OAuthClient, userID, scopes string) (*TokenPair, error)
	GetAccessToken(ctx context.Context, rawToken string) (*models.AccessToken, error)
	GetRefreshToken(ctx context.Context, rawToken string) (*models.AccessToken, error)
	// RevokeToken revokes the pair the token belongs to.
	RevokeToken(ctx context.Context, rawToken string) error
	GenerateAccessToken() (string, error)
}

// CodeRequest carries the bindings captured at /authorize time.
type CodeRequest struct {
	Client              *models.OAuthClient
	UserID              string
	RedirectURI         string
	Scopes              string
	CodeChallenge       string
	CodeChallengeMethod string
}

// TokenPair is the result of a token grant.
type TokenPair struct {
	AccessToken  *models.AccessToken
	RefreshToken *models.AccessToken // nil when the grant does not issue one
}
