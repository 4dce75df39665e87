package core

import (
	"context"
	"time"

	"github.com/go-authgate/mcpgate/internal/models"
)

// ClientStore persists OAuth clients registered with the authorization server.
type ClientStore interface {
	CreateClient(ctx context.Context, client *models.OAuthClient) error
	GetClient(ctx context.Context, clientID string) (*models.OAuthClient, error)
}

// GrantStore persists authorization codes and issued tokens. It is the
// credential-store port behind the authorization server.
type GrantStore interface {
	ClientStore

	CreateAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) error
	GetAuthorizationCodeByHash(ctx context.Context, codeHash string) (*models.AuthorizationCode, error)
	MarkAuthorizationCodeUsed(ctx context.Context, id uint, usedAt time.Time) error

	CreateTokens(ctx context.Context, tokens ...*models.AccessToken) error
	GetTokenByHash(ctx context.Context, tokenHash string) (*models.AccessToken, error)
	RevokeTokenPair(ctx context.Context, pairID string) (int64, error)
	ReissueTokenPair(ctx context.Context, refresh *models.AccessToken, tokens ...*models.AccessToken) error
	RotateAccessToken(ctx context.Context, refresh, access *models.AccessToken, now time.Time) error
}

// ConnectionStore persists encrypted third-party connections.
type ConnectionStore interface {
	UpsertConnection(ctx context.Context, conn *models.AppConnection) error
	GetConnection(ctx context.Context, id, ownerID string) (*models.AppConnection, error)
	ListConnections(ctx context.Context, ownerID string) ([]models.AppConnection, error)
	UpdateConnectionValue(
		ctx context.Context,
		id string,
		expectedVersion int64,
		value models.EncryptedObject,
		status models.ConnectionStatus,
	) (int64, error)
	UpdateConnectionStatus(ctx context.Context, id string, status models.ConnectionStatus) error
	DeleteConnection(ctx context.Context, id, ownerID string) error
}
