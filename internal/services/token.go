package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/logger"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/store"
	"github.com/go-authgate/mcpgate/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidRefreshToken = core.NewError(core.ErrNotFound, "refresh token is invalid or revoked")
	ErrExpiredRefreshToken = core.NewError(core.ErrNotFound, "refresh token expired")
	ErrInvalidAccessToken  = core.NewError(core.ErrUnauthorized, "access token is invalid")
	ErrExpiredAccessToken  = core.NewError(core.ErrUnauthorized, "access token expired")
	ErrRevokedAccessToken  = core.NewError(core.ErrUnauthorized, "access token revoked")
)

// TokenService mints, rotates, validates and revokes opaque bearer tokens.
type TokenService struct {
	store        core.GrantStore
	config       *config.Config
	metrics      core.Recorder
	auditService *AuditService
	log          *zap.Logger
	now          func() time.Time
}

func NewTokenService(
	s core.GrantStore,
	cfg *config.Config,
	metrics core.Recorder,
	auditService *AuditService,
	log *zap.Logger,
) *TokenService {
	return &TokenService{
		store:        s,
		config:       cfg,
		metrics:      metrics,
		auditService: auditService,
		log:          log.Named("token"),
		now:          time.Now,
	}
}

// GenerateAccessToken returns a fresh opaque token value.
func (s *TokenService) GenerateAccessToken() (string, error) {
	return util.OpaqueToken()
}

func (s *TokenService) newToken(
	category, pairID, userID, clientID, scopes string,
	ttl time.Duration,
) (*models.AccessToken, error) {
	raw, err := s.GenerateAccessToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s token: %w", category, err)
	}
	return &models.AccessToken{
		ID:            uuid.New().String(),
		TokenHash:     util.SHA256Hex(raw),
		RawToken:      raw,
		TokenCategory: category,
		Status:        models.TokenStatusActive,
		PairID:        pairID,
		UserID:        userID,
		ClientID:      clientID,
		Scopes:        scopes,
		ExpiresAt:     s.now().Add(ttl),
	}, nil
}

func (s *TokenService) accessTTL(client *models.OAuthClient) time.Duration {
	if client.AccessTokenLifetime > 0 {
		return time.Duration(client.AccessTokenLifetime) * time.Second
	}
	return s.config.AccessTokenExpiration
}

func (s *TokenService) refreshTTL(client *models.OAuthClient) time.Duration {
	if client.RefreshTokenLifetime > 0 {
		return time.Duration(client.RefreshTokenLifetime) * time.Second
	}
	return s.config.RefreshTokenExpiration
}

// SaveToken mints and stores a new pair. A refresh token is issued only to
// clients registered for the refresh_token grant.
func (s *TokenService) SaveToken(
	ctx context.Context,
	client *models.OAuthClient,
	userID, scopes string,
) (*core.TokenPair, error) {
	pairID := uuid.New().String()

	access, err := s.newToken(models.TokenCategoryAccess, pairID, userID, client.ID, scopes, s.accessTTL(client))
	if err != nil {
		return nil, err
	}
	pair := &core.TokenPair{AccessToken: access}
	tokens := []*models.AccessToken{access}

	if client.AllowsGrant(GrantTypeRefreshToken) {
		refresh, err := s.newToken(models.TokenCategoryRefresh, pairID, userID, client.ID, scopes, s.refreshTTL(client))
		if err != nil {
			return nil, err
		}
		pair.RefreshToken = refresh
		tokens = append(tokens, refresh)
	}

	if err := s.store.CreateTokens(ctx, tokens...); err != nil {
		return nil, fmt.Errorf("failed to save tokens: %w", err)
	}
	return pair, nil
}

// ExchangeAuthorizationCode issues a pair for a code already validated and
// consumed by AuthorizationService.ExchangeCode.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	client *models.OAuthClient,
	code *models.AuthorizationCode,
) (*core.TokenPair, error) {
	pair, err := s.SaveToken(ctx, client, code.UserID, code.Scopes)
	if err != nil {
		return nil, err
	}

	s.recordIssued(GrantTypeAuthorizationCode, pair.RefreshToken != nil)
	s.log.Info("tokens issued",
		zap.String("grant_type", GrantTypeAuthorizationCode),
		zap.String("client_id", client.ID),
		zap.String("user_id", code.UserID),
		zap.String("access_token_prefix", logger.Prefix(pair.AccessToken.RawToken)),
	)
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventAccessTokenIssued,
		Severity:     models.SeverityInfo,
		ActorUserID:  code.UserID,
		ResourceType: models.ResourceToken,
		ResourceID:   pair.AccessToken.ID,
		Action:       "Access token issued via authorization code exchange",
		Details: models.AuditDetails{
			"client_id": client.ID,
			"scopes":    code.Scopes,
			"pair_id":   pair.AccessToken.PairID,
		},
		Success: true,
	})
	return pair, nil
}

// RefreshAccessToken implements the refresh_token grant. With rotation
// enabled the presented refresh token is revoked along with its pair and a new
// pair is returned; otherwise only the access token is replaced.
func (s *TokenService) RefreshAccessToken(
	ctx context.Context,
	client *models.OAuthClient,
	rawRefresh, requestedScopes string,
) (*core.TokenPair, error) {
	pair, err := s.refresh(ctx, client, rawRefresh, requestedScopes)
	s.metrics.RecordTokenRefresh(err == nil)
	if err != nil {
		return nil, err
	}

	s.recordIssued(GrantTypeRefreshToken, s.config.RotateRefreshTokens())
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventTokenRefreshed,
		Severity:     models.SeverityInfo,
		ActorUserID:  pair.AccessToken.UserID,
		ResourceType: models.ResourceToken,
		ResourceID:   pair.AccessToken.ID,
		Action:       "Access token refreshed",
		Details: models.AuditDetails{
			"client_id": client.ID,
			"scopes":    pair.AccessToken.Scopes,
			"rotation":  s.config.RefreshTokenRotation,
		},
		Success: true,
	})
	return pair, nil
}

func (s *TokenService) refresh(
	ctx context.Context,
	client *models.OAuthClient,
	rawRefresh, requestedScopes string,
) (*core.TokenPair, error) {
	if !client.AllowsGrant(GrantTypeRefreshToken) {
		return nil, ErrUnauthorizedClient
	}

	current, err := s.GetRefreshToken(ctx, rawRefresh)
	if err != nil {
		return nil, err
	}
	if !current.IsActive() || current.ClientID != client.ID {
		return nil, ErrInvalidRefreshToken
	}
	if current.IsExpiredAt(s.now()) {
		return nil, ErrExpiredRefreshToken
	}

	scopes := current.Scopes
	if requestedScopes != "" {
		if !scopesSubset(requestedScopes, strings.Fields(current.Scopes)) {
			return nil, ErrInvalidScope
		}
		scopes = requestedScopes
	}

	if s.config.RotateRefreshTokens() {
		pairID := uuid.New().String()
		access, err := s.newToken(models.TokenCategoryAccess, pairID, current.UserID, client.ID, scopes, s.accessTTL(client))
		if err != nil {
			return nil, err
		}
		next, err := s.newToken(models.TokenCategoryRefresh, pairID, current.UserID, client.ID, scopes, s.refreshTTL(client))
		if err != nil {
			return nil, err
		}
		if err := s.store.ReissueTokenPair(ctx, current, access, next); err != nil {
			return nil, s.refreshStoreError(err)
		}
		s.metrics.RecordTokenRevoked("rotation")
		return &core.TokenPair{AccessToken: access, RefreshToken: next}, nil
	}

	access, err := s.newToken(models.TokenCategoryAccess, current.PairID, current.UserID, client.ID, scopes, s.accessTTL(client))
	if err != nil {
		return nil, err
	}
	if err := s.store.RotateAccessToken(ctx, current, access, s.now()); err != nil {
		return nil, s.refreshStoreError(err)
	}
	current.RawToken = rawRefresh
	return &core.TokenPair{AccessToken: access, RefreshToken: current}, nil
}

// refreshStoreError maps a lost race on the refresh token to invalid_grant.
func (s *TokenService) refreshStoreError(err error) error {
	if errors.Is(err, store.ErrTokenNotActive) {
		return ErrInvalidRefreshToken
	}
	return fmt.Errorf("failed to rotate tokens: %w", err)
}

// GetAccessToken resolves a raw access token without checking its validity.
func (s *TokenService) GetAccessToken(ctx context.Context, rawToken string) (*models.AccessToken, error) {
	tok, err := s.lookup(ctx, rawToken)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrInvalidAccessToken
		}
		return nil, err
	}
	if tok.IsRefreshToken() {
		return nil, ErrInvalidAccessToken
	}
	return tok, nil
}

// GetRefreshToken resolves a raw refresh token without checking its validity.
func (s *TokenService) GetRefreshToken(ctx context.Context, rawToken string) (*models.AccessToken, error) {
	tok, err := s.lookup(ctx, rawToken)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !tok.IsRefreshToken() {
		return nil, ErrInvalidRefreshToken
	}
	return tok, nil
}

func (s *TokenService) lookup(ctx context.Context, rawToken string) (*models.AccessToken, error) {
	if rawToken == "" {
		return nil, store.ErrRecordNotFound
	}
	return s.store.GetTokenByHash(ctx, util.SHA256Hex(rawToken))
}

// ValidateAccessToken checks a bearer token presented to the protected API.
func (s *TokenService) ValidateAccessToken(ctx context.Context, rawToken string) (*models.AccessToken, error) {
	tok, err := s.GetAccessToken(ctx, rawToken)
	switch {
	case err != nil:
		s.metrics.RecordTokenValidation("invalid")
		return nil, err
	case !tok.IsActive():
		s.metrics.RecordTokenValidation("revoked")
		return nil, ErrRevokedAccessToken
	case tok.IsExpiredAt(s.now()):
		s.metrics.RecordTokenValidation("expired")
		return nil, ErrExpiredAccessToken
	}
	s.metrics.RecordTokenValidation("valid")
	return tok, nil
}

// RevokeToken revokes the pair rawToken belongs to. Unknown tokens are ignored
// (RFC 7009 §2.2).
func (s *TokenService) RevokeToken(ctx context.Context, rawToken string) error {
	return s.RevokeTokenForClient(ctx, "", rawToken)
}

// RevokeTokenForClient is RevokeToken restricted to tokens issued to clientID.
// An empty clientID skips the ownership check.
func (s *TokenService) RevokeTokenForClient(ctx context.Context, clientID, rawToken string) error {
	tok, err := s.lookup(ctx, rawToken)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if clientID != "" && tok.ClientID != clientID {
		s.log.Warn("revocation for token of another client ignored",
			zap.String("client_id", clientID),
			zap.String("owner_client_id", tok.ClientID),
		)
		return nil
	}

	n, err := s.store.RevokeTokenPair(ctx, tok.PairID)
	if err != nil {
		return fmt.Errorf("failed to revoke token pair: %w", err)
	}
	if n == 0 {
		return nil
	}

	s.metrics.RecordTokenRevoked("user_request")
	s.log.Info("token pair revoked",
		zap.String("pair_id", tok.PairID),
		zap.String("client_id", tok.ClientID),
		zap.Int64("revoked", n),
	)
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventTokenRevoked,
		Severity:     models.SeverityInfo,
		ActorUserID:  tok.UserID,
		ResourceType: models.ResourceToken,
		ResourceID:   tok.ID,
		Action:       "Token pair revoked",
		Details: models.AuditDetails{
			"client_id": tok.ClientID,
			"pair_id":   tok.PairID,
			"category":  tok.TokenCategory,
		},
		Success: true,
	})
	return nil
}

func (s *TokenService) recordIssued(grantType string, refreshIssued bool) {
	s.metrics.RecordTokenIssued(models.TokenCategoryAccess, grantType)
	if refreshIssued {
		s.metrics.RecordTokenIssued(models.TokenCategoryRefresh, grantType)
	}
}
