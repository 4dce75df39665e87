package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/logger"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/store"
	"github.com/go-authgate/mcpgate/internal/util"

	"go.uber.org/zap"
)

// PKCE code challenge methods (RFC 7636)
const (
	CodeChallengeS256  = "S256"
	CodeChallengePlain = "plain"
)

// Authorization request errors. ErrUnauthorizedClient and ErrInvalidRedirectURI
// must be reported to the user agent directly; the rest may be redirected to
// the client.
var (
	ErrUnauthorizedClient      = core.NewError(core.ErrValidation, "client is not allowed to use this grant")
	ErrInvalidRedirectURI      = core.NewError(core.ErrValidation, "redirect_uri is not registered for this client")
	ErrUnsupportedResponseType = core.NewError(core.ErrValidation, "response_type must be code")
	ErrInvalidScope            = core.NewError(core.ErrValidation, "requested scope is not allowed")
	ErrInvalidChallengeMethod  = core.NewError(core.ErrValidation, "code_challenge_method must be S256 or plain")
	ErrPKCERequired            = core.NewError(core.ErrValidation, "code_challenge is required for public clients")
)

// Authorization code redemption errors. They all surface as invalid_grant.
var (
	ErrAuthCodeNotFound    = core.NewError(core.ErrNotFound, "authorization code not found")
	ErrAuthCodeExpired     = core.NewError(core.ErrNotFound, "authorization code expired")
	ErrAuthCodeAlreadyUsed = core.NewError(core.ErrNotFound, "authorization code already used")
	ErrRedirectURIMismatch = core.NewError(core.ErrNotFound, "redirect_uri does not match the authorization request")
	ErrInvalidCodeVerifier = core.NewError(core.ErrNotFound, "code_verifier does not match code_challenge")
)

// AuthorizationRequest holds validated parameters for an authorization request
type AuthorizationRequest struct {
	Client              *models.OAuthClient
	RedirectURI         string
	Scopes              string
	CodeChallenge       string
	CodeChallengeMethod string
}

// CodeRequest binds the validated request to the consenting user.
func (r *AuthorizationRequest) CodeRequest(userID string) core.CodeRequest {
	return core.CodeRequest{
		Client:              r.Client,
		UserID:              userID,
		RedirectURI:         r.RedirectURI,
		Scopes:              r.Scopes,
		CodeChallenge:       r.CodeChallenge,
		CodeChallengeMethod: r.CodeChallengeMethod,
	}
}

// AuthorizationService issues and redeems authorization codes (RFC 6749 §4.1).
type AuthorizationService struct {
	store        core.GrantStore
	clients      *ClientService
	config       *config.Config
	metrics      core.Recorder
	auditService *AuditService
	log          *zap.Logger
	now          func() time.Time
}

func NewAuthorizationService(
	s core.GrantStore,
	clients *ClientService,
	cfg *config.Config,
	metrics core.Recorder,
	auditService *AuditService,
	log *zap.Logger,
) *AuthorizationService {
	return &AuthorizationService{
		store:        s,
		clients:      clients,
		config:       cfg,
		metrics:      metrics,
		auditService: auditService,
		log:          log.Named("authorization"),
		now:          time.Now,
	}
}

// ValidateAuthorizationRequest validates the parameters of GET /authorize.
// Client and redirect_uri are checked first so that later errors can safely be
// redirected.
func (s *AuthorizationService) ValidateAuthorizationRequest(
	ctx context.Context,
	clientID, redirectURI, responseType, scope, codeChallenge, codeChallengeMethod string,
) (*AuthorizationRequest, error) {
	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, ErrUnauthorizedClient
		}
		return nil, err
	}
	if !client.AllowsGrant(GrantTypeAuthorizationCode) {
		return nil, ErrUnauthorizedClient
	}
	if redirectURI == "" || !client.HasRedirectURI(redirectURI) {
		return nil, ErrInvalidRedirectURI
	}

	req := &AuthorizationRequest{Client: client, RedirectURI: redirectURI}

	if responseType != "code" {
		return req, ErrUnsupportedResponseType
	}

	if scope == "" {
		scope = client.Scope.Join(" ")
	} else if !scopesSubset(scope, client.Scope) {
		return req, ErrInvalidScope
	}
	req.Scopes = scope

	if codeChallenge != "" && codeChallengeMethod == "" {
		codeChallengeMethod = CodeChallengePlain
	}
	switch codeChallengeMethod {
	case "", CodeChallengeS256, CodeChallengePlain:
	default:
		return req, ErrInvalidChallengeMethod
	}
	if codeChallengeMethod != "" && codeChallenge == "" {
		return req, ErrPKCERequired
	}
	if client.IsPublic() && s.config.PKCERequiredForPublic && codeChallenge == "" {
		return req, ErrPKCERequired
	}
	req.CodeChallenge = codeChallenge
	req.CodeChallengeMethod = codeChallengeMethod

	return req, nil
}

// SaveCode generates a one-time authorization code and stores its hash.
// Returns the plaintext code (to be sent in the redirect) and the stored record.
func (s *AuthorizationService) SaveCode(
	ctx context.Context,
	req core.CodeRequest,
) (string, *models.AuthorizationCode, error) {
	plainCode, err := util.OpaqueToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate authorization code: %w", err)
	}

	record := &models.AuthorizationCode{
		CodeHash:            util.SHA256Hex(plainCode),
		CodePrefix:          logger.Prefix(plainCode),
		ClientID:            req.Client.ID,
		UserID:              req.UserID,
		RedirectURI:         req.RedirectURI,
		Scopes:              req.Scopes,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ExpiresAt:           s.now().Add(s.config.AuthCodeExpiration),
	}
	if err := s.store.CreateAuthorizationCode(ctx, record); err != nil {
		return "", nil, fmt.Errorf("failed to save authorization code: %w", err)
	}

	s.metrics.RecordAuthorizationCode("issued")
	s.log.Info("authorization code issued",
		zap.String("code_prefix", record.CodePrefix),
		zap.String("client_id", record.ClientID),
		zap.String("user_id", record.UserID),
	)
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventAuthorizationCodeGenerated,
		Severity:     models.SeverityInfo,
		ActorUserID:  req.UserID,
		ResourceType: models.ResourceAuthorization,
		ResourceID:   record.CodePrefix,
		Action:       "Authorization code generated",
		Details: models.AuditDetails{
			"client_id":    record.ClientID,
			"scopes":       record.Scopes,
			"pkce":         record.UsesPKCE(),
			"redirect_uri": record.RedirectURI,
		},
		Success: true,
	})

	return plainCode, record, nil
}

// DenyAuthorization records that userID declined req on the consent screen.
func (s *AuthorizationService) DenyAuthorization(ctx context.Context, req *AuthorizationRequest, userID string) {
	s.metrics.RecordAuthorizationCode("denied")
	s.log.Info("authorization denied by user",
		zap.String("client_id", req.Client.ID),
		zap.String("user_id", userID),
	)
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventAuthorizationDenied,
		Severity:     models.SeverityInfo,
		ActorUserID:  userID,
		ResourceType: models.ResourceClient,
		ResourceID:   req.Client.ID,
		Action:       "Authorization request denied",
		Details:      models.AuditDetails{"scopes": req.Scopes},
		Success:      true,
	})
}

// GetCode resolves a plaintext code without consuming it.
func (s *AuthorizationService) GetCode(ctx context.Context, plainCode string) (*models.AuthorizationCode, error) {
	if plainCode == "" {
		return nil, ErrAuthCodeNotFound
	}
	record, err := s.store.GetAuthorizationCodeByHash(ctx, util.SHA256Hex(plainCode))
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrAuthCodeNotFound
	}
	return record, err
}

// RevokeCode consumes a code. Of several concurrent callers exactly one
// succeeds; the rest get ErrAuthCodeAlreadyUsed.
func (s *AuthorizationService) RevokeCode(ctx context.Context, code *models.AuthorizationCode) error {
	now := s.now()
	if err := s.store.MarkAuthorizationCodeUsed(ctx, code.ID, now); err != nil {
		if errors.Is(err, store.ErrAuthCodeAlreadyUsed) {
			return ErrAuthCodeAlreadyUsed
		}
		return fmt.Errorf("failed to mark code as used: %w", err)
	}
	code.UsedAt = &now
	return nil
}

// ExchangeCode validates a code presented by an authenticated client and
// consumes it. The caller issues tokens after this returns successfully.
func (s *AuthorizationService) ExchangeCode(
	ctx context.Context,
	client *models.OAuthClient,
	plainCode, redirectURI, codeVerifier string,
) (*models.AuthorizationCode, error) {
	record, err := s.GetCode(ctx, plainCode)
	if err != nil {
		s.metrics.RecordAuthorizationCode("invalid")
		return nil, err
	}

	if err := s.checkCode(record, client, redirectURI, codeVerifier); err != nil {
		if errors.Is(err, ErrAuthCodeAlreadyUsed) {
			s.replayed(ctx, record)
			return nil, err
		}
		s.metrics.RecordAuthorizationCode("invalid")
		s.log.Info("authorization code rejected",
			zap.String("code_prefix", record.CodePrefix),
			zap.String("client_id", client.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.RevokeCode(ctx, record); err != nil {
		if errors.Is(err, ErrAuthCodeAlreadyUsed) {
			s.replayed(ctx, record)
		}
		return nil, err
	}

	s.metrics.RecordAuthorizationCode("exchanged")
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventAuthorizationCodeExchanged,
		Severity:     models.SeverityInfo,
		ActorUserID:  record.UserID,
		ResourceType: models.ResourceAuthorization,
		ResourceID:   record.CodePrefix,
		Action:       "Authorization code exchanged for token",
		Details: models.AuditDetails{
			"client_id": client.ID,
			"scopes":    record.Scopes,
		},
		Success: true,
	})

	return record, nil
}

func (s *AuthorizationService) checkCode(
	record *models.AuthorizationCode,
	client *models.OAuthClient,
	redirectURI, codeVerifier string,
) error {
	// A code issued to another client is reported as unknown.
	if record.ClientID != client.ID {
		return ErrAuthCodeNotFound
	}
	if record.IsUsed() {
		return ErrAuthCodeAlreadyUsed
	}
	if record.IsExpiredAt(s.now()) {
		return ErrAuthCodeExpired
	}
	if record.RedirectURI != redirectURI {
		return ErrRedirectURIMismatch
	}
	if !record.UsesPKCE() {
		if codeVerifier != "" {
			return ErrInvalidCodeVerifier
		}
		return nil
	}
	if !verifyPKCE(record.CodeChallenge, record.CodeChallengeMethod, codeVerifier) {
		return ErrInvalidCodeVerifier
	}
	return nil
}

func (s *AuthorizationService) replayed(ctx context.Context, record *models.AuthorizationCode) {
	s.metrics.RecordAuthorizationCode("replayed")
	s.log.Warn("authorization code replay",
		zap.String("code_prefix", record.CodePrefix),
		zap.String("client_id", record.ClientID),
	)
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventAuthorizationCodeReplayed,
		Severity:     models.SeverityWarning,
		ActorUserID:  record.UserID,
		ResourceType: models.ResourceAuthorization,
		ResourceID:   record.CodePrefix,
		Action:       "Authorization code reused",
		Details:      models.AuditDetails{"client_id": record.ClientID},
		Success:      false,
		ErrorMessage: ErrAuthCodeAlreadyUsed.Error(),
	})
}

// verifyPKCE validates code_verifier against the stored code_challenge
func verifyPKCE(codeChallenge, method, codeVerifier string) bool {
	if codeVerifier == "" {
		return false
	}
	switch method {
	case CodeChallengeS256:
		return util.ConstantTimeEqual(util.S256Challenge(codeVerifier), codeChallenge)
	case CodeChallengePlain, "":
		return util.ConstantTimeEqual(codeVerifier, codeChallenge)
	default:
		return false
	}
}

// scopesSubset reports whether every space-separated scope in requested is in allowed.
func scopesSubset(requested string, allowed []string) bool {
	for _, sc := range strings.Fields(requested) {
		if !slices.Contains(allowed, sc) {
			return false
		}
	}
	return true
}
