package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/go-authgate/mcpgate/internal/apps"
	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/encryption"
	"github.com/go-authgate/mcpgate/internal/lock"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/oauthapp"
	"github.com/go-authgate/mcpgate/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrConnectionNotFound     = core.NewError(core.ErrNotFound, "connection not found")
	ErrConnectionTypeMismatch = core.NewError(core.ErrValidation, "connection type does not match the app")
	ErrAuthCodeRequired       = core.NewError(core.ErrValidation, "code is required for OAUTH2 connections")
	ErrSecretTextRequired     = core.NewError(core.ErrValidation, "secret_text is required for SECRET_TEXT connections")
)

// OAuthAppClient claims and refreshes tokens at external token endpoints.
type OAuthAppClient interface {
	Claim(ctx context.Context, appName string, req oauthapp.ClaimRequest) (*models.OAuth2Value, error)
	Refresh(ctx context.Context, appName, ownerID string, current *models.OAuth2Value) (*models.OAuth2Value, error)
}

// UpsertParams describes a connection to create or replace.
type UpsertParams struct {
	OwnerID      string
	AppName      string
	DisplayName  string
	Type         models.ConnectionType // defaults to the app's auth type
	Code         string
	CodeVerifier string
	RedirectURL  string
	Scope        string
	Props        map[string]any
	SecretText   string
}

// ConnectionService stores users' third-party credentials encrypted and keeps
// OAuth2 tokens fresh on read.
type ConnectionService struct {
	store        core.ConnectionStore
	codec        *encryption.Codec
	catalog      *apps.Catalog
	oauth        OAuthAppClient
	locker       lock.Locker
	metrics      core.Recorder
	auditService *AuditService
	log          *zap.Logger

	now      func() time.Time
	skew     time.Duration
	lockTTL  time.Duration
	lockWait time.Duration

	refreshes singleflight.Group
}

func NewConnectionService(
	s core.ConnectionStore,
	codec *encryption.Codec,
	catalog *apps.Catalog,
	oauth OAuthAppClient,
	locker lock.Locker,
	cfg *config.Config,
	metrics core.Recorder,
	auditService *AuditService,
	log *zap.Logger,
) *ConnectionService {
	if locker == nil {
		locker = lock.Local{}
	}
	return &ConnectionService{
		store:        s,
		codec:        codec,
		catalog:      catalog,
		oauth:        oauth,
		locker:       locker,
		metrics:      metrics,
		auditService: auditService,
		log:          log.Named("connection"),
		now:          time.Now,
		skew:         cfg.ConnectionRefreshSkew,
		lockTTL:      2*cfg.OAuthTimeout + 5*time.Second,
		lockWait:     cfg.OAuthTimeout + 5*time.Second,
	}
}

// SetClock overrides the time source used by NeedRefresh.
func (s *ConnectionService) SetClock(now func() time.Time) {
	s.now = now
}

// Upsert claims or records a credential and stores it as ACTIVE, replacing
// any connection with the same (owner, app, display name).
func (s *ConnectionService) Upsert(ctx context.Context, p UpsertParams) (*models.Connection, error) {
	if p.OwnerID == "" {
		return nil, core.Validationf("owner is required")
	}
	app, err := s.catalog.Lookup(p.AppName)
	if err != nil {
		return nil, err
	}
	if p.Type == "" {
		p.Type = app.AuthType
	}
	if p.Type != app.AuthType {
		return nil, ErrConnectionTypeMismatch
	}
	displayName := strings.TrimSpace(p.DisplayName)
	if displayName == "" {
		displayName = app.DisplayName
	}

	var value models.ConnectionValue
	switch p.Type {
	case models.ConnectionTypeOAuth2:
		if p.Code == "" {
			return nil, ErrAuthCodeRequired
		}
		if app.PKCE && p.CodeVerifier == "" {
			return nil, core.Validationf("code_verifier is required for %s", app.Name)
		}
		scope := p.Scope
		if scope == "" {
			scope = strings.Join(app.Scope, " ")
		}
		claimed, err := s.oauth.Claim(ctx, app.Name, oauthapp.ClaimRequest{
			Code:                p.Code,
			CodeVerifier:        p.CodeVerifier,
			ClientID:            app.ClientID,
			ClientSecret:        app.ClientSecret,
			TokenURL:            app.TokenURL,
			Scope:               scope,
			AuthorizationMethod: app.AuthorizationMethod,
			Props:               maps.Clone(p.Props),
			RedirectURL:         p.RedirectURL,
		})
		if err != nil {
			return nil, err
		}
		value = claimed
	case models.ConnectionTypeSecretText:
		if p.SecretText == "" {
			return nil, ErrSecretTextRequired
		}
		value = &models.SecretTextValue{Type: models.ConnectionTypeSecretText, SecretText: p.SecretText}
	case models.ConnectionTypeNoAuth:
		value = &models.NoAuthValue{Type: models.ConnectionTypeNoAuth}
	default:
		return nil, core.Validationf("unknown connection type %q", p.Type)
	}

	sealed, err := s.codec.Encrypt(value)
	if err != nil {
		return nil, err
	}

	row := &models.AppConnection{
		ID:          uuid.New().String(),
		AppName:     app.Name,
		OwnerID:     p.OwnerID,
		DisplayName: displayName,
		Type:        p.Type,
		Status:      models.ConnectionStatusActive,
		Value:       sealed,
	}
	if err := s.store.UpsertConnection(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to save connection: %w", err)
	}

	s.log.Info("connection saved",
		zap.String("connection_id", row.ID),
		zap.String("app", row.AppName),
		zap.String("owner_id", row.OwnerID),
		zap.String("type", string(row.Type)),
		zap.Int64("version", row.Version),
	)
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventConnectionCreated,
		Severity:     models.SeverityInfo,
		ActorUserID:  p.OwnerID,
		ResourceType: models.ResourceConnection,
		ResourceID:   row.ID,
		Action:       "Connection saved",
		Details: models.AuditDetails{
			"app":          row.AppName,
			"display_name": row.DisplayName,
			"type":         string(row.Type),
		},
		Success: true,
	})

	return models.NewConnection(row, value), nil
}

// GetOne returns a decrypted connection, refreshing and persisting it first
// when its access token has expired. Stale credentials are never returned: a
// failed refresh marks the connection ERROR and returns the error.
//
// The value is returned in full, refresh_token and client_secret included.
// Anything that leaves the process must use GetSanitized instead.
func (s *ConnectionService) GetOne(ctx context.Context, id, ownerID string) (*models.Connection, error) {
	conn, err := s.load(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if !s.NeedRefresh(conn, s.now()) {
		return conn, nil
	}
	return s.refresh(ctx, conn)
}

// GetSanitized is GetOne with the result passed through Sanitize.
func (s *ConnectionService) GetSanitized(ctx context.Context, id, ownerID string) (*models.Connection, error) {
	conn, err := s.GetOne(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	return Sanitize(conn), nil
}

// NeedRefresh reports whether conn holds an expired OAuth2 access token.
// Connections in ERROR are never refreshed, and neither are tokens whose
// lifetime the upstream did not report.
func (s *ConnectionService) NeedRefresh(conn *models.Connection, now time.Time) bool {
	if conn.Status == models.ConnectionStatusError || conn.Type != models.ConnectionTypeOAuth2 {
		return false
	}
	value, ok := conn.Value.(*models.OAuth2Value)
	if !ok || value.ExpiresIn <= 0 {
		return false
	}
	return !now.Before(value.ExpiresAt().Add(-s.skew))
}

// Sanitize returns a copy of conn without refresh_token and client_secret.
func Sanitize(conn *models.Connection) *models.Connection {
	if conn == nil {
		return nil
	}
	out := *conn
	if value, ok := conn.Value.(*models.OAuth2Value); ok {
		clean := value.Clone()
		clean.RefreshToken = ""
		clean.ClientSecret = ""
		out.Value = clean
	}
	return &out
}

// List returns the owner's connections, sanitized and without refreshing.
// Rows that cannot be decrypted are reported with status ERROR and no value.
func (s *ConnectionService) List(ctx context.Context, ownerID string) ([]*models.Connection, error) {
	rows, err := s.store.ListConnections(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Connection, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		value, err := s.codec.DecryptValue(row.Value, row.Type)
		if err != nil {
			s.markError(ctx, row, err)
			row.Status = models.ConnectionStatusError
			out = append(out, models.NewConnection(row, nil))
			continue
		}
		out = append(out, Sanitize(models.NewConnection(row, value)))
	}
	return out, nil
}

// Delete removes one of the owner's connections.
func (s *ConnectionService) Delete(ctx context.Context, id, ownerID string) error {
	err := s.store.DeleteConnection(ctx, id, ownerID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return ErrConnectionNotFound
	}
	if err != nil {
		return err
	}

	s.log.Info("connection deleted", zap.String("connection_id", id), zap.String("owner_id", ownerID))
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventConnectionDeleted,
		Severity:     models.SeverityInfo,
		ActorUserID:  ownerID,
		ResourceType: models.ResourceConnection,
		ResourceID:   id,
		Action:       "Connection deleted",
		Success:      true,
	})
	return nil
}

// load fetches and decrypts a connection. A row that fails to decrypt is
// marked ERROR.
func (s *ConnectionService) load(ctx context.Context, id, ownerID string) (*models.Connection, error) {
	row, err := s.store.GetConnection(ctx, id, ownerID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrConnectionNotFound
	}
	if err != nil {
		return nil, err
	}

	value, err := s.codec.DecryptValue(row.Value, row.Type)
	if err != nil {
		s.markError(ctx, row, err)
		return nil, err
	}
	return models.NewConnection(row, value), nil
}

// refresh collapses concurrent refreshes of one connection into a single
// upstream exchange.
func (s *ConnectionService) refresh(ctx context.Context, stale *models.Connection) (*models.Connection, error) {
	executed := false
	v, err, shared := s.refreshes.Do(stale.ID, func() (any, error) {
		executed = true
		return s.refreshLocked(context.WithoutCancel(ctx), stale)
	})
	if shared && !executed {
		s.metrics.RecordConnectionRefresh(stale.AppName, "shared")
	}
	if err != nil {
		return nil, err
	}
	return v.(*models.Connection), nil
}

func (s *ConnectionService) refreshLocked(ctx context.Context, stale *models.Connection) (*models.Connection, error) {
	release, err := s.locker.Obtain(ctx, "connection:"+stale.ID, s.lockTTL, s.lockWait)
	if err != nil {
		return nil, fmt.Errorf("failed to lock connection for refresh: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release refresh lock", zap.String("connection_id", stale.ID), zap.Error(err))
		}
	}()

	// Another caller may have refreshed while we waited for the lock.
	current, err := s.load(ctx, stale.ID, stale.OwnerID)
	if err != nil {
		return nil, err
	}
	if !s.NeedRefresh(current, s.now()) {
		return current, nil
	}

	value := current.Value.(*models.OAuth2Value)
	next, err := s.oauth.Refresh(ctx, current.AppName, current.OwnerID, value)
	if err != nil {
		s.metrics.RecordConnectionRefresh(current.AppName, "error")
		s.markError(ctx, connectionRow(current), err)
		return nil, err
	}

	sealed, err := s.codec.Encrypt(next)
	if err != nil {
		return nil, err
	}
	version, err := s.store.UpdateConnectionValue(
		ctx, current.ID, current.Version(), sealed, models.ConnectionStatusActive,
	)
	if errors.Is(err, store.ErrVersionConflict) {
		// Someone else wrote first; their value wins and ours is discarded.
		s.log.Info("connection refresh lost version race",
			zap.String("connection_id", current.ID),
			zap.Int64("version", current.Version()),
		)
		return s.load(ctx, current.ID, current.OwnerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save refreshed connection: %w", err)
	}

	s.metrics.RecordConnectionRefresh(current.AppName, "success")
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventConnectionRefreshed,
		Severity:     models.SeverityInfo,
		ActorUserID:  current.OwnerID,
		ResourceType: models.ResourceConnection,
		ResourceID:   current.ID,
		Action:       "Connection refreshed",
		Details:      models.AuditDetails{"app": current.AppName, "version": version},
		Success:      true,
	})

	row := connectionRow(current)
	row.Value = sealed
	row.Status = models.ConnectionStatusActive
	row.Version = version
	row.UpdatedAt = s.now()
	return models.NewConnection(row, next), nil
}

// markError flags row as ERROR once. A row already in ERROR is left alone so
// repeated reads do not bump updated_at or flood the audit log.
func (s *ConnectionService) markError(ctx context.Context, row *models.AppConnection, cause error) {
	if row.Status == models.ConnectionStatusError {
		return
	}
	s.log.Error("connection marked as error",
		zap.String("connection_id", row.ID),
		zap.String("app", row.AppName),
		zap.String("owner_id", row.OwnerID),
		zap.Error(cause),
	)
	if err := s.store.UpdateConnectionStatus(context.WithoutCancel(ctx), row.ID, models.ConnectionStatusError); err != nil {
		s.log.Error("failed to mark connection as error", zap.String("connection_id", row.ID), zap.Error(err))
	}
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventConnectionRefreshFailed,
		Severity:     models.SeverityError,
		ActorUserID:  row.OwnerID,
		ResourceType: models.ResourceConnection,
		ResourceID:   row.ID,
		Action:       "Connection marked as error",
		Details:      models.AuditDetails{"app": row.AppName},
		Success:      false,
		ErrorMessage: cause.Error(),
	})
}

// connectionRow rebuilds the row metadata of conn. Value is left empty.
func connectionRow(conn *models.Connection) *models.AppConnection {
	return &models.AppConnection{
		ID:          conn.ID,
		AppName:     conn.AppName,
		OwnerID:     conn.OwnerID,
		DisplayName: conn.DisplayName,
		Type:        conn.Type,
		Status:      conn.Status,
		Version:     conn.Version(),
		CreatedAt:   conn.CreatedAt,
		UpdatedAt:   conn.UpdatedAt,
	}
}
