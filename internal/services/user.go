package services

import (
	"context"
	"errors"

	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/store"

	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = core.NewError(core.ErrUnauthorized, "invalid username or password")
	ErrUserNotFound       = core.NewError(core.ErrNotFound, "user not found")
)

// UserStore is the slice of the store the user service needs.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// UserService authenticates platform accounts.
type UserService struct {
	store        UserStore
	metrics      core.Recorder
	auditService *AuditService
	log          *zap.Logger
}

func NewUserService(
	s UserStore,
	metrics core.Recorder,
	auditService *AuditService,
	log *zap.Logger,
) *UserService {
	return &UserService{
		store:        s,
		metrics:      metrics,
		auditService: auditService,
		log:          log.Named("user"),
	}
}

// Authenticate checks username and password against the local account table.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}

	if user == nil || !user.CheckPassword(password) {
		s.metrics.RecordLogin(false)
		s.log.Info("login failed", zap.String("username", username))
		s.auditService.Log(ctx, AuditLogEntry{
			EventType:    models.EventAuthenticationFailure,
			Severity:     models.SeverityWarning,
			ResourceType: models.ResourceUser,
			ResourceID:   username,
			Action:       "Login failed",
			Success:      false,
			ErrorMessage: ErrInvalidCredentials.Error(),
		})
		return nil, ErrInvalidCredentials
	}

	s.metrics.RecordLogin(true)
	s.auditService.Log(ctx, AuditLogEntry{
		EventType:    models.EventAuthenticationSuccess,
		Severity:     models.SeverityInfo,
		ActorUserID:  user.ID,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
		Action:       "Login succeeded",
		Success:      true,
	})
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}
