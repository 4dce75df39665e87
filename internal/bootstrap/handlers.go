package bootstrap

import (
	"github.com/go-authgate/mcpgate/internal/apps"
	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/handlers"
	"github.com/go-authgate/mcpgate/internal/mcp"
	"github.com/go-authgate/mcpgate/internal/store"
	"github.com/go-authgate/mcpgate/internal/version"

	"go.uber.org/zap"
)

// handlerSet holds all HTTP handlers
type handlerSet struct {
	wellKnown     *handlers.WellKnownHandler
	auth          *handlers.AuthHandler
	authorization *handlers.AuthorizationHandler
	token         *handlers.TokenHandler
	client        *handlers.ClientHandler
	connection    *handlers.ConnectionHandler
	apps          *handlers.AppHandler
	audit         *handlers.AuditHandler
	mcp           *mcp.Server
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	cfg *config.Config,
	db *store.Store,
	catalog *apps.Catalog,
	svc serviceSet,
	log *zap.Logger,
) handlerSet {
	return handlerSet{
		wellKnown:     handlers.NewWellKnownHandler(cfg),
		auth:          handlers.NewAuthHandler(svc.user, cfg.BaseURL, log),
		authorization: handlers.NewAuthorizationHandler(svc.authorization, log),
		token:         handlers.NewTokenHandler(svc.token, svc.authorization, svc.client, log),
		client:        handlers.NewClientHandler(svc.client, log),
		connection:    handlers.NewConnectionHandler(svc.connection, log),
		apps:          handlers.NewAppHandler(catalog),
		audit:         handlers.NewAuditHandler(db, log),
		mcp:           mcp.NewServer(svc.connection, version.GetVersion(), log),
	}
}
