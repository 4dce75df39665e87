package bootstrap

import (
	"net/http"

	"github.com/go-authgate/mcpgate/internal/apps"
	"github.com/go-authgate/mcpgate/internal/cache"
	"github.com/go-authgate/mcpgate/internal/client"
	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/encryption"
	"github.com/go-authgate/mcpgate/internal/lock"
	"github.com/go-authgate/mcpgate/internal/metrics"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/oauthapp"
	"github.com/go-authgate/mcpgate/internal/services"
	"github.com/go-authgate/mcpgate/internal/store"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// serviceSet holds the business services shared by handlers and jobs
type serviceSet struct {
	audit         *services.AuditService
	user          *services.UserService
	client        *services.ClientService
	authorization *services.AuthorizationService
	token         *services.TokenService
	connection    *services.ConnectionService
}

// initializeServices creates all business logic services
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	codec *encryption.Codec,
	catalog *apps.Catalog,
	redisClient redis.UniversalClient,
	clientCache cache.Cache[models.OAuthClient],
	recorder metrics.Recorder,
	log *zap.Logger,
) serviceSet {
	auditService := services.NewAuditService(db, log, cfg.EnableAuditLogging, cfg.AuditLogBufferSize)
	clientService := services.NewClientService(db, cfg, clientCache, recorder, auditService, log)

	return serviceSet{
		audit:  auditService,
		user:   services.NewUserService(db, recorder, auditService, log),
		client: clientService,
		authorization: services.NewAuthorizationService(
			db,
			clientService,
			cfg,
			recorder,
			auditService,
			log,
		),
		token: services.NewTokenService(db, cfg, recorder, auditService, log),
		connection: services.NewConnectionService(
			db,
			codec,
			catalog,
			oauthapp.NewService(newTokenEndpointClient(cfg, log), recorder, log),
			initializeLocker(redisClient, log),
			cfg,
			recorder,
			auditService,
			log,
		),
	}
}

// initializeLocker picks the distributed refresh lock when Redis is available
func initializeLocker(redisClient redis.UniversalClient, log *zap.Logger) lock.Locker {
	if redisClient == nil {
		log.Info("connection refresh lock: local (single instance only)")
		return lock.Local{}
	}
	log.Info("connection refresh lock: redis")
	return lock.NewRedis(redisClient)
}

// newTokenEndpointClient builds the outbound client for external token
// endpoints. A failure here only loses the tuned transport, so it falls back
// to a plain client with the same timeout.
func newTokenEndpointClient(cfg *config.Config, log *zap.Logger) *http.Client {
	httpClient, err := client.NewTokenEndpointClient(cfg.OAuthTimeout)
	if err != nil {
		log.Warn("using default token endpoint client", zap.Error(err))
		return &http.Client{Timeout: cfg.OAuthTimeout}
	}
	return httpClient
}
