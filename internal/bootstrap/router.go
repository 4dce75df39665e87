package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/handlers"
	"github.com/go-authgate/mcpgate/internal/metrics"
	"github.com/go-authgate/mcpgate/internal/middleware"
	"github.com/go-authgate/mcpgate/internal/store"
	"github.com/go-authgate/mcpgate/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sessionCookieName  = "mcpgate_session"
	healthCheckTimeout = 2 * time.Second

	scopeMCP              = "mcp"
	scopeConnectionsRead  = "connections:read"
	scopeConnectionsWrite = "connections:write"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	db *store.Store,
	h handlerSet,
	svc serviceSet,
	recorder metrics.Recorder,
	redisClient redis.UniversalClient,
	log *zap.Logger,
) (*gin.Engine, error) {
	setupGinMode(cfg)
	r := gin.New()

	r.Use(metrics.HTTPMetricsMiddleware(recorder))
	r.Use(middleware.RequestLogger(log.Named("http")), gin.Recovery())
	r.Use(util.IPMiddleware())

	setupSessionMiddleware(r, cfg)

	r.GET("/health", createHealthCheckHandler(db, redisClient))
	setupMetricsEndpoint(r, cfg, log)

	rateLimiters, err := setupRateLimiting(cfg, redisClient, log)
	if err != nil {
		return nil, err
	}

	setupAllRoutes(r, cfg, h, svc, rateLimiters)

	log.Info("mcpgate server configured",
		zap.String("addr", cfg.ServerAddr),
		zap.String("base_url", cfg.BaseURL),
		zap.String("mcp_endpoint", cfg.BaseURL+"/mcp"),
	)
	return r, nil
}

// setupSessionMiddleware configures session handling middleware
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionCookieName, sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config, log *zap.Logger) {
	switch {
	case !cfg.MetricsEnabled:
		log.Info("prometheus metrics endpoint disabled")
	case cfg.MetricsToken != "":
		log.Info("prometheus metrics enabled at /metrics with bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Warn("prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	cfg *config.Config,
	h handlerSet,
	svc serviceSet,
	rateLimiters rateLimitMiddlewares,
) {
	metaURL := handlers.ProtectedResourceMetadataURL(cfg)

	// Discovery (RFC 8414, RFC 9728); the suffix form serves path-scoped resources
	r.GET(handlers.PathAuthorizationServerMeta, h.wellKnown.AuthorizationServer)
	r.GET(handlers.PathAuthorizationServerMeta+"/*suffix", h.wellKnown.AuthorizationServer)
	r.GET(handlers.PathProtectedResourceMetadata, h.wellKnown.ProtectedResource)
	r.GET(handlers.PathProtectedResourceMetadata+"/*suffix", h.wellKnown.ProtectedResource)

	// Platform session
	r.POST("/api/auth/login", h.auth.Login)
	session := r.Group("/api/auth")
	session.Use(middleware.RequireAuth(), middleware.CSRFMiddleware())
	{
		session.GET("/me", h.auth.Me)
		session.POST("/logout", h.auth.Logout)
	}

	// Authorization server
	consent := r.Group(handlers.PathAuthorize, middleware.RequireAuth(), middleware.CSRFMiddleware())
	consent.GET("", h.authorization.Authorize)
	consent.POST("", h.authorization.Consent)
	r.POST(handlers.PathToken, rateLimiters.token, h.token.Token)
	r.POST(handlers.PathRevoke, rateLimiters.token, h.token.Revoke)
	r.POST(handlers.PathRegister, rateLimiters.register, h.client.Register)
	r.GET("/api/oauth/client", h.client.Info)

	// Connections API (bearer token or session cookie)
	api := r.Group("/api")
	api.Use(middleware.RequireUser(svc.token, metaURL), middleware.CSRFMiddleware())
	{
		api.GET("/apps", h.apps.List)
		api.GET("/connections", middleware.RequireScope(scopeConnectionsRead), h.connection.List)
		api.POST("/connections", middleware.RequireScope(scopeConnectionsWrite), h.connection.Upsert)
		api.GET("/connections/:id", middleware.RequireScope(scopeConnectionsRead), h.connection.Get)
		api.DELETE("/connections/:id", middleware.RequireScope(scopeConnectionsWrite), h.connection.Delete)
	}

	// Admin
	r.GET("/api/admin/audit",
		middleware.RequireAuth(),
		middleware.RequireAdmin(svc.user),
		h.audit.ListAuditLogs,
	)

	// MCP streamable HTTP (bearer token only)
	mcpAuth := []gin.HandlerFunc{
		middleware.RequireBearer(svc.token, metaURL),
		middleware.RequireScope(scopeMCP),
		h.mcp.GinHandler(),
	}
	r.POST("/mcp", mcpAuth...)
	r.GET("/mcp", mcpAuth...)
	r.DELETE("/mcp", mcpAuth...)
}

// createHealthCheckHandler creates health check endpoint handler
func createHealthCheckHandler(db *store.Store, redisClient redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		body := gin.H{"status": "healthy", "database": "connected"}

		if err := db.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = "disconnected"
		}

		if redisClient != nil {
			body["redis"] = "connected"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "unhealthy"
				body["redis"] = "disconnected"
			}
		}

		c.JSON(status, body)
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	gin.SetMode(ginModeMap[cfg.IsProduction()])
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}
