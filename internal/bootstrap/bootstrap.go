// Package bootstrap wires configuration, storage, services and the HTTP
// layer into a running server.
package bootstrap

import (
	"context"
	"net/http"

	"github.com/go-authgate/mcpgate/internal/apps"
	"github.com/go-authgate/mcpgate/internal/cache"
	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/encryption"
	"github.com/go-authgate/mcpgate/internal/metrics"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config
	Log    *zap.Logger

	// Core infrastructure
	DB              *store.Store
	Codec           *encryption.Codec
	Catalog         *apps.Catalog
	MetricsRecorder metrics.Recorder
	RedisClient     redis.UniversalClient
	ClientCache     cache.Cache[models.OAuthClient]

	// Business layer
	Services serviceSet

	// HTTP
	Handlers handlerSet
	Router   *gin.Engine
	Server   *http.Server
}

// New builds the application without starting it. Every resource it opened
// is released by Close.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Application, error) {
	app := &Application{Config: cfg, Log: log}

	// Phase 1: Validate configuration
	if err := validateConfiguration(cfg); err != nil {
		return nil, err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		app.Close()
		return nil, err
	}

	// Phase 3: Initialize business layer
	app.initializeBusinessLayer()

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Run initializes the application and serves until a shutdown signal arrives.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	app, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()
	return nil
}

// initializeInfrastructure sets up database, codec, catalog, metrics, Redis and caches
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	app.DB, err = initializeDatabase(ctx, app.Config, app.Log)
	if err != nil {
		return err
	}

	app.Codec, err = encryption.NewCodecFromHex(app.Config.EncryptionKey)
	if err != nil {
		return err
	}

	app.Catalog, err = initializeCatalog(app.Config, app.Log)
	if err != nil {
		return err
	}

	app.MetricsRecorder = initializeMetrics(app.Config, app.Log)

	app.RedisClient, err = initializeRedisClient(ctx, app.Config, app.Log)
	if err != nil {
		return err
	}

	app.ClientCache, err = initializeClientCache(ctx, app.Config, app.Log)
	if err != nil {
		return err
	}
	return nil
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer() {
	app.Services = initializeServices(
		app.Config,
		app.DB,
		app.Codec,
		app.Catalog,
		app.RedisClient,
		app.ClientCache,
		app.MetricsRecorder,
		app.Log,
	)
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() error {
	app.Handlers = initializeHandlers(app.Config, app.DB, app.Catalog, app.Services, app.Log)

	var err error
	app.Router, err = setupRouter(
		app.Config,
		app.DB,
		app.Handlers,
		app.Services,
		app.MetricsRecorder,
		app.RedisClient,
		app.Log,
	)
	if err != nil {
		return err
	}

	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// Close releases everything New opened. It is used on startup failure and by
// tests; a running server releases the same resources through shutdown jobs.
func (app *Application) Close() {
	if app.Services.audit != nil {
		ctx, cancel := context.WithTimeout(context.Background(), auditShutdownTimeout)
		_ = app.Services.audit.Shutdown(ctx)
		cancel()
	}
	if app.ClientCache != nil {
		_ = app.ClientCache.Close()
	}
	if app.RedisClient != nil {
		_ = app.RedisClient.Close()
	}
	if app.DB != nil {
		_ = app.DB.Close()
	}
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	addServerRunningJob(m, app.Server, app.Log)
	addServerShutdownJob(m, app.Server, app.Log)
	addCleanupJob(m, app.Config, app.DB, app.Log)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.Log)
	addAuditServiceShutdownJob(m, app.Services.audit, app.Log)
	addCacheShutdownJob(m, app.ClientCache, app.Log)
	addRedisClientShutdownJob(m, app.RedisClient, app.Log)
	addDatabaseShutdownJob(m, app.DB, app.Log)

	<-m.Done()
}
