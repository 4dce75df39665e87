package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-authgate/mcpgate/internal/cache"
	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/metrics"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/services"
	"github.com/go-authgate/mcpgate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	serverShutdownTimeout = 5 * time.Second
	auditShutdownTimeout  = 10 * time.Second
)

// createHTTPServer creates the HTTP server instance. WriteTimeout covers the
// slowest path: a connection refresh waiting on the lock plus one upstream call.
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3*cfg.OAuthTimeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server, log *zap.Logger) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal("failed to start server", zap.Error(err))
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, srv *http.Server, log *zap.Logger) {
	m.AddShutdownJob(func() error {
		log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
			return err
		}

		log.Info("server exited")
		return nil
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient redis.UniversalClient, log *zap.Logger) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := redisClient.Close(); err != nil {
			log.Error("error closing redis client", zap.Error(err))
			return err
		}
		log.Info("redis connection closed")
		return nil
	})
}

// addAuditServiceShutdownJob flushes buffered audit entries
func addAuditServiceShutdownJob(m *graceful.Manager, auditService *services.AuditService, log *zap.Logger) {
	m.AddShutdownJob(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), auditShutdownTimeout)
		defer cancel()

		if err := auditService.Shutdown(ctx); err != nil {
			log.Error("error shutting down audit service", zap.Error(err))
			return err
		}
		return nil
	})
}

// addCacheShutdownJob closes the client cache
func addCacheShutdownJob(m *graceful.Manager, c cache.Cache[models.OAuthClient], log *zap.Logger) {
	if c == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := c.Close(); err != nil {
			log.Error("error closing client cache", zap.Error(err))
		}
		return nil
	})
}

// addDatabaseShutdownJob closes the connection pool
func addDatabaseShutdownJob(m *graceful.Manager, db *store.Store, log *zap.Logger) {
	m.AddShutdownJob(func() error {
		if err := db.Close(); err != nil {
			log.Error("error closing database", zap.Error(err))
			return err
		}
		return nil
	})
}

// housekeepingStore is the part of the store the cleanup job needs.
type housekeepingStore interface {
	DeleteStaleAuthorizationCodes(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteOldAuditLogs(ctx context.Context, cutoff time.Time) (int64, error)
}

// addCleanupJob adds the periodic purge of stale codes, expired tokens and
// old audit logs
func addCleanupJob(m *graceful.Manager, cfg *config.Config, db housekeepingStore, log *zap.Logger) {
	if cfg.CleanupInterval <= 0 {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()

		// Run cleanup immediately on startup
		runCleanup(ctx, cfg, db, time.Now(), log)

		for {
			select {
			case <-ticker.C:
				runCleanup(ctx, cfg, db, time.Now(), log)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// runCleanup performs one housekeeping pass. Used codes are kept for one
// code lifetime so replays are still detected.
func runCleanup(
	ctx context.Context,
	cfg *config.Config,
	db housekeepingStore,
	now time.Time,
	log *zap.Logger,
) {
	type task struct {
		name   string
		cutoff time.Time
		fn     func(context.Context, time.Time) (int64, error)
	}
	tasks := []task{
		{"authorization_codes", now.Add(-cfg.AuthCodeExpiration), db.DeleteStaleAuthorizationCodes},
		{"tokens", now, db.DeleteExpiredTokens},
	}
	if cfg.AuditLogRetention > 0 {
		tasks = append(tasks, task{"audit_logs", now.Add(-cfg.AuditLogRetention), db.DeleteOldAuditLogs})
	}

	for _, t := range tasks {
		deleted, err := t.fn(ctx, t.cutoff)
		if err != nil {
			log.Error("cleanup failed", zap.String("table", t.name), zap.Error(err))
			continue
		}
		if deleted > 0 {
			log.Info("cleanup removed rows", zap.String("table", t.name), zap.Int64("deleted", deleted))
		}
	}
}

// gaugeStore is the part of the store the gauge job reads.
type gaugeStore interface {
	CountActiveTokensByCategory(ctx context.Context, category string) (int64, error)
	CountConnectionsByStatus(ctx context.Context) (map[models.ConnectionStatus]int64, error)
}

// addMetricsGaugeUpdateJob adds periodic metrics gauge update job
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db gaugeStore,
	recorder metrics.Recorder,
	log *zap.Logger,
) {
	if !cfg.MetricsEnabled || cfg.GaugeInterval <= 0 {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.GaugeInterval)
		defer ticker.Stop()

		errLog := newErrorLogger(log)
		updateGaugeMetrics(ctx, db, recorder, errLog)

		for {
			select {
			case <-ticker.C:
				updateGaugeMetrics(ctx, db, recorder, errLog)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// errorLogger handles rate-limited error logging
type errorLogger struct {
	mu              sync.Mutex
	log             *zap.Logger
	lastErrorTimes  map[string]time.Time
	rateLimitWindow time.Duration
	now             func() time.Time
}

// newErrorLogger creates a new error logger with rate limiting
func newErrorLogger(log *zap.Logger) *errorLogger {
	return &errorLogger{
		log:             log,
		lastErrorTimes:  make(map[string]time.Time),
		rateLimitWindow: 5 * time.Minute, // Log at most once per 5 minutes per operation
		now:             time.Now,
	}
}

// logIfNeeded logs an error only if rate limit allows. It reports whether
// the error was logged.
func (e *errorLogger) logIfNeeded(operation string, err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	lastTime, exists := e.lastErrorTimes[operation]
	if exists && now.Sub(lastTime) < e.rateLimitWindow {
		return false
	}

	e.log.Warn("gauge query failed, suppressing repeats",
		zap.String("operation", operation),
		zap.Duration("window", e.rateLimitWindow),
		zap.Error(err),
	)
	e.lastErrorTimes[operation] = now
	return true
}

var connectionStatuses = []models.ConnectionStatus{
	models.ConnectionStatusActive,
	models.ConnectionStatusMissing,
	models.ConnectionStatusError,
}

// updateGaugeMetrics refreshes token and connection gauges from the database
func updateGaugeMetrics(
	ctx context.Context,
	db gaugeStore,
	recorder metrics.Recorder,
	errLog *errorLogger,
) {
	for _, category := range []string{models.TokenCategoryAccess, models.TokenCategoryRefresh} {
		operation := "count_" + category + "_tokens"
		count, err := db.CountActiveTokensByCategory(ctx, category)
		if err != nil {
			recorder.RecordDatabaseQueryError(operation)
			errLog.logIfNeeded(operation, err)
			continue
		}
		recorder.SetActiveTokensCount(category, int(count))
	}

	counts, err := db.CountConnectionsByStatus(ctx)
	if err != nil {
		recorder.RecordDatabaseQueryError("count_connections")
		errLog.logIfNeeded("count_connections", err)
		return
	}
	for _, status := range connectionStatuses {
		recorder.SetConnectionsCount(string(status), int(counts[status]))
	}
}
