package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-authgate/mcpgate/internal/apps"
	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/store"

	"go.uber.org/zap"
)

// initializeDatabase creates and initializes the database connection
func initializeDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) (*store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.DBInitTimeout)
	defer cancel()

	db, err := store.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, cfg, log.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info("database ready", zap.String("driver", cfg.DatabaseDriver))
	return db, nil
}

// initializeCatalog loads the third-party app catalog
func initializeCatalog(cfg *config.Config, log *zap.Logger) (*apps.Catalog, error) {
	catalog, err := apps.Load(cfg.AppsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load app catalog: %w", err)
	}
	log.Info("app catalog loaded",
		zap.String("path", cfg.AppsConfigPath),
		zap.Strings("apps", catalog.Names()),
	)
	return catalog, nil
}
