package bootstrap

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/store"
)

// validateConfiguration validates all configuration settings
func validateConfiguration(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateDatabaseConfig(cfg); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}
	return nil
}

// validateDatabaseConfig checks that the selected driver has what it needs
func validateDatabaseConfig(cfg *config.Config) error {
	drivers := store.SupportedDrivers()
	if !slices.Contains(drivers, cfg.DatabaseDriver) {
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be: %s)",
			cfg.DatabaseDriver, strings.Join(drivers, ", "))
	}
	if cfg.DatabaseDriver == "postgres" && cfg.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required when DATABASE_DRIVER=postgres")
	}
	return nil
}
