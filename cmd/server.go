package cmd

import (
	"fmt"

	"github.com/go-authgate/mcpgate/internal/bootstrap"
	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/logger"
	"github.com/go-authgate/mcpgate/internal/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServerCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the mcpgate HTTP server",
		Long: `Start the authorization server, the connections API and the MCP
endpoint. Configuration is read from the environment and an optional .env file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if addr != "" {
				cfg.ServerAddr = addr
			}

			log, err := logger.New(cfg.Environment, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			log.Info("starting mcpgate",
				zap.String("version", version.GetVersion()),
				zap.String("environment", cfg.Environment),
			)
			if err := bootstrap.Run(cmd.Context(), cfg, log); err != nil {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides SERVER_ADDR")
	return cmd
}
