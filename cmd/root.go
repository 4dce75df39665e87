// Package cmd implements the mcpgate command line.
package cmd

import (
	"os"

	"github.com/go-authgate/mcpgate/internal/version"

	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Subcommands are constructed fresh so
// tests can execute them in isolation.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcpgate",
		Short: "OAuth 2.1 authorization server and credential gateway for MCP",
		Long: `mcpgate issues access tokens to MCP clients and stores the
credentials users connect to third-party apps, refreshing them on demand.`,
		Version:      version.GetVersion(),
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "mcpgate version %s\n" .Version}}`)

	root.AddCommand(
		newServerCmd(),
		newGenKeyCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
