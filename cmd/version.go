package cmd

import (
	"github.com/go-authgate/mcpgate/internal/version"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mcpgate",
		Long:  `Print the version, commit and build details of this binary.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			version.PrintVersion(cmd.OutOrStdout())
		},
	}
}
