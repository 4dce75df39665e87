package cmd

import (
	"fmt"

	"github.com/go-authgate/mcpgate/internal/encryption"

	"github.com/spf13/cobra"
)

func newGenKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Print a random ENCRYPTION_KEY",
		Long:  `Print 32 random bytes as 64 hex characters, suitable for ENCRYPTION_KEY.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := encryption.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
