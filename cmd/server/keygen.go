package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tubesum/backend/pkg/utils/keygen"
)

func newKeygenCmd() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print a random API key for auth.api_key or delegate.api_key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keygen.GenerateAPIKey(length)
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().IntVarP(&length, "length", "l", 40, "key length")
	return cmd
}
