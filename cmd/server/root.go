package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tubesum/backend/internal/config"
)

type rootFlags struct {
	configPath string
	host       string
	port       int
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "tubesum",
		Short:         "A2A agents that find and summarize YouTube videos.",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (yaml, optional)")
	root.PersistentFlags().StringVar(&flags.host, "host", "", "listen host (overrides config)")
	root.PersistentFlags().IntVarP(&flags.port, "port", "p", 0, "listen port (overrides config)")

	root.AddCommand(
		newAgentCmd(flags, config.RoleSummary,
			"Serve the summary agent",
			"Finds videos through the finder agent, summarizes each one and combines the summaries."),
		newAgentCmd(flags, config.RoleFinder,
			"Serve the finder agent",
			"Lists the videos of a channel on a date, or of a playlist."),
		newKeygenCmd(),
	)
	return root
}

func newAgentCmd(flags *rootFlags, role config.Role, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   string(role),
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath, role)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = flags.host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = flags.port
			}
			return serve(cfg)
		},
	}
}
