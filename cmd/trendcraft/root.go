package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trendcraft/internal/config"
	"trendcraft/internal/logging"
)

// commandDeps are loaded once per invocation before any subcommand runs
type commandDeps struct {
	config config.Config
	logger logging.Logger
}

func newRootCommand() *cobra.Command {
	deps := &commandDeps{}
	var logLevel string

	cmd := &cobra.Command{
		Use:           "trendcraft",
		Short:         "Discover, rank and store trending topics",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			logger, err := logging.New(logging.Config{
				Level:       cfg.LogLevel,
				Development: cfg.Environment == "development",
			})
			if err != nil {
				return err
			}
			deps.config = cfg
			deps.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if deps.logger != nil {
				_ = deps.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	cmd.AddCommand(
		newDiscoverCommand(deps),
		newRankCommand(deps),
		newMigrateCommand(deps),
	)
	return cmd
}
