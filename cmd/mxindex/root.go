package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mxindex/mxindex/internal/config"
	"github.com/mxindex/mxindex/internal/logging"
)

const version = "0.1.0"

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mxindex",
		Short: "A discovery and indexing service for Matrix homeservers.",
		Long: `mxindex discovers and catalogs public Matrix homeservers. It resolves
server delegation, probes the metadata endpoints a homeserver publishes,
and aggregates what it finds into a searchable catalog.`,
		Version: version,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newServeCmd(), newIndexCmd())
	return cmd
}

// setup loads configuration and installs the global logger. Every subcommand
// starts here.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}
