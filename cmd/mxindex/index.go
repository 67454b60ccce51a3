package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mxindex/mxindex/internal/clock/system"
)

// newIndexCmd creates the 'index' subcommand: a one-shot pipeline run for a
// single domain, useful for smoke-testing a deployment or priming a catalog.
func newIndexCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "index <domain>",
		Short: "Indexes one domain and prints the stored record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args[0], refresh)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-run the pipeline even when a fresh record exists")
	return cmd
}

func runIndex(cmd *cobra.Command, domain string, refresh bool) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()

	repo, closeRepo, err := buildRepository(ctx, cfg, clock, logger)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer closeRepo()

	// One-shot run: no cache, the pipeline always executes.
	pipeline := buildPipeline(cfg, repo, nil, logger)

	record, err := pipeline.GetOrIndex(ctx, domain, refresh)
	if err != nil {
		return fmt.Errorf("index %s: %w", domain, err)
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
