package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the liveness sweep once",
	Long:  "Find sessions stuck in PENDING or PROCESSING past their timeouts and retry or fail them, release delayed retries that have come due, then exit.",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	rt, err := newRuntime(cmd.Context(), cfg, log, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn("failed to release resources", zap.Error(err))
		}
	}()

	report, err := rt.supervisor.Sweep(cmd.Context())
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "examined=%d retried=%d released=%d failed=%d skipped=%d\n",
		report.Examined, report.Retried, report.Released, report.Failed, report.Skipped)
	if err != nil {
		return fmt.Errorf("sweep finished with errors: %w", err)
	}
	return nil
}
