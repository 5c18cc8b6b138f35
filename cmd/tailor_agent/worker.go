package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-tailor/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued sessions and run the liveness sweep",
	Long: "Run the worker pool against the configured queue together with the periodic sweep " +
		"that retries or fails stalled sessions. Requires a shared queue (amqp or redis).",
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().Int("concurrency", 0, "sessions processed at once (overrides worker.concurrency)")
	if err := v.BindPFlag("worker.concurrency", workerCmd.Flags().Lookup("concurrency")); err != nil {
		panic(fmt.Sprintf("failed to bind concurrency flag: %v", err))
	}
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Queue.Backend == queue.BackendMemory {
		return errors.New("the in-memory queue is process-local; use serve, or set queue.backend to amqp or redis")
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	rt, err := newRuntime(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn("failed to release resources", zap.Error(err))
		}
	}()

	log.Info("worker starting",
		zap.String("queue", cfg.Queue.Backend),
		zap.Int("concurrency", cfg.Worker.Concurrency))

	g, gCtx := errgroup.WithContext(ctx)
	startWorkers(gCtx, g, rt)
	return g.Wait()
}
