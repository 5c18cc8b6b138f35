package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-tailor/internal/ats"
	"github.com/jonathan/resume-tailor/internal/logger"
	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/queue"
	"github.com/jonathan/resume-tailor/internal/server"
	"github.com/jonathan/resume-tailor/internal/vocab"
	"github.com/jonathan/resume-tailor/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: "Start an HTTP server that accepts tailoring sessions. With --embedded-workers " +
		"(always on for the in-memory queue) the worker pool and sweeper run in the same process.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides server.port)")
	serveCmd.Flags().Bool("embedded-workers", false, "run the worker pool and sweeper in-process")
	if err := v.BindPFlag("server.port", serveCmd.Flags().Lookup("port")); err != nil {
		panic(fmt.Sprintf("failed to bind port flag: %v", err))
	}
	if err := v.BindPFlag("server.embedded_workers", serveCmd.Flags().Lookup("embedded-workers")); err != nil {
		panic(fmt.Sprintf("failed to bind embedded-workers flag: %v", err))
	}
	rootCmd.AddCommand(serveCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	scorer, err := ats.NewScorer(cfg.Pipeline.Weights)
	if err != nil {
		return err
	}
	extractor := parsing.NewExtractor(vocab.Default())
	extractor.RepeatThreshold = cfg.Pipeline.RepeatThreshold

	srv, err := server.New(server.Config{
		Port:            cfg.Server.Port,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimit:       rateLimitConfig(cfg.Server.RateLimit),
	}, rt.supervisor, extractor, scorer, logger.Named(log, "http"))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	embedded := cfg.Server.EmbeddedWorkers
	if cfg.Queue.Backend == queue.BackendMemory && !embedded {
		log.Info("in-memory queue selected, running workers in-process")
		embedded = true
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gCtx) })
	if embedded {
		startWorkers(gCtx, g, rt)
	}
	return g.Wait()
}

// startWorkers adds the worker pool and sweeper to g
func startWorkers(ctx context.Context, g *errgroup.Group, rt *runtime) {
	pool := worker.NewPool(rt.queue, rt.supervisor, rt.cfg.Worker.Concurrency, logger.Named(rt.logger, "worker"))
	sweeper := worker.NewSweeper(rt.supervisor, rt.cfg.Worker.SweepInterval, logger.Named(rt.logger, "sweeper"))
	g.Go(func() error { return pool.Run(ctx) })
	g.Go(func() error { return sweeper.Run(ctx) })
}
