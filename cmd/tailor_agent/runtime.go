package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/logger"
	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/queue"
	"github.com/jonathan/resume-tailor/internal/server/ratelimit"
	"github.com/jonathan/resume-tailor/internal/session"
	"github.com/jonathan/resume-tailor/internal/types"
)

// runtime is the wired set of service components shared by serve, worker
// and sweep
type runtime struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      db.Store
	queue      queue.Queue
	client     llm.Client
	supervisor *session.Supervisor
}

// newRuntime connects the store and queue and builds the supervisor. When
// requireLLM is false and no API key is configured, generation is replaced
// by a stub that fails terminally; sweep never generates.
func newRuntime(ctx context.Context, cfg *config.Config, log *zap.Logger, requireLLM bool) (_ *runtime, err error) {
	rt := &runtime{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	store, err := db.Open(ctx, cfg.Store.Driver, cfg.Store.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	rt.store = store

	q, err := queue.New(ctx, cfg.Queue, logger.Named(log, "queue"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s queue: %w", cfg.Queue.Backend, err)
	}
	rt.queue = q

	var (
		generator llm.Generator = unconfiguredGenerator{}
		grounder  llm.Grounder
	)
	switch {
	case cfg.Gemini.APIKey != "":
		client, err := llm.NewClient(ctx, cfg.LLM(), cfg.Gemini.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create generation client: %w", err)
		}
		rt.client = client
		generator, grounder = client, client
	case requireLLM:
		return nil, errors.New("GEMINI_API_KEY (or gemini.api_key) is required")
	}

	opts := cfg.PipelineOptions()
	pipeLog := logger.Named(log, "pipeline")
	opts.OnProgress = func(e pipeline.ProgressEvent) {
		pipeLog.Debug("stage finished",
			zap.String(logger.FieldSessionID, e.SessionID),
			zap.String("stage", e.Stage),
			zap.String("message", e.Message))
	}
	runner, err := pipeline.NewRunner(generator, grounder, opts, pipeLog)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	rt.supervisor, err = session.New(rt.store, rt.queue, runner, rt.store, cfg.Session, logger.Named(log, "session"))
	if err != nil {
		return nil, fmt.Errorf("failed to create supervisor: %w", err)
	}
	return rt, nil
}

// Close releases the client, queue and store
func (rt *runtime) Close() error {
	var errs []error
	if rt.client != nil {
		errs = append(errs, rt.client.Close())
	}
	if rt.queue != nil {
		errs = append(errs, rt.queue.Close())
	}
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	return errors.Join(errs...)
}

// rateLimitConfig converts the configured limits; nil disables limiting
func rateLimitConfig(cfg config.RateLimitConfig) *ratelimit.Config {
	if !cfg.Enabled {
		return nil
	}
	return &ratelimit.Config{
		Enabled:         true,
		DefaultLimit:    cfg.DefaultLimit,
		DefaultWindow:   cfg.DefaultWindow,
		CleanupInterval: cfg.CleanupInterval,
		Whitelist:       cfg.Whitelist,
		Blacklist:       cfg.Blacklist,
		EndpointConfigs: ratelimit.DefaultEndpointConfigs(),
	}
}

type unconfiguredGenerator struct{}

func (unconfiguredGenerator) Generate(context.Context, *types.GenerationRequest) (*types.GenerationResult, error) {
	return nil, &llm.TerminalError{Message: "no generation API key configured"}
}
