// Package worker runs the background side of the service: queue consumers
// that process sessions and the periodic liveness sweep.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-tailor/internal/queue"
)

// DefaultConcurrency is the number of sessions processed at once
const DefaultConcurrency = 4

// Consumer delivers session ids. queue.Queue satisfies it.
type Consumer interface {
	Consume(ctx context.Context, h queue.Handler) error
}

// Processor handles one session id. *session.Supervisor satisfies it.
type Processor interface {
	Process(ctx context.Context, id uuid.UUID) error
}

// Pool runs a fixed number of consumers against one queue
type Pool struct {
	consumer    Consumer
	processor   Processor
	concurrency int
	logger      *zap.Logger
}

// NewPool creates a pool with at most concurrency sessions in flight
func NewPool(consumer Consumer, processor Processor, concurrency int, logger *zap.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{consumer: consumer, processor: processor, concurrency: concurrency, logger: logger}
}

// Run blocks until ctx is cancelled or a consumer fails
func (p *Pool) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	p.logger.Info("worker pool started", zap.Int("concurrency", p.concurrency))
	for i := 0; i < p.concurrency; i++ {
		worker := i
		g.Go(func() error {
			err := p.consumer.Consume(gCtx, p.handle)
			if err != nil {
				p.logger.Error("consumer stopped", zap.Int("worker", worker), zap.Error(err))
			}
			return err
		})
	}

	err := g.Wait()
	p.logger.Info("worker pool stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pool) handle(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := p.processor.Process(ctx, id)
	p.logger.Debug("session handled",
		zap.String("session_id", id.String()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("failed", err != nil))
	return err
}
