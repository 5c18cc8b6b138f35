package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/session"
)

// DefaultSweepInterval is how often stalled sessions are looked for
const DefaultSweepInterval = time.Minute

// Sweepable is implemented by *session.Supervisor
type Sweepable interface {
	Sweep(ctx context.Context) (session.SweepReport, error)
}

// Sweeper calls Sweep on a fixed interval
type Sweeper struct {
	target   Sweepable
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a sweeper
func NewSweeper(target Sweepable, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{target: target, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// Sweep errors are logged; the loop keeps going.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and logs the outcome
func (s *Sweeper) RunOnce(ctx context.Context) session.SweepReport {
	report, err := s.target.Sweep(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Error("sweep failed", zap.Error(err))
	}
	if report.Examined > 0 {
		s.logger.Info("sweep finished",
			zap.Int("examined", report.Examined),
			zap.Int("retried", report.Retried),
			zap.Int("released", report.Released),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped))
	}
	return report
}
