package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/resume-tailor/internal/session"
)

type countingSweep struct {
	calls  atomic.Int32
	report session.SweepReport
	err    error
}

func (c *countingSweep) Sweep(context.Context) (session.SweepReport, error) {
	c.calls.Add(1)
	return c.report, c.err
}

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	target := &countingSweep{}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- NewSweeper(target, 10*time.Millisecond, nil).Run(ctx) }()

	require.Eventually(t, func() bool { return target.calls.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-errc)
}

func TestSweeper_RunOnceLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	target := &countingSweep{
		report: session.SweepReport{Examined: 2, Retried: 1, Failed: 1},
		err:    errors.New("store unavailable"),
	}

	report := NewSweeper(target, time.Minute, zap.New(core)).RunOnce(context.Background())
	assert.Equal(t, target.report, report)

	require.Equal(t, 1, logs.FilterMessage("sweep failed").Len())
	finished := logs.FilterMessage("sweep finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, int64(1), finished[0].ContextMap()["failed"])
}

func TestNewSweeper_DefaultInterval(t *testing.T) {
	s := NewSweeper(&countingSweep{}, 0, nil)
	assert.Equal(t, DefaultSweepInterval, s.interval)
}
