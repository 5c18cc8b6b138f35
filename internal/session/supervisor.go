// Package session owns the lifecycle of tailoring sessions. Every state
// change goes through a compare-and-swap on (id, status, version) so the
// worker claim, result write and liveness sweep never overwrite each other.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/logger"
	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Trace stages written by the supervisor itself
const (
	StageDispatch = "dispatch"
	StageClaim    = "claim"
	StageComplete = "complete"
	StageSweep    = "sweep"
	StagePipeline = "pipeline"
)

// Defaults for Config
const (
	DefaultPendingTimeout    = 10 * time.Minute
	DefaultProcessingTimeout = 15 * time.Minute
	DefaultMaxAttempts       = 3
	DefaultRetryDelay        = 2 * time.Minute
	DefaultMaxRetryDelay     = 10 * time.Minute
	DefaultSweepLimit        = 100
)

// settleTimeout bounds the final write after a run, which must happen even
// when the worker is shutting down
const settleTimeout = 10 * time.Second

// Store persists sessions. *db.PostgresStore and *db.SQLiteStore satisfy it.
type Store interface {
	CreateSession(ctx context.Context, sess *types.TailoringSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*types.TailoringSession, error)
	SwapSession(ctx context.Context, expected types.Status, next *types.TailoringSession) error
	ListStaleSessions(ctx context.Context, q db.StaleQuery) ([]*types.TailoringSession, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

// Dispatcher hands session ids to workers
type Dispatcher interface {
	Publish(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

// ExperienceSource supplies an owner's current experience graph
type ExperienceSource interface {
	GetExperienceGraph(ctx context.Context, ownerID uuid.UUID) (*types.ExperienceSnapshot, error)
}

// Pipeline runs one tailoring attempt
type Pipeline interface {
	Run(ctx context.Context, sess *types.TailoringSession) (*pipeline.Result, error)
}

// Config holds the retry and liveness policy
type Config struct {
	PendingTimeout    time.Duration `mapstructure:"pending_timeout"`
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout"`
	// MaxAttempts caps pipeline runs per session, the first run included
	MaxAttempts int `mapstructure:"max_attempts"`
	// RetryDelay holds a failed run's retry back and doubles with every
	// attempt up to MaxRetryDelay. Zero re-dispatches at once.
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay"`
	SweepLimit    int           `mapstructure:"sweep_limit"`
}

// DefaultConfig returns the default policy
func DefaultConfig() Config {
	return Config{
		PendingTimeout:    DefaultPendingTimeout,
		ProcessingTimeout: DefaultProcessingTimeout,
		MaxAttempts:       DefaultMaxAttempts,
		RetryDelay:        DefaultRetryDelay,
		MaxRetryDelay:     DefaultMaxRetryDelay,
		SweepLimit:        DefaultSweepLimit,
	}
}

// Supervisor drives sessions through PENDING, PROCESSING, COMPLETED and FAILED
type Supervisor struct {
	store      Store
	dispatcher Dispatcher
	pipeline   Pipeline
	experience ExperienceSource
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	running map[claimKey]context.CancelFunc
}

// claimKey identifies one claim of a session: its id and the version the
// claim wrote
type claimKey struct {
	id      uuid.UUID
	version int64
}

// New creates a supervisor. experience may be nil, in which case every
// create request must carry its own experience. A zero RetryDelay
// re-dispatches failed runs at once.
func New(store Store, dispatcher Dispatcher, pipe Pipeline, experience ExperienceSource, cfg Config, logger *zap.Logger) (*Supervisor, error) {
	if store == nil || dispatcher == nil || pipe == nil {
		return nil, errors.New("store, dispatcher and pipeline are required")
	}
	def := DefaultConfig()
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = def.PendingTimeout
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = def.ProcessingTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = def.MaxRetryDelay
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay
	}
	if cfg.SweepLimit <= 0 {
		cfg.SweepLimit = def.SweepLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		store:      store,
		dispatcher: dispatcher,
		pipeline:   pipe,
		experience: experience,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		running:    make(map[claimKey]context.CancelFunc),
	}, nil
}

// Create validates req, freezes the job and experience snapshots and
// dispatches the session. When dispatch is unavailable the session is stored
// as FAILED and returned together with a *DispatchError.
func (s *Supervisor) Create(ctx context.Context, req CreateRequest) (*types.TailoringSession, error) {
	prefs, err := req.Validate()
	if err != nil {
		return nil, err
	}
	experience, err := s.snapshotExperience(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	job := types.JobSnapshot{
		Title:     req.JobTitle,
		Company:   req.Company,
		SourceURL: req.JobURL,
		RawText:   req.JobText,
	}
	if req.JobURL == "" {
		job.Text = parsing.CleanText(req.JobText)
		job.CapturedAt = &now
	}
	sess := &types.TailoringSession{
		ID:          uuid.New(),
		OwnerID:     req.OwnerID,
		Status:      types.StatusPending,
		Job:         job,
		Experience:  experience,
		Preferences: prefs,
		CreatedAt:   now,
	}
	log := s.logger.With(logger.SessionFields(sess.ID, sess.OwnerID)...)

	if err := s.dispatcher.Ping(ctx); err != nil {
		derr := &DispatchError{Message: "dispatch unavailable", Cause: err}
		sess.Status = types.StatusFailed
		sess.FailureReason = derr.Error()
		sess.FailureStage = StageDispatch
		sess.CompletedAt = &now
		sess.Trace = []types.TraceEntry{s.entry(sess, StageDispatch, FailureDispatch, derr)}
		if err := s.store.CreateSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		log.Warn("dispatch unavailable, session failed", zap.Error(err))
		return sess, derr
	}

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.dispatcher.Publish(ctx, sess.ID); err != nil {
		derr := &DispatchError{Message: "failed to dispatch session", Cause: err}
		failed, ferr := s.fail(ctx, sess, failure{kind: FailureDispatch, stage: StageDispatch, err: derr}, sess.Attempts)
		if ferr != nil {
			return nil, fmt.Errorf("failed to record dispatch failure: %w", ferr)
		}
		log.Warn("publish failed, session failed", zap.Error(err))
		return failed, derr
	}

	log.Info("session created", zap.Bool("job_captured", sess.Job.Captured()))
	return sess, nil
}

func (s *Supervisor) snapshotExperience(ctx context.Context, req CreateRequest) (types.ExperienceSnapshot, error) {
	if req.Experience != nil {
		return req.Experience.Clone(), nil
	}
	if s.experience == nil {
		return types.ExperienceSnapshot{}, &ValidationError{Field: "experience", Message: "required"}
	}
	graph, err := s.experience.GetExperienceGraph(ctx, req.OwnerID)
	if errors.Is(err, db.ErrNotFound) {
		return types.ExperienceSnapshot{}, &ValidationError{Field: "experience", Message: "no experience on file for owner"}
	}
	if err != nil {
		return types.ExperienceSnapshot{}, fmt.Errorf("failed to load experience: %w", err)
	}
	return graph.Clone(), nil
}

// Process is the worker entry point. It claims the session, runs the
// pipeline and records the outcome. Sessions that are missing, no longer
// PENDING, held by a retry delay or claimed by someone else are skipped.
func (s *Supervisor) Process(ctx context.Context, id uuid.UUID) error {
	log := s.logger.With(logger.SessionFields(id, uuid.Nil)...)

	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		log.Debug("session not found, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess.Status != types.StatusPending {
		log.Debug("session not pending, skipping", zap.Stringer("status", sess.Status))
		return nil
	}

	now := s.now().UTC()
	if sess.RetryAt != nil && now.Before(*sess.RetryAt) {
		log.Debug("retry not due, skipping", zap.Time("retry_at", *sess.RetryAt))
		return nil
	}
	claimed := sess.Clone()
	claimed.Status = types.StatusProcessing
	claimed.StartedProcessingAt = &now
	claimed.RetryAt = nil
	claimed.Trace = append(claimed.Trace, types.TraceEntry{
		Stage:   StageClaim,
		Message: "claimed by worker",
		At:      now,
		Attempt: sess.Attempts + 1,
	})
	if err := s.store.SwapSession(ctx, types.StatusPending, claimed); err != nil {
		if errors.Is(err, db.ErrConflict) || errors.Is(err, db.ErrNotFound) {
			log.Debug("claim lost, skipping")
			return nil
		}
		return fmt.Errorf("failed to claim session: %w", err)
	}
	log.Info("session claimed", zap.Int("attempt", claimed.Attempts+1))

	runCtx, cancel := context.WithCancel(ctx)
	s.track(id, claimed.Version, cancel)
	res, runErr := s.runSafely(runCtx, claimed)
	s.untrack(id, claimed.Version)
	cancel()

	settleCtx, cancelSettle := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancelSettle()
	return s.settle(settleCtx, claimed, res, runErr)
}

func (s *Supervisor) runSafely(ctx context.Context, sess *types.TailoringSession) (res *pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &CrashError{Value: r, Stack: string(debug.Stack())}
			s.logger.Error("pipeline panicked",
				zap.String("session_id", sess.ID.String()),
				zap.Any("panic", r))
		}
	}()
	return s.pipeline.Run(ctx, sess)
}

func (s *Supervisor) settle(ctx context.Context, claimed *types.TailoringSession, res *pipeline.Result, runErr error) error {
	log := s.logger.With(zap.String("session_id", claimed.ID.String()))

	if runErr == nil {
		now := s.now().UTC()
		done := claimed.Clone()
		done.Status = types.StatusCompleted
		done.Job = res.Job.Clone()
		done.Content = res.Content
		done.ATS = res.ATS
		done.Usage = res.Usage
		done.FailureReason = ""
		done.FailureStage = ""
		done.CompletedAt = &now
		done.Trace = append(done.Trace, res.Trace...)
		done.Trace = append(done.Trace, types.TraceEntry{
			Stage:   StageComplete,
			Message: fmt.Sprintf("completed with ATS score %.2f", res.ATS.Overall),
			At:      now,
			Attempt: claimed.Attempts + 1,
		})
		err := s.store.SwapSession(ctx, types.StatusProcessing, done)
		switch {
		case errors.Is(err, db.ErrNotFound):
			log.Info("session deleted during processing, discarding result")
			return nil
		case errors.Is(err, db.ErrConflict):
			log.Warn("session changed during processing, discarding result")
			return nil
		case err != nil:
			return fmt.Errorf("failed to store result: %w", err)
		}
		log.Info("session completed", zap.Float64("ats_overall", res.ATS.Overall))
		return nil
	}

	f := failure{err: runErr, stage: StagePipeline}
	if res != nil {
		f.trace = res.Trace
		job := res.Job
		f.job = &job
	}
	var (
		crash *CrashError
		serr  *pipeline.StageError
	)
	switch {
	case errors.As(runErr, &crash):
		f.kind = FailureCrash
	case errors.As(runErr, &serr) && serr.Retryable:
		f.kind = FailureTransient
		f.stage = serr.Stage
		f.err = &TransientPipelineError{Stage: serr.Stage, Cause: serr.Cause}
	case errors.As(runErr, &serr):
		f.kind = FailureTerminal
		f.stage = serr.Stage
		f.err = &TerminalPipelineError{Stage: serr.Stage, Cause: serr.Cause}
	default:
		f.kind = FailureTerminal
		f.err = &TerminalPipelineError{Stage: StagePipeline, Cause: runErr}
	}

	var (
		next *types.TailoringSession
		err  error
	)
	if f.kind == FailureTerminal {
		next, err = s.fail(ctx, claimed, f, claimed.Attempts+1)
	} else {
		next, err = s.retryOrFail(ctx, claimed, f)
	}
	switch {
	case errors.Is(err, db.ErrNotFound):
		log.Info("session deleted during processing")
		return nil
	case errors.Is(err, db.ErrConflict):
		log.Warn("session changed during processing, failure not recorded")
		return nil
	case err != nil:
		return fmt.Errorf("failed to record failure: %w", err)
	}
	log.Info("attempt failed",
		zap.String("kind", string(f.kind)),
		zap.String("stage", f.stage),
		zap.Stringer("status", next.Status),
		zap.Error(f.err))
	return nil
}

type failure struct {
	kind  FailureKind
	stage string
	err   error
	// trace and job come from the failed pipeline run, when there was one
	trace []types.TraceEntry
	job   *types.JobSnapshot
}

// retryOrFail counts a recoverable failure and re-dispatches the session
// unless it failed or must wait out a retry delay
func (s *Supervisor) retryOrFail(ctx context.Context, cur *types.TailoringSession, f failure) (*types.TailoringSession, error) {
	next, err := s.requeue(ctx, cur, f)
	if err != nil {
		return nil, err
	}
	return s.redispatch(ctx, next)
}

// requeue moves cur back to PENDING below the attempt cap and to FAILED at
// it. A failed pipeline run is held back by the retry delay; a stall is not.
func (s *Supervisor) requeue(ctx context.Context, cur *types.TailoringSession, f failure) (*types.TailoringSession, error) {
	attempts := cur.Attempts + 1
	if attempts >= s.cfg.MaxAttempts {
		f.err = fmt.Errorf("%w (gave up after %d attempts)", f.err, attempts)
		return s.fail(ctx, cur, f, attempts)
	}

	next := cur.Clone()
	next.Status = types.StatusPending
	next.Attempts = attempts
	next.StartedProcessingAt = nil
	next.RetryAt = nil
	if f.job != nil && f.job.Captured() {
		next.Job = f.job.Clone()
	}
	next.Trace = append(next.Trace, f.trace...)
	entry := s.entry(cur, f.stage, f.kind, f.err)
	entry.Message = fmt.Sprintf("%s; retry %d of %d scheduled", entry.Message, attempts, s.cfg.MaxAttempts-1)
	if wait := s.retryDelay(attempts); wait > 0 && f.kind != FailureTimeoutStall {
		at := s.now().UTC().Add(wait)
		next.RetryAt = &at
		entry.Message += fmt.Sprintf(" in %s", wait)
	}
	next.Trace = append(next.Trace, entry)
	if err := s.store.SwapSession(ctx, cur.Status, next); err != nil {
		return nil, err
	}
	return next, nil
}

// retryDelay is the hold before retry number attempts: RetryDelay doubled
// per earlier retry, capped at MaxRetryDelay
func (s *Supervisor) retryDelay(attempts int) time.Duration {
	if s.cfg.RetryDelay <= 0 || attempts < 1 {
		return 0
	}
	wait := s.cfg.RetryDelay
	for i := 1; i < attempts && wait < s.cfg.MaxRetryDelay; i++ {
		wait *= 2
	}
	return min(wait, s.cfg.MaxRetryDelay)
}

// redispatch publishes next when it is PENDING with no retry delay left.
// A publish failure fails the session.
func (s *Supervisor) redispatch(ctx context.Context, next *types.TailoringSession) (*types.TailoringSession, error) {
	if next.Status != types.StatusPending || next.RetryAt != nil {
		return next, nil
	}
	if err := s.dispatcher.Publish(ctx, next.ID); err != nil {
		derr := &DispatchError{Message: "failed to re-dispatch session", Cause: err}
		return s.fail(ctx, next, failure{kind: FailureDispatch, stage: StageDispatch, err: derr}, next.Attempts)
	}
	return next, nil
}

// release clears an elapsed retry delay and dispatches the session
func (s *Supervisor) release(ctx context.Context, cur *types.TailoringSession) (*types.TailoringSession, error) {
	next := cur.Clone()
	next.RetryAt = nil
	next.Trace = append(next.Trace, types.TraceEntry{
		Stage:   StageDispatch,
		Message: "retry delay elapsed, re-dispatched",
		At:      s.now().UTC(),
		Attempt: cur.Attempts + 1,
	})
	if err := s.store.SwapSession(ctx, types.StatusPending, next); err != nil {
		return nil, err
	}
	return s.redispatch(ctx, next)
}

// fail moves cur to FAILED, recording the reason and the trace
func (s *Supervisor) fail(ctx context.Context, cur *types.TailoringSession, f failure, attempts int) (*types.TailoringSession, error) {
	now := s.now().UTC()
	next := cur.Clone()
	next.Status = types.StatusFailed
	next.Attempts = attempts
	next.FailureReason = f.err.Error()
	next.FailureStage = f.stage
	next.CompletedAt = &now
	if f.job != nil && f.job.Captured() {
		next.Job = f.job.Clone()
	}
	next.Trace = append(next.Trace, f.trace...)
	next.Trace = append(next.Trace, s.entry(cur, f.stage, f.kind, f.err))
	if err := s.store.SwapSession(ctx, cur.Status, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Supervisor) entry(cur *types.TailoringSession, stage string, kind FailureKind, err error) types.TraceEntry {
	return types.TraceEntry{
		Stage:   stage,
		Message: fmt.Sprintf("[%s] attempt failed", kind),
		At:      s.now().UTC(),
		Error:   err.Error(),
		Attempt: cur.Attempts + 1,
	}
}

// SweepReport summarises one liveness sweep
type SweepReport struct {
	Examined int `json:"examined"`
	Retried  int `json:"retried"`
	Released int `json:"released"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Sweep finds sessions stuck in PENDING or PROCESSING past their timeout and
// treats each as a recoverable failure. Delayed retries that have come due
// are re-dispatched. A session claimed or finished since it was listed is
// skipped by the CAS.
func (s *Supervisor) Sweep(ctx context.Context) (SweepReport, error) {
	now := s.now()
	stale, err := s.store.ListStaleSessions(ctx, db.StaleQuery{
		PendingBefore:    now.Add(-s.cfg.PendingTimeout),
		ProcessingBefore: now.Add(-s.cfg.ProcessingTimeout),
		RetryDueBy:       now,
		Limit:            s.cfg.SweepLimit,
	})
	if err != nil {
		return SweepReport{}, fmt.Errorf("failed to list stale sessions: %w", err)
	}

	var (
		report SweepReport
		errs   []error
	)
	for _, sess := range stale {
		report.Examined++
		log := s.logger.With(zap.String("session_id", sess.ID.String()))

		if sess.Status == types.StatusPending && sess.RetryAt != nil {
			if now.Before(*sess.RetryAt) {
				report.Skipped++
				continue
			}
			next, err := s.release(ctx, sess)
			switch {
			case errors.Is(err, db.ErrConflict), errors.Is(err, db.ErrNotFound):
				report.Skipped++
				continue
			case err != nil:
				errs = append(errs, fmt.Errorf("session %s: %w", sess.ID, err))
				continue
			}
			if next.Status == types.StatusFailed {
				report.Failed++
			} else {
				report.Released++
			}
			log.Info("delayed retry released", zap.Stringer("status", next.Status))
			continue
		}

		since := sess.UpdatedAt
		if sess.Status == types.StatusProcessing && sess.StartedProcessingAt != nil {
			since = *sess.StartedProcessingAt
		}
		stall := &TimeoutStall{Status: sess.Status, Idle: now.Sub(since)}

		next, err := s.requeue(ctx, sess, failure{kind: FailureTimeoutStall, stage: StageSweep, err: stall})
		switch {
		case errors.Is(err, db.ErrConflict), errors.Is(err, db.ErrNotFound):
			report.Skipped++
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("session %s: %w", sess.ID, err))
			continue
		}
		if sess.Status == types.StatusProcessing {
			// stop the stalled claim before the session is handed out again
			s.cancelClaim(sess.ID, sess.Version)
		}
		if next, err = s.redispatch(ctx, next); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", sess.ID, err))
			continue
		}
		if next.Status == types.StatusFailed {
			report.Failed++
		} else {
			report.Retried++
		}
		log.Info("stalled session handled",
			zap.Stringer("from", sess.Status),
			zap.Stringer("to", next.Status),
			zap.Duration("idle", stall.Idle))
	}
	return report, errors.Join(errs...)
}

// Get returns the session
func (s *Supervisor) Get(ctx context.Context, id uuid.UUID) (*types.TailoringSession, error) {
	return s.store.GetSession(ctx, id)
}

// Trace returns the session's debug trace
func (s *Supervisor) Trace(ctx context.Context, id uuid.UUID) ([]types.TraceEntry, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Trace, nil
}

// Delete removes the session in any state. A run in progress in this
// process is cancelled; elsewhere its result is discarded when it tries to
// write.
func (s *Supervisor) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.cancelRunning(id)
	s.logger.Info("session deleted", zap.String("session_id", id.String()))
	return nil
}

func (s *Supervisor) track(id uuid.UUID, version int64, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[claimKey{id: id, version: version}] = cancel
}

// untrack forgets one claim; a later claim of the same session stays tracked
func (s *Supervisor) untrack(id uuid.UUID, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, claimKey{id: id, version: version})
}

// cancelClaim stops the run holding the given claim, if it runs here
func (s *Supervisor) cancelClaim(id uuid.UUID, version int64) {
	s.mu.Lock()
	cancel, ok := s.running[claimKey{id: id, version: version}]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// cancelRunning stops every run of the session in this process
func (s *Supervisor) cancelRunning(id uuid.UUID) {
	s.mu.Lock()
	var cancels []context.CancelFunc
	for key, cancel := range s.running {
		if key.id == id {
			cancels = append(cancels, cancel)
		}
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
