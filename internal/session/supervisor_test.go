package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/types"
)

type harness struct {
	sup   *Supervisor
	store *memStore
	disp  *fakeDispatcher
	pipe  *fakePipeline
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		store: newMemStore(),
		disp:  &fakeDispatcher{},
		pipe: &fakePipeline{run: func(_ context.Context, sess *types.TailoringSession) (*pipeline.Result, error) {
			return successResult(sess), nil
		}},
	}
	sup, err := New(h.store, h.disp, h.pipe, h.store, cfg, nil)
	require.NoError(t, err)
	h.sup = sup
	return h
}

func validRequest() CreateRequest {
	return CreateRequest{
		OwnerID:  uuid.New(),
		JobTitle: "Data Engineer",
		JobText:  "Python is required. Kubernetes is required. GraphQL is a plus.",
		Experience: &types.ExperienceSnapshot{Entries: []types.ExperienceEntry{
			{ID: "w1", Type: types.EntryWork, Title: "Engineer", Skills: []string{"Python"}, Achievements: []string{"Cut costs 20%"}},
		}},
	}
}

// pendingSession stores a session that has already been created and published
func (h *harness) pendingSession(t *testing.T, attempts int) *types.TailoringSession {
	t.Helper()
	now := time.Now().UTC()
	sess := &types.TailoringSession{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		Status:      types.StatusPending,
		Attempts:    attempts,
		Job:         types.JobSnapshot{RawText: "Python required", Text: "Python required", CapturedAt: &now},
		Experience:  types.ExperienceSnapshot{Entries: []types.ExperienceEntry{}},
		Preferences: types.DefaultPreferences(),
	}
	require.NoError(t, h.store.CreateSession(context.Background(), sess))
	return sess
}

func TestCreate(t *testing.T) {
	h := newHarness(t, Config{})
	req := validRequest()

	sess, err := h.sup.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, sess.Status)
	assert.Equal(t, 0, sess.Attempts)
	assert.Equal(t, []uuid.UUID{sess.ID}, h.disp.published)

	assert.True(t, sess.Job.Captured())
	assert.Equal(t, req.JobText, sess.Job.Text)
	assert.Equal(t, types.DefaultPreferences(), sess.Preferences)

	// the snapshot is an owned copy
	req.Experience.Entries[0].Skills[0] = "Changed"
	stored, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Python", stored.Experience.Entries[0].Skills[0])
	assert.Equal(t, types.StatusPending, h.store.created[sess.ID])
}

func TestCreate_URLDefersCapture(t *testing.T) {
	h := newHarness(t, Config{})
	req := validRequest()
	req.JobText = ""
	req.JobURL = "https://jobs.example.com/123"

	sess, err := h.sup.Create(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, sess.Job.Captured())
	assert.Equal(t, "https://jobs.example.com/123", sess.Job.SourceURL)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*CreateRequest)
		field  string
	}{
		{"missing owner", func(r *CreateRequest) { r.OwnerID = uuid.Nil }, "owner_id"},
		{"no job", func(r *CreateRequest) { r.JobText = "  " }, "job_text"},
		{"markup only", func(r *CreateRequest) { r.JobText = "<div><p></p></div>" }, "job_text"},
		{"control characters only", func(r *CreateRequest) { r.JobText = "\x00\x01\x02" }, "job_text"},
		{"non http url", func(r *CreateRequest) { r.JobText = ""; r.JobURL = "ftp://example.com/job" }, "job_url"},
		{"bad preferences", func(r *CreateRequest) {
			r.Preferences = map[string]any{"temperature": "5"}
		}, "preferences.Temperature"},
		{"unknown preference", func(r *CreateRequest) {
			r.Preferences = map[string]any{"font": "serif"}
		}, "preferences"},
		{"bad entry type", func(r *CreateRequest) { r.Experience.Entries[0].Type = "hobby" }, "type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{})
			req := validRequest()
			tt.modify(&req)

			_, err := h.sup.Create(context.Background(), req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Empty(t, h.store.sessions)
			assert.Empty(t, h.disp.published)
		})
	}
}

func TestCreate_ExperienceFromSource(t *testing.T) {
	h := newHarness(t, Config{})
	req := validRequest()
	req.Experience = nil

	_, err := h.sup.Create(context.Background(), req)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "experience", ve.Field)

	h.store.graphs[req.OwnerID] = &types.ExperienceSnapshot{Entries: []types.ExperienceEntry{
		{ID: "p1", Type: types.EntryProject, Title: "CLI", Skills: []string{"Go"}, Achievements: []string{}},
	}}
	sess, err := h.sup.Create(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, sess.Experience.Entries, 1)
	assert.Equal(t, "p1", sess.Experience.Entries[0].ID)
}

func TestCreate_DispatchDownFailsImmediately(t *testing.T) {
	h := newHarness(t, Config{})
	h.disp.pingErr = errors.New("connection refused")

	sess, err := h.sup.Create(context.Background(), validRequest())
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	require.NotNil(t, sess)
	assert.Equal(t, types.StatusFailed, sess.Status)

	// never observable as PENDING
	assert.Equal(t, types.StatusFailed, h.store.created[sess.ID])
	stored, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "dispatch unavailable")
	assert.Equal(t, StageDispatch, stored.FailureStage)
	require.Len(t, stored.Trace, 1)
	assert.Contains(t, stored.Trace[0].Message, string(FailureDispatch))
	assert.Empty(t, h.disp.published)
}

func TestCreate_PublishFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.disp.publishErr = errQueueFull

	sess, err := h.sup.Create(context.Background(), validRequest())
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, errQueueFull)
	assert.Equal(t, types.StatusFailed, sess.Status)
	assert.Equal(t, int64(2), sess.Version)
	assert.Contains(t, sess.FailureReason, "failed to dispatch session")
}

var errQueueFull = errors.New("queue is full")

func TestProcess_Success(t *testing.T) {
	h := newHarness(t, Config{})
	sess := h.pendingSession(t, 0)

	require.NoError(t, h.sup.Process(context.Background(), sess.ID))

	got, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
	assert.Equal(t, int64(3), got.Version)
	require.True(t, got.HasResult())
	assert.Equal(t, 40.0, got.ATS.Overall)
	assert.Equal(t, 160, got.Usage.TotalTokens)
	assert.NotNil(t, got.StartedProcessingAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.FailureReason)

	stages := make([]string, len(got.Trace))
	for i, e := range got.Trace {
		stages[i] = e.Stage
	}
	assert.Equal(t, []string{StageClaim, pipeline.StageExtract, pipeline.StageGenerate, StageComplete}, stages)
}

func TestProcess_Skips(t *testing.T) {
	h := newHarness(t, Config{})

	require.NoError(t, h.sup.Process(context.Background(), uuid.New()))

	sess := h.pendingSession(t, 0)
	done := sess.Clone()
	done.Status = types.StatusCompleted
	h.store.put(done)
	require.NoError(t, h.sup.Process(context.Background(), sess.ID))

	assert.Equal(t, 0, h.pipe.calls)
}

func TestProcess_ClaimLost(t *testing.T) {
	h := newHarness(t, Config{})
	sess := h.pendingSession(t, 0)

	// another worker claims between our read and our swap
	h.store.beforeSwap = func(next *types.TailoringSession) {
		h.store.beforeSwap = nil
		other := next.Clone()
		other.Status = types.StatusProcessing
		other.Version = next.Version + 1
		h.store.put(other)
	}

	require.NoError(t, h.sup.Process(context.Background(), sess.ID))
	assert.Equal(t, 0, h.pipe.calls)
}

func TestProcess_TransientFailureRetries(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 3})
	sess := h.pendingSession(t, 0)
	sess.Job = types.JobSnapshot{SourceURL: "https://jobs.example.com/1"}
	h.store.put(sess)

	h.pipe.run = func(_ context.Context, s *types.TailoringSession) (*pipeline.Result, error) {
		res := successResult(s)
		res.Content, res.ATS = nil, nil
		return res, &pipeline.StageError{Stage: pipeline.StageGenerate, Retryable: true, Cause: &llm.TransientError{Message: "overloaded"}}
	}

	require.NoError(t, h.sup.Process(context.Background(), sess.ID))

	got, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Nil(t, got.StartedProcessingAt)
	assert.False(t, got.HasResult())
	assert.True(t, got.Job.Captured(), "grounded snapshot is kept for the retry")
	assert.Equal(t, []uuid.UUID{sess.ID}, h.disp.published)

	last := got.Trace[len(got.Trace)-1]
	assert.Equal(t, pipeline.StageGenerate, last.Stage)
	assert.Contains(t, last.Message, "[transient]")
	assert.Contains(t, last.Message, "retry 1 of 2")
}

func TestProcess_TransientFailureAtCap(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 3})
	sess := h.pendingSession(t, 2)
	h.pipe.run = func(context.Context, *types.TailoringSession) (*pipeline.Result, error) {
		return nil, &pipeline.StageError{Stage: pipeline.StageGenerate, Retryable: true, Cause: context.DeadlineExceeded}
	}

	require.NoError(t, h.sup.Process(context.Background(), sess.ID))

	got, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.Contains(t, got.FailureReason, "gave up after 3 attempts")
	assert.Equal(t, pipeline.StageGenerate, got.FailureStage)
	assert.Empty(t, h.disp.published)
}

func TestProcess_TerminalFailure(t *testing.T) {
	h := newHarness(t, Config{})
	sess := h.pendingSession(t, 0)
	h.pipe.run = func(context.Context, *types.TailoringSession) (*pipeline.Result, error) {
		return &pipeline.Result{Trace: []types.TraceEntry{{Stage: pipeline.StageGenerate, Message: "failed"}}},
			&pipeline.StageError{Stage: pipeline.StageGenerate, Cause: &llm.TerminalError{Message: "invalid api key"}}
	}

	require.NoError(t, h.sup.Process(context.Background(), sess.ID))

	got, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, pipeline.StageGenerate, got.FailureStage)
	assert.Contains(t, got.FailureReason, "invalid api key")
	assert.NotNil(t, got.CompletedAt)
	assert.Contains(t, got.Trace[len(got.Trace)-1].Message, "[terminal]")
	assert.Empty(t, h.disp.published)
}

func TestProcess_PanicIsRecoverable(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := newHarness(t, Config{})
	h.sup.logger = zap.New(core)
	sess := h.pendingSession(t, 0)
	h.pipe.run = func(context.Context, *types.TailoringSession) (*pipeline.Result, error) {
		panic("nil map write")
	}

	require.NoError(t, h.sup.Process(context.Background(), sess.ID))

	got, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	last := got.Trace[len(got.Trace)-1]
	assert.Contains(t, last.Message, "[crash]")
	assert.Contains(t, last.Error, "unexpected error: nil map write")
	assert.Equal(t, 1, logs.FilterMessage("pipeline panicked").Len())
}

func TestProcess_RepublishFailure(t *testing.T) {
	h := newHarness(t, Config{})
	sess := h.pendingSession(t, 0)
	h.disp.publishErr = errors.New("broker gone")
	h.pipe.run = func(context.Context, *types.TailoringSession) (*pipeline.Result, error) {
		return nil, &pipeline.StageError{Stage: pipeline.StageGround, Retryable: true, Cause: errors.New("timeout")}
	}

	require.NoError(t, h.sup.Process(context.Background(), sess.ID))

	got, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Equal(t, StageDispatch, got.FailureStage)
	assert.Contains(t, got.FailureReason, "failed to re-dispatch session")
}

func TestProcess_DeletedDuringRunDiscardsResult(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := newHarness(t, Config{})
	h.sup.logger = zap.New(core)
	sess := h.pendingSession(t, 0)
	h.pipe.run = func(_ context.Context, s *types.TailoringSession) (*pipeline.Result, error) {
		require.NoError(t, h.store.DeleteSession(context.Background(), s.ID))
		return successResult(s), nil
	}

	require.NoError(t, h.sup.Process(context.Background(), sess.ID))

	_, err := h.sup.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Equal(t, 1, logs.FilterMessage("session deleted during processing, discarding result").Len())
}

func TestDelete_CancelsRun(t *testing.T) {
	h := newHarness(t, Config{})
	sess := h.pendingSession(t, 0)
	started := make(chan struct{})
	h.pipe.run = func(ctx context.Context, _ *types.TailoringSession) (*pipeline.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, &pipeline.StageError{Stage: pipeline.StageGenerate, Retryable: true, Cause: ctx.Err()}
	}

	done := make(chan error, 1)
	go func() { done <- h.sup.Process(context.Background(), sess.ID) }()
	<-started
	require.NoError(t, h.sup.Delete(context.Background(), sess.ID))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run was not cancelled")
	}
	_, err := h.sup.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Empty(t, h.disp.published)
	assert.ErrorIs(t, h.sup.Delete(context.Background(), sess.ID), db.ErrNotFound)
}

func TestSweep(t *testing.T) {
	h := newHarness(t, Config{
		PendingTimeout:    10 * time.Minute,
		ProcessingTimeout: 15 * time.Minute,
		MaxAttempts:       3,
		RetryDelay:        time.Minute,
	})
	old := time.Now().UTC().Add(-time.Hour)

	stuckAtCap := h.pendingSession(t, 2)
	stuckAtCap.UpdatedAt = old
	stuckAtCap.Version = 1
	h.store.put(stuckAtCap)

	processing := h.pendingSession(t, 0)
	processing.Status = types.StatusProcessing
	processing.StartedProcessingAt = &old
	h.store.put(processing)

	processingAtCap := h.pendingSession(t, 2)
	processingAtCap.Status = types.StatusProcessing
	processingAtCap.StartedProcessingAt = &old
	h.store.put(processingAtCap)

	fresh := h.pendingSession(t, 0)

	report, err := h.sup.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Examined: 3, Retried: 1, Failed: 2}, report)

	failed, err := h.sup.Get(context.Background(), stuckAtCap.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, failed.Status)
	assert.Equal(t, 3, failed.Attempts)
	assert.Equal(t, StageSweep, failed.FailureStage)
	assert.Contains(t, failed.FailureReason, "stalled in PENDING")
	assert.Contains(t, failed.Trace[len(failed.Trace)-1].Message, "[timeout_stall]")

	stalledAtCap, err := h.sup.Get(context.Background(), processingAtCap.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, stalledAtCap.Status)
	assert.Equal(t, 3, stalledAtCap.Attempts)
	assert.Contains(t, stalledAtCap.FailureReason, "stalled in PROCESSING")
	assert.Contains(t, stalledAtCap.FailureReason, "gave up after 3 attempts")
	assert.NotNil(t, stalledAtCap.CompletedAt)

	// stalls are re-dispatched at once, with no retry delay
	retried, err := h.sup.Get(context.Background(), processing.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, retried.Status)
	assert.Equal(t, 1, retried.Attempts)
	assert.Nil(t, retried.StartedProcessingAt)
	assert.Nil(t, retried.RetryAt)
	assert.Equal(t, []uuid.UUID{processing.ID}, h.disp.published)

	untouched, err := h.sup.Get(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, untouched.Status)
	assert.Equal(t, int64(1), untouched.Version)
}

func TestSweep_StalledClaimStoppedBeforeRedispatch(t *testing.T) {
	h := newHarness(t, Config{ProcessingTimeout: time.Millisecond})
	sess := h.pendingSession(t, 0)

	var (
		runs           atomic.Int32
		freshCancelled atomic.Bool
	)
	stalled := make(chan struct{})
	h.pipe.run = func(ctx context.Context, s *types.TailoringSession) (*pipeline.Result, error) {
		if runs.Add(1) == 1 {
			close(stalled)
			<-ctx.Done()
			return nil, &pipeline.StageError{Stage: pipeline.StageGenerate, Retryable: true, Cause: ctx.Err()}
		}
		if ctx.Err() != nil {
			freshCancelled.Store(true)
		}
		return successResult(s), nil
	}
	// a worker in this process picks the session up as soon as it is published
	h.disp.onPublish = func(id uuid.UUID) {
		assert.NoError(t, h.sup.Process(context.Background(), id))
	}

	first := make(chan error, 1)
	go func() { first <- h.sup.Process(context.Background(), sess.ID) }()
	<-stalled
	time.Sleep(5 * time.Millisecond)

	report, err := h.sup.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Examined: 1, Retried: 1}, report)

	select {
	case err := <-first:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stalled run was not cancelled")
	}
	assert.False(t, freshCancelled.Load(), "the new claim must not be cancelled")
	assert.Equal(t, int32(2), runs.Load())

	got, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.Attempts, "only the stall is counted")
}

func TestUntrack_KeepsLaterClaim(t *testing.T) {
	h := newHarness(t, Config{})
	id := uuid.New()
	staleCtx, staleCancel := context.WithCancel(context.Background())
	defer staleCancel()
	freshCtx, freshCancel := context.WithCancel(context.Background())
	defer freshCancel()

	h.sup.track(id, 2, staleCancel)
	h.sup.track(id, 4, freshCancel)

	h.sup.cancelClaim(id, 2)
	assert.Error(t, staleCtx.Err())
	assert.NoError(t, freshCtx.Err())

	// the stale run finishing must not forget the later claim
	h.sup.untrack(id, 2)
	h.sup.cancelRunning(id)
	assert.Error(t, freshCtx.Err())

	h.sup.untrack(id, 4)
	assert.Empty(t, h.sup.running)
}

func TestProcess_TransientFailureWaitsForRetryDelay(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 3, RetryDelay: time.Minute})
	sess := h.pendingSession(t, 0)
	failing := true
	h.pipe.run = func(_ context.Context, s *types.TailoringSession) (*pipeline.Result, error) {
		if failing {
			return nil, &pipeline.StageError{Stage: pipeline.StageGenerate, Retryable: true, Cause: &llm.TransientError{Message: "rate limited"}}
		}
		return successResult(s), nil
	}

	require.NoError(t, h.sup.Process(context.Background(), sess.ID))

	got, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.RetryAt)
	assert.WithinDuration(t, time.Now().Add(time.Minute), *got.RetryAt, 5*time.Second)
	assert.Contains(t, got.Trace[len(got.Trace)-1].Message, "retry 1 of 2 scheduled in 1m0s")
	assert.Empty(t, h.disp.published)

	// an early delivery does not claim it and the sweep leaves it alone
	require.NoError(t, h.sup.Process(context.Background(), sess.ID))
	assert.Equal(t, 1, h.pipe.calls)
	report, err := h.sup.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
	assert.Empty(t, h.disp.published)

	later := time.Now().Add(2 * time.Minute)
	h.sup.now = func() time.Time { return later }
	failing = false

	report, err = h.sup.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Examined: 1, Released: 1}, report)
	assert.Equal(t, []uuid.UUID{sess.ID}, h.disp.published)

	released, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, released.Status)
	assert.Nil(t, released.RetryAt)
	assert.Equal(t, 1, released.Attempts)

	require.NoError(t, h.sup.Process(context.Background(), sess.ID))
	done, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, done.Status)
	assert.Equal(t, 2, h.pipe.calls)
}

func TestRetryDelay_DoublesUpToCap(t *testing.T) {
	h := newHarness(t, Config{RetryDelay: time.Minute, MaxRetryDelay: 5 * time.Minute})
	assert.Equal(t, time.Minute, h.sup.retryDelay(1))
	assert.Equal(t, 2*time.Minute, h.sup.retryDelay(2))
	assert.Equal(t, 4*time.Minute, h.sup.retryDelay(3))
	assert.Equal(t, 5*time.Minute, h.sup.retryDelay(4))
	assert.Equal(t, 5*time.Minute, h.sup.retryDelay(60))

	immediate := newHarness(t, Config{})
	assert.Zero(t, immediate.sup.retryDelay(1))
}

func TestSweep_ClaimWinsRace(t *testing.T) {
	h := newHarness(t, Config{})
	old := time.Now().UTC().Add(-time.Hour)
	sess := h.pendingSession(t, 0)
	sess.UpdatedAt = old
	h.store.put(sess)

	// a worker claims the session after the sweep listed it
	h.store.beforeSwap = func(next *types.TailoringSession) {
		h.store.beforeSwap = nil
		claimed := next.Clone()
		claimed.Status = types.StatusProcessing
		claimed.Version = next.Version + 1
		h.store.put(claimed)
	}

	report, err := h.sup.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Examined: 1, Skipped: 1}, report)

	got, err := h.sup.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessing, got.Status)
	assert.Equal(t, 0, got.Attempts)
}

func TestTrace(t *testing.T) {
	h := newHarness(t, Config{})
	sess := h.pendingSession(t, 0)
	require.NoError(t, h.sup.Process(context.Background(), sess.ID))

	trace, err := h.sup.Trace(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, trace, 4)
	assert.Contains(t, types.FormatTrace(trace), "claim: claimed by worker")

	_, err = h.sup.Trace(context.Background(), uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, &fakeDispatcher{}, &fakePipeline{}, nil, Config{}, nil)
	assert.Error(t, err)

	sup, err := New(newMemStore(), &fakeDispatcher{}, &fakePipeline{}, nil, Config{}, nil)
	require.NoError(t, err)
	want := DefaultConfig()
	want.RetryDelay = 0
	assert.Equal(t, want, sup.cfg)

	sup, err = New(newMemStore(), &fakeDispatcher{}, &fakePipeline{}, nil, Config{RetryDelay: time.Hour}, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, sup.cfg.MaxRetryDelay)
}
