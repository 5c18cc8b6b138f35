package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-tailor/internal/types"
)

func newPendingSession() *types.TailoringSession {
	return &types.TailoringSession{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Status:  types.StatusPending,
		Job:     types.JobSnapshot{Title: "Data Engineer", RawText: "Python required"},
		Experience: types.ExperienceSnapshot{Entries: []types.ExperienceEntry{
			{ID: "w1", Type: types.EntryWork, Title: "Engineer", Skills: []string{"Python"}, Achievements: []string{}},
		}},
		Preferences: types.DefaultPreferences(),
	}
}

// runStoreContract exercises behaviour every Store backend must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)
		sess := newPendingSession()
		require.NoError(t, store.CreateSession(ctx, sess))
		assert.Equal(t, int64(1), sess.Version)

		got, err := store.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.Equal(t, sess.OwnerID, got.OwnerID)
		assert.Equal(t, types.StatusPending, got.Status)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, sess.Job, got.Job)
		assert.Equal(t, sess.Experience, got.Experience)
		assert.Equal(t, sess.Preferences, got.Preferences)
		assert.Nil(t, got.Content)
		assert.Nil(t, got.ATS)
		assert.Nil(t, got.StartedProcessingAt)
	})

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetSession(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("swap claims once", func(t *testing.T) {
		store := newStore(t)
		sess := newPendingSession()
		require.NoError(t, store.CreateSession(ctx, sess))

		first := sess.Clone()
		second := sess.Clone()
		now := time.Now().UTC().Truncate(time.Millisecond)
		first.Status = types.StatusProcessing
		first.StartedProcessingAt = &now
		second.Status = types.StatusProcessing

		require.NoError(t, store.SwapSession(ctx, types.StatusPending, first))
		assert.Equal(t, int64(2), first.Version)
		assert.ErrorIs(t, store.SwapSession(ctx, types.StatusPending, second), ErrConflict)

		got, err := store.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, types.StatusProcessing, got.Status)
		require.NotNil(t, got.StartedProcessingAt)
		assert.True(t, now.Equal(*got.StartedProcessingAt))
	})

	t.Run("swap writes result", func(t *testing.T) {
		store := newStore(t)
		sess := newPendingSession()
		require.NoError(t, store.CreateSession(ctx, sess))

		next := sess.Clone()
		next.Status = types.StatusProcessing
		require.NoError(t, store.SwapSession(ctx, types.StatusPending, next))

		done := next.Clone()
		done.Status = types.StatusCompleted
		done.Content = &types.TailoredContent{
			Sections:    []types.Section{{Name: "Highlights", Bullets: []string{"Shipped it"}}},
			Bullets:     []string{"Shipped it"},
			Suggestions: []string{},
		}
		done.ATS = &types.ATSMetadata{Overall: 40, MissingRequiredSkills: []string{"Kubernetes"}, MatchedKeywords: []string{}, Bullets: []types.BulletQuality{}}
		done.Usage = types.Usage{PromptTokens: 10, WordsGenerated: 2}
		done.Trace = []types.TraceEntry{{Stage: "generate", Message: "ok", At: time.Now().UTC().Truncate(time.Second), Attempt: 1}}
		require.NoError(t, store.SwapSession(ctx, types.StatusProcessing, done))

		got, err := store.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, types.StatusCompleted, got.Status)
		assert.Equal(t, int64(3), got.Version)
		assert.Equal(t, done.Content, got.Content)
		assert.Equal(t, done.ATS, got.ATS)
		assert.Equal(t, done.Usage, got.Usage)
		require.Len(t, got.Trace, 1)
		assert.Equal(t, "generate", got.Trace[0].Stage)
	})

	t.Run("swap stale version conflicts", func(t *testing.T) {
		store := newStore(t)
		sess := newPendingSession()
		require.NoError(t, store.CreateSession(ctx, sess))

		stale := sess.Clone()
		stale.Version = 7
		stale.Status = types.StatusFailed
		assert.ErrorIs(t, store.SwapSession(ctx, types.StatusPending, stale), ErrConflict)
	})

	t.Run("swap deleted session", func(t *testing.T) {
		store := newStore(t)
		sess := newPendingSession()
		require.NoError(t, store.CreateSession(ctx, sess))
		require.NoError(t, store.DeleteSession(ctx, sess.ID))

		next := sess.Clone()
		next.Status = types.StatusProcessing
		assert.ErrorIs(t, store.SwapSession(ctx, types.StatusPending, next), ErrNotFound)
		assert.ErrorIs(t, store.DeleteSession(ctx, sess.ID), ErrNotFound)
	})

	t.Run("list stale", func(t *testing.T) {
		store := newStore(t)
		pending := newPendingSession()
		require.NoError(t, store.CreateSession(ctx, pending))

		processing := newPendingSession()
		require.NoError(t, store.CreateSession(ctx, processing))
		claimed := processing.Clone()
		claimed.Status = types.StatusProcessing
		started := time.Now().UTC().Add(-time.Hour)
		claimed.StartedProcessingAt = &started
		require.NoError(t, store.SwapSession(ctx, types.StatusPending, claimed))

		now := time.Now()
		none, err := store.ListStaleSessions(ctx, StaleQuery{
			PendingBefore:    now.Add(-time.Minute),
			ProcessingBefore: now.Add(-2 * time.Hour),
		})
		require.NoError(t, err)
		for _, s := range none {
			assert.NotEqual(t, pending.ID, s.ID)
			assert.NotEqual(t, processing.ID, s.ID)
		}

		stale, err := store.ListStaleSessions(ctx, StaleQuery{
			PendingBefore:    now.Add(time.Minute),
			ProcessingBefore: now.Add(-30 * time.Minute),
			Limit:            1000,
		})
		require.NoError(t, err)
		ids := map[uuid.UUID]types.Status{}
		for _, s := range stale {
			ids[s.ID] = s.Status
		}
		assert.Equal(t, types.StatusPending, ids[pending.ID])
		assert.Equal(t, types.StatusProcessing, ids[processing.ID])
	})

	t.Run("list delayed retries", func(t *testing.T) {
		store := newStore(t)
		sess := newPendingSession()
		require.NoError(t, store.CreateSession(ctx, sess))

		retryAt := time.Now().UTC().Add(10 * time.Minute).Truncate(time.Millisecond)
		delayed := sess.Clone()
		delayed.Attempts = 1
		delayed.RetryAt = &retryAt
		require.NoError(t, store.SwapSession(ctx, types.StatusPending, delayed))

		got, err := store.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		require.NotNil(t, got.RetryAt)
		assert.True(t, retryAt.Equal(*got.RetryAt))

		// a delayed retry is never a pending stall, however old
		now := time.Now()
		notDue, err := store.ListStaleSessions(ctx, StaleQuery{
			PendingBefore:    now.Add(time.Hour),
			ProcessingBefore: now,
			RetryDueBy:       now,
		})
		require.NoError(t, err)
		for _, s := range notDue {
			assert.NotEqual(t, sess.ID, s.ID)
		}

		due, err := store.ListStaleSessions(ctx, StaleQuery{
			PendingBefore:    now.Add(-time.Hour),
			ProcessingBefore: now,
			RetryDueBy:       retryAt.Add(time.Second),
		})
		require.NoError(t, err)
		var found bool
		for _, s := range due {
			if s.ID == sess.ID {
				found = true
				require.NotNil(t, s.RetryAt)
			}
		}
		assert.True(t, found)

		cleared := got.Clone()
		cleared.RetryAt = nil
		require.NoError(t, store.SwapSession(ctx, types.StatusPending, cleared))
		got, err = store.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Nil(t, got.RetryAt)
	})

	t.Run("experience graph", func(t *testing.T) {
		store := newStore(t)
		owner := uuid.New()
		_, err := store.GetExperienceGraph(ctx, owner)
		assert.ErrorIs(t, err, ErrNotFound)

		graph := &types.ExperienceSnapshot{Entries: []types.ExperienceEntry{
			{ID: "p1", Type: types.EntryProject, Title: "Compiler", Skills: []string{"Rust"}, Achievements: []string{"Cut build time 30%"}},
		}}
		require.NoError(t, store.PutExperienceGraph(ctx, owner, graph))

		got, err := store.GetExperienceGraph(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, graph.Entries, got.Entries)

		graph.Entries[0].Title = "Changed"
		require.NoError(t, store.PutExperienceGraph(ctx, owner, graph))
		got, err = store.GetExperienceGraph(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, "Changed", got.Entries[0].Title)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(ctx))
	})
}
