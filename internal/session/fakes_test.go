package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/types"
)

// memStore mirrors the CAS semantics of the database stores
type memStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*types.TailoringSession
	graphs   map[uuid.UUID]*types.ExperienceSnapshot
	// created records the status each session was first stored with
	created    map[uuid.UUID]types.Status
	beforeSwap func(next *types.TailoringSession)
	now        func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[uuid.UUID]*types.TailoringSession),
		graphs:   make(map[uuid.UUID]*types.ExperienceSnapshot),
		created:  make(map[uuid.UUID]types.Status),
		now:      time.Now,
	}
}

func (m *memStore) CreateSession(_ context.Context, sess *types.TailoringSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	sess.Version = 1
	m.sessions[sess.ID] = sess.Clone()
	m.created[sess.ID] = sess.Status
	return nil
}

func (m *memStore) GetSession(_ context.Context, id uuid.UUID) (*types.TailoringSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return sess.Clone(), nil
}

func (m *memStore) SwapSession(_ context.Context, expected types.Status, next *types.TailoringSession) error {
	if m.beforeSwap != nil {
		m.beforeSwap(next)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[next.ID]
	if !ok {
		return db.ErrNotFound
	}
	if cur.Status != expected || cur.Version != next.Version {
		return db.ErrConflict
	}
	next.Version++
	next.UpdatedAt = m.now().UTC()
	stored := next.Clone()
	stored.CreatedAt = cur.CreatedAt
	m.sessions[next.ID] = stored
	return nil
}

func (m *memStore) ListStaleSessions(_ context.Context, q db.StaleQuery) ([]*types.TailoringSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.TailoringSession
	for _, sess := range m.sessions {
		switch sess.Status {
		case types.StatusPending:
			if sess.RetryAt != nil {
				if !sess.RetryAt.After(q.RetryDueBy) {
					out = append(out, sess.Clone())
				}
				continue
			}
			if sess.UpdatedAt.Before(q.PendingBefore) {
				out = append(out, sess.Clone())
			}
		case types.StatusProcessing:
			since := sess.UpdatedAt
			if sess.StartedProcessingAt != nil {
				since = *sess.StartedProcessingAt
			}
			if since.Before(q.ProcessingBefore) {
				out = append(out, sess.Clone())
			}
		}
	}
	return out, nil
}

func (m *memStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memStore) GetExperienceGraph(_ context.Context, owner uuid.UUID) (*types.ExperienceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[owner]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := g.Clone()
	return &c, nil
}

// put stores sess as-is, bypassing version and timestamp handling
func (m *memStore) put(sess *types.TailoringSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess.Clone()
}

type fakeDispatcher struct {
	mu         sync.Mutex
	pingErr    error
	publishErr error
	published  []uuid.UUID
	// onPublish runs after a successful publish, like an in-process consumer
	onPublish func(id uuid.UUID)
}

func (d *fakeDispatcher) Publish(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	if d.publishErr != nil {
		d.mu.Unlock()
		return d.publishErr
	}
	d.published = append(d.published, id)
	hook := d.onPublish
	d.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return nil
}

func (d *fakeDispatcher) Ping(context.Context) error {
	return d.pingErr
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.published)
}

type fakePipeline struct {
	mu    sync.Mutex
	calls int
	run   func(ctx context.Context, sess *types.TailoringSession) (*pipeline.Result, error)
}

func (p *fakePipeline) Run(ctx context.Context, sess *types.TailoringSession) (*pipeline.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.run(ctx, sess)
}

func successResult(sess *types.TailoringSession) *pipeline.Result {
	job := sess.Job.Clone()
	if !job.Captured() {
		now := time.Now().UTC()
		job.Text = "grounded posting text"
		job.Grounded = true
		job.CapturedAt = &now
	}
	return &pipeline.Result{
		Job: job,
		Content: &types.TailoredContent{
			Title:       "Data Engineer",
			Sections:    []types.Section{{Name: "Highlights", Bullets: []string{"Built ETL pipelines in Python"}}},
			Bullets:     []string{"Built ETL pipelines in Python"},
			Suggestions: []string{},
		},
		ATS: &types.ATSMetadata{
			Overall:               40,
			RequiredScore:         50,
			KeywordScore:          33.33,
			MissingRequiredSkills: []string{"Kubernetes"},
			MatchedKeywords:       []string{"Python"},
			Bullets:               []types.BulletQuality{},
		},
		Usage: types.Usage{PromptTokens: 120, CompletionTokens: 40, TotalTokens: 160, WordsGenerated: 5},
		Trace: []types.TraceEntry{
			{Stage: pipeline.StageExtract, Message: "1 required", At: time.Now().UTC(), Attempt: sess.Attempts + 1},
			{Stage: pipeline.StageGenerate, Message: "1 sections", At: time.Now().UTC(), Attempt: sess.Attempts + 1},
		},
	}
}
