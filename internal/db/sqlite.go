package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/jonathan/resume-tailor/internal/types"
)

// SQLiteStore keeps sessions in a local SQLite file. It suits a single-node
// deployment and tests. Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies the schema
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	files, err := migrations(DriverSQLite)
	if err != nil {
		return err
	}
	for i, stmt := range files {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Ping checks the database is usable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteSessionColumns = `id, owner_id, status, version, attempts, job, experience, preferences,
	content, ats, usage, trace, failure_reason, failure_stage,
	created_at, updated_at, started_processing_at, completed_at, retry_at`

// CreateSession inserts a new session. Version starts at 1.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *types.TailoringSession) error {
	docs, err := encodeSession(sess)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	sess.Version = 1

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tailoring_sessions (`+sqliteSessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID.String(), sess.OwnerID.String(), sess.Status.String(), sess.Version, sess.Attempts,
		string(docs.job), string(docs.experience), string(docs.preferences),
		nullText(docs.content), nullText(docs.ats), string(docs.usage), string(docs.trace),
		sess.FailureReason, sess.FailureStage,
		toMillis(sess.CreatedAt), toMillis(sess.UpdatedAt),
		nullMillis(sess.StartedProcessingAt), nullMillis(sess.CompletedAt), nullMillis(sess.RetryAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID
func (s *SQLiteStore) GetSession(ctx context.Context, id uuid.UUID) (*types.TailoringSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM tailoring_sessions WHERE id = ?`, id.String())
	sess, err := scanSQLiteSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// SwapSession writes next if the stored row still has status expected and
// version next.Version. See PostgresStore.SwapSession.
func (s *SQLiteStore) SwapSession(ctx context.Context, expected types.Status, next *types.TailoringSession) error {
	docs, err := encodeSession(next)
	if err != nil {
		return err
	}
	now := s.now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tailoring_sessions
		 SET status = ?, version = version + 1, attempts = ?, job = ?,
		     content = ?, ats = ?, usage = ?, trace = ?,
		     failure_reason = ?, failure_stage = ?, updated_at = ?,
		     started_processing_at = ?, completed_at = ?, retry_at = ?
		 WHERE id = ? AND status = ? AND version = ?`,
		next.Status.String(), next.Attempts, string(docs.job),
		nullText(docs.content), nullText(docs.ats), string(docs.usage), string(docs.trace),
		next.FailureReason, next.FailureStage, toMillis(now),
		nullMillis(next.StartedProcessingAt), nullMillis(next.CompletedAt), nullMillis(next.RetryAt),
		next.ID.String(), expected.String(), next.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to swap session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to swap session: %w", err)
	}
	if n == 0 {
		return s.missOrConflict(ctx, next.ID)
	}
	next.Version++
	next.UpdatedAt = fromMillis(toMillis(now))
	return nil
}

func (s *SQLiteStore) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM tailoring_sessions WHERE id = ?`, id.String()).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// ListStaleSessions returns PENDING sessions not updated since
// q.PendingBefore, PROCESSING sessions claimed before q.ProcessingBefore and
// delayed retries due by q.RetryDueBy
func (s *SQLiteStore) ListStaleSessions(ctx context.Context, q StaleQuery) ([]*types.TailoringSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM tailoring_sessions
		 WHERE (status = 'PENDING' AND retry_at IS NULL AND updated_at < ?)
		    OR (status = 'PENDING' AND retry_at <= ?)
		    OR (status = 'PROCESSING' AND COALESCE(started_processing_at, updated_at) < ?)
		 ORDER BY updated_at ASC
		 LIMIT ?`,
		toMillis(q.PendingBefore), toMillis(q.RetryDueBy), toMillis(q.ProcessingBefore), q.limit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	defer rows.Close()

	var out []*types.TailoringSession
	for rows.Next() {
		sess, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	return out, nil
}

// DeleteSession removes a session in any state
func (s *SQLiteStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tailoring_sessions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetExperienceGraph returns the owner's stored experience
func (s *SQLiteStore) GetExperienceGraph(ctx context.Context, ownerID uuid.UUID) (*types.ExperienceSnapshot, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM experience_graphs WHERE owner_id = ?`, ownerID.String()).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get experience graph: %w", err)
	}
	return decodeGraph([]byte(doc))
}

// PutExperienceGraph replaces the owner's stored experience
func (s *SQLiteStore) PutExperienceGraph(ctx context.Context, ownerID uuid.UUID, graph *types.ExperienceSnapshot) error {
	doc, err := encodeGraph(graph)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO experience_graphs (owner_id, snapshot, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (owner_id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		ownerID.String(), string(doc), toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save experience graph: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (*types.TailoringSession, error) {
	var (
		sess                  types.TailoringSession
		id, owner, status     string
		job, exp, prefs       string
		content, ats          sql.NullString
		usage, trace          string
		created, updated      int64
		startedAt, completeAt sql.NullInt64
		retryAt               sql.NullInt64
	)
	err := row.Scan(&id, &owner, &status, &sess.Version, &sess.Attempts,
		&job, &exp, &prefs, &content, &ats, &usage, &trace,
		&sess.FailureReason, &sess.FailureStage,
		&created, &updated, &startedAt, &completeAt, &retryAt)
	if err != nil {
		return nil, err
	}

	if sess.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", id, err)
	}
	if sess.OwnerID, err = uuid.Parse(owner); err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", owner, err)
	}
	if sess.Status, err = types.ParseStatus(status); err != nil {
		return nil, err
	}
	sess.CreatedAt = fromMillis(created)
	sess.UpdatedAt = fromMillis(updated)
	if startedAt.Valid {
		t := fromMillis(startedAt.Int64)
		sess.StartedProcessingAt = &t
	}
	if completeAt.Valid {
		t := fromMillis(completeAt.Int64)
		sess.CompletedAt = &t
	}
	if retryAt.Valid {
		t := fromMillis(retryAt.Int64)
		sess.RetryAt = &t
	}

	docs := sessionDocs{
		job:         []byte(job),
		experience:  []byte(exp),
		preferences: []byte(prefs),
		usage:       []byte(usage),
		trace:       []byte(trace),
	}
	if content.Valid {
		docs.content = []byte(content.String)
	}
	if ats.Valid {
		docs.ats = []byte(ats.String)
	}
	if err := docs.decodeInto(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func nullText(doc []byte) any {
	if doc == nil {
		return nil
	}
	return string(doc)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
