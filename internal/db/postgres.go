package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/resume-tailor/internal/types"
)

// PostgresStore wraps a PostgreSQL connection pool
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Connect establishes a connection pool to the database and applies the
// embedded schema
func Connect(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{pool: pool, now: time.Now}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	files, err := migrations(DriverPostgres)
	if err != nil {
		return err
	}
	for i, sql := range files {
		if _, err := s.pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Ping checks connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const pgSessionColumns = `id, owner_id, status, version, attempts, job, experience, preferences,
	content, ats, usage, trace, failure_reason, failure_stage,
	created_at, updated_at, started_processing_at, completed_at, retry_at`

// CreateSession inserts a new session. Version starts at 1.
func (s *PostgresStore) CreateSession(ctx context.Context, sess *types.TailoringSession) error {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tailoring_sessions (`+pgSessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		sess.ID, sess.OwnerID, sess.Status.String(), sess.Version, sess.Attempts,
		docs.job, docs.experience, docs.preferences, nullable(docs.content), nullable(docs.ats),
		docs.usage, docs.trace, sess.FailureReason, sess.FailureStage,
		sess.CreatedAt, sess.UpdatedAt, sess.StartedProcessingAt, sess.CompletedAt, sess.RetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID
func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*types.TailoringSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgSessionColumns+` FROM tailoring_sessions WHERE id = $1`, id)
	sess, err := scanPgSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// SwapSession writes next if the stored row still has status expected and
// version next.Version. On success next.Version and next.UpdatedAt reflect
// the stored row. Experience and preferences are frozen at creation and are
// not rewritten.
func (s *PostgresStore) SwapSession(ctx context.Context, expected types.Status, next *types.TailoringSession) error {
	docs, err := encodeSession(next)
	if err != nil {
		return err
	}
	now := s.now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE tailoring_sessions
		 SET status = $1, version = version + 1, attempts = $2, job = $3,
		     content = $4, ats = $5, usage = $6, trace = $7,
		     failure_reason = $8, failure_stage = $9, updated_at = $10,
		     started_processing_at = $11, completed_at = $12, retry_at = $13
		 WHERE id = $14 AND status = $15 AND version = $16`,
		next.Status.String(), next.Attempts, docs.job,
		nullable(docs.content), nullable(docs.ats), docs.usage, docs.trace,
		next.FailureReason, next.FailureStage, now,
		next.StartedProcessingAt, next.CompletedAt, next.RetryAt,
		next.ID, expected.String(), next.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to swap session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, next.ID)
	}
	next.Version++
	next.UpdatedAt = now
	return nil
}

func (s *PostgresStore) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tailoring_sessions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

// ListStaleSessions returns PENDING sessions not updated since
// q.PendingBefore, PROCESSING sessions claimed before q.ProcessingBefore and
// delayed retries due by q.RetryDueBy
func (s *PostgresStore) ListStaleSessions(ctx context.Context, q StaleQuery) ([]*types.TailoringSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgSessionColumns+` FROM tailoring_sessions
		 WHERE (status = 'PENDING' AND retry_at IS NULL AND updated_at < $1)
		    OR (status = 'PENDING' AND retry_at <= $2)
		    OR (status = 'PROCESSING' AND COALESCE(started_processing_at, updated_at) < $3)
		 ORDER BY updated_at ASC
		 LIMIT $4`,
		q.PendingBefore.UTC(), q.RetryDueBy.UTC(), q.ProcessingBefore.UTC(), q.limit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	defer rows.Close()

	var out []*types.TailoringSession
	for rows.Next() {
		sess, err := scanPgSession(rows)
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
func (s *PostgresStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tailoring_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetExperienceGraph returns the owner's stored experience
func (s *PostgresStore) GetExperienceGraph(ctx context.Context, ownerID uuid.UUID) (*types.ExperienceSnapshot, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM experience_graphs WHERE owner_id = $1`, ownerID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get experience graph: %w", err)
	}
	return decodeGraph(doc)
}

// PutExperienceGraph replaces the owner's stored experience
func (s *PostgresStore) PutExperienceGraph(ctx context.Context, ownerID uuid.UUID, graph *types.ExperienceSnapshot) error {
	doc, err := encodeGraph(graph)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO experience_graphs (owner_id, snapshot, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id) DO UPDATE SET snapshot = $2, updated_at = $3`,
		ownerID, doc, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save experience graph: %w", err)
	}
	return nil
}

func scanPgSession(row pgx.Row) (*types.TailoringSession, error) {
	var (
		sess   types.TailoringSession
		status string
		docs   sessionDocs
	)
	err := row.Scan(&sess.ID, &sess.OwnerID, &status, &sess.Version, &sess.Attempts,
		&docs.job, &docs.experience, &docs.preferences, &docs.content, &docs.ats,
		&docs.usage, &docs.trace, &sess.FailureReason, &sess.FailureStage,
		&sess.CreatedAt, &sess.UpdatedAt, &sess.StartedProcessingAt, &sess.CompletedAt, &sess.RetryAt)
	if err != nil {
		return nil, err
	}
	if sess.Status, err = types.ParseStatus(status); err != nil {
		return nil, err
	}
	if err := docs.decodeInto(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}
