// Package db provides durable storage for tailoring sessions and owners'
// experience graphs. Every session write is a compare-and-swap on the
// session's status and version.
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/resume-tailor/internal/types"
)

//go:embed schema
var schemaFS embed.FS

var (
	// ErrNotFound is returned when a session or experience graph does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a swap's expected status or version no
	// longer matches the stored row
	ErrConflict = errors.New("session changed concurrently")
)

// Driver names accepted by Open
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// StaleQuery selects sessions that stopped making progress, together with
// delayed retries that have come due
type StaleQuery struct {
	// PendingBefore matches PENDING sessions last updated before this instant.
	// Sessions holding a retry delay are not matched.
	PendingBefore time.Time
	// ProcessingBefore matches PROCESSING sessions claimed before this instant
	ProcessingBefore time.Time
	// RetryDueBy matches PENDING sessions whose retry delay ends at or before
	// this instant
	RetryDueBy time.Time
	Limit      int
}

// Store is the persistence surface shared by the Postgres and SQLite backends
type Store interface {
	CreateSession(ctx context.Context, s *types.TailoringSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*types.TailoringSession, error)
	SwapSession(ctx context.Context, expected types.Status, next *types.TailoringSession) error
	ListStaleSessions(ctx context.Context, q StaleQuery) ([]*types.TailoringSession, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	GetExperienceGraph(ctx context.Context, ownerID uuid.UUID) (*types.ExperienceSnapshot, error)
	PutExperienceGraph(ctx context.Context, ownerID uuid.UUID, graph *types.ExperienceSnapshot) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the store selected by driver
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverPostgres:
		return Connect(ctx, dsn)
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// migrations returns the embedded SQL files for a driver in name order
func migrations(driver string) ([]string, error) {
	dir := "schema/" + driver
	entries, err := fs.ReadDir(schemaFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(schemaFS, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		out = append(out, string(data))
	}
	return out, nil
}

const defaultStaleLimit = 100

func (q StaleQuery) limit() int {
	if q.Limit <= 0 {
		return defaultStaleLimit
	}
	return q.Limit
}
