package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

// ArchiveCursorStore implements domain.ArchiveCursorStore using PostgreSQL.
type ArchiveCursorStore struct {
	pool *pgxpool.Pool
}

var _ domain.ArchiveCursorStore = (*ArchiveCursorStore)(nil)

// NewArchiveCursorStore creates a new ArchiveCursorStore backed by the given
// connection pool.
func NewArchiveCursorStore(pool *pgxpool.Pool) *ArchiveCursorStore {
	return &ArchiveCursorStore{pool: pool}
}

// Cursor returns the time up to which kind has been archived.
func (s *ArchiveCursorStore) Cursor(ctx context.Context, kind string) (time.Time, error) {
	var until time.Time
	err := s.pool.QueryRow(ctx, `SELECT archived_until FROM archive_cursors WHERE kind = $1`, kind).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: get archive cursor %s: %w", kind, err)
	}
	return until, nil
}

// SetCursor advances the cursor for kind. It never moves backwards.
func (s *ArchiveCursorStore) SetCursor(ctx context.Context, kind string, until time.Time) error {
	const query = `
		INSERT INTO archive_cursors (kind, archived_until) VALUES ($1, $2)
		ON CONFLICT (kind) DO UPDATE
		SET archived_until = GREATEST(archive_cursors.archived_until, EXCLUDED.archived_until)`

	if _, err := s.pool.Exec(ctx, query, kind, until); err != nil {
		return fmt.Errorf("postgres: set archive cursor %s: %w", kind, err)
	}
	return nil
}
