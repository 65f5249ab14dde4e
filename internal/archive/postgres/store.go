// Package postgres provides a PostgreSQL-backed caption archive.
//
// All operations share a single [pgxpool.Pool]. [Migrate] runs on start and
// is idempotent, so no external schema management is required.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danielacorner/frame-host-2/internal/archive"
)

var _ archive.Archive = (*Store)(nil)

const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id         BIGSERIAL    PRIMARY KEY,
    started_at TIMESTAMPTZ  NOT NULL,
    ended_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS captions (
    id         BIGSERIAL    PRIMARY KEY,
    session_id BIGINT       NOT NULL REFERENCES sessions (id),
    source     TEXT         NOT NULL DEFAULT '',
    translated TEXT         NOT NULL,
    timestamp  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_captions_session_timestamp
    ON captions (session_id, timestamp);
`

// Store is the PostgreSQL caption archive. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("caption archive: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("caption archive: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("caption archive: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates or ensures the archive tables exist. It is idempotent and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("archive migrate: %w", err)
	}
	return nil
}

// BeginSession implements [archive.Archive].
func (s *Store) BeginSession(ctx context.Context, startedAt time.Time) (string, error) {
	const q = `INSERT INTO sessions (started_at) VALUES ($1) RETURNING id`

	var id int64
	if err := s.pool.QueryRow(ctx, q, startedAt).Scan(&id); err != nil {
		return "", fmt.Errorf("caption archive: begin session: %w", err)
	}
	return fmt.Sprintf("%d", id), nil
}

// WriteCaption implements [archive.Archive].
func (s *Store) WriteCaption(ctx context.Context, c archive.Caption) error {
	const q = `
		INSERT INTO captions (session_id, source, translated, timestamp)
		VALUES ($1::bigint, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, q, c.SessionID, c.Source, c.Translated, c.Timestamp)
	if err != nil {
		return fmt.Errorf("caption archive: write caption: %w", err)
	}
	return nil
}

// EndSession implements [archive.Archive].
func (s *Store) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	const q = `UPDATE sessions SET ended_at = $2 WHERE id = $1::bigint`

	if _, err := s.pool.Exec(ctx, q, sessionID, endedAt); err != nil {
		return fmt.Errorf("caption archive: end session: %w", err)
	}
	return nil
}

// ListCaptions implements [archive.Archive].
func (s *Store) ListCaptions(ctx context.Context, sessionID string) ([]archive.Caption, error) {
	const q = `
		SELECT source, translated, timestamp
		FROM   captions
		WHERE  session_id = $1::bigint
		ORDER  BY timestamp`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("caption archive: list captions: %w", err)
	}
	defer rows.Close()

	var out []archive.Caption
	for rows.Next() {
		c := archive.Caption{SessionID: sessionID}
		if err := rows.Scan(&c.Source, &c.Translated, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("caption archive: scan caption: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("caption archive: list captions: %w", err)
	}
	return out, nil
}

// Close implements [archive.Archive]. It releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
