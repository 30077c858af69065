// Package postgres persists provider watermarks in a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTable = "provider_progress"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool.
type Config struct {
	DSN      string
	Table    string
	MaxConns int32
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store reads and upserts rows of (provider, last_synced_at).
type Store struct {
	pool  pool
	table string
}

// New connects to Postgres and makes sure the table exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("progress.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool builds a Store over an existing pool (used by tests).
func NewWithPool(p pool, table string) (*Store, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table}, nil
}

// EnsureSchema creates the progress table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	provider TEXT PRIMARY KEY,
	last_synced_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Load returns every stored watermark.
func (s *Store) Load(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT provider, last_synced_at FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			provider string
			at       time.Time
		)
		if err := rows.Scan(&provider, &at); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		out[provider] = at.UTC()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.table, err)
	}
	return out, nil
}

// Save upserts the watermark of provider.
func (s *Store) Save(ctx context.Context, provider string, lastSyncedAt time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %s (provider, last_synced_at, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (provider) DO UPDATE
SET last_synced_at = EXCLUDED.last_synced_at, updated_at = now()`, s.table)
	if _, err := s.pool.Exec(ctx, query, provider, lastSyncedAt.UTC()); err != nil {
		return fmt.Errorf("upsert progress of %s: %w", provider, err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
