// Package postgres provides a Postgres-backed progress record store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/sitegen-portal/internal/clock"
	"github.com/JakeFAU/sitegen-portal/internal/generation"
	"github.com/JakeFAU/sitegen-portal/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "generation_status"

// Config controls the connection pool and table used for status rows.
type Config struct {
	DSN             string
	Table           string
	TTL             time.Duration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// StatusStore keeps one JSONB row per client with an explicit expiry.
type StatusStore struct {
	pool  querier
	table string
	ttl   time.Duration
	clock clock.Clock
}

var _ store.StatusStore = (*StatusStore)(nil)

// NewStatusStore connects to Postgres using cfg.
func NewStatusStore(ctx context.Context, cfg Config) (*StatusStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewStatusStoreWithPool(pool, cfg.Table, cfg.TTL, nil)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStatusStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStatusStoreWithPool(pool querier, table string, ttl time.Duration, clk clock.Clock) (*StatusStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.New()
	}
	return &StatusStore{pool: pool, table: table, ttl: ttl, clock: clk}, nil
}

// EnsureSchema creates the status table and its expiry index if missing.
func (s *StatusStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			client_id  TEXT PRIMARY KEY,
			record     JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS %[1]s_expires_at_idx ON %[1]s (expires_at);
	`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure status schema: %w", err)
	}
	return nil
}

// Get loads the live record for clientID.
func (s *StatusStore) Get(ctx context.Context, clientID string) (generation.ProgressRecord, error) {
	query := fmt.Sprintf(`SELECT record FROM %s WHERE client_id = $1 AND expires_at > $2`, s.table)
	var raw []byte
	if err := s.pool.QueryRow(ctx, query, clientID, s.clock.Now()).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return generation.ProgressRecord{}, store.ErrNotFound
		}
		return generation.ProgressRecord{}, fmt.Errorf("get status record: %w", err)
	}
	var rec generation.ProgressRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return generation.ProgressRecord{}, fmt.Errorf("decode status record: %w", err)
	}
	return rec, nil
}

// Put upserts rec, replacing any existing row for the client.
func (s *StatusStore) Put(ctx context.Context, rec generation.ProgressRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode status record: %w", err)
	}
	now := s.clock.Now()
	query := fmt.Sprintf(`
		INSERT INTO %s (client_id, record, updated_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (client_id) DO UPDATE
		SET record = EXCLUDED.record,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
	`, s.table)
	if _, err := s.pool.Exec(ctx, query, rec.ClientID, raw, now, now.Add(s.ttl)); err != nil {
		return fmt.Errorf("upsert status record: %w", err)
	}
	return nil
}

// Delete removes the row for clientID.
func (s *StatusStore) Delete(ctx context.Context, clientID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE client_id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, clientID); err != nil {
		return fmt.Errorf("delete status record: %w", err)
	}
	return nil
}

// Sweep deletes every expired row.
func (s *StatusStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("sweep status records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Ping checks connectivity.
func (s *StatusStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *StatusStore) Close() {
	s.pool.Close()
}
