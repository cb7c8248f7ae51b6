// Package store persists harvested records in PostgreSQL and answers the
// coverage queries gap detection runs on. One row per record, keyed by the
// OAI identifier; multi-valued fields are stored as JSONB arrays so their
// order survives storage and retrieval.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"arhida/internal/config"
)

// DBTX is the subset of pgxpool.Pool the store components use. Tests
// substitute fakes.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store owns the single long-lived pool shared by the writer and the
// coverage reader for the whole run.
type Store struct {
	pool   *pgxpool.Pool
	schema string
	table  string
	log    *slog.Logger
}

// Open connects and pings. This is the only fatal failure path of the
// process: without a store there is nothing to harvest into.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %q on %s: %w", cfg.Database, cfg.Host, err)
	}
	logger.Info("connected", "database", cfg.Database, "host", cfg.Host)
	return &Store{pool: pool, schema: cfg.Schema, table: cfg.Table, log: logger}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Writer returns the upsert writer bound to this store's relation.
func (s *Store) Writer() *Writer {
	return NewWriter(s.pool, s.schema, s.table, s.log)
}

// Coverage returns the gap-detection reader bound to this store's relation.
func (s *Store) Coverage() *Coverage {
	return NewCoverage(s.pool, s.schema, s.table)
}
