package store

import (
	"context"
	"fmt"
)

// The relation is created once from these fixed statements; they are
// idempotent so every startup may run them. header_identifier is the sole
// uniqueness key, created_at is written once, updated_at moves on every
// upsert.
const (
	createSchemaStmt = `CREATE SCHEMA IF NOT EXISTS %s`

	createTableStmt = `CREATE TABLE IF NOT EXISTS %s.%s (
	id SERIAL PRIMARY KEY,
	header_datestamp TIMESTAMP,
	header_identifier VARCHAR(255) UNIQUE NOT NULL,
	header_setspecs JSONB,
	metadata_creator JSONB,
	metadata_date JSONB,
	metadata_description TEXT,
	metadata_identifier JSONB,
	metadata_subject JSONB,
	metadata_title JSONB,
	metadata_type VARCHAR(100),
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`
)

// createIndexStmts covers the two hot read paths, datestamp range scans and
// set membership tests, plus the audit timestamps.
var createIndexStmts = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS %[2]s_header_identifier_idx ON %[1]s.%[2]s (header_identifier)`,
	`CREATE INDEX IF NOT EXISTS %[2]s_header_datestamp_idx ON %[1]s.%[2]s (header_datestamp)`,
	`CREATE INDEX IF NOT EXISTS %[2]s_header_setspecs_idx ON %[1]s.%[2]s USING GIN (header_setspecs)`,
	`CREATE INDEX IF NOT EXISTS %[2]s_header_datestamp_setspecs_idx ON %[1]s.%[2]s (header_datestamp, header_setspecs)`,
	`CREATE INDEX IF NOT EXISTS %[2]s_metadata_subject_idx ON %[1]s.%[2]s USING GIN (metadata_subject)`,
	`CREATE INDEX IF NOT EXISTS %[2]s_created_at_idx ON %[1]s.%[2]s (created_at)`,
	`CREATE INDEX IF NOT EXISTS %[2]s_updated_at_idx ON %[1]s.%[2]s (updated_at)`,
}

// EnsureSchema creates the schema, table and indexes when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(createSchemaStmt, s.schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", s.schema, err)
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(createTableStmt, s.schema, s.table)); err != nil {
		return fmt.Errorf("create table %s.%s: %w", s.schema, s.table, err)
	}
	for _, stmt := range createIndexStmts {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf(stmt, s.schema, s.table)); err != nil {
			return fmt.Errorf("create index on %s.%s: %w", s.schema, s.table, err)
		}
	}
	s.log.Info("schema ready", "schema", s.schema, "table", s.table)
	return nil
}
