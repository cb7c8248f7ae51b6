package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"arhida/internal/oai"
)

// progressEvery is the per-batch logging cadence.
const progressEvery = 100

const upsertStmt = `INSERT INTO %s.%s (
	header_datestamp, header_identifier, header_setspecs,
	metadata_creator, metadata_date, metadata_description,
	metadata_identifier, metadata_subject, metadata_title, metadata_type
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (header_identifier)
DO UPDATE SET
	header_datestamp = EXCLUDED.header_datestamp,
	header_setspecs = EXCLUDED.header_setspecs,
	metadata_creator = EXCLUDED.metadata_creator,
	metadata_date = EXCLUDED.metadata_date,
	metadata_description = EXCLUDED.metadata_description,
	metadata_identifier = EXCLUDED.metadata_identifier,
	metadata_subject = EXCLUDED.metadata_subject,
	metadata_title = EXCLUDED.metadata_title,
	metadata_type = EXCLUDED.metadata_type,
	updated_at = CURRENT_TIMESTAMP
RETURNING (created_at = updated_at)`

// UpsertStats are the per-batch outcomes.
type UpsertStats struct {
	Inserted int
	Updated  int
	Skipped  int
}

// Stored is the number of rows actually written.
func (u UpsertStats) Stored() int { return u.Inserted + u.Updated }

// Writer upserts harvested records, one row per record keyed by the OAI
// identifier. On conflict every mutable field is overwritten, never merged;
// created_at stays put and updated_at refreshes.
type Writer struct {
	db   DBTX
	stmt string
	log  *slog.Logger
}

func NewWriter(db DBTX, schema, table string, logger *slog.Logger) *Writer {
	return &Writer{
		db:   db,
		stmt: fmt.Sprintf(upsertStmt, schema, table),
		log:  logger,
	}
}

// Upsert writes the batch record by record. A single record's failure is
// logged and counted as skipped; the rest of the batch proceeds, so one bad
// record never costs a whole page. Records without an identifier never reach
// the database. The error return is reserved for cancellation; a partial
// batch at that point is well defined because writes are per-record.
func (w *Writer) Upsert(ctx context.Context, records []oai.Record) (UpsertStats, error) {
	var stats UpsertStats
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if rec.Identifier == "" {
			stats.Skipped++
			w.log.Warn("record without identifier skipped")
			continue
		}
		inserted, err := w.upsertOne(ctx, rec)
		if err != nil {
			stats.Skipped++
			w.log.Error("upsert failed", "identifier", rec.Identifier, "error", err)
			continue
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Updated++
		}
		if (i+1)%progressEvery == 0 {
			w.log.Info("batch progress", "records", i+1, "of", len(records))
		}
	}
	return stats, nil
}

// upsertOne writes a single row and reports whether it was a fresh insert,
// read back from created_at = updated_at (equal exactly when both were set
// in the inserting statement).
func (w *Writer) upsertOne(ctx context.Context, rec oai.Record) (bool, error) {
	setSpecs, err := jsonList(rec.SetSpecs)
	if err != nil {
		return false, err
	}
	creators, err := jsonList(rec.Creators)
	if err != nil {
		return false, err
	}
	mdates, err := jsonList(rec.Dates)
	if err != nil {
		return false, err
	}
	identifiers, err := jsonList(rec.AltIdentifiers)
	if err != nil {
		return false, err
	}
	subjects, err := jsonList(rec.Subjects)
	if err != nil {
		return false, err
	}
	titles, err := jsonList(rec.Titles)
	if err != nil {
		return false, err
	}
	var inserted bool
	err = w.db.QueryRow(ctx, w.stmt,
		rec.Datestamp, rec.Identifier, setSpecs,
		creators, mdates, rec.Description,
		identifiers, subjects, titles, rec.Type,
	).Scan(&inserted)
	return inserted, err
}

// jsonList encodes a multi-valued field as a JSONB array, preserving order.
// A missing field is an empty array, not NULL, so containment queries behave
// uniformly.
func jsonList(vals []string) ([]byte, error) {
	if vals == nil {
		vals = []string{}
	}
	return json.Marshal(vals)
}
