// Package harvest orchestrates the two operational workflows: the
// recent-window harvest and the gap backfill. One logical worker, strictly
// sequential; the endpoint allows a single request in flight, so there is no
// fan-out across topics or dates.
package harvest

import (
	"context"
	"log/slog"
	"time"

	"arhida/internal/config"
	"arhida/internal/dates"
	"arhida/internal/oai"
	"arhida/internal/store"
)

// Lister is the harvesting client surface the engine drives.
type Lister interface {
	ListRecords(ctx context.Context, set string, from, until time.Time) ([]oai.Record, error)
}

// Upserter persists a batch and reports per-record outcomes.
type Upserter interface {
	Upsert(ctx context.Context, records []oai.Record) (store.UpsertStats, error)
}

// CoverageSource reports the dates of a range without stored coverage.
type CoverageSource interface {
	MissingDates(ctx context.Context, topic string, from, until time.Time) ([]time.Time, error)
}

// Stats accumulate over one workflow run.
type Stats struct {
	SuccessfulTopics int
	FailedTopics     int
	TotalRecords     int
}

func (s *Stats) merge(o Stats) {
	s.SuccessfulTopics += o.SuccessfulTopics
	s.FailedTopics += o.FailedTopics
	s.TotalRecords += o.TotalRecords
}

// Engine drives harvest client, writer and gap detection. A topic or date
// failing is accounted and logged, never fatal; the engine only returns an
// error when the run is cancelled.
type Engine struct {
	client   Lister
	writer   Upserter
	coverage CoverageSource

	// delay paces between topics and between backfill dates, a protocol
	// requirement between sets on top of the per-request limiter.
	delay         time.Duration
	chunkSize     int
	chunkPause    time.Duration
	backfillStart time.Time

	log *slog.Logger
}

func New(client Lister, writer Upserter, coverage CoverageSource, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		client:        client,
		writer:        writer,
		coverage:      coverage,
		delay:         cfg.RateLimitDelay,
		chunkSize:     cfg.ChunkSize,
		chunkPause:    cfg.ChunkPause,
		backfillStart: cfg.BackfillStart,
		log:           logger,
	}
}

// Recent harvests the window [today-2d, today-1d] for every topic in order.
// The source publishes a day with delay, so the most recent 24 hours are
// deliberately left out.
func (e *Engine) Recent(ctx context.Context, topics []string) (Stats, error) {
	from := dates.Today().AddDate(0, 0, -2)
	until := dates.Today().AddDate(0, 0, -1)
	e.log.Info("recent harvest",
		"from", from.Format(dates.Layout), "until", until.Format(dates.Layout),
		"topics", len(topics))

	var stats Stats
	for i, topic := range topics {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		e.log.Info("processing set", "set", topic, "n", i+1, "of", len(topics))
		n, err := e.harvestWindow(ctx, topic, from, until)
		switch {
		case err != nil && ctx.Err() != nil:
			return stats, ctx.Err()
		case err != nil:
			stats.FailedTopics++
			e.log.Error("set failed", "set", topic, "error", err)
		default:
			stats.SuccessfulTopics++
			stats.TotalRecords += n
		}
		if i < len(topics)-1 {
			if err := pause(ctx, e.delay); err != nil {
				return stats, err
			}
		}
	}
	e.log.Info("recent harvest completed",
		"successful", stats.SuccessfulTopics, "failed", stats.FailedTopics,
		"records", stats.TotalRecords)
	return stats, nil
}

// Backfill detects and re-harvests coverage gaps per topic, one single-day
// call per missing date. Dates are walked in fixed-size chunks purely for
// pacing and progress granularity; a chunk boundary inserts an extra pause
// on top of the per-date delay.
func (e *Engine) Backfill(ctx context.Context, topics []string, start, end time.Time) (Stats, error) {
	if start.IsZero() {
		start = e.backfillStart
	}
	if end.IsZero() {
		end = dates.Today()
	}
	e.log.Info("backfill",
		"from", start.Format(dates.Layout), "until", end.Format(dates.Layout),
		"topics", len(topics))

	var stats Stats
	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		topicStats, err := e.backfillTopic(ctx, topic, start, end)
		stats.merge(topicStats)
		if err != nil {
			return stats, err
		}
	}
	e.log.Info("backfill completed",
		"successful", stats.SuccessfulTopics, "failed", stats.FailedTopics,
		"records", stats.TotalRecords)
	return stats, nil
}

func (e *Engine) backfillTopic(ctx context.Context, topic string, start, end time.Time) (Stats, error) {
	var stats Stats
	missing, err := e.coverage.MissingDates(ctx, topic, start, end)
	if err != nil {
		stats.FailedTopics++
		e.log.Error("gap detection failed", "set", topic, "error", err)
		return stats, nil
	}
	if len(missing) == 0 {
		stats.SuccessfulTopics++
		e.log.Info("no missing dates", "set", topic)
		return stats, nil
	}
	e.log.Info("missing dates found", "set", topic, "count", len(missing))

	failures := 0
	for lo := 0; lo < len(missing); lo += e.chunkSize {
		hi := min(lo+e.chunkSize, len(missing))
		for _, day := range missing[lo:hi] {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			n, err := e.harvestWindow(ctx, topic, day, day)
			switch {
			case err != nil && ctx.Err() != nil:
				return stats, ctx.Err()
			case err != nil:
				failures++
				e.log.Error("date failed",
					"set", topic, "date", day.Format(dates.Layout), "error", err)
			default:
				stats.TotalRecords += n
			}
			if err := pause(ctx, e.delay); err != nil {
				return stats, err
			}
		}
		if hi < len(missing) {
			if err := pause(ctx, e.chunkPause); err != nil {
				return stats, err
			}
		}
	}
	if failures == 0 {
		stats.SuccessfulTopics++
	} else {
		stats.FailedTopics++
	}
	return stats, nil
}

// harvestWindow runs one list-then-ingest unit of work and returns the
// number of rows stored.
func (e *Engine) harvestWindow(ctx context.Context, topic string, from, until time.Time) (int, error) {
	records, err := e.client.ListRecords(ctx, topic, from, until)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		e.log.Info("no records", "set", topic,
			"from", from.Format(dates.Layout), "until", until.Format(dates.Layout))
		return 0, nil
	}
	res, err := e.writer.Upsert(ctx, records)
	if err != nil {
		return res.Stored(), err
	}
	e.log.Info("stored", "set", topic,
		"inserted", res.Inserted, "updated", res.Updated, "skipped", res.Skipped)
	return res.Stored(), nil
}

// pause is a cancellable inter-unit wait.
func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
