package harvest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arhida/internal/config"
	"arhida/internal/dates"
	"arhida/internal/oai"
	"arhida/internal/store"
)

type listCall struct {
	set  string
	from time.Time
	till time.Time
}

// fakeLister returns records per set, or fails the sets in failSets.
type fakeLister struct {
	records  map[string][]oai.Record
	failSets map[string]bool
	calls    []listCall
}

func (f *fakeLister) ListRecords(ctx context.Context, set string, from, until time.Time) ([]oai.Record, error) {
	f.calls = append(f.calls, listCall{set: set, from: from, till: until})
	if f.failSets[set] {
		return nil, &oai.Error{Kind: oai.Exhausted, Message: "retries exhausted"}
	}
	return f.records[set], nil
}

type fakeUpserter struct {
	batches int
	stored  int
	err     error
}

func (f *fakeUpserter) Upsert(ctx context.Context, records []oai.Record) (store.UpsertStats, error) {
	if f.err != nil {
		return store.UpsertStats{}, f.err
	}
	f.batches++
	f.stored += len(records)
	return store.UpsertStats{Inserted: len(records)}, nil
}

type fakeCoverage struct {
	missing map[string][]time.Time
	err     error
}

func (f *fakeCoverage) MissingDates(ctx context.Context, topic string, from, until time.Time) ([]time.Time, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.missing[topic], nil
}

func testConfig() *config.Config {
	return &config.Config{
		RateLimitDelay: time.Millisecond,
		ChunkSize:      2,
		ChunkPause:     time.Millisecond,
		BackfillStart:  mustDate("2007-01-01"),
	}
}

func testEngine(l Lister, u Upserter, c CoverageSource) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(l, u, c, testConfig(), logger)
}

func mustDate(s string) time.Time {
	t, err := time.Parse(dates.Layout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func record(id string) oai.Record {
	return oai.Record{Identifier: id}
}

func TestRecentContinuesPastFailingTopic(t *testing.T) {
	lister := &fakeLister{
		records: map[string][]oai.Record{
			"physics": {record("oai:a:1"), record("oai:a:2")},
			"cs":      {record("oai:a:3")},
		},
		failSets: map[string]bool{"math": true},
	}
	writer := &fakeUpserter{}
	engine := testEngine(lister, writer, &fakeCoverage{})

	stats, err := engine.Recent(context.Background(), []string{"physics", "math", "cs"})
	require.NoError(t, err)
	assert.Equal(t, Stats{SuccessfulTopics: 2, FailedTopics: 1, TotalRecords: 3}, stats)
	assert.Len(t, lister.calls, 3, "a failed topic must not stop the run")
	assert.Equal(t, 2, writer.batches)
}

func TestRecentWindowBounds(t *testing.T) {
	lister := &fakeLister{}
	engine := testEngine(lister, &fakeUpserter{}, &fakeCoverage{})

	_, err := engine.Recent(context.Background(), []string{"physics"})
	require.NoError(t, err)
	require.Len(t, lister.calls, 1)

	today := dates.Today()
	assert.Equal(t, today.AddDate(0, 0, -2), lister.calls[0].from)
	assert.Equal(t, today.AddDate(0, 0, -1), lister.calls[0].till)
}

func TestRecentEmptyWindowIsSuccess(t *testing.T) {
	engine := testEngine(&fakeLister{}, &fakeUpserter{}, &fakeCoverage{})
	stats, err := engine.Recent(context.Background(), []string{"physics"})
	require.NoError(t, err)
	assert.Equal(t, Stats{SuccessfulTopics: 1}, stats)
}

func TestBackfillHarvestsSingleDays(t *testing.T) {
	gaps := []time.Time{
		mustDate("2021-01-02"), mustDate("2021-01-05"), mustDate("2021-01-09"),
	}
	lister := &fakeLister{
		records: map[string][]oai.Record{"physics": {record("oai:a:1")}},
	}
	engine := testEngine(lister, &fakeUpserter{},
		&fakeCoverage{missing: map[string][]time.Time{"physics": gaps}})

	stats, err := engine.Backfill(context.Background(), []string{"physics"},
		mustDate("2021-01-01"), mustDate("2021-01-10"))
	require.NoError(t, err)
	assert.Equal(t, Stats{SuccessfulTopics: 1, TotalRecords: 3}, stats)

	require.Len(t, lister.calls, 3)
	for i, call := range lister.calls {
		assert.Equal(t, gaps[i], call.from, "call %d", i)
		assert.Equal(t, gaps[i], call.till, "call %d: one day per request", i)
	}
}

func TestBackfillNoGapsSkipsTopic(t *testing.T) {
	lister := &fakeLister{}
	engine := testEngine(lister, &fakeUpserter{}, &fakeCoverage{})

	stats, err := engine.Backfill(context.Background(), []string{"physics", "math"},
		mustDate("2021-01-01"), mustDate("2021-01-10"))
	require.NoError(t, err)
	assert.Equal(t, Stats{SuccessfulTopics: 2}, stats)
	assert.Empty(t, lister.calls, "covered topics must not hit the endpoint")
}

func TestBackfillCountsFailedDates(t *testing.T) {
	gaps := map[string][]time.Time{
		"math": {mustDate("2021-01-02"), mustDate("2021-01-03")},
	}
	lister := &fakeLister{failSets: map[string]bool{"math": true}}
	engine := testEngine(lister, &fakeUpserter{}, &fakeCoverage{missing: gaps})

	stats, err := engine.Backfill(context.Background(), []string{"math"},
		mustDate("2021-01-01"), mustDate("2021-01-10"))
	require.NoError(t, err)
	assert.Equal(t, Stats{FailedTopics: 1}, stats)
	assert.Len(t, lister.calls, 2, "every missing date is attempted")
}

func TestBackfillGapDetectionFailureIsNotFatal(t *testing.T) {
	engine := testEngine(&fakeLister{}, &fakeUpserter{},
		&fakeCoverage{err: errors.New("connection refused")})

	stats, err := engine.Backfill(context.Background(), []string{"physics"},
		mustDate("2021-01-01"), mustDate("2021-01-10"))
	require.NoError(t, err)
	assert.Equal(t, Stats{FailedTopics: 1}, stats)
}

func TestBackfillCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lister := &fakeLister{}
	engine := testEngine(lister, &fakeUpserter{},
		&fakeCoverage{missing: map[string][]time.Time{
			"physics": {mustDate("2021-01-02")},
		}})

	_, err := engine.Backfill(ctx, []string{"physics"},
		mustDate("2021-01-01"), mustDate("2021-01-10"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, lister.calls)
}

func TestRecentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lister := &fakeLister{}
	engine := testEngine(lister, &fakeUpserter{}, &fakeCoverage{})

	_, err := engine.Recent(ctx, []string{"physics", "math"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, lister.calls)
}
