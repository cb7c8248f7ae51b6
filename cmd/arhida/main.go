// Command arhida harvests arXiv bibliographic metadata over OAI-PMH into
// PostgreSQL. Two modes: recent (the 48h-24h window) and backfill (re-harvest
// of dates with no stored coverage).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"arhida/internal/config"
	"arhida/internal/dates"
	"arhida/internal/harvest"
	"arhida/internal/oai"
	"arhida/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	mode      string
	startDate string
	endDate   string
	setSpecs  []string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "arhida",
		Short:         "Harvest arXiv metadata over OAI-PMH into PostgreSQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "recent", "harvest mode: recent, backfill or both")
	cmd.Flags().StringVar(&f.startDate, "start-date", "", "start date for backfill (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.endDate, "end-date", "", "end date for backfill (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&f.setSpecs, "set-specs", config.DefaultSetSpecs, "set specifications to process")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

// run wires the process. Only startup failures return an error (non-zero
// exit); per-topic or per-date failures are logged and accounted, and the
// process still exits 0.
func run(f flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if f.mode != "recent" && f.mode != "backfill" && f.mode != "both" {
		return usageError(logger, fmt.Errorf("invalid mode %q", f.mode))
	}
	start, err := parseDateFlag(f.startDate)
	if err != nil {
		return usageError(logger, err)
	}
	end, err := parseDateFlag(f.endDate)
	if err != nil {
		return usageError(logger, err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration failed", "error", err)
		return err
	}

	st, err := store.Open(ctx, cfg, logger.With("component", "store"))
	if err != nil {
		logger.Error("cannot reach store", "error", err)
		return err
	}
	defer st.Close()
	if err := st.EnsureSchema(ctx); err != nil {
		logger.Error("schema setup failed", "error", err)
		return err
	}

	limiter := oai.NewRateLimiter(cfg.RateLimitDelay)
	client := oai.NewClient(oai.Options{
		Endpoint:   cfg.Endpoint,
		MaxRetries: cfg.MaxRetries,
		RetryAfter: cfg.RetryAfter,
		MaxPages:   cfg.MaxPages,
	}, limiter, logger.With("component", "oai"))
	engine := harvest.New(client, st.Writer(), st.Coverage(), cfg, logger.With("component", "harvest"))

	logger.Info("starting", "mode", f.mode, "sets", f.setSpecs)
	started := time.Now()
	var total harvest.Stats

	if f.mode == "recent" || f.mode == "both" {
		stats, err := engine.Recent(ctx, f.setSpecs)
		total = stats
		if interrupted(logger, err) {
			return nil
		}
	}
	if f.mode == "backfill" || f.mode == "both" {
		stats, err := engine.Backfill(ctx, f.setSpecs, start, end)
		total.SuccessfulTopics += stats.SuccessfulTopics
		total.FailedTopics += stats.FailedTopics
		total.TotalRecords += stats.TotalRecords
		if interrupted(logger, err) {
			return nil
		}
	}

	elapsed := time.Since(started)
	perMinute := 0.0
	if elapsed > 0 {
		perMinute = float64(total.TotalRecords) / elapsed.Minutes()
	}
	logger.Info("harvest completed",
		"mode", f.mode,
		"successful_sets", total.SuccessfulTopics,
		"failed_sets", total.FailedTopics,
		"records", total.TotalRecords,
		"elapsed", elapsed.Round(time.Second),
		"records_per_minute", fmt.Sprintf("%.2f", perMinute))
	return nil
}

// interrupted reports whether err is a cancellation. A signal-driven stop is
// a clean exit: nothing in flight is corrupted, writes are per-record.
func interrupted(logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Info("interrupted, stopping")
		return true
	}
	// Engines absorb unit failures; anything else reaching here is a bug,
	// but it must not fail a run that already made progress.
	logger.Error("workflow error", "error", err)
	return false
}

func usageError(logger *slog.Logger, err error) error {
	logger.Error("invalid arguments", "error", err)
	return err
}

func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dates.Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
