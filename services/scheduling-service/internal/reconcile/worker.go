package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/renalworks/pdcare/libs/clock"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/cycle"
)

// Runner performs one sweep pass over everything overdue as of asOf.
type Runner interface {
	Run(ctx context.Context, asOf time.Time) (int, error)
}

// RunMarker persists the run-once-per-clinic-day claim. A claimed run that is
// never finished must become reclaimable, so a failed sweep can retry instead
// of losing the day.
type RunMarker interface {
	Claim(ctx context.Context, runDate time.Time) (bool, error)
	Finish(ctx context.Context, runDate time.Time, processed int) error
}

// Worker triggers the sweep once per clinic day, after the cutoff hour. The
// sweep_runs marker gives mutual exclusion across instances and across
// overlapping triggers.
type Worker struct {
	sweeper    Runner
	marker     RunMarker
	clk        clock.Clock
	loc        *time.Location
	cutoffHour int
	interval   time.Duration
	logger     *slog.Logger
}

type WorkerConfig struct {
	CutoffHour int
	Interval   time.Duration
}

func NewWorker(sweeper Runner, marker RunMarker, clk clock.Clock, loc *time.Location, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Worker{
		sweeper:    sweeper,
		marker:     marker,
		clk:        clk,
		loc:        loc,
		cutoffHour: cfg.CutoffHour,
		interval:   cfg.Interval,
		logger:     logger,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	now := w.clk.Now().In(w.loc)
	if !AfterCutoff(now, w.cutoffHour) {
		return
	}

	runDate := cycle.DayIn(now, w.loc)
	claimed, err := w.marker.Claim(ctx, runDate)
	if err != nil {
		w.logger.Error("sweep claim failed", "err", err)
		return
	}
	if !claimed {
		return
	}

	w.logger.Info("starting missed-visit sweep", "run_date", runDate.Format("2006-01-02"))
	processed, err := w.sweeper.Run(ctx, now)
	if err != nil {
		w.logger.Error("missed-visit sweep failed", "err", err)
		return
	}
	if err := w.marker.Finish(ctx, runDate, processed); err != nil {
		w.logger.Error("sweep finish failed", "err", err)
	}
	w.logger.Info("missed-visit sweep finished", "processed", processed)
}

// AfterCutoff reports whether the clinic day is closed for reconciliation
// purposes. Visits are never declared missed while the day is still open.
func AfterCutoff(now time.Time, cutoffHour int) bool {
	return now.Hour() >= cutoffHour
}
