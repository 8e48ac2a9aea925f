package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
	"github.com/couchcryptid/seisdb-acquire/internal/observability"
)

// AvailabilitySummary counts the outcome of an availability run.
type AvailabilitySummary struct {
	Targets int
	Failed  int
}

// AvailabilityRunner prints the data availability extent of station targets.
type AvailabilityRunner struct {
	source          ExtentSource
	availabilityURL string
	out             io.Writer
	archive         Archive // optional; raw responses are kept when set
	logger          *slog.Logger
	metrics         *observability.Metrics
}

// NewAvailabilityRunner creates a runner printing summaries to out.
// archive may be nil.
func NewAvailabilityRunner(source ExtentSource, availabilityURL string, out io.Writer, archive Archive, logger *slog.Logger, metrics *observability.Metrics) *AvailabilityRunner {
	return &AvailabilityRunner{
		source:          source,
		availabilityURL: availabilityURL,
		out:             out,
		archive:         archive,
		logger:          logger,
		metrics:         metrics,
	}
}

// Run queries every target in order. Per-target failures are logged and
// counted; only cancellation stops the loop early.
func (r *AvailabilityRunner) Run(ctx context.Context, targets []domain.StationTarget) (AvailabilitySummary, error) {
	var s AvailabilitySummary
	r.metrics.RunActive.Set(1)
	defer r.metrics.RunActive.Set(0)

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		s.Targets++
		r.metrics.TargetsProcessed.Inc()
		if err := r.runTarget(ctx, t); err != nil {
			if ctx.Err() != nil {
				return s, ctx.Err()
			}
			s.Failed++
			r.metrics.ItemFailures.WithLabelValues(stageTarget).Inc()
			r.logger.Warn("availability query failed, skipping target",
				"network", t.Network, "station", t.Station, "error", err)
		}
	}
	r.logger.Info("availability run complete", "targets", s.Targets, "failed", s.Failed)
	return s, nil
}

func (r *AvailabilityRunner) runTarget(ctx context.Context, t domain.StationTarget) error {
	records, raw, err := r.source.Extent(ctx, r.availabilityURL, t)
	if err != nil {
		return err
	}
	extent, err := domain.SummarizeExtent(records)
	if err != nil {
		return err
	}

	if r.archive != nil {
		rel := domain.AvailabilityPath(t)
		if err := r.archive.Write(rel, raw); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
		r.metrics.BytesWritten.Add(float64(len(raw)))
	}
	return printExtent(r.out, t, extent)
}

func printExtent(w io.Writer, t domain.StationTarget, extent domain.TimeWindow) error {
	_, err := fmt.Fprintf(w, "Data availability:\n  network: %s\n  station: %s\n  Start time: %s\n  End time: %s\n",
		t.Network, t.Station, extent.Start.Format(time.DateOnly), extent.End.Format(time.DateOnly))
	return err
}
