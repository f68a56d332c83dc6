// Package runner drives the daily forecast cycle: per hemisphere it
// refreshes observational inputs, runs model inference for the latest
// observed date, and hands the resulting forecast to the asset producer.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/polarops/icenet-pipeline/internal/forecast"
	"github.com/polarops/icenet-pipeline/internal/layout"
	"github.com/polarops/icenet-pipeline/internal/observability"
	"github.com/polarops/icenet-pipeline/internal/producer"
	"github.com/polarops/icenet-pipeline/internal/tool"
)

// AssetProducer runs the per-date artifact workflow for a forecast.
// Implemented by producer.Producer.
type AssetProducer interface {
	Produce(ctx context.Context, id forecast.ID, opts producer.Options) error
}

// Runner orchestrates one daily cycle across both hemispheres.
type Runner struct {
	layout   layout.Layout
	tools    tool.Runner
	producer AssetProducer
	logger   *slog.Logger
	metrics  *observability.Metrics

	// Network and Members parameterize the ensemble prediction step.
	Network string
	Members int
}

// New creates a Runner.
func New(l layout.Layout, tools tool.Runner, p AssetProducer, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		layout:   l,
		tools:    tools,
		producer: p,
		logger:   logger,
		metrics:  metrics,
	}
}

// hemisphereOrder is the fixed processing order of a daily cycle.
var hemisphereOrder = [2]forecast.Hemisphere{forecast.South, forecast.North}

// Run executes the daily cycle. The hemispheres are independent units of
// work: a failure in one is logged and counted but does not stop the other.
// The returned error is non-nil if any hemisphere failed.
func (r *Runner) Run(ctx context.Context, opts producer.Options) error {
	var failed []string
	for _, h := range hemisphereOrder {
		if err := r.runHemisphere(ctx, h, opts); err != nil {
			r.logger.Error("hemisphere cycle failed", "hemisphere", h, "error", err)
			r.metrics.RunFailures.Inc()
			failed = append(failed, string(h))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("daily cycle failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

func (r *Runner) runHemisphere(ctx context.Context, h forecast.Hemisphere, opts producer.Options) error {
	logger := r.logger.With("hemisphere", h)
	start, end := forecast.YearToDate()
	logger.Info("refreshing observational inputs",
		"from", start.Format(forecast.DateFormat), "to", end.Format(forecast.DateFormat))

	if err := r.tools.Run(ctx, tool.DataERA5(h, start, end)); err != nil {
		return fmt.Errorf("refresh reanalysis: %w", err)
	}
	if err := r.tools.Run(ctx, tool.DataOSISAF(h, start, end)); err != nil {
		return fmt.Errorf("refresh sea-ice concentration: %w", err)
	}

	initDate, err := r.latestObsDate(ctx, h)
	if err != nil {
		return fmt.Errorf("determine init date: %w", err)
	}
	logger.Info("forecast init date", "date", initDate.Format(forecast.DateFormat))

	id, err := forecast.ParseID(fmt.Sprintf("fc.%s_%s", initDate.Format(forecast.DateFormat), h))
	if err != nil {
		return err
	}

	if err := r.writeManifest(id, initDate); err != nil {
		return err
	}

	if err := r.tools.Run(ctx, tool.PredictEnsemble(r.Network, id, initDate, r.Members)); err != nil {
		return fmt.Errorf("run prediction: %w", err)
	}

	return r.producer.Produce(ctx, id, opts)
}

// latestObsDate probes the hemisphere's current-year observational record
// for its most recent date, which becomes the forecast init date.
func (r *Runner) latestObsDate(ctx context.Context, h forecast.Hemisphere) (time.Time, error) {
	obsFile := r.layout.ObsFile(h, forecast.CurrentYear())
	out, err := r.tools.Capture(ctx, tool.LatestDate(obsFile))
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.ParseInLocation(forecast.DateFormat, out, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("probe output %q is not a date: %w", out, err)
	}
	return d, nil
}

// writeManifest records the single init date as the forecast's date list.
func (r *Runner) writeManifest(id forecast.ID, date time.Time) error {
	path := r.layout.ManifestFile(id)
	content := date.Format(forecast.DateFormat) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o664); err != nil {
		return fmt.Errorf("write date manifest: %w", err)
	}
	return nil
}
