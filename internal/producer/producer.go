// Package producer implements the per-date asset production workflow: for
// every date in a forecast's manifest it extracts a single-date slice of the
// forecast file and renders geotiffs, movies, stills, and (when ground truth
// allows) accuracy and error metric plots.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/polarops/icenet-pipeline/internal/events"
	"github.com/polarops/icenet-pipeline/internal/forecast"
	"github.com/polarops/icenet-pipeline/internal/layout"
	"github.com/polarops/icenet-pipeline/internal/observability"
	"github.com/polarops/icenet-pipeline/internal/tool"
)

// DefaultMaxLeadtime is the forecast horizon produced when no override is
// given, in days.
const DefaultMaxLeadtime = 93

// accuracyThresholds are the fixed sea-ice probability thresholds for binary
// accuracy plots, processed in this ascending order.
var accuracyThresholds = [4]float64{0.15, 0.5, 0.8, 0.9}

// Options are the per-run knobs layered on top of the static configuration.
type Options struct {
	MaxLeadtime int             // lead-time range upper bound, default DefaultMaxLeadtime
	CRS         string          // projection override for plotting tools
	Region      forecast.Region // nil processes the whole hemisphere
	Clip        bool            // pass the region to tools; disabled by -n
	Resume      bool            // skip dates already recorded complete instead of wiping
}

// Producer drives artifact production for one forecast identifier.
type Producer struct {
	layout  layout.Layout
	tools   tool.Runner
	logger  *slog.Logger
	metrics *observability.Metrics
	events  events.Publisher
	ready   atomic.Bool
}

// New creates a Producer. A nil publisher disables run events.
func New(l layout.Layout, tools tool.Runner, logger *slog.Logger, metrics *observability.Metrics, pub events.Publisher) *Producer {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Producer{
		layout:  l,
		tools:   tools,
		logger:  logger,
		metrics: metrics,
		events:  pub,
	}
}

// CheckReadiness returns nil once at least one forecast date has been fully
// produced in the current run.
func (p *Producer) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no forecast date produced yet")
	}
	return nil
}

// Produce runs the whole asset workflow for a forecast. Any external tool
// failure aborts immediately; dates are processed strictly in manifest order
// with no parallelism.
func (p *Producer) Produce(ctx context.Context, id forecast.ID, opts Options) error {
	start := time.Now()
	logger := p.logger.With("forecast", id.Name)
	if opts.MaxLeadtime <= 0 {
		opts.MaxLeadtime = DefaultMaxLeadtime
	}

	p.metrics.RunInProgress.Set(1)
	defer p.metrics.RunInProgress.Set(0)

	err := p.produce(ctx, logger, id, opts)
	if err != nil {
		p.metrics.RunFailures.Inc()
		p.publish(ctx, logger, events.Event{Forecast: id.Name, Status: events.StatusFailed, Detail: err.Error(), Time: time.Now().UTC()})
		return err
	}

	logger.Info("forecast production done", "elapsed", time.Since(start).Round(time.Second))
	p.publish(ctx, logger, events.Event{Forecast: id.Name, Status: events.StatusCompleted, Time: time.Now().UTC()})
	return nil
}

func (p *Producer) produce(ctx context.Context, logger *slog.Logger, id forecast.ID, opts Options) error {
	dates, err := forecast.ReadManifest(p.layout.ManifestFile(id))
	if err != nil {
		return err
	}

	metricsEnabled := true
	if opts.Region != nil && !opts.Region.MetricsSupported() {
		// Warned once here, not per date.
		logger.Warn("geographic bounds selected, metric computation disabled for this run")
		metricsEnabled = false
	}

	cp, err := p.layout.LoadCheckpoint(id)
	if err != nil {
		return err
	}
	if opts.Resume {
		if err := p.layout.Ensure(id); err != nil {
			return err
		}
	} else {
		if err := p.layout.Provision(id); err != nil {
			return err
		}
		if err := cp.Reset(); err != nil {
			return err
		}
	}

	p.publish(ctx, logger, events.Event{Forecast: id.Name, Status: events.StatusStarted, Time: time.Now().UTC()})

	// The observational record is probed once per run; the per-date gate
	// compares each forecast date against it.
	var latestObs time.Time
	if metricsEnabled {
		latestObs, err = p.probeLatestObs(ctx, logger, id.Hemisphere)
		if err != nil {
			// A gap in observational data is a recognized condition, not an
			// error: artifacts are still produced, metrics are skipped.
			logger.Warn("observational record unavailable, metric computation disabled for this run", "error", err)
			metricsEnabled = false
		}
	}

	for _, date := range dates {
		if opts.Resume && cp.Done(date) {
			logger.Info("date already complete, skipping", "date", date.Format(forecast.DateFormat))
			p.metrics.DatesSkipped.Inc()
			p.publish(ctx, logger, events.Event{Forecast: id.Name, Date: date.Format(forecast.DateFormat), Status: events.StatusSkipped, Time: time.Now().UTC()})
			continue
		}
		if err := p.produceDate(ctx, logger, id, date, opts, metricsEnabled, latestObs); err != nil {
			return fmt.Errorf("date %s: %w", date.Format(forecast.DateFormat), err)
		}
		if err := cp.MarkDone(date); err != nil {
			return err
		}
		p.metrics.DatesProcessed.Inc()
		p.ready.Store(true)
	}
	return nil
}

// probeLatestObs asks the probe tool for the most recent date in the
// hemisphere's current-year sea-ice concentration record.
func (p *Producer) probeLatestObs(ctx context.Context, logger *slog.Logger, h forecast.Hemisphere) (time.Time, error) {
	obsFile := p.layout.ObsFile(h, forecast.CurrentYear())
	out, err := p.tools.Capture(ctx, tool.LatestDate(obsFile))
	if err != nil {
		return time.Time{}, err
	}
	latest, err := time.ParseInLocation(forecast.DateFormat, out, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("probe output %q is not a date: %w", out, err)
	}
	logger.Info("observational record probed", "file", obsFile, "latest", out)
	return latest, nil
}

// produceDate runs the fixed step sequence for one forecast date.
func (p *Producer) produceDate(ctx context.Context, logger *slog.Logger, id forecast.ID, date time.Time, opts Options, metricsEnabled bool, latestObs time.Time) error {
	day := date.Format(forecast.DateFormat)
	logger = logger.With("date", day)
	logger.Info("producing assets")

	dir, err := p.layout.EnsureDateDir(id, date)
	if err != nil {
		return err
	}

	dateFile := p.layout.DateFile(id, date)
	plotOpts := tool.PlotOpts{Region: opts.Region, Clip: opts.Clip, CRS: opts.CRS}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"extract", p.taskStep(tool.ExtractDate(p.layout.ForecastFile(id), date, dateFile))},
		{"geotiff", p.taskStep(tool.Geotiffs(dir, id, date, opts.MaxLeadtime, plotOpts))},
		{"movie_mean", p.taskStep(tool.ForecastMovie(dir, id, dateFile, date, opts.MaxLeadtime, false, plotOpts))},
		{"stills_mean", p.taskStep(tool.ForecastStills(dir, id, dateFile, date, opts.MaxLeadtime, false, plotOpts))},
		{"movie_stddev", p.taskStep(tool.ForecastMovie(dir, id, dateFile, date, opts.MaxLeadtime, true, plotOpts))},
		{"stills_stddev", p.taskStep(tool.ForecastStills(dir, id, dateFile, date, opts.MaxLeadtime, true, plotOpts))},
		{"normalize", func(context.Context) error {
			n, err := forecast.NormalizeNames(dir, id, date)
			if err == nil {
				logger.Debug("filenames normalized", "renamed", n)
			}
			return err
		}},
		{"docs", func(context.Context) error { return p.layout.CopyDocs(dir) }},
		{"metrics", func(ctx context.Context) error {
			if !metricsEnabled {
				return nil
			}
			if !forecast.MetricsEligible(latestObs, date) {
				logger.Info("observational record does not extend past forecast date, skipping metrics",
					"latest_obs", latestObs.Format(forecast.DateFormat))
				p.metrics.MetricsGated.Inc()
				return nil
			}
			return p.produceMetrics(ctx, id, date, dir, dateFile, plotOpts)
		}},
	}

	for _, step := range steps {
		stepStart := time.Now()
		if err := step.run(ctx); err != nil {
			p.publish(ctx, logger, events.Event{Forecast: id.Name, Step: step.name, Date: day, Status: events.StatusFailed, Detail: err.Error(), Time: time.Now().UTC()})
			return fmt.Errorf("step %s: %w", step.name, err)
		}
		p.metrics.StepDuration.WithLabelValues(step.name).Observe(time.Since(stepStart).Seconds())
		p.publish(ctx, logger, events.Event{Forecast: id.Name, Step: step.name, Date: day, Status: events.StatusCompleted, Time: time.Now().UTC()})
	}
	return nil
}

// produceMetrics renders accuracy and error plots: the four fixed binary
// accuracy thresholds in ascending order, then the aggregates.
func (p *Producer) produceMetrics(ctx context.Context, id forecast.ID, date time.Time, dir, dateFile string, plotOpts tool.PlotOpts) error {
	for _, threshold := range accuracyThresholds {
		out := filepath.Join(dir, fmt.Sprintf("bin_accuracy_%g.png", threshold))
		if err := p.tools.Run(ctx, tool.BinAccuracy(out, id, dateFile, date, threshold, plotOpts)); err != nil {
			return err
		}
	}
	if err := p.tools.Run(ctx, tool.MetricPlots(dir, id, dateFile, date, plotOpts)); err != nil {
		return err
	}
	if err := p.tools.Run(ctx, tool.SICErrorMovie(filepath.Join(dir, "sic_error.mp4"), id, dateFile, date, plotOpts)); err != nil {
		return err
	}
	return p.tools.Run(ctx, tool.SIEErrorStill(filepath.Join(dir, "sie_error.png"), id, dateFile, date, plotOpts))
}

func (p *Producer) taskStep(task tool.Task) func(context.Context) error {
	return func(ctx context.Context) error {
		return p.tools.Run(ctx, task)
	}
}

// publish delivers a run event; failures are logged and never abort the run.
func (p *Producer) publish(ctx context.Context, logger *slog.Logger, e events.Event) {
	if err := p.events.Publish(ctx, e); err != nil {
		logger.Warn("publish run event failed", "error", err)
	}
}
