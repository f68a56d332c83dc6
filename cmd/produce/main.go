// Command produce generates the deliverable assets for one forecast: per-date
// geotiffs, ensemble-mean and standard-deviation movies and stills, and,
// when observational ground truth allows, accuracy and error metric plots.
//
// Usage:
//
//	produce [options] <forecast-identifier> [region]
//
// The identifier must end in _north or _south, e.g. fc.2024-05-21_north.
// The optional region is either pixel bounds "x_min,y_min,x_max,y_max" or
// geographic bounds "l<lon_min>,<lat_min>,<lon_max>,<lat_max>"; geographic
// bounds disable metric computation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	httpadapter "github.com/polarops/icenet-pipeline/internal/adapter/http"
	"github.com/polarops/icenet-pipeline/internal/config"
	"github.com/polarops/icenet-pipeline/internal/events"
	"github.com/polarops/icenet-pipeline/internal/forecast"
	"github.com/polarops/icenet-pipeline/internal/layout"
	"github.com/polarops/icenet-pipeline/internal/observability"
	"github.com/polarops/icenet-pipeline/internal/producer"
	"github.com/polarops/icenet-pipeline/internal/tool"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("produce", flag.ContinueOnError)
	crs := fs.String("c", "", "projection (CRS) override passed to plotting tools")
	maxLead := fs.Int("l", producer.DefaultMaxLeadtime, "maximum lead time in days")
	noClip := fs.Bool("n", false, "do not clip plots to the region")
	verbose := fs.Bool("v", false, "verbose (debug) logging")
	resume := fs.Bool("resume", false, "skip dates already complete instead of wiping prior output")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: produce [options] <forecast-identifier> [region]\n\n")
		fmt.Fprintf(fs.Output(), "Produces all per-date assets for a forecast. The identifier must end\n")
		fmt.Fprintf(fs.Output(), "in _north or _south. Region is pixel bounds \"x_min,y_min,x_max,y_max\"\n")
		fmt.Fprintf(fs.Output(), "or geographic bounds \"l<lon_min>,<lat_min>,<lon_max>,<lat_max>\"\n")
		fmt.Fprintf(fs.Output(), "(geographic bounds disable metrics).\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "missing required forecast identifier")
		fs.Usage()
		return 1
	}

	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	id, err := forecast.ParseID(fs.Arg(0))
	if err != nil {
		slog.Error("bad forecast identifier", "error", err)
		return 1
	}

	opts := producer.Options{
		MaxLeadtime: *maxLead,
		CRS:         *crs,
		Clip:        !*noClip,
		Resume:      *resume,
	}
	if fs.NArg() > 1 {
		opts.Region, err = forecast.ParseRegion(fs.Arg(1))
		if err != nil {
			slog.Error("bad region", "error", err)
			return 1
		}
	}

	lay := layout.Layout{
		ResultsDir: cfg.ResultsDir,
		DataDir:    cfg.DataDir,
		LogDir:     cfg.LogDir,
		DocsDir:    cfg.DocsDir,
	}

	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	}

	// Run output is teed into a per-forecast log file alongside stderr.
	logSink, closeSink, err := openRunLog(lay, id, "produce")
	if err != nil {
		slog.Error("failed to open run log", "error", err)
		return 1
	}
	defer closeSink()

	logger := observability.NewLoggerTo(io.MultiWriter(os.Stderr, logSink), level, cfg.LogFormat)
	metrics := observability.NewMetrics()

	toolRunner := tool.NewExecRunner(logger, metrics)
	toolRunner.Sink = logSink
	toolRunner.Timeout = cfg.ToolTimeout
	toolRunner.Retries = cfg.ToolRetries

	var publisher events.Publisher = events.Nop{}
	if cfg.EventsEnabled() {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Error("event publisher close error", "error", err)
			}
		}()
		publisher = kp
		logger.Info("run event publishing enabled", "topic", cfg.KafkaTopic)
	}

	p := producer.New(lay, toolRunner, logger, metrics, publisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics := startMetricsServer(cfg, p, logger)
	defer shutdownMetrics()

	if err := p.Produce(ctx, id, opts); err != nil {
		logger.Error("forecast production failed", "error", err)
		return 1
	}
	return 0
}

// openRunLog creates the per-forecast log directory and a timestamped log
// file inside it.
func openRunLog(lay layout.Layout, id forecast.ID, cmd string) (io.Writer, func(), error) {
	dir := lay.RunLogDir(id)
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", dir, err)
	}
	name := fmt.Sprintf("%s-%s.log", cmd, time.Now().UTC().Format("20060102T150405"))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// startMetricsServer serves /healthz, /readyz and /metrics while the run is
// active, when METRICS_ADDR is configured. Returns a shutdown func.
func startMetricsServer(cfg *config.Config, ready httpadapter.ReadinessChecker, logger *slog.Logger) func() {
	if cfg.MetricsAddr == "" {
		return func() {}
	}
	srv := httpadapter.NewServer(cfg.MetricsAddr, ready, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
}
