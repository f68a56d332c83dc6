// Command run-forecast executes the daily production cycle: for each
// hemisphere it refreshes ERA5 reanalysis and OSI SAF sea-ice concentration
// data for the year to date, runs ensemble prediction for the most recent
// observed date, and produces the deliverable assets for the resulting
// forecast.
//
// Usage:
//
//	run-forecast [options]
//
// Hemispheres are processed south then north and are independent: a failure
// in one does not stop the other.
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
	"github.com/polarops/icenet-pipeline/internal/layout"
	"github.com/polarops/icenet-pipeline/internal/observability"
	"github.com/polarops/icenet-pipeline/internal/producer"
	"github.com/polarops/icenet-pipeline/internal/runner"
	"github.com/polarops/icenet-pipeline/internal/tool"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("run-forecast", flag.ContinueOnError)
	maxLead := fs.Int("l", producer.DefaultMaxLeadtime, "maximum lead time in days")
	verbose := fs.Bool("v", false, "verbose (debug) logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: run-forecast [options]\n\n")
		fmt.Fprintf(fs.Output(), "Runs the daily forecast cycle for both hemispheres, south then north.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
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

	logSink, closeSink, err := openCycleLog(cfg.LogDir)
	if err != nil {
		slog.Error("failed to open cycle log", "error", err)
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
	r := runner.New(lay, toolRunner, p, logger, metrics)
	r.Network = cfg.PredictNetwork
	r.Members = cfg.EnsembleMembers

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics := startMetricsServer(cfg, p, logger)
	defer shutdownMetrics()

	start := time.Now()
	if err := r.Run(ctx, producer.Options{MaxLeadtime: *maxLead, Clip: true}); err != nil {
		logger.Error("daily cycle finished with failures", "error", err, "elapsed", time.Since(start).Round(time.Second))
		return 1
	}
	logger.Info("daily cycle done", "elapsed", time.Since(start).Round(time.Second))
	return 0
}

// openCycleLog creates a timestamped log file for the whole daily cycle.
func openCycleLog(logDir string) (io.Writer, func(), error) {
	if err := os.MkdirAll(logDir, 0o775); err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", logDir, err)
	}
	name := fmt.Sprintf("run-forecast-%s.log", time.Now().UTC().Format("20060102T150405"))
	f, err := os.Create(filepath.Join(logDir, name))
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// startMetricsServer serves /healthz, /readyz and /metrics while the cycle
// is active, when METRICS_ADDR is configured. Returns a shutdown func.
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
