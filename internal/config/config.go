package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all pipeline settings, populated from environment variables.
// CLI flags (region, lead time, CRS) layer on top per command and are not
// part of this struct.
type Config struct {
	// Filesystem roots. Relative paths are resolved against the working
	// directory the pipeline is launched from.
	ResultsDir string // forecast outputs, default "results"
	DataDir    string // observational inputs, default "data"
	LogDir     string // per-run logs, default "log"
	DocsDir    string // license/readme templates copied into products, default "docs"

	LogLevel  string
	LogFormat string

	// External tool execution.
	ToolTimeout time.Duration // per-invocation ceiling, 0 disables
	ToolRetries int           // extra attempts for steps marked retryable

	// Model inference.
	PredictNetwork  string // network name passed to the ensemble runner
	EnsembleMembers int

	// Optional run-event publishing. Disabled when no brokers are set.
	KafkaBrokers []string
	KafkaTopic   string

	// Optional metrics endpoint served while a run is active. Disabled when
	// empty.
	MetricsAddr string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	toolTimeout, err := parseDuration("TOOL_TIMEOUT", "2h")
	if err != nil {
		return nil, err
	}

	toolRetries, err := parseInt("TOOL_RETRIES", 0)
	if err != nil {
		return nil, err
	}
	if toolRetries < 0 {
		return nil, errors.New("TOOL_RETRIES must not be negative")
	}

	members, err := parseInt("ENSEMBLE_MEMBERS", 10)
	if err != nil {
		return nil, err
	}
	if members < 1 {
		return nil, errors.New("ENSEMBLE_MEMBERS must be at least 1")
	}

	cfg := &Config{
		ResultsDir: envOrDefault("RESULTS_DIR", "results"),
		DataDir:    envOrDefault("DATA_DIR", "data"),
		LogDir:     envOrDefault("LOG_DIR", "log"),
		DocsDir:    envOrDefault("DOCS_DIR", "docs"),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "text"),

		ToolTimeout: toolTimeout,
		ToolRetries: toolRetries,

		PredictNetwork:  envOrDefault("PREDICT_NETWORK", "icenet"),
		EnsembleMembers: members,

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "icenet-pipeline-events"),

		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want json or text", cfg.LogFormat)
	}

	if cfg.ResultsDir == "" || cfg.DataDir == "" || cfg.LogDir == "" {
		return nil, errors.New("RESULTS_DIR, DATA_DIR and LOG_DIR must not be empty")
	}

	return cfg, nil
}

// EventsEnabled reports whether run events should be published to Kafka.
func (c *Config) EventsEnabled() bool { return len(c.KafkaBrokers) > 0 }

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return n, nil
}
