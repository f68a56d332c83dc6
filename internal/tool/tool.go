// Package tool models external command-line tool invocations as typed tasks
// and runs them with logging, metrics, per-invocation timeouts, and bounded
// retries. The pipeline's own logic never inspects tool internals; a task
// either succeeds and leaves its expected outputs behind, or the run fails.
package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/polarops/icenet-pipeline/internal/observability"
)

// Task is one external tool invocation.
type Task struct {
	Tool string   // executable name, also the metrics label
	Args []string // arguments, excluding the executable
	Dir  string   // working directory; empty inherits the process cwd

	// Retryable marks a task safe to re-invoke on failure (idempotent
	// downloads, mostly). Non-retryable tasks keep the pipeline's fail-fast
	// discipline and get exactly one attempt.
	Retryable bool

	// Outputs lists glob patterns that must each match at least one file
	// after a successful run. Empty patterns list skips validation.
	Outputs []string
}

// String renders the task as the shell command it executes.
func (t Task) String() string {
	return t.Tool + " " + strings.Join(t.Args, " ")
}

// Runner executes tasks. Implemented by ExecRunner in production and by
// recording fakes in tests.
type Runner interface {
	Run(ctx context.Context, task Task) error

	// Capture runs the task and returns its trimmed stdout, for probe tools
	// whose result is a value rather than a file.
	Capture(ctx context.Context, task Task) (string, error)
}

// ExecRunner runs tasks as subprocesses.
type ExecRunner struct {
	logger  *slog.Logger
	metrics *observability.Metrics

	// Sink receives the combined stdout/stderr of every invocation,
	// typically a per-forecast log file. Nil discards output.
	Sink io.Writer

	// Timeout bounds each attempt; 0 disables.
	Timeout time.Duration

	// Retries is the number of extra attempts granted to retryable tasks.
	Retries int

	// RetryBackoff seeds the exponential backoff between attempts.
	// Zero means the 5s default.
	RetryBackoff time.Duration
}

// NewExecRunner creates a subprocess runner.
func NewExecRunner(logger *slog.Logger, metrics *observability.Metrics) *ExecRunner {
	return &ExecRunner{logger: logger, metrics: metrics}
}

// Run executes the task, retrying retryable tasks with exponential backoff,
// and validates expected outputs on success.
func (r *ExecRunner) Run(ctx context.Context, task Task) error {
	return r.run(ctx, task, r.Sink)
}

// Capture executes the task and returns its trimmed stdout. Stderr still
// goes to the sink.
func (r *ExecRunner) Capture(ctx context.Context, task Task) (string, error) {
	var buf bytes.Buffer
	if err := r.run(ctx, task, &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func (r *ExecRunner) run(ctx context.Context, task Task, stdout io.Writer) error {
	attempts := 1
	if task.Retryable {
		attempts += r.Retries
	}

	// Backoff between attempts: start at 5s, double each retry, cap at 1m.
	backoff := r.RetryBackoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	maxBackoff := time.Minute

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			r.metrics.ToolRetries.Inc()
			r.logger.Warn("retrying tool", "tool", task.Tool, "attempt", attempt, "backoff", backoff)
			if !sleepWithContext(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}

		if err = r.runOnce(ctx, task, stdout); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (r *ExecRunner) runOnce(ctx context.Context, task Task, stdout io.Writer) error {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, task.Tool, task.Args...)
	cmd.Dir = task.Dir
	cmd.Stdout = stdout
	cmd.Stderr = r.Sink

	r.logger.Info("running tool", "cmd", task.String())
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	r.metrics.ToolDuration.WithLabelValues(task.Tool).Observe(elapsed.Seconds())

	if err != nil {
		r.metrics.ToolRuns.WithLabelValues(task.Tool, "error").Inc()
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out after %s", task.Tool, r.Timeout)
		}
		return fmt.Errorf("%s: %w", task.Tool, err)
	}

	if err := checkOutputs(task); err != nil {
		r.metrics.ToolRuns.WithLabelValues(task.Tool, "error").Inc()
		return err
	}

	r.metrics.ToolRuns.WithLabelValues(task.Tool, "success").Inc()
	r.logger.Debug("tool finished", "tool", task.Tool, "elapsed", elapsed)
	return nil
}

// checkOutputs verifies every expected output pattern matches something.
func checkOutputs(task Task) error {
	for _, pattern := range task.Outputs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("%s: bad output pattern %q: %w", task.Tool, pattern, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("%s succeeded but produced no files matching %q", task.Tool, pattern)
		}
	}
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
