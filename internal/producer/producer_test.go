package producer_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/polarops/icenet-pipeline/internal/events"
	"github.com/polarops/icenet-pipeline/internal/forecast"
	"github.com/polarops/icenet-pipeline/internal/layout"
	"github.com/polarops/icenet-pipeline/internal/observability"
	"github.com/polarops/icenet-pipeline/internal/producer"
	"github.com/polarops/icenet-pipeline/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+), which is unavailable on the
// pinned Go 1.21 toolchain.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

// --- fakes ---

type fakeRunner struct {
	ran      []tool.Task
	captured []tool.Task

	failTool   string // tool name whose Run fails
	captureOut string
	captureErr error
}

func (f *fakeRunner) Run(_ context.Context, task tool.Task) error {
	f.ran = append(f.ran, task)
	if f.failTool != "" && task.Tool == f.failTool {
		return errors.New(task.Tool + " exploded")
	}
	return nil
}

func (f *fakeRunner) Capture(_ context.Context, task tool.Task) (string, error) {
	f.captured = append(f.captured, task)
	return f.captureOut, f.captureErr
}

func (f *fakeRunner) toolNames() []string {
	names := make([]string, len(f.ran))
	for i, t := range f.ran {
		names[i] = t.Tool
	}
	return names
}

func (f *fakeRunner) countTool(name string) int {
	n := 0
	for _, t := range f.ran {
		if t.Tool == name {
			n++
		}
	}
	return n
}

type recordingPublisher struct {
	published []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.published = append(r.published, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

// --- harness ---

type harness struct {
	producer *producer.Producer
	runner   *fakeRunner
	events   *recordingPublisher
	layout   layout.Layout
	id       forecast.ID
}

func newHarness(t *testing.T, idName string, manifestDates ...string) *harness {
	t.Helper()
	root := t.TempDir()
	chdir(t, root)

	l := layout.Layout{
		ResultsDir: "results",
		DataDir:    "data",
		LogDir:     "log",
		DocsDir:    "docs",
	}

	id, err := forecast.ParseID(idName)
	require.NoError(t, err)

	manifest := ""
	for _, d := range manifestDates {
		manifest += d + "\n"
	}
	require.NoError(t, os.WriteFile(l.ManifestFile(id), []byte(manifest), 0o644))

	runner := &fakeRunner{captureOut: "2024-06-30"}
	pub := &recordingPublisher{}
	return &harness{
		producer: producer.New(l, runner, slog.Default(), observability.NewMetricsForTesting(), pub),
		runner:   runner,
		events:   pub,
		layout:   l,
		id:       id,
	}
}

// --- tests ---

func TestProduce_HappyPathStepOrder(t *testing.T) {
	h := newHarness(t, "fc.2024-05-21_north", "2024-05-21")

	err := h.producer.Produce(context.Background(), h.id, producer.Options{Clip: true})
	require.NoError(t, err)

	want := []string{
		"ncks",
		"icenet_output_geotiff",
		"icenet_plot_forecast", // mean movie
		"icenet_plot_forecast", // mean stills
		"icenet_plot_forecast", // stddev movie
		"icenet_plot_forecast", // stddev stills
		"icenet_plot_bin_accuracy",
		"icenet_plot_bin_accuracy",
		"icenet_plot_bin_accuracy",
		"icenet_plot_bin_accuracy",
		"icenet_plot_metrics",
		"icenet_plot_sic_error",
		"icenet_plot_sie_error",
	}
	assert.Equal(t, want, h.runner.toolNames())

	require.Len(t, h.runner.captured, 1)
	assert.Equal(t, "icenet_latest_date", h.runner.captured[0].Tool)

	assert.NoError(t, h.producer.CheckReadiness(context.Background()))
}

func TestProduce_ThresholdsAscending(t *testing.T) {
	h := newHarness(t, "fc.2024-05-21_north", "2024-05-21")

	err := h.producer.Produce(context.Background(), h.id, producer.Options{})
	require.NoError(t, err)

	var thresholds []string
	for _, task := range h.runner.ran {
		if task.Tool != "icenet_plot_bin_accuracy" {
			continue
		}
		for i, a := range task.Args {
			if a == "-t" {
				thresholds = append(thresholds, task.Args[i+1])
			}
		}
	}
	assert.Equal(t, []string{"0.15", "0.5", "0.8", "0.9"}, thresholds)
}

func TestProduce_GateFailSkipsMetrics(t *testing.T) {
	h := newHarness(t, "fc.2024-05-21_north", "2024-05-21")
	h.runner.captureOut = "2024-05-20" // observational record behind forecast

	err := h.producer.Produce(context.Background(), h.id, producer.Options{})
	require.NoError(t, err, "a gated date is not an error")

	assert.Zero(t, h.runner.countTool("icenet_plot_bin_accuracy"))
	assert.Zero(t, h.runner.countTool("icenet_plot_metrics"))
	assert.Equal(t, 1, h.runner.countTool("icenet_output_geotiff"), "non-metric artifacts still produced")
}

func TestProduce_GateBoundaryNotStrictlyExceeded(t *testing.T) {
	h := newHarness(t, "fc.2024-05-21_north", "2024-05-21")
	h.runner.captureOut = "2024-05-22" // exactly forecast+1day, not strictly past

	err := h.producer.Produce(context.Background(), h.id, producer.Options{})
	require.NoError(t, err)
	assert.Zero(t, h.runner.countTool("icenet_plot_bin_accuracy"))
}

func TestProduce_GeoBoundsDisableMetrics(t *testing.T) {
	h := newHarness(t, "fc.2024-05-21_north", "2024-05-21")
	region, err := forecast.ParseRegion("l-100,55,-70,75")
	require.NoError(t, err)

	err = h.producer.Produce(context.Background(), h.id, producer.Options{Region: region, Clip: true})
	require.NoError(t, err)

	assert.Empty(t, h.runner.captured, "geographic bounds skip even the observational probe")
	assert.Zero(t, h.runner.countTool("icenet_plot_bin_accuracy"))
	assert.Zero(t, h.runner.countTool("icenet_plot_sie_error"))
}

func TestProduce_ProbeFailureDisablesMetricsGracefully(t *testing.T) {
	h := newHarness(t, "fc.2024-05-21_north", "2024-05-21")
	h.runner.captureErr = errors.New("no such file")

	err := h.producer.Produce(context.Background(), h.id, producer.Options{})
	require.NoError(t, err, "missing observational data is a recognized condition")
	assert.Zero(t, h.runner.countTool("icenet_plot_bin_accuracy"))
}

func TestProduce_FailFastStopsRemainingDates(t *testing.T) {
	h := newHarness(t, "fc.2024-05-21_north", "2024-05-21", "2024-05-22", "2024-05-23")
	h.runner.failTool = "icenet_plot_forecast"

	err := h.producer.Produce(context.Background(), h.id, producer.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024-05-21")

	assert.Equal(t, 1, h.runner.countTool("ncks"), "no date after the failing one may start")
}

func TestProduce_RerunReplacesOutputTree(t *testing.T) {
	h := newHarness(t, "fc.2024-05-21_north", "2024-05-21")

	stale := h.layout.DateDir(h.id, mustDay(t, "2024-01-01"))
	require.NoError(t, os.MkdirAll(stale, 0o775))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "stale.tiff"), []byte("x"), 0o644))

	err := h.producer.Produce(context.Background(), h.id, producer.Options{})
	require.NoError(t, err)

	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr), "stale files must not survive a rerun")
}

func TestProduce_ResumeSkipsCompletedDates(t *testing.T) {
	h := newHarness(t, "fc.2024-05-21_north", "2024-05-21", "2024-05-22")

	require.NoError(t, h.producer.Produce(context.Background(), h.id, producer.Options{}))
	firstRun := len(h.runner.ran)

	h.runner.ran = nil
	err := h.producer.Produce(context.Background(), h.id, producer.Options{Resume: true})
	require.NoError(t, err)

	assert.NotZero(t, firstRun)
	assert.Empty(t, h.runner.ran, "resumed run re-invokes no tools for complete dates")
}

func TestProduce_EmitsLifecycleEvents(t *testing.T) {
	h := newHarness(t, "fc.2024-05-21_south", "2024-05-21")

	require.NoError(t, h.producer.Produce(context.Background(), h.id, producer.Options{}))

	var statuses []string
	for _, e := range h.events.published {
		if e.Step == "" && e.Date == "" {
			statuses = append(statuses, e.Status)
		}
	}
	assert.Equal(t, []string{events.StatusStarted, events.StatusCompleted}, statuses)
}

func TestProduce_FailureEventCarriesDetail(t *testing.T) {
	h := newHarness(t, "fc.2024-05-21_north", "2024-05-21")
	h.runner.failTool = "ncks"

	require.Error(t, h.producer.Produce(context.Background(), h.id, producer.Options{}))

	last := h.events.published[len(h.events.published)-1]
	assert.Equal(t, events.StatusFailed, last.Status)
	assert.Contains(t, last.Detail, "ncks")
}

func TestProduce_MissingManifest(t *testing.T) {
	root := t.TempDir()
	chdir(t, root)
	l := layout.Layout{ResultsDir: "results", DataDir: "data", LogDir: "log", DocsDir: "docs"}
	id, err := forecast.ParseID("fc.2024-05-21_north")
	require.NoError(t, err)

	p := producer.New(l, &fakeRunner{}, slog.Default(), observability.NewMetricsForTesting(), nil)
	assert.Error(t, p.Produce(context.Background(), id, producer.Options{}))
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(forecast.DateFormat, s, time.UTC)
	require.NoError(t, err)
	return d
}
