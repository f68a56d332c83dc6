package tool_test

import (
	"testing"
	"time"

	"github.com/polarops/icenet-pipeline/internal/forecast"
	"github.com/polarops/icenet-pipeline/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testID(t *testing.T) forecast.ID {
	t.Helper()
	id, err := forecast.ParseID("fc.2024-05-21_north")
	require.NoError(t, err)
	return id
}

func testDate(t *testing.T) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(forecast.DateFormat, "2024-05-21", time.UTC)
	require.NoError(t, err)
	return d
}

func TestExtractDate(t *testing.T) {
	task := tool.ExtractDate("results/predict/fc.2024-05-21_north.nc", testDate(t), "out/slice.nc")

	assert.Equal(t, "ncks", task.Tool)
	assert.Equal(t, []string{"-d", "time,2024-05-21,2024-05-21", "results/predict/fc.2024-05-21_north.nc", "out/slice.nc"}, task.Args)
	assert.Equal(t, []string{"out/slice.nc"}, task.Outputs)
	assert.False(t, task.Retryable)
}

func TestGeotiffs_RegionAndCRS(t *testing.T) {
	opts := tool.PlotOpts{
		Region: forecast.PixelBounds{XMin: 70, YMin: 155, XMax: 145, YMax: 240},
		Clip:   true,
		CRS:    "EPSG:6931",
	}
	task := tool.Geotiffs("outdir", testID(t), testDate(t), 93, opts)

	assert.Equal(t, "icenet_output_geotiff", task.Tool)
	assert.Equal(t, []string{
		"-o", "outdir",
		"-r", "70,155,145,240",
		"-c", "EPSG:6931",
		"fc.2024-05-21_north", "2024-05-21", "1..93",
	}, task.Args)
}

func TestGeotiffs_ClipDisabledOmitsRegion(t *testing.T) {
	opts := tool.PlotOpts{
		Region: forecast.PixelBounds{XMin: 70, YMin: 155, XMax: 145, YMax: 240},
		Clip:   false,
	}
	task := tool.Geotiffs("outdir", testID(t), testDate(t), 93, opts)
	assert.NotContains(t, task.Args, "-r")
}

func TestForecastMovie_StddevFlag(t *testing.T) {
	mean := tool.ForecastMovie("outdir", testID(t), "slice.nc", testDate(t), 31, false, tool.PlotOpts{})
	stddev := tool.ForecastMovie("outdir", testID(t), "slice.nc", testDate(t), 31, true, tool.PlotOpts{})

	assert.Equal(t, "icenet_plot_forecast", mean.Tool)
	assert.NotContains(t, mean.Args, "-s")
	assert.Contains(t, stddev.Args, "-s")
	assert.Contains(t, mean.Args, "mp4")
	assert.Contains(t, mean.Args, "1..31")
	assert.Contains(t, mean.Args, "north")
}

func TestForecastStills_PNGFormat(t *testing.T) {
	task := tool.ForecastStills("outdir", testID(t), "slice.nc", testDate(t), 93, false, tool.PlotOpts{})
	assert.Contains(t, task.Args, "png")
	assert.NotContains(t, task.Args, "mp4")
}

func TestBinAccuracy(t *testing.T) {
	task := tool.BinAccuracy("out/acc_0.15.png", testID(t), "slice.nc", testDate(t), 0.15, tool.PlotOpts{})

	assert.Equal(t, "icenet_plot_bin_accuracy", task.Tool)
	assert.Equal(t, "-b", task.Args[0])
	assert.Contains(t, task.Args, "-t")
	assert.Contains(t, task.Args, "0.15")
	assert.Equal(t, []string{"out/acc_0.15.png"}, task.Outputs)
}

func TestDataRefreshTasksAreRetryable(t *testing.T) {
	start := testDate(t).AddDate(0, -4, -20)
	end := testDate(t)

	era5 := tool.DataERA5(forecast.North, start, end)
	osisaf := tool.DataOSISAF(forecast.South, start, end)

	assert.True(t, era5.Retryable)
	assert.True(t, osisaf.Retryable)
	assert.Equal(t, []string{"north", "2024-01-01", "2024-05-21"}, era5.Args)
	assert.Equal(t, []string{"south", "2024-01-01", "2024-05-21"}, osisaf.Args)
}

func TestPredictEnsemble(t *testing.T) {
	task := tool.PredictEnsemble("icenet", testID(t), testDate(t), 10)

	assert.Equal(t, "run_predict_ensemble", task.Tool)
	assert.Equal(t, []string{"-f", "10", "icenet", "fc.2024-05-21_north", "2024-05-21"}, task.Args)
	assert.False(t, task.Retryable)
}

func TestLatestDate(t *testing.T) {
	task := tool.LatestDate("data/osisaf/north/siconca/2024.nc")
	assert.Equal(t, "icenet_latest_date", task.Tool)
	assert.Equal(t, []string{"data/osisaf/north/siconca/2024.nc"}, task.Args)
}
