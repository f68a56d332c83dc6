package tool

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/polarops/icenet-pipeline/internal/forecast"
)

// Constructors for the IceNet collaborator tools. Each function captures the
// fixed flag vocabulary of one external executable; the orchestrator composes
// them into per-date workflows without knowing anything else about the tools.

// PlotOpts carries the flags shared by every plotting and metrics tool.
type PlotOpts struct {
	Region forecast.Region // nil means whole hemisphere
	Clip   bool            // pass the region to the tool; false keeps full extent
	CRS    string          // projection override, empty keeps the tool default
}

func (o PlotOpts) flags() []string {
	var args []string
	if o.Region != nil && o.Clip {
		args = append(args, "-r", o.Region.Arg())
	}
	if o.CRS != "" {
		args = append(args, "-c", o.CRS)
	}
	return args
}

func leadRange(maxLead int) string {
	return fmt.Sprintf("1..%d", maxLead)
}

// ExtractDate slices a single forecast date out of the full forecast file
// into an isolated per-date netCDF file.
func ExtractDate(forecastFile string, date time.Time, outFile string) Task {
	d := date.Format(forecast.DateFormat)
	return Task{
		Tool:    "ncks",
		Args:    []string{"-d", "time," + d + "," + d, forecastFile, outFile},
		Outputs: []string{outFile},
	}
}

// Geotiffs renders per-lead-time geotiff rasters into the date directory.
func Geotiffs(outDir string, id forecast.ID, date time.Time, maxLead int, opts PlotOpts) Task {
	args := append([]string{"-o", outDir}, opts.flags()...)
	args = append(args, id.Name, date.Format(forecast.DateFormat), leadRange(maxLead))
	return Task{
		Tool:    "icenet_output_geotiff",
		Args:    args,
		Outputs: []string{filepath.Join(outDir, "*.tiff")},
	}
}

// ForecastMovie renders the ensemble-mean (or, with stddev, the ensemble
// standard deviation) forecast as a video.
func ForecastMovie(outDir string, id forecast.ID, dateFile string, date time.Time, maxLead int, stddev bool, opts PlotOpts) Task {
	return plotForecast(outDir, id, dateFile, date, maxLead, "mp4", stddev, opts)
}

// ForecastStills renders the same range as individual images, used for
// manual compositing with coastline overlays.
func ForecastStills(outDir string, id forecast.ID, dateFile string, date time.Time, maxLead int, stddev bool, opts PlotOpts) Task {
	return plotForecast(outDir, id, dateFile, date, maxLead, "png", stddev, opts)
}

func plotForecast(outDir string, id forecast.ID, dateFile string, date time.Time, maxLead int, format string, stddev bool, opts PlotOpts) Task {
	args := opts.flags()
	if stddev {
		args = append(args, "-s")
	}
	args = append(args, "-l", leadRange(maxLead), "-f", format, "-o", outDir)
	args = append(args, string(id.Hemisphere), dateFile, date.Format(forecast.DateFormat))
	return Task{
		Tool: "icenet_plot_forecast",
		Args: args,
	}
}

// BinAccuracy plots binary ice/no-ice accuracy at one probability threshold.
func BinAccuracy(outFile string, id forecast.ID, dateFile string, date time.Time, threshold float64, opts PlotOpts) Task {
	args := append([]string{"-b", "-t", fmt.Sprintf("%g", threshold)}, opts.flags()...)
	args = append(args, "-o", outFile, string(id.Hemisphere), dateFile, date.Format(forecast.DateFormat))
	return Task{
		Tool:    "icenet_plot_bin_accuracy",
		Args:    args,
		Outputs: []string{outFile},
	}
}

// MetricPlots renders the aggregate forecast metric plots.
func MetricPlots(outDir string, id forecast.ID, dateFile string, date time.Time, opts PlotOpts) Task {
	args := append(opts.flags(), "-o", outDir, string(id.Hemisphere), dateFile, date.Format(forecast.DateFormat))
	return Task{
		Tool: "icenet_plot_metrics",
		Args: args,
	}
}

// SICErrorMovie renders the sea-ice concentration error against observations.
func SICErrorMovie(outFile string, id forecast.ID, dateFile string, date time.Time, opts PlotOpts) Task {
	args := append(opts.flags(), "-o", outFile, string(id.Hemisphere), dateFile, date.Format(forecast.DateFormat))
	return Task{
		Tool:    "icenet_plot_sic_error",
		Args:    args,
		Outputs: []string{outFile},
	}
}

// SIEErrorStill renders the sea-ice extent error still.
func SIEErrorStill(outFile string, id forecast.ID, dateFile string, date time.Time, opts PlotOpts) Task {
	args := append(opts.flags(), "-o", outFile, string(id.Hemisphere), dateFile, date.Format(forecast.DateFormat))
	return Task{
		Tool:    "icenet_plot_sie_error",
		Args:    args,
		Outputs: []string{outFile},
	}
}

// DataERA5 refreshes the ERA5 reanalysis record for a window. Downloads are
// idempotent, so the task is retryable.
func DataERA5(h forecast.Hemisphere, start, end time.Time) Task {
	return Task{
		Tool:      "icenet_data_era5",
		Args:      []string{string(h), start.Format(forecast.DateFormat), end.Format(forecast.DateFormat)},
		Retryable: true,
	}
}

// DataOSISAF refreshes the OSI SAF sea-ice concentration record for a window.
func DataOSISAF(h forecast.Hemisphere, start, end time.Time) Task {
	return Task{
		Tool:      "icenet_data_osisaf",
		Args:      []string{string(h), start.Format(forecast.DateFormat), end.Format(forecast.DateFormat)},
		Retryable: true,
	}
}

// LatestDate probes the most recent date present in an observational file.
// The tool prints a single YYYY-MM-DD date on stdout.
func LatestDate(obsFile string) Task {
	return Task{
		Tool: "icenet_latest_date",
		Args: []string{obsFile},
	}
}

// PredictEnsemble runs model inference for one init date across the ensemble.
func PredictEnsemble(network string, id forecast.ID, date time.Time, members int) Task {
	return Task{
		Tool: "run_predict_ensemble",
		Args: []string{
			"-f", fmt.Sprintf("%d", members),
			network, id.Name, date.Format(forecast.DateFormat),
		},
	}
}
