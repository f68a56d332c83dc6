// Package layout owns the filesystem contract of the pipeline: where
// forecast inputs live, where per-date products and logs go, and the
// destructive provisioning semantics of a production run.
package layout

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/polarops/icenet-pipeline/internal/forecast"
)

// Layout resolves every path the pipeline reads or writes. A single run owns
// its forecast's output subtree exclusively; concurrent runs against the same
// identifier must be serialized externally.
type Layout struct {
	ResultsDir string
	DataDir    string
	LogDir     string
	DocsDir    string
}

// ForecastFile is the pre-computed forecast data file for an identifier.
func (l Layout) ForecastFile(id forecast.ID) string {
	return filepath.Join(l.ResultsDir, "predict", id.Name+".nc")
}

// ManifestFile is the newline-separated forecast date list for an identifier.
func (l Layout) ManifestFile(id forecast.ID) string {
	return id.Name + ".csv"
}

// OutputDir is the root of an identifier's produced artifacts.
func (l Layout) OutputDir(id forecast.ID) string {
	return filepath.Join(l.ResultsDir, "forecasts", id.Name)
}

// DateDir holds the artifacts for one forecast date.
func (l Layout) DateDir(id forecast.ID, date time.Time) string {
	return filepath.Join(l.OutputDir(id), date.Format(forecast.DateFormat))
}

// DateFile is the single-date slice of the forecast data file.
func (l Layout) DateFile(id forecast.ID, date time.Time) string {
	return filepath.Join(l.DateDir(id, date), id.Name+"."+date.Format(forecast.DateFormat)+".nc")
}

// RunLogDir mirrors the output nesting for run logs.
func (l Layout) RunLogDir(id forecast.ID) string {
	return filepath.Join(l.LogDir, "forecasts", id.Name)
}

// ObsFile is the hemisphere's sea-ice concentration record for a year.
func (l Layout) ObsFile(h forecast.Hemisphere, year int) string {
	return filepath.Join(l.DataDir, "osisaf", string(h), "siconca", fmt.Sprintf("%d.nc", year))
}

// Provision wipes and recreates the output and log directories for a
// forecast. Destructive: nothing of a prior run survives.
func (l Layout) Provision(id forecast.ID) error {
	out := l.OutputDir(id)
	if err := os.RemoveAll(out); err != nil {
		return fmt.Errorf("remove stale output tree %s: %w", out, err)
	}
	for _, dir := range []string{out, l.RunLogDir(id)} {
		if err := os.MkdirAll(dir, 0o775); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Ensure creates the output and log directories without touching existing
// content, for resumed runs.
func (l Layout) Ensure(id forecast.ID) error {
	for _, dir := range []string{l.OutputDir(id), l.RunLogDir(id)} {
		if err := os.MkdirAll(dir, 0o775); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureDateDir creates one date's artifact directory.
func (l Layout) EnsureDateDir(id forecast.ID, date time.Time) (string, error) {
	dir := l.DateDir(id, date)
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

// CopyDocs copies every license/readme template from the docs directory into
// a per-date product directory. A missing docs directory is not an error; a
// partially readable one is.
func (l Layout) CopyDocs(dateDir string) error {
	entries, err := os.ReadDir(l.DocsDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read docs directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(l.DocsDir, e.Name()), filepath.Join(dateDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
