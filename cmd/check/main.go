// Command check performs integrity checks on a produced forecast output
// tree: every manifest date has its directory, artifact sets are complete,
// filenames are normalized, and documentation was copied. It is run after
// production, before the tree is handed to downstream consumers.
//
// Usage:
//
//	check [-l max-leadtime] <forecast-identifier>
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/polarops/icenet-pipeline/internal/config"
	"github.com/polarops/icenet-pipeline/internal/forecast"
	"github.com/polarops/icenet-pipeline/internal/layout"
	"github.com/polarops/icenet-pipeline/internal/producer"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	maxLead := flag.Int("l", producer.DefaultMaxLeadtime, "expected maximum lead time in days")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: check [-l max-leadtime] <forecast-identifier>")
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	id, err := forecast.ParseID(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	lay := layout.Layout{
		ResultsDir: cfg.ResultsDir,
		DataDir:    cfg.DataDir,
		LogDir:     cfg.LogDir,
		DocsDir:    cfg.DocsDir,
	}

	if code := runChecks(lay, id, *maxLead); code != 0 {
		os.Exit(code)
	}
}

func runChecks(lay layout.Layout, id forecast.ID, maxLead int) int {
	fmt.Printf("=== Forecast Output Integrity: %s ===\n\n", id.Name)

	dates, err := forecast.ReadManifest(lay.ManifestFile(id))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		checkDateDirs(lay, id, dates),
		checkGeotiffs(lay, id, dates, maxLead),
		checkNormalizedNames(lay, id, dates),
		checkDocs(lay, id, dates),
		checkMetricsArtifacts(lay, id, dates),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-32s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Printf("\nAll checks passed for %d dates.\n", len(dates))
		return 0
	}
	fmt.Println("\nCheck FAILED.")
	return 1
}

func checkDateDirs(lay layout.Layout, id forecast.ID, dates []time.Time) *phase {
	p := &phase{name: "date directories"}
	for _, d := range dates {
		dir := lay.DateDir(id, d)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			p.errorf("missing directory for %s", d.Format(forecast.DateFormat))
		}
	}
	return p
}

func checkGeotiffs(lay layout.Layout, id forecast.ID, dates []time.Time, maxLead int) *phase {
	p := &phase{name: "geotiff rasters"}
	for _, d := range dates {
		tiffs, err := filepath.Glob(filepath.Join(lay.DateDir(id, d), "*.tiff"))
		if err != nil {
			p.errorf("%s: %v", d.Format(forecast.DateFormat), err)
			continue
		}
		if len(tiffs) != maxLead {
			p.errorf("%s: expected %d geotiffs, found %d", d.Format(forecast.DateFormat), maxLead, len(tiffs))
		}
	}
	return p
}

func checkNormalizedNames(lay layout.Layout, id forecast.ID, dates []time.Time) *phase {
	p := &phase{name: "normalized filenames"}
	for _, d := range dates {
		entries, err := os.ReadDir(lay.DateDir(id, d))
		if err != nil {
			continue // reported by the directory phase
		}
		prefix := fmt.Sprintf("%s.%s.", id.Name, d.Format(forecast.DateFormat))
		for _, e := range entries {
			// The per-date data slice legitimately keeps the full name.
			if strings.HasPrefix(e.Name(), prefix) && !strings.HasSuffix(e.Name(), ".nc") {
				p.errorf("%s: un-normalized file %s", d.Format(forecast.DateFormat), e.Name())
			}
		}
	}
	return p
}

func checkDocs(lay layout.Layout, id forecast.ID, dates []time.Time) *phase {
	p := &phase{name: "documentation"}
	docs, err := os.ReadDir(lay.DocsDir)
	if os.IsNotExist(err) {
		return p // nothing to copy, nothing to check
	}
	if err != nil {
		p.errorf("read docs directory: %v", err)
		return p
	}
	for _, d := range dates {
		for _, doc := range docs {
			if doc.IsDir() {
				continue
			}
			if _, err := os.Stat(filepath.Join(lay.DateDir(id, d), doc.Name())); err != nil {
				p.errorf("%s: missing %s", d.Format(forecast.DateFormat), doc.Name())
			}
		}
	}
	return p
}

// checkMetricsArtifacts verifies that metric plots, where present, form a
// complete set: all four accuracy thresholds or none.
func checkMetricsArtifacts(lay layout.Layout, id forecast.ID, dates []time.Time) *phase {
	p := &phase{name: "metric artifacts"}
	for _, d := range dates {
		plots, err := filepath.Glob(filepath.Join(lay.DateDir(id, d), "bin_accuracy_*.png"))
		if err != nil {
			continue
		}
		if n := len(plots); n != 0 && n != 4 {
			p.errorf("%s: incomplete accuracy set, found %d of 4 thresholds", d.Format(forecast.DateFormat), n)
		}
	}
	return p
}
