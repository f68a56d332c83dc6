package layout

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/polarops/icenet-pipeline/internal/forecast"
)

// checkpointName is the per-forecast record of fully produced dates. It lives
// in the log tree, not the output tree, so a destructive re-provision starts
// from a clean slate while a resumed run can still consult it.
const checkpointName = "complete.dates"

// Checkpoint records which forecast dates have all their artifacts.
type Checkpoint struct {
	path string
	done map[string]bool
}

// LoadCheckpoint reads the completion record for a forecast. A missing file
// yields an empty checkpoint.
func (l Layout) LoadCheckpoint(id forecast.ID) (*Checkpoint, error) {
	cp := &Checkpoint{
		path: filepath.Join(l.RunLogDir(id), checkpointName),
		done: make(map[string]bool),
	}

	f, err := os.Open(cp.path)
	if os.IsNotExist(err) {
		return cp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			cp.done[line] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	return cp, nil
}

// Reset discards any recorded completions, matching a destructive run.
func (cp *Checkpoint) Reset() error {
	cp.done = make(map[string]bool)
	if err := os.Remove(cp.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	return nil
}

// Done reports whether a date has already been fully produced.
func (cp *Checkpoint) Done(date time.Time) bool {
	return cp.done[date.Format(forecast.DateFormat)]
}

// MarkDone appends a completed date to the record. The file is flushed per
// date so an aborted run resumes at the first unfinished one.
func (cp *Checkpoint) MarkDone(date time.Time) error {
	key := date.Format(forecast.DateFormat)
	if cp.done[key] {
		return nil
	}
	f, err := os.OpenFile(cp.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, key); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	cp.done[key] = true
	return nil
}
