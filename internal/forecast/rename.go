package forecast

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// NormalizeNames strips the redundant "<identifier>.<date>." prefix that
// upstream plotting tools put on generated files inside a per-date output
// directory. The prefix is removed exactly once per filename; files without
// it are left alone. The per-date data slice ("<identifier>.<date>.nc")
// keeps its full name: the metric tools read it by that path. Returns the
// number of files renamed.
func NormalizeNames(dir string, id ID, date time.Time) (int, error) {
	prefix := fmt.Sprintf("%s.%s.", id.Name, date.Format(DateFormat))
	slice := prefix + "nc"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read output directory: %w", err)
	}

	renamed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == slice {
			continue
		}
		trimmed, ok := strings.CutPrefix(name, prefix)
		if !ok || trimmed == "" {
			continue
		}
		if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, trimmed)); err != nil {
			return renamed, fmt.Errorf("rename %s: %w", name, err)
		}
		renamed++
	}
	return renamed, nil
}
