package forecast

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// ReadManifest loads the ordered forecast date list for an identifier from
// its manifest file, one YYYY-MM-DD date per line. Blank lines are ignored;
// a malformed date is an error.
func ReadManifest(path string) ([]time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open date manifest: %w", err)
	}
	defer f.Close()

	var dates []time.Time
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		d, err := time.ParseInLocation(DateFormat, text, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("date manifest %s line %d: %w", path, line, err)
		}
		dates = append(dates, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read date manifest: %w", err)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("date manifest %s contains no dates", path)
	}
	return dates, nil
}
