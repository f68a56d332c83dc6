package forecast

import "time"

// DateFormat is the calendar date layout used by manifests, directory names,
// and tool arguments throughout the pipeline.
const DateFormat = "2006-01-02"

// MetricsEligible reports whether observational ground truth extends far
// enough past the forecast date to compute accuracy and error metrics.
// The observational record must strictly exceed forecastDate + 1 day.
func MetricsEligible(latestObs, forecastDate time.Time) bool {
	return latestObs.After(forecastDate.AddDate(0, 0, 1))
}

// CurrentYear returns the calendar year of the pipeline clock, which names
// the observational file consulted by the gate.
func CurrentYear() int {
	return clock.Now().UTC().Year()
}

// YearToDate returns the refresh window for observational downloads: the
// first of January of the current year through today, both UTC.
func YearToDate() (start, end time.Time) {
	now := clock.Now().UTC()
	start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, end
}
