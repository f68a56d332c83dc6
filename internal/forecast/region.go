package forecast

import (
	"fmt"
	"strconv"
	"strings"
)

// geoMarker prefixes a region string encoded as geographic bounds.
const geoMarker = "l"

// Region restricts artifact generation to a sub-area of the hemisphere grid.
// It is one of two variants decided once at parse time: PixelBounds or
// GeoBounds.
type Region interface {
	// Arg renders the region in the form the plotting tools expect.
	Arg() string

	// MetricsSupported reports whether the metrics tooling can handle this
	// region variant. Only pixel bounds are supported.
	MetricsSupported() bool
}

// PixelBounds is a rectangle in grid coordinates.
type PixelBounds struct {
	XMin, YMin, XMax, YMax int
}

func (b PixelBounds) Arg() string {
	return fmt.Sprintf("%d,%d,%d,%d", b.XMin, b.YMin, b.XMax, b.YMax)
}

func (b PixelBounds) MetricsSupported() bool { return true }

// GeoBounds is a rectangle in WGS-84 longitude/latitude coordinates.
type GeoBounds struct {
	LatMin, LonMin, LatMax, LonMax float64
}

func (b GeoBounds) Arg() string {
	return geoMarker + fmt.Sprintf("%g,%g,%g,%g", b.LonMin, b.LatMin, b.LonMax, b.LatMax)
}

func (b GeoBounds) MetricsSupported() bool { return false }

// ParseRegion decodes a region string. A leading "l" marks geographic bounds
// given as lon_min,lat_min,lon_max,lat_max floats; otherwise the string is
// pixel bounds given as x_min,y_min,x_max,y_max integers.
func ParseRegion(s string) (Region, error) {
	if rest, ok := strings.CutPrefix(s, geoMarker); ok {
		vals, err := splitFour(rest)
		if err != nil {
			return nil, fmt.Errorf("geographic region %q: %w", s, err)
		}
		f := make([]float64, 4)
		for i, v := range vals {
			f[i], err = strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("geographic region %q: bad coordinate %q", s, v)
			}
		}
		return GeoBounds{LonMin: f[0], LatMin: f[1], LonMax: f[2], LatMax: f[3]}, nil
	}

	vals, err := splitFour(s)
	if err != nil {
		return nil, fmt.Errorf("pixel region %q: %w", s, err)
	}
	n := make([]int, 4)
	for i, v := range vals {
		n[i], err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("pixel region %q: bad bound %q", s, v)
		}
	}
	return PixelBounds{XMin: n[0], YMin: n[1], XMax: n[2], YMax: n[3]}, nil
}

func splitFour(s string) ([]string, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}
	return parts, nil
}
