package forecast

import (
	"fmt"
	"strings"
)

// Hemisphere selects the polar dataset variant used by every external tool.
type Hemisphere string

const (
	North Hemisphere = "north"
	South Hemisphere = "south"
)

// ErrBadHemisphere is returned when an identifier does not end in a
// recognized hemisphere suffix.
var ErrBadHemisphere = fmt.Errorf("forecast identifier must end in _north or _south")

// ID is a parsed forecast identifier.
type ID struct {
	Name       string // full identifier, e.g. "fc.2024-05-21_north"
	Base       string // identifier without the hemisphere suffix
	Hemisphere Hemisphere
}

// ParseID splits a forecast identifier into base name and hemisphere.
// The hemisphere suffix must be exactly "_north" or "_south".
func ParseID(name string) (ID, error) {
	for _, h := range []Hemisphere{North, South} {
		suffix := "_" + string(h)
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return ID{
				Name:       name,
				Base:       strings.TrimSuffix(name, suffix),
				Hemisphere: h,
			}, nil
		}
	}
	return ID{}, fmt.Errorf("%w: %q", ErrBadHemisphere, name)
}

func (id ID) String() string { return id.Name }
