package geocode

import (
	"fmt"
	"sync"

	"github.com/ringsaturn/tzf"
)

// TimezoneFinder resolves the IANA timezone of a coordinate
type TimezoneFinder interface {
	GetTimezone(latitude, longitude float64) (string, error)
}

type tzfFinder struct {
	finder tzf.F
}

var (
	tzInstance *tzfFinder
	tzErr      error
	tzOnce     sync.Once
)

// NewTimezoneFinder returns the process wide tzf backed finder.
// tzf keeps its polygon data in memory, so it is loaded once.
func NewTimezoneFinder() (TimezoneFinder, error) {
	tzOnce.Do(func() {
		finder, err := tzf.NewDefaultFinder()
		if err != nil {
			tzErr = fmt.Errorf("failed to initialize timezone finder: %w", err)
			return
		}
		tzInstance = &tzfFinder{finder: finder}
	})
	if tzErr != nil {
		return nil, tzErr
	}
	return tzInstance, nil
}

// GetTimezone returns names like "Asia/Kolkata" or "Europe/London"
func (f *tzfFinder) GetTimezone(latitude, longitude float64) (string, error) {
	name := f.finder.GetTimezoneName(longitude, latitude)
	if name == "" {
		return "", fmt.Errorf("could not determine timezone for coordinates lat=%f, lon=%f", latitude, longitude)
	}
	return name, nil
}
