package geocode

import (
	"context"
	"fmt"
)

// Place is the label attached to a drawn region's centroid
type Place struct {
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
	DisplayName string `json:"displayName"`
	Timezone    string `json:"timezone"`
}

// Geocoder turns a coordinate into a place
type Geocoder interface {
	Reverse(ctx context.Context, latitude, longitude float64) (Place, error)
}

// GeocodingError wraps any failure of the reverse lookup
type GeocodingError struct {
	Latitude  float64
	Longitude float64
	Cause     error
}

func (e *GeocodingError) Error() string {
	return fmt.Sprintf("reverse geocoding lat=%f lon=%f: %v", e.Latitude, e.Longitude, e.Cause)
}

func (e *GeocodingError) Unwrap() error {
	return e.Cause
}
