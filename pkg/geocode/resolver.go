package geocode

import (
	"context"
	"errors"
	"log/slog"

	"p9e.in/geofence/utils"
)

// Resolver labels a coordinate with its place and timezone
type Resolver struct {
	geocoder Geocoder
	timezone TimezoneFinder
	logger   *slog.Logger
}

// NewResolver combines a geocoder with an optional timezone finder
func NewResolver(geocoder Geocoder, timezone TimezoneFinder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{geocoder: geocoder, timezone: timezone, logger: logger}
}

// Resolve returns the place at point. Any geocoder failure is reported as a
// *GeocodingError; a missing timezone only leaves Place.Timezone empty.
func (r *Resolver) Resolve(ctx context.Context, point utils.Coordinate) (Place, error) {
	place, err := r.geocoder.Reverse(ctx, point.Lat, point.Lng)
	if err != nil {
		var geoErr *GeocodingError
		if !errors.As(err, &geoErr) {
			err = &GeocodingError{Latitude: point.Lat, Longitude: point.Lng, Cause: err}
		}
		return Place{}, err
	}

	if r.timezone != nil {
		tz, err := r.timezone.GetTimezone(point.Lat, point.Lng)
		if err != nil {
			r.logger.Warn("timezone lookup failed", "lat", point.Lat, "lng", point.Lng, "error", err)
		} else {
			place.Timezone = tz
		}
	}
	return place, nil
}
