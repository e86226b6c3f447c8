package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidGeometry is returned when a boundary has too few points or
// carries non-finite coordinates.
var ErrInvalidGeometry = errors.New("invalid geometry")

// MinBoundaryPoints is the smallest number of vertices a closeable polygon needs
const MinBoundaryPoints = 3

// Coordinate represents a geographic coordinate with latitude and longitude
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geofence represents a polygonal geofence boundary
type Geofence struct {
	Coordinates []Coordinate `json:"coordinates"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
}

// ValidateGeofence validates a JSON encoded geofence. An empty string is allowed.
func ValidateGeofence(geofenceJSON string) error {
	if geofenceJSON == "" {
		return nil
	}

	var geofence Geofence
	if err := json.Unmarshal([]byte(geofenceJSON), &geofence); err != nil {
		return fmt.Errorf("invalid geofence JSON format: %w", err)
	}
	return ValidateBoundary(geofence.Coordinates)
}

// ValidateBoundary checks that a boundary can be persisted as a region
func ValidateBoundary(boundary []Coordinate) error {
	if len(boundary) < MinBoundaryPoints {
		return fmt.Errorf("%w: boundary needs at least %d points, got %d", ErrInvalidGeometry, MinBoundaryPoints, len(boundary))
	}
	for i, c := range boundary {
		if !isFinite(c.Lat) || !isFinite(c.Lng) {
			return fmt.Errorf("%w: non-finite coordinate at index %d", ErrInvalidGeometry, i)
		}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsPointInPolygon checks if a point is inside a polygon using ray casting algorithm
func IsPointInPolygon(point Coordinate, polygon []Coordinate) bool {
	if len(polygon) < MinBoundaryPoints {
		return false
	}

	inside := false
	j := len(polygon) - 1

	for i := 0; i < len(polygon); i++ {
		xi, yi := polygon[i].Lng, polygon[i].Lat
		xj, yj := polygon[j].Lng, polygon[j].Lat

		intersect := ((yi > point.Lat) != (yj > point.Lat)) &&
			(point.Lng < (xj-xi)*(point.Lat-yi)/(yj-yi)+xi)

		if intersect {
			inside = !inside
		}
		j = i
	}

	return inside
}

// CalculatePolygonCenter returns the vertex average of the given points.
// This is not the area weighted centroid.
func CalculatePolygonCenter(coordinates []Coordinate) (Coordinate, error) {
	if len(coordinates) == 0 {
		return Coordinate{}, fmt.Errorf("%w: centroid of empty point list", ErrInvalidGeometry)
	}

	var sumLat, sumLng float64
	for _, coord := range coordinates {
		sumLat += coord.Lat
		sumLng += coord.Lng
	}

	return Coordinate{
		Lat: sumLat / float64(len(coordinates)),
		Lng: sumLng / float64(len(coordinates)),
	}, nil
}

// PointToSegmentDistance returns the planar distance from point to the closest
// point of the segment [start, end].
func PointToSegmentDistance(point, start, end Coordinate) float64 {
	// x is longitude, y is latitude, same as IsPointInPolygon
	a := point.Lng - start.Lng
	b := point.Lat - start.Lat
	c := end.Lng - start.Lng
	d := end.Lat - start.Lat

	dot := a*c + b*d
	lenSquare := c*c + d*d

	param := -1.0
	if lenSquare != 0 {
		param = dot / lenSquare
	}

	var xx, yy float64
	switch {
	case param < 0:
		xx, yy = start.Lng, start.Lat
	case param > 1:
		xx, yy = end.Lng, end.Lat
	default:
		xx = start.Lng + param*c
		yy = start.Lat + param*d
	}

	return math.Hypot(point.Lng-xx, point.Lat-yy)
}

// NearestEdgeInsertionIndex returns the index at which point should be inserted
// so that it splits the boundary edge closest to it. Edges are walked in order
// including the closing edge; the first minimum wins.
func NearestEdgeInsertionIndex(point Coordinate, boundary []Coordinate) int {
	n := len(boundary)
	if n == 0 {
		return 0
	}

	best := 0
	minDist := math.Inf(1)
	for i := 0; i < n; i++ {
		dist := PointToSegmentDistance(point, boundary[i], boundary[(i+1)%n])
		if dist < minDist {
			minDist = dist
			best = i + 1
		}
	}
	return best
}

// ParseBoundary decodes boundary coordinates as delivered by the region service.
// The payload is either a JSON array (of [lat,lng] pairs or {lat,lng} objects)
// or a JSON string wrapping such an array.
func ParseBoundary(raw []byte) ([]Coordinate, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: empty boundary", ErrInvalidGeometry)
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("failed to decode boundary string: %w", err)
		}
		raw = bytes.TrimSpace([]byte(inner))
		if len(raw) > 0 && raw[0] == '"' {
			return nil, fmt.Errorf("boundary is encoded more than once")
		}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode boundary: %w", err)
	}

	boundary := make([]Coordinate, 0, len(items))
	for i, item := range items {
		c, err := parseCoordinate(item)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate at index %d: %w", i, err)
		}
		boundary = append(boundary, c)
	}
	return boundary, nil
}

func parseCoordinate(item json.RawMessage) (Coordinate, error) {
	item = bytes.TrimSpace(item)
	if len(item) > 0 && item[0] == '{' {
		var c Coordinate
		if err := json.Unmarshal(item, &c); err != nil {
			return Coordinate{}, err
		}
		return c, nil
	}

	var pair []float64
	if err := json.Unmarshal(item, &pair); err != nil {
		return Coordinate{}, err
	}
	if len(pair) != 2 {
		return Coordinate{}, fmt.Errorf("expected [lat, lng], got %d values", len(pair))
	}
	return Coordinate{Lat: pair[0], Lng: pair[1]}, nil
}

// EncodeBoundary renders a boundary in the canonical [[lat,lng],...] form
func EncodeBoundary(boundary []Coordinate) []byte {
	pairs := make([][2]float64, len(boundary))
	for i, c := range boundary {
		pairs[i] = [2]float64{c.Lat, c.Lng}
	}
	// a slice of float pairs cannot fail to marshal unless a value is NaN/Inf
	data, err := json.Marshal(pairs)
	if err != nil {
		return []byte("[]")
	}
	return data
}

// BoundaryRing converts a boundary to an orb.Ring ([lng, lat] points), closed.
func BoundaryRing(boundary []Coordinate) orb.Ring {
	ring := make(orb.Ring, 0, len(boundary)+1)
	for _, c := range boundary {
		ring = append(ring, orb.Point{c.Lng, c.Lat})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// BoundaryFromRing converts an orb.Ring back to a boundary, dropping the
// closing point if present.
func BoundaryFromRing(ring orb.Ring) []Coordinate {
	n := len(ring)
	if n > 1 && ring.Closed() {
		n--
	}
	boundary := make([]Coordinate, 0, n)
	for _, p := range ring[:n] {
		boundary = append(boundary, Coordinate{Lat: p.Lat(), Lng: p.Lon()})
	}
	return boundary
}

// BoundaryBound returns the bounding box of a boundary
func BoundaryBound(boundary []Coordinate) orb.Bound {
	return BoundaryRing(boundary).Bound()
}
