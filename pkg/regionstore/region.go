package regionstore

import (
	"fmt"

	"p9e.in/geofence/models"
	"p9e.in/geofence/utils"
)

// Region is the in-memory form of a persisted service region
type Region struct {
	ID       string
	Name     string
	City     string
	Country  string
	Boundary []utils.Coordinate
	Center   utils.Coordinate
	Timezone string
	IsActive bool
	Color    string
}

// Draft carries everything needed to create a region; the service assigns the ID
type Draft struct {
	Name     string
	City     string
	Country  string
	Boundary []utils.Coordinate
	Center   utils.Coordinate
	Timezone string
	Color    string
}

func (r Region) clone() Region {
	r.Boundary = append([]utils.Coordinate(nil), r.Boundary...)
	return r
}

// DecodeRegion normalizes a wire region into its in-memory form
func DecodeRegion(dto models.RegionDTO) (Region, error) {
	boundary, err := utils.ParseBoundary(dto.BoundaryCoordinates)
	if err != nil {
		return Region{}, fmt.Errorf("region %s: %w", dto.ID, err)
	}
	return Region{
		ID:       dto.ID,
		Name:     dto.Name,
		City:     dto.City,
		Country:  dto.Country,
		Boundary: boundary,
		Center:   utils.Coordinate{Lat: dto.Center[0], Lng: dto.Center[1]},
		Timezone: dto.Timezone,
		IsActive: dto.IsActive,
		Color:    dto.Color,
	}, nil
}

func pairs(boundary []utils.Coordinate) [][2]float64 {
	out := make([][2]float64, len(boundary))
	for i, c := range boundary {
		out[i] = [2]float64{c.Lat, c.Lng}
	}
	return out
}

func (d Draft) toDTO() models.RegionDraftDTO {
	return models.RegionDraftDTO{
		Name:                d.Name,
		City:                d.City,
		Country:             d.Country,
		BoundaryCoordinates: pairs(d.Boundary),
		Center:              [2]float64{d.Center.Lat, d.Center.Lng},
		Timezone:            d.Timezone,
		Color:               d.Color,
	}
}

// FullPatch builds a patch replacing every mutable field of r
func FullPatch(r Region) models.RegionPatchDTO {
	boundary := pairs(r.Boundary)
	center := [2]float64{r.Center.Lat, r.Center.Lng}
	return models.RegionPatchDTO{
		Name:                &r.Name,
		City:                &r.City,
		Country:             &r.Country,
		BoundaryCoordinates: &boundary,
		Center:              &center,
		Timezone:            &r.Timezone,
		IsActive:            &r.IsActive,
		Color:               &r.Color,
	}
}
