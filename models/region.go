package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Region is a named polygonal service area persisted by the region service
type Region struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	City      string         `gorm:"size:100" json:"city"`
	Country   string         `gorm:"size:100" json:"country"`
	Boundary  datatypes.JSON `gorm:"type:jsonb;not null" json:"boundary"` // [[lat,lng], ...]; legacy rows hold a JSON string
	CenterLat float64        `json:"centerLat"`
	CenterLng float64        `json:"centerLng"`
	Timezone  string         `gorm:"size:64" json:"timezone"`
	IsActive  bool           `gorm:"default:true" json:"isActive"`
	Color     string         `gorm:"size:16" json:"color"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook for Region
func (r *Region) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// ToDTO converts the row into its wire representation
func (r *Region) ToDTO() RegionDTO {
	return RegionDTO{
		ID:                  r.ID.String(),
		Name:                r.Name,
		City:                r.City,
		Country:             r.Country,
		BoundaryCoordinates: json.RawMessage(r.Boundary),
		Center:              [2]float64{r.CenterLat, r.CenterLng},
		Timezone:            r.Timezone,
		IsActive:            r.IsActive,
		Color:               r.Color,
	}
}

// RegionDTO is a region as exchanged with the region service.
// BoundaryCoordinates is either an array of [lat,lng] pairs or a string holding one.
type RegionDTO struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	City                string          `json:"city"`
	Country             string          `json:"country"`
	BoundaryCoordinates json.RawMessage `json:"boundary_coordinates"`
	Center              [2]float64      `json:"center"`
	Timezone            string          `json:"timezone"`
	IsActive            bool            `json:"is_active"`
	Color               string          `json:"color"`
}

// RegionListResponse is the body of GET /regions
type RegionListResponse struct {
	Regions []RegionDTO `json:"regions"`
}

// RegionDraftDTO is the body of POST /region
type RegionDraftDTO struct {
	Name                string       `json:"name"`
	City                string       `json:"city"`
	Country             string       `json:"country"`
	BoundaryCoordinates [][2]float64 `json:"boundary_coordinates"`
	Center              [2]float64   `json:"center"`
	Timezone            string       `json:"timezone"`
	Color               string       `json:"color,omitempty"`
}

// RegionCreatedResponse is the body returned by POST /region
type RegionCreatedResponse struct {
	RegionID string `json:"region_id"`
}

// RegionPatchDTO is the body of PATCH /region/{id}. Nil fields are left untouched.
type RegionPatchDTO struct {
	Name                *string       `json:"name,omitempty"`
	City                *string       `json:"city,omitempty"`
	Country             *string       `json:"country,omitempty"`
	BoundaryCoordinates *[][2]float64 `json:"boundary_coordinates,omitempty"`
	Center              *[2]float64   `json:"center,omitempty"`
	Timezone            *string       `json:"timezone,omitempty"`
	IsActive            *bool         `json:"is_active,omitempty"`
	Color               *string       `json:"color,omitempty"`
}
