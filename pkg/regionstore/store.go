package regionstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"p9e.in/geofence/models"
	"p9e.in/geofence/utils"
)

// RegionService is the remote collaborator persisting regions
type RegionService interface {
	ListRegions(ctx context.Context) ([]models.RegionDTO, error)
	CreateRegion(ctx context.Context, draft models.RegionDraftDTO) (string, error)
	UpdateRegion(ctx context.Context, id string, patch models.RegionPatchDTO) error
	DeleteRegion(ctx context.Context, id string) error
}

// Store owns the canonical, ordered set of regions
type Store struct {
	service RegionService
	logger  *slog.Logger

	mu      sync.RWMutex
	regions []Region
}

// NewStore creates an empty store backed by service
func NewStore(service RegionService, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{service: service, logger: logger}
}

// Load replaces the collection with the regions listed by the service.
// On failure the previous collection is kept.
func (s *Store) Load(ctx context.Context) error {
	dtos, err := s.service.ListRegions(ctx)
	if err != nil {
		s.logger.Error("failed to list regions", "error", err)
		return serviceError("list", err)
	}

	regions := make([]Region, 0, len(dtos))
	for _, dto := range dtos {
		region, err := DecodeRegion(dto)
		if err != nil {
			s.logger.Error("failed to decode region", "id", dto.ID, "error", err)
			return serviceError("list", err)
		}
		regions = append(regions, region)
	}

	s.mu.Lock()
	s.regions = regions
	s.mu.Unlock()

	s.logger.Info("regions loaded", "count", len(regions))
	return nil
}

// Regions returns a copy of the collection in iteration order
func (s *Store) Regions() []Region {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Region, len(s.regions))
	for i, r := range s.regions {
		out[i] = r.clone()
	}
	return out
}

// Region returns a copy of the region with the given id
func (s *Store) Region(id string) (Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.regions[i].clone(), true
	}
	return Region{}, false
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.regions, func(r Region) bool { return r.ID == id })
}

// Create persists a new region and appends it to the collection.
// Newly drawn regions start active.
func (s *Store) Create(ctx context.Context, draft Draft) (Region, error) {
	if err := utils.ValidateBoundary(draft.Boundary); err != nil {
		return Region{}, err
	}

	id, err := s.service.CreateRegion(ctx, draft.toDTO())
	if err != nil {
		s.logger.Error("failed to create region", "name", draft.Name, "error", err)
		return Region{}, serviceError("create", err)
	}

	region := Region{
		ID:       id,
		Name:     draft.Name,
		City:     draft.City,
		Country:  draft.Country,
		Boundary: append([]utils.Coordinate(nil), draft.Boundary...),
		Center:   draft.Center,
		Timezone: draft.Timezone,
		IsActive: true,
		Color:    draft.Color,
	}

	s.mu.Lock()
	s.regions = append(s.regions, region)
	s.mu.Unlock()

	s.logger.Info("region created", "id", id, "name", draft.Name, "points", len(draft.Boundary))
	return region.clone(), nil
}

// Update sends patch to the service. The local copy is not touched: callers
// mutate it beforehand and keep that mutation even when the update fails.
func (s *Store) Update(ctx context.Context, id string, patch models.RegionPatchDTO) error {
	if _, ok := s.Region(id); !ok {
		return fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}
	if patch.BoundaryCoordinates != nil && len(*patch.BoundaryCoordinates) < utils.MinBoundaryPoints {
		return fmt.Errorf("%w: boundary needs at least %d points", utils.ErrInvalidGeometry, utils.MinBoundaryPoints)
	}

	if err := s.service.UpdateRegion(ctx, id, patch); err != nil {
		s.logger.Error("failed to update region", "id", id, "error", err)
		return serviceError("update", err)
	}
	s.logger.Info("region updated", "id", id)
	return nil
}

// Delete removes the region once the service confirms the deletion
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, ok := s.Region(id); !ok {
		return fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}

	if err := s.service.DeleteRegion(ctx, id); err != nil {
		s.logger.Error("failed to delete region", "id", id, "error", err)
		return serviceError("delete", err)
	}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.regions = slices.Delete(s.regions, i, i+1)
	}
	s.mu.Unlock()

	s.logger.Info("region deleted", "id", id)
	return nil
}

// Locate returns the first active region containing point, in iteration order
func (s *Store) Locate(point utils.Coordinate) (Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := orb.Point{point.Lng, point.Lat}
	for _, r := range s.regions {
		if !r.IsActive {
			continue
		}
		if !utils.BoundaryBound(r.Boundary).Contains(p) {
			continue
		}
		if utils.IsPointInPolygon(point, r.Boundary) {
			return r.clone(), true
		}
	}
	return Region{}, false
}

// Contains reports whether point lies inside region id regardless of its active flag
func (s *Store) Contains(id string, point utils.Coordinate) (bool, error) {
	r, ok := s.Region(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}
	return utils.IsPointInPolygon(point, r.Boundary), nil
}

// mutate applies fn to the stored region under the write lock
func (s *Store) mutate(id string, fn func(r *Region) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}
	return fn(&s.regions[i])
}

// InsertVertex inserts point into the boundary of region id at index
func (s *Store) InsertVertex(id string, index int, point utils.Coordinate) error {
	return s.mutate(id, func(r *Region) error {
		if index < 0 || index > len(r.Boundary) {
			return fmt.Errorf("%w: insertion index %d out of range", utils.ErrInvalidGeometry, index)
		}
		r.Boundary = slices.Insert(r.Boundary, index, point)
		return nil
	})
}

// MoveVertex replaces the vertex at index in the boundary of region id
func (s *Store) MoveVertex(id string, index int, point utils.Coordinate) error {
	return s.mutate(id, func(r *Region) error {
		if index < 0 || index >= len(r.Boundary) {
			return fmt.Errorf("%w: vertex index %d out of range", utils.ErrInvalidGeometry, index)
		}
		r.Boundary[index] = point
		return nil
	})
}

// SetActive toggles whether region id takes part in containment lookups
func (s *Store) SetActive(id string, active bool) error {
	return s.mutate(id, func(r *Region) error {
		r.IsActive = active
		return nil
	})
}

// Rename changes the display name and color of region id. Empty values are ignored.
func (s *Store) Rename(id, name, color string) error {
	return s.mutate(id, func(r *Region) error {
		if name != "" {
			r.Name = name
		}
		if color != "" {
			r.Color = color
		}
		return nil
	})
}
