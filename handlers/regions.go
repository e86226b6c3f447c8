package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"p9e.in/geofence/models"
	"p9e.in/geofence/pkg/geocode"
	"p9e.in/geofence/utils"
)

// RegionHandler serves the region service API
type RegionHandler struct {
	db       *gorm.DB
	timezone geocode.TimezoneFinder
	logger   *slog.Logger
}

// NewRegionHandler creates a handler; timezone may be nil, in which case
// regions keep whatever timezone their clients send.
func NewRegionHandler(db *gorm.DB, timezone geocode.TimezoneFinder, logger *slog.Logger) *RegionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegionHandler{db: db, timezone: timezone, logger: logger}
}

// writeJSON encodes v as the response body. The status is already sent when
// encoding fails, so the error can only be logged.
func (h *RegionHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", "status", status, "error", err)
	}
}

func pairsToBoundary(pairs [][2]float64) []utils.Coordinate {
	boundary := make([]utils.Coordinate, len(pairs))
	for i, p := range pairs {
		boundary[i] = utils.Coordinate{Lat: p[0], Lng: p[1]}
	}
	return boundary
}

// ListRegions returns all regions. ?active=true restricts to active ones.
func (h *RegionHandler) ListRegions(w http.ResponseWriter, r *http.Request) {
	query := h.db.Order("created_at asc")
	if r.URL.Query().Get("active") == "true" {
		query = query.Where("is_active = ?", true)
	}

	var rows []models.Region
	if err := query.Find(&rows).Error; err != nil {
		h.logger.Error("failed to fetch regions", "error", err)
		http.Error(w, "failed to fetch regions", http.StatusInternalServerError)
		return
	}

	resp := models.RegionListResponse{Regions: make([]models.RegionDTO, 0, len(rows))}
	for i := range rows {
		resp.Regions = append(resp.Regions, rows[i].ToDTO())
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// newRegionRow validates a draft and turns it into a row
func (h *RegionHandler) newRegionRow(draft models.RegionDraftDTO) (*models.Region, error) {
	boundary := pairsToBoundary(draft.BoundaryCoordinates)
	if err := utils.ValidateBoundary(boundary); err != nil {
		return nil, err
	}

	center := utils.Coordinate{Lat: draft.Center[0], Lng: draft.Center[1]}
	if center == (utils.Coordinate{}) {
		center, _ = utils.CalculatePolygonCenter(boundary)
	}

	tz := draft.Timezone
	if tz == "" && h.timezone != nil {
		if found, err := h.timezone.GetTimezone(center.Lat, center.Lng); err == nil {
			tz = found
		}
	}

	return &models.Region{
		Name:      draft.Name,
		City:      draft.City,
		Country:   draft.Country,
		Boundary:  datatypes.JSON(utils.EncodeBoundary(boundary)),
		CenterLat: center.Lat,
		CenterLng: center.Lng,
		Timezone:  tz,
		IsActive:  true,
		Color:     draft.Color,
	}, nil
}

// CreateRegion stores a new region and answers with its id
func (h *RegionHandler) CreateRegion(w http.ResponseWriter, r *http.Request) {
	var draft models.RegionDraftDTO
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if draft.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	row, err := h.newRegionRow(draft)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.db.Create(row).Error; err != nil {
		h.logger.Error("failed to create region", "name", draft.Name, "error", err)
		http.Error(w, "failed to create region", http.StatusInternalServerError)
		return
	}

	h.logger.Info("region created", "id", row.ID, "name", row.Name)
	h.writeJSON(w, http.StatusCreated, models.RegionCreatedResponse{RegionID: row.ID.String()})
}

// applyPatch copies the non-nil patch fields onto row
func applyPatch(row *models.Region, patch models.RegionPatchDTO) error {
	if patch.BoundaryCoordinates != nil {
		boundary := pairsToBoundary(*patch.BoundaryCoordinates)
		if err := utils.ValidateBoundary(boundary); err != nil {
			return err
		}
		row.Boundary = datatypes.JSON(utils.EncodeBoundary(boundary))
	}
	if patch.Name != nil {
		if *patch.Name == "" {
			return errors.New("name cannot be empty")
		}
		row.Name = *patch.Name
	}
	if patch.City != nil {
		row.City = *patch.City
	}
	if patch.Country != nil {
		row.Country = *patch.Country
	}
	if patch.Center != nil {
		row.CenterLat, row.CenterLng = patch.Center[0], patch.Center[1]
	}
	if patch.Timezone != nil {
		row.Timezone = *patch.Timezone
	}
	if patch.IsActive != nil {
		row.IsActive = *patch.IsActive
	}
	if patch.Color != nil {
		row.Color = *patch.Color
	}
	return nil
}

func (h *RegionHandler) findRegion(w http.ResponseWriter, r *http.Request) (*models.Region, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "region not found", http.StatusNotFound)
		return nil, false
	}

	var row models.Region
	if err := h.db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "region not found", http.StatusNotFound)
		} else {
			h.logger.Error("failed to load region", "id", id, "error", err)
			http.Error(w, "failed to load region", http.StatusInternalServerError)
		}
		return nil, false
	}
	return &row, true
}

// UpdateRegion applies a full or partial patch
func (h *RegionHandler) UpdateRegion(w http.ResponseWriter, r *http.Request) {
	row, ok := h.findRegion(w, r)
	if !ok {
		return
	}

	var patch models.RegionPatchDTO
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := applyPatch(row, patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.db.Save(row).Error; err != nil {
		h.logger.Error("failed to update region", "id", row.ID, "error", err)
		http.Error(w, "failed to update region", http.StatusInternalServerError)
		return
	}

	h.logger.Info("region updated", "id", row.ID)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteRegion soft deletes a region
func (h *RegionHandler) DeleteRegion(w http.ResponseWriter, r *http.Request) {
	row, ok := h.findRegion(w, r)
	if !ok {
		return
	}

	if err := h.db.Delete(row).Error; err != nil {
		h.logger.Error("failed to delete region", "id", row.ID, "error", err)
		http.Error(w, "failed to delete region", http.StatusInternalServerError)
		return
	}

	h.logger.Info("region deleted", "id", row.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Health reports whether the database answers
func (h *RegionHandler) Health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
