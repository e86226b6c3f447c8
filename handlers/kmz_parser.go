package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"p9e.in/geofence/models"
	"p9e.in/geofence/utils"
)

// KML geometry types
type LinearRing struct {
	Coordinates string `xml:"coordinates"`
}

type Polygon struct {
	OuterBoundary struct {
		LinearRing LinearRing `xml:"LinearRing"`
	} `xml:"outerBoundaryIs"`
}

type MultiGeometry struct {
	Polygons []Polygon `xml:"Polygon"`
}

// ExtendedData represents KML extended data
type ExtendedData struct {
	Data []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value"`
	} `xml:"Data"`
}

type Placemark struct {
	Name          string         `xml:"name"`
	ExtendedData  *ExtendedData  `xml:"ExtendedData"`
	Polygon       *Polygon       `xml:"Polygon"`
	MultiGeometry *MultiGeometry `xml:"MultiGeometry"`
}

type Folder struct {
	Name       string      `xml:"name"`
	Placemarks []Placemark `xml:"Placemark"`
	Folders    []Folder    `xml:"Folder"`
}

type Document struct {
	Name       string      `xml:"name"`
	Placemarks []Placemark `xml:"Placemark"`
	Folders    []Folder    `xml:"Folder"`
}

type KML struct {
	XMLName  xml.Name `xml:"kml"`
	Document Document `xml:"Document"`
}

// ErrNoKML is returned for KMZ archives without a .kml entry
var ErrNoKML = errors.New("no KML file found in KMZ archive")

// maxImportSize bounds uploaded KML/KMZ bodies
const maxImportSize = 16 << 20

// ExtractKML extracts the first KML document from a KMZ archive
func ExtractKML(kmzData []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(kmzData), int64(len(kmzData)))
	if err != nil {
		return nil, fmt.Errorf("failed to open KMZ archive: %w", err)
	}

	for _, f := range reader.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".kml") {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open KML file: %w", err)
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, ErrNoKML
}

// parseRing reads a KML "lng,lat[,alt]" coordinate list into an orb ring
func parseRing(s string) (orb.Ring, error) {
	var ring orb.Ring
	for _, tuple := range strings.Fields(s) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("bad coordinate %q", tuple)
		}
		lng, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad longitude %q: %w", parts[0], err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad latitude %q: %w", parts[1], err)
		}
		ring = append(ring, orb.Point{lng, lat})
	}
	return ring, nil
}

func (pm *Placemark) property(name string) string {
	if pm.ExtendedData == nil {
		return ""
	}
	for _, d := range pm.ExtendedData.Data {
		if strings.EqualFold(d.Name, name) {
			return strings.TrimSpace(d.Value)
		}
	}
	return ""
}

func (pm *Placemark) polygons() []Polygon {
	var out []Polygon
	if pm.Polygon != nil {
		out = append(out, *pm.Polygon)
	}
	if pm.MultiGeometry != nil {
		out = append(out, pm.MultiGeometry.Polygons...)
	}
	return out
}

// placemarkDrafts turns each outer ring of a placemark into a region draft.
// Holes are ignored; regions are simple polygons.
func placemarkDrafts(pm *Placemark, folder string) ([]models.RegionDraftDTO, error) {
	var drafts []models.RegionDraftDTO
	polygons := pm.polygons()
	for i, pg := range polygons {
		ring, err := parseRing(pg.OuterBoundary.LinearRing.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("placemark %q: %w", pm.Name, err)
		}
		boundary := utils.BoundaryFromRing(ring)
		if err := utils.ValidateBoundary(boundary); err != nil {
			return nil, fmt.Errorf("placemark %q: %w", pm.Name, err)
		}

		name := strings.TrimSpace(pm.Name)
		if name == "" {
			name = folder
		}
		if len(polygons) > 1 {
			name = fmt.Sprintf("%s #%d", name, i+1)
		}

		center, _ := utils.CalculatePolygonCenter(boundary)
		draft := models.RegionDraftDTO{
			Name:                name,
			City:                pm.property("city"),
			Country:             pm.property("country"),
			BoundaryCoordinates: make([][2]float64, len(boundary)),
			Center:              [2]float64{center.Lat, center.Lng},
			Color:               pm.property("color"),
		}
		for j, c := range boundary {
			draft.BoundaryCoordinates[j] = [2]float64{c.Lat, c.Lng}
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

func folderDrafts(f *Folder) ([]models.RegionDraftDTO, error) {
	var drafts []models.RegionDraftDTO
	for i := range f.Placemarks {
		d, err := placemarkDrafts(&f.Placemarks[i], f.Name)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d...)
	}
	for i := range f.Folders {
		d, err := folderDrafts(&f.Folders[i])
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d...)
	}
	return drafts, nil
}

// ParseRegionDrafts reads polygon placemarks from KML or KMZ bytes.
// Placemarks without polygon geometry are skipped.
func ParseRegionDrafts(data []byte) ([]models.RegionDraftDTO, error) {
	if bytes.HasPrefix(data, []byte("PK")) {
		kml, err := ExtractKML(data)
		if err != nil {
			return nil, err
		}
		data = kml
	}

	var kml KML
	if err := xml.Unmarshal(data, &kml); err != nil {
		return nil, fmt.Errorf("failed to parse KML: %w", err)
	}

	root := Folder{
		Name:       kml.Document.Name,
		Placemarks: kml.Document.Placemarks,
		Folders:    kml.Document.Folders,
	}
	return folderDrafts(&root)
}

// ImportRegions creates one region per polygon in an uploaded KML/KMZ body.
// The whole file is rejected if any polygon is invalid.
func (h *RegionHandler) ImportRegions(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	drafts, err := ParseRegionDrafts(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(drafts) == 0 {
		http.Error(w, "no polygons found", http.StatusBadRequest)
		return
	}

	rows := make([]*models.Region, 0, len(drafts))
	for _, d := range drafts {
		row, err := h.newRegionRow(d)
		if err != nil {
			http.Error(w, fmt.Sprintf("%s: %v", d.Name, err), http.StatusBadRequest)
			return
		}
		rows = append(rows, row)
	}

	if err := h.db.Create(&rows).Error; err != nil {
		h.logger.Error("failed to import regions", "count", len(rows), "error", err)
		http.Error(w, "failed to import regions", http.StatusInternalServerError)
		return
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID.String()
	}
	h.logger.Info("regions imported", "count", len(ids))
	h.writeJSON(w, http.StatusCreated, map[string]any{"region_ids": ids})
}
