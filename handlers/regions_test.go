package handlers

import (
	"archive/zip"
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"p9e.in/geofence/models"
	"p9e.in/geofence/utils"
)

type fixedTimezone struct {
	name string
	err  error
}

func (f fixedTimezone) GetTimezone(latitude, longitude float64) (string, error) {
	return f.name, f.err
}

func square() [][2]float64 {
	return [][2]float64{{0, 0}, {0, 2}, {2, 2}, {2, 0}}
}

func TestNewRegionRow(t *testing.T) {
	tests := []struct {
		name     string
		draft    models.RegionDraftDTO
		tz       fixedTimezone
		wantErr  bool
		wantTZ   string
		wantLat  float64
		wantLng  float64
		wantSize int
	}{
		{
			name:     "explicit center and timezone",
			draft:    models.RegionDraftDTO{Name: "a", BoundaryCoordinates: square(), Center: [2]float64{5, 6}, Timezone: "UTC"},
			tz:       fixedTimezone{name: "Asia/Kolkata"},
			wantTZ:   "UTC",
			wantLat:  5,
			wantLng:  6,
			wantSize: 4,
		},
		{
			name:     "center and timezone derived",
			draft:    models.RegionDraftDTO{Name: "b", BoundaryCoordinates: square()},
			tz:       fixedTimezone{name: "Asia/Kolkata"},
			wantTZ:   "Asia/Kolkata",
			wantLat:  1,
			wantLng:  1,
			wantSize: 4,
		},
		{
			name:     "timezone lookup failure leaves it empty",
			draft:    models.RegionDraftDTO{Name: "c", BoundaryCoordinates: square()},
			tz:       fixedTimezone{err: errors.New("ocean")},
			wantLat:  1,
			wantLng:  1,
			wantSize: 4,
		},
		{
			name:    "two points rejected",
			draft:   models.RegionDraftDTO{Name: "d", BoundaryCoordinates: [][2]float64{{0, 0}, {1, 1}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRegionHandler(nil, tt.tz, nil)
			row, err := h.newRegionRow(tt.draft)
			if tt.wantErr {
				assert.ErrorIs(t, err, utils.ErrInvalidGeometry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTZ, row.Timezone)
			assert.Equal(t, tt.wantLat, row.CenterLat)
			assert.Equal(t, tt.wantLng, row.CenterLng)
			assert.True(t, row.IsActive)

			boundary, err := utils.ParseBoundary(row.Boundary)
			require.NoError(t, err)
			assert.Len(t, boundary, tt.wantSize)
		})
	}
}

func TestApplyPatch(t *testing.T) {
	name := "renamed"
	empty := ""
	inactive := false
	short := [][2]float64{{0, 0}, {1, 1}}
	moved := [][2]float64{{0, 0}, {0, 3}, {3, 3}}
	center := [2]float64{1, 1}

	tests := []struct {
		name    string
		patch   models.RegionPatchDTO
		wantErr bool
		check   func(t *testing.T, row *models.Region)
	}{
		{
			name:  "partial patch keeps other fields",
			patch: models.RegionPatchDTO{Name: &name},
			check: func(t *testing.T, row *models.Region) {
				assert.Equal(t, "renamed", row.Name)
				assert.Equal(t, "Pune", row.City)
				assert.True(t, row.IsActive)
			},
		},
		{
			name:  "boundary and center replaced",
			patch: models.RegionPatchDTO{BoundaryCoordinates: &moved, Center: &center, IsActive: &inactive},
			check: func(t *testing.T, row *models.Region) {
				assert.JSONEq(t, `[[0,0],[0,3],[3,3]]`, string(row.Boundary))
				assert.Equal(t, 1.0, row.CenterLat)
				assert.False(t, row.IsActive)
			},
		},
		{name: "short boundary rejected", patch: models.RegionPatchDTO{BoundaryCoordinates: &short}, wantErr: true},
		{name: "empty name rejected", patch: models.RegionPatchDTO{Name: &empty}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := &models.Region{
				Name:     "original",
				City:     "Pune",
				Boundary: datatypes.JSON(`[[0,0],[0,2],[2,2],[2,0]]`),
				IsActive: true,
			}
			err := applyPatch(row, tt.patch)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, row)
		})
	}
}

func TestCreateRegion_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing name", `{"boundary_coordinates":[[0,0],[0,1],[1,1]]}`},
		{"two points", `{"name":"x","boundary_coordinates":[[0,0],[1,1]]}`},
	}

	h := NewRegionHandler(nil, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/region", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.CreateRegion(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateRegion_InvalidIDIsNotFound(t *testing.T) {
	h := NewRegionHandler(nil, nil, nil)
	req := httptest.NewRequest(http.MethodPatch, "/region/not-a-uuid", strings.NewReader(`{}`))
	req = mux.SetURLVars(req, map[string]string{"id": "not-a-uuid"})
	rec := httptest.NewRecorder()

	h.UpdateRegion(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

const sampleKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Zones</name>
    <Placemark>
      <name>North</name>
      <ExtendedData>
        <Data name="city"><value>Pune</value></Data>
        <Data name="color"><value>#ff0000</value></Data>
      </ExtendedData>
      <Polygon>
        <outerBoundaryIs><LinearRing><coordinates>
          73.0,18.0,0 73.0,19.0,0 74.0,19.0,0 74.0,18.0,0 73.0,18.0,0
        </coordinates></LinearRing></outerBoundaryIs>
      </Polygon>
    </Placemark>
    <Placemark>
      <name>Depot</name>
      <Point><coordinates>73.5,18.5</coordinates></Point>
    </Placemark>
    <Folder>
      <name>South</name>
      <Placemark>
        <MultiGeometry>
          <Polygon><outerBoundaryIs><LinearRing><coordinates>0,0 0,1 1,1 0,0</coordinates></LinearRing></outerBoundaryIs></Polygon>
          <Polygon><outerBoundaryIs><LinearRing><coordinates>2,2 2,3 3,3 2,2</coordinates></LinearRing></outerBoundaryIs></Polygon>
        </MultiGeometry>
      </Placemark>
    </Folder>
  </Document>
</kml>`

func TestParseRegionDrafts_KML(t *testing.T) {
	drafts, err := ParseRegionDrafts([]byte(sampleKML))
	require.NoError(t, err)
	require.Len(t, drafts, 3)

	north := drafts[0]
	assert.Equal(t, "North", north.Name)
	assert.Equal(t, "Pune", north.City)
	assert.Equal(t, "#ff0000", north.Color)
	// KML is lng,lat; boundaries are lat,lng with the closing point dropped
	assert.Equal(t, [][2]float64{{18, 73}, {19, 73}, {19, 74}, {18, 74}}, north.BoundaryCoordinates)
	assert.Equal(t, [2]float64{18.5, 73.5}, north.Center)

	assert.Equal(t, "South #1", drafts[1].Name)
	assert.Equal(t, "South #2", drafts[2].Name)
	assert.Len(t, drafts[2].BoundaryCoordinates, 3)
}

func TestParseRegionDrafts_KMZ(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("doc.kml")
	require.NoError(t, err)
	_, err = w.Write([]byte(sampleKML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	drafts, err := ParseRegionDrafts(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, drafts, 3)
}

func TestParseRegionDrafts_Errors(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("readme.txt")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = ParseRegionDrafts(buf.Bytes())
	assert.ErrorIs(t, err, ErrNoKML)

	_, err = ParseRegionDrafts([]byte("<kml><Document>"))
	assert.Error(t, err)

	degenerate := `<kml><Document><Placemark><name>tiny</name><Polygon><outerBoundaryIs><LinearRing>
		<coordinates>0,0 1,1 0,0</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark></Document></kml>`
	_, err = ParseRegionDrafts([]byte(degenerate))
	assert.ErrorIs(t, err, utils.ErrInvalidGeometry)

	badNumber := `<kml><Document><Placemark><Polygon><outerBoundaryIs><LinearRing>
		<coordinates>a,0 1,1 1,0</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark></Document></kml>`
	_, err = ParseRegionDrafts([]byte(badNumber))
	assert.Error(t, err)
}

func TestBuildRegionWorkbook(t *testing.T) {
	id := uuid.New()
	regions := []models.Region{
		{
			ID:        id,
			Name:      "Central",
			City:      "Bengaluru",
			Country:   "India",
			Boundary:  datatypes.JSON(`"[[0,0],[0,1],[1,1]]"`),
			CenterLat: 0.3,
			CenterLng: 0.6,
			Timezone:  "Asia/Kolkata",
			IsActive:  true,
		},
	}

	f, err := buildRegionWorkbook(regions)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{regionSheet}, f.GetSheetList())

	rows, err := f.GetRows(regionSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Boundary", rows[0][len(regionColumns)-1])
	assert.Equal(t, id.String(), rows[1][0])
	assert.Equal(t, "Central", rows[1][1])
	assert.Equal(t, "3", rows[1][8])
	// legacy string boundaries are exported in canonical form
	assert.Equal(t, "[[0,0],[0,1],[1,1]]", rows[1][9])
}

type brokenWriter struct {
	header http.Header
	status int
}

func (b *brokenWriter) Header() http.Header {
	if b.header == nil {
		b.header = http.Header{}
	}
	return b.header
}

func (b *brokenWriter) WriteHeader(status int) { b.status = status }

func (b *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestResponseWriteFailuresAreLogged(t *testing.T) {
	var logs bytes.Buffer
	h := NewRegionHandler(nil, nil, slog.New(slog.NewTextHandler(&logs, nil)))

	w := &brokenWriter{}
	h.writeJSON(w, http.StatusCreated, models.RegionCreatedResponse{RegionID: "r1"})
	assert.Equal(t, http.StatusCreated, w.status)
	assert.Contains(t, logs.String(), "failed to write response")
	assert.Contains(t, logs.String(), "connection reset")

	logs.Reset()
	w = &brokenWriter{}
	h.writeAttachment(w, "regions.xlsx", []byte("xlsx"))
	assert.Equal(t, http.StatusOK, w.status)
	assert.Equal(t, "4", w.Header().Get("Content-Length"))
	assert.Contains(t, logs.String(), "failed to write region export")
}
