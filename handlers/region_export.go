package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"p9e.in/geofence/models"
	"p9e.in/geofence/utils"
)

const regionSheet = "Regions"

var regionColumns = []struct {
	label string
	width float64
}{
	{"ID", 38},
	{"Name", 24},
	{"City", 18},
	{"Country", 18},
	{"Center Lat", 14},
	{"Center Lng", 14},
	{"Timezone", 20},
	{"Active", 10},
	{"Vertices", 10},
	{"Boundary", 60},
}

// buildRegionWorkbook renders regions as a single-sheet workbook
func buildRegionWorkbook(regions []models.Region) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(regionSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, col := range regionColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(regionSheet, cell, col.label)
		f.SetCellStyle(regionSheet, cell, cell, headerStyle)
		name, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(regionSheet, name, name, col.width)
	}

	for rowIdx, r := range regions {
		vertices := 0
		boundary := string(r.Boundary)
		if parsed, err := utils.ParseBoundary(r.Boundary); err == nil {
			vertices = len(parsed)
			boundary = string(utils.EncodeBoundary(parsed))
		}

		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		row := []interface{}{
			r.ID.String(), r.Name, r.City, r.Country,
			r.CenterLat, r.CenterLng, r.Timezone, r.IsActive,
			vertices, boundary,
		}
		if err := f.SetSheetRow(regionSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	f.SetPanes(regionSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	return f, nil
}

// ExportRegions downloads all regions as an xlsx workbook
func (h *RegionHandler) ExportRegions(w http.ResponseWriter, r *http.Request) {
	var regions []models.Region
	if err := h.db.Order("name asc").Find(&regions).Error; err != nil {
		h.logger.Error("failed to fetch regions for export", "error", err)
		http.Error(w, "failed to fetch regions", http.StatusInternalServerError)
		return
	}

	f, err := buildRegionWorkbook(regions)
	if err != nil {
		http.Error(w, "failed to generate Excel file", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	buffer, err := f.WriteToBuffer()
	if err != nil {
		http.Error(w, "failed to write Excel file", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("regions_%s.xlsx", time.Now().Format("20060102_150405"))
	h.writeAttachment(w, filename, buffer.Bytes())
}

// writeAttachment sends data as an xlsx download
func (h *RegionHandler) writeAttachment(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("failed to write region export", "file", filename, "bytes", len(data), "error", err)
	}
}
