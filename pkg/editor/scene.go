package editor

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"p9e.in/geofence/utils"
)

// ScenePolygon is a committed region as drawn on the map
type ScenePolygon struct {
	ID       string
	Name     string
	Color    string
	Active   bool
	Selected bool
	Boundary []utils.Coordinate
}

// VertexMarker is a draggable handle on the selected region
type VertexMarker struct {
	Index int
	Point utils.Coordinate
}

// Scene is everything the map layer needs to draw the editor state
type Scene struct {
	Mode     Mode
	Regions  []ScenePolygon
	Draft    []utils.Coordinate
	Centroid *utils.Coordinate
	Vertices []VertexMarker
}

// FeatureCollection renders the scene as GeoJSON. Features carry a "kind"
// property: region, draft, centroid or vertex.
func (s Scene) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, r := range s.Regions {
		f := geojson.NewFeature(orb.Polygon{utils.BoundaryRing(r.Boundary)})
		f.ID = r.ID
		f.Properties["kind"] = "region"
		f.Properties["name"] = r.Name
		f.Properties["color"] = r.Color
		f.Properties["active"] = r.Active
		f.Properties["selected"] = r.Selected
		fc.Append(f)
	}

	if len(s.Draft) > 0 {
		line := make(orb.LineString, 0, len(s.Draft))
		for _, c := range s.Draft {
			line = append(line, orb.Point{c.Lng, c.Lat})
		}
		f := geojson.NewFeature(line)
		f.Properties["kind"] = "draft"
		f.Properties["points"] = len(s.Draft)
		fc.Append(f)
	}

	if s.Centroid != nil {
		f := geojson.NewFeature(orb.Point{s.Centroid.Lng, s.Centroid.Lat})
		f.Properties["kind"] = "centroid"
		fc.Append(f)
	}

	for _, v := range s.Vertices {
		f := geojson.NewFeature(orb.Point{v.Point.Lng, v.Point.Lat})
		f.Properties["kind"] = "vertex"
		f.Properties["index"] = v.Index
		fc.Append(f)
	}

	return fc
}
