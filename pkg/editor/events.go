package editor

import "p9e.in/geofence/utils"

// MapEvent is a raw map interaction translated into editor terms:
// one of Click, DragMove or DragEnd.
type MapEvent interface {
	isMapEvent()
}

// Click is a single tap or click on the map
type Click struct {
	Point utils.Coordinate
}

// DragMove reports an intermediate position of a dragged vertex
type DragMove struct {
	Index int
	Point utils.Coordinate
}

// DragEnd reports where a dragged vertex was released
type DragEnd struct {
	Index int
	Point utils.Coordinate
}

func (Click) isMapEvent()    {}
func (DragMove) isMapEvent() {}
func (DragEnd) isMapEvent()  {}
