package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"p9e.in/geofence/pkg/geocode"
	"p9e.in/geofence/pkg/regionstore"
	"p9e.in/geofence/utils"
)

// PlaceResolver labels a computed centroid with country, city and timezone
type PlaceResolver interface {
	Resolve(ctx context.Context, point utils.Coordinate) (geocode.Place, error)
}

// RegionMeta holds the operator chosen fields applied when finishing
type RegionMeta struct {
	Name  string
	Color string
}

// State is a snapshot of the machine
type State struct {
	Mode             Mode
	Boundary         []utils.Coordinate
	Center           *utils.Coordinate
	Place            geocode.Place
	SelectedRegionID string
	Resolving        bool
}

// Machine is the drawing and editing state machine. Events are serialized by
// an internal mutex that is released while network calls are in flight; their
// answers are applied only if the session that issued them is still current.
type Machine struct {
	store    *regionstore.Store
	resolver PlaceResolver
	view     View
	notifier Notifier
	logger   *slog.Logger

	mu         sync.Mutex
	mode       Mode
	session    uint64
	boundary   []utils.Coordinate
	center     *utils.Coordinate
	place      geocode.Place
	resolving  bool
	selectedID string
}

// Option configures a Machine
type Option func(*Machine)

// WithView sets the map surface receiving scenes and inspections
func WithView(v View) Option {
	return func(m *Machine) { m.view = v }
}

// WithNotifier sets the receiver of operator notifications
func WithNotifier(n Notifier) Option {
	return func(m *Machine) { m.notifier = n }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// New creates an Idle machine over store, resolving centroids with resolver
func New(store *regionstore.Store, resolver PlaceResolver, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		resolver: resolver,
		view:     nopView{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = LogNotifier{Logger: m.logger}
	}
	return m
}

// State returns a copy of the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		Mode:             m.mode,
		Boundary:         append([]utils.Coordinate(nil), m.boundary...),
		Place:            m.place,
		SelectedRegionID: m.selectedID,
		Resolving:        m.resolving,
	}
	if m.center != nil {
		c := *m.center
		s.Center = &c
	}
	return s
}

// StartDrawing enters Drawing with an empty boundary. It is only valid from
// Idle; an unfinished drawing must be finished or cancelled first.
func (m *Machine) StartDrawing() error {
	m.mu.Lock()
	if m.mode != ModeIdle {
		m.mu.Unlock()
		return m.reject(OpDraw, ErrModeConflict)
	}
	m.resetDrawing()
	m.mode = ModeDrawing
	m.session++
	m.mu.Unlock()

	m.render()
	return nil
}

// resetDrawing clears in-progress geometry; callers hold mu
func (m *Machine) resetDrawing() {
	m.boundary = nil
	m.center = nil
	m.place = geocode.Place{}
	m.resolving = false
}

// ComputeCenter computes the centroid of the in-progress boundary and resolves
// it to a place. The center is set only once resolution succeeds.
func (m *Machine) ComputeCenter(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.mode != ModeDrawing:
		m.mu.Unlock()
		return m.reject(OpComputeCenter, ErrWrongMode)
	case len(m.boundary) < utils.MinBoundaryPoints:
		n := len(m.boundary)
		m.mu.Unlock()
		return m.reject(OpComputeCenter, fmt.Errorf("%w: at least %d points are needed, have %d",
			utils.ErrInvalidGeometry, utils.MinBoundaryPoints, n))
	case m.center != nil:
		m.mu.Unlock()
		return m.reject(OpComputeCenter, ErrCenterAlreadySet)
	case m.resolving:
		m.mu.Unlock()
		return m.reject(OpComputeCenter, ErrCenterPending)
	}

	centroid, err := utils.CalculatePolygonCenter(m.boundary)
	if err != nil {
		m.mu.Unlock()
		return m.reject(OpComputeCenter, err)
	}
	session := m.session
	m.resolving = true
	m.mu.Unlock()
	m.render()

	place, resolveErr := m.resolver.Resolve(ctx, centroid)

	m.mu.Lock()
	if m.session != session || m.mode != ModeDrawing {
		m.mu.Unlock()
		m.logger.Debug("discarding stale center resolution", "session", session)
		return ErrStaleResult
	}
	m.resolving = false
	if resolveErr != nil {
		m.mu.Unlock()
		m.notify(Notification{Kind: KindError, Op: OpComputeCenter, Message: "could not resolve the zone location", Err: resolveErr})
		m.render()
		return resolveErr
	}
	m.center = &centroid
	m.place = place
	m.mu.Unlock()

	m.notify(Notification{Kind: KindSuccess, Op: OpComputeCenter, Message: fmt.Sprintf("center resolved to %s, %s", place.City, place.Country)})
	m.render()
	return nil
}

// StartEditing selects region id for editing. It is only valid from Idle, so
// local edits of a previous selection are always sent by Finish first.
func (m *Machine) StartEditing(id string) error {
	m.mu.Lock()
	if m.mode != ModeIdle {
		m.mu.Unlock()
		return m.reject(OpEdit, ErrModeConflict)
	}
	if _, ok := m.store.Region(id); !ok {
		m.mu.Unlock()
		return m.reject(OpEdit, fmt.Errorf("%w: %s", regionstore.ErrRegionNotFound, id))
	}
	m.mode = ModeEditing
	m.selectedID = id
	m.session++
	m.mu.Unlock()

	m.render()
	return nil
}

// SetActive toggles the active flag of the selected region locally; it is
// persisted by Finish.
func (m *Machine) SetActive(active bool) error {
	m.mu.Lock()
	if m.mode != ModeEditing {
		m.mu.Unlock()
		return m.reject(OpEdit, ErrWrongMode)
	}
	err := m.store.SetActive(m.selectedID, active)
	m.mu.Unlock()

	if err != nil {
		return m.reject(OpEdit, err)
	}
	m.render()
	return nil
}

// Dispatch routes a map event according to the current mode
func (m *Machine) Dispatch(ctx context.Context, ev MapEvent) error {
	switch e := ev.(type) {
	case Click:
		return m.click(ctx, e.Point)
	case DragMove:
		return m.dragVertex(e.Index, e.Point)
	case DragEnd:
		return m.dragVertex(e.Index, e.Point)
	default:
		return fmt.Errorf("unsupported map event %T", ev)
	}
}

func (m *Machine) click(ctx context.Context, point utils.Coordinate) error {
	m.mu.Lock()
	switch m.mode {
	case ModeDrawing:
		// the center being resolved is the centroid of the current boundary
		if m.resolving {
			m.mu.Unlock()
			return m.reject(OpDraw, ErrCenterPending)
		}
		m.boundary = append(m.boundary, point)
		if m.center != nil {
			// a new vertex invalidates the computed center
			m.center = nil
			m.place = geocode.Place{}
		}
		m.mu.Unlock()
		m.render()
		return nil

	case ModeEditing:
		region, ok := m.store.Region(m.selectedID)
		if !ok {
			m.mu.Unlock()
			return m.reject(OpEdit, fmt.Errorf("%w: %s", regionstore.ErrRegionNotFound, m.selectedID))
		}
		index := utils.NearestEdgeInsertionIndex(point, region.Boundary)
		err := m.store.InsertVertex(region.ID, index, point)
		m.mu.Unlock()
		if err != nil {
			return m.reject(OpEdit, err)
		}
		m.render()
		return nil

	default:
		m.mu.Unlock()
		_, err := m.Inspect(ctx, point)
		return err
	}
}

func (m *Machine) dragVertex(index int, point utils.Coordinate) error {
	m.mu.Lock()
	if m.mode != ModeEditing {
		m.mu.Unlock()
		return m.reject(OpEdit, ErrWrongMode)
	}
	err := m.store.MoveVertex(m.selectedID, index, point)
	m.mu.Unlock()

	if err != nil {
		return m.reject(OpEdit, err)
	}
	m.render()
	return nil
}

// Inspect reports the first active region containing point and the place
// under it. It never mutates state; a geocoding failure only leaves Place nil.
func (m *Machine) Inspect(ctx context.Context, point utils.Coordinate) (Inspection, error) {
	inspection := Inspection{Point: point}
	if region, ok := m.store.Locate(point); ok {
		inspection.Region = &region
	}

	place, err := m.resolver.Resolve(ctx, point)
	if err != nil {
		m.logger.Warn("reverse geocoding failed for inspection", "lat", point.Lat, "lng", point.Lng, "error", err)
	} else {
		inspection.Place = &place
	}

	m.view.ShowInspection(inspection)
	return inspection, nil
}

// Finish leaves Drawing or Editing and returns to Idle.
//
// In Drawing the region is created when the boundary has enough points and a
// resolved center; otherwise the drawing is discarded as a local only save.
// In Editing the current boundary and metadata are sent as a full update.
func (m *Machine) Finish(ctx context.Context, meta RegionMeta) error {
	m.mu.Lock()
	switch m.mode {
	case ModeDrawing:
		return m.finishDrawing(ctx, meta)
	case ModeEditing:
		return m.finishEditing(ctx, meta)
	default:
		m.mu.Unlock()
		return m.reject(OpUpdate, ErrWrongMode)
	}
}

// finishDrawing is entered with mu held
func (m *Machine) finishDrawing(ctx context.Context, meta RegionMeta) error {
	if len(m.boundary) < utils.MinBoundaryPoints || m.center == nil {
		points := len(m.boundary)
		m.resetDrawing()
		m.mode = ModeIdle
		m.session++
		m.mu.Unlock()

		m.logger.Info("drawing finished without persistence", "points", points)
		m.notify(Notification{Kind: KindWarning, Op: OpLocalSave, Message: "zone saved locally only; draw at least 3 points and compute the center to persist it"})
		m.render()
		return nil
	}

	name := meta.Name
	if name == "" {
		name = m.place.City
	}
	draft := regionstore.Draft{
		Name:     name,
		City:     m.place.City,
		Country:  m.place.Country,
		Boundary: append([]utils.Coordinate(nil), m.boundary...),
		Center:   *m.center,
		Timezone: m.place.Timezone,
		Color:    meta.Color,
	}
	place := m.place
	m.resetDrawing()
	m.mode = ModeIdle
	m.session++
	session := m.session
	m.mu.Unlock()
	m.render()

	region, err := m.store.Create(ctx, draft)
	if err != nil {
		m.restoreDraft(session, draft, place)
		m.notify(Notification{Kind: KindError, Op: OpCreate, Message: "failed to save zone", Err: err})
		m.render()
		return err
	}

	m.notify(Notification{Kind: KindSuccess, Op: OpCreate, Message: fmt.Sprintf("zone %q saved", region.Name)})
	m.render()
	return nil
}

// restoreDraft puts a drawing whose create failed back into Drawing so it can
// be retried, unless the operator moved on in the meantime.
func (m *Machine) restoreDraft(session uint64, draft regionstore.Draft, place geocode.Place) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != session || m.mode != ModeIdle {
		return
	}
	center := draft.Center
	m.mode = ModeDrawing
	m.boundary = draft.Boundary
	m.center = &center
	m.place = place
}

// finishEditing is entered with mu held. The selection is cleared whatever the
// outcome of the update; local mutations are not rolled back on failure.
func (m *Machine) finishEditing(ctx context.Context, meta RegionMeta) error {
	id := m.selectedID
	m.selectedID = ""
	m.mode = ModeIdle
	m.session++

	if err := m.store.Rename(id, meta.Name, meta.Color); err != nil {
		m.mu.Unlock()
		m.render()
		return m.reject(OpUpdate, err)
	}
	region, ok := m.store.Region(id)
	m.mu.Unlock()
	m.render()

	if !ok {
		return m.reject(OpUpdate, fmt.Errorf("%w: %s", regionstore.ErrRegionNotFound, id))
	}

	if err := m.store.Update(ctx, id, regionstore.FullPatch(region)); err != nil {
		m.notify(Notification{Kind: KindError, Op: OpUpdate, Message: "failed to update zone", Err: err})
		return err
	}
	m.notify(Notification{Kind: KindSuccess, Op: OpUpdate, Message: fmt.Sprintf("zone %q updated", region.Name)})
	return nil
}

// Delete removes the selected region. The selection is cleared regardless of
// the outcome.
func (m *Machine) Delete(ctx context.Context) error {
	m.mu.Lock()
	if m.mode != ModeEditing {
		m.mu.Unlock()
		return m.reject(OpDelete, ErrWrongMode)
	}
	id := m.selectedID
	m.selectedID = ""
	m.mode = ModeIdle
	m.session++
	m.mu.Unlock()
	m.render()

	if err := m.store.Delete(ctx, id); err != nil {
		m.notify(Notification{Kind: KindError, Op: OpDelete, Message: "failed to delete zone", Err: err})
		return err
	}
	m.notify(Notification{Kind: KindSuccess, Op: OpDelete, Message: "zone deleted"})
	m.render()
	return nil
}

// Cancel abandons the current drawing or selection. Edits already applied to
// the selected region stay in place.
func (m *Machine) Cancel() {
	m.mu.Lock()
	if m.mode == ModeIdle {
		m.mu.Unlock()
		return
	}
	m.resetDrawing()
	m.selectedID = ""
	m.mode = ModeIdle
	m.session++
	m.mu.Unlock()

	m.render()
}

// reject reports a refused transition and returns err unchanged
func (m *Machine) reject(op string, err error) error {
	msg := "action not allowed"
	switch {
	case errors.Is(err, utils.ErrInvalidGeometry):
		msg = "invalid zone geometry"
	case errors.Is(err, regionstore.ErrRegionNotFound):
		msg = "zone not found"
	case errors.Is(err, ErrModeConflict):
		msg = "finish the current drawing or edit first"
	case errors.Is(err, ErrCenterPending):
		msg = "wait for the zone center to resolve"
	}
	m.notify(Notification{Kind: KindError, Op: op, Message: msg, Err: err})
	return err
}

func (m *Machine) notify(n Notification) {
	m.notifier.Notify(n)
}

// render snapshots the scene and hands it to the view outside the lock
func (m *Machine) render() {
	m.view.Render(m.Scene())
}

// Scene snapshots what the map should currently display
func (m *Machine) Scene() Scene {
	m.mu.Lock()
	defer m.mu.Unlock()

	scene := Scene{Mode: m.mode}
	for _, r := range m.store.Regions() {
		selected := m.mode == ModeEditing && r.ID == m.selectedID
		scene.Regions = append(scene.Regions, ScenePolygon{
			ID:       r.ID,
			Name:     r.Name,
			Color:    r.Color,
			Active:   r.IsActive,
			Selected: selected,
			Boundary: r.Boundary,
		})
		if selected {
			for i, v := range r.Boundary {
				scene.Vertices = append(scene.Vertices, VertexMarker{Index: i, Point: v})
			}
		}
	}

	if m.mode == ModeDrawing {
		scene.Draft = append([]utils.Coordinate(nil), m.boundary...)
		if m.center != nil {
			c := *m.center
			scene.Centroid = &c
		}
	}
	return scene
}
