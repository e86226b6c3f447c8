package editor

import (
	"log/slog"

	"p9e.in/geofence/pkg/geocode"
	"p9e.in/geofence/pkg/metrics"
	"p9e.in/geofence/pkg/regionstore"
	"p9e.in/geofence/utils"
)

// View is the map surface. It is called after every transition and must not
// call back into the Machine synchronously.
type View interface {
	Render(scene Scene)
	ShowInspection(inspection Inspection)
}

// Inspection is the answer to an Idle click
type Inspection struct {
	Point utils.Coordinate
	// Region is nil when the point is outside all active zones
	Region *regionstore.Region
	// Place is nil when reverse geocoding failed
	Place *geocode.Place
}

// NotificationKind distinguishes outcomes shown to the operator
type NotificationKind int

const (
	KindSuccess NotificationKind = iota
	KindWarning
	KindError
)

func (k NotificationKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindWarning:
		return "warning"
	default:
		return "error"
	}
}

// Operation names used in notifications
const (
	OpComputeCenter = "computeCenter"
	OpCreate        = "create"
	OpLocalSave     = "localSave"
	OpUpdate        = "update"
	OpDelete        = "delete"
	OpDraw          = "draw"
	OpEdit          = "edit"
)

// Notification reports the outcome of an operation without blocking the editor
type Notification struct {
	Kind    NotificationKind
	Op      string
	Message string
	Err     error
}

// Notifier receives operator facing notifications
type Notifier interface {
	Notify(n Notification)
}

type nopView struct{}

func (nopView) Render(Scene)               {}
func (nopView) ShowInspection(Inspection) {}

// LogNotifier writes notifications to a slog logger and counts them
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notification) {
	metrics.EditorNotificationsTotal.WithLabelValues(n.Op, n.Kind.String()).Inc()

	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch n.Kind {
	case KindError:
		logger.Error(n.Message, "op", n.Op, "error", n.Err)
	case KindWarning:
		logger.Warn(n.Message, "op", n.Op)
	default:
		logger.Info(n.Message, "op", n.Op)
	}
}
