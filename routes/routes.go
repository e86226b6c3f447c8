package routes

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"p9e.in/geofence/handlers"
	"p9e.in/geofence/middleware"
	"p9e.in/geofence/pkg/metrics"
)

var editorRoles = []string{middleware.RoleEditor, middleware.RoleAdmin}

// RegisterRoutes sets up all region service routes
func RegisterRoutes(h *handlers.RegionHandler, jwtSecret []byte, logger *slog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// =====================================================
	// Protected API Routes (require JWT authentication)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.JWTMiddleware(jwtSecret))
	registerRegionRoutes(api, h)

	return middleware.CORS(middleware.RequestLogger(logger)(r))
}

func registerRegionRoutes(api *mux.Router, h *handlers.RegionHandler) {
	api.HandleFunc("/regions", h.ListRegions).Methods("GET")
	api.HandleFunc("/regions/export", h.ExportRegions).Methods("GET")

	api.Handle("/region", editorOnly(h.CreateRegion)).Methods("POST")
	api.Handle("/regions/import", editorOnly(h.ImportRegions)).Methods("POST")
	api.Handle("/region/{id}", editorOnly(h.UpdateRegion)).Methods("PATCH")
	api.Handle("/region/{id}", editorOnly(h.DeleteRegion)).Methods("DELETE")
}

func editorOnly(fn http.HandlerFunc) http.Handler {
	return middleware.RequireRole(editorRoles, fn)
}
