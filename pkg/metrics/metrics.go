package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_http_requests_total",
		Help: "Region service requests by route and status",
	}, []string{"method", "route", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geofence_http_request_duration_seconds",
		Help:    "Region service request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	GeocodeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_geocode_requests_total",
		Help: "Reverse geocoding lookups by result",
	}, []string{"result"})
	GeocodeCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geofence_geocode_cache_hits_total",
		Help: "Reverse geocoding answers served from redis",
	})
	GeocodeCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geofence_geocode_cache_misses_total",
		Help: "Reverse geocoding lookups not found in redis",
	})
	EditorNotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_editor_notifications_total",
		Help: "Editor outcomes by operation and kind",
	}, []string{"op", "kind"})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(GeocodeCacheHitsTotal)
	prometheus.MustRegister(GeocodeCacheMissesTotal)
	prometheus.MustRegister(EditorNotificationsTotal)
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
