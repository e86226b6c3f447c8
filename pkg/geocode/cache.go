package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"p9e.in/geofence/pkg/metrics"
)

// CachedGeocoder memoizes reverse lookups in redis.
// A nil client disables caching.
type CachedGeocoder struct {
	next   Geocoder
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedGeocoder wraps next with a redis cache
func NewCachedGeocoder(next Geocoder, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedGeocoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedGeocoder{next: next, client: client, ttl: ttl, logger: logger}
}

// OpenRedis opens a client for addr; an empty addr yields nil (caching off)
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// cacheKey rounds to ~1m so nearby clicks share an entry
func cacheKey(latitude, longitude float64) string {
	return fmt.Sprintf("geocode:%.5f:%.5f", latitude, longitude)
}

// Reverse answers from redis when possible and falls through to next otherwise.
// Redis failures are logged and never fail the lookup.
func (c *CachedGeocoder) Reverse(ctx context.Context, latitude, longitude float64) (Place, error) {
	if c.client == nil {
		return c.lookup(ctx, latitude, longitude)
	}

	key := cacheKey(latitude, longitude)
	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var place Place
		if jsonErr := json.Unmarshal([]byte(raw), &place); jsonErr == nil {
			metrics.GeocodeCacheHitsTotal.Inc()
			return place, nil
		}
		c.logger.Warn("discarding corrupt geocode cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("geocode cache read failed", "key", key, "error", err)
	}
	metrics.GeocodeCacheMissesTotal.Inc()

	place, err := c.lookup(ctx, latitude, longitude)
	if err != nil {
		return Place{}, err
	}

	if data, err := json.Marshal(place); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("geocode cache write failed", "key", key, "error", err)
		}
	}
	return place, nil
}

func (c *CachedGeocoder) lookup(ctx context.Context, latitude, longitude float64) (Place, error) {
	place, err := c.next.Reverse(ctx, latitude, longitude)
	if err != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return Place{}, err
	}
	metrics.GeocodeRequestsTotal.WithLabelValues("ok").Inc()
	return place, nil
}
