package config

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("GEOFENCE_SERVER_PORT", "9090")
	t.Setenv("GEOFENCE_REDIS_ADDR", "localhost:6379")
	t.Setenv("GEOFENCE_GEOCODE_CACHETTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.GetServerAddr() != ":9090" {
		t.Errorf("server addr = %q, expected :9090", cfg.GetServerAddr())
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Geocode.CacheTTL != time.Hour {
		t.Errorf("cache ttl = %v, expected 1h", cfg.Geocode.CacheTTL)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("token ttl = %v, expected default 24h", cfg.Auth.TokenTTL)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{Log: LogConfig{Level: tt.level, Format: "json"}}
			logger := cfg.NewLogger()
			if !logger.Enabled(context.Background(), tt.expected) {
				t.Errorf("level %s should be enabled", tt.expected)
			}
			if tt.expected > slog.LevelDebug && logger.Enabled(context.Background(), tt.expected-1) {
				t.Errorf("level below %s should be disabled", tt.expected)
			}
		})
	}
}

func TestConnect_RequiresDSN(t *testing.T) {
	if err := Connect(&Config{}); err == nil {
		t.Error("expected error for empty DSN")
	}
}
