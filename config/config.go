package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB is the region service database handle, set by Connect
var DB *gorm.DB

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	RegionService RegionServiceConfig `mapstructure:"regionservice"`
	Geocode       GeocodeConfig       `mapstructure:"geocode"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// DatabaseConfig holds the postgres connection string
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// AuthConfig holds the JWT signing secret shared by the service and its clients
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwtsecret"`
	TokenTTL  time.Duration `mapstructure:"tokenttl"`
}

// RegionServiceConfig tells clients where the region service lives
type RegionServiceConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// GeocodeConfig configures reverse geocoding
type GeocodeConfig struct {
	NominatimURL string        `mapstructure:"nominatimurl"`
	UserAgent    string        `mapstructure:"useragent"`
	CacheTTL     time.Duration `mapstructure:"cachettl"`
}

// RedisConfig configures the geocode cache; an empty Addr disables it
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load reads .env, an optional config file and GEOFENCE_* environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment variables")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.dsn", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttl", 24*time.Hour)
	v.SetDefault("regionservice.url", "http://localhost:8080/api/v1")
	v.SetDefault("regionservice.token", "")
	v.SetDefault("geocode.nominatimurl", "https://nominatim.openstreetmap.org/reverse")
	v.SetDefault("geocode.useragent", "geofence-editor/1.0")
	v.SetDefault("geocode.cachettl", 7*24*time.Hour)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// GEOFENCE_DATABASE_DSN overrides database.dsn, and so on
	v.SetEnvPrefix("GEOFENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// GetServerAddr returns the server address in the format ":port"
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// NewLogger creates a new slog.Logger based on the configuration
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(c.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// Connect opens the region service database and stores it in DB
func Connect(cfg *Config) error {
	if cfg.Database.DSN == "" {
		return errors.New("database DSN is not configured (GEOFENCE_DATABASE_DSN)")
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	DB = db
	return nil
}
