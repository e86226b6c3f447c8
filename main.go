package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"p9e.in/geofence/config"
	"p9e.in/geofence/handlers"
	"p9e.in/geofence/middleware"
	"p9e.in/geofence/pkg/editor"
	"p9e.in/geofence/pkg/geocode"
	"p9e.in/geofence/pkg/regionclient"
	"p9e.in/geofence/pkg/regionstore"
	"p9e.in/geofence/routes"
	"p9e.in/geofence/utils"
)

var (
	Version   = "dev"
	BuildTime = ""
)

var (
	tokenOperator string
	tokenRole     string
	locateLat     float64
	locateLng     float64
)

var rootCmd = &cobra.Command{
	Use:          "geofence",
	Short:        "Region service and geofence editor tooling",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the region service HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed operator token",
	RunE:  runToken,
}

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Report the active region and place under a coordinate",
	RunE:  runLocate,
}

var sceneCmd = &cobra.Command{
	Use:   "scene",
	Short: "Print the current regions as a GeoJSON feature collection",
	RunE:  runScene,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version:   %s\n", Version)
		fmt.Printf("BuildTime: %s\n", BuildTime)
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOperator, "operator", "", "Operator name placed in the token")
	tokenCmd.Flags().StringVar(&tokenRole, "role", middleware.RoleEditor, "Role: viewer, editor or admin")
	tokenCmd.MarkFlagRequired("operator")

	locateCmd.Flags().Float64Var(&locateLat, "lat", 0, "Latitude")
	locateCmd.Flags().Float64Var(&locateLng, "lng", 0, "Longitude")
	locateCmd.MarkFlagRequired("lat")
	locateCmd.MarkFlagRequired("lng")

	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd, locateCmd, sceneCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.Connect(cfg); err != nil {
		return err
	}
	if err := config.Migrations(config.DB); err != nil {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("jwt secret is not configured (GEOFENCE_AUTH_JWTSECRET)")
	}
	if err := config.Connect(cfg); err != nil {
		return err
	}
	if err := config.Migrations(config.DB); err != nil {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	tz, err := geocode.NewTimezoneFinder()
	if err != nil {
		logger.Warn("timezone lookup disabled", "error", err)
	}

	h := handlers.NewRegionHandler(config.DB, tz, logger)
	srv := &http.Server{
		Addr:              cfg.GetServerAddr(),
		Handler:           routes.RegisterRoutes(h, []byte(cfg.Auth.JWTSecret), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "version", Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	token, err := middleware.GenerateToken([]byte(cfg.Auth.JWTSecret), tokenOperator, tokenRole, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// newEditor loads the region collection from the configured region service
// and wires a Machine around it.
func newEditor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*editor.Machine, error) {
	client := regionclient.NewClient(cfg.RegionService.URL, cfg.RegionService.Token)
	store := regionstore.NewStore(client, logger)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}

	tz, err := geocode.NewTimezoneFinder()
	if err != nil {
		logger.Warn("timezone lookup disabled", "error", err)
	}
	geocoder := geocode.NewCachedGeocoder(
		geocode.NewNominatimClient(cfg.Geocode.NominatimURL, cfg.Geocode.UserAgent),
		geocode.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB),
		cfg.Geocode.CacheTTL,
		logger,
	)
	resolver := geocode.NewResolver(geocoder, tz, logger)

	return editor.New(store, resolver,
		editor.WithLogger(logger),
		editor.WithNotifier(editor.LogNotifier{Logger: logger}),
	), nil
}

func runLocate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := newEditor(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	point := utils.Coordinate{Lat: locateLat, Lng: locateLng}
	inspection, err := m.Inspect(cmd.Context(), point)
	if err != nil {
		return err
	}

	out := map[string]any{"point": point}
	if inspection.Region != nil {
		out["region"] = map[string]any{
			"id":       inspection.Region.ID,
			"name":     inspection.Region.Name,
			"timezone": inspection.Region.Timezone,
		}
	}
	if inspection.Place != nil {
		out["place"] = inspection.Place
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runScene(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := newEditor(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	data, err := m.Scene().FeatureCollection().MarshalJSON()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
