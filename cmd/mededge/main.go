// MedEdge Treatment Core - Medical Device Coordination Platform
//
// This is the main entry point for the MedEdge coordination service. It
// runs at the treatment center edge and provides:
//   - Coordinated multi-device commands at treatment stations
//   - An auditable per-device command outcome trail
//   - Live telemetry ingestion and WebSocket streaming
//   - A REST API for clinical dashboards and nursing station UIs
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mededge/treatment-core/migrations"

	"github.com/mededge/treatment-core/internal/api"
	"github.com/mededge/treatment-core/internal/auth"
	"github.com/mededge/treatment-core/internal/coordination"
	"github.com/mededge/treatment-core/internal/device"
	"github.com/mededge/treatment-core/internal/infrastructure/config"
	"github.com/mededge/treatment-core/internal/infrastructure/database"
	"github.com/mededge/treatment-core/internal/infrastructure/influxdb"
	"github.com/mededge/treatment-core/internal/infrastructure/logging"
	"github.com/mededge/treatment-core/internal/infrastructure/mqtt"
	"github.com/mededge/treatment-core/internal/station"
	"github.com/mededge/treatment-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit // linear startup sequence: each component connects, logs, defers its close
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting MedEdge Treatment Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry
	deviceRepo := device.NewSQLiteRepository(db.DB)
	deviceRegistry := device.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	// Station directory and user store
	stationRepo := station.NewSQLiteRepository(db.DB)
	userRepo := auth.NewUserRepository(db.DB)

	// Seed the initial admin account on first boot
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Station command coordinator
	coordinator := coordination.NewCoordinator(
		coordination.NewSQLiteCommandRepository(db.DB),
		coordination.NewSQLiteGroupRepository(db.DB),
		registryDirectory{registry: deviceRegistry},
		stationDirectory{repo: stationRepo},
		deadlinePublisher{
			client:  mqttClient,
			timeout: time.Duration(cfg.Coordination.PublishTimeoutMS) * time.Millisecond,
		},
		log,
		coordination.Config{
			DispatchPause: time.Duration(cfg.Coordination.DispatchPauseMS) * time.Millisecond,
		},
	)
	defer func() {
		log.Info("waiting for in-flight command dispatches")
		coordinator.Close()
	}()
	log.Info("coordinator initialised", "dispatch_pause_ms", cfg.Coordination.DispatchPauseMS)

	// WebSocket hub, shared between the telemetry ingestor and the API
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Telemetry ingestor
	var recorder telemetry.Recorder
	if influxClient != nil {
		recorder = influxClient
	}
	ingestor := telemetry.NewIngestor(
		mqttClient,
		telemetryDirectory{registry: deviceRegistry, stations: stationRepo},
		recorder,
		hub,
		log,
	)
	if startErr := ingestor.Start(); startErr != nil {
		return fmt.Errorf("starting telemetry ingestor: %w", startErr)
	}
	log.Info("telemetry ingestor started")

	// API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Registry:    deviceRegistry,
		Stations:    stationRepo,
		Coordinator: coordinator,
		Users:       userRepo,
		MQTT:        mqttClient,
		Influx:      influxClient,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops accepting requests)
	// 2. Coordinator (drains in-flight dispatches)
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("MedEdge Treatment Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MEDEDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MEDEDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// ─────────────────────────── Adapters ───────────────────────────

// deadlinePublisher bounds every command publish with a per-message
// deadline so a stalled broker cannot hold a station dispatch open.
type deadlinePublisher struct {
	client  *mqtt.Client
	timeout time.Duration
}

func (p deadlinePublisher) IsConnected() bool {
	return p.client.IsConnected()
}

func (p deadlinePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return p.client.PublishWithDeadline(topic, payload, qos, retained, p.timeout)
}

// registryDirectory adapts the device registry to the coordinator's
// device lookup interface.
type registryDirectory struct {
	registry *device.Registry
}

func (d registryDirectory) GetDevice(ctx context.Context, id string) (coordination.DeviceInfo, error) {
	dev, err := d.registry.GetDevice(ctx, id)
	if err != nil {
		return coordination.DeviceInfo{}, err
	}
	return coordination.DeviceInfo{ID: dev.ID, ExternalDeviceID: dev.ExternalDeviceID, StationID: dev.StationID}, nil
}

func (d registryDirectory) GetDevicesAtStation(ctx context.Context, stationID string) ([]coordination.DeviceInfo, error) {
	devices, err := d.registry.GetDevicesByStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	infos := make([]coordination.DeviceInfo, len(devices))
	for i, dev := range devices {
		infos[i] = coordination.DeviceInfo{ID: dev.ID, ExternalDeviceID: dev.ExternalDeviceID, StationID: dev.StationID}
	}
	return infos, nil
}

// stationDirectory adapts the station repository to the coordinator's
// existence check.
type stationDirectory struct {
	repo station.Repository
}

func (d stationDirectory) StationExists(ctx context.Context, id string) (bool, error) {
	if _, err := d.repo.GetStation(ctx, id); err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// telemetryDirectory resolves the external device ID carried on
// telemetry topics to the registered device and its station's area.
type telemetryDirectory struct {
	registry *device.Registry
	stations station.Repository
}

func (d telemetryDirectory) Resolve(ctx context.Context, externalDeviceID string) (telemetry.DeviceInfo, error) {
	dev, err := d.registry.GetDeviceByExternalID(ctx, externalDeviceID)
	if err != nil {
		return telemetry.DeviceInfo{}, err
	}
	info := telemetry.DeviceInfo{ID: dev.ID}
	if dev.StationID == nil {
		return info, nil
	}
	info.StationID = *dev.StationID
	st, err := d.stations.GetStation(ctx, *dev.StationID)
	if err != nil {
		if errors.Is(err, station.ErrStationNotFound) {
			return info, nil
		}
		return telemetry.DeviceInfo{}, err
	}
	info.AreaID = st.AreaID
	return info, nil
}
