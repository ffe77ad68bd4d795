// Device Inventory - tracks lab equipment issued to and returned by staff.
//
// This is the main entry point. It wires the SQLite store, the device
// registry, authentication, the optional MQTT and InfluxDB integrations
// and the HTTP API, then waits for SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/device-inventory/internal/api"
	"github.com/nerrad567/device-inventory/internal/auth"
	"github.com/nerrad567/device-inventory/internal/device"
	"github.com/nerrad567/device-inventory/internal/infrastructure/config"
	"github.com/nerrad567/device-inventory/internal/infrastructure/database"
	"github.com/nerrad567/device-inventory/internal/infrastructure/influxdb"
	"github.com/nerrad567/device-inventory/internal/infrastructure/logging"
	"github.com/nerrad567/device-inventory/internal/infrastructure/mqtt"
	"github.com/nerrad567/device-inventory/internal/metrics"
	"github.com/nerrad567/device-inventory/internal/notify"
	"github.com/nerrad567/device-inventory/migrations"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting device inventory",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	if v, verErr := db.SchemaVersion(ctx); verErr == nil {
		log.Info("database migrations complete", "schema_version", v)
	}

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log)

	authSvc, err := auth.NewService(auth.NewUserRepository(db.DB), auth.NewRevocationRepository(db.DB), auth.Config{
		Secret:   cfg.Security.JWT.Secret,
		TokenTTL: cfg.AccessTokenTTL(),
	})
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}
	authSvc.SetLogger(log)

	if b := cfg.Security.Bootstrap; b.Username != "" {
		if _, bootErr := authSvc.EnsureBootstrapUser(ctx, b.Username, b.Password); bootErr != nil {
			return fmt.Errorf("bootstrapping user: %w", bootErr)
		}
	}

	m := metrics.New()
	components := make(map[string]api.HealthChecker)

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	sinks := []notify.Sink{
		notify.NewHubSink(hub),
		notify.NewMetricsSink(m, registry),
	}

	// Connect to MQTT broker (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
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

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		sinks = append(sinks, notify.NewMQTTSink(mqttClient))
		components["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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

		sinks = append(sinks, notify.NewInfluxSink(influxClient, registry))
		components["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	dispatcher := notify.NewDispatcher(notify.DefaultQueueSize, sinks...)
	dispatcher.SetLogger(log)
	dispatcher.SetOnDrop(m.EventDropped)
	// Only the deferred Stop ends the worker; writes committed during the
	// API server drain still reach the sinks.
	dispatcher.Start(context.WithoutCancel(ctx))
	defer func() {
		log.Info("stopping event dispatcher")
		dispatcher.Stop()
	}()
	registry.Subscribe(dispatcher.Listener())

	// Seed the inventory gauges before the first change arrives.
	if stats, statsErr := registry.Stats(ctx); statsErr == nil {
		m.SetInventory(stats.TotalDevices, stats.AvailableDevices, stats.IssuedDevices)
		log.Info("device registry initialised", "devices", stats.TotalDevices)
	}

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Registry:    registry,
		Auth:        authSvc,
		Metrics:     m,
		Database:    db,
		Components:  components,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, components); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, dispatcher (drains
	// queued events), InfluxDB, MQTT, database.

	log.Info("device inventory stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses INVENTORY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("INVENTORY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the database and every enabled integration.
func healthCheck(ctx context.Context, db api.HealthChecker, components map[string]api.HealthChecker) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	for name, c := range components {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}
