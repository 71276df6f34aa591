// Infoscreen Bridge - Device Telemetry & Command Plane
//
// This is the main entry point for the bridge process. It consumes every
// message the signage fleet publishes over MQTT, maintains the device
// catalogue and history in SQLite, answers provisioning requests, and
// serves the admin REST API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/ufitech/infoscreen-bridge/migrations"

	"github.com/ufitech/infoscreen-bridge/internal/api"
	"github.com/ufitech/infoscreen-bridge/internal/bridge"
	"github.com/ufitech/infoscreen-bridge/internal/customer"
	"github.com/ufitech/infoscreen-bridge/internal/device"
	"github.com/ufitech/infoscreen-bridge/internal/history"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/config"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/database"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/influxdb"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/logging"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	rollback := flag.Bool("rollback", false, "roll back the most recent schema migration and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *rollback {
		if err := runRollback(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runRollback undoes the latest applied migration. Meant for schema
// repair in the field; the bridge re-applies it on the next start.
func runRollback(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.MigrateDown(ctx); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	return nil
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting infoscreen bridge", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, "bridge", version)

	// Open database and apply migrations
	db, err := database.Open(database.Config{
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

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	deviceRepo := device.NewSQLiteRepository(db.DB)
	historyRepo := history.NewSQLiteRepository(db.DB)
	customerRepo := customer.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker. The will flips the retained status to
	// offline if the bridge dies without disconnecting cleanly.
	topics := mqtt.Topics{}
	mqttClient, err := mqtt.ConnectWithWill(cfg.MQTT,
		topics.BridgeStatus(), `{"status":"offline"}`)
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

	publishOnline := func() {
		if err := mqttClient.Publish(topics.BridgeStatus(), []byte(`{"status":"online"}`), 1, true); err != nil {
			log.Warn("failed to publish bridge status", "error", err)
		}
	}
	publishOnline()

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		publishOnline()
	})
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

	// Connect to InfluxDB (optional telemetry sink)
	var sink bridge.TelemetrySink
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sink = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Assemble the message plane
	reconciler := bridge.NewReconciler(
		deviceRepo, historyRepo, customerRepo,
		bridge.NewDeduper(), sink, cfg.Bridge, log,
	)
	commands := bridge.NewCommandRelay(deviceRepo, historyRepo, mqttClient, log)
	provisioner := bridge.NewProvisioner(deviceRepo, customerRepo, historyRepo, mqttClient, log)

	b := bridge.New(mqttClient, reconciler, provisioner, log)
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer b.Stop()

	// Start the admin API
	apiServer, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log,
		Devices:   deviceRepo,
		Secrets:   deviceRepo,
		History:   historyRepo,
		Customers: customerRepo,
		Commands:  commands,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("infoscreen bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses INFOSCREEN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("INFOSCREEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	return nil
}
