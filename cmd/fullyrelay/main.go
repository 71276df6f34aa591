// Infoscreen Fully Relay - LAN companion for Fully Kiosk tablets
//
// This is the main entry point for the relay process. It runs on the
// same network segment as the tablets, learns their addresses from
// deviceInfo broadcasts, and executes bridge commands against the Fully
// Kiosk remote admin HTTP interface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ufitech/infoscreen-bridge/internal/fullyrelay"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/config"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/logging"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// relayClientSuffix distinguishes the relay's broker session from the
// bridge's when both run from the same config file.
const relayClientSuffix = "-relay"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting fully relay", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, "fullyrelay", version)

	// Load the discovery registry
	registry := fullyrelay.NewRegistry(cfg.Relay)
	if err := registry.Load(); err != nil {
		return fmt.Errorf("loading device registry: %w", err)
	}
	log.Info("device registry loaded",
		"state_file", cfg.Relay.StateFile,
		"known_devices", registry.Count(),
	)

	// Connect to MQTT with a Last Will so the bridge sees the relay
	// drop if this process dies uncleanly.
	cfg.MQTT.Broker.ClientID += relayClientSuffix
	topics := mqtt.Topics{}
	mqttClient, err := mqtt.ConnectWithWill(cfg.MQTT,
		topics.FullyRelayStatus(), `{"status":"offline"}`)
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
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

	// Start the relay
	relay := fullyrelay.NewRelay(mqttClient, registry, fullyrelay.NewClient(cfg.Relay), log)
	if err := relay.Start(ctx); err != nil {
		return fmt.Errorf("starting relay: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("fully relay stopped")
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
