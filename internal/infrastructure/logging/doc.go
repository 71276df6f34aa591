// Package logging is the shared structured logger for the bridge and
// the Fully relay.
//
// Both processes log through slog with a service and version attribute
// on every line, JSON in production and text during development. Level
// and destination come from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	log := logging.New(cfg.Logging, "bridge", version)
//	log.Info("mqtt connected", "broker", cfg.MQTT.Broker.Host)
//	log.Error("approve failed", "device_id", id, "error", err)
//
// Device API keys and MQTT credentials never go into log attributes;
// log a prefix when correlation is needed.
package logging
