// Package config loads the YAML configuration shared by the bridge and
// the Fully relay.
//
// One file drives both binaries: broker address, SQLite path, HTTP
// listener, health thresholds and the optional InfluxDB sink. Values
// are read once at startup, environment variables override the file
// for anything secret (broker password, Fully password, JWT secret),
// and Load validates before either process starts talking to the
// broker.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
//
// Keep credentials out of the file in production; the env override
// names are listed next to each field in config.go.
package config
