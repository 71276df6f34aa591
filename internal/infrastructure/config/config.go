package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the infoscreen bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Relay    RelayConfig    `yaml:"relay"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains settings for the admin HTTP API.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// JWTSecret signs admin bearer tokens. Required; set via
	// INFOSCREEN_API_JWT_SECRET in production.
	JWTSecret string `yaml:"jwt_secret"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains the optional telemetry time-series sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// BridgeConfig contains tunables for the telemetry reconciler.
type BridgeConfig struct {
	// AlertCooldownMinutes is the minimum gap between repeated threshold
	// alerts for the same device and condition.
	AlertCooldownMinutes int `yaml:"alert_cooldown_minutes"`

	// SummaryIntervalHours is the period between neutral per-device
	// telemetry summary log entries.
	SummaryIntervalHours int `yaml:"summary_interval_hours"`

	TempHighC     float64 `yaml:"temp_high_c"`
	TempCriticalC float64 `yaml:"temp_critical_c"`

	MemHighPct     float64 `yaml:"mem_high_pct"`
	MemCriticalPct float64 `yaml:"mem_critical_pct"`
}

// AlertCooldown returns the threshold-alert cooldown as a Duration.
func (b BridgeConfig) AlertCooldown() time.Duration {
	return time.Duration(b.AlertCooldownMinutes) * time.Minute
}

// SummaryInterval returns the telemetry summary period as a Duration.
func (b BridgeConfig) SummaryInterval() time.Duration {
	return time.Duration(b.SummaryIntervalHours) * time.Hour
}

// RelayConfig contains settings for the Fully Kiosk relay process.
type RelayConfig struct {
	// StateFile is where the discovery registry persists known devices.
	StateFile string `yaml:"state_file"`

	// ControlPort is the Fully Kiosk remote-admin port on each device.
	ControlPort int `yaml:"control_port"`

	// DefaultPassword is assigned to newly discovered devices until a
	// per-device secret arrives in a command payload.
	DefaultPassword string `yaml:"default_password"`

	// RequestTimeout bounds ordinary unicast calls (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// ScreenshotTimeout bounds binary media transfers (seconds).
	ScreenshotTimeout int `yaml:"screenshot_timeout"`
}

// GetRequestTimeout returns the unicast request timeout as a Duration.
func (r RelayConfig) GetRequestTimeout() time.Duration {
	return time.Duration(r.RequestTimeout) * time.Second
}

// GetScreenshotTimeout returns the media transfer timeout as a Duration.
func (r RelayConfig) GetScreenshotTimeout() time.Duration {
	return time.Duration(r.ScreenshotTimeout) * time.Second
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: INFOSCREEN_SECTION_KEY
// For example: INFOSCREEN_DATABASE_PATH, INFOSCREEN_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/infoscreen.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "infoscreen-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Bridge: BridgeConfig{
			AlertCooldownMinutes: 15,
			SummaryIntervalHours: 1,
			TempHighC:            70,
			TempCriticalC:        80,
			MemHighPct:           90,
			MemCriticalPct:       95,
		},
		Relay: RelayConfig{
			StateFile:         "./data/fully-devices.json",
			ControlPort:       2323,
			DefaultPassword:   "1227",
			RequestTimeout:    10,
			ScreenshotTimeout: 30,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: INFOSCREEN_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("INFOSCREEN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("INFOSCREEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("INFOSCREEN_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("INFOSCREEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("INFOSCREEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("INFOSCREEN_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("INFOSCREEN_API_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}

	// InfluxDB
	if v := os.Getenv("INFOSCREEN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Relay
	if v := os.Getenv("INFOSCREEN_RELAY_STATE_FILE"); v != "" {
		cfg.Relay.StateFile = v
	}
	if v := os.Getenv("INFOSCREEN_RELAY_DEFAULT_PASSWORD"); v != "" {
		cfg.Relay.DefaultPassword = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Bearer tokens protect device command endpoints; an empty or short
	// secret would let anyone drive the fleet.
	const minJWTSecretLength = 32
	if c.API.JWTSecret == "" {
		errs = append(errs, "api.jwt_secret is required (set INFOSCREEN_API_JWT_SECRET environment variable)")
	} else if len(c.API.JWTSecret) < minJWTSecretLength {
		errs = append(errs, "api.jwt_secret must be at least 32 characters")
	}

	if c.Bridge.AlertCooldownMinutes <= 0 {
		errs = append(errs, "bridge.alert_cooldown_minutes must be positive")
	}
	if c.Bridge.SummaryIntervalHours <= 0 {
		errs = append(errs, "bridge.summary_interval_hours must be positive")
	}
	if c.Bridge.TempCriticalC < c.Bridge.TempHighC {
		errs = append(errs, "bridge.temp_critical_c must be >= bridge.temp_high_c")
	}
	if c.Bridge.MemCriticalPct < c.Bridge.MemHighPct {
		errs = append(errs, "bridge.mem_critical_pct must be >= bridge.mem_high_pct")
	}

	if c.Relay.ControlPort < 1 || c.Relay.ControlPort > 65535 {
		errs = append(errs, "relay.control_port must be between 1 and 65535")
	}
	if c.Relay.RequestTimeout <= 0 {
		errs = append(errs, "relay.request_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
