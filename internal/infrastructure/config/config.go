package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the transceiver service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service     ServiceConfig     `yaml:"service"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Refresh     RefreshConfig     `yaml:"refresh"`
	Remediation RemediationConfig `yaml:"remediation"`
}

// ServiceConfig contains platform-level service settings.
type ServiceConfig struct {
	// Name identifies this service instance in logs and MQTT topics.
	Name string `yaml:"name"`

	// Slots is the number of physical transceiver cages the platform
	// exposes. Controllers are created for slot IDs 0..Slots-1.
	Slots int `yaml:"slots"`

	// SerializeBus routes raw module I/O through a per-module worker
	// goroutine. Required on platforms whose transceiver bus cannot
	// tolerate interleaved transactions.
	SerializeBus bool `yaml:"serialize_bus"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

// RefreshConfig contains refresh loop timing settings.
type RefreshConfig struct {
	// IntervalSeconds is the fleet refresh loop period.
	IntervalSeconds int `yaml:"interval_seconds"`

	// CooldownSeconds is the per-module minimum interval between
	// routine partial data refreshes.
	CooldownSeconds int `yaml:"cooldown_seconds"`

	// CustomizeCooldownSeconds is the per-module minimum interval
	// between repeated customize attempts (power override, CDR, rate
	// select). Zero disables the gate.
	CustomizeCooldownSeconds int `yaml:"customize_cooldown_seconds"`
}

// RemediationConfig contains link remediation timing settings.
type RemediationConfig struct {
	// IntervalSeconds gates steady-state remediation retries;
	// InitialIntervalSeconds gates the first attempt after a link
	// comes down.
	IntervalSeconds        int `yaml:"interval_seconds"`
	InitialIntervalSeconds int `yaml:"initial_interval_seconds"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: XCVRD_SECTION_KEY
// For example: XCVRD_DATABASE_PATH, XCVRD_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:         "xcvrd",
			Slots:        32,
			SerializeBus: true,
		},
		Database: DatabaseConfig{
			Path:        "./data/xcvrd.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "xcvrd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
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
		Refresh: RefreshConfig{
			IntervalSeconds:          5,
			CooldownSeconds:          10,
			CustomizeCooldownSeconds: 30,
		},
		Remediation: RemediationConfig{
			IntervalSeconds:        300,
			InitialIntervalSeconds: 120,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: XCVRD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Service
	if v := os.Getenv("XCVRD_SERVICE_NAME"); v != "" {
		cfg.Service.Name = v
	}
	if v := os.Getenv("XCVRD_SERVICE_SLOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Service.Slots = n
		}
	}

	// Database
	if v := os.Getenv("XCVRD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("XCVRD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("XCVRD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("XCVRD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("XCVRD_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("XCVRD_API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = n
		}
	}

	// InfluxDB
	if v := os.Getenv("XCVRD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Refresh
	if v := os.Getenv("XCVRD_REFRESH_CUSTOMIZE_COOLDOWN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Refresh.CustomizeCooldownSeconds = n
		}
	}

	// Logging
	if v := os.Getenv("XCVRD_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Service validation
	if c.Service.Name == "" {
		errs = append(errs, "service.name is required")
	}
	if c.Service.Slots < 1 {
		errs = append(errs, "service.slots must be at least 1")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Refresh validation
	if c.Refresh.IntervalSeconds < 1 {
		errs = append(errs, "refresh.interval_seconds must be at least 1")
	}
	if c.Refresh.CooldownSeconds < 0 {
		errs = append(errs, "refresh.cooldown_seconds must not be negative")
	}
	if c.Refresh.CustomizeCooldownSeconds < 0 {
		errs = append(errs, "refresh.customize_cooldown_seconds must not be negative")
	}

	// Remediation validation. The initial interval gates the first
	// attempt after a down event and must not exceed the steady-state
	// retry interval.
	if c.Remediation.IntervalSeconds < 1 {
		errs = append(errs, "remediation.interval_seconds must be at least 1")
	}
	if c.Remediation.InitialIntervalSeconds < 1 {
		errs = append(errs, "remediation.initial_interval_seconds must be at least 1")
	}
	if c.Remediation.InitialIntervalSeconds > c.Remediation.IntervalSeconds {
		errs = append(errs, "remediation.initial_interval_seconds must not exceed remediation.interval_seconds")
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

// RefreshInterval returns the fleet refresh loop period as a Duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalSeconds) * time.Second
}

// RefreshCooldown returns the per-module refresh cooldown as a Duration.
func (c *Config) RefreshCooldown() time.Duration {
	return time.Duration(c.Refresh.CooldownSeconds) * time.Second
}

// CustomizeCooldown returns the per-module customize cooldown as a Duration.
func (c *Config) CustomizeCooldown() time.Duration {
	return time.Duration(c.Refresh.CustomizeCooldownSeconds) * time.Second
}

// RemediateInterval returns the steady-state remediation interval as a Duration.
func (c *Config) RemediateInterval() time.Duration {
	return time.Duration(c.Remediation.IntervalSeconds) * time.Second
}

// InitialRemediateInterval returns the post-down remediation interval as a Duration.
func (c *Config) InitialRemediateInterval() time.Duration {
	return time.Duration(c.Remediation.InitialIntervalSeconds) * time.Second
}
