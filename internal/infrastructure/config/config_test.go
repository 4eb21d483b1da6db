package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
service:
  name: "xcvrd-test"
  slots: 8
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
refresh:
  interval_seconds: 5
  cooldown_seconds: 10
remediation:
  interval_seconds: 300
  initial_interval_seconds: 120
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.Name != "xcvrd-test" {
		t.Errorf("Service.Name = %q, want %q", cfg.Service.Name, "xcvrd-test")
	}

	if cfg.Service.Slots != 8 {
		t.Errorf("Service.Slots = %d, want 8", cfg.Service.Slots)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
service:
  name: ""
database:
  path: "/tmp/test.db"
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty service.name, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	// validBase returns a config that passes validation; cases below
	// break one field at a time.
	validBase := func() *Config {
		return &Config{
			Service:  ServiceConfig{Name: "xcvrd", Slots: 32},
			Database: DatabaseConfig{Path: "/data/xcvrd.db"},
			MQTT:     MQTTConfig{QoS: 1},
			API:      APIConfig{Port: 8080},
			Refresh: RefreshConfig{
				IntervalSeconds: 5,
				CooldownSeconds: 10,
			},
			Remediation: RemediationConfig{
				IntervalSeconds:        300,
				InitialIntervalSeconds: 120,
			},
		}
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"missing service name", func(c *Config) { c.Service.Name = "" }, true},
		{"zero slots", func(c *Config) { c.Service.Slots = 0 }, true},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"zero refresh interval", func(c *Config) { c.Refresh.IntervalSeconds = 0 }, true},
		{"negative cooldown", func(c *Config) { c.Refresh.CooldownSeconds = -1 }, true},
		{"negative customize cooldown", func(c *Config) { c.Refresh.CustomizeCooldownSeconds = -1 }, true},
		{"zero remediation interval", func(c *Config) { c.Remediation.IntervalSeconds = 0 }, true},
		{
			"initial interval exceeds steady interval",
			func(c *Config) { c.Remediation.InitialIntervalSeconds = 600 },
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestConfig_IntervalHelpers(t *testing.T) {
	cfg := &Config{
		Refresh: RefreshConfig{
			IntervalSeconds:          5,
			CooldownSeconds:          10,
			CustomizeCooldownSeconds: 45,
		},
		Remediation: RemediationConfig{
			IntervalSeconds:        300,
			InitialIntervalSeconds: 120,
		},
	}

	if got := cfg.RefreshInterval().Seconds(); got != 5 {
		t.Errorf("RefreshInterval() = %v, want 5", got)
	}
	if got := cfg.RefreshCooldown().Seconds(); got != 10 {
		t.Errorf("RefreshCooldown() = %v, want 10", got)
	}
	if got := cfg.CustomizeCooldown().Seconds(); got != 45 {
		t.Errorf("CustomizeCooldown() = %v, want 45", got)
	}
	if got := cfg.RemediateInterval().Seconds(); got != 300 {
		t.Errorf("RemediateInterval() = %v, want 300", got)
	}
	if got := cfg.InitialRemediateInterval().Seconds(); got != 120 {
		t.Errorf("InitialRemediateInterval() = %v, want 120", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("XCVRD_SERVICE_NAME", "xcvrd-lab")
	t.Setenv("XCVRD_SERVICE_SLOTS", "64")
	t.Setenv("XCVRD_DATABASE_PATH", "/custom/path.db")
	t.Setenv("XCVRD_MQTT_HOST", "mqtt.example.com")
	t.Setenv("XCVRD_MQTT_USERNAME", "testuser")
	t.Setenv("XCVRD_MQTT_PASSWORD", "testpass")
	t.Setenv("XCVRD_API_HOST", "192.168.1.1")
	t.Setenv("XCVRD_API_PORT", "9090")
	t.Setenv("XCVRD_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("XCVRD_REFRESH_CUSTOMIZE_COOLDOWN", "90")

	applyEnvOverrides(cfg)

	if cfg.Service.Name != "xcvrd-lab" {
		t.Errorf("Service.Name = %q, want %q", cfg.Service.Name, "xcvrd-lab")
	}

	if cfg.Service.Slots != 64 {
		t.Errorf("Service.Slots = %d, want 64", cfg.Service.Slots)
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Refresh.CustomizeCooldownSeconds != 90 {
		t.Errorf("Refresh.CustomizeCooldownSeconds = %d, want 90", cfg.Refresh.CustomizeCooldownSeconds)
	}
}

func TestApplyEnvOverrides_InvalidNumber(t *testing.T) {
	cfg := defaultConfig()
	wantSlots := cfg.Service.Slots

	t.Setenv("XCVRD_SERVICE_SLOTS", "not-a-number")
	applyEnvOverrides(cfg)

	if cfg.Service.Slots != wantSlots {
		t.Errorf("Service.Slots = %d, want unchanged %d", cfg.Service.Slots, wantSlots)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Service.Name == "" {
		t.Error("defaultConfig should have non-empty Service.Name")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}

	// Defaults must pass their own validation.
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() error = %v", err)
	}
}
