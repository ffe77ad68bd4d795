package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/inventory-test.db"
  wal_mode: false
api:
  host: "127.0.0.1"
  port: 9090
mqtt:
  enabled: true
  broker:
    host: "broker.local"
  topic_prefix: "lab"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
    access_token_ttl: 30
  bootstrap:
    username: "admin"
    password: "changeme123"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/inventory-test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/inventory-test.db")
	}
	if cfg.Database.WALMode {
		t.Error("Database.WALMode = true, want false from file")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT = %+v, want enabled broker.local", cfg.MQTT)
	}
	// Untouched keys keep their defaults.
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.TopicPrefix != "lab" {
		t.Errorf("MQTT.TopicPrefix = %q, want lab", cfg.MQTT.TopicPrefix)
	}
	if got := cfg.AccessTokenTTL(); got != 30*time.Minute {
		t.Errorf("AccessTokenTTL() = %v, want 30m", got)
	}
	if cfg.Security.Bootstrap.Username != "admin" {
		t.Errorf("Bootstrap.Username = %q, want admin", cfg.Security.Bootstrap.Username)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ""
api:
  port: 8080
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "database.path is required") {
		t.Errorf("error = %v, want database.path message", err)
	}
	if !strings.Contains(err.Error(), "security.jwt.secret is required") {
		t.Errorf("error = %v, want jwt secret message", err)
	}
}

func TestLoad_EnvSecret(t *testing.T) {
	path := writeConfig(t, "database:\n  path: /tmp/x.db\n")
	t.Setenv("INVENTORY_JWT_SECRET", validJWTSecret)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Security.JWT.Secret != validJWTSecret {
		t.Errorf("Security.JWT.Secret not taken from environment")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: true},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
		{name: "zero token TTL", mutate: func(c *Config) { c.Security.JWT.AccessTokenTTL = 0 }, wantErr: true},
		{name: "TLS without files", mutate: func(c *Config) { c.API.TLS.Enabled = true }, wantErr: true},
		{name: "influx without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "rate limit zero", mutate: func(c *Config) { c.Security.RateLimit.RequestsPerMinute = 0 }, wantErr: true},
		{name: "rate limit disabled zero", mutate: func(c *Config) {
			c.Security.RateLimit.Enabled = false
			c.Security.RateLimit.RequestsPerMinute = 0
		}},
		{name: "bootstrap half set", mutate: func(c *Config) { c.Security.Bootstrap.Username = "admin" }, wantErr: true},
		{name: "bootstrap complete", mutate: func(c *Config) {
			c.Security.Bootstrap = BootstrapConfig{Username: "admin", Password: "changeme123"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = validJWTSecret
			tt.mutate(cfg)

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

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("INVENTORY_DATABASE_PATH", "/custom/path.db")
	t.Setenv("INVENTORY_API_HOST", "192.168.1.1")
	t.Setenv("INVENTORY_API_PORT", "9443")
	t.Setenv("INVENTORY_MQTT_HOST", "mqtt.example.com")
	t.Setenv("INVENTORY_MQTT_USERNAME", "testuser")
	t.Setenv("INVENTORY_MQTT_PASSWORD", "testpass")
	t.Setenv("INVENTORY_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("INVENTORY_LOG_LEVEL", "debug")
	t.Setenv("INVENTORY_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		name string
		got  string
		want string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if cfg.API.Port != 9443 {
		t.Errorf("API.Port = %d, want 9443", cfg.API.Port)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("INVENTORY_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Enabled {
		t.Error("defaultConfig should leave MQTT disabled")
	}
	if cfg.InfluxDB.Enabled {
		t.Error("defaultConfig should leave InfluxDB disabled")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
