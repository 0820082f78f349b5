package config

import (
	"os"
	"path/filepath"
	"testing"
)

// validJWTSecret meets the 32-character minimum.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "broker.example.com"
    port: 8883
    tls: true
    client_id_prefix: "estufa-test"
  auth:
    username: "estufa"
    password: "secret"
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
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

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "broker.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.example.com")
	}
	if cfg.MQTT.Broker.ClientIDPrefix != "estufa-test" {
		t.Errorf("MQTT.Broker.ClientIDPrefix = %q, want %q", cfg.MQTT.Broker.ClientIDPrefix, "estufa-test")
	}
	if !cfg.MQTT.Configured() {
		t.Errorf("MQTT.Configured() = false, missing %v", cfg.MQTT.Missing())
	}
	// Values absent from the file keep their defaults.
	if cfg.MQTT.Reconnect.InitialDelay != 5 || cfg.MQTT.Reconnect.RetryDelay != 30 {
		t.Errorf("Reconnect = %+v, want 5/30", cfg.MQTT.Reconnect)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ESTUFA_JWT_SECRET", validJWTSecret)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "./data/estufa.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
	if cfg.MQTT.Configured() {
		t.Error("MQTT.Configured() = true with no broker settings")
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
		t.Error("Load() expected validation error for missing jwt secret, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Security.JWT.Secret = validJWTSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "broker not configured is not an error",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = ""; c.MQTT.Auth = MQTTAuthConfig{} },
			wantErr: false,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "unparseable broker port",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = -1 },
			wantErr: true,
		},
		{
			name:    "zero reconnect delay",
			mutate:  func(c *Config) { c.MQTT.Reconnect.RetryDelay = 0 },
			wantErr: true,
		},
		{
			name:    "invalid api port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "missing JWT secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: true,
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("ESTUFA_DATABASE_PATH", "/custom/path.db")
	t.Setenv("MQTT_URL", "legacy.example.com")
	t.Setenv("MQTT_PORT", "8884")
	t.Setenv("MQTT_USERNAME", "legacy-user")
	t.Setenv("MQTT_PASSWORD", "legacy-pass")
	t.Setenv("ESTUFA_MQTT_USERNAME", "estufa-user")
	t.Setenv("ESTUFA_API_HOST", "192.168.1.1")
	t.Setenv("ESTUFA_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("ESTUFA_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "legacy.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "legacy.example.com")
	}
	if cfg.MQTT.Broker.Port != 8884 {
		t.Errorf("MQTT.Broker.Port = %d, want 8884", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "estufa-user" {
		t.Errorf("MQTT.Auth.Username = %q, want prefixed value to win", cfg.MQTT.Auth.Username)
	}
	if cfg.MQTT.Auth.Password != "legacy-pass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "legacy-pass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestApplyEnvOverrides_BadPort(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != -1 {
		t.Errorf("MQTT.Broker.Port = %d, want -1 sentinel", cfg.MQTT.Broker.Port)
	}
}

func TestMQTTConfig_Missing(t *testing.T) {
	m := MQTTConfig{
		Broker: MQTTBrokerConfig{Host: "broker", Port: 8883},
		Auth:   MQTTAuthConfig{Username: "u"},
	}

	missing := m.Missing()
	if len(missing) != 1 || missing[0] != "password" {
		t.Errorf("Missing() = %v, want [password]", missing)
	}
	if m.Configured() {
		t.Error("Configured() = true, want false")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if !cfg.MQTT.Broker.TLS {
		t.Error("defaultConfig MQTT.Broker.TLS = false, want true")
	}
	if cfg.MQTT.Broker.TLSInsecureSkipVerify {
		t.Error("defaultConfig must not skip certificate verification")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
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
