package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Estufa Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`

	// KeepAlive, ConnectTimeout and PublishTimeout are in seconds.
	KeepAlive      int `yaml:"keepalive"`
	ConnectTimeout int `yaml:"connect_timeout"`
	PublishTimeout int `yaml:"publish_timeout"`

	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Breaker   MQTTBreakerConfig   `yaml:"breaker"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`

	// TLSInsecureSkipVerify disables server certificate validation.
	// Only for brokers that present a certificate without a public CA chain.
	TLSInsecureSkipVerify bool `yaml:"tls_insecure_skip_verify"`

	// CAFile optionally pins the broker's CA bundle (PEM).
	CAFile string `yaml:"ca_file"`

	// ClientIDPrefix is joined with a random UUID to form the client id.
	ClientIDPrefix string `yaml:"client_id_prefix"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains the reconnection delays, in seconds.
//
// The first attempt after a lost link waits InitialDelay; every attempt
// after a failed one waits RetryDelay.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	RetryDelay   int `yaml:"retry_delay"`
}

// MQTTBreakerConfig controls the circuit breaker in front of command publishing.
type MQTTBreakerConfig struct {
	MaxFailures int `yaml:"max_failures"`
	OpenTimeout int `yaml:"open_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains the shared secret used to validate bearer tokens
// issued by the web tier.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults); a missing file is not an error
//  3. Variables from a .env file in the working directory, if present
//  4. Environment variables (override file values)
//
// Broker settings honour the legacy names MQTT_URL, MQTT_PORT, MQTT_USERNAME
// and MQTT_PASSWORD. The ESTUFA_SECTION_KEY names take precedence over them.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be parsed or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Defaults plus environment
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	// godotenv never overwrites variables already present in the environment.
	_ = godotenv.Load() //nolint:errcheck // .env is optional

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
			Path:        "./data/estufa.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Port:           8883,
				TLS:            true,
				ClientIDPrefix: "estufa",
			},
			KeepAlive:      60,
			ConnectTimeout: 10,
			PublishTimeout: 10,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 5,
				RetryDelay:   30,
			},
			Breaker: MQTTBreakerConfig{
				MaxFailures: 3,
				OpenTimeout: 30,
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
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("ESTUFA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT: legacy names first, then the prefixed ones
	overrideString(&cfg.MQTT.Broker.Host, "MQTT_URL", "ESTUFA_MQTT_HOST")
	overridePort(&cfg.MQTT.Broker.Port, "MQTT_PORT", "ESTUFA_MQTT_PORT")
	overrideString(&cfg.MQTT.Auth.Username, "MQTT_USERNAME", "ESTUFA_MQTT_USERNAME")
	overrideString(&cfg.MQTT.Auth.Password, "MQTT_PASSWORD", "ESTUFA_MQTT_PASSWORD")
	if v := os.Getenv("ESTUFA_MQTT_TLS_INSECURE"); v != "" {
		cfg.MQTT.Broker.TLSInsecureSkipVerify = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("ESTUFA_MQTT_CA_FILE"); v != "" {
		cfg.MQTT.Broker.CAFile = v
	}

	// API
	if v := os.Getenv("ESTUFA_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	overridePort(&cfg.API.Port, "ESTUFA_API_PORT")

	// InfluxDB
	if v := os.Getenv("ESTUFA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("ESTUFA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security - JWT secret shared with the web tier
	if v := os.Getenv("ESTUFA_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// overrideString assigns the last non-empty variable among names.
func overrideString(dst *string, names ...string) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

// overridePort assigns the last non-empty variable among names.
// Unparseable values become -1 so Validate reports them.
func overridePort(dst *int, names ...string) {
	for _, name := range names {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			port = -1
		}
		*dst = port
	}
}

// Validate checks the configuration for errors and security issues.
//
// Missing broker host or credentials are not errors: the bridge degrades
// to a "not configured" state instead (see MQTTConfig.Configured).
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.Broker.Port < 0 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Reconnect.InitialDelay <= 0 || c.MQTT.Reconnect.RetryDelay <= 0 {
		errs = append(errs, "mqtt.reconnect delays must be positive")
	}
	if c.MQTT.PublishTimeout <= 0 {
		errs = append(errs, "mqtt.publish_timeout must be positive")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Bearer tokens gate commands that drive physical actuators.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set ESTUFA_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Configured reports whether every broker setting needed to connect is present.
func (m MQTTConfig) Configured() bool {
	return len(m.Missing()) == 0
}

// Missing lists the broker settings that are absent.
func (m MQTTConfig) Missing() []string {
	var missing []string
	if m.Broker.Host == "" {
		missing = append(missing, "host")
	}
	if m.Broker.Port <= 0 {
		missing = append(missing, "port")
	}
	if m.Auth.Username == "" {
		missing = append(missing, "username")
	}
	if m.Auth.Password == "" {
		missing = append(missing, "password")
	}
	return missing
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
