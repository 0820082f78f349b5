package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/estufa-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout applies when the config leaves it at zero.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout applies when the config leaves it at zero.
	defaultPublishTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive applies when the config leaves it at zero.
	defaultKeepAlive = 60 * time.Second

	// defaultEventBuffer sizes the Events channel.
	defaultEventBuffer = 256

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for handler panics and dropped events.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEventBuffer sets the capacity of the Events channel.
func WithEventBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.eventBuffer = n
		}
	}
}

// newClientID returns "<prefix>-<uuid>". A fresh id per process keeps two
// bridge instances from kicking each other off the broker.
func newClientID(prefix string) string {
	if prefix == "" {
		prefix = "estufa"
	}
	return prefix + "-" + uuid.NewString()
}

// seconds converts a config value to a duration, falling back to def when unset.
func seconds(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Second
}

// buildClientOptions creates paho options from the broker config.
//
// Automatic reconnection is switched off: the bridge supervisor owns the
// retry schedule and calls Connect itself.
func buildClientOptions(cfg config.MQTTConfig, clientID string) (*pahomqtt.ClientOptions, error) {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(seconds(cfg.ConnectTimeout, defaultConnectTimeout))
	opts.SetKeepAlive(seconds(cfg.KeepAlive, defaultKeepAlive))
	opts.SetOrderMatters(true)

	if cfg.Broker.TLS {
		tlsConfig, err := buildTLSConfig(cfg.Broker)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts, nil
}

// buildTLSConfig returns the client TLS settings. Verification stays on
// unless tls_insecure_skip_verify is set explicitly.
func buildTLSConfig(b config.MQTTBrokerConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tlsMinVersion,
		ServerName:         b.Host,
		InsecureSkipVerify: b.TLSInsecureSkipVerify, //nolint:gosec // Explicit opt-in via config
	}

	if b.CAFile != "" {
		pem, err := os.ReadFile(b.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading broker CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("broker CA file contains no certificates")
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}
