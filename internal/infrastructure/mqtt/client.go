package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/estufa-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as the greenhouse transport connector.
//
// Every link change and every inbound publish is delivered as an Event on a
// single channel. Client never reconnects on its own; the caller decides when
// to call Connect again.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Events has exactly one intended consumer.
type Client struct {
	client   pahomqtt.Client
	cfg      config.MQTTConfig
	clientID string

	publishTimeout time.Duration
	connectTimeout time.Duration

	events      chan Event
	eventBuffer int
	done        chan struct{}
	closeOnce   sync.Once

	// subscriptions records topics currently subscribed on this connection.
	// It is cleared on every disconnect because the session is clean.
	subscriptions map[string]byte
	subMu         sync.RWMutex

	connected bool
	closing   bool
	connMu    sync.RWMutex

	logger Logger
}

// Logger is the logging surface used by the client.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// New builds a client for cfg without connecting.
//
// The client id is the configured prefix joined with a random UUID. An
// error is returned only when the TLS settings cannot be loaded.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - opts: Optional logger and event buffer settings
//
// Returns:
//   - *Client: Unconnected client
//   - error: If the TLS material cannot be loaded
func New(cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	c := &Client{
		cfg:            cfg,
		clientID:       newClientID(cfg.Broker.ClientIDPrefix),
		publishTimeout: seconds(cfg.PublishTimeout, defaultPublishTimeout),
		connectTimeout: seconds(cfg.ConnectTimeout, defaultConnectTimeout),
		eventBuffer:    defaultEventBuffer,
		done:           make(chan struct{}),
		subscriptions:  make(map[string]byte),
		logger:         noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = make(chan Event, c.eventBuffer)

	pahoOpts, err := buildClientOptions(cfg, c.clientID)
	if err != nil {
		return nil, err
	}
	pahoOpts.SetDefaultPublishHandler(c.wrapHandler())
	pahoOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	c.client = pahomqtt.NewClient(pahoOpts)
	return c, nil
}

// ClientID returns the id presented to the broker.
func (c *Client) ClientID() string {
	return c.clientID
}

// Events returns the channel carrying link and message events.
// The channel is never closed; stop reading when your context ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect makes one connection attempt, bounded by the connect timeout
// and by ctx. A refused CONNACK is reported with its reason.
//
// On success an EventConnected is emitted. Subscriptions do not survive a
// reconnect; callers subscribe again after every successful Connect.
//
// Parameters:
//   - ctx: Context for cancellation of the attempt
//
// Returns:
//   - error: nil once connected, or a wrapped ErrConnectionFailed
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	if c.closing {
		c.connMu.Unlock()
		return fmt.Errorf("%w: client closed", ErrConnectionFailed)
	}
	c.connMu.Unlock()

	token := c.client.Connect()

	timer := time.NewTimer(c.connectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, c.connectTimeout)
	}

	var code byte
	if ct, ok := token.(*pahomqtt.ConnectToken); ok {
		code = ct.ReturnCode()
	}
	if err := connectError(code, token.Error()); err != nil {
		return err
	}

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.emit(EventConnected{Code: code, At: time.Now().UTC()})
	return nil
}

// connectError maps a CONNACK return code and paho error to a wrapped
// ErrConnectionFailed, or nil for an accepted connection.
func connectError(code byte, err error) error {
	if code != 0 {
		return fmt.Errorf("%w: %s (code %d)", ErrConnectionFailed, ConnackReason(code), code)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// ConnackReason describes a CONNACK return code.
func ConnackReason(code byte) string {
	switch code {
	case 0:
		return "connection accepted"
	case 1:
		return "unacceptable protocol version"
	case 2:
		return "client identifier rejected"
	case 3:
		return "server unavailable"
	case 4:
		return "bad username or password"
	case 5:
		return "not authorised"
	default:
		return "unknown return code"
	}
}

// handleConnectionLost is called by paho when the link drops unexpectedly.
func (c *Client) handleConnectionLost(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
	c.clearSubscriptions()

	if err == nil {
		err = errors.New("connection lost")
	}
	c.emit(EventDisconnected{Err: err, At: time.Now().UTC()})
}

// Close disconnects gracefully and emits a user-initiated
// EventDisconnected. Calling Close more than once is safe.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.closeOnce.Do(func() {
		c.connMu.Lock()
		c.closing = true
		wasConnected := c.connected
		c.connected = false
		c.connMu.Unlock()

		if wasConnected || c.client.IsConnected() {
			c.client.Disconnect(defaultDisconnectQuiesce)
		}
		c.clearSubscriptions()

		// The consumer may already be gone during shutdown, so never block here.
		select {
		case c.events <- EventDisconnected{UserInitiated: true, At: time.Now().UTC()}:
		default:
			c.logger.Warn("event buffer full, dropping disconnect event")
		}
		close(c.done)
	})
	return nil
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	if c.client == nil {
		return false
	}
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnectionOpen()
}

// emit delivers ev to the consumer. It blocks while the buffer is full so a
// slow consumer applies backpressure to paho, and gives up once Close ran.
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// wrapHandler converts paho deliveries into EventMessage values, with
// panic recovery. The handler never calls back into paho.
func (c *Client) wrapHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		payload := make([]byte, len(msg.Payload()))
		copy(payload, msg.Payload())

		c.emit(EventMessage{
			Topic:    msg.Topic(),
			Payload:  payload,
			QoS:      msg.Qos(),
			Retained: msg.Retained(),
			At:       time.Now().UTC(),
		})
	}
}
