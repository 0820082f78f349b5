package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nerrad567/estufa-core/internal/infrastructure/metrics"
	"github.com/nerrad567/estufa-core/internal/infrastructure/mqtt"
)

// Breaker defaults.
const (
	defaultBreakerFailures = 3
	defaultBreakerTimeout  = 30 * time.Second

	// auditTimeout bounds the audit write once the broker has acknowledged.
	auditTimeout = 5 * time.Second
)

// Publisher sends a payload to the broker and waits for the acknowledgement.
// *mqtt.Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte) error
	IsConnected() bool
}

// Logger is the logging surface the Dispatcher needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Request is a manual command as received from the API.
type Request struct {
	// Class accepts the wire form or the English name.
	Class   string
	Command string

	// SessionID is required for irrigation and ignored on the wire otherwise.
	SessionID *int64

	// UserRef identifies who issued the command.
	UserRef string
}

// commandPayload is the wire body published on estufa/<class>/manual.
type commandPayload struct {
	SessionID *int64 `json:"sessao_id,omitempty"`
	Command   string `json:"comando"`
}

// DispatcherConfig controls the publish circuit breaker.
type DispatcherConfig struct {
	// MaxFailures is the number of consecutive transport failures that
	// opens the breaker.
	MaxFailures int

	// OpenTimeout is how long the breaker stays open before letting a
	// single trial publish through.
	OpenTimeout time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithDispatcherMetrics records command outcomes and breaker state.
func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher validates, publishes and records manual device commands.
//
// Thread Safety:
//   - Send is safe for concurrent use; it is called from HTTP handlers.
type Dispatcher struct {
	pub     Publisher
	store   CommandStore
	breaker *gobreaker.CircuitBreaker
	logger  Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher. pub may be nil when no broker is
// configured; every Send then fails with ErrBusy.
func NewDispatcher(pub Publisher, store CommandStore, cfg DispatcherConfig, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		pub:    pub,
		store:  store,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}

	failures := cfg.MaxFailures
	if failures <= 0 {
		failures = defaultBreakerFailures
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}

	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "command-publish",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures) // #nosec G115 -- positive, checked above
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			d.metrics.SetBreakerOpen(to != gobreaker.StateClosed)
		},
	})
	return d
}

// Send validates req, publishes it and records the command.
//
// Validation errors (ErrInvalidDeviceClass, ErrMissingSessionReference,
// ErrEmptyCommand) are returned before anything touches the network.
// ErrBusy and ErrTransport mean no audit row was written. ErrAuditFailed
// means the device received the command but the row is missing. Once the
// publish is acknowledged the audit write ignores ctx cancellation.
func (d *Dispatcher) Send(ctx context.Context, req Request) (*Command, error) {
	class, err := ParseClass(req.Class)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Command)
	if text == "" {
		return nil, ErrEmptyCommand
	}
	if class.RequiresSession() && req.SessionID == nil {
		return nil, ErrMissingSessionReference
	}

	body := commandPayload{Command: text}
	if class.RequiresSession() {
		body.SessionID = req.SessionID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.pub == nil || !d.pub.IsConnected() {
		d.metrics.CommandResult(string(class), metrics.ResultBusy)
		return nil, fmt.Errorf("%w: not connected", ErrBusy)
	}

	_, err = d.breaker.Execute(func() (any, error) {
		return nil, d.pub.Publish(class.CommandTopic(), payload, class.QoS())
	})
	if err != nil {
		return nil, d.publishError(class, err)
	}

	cmd := &Command{
		Class:     class,
		Command:   text,
		UserRef:   req.UserRef,
		SessionID: req.SessionID,
		IssuedAt:  d.now(),
	}
	// The device already has the command, so a caller that goes away must
	// not cancel the record of it.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := d.store.InsertCommand(auditCtx, cmd); err != nil {
		d.metrics.CommandResult(string(class), metrics.ResultAudit)
		d.logger.Error("command published but not recorded",
			"device_class", class,
			"command", text,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrAuditFailed, err)
	}

	d.metrics.CommandResult(string(class), metrics.ResultOK)
	d.logger.Info("command sent",
		"device_class", class,
		"command", text,
		"user", req.UserRef,
	)
	return cmd, nil
}

// publishError maps breaker and transport errors to ErrBusy or ErrTransport.
func (d *Dispatcher) publishError(class Class, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		d.metrics.CommandResult(string(class), metrics.ResultBusy)
		return fmt.Errorf("%w: circuit open", ErrBusy)
	case errors.Is(err, mqtt.ErrNotConnected):
		d.metrics.CommandResult(string(class), metrics.ResultBusy)
		return fmt.Errorf("%w: not connected", ErrBusy)
	default:
		d.metrics.CommandResult(string(class), metrics.ResultTransport)
		d.logger.Warn("command publish failed", "device_class", class, "error", err)
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}

// BreakerState returns the publish breaker state ("closed", "half-open" or "open").
func (d *Dispatcher) BreakerState() string {
	return d.breaker.State().String()
}
