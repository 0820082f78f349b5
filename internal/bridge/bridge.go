package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/estufa-core/internal/alert"
	"github.com/nerrad567/estufa-core/internal/device"
	"github.com/nerrad567/estufa-core/internal/infrastructure/metrics"
	"github.com/nerrad567/estufa-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/estufa-core/internal/link"
	"github.com/nerrad567/estufa-core/internal/store"
	"github.com/nerrad567/estufa-core/internal/telemetry"
)

// Live event types sent to the Broadcaster.
const (
	EventReadingCreated = "reading.created"
	EventDeviceStatus   = "device.status"
	EventAlertCreated   = "alert.created"
	EventLinkState      = "link.state"
)

// Transport is the broker connection. *mqtt.Client implements it.
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, qos byte) error
	Events() <-chan mqtt.Event
	Close() error
	IsConnected() bool
}

// Broadcaster fans committed changes out to live clients.
type Broadcaster interface {
	Broadcast(eventType string, payload any)
}

// Mirror copies committed readings and statuses to a time-series store.
// *influxdb.Client implements it.
type Mirror interface {
	WriteReading(sessionID, cropID int64, temperature, airHumidity, soilHumidity float64, exhaustOn bool, at time.Time)
	WriteDeviceStatus(deviceClass, status string, sessionID *int64, at time.Time)
}

// Logger is the logging surface the bridge needs.
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

// Options holds Bridge dependencies.
type Options struct {
	// Transport and Store are required.
	Transport Transport
	Store     *store.Store

	// Recorder tracks link and topic health. Defaults to one backed by Store.
	Recorder *link.Recorder

	// Mirror and Hub are optional.
	Mirror Mirror
	Hub    Broadcaster

	Logger  Logger
	Metrics *metrics.Metrics

	// InitialDelay and RetryDelay configure reconnects. Zero takes the defaults.
	InitialDelay time.Duration
	RetryDelay   time.Duration
}

// Bridge consumes broker events and applies them to the store.
type Bridge struct {
	transport  Transport
	store      *store.Store
	router     *Router
	ingestor   *telemetry.Ingestor
	tracker    *device.Tracker
	recorder   *link.Recorder
	supervisor *Supervisor
	mirror     Mirror
	hub        Broadcaster
	logger     Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates a Bridge. Call Run to start it.
func New(opts Options) (*Bridge, error) {
	if opts.Transport == nil {
		return nil, ErrMissingTransport
	}
	if opts.Store == nil {
		return nil, ErrMissingStore
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = link.NewRecorder(opts.Store, "", 0)
	}

	b := &Bridge{
		transport: opts.Transport,
		store:     opts.Store,
		router:    NewRouter(),
		ingestor:  telemetry.NewIngestor(logger),
		tracker:   device.NewTracker(),
		recorder:  recorder,
		mirror:    opts.Mirror,
		hub:       opts.Hub,
		logger:    logger,
		metrics:   opts.Metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
	b.supervisor = NewSupervisor(SupervisorConfig{
		Transport:    opts.Transport,
		Recorder:     recorder,
		InitialDelay: opts.InitialDelay,
		RetryDelay:   opts.RetryDelay,
		Logger:       logger,
		Metrics:      opts.Metrics,
		OnState:      b.broadcastLink,
	})
	return b, nil
}

// Recorder returns the link health recorder, for the status endpoint.
func (b *Bridge) Recorder() *link.Recorder {
	return b.recorder
}

// Run starts the supervisor and consumes transport events until ctx is
// cancelled, then closes the transport and waits for the supervisor.
func (b *Bridge) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.supervisor.Run(ctx)
	}()

	events := b.transport.Events()
	for {
		select {
		case <-ctx.Done():
			if err := b.transport.Close(); err != nil {
				b.logger.Warn("closing broker connection", "error", err)
			}
			wg.Wait()
			b.logger.Info("bridge stopped")
			return nil
		case ev := <-events:
			b.handleEvent(ctx, ev)
		}
	}
}

func (b *Bridge) handleEvent(ctx context.Context, ev mqtt.Event) {
	switch ev := ev.(type) {
	case mqtt.EventMessage:
		b.handleMessage(ctx, ev)
	case mqtt.EventConnected:
		b.logger.Info("broker connected", "code", ev.Code)
	case mqtt.EventDisconnected:
		if ev.UserInitiated {
			b.logger.Info("broker disconnected on shutdown")
			return
		}
		b.supervisor.Lost(ev.Err)
	}
}

// effects are the committed changes of one message.
type effects struct {
	readings []telemetry.Reading
	status   *device.Status
	alert    *alert.Alert
}

// handleMessage routes, decodes and applies one message. Every failure is
// logged and the message dropped; the loop always continues.
func (b *Bridge) handleMessage(ctx context.Context, ev mqtt.EventMessage) {
	route, err := b.router.Resolve(ev.Topic)
	if err != nil {
		reason := metrics.DropUnknownTopic
		if errors.Is(err, ErrMalformedTopic) {
			reason = metrics.DropMalformedTopic
		}
		b.metrics.MessageDropped(reason)
		b.logger.Warn("dropping message", "topic", ev.Topic, "error", err)
		b.touchUnrouted(ctx, ev)
		return
	}

	msg, err := b.router.Decode(route, ev.Payload)
	if err != nil {
		b.metrics.MessageDropped(metrics.DropDecode)
		b.logger.Warn("dropping undecodable message", "topic", ev.Topic, "error", err)
		return
	}

	var fx effects
	err = b.store.Atomic(ctx, func(tx *store.Tx) error {
		if err := b.recorder.TouchTopic(ctx, tx, ev.Topic); err != nil {
			return err
		}
		var err error
		fx, err = b.apply(ctx, tx, msg)
		return err
	})
	if err != nil {
		if errors.Is(err, telemetry.ErrInvalidImage) {
			b.metrics.MessageDropped(metrics.DropDecode)
			b.logger.Warn("dropping undecodable image", "topic", ev.Topic, "error", err)
			return
		}
		b.metrics.MessageDropped(metrics.DropPersist)
		b.logger.Error("message not persisted", "topic", ev.Topic, "route", route.Kind.String(), "error", err)
		return
	}

	b.metrics.MessageReceived(route.Kind.String())
	b.publish(route.Kind, fx)
}

// touchUnrouted records that a topic with no route is still delivering
// JSON objects. Payloads that are not objects leave health alone.
func (b *Bridge) touchUnrouted(ctx context.Context, ev mqtt.EventMessage) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(ev.Payload, &obj); err != nil || obj == nil {
		return
	}
	err := b.store.Atomic(ctx, func(tx *store.Tx) error {
		return b.recorder.TouchTopic(ctx, tx, ev.Topic)
	})
	if err != nil {
		b.logger.Error("topic health not persisted", "topic", ev.Topic, "error", err)
	}
}

func (b *Bridge) apply(ctx context.Context, tx *store.Tx, msg Message) (effects, error) {
	var (
		fx  effects
		err error
	)
	switch msg.Route.Kind {
	case KindTemperature:
		fx.readings, err = b.ingestor.Temperature(ctx, tx, msg.Value)
	case KindAirHumidity:
		fx.readings, err = b.ingestor.AirHumidity(ctx, tx, msg.Value)
	case KindSoilHumidity:
		fx.readings, err = b.ingestor.SoilHumidity(ctx, tx, msg.Route.SessionID, msg.Value)
	case KindImage:
		fx.readings, err = b.ingestor.Image(ctx, tx, msg.Image)
	case KindDeviceStatus:
		fx.status, err = b.tracker.Record(ctx, tx, msg.Route.Class, msg.Status, msg.StatusSession)
	case KindAlert:
		fx.alert, err = alert.Raise(ctx, tx, msg.AlertMessage, msg.AlertLevel, b.now())
		if err == nil {
			b.logger.Warn("greenhouse alert", "level", fx.alert.Level, "message", fx.alert.Message)
		}
	}
	return fx, err
}

// publish sends committed effects to the mirror and live clients.
func (b *Bridge) publish(kind Kind, fx effects) {
	for _, r := range fx.readings {
		if b.mirror != nil && kind != KindImage {
			b.mirror.WriteReading(r.SessionID, r.CropID, r.Temperature, r.AirHumidity, r.SoilHumidity, r.ExhaustOn, r.RecordedAt)
		}
		b.broadcast(EventReadingCreated, r)
	}
	if s := fx.status; s != nil {
		if b.mirror != nil {
			b.mirror.WriteDeviceStatus(string(s.Class), s.Status, s.SessionID, s.RecordedAt)
		}
		b.broadcast(EventDeviceStatus, s)
	}
	if fx.alert != nil {
		b.broadcast(EventAlertCreated, fx.alert)
	}
}

func (b *Bridge) broadcastLink(s link.Snapshot) {
	b.broadcast(EventLinkState, s)
}

func (b *Bridge) broadcast(eventType string, payload any) {
	if b.hub != nil {
		b.hub.Broadcast(eventType, payload)
	}
}
