package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/estufa-core/internal/infrastructure/metrics"
	"github.com/nerrad567/estufa-core/internal/link"
)

// Default reconnect delays.
const (
	DefaultInitialDelay = 5 * time.Second
	DefaultRetryDelay   = 30 * time.Second
)

// stateSaveTimeout bounds persisting the final stopped state after the run
// context is gone.
const stateSaveTimeout = 5 * time.Second

// StepBackOff yields Initial once after a reset and Retry for every call
// after that. It never returns backoff.Stop.
type StepBackOff struct {
	Initial time.Duration
	Retry   time.Duration

	attempts int
}

// NewStepBackOff creates a StepBackOff in its reset state.
func NewStepBackOff(initial, retry time.Duration) *StepBackOff {
	return &StepBackOff{Initial: initial, Retry: retry}
}

// NextBackOff implements backoff.BackOff.
func (b *StepBackOff) NextBackOff() time.Duration {
	b.attempts++
	if b.attempts == 1 {
		return b.Initial
	}
	return b.Retry
}

// Reset implements backoff.BackOff.
func (b *StepBackOff) Reset() {
	b.attempts = 0
}

// StateFunc observes every link transition.
type StateFunc func(link.Snapshot)

// Supervisor keeps the transport connected.
//
// Thread Safety:
//   - Run must be called once. Lost may be called from any goroutine.
type Supervisor struct {
	transport Transport
	recorder  *link.Recorder
	topics    []Subscription
	policy    backoff.BackOff
	logger    Logger
	metrics   *metrics.Metrics
	onState   StateFunc

	// lost carries unexpected disconnects from the dispatch loop.
	lost chan error

	// wait sleeps for d or until ctx ends. Replaced in tests.
	wait func(ctx context.Context, d time.Duration) error

	runOnce sync.Once
}

// SupervisorConfig holds Supervisor dependencies. Transport and Recorder are
// required.
type SupervisorConfig struct {
	Transport    Transport
	Recorder     *link.Recorder
	Topics       []Subscription
	InitialDelay time.Duration
	RetryDelay   time.Duration
	Logger       Logger
	Metrics      *metrics.Metrics
	OnState      StateFunc
}

// NewSupervisor creates a Supervisor. Zero delays take the defaults and nil
// Topics subscribes InboundTopics.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	initial := cfg.InitialDelay
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	retry := cfg.RetryDelay
	if retry <= 0 {
		retry = DefaultRetryDelay
	}
	topics := cfg.Topics
	if topics == nil {
		topics = InboundTopics()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Supervisor{
		transport: cfg.Transport,
		recorder:  cfg.Recorder,
		topics:    topics,
		policy:    NewStepBackOff(initial, retry),
		logger:    logger,
		metrics:   cfg.Metrics,
		onState:   cfg.OnState,
		lost:      make(chan error, 1),
		wait:      sleep,
	}
}

// Lost reports an unexpected disconnect. It never blocks; a loss already
// pending covers a second one.
func (s *Supervisor) Lost(cause error) {
	select {
	case s.lost <- cause:
	default:
	}
}

// Run connects and reconnects until ctx is cancelled. The first attempt is
// immediate. After a lost link or a failed attempt it waits for the next
// step of the backoff policy, which restarts from the initial delay after
// every successful connect.
func (s *Supervisor) Run(ctx context.Context) {
	s.runOnce.Do(func() { s.run(ctx) })
}

func (s *Supervisor) run(ctx context.Context) {
	policy := backoff.WithContext(s.policy, ctx)
	defer s.stop()

	for {
		s.drainLost()
		s.transition(ctx, link.StateConnecting, nil)

		err := s.transport.Connect(ctx)
		s.metrics.ConnectAttempt(err == nil)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			s.logger.Warn("broker connection failed", "error", err)
			s.transition(ctx, link.StateDisconnected, err)
		} else {
			policy.Reset()
			s.transition(ctx, link.StateConnected, nil)
			s.resubscribe()

			select {
			case <-ctx.Done():
				return
			case cause := <-s.lost:
				s.logger.Warn("broker connection lost", "error", cause)
				s.transition(ctx, link.StateDisconnected, cause)
			}
		}

		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			return
		}
		s.logger.Info("reconnecting to broker", "delay", delay.String())
		if err := s.wait(ctx, delay); err != nil {
			return
		}
	}
}

// resubscribe subscribes every inbound topic. A failed topic is logged and
// the rest still subscribe.
func (s *Supervisor) resubscribe() {
	failed := 0
	for _, sub := range s.topics {
		if err := s.transport.Subscribe(sub.Topic, sub.QoS); err != nil {
			failed++
			s.logger.Error("subscribe failed", "topic", sub.Topic, "error", err)
		}
	}
	s.logger.Info("subscribed to inbound topics",
		"subscribed", len(s.topics)-failed,
		"failed", failed,
	)
}

// drainLost discards a loss reported for a connection that is already gone.
func (s *Supervisor) drainLost() {
	select {
	case <-s.lost:
	default:
	}
}

func (s *Supervisor) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), stateSaveTimeout)
	defer cancel()
	s.transition(ctx, link.StateStopped, nil)
}

func (s *Supervisor) transition(ctx context.Context, state link.State, cause error) {
	snap, err := s.recorder.Transition(ctx, state, cause)
	if err != nil {
		s.logger.Error("recording link state", "state", string(state), "error", err)
	}
	s.metrics.SetConnected(snap.Connected)
	if s.onState != nil {
		s.onState(snap)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("reconnect wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
