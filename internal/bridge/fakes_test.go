package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/estufa-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/estufa-core/internal/link"
)

// fakeTransport scripts connect results and records subscriptions.
type fakeTransport struct {
	mu          sync.Mutex
	connectErrs []error
	connects    int
	subscribed  []string
	failTopics  map[string]bool
	closed      bool

	events    chan mqtt.Event
	connected chan struct{}
}

func newFakeTransport(connectErrs ...error) *fakeTransport {
	return &fakeTransport{
		connectErrs: connectErrs,
		failTopics:  make(map[string]bool),
		events:      make(chan mqtt.Event, 16),
		connected:   make(chan struct{}, 16),
	}
}

// Connect pops the next scripted error; once the script runs out every
// attempt succeeds.
func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	f.connects++
	var err error
	if len(f.connectErrs) > 0 {
		err = f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
	}
	f.mu.Unlock()

	if err == nil {
		f.connected <- struct{}{}
	}
	return err
}

func (f *fakeTransport) Subscribe(topic string, _ byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTopics[topic] {
		return mqtt.ErrSubscribeFailed
	}
	f.subscribed = append(f.subscribed, topic)
	return nil
}

func (f *fakeTransport) Events() <-chan mqtt.Event { return f.events }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) IsConnected() bool { return true }

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// stateLog is an in-memory link.Store.
type stateLog struct {
	mu     sync.Mutex
	states []link.State
}

func (s *stateLog) SaveTransition(_ context.Context, snap link.Snapshot, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, snap.State)
	return nil
}

func (s *stateLog) TopicHealth(context.Context) ([]link.TopicHealth, error) {
	return nil, nil
}

func (s *stateLog) all() []link.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]link.State(nil), s.states...)
}

// waits records requested reconnect delays without sleeping.
type waits struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (w *waits) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.delays = append(w.delays, d)
	w.mu.Unlock()
	return ctx.Err()
}

func (w *waits) all() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.delays...)
}

type broadcast struct {
	eventType string
	payload   any
}

// fakeHub collects broadcasts and signals each one.
type fakeHub struct {
	mu     sync.Mutex
	events []broadcast
	sent   chan string
}

func newFakeHub() *fakeHub {
	return &fakeHub{sent: make(chan string, 64)}
}

func (h *fakeHub) Broadcast(eventType string, payload any) {
	h.mu.Lock()
	h.events = append(h.events, broadcast{eventType, payload})
	h.mu.Unlock()
	select {
	case h.sent <- eventType:
	default:
	}
}

func (h *fakeHub) ofType(eventType string) []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []any
	for _, e := range h.events {
		if e.eventType == eventType {
			out = append(out, e.payload)
		}
	}
	return out
}

// fakeMirror counts mirrored writes.
type fakeMirror struct {
	mu       sync.Mutex
	readings int
	statuses int
}

func (m *fakeMirror) WriteReading(int64, int64, float64, float64, float64, bool, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings++
}

func (m *fakeMirror) WriteDeviceStatus(string, string, *int64, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses++
}
